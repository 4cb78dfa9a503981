// Package flagstore keeps small durable flags for the UI process, the Go
// counterpart of a browser's local storage.
package flagstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"
)

// File stores flags as a JSON object. Writes replace the file atomically and take an
// exclusive lock on "<path>.lock", so several CLI processes can share one file.
// Unknown keys and non-boolean values written by other tools are preserved.
type File struct {
	path string
	lock *flock.Flock
	mu   sync.Mutex
}

// Open prepares a flag file at path, creating its directory. The file itself is
// created on the first write.
func Open(path string) (*File, error) {
	if path == "" {
		return nil, errors.New("flag file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create flag directory: %w", err)
	}
	f := &File{path: path, lock: flock.New(path + ".lock")}

	// Fail early on a corrupt file instead of on the first write
	if err := f.lock.RLock(); err != nil {
		return nil, fmt.Errorf("lock flag file: %w", err)
	}
	defer f.lock.Unlock()
	if _, err := f.read(); err != nil {
		return nil, err
	}
	return f, nil
}

// Path returns the file location
func (f *File) Path() string {
	return f.path
}

// SetBool stores value under key
func (f *File) SetBool(key string, value bool) error {
	raw, _ := json.Marshal(value)
	return f.update(func(values map[string]json.RawMessage) {
		values[key] = raw
	})
}

// GetBool returns the flag and whether it was present as a boolean
func (f *File) GetBool(key string) (bool, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.lock.RLock(); err != nil {
		return false, false
	}
	defer f.lock.Unlock()

	values, err := f.read()
	if err != nil {
		return false, false
	}
	raw, ok := values[key]
	if !ok {
		return false, false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false, false
	}
	return b, true
}

// Remove deletes key. Removing a missing key is not an error.
func (f *File) Remove(key string) error {
	return f.update(func(values map[string]json.RawMessage) {
		delete(values, key)
	})
}

func (f *File) update(mutate func(map[string]json.RawMessage)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.lock.Lock(); err != nil {
		return fmt.Errorf("lock flag file: %w", err)
	}
	defer f.lock.Unlock()

	values, err := f.read()
	if err != nil {
		return err
	}
	mutate(values)

	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("encode flags: %w", err)
	}
	if err := atomic.WriteFile(f.path, bytes.NewReader(append(data, '\n'))); err != nil {
		return fmt.Errorf("write flag file: %w", err)
	}
	return nil
}

// read loads the current map; a missing or empty file is an empty map
func (f *File) read() (map[string]json.RawMessage, error) {
	values := make(map[string]json.RawMessage)
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return values, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read flag file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("decode flag file %s: %w", f.path, err)
	}
	// A literal null decodes to a nil map
	if values == nil {
		values = make(map[string]json.RawMessage)
	}
	return values, nil
}

// Memory is an in-process flag store
type Memory struct {
	mu     sync.Mutex
	values map[string]bool
	// Err, when set, is returned by every SetBool call
	Err error
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string]bool)}
}

func (m *Memory) SetBool(key string, value bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.values[key] = value
	return nil
}

func (m *Memory) GetBool(key string) (bool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *Memory) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
