package websocket

import (
	"errors"
	"sync"
)

var errFakeClosed = errors.New("connection closed")

// fakeConn is an in-memory Conn. Read blocks until push or Close.
type fakeConn struct {
	mu        sync.Mutex
	written   [][]byte
	pings     int
	closeCode int

	reads     chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		reads:  make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (f *fakeConn) WriteFrame(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.isClosed() {
		return errFakeClosed
	}
	f.written = append(f.written, data)
	return nil
}

func (f *fakeConn) WritePing() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pings++
	return nil
}

func (f *fakeConn) WriteClose(code int, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCode = code
	return nil
}

func (f *fakeConn) Read() ([]byte, error) {
	select {
	case data := <-f.reads:
		return data, nil
	case <-f.closed:
		return nil, errFakeClosed
	}
}

func (f *fakeConn) RemoteAddr() string { return "127.0.0.1:7421" }

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func (f *fakeConn) push(data []byte) {
	f.reads <- data
}

func (f *fakeConn) frames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.written...)
}

func (f *fakeConn) sentClose() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCode
}
