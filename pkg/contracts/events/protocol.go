// Package events contains the frames pushed from the backend to connected UI clients.
package events

import (
	"encoding/json"
	"time"
)

// Event names
const (
	// LicenseChanged is published after a license key is saved, removed or a trial is created
	LicenseChanged = "license.changed"
	// Notification carries a user-facing message
	Notification = "notification"
	// Connected is sent to a client right after it joins the hub
	Connected = "connected"
)

// Frame is the JSON object written to event subscribers
type Frame struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	TraceID   string          `json:"trace_id,omitempty"`
}

// LicenseChangedData describes what happened to the license set
type LicenseChangedData struct {
	Action string `json:"action"` // saved, removed, trial_created
	ID     int64  `json:"id"`
}

// NotificationData is the payload of a notification event
type NotificationData struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// NewFrame encodes data into a frame. A nil data value yields a frame without payload.
func NewFrame(name string, data interface{}, now time.Time) (Frame, error) {
	frame := Frame{Event: name, Timestamp: now.UTC()}
	if data == nil {
		return frame, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Frame{}, err
	}
	frame.Data = raw
	return frame, nil
}
