package sse

import (
	"encoding/json"

	"github.com/c0deZ3R0/quotesync/synckit"
)

// Event is one frame of the stream. ID increases per hub.
type Event struct {
	ID   uint64
	Name string
	Data json.RawMessage
}

// Notification decodes the frame payload.
func (e Event) Notification() (synckit.Notification, error) {
	var n synckit.Notification
	err := json.Unmarshal(e.Data, &n)
	return n, err
}
