package buffer

import (
	"time"

	"github.com/google/uuid"
)

// Channel purposes. Full channel names are built by config.ChannelName.
const (
	PurposeInbound    = "inbound"
	PurposeOutbound   = "outbound"
	PurposeDeadletter = "deadletter"
)

// Item is one durable message in a channel.
type Item struct {
	ID string `json:"id"`
	// Key partitions the channel. Items sharing a key are handed out in enqueue order.
	Key       string          `json:"key"`
	Name      string          `json:"name"`
	Data      []byte          `json:"data"`
	Priority  int             `json:"priority"`
	Retries   int             `json:"retries"`
	LastError string          `json:"last_error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	NotBefore time.Time       `json:"not_before,omitempty"`

	bucketKey []byte
}

func (i *Item) normalize() {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.Priority <= 0 || i.Priority > 5 {
		i.Priority = 3
	}
	if i.Timestamp.IsZero() {
		i.Timestamp = time.Now()
	}
}

// Ready reports whether the item may be handed out at now.
func (i Item) Ready(now time.Time) bool {
	return i.NotBefore.IsZero() || !i.NotBefore.After(now)
}
