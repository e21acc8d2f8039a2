package chat

import (
	"time"

	"github.com/google/uuid"
)

// Event is one chat line pushed to a stream's room. It is never persisted.
type Event struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Message       string    `json:"message"`
	Emoji         string    `json:"emoji,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	IsFake        bool      `json:"isFake,omitempty"`
	IsReal        bool      `json:"isReal,omitempty"`
	IsSystem      bool      `json:"isSystem,omitempty"`
	IsDonation    bool      `json:"isDonation,omitempty"`
	IsContextual  bool      `json:"isContextual,omitempty"`
	IsFallback    bool      `json:"isFallback,omitempty"`
	BasedOnSpeech string    `json:"basedOnSpeech,omitempty"`
}

// NewEvent stamps a fresh id and UTC timestamp onto an event.
func NewEvent(username, message string) Event {
	return Event{
		ID:        uuid.NewString(),
		Username:  username,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}
