package chat

import "time"

// Session is a read-only snapshot of one simulated stream.
type Session struct {
	ID           string     `json:"id"`
	StreamerName string     `json:"streamerName"`
	IsActive     bool       `json:"isActive"`
	AudienceSize int        `json:"audienceCount"`
	PresentFaces []string   `json:"presentFaces"`
	LastMention  *time.Time `json:"lastMention,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}
