package hub

import "encoding/json"

// Envelope is the wire form of a Message shared by every transport.
type Envelope struct {
	Type      string `json:"type"`
	StreamID  string `json:"streamId,omitempty"`
	Data      any    `json:"data"`
	Timestamp int64  `json:"timestamp"`
}

// Envelope converts msg to its wire form.
func (m Message) Envelope() Envelope {
	return Envelope{
		Type:      m.Event,
		StreamID:  m.StreamID,
		Data:      m.Data,
		Timestamp: m.Timestamp.Unix(),
	}
}

// Encode marshals the wire form of msg.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m.Envelope())
}
