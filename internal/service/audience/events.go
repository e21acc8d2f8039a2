package audience

// Outbound room events.
const (
	EventAudienceUpdate = "audience-update"
	EventFakeChat       = "fake-chat-message"
	EventRealChat       = "real-chat-message"
	EventStreamStopped  = "stream-stopped"
	EventFaceDetected   = "face-detected"
	EventFaceLeft       = "face-left"
	EventFacesLeft      = "faces-left"
	EventCurrentFaces   = "current-faces"
)

// FaceSignal is a face-detected payload. Descriptor, when present, is resolved
// against the enrolled gallery and overrides Person.
type FaceSignal struct {
	StreamID    string             `json:"streamId"`
	Person      string             `json:"person"`
	Confidence  float64            `json:"confidence"`
	Expressions map[string]float64 `json:"expressions,omitempty"`
	Descriptor  []float64          `json:"descriptor,omitempty"`
}

// FaceLeft is the face-left payload.
type FaceLeft struct {
	StreamID string `json:"streamId"`
	Person   string `json:"person"`
}

// PresentFace is one entry of a current-faces snapshot.
type PresentFace struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	Timestamp  any     `json:"timestamp,omitempty"`
}

// CurrentFaces is the current-faces payload.
type CurrentFaces struct {
	StreamID string        `json:"streamId"`
	Faces    []PresentFace `json:"faces"`
}
