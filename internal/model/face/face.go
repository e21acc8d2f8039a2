package face

import (
	"errors"
	"strings"
	"time"
)

// UnknownLabel is reported for faces that match no enrolled identity.
const UnknownLabel = "Unknown Person"

var (
	ErrLabelRequired    = errors.New("face label is required")
	ErrEmptyDescriptor  = errors.New("at least one descriptor sample is required")
	ErrDescriptorLength = errors.New("descriptor samples have mismatched lengths")
	ErrFaceNotFound     = errors.New("face not found")
)

// Descriptor is a fixed-length embedding produced by the vision collaborator.
type Descriptor []float64

// Enrolled is one trained identity.
type Enrolled struct {
	Label       string       `json:"label" msgpack:"label"`
	Descriptors []Descriptor `json:"descriptors" msgpack:"descriptors"`
	SampleCount int          `json:"sampleCount" msgpack:"sample_count"`
	TrainedAt   time.Time    `json:"trainedAt" msgpack:"trained_at"`
}

// Enroll builds an Enrolled record from captured samples. Unless keepSamples is
// set, the samples collapse into their centroid.
func Enroll(label string, samples []Descriptor, keepSamples bool) (Enrolled, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return Enrolled{}, ErrLabelRequired
	}
	if len(samples) == 0 || len(samples[0]) == 0 {
		return Enrolled{}, ErrEmptyDescriptor
	}

	width := len(samples[0])
	for _, s := range samples[1:] {
		if len(s) != width {
			return Enrolled{}, ErrDescriptorLength
		}
	}

	var stored []Descriptor
	if keepSamples {
		stored = make([]Descriptor, len(samples))
		for i, s := range samples {
			stored[i] = append(Descriptor(nil), s...)
		}
	} else {
		stored = []Descriptor{Centroid(samples)}
	}

	return Enrolled{
		Label:       label,
		Descriptors: stored,
		SampleCount: len(samples),
		TrainedAt:   time.Now().UTC(),
	}, nil
}

// Centroid averages equal-length samples component-wise.
func Centroid(samples []Descriptor) Descriptor {
	if len(samples) == 0 {
		return nil
	}
	out := make(Descriptor, len(samples[0]))
	for _, s := range samples {
		for i, v := range s {
			out[i] += v
		}
	}
	n := float64(len(samples))
	for i := range out {
		out[i] /= n
	}
	return out
}
