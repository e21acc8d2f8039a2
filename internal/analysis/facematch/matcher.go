package facematch

import (
	"math"

	"github.com/zhouzirui/fake-audience/backend/internal/model/face"
)

// DefaultThreshold is the maximum accepted Euclidean distance.
const DefaultThreshold = 0.6

// Match is the best gallery label for a query descriptor.
type Match struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Distance   float64 `json:"distance"`
}

// Matcher compares descriptors against an enrolled gallery.
type Matcher struct {
	threshold float64
}

// New returns a Matcher; a non-positive threshold selects DefaultThreshold.
func New(threshold float64) *Matcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Matcher{threshold: threshold}
}

// Match returns the closest label whose nearest sample lies strictly below the
// threshold. Ties keep the first label seen. ok is false for "unknown".
func (m *Matcher) Match(query face.Descriptor, gallery []face.Enrolled) (Match, bool) {
	if len(query) == 0 || len(gallery) == 0 {
		return Match{}, false
	}

	best := Match{Distance: math.Inf(1)}
	found := false
	for _, entry := range gallery {
		nearest := math.Inf(1)
		for _, d := range entry.Descriptors {
			if dist := Distance(query, d); dist < nearest {
				nearest = dist
			}
		}
		if nearest < m.threshold && nearest < best.Distance {
			best = Match{Label: entry.Label, Distance: nearest, Confidence: 1 - nearest}
			found = true
		}
	}
	return best, found
}

// Distance is the Euclidean distance between a and b; +Inf when lengths differ.
func Distance(a, b face.Descriptor) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
