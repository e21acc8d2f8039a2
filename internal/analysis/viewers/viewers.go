// Package viewers holds the synthetic viewer-count arithmetic: band clamping,
// random resampling, the bounded drift walk and the start-of-stream ramp.
package viewers

import "time"

// Rand is the subset of *rand.Rand the viewer math needs.
type Rand interface {
	Intn(n int) int
}

// Band is the inclusive range an audience count must stay within.
type Band struct {
	Min int
	Max int
}

// Clamp forces n into the band.
func (b Band) Clamp(n int) int {
	if n < b.Min {
		return b.Min
	}
	if n > b.Max {
		return b.Max
	}
	return n
}

// Resample draws a uniform count within the band.
func Resample(r Rand, b Band) int {
	if b.Max <= b.Min {
		return b.Min
	}
	return b.Min + r.Intn(b.Max-b.Min+1)
}

// Walk moves current up or down by a step in [minStep, maxStep] and clamps to the band.
func Walk(r Rand, current int, b Band, minStep, maxStep int) int {
	if minStep < 0 {
		minStep = 0
	}
	if maxStep < minStep {
		maxStep = minStep
	}
	step := minStep + r.Intn(maxStep-minStep+1)
	if r.Intn(2) == 0 {
		step = -step
	}
	return b.Clamp(current + step)
}

// Ramp linearly interpolates from 0 to target over d. Presentation clients
// animate the count with it right after a stream starts.
func Ramp(target int, elapsed, d time.Duration) int {
	if d <= 0 || elapsed >= d {
		return target
	}
	if elapsed <= 0 {
		return 0
	}
	return int(float64(target) * float64(elapsed) / float64(d))
}
