package audience

import (
	"time"

	"github.com/zhouzirui/fake-audience/backend/internal/analysis/viewers"
)

// Config holds the scheduler tunables.
type Config struct {
	IdleMin             time.Duration
	IdleMax             time.Duration
	BurstSize           int
	Stagger             time.Duration
	MentionCooldown     time.Duration
	MinConfidence       float64
	MinTranscriptLength int
	GreetingDelay       time.Duration
	Band                viewers.Band
	InitialAudience     int
	DriftInterval       time.Duration
	DriftStepMin        int
	DriftStepMax        int
}

// DefaultConfig returns the stock tunables.
func DefaultConfig() Config {
	return Config{
		IdleMin:             5 * time.Second,
		IdleMax:             13 * time.Second,
		BurstSize:           3,
		Stagger:             200 * time.Millisecond,
		MentionCooldown:     10 * time.Second,
		MinConfidence:       0.3,
		MinTranscriptLength: 2,
		GreetingDelay:       1500 * time.Millisecond,
		Band:                viewers.Band{Min: 0, Max: 100},
		InitialAudience:     5,
		DriftInterval:       3 * time.Second,
		DriftStepMin:        1,
		DriftStepMax:        3,
	}
}
