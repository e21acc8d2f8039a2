package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "ARK_TEMPERATURE", "ARK_MAX_TOKENS", "AI_GENERATION_TIMEOUT",
		"AUDIENCE_IDLE_MIN", "AUDIENCE_IDLE_MAX", "AUDIENCE_BURST_SIZE", "AUDIENCE_MIN_CONFIDENCE",
		"FACE_MATCH_THRESHOLD", "MQTT_BROKER",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}

	if cfg.Server.Addr != ":9000" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr)
	}
	if cfg.AI.Temperature == nil || *cfg.AI.Temperature != 0.8 {
		t.Fatalf("unexpected temperature %v", cfg.AI.Temperature)
	}
	if cfg.AI.MaxTokens == nil || *cfg.AI.MaxTokens != 50 {
		t.Fatalf("unexpected max tokens %v", cfg.AI.MaxTokens)
	}
	if cfg.AI.Timeout != 8*time.Second {
		t.Fatalf("unexpected timeout %s", cfg.AI.Timeout)
	}

	a := cfg.Audience
	if a.IdleMin != 5*time.Second || a.IdleMax != 13*time.Second {
		t.Fatalf("unexpected idle band %s..%s", a.IdleMin, a.IdleMax)
	}
	if a.BurstSize != 3 || a.Stagger != 200*time.Millisecond || a.MentionCooldown != 10*time.Second {
		t.Fatalf("unexpected burst settings %+v", a)
	}
	if a.MinConfidence != 0.3 || a.MinTranscriptLength != 2 {
		t.Fatalf("unexpected guard settings %+v", a)
	}
	if a.MinViewers != 0 || a.MaxViewers != 100 || a.InitialViewers != 5 {
		t.Fatalf("unexpected viewer band %+v", a)
	}
	if cfg.Faces.MatchThreshold != 0.6 {
		t.Fatalf("unexpected threshold %v", cfg.Faces.MatchThreshold)
	}
	if cfg.MQTT.Broker != "" || cfg.MQTT.TopicPrefix != "fake-audience" {
		t.Fatalf("unexpected mqtt config %+v", cfg.MQTT)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:7000")
	t.Setenv("AUDIENCE_IDLE_MIN", "50")
	t.Setenv("AUDIENCE_IDLE_MAX", "2s")
	t.Setenv("AUDIENCE_BURST_SIZE", "5")
	t.Setenv("FACE_KEEP_SAMPLES", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:7000" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr)
	}
	if cfg.Audience.IdleMin != 50*time.Millisecond || cfg.Audience.IdleMax != 2*time.Second {
		t.Fatalf("unexpected idle band %s..%s", cfg.Audience.IdleMin, cfg.Audience.IdleMax)
	}
	if cfg.Audience.BurstSize != 5 || !cfg.Faces.KeepSamples {
		t.Fatalf("overrides not applied: %+v %+v", cfg.Audience, cfg.Faces)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"PORT":                  "90 00",
		"AUDIENCE_IDLE_MAX":     "1ms",
		"AUDIENCE_BURST_SIZE":   "0",
		"AUDIENCE_MAX_VIEWERS":  "-1",
		"AI_GENERATION_TIMEOUT": "soon",
		"FACE_MATCH_THRESHOLD":  "0",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", key, value)
			}
		})
	}
}
