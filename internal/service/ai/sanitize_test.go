package ai

import "testing"

func TestSanitizeStripsPrefixQuotesAndEmoji(t *testing.T) {
	text, emoji := Sanitize("xQc: \"THIS IS FIRE 🔥🔥\"\n\n  lol", "xQc")
	if text != "this is fire lol 🔥" {
		t.Fatalf("unexpected sanitized text %q", text)
	}
	if emoji != "🔥" {
		t.Fatalf("expected fire emoji, got %q", emoji)
	}
}

func TestSanitizeGenericSpeakerPrefix(t *testing.T) {
	text, emoji := Sanitize("Streamer: I’m   here 😂😂")
	if text != "im here" {
		t.Fatalf("unexpected sanitized text %q", text)
	}
	if emoji != "" {
		t.Fatalf("expected no emoji without enthusiasm keyword, got %q", emoji)
	}
}

func TestSanitizeKeepsUnrelatedColon(t *testing.T) {
	text, _ := Sanitize("ratio: 10 out of 10")
	if text != "ratio: 10 out of 10" {
		t.Fatalf("unexpected sanitized text %q", text)
	}
}

func TestSanitizeAtMostOneEmoji(t *testing.T) {
	text, _ := Sanitize("AMAZING best stream ever 🎉🎉 insane 🚀")
	count := 0
	for _, r := range text {
		if isEmoji(r) {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one emoji, got %d in %q", count, text)
	}
}

func TestSanitizeEmptyAfterPolicy(t *testing.T) {
	if text, _ := Sanitize(`"🔥🔥"`); text != "" {
		t.Fatalf("expected empty text, got %q", text)
	}
}
