package ai

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/zhouzirui/fake-audience/backend/internal/model/persona"
)

// FallbackLine is emitted whenever a completion fails or times out.
const FallbackLine = "bro this stream wild"

const defaultTimeout = 8 * time.Second

// Kind selects the prompt framing for a generated line.
type Kind int

const (
	KindSpeech Kind = iota
	KindIdle
	KindWelcome
)

func (k Kind) String() string {
	switch k {
	case KindIdle:
		return "idle"
	case KindWelcome:
		return "welcome"
	default:
		return "speech"
	}
}

// Request is one generation job.
type Request struct {
	StreamerName string
	Persona      persona.Persona
	Trigger      string
	Kind         Kind
}

// Line is a sanitized chat line ready for broadcast.
type Line struct {
	Text     string
	Emoji    string
	Fallback bool
}

// Generator turns persona requests into chat lines. It never returns an error:
// upstream failures degrade to FallbackLine.
type Generator struct {
	completer Completer
	timeout   time.Duration
}

// NewGenerator creates a Generator. A nil completer switches to offline canned replies.
func NewGenerator(completer Completer, timeout time.Duration) *Generator {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Generator{completer: completer, timeout: timeout}
}

// Online reports whether a real completion backend is configured.
func (g *Generator) Online() bool {
	return g != nil && g.completer != nil
}

// Generate produces one line for req.
func (g *Generator) Generate(ctx context.Context, req Request) Line {
	if !g.Online() {
		text, emoji := Sanitize(cannedReply(req), req.Persona.Name)
		return Line{Text: text, Emoji: emoji}
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	raw, err := g.completer.Complete(ctx, SystemPrompt(req.Persona), UserPrompt(req))
	if err != nil {
		log.Printf("[ai] %s completion failed for persona=%s: %v", req.Kind, req.Persona.ID, err)
		return Fallback()
	}

	text, emoji := Sanitize(raw, req.Persona.Name)
	if text == "" {
		log.Printf("[ai] %s completion for persona=%s was empty after sanitize", req.Kind, req.Persona.ID)
		return Fallback()
	}
	return Line{Text: text, Emoji: emoji}
}

// Fallback returns the fixed fallback line.
func Fallback() Line {
	return Line{Text: FallbackLine, Fallback: true}
}

// Ping sends a tiny prompt through the completer and returns its raw reply.
func (g *Generator) Ping(ctx context.Context) (string, error) {
	if !g.Online() {
		return "", ErrOffline
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.completer.Complete(ctx, "You are a health check.", "Reply with the single word ok.")
}

// cannedReply keeps the audience alive without a completion backend.
func cannedReply(req Request) string {
	switch req.Kind {
	case KindWelcome:
		return "yo welcome " + strings.TrimSpace(req.Trigger)
	case KindIdle:
		return "chilling here good vibes"
	}

	speech := strings.ToLower(strings.TrimSpace(req.Trigger))
	words := strings.Fields(speech)
	switch {
	case containsWord(words, "hello", "hi", "hey", "yo"):
		return "hey"
	case strings.Contains(speech, "how are you"):
		return "good"
	case strings.Contains(speech, "thank you"), containsWord(words, "thanks"):
		return "youre welcome"
	case strings.Contains(speech, "?"):
		return "good question"
	default:
		return "nice"
	}
}

func containsWord(words []string, targets ...string) bool {
	for _, w := range words {
		w = strings.Trim(w, ",.!?")
		for _, t := range targets {
			if w == t {
				return true
			}
		}
	}
	return false
}
