package ai

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/fake-audience/backend/internal/model/persona"
)

const styleRules = "Keep responses short, casual, and lowercase with no punctuation. Never start with your own name or a \"name:\" prefix."

// SystemPrompt combines the persona voice with the shared chat style rules.
func SystemPrompt(p persona.Persona) string {
	voice := strings.TrimSpace(p.Voice)
	if voice == "" {
		voice = "You are a friendly viewer in a live stream chat."
	}
	return voice + " " + styleRules
}

// UserPrompt frames the trigger for the requested kind of line.
func UserPrompt(req Request) string {
	streamer := strings.TrimSpace(req.StreamerName)
	if streamer == "" {
		streamer = "the streamer"
	}
	trigger := strings.TrimSpace(req.Trigger)

	switch req.Kind {
	case KindWelcome:
		return fmt.Sprintf(
			"%s just appeared on camera in %s's stream. Welcome them to the stream in one short chat message.",
			trigger, streamer,
		)
	case KindIdle:
		if trigger == "" {
			trigger = "how the stream is going"
		}
		return fmt.Sprintf(
			"You are watching %s's live stream. Nobody said anything for a bit. Drop one short chat message about %s.",
			streamer, trigger,
		)
	default:
		if trigger == "" {
			trigger = "hey chat, welcome in"
		}
		return fmt.Sprintf(
			"The streamer %s just said: %q\n\nRespond as this viewer would. Keep it natural, conversational, and appropriate to what they said. Only respond with a short, casual message in lowercase with no punctuation.",
			streamer, trigger,
		)
	}
}

// IdleTopics seeds idle chatter when nobody has spoken recently.
var IdleTopics = []string{
	"the stream quality",
	"the vibes in chat",
	"what game comes next",
	"the streamer's setup",
	"how long the stream has been going",
	"the background music",
	"something funny that just happened",
	"being here since the start",
}
