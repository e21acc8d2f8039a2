package mention

import (
	"strings"

	"github.com/zhouzirui/fake-audience/backend/internal/model/persona"
)

// Detect returns the personas whose name or any alias appears in transcript,
// case-insensitively, in catalogue order. Each persona appears at most once.
func Detect(transcript string, catalogue []persona.Persona) []persona.Persona {
	text := normalize(transcript)
	if text == "" {
		return nil
	}

	var matched []persona.Persona
	for _, p := range catalogue {
		if mentions(text, p) {
			matched = append(matched, p)
		}
	}
	return matched
}

func mentions(text string, p persona.Persona) bool {
	if name := normalize(p.Name); name != "" && strings.Contains(text, name) {
		return true
	}
	for _, alias := range p.Aliases {
		if a := normalize(alias); a != "" && strings.Contains(text, a) {
			return true
		}
	}
	return false
}

// normalize lowercases and collapses runs of whitespace so "Kai   Cenat" matches "kai cenat".
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
