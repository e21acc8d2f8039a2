package ai

import (
	"strings"

	"github.com/zhouzirui/fake-audience/backend/internal/analysis/hype"
)

var quoteReplacer = strings.NewReplacer(
	`"`, "", "'", "", "`", "",
	"“", "", "”", "", "‘", "", "’", "",
)

var speakerPrefixes = []string{"streamer", "viewer", "chat"}

// Sanitize applies the chat line policy to raw model output and returns the
// final text plus the emoji it appended, if any. names lists speaker prefixes
// to strip in addition to the generic ones.
func Sanitize(raw string, names ...string) (string, string) {
	text := stripSpeakerPrefix(strings.TrimSpace(raw), names)
	text = quoteReplacer.Replace(text)
	text = strings.ToLower(text)
	text = stripEmoji(text)
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return "", ""
	}

	decision := hype.Analyze(text)
	if decision.Emoji == "" {
		return text, ""
	}
	return text + " " + decision.Emoji, decision.Emoji
}

func stripSpeakerPrefix(text string, names []string) string {
	idx := strings.Index(text, ":")
	if idx <= 0 {
		return text
	}
	head := strings.Trim(strings.TrimSpace(text[:idx]), `"'*`)
	candidates := append(append([]string(nil), names...), speakerPrefixes...)
	for _, name := range candidates {
		if name != "" && strings.EqualFold(head, name) {
			return strings.TrimSpace(text[idx+1:])
		}
	}
	return text
}

func stripEmoji(text string) string {
	return strings.Map(func(r rune) rune {
		if isEmoji(r) {
			return -1
		}
		return r
	}, text)
}

func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F000 && r <= 0x1FAFF: // pictographs, emoticons, flags, symbols
		return true
	case r >= 0x2600 && r <= 0x27BF: // misc symbols, dingbats
		return true
	case r >= 0x2300 && r <= 0x23FF, r >= 0x2B00 && r <= 0x2BFF:
		return true
	case r == 0x200D || r == 0xFE0F || r == 0x20E3:
		return true
	case r >= 0xE0020 && r <= 0xE007F: // tag sequences
		return true
	}
	return false
}
