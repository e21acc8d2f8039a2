package mention

import (
	"testing"

	"github.com/zhouzirui/fake-audience/backend/internal/model/persona"
)

func names(items []persona.Persona) []string {
	out := make([]string, len(items))
	for i, p := range items {
		out[i] = p.Name
	}
	return out
}

func TestDetectCanonicalNameCaseInsensitive(t *testing.T) {
	got := Detect("yo xqc what do you think", persona.Seed())
	if len(got) != 1 || got[0].Name != "xQc" {
		t.Fatalf("expected only xQc, got %v", names(got))
	}
}

func TestDetectAliasAndSpacingVariants(t *testing.T) {
	catalogue := persona.Seed()

	got := Detect("shout out to   KAI   cenat and poki mane", catalogue)
	want := []string{"Kai Cenat", "Pokimane"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, names(got))
	}
	for i := range want {
		if got[i].Name != want[i] {
			t.Fatalf("expected %v, got %v", want, names(got))
		}
	}
}

func TestDetectNoMentions(t *testing.T) {
	if got := Detect("hello everyone", persona.Seed()); len(got) != 0 {
		t.Fatalf("expected no mentions, got %v", names(got))
	}
	if got := Detect("   ", persona.Seed()); got != nil {
		t.Fatalf("expected nil for blank transcript, got %v", names(got))
	}
}

func TestDetectAliasTableIsData(t *testing.T) {
	catalogue := []persona.Persona{{ID: "zed", Name: "Zed", Aliases: []string{"zeddy"}}}
	if got := Detect("ZEDDY is here", catalogue); len(got) != 1 {
		t.Fatalf("expected alias match, got %v", names(got))
	}
}

func TestDetectIgnoresEverydayWords(t *testing.T) {
	catalogue := persona.Seed()
	lines := []string{
		"the game is loading give me a sec",
		"i was reading chat",
		"heading out soon",
		"trading cards later",
		"that fuel bar is low",
		"downloading the update now",
		"stop poking the boss",
	}
	for _, line := range lines {
		if got := Detect(line, catalogue); len(got) != 0 {
			t.Fatalf("%q: expected no mentions, got %v", line, names(got))
		}
	}

	got := Detect("adin ross just raided", catalogue)
	if len(got) != 1 || got[0].Name != "Adin Ross" {
		t.Fatalf("expected Adin Ross, got %v", names(got))
	}
}
