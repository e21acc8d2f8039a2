package persona

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Persona 描述一个虚拟观众身份。目录在进程启动时加载，之后只读共享。
type Persona struct {
	ID      string   `json:"id" yaml:"id"`
	Name    string   `json:"name" yaml:"name"`
	Voice   string   `json:"voice" yaml:"voice"`
	Emoji   string   `json:"emoji,omitempty" yaml:"emoji"`
	Aliases []string `json:"aliases,omitempty" yaml:"aliases"`
}

// Archetype 是多个 persona 共用的说话风格。
type Archetype struct {
	ID    string `yaml:"id"`
	Style string `yaml:"style"`
}

type catalogueFile struct {
	Archetypes []Archetype `yaml:"archetypes"`
	Personas   []struct {
		ID        string   `yaml:"id"`
		Name      string   `yaml:"name"`
		Archetype string   `yaml:"archetype"`
		Emoji     string   `yaml:"emoji"`
		Aliases   []string `yaml:"aliases"`
	} `yaml:"personas"`
}

//go:embed catalogue.yaml
var defaultCatalogue []byte

// Seed returns the built-in viewer catalogue.
func Seed() []Persona {
	items, err := Parse(defaultCatalogue)
	if err != nil {
		panic(fmt.Sprintf("persona: embedded catalogue is invalid: %v", err))
	}
	return items
}

// Load reads a catalogue from path, falling back to the embedded one when path is empty.
func Load(path string) ([]Persona, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Seed(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read persona catalogue %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes a YAML catalogue and resolves each persona's archetype into its voice.
func Parse(raw []byte) ([]Persona, error) {
	var doc catalogueFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode persona catalogue: %w", err)
	}

	styles := make(map[string]string, len(doc.Archetypes))
	for _, a := range doc.Archetypes {
		styles[a.ID] = strings.TrimSpace(a.Style)
	}

	seen := make(map[string]struct{}, len(doc.Personas))
	items := make([]Persona, 0, len(doc.Personas))
	for _, p := range doc.Personas {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return nil, fmt.Errorf("persona %q has no name", p.ID)
		}
		id := strings.TrimSpace(p.ID)
		if id == "" {
			id = slug(name)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("duplicate persona id %q", id)
		}
		seen[id] = struct{}{}

		voice, ok := styles[p.Archetype]
		if !ok {
			return nil, fmt.Errorf("persona %q references unknown archetype %q", name, p.Archetype)
		}

		items = append(items, Persona{
			ID:      id,
			Name:    name,
			Voice:   voice,
			Emoji:   p.Emoji,
			Aliases: append([]string(nil), p.Aliases...),
		})
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("persona catalogue is empty")
	}
	return items, nil
}

func slug(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "-")
}
