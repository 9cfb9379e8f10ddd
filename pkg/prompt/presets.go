package prompt

import (
	_ "embed"
	"os"
	"strings"
	"sync"

	"github.com/iancoleman/strcase"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var builtinPresetsYAML []byte

// Preset is a named persona.
type Preset struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Prompt      string `yaml:"prompt" json:"prompt"`
}

// Presets is an ordered set of presets keyed by normalized name.
type Presets struct {
	byName map[string]Preset
	order  []string
}

// NormalizePresetName maps "Coder", "coder" and "senior_coder" style names onto
// one kebab-case key.
func NormalizePresetName(name string) string {
	return strcase.ToKebab(strings.TrimSpace(name))
}

func NewPresets(presets ...Preset) *Presets {
	p := &Presets{byName: map[string]Preset{}}
	for _, preset := range presets {
		p.Add(preset)
	}
	return p
}

// Add inserts or replaces a preset.
func (p *Presets) Add(preset Preset) {
	key := NormalizePresetName(preset.Name)
	if _, ok := p.byName[key]; !ok {
		p.order = append(p.order, key)
	}
	preset.Name = key
	p.byName[key] = preset
}

func (p *Presets) Lookup(name string) (Preset, bool) {
	preset, ok := p.byName[NormalizePresetName(name)]
	return preset, ok
}

func (p *Presets) List() []Preset {
	ret := make([]Preset, 0, len(p.order))
	for _, key := range p.order {
		ret = append(ret, p.byName[key])
	}
	return ret
}

// ParsePresets decodes a YAML list of presets.
func ParsePresets(b []byte) ([]Preset, error) {
	var presets []Preset
	if err := yaml.Unmarshal(b, &presets); err != nil {
		return nil, errors.Wrap(err, "could not parse presets")
	}
	for i, preset := range presets {
		if preset.Name == "" {
			return nil, errors.Errorf("preset %d has no name", i)
		}
	}
	return presets, nil
}

// LoadFile merges the presets from a YAML file on top of p.
func (p *Presets) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "could not read presets file %s", path)
	}
	presets, err := ParsePresets(b)
	if err != nil {
		return errors.Wrapf(err, "invalid presets file %s", path)
	}
	for _, preset := range presets {
		p.Add(preset)
	}
	log.Debug().Str("path", path).Int("count", len(presets)).Msg("prompt: loaded presets")
	return nil
}

var builtinPresets = sync.OnceValue(func() *Presets {
	presets, err := ParsePresets(builtinPresetsYAML)
	if err != nil {
		panic(err)
	}
	return NewPresets(presets...)
})

// BuiltinPresets returns a fresh copy of the embedded presets, safe to extend.
func BuiltinPresets() *Presets {
	return NewPresets(builtinPresets().List()...)
}

// LookupPreset finds one of the embedded presets.
func LookupPreset(name string) (Preset, bool) {
	return builtinPresets().Lookup(name)
}
