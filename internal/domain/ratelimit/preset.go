package ratelimit

import (
	"fmt"
	"strings"
	"time"
)

// Preset names one of the built-in rules.
type Preset int

const (
	PresetAPI Preset = iota + 1
	PresetAuth
	PresetSearch
	PresetSubmit
	PresetUpload
)

// Presets lists every preset in declaration order.
var Presets = []Preset{PresetAPI, PresetAuth, PresetSearch, PresetSubmit, PresetUpload}

// Rule returns the built-in rule for the preset. The ceilings are contractual.
func (p Preset) Rule() Rule {
	switch p {
	case PresetAPI:
		return Rule{MaxRequests: 100, Window: time.Minute}
	case PresetAuth:
		return Rule{MaxRequests: 5, Window: time.Minute, BlockDuration: 5 * time.Minute}
	case PresetSearch:
		return Rule{MaxRequests: 20, Window: time.Minute}
	case PresetSubmit:
		return Rule{MaxRequests: 5, Window: time.Minute}
	case PresetUpload:
		return Rule{MaxRequests: 10, Window: time.Minute}
	default:
		return Rule{}
	}
}

func (p Preset) String() string {
	switch p {
	case PresetAPI:
		return "api"
	case PresetAuth:
		return "auth"
	case PresetSearch:
		return "search"
	case PresetSubmit:
		return "submit"
	case PresetUpload:
		return "upload"
	default:
		return fmt.Sprintf("preset(%d)", int(p))
	}
}

func ParsePreset(s string) (Preset, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, p := range Presets {
		if p.String() == name {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown rate limit preset %q", s)
}

func (p Preset) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Preset) UnmarshalText(text []byte) error {
	parsed, err := ParsePreset(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Table resolves presets to rules, allowing deployment-specific overrides on
// top of the built-in values.
type Table map[Preset]Rule

// DefaultTable returns a table holding every built-in rule.
func DefaultTable() Table {
	t := make(Table, len(Presets))
	for _, p := range Presets {
		t[p] = p.Rule()
	}
	return t
}

// Rule returns the override for p when present, the built-in rule otherwise.
func (t Table) Rule(p Preset) Rule {
	if r, ok := t[p]; ok && r.Enabled() {
		return r
	}
	return p.Rule()
}
