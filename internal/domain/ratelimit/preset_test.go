package ratelimit

import (
	"testing"
	"time"
)

func TestPresetCeilings(t *testing.T) {
	tests := []struct {
		preset Preset
		want   int
	}{
		{preset: PresetAPI, want: 100},
		{preset: PresetAuth, want: 5},
		{preset: PresetSearch, want: 20},
		{preset: PresetSubmit, want: 5},
		{preset: PresetUpload, want: 10},
	}

	for _, tt := range tests {
		t.Run(tt.preset.String(), func(t *testing.T) {
			r := tt.preset.Rule()
			if r.MaxRequests != tt.want {
				t.Fatalf("max=%d want=%d", r.MaxRequests, tt.want)
			}
			if r.Window != time.Minute {
				t.Fatalf("window=%v want=1m", r.Window)
			}
		})
	}
}

func TestOnlyAuthPresetBlocks(t *testing.T) {
	for _, p := range Presets {
		blocks := p.Rule().BlockDuration > 0
		if blocks != (p == PresetAuth) {
			t.Fatalf("preset %s block=%v", p, p.Rule().BlockDuration)
		}
	}
}

func TestParsePreset(t *testing.T) {
	p, err := ParsePreset("  Search ")
	if err != nil || p != PresetSearch {
		t.Fatalf("got=%v err=%v", p, err)
	}
	if _, err := ParsePreset("bogus"); err == nil {
		t.Fatalf("expected error for unknown preset")
	}

	var out Preset
	if err := out.UnmarshalText([]byte("upload")); err != nil || out != PresetUpload {
		t.Fatalf("unmarshal got=%v err=%v", out, err)
	}
	if s := Preset(42).String(); s != "preset(42)" {
		t.Fatalf("unexpected string for unknown preset: %s", s)
	}
	if r := Preset(42).Rule(); r.Enabled() {
		t.Fatalf("unknown preset must not limit, got %+v", r)
	}
}

func TestTableOverrides(t *testing.T) {
	table := DefaultTable()
	table[PresetSearch] = Rule{MaxRequests: 50, Window: 30 * time.Second}
	table[PresetUpload] = Rule{}

	if got := table.Rule(PresetSearch).MaxRequests; got != 50 {
		t.Fatalf("override ignored: %d", got)
	}
	if got := table.Rule(PresetUpload).MaxRequests; got != 10 {
		t.Fatalf("disabled override must fall back to built-in, got %d", got)
	}

	var empty Table
	if got := empty.Rule(PresetAPI).MaxRequests; got != 100 {
		t.Fatalf("nil table must resolve built-ins, got %d", got)
	}
}
