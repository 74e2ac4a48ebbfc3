package calib

import (
	"errors"
	"testing"

	"github.com/banshee-data/pixelreco/internal/pixel"
)

func TestDefaultPlaceholder(t *testing.T) {
	p := DefaultPlaceholder()
	noise, bad, err := p.Conditions(1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(noise) != DefaultNoiseChannels {
		t.Errorf("len(noise) = %d, want %d", len(noise), DefaultNoiseChannels)
	}
	if noise.At(0) != DefaultNoiseValue || noise.At(767) != DefaultNoiseValue {
		t.Errorf("noise values = %v/%v", noise.At(0), noise.At(767))
	}
	if len(bad) != 0 {
		t.Errorf("bad channels = %v, want none", bad)
	}

	// Shared across calls.
	noise2, _, _ := p.Conditions(2, nil)
	if &noise[0] != &noise2[0] {
		t.Error("placeholder should hand out the same vector")
	}
}

func TestNewPlaceholder_DefaultsChannels(t *testing.T) {
	noise, _, _ := NewPlaceholder(0, 3).Conditions(1, nil)
	if len(noise) != DefaultNoiseChannels || noise.At(5) != 3 {
		t.Errorf("noise = len %d value %v", len(noise), noise.At(5))
	}
}

func TestTable_Overrides(t *testing.T) {
	tbl := NewTable(nil)
	tbl.SetNoise(5, pixel.Noise{7})
	tbl.SetBadChannels(9, 4, 2)

	noise, bad, err := tbl.Conditions(5, nil)
	if err != nil {
		t.Fatal(err)
	}
	if noise.At(0) != 7 || len(bad) != 0 {
		t.Errorf("unit 5: noise=%v bad=%v", noise, bad)
	}

	noise, bad, _ = tbl.Conditions(9, nil)
	if noise.At(0) != DefaultNoiseValue {
		t.Errorf("unit 9 noise = %v, want placeholder", noise.At(0))
	}
	if !bad.Contains(2) || !bad.Contains(4) || bad.Contains(3) {
		t.Errorf("unit 9 bad = %v", bad)
	}

	noise, bad, _ = tbl.Conditions(11, nil)
	if noise.At(0) != DefaultNoiseValue || bad != nil {
		t.Errorf("unit 11: noise=%v bad=%v", noise.At(0), bad)
	}
}

type failingSource struct{}

func (failingSource) Conditions(pixel.DetUnitID, *pixel.Geometry) (pixel.Noise, pixel.BadChannels, error) {
	return nil, nil, errors.New("conditions unavailable")
}

func TestTable_FallbackError(t *testing.T) {
	tbl := NewTable(failingSource{})
	if _, _, err := tbl.Conditions(1, nil); err == nil {
		t.Error("expected fallback error")
	}

	tbl.SetNoise(1, pixel.Noise{1})
	tbl.SetBadChannels(1)
	if _, _, err := tbl.Conditions(1, nil); err != nil {
		t.Errorf("fully overridden unit should not consult fallback: %v", err)
	}
}
