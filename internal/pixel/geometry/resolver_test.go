package geometry

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/banshee-data/pixelreco/internal/pixel"
)

func unit(id pixel.DetUnitID) *pixel.Geometry {
	return &pixel.Geometry{
		DetUnitID: id,
		Rows:      80,
		Cols:      52,
		PitchX:    0.01,
		PitchY:    0.015,
		Thickness: 0.0285,
		T:         pixel.TranslationTransform(float64(id), 0, 0),
	}
}

func TestMapResolver_Resolve(t *testing.T) {
	m, err := NewMapResolver(unit(5), unit(9))
	if err != nil {
		t.Fatalf("NewMapResolver: %v", err)
	}

	g, err := m.Resolve(5)
	if err != nil {
		t.Fatalf("Resolve(5): %v", err)
	}
	if g.DetUnitID != 5 || g.Rows != 80 {
		t.Errorf("Resolve(5) = %+v", g)
	}

	_, err = m.Resolve(42)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Resolve(42) error = %v, want ErrNotFound", err)
	}
	if !strings.Contains(err.Error(), "42") {
		t.Errorf("error %q should name the unit", err)
	}
}

func TestMapResolver_AddStoresCopy(t *testing.T) {
	m, _ := NewMapResolver()
	g := unit(3)
	if err := m.Add(g); err != nil {
		t.Fatal(err)
	}
	g.Rows = 1

	got, _ := m.Resolve(3)
	if got.Rows != 80 {
		t.Errorf("stored geometry mutated through caller pointer: rows=%d", got.Rows)
	}
}

func TestMapResolver_RejectsInvalid(t *testing.T) {
	bad := unit(1)
	bad.PitchX = 0
	if _, err := NewMapResolver(unit(2), bad); err == nil {
		t.Error("expected validation error")
	}
}

func TestMapResolver_IDsSorted(t *testing.T) {
	m, _ := NewMapResolver(unit(30), unit(4), unit(17))
	ids := m.IDs()
	want := []pixel.DetUnitID{4, 17, 30}
	if len(ids) != len(want) {
		t.Fatalf("IDs() = %v", ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("IDs()[%d] = %d, want %d", i, ids[i], want[i])
		}
	}
	if m.Len() != 3 {
		t.Errorf("Len() = %d", m.Len())
	}
}

func TestJSONRoundTrip(t *testing.T) {
	m, _ := NewMapResolver(unit(5), unit(9))

	var buf bytes.Buffer
	if err := m.WriteJSON(&buf); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	loaded, err := LoadJSON(&buf)
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	g, err := loaded.Resolve(9)
	if err != nil {
		t.Fatal(err)
	}
	if *g != *unit(9) {
		t.Errorf("round trip mismatch: %+v", g)
	}
}

func TestLoadJSON_Errors(t *testing.T) {
	if _, err := LoadJSON(strings.NewReader("{not json")); err == nil {
		t.Error("expected parse error")
	}
	if _, err := LoadJSON(strings.NewReader(`[{"det":1,"rows":0,"cols":1,"pitch_x":1,"pitch_y":1}]`)); err == nil {
		t.Error("expected validation error")
	}
}

func TestResolverFunc(t *testing.T) {
	calls := 0
	var r Resolver = ResolverFunc(func(id pixel.DetUnitID) (*pixel.Geometry, error) {
		calls++
		return unit(id), nil
	})
	g, err := r.Resolve(8)
	if err != nil || g.DetUnitID != 8 || calls != 1 {
		t.Errorf("ResolverFunc: g=%v err=%v calls=%d", g, err, calls)
	}
}
