package pixel

import "testing"

func TestNoise_At(t *testing.T) {
	n := Noise{1, 2, 3}
	tests := []struct {
		ch   int
		want float32
	}{
		{0, 1}, {2, 3}, {3, 3}, {1000, 3}, {-1, 0},
	}
	for _, tt := range tests {
		if got := n.At(tt.ch); got != tt.want {
			t.Errorf("At(%d) = %v, want %v", tt.ch, got, tt.want)
		}
	}
	if got := Noise(nil).At(0); got != 0 {
		t.Errorf("empty noise At(0) = %v, want 0", got)
	}
}

func TestBadChannels(t *testing.T) {
	b := NewBadChannels(9, 3, 3, 1)
	if len(b) != 3 {
		t.Fatalf("len = %d, want 3 (dedup)", len(b))
	}
	for _, ch := range []int{1, 3, 9} {
		if !b.Contains(ch) {
			t.Errorf("Contains(%d) = false", ch)
		}
	}
	for _, ch := range []int{0, 2, 10} {
		if b.Contains(ch) {
			t.Errorf("Contains(%d) = true", ch)
		}
	}
	if NewBadChannels() != nil {
		t.Error("expected nil for no channels")
	}
	if BadChannels(nil).Contains(0) {
		t.Error("nil list must not contain anything")
	}
}

func TestCluster_Sizes(t *testing.T) {
	c := Cluster{
		Pixels: []Pixel{{Row: 2, Col: 5}, {Row: 3, Col: 5}, {Row: 3, Col: 6}},
		MinRow: 2, MaxRow: 3, MinCol: 5, MaxCol: 6,
	}
	if c.Size() != 3 || c.SizeX() != 2 || c.SizeY() != 2 {
		t.Errorf("sizes = %d/%d/%d, want 3/2/2", c.Size(), c.SizeX(), c.SizeY())
	}
}
