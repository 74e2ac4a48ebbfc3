package pixel

import "sort"

// Noise holds per-channel noise in ADC counts, indexed by channel.
type Noise []float32

// At returns the noise for channel ch. Channels beyond the vector reuse
// the last entry so that a short placeholder vector still covers a large
// matrix; an empty vector yields zero noise.
func (n Noise) At(ch int) float32 {
	if len(n) == 0 || ch < 0 {
		return 0
	}
	if ch >= len(n) {
		return n[len(n)-1]
	}
	return n[ch]
}

// BadChannels is a sorted list of masked channel indices.
type BadChannels []int

// NewBadChannels returns a sorted, de-duplicated copy of chans.
func NewBadChannels(chans ...int) BadChannels {
	if len(chans) == 0 {
		return nil
	}
	out := make(BadChannels, len(chans))
	copy(out, chans)
	sort.Ints(out)
	j := 0
	for i := 1; i < len(out); i++ {
		if out[i] != out[j] {
			j++
			out[j] = out[i]
		}
	}
	return out[:j+1]
}

// Contains reports whether ch is masked.
func (b BadChannels) Contains(ch int) bool {
	i := sort.SearchInts(b, ch)
	return i < len(b) && b[i] == ch
}
