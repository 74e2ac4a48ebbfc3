package timeutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestRealClock(t *testing.T) {
	var c Clock = RealClock{}
	before := time.Now()
	now := c.Now()
	assert.False(t, now.Before(before))
	assert.GreaterOrEqual(t, c.Since(before), time.Duration(0))
}

func TestMockClockAdvanceAndSet(t *testing.T) {
	c := NewMockClock(epoch)
	assert.Equal(t, epoch, c.Now())

	c.Advance(250 * time.Millisecond)
	assert.Equal(t, 250*time.Millisecond, c.Since(epoch))

	later := epoch.Add(time.Hour)
	c.Set(later)
	assert.Equal(t, later, c.Now())
	assert.Equal(t, time.Hour, c.Since(epoch))
}

func TestMockClockConcurrentAdvance(t *testing.T) {
	c := NewMockClock(epoch)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Advance(time.Millisecond)
			_ = c.Now()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50*time.Millisecond, c.Since(epoch))
}
