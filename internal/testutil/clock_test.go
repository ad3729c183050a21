package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var start = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestManualClock_StartsAtStart(t *testing.T) {
	clock := NewManualClock(start)
	assert.Equal(t, start, clock.Now())
}

func TestManualClock_Advance(t *testing.T) {
	clock := NewManualClock(start)

	assert.Equal(t, start.Add(10*time.Second), clock.Advance(10*time.Second))
	assert.Equal(t, start.Add(10*time.Second), clock.Now())

	// Never runs backwards
	clock.Advance(-time.Hour)
	assert.Equal(t, start.Add(10*time.Second), clock.Now())
}

func TestManualClock_Set(t *testing.T) {
	clock := NewManualClock(start)
	later := start.Add(time.Hour)
	clock.Set(later)
	assert.Equal(t, later, clock.Now())
}

func TestManualClock_ThreadSafe(t *testing.T) {
	clock := NewManualClock(start)
	const numGoroutines = 50

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			clock.Advance(time.Second)
			_ = clock.Now()
		}()
	}
	wg.Wait()

	assert.Equal(t, start.Add(numGoroutines*time.Second), clock.Now())
}
