package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracker_RecordAccess(t *testing.T) {
	tr := NewTracker()

	assert.Equal(t, 1, tr.RecordAccess("a"))
	assert.Equal(t, 2, tr.RecordAccess("a"))
	assert.Equal(t, 1, tr.RecordAccess("b"))

	assert.Equal(t, 2, tr.Count("a"))
	assert.Equal(t, 0, tr.Count("unknown"))
	assert.Equal(t, 2, tr.Len())
}

func TestTracker_ShouldPromote(t *testing.T) {
	tr := NewTracker()
	const threshold = 3

	for i := 1; i < threshold; i++ {
		tr.RecordAccess("a")
		assert.False(t, tr.ShouldPromote("a", threshold), "count %d below threshold", i)
	}

	tr.RecordAccess("a")
	assert.True(t, tr.ShouldPromote("a", threshold))

	// Stays true after crossing.
	tr.RecordAccess("a")
	assert.True(t, tr.ShouldPromote("a", threshold))
}

func TestTracker_ConcurrentNoLostUpdates(t *testing.T) {
	tr := NewTracker()
	const goroutines, perGoroutine = 16, 500

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				tr.RecordAccess("hot")
				tr.RecordAccess(Fingerprint("cold", LevelDetailed))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, goroutines*perGoroutine, tr.Count("hot"))
	assert.Equal(t, goroutines*perGoroutine, tr.Count(Fingerprint("cold", LevelDetailed)))
}
