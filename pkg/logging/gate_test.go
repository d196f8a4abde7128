package logging

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGate_OpensOncePerWindow(t *testing.T) {
	current := time.Unix(1_700_000_000, 0)
	g := NewGate(time.Minute)
	g.now = func() time.Time { return current }

	assert.True(t, g.Allow(), "first call opens the gate")
	assert.False(t, g.Allow(), "second call inside the window stays closed")

	current = current.Add(59 * time.Second)
	assert.False(t, g.Allow())

	current = current.Add(time.Second)
	assert.True(t, g.Allow(), "gate reopens once the window elapsed")
	assert.False(t, g.Allow())
}

func TestGate_ConcurrentCallersGetSingleOpen(t *testing.T) {
	g := NewGate(time.Hour)

	var opened atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.Allow() {
				opened.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), opened.Load())
}

func TestNewGate_DefaultWindow(t *testing.T) {
	g := NewGate(0)
	assert.Equal(t, DefaultGateWindow, g.window)
}
