package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFakeClock(t *testing.T) {
	c := NewFakeClock(1000)
	assert.Equal(t, int64(1000), c.Now())

	assert.Equal(t, int64(1250), c.Advance(250))
	assert.Equal(t, int64(1250), c.Now())

	c.Set(10)
	assert.Equal(t, int64(10), c.Now())
}

func TestFakeClock_ConcurrentAdvance(t *testing.T) {
	c := NewFakeClock(0)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Advance(1)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(100), c.Now())
}

func TestFixedIDGenerator(t *testing.T) {
	g := NewFixedIDGenerator("rec-1")
	assert.Equal(t, "rec-1", g.Generate())
	assert.Equal(t, "rec-1", g.Generate())

	assert.Equal(t, "test-recording-default", NewFixedIDGenerator("").Generate())
}
