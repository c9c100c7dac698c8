package clock

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 12, 22, 10, 0, 0, 0, time.UTC)

func TestFake_AdvanceFiresInDeadlineOrder(t *testing.T) {
	c := Fake(epoch)
	var order []string

	c.AfterFunc(3*time.Second, func() { order = append(order, "3s") })
	c.AfterFunc(1*time.Second, func() { order = append(order, "1s") })
	c.AfterFunc(10*time.Second, func() { order = append(order, "10s") })

	c.Advance(5 * time.Second)

	assert.Equal(t, []string{"1s", "3s"}, order)
	assert.Equal(t, epoch.Add(5*time.Second), c.Now())
	assert.Equal(t, 1, c.PendingCount())
}

func TestFake_ChainedTimersSeeIntermediateTime(t *testing.T) {
	c := Fake(epoch)
	var seen []time.Duration

	var tick func()
	tick = func() {
		seen = append(seen, c.Now().Sub(epoch))
		if len(seen) < 4 {
			c.AfterFunc(time.Second, tick)
		}
	}
	c.AfterFunc(time.Second, tick)

	c.Advance(10 * time.Second)

	require.Len(t, seen, 4)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 4 * time.Second}, seen)
	assert.Equal(t, 0, c.PendingCount())
}

func TestFake_StopPreventsFiring(t *testing.T) {
	c := Fake(epoch)
	var fired atomic.Int32

	timer := c.AfterFunc(time.Second, func() { fired.Add(1) })
	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop(), "second stop is a no-op")

	c.Advance(time.Minute)
	assert.Equal(t, int32(0), fired.Load())
	assert.Equal(t, 0, c.PendingCount())
}

func TestFake_WaitForTimers(t *testing.T) {
	c := Fake(epoch)
	done := make(chan struct{})

	go func() {
		c.AfterFunc(time.Second, func() { close(done) })
	}()

	c.WaitForTimers(1)
	c.Advance(time.Second)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
}
