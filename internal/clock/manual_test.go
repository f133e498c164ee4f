package clock_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/PabloGalante/farum-sos/internal/clock"
)

var epoch = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

func TestManualAfterFuncFiresOnceWhenDue(t *testing.T) {
	c := clock.NewManual(epoch)
	fired := 0
	c.AfterFunc(2*time.Second, func() { fired++ })

	c.Advance(1999 * time.Millisecond)
	assert.Equal(t, 0, fired)

	c.Advance(time.Millisecond)
	assert.Equal(t, 1, fired)

	c.Advance(time.Hour)
	assert.Equal(t, 1, fired)
	assert.Equal(t, 0, c.Pending())
}

func TestManualTickFuncRepeatsUntilStopped(t *testing.T) {
	c := clock.NewManual(epoch)
	ticks := 0
	timer := c.TickFunc(time.Second, func() { ticks++ })

	c.Advance(5 * time.Second)
	assert.Equal(t, 5, ticks)

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())

	c.Advance(5 * time.Second)
	assert.Equal(t, 5, ticks)
}

func TestManualCallbacksSeeTheirDueTime(t *testing.T) {
	c := clock.NewManual(epoch)
	var seen []time.Duration
	c.AfterFunc(3*time.Second, func() { seen = append(seen, c.Now().Sub(epoch)) })
	c.AfterFunc(1*time.Second, func() { seen = append(seen, c.Now().Sub(epoch)) })

	c.Advance(10 * time.Second)
	assert.Equal(t, []time.Duration{time.Second, 3 * time.Second}, seen)
	assert.Equal(t, epoch.Add(10*time.Second), c.Now())
}

func TestManualCallbackMaySchedule(t *testing.T) {
	c := clock.NewManual(epoch)
	var at []time.Duration
	c.AfterFunc(2*time.Second, func() {
		c.TickFunc(5*time.Second, func() { at = append(at, c.Now().Sub(epoch)) })
	})

	c.Advance(13 * time.Second)
	assert.Equal(t, []time.Duration{7 * time.Second, 12 * time.Second}, at)
}

func TestManualStopFromCallback(t *testing.T) {
	c := clock.NewManual(epoch)
	ticks := 0
	var timer clock.Timer
	timer = c.TickFunc(time.Second, func() {
		ticks++
		if ticks == 3 {
			timer.Stop()
		}
	})

	c.Advance(10 * time.Second)
	assert.Equal(t, 3, ticks)
}

func TestRealClockTickFuncStops(t *testing.T) {
	c := clock.New()
	ch := make(chan struct{}, 16)
	timer := c.TickFunc(5*time.Millisecond, func() { ch <- struct{}{} })

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("ticker never fired")
	}
	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())
}
