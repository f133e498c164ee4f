package waittime_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/PabloGalante/farum-sos/internal/app/waittime"
	"github.com/PabloGalante/farum-sos/internal/clock"
)

func newCounter() (*waittime.Counter, *clock.Manual) {
	clk := clock.NewManual(time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC))
	return waittime.New(clk, time.Second), clk
}

func TestCounterTicksOncePerSecond(t *testing.T) {
	c, clk := newCounter()
	waited := 0
	c.Start(func() { waited++ })

	clk.Advance(10 * time.Second)
	assert.Equal(t, 10, waited)
	assert.True(t, c.Running())
}

func TestCounterStartTwiceKeepsOneTicker(t *testing.T) {
	c, clk := newCounter()
	waited := 0
	inc := func() { waited++ }

	c.Start(inc)
	c.Start(inc)

	clk.Advance(7 * time.Second)
	assert.Equal(t, 7, waited, "a second Start must replace, not add, a ticker")
	assert.Equal(t, 1, clk.Pending())
}

func TestCounterStop(t *testing.T) {
	c, clk := newCounter()
	waited := 0
	c.Start(func() { waited++ })

	clk.Advance(3 * time.Second)
	assert.True(t, c.Stop())
	assert.False(t, c.Stop(), "stopping an idle counter is a no-op")
	assert.False(t, c.Running())

	clk.Advance(5 * time.Second)
	assert.Equal(t, 3, waited)
	assert.Zero(t, clk.Pending())
}

func TestCounterStopFromTick(t *testing.T) {
	c, clk := newCounter()
	waited := 0
	c.Start(func() {
		waited++
		if waited == 2 {
			c.Stop()
		}
	})

	clk.Advance(5 * time.Second)
	assert.Equal(t, 2, waited)
}

func TestCounterRestartUsesNewTick(t *testing.T) {
	c, clk := newCounter()
	first, second := 0, 0
	c.Start(func() { first++ })
	clk.Advance(2 * time.Second)

	c.Start(func() { second++ })
	clk.Advance(3 * time.Second)

	assert.Equal(t, 2, first)
	assert.Equal(t, 3, second)
}
