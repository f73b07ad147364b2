package reparse

import (
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/t-wilkinson/zortex.nvim-sub001/internal/clock"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/document"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func counter() (*int, func()) {
	n := 0
	return &n, func() { n++ }
}

func TestDebounce_ResetsWindow(t *testing.T) {
	c := clock.Fake(epoch)
	runs, run := counter()
	s := New(Debounce, 100*time.Millisecond, run, WithClock(c))

	s.Schedule()
	c.Advance(80 * time.Millisecond)
	s.Schedule()
	c.Advance(80 * time.Millisecond)
	assert.Equal(t, 0, *runs, "window should restart on each edit")
	assert.True(t, s.Pending())

	c.Advance(20 * time.Millisecond)
	assert.Equal(t, 1, *runs)
	assert.False(t, s.Pending())
}

func TestImmediate_RunsOnNextTick(t *testing.T) {
	c := clock.Fake(epoch)
	runs, run := counter()
	s := New(Immediate, 0, run, WithClock(c))

	s.Schedule()
	s.Schedule()
	assert.Equal(t, 0, *runs, "never runs inside Schedule")
	c.Advance(0)
	assert.Equal(t, 1, *runs, "edits before the tick share one run")

	s.Schedule()
	c.Advance(0)
	assert.Equal(t, 2, *runs)
}

func TestDeferred_WaitsForForce(t *testing.T) {
	c := clock.Fake(epoch)
	runs, run := counter()
	s := New(Deferred, 0, run, WithClock(c))

	s.Schedule()
	c.Advance(time.Hour)
	assert.Equal(t, 0, *runs)
	assert.True(t, s.Pending())

	s.Force()
	assert.Equal(t, 1, *runs)
	assert.False(t, s.Pending())
}

func TestCancel_DropsPendingWork(t *testing.T) {
	c := clock.Fake(epoch)
	runs, run := counter()
	s := New(Debounce, 50*time.Millisecond, run, WithClock(c))

	s.Schedule()
	assert.True(t, s.Cancel())
	assert.False(t, s.Cancel(), "nothing left to cancel")
	c.Advance(time.Second)
	assert.Equal(t, 0, *runs)
}

func TestForce_PreemptsTimer(t *testing.T) {
	c := clock.Fake(epoch)
	runs, run := counter()
	s := New(Debounce, 50*time.Millisecond, run, WithClock(c))

	s.Schedule()
	s.Force()
	assert.Equal(t, 1, *runs)
	c.Advance(time.Second)
	assert.Equal(t, 1, *runs, "forced run replaces the timer run")
}

func TestStop(t *testing.T) {
	c := clock.Fake(epoch)
	runs, run := counter()
	s := New(Debounce, 50*time.Millisecond, run, WithClock(c))

	s.Schedule()
	s.Stop()
	s.Schedule()
	s.Force()
	c.Advance(time.Second)
	assert.Equal(t, 0, *runs)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("deferred")
	require.NoError(t, err)
	assert.Equal(t, Deferred, p)

	p, err = ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, Debounce, p)

	_, err = ParsePolicy("eventually")
	assert.Error(t, err)
}

// Fifteen scattered edits inside one debounce window produce a single
// parse over merged ranges.
func TestDebounce_CoalescesBurst(t *testing.T) {
	lines := make([]string, 500)
	for i := range lines {
		if i%25 == 0 {
			lines[i] = fmt.Sprintf("# Section %d", i/25)
		} else {
			lines[i] = fmt.Sprintf("line %d text", i+1)
		}
	}
	d := document.New(lines, document.WithLogger(slog.New(slog.DiscardHandler)))
	d.Parse()

	c := clock.Fake(epoch)
	parses := 0
	var last document.ParseResult
	s := New(Debounce, 300*time.Millisecond, func() {
		parses++
		last = d.Parse()
	}, WithClock(c))

	for k := 1; k <= 15; k++ {
		line := 30*k + 3
		require.NoError(t, d.UpdateLine(line, lines[line-1]+"x"))
		s.Schedule()
		c.Advance(10 * time.Millisecond)
	}
	assert.Equal(t, 0, parses)
	assert.Len(t, d.Dirty(), 15)

	c.Advance(300 * time.Millisecond)
	require.Equal(t, 1, parses)
	assert.False(t, last.Full, "reason %q", last.Reason)
	assert.LessOrEqual(t, last.Ranges, 15)
	assert.Equal(t, int64(2), d.Version())
	assert.Empty(t, d.Dirty())
	assert.Equal(t, "section 1", d.SectionAtLine(33).ID)
}
