package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFake_AfterFuncFiresOnAdvance(t *testing.T) {
	c := Fake(epoch)
	fired := 0
	c.AfterFunc(100*time.Millisecond, func() { fired++ })

	c.Advance(99 * time.Millisecond)
	if fired != 0 {
		t.Fatalf("fired early")
	}
	c.Advance(time.Millisecond)
	if fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}
	c.Advance(time.Second)
	if fired != 1 {
		t.Errorf("one-shot fired again")
	}
}

func TestFake_StopPreventsFire(t *testing.T) {
	c := Fake(epoch)
	fired := false
	tm := c.AfterFunc(time.Second, func() { fired = true })
	if !tm.Stop() {
		t.Fatal("Stop on active timer should return true")
	}
	c.Advance(2 * time.Second)
	if fired {
		t.Error("stopped timer fired")
	}
	if tm.Stop() {
		t.Error("second Stop should return false")
	}
}

func TestFake_ResetMovesDeadline(t *testing.T) {
	c := Fake(epoch)
	fired := 0
	tm := c.AfterFunc(100*time.Millisecond, func() { fired++ })

	c.Advance(80 * time.Millisecond)
	tm.Reset(100 * time.Millisecond)
	c.Advance(80 * time.Millisecond)
	if fired != 0 {
		t.Fatal("reset timer fired at old deadline")
	}
	c.Advance(20 * time.Millisecond)
	if fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}

	// Reset after firing re-arms the timer.
	if tm.Reset(10 * time.Millisecond) {
		t.Error("Reset of fired timer should report inactive")
	}
	c.Advance(10 * time.Millisecond)
	if fired != 2 {
		t.Errorf("fired = %d, want 2", fired)
	}
}

func TestFake_ZeroDelayWaitsForAdvance(t *testing.T) {
	c := Fake(epoch)
	fired := false
	c.AfterFunc(0, func() { fired = true })
	if fired {
		t.Fatal("zero-delay callback ran inside AfterFunc")
	}
	if c.Pending() != 1 {
		t.Fatalf("pending = %d, want 1", c.Pending())
	}
	c.Advance(0)
	if !fired {
		t.Error("zero-delay callback did not run on Advance(0)")
	}
}

func TestFake_DeadlineOrder(t *testing.T) {
	c := Fake(epoch)
	var order []int
	c.AfterFunc(30*time.Millisecond, func() { order = append(order, 3) })
	c.AfterFunc(10*time.Millisecond, func() { order = append(order, 1) })
	c.AfterFunc(20*time.Millisecond, func() { order = append(order, 2) })
	c.Advance(time.Second)
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("order = %v, want [1 2 3]", order)
	}
}

func TestSince(t *testing.T) {
	c := Fake(epoch)
	start := c.Now()
	c.Advance(1500 * time.Millisecond)
	if got := Since(c, start); got != 1500*time.Millisecond {
		t.Errorf("Since = %v", got)
	}
}
