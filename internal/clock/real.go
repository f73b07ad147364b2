package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

type realClock struct {
	c clockwork.Clock
}

// Real returns the wall clock.
func Real() Clock { return realClock{c: clockwork.NewRealClock()} }

func (r realClock) Now() time.Time { return r.c.Now() }

func (r realClock) AfterFunc(d time.Duration, f func()) *Timer {
	t := r.c.AfterFunc(d, f)
	return &Timer{
		stopFunc:  t.Stop,
		resetFunc: t.Reset,
	}
}
