package render

import "time"

// Clock is the time source of the timing loop.
type Clock interface {
	Now() time.Duration
	Sleep(d time.Duration)
}

// SystemClock measures monotonic time since it was created.
type SystemClock struct{ start time.Time }

func NewSystemClock() *SystemClock { return &SystemClock{start: time.Now()} }

func (c *SystemClock) Now() time.Duration { return time.Since(c.start) }

func (c *SystemClock) Sleep(d time.Duration) { time.Sleep(d) }
