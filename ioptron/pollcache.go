package ioptron

import "time"

// Clock is the time source for the poll gates. Tests substitute a fake.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

// Now includes the monotonic reading, so elapsed times are immune to wall
// clock steps.
func (realClock) Now() time.Time { return time.Now() }

const (
	// coordinateInterval bounds how often :GEP# is sent.
	coordinateInterval = 100 * time.Millisecond
	// slewPollInterval bounds how often slew completion re-reads :GLS#.
	slewPollInterval = 2 * time.Second
)

// gate reports whether enough time has elapsed since the last stamp to
// query the mount again.
type gate struct {
	interval time.Duration
	last     time.Time
	stamped  bool
}

func (g *gate) fresh(now time.Time) bool {
	return g.stamped && now.Sub(g.last) < g.interval
}

func (g *gate) stamp(now time.Time) {
	g.last = now
	g.stamped = true
}

func (g *gate) reset() {
	g.stamped = false
}
