package observer

import "time"

// gate is the single debounced-scan slot. While a scan is pending, further
// schedule calls are no-ops: the pending scan fires after the delay and sees
// every mutation that arrived in between.
type gate struct {
	delay time.Duration
	timer *time.Timer
	c     <-chan time.Time
}

func newGate(delay time.Duration) *gate {
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	return &gate{delay: delay}
}

// schedule arms the slot. It returns false when a scan is already pending.
func (g *gate) schedule() bool {
	if g.c != nil {
		return false
	}
	g.timer = time.NewTimer(g.delay)
	g.c = g.timer.C
	return true
}

// C fires when the pending scan is due. It is nil while idle, so a select on
// it blocks.
func (g *gate) C() <-chan time.Time {
	return g.c
}

// pending reports whether a scan is scheduled.
func (g *gate) pending() bool {
	return g.c != nil
}

// fired releases the slot after the timer channel delivered.
func (g *gate) fired() {
	g.timer = nil
	g.c = nil
}

// stop cancels a pending scan.
func (g *gate) stop() {
	if g.timer != nil {
		g.timer.Stop()
	}
	g.fired()
}
