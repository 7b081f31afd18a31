package observer

import (
	"testing"
	"time"
)

func TestGate_SingleSlot(t *testing.T) {
	g := newGate(20 * time.Millisecond)
	if g.C() != nil {
		t.Fatal("idle gate must have nil channel")
	}
	if !g.schedule() {
		t.Fatal("first schedule: got false")
	}
	if g.schedule() {
		t.Fatal("second schedule while pending: got true")
	}
	if !g.pending() {
		t.Fatal("pending: got false")
	}

	select {
	case <-g.C():
	case <-time.After(time.Second):
		t.Fatal("gate did not fire")
	}
	g.fired()
	if g.pending() {
		t.Fatal("pending after fired")
	}
	if !g.schedule() {
		t.Fatal("schedule after fired: got false")
	}
	g.stop()
	if g.pending() {
		t.Fatal("pending after stop")
	}
}

func TestGate_DefaultDelay(t *testing.T) {
	if g := newGate(0); g.delay != 100*time.Millisecond {
		t.Errorf("delay: got %v", g.delay)
	}
}
