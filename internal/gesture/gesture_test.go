package gesture

import (
	"testing"
	"time"
)

const testWidth = 1000.0 // delete threshold = 400

type intentCounter struct {
	press, edit, del int
}

func (ic *intentCounter) callbacks() Callbacks {
	return Callbacks{
		OnPress:  func() { ic.press++ },
		OnEdit:   func() { ic.edit++ },
		OnDelete: func() { ic.del++ },
	}
}

// recordingAnimator captures the animation sequence, completing each
// animation immediately.
type recordingAnimator struct {
	seq []Animation
}

func (ra *recordingAnimator) Animate(a Animation, done func()) {
	ra.seq = append(ra.seq, a)
	done()
}

func newTestController(ic *intentCounter) (*Controller, *recordingAnimator) {
	ra := &recordingAnimator{}
	return NewController(DefaultConfig(testWidth), ic.callbacks(), ra), ra
}

var t0 = time.Unix(1000, 0)

func at(ms int) time.Time { return t0.Add(time.Duration(ms) * time.Millisecond) }

func TestTapFiresExactlyOnePressIntent(t *testing.T) {
	ic := &intentCounter{}
	c, _ := newTestController(ic)

	c.PointerDown(100, 100, at(0))
	c.PointerUp(100, 100, at(100))

	if ic.press != 1 {
		t.Errorf("press intents = %d, want 1", ic.press)
	}
	if ic.edit != 0 || ic.del != 0 {
		t.Errorf("edit=%d delete=%d, want 0/0", ic.edit, ic.del)
	}
	if c.State() != StateIdle {
		t.Errorf("state = %v, want StateIdle", c.State())
	}
}

func TestSlowPressIsNotATap(t *testing.T) {
	ic := &intentCounter{}
	c, _ := newTestController(ic)

	c.PointerDown(100, 100, at(0))
	c.PointerUp(100, 100, at(400)) // past the 250ms ceiling

	if ic.press != 0 {
		t.Errorf("press intents = %d, want 0", ic.press)
	}
}

func TestDeleteCommitAtExactThreshold(t *testing.T) {
	tests := []struct {
		name       string
		dx         float64
		wantDelete bool
	}{
		{"exactly -0.4W commits", -400, true},
		{"-0.39W does not", -390, false},
		{"well past threshold commits", -600, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ic := &intentCounter{}
			c, _ := newTestController(ic)

			c.PointerDown(500, 100, at(0))
			if !c.PointerMove(490, 100, at(20)) {
				t.Fatal("horizontal move should not yield to scroll")
			}
			// Slow drag so release velocity stays under the flick threshold.
			c.PointerMove(500+tt.dx, 100, at(600))
			c.PointerUp(500+tt.dx, 100, at(1200))

			wantDel := 0
			if tt.wantDelete {
				wantDel = 1
			}
			if ic.del != wantDel {
				t.Errorf("delete intents = %d, want %d", ic.del, wantDel)
			}
			if ic.press != 0 || ic.edit != 0 {
				t.Errorf("press=%d edit=%d, want 0/0", ic.press, ic.edit)
			}
		})
	}
}

func TestFlickOverridesDisplacement(t *testing.T) {
	ic := &intentCounter{}
	c, _ := newTestController(ic)

	c.PointerDown(500, 100, at(0))
	c.PointerMove(490, 100, at(10))
	c.PointerMove(450, 100, at(50))
	// Final 50px in 50ms = -1000 px/s, past the 800 px/s flick threshold,
	// with only -0.1W total displacement.
	c.PointerUp(400, 100, at(100))

	if ic.del != 1 {
		t.Errorf("delete intents = %d, want 1", ic.del)
	}
}

func TestSlowShortDragAborts(t *testing.T) {
	ic := &intentCounter{}
	c, ra := newTestController(ic)

	c.PointerDown(500, 100, at(0))
	c.PointerMove(490, 100, at(20))
	c.PointerMove(440, 100, at(500)) // -60, under both thresholds
	c.PointerUp(440, 100, at(1000))

	if ic.press+ic.edit+ic.del != 0 {
		t.Errorf("intents fired on aborted swipe: press=%d edit=%d delete=%d", ic.press, ic.edit, ic.del)
	}
	if c.State() != StateIdle {
		t.Errorf("state = %v, want StateIdle", c.State())
	}
	if len(ra.seq) != 1 || ra.seq[0] != AnimSpringHome {
		t.Errorf("animations = %v, want [AnimSpringHome]", ra.seq)
	}
}

func TestRightSwipeCommitsEdit(t *testing.T) {
	ic := &intentCounter{}
	c, ra := newTestController(ic)

	c.PointerDown(100, 100, at(0))
	c.PointerMove(110, 100, at(20))
	c.PointerMove(220, 100, at(400)) // +120, past the 80px reveal threshold
	c.PointerUp(220, 100, at(800))

	if ic.edit != 1 {
		t.Errorf("edit intents = %d, want 1", ic.edit)
	}
	if ic.del != 0 || ic.press != 0 {
		t.Errorf("press=%d delete=%d, want 0/0", ic.press, ic.del)
	}
	if len(ra.seq) != 1 || ra.seq[0] != AnimSpringHome {
		t.Errorf("animations = %v, want [AnimSpringHome]", ra.seq)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	ic := &intentCounter{}
	c, _ := newTestController(ic)

	c.PointerDown(500, 100, at(0))
	c.PointerMove(490, 100, at(20))
	c.PointerMove(50, 100, at(600))
	c.PointerUp(50, 100, at(1200))

	if ic.del != 1 {
		t.Fatalf("delete intents = %d, want 1", ic.del)
	}
	if c.State() != StateCommittedDelete {
		t.Fatalf("state = %v, want StateCommittedDelete", c.State())
	}

	// Any further pointer input on the row must be ignored.
	c.PointerDown(500, 100, at(2000))
	c.PointerMove(100, 100, at(2100))
	c.PointerUp(100, 100, at(2200))
	c.PointerDown(500, 100, at(3000))
	c.PointerUp(500, 100, at(3050))

	if ic.del != 1 {
		t.Errorf("delete intents after replay = %d, want 1", ic.del)
	}
	if ic.press != 0 || ic.edit != 0 {
		t.Errorf("press=%d edit=%d after delete, want 0/0", ic.press, ic.edit)
	}
}

func TestDeleteAnimationSequence(t *testing.T) {
	ic := &intentCounter{}
	c, ra := newTestController(ic)

	c.PointerDown(500, 100, at(0))
	c.PointerMove(490, 100, at(20))
	c.PointerMove(50, 100, at(600))
	c.PointerUp(50, 100, at(1200))

	want := []Animation{AnimSnapToDelete, AnimSlideOff, AnimCollapse}
	if len(ra.seq) != len(want) {
		t.Fatalf("animations = %v, want %v", ra.seq, want)
	}
	for i := range want {
		if ra.seq[i] != want[i] {
			t.Fatalf("animations = %v, want %v", ra.seq, want)
		}
	}
}

func TestDeleteIntentWaitsForAnimation(t *testing.T) {
	// A deferred animator: the delete intent must not fire until the exit
	// sequence completes.
	var pending []func()
	animator := animatorFunc(func(a Animation, done func()) {
		pending = append(pending, done)
	})

	ic := &intentCounter{}
	c := NewController(DefaultConfig(testWidth), ic.callbacks(), animator)

	c.PointerDown(500, 100, at(0))
	c.PointerMove(490, 100, at(20))
	c.PointerMove(50, 100, at(600))
	c.PointerUp(50, 100, at(1200))

	for ic.del == 0 {
		if len(pending) == 0 {
			t.Fatal("animation chain stalled without firing delete")
		}
		if ic.del != 0 {
			break
		}
		done := pending[0]
		pending = pending[1:]
		done()
	}
	if ic.del != 1 {
		t.Errorf("delete intents = %d, want 1", ic.del)
	}
}

type animatorFunc func(Animation, func())

func (f animatorFunc) Animate(a Animation, done func()) { f(a, done) }

func TestVerticalMovementYieldsToScroll(t *testing.T) {
	ic := &intentCounter{}
	c, _ := newTestController(ic)

	c.PointerDown(100, 100, at(0))
	if c.PointerMove(102, 160, at(20)) {
		t.Error("vertical move should yield to the enclosing scroll view")
	}
	if c.State() != StateIdle {
		t.Errorf("state = %v, want StateIdle", c.State())
	}

	c.PointerUp(102, 160, at(40))
	if ic.press+ic.edit+ic.del != 0 {
		t.Errorf("intents fired after yielding: press=%d edit=%d delete=%d", ic.press, ic.edit, ic.del)
	}
}

func TestHoldPromotesToPanning(t *testing.T) {
	ic := &intentCounter{}
	c, _ := newTestController(ic)

	c.PointerDown(100, 100, at(0))
	c.PointerMove(101, 101, at(200)) // tiny movement, but past the 150ms hold

	if c.State() != StatePanning {
		t.Errorf("state = %v, want StatePanning", c.State())
	}
}

func TestOffsetAppliesResistance(t *testing.T) {
	ic := &intentCounter{}
	c, _ := newTestController(ic)

	c.PointerDown(500, 100, at(0))
	c.PointerMove(490, 100, at(20))
	c.PointerMove(400, 100, at(100)) // raw dx = -100

	if got, want := c.Offset(), -70.0; got != want {
		t.Errorf("offset = %v, want %v (0.7 resistance)", got, want)
	}
}

func TestAmbiguousSmallMoveStaysDeciding(t *testing.T) {
	ic := &intentCounter{}
	c, _ := newTestController(ic)

	c.PointerDown(100, 100, at(0))
	if !c.PointerMove(102, 101, at(20)) {
		t.Fatal("small ambiguous move should not yield yet")
	}
	if c.State() != StateDeciding {
		t.Errorf("state = %v, want StateDeciding", c.State())
	}
}
