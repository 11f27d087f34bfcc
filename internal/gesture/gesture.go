// Package gesture classifies a continuous pointer interaction over a list
// row into exactly one terminal outcome: tap, reveal-edit swipe, commit-delete
// swipe, or aborted swipe.
//
// The controller is a state machine driven by discrete pointer events.
// Animation is a side effect of state transitions, emitted through an
// Animator, never part of the state itself. The controller performs no I/O;
// it only fires intents. Recovery from a failed delete is the list
// reconciler's responsibility — by the time the delete intent fires, the row
// has already been torn down visually.
package gesture

import (
	"math"
	"time"
)

// State is the controller's position in the interaction state machine.
type State int

const (
	// StateIdle means no touch is in progress.
	StateIdle State = iota

	// StateDeciding means a touch has landed but its direction is not yet
	// determined; the enclosing scroll view may still claim it.
	StateDeciding

	// StatePanning means a horizontal drag is confirmed active.
	StatePanning

	// StateCommittedDelete is terminal: the delete exit animation owns the
	// row and all further pointer input is ignored.
	StateCommittedDelete
)

// Animation identifies a visual consequence of a state transition.
type Animation int

const (
	// AnimSpringHome springs the card offset back to zero.
	AnimSpringHome Animation = iota

	// AnimSnapToDelete snaps the offset to the delete threshold.
	AnimSnapToDelete

	// AnimSlideOff slides the card fully off-screen to the left.
	AnimSlideOff

	// AnimCollapse collapses the row's height and opacity to zero.
	AnimCollapse
)

// Animator runs an animation and invokes done when it completes. The
// controller chains the delete exit sequence through done callbacks, so the
// delete intent fires only after the row has visually collapsed.
type Animator interface {
	Animate(a Animation, done func())
}

// InstantAnimator completes every animation immediately. Used by tests and
// non-visual hosts.
type InstantAnimator struct{}

func (InstantAnimator) Animate(_ Animation, done func()) { done() }

// Config holds the interaction thresholds. Distances are in pixels,
// velocities in pixels per second.
type Config struct {
	// ViewportWidth scales the delete threshold so behavior is consistent
	// across device sizes.
	ViewportWidth float64

	// RevealThreshold is the minimum rightward displacement that commits the
	// edit intent on release.
	RevealThreshold float64

	// DeleteFraction of the viewport width is the leftward displacement that
	// commits delete on release.
	DeleteFraction float64

	// FlickVelocity is the leftward release speed that commits delete
	// regardless of displacement. Absolute, not width-relative.
	FlickVelocity float64

	// Resistance scales the rendered offset so the card lags the finger.
	// Release decisions compare raw displacement, not the scaled offset.
	Resistance float64

	// TapMaxDuration is the ceiling for a press to count as a tap.
	TapMaxDuration time.Duration

	// ActivationDistance is the movement below which the touch stays
	// undecided.
	ActivationDistance float64

	// ActivationDelay is the hold time after which an undecided touch is
	// treated as deliberate horizontal intent.
	ActivationDelay time.Duration
}

// DefaultConfig returns the standard thresholds for the given viewport width.
func DefaultConfig(viewportWidth float64) Config {
	return Config{
		ViewportWidth:      viewportWidth,
		RevealThreshold:    80,
		DeleteFraction:     0.4,
		FlickVelocity:      800,
		Resistance:         0.7,
		TapMaxDuration:     250 * time.Millisecond,
		ActivationDistance: 5,
		ActivationDelay:    150 * time.Millisecond,
	}
}

// DeleteThreshold is the leftward displacement that commits delete.
func (c Config) DeleteThreshold() float64 {
	return c.DeleteFraction * c.ViewportWidth
}

// Callbacks are the intents a card can emit. Nil callbacks are skipped.
type Callbacks struct {
	OnPress  func()
	OnEdit   func()
	OnDelete func()
}

// Controller interprets pointer events for a single card. It is not safe for
// concurrent use; the host delivers events from a single goroutine.
type Controller struct {
	cfg      Config
	animator Animator
	cb       Callbacks

	state      State
	originX    float64
	originY    float64
	originTime time.Time

	// last two move samples, for release velocity
	lastX    float64
	lastTime time.Time
	prevX    float64
	prevTime time.Time

	offset      float64
	deleting    bool
	deleteFired bool
}

// NewController creates a controller for one card. A nil animator gets
// InstantAnimator.
func NewController(cfg Config, cb Callbacks, animator Animator) *Controller {
	if animator == nil {
		animator = InstantAnimator{}
	}
	return &Controller{cfg: cfg, cb: cb, animator: animator}
}

// State returns the current machine state.
func (c *Controller) State() State { return c.state }

// Offset returns the resistance-scaled horizontal offset to render.
func (c *Controller) Offset() float64 { return c.offset }

// PointerDown records the touch origin. Ignored once delete is committed.
func (c *Controller) PointerDown(x, y float64, t time.Time) {
	if c.deleting {
		return
	}
	c.state = StateDeciding
	c.originX, c.originY = x, y
	c.originTime = t
	c.lastX, c.lastTime = x, t
	c.prevX, c.prevTime = x, t
}

// PointerMove advances the gesture. It returns false when the touch is
// dominated by vertical movement and the controller yields to the enclosing
// scroll view; the host must stop delivering events for this touch.
func (c *Controller) PointerMove(x, y float64, t time.Time) bool {
	if c.deleting {
		return false
	}

	switch c.state {
	case StateDeciding:
		dx := x - c.originX
		dy := y - c.originY
		held := t.Sub(c.originTime) >= c.cfg.ActivationDelay

		switch {
		case held:
			// Deliberate hold, assume horizontal intent.
			c.state = StatePanning
		case math.Abs(dx) >= c.cfg.ActivationDistance && math.Abs(dx) > math.Abs(dy):
			c.state = StatePanning
		case math.Abs(dy) >= c.cfg.ActivationDistance:
			// Vertical scroll wins.
			c.state = StateIdle
			return false
		default:
			// Too small to call yet.
			c.sample(x, t)
			return true
		}
		fallthrough

	case StatePanning:
		c.sample(x, t)
		c.offset = (x - c.originX) * c.cfg.Resistance
		return true

	default:
		return false
	}
}

// PointerUp resolves the gesture into its terminal outcome.
func (c *Controller) PointerUp(x, y float64, t time.Time) {
	if c.deleting {
		return
	}

	switch c.state {
	case StateDeciding:
		c.state = StateIdle
		if t.Sub(c.originTime) <= c.cfg.TapMaxDuration && c.offset == 0 {
			c.fire(c.cb.OnPress)
		}

	case StatePanning:
		dx := x - c.originX
		v := c.releaseVelocity(x, t)

		switch {
		case dx <= -c.cfg.DeleteThreshold() || v <= -c.cfg.FlickVelocity:
			c.commitDelete()
		case dx >= c.cfg.RevealThreshold:
			c.settle()
			c.fire(c.cb.OnEdit)
		default:
			// Indecisive swipe, including leftward drags short of the delete
			// threshold.
			c.settle()
		}
	}
}

// commitDelete latches the terminal delete state and runs the exit sequence:
// snap to the threshold, slide off-screen, collapse, then fire the intent
// exactly once.
func (c *Controller) commitDelete() {
	c.state = StateCommittedDelete
	c.deleting = true
	c.animator.Animate(AnimSnapToDelete, func() {
		c.animator.Animate(AnimSlideOff, func() {
			c.animator.Animate(AnimCollapse, func() {
				if c.deleteFired {
					return
				}
				c.deleteFired = true
				c.fire(c.cb.OnDelete)
			})
		})
	})
}

func (c *Controller) settle() {
	c.state = StateIdle
	c.offset = 0
	c.animator.Animate(AnimSpringHome, func() {})
}

func (c *Controller) sample(x float64, t time.Time) {
	c.prevX, c.prevTime = c.lastX, c.lastTime
	c.lastX, c.lastTime = x, t
}

// releaseVelocity estimates the pointer speed at release from the most
// recent samples, in px/s.
func (c *Controller) releaseVelocity(x float64, t time.Time) float64 {
	if dt := t.Sub(c.lastTime).Seconds(); dt > 0 {
		return (x - c.lastX) / dt
	}
	if dt := t.Sub(c.prevTime).Seconds(); dt > 0 {
		return (x - c.prevX) / dt
	}
	return 0
}

func (c *Controller) fire(fn func()) {
	if fn != nil {
		fn()
	}
}
