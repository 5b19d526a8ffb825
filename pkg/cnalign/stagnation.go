package cnalign

import (
	"math"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/agorelick/CNalign/pkg/mip"
)

// stagnationEpsilon is the minimum incumbent movement that counts as
// improvement; smaller changes are solver noise.
const stagnationEpsilon = 1e-5

// StagnationController watches engine progress and cuts off a priority
// level once its incumbent has not moved for the configured timeout. It is
// a pure state machine over the events it observes: it holds no reference
// to the engine and performs no side effects beyond logging, so it can be
// driven directly in tests with synthetic events and a fake clock.
//
// Each level is stopped at most once; a LevelStarted event resets the
// tracking state for the new level.
type StagnationController struct {
	timeout time.Duration
	epsilon float64
	now     func() time.Time

	mu          sync.Mutex
	level       int
	best        float64
	hasBest     bool
	lastImprove time.Time
	stopped     bool
}

// ControllerOption customizes a StagnationController.
type ControllerOption func(*StagnationController)

// WithClock substitutes the time source, letting tests advance time
// without sleeping.
func WithClock(now func() time.Time) ControllerOption {
	return func(c *StagnationController) { c.now = now }
}

// WithEpsilon overrides the improvement threshold.
func WithEpsilon(eps float64) ControllerOption {
	return func(c *StagnationController) { c.epsilon = eps }
}

// NewStagnationController creates a controller that stops a level after
// timeout without incumbent improvement.
func NewStagnationController(timeout time.Duration, opts ...ControllerOption) *StagnationController {
	c := &StagnationController{
		timeout: timeout,
		epsilon: stagnationEpsilon,
		now:     time.Now,
		level:   -1,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Observe consumes one progress event and decides whether the current
// level should keep running. It is the mip.ProgressFunc for a run.
func (c *StagnationController) Observe(ev mip.ProgressEvent) mip.Action {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ev.Kind == mip.LevelStarted || ev.Level != c.level {
		c.level = ev.Level
		c.hasBest = false
		c.best = 0
		c.stopped = false
		c.lastImprove = c.now()
		log.WithField("level", ev.Level).Debug("objective level started; stagnation clock reset")
		return mip.Continue
	}
	if c.stopped || !ev.HasIncumbent {
		return mip.Continue
	}

	if !c.hasBest || math.Abs(ev.Incumbent-c.best) > c.epsilon {
		c.hasBest = true
		c.best = ev.Incumbent
		c.lastImprove = c.now()
		return mip.Continue
	}

	if idle := c.now().Sub(c.lastImprove); idle > c.timeout {
		c.stopped = true
		log.WithFields(log.Fields{
			"level":     ev.Level,
			"incumbent": ev.Incumbent,
			"idle":      idle,
		}).Info("no incumbent improvement within timeout; stopping objective level")
		return mip.StopLevel
	}
	return mip.Continue
}
