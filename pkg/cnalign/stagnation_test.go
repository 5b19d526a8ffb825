package cnalign

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/agorelick/CNalign/pkg/mip"
)

// fakeClock advances only when told to, so stagnation tests never sleep.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestController(timeout time.Duration) (*StagnationController, *fakeClock) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	return NewStagnationController(timeout, WithClock(clock.now)), clock
}

func TestStagnationStopsIdleLevel(t *testing.T) {
	ctrl, clock := newTestController(time.Minute)
	ctrl.Observe(mip.ProgressEvent{Kind: mip.LevelStarted, Level: 0})

	act := ctrl.Observe(mip.ProgressEvent{Kind: mip.Improved, Level: 0, Incumbent: 5, HasIncumbent: true})
	assert.Equal(t, mip.Continue, act)

	clock.advance(61 * time.Second)
	act = ctrl.Observe(mip.ProgressEvent{Kind: mip.Periodic, Level: 0, Incumbent: 5, HasIncumbent: true})
	assert.Equal(t, mip.StopLevel, act, "an idle level past the timeout must be stopped")
}

func TestStagnationImprovementResetsClock(t *testing.T) {
	ctrl, clock := newTestController(time.Minute)
	ctrl.Observe(mip.ProgressEvent{Kind: mip.LevelStarted, Level: 0})
	ctrl.Observe(mip.ProgressEvent{Kind: mip.Improved, Level: 0, Incumbent: 5, HasIncumbent: true})

	clock.advance(50 * time.Second)
	act := ctrl.Observe(mip.ProgressEvent{Kind: mip.Improved, Level: 0, Incumbent: 6, HasIncumbent: true})
	assert.Equal(t, mip.Continue, act)

	// 50s after the improvement, 100s after the first incumbent: the
	// improvement must have reset the clock.
	clock.advance(50 * time.Second)
	act = ctrl.Observe(mip.ProgressEvent{Kind: mip.Periodic, Level: 0, Incumbent: 6, HasIncumbent: true})
	assert.Equal(t, mip.Continue, act)

	clock.advance(11 * time.Second)
	act = ctrl.Observe(mip.ProgressEvent{Kind: mip.Periodic, Level: 0, Incumbent: 6, HasIncumbent: true})
	assert.Equal(t, mip.StopLevel, act)
}

func TestStagnationEpsilonFiltersNoise(t *testing.T) {
	ctrl, clock := newTestController(time.Minute)
	ctrl.Observe(mip.ProgressEvent{Kind: mip.LevelStarted, Level: 0})
	ctrl.Observe(mip.ProgressEvent{Kind: mip.Improved, Level: 0, Incumbent: 5, HasIncumbent: true})

	// A sub-epsilon wiggle is not an improvement.
	clock.advance(61 * time.Second)
	act := ctrl.Observe(mip.ProgressEvent{Kind: mip.Periodic, Level: 0, Incumbent: 5 + 1e-7, HasIncumbent: true})
	assert.Equal(t, mip.StopLevel, act)
}

func TestStagnationStopsEachLevelAtMostOnce(t *testing.T) {
	ctrl, clock := newTestController(time.Minute)
	ctrl.Observe(mip.ProgressEvent{Kind: mip.LevelStarted, Level: 0})
	ctrl.Observe(mip.ProgressEvent{Kind: mip.Improved, Level: 0, Incumbent: 5, HasIncumbent: true})

	clock.advance(2 * time.Minute)
	assert.Equal(t, mip.StopLevel, ctrl.Observe(mip.ProgressEvent{Kind: mip.Periodic, Level: 0, Incumbent: 5, HasIncumbent: true}))
	assert.Equal(t, mip.Continue, ctrl.Observe(mip.ProgressEvent{Kind: mip.Periodic, Level: 0, Incumbent: 5, HasIncumbent: true}),
		"a level already stopped must not be stopped again")
}

func TestStagnationNewLevelResetsState(t *testing.T) {
	ctrl, clock := newTestController(time.Minute)
	ctrl.Observe(mip.ProgressEvent{Kind: mip.LevelStarted, Level: 0})
	ctrl.Observe(mip.ProgressEvent{Kind: mip.Improved, Level: 0, Incumbent: 5, HasIncumbent: true})
	clock.advance(2 * time.Minute)
	assert.Equal(t, mip.StopLevel, ctrl.Observe(mip.ProgressEvent{Kind: mip.Periodic, Level: 0, Incumbent: 5, HasIncumbent: true}))

	// The next level starts fresh: same incumbent value, fresh clock.
	ctrl.Observe(mip.ProgressEvent{Kind: mip.LevelStarted, Level: 1})
	act := ctrl.Observe(mip.ProgressEvent{Kind: mip.Improved, Level: 1, Incumbent: 5, HasIncumbent: true})
	assert.Equal(t, mip.Continue, act)
	clock.advance(30 * time.Second)
	act = ctrl.Observe(mip.ProgressEvent{Kind: mip.Periodic, Level: 1, Incumbent: 5, HasIncumbent: true})
	assert.Equal(t, mip.Continue, act)
}

func TestStagnationIgnoresEventsWithoutIncumbent(t *testing.T) {
	ctrl, clock := newTestController(time.Minute)
	ctrl.Observe(mip.ProgressEvent{Kind: mip.LevelStarted, Level: 0})
	clock.advance(10 * time.Minute)
	act := ctrl.Observe(mip.ProgressEvent{Kind: mip.Periodic, Level: 0})
	assert.Equal(t, mip.Continue, act, "no incumbent yet means nothing to stagnate on")
}
