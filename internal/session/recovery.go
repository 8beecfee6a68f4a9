package session

import (
	"context"
	"errors"
	"time"

	"github.com/castkit/castkit/internal/core"
)

// errSessionGone aborts a recovery rung when the session closed or the
// episode changed mid-run.
var errSessionGone = errors.New("session closed or episode changed")

// recoveryTarget adapts the controller to the recovery coordinator's
// Target without widening the controller's public surface. All
// primitive commands still issue from the controller's own fields; the
// coordinator never holds the primitive.
type recoveryTarget Controller

func (t *recoveryTarget) controller() *Controller { return (*Controller)(t) }

// DirectResume is ladder rung one: a plain resume on the existing
// primitive.
func (t *recoveryTarget) DirectResume() error {
	c := t.controller()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.episode == nil {
		return errSessionGone
	}
	return c.primitive.Play()
}

// Reload is ladder rung two: reload the source, wait (bounded) for
// readiness, restore the last known position, resume.
func (t *recoveryTarget) Reload(ctx context.Context) error {
	return t.reload(ctx, false)
}

// HardReset is ladder rung three: detach the source, briefly clear,
// reattach, then the reload sequence.
func (t *recoveryTarget) HardReset(ctx context.Context) error {
	return t.reload(ctx, true)
}

func (t *recoveryTarget) reload(ctx context.Context, hard bool) error {
	c := t.controller()

	c.mu.Lock()
	if c.closed || c.episode == nil {
		c.mu.Unlock()
		return errSessionGone
	}
	url := c.episode.AudioURL
	lastKnown := c.currentTime

	if hard {
		c.primitive.Detach()
		c.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(hardResetClearDelay):
		}
		c.mu.Lock()
		if c.closed || c.episode == nil {
			c.mu.Unlock()
			return errSessionGone
		}
	}

	ready := make(chan struct{})
	c.readyCh = ready
	c.primitive.Load(url)
	c.mu.Unlock()

	// Bounded wait for the ready signal; proceed regardless on timeout.
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ready:
	case <-time.After(readyWaitTimeout):
		c.logger.Warn().Msg("reload ready wait timed out, proceeding")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.episode == nil {
		return errSessionGone
	}
	c.primitive.Seek(lastKnown)
	c.primitive.SetRate(c.speed.Current())
	return c.primitive.Play()
}

// HardwarePlaying reads actual hardware state for the settle-and-check
// probe.
func (t *recoveryTarget) HardwarePlaying() bool {
	c := t.controller()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	return c.primitive.Playing()
}

// ReportPaused records the truthful paused state after the ladder is
// exhausted. The session never claims Playing against hardware
// disagreement.
func (t *recoveryTarget) ReportPaused() {
	c := t.controller()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state = core.StatePaused
	c.wantPlaying = false
	c.stopTickerLocked()
	c.mu.Unlock()

	c.adapter.PlaybackStateChanged(false)
	c.notify()
}

// CondemnPrimitive marks the primitive for replacement at the next
// initialization.
func (t *recoveryTarget) CondemnPrimitive() {
	c := t.controller()
	c.mu.Lock()
	c.condemned = true
	c.mu.Unlock()
}
