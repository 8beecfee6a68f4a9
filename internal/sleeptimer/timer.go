// Package sleeptimer implements the countdown / end-of-episode stop request.
package sleeptimer

import (
	"fmt"
	"sync"
	"time"
)

// Mode is the sleep timer's operating mode.
type Mode int

const (
	ModeOff Mode = iota
	ModeDuration
	ModeEndOfEpisode
)

// DefaultDurations is the built-in duration ring, in order.
var DefaultDurations = []time.Duration{
	15 * time.Minute,
	30 * time.Minute,
	45 * time.Minute,
	60 * time.Minute,
}

// Timer cycles through Off, each configured duration, then
// end-of-episode, wrapping back to Off.
//
// Selecting a duration fixes endsAt on the wall clock. Pausing playback
// does not move endsAt; the session controller checks Expired once per
// second while playing, so a timer that lapses during a pause fires on
// the first check after resume. End-of-episode mode has no deadline; it
// is observed via the session's ended transition.
type Timer struct {
	mu        sync.Mutex
	durations []time.Duration
	mode      Mode
	// step indexes the option ring: 0 = Off, 1..len(durations) = the
	// durations, len(durations)+1 = end of episode.
	step   int
	endsAt time.Time
}

// New creates a timer over the given duration ring. An empty ring falls
// back to DefaultDurations.
func New(durations []time.Duration) *Timer {
	if len(durations) == 0 {
		durations = DefaultDurations
	}
	return &Timer{durations: durations}
}

// Cycle advances to the next option and returns the new mode.
func (t *Timer) Cycle(now time.Time) Mode {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.step = (t.step + 1) % (len(t.durations) + 2)
	switch {
	case t.step == 0:
		t.mode = ModeOff
		t.endsAt = time.Time{}
	case t.step <= len(t.durations):
		t.mode = ModeDuration
		t.endsAt = now.Add(t.durations[t.step-1])
	default:
		t.mode = ModeEndOfEpisode
		t.endsAt = time.Time{}
	}
	return t.mode
}

// Mode returns the active mode.
func (t *Timer) Mode() Mode {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mode
}

// EndsAt returns the wall-clock deadline, zero unless in duration mode.
func (t *Timer) EndsAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.endsAt
}

// Expired reports whether a duration deadline has passed.
func (t *Timer) Expired(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mode == ModeDuration && now.After(t.endsAt)
}

// Reset returns the timer to Off.
func (t *Timer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mode = ModeOff
	t.step = 0
	t.endsAt = time.Time{}
}

// Label returns a display label for the current setting. In duration
// mode it shows the time remaining, rounded up to the nearest minute.
func (t *Timer) Label(now time.Time) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.mode {
	case ModeOff:
		return "Off"
	case ModeEndOfEpisode:
		return "End of episode"
	default:
		remaining := t.endsAt.Sub(now)
		if remaining < 0 {
			remaining = 0
		}
		mins := int((remaining + time.Minute - 1) / time.Minute)
		return fmt.Sprintf("%dm", mins)
	}
}
