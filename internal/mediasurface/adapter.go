package mediasurface

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/castkit/castkit/internal/core"
	"github.com/castkit/castkit/internal/log"
)

// Commands is the session-side intent path the adapter routes surface
// callbacks into. Implemented by the session controller; the adapter
// never commands the audio primitive directly.
//
// Resume carries recovery semantics: a platform-issued play typically
// follows a long suspension, exactly the case the recovery ladder
// exists for, so it must not be a raw primitive play.
type Commands interface {
	Resume()
	Pause()
	SkipBackward()
	SkipForward()
	Seek(seconds float64)
}

// Adapter pushes session state to a Surface and registers the five
// transport callbacks. A nil Surface disables the adapter entirely;
// every method becomes a no-op rather than an error.
type Adapter struct {
	surface Surface
	logger  zerolog.Logger

	mu         sync.Mutex
	registered bool
	last       PositionState
	hasLast    bool
}

// NewAdapter creates an adapter over the given surface (nil allowed).
func NewAdapter(surface Surface) *Adapter {
	return &Adapter{
		surface: surface,
		logger:  log.WithComponent("mediasurface"),
	}
}

// Register wires the five transport callbacks into the session's
// command path. Idempotent.
func (a *Adapter) Register(cmds Commands) {
	if a.surface == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.registered {
		return
	}
	a.surface.SetHandlers(Handlers{
		Play:         cmds.Resume,
		Pause:        cmds.Pause,
		SeekBackward: cmds.SkipBackward,
		SeekForward:  cmds.SkipForward,
		SeekTo:       cmds.Seek,
	})
	a.registered = true
	a.logger.Debug().Msg("transport handlers registered")
}

// EpisodeChanged pushes display metadata for the new episode. A nil
// episode clears nothing; surfaces keep their last metadata until the
// next episode arrives, matching host behavior.
func (a *Adapter) EpisodeChanged(ep *core.Episode) {
	if a.surface == nil || ep == nil {
		return
	}
	a.surface.SetMetadata(Metadata{
		Title:     ep.Title,
		ShowTitle: ep.ShowTitle,
		Artwork:   ep.Artwork,
	})

	a.mu.Lock()
	a.hasLast = false
	a.mu.Unlock()
}

// PositionChanged pushes {duration, rate, position} when any of the
// three differs from the last pushed value.
func (a *Adapter) PositionChanged(ps PositionState) {
	if a.surface == nil {
		return
	}
	a.mu.Lock()
	if a.hasLast && a.last == ps {
		a.mu.Unlock()
		return
	}
	a.last = ps
	a.hasLast = true
	a.mu.Unlock()

	a.surface.SetPositionState(ps)
}

// PlaybackStateChanged reflects the hardware playing/paused state.
func (a *Adapter) PlaybackStateChanged(playing bool) {
	if a.surface == nil {
		return
	}
	a.surface.SetPlaybackState(playing)
}

// Teardown unregisters all transport callbacks. Idempotent.
func (a *Adapter) Teardown() {
	if a.surface == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.registered {
		return
	}
	a.surface.ClearHandlers()
	a.registered = false
	a.logger.Debug().Msg("transport handlers cleared")
}
