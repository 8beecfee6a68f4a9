package position

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/castkit/castkit/internal/log"
)

// DefaultSaveInterval is the minimum spacing between periodic writes.
const DefaultSaveInterval = 5 * time.Second

// Saver rate-limits periodic progress writes to a Store. Save drops
// calls that land inside the debounce window (they are not queued);
// Flush writes unconditionally and synchronously, for the moments where
// losing the final seconds of progress would be visible to the user:
// pause, episode end, and session teardown.
//
// Write failures are logged and swallowed. Playback never stops because
// a position could not be recorded.
type Saver struct {
	store    Store
	interval time.Duration
	logger   zerolog.Logger

	mu        sync.Mutex
	lastWrite map[string]time.Time

	// now is overridable for tests.
	now func() time.Time
}

// NewSaver wraps a store with a debounce window. A non-positive
// interval falls back to DefaultSaveInterval.
func NewSaver(store Store, interval time.Duration) *Saver {
	if interval <= 0 {
		interval = DefaultSaveInterval
	}
	return &Saver{
		store:     store,
		interval:  interval,
		logger:    log.WithComponent("position"),
		lastWrite: make(map[string]time.Time),
		now:       time.Now,
	}
}

// Save writes the record unless a write for the same episode already
// happened inside the debounce window, in which case the call is
// dropped.
func (s *Saver) Save(ctx context.Context, episodeID string, position, duration float64) {
	s.mu.Lock()
	now := s.now()
	if last, ok := s.lastWrite[episodeID]; ok && now.Sub(last) < s.interval {
		s.mu.Unlock()
		return
	}
	s.lastWrite[episodeID] = now
	s.mu.Unlock()

	s.write(ctx, episodeID, position, duration)
}

// Flush writes the record immediately, bypassing the debounce window,
// and resets the window so a periodic save directly after a flush is
// dropped.
func (s *Saver) Flush(ctx context.Context, episodeID string, position, duration float64) {
	s.mu.Lock()
	s.lastWrite[episodeID] = s.now()
	s.mu.Unlock()

	s.write(ctx, episodeID, position, duration)
}

// Forget clears the debounce window for an episode, so the next Save
// writes immediately. Called on episode change.
func (s *Saver) Forget(episodeID string) {
	s.mu.Lock()
	delete(s.lastWrite, episodeID)
	s.mu.Unlock()
}

func (s *Saver) write(ctx context.Context, episodeID string, position, duration float64) {
	if err := s.store.Save(ctx, episodeID, position, duration); err != nil {
		s.logger.Warn().Err(err).Str("episode", episodeID).Msg("position write failed")
	}
}
