package audio

import (
	"fmt"
	"sync"
	"time"
)

// DurationFunc resolves the duration in seconds of an audio source.
type DurationFunc func(url string) (float64, error)

// Sim is a wall-clock simulated Primitive. It performs no audio I/O:
// the playhead advances in real time (scaled by the rate) while
// "playing". It backs the CLI when no hardware backend is wired in and
// gives tests a primitive with honest asynchronous load behavior.
type Sim struct {
	mu        sync.Mutex
	events    chan Event
	url       string
	duration  float64
	playing   bool
	rate      float64
	base      float64 // playhead at the last play/pause/seek
	startedAt time.Time
	loadGen   int // invalidates in-flight loads
	closed    bool
	endTimer  *time.Timer

	loadDelay time.Duration
	resolve   DurationFunc
}

// SimOption configures a Sim.
type SimOption func(*Sim)

// WithLoadDelay sets the simulated load latency.
func WithLoadDelay(d time.Duration) SimOption {
	return func(s *Sim) { s.loadDelay = d }
}

// WithDurationFunc sets the source duration resolver.
func WithDurationFunc(fn DurationFunc) SimOption {
	return func(s *Sim) { s.resolve = fn }
}

// NewSim creates a simulated primitive. By default sources load after
// 50ms with a fixed one-hour duration.
func NewSim(opts ...SimOption) *Sim {
	s := &Sim{
		events:    make(chan Event, 16),
		rate:      1.0,
		loadDelay: 50 * time.Millisecond,
		resolve:   func(string) (float64, error) { return 3600, nil },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load attaches a new source and begins the simulated load.
func (s *Sim) Load(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	s.stopEndTimerLocked()
	s.url = url
	s.duration = 0
	s.playing = false
	s.base = 0
	s.rate = 1.0 // source change resets rate, as real primitives do
	s.loadGen++
	gen := s.loadGen

	time.AfterFunc(s.loadDelay, func() { s.finishLoad(gen, url) })
}

func (s *Sim) finishLoad(gen int, url string) {
	dur, err := s.resolve(url)

	s.mu.Lock()
	if s.closed || gen != s.loadGen {
		s.mu.Unlock()
		return
	}
	if err == nil {
		s.duration = dur
	}
	s.mu.Unlock()

	if err != nil {
		s.emit(Event{Type: EventFailed, Err: fmt.Errorf("load %s: %w", url, err)})
		return
	}
	s.emit(Event{Type: EventReady})
	s.emit(Event{Type: EventCanPlay})
}

// Play starts or resumes the simulated clock.
func (s *Sim) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("primitive closed")
	}
	if s.url == "" {
		return fmt.Errorf("no source attached")
	}
	if s.playing {
		return nil
	}
	s.playing = true
	s.startedAt = time.Now()
	s.scheduleEndLocked()
	return nil
}

// Pause halts the simulated clock.
func (s *Sim) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.freezeLocked()
}

// Seek moves the playhead, clamped to [0, duration].
func (s *Sim) Seek(seconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seconds < 0 {
		seconds = 0
	}
	if s.duration > 0 && seconds > s.duration {
		seconds = s.duration
	}
	wasPlaying := s.playing
	s.freezeLocked()
	s.base = seconds
	if wasPlaying {
		s.playing = true
		s.startedAt = time.Now()
		s.scheduleEndLocked()
	}
}

// SetRate sets the playback rate multiplier.
func (s *Sim) SetRate(rate float64) {
	if rate <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	wasPlaying := s.playing
	s.freezeLocked()
	s.rate = rate
	if wasPlaying {
		s.playing = true
		s.startedAt = time.Now()
		s.scheduleEndLocked()
	}
}

// Detach drops the current source.
func (s *Sim) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopEndTimerLocked()
	s.loadGen++
	s.url = ""
	s.duration = 0
	s.playing = false
	s.base = 0
}

// CurrentTime returns the playhead position in seconds.
func (s *Sim) CurrentTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positionLocked()
}

// Duration returns the source duration, or 0 before load completes.
func (s *Sim) Duration() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration
}

// Rate returns the active playback rate multiplier.
func (s *Sim) Rate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate
}

// Playing reports whether the simulated clock is running.
func (s *Sim) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// Events returns the event stream.
func (s *Sim) Events() <-chan Event {
	return s.events
}

// Close stops the simulation and closes the event channel.
func (s *Sim) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.stopEndTimerLocked()
	s.loadGen++
	s.playing = false
	s.mu.Unlock()
	close(s.events)
}

// positionLocked computes the playhead from the frozen base plus the
// rate-scaled wall time elapsed since playback started.
func (s *Sim) positionLocked() float64 {
	pos := s.base
	if s.playing {
		pos += time.Since(s.startedAt).Seconds() * s.rate
	}
	if s.duration > 0 && pos > s.duration {
		pos = s.duration
	}
	return pos
}

// freezeLocked stops the clock, folding elapsed time into base.
func (s *Sim) freezeLocked() {
	if s.playing {
		s.base = s.positionLocked()
		s.playing = false
	}
	s.stopEndTimerLocked()
}

// scheduleEndLocked arms the end-of-source timer for the remaining
// scaled playback time. No-op while the duration is unknown.
func (s *Sim) scheduleEndLocked() {
	s.stopEndTimerLocked()
	if s.duration <= 0 {
		return
	}
	remaining := s.duration - s.base
	if remaining <= 0 {
		remaining = 0
	}
	wall := time.Duration(remaining / s.rate * float64(time.Second))
	s.endTimer = time.AfterFunc(wall, s.onEnd)
}

func (s *Sim) stopEndTimerLocked() {
	if s.endTimer != nil {
		s.endTimer.Stop()
		s.endTimer = nil
	}
}

func (s *Sim) onEnd() {
	s.mu.Lock()
	if s.closed || !s.playing {
		s.mu.Unlock()
		return
	}
	s.base = s.duration
	s.playing = false
	s.mu.Unlock()
	s.emit(Event{Type: EventEnded})
}

// emit delivers an event, dropping it if the consumer is far behind.
func (s *Sim) emit(e Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	select {
	case s.events <- e:
	default:
	}
}

// Ensure Sim implements Primitive
var _ Primitive = (*Sim)(nil)
