package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/castkit/castkit/internal/audio"
	"github.com/castkit/castkit/internal/core"
	"github.com/castkit/castkit/internal/position"
)

// fakePrimitive is a scripted audio primitive. Tests drive it by
// mutating its behavior fields and injecting events.
type fakePrimitive struct {
	mu          sync.Mutex
	events      chan audio.Event
	url         string
	duration    float64
	current     float64
	rate        float64
	playing     bool
	closed      bool
	playErr     error
	silentPlay  bool // Play() accepted but audio never starts
	playCalls   int
	loadCalls   int
	detachCalls int
}

func newFakePrimitive() *fakePrimitive {
	return &fakePrimitive{
		events: make(chan audio.Event, 16),
		rate:   1.0,
	}
}

func (p *fakePrimitive) Load(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
	p.loadCalls++
	p.current = 0
	p.duration = 0
	p.playing = false
	p.rate = 1.0
}

func (p *fakePrimitive) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playCalls++
	if p.playErr != nil {
		return p.playErr
	}
	if !p.silentPlay {
		p.playing = true
	}
	return nil
}

func (p *fakePrimitive) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
}

func (p *fakePrimitive) Seek(seconds float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if seconds < 0 {
		seconds = 0
	}
	if p.duration > 0 && seconds > p.duration {
		seconds = p.duration
	}
	p.current = seconds
}

func (p *fakePrimitive) SetRate(rate float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rate = rate
}

func (p *fakePrimitive) Detach() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.detachCalls++
	p.url = ""
	p.playing = false
}

func (p *fakePrimitive) CurrentTime() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *fakePrimitive) Duration() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duration
}

func (p *fakePrimitive) Rate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rate
}

func (p *fakePrimitive) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *fakePrimitive) Events() <-chan audio.Event { return p.events }

func (p *fakePrimitive) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.events)
	}
}

// becomeReady simulates a completed load.
func (p *fakePrimitive) becomeReady(duration float64) {
	p.mu.Lock()
	p.duration = duration
	p.mu.Unlock()
	p.events <- audio.Event{Type: audio.EventReady}
	p.events <- audio.Event{Type: audio.EventCanPlay}
}

func (p *fakePrimitive) emit(t audio.EventType) {
	p.events <- audio.Event{Type: t}
}

func (p *fakePrimitive) set(fn func(*fakePrimitive)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p)
}

func (p *fakePrimitive) snapshot() fakePrimitive {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fakePrimitive{
		url:         p.url,
		duration:    p.duration,
		current:     p.current,
		rate:        p.rate,
		playing:     p.playing,
		playCalls:   p.playCalls,
		loadCalls:   p.loadCalls,
		detachCalls: p.detachCalls,
	}
}

// memStore is an in-memory position.Store. getDelay, when set before
// the store is handed to a controller, stalls every read.
type memStore struct {
	mu       sync.Mutex
	records  map[string]core.Position
	writes   int
	getDelay time.Duration
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]core.Position)}
}

func (s *memStore) Save(_ context.Context, episodeID string, pos, dur float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	completed := core.IsCompleted(pos, dur)
	if prev, ok := s.records[episodeID]; ok && prev.Completed {
		completed = true
	}
	s.records[episodeID] = core.Position{
		EpisodeID: episodeID,
		Position:  pos,
		Duration:  dur,
		UpdatedAt: time.Now().UnixMilli(),
		Completed: completed,
	}
	s.writes++
	return nil
}

func (s *memStore) Get(_ context.Context, episodeID string) (*core.Position, error) {
	if s.getDelay > 0 {
		time.Sleep(s.getDelay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[episodeID]
	if !ok {
		return nil, position.ErrNotFound
	}
	return &rec, nil
}

func (s *memStore) Delete(_ context.Context, episodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, episodeID)
	return nil
}

func (s *memStore) Close() error { return nil }

func (s *memStore) get(episodeID string) (core.Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[episodeID]
	return rec, ok
}

// waitFor polls until cond holds or the timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}
