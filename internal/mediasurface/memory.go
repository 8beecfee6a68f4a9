package mediasurface

import "sync"

// MemorySurface is an in-process Surface. The TUI reads from it to
// render the now-playing panel, and tests use it to observe what was
// pushed and to inject transport commands.
type MemorySurface struct {
	mu       sync.Mutex
	metadata Metadata
	position PositionState
	playing  bool
	handlers Handlers
}

// NewMemorySurface creates an empty in-process surface.
func NewMemorySurface() *MemorySurface {
	return &MemorySurface{}
}

// SetMetadata records the pushed metadata.
func (m *MemorySurface) SetMetadata(md Metadata) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metadata = md
}

// SetPositionState records the pushed position state.
func (m *MemorySurface) SetPositionState(ps PositionState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.position = ps
}

// SetPlaybackState records the pushed playing/paused state.
func (m *MemorySurface) SetPlaybackState(playing bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playing = playing
}

// SetHandlers installs the transport callbacks.
func (m *MemorySurface) SetHandlers(h Handlers) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = h
}

// ClearHandlers removes all transport callbacks.
func (m *MemorySurface) ClearHandlers() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = Handlers{}
}

// Metadata returns the last pushed metadata.
func (m *MemorySurface) Metadata() Metadata {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metadata
}

// PositionState returns the last pushed position state.
func (m *MemorySurface) PositionState() PositionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

// Playing returns the last pushed playback state.
func (m *MemorySurface) Playing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing
}

// Handlers returns the installed transport callbacks.
func (m *MemorySurface) Handlers() Handlers {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handlers
}

// Ensure MemorySurface implements Surface
var _ Surface = (*MemorySurface)(nil)
