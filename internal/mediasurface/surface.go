// Package mediasurface bridges the playback session to the OS-level
// "now playing" surface (lock screen, notification panel, headset
// buttons). The surface is process-wide state with a host-managed
// lifecycle; this package writes to it and routes its transport
// commands back into the session, and never mirrors session state of
// its own.
package mediasurface

import "github.com/castkit/castkit/internal/core"

// Metadata is the display payload pushed on every episode change.
type Metadata struct {
	Title     string
	ShowTitle string
	Artwork   []core.ArtworkImage
}

// PositionState is the transport position payload. Values reflect true
// hardware state, not UI-predicted state.
type PositionState struct {
	Duration float64 // seconds
	Rate     float64
	Position float64 // seconds
}

// Handlers are the five transport-control callbacks the surface may
// invoke. All five route through the same intent path as UI commands.
type Handlers struct {
	Play         func()
	Pause        func()
	SeekBackward func()
	SeekForward  func()
	SeekTo       func(seconds float64)
}

// Surface is the host "now playing" integration. Implementations exist
// per platform; absence of the capability is represented by a nil
// Surface, which the Adapter treats as a no-op.
type Surface interface {
	SetMetadata(md Metadata)
	SetPositionState(ps PositionState)
	SetPlaybackState(playing bool)
	SetHandlers(h Handlers)
	ClearHandlers()
}
