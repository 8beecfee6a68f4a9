// Package position persists per-episode listening progress.
package position

import (
	"context"
	"errors"

	"github.com/castkit/castkit/internal/core"
)

// ErrNotFound is returned by Get when no record exists for an episode.
var ErrNotFound = errors.New("position not found")

// Store is the durable per-episode progress record.
//
// Save computes the completed flag from position/duration and writes a
// single row per episode, last-write-wins. A record marked completed is
// never implicitly un-completed by a later save.
type Store interface {
	Save(ctx context.Context, episodeID string, position, duration float64) error
	Get(ctx context.Context, episodeID string) (*core.Position, error)
	Delete(ctx context.Context, episodeID string) error
	Close() error
}
