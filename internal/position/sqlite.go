package position

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/castkit/castkit/internal/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS positions (
	episode_id TEXT PRIMARY KEY,
	position   REAL NOT NULL,
	duration   REAL NOT NULL,
	updated_at INTEGER NOT NULL,
	completed  INTEGER NOT NULL DEFAULT 0
);
`

// SQLiteStore is a Store backed by a local sqlite database. One row per
// episode id; rows have no implicit expiry.
type SQLiteStore struct {
	db *sql.DB

	// now is overridable for tests.
	now func() time.Time
}

// OpenSQLite opens (creating if needed) the positions database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open positions db: %w", err)
	}

	// A single writer keeps the debounced save path serialized.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init positions schema: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Save upserts the progress record for an episode. The completed flag
// is derived from position/duration and is monotonic: the MAX() in the
// upsert keeps an already-completed row completed even if a later save
// reports an earlier position.
func (s *SQLiteStore) Save(ctx context.Context, episodeID string, position, duration float64) error {
	if position < 0 {
		position = 0
	}
	completed := 0
	if core.IsCompleted(position, duration) {
		completed = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO positions (episode_id, position, duration, updated_at, completed)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(episode_id) DO UPDATE SET
			position   = excluded.position,
			duration   = excluded.duration,
			updated_at = excluded.updated_at,
			completed  = MAX(positions.completed, excluded.completed)`,
		episodeID, position, duration, s.now().UnixMilli(), completed)
	if err != nil {
		return fmt.Errorf("save position for %s: %w", episodeID, err)
	}
	return nil
}

// Get returns the last saved record for an episode, or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, episodeID string) (*core.Position, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT episode_id, position, duration, updated_at, completed
		FROM positions WHERE episode_id = ?`, episodeID)

	var p core.Position
	var completed int
	err := row.Scan(&p.EpisodeID, &p.Position, &p.Duration, &p.UpdatedAt, &completed)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get position for %s: %w", episodeID, err)
	}
	p.Completed = completed != 0
	return &p, nil
}

// Delete removes the record for an episode. Missing rows are not an error.
func (s *SQLiteStore) Delete(ctx context.Context, episodeID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM positions WHERE episode_id = ?`, episodeID); err != nil {
		return fmt.Errorf("delete position for %s: %w", episodeID, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ensure SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)
