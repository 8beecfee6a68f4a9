package core

// CompletedThreshold is the fraction of an episode that must be heard
// before the episode counts as completed.
const CompletedThreshold = 0.9

// Position is the persisted listening-progress record for one episode.
// One record exists per episode id; the newest write wins.
type Position struct {
	EpisodeID string  `json:"episode_id"`
	Position  float64 `json:"position"`   // seconds
	Duration  float64 `json:"duration"`   // seconds, 0 when unknown
	UpdatedAt int64   `json:"updated_at"` // epoch milliseconds
	Completed bool    `json:"completed"`
}

// IsCompleted derives the completed flag from a position and duration.
// An unknown duration never marks an episode completed.
func IsCompleted(position, duration float64) bool {
	if duration <= 0 {
		return false
	}
	return position/duration > CompletedThreshold
}

// ProgressPercent returns listening progress as a percentage (0-100).
func (p *Position) ProgressPercent() float64 {
	if p == nil || p.Duration == 0 {
		return 0
	}
	return p.Position / p.Duration * 100
}
