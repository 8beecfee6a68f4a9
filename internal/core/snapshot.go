package core

// Snapshot is the observable playback state exposed to the UI layer.
// It is a value copy; the UI never holds a reference into the session.
type Snapshot struct {
	Episode         *Episode `json:"episode"`
	State           State    `json:"state"`
	IsPlaying       bool     `json:"is_playing"`
	CurrentTime     float64  `json:"current_time"` // seconds
	Duration        float64  `json:"duration"`     // seconds, 0 when unknown
	IsLoading       bool     `json:"is_loading"`
	HasError        bool     `json:"has_error"`
	PlaybackSpeed   float64  `json:"playback_speed"`
	SleepTimerLabel string   `json:"sleep_timer_label"`
}

// HasEpisode returns true if a current episode is set.
func (s *Snapshot) HasEpisode() bool {
	return s != nil && s.Episode != nil
}

// ProgressPercent returns playback progress as a percentage (0-100).
func (s *Snapshot) ProgressPercent() float64 {
	if s == nil || s.Duration == 0 {
		return 0
	}
	return s.CurrentTime / s.Duration * 100
}
