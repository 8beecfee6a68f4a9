package config

// Config is the root configuration structure.
type Config struct {
	Player  PlayerConfig  `toml:"player"`
	Storage StorageConfig `toml:"storage"`
	Sleep   SleepConfig   `toml:"sleep"`
	TUI     TUIConfig     `toml:"tui"`
	Log     LogConfig     `toml:"log"`
}

// PlayerConfig holds playback behavior settings.
type PlayerConfig struct {
	SkipBackSeconds    int       `toml:"skip_back_seconds"`
	SkipForwardSeconds int       `toml:"skip_forward_seconds"`
	Speeds             []float64 `toml:"speeds"`
	SaveIntervalSecs   int       `toml:"save_interval_seconds"`
}

// StorageConfig holds position-store settings.
type StorageConfig struct {
	Path string `toml:"path"`
}

// SleepConfig holds sleep timer settings.
type SleepConfig struct {
	DurationsMinutes []int `toml:"durations_minutes"`
}

// TUIConfig holds terminal UI settings.
type TUIConfig struct {
	RefreshInterval int `toml:"refresh_interval"` // milliseconds
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}
