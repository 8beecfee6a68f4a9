package config

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Player: PlayerConfig{
			SkipBackSeconds:    10,
			SkipForwardSeconds: 30,
			Speeds:             []float64{1.0, 1.2, 1.5, 1.75, 2.0, 0.8},
			SaveIntervalSecs:   5,
		},
		Sleep: SleepConfig{
			DurationsMinutes: []int{15, 30, 45, 60},
		},
		TUI: TUIConfig{
			RefreshInterval: 500,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// ApplyDefaults fills in zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	d := Default()

	// Player
	if c.Player.SkipBackSeconds == 0 {
		c.Player.SkipBackSeconds = d.Player.SkipBackSeconds
	}
	if c.Player.SkipForwardSeconds == 0 {
		c.Player.SkipForwardSeconds = d.Player.SkipForwardSeconds
	}
	if len(c.Player.Speeds) == 0 {
		c.Player.Speeds = d.Player.Speeds
	}
	if c.Player.SaveIntervalSecs == 0 {
		c.Player.SaveIntervalSecs = d.Player.SaveIntervalSecs
	}

	// Sleep
	if len(c.Sleep.DurationsMinutes) == 0 {
		c.Sleep.DurationsMinutes = d.Sleep.DurationsMinutes
	}

	// TUI
	if c.TUI.RefreshInterval == 0 {
		c.TUI.RefreshInterval = d.TUI.RefreshInterval
	}

	// Log
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
}
