package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Player.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("player: %w", err))
	}
	if err := c.Sleep.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("sleep: %w", err))
	}
	if err := c.TUI.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tui: %w", err))
	}
	if err := c.Log.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("log: %w", err))
	}

	return errors.Join(errs...)
}

// Validate checks PlayerConfig for errors.
func (c *PlayerConfig) Validate() error {
	if c.SkipBackSeconds < 0 {
		return errors.New("skip_back_seconds must be non-negative")
	}
	if c.SkipForwardSeconds < 0 {
		return errors.New("skip_forward_seconds must be non-negative")
	}
	if c.SaveIntervalSecs < 0 {
		return errors.New("save_interval_seconds must be non-negative")
	}
	for _, s := range c.Speeds {
		if s <= 0 {
			return fmt.Errorf("invalid speed: %v (must be positive)", s)
		}
	}
	return nil
}

// Validate checks SleepConfig for errors.
func (c *SleepConfig) Validate() error {
	for _, m := range c.DurationsMinutes {
		if m <= 0 {
			return fmt.Errorf("invalid sleep duration: %d minutes (must be positive)", m)
		}
	}
	return nil
}

// Validate checks TUIConfig for errors.
func (c *TUIConfig) Validate() error {
	if c.RefreshInterval < 0 {
		return errors.New("refresh_interval must be non-negative")
	}
	return nil
}

// Validate checks LogConfig for errors.
func (c *LogConfig) Validate() error {
	switch c.Level {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Level)
	}
	return nil
}
