package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error types for common playback failure scenarios.
var (
	// ErrLoadFailed means the source never became playable.
	ErrLoadFailed = errors.New("episode failed to load")

	// ErrPlaybackBlocked means the platform's gesture policy rejected a
	// play command. Distinct from ErrLoadFailed because a reload-then-
	// retry frequently resolves it.
	ErrPlaybackBlocked = errors.New("playback blocked by platform")

	// ErrDesync means hardware playback state disagrees with intended
	// state. Owned by the recovery coordinator; never shown to users.
	ErrDesync = errors.New("playback state out of sync")

	// ErrPersistence means a position read or write failed. Logged and
	// ignored; playback continues without resume for that episode.
	ErrPersistence = errors.New("position persistence failed")

	ErrNoEpisode       = errors.New("no episode loaded")
	ErrSessionClosed   = errors.New("session closed")
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrPositionMissing = errors.New("no saved position")
)

// PlaybackError wraps an error with a user-facing suggestion.
type PlaybackError struct {
	Err        error
	Suggestion string
}

func (e *PlaybackError) Error() string {
	return e.Err.Error()
}

func (e *PlaybackError) Unwrap() error {
	return e.Err
}

// WithSuggestion wraps an error with a helpful suggestion.
func WithSuggestion(err error, suggestion string) error {
	return &PlaybackError{
		Err:        err,
		Suggestion: suggestion,
	}
}

// Retryable reports whether the error class is expected to clear on an
// explicit user retry.
func Retryable(err error) bool {
	return errors.Is(err, ErrPlaybackBlocked) || errors.Is(err, ErrLoadFailed)
}

// GetSuggestion returns a suggestion for the given error.
func GetSuggestion(err error) string {
	if err == nil {
		return ""
	}

	var playbackErr *PlaybackError
	if errors.As(err, &playbackErr) && playbackErr.Suggestion != "" {
		return playbackErr.Suggestion
	}

	errStr := strings.ToLower(err.Error())

	if errors.Is(err, ErrLoadFailed) || strings.Contains(errStr, "failed to load") {
		return "Check the episode URL and your internet connection, then retry"
	}

	if errors.Is(err, ErrPlaybackBlocked) {
		return "Press play again; playback must start from a direct keypress"
	}

	if errors.Is(err, ErrNoEpisode) {
		return "Select an episode before issuing playback commands"
	}

	if errors.Is(err, ErrPersistence) || strings.Contains(errStr, "database") {
		return "Saved positions are unavailable; playback will start from the beginning"
	}

	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "network") {
		return "Check your internet connection and try again"
	}

	if errors.Is(err, ErrInvalidConfig) || strings.Contains(errStr, "config") {
		return "Check ~/.config/castkit/config.toml for mistakes"
	}

	return ""
}

// Format returns a formatted error message with suggestion if available.
func Format(err error) string {
	if err == nil {
		return ""
	}

	suggestion := GetSuggestion(err)
	if suggestion != "" {
		return fmt.Sprintf("Error: %s\n\nSuggestion: %s", err.Error(), suggestion)
	}

	return fmt.Sprintf("Error: %s", err.Error())
}
