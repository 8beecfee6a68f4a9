package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/castkit/castkit/internal/audio"
	"github.com/castkit/castkit/internal/config"
	"github.com/castkit/castkit/internal/core"
	castErrors "github.com/castkit/castkit/internal/errors"
	"github.com/castkit/castkit/internal/log"
	"github.com/castkit/castkit/internal/mediasurface"
	"github.com/castkit/castkit/internal/position"
	"github.com/castkit/castkit/internal/session"
	"github.com/castkit/castkit/internal/tui"
)

var (
	playTitle    string
	playShow     string
	playID       string
	playDuration int
)

var playCmd = &cobra.Command{
	Use:   "play <audio-url>",
	Short: "Play a podcast episode",
	Long: `Play a podcast episode from its audio URL.

Playback position is saved per episode and restored on the next play,
unless the episode was already heard to completion.

Examples:
  castkit play https://example.com/ep42.mp3
  castkit play --title "Episode 42" --show "My Show" https://example.com/ep42.mp3`,
	Args: cobra.ExactArgs(1),
	RunE: runPlay,
}

func init() {
	playCmd.Flags().StringVar(&playTitle, "title", "", "Episode title")
	playCmd.Flags().StringVar(&playShow, "show", "", "Show (collection) name")
	playCmd.Flags().StringVar(&playID, "id", "", "Episode id (defaults to the audio URL)")
	playCmd.Flags().IntVar(&playDuration, "duration", 0, "Episode duration in seconds (simulated backend)")
	rootCmd.AddCommand(playCmd)
}

func runPlay(cmd *cobra.Command, args []string) error {
	if err := configureLogging(); err != nil {
		return err
	}

	storagePath := cfg.Storage.Path
	if storagePath == "" {
		storagePath = config.DefaultStoragePath()
	}
	store, err := position.OpenSQLite(storagePath)
	if err != nil {
		return fmt.Errorf("failed to open position store: %w", castErrors.WithSuggestion(err,
			"Check that "+storagePath+" is writable"))
	}
	defer store.Close()

	episode := &core.Episode{
		ID:        playID,
		AudioURL:  args[0],
		Title:     playTitle,
		ShowTitle: playShow,
	}
	if episode.ID == "" {
		episode.ID = episode.AudioURL
	}
	if episode.Title == "" {
		episode.Title = episode.AudioURL
	}

	simOpts := []audio.SimOption{}
	if playDuration > 0 {
		dur := float64(playDuration)
		simOpts = append(simOpts, audio.WithDurationFunc(func(string) (float64, error) {
			return dur, nil
		}))
	}
	factory := func() audio.Primitive { return audio.NewSim(simOpts...) }

	surface := mediasurface.NewMemorySurface()
	ctl := session.New(factory, store, surface, session.Options{
		SkipBackSeconds:    float64(cfg.Player.SkipBackSeconds),
		SkipForwardSeconds: float64(cfg.Player.SkipForwardSeconds),
		Speeds:             cfg.Player.Speeds,
		SleepDurations:     sleepDurations(cfg),
		SaveInterval:       time.Duration(cfg.Player.SaveIntervalSecs) * time.Second,
	})
	defer ctl.Close()

	ctl.SetEpisode(episode)

	refresh := time.Duration(cfg.TUI.RefreshInterval) * time.Millisecond
	if err := tui.Run(ctl, surface, refresh); err != nil {
		return fmt.Errorf("tui failed: %w", err)
	}
	return nil
}

func configureLogging() error {
	logCfg := log.Config{Level: cfg.Log.Level}
	if verbose {
		logCfg.Level = "debug"
	}
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		logCfg.Output = f
	}
	log.Configure(logCfg)
	return nil
}

func sleepDurations(cfg *config.Config) []time.Duration {
	out := make([]time.Duration, 0, len(cfg.Sleep.DurationsMinutes))
	for _, m := range cfg.Sleep.DurationsMinutes {
		out = append(out, time.Duration(m)*time.Minute)
	}
	return out
}
