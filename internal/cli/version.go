package cli

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/castkit/castkit/internal/config"
)

var (
	// Set via ldflags at build time
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and environment information",
	Run: func(cmd *cobra.Command, args []string) {
		storage := cfg.Storage.Path
		if storage == "" {
			storage = config.DefaultStoragePath()
		}

		if JSONOutput() {
			info := map[string]string{
				"version":  Version,
				"commit":   Commit,
				"built":    BuildDate,
				"go":       runtime.Version(),
				"platform": runtime.GOOS + "/" + runtime.GOARCH,
				"storage":  storage,
			}
			out, _ := json.MarshalIndent(info, "", "  ")
			fmt.Println(string(out))
			return
		}

		fmt.Printf("castkit %s (commit %s, built %s)\n", Version, Commit, BuildDate)
		if Verbose() {
			fmt.Printf("  go:       %s\n", runtime.Version())
			fmt.Printf("  platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
			fmt.Printf("  storage:  %s\n", storage)
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
