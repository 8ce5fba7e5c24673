package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"textwarden/internal/config"
	"textwarden/internal/logging"
)

var (
	// Global flags
	configPath string
	verbose    bool
	hostID     string

	cfg  config.Config
	logs *logging.Factory
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "warden",
	Short: "textwarden - position resolution and format-preserving replacement",
	Long: `textwarden maps logical text ranges to on-screen rectangles in editing
surfaces it does not own, and applies accepted corrections through the
clipboard without destroying the surrounding formatting.

The engine treats the host application as foreign territory: every answer
is re-derived from a live query, and replacement aborts rather than risk
mutating text that no longer matches what was analyzed.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if configPath != "" {
			cfg, err = config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
		} else {
			cfg = config.Default()
		}
		if verbose {
			cfg.Logging.DebugMode = true
		}
		logs, err = logging.NewFactory(cfg.Logging)
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logs != nil {
			logs.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to warden.yaml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&hostID, "host", "", "host profile to apply (bundle id or app name)")

	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(zonesCmd)
	rootCmd.AddCommand(replaceCmd)
	rootCmd.AddCommand(pickleCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
