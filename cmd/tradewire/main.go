package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tradewire/internal/config"
	"tradewire/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "tradewire",
	Short: "tradewire - customs declaration submission engine",
	Long: `tradewire submits customs declarations to government systems over
two channels: fixed-field batch files delivered by FTP, and a driven
browser session against a web portal with AI-assisted recovery.

Every attempt is recorded in an append-only submission history with the
exact payload that was sent.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg.Logging, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "tradewire.yaml", "path to config file")

	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(retryCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(recordsCmd)
	rootCmd.AddCommand(testCredentialCmd)
	rootCmd.AddCommand(driveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
