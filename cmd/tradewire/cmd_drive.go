package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tradewire/internal/assist"
	"tradewire/internal/portal"
)

var driveCmd = &cobra.Command{
	Use:   "drive <job.json>",
	Short: "Run one portal job as a standalone process",
	Long: `Drive reads a JSON job description ("-" for stdin), runs it against
the portal in its own browser and writes the outcome as JSON to stdout.
The exit code is 0 when the job succeeded and 1 otherwise, so callers
can treat drive as a black-box subprocess.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		job, err := portal.LoadJob(args[0])
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		var assistant portal.Assistant
		if job.AIAPIKey != "" {
			client, err := assist.NewClient(ctx, job.AIAPIKey, "", logger)
			if err != nil {
				logger.Warn("assistant unavailable, running without recovery", zap.Error(err))
			} else {
				assistant = client
			}
		}

		driver, err := portal.NewRodDriver(ctx, portal.DriverConfig{Headless: job.Headless}, logger)
		outcome := portal.NewOutcome()
		if err != nil {
			outcome.Message = "browser launch failed: " + err.Error()
			outcome.Errors = append(outcome.Errors, err.Error())
		} else {
			defer driver.Close()
			var opts []portal.EngineOption
			if job.MaxRetries > 0 {
				opts = append(opts, portal.WithMaxRetries(job.MaxRetries))
			}
			if job.ScreenshotDir != "" {
				opts = append(opts, portal.WithScreenshotDir(job.ScreenshotDir))
			}
			engine := portal.NewEngine(driver, assistant, logger, opts...)
			outcome = portal.RunJob(ctx, engine, job, logger)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(outcome); err != nil {
			return err
		}
		if !outcome.Success {
			_ = logger.Sync()
			os.Exit(1)
		}
		return nil
	},
}
