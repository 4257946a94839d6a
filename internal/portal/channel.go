package portal

import (
	"context"

	"go.uber.org/zap"
)

// ChannelConfig is the per-country portal configuration.
type ChannelConfig struct {
	Enabled       bool
	BaseURL       string
	LoginURL      string
	SuccessMarker string
	Headless      bool
	ScreenshotDir string
	MaxRetries    int
}

// Channel runs submission jobs against a portal, owning the browser
// lifecycle for each job. One browser per job; always closed.
type Channel struct {
	cfg       ChannelConfig
	assistant Assistant
	logger    *zap.Logger
}

// NewChannel builds a web channel. assistant may be nil.
func NewChannel(cfg ChannelConfig, assistant Assistant, logger *zap.Logger) *Channel {
	return &Channel{cfg: cfg, assistant: assistant, logger: logger}
}

// Submit launches a browser, runs the job pipeline and returns its
// outcome. Browser failures surface as failed outcomes, not panics.
func (c *Channel) Submit(ctx context.Context, job *Job) *Outcome {
	if job.BaseURL == "" {
		job.BaseURL = c.cfg.BaseURL
	}
	if job.LoginURL == "" {
		job.LoginURL = c.cfg.LoginURL
	}
	if job.SuccessMarker == "" {
		job.SuccessMarker = c.cfg.SuccessMarker
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = c.cfg.MaxRetries
	}
	if job.ScreenshotDir == "" {
		job.ScreenshotDir = c.cfg.ScreenshotDir
	}

	driver, err := NewRodDriver(ctx, DriverConfig{Headless: job.Headless || c.cfg.Headless}, c.logger)
	if err != nil {
		outcome := NewOutcome()
		outcome.Message = "browser launch failed: " + err.Error()
		outcome.Errors = append(outcome.Errors, err.Error())
		return outcome
	}
	defer func() {
		if cerr := driver.Close(); cerr != nil {
			c.logger.Warn("browser close failed", zap.Error(cerr))
		}
	}()

	engine := NewEngine(driver, c.assistant, c.logger,
		WithMaxRetries(job.MaxRetries),
		WithScreenshotDir(job.ScreenshotDir))
	return RunJob(ctx, engine, job, c.logger)
}
