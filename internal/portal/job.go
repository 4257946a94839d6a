package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
)

// Job actions.
const (
	JobActionSubmit    = "submit"
	JobActionLoginTest = "login_test"
)

// JobCredentials carries the portal login and optional field selector
// overrides.
type JobCredentials struct {
	Username       string            `json:"username"`
	Password       string            `json:"password"`
	FieldSelectors map[string]string `json:"fieldSelectors,omitempty"`
}

// Job is the driver process input contract.
type Job struct {
	Action        string              `json:"action"`
	BaseURL       string              `json:"baseUrl,omitempty"`
	LoginURL      string              `json:"loginUrl,omitempty"`
	Credentials   JobCredentials      `json:"credentials"`
	HeaderData    map[string]string   `json:"headerData,omitempty"`
	FormData      map[string]string   `json:"formData,omitempty"`
	Items         []map[string]string `json:"items,omitempty"`
	Headless      bool                `json:"headless"`
	ScreenshotDir string              `json:"screenshotDir,omitempty"`
	MaxRetries    int                 `json:"maxRetries,omitempty"`
	AIAPIKey      string              `json:"aiApiKey,omitempty"`
	SuccessMarker string              `json:"successMarker,omitempty"`
}

// Validate checks the job is runnable.
func (j *Job) Validate() error {
	switch j.Action {
	case JobActionSubmit, JobActionLoginTest:
	default:
		return fmt.Errorf("unknown job action %q", j.Action)
	}
	if j.LoginURL == "" && j.BaseURL == "" {
		return fmt.Errorf("job needs a loginUrl or baseUrl")
	}
	if j.Credentials.Username == "" || j.Credentials.Password == "" {
		return fmt.Errorf("job credentials incomplete")
	}
	return nil
}

// LoadJob reads a job description from a JSON file ("-" for stdin).
func LoadJob(path string) (*Job, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read job: %w", err)
	}
	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse job: %w", err)
	}
	if err := j.Validate(); err != nil {
		return nil, err
	}
	return &j, nil
}

// RunJob executes a job end to end: build the step pipeline, run it,
// validate the result page and assemble the process output.
func RunJob(ctx context.Context, e *Engine, job *Job, logger *zap.Logger) *Outcome {
	steps := BuildSteps(e, job)
	outcome := e.Run(ctx, steps)
	if !outcome.Success {
		return outcome
	}
	if job.Action == JobActionLoginTest {
		outcome.Message = "login succeeded"
		return outcome
	}

	snap := CaptureSnapshot(ctx, e.driver)
	validator := NewValidator(ValidationConfig{SuccessMarker: job.SuccessMarker}, e.assistant, logger)
	verdict := validator.Validate(ctx, e.driver, snap)

	outcome.Success = verdict.Success
	outcome.Message = verdict.Message
	outcome.ReferenceNumber = verdict.Reference
	outcome.Confidence = verdict.Confidence
	outcome.Logs = append(outcome.Logs, fmt.Sprintf("validation tier %s: success=%v confidence=%.2f",
		verdict.Tier, verdict.Success, verdict.Confidence))
	if !verdict.Success {
		outcome.Errors = append(outcome.Errors, verdict.Message)
	}
	return outcome
}
