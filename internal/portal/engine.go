package portal

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"tradewire/internal/assist"
)

const defaultMaxRetries = 3

// AutomationError is a terminal portal failure: retry budget exhausted
// or a non-recoverable diagnosis.
type AutomationError struct {
	Step      string
	Diagnosis string
	Err       error
}

func (e *AutomationError) Error() string {
	if e.Diagnosis != "" {
		return fmt.Sprintf("automation step %s: %s", e.Step, e.Diagnosis)
	}
	return fmt.Sprintf("automation step %s: %v", e.Step, e.Err)
}

func (e *AutomationError) Unwrap() error { return e.Err }

// Step is one ordered pipeline stage: a description plus its executor.
// Steps are value objects so the retry loop stays independent of what
// any particular step does.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// DecisionLog records one assistant consultation for the job output.
type DecisionLog struct {
	Situation string `json:"situation"`
	Decision  string `json:"decision"`
	Reasoning string `json:"reasoning"`
}

// Outcome accumulates everything a run produced.
type Outcome struct {
	Success         bool          `json:"success"`
	Message         string        `json:"message"`
	ReferenceNumber string        `json:"reference_number,omitempty"`
	Confidence      float64       `json:"confidence,omitempty"`
	Screenshots     []string      `json:"screenshots"`
	Logs            []string      `json:"logs"`
	Decisions       []DecisionLog `json:"ai_decisions"`
	Errors          []string      `json:"errors"`
}

// NewOutcome returns an Outcome whose collections are empty rather
// than nil, so the JSON rendering always emits arrays.
func NewOutcome() *Outcome {
	return &Outcome{
		Screenshots: []string{},
		Logs:        []string{},
		Decisions:   []DecisionLog{},
		Errors:      []string{},
	}
}

// Engine executes step pipelines with bounded retries and AI-assisted
// recovery.
type Engine struct {
	driver        Driver
	assistant     Assistant
	locator       *Locator
	logger        *zap.Logger
	maxRetries    int
	screenshotDir string

	// sleep is swapped out in tests.
	sleep func(time.Duration)

	outcome *Outcome
	shots   int
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMaxRetries sets the per-step attempt budget.
func WithMaxRetries(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxRetries = n
		}
	}
}

// WithScreenshotDir enables failure screenshots.
func WithScreenshotDir(dir string) EngineOption {
	return func(e *Engine) { e.screenshotDir = dir }
}

// NewEngine builds an engine. assistant may be nil, which disables the
// recovery and interpretation tiers: steps then retry blindly within
// budget.
func NewEngine(driver Driver, assistant Assistant, logger *zap.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		driver:     driver,
		assistant:  assistant,
		logger:     logger,
		maxRetries: defaultMaxRetries,
		sleep:      time.Sleep,
	}
	e.locator = NewLocator(driver, assistant, logger)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Locator exposes the engine's field locator to step builders.
func (e *Engine) Locator() *Locator { return e.locator }

// Run executes the steps strictly in order. Each step gets the full
// retry budget. A non-recoverable diagnosis aborts the whole run
// regardless of remaining budget.
func (e *Engine) Run(ctx context.Context, steps []Step) *Outcome {
	e.outcome = NewOutcome()

	for _, step := range steps {
		if err := e.runStep(ctx, step); err != nil {
			e.outcome.Success = false
			e.outcome.Message = err.Error()
			e.outcome.Errors = append(e.outcome.Errors, err.Error())
			return e.outcome
		}
	}

	e.outcome.Success = true
	e.outcome.Message = "all steps completed"
	return e.outcome
}

func (e *Engine) runStep(ctx context.Context, step Step) error {
	var lastErr error

	for attempt := 1; attempt <= e.maxRetries; attempt++ {
		e.logf("step %s attempt %d/%d", step.Name, attempt, e.maxRetries)

		err := step.Run(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		e.logf("step %s failed: %v", step.Name, err)
		e.captureFailure(ctx, step.Name, attempt)

		if e.assistant == nil {
			continue
		}

		snap := CaptureSnapshot(ctx, e.driver)
		decision := e.assistant.DecideRecovery(ctx, err.Error(), snap.JSON())
		e.outcome.Decisions = append(e.outcome.Decisions, DecisionLog{
			Situation: fmt.Sprintf("step %s failed: %v", step.Name, err),
			Decision:  string(decision.Action),
			Reasoning: decision.Reasoning,
		})

		if !decision.Recoverable {
			return &AutomationError{Step: step.Name, Diagnosis: diagnosis(decision), Err: err}
		}
		if decision.Action == assist.ActionSkip {
			e.logf("step %s skipped on assistant advice", step.Name)
			return nil
		}
		if applyErr := e.applyRecovery(ctx, decision); applyErr != nil {
			e.logf("recovery action %s failed: %v", decision.Action, applyErr)
		}
	}

	return &AutomationError{Step: step.Name, Diagnosis: "retry budget exhausted", Err: lastErr}
}

// applyRecovery performs exactly the operation the decision implies,
// then control returns to the attempt loop, consuming one retry.
func (e *Engine) applyRecovery(ctx context.Context, d assist.RecoveryDecision) error {
	switch d.Action {
	case assist.ActionRetry:
		return nil
	case assist.ActionWaitAndRetry:
		wait := d.ActionDetails.WaitSeconds
		if wait <= 0 {
			wait = 5
		}
		e.logf("waiting %ds before retry", wait)
		e.sleep(time.Duration(wait) * time.Second)
		return nil
	case assist.ActionFillField:
		return e.fillNamedField(ctx, d.ActionDetails.Field, d.ActionDetails.Value)
	case assist.ActionClickButton:
		return e.clickNamed(ctx, d.ActionDetails.Button)
	case assist.ActionDismissDialog:
		return e.driver.DismissDialog(ctx)
	case assist.ActionNavigate:
		if d.ActionDetails.URL == "" {
			return fmt.Errorf("navigate action missing url")
		}
		return e.driver.Navigate(ctx, d.ActionDetails.URL)
	default:
		return fmt.Errorf("unexpected recovery action %q", d.Action)
	}
}

func (e *Engine) fillNamedField(ctx context.Context, field, value string) error {
	if field == "" {
		return fmt.Errorf("fill action missing field")
	}
	for _, sel := range []string{field, fmt.Sprintf("[name=%q]", field), "#" + field} {
		if ok, err := e.driver.Has(ctx, sel); err == nil && ok {
			return e.driver.Fill(ctx, sel, value)
		}
	}
	return fmt.Errorf("fill target %q not found", field)
}

func (e *Engine) clickNamed(ctx context.Context, button string) error {
	if button == "" {
		return fmt.Errorf("click action missing button")
	}
	candidates := []string{
		button,
		fmt.Sprintf("[name=%q]", button),
		"#" + button,
		fmt.Sprintf("input[type='submit'][value=%q]", button),
	}
	for _, sel := range candidates {
		if ok, err := e.driver.Has(ctx, sel); err == nil && ok {
			return e.driver.Click(ctx, sel)
		}
	}
	return fmt.Errorf("click target %q not found", button)
}

func (e *Engine) captureFailure(ctx context.Context, step string, attempt int) {
	if e.screenshotDir == "" {
		return
	}
	e.shots++
	path := filepath.Join(e.screenshotDir, fmt.Sprintf("%02d_%s_attempt%d.png", e.shots, step, attempt))
	if err := e.driver.Screenshot(ctx, path); err != nil {
		e.logger.Warn("screenshot failed", zap.Error(err))
		return
	}
	e.outcome.Screenshots = append(e.outcome.Screenshots, path)
}

func (e *Engine) logf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	e.logger.Info(msg)
	if e.outcome != nil {
		e.outcome.Logs = append(e.outcome.Logs, msg)
	}
}

func diagnosis(d assist.RecoveryDecision) string {
	if d.Reasoning != "" {
		return d.Reasoning
	}
	return "assistant diagnosed the failure as non-recoverable"
}
