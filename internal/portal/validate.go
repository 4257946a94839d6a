package portal

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Verdict is the outcome of result validation. InterpretationUncertainty
// is expressed through Confidence rather than an error.
type Verdict struct {
	Success    bool
	Reference  string
	Message    string
	Confidence float64
	Tier       string
}

// Validation tier names, in precedence order.
const (
	TierMarker    = "success_marker"
	TierPattern   = "reference_pattern"
	TierErrorList = "error_elements"
	TierURL       = "url_heuristic"
	TierAssistant = "assistant"
)

var defaultReferencePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)reference\s*(?:no\.?|number)?\s*[:#]?\s*([A-Z0-9][A-Z0-9/-]{3,})`),
	regexp.MustCompile(`(?i)confirmation\s*(?:no\.?|number)?\s*[:#]?\s*([A-Z0-9][A-Z0-9/-]{3,})`),
	regexp.MustCompile(`(?i)entry\s+(?:no\.?|number)\s*[:#]?\s*([A-Z0-9][A-Z0-9/-]{3,})`),
	regexp.MustCompile(`(?i)declaration\s+(?:accepted|registered).{0,40}?([A-Z0-9][A-Z0-9/-]{3,})`),
}

var defaultSuccessURLHints = []string{"success", "confirm", "complete", "receipt"}

// ValidationConfig tunes the tiered result validation.
type ValidationConfig struct {
	// SuccessMarker is the explicit, unambiguous marker selector. When
	// present on the page it wins over everything else.
	SuccessMarker     string
	ReferencePatterns []string
	SuccessURLHints   []string
}

// Validator decides whether a submission landed, most specific signal
// first.
type Validator struct {
	cfg       ValidationConfig
	patterns  []*regexp.Regexp
	urlHints  []string
	assistant Assistant
	logger    *zap.Logger
}

// NewValidator compiles the validation config. Invalid custom patterns
// are skipped in favor of the defaults.
func NewValidator(cfg ValidationConfig, assistant Assistant, logger *zap.Logger) *Validator {
	v := &Validator{cfg: cfg, assistant: assistant, logger: logger}
	for _, p := range cfg.ReferencePatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			logger.Warn("invalid reference pattern skipped", zap.String("pattern", p), zap.Error(err))
			continue
		}
		v.patterns = append(v.patterns, re)
	}
	if len(v.patterns) == 0 {
		v.patterns = defaultReferencePatterns
	}
	v.urlHints = cfg.SuccessURLHints
	if len(v.urlHints) == 0 {
		v.urlHints = defaultSuccessURLHints
	}
	return v
}

// Validate runs the tiers in order and returns the first conclusive
// verdict. The assistant tier only runs when every deterministic tier
// is inconclusive.
func (v *Validator) Validate(ctx context.Context, d Driver, snap *Snapshot) Verdict {
	// Tier 1: explicit success marker. Wins even when error-class
	// elements are present elsewhere on the page.
	if v.cfg.SuccessMarker != "" {
		if ok, err := d.Has(ctx, v.cfg.SuccessMarker); err == nil && ok {
			ref := v.extractReference(snap.TextExcerpt)
			return Verdict{Success: true, Reference: ref, Message: "success marker present", Confidence: 1, Tier: TierMarker}
		}
	}

	// Tier 2: confirmation/reference phrasing in the page text.
	if ref := v.extractReference(snap.TextExcerpt); ref != "" {
		return Verdict{Success: true, Reference: ref, Message: "reference number found", Confidence: 1, Tier: TierPattern}
	}

	// Tier 3: explicit error elements.
	if len(snap.Errors) > 0 {
		return Verdict{
			Success:    false,
			Message:    strings.Join(snap.Errors, "; "),
			Confidence: 1,
			Tier:       TierErrorList,
		}
	}

	// Tier 4: URL heuristics.
	lowURL := strings.ToLower(snap.URL)
	for _, hint := range v.urlHints {
		if strings.Contains(lowURL, hint) {
			return Verdict{Success: true, Message: "url indicates " + hint, Confidence: 0.75, Tier: TierURL}
		}
	}

	// Tier 5: assistant interpretation, confidence-scored.
	if v.assistant != nil {
		interp := v.assistant.InterpretResult(ctx, snap.JSON())
		return Verdict{
			Success:    interp.Success,
			Reference:  interp.Reference,
			Message:    interp.Message,
			Confidence: interp.Confidence,
			Tier:       TierAssistant,
		}
	}

	return Verdict{Success: false, Message: "result page inconclusive", Confidence: 0, Tier: TierAssistant}
}

func (v *Validator) extractReference(text string) string {
	for _, re := range v.patterns {
		if m := re.FindStringSubmatch(text); len(m) > 1 {
			return m[1]
		}
	}
	return ""
}
