// Package assist wraps the Gemini API for the bounded recovery
// decisions the automation engine is allowed to ask for. Every response
// is parsed against a strict schema; anything that does not parse is
// treated as a non-recoverable abort.
package assist

import (
	"encoding/json"
)

// RecoveryAction is the fixed vocabulary the engine accepts. Any value
// outside this set fails closed.
type RecoveryAction string

const (
	ActionRetry         RecoveryAction = "retry"
	ActionWaitAndRetry  RecoveryAction = "wait_and_retry"
	ActionFillField     RecoveryAction = "fill_missing_field"
	ActionClickButton   RecoveryAction = "click_button"
	ActionDismissDialog RecoveryAction = "dismiss_dialog"
	ActionNavigate      RecoveryAction = "navigate"
	ActionSkip          RecoveryAction = "skip"
	ActionAbort         RecoveryAction = "abort"
)

var validActions = map[RecoveryAction]bool{
	ActionRetry:         true,
	ActionWaitAndRetry:  true,
	ActionFillField:     true,
	ActionClickButton:   true,
	ActionDismissDialog: true,
	ActionNavigate:      true,
	ActionSkip:          true,
	ActionAbort:         true,
}

// ActionDetails carries the operands for the chosen action. Only the
// fields relevant to the action are set.
type ActionDetails struct {
	Field       string `json:"field,omitempty"`
	Value       string `json:"value,omitempty"`
	Button      string `json:"button,omitempty"`
	URL         string `json:"url,omitempty"`
	WaitSeconds int    `json:"wait_seconds,omitempty"`
}

// RecoveryDecision is the engine-facing verdict on a failed step.
type RecoveryDecision struct {
	Recoverable   bool           `json:"recoverable"`
	Action        RecoveryAction `json:"action"`
	ActionDetails ActionDetails  `json:"action_details,omitempty"`
	Reasoning     string         `json:"reasoning,omitempty"`
}

// abortDecision is what every malformed response degrades to.
func abortDecision(reason string) RecoveryDecision {
	return RecoveryDecision{Recoverable: false, Action: ActionAbort, Reasoning: reason}
}

// ParseDecision decodes a model response into a RecoveryDecision. It
// fails closed: unparseable JSON, unknown actions, or an abort action
// flagged recoverable all collapse to a non-recoverable abort.
func ParseDecision(raw []byte) RecoveryDecision {
	var d RecoveryDecision
	if err := json.Unmarshal(raw, &d); err != nil {
		return abortDecision("unparseable recovery response")
	}
	if !validActions[d.Action] {
		return abortDecision("recovery action outside vocabulary: " + string(d.Action))
	}
	if d.Action == ActionAbort {
		d.Recoverable = false
	}
	if !d.Recoverable {
		d.Action = ActionAbort
	}
	return d
}

// SelectorSuggestion is a proposed element locator for a field whose
// configured selectors all failed. The engine must verify the proposal
// resolves before trusting it.
type SelectorSuggestion struct {
	Selector  string `json:"selector"`
	FieldName string `json:"field_name,omitempty"`
	Reasoning string `json:"reasoning,omitempty"`
}

// ParseSuggestion decodes a selector suggestion; an empty selector
// yields ok=false.
func ParseSuggestion(raw []byte) (SelectorSuggestion, bool) {
	var s SelectorSuggestion
	if err := json.Unmarshal(raw, &s); err != nil {
		return SelectorSuggestion{}, false
	}
	if s.Selector == "" && s.FieldName == "" {
		return SelectorSuggestion{}, false
	}
	return s, true
}

// ResultInterpretation is the last-resort read of an ambiguous result
// page, carrying a confidence instead of a hard verdict.
type ResultInterpretation struct {
	Success    bool    `json:"success"`
	Confidence float64 `json:"confidence"`
	Reference  string  `json:"reference,omitempty"`
	Message    string  `json:"message,omitempty"`
}

// ParseInterpretation decodes a result interpretation. Malformed
// responses degrade to a zero-confidence failure rather than an error.
func ParseInterpretation(raw []byte) ResultInterpretation {
	var r ResultInterpretation
	if err := json.Unmarshal(raw, &r); err != nil {
		return ResultInterpretation{Success: false, Confidence: 0, Message: "unparseable interpretation"}
	}
	if r.Confidence < 0 {
		r.Confidence = 0
	}
	if r.Confidence > 1 {
		r.Confidence = 1
	}
	return r
}
