package portal

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"tradewire/internal/assist"
)

// FieldType tells the locator how to write a value into an element.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldSelect   FieldType = "select"
	FieldCheckbox FieldType = "checkbox"
	FieldDate     FieldType = "date"
)

// FieldMapping binds one declaration field to its target elements. The
// selectors are tried in order; the assistant is consulted only after
// every configured selector has failed.
type FieldMapping struct {
	Field     string
	Selectors []string
	Type      FieldType
	Transform func(string) string
	Default   string
}

// Assistant is the subset of the assist client the engine depends on.
// A nil assistant disables every AI tier.
type Assistant interface {
	DecideRecovery(ctx context.Context, errMsg, snapshotJSON string) assist.RecoveryDecision
	SuggestSelector(ctx context.Context, field, snapshotJSON string) (assist.SelectorSuggestion, bool)
	InterpretResult(ctx context.Context, snapshotJSON string) assist.ResultInterpretation
}

// Locator resolves field mappings against the live page.
type Locator struct {
	driver    Driver
	assistant Assistant
	logger    *zap.Logger
}

// NewLocator builds a locator.
func NewLocator(driver Driver, assistant Assistant, logger *zap.Logger) *Locator {
	return &Locator{driver: driver, assistant: assistant, logger: logger}
}

// Resolve returns the first configured selector that matches an
// element. When all configured selectors fail it asks the assistant for
// a proposal and verifies the proposal actually resolves before
// returning it; an unverifiable proposal is discarded.
func (l *Locator) Resolve(ctx context.Context, m FieldMapping) (string, error) {
	for _, sel := range m.Selectors {
		ok, err := l.driver.Has(ctx, sel)
		if err != nil {
			continue
		}
		if ok {
			return sel, nil
		}
	}

	if l.assistant == nil {
		return "", fmt.Errorf("no selector resolved for field %q", m.Field)
	}

	snap := CaptureSnapshot(ctx, l.driver)
	suggestion, ok := l.assistant.SuggestSelector(ctx, m.Field, snap.JSON())
	if !ok {
		return "", fmt.Errorf("no selector resolved for field %q and no usable suggestion", m.Field)
	}

	for _, candidate := range suggestionCandidates(suggestion) {
		has, err := l.driver.Has(ctx, candidate)
		if err == nil && has {
			l.logger.Info("assistant selector accepted",
				zap.String("field", m.Field),
				zap.String("selector", candidate))
			return candidate, nil
		}
	}
	l.logger.Warn("assistant selector discarded, does not resolve",
		zap.String("field", m.Field),
		zap.String("suggested", suggestion.Selector))
	return "", fmt.Errorf("no selector resolved for field %q (suggestion did not resolve)", m.Field)
}

func suggestionCandidates(s assist.SelectorSuggestion) []string {
	var out []string
	if s.Selector != "" {
		out = append(out, s.Selector)
	}
	if s.FieldName != "" {
		out = append(out,
			fmt.Sprintf("[name=%q]", s.FieldName),
			"#"+s.FieldName,
		)
	}
	return out
}

// Apply writes a value through a mapping: resolve, transform, then fill
// according to the field type. Empty values fall back to the mapping
// default; a still-empty value is a no-op, not an error.
func (l *Locator) Apply(ctx context.Context, m FieldMapping, value string) error {
	if value == "" {
		value = m.Default
	}
	if value == "" {
		return nil
	}
	if m.Transform != nil {
		value = m.Transform(value)
	}

	sel, err := l.Resolve(ctx, m)
	if err != nil {
		return err
	}

	switch m.Type {
	case FieldSelect:
		return l.driver.Select(ctx, sel, value)
	case FieldCheckbox:
		if value == "true" || value == "1" || value == "yes" {
			return l.driver.Click(ctx, sel)
		}
		return nil
	default:
		return l.driver.Fill(ctx, sel, value)
	}
}
