package assist

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const defaultModel = "gemini-2.0-flash"

// Client asks Gemini for recovery decisions, selector suggestions and
// result interpretations. A nil *Client is valid and means no assistant
// is configured; the engine then skips every AI tier.
type Client struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

// NewClient creates an assist client.
func NewClient(ctx context.Context, apiKey, model string, logger *zap.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("assist API key is required")
	}
	if model == "" {
		model = defaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Client{client: client, model: model, logger: logger}, nil
}

var decisionSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"recoverable": {Type: genai.TypeBoolean},
		"action": {
			Type: genai.TypeString,
			Enum: []string{
				string(ActionRetry), string(ActionWaitAndRetry), string(ActionFillField),
				string(ActionClickButton), string(ActionDismissDialog), string(ActionNavigate),
				string(ActionSkip), string(ActionAbort),
			},
		},
		"action_details": {
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"field":        {Type: genai.TypeString},
				"value":        {Type: genai.TypeString},
				"button":       {Type: genai.TypeString},
				"url":          {Type: genai.TypeString},
				"wait_seconds": {Type: genai.TypeInteger},
			},
		},
		"reasoning": {Type: genai.TypeString},
	},
	Required: []string{"recoverable", "action"},
}

var suggestionSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"selector":   {Type: genai.TypeString},
		"field_name": {Type: genai.TypeString},
		"reasoning":  {Type: genai.TypeString},
	},
	Required: []string{"selector"},
}

var interpretationSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"success":    {Type: genai.TypeBoolean},
		"confidence": {Type: genai.TypeNumber},
		"reference":  {Type: genai.TypeString},
		"message":    {Type: genai.TypeString},
	},
	Required: []string{"success", "confidence"},
}

func (c *Client) generate(ctx context.Context, prompt string, schema *genai.Schema) ([]byte, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   schema,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	return []byte(resp.Text()), nil
}

// DecideRecovery asks whether a failed step can be recovered and how.
// The snapshot is the serialized page state at the moment of failure.
// Any failure to obtain or parse a response collapses to abort.
func (c *Client) DecideRecovery(ctx context.Context, errMsg, snapshotJSON string) RecoveryDecision {
	if c == nil {
		return abortDecision("no assistant configured")
	}
	prompt := fmt.Sprintf(`A browser automation step against a customs declaration portal failed.

Error: %s

Page state snapshot:
%s

Decide whether the step is recoverable and, if so, pick exactly one action from:
retry, wait_and_retry, fill_missing_field, click_button, dismiss_dialog, navigate, skip, abort.
Fill action_details with only the operands the action needs.`, errMsg, snapshotJSON)

	raw, err := c.generate(ctx, prompt, decisionSchema)
	if err != nil {
		c.logger.Warn("recovery decision request failed", zap.Error(err))
		return abortDecision("assistant unavailable: " + err.Error())
	}
	d := ParseDecision(raw)
	c.logger.Info("recovery decision",
		zap.Bool("recoverable", d.Recoverable),
		zap.String("action", string(d.Action)),
		zap.String("reasoning", d.Reasoning))
	return d
}

// SuggestSelector proposes a locator for a field whose configured
// selectors all failed, grounded in the form-field snapshot. The caller
// must verify the proposal resolves before using it.
func (c *Client) SuggestSelector(ctx context.Context, field, snapshotJSON string) (SelectorSuggestion, bool) {
	if c == nil {
		return SelectorSuggestion{}, false
	}
	prompt := fmt.Sprintf(`Every configured selector for the form field %q failed to resolve on a customs portal page.

Visible form fields:
%s

Propose one CSS selector (or exact field name) for the element that most likely corresponds to %q.`,
		field, snapshotJSON, field)

	raw, err := c.generate(ctx, prompt, suggestionSchema)
	if err != nil {
		c.logger.Warn("selector suggestion request failed", zap.Error(err))
		return SelectorSuggestion{}, false
	}
	return ParseSuggestion(raw)
}

// InterpretResult reads an ambiguous result page and returns a best
// effort verdict with a confidence score. Never returns an error; the
// degraded zero-confidence failure stands in for one.
func (c *Client) InterpretResult(ctx context.Context, snapshotJSON string) ResultInterpretation {
	if c == nil {
		return ResultInterpretation{Success: false, Confidence: 0, Message: "no assistant configured"}
	}
	prompt := fmt.Sprintf(`A customs declaration was submitted through a web portal. The result page is ambiguous.

Page state snapshot:
%s

Judge whether the submission succeeded. Extract a confirmation/reference number if one is present.
Report your confidence between 0 and 1.`, snapshotJSON)

	raw, err := c.generate(ctx, prompt, interpretationSchema)
	if err != nil {
		c.logger.Warn("result interpretation request failed", zap.Error(err))
		return ResultInterpretation{Success: false, Confidence: 0, Message: err.Error()}
	}
	return ParseInterpretation(raw)
}
