package portal

import (
	"context"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// Selector groups used when snapshotting page state. Legacy portals are
// inconsistent, so each group casts a wide net.
var (
	errorSelectors   = ".error, .alert-danger, .validation-summary-errors, .field-validation-error, .errormsg"
	successSelectors = ".success, .alert-success, .confirmation, .confirmmsg"
	dialogSelectors  = ".modal, [role='dialog'], .ui-dialog, .popup"
)

const textExcerptLimit = 2000

// Snapshot is the structured page state captured when a step fails or
// a result page needs interpretation.
type Snapshot struct {
	URL         string      `json:"url,omitempty"`
	Errors      []string    `json:"errors,omitempty"`
	Successes   []string    `json:"successes,omitempty"`
	Dialogs     []string    `json:"dialogs,omitempty"`
	Fields      []FormField `json:"fields,omitempty"`
	TextExcerpt string      `json:"text_excerpt,omitempty"`
}

// CaptureSnapshot reads the page state through the driver. Capture is
// best effort: a failing probe leaves its section empty instead of
// failing the whole snapshot.
func CaptureSnapshot(ctx context.Context, d Driver) *Snapshot {
	s := &Snapshot{}
	if url, err := d.URL(ctx); err == nil {
		s.URL = url
	}
	if texts, err := d.ElementsText(ctx, errorSelectors); err == nil {
		s.Errors = texts
	}
	if texts, err := d.ElementsText(ctx, successSelectors); err == nil {
		s.Successes = texts
	}
	if texts, err := d.ElementsText(ctx, dialogSelectors); err == nil {
		s.Dialogs = texts
	}
	if fields, err := d.FormFields(ctx); err == nil {
		s.Fields = fields
	}
	text, err := d.VisibleText(ctx)
	if err != nil || strings.TrimSpace(text) == "" {
		// Some portals hide the body behind frames rod cannot read
		// directly; parse the raw markup instead.
		if raw, htmlErr := d.HTML(ctx); htmlErr == nil {
			text = VisibleTextFromHTML(raw)
		}
	}
	s.TextExcerpt = boundExcerpt(text, textExcerptLimit)
	return s
}

// JSON renders the snapshot for the assistant prompt.
func (s *Snapshot) JSON() string {
	data, err := json.Marshal(s)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// boundExcerpt collapses whitespace and caps the excerpt at limit
// runes, so a multi-byte character is never split mid-sequence.
func boundExcerpt(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit])
}

// VisibleTextFromHTML extracts readable text from raw HTML. Used when a
// saved response page needs re-interpretation offline, where no live
// driver is available.
func VisibleTextFromHTML(raw string) string {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return ""
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				b.WriteString(t)
				b.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.TrimSpace(b.String())
}
