// Package portal drives legacy customs web portals through a browser.
// The engine runs an ordered step pipeline with bounded retries, falls
// back across selectors when elements move, and asks a configured
// assistant for recovery decisions when deterministic handling fails.
package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// FormField describes one visible form control on the page.
type FormField struct {
	Name     string `json:"name"`
	ID       string `json:"id,omitempty"`
	Type     string `json:"type,omitempty"`
	Value    string `json:"value,omitempty"`
	Required bool   `json:"required,omitempty"`
	Disabled bool   `json:"disabled,omitempty"`
	Label    string `json:"label,omitempty"`
}

// Driver is the behavioral contract the engine needs from a browser.
// The rod implementation is the production driver; tests use a fake.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	WaitStable(ctx context.Context) error
	Has(ctx context.Context, selector string) (bool, error)
	Fill(ctx context.Context, selector, value string) error
	Select(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	DismissDialog(ctx context.Context) error
	ElementsText(ctx context.Context, selector string) ([]string, error)
	FormFields(ctx context.Context) ([]FormField, error)
	VisibleText(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	URL(ctx context.Context) (string, error)
	Screenshot(ctx context.Context, path string) error
	Close() error
}

// DriverConfig holds browser settings.
type DriverConfig struct {
	Headless            bool
	ViewportWidth       int
	ViewportHeight      int
	NavigationTimeoutMs int
}

// NavigationTimeout returns the navigation timeout.
func (c DriverConfig) NavigationTimeout() time.Duration {
	if c.NavigationTimeoutMs == 0 {
		return 30 * time.Second
	}
	return time.Duration(c.NavigationTimeoutMs) * time.Millisecond
}

func (c DriverConfig) viewportWidth() int {
	if c.ViewportWidth == 0 {
		return 1920
	}
	return c.ViewportWidth
}

func (c DriverConfig) viewportHeight() int {
	if c.ViewportHeight == 0 {
		return 1080
	}
	return c.ViewportHeight
}

// RodDriver drives a Chrome instance through go-rod.
type RodDriver struct {
	cfg     DriverConfig
	browser *rod.Browser
	page    *rod.Page
	logger  *zap.Logger
}

// NewRodDriver launches a browser and opens a blank page.
func NewRodDriver(ctx context.Context, cfg DriverConfig, logger *zap.Logger) (*RodDriver, error) {
	controlURL, err := launcher.New().Headless(cfg.Headless).Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("create page: %w", err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             cfg.viewportWidth(),
		Height:            cfg.viewportHeight(),
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		logger.Warn("failed to set viewport", zap.Error(err))
	}

	return &RodDriver{cfg: cfg, browser: browser, page: page, logger: logger}, nil
}

// Navigate loads a URL and waits for the load event.
func (d *RodDriver) Navigate(ctx context.Context, url string) error {
	page := d.page.Context(ctx).Timeout(d.cfg.NavigationTimeout())
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return page.WaitLoad()
}

// WaitStable waits until the page stops mutating. Legacy portals
// re-render whole tables after postbacks, so settle before reading.
func (d *RodDriver) WaitStable(ctx context.Context) error {
	return d.page.Context(ctx).Timeout(d.cfg.NavigationTimeout()).WaitStable(500 * time.Millisecond)
}

// Has reports whether a selector resolves to an element.
func (d *RodDriver) Has(ctx context.Context, selector string) (bool, error) {
	has, _, err := d.page.Context(ctx).Has(selector)
	if err != nil {
		return false, err
	}
	return has, nil
}

// Fill types a value into an input, replacing its current content.
func (d *RodDriver) Fill(ctx context.Context, selector, value string) error {
	el, err := d.page.Context(ctx).Element(selector)
	if err != nil {
		return fmt.Errorf("element not found: %w", err)
	}
	if err := el.SelectAllText(); err == nil {
		_ = el.Type(input.Backspace)
	}
	return el.Input(value)
}

// Select chooses a dropdown option by its visible text.
func (d *RodDriver) Select(ctx context.Context, selector, value string) error {
	el, err := d.page.Context(ctx).Element(selector)
	if err != nil {
		return fmt.Errorf("element not found: %w", err)
	}
	return el.Select([]string{value}, true, rod.SelectorTypeText)
}

// Click left-clicks an element.
func (d *RodDriver) Click(ctx context.Context, selector string) error {
	el, err := d.page.Context(ctx).Element(selector)
	if err != nil {
		return fmt.Errorf("element not found: %w", err)
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

// DismissDialog sends Escape, which closes the portals' modal dialogs.
func (d *RodDriver) DismissDialog(ctx context.Context) error {
	return d.page.Context(ctx).Keyboard.Press(input.Escape)
}

// ElementsText returns the text of every visible element matching the
// selector.
func (d *RodDriver) ElementsText(ctx context.Context, selector string) ([]string, error) {
	els, err := d.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, el := range els {
		visible, err := el.Visible()
		if err != nil || !visible {
			continue
		}
		text, err := el.Text()
		if err != nil || text == "" {
			continue
		}
		out = append(out, text)
	}
	return out, nil
}

// FormFields collects the visible form controls with their state.
func (d *RodDriver) FormFields(ctx context.Context) ([]FormField, error) {
	res, err := d.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS: `
		() => {
			const fields = [];
			for (const el of document.querySelectorAll('input, select, textarea')) {
				const style = window.getComputedStyle(el);
				if (style.display === 'none' || style.visibility === 'hidden') continue;
				if (el.type === 'hidden') continue;
				let label = '';
				if (el.id) {
					const lab = document.querySelector('label[for="' + el.id + '"]');
					if (lab) label = lab.textContent.trim();
				}
				fields.push({
					name: el.name || '',
					id: el.id || '',
					type: el.type || el.tagName.toLowerCase(),
					value: el.value || '',
					required: !!el.required,
					disabled: !!el.disabled,
					label: label,
				});
			}
			return fields;
		}
		`,
		ByValue: true,
	})
	if err != nil || res == nil {
		return nil, fmt.Errorf("collect form fields: %w", err)
	}

	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal form fields: %w", err)
	}
	var fields []FormField
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode form fields: %w", err)
	}
	return fields, nil
}

// VisibleText returns the page body text.
func (d *RodDriver) VisibleText(ctx context.Context) (string, error) {
	el, err := d.page.Context(ctx).Element("body")
	if err != nil {
		return "", err
	}
	return el.Text()
}

// HTML returns the page's full markup.
func (d *RodDriver) HTML(ctx context.Context) (string, error) {
	return d.page.Context(ctx).HTML()
}

// URL returns the page's current URL.
func (d *RodDriver) URL(ctx context.Context) (string, error) {
	info, err := d.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

// Screenshot writes a viewport capture to path.
func (d *RodDriver) Screenshot(ctx context.Context, path string) error {
	data, err := d.page.Context(ctx).Screenshot(false, nil)
	if err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Close shuts the browser down.
func (d *RodDriver) Close() error {
	if d.page != nil {
		_ = d.page.Close()
	}
	if d.browser != nil {
		return d.browser.Close()
	}
	return nil
}
