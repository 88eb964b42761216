// Package local implements the Transport interface directly against
// Playwright. Each task owns an isolated browser context created lazily on
// first use and torn down on cleanup, so concurrent tasks never share
// cookies, storage or pages.
package local

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/quotelane/quotelane/pkg/logging"
	"github.com/quotelane/quotelane/pkg/transport"
)

// Default driver settings.
const (
	DefaultTimeout        = 30000.0 // milliseconds
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 720
	DefaultMaxContexts    = 5
	DefaultIdleTimeout    = 10 * time.Minute
)

// Options configures the driver.
type Options struct {
	Headless       bool
	ViewportWidth  int
	ViewportHeight int
	TimeoutMillis  float64
	MaxContexts    int
	IdleTimeout    time.Duration
	Logger         *logging.Logger
}

// taskContext is one task's isolated browser context.
type taskContext struct {
	context    playwright.BrowserContext
	page       playwright.Page
	lastUsedAt time.Time
}

// Driver executes browser primitives through a pooled Playwright runtime.
// The runtime and the shared browser process start lazily on the first
// action; per-task contexts are created on demand and released by Cleanup.
type Driver struct {
	opts   Options
	logger *logging.Logger

	mu          sync.Mutex
	pw          *playwright.Playwright
	browser     playwright.Browser
	contexts    map[string]*taskContext
	initialized bool
}

// New creates a driver. No browser resources are allocated until the first
// action arrives.
func New(opts Options) *Driver {
	if opts.ViewportWidth <= 0 {
		opts.ViewportWidth = DefaultViewportWidth
	}
	if opts.ViewportHeight <= 0 {
		opts.ViewportHeight = DefaultViewportHeight
	}
	if opts.TimeoutMillis <= 0 {
		opts.TimeoutMillis = DefaultTimeout
	}
	if opts.MaxContexts <= 0 {
		opts.MaxContexts = DefaultMaxContexts
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.Logger == nil {
		opts.Logger, _ = logging.NewLogger("local-driver")
	}

	return &Driver{
		opts:     opts,
		logger:   opts.Logger,
		contexts: make(map[string]*taskContext),
	}
}

// initLocked starts the Playwright runtime and the shared browser process.
// Caller holds d.mu.
func (d *Driver) initLocked() error {
	if d.initialized {
		return nil
	}

	// Output is discarded so driver installation chatter never reaches the
	// API process's stdout.
	runOpts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}

	if err := playwright.Install(runOpts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: &d.opts.Headless,
	})
	if err != nil {
		pw.Stop()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	d.pw = pw
	d.browser = browser
	d.initialized = true
	return nil
}

// pageFor returns the task's page, creating its context lazily.
func (d *Driver) pageFor(taskID string) (playwright.Page, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if tc, ok := d.contexts[taskID]; ok {
		tc.lastUsedAt = time.Now()
		return tc.page, nil
	}

	if len(d.contexts) >= d.opts.MaxContexts {
		return nil, fmt.Errorf("maximum number of browser contexts (%d) reached", d.opts.MaxContexts)
	}

	if err := d.initLocked(); err != nil {
		return nil, err
	}

	browserCtx, err := d.browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  d.opts.ViewportWidth,
			Height: d.opts.ViewportHeight,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	page, err := browserCtx.NewPage()
	if err != nil {
		browserCtx.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(d.opts.TimeoutMillis)

	d.contexts[taskID] = &taskContext{
		context:    browserCtx,
		page:       page,
		lastUsedAt: time.Now(),
	}
	d.logger.Debugf("created browser context for task %s", taskID)
	return page, nil
}

// Navigate implements transport.Transport.
func (d *Driver) Navigate(ctx context.Context, taskID, url string) transport.ActionResult {
	page, err := d.pageFor(taskID)
	if err != nil {
		return transport.Fail(err)
	}

	if _, err := page.Goto(url, playwright.PageGotoOptions{WaitUntil: playwright.WaitUntilStateDomcontentloaded}); err != nil {
		return transport.Failf("navigation to %s failed: %v", url, err)
	}

	return transport.OK(map[string]interface{}{"url": page.URL()})
}

// Click implements transport.Transport.
func (d *Driver) Click(ctx context.Context, taskID, description, locator string) transport.ActionResult {
	page, err := d.pageFor(taskID)
	if err != nil {
		return transport.Fail(err)
	}

	if err := page.Click(locator); err != nil {
		return transport.Failf("click on %s (%s) failed: %v", description, locator, err)
	}
	return transport.OK(map[string]interface{}{"url": page.URL()})
}

// Type implements transport.Transport.
func (d *Driver) Type(ctx context.Context, taskID, description, locator, text string, opts transport.TypeOptions) transport.ActionResult {
	page, err := d.pageFor(taskID)
	if err != nil {
		return transport.Fail(err)
	}

	if opts.Slowly {
		delay := 50.0
		if err := page.Locator(locator).PressSequentially(text, playwright.LocatorPressSequentiallyOptions{Delay: &delay}); err != nil {
			return transport.Failf("typing into %s (%s) failed: %v", description, locator, err)
		}
	} else {
		if err := page.Fill(locator, text); err != nil {
			return transport.Failf("filling %s (%s) failed: %v", description, locator, err)
		}
	}

	if opts.Submit {
		if err := page.Locator(locator).Press("Enter"); err != nil {
			return transport.Failf("submitting %s (%s) failed: %v", description, locator, err)
		}
	}
	return transport.OK(nil)
}

// SelectOption implements transport.Transport.
func (d *Driver) SelectOption(ctx context.Context, taskID, description, locator, value string) transport.ActionResult {
	page, err := d.pageFor(taskID)
	if err != nil {
		return transport.Fail(err)
	}

	_, err = page.SelectOption(locator, playwright.SelectOptionValues{
		ValuesOrLabels: &[]string{value},
	})
	if err != nil {
		return transport.Failf("selecting %q in %s (%s) failed: %v", value, description, locator, err)
	}
	return transport.OK(nil)
}

// Snapshot implements transport.Transport.
func (d *Driver) Snapshot(ctx context.Context, taskID string) transport.ActionResult {
	page, err := d.pageFor(taskID)
	if err != nil {
		return transport.Fail(err)
	}

	html, err := page.Content()
	if err != nil {
		return transport.Failf("failed to read page content: %v", err)
	}
	title, err := page.Title()
	if err != nil {
		title = ""
	}

	return transport.OK(map[string]interface{}{
		"url":   page.URL(),
		"title": title,
		"html":  html,
	})
}

// WaitFor implements transport.Transport.
func (d *Driver) WaitFor(ctx context.Context, taskID string, cond transport.WaitCondition) transport.ActionResult {
	page, err := d.pageFor(taskID)
	if err != nil {
		return transport.Fail(err)
	}

	if cond.Selector == "" {
		millis := cond.Millis
		if millis <= 0 {
			millis = 1000
		}
		page.WaitForTimeout(millis)
		return transport.OK(nil)
	}

	waitOpts := playwright.PageWaitForSelectorOptions{}
	if cond.State != "" {
		state := playwright.WaitForSelectorState(cond.State)
		waitOpts.State = &state
	}
	if cond.TimeoutMillis > 0 {
		waitOpts.Timeout = &cond.TimeoutMillis
	}

	if _, err := page.WaitForSelector(cond.Selector, waitOpts); err != nil {
		return transport.Failf("wait for %q failed: %v", cond.Selector, err)
	}
	return transport.OK(nil)
}

// Screenshot implements transport.Transport.
func (d *Driver) Screenshot(ctx context.Context, taskID, name string) transport.ActionResult {
	page, err := d.pageFor(taskID)
	if err != nil {
		return transport.Fail(err)
	}

	fullPage := true
	png, err := page.Screenshot(playwright.PageScreenshotOptions{FullPage: &fullPage})
	if err != nil {
		return transport.Failf("screenshot %q failed: %v", name, err)
	}

	return transport.OK(map[string]interface{}{
		"name": name,
		"png":  base64.StdEncoding.EncodeToString(png),
	})
}

// Cleanup releases the task's browser context. Idempotent: unknown tasks
// are a no-op, and close errors are logged rather than returned so cleanup
// on an error path never masks the original failure.
func (d *Driver) Cleanup(taskID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	tc, ok := d.contexts[taskID]
	if !ok {
		return
	}
	if err := tc.page.Close(); err != nil {
		d.logger.Warnf("closing page for task %s: %v", taskID, err)
	}
	if err := tc.context.Close(); err != nil {
		d.logger.Warnf("closing context for task %s: %v", taskID, err)
	}
	delete(d.contexts, taskID)
	d.logger.Debugf("released browser context for task %s", taskID)
}

// SweepIdle releases contexts that have been idle longer than the
// configured timeout. Intended to run on a ticker from the composition
// root.
func (d *Driver) SweepIdle() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	for taskID, tc := range d.contexts {
		if now.Sub(tc.lastUsedAt) <= d.opts.IdleTimeout {
			continue
		}
		if err := tc.page.Close(); err != nil {
			d.logger.Warnf("closing idle page for task %s: %v", taskID, err)
		}
		if err := tc.context.Close(); err != nil {
			d.logger.Warnf("closing idle context for task %s: %v", taskID, err)
		}
		delete(d.contexts, taskID)
		d.logger.Infof("released idle browser context for task %s", taskID)
	}
}

// ContextCount returns the number of live task contexts.
func (d *Driver) ContextCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.contexts)
}

// Shutdown closes every context, the shared browser and the Playwright
// runtime. Idempotent.
func (d *Driver) Shutdown() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for taskID, tc := range d.contexts {
		tc.page.Close()
		tc.context.Close()
		delete(d.contexts, taskID)
	}

	if !d.initialized {
		return nil
	}

	if d.browser != nil {
		if err := d.browser.Close(); err != nil {
			d.logger.Warnf("closing browser: %v", err)
		}
		d.browser = nil
	}
	if d.pw != nil {
		if err := d.pw.Stop(); err != nil {
			d.initialized = false
			return fmt.Errorf("failed to stop playwright: %w", err)
		}
		d.pw = nil
	}
	d.initialized = false
	return nil
}
