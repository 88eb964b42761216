package flow

import (
	"context"
	"fmt"
	"strings"

	"github.com/quotelane/quotelane/pkg/classify"
	"github.com/quotelane/quotelane/pkg/logging"
	"github.com/quotelane/quotelane/pkg/resolve"
	"github.com/quotelane/quotelane/pkg/session"
	"github.com/quotelane/quotelane/pkg/snapshot"
	"github.com/quotelane/quotelane/pkg/transport"
)

// DefaultMaxSteps bounds how many handler dispatches a task may consume
// before the engine refuses to loop further.
const DefaultMaxSteps = 15

// Handler executes one form step: fill fields, advance the page, report
// what comes next.
type Handler func(ctx context.Context, sc *StepContext) (*Outcome, error)

// QuoteExtractor inspects a snapshot for a finished quote. Returning nil
// means "not a results page".
type QuoteExtractor func(snap *snapshot.Snapshot) *session.Quote

// Carrier is one insurance carrier's flow definition: a bounded state
// machine expressed as a step-handler table plus the classifier that picks
// which handler runs. There is no per-carrier type hierarchy — carriers
// differ only in data.
type Carrier struct {
	ID       string
	Name     string
	StartURL string
	MaxSteps int

	Classifier *classify.Classifier
	Steps      map[string]Handler

	// Fields are per-step field-definition factories; the outcome of a
	// step names the next step and carries that step's definitions.
	Fields map[string]func() []FieldDef

	// Bootstrap runs once after the initial navigation: it performs any
	// pre-form entry (zip code teasers, "start my quote" buttons) and
	// returns the first waiting_for_input outcome.
	Bootstrap Handler

	// ExtractQuote is probed before classification on every step; some
	// carriers land on results pages unexpectedly early.
	ExtractQuote QuoteExtractor
}

func (c *Carrier) maxSteps() int {
	if c.MaxSteps > 0 {
		return c.MaxSteps
	}
	return DefaultMaxSteps
}

func (c *Carrier) fieldsFor(step string) []FieldDef {
	if factory, ok := c.Fields[step]; ok {
		return factory()
	}
	return nil
}

// Advance is the common tail of a step handler: click continue, let the
// page settle, re-snapshot, then report either the extracted quote or the
// next step with its required fields. Landing on a page the classifier
// does not recognize is an error so the engine captures diagnostics.
func (c *Carrier) Advance(ctx context.Context, sc *StepContext) (*Outcome, error) {
	if err := sc.ClickContinue(ctx); err != nil {
		return nil, err
	}
	sc.WaitMillis(ctx, 750)
	if err := sc.Refresh(ctx); err != nil {
		return nil, err
	}

	if c.ExtractQuote != nil {
		if quote := c.ExtractQuote(sc.Snap); quote != nil {
			return &Outcome{Quote: quote}, nil
		}
	}

	next := classify.StepUnknown
	if c.Classifier != nil {
		next = c.Classifier.Classify(sc.Snap)
	}
	if next == classify.StepUnknown {
		return nil, fmt.Errorf("advanced to unrecognized page (url=%s title=%q)", sc.Snap.URL, sc.Snap.Title)
	}
	return &Outcome{Step: next, Fields: c.fieldsFor(next)}, nil
}

// Browser is the slice of the hybrid layer that handlers need. Declared
// here so tests can script it without real transports.
type Browser interface {
	Navigate(ctx context.Context, taskID, url string) transport.ActionResult
	Click(ctx context.Context, taskID, description, locator string) transport.ActionResult
	Type(ctx context.Context, taskID, description, locator, text string, opts transport.TypeOptions) transport.ActionResult
	SelectOption(ctx context.Context, taskID, description, locator, value string) transport.ActionResult
	Snapshot(ctx context.Context, taskID string) transport.ActionResult
	WaitFor(ctx context.Context, taskID string, cond transport.WaitCondition) transport.ActionResult
	Screenshot(ctx context.Context, taskID, name string) transport.ActionResult
}

// SelectorAdvisor is the optional model-guided discovery hook consulted
// when both resolver strategies miss.
type SelectorAdvisor interface {
	SuggestSelector(ctx context.Context, snap *snapshot.Snapshot, purpose string) (string, error)
}

// StepContext is the working surface a handler sees: the task's merged
// answers plus field-level operations that compose the resolver, the
// hybrid action layer and the advisor.
type StepContext struct {
	TaskID  string
	Carrier *Carrier

	// Answers is the merged map of everything the user has supplied so
	// far; the engine merges new data before any handler runs.
	Answers map[string]string

	// Snap is the snapshot the engine classified. Handlers may refresh it
	// with Refresh after advancing the page.
	Snap *snapshot.Snapshot

	actions  Browser
	resolver *resolve.Resolver
	advisor  SelectorAdvisor
	logger   *logging.Logger

	// rawHTML is the unparsed markup behind Snap, kept for diagnostics.
	rawHTML string
}

// Answer returns the user-supplied value for a purpose, "" when absent.
// Lookup tolerates case variants ("zipCode" vs "zipcode") because callers
// name fields by their own conventions.
func (sc *StepContext) Answer(purpose string) string {
	if v, ok := sc.Answers[purpose]; ok {
		return v
	}
	for k, v := range sc.Answers {
		if strings.EqualFold(k, purpose) {
			return v
		}
	}
	return ""
}

// Refresh recaptures and reparses the current page.
func (sc *StepContext) Refresh(ctx context.Context) error {
	res := sc.actions.Snapshot(ctx, sc.TaskID)
	if !res.Success {
		return fmt.Errorf("snapshot failed: %s", res.Error)
	}
	snap, err := snapshot.Parse(res.String("url"), res.String("html"))
	if err != nil {
		return err
	}
	snap.Title = res.String("title")
	sc.Snap = snap
	sc.rawHTML = res.String("html")
	return nil
}

// locate resolves a purpose to a selector using the full strategy chain:
// candidate table, keyword discovery, then the model advisor when wired.
// The element is zero-valued when only the advisor knew the answer.
func (sc *StepContext) locate(ctx context.Context, purpose string) (string, snapshot.Element, error) {
	if res, ok := sc.resolver.Locate(sc.Snap, purpose); ok {
		return res.Selector, res.Element, nil
	}
	if sc.advisor != nil {
		sel, err := sc.advisor.SuggestSelector(ctx, sc.Snap, purpose)
		if err == nil && sel != "" {
			sc.logger.Infof("task %s: purpose %q resolved by advisor: %s", sc.TaskID, purpose, sel)
			return sel, snapshot.Element{}, nil
		}
		if err != nil {
			sc.logger.Warnf("task %s: advisor failed for %q: %v", sc.TaskID, purpose, err)
		}
	}
	return "", snapshot.Element{}, fmt.Errorf("no element found for field %q", purpose)
}

func selectorTag(selector string) string {
	for _, tag := range []string{"select", "textarea", "input", "button"} {
		if strings.HasPrefix(selector, tag) {
			return tag
		}
	}
	return ""
}

// Fill enters the user's answer for a purpose into the page. A missing
// answer is skipped silently — optional fields stay untouched. A
// resolution miss after all strategies is a hard error for this step.
func (sc *StepContext) Fill(ctx context.Context, purpose string) error {
	value := sc.Answer(purpose)
	if value == "" {
		return nil
	}
	return sc.FillValue(ctx, purpose, value)
}

// FillValue enters an explicit value for a purpose.
func (sc *StepContext) FillValue(ctx context.Context, purpose, value string) error {
	sel, el, err := sc.locate(ctx, purpose)
	if err != nil {
		return err
	}

	var res transport.ActionResult
	if selectorTag(sel) == "select" || el.Tag == "select" {
		res = sc.actions.SelectOption(ctx, sc.TaskID, purpose, sel, value)
	} else {
		res = sc.actions.Type(ctx, sc.TaskID, purpose, sel, value, transport.TypeOptions{})
	}
	if !res.Success {
		return fmt.Errorf("failed to fill %q: %s", purpose, res.Error)
	}
	return nil
}

// FillAll fills every listed purpose that has an answer.
func (sc *StepContext) FillAll(ctx context.Context, purposes ...string) error {
	for _, p := range purposes {
		if err := sc.Fill(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// ClickContinue advances past the current step. A disabled continue
// control is a carrier-site error surfaced with a descriptive message.
func (sc *StepContext) ClickContinue(ctx context.Context) error {
	sel, el, err := sc.locate(ctx, "continue")
	if err != nil {
		return fmt.Errorf("continue control not found: %w", err)
	}
	if _, disabled := el.Attrs["disabled"]; disabled {
		return fmt.Errorf("continue control is disabled; the carrier page likely rejected a field value")
	}

	if res := sc.actions.Click(ctx, sc.TaskID, "continue", sel); !res.Success {
		return fmt.Errorf("failed to click continue: %s", res.Error)
	}
	return nil
}

// WaitMillis pauses for page settling after an advance.
func (sc *StepContext) WaitMillis(ctx context.Context, millis float64) {
	sc.actions.WaitFor(ctx, sc.TaskID, transport.WaitCondition{Millis: millis})
}

// WaitForSelector blocks until the selector is visible or the bounded
// timeout expires.
func (sc *StepContext) WaitForSelector(ctx context.Context, selector string, timeoutMillis float64) error {
	res := sc.actions.WaitFor(ctx, sc.TaskID, transport.WaitCondition{
		Selector:      selector,
		TimeoutMillis: timeoutMillis,
	})
	if !res.Success {
		return fmt.Errorf("wait for %q failed: %s", selector, res.Error)
	}
	return nil
}
