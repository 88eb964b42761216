// Package flow is the orchestration engine: it owns the task lifecycle,
// dispatches classified page states to carrier step handlers, and keeps
// the session store as the single source of truth for task progress.
package flow

import (
	"context"
	"errors"
	"fmt"

	"github.com/quotelane/quotelane/pkg/artifacts"
	"github.com/quotelane/quotelane/pkg/classify"
	"github.com/quotelane/quotelane/pkg/config"
	"github.com/quotelane/quotelane/pkg/logging"
	"github.com/quotelane/quotelane/pkg/resolve"
	"github.com/quotelane/quotelane/pkg/session"
)

var (
	// ErrSessionNotFound means the task ID has no live session. Callers
	// cannot recover by retrying the same call.
	ErrSessionNotFound = errors.New("session not found")

	// ErrUnknownCarrier means no flow is registered under the carrier ID.
	ErrUnknownCarrier = errors.New("unknown carrier")
)

// ContextCleaner releases per-task local browser resources. The local
// driver implements it; remote-side contexts are released through the
// action layer.
type ContextCleaner interface {
	Cleanup(taskID string)
}

// Deps is the engine's explicit dependency set. Everything is injected;
// the engine holds no package-level state.
type Deps struct {
	Store     *session.Store
	Actions   Browser
	Resolver  *resolve.Resolver
	Advisor   SelectorAdvisor
	Artifacts *artifacts.Dir
	Whitelist *config.DomainWhitelist
	Cleaner   ContextCleaner
	Logger    *logging.Logger
}

// Engine drives carrier flows. One engine serves all tasks concurrently;
// per-task state lives only in the session store and the transports.
type Engine struct {
	deps     Deps
	carriers map[string]*Carrier
}

// NewEngine creates an engine with no carriers registered.
func NewEngine(deps Deps) *Engine {
	if deps.Logger == nil {
		deps.Logger, _ = logging.NewLogger("engine")
	}
	return &Engine{
		deps:     deps,
		carriers: make(map[string]*Carrier),
	}
}

// RegisterCarrier adds a carrier flow. Re-registering an ID replaces the
// previous definition.
func (e *Engine) RegisterCarrier(c *Carrier) {
	e.carriers[c.ID] = c
}

// Carriers lists registered carrier IDs.
func (e *Engine) Carriers() []string {
	ids := make([]string, 0, len(e.carriers))
	for id := range e.carriers {
		ids = append(ids, id)
	}
	return ids
}

// Response is the engine's answer to a lifecycle call, mirrored verbatim
// by the HTTP layer.
type Response struct {
	TaskID         string         `json:"task_id"`
	Status         session.Status `json:"status"`
	Step           string         `json:"step,omitempty"`
	RequiredFields []FieldDef     `json:"required_fields,omitempty"`
	Quote          *session.Quote `json:"quote,omitempty"`
	Error          string         `json:"error,omitempty"`
}

// Start begins a task: creates its session, navigates to the carrier's
// entry page and runs the bootstrap handler. The returned response is
// waiting_for_input with the first step's required fields on success.
//
// An unknown carrier is the only non-nil error; everything that happens
// after the session exists is reported through the session's error status
// so the caller can inspect and clean up the task.
func (e *Engine) Start(ctx context.Context, taskID, carrierID string, userData map[string]string) (*Response, error) {
	carrier, ok := e.carriers[carrierID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCarrier, carrierID)
	}

	if e.deps.Whitelist != nil && !e.deps.Whitelist.Allows(carrier.StartURL) {
		return nil, fmt.Errorf("carrier %q start URL %s is not in the allowed domains", carrierID, carrier.StartURL)
	}

	e.deps.Store.Create(taskID, carrierID)
	if len(userData) > 0 {
		e.deps.Store.Update(taskID, session.Update{Answers: userData})
	}
	e.deps.Logger.Infof("task %s: starting carrier %s", taskID, carrierID)

	if res := e.deps.Actions.Navigate(ctx, taskID, carrier.StartURL); !res.Success {
		return e.fail(taskID, carrier, "start", fmt.Sprintf("failed to open carrier page: %s", res.Error)), nil
	}

	// Record which transport ended up serving the task, for observability
	// and remote-side cleanup.
	if tokener, ok := e.deps.Actions.(interface{ RemoteToken() string }); ok {
		if token := tokener.RemoteToken(); token != "" {
			e.deps.Store.Update(taskID, session.Update{RemoteToken: &token})
		}
	}

	sc, err := e.stepContext(ctx, taskID, carrier)
	if err != nil {
		return e.fail(taskID, carrier, "start", err.Error()), nil
	}

	if carrier.Bootstrap == nil {
		return e.dispatch(ctx, sc, carrier)
	}
	outcome, err := carrier.Bootstrap(ctx, sc)
	if err != nil {
		e.captureDiagnostics(ctx, sc, "bootstrap")
		return e.fail(taskID, carrier, "bootstrap", err.Error()), nil
	}
	return e.apply(taskID, outcome), nil
}

// Step advances a task one page. New userData merges into the session's
// answers before any page inspection, then the current page is snapshot,
// probed for a quote, classified and dispatched.
//
// Recoverable failures (unknown page state, handler errors, step budget
// exhausted) set the session to error status and come back as a Response
// with Error set and a nil error. Only a missing session is a non-nil
// error.
func (e *Engine) Step(ctx context.Context, taskID string, userData map[string]string) (*Response, error) {
	sess := e.deps.Store.Get(taskID)
	if sess == nil {
		return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, taskID)
	}

	// Statuses only move forward: a completed or errored task stays that
	// way, and stepping it just reports the terminal state.
	if sess.Status == session.StatusCompleted || sess.Status == session.StatusError {
		return &Response{
			TaskID: sess.TaskID,
			Status: sess.Status,
			Step:   sess.StepName,
			Quote:  sess.Quote,
			Error:  sess.LastError,
		}, nil
	}

	processing := session.StatusProcessing
	sess = e.deps.Store.Update(taskID, session.Update{
		Status:  &processing,
		Answers: userData,
	})
	if sess == nil {
		return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, taskID)
	}

	carrier, ok := e.carriers[sess.Carrier]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCarrier, sess.Carrier)
	}

	sc, err := e.stepContext(ctx, taskID, carrier)
	if err != nil {
		return e.fail(taskID, carrier, "snapshot", err.Error()), nil
	}
	return e.dispatch(ctx, sc, carrier)
}

// dispatch classifies the current snapshot and runs the matching handler.
func (e *Engine) dispatch(ctx context.Context, sc *StepContext, carrier *Carrier) (*Response, error) {
	taskID := sc.TaskID

	// Quote probe runs before classification: carriers sometimes skip
	// straight to results when enough data is prefilled.
	if carrier.ExtractQuote != nil {
		if quote := carrier.ExtractQuote(sc.Snap); quote != nil {
			e.deps.Logger.Infof("task %s: quote extracted: %s %s", taskID, quote.Price, quote.Term)
			return e.apply(taskID, &Outcome{Quote: quote}), nil
		}
	}

	step := classify.StepUnknown
	if carrier.Classifier != nil {
		step = carrier.Classifier.Classify(sc.Snap)
	}
	handler, ok := carrier.Steps[step]
	if step == classify.StepUnknown || !ok {
		e.captureDiagnostics(ctx, sc, "unknown-state")
		msg := fmt.Sprintf("unrecognized page state (url=%s title=%q)", sc.Snap.URL, sc.Snap.Title)
		if step != classify.StepUnknown {
			msg = fmt.Sprintf("no handler for step %q", step)
		}
		return e.fail(taskID, carrier, step, msg), nil
	}

	sess := e.deps.Store.Get(taskID)
	if sess == nil {
		return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, taskID)
	}
	next := sess.StepIndex + 1
	if next > carrier.maxSteps() {
		e.captureDiagnostics(ctx, sc, "step-budget")
		return e.fail(taskID, carrier, step,
			fmt.Sprintf("step budget exhausted after %d steps without reaching a quote", sess.StepIndex)), nil
	}
	e.deps.Store.Update(taskID, session.Update{StepIndex: &next, StepName: &step})
	e.deps.Logger.Infof("task %s: step %d classified as %q", taskID, next, step)

	outcome, err := handler(ctx, sc)
	if err != nil {
		e.captureDiagnostics(ctx, sc, step)
		return e.fail(taskID, carrier, step, err.Error()), nil
	}
	return e.apply(taskID, outcome), nil
}

// Status reports the task's current state without touching the browser.
func (e *Engine) Status(taskID string) (*Response, error) {
	sess := e.deps.Store.Get(taskID)
	if sess == nil {
		return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, taskID)
	}
	return &Response{
		TaskID: sess.TaskID,
		Status: sess.Status,
		Step:   sess.StepName,
		Quote:  sess.Quote,
		Error:  sess.LastError,
	}, nil
}

// Cleanup tears down a task's browser resources and evicts its session.
// It is idempotent and never fails: resource errors are logged, because a
// cleanup run from an error path must not mask the error that caused it.
func (e *Engine) Cleanup(taskID string) {
	if releaser, ok := e.deps.Actions.(interface {
		ReleaseRemote(ctx context.Context, taskID string)
	}); ok {
		releaser.ReleaseRemote(context.Background(), taskID)
	}
	if e.deps.Cleaner != nil {
		e.deps.Cleaner.Cleanup(taskID)
	}
	e.deps.Store.Delete(taskID)
	e.deps.Logger.Infof("task %s: cleaned up", taskID)
}

// stepContext snapshots the current page and builds the handler surface.
func (e *Engine) stepContext(ctx context.Context, taskID string, carrier *Carrier) (*StepContext, error) {
	sess := e.deps.Store.Get(taskID)
	if sess == nil {
		return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, taskID)
	}
	sc := &StepContext{
		TaskID:   taskID,
		Carrier:  carrier,
		Answers:  sess.Answers,
		actions:  e.deps.Actions,
		resolver: e.deps.Resolver,
		advisor:  e.deps.Advisor,
		logger:   e.deps.Logger,
	}
	if err := sc.Refresh(ctx); err != nil {
		return nil, err
	}
	return sc, nil
}

// apply writes an outcome to the session and shapes the response.
func (e *Engine) apply(taskID string, outcome *Outcome) *Response {
	if outcome.Quote != nil {
		completed := session.StatusCompleted
		e.deps.Store.Update(taskID, session.Update{Status: &completed, Quote: outcome.Quote})
		return &Response{TaskID: taskID, Status: completed, Quote: outcome.Quote}
	}

	waiting := session.StatusWaitingForInput
	upd := session.Update{Status: &waiting}
	if outcome.Step != "" {
		upd.StepName = &outcome.Step
	}
	e.deps.Store.Update(taskID, upd)
	return &Response{
		TaskID:         taskID,
		Status:         waiting,
		Step:           outcome.Step,
		RequiredFields: outcome.Fields,
	}
}

// fail records a recoverable task failure and shapes the error response.
func (e *Engine) fail(taskID string, carrier *Carrier, step, msg string) *Response {
	e.deps.Logger.Errorf("task %s: %s", taskID, msg)
	errStatus := session.StatusError
	e.deps.Store.Update(taskID, session.Update{Status: &errStatus, LastError: &msg})
	return &Response{TaskID: taskID, Status: errStatus, Step: step, Error: msg}
}

// captureDiagnostics saves a screenshot and HTML dump of the page the
// engine could not handle. Strictly best effort.
func (e *Engine) captureDiagnostics(ctx context.Context, sc *StepContext, label string) {
	if e.deps.Artifacts == nil {
		return
	}
	carrierID := sc.Carrier.ID

	if res := e.deps.Actions.Screenshot(ctx, sc.TaskID, label); res.Success {
		if _, err := e.deps.Artifacts.SaveScreenshot(carrierID, label, sc.TaskID, res.String("png")); err != nil {
			e.deps.Logger.Warnf("task %s: screenshot artifact failed: %v", sc.TaskID, err)
		}
	} else {
		e.deps.Logger.Warnf("task %s: diagnostic screenshot failed: %s", sc.TaskID, res.Error)
	}

	if sc.rawHTML != "" {
		if _, err := e.deps.Artifacts.SaveHTML(carrierID, label, sc.TaskID, sc.rawHTML); err != nil {
			e.deps.Logger.Warnf("task %s: html artifact failed: %v", sc.TaskID, err)
		}
	}
}
