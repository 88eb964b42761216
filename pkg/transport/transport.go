// Package transport defines the primitive browser-action interface shared
// by the remote automation client and the local Playwright driver. Every
// primitive returns an ActionResult; errors never cross this boundary as
// Go errors, so callers branch on one shape regardless of which transport
// executed the action.
package transport

import (
	"context"
	"fmt"
)

// ActionResult is the uniform outcome of a primitive action.
type ActionResult struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// OK builds a successful result carrying optional data.
func OK(data map[string]interface{}) ActionResult {
	return ActionResult{Success: true, Data: data}
}

// Fail builds a failed result from an error.
func Fail(err error) ActionResult {
	return ActionResult{Error: err.Error()}
}

// Failf builds a failed result from a format string.
func Failf(format string, args ...interface{}) ActionResult {
	return ActionResult{Error: fmt.Sprintf(format, args...)}
}

// String returns the named data field as a string, or "" when absent or of
// another type.
func (r ActionResult) String(key string) string {
	if r.Data == nil {
		return ""
	}
	s, _ := r.Data[key].(string)
	return s
}

// TypeOptions tunes text entry.
type TypeOptions struct {
	// Slowly types character by character instead of setting the value in
	// one call. Some carrier widgets only validate on per-key events.
	Slowly bool `json:"slowly,omitempty"`

	// Submit presses Enter after the text is entered.
	Submit bool `json:"submit,omitempty"`
}

// WaitCondition describes what WaitFor blocks on. Exactly one of Selector
// or Millis should be set; State qualifies Selector waits.
type WaitCondition struct {
	// Selector waits for an element to reach State.
	Selector string `json:"selector,omitempty"`

	// State is "visible" (default), "hidden", "attached" or "detached".
	State string `json:"state,omitempty"`

	// Millis sleeps for a fixed duration instead of watching an element.
	Millis float64 `json:"millis,omitempty"`

	// TimeoutMillis bounds selector waits. Zero means the driver default.
	TimeoutMillis float64 `json:"timeout_millis,omitempty"`
}

// Transport executes primitive browser actions on behalf of one task. The
// taskID scopes the action to that task's isolated browser context.
type Transport interface {
	// Navigate loads the URL and waits for the page to settle.
	Navigate(ctx context.Context, taskID, url string) ActionResult

	// Click clicks the element at locator. description is a human-readable
	// label used only for logging and error messages.
	Click(ctx context.Context, taskID, description, locator string) ActionResult

	// Type enters text into the element at locator.
	Type(ctx context.Context, taskID, description, locator, text string, opts TypeOptions) ActionResult

	// SelectOption chooses a value in a select element.
	SelectOption(ctx context.Context, taskID, description, locator, value string) ActionResult

	// Snapshot returns the current page state: data keys "url", "title"
	// and "html".
	Snapshot(ctx context.Context, taskID string) ActionResult

	// WaitFor blocks until the condition holds or times out.
	WaitFor(ctx context.Context, taskID string, cond WaitCondition) ActionResult

	// Screenshot captures the page; data key "png" holds base64 image
	// bytes. name is a diagnostic label.
	Screenshot(ctx context.Context, taskID, name string) ActionResult
}
