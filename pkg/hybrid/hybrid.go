// Package hybrid wraps every browser primitive with remote-first,
// local-fallback execution. The remote automation server is an optional
// accelerant: when it is down, unreachable or mid-flight-failing, the local
// Playwright driver transparently takes over. Callers observe only "the
// action succeeded or it did not" — never which transport performed it.
package hybrid

import (
	"context"

	"github.com/quotelane/quotelane/pkg/logging"
	"github.com/quotelane/quotelane/pkg/transport"
)

// RemoteTransport is a Transport that can report its connection state. The
// hybrid layer only routes to it while it claims to be connected.
type RemoteTransport interface {
	transport.Transport
	Connected() bool
}

// Actions is the hybrid action layer. remote may be nil when the process
// runs local-only.
type Actions struct {
	remote RemoteTransport
	local  transport.Transport
	logger *logging.Logger
}

// New creates the hybrid layer over the two transports. local must be
// non-nil; remote is optional.
func New(remote RemoteTransport, local transport.Transport, logger *logging.Logger) *Actions {
	if logger == nil {
		logger, _ = logging.NewLogger("hybrid")
	}
	return &Actions{
		remote: remote,
		local:  local,
		logger: logger,
	}
}

// do runs the primitive remotely when possible, falling back to the local
// driver on any remote failure. The fallback is silent to the caller apart
// from a logged warning.
func (a *Actions) do(name, taskID string,
	remoteFn func(RemoteTransport) transport.ActionResult,
	localFn func(transport.Transport) transport.ActionResult,
) transport.ActionResult {
	if a.remote != nil && a.remote.Connected() {
		res := remoteFn(a.remote)
		if res.Success {
			return res
		}
		a.logger.Warnf("remote %s failed for task %s (%s); falling back to local driver", name, taskID, res.Error)
	}
	return localFn(a.local)
}

// Navigate performs a hybrid navigation.
func (a *Actions) Navigate(ctx context.Context, taskID, url string) transport.ActionResult {
	return a.do("navigate", taskID,
		func(r RemoteTransport) transport.ActionResult { return r.Navigate(ctx, taskID, url) },
		func(l transport.Transport) transport.ActionResult { return l.Navigate(ctx, taskID, url) },
	)
}

// Click performs a hybrid click.
func (a *Actions) Click(ctx context.Context, taskID, description, locator string) transport.ActionResult {
	return a.do("click", taskID,
		func(r RemoteTransport) transport.ActionResult {
			return r.Click(ctx, taskID, description, locator)
		},
		func(l transport.Transport) transport.ActionResult {
			return l.Click(ctx, taskID, description, locator)
		},
	)
}

// Type performs hybrid text entry.
func (a *Actions) Type(ctx context.Context, taskID, description, locator, text string, opts transport.TypeOptions) transport.ActionResult {
	return a.do("type", taskID,
		func(r RemoteTransport) transport.ActionResult {
			return r.Type(ctx, taskID, description, locator, text, opts)
		},
		func(l transport.Transport) transport.ActionResult {
			return l.Type(ctx, taskID, description, locator, text, opts)
		},
	)
}

// SelectOption performs a hybrid option selection.
func (a *Actions) SelectOption(ctx context.Context, taskID, description, locator, value string) transport.ActionResult {
	return a.do("select_option", taskID,
		func(r RemoteTransport) transport.ActionResult {
			return r.SelectOption(ctx, taskID, description, locator, value)
		},
		func(l transport.Transport) transport.ActionResult {
			return l.SelectOption(ctx, taskID, description, locator, value)
		},
	)
}

// Snapshot captures the current page state through whichever transport is
// available.
func (a *Actions) Snapshot(ctx context.Context, taskID string) transport.ActionResult {
	return a.do("snapshot", taskID,
		func(r RemoteTransport) transport.ActionResult { return r.Snapshot(ctx, taskID) },
		func(l transport.Transport) transport.ActionResult { return l.Snapshot(ctx, taskID) },
	)
}

// WaitFor performs a hybrid wait.
func (a *Actions) WaitFor(ctx context.Context, taskID string, cond transport.WaitCondition) transport.ActionResult {
	return a.do("wait_for", taskID,
		func(r RemoteTransport) transport.ActionResult { return r.WaitFor(ctx, taskID, cond) },
		func(l transport.Transport) transport.ActionResult { return l.WaitFor(ctx, taskID, cond) },
	)
}

// Screenshot captures a diagnostic screenshot.
func (a *Actions) Screenshot(ctx context.Context, taskID, name string) transport.ActionResult {
	return a.do("screenshot", taskID,
		func(r RemoteTransport) transport.ActionResult { return r.Screenshot(ctx, taskID, name) },
		func(l transport.Transport) transport.ActionResult { return l.Screenshot(ctx, taskID, name) },
	)
}

// ReleaseRemote asks the remote server to drop the task's browser context
// during cleanup. Best effort: failures are logged, and local contexts are
// the local driver's responsibility.
func (a *Actions) ReleaseRemote(ctx context.Context, taskID string) {
	type releaser interface {
		Release(ctx context.Context, taskID string) transport.ActionResult
	}
	if a.remote == nil || !a.remote.Connected() {
		return
	}
	r, ok := a.remote.(releaser)
	if !ok {
		return
	}
	if res := r.Release(ctx, taskID); !res.Success {
		a.logger.Warnf("remote release failed for task %s: %s", taskID, res.Error)
	}
}

// RemoteToken returns the remote session token when the remote transport
// is live, for recording on task sessions. Empty otherwise.
func (a *Actions) RemoteToken() string {
	type tokener interface{ Token() string }
	if a.remote != nil && a.remote.Connected() {
		if t, ok := a.remote.(tokener); ok {
			return t.Token()
		}
	}
	return ""
}
