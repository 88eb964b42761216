// Package remote implements the Transport interface against a remote
// browser-automation server. One long-lived server-push event channel is
// held per process; commands travel as correlated request/response pairs
// over a side HTTP channel tagged with a locally generated session token.
//
// The remote server is an optional accelerant. Connection failures are
// bounded and reported as "unavailable" so the hybrid layer can fall back
// to the local driver instead of blocking a task.
package remote

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/quotelane/quotelane/pkg/logging"
	"github.com/quotelane/quotelane/pkg/transport"
)

// ErrUnavailable is returned by Connect when every connection attempt has
// been exhausted.
var ErrUnavailable = errors.New("remote automation server unavailable")

const (
	// DefaultConnectRetries bounds initial connection attempts.
	DefaultConnectRetries = 3

	// DefaultRetryBackoff is the fixed delay between connection attempts.
	DefaultRetryBackoff = 2 * time.Second

	// DefaultCommandTimeout bounds one command round trip.
	DefaultCommandTimeout = 30 * time.Second
)

// Options configures a Client.
type Options struct {
	ConnectRetries int
	RetryBackoff   time.Duration
	CommandTimeout time.Duration
	HTTPClient     *http.Client
	Logger         *logging.Logger
}

// Client is the remote transport. Safe for concurrent use by multiple
// tasks: the event channel is shared process-wide and command cross-talk
// is prevented by correlated numeric ids.
type Client struct {
	endpoint       string
	httpClient     *http.Client
	logger         *logging.Logger
	connectRetries int
	retryBackoff   time.Duration
	commandTimeout time.Duration

	// connectMu serializes Connect calls; mu guards only token and
	// cancel so state reads never wait out a connect backoff.
	connectMu sync.Mutex
	mu        sync.Mutex
	token     string
	cancel    context.CancelFunc
	connected atomic.Bool
	nextID    atomic.Int64
}

// New creates a client for the server at endpoint (e.g.
// "http://localhost:8931"). Call Connect before issuing commands.
func New(endpoint string, opts Options) *Client {
	if opts.ConnectRetries <= 0 {
		opts.ConnectRetries = DefaultConnectRetries
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = DefaultRetryBackoff
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = DefaultCommandTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Logger == nil {
		opts.Logger, _ = logging.NewLogger("remote")
	}

	return &Client{
		endpoint:       strings.TrimRight(endpoint, "/"),
		httpClient:     opts.HTTPClient,
		logger:         opts.Logger,
		connectRetries: opts.ConnectRetries,
		retryBackoff:   opts.RetryBackoff,
		commandTimeout: opts.CommandTimeout,
	}
}

// Connect opens the server-push event channel, generating a fresh session
// token locally. Attempts are bounded with a fixed backoff; when they
// exhaust, ErrUnavailable is returned and the client stays disconnected
// rather than blocking callers.
func (c *Client) Connect(ctx context.Context) error {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	if c.connected.Load() {
		return nil
	}

	token := uuid.New().String()
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= c.connectRetries; attempt++ {
		streamCtx, cancel := context.WithCancel(context.Background())
		resp, err := c.openEventStream(ctx, streamCtx, token)
		if err == nil {
			c.mu.Lock()
			c.cancel = cancel
			c.mu.Unlock()
			c.connected.Store(true)
			go c.readEvents(resp.Body)
			c.logger.Infof("connected to remote automation server at %s (session %s)", c.endpoint, token)
			return nil
		}
		cancel()
		lastErr = err
		c.logger.Warnf("remote connect attempt %d/%d failed: %v", attempt, c.connectRetries, err)

		if attempt < c.connectRetries {
			select {
			case <-time.After(c.retryBackoff):
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
			}
		}
	}

	return fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

// openEventStream issues the SSE subscription request. connectCtx bounds
// the dial; streamCtx owns the long-lived body.
func (c *Client) openEventStream(connectCtx, streamCtx context.Context, token string) (*http.Response, error) {
	url := fmt.Sprintf("%s/events?session=%s", c.endpoint, token)
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build event stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("X-Session-Token", token)

	// Honor the caller's connect deadline without tying the stream to it.
	type result struct {
		resp *http.Response
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		resp, err := c.httpClient.Do(req)
		ch <- result{resp, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		if r.resp.StatusCode != http.StatusOK {
			r.resp.Body.Close()
			return nil, fmt.Errorf("event stream returned status %d", r.resp.StatusCode)
		}
		return r.resp, nil
	case <-connectCtx.Done():
		return nil, connectCtx.Err()
	}
}

// readEvents drains the server-push channel until it closes. The channel
// is unidirectional; payloads are informational and only logged. Stream
// termination flips the client to disconnected so the hybrid layer stops
// routing commands here.
func (c *Client) readEvents(body io.ReadCloser) {
	defer body.Close()
	defer func() {
		c.connected.Store(false)
		c.logger.Warnf("remote event channel closed; falling back to local driver until reconnect")
	}()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		c.logger.Debugf("remote event: %s", strings.TrimPrefix(line, "data: "))
	}
}

// Connected reports whether the event channel is live.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Token returns the current session token, empty before Connect.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Close tears down the event channel. Idempotent.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.connected.Store(false)
}

// command is the wire request shape.
type command struct {
	ID     int64                  `json:"id"`
	Method string                 `json:"method"`
	Params map[string]interface{} `json:"params,omitempty"`
}

// response is the wire response shape.
type response struct {
	ID     int64                  `json:"id"`
	Result map[string]interface{} `json:"result,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

// call performs one correlated command round trip. Ids are monotonically
// increasing per process, so concurrent tasks never collide.
func (c *Client) call(ctx context.Context, method string, params map[string]interface{}) transport.ActionResult {
	if !c.Connected() {
		return transport.Failf("remote transport not connected")
	}

	cmd := command{
		ID:     c.nextID.Add(1),
		Method: method,
		Params: params,
	}
	body, err := json.Marshal(cmd)
	if err != nil {
		return transport.Failf("failed to encode command: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.commandTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/command", bytes.NewReader(body))
	if err != nil {
		return transport.Failf("failed to build command request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Session-Token", c.Token())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transport.Failf("command transport error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return transport.Failf("command returned status %d", resp.StatusCode)
	}

	var decoded response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return transport.Failf("failed to decode command response: %v", err)
	}
	if decoded.ID != cmd.ID {
		return transport.Failf("response id %d does not match command id %d", decoded.ID, cmd.ID)
	}
	if decoded.Error != "" {
		return transport.ActionResult{Error: decoded.Error}
	}

	return transport.OK(decoded.Result)
}

// Release asks the server to drop the task's browser context. Used by
// task cleanup; failures are reported in the result, never thrown.
func (c *Client) Release(ctx context.Context, taskID string) transport.ActionResult {
	return c.call(ctx, "browser.release", map[string]interface{}{
		"task": taskID,
	})
}

// Navigate implements transport.Transport.
func (c *Client) Navigate(ctx context.Context, taskID, url string) transport.ActionResult {
	return c.call(ctx, "browser.navigate", map[string]interface{}{
		"task": taskID,
		"url":  url,
	})
}

// Click implements transport.Transport.
func (c *Client) Click(ctx context.Context, taskID, description, locator string) transport.ActionResult {
	return c.call(ctx, "browser.click", map[string]interface{}{
		"task":        taskID,
		"description": description,
		"locator":     locator,
	})
}

// Type implements transport.Transport.
func (c *Client) Type(ctx context.Context, taskID, description, locator, text string, opts transport.TypeOptions) transport.ActionResult {
	return c.call(ctx, "browser.type", map[string]interface{}{
		"task":        taskID,
		"description": description,
		"locator":     locator,
		"text":        text,
		"slowly":      opts.Slowly,
		"submit":      opts.Submit,
	})
}

// SelectOption implements transport.Transport.
func (c *Client) SelectOption(ctx context.Context, taskID, description, locator, value string) transport.ActionResult {
	return c.call(ctx, "browser.select_option", map[string]interface{}{
		"task":        taskID,
		"description": description,
		"locator":     locator,
		"value":       value,
	})
}

// Snapshot implements transport.Transport.
func (c *Client) Snapshot(ctx context.Context, taskID string) transport.ActionResult {
	return c.call(ctx, "browser.snapshot", map[string]interface{}{
		"task": taskID,
	})
}

// WaitFor implements transport.Transport.
func (c *Client) WaitFor(ctx context.Context, taskID string, cond transport.WaitCondition) transport.ActionResult {
	return c.call(ctx, "browser.wait_for", map[string]interface{}{
		"task":           taskID,
		"selector":       cond.Selector,
		"state":          cond.State,
		"millis":         cond.Millis,
		"timeout_millis": cond.TimeoutMillis,
	})
}

// Screenshot implements transport.Transport.
func (c *Client) Screenshot(ctx context.Context, taskID, name string) transport.ActionResult {
	return c.call(ctx, "browser.screenshot", map[string]interface{}{
		"task": taskID,
		"name": name,
	})
}
