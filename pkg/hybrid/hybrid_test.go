package hybrid

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quotelane/quotelane/pkg/transport"
)

// stubTransport records calls and plays back canned results.
type stubTransport struct {
	calls   []string
	results map[string]transport.ActionResult
}

func newStub() *stubTransport {
	return &stubTransport{results: make(map[string]transport.ActionResult)}
}

func (s *stubTransport) record(name string) transport.ActionResult {
	s.calls = append(s.calls, name)
	if res, ok := s.results[name]; ok {
		return res
	}
	return transport.OK(nil)
}

func (s *stubTransport) Navigate(ctx context.Context, taskID, url string) transport.ActionResult {
	return s.record("navigate")
}
func (s *stubTransport) Click(ctx context.Context, taskID, description, locator string) transport.ActionResult {
	return s.record("click")
}
func (s *stubTransport) Type(ctx context.Context, taskID, description, locator, text string, opts transport.TypeOptions) transport.ActionResult {
	return s.record("type")
}
func (s *stubTransport) SelectOption(ctx context.Context, taskID, description, locator, value string) transport.ActionResult {
	return s.record("select_option")
}
func (s *stubTransport) Snapshot(ctx context.Context, taskID string) transport.ActionResult {
	return s.record("snapshot")
}
func (s *stubTransport) WaitFor(ctx context.Context, taskID string, cond transport.WaitCondition) transport.ActionResult {
	return s.record("wait_for")
}
func (s *stubTransport) Screenshot(ctx context.Context, taskID, name string) transport.ActionResult {
	return s.record("screenshot")
}

// stubRemote is a stubTransport that also reports connection state.
type stubRemote struct {
	stubTransport
	connected bool
	token     string
}

func (s *stubRemote) Connected() bool { return s.connected }
func (s *stubRemote) Token() string   { return s.token }

func TestRemoteUsedWhenConnected(t *testing.T) {
	remote := &stubRemote{connected: true}
	remote.results = map[string]transport.ActionResult{
		"navigate": transport.OK(map[string]interface{}{"url": "https://carrier.example"}),
	}
	local := newStub()
	actions := New(remote, local, nil)

	res := actions.Navigate(context.Background(), "t1", "https://carrier.example")

	require.True(t, res.Success)
	assert.Equal(t, "https://carrier.example", res.String("url"))
	assert.Equal(t, []string{"navigate"}, remote.calls)
	assert.Empty(t, local.calls)
}

func TestLocalInvokedExactlyOnceWhenRemoteNotConnected(t *testing.T) {
	remote := &stubRemote{connected: false}
	local := newStub()
	local.results = map[string]transport.ActionResult{
		"click": transport.OK(map[string]interface{}{"url": "https://carrier.example/next"}),
	}
	actions := New(remote, local, nil)

	res := actions.Click(context.Background(), "t1", "continue", "#continue")

	// The local result is returned verbatim; remote is never touched.
	require.True(t, res.Success)
	assert.Equal(t, "https://carrier.example/next", res.String("url"))
	assert.Empty(t, remote.calls)
	assert.Equal(t, []string{"click"}, local.calls)
}

func TestFallbackOnRemoteFailure(t *testing.T) {
	remote := &stubRemote{connected: true}
	remote.results = map[string]transport.ActionResult{
		"type": transport.Failf("remote timeout"),
	}
	local := newStub()
	actions := New(remote, local, nil)

	res := actions.Type(context.Background(), "t1", "zip field", "#zip", "12345", transport.TypeOptions{})

	require.True(t, res.Success)
	assert.Equal(t, []string{"type"}, remote.calls)
	assert.Equal(t, []string{"type"}, local.calls)
}

func TestLocalFailureSurfaces(t *testing.T) {
	local := newStub()
	local.results = map[string]transport.ActionResult{
		"snapshot": transport.Failf("page crashed"),
	}
	actions := New(nil, local, nil)

	res := actions.Snapshot(context.Background(), "t1")

	assert.False(t, res.Success)
	assert.Equal(t, "page crashed", res.Error)
}

func TestNilRemoteGoesStraightToLocal(t *testing.T) {
	local := newStub()
	actions := New(nil, local, nil)

	for _, call := range []func() transport.ActionResult{
		func() transport.ActionResult { return actions.Navigate(context.Background(), "t1", "u") },
		func() transport.ActionResult { return actions.WaitFor(context.Background(), "t1", transport.WaitCondition{}) },
		func() transport.ActionResult { return actions.Screenshot(context.Background(), "t1", "n") },
		func() transport.ActionResult {
			return actions.SelectOption(context.Background(), "t1", "d", "l", "v")
		},
	} {
		assert.True(t, call().Success)
	}
	assert.Equal(t, []string{"navigate", "wait_for", "screenshot", "select_option"}, local.calls)
}

// releasingRemote additionally supports per-task context release.
type releasingRemote struct {
	stubRemote
	released []string
}

func (s *releasingRemote) Release(_ context.Context, taskID string) transport.ActionResult {
	s.released = append(s.released, taskID)
	return transport.OK(nil)
}

func TestReleaseRemote(t *testing.T) {
	remote := &releasingRemote{stubRemote: stubRemote{connected: true}}
	actions := New(remote, newStub(), nil)

	actions.ReleaseRemote(context.Background(), "t1")
	assert.Equal(t, []string{"t1"}, remote.released)

	// Disconnected remote is skipped entirely.
	remote.connected = false
	actions.ReleaseRemote(context.Background(), "t1")
	assert.Equal(t, []string{"t1"}, remote.released)

	// A remote without release support and a nil remote are both no-ops.
	New(&stubRemote{connected: true}, newStub(), nil).ReleaseRemote(context.Background(), "t1")
	New(nil, newStub(), nil).ReleaseRemote(context.Background(), "t1")
}

func TestRemoteToken(t *testing.T) {
	remote := &stubRemote{connected: true, token: "tok-1"}
	actions := New(remote, newStub(), nil)
	assert.Equal(t, "tok-1", actions.RemoteToken())

	remote.connected = false
	assert.Empty(t, actions.RemoteToken())

	assert.Empty(t, New(nil, newStub(), nil).RemoteToken())
}
