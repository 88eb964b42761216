package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quotelane/quotelane/pkg/classify"
	"github.com/quotelane/quotelane/pkg/flow"
	"github.com/quotelane/quotelane/pkg/resolve"
	"github.com/quotelane/quotelane/pkg/session"
	"github.com/quotelane/quotelane/pkg/snapshot"
	"github.com/quotelane/quotelane/pkg/transport"
)

// stubBrowser serves two pages: a form page, then a results page after the
// continue control is clicked.
type stubBrowser struct {
	onResults bool
}

const formHTML = `<html><head><title>About you</title></head><body><form>
<input name="firstName"/><input name="lastName"/>
<button type="submit">Continue</button>
</form></body></html>`

const resultsHTML = `<html><head><title>Done</title></head><body>
<h1>Your quote is ready</h1><p>$88.00 /month</p>
</body></html>`

func (s *stubBrowser) Navigate(context.Context, string, string) transport.ActionResult {
	s.onResults = false
	return transport.OK(nil)
}

func (s *stubBrowser) Click(_ context.Context, _, description, _ string) transport.ActionResult {
	if description == "continue" {
		s.onResults = true
	}
	return transport.OK(nil)
}

func (s *stubBrowser) Type(context.Context, string, string, string, string, transport.TypeOptions) transport.ActionResult {
	return transport.OK(nil)
}

func (s *stubBrowser) SelectOption(context.Context, string, string, string, string) transport.ActionResult {
	return transport.OK(nil)
}

func (s *stubBrowser) Snapshot(context.Context, string) transport.ActionResult {
	if s.onResults {
		return transport.OK(map[string]interface{}{
			"url": "https://quote.example/results", "title": "Done", "html": resultsHTML,
		})
	}
	return transport.OK(map[string]interface{}{
		"url": "https://quote.example/about-you", "title": "About you", "html": formHTML,
	})
}

func (s *stubBrowser) WaitFor(context.Context, string, transport.WaitCondition) transport.ActionResult {
	return transport.OK(nil)
}

func (s *stubBrowser) Screenshot(context.Context, string, string) transport.ActionResult {
	return transport.OK(map[string]interface{}{"png": ""})
}

func apiCarrier() *flow.Carrier {
	c := &flow.Carrier{
		ID:       "testco",
		Name:     "Test Co",
		StartURL: "https://quote.example/start",
		Classifier: classify.New().
			WithURL("/about-you", flow.StepPersonalInfo),
		ExtractQuote: func(snap *snapshot.Snapshot) *session.Quote {
			if !snap.ContainsText("your quote is ready") {
				return nil
			}
			return &session.Quote{Carrier: "testco", Price: "$88.00", Term: "month"}
		},
		Fields: map[string]func() []flow.FieldDef{
			flow.StepPersonalInfo: func() []flow.FieldDef {
				return []flow.FieldDef{
					{Name: "firstName", Label: "First name", Kind: flow.KindText, Required: true},
					{Name: "lastName", Label: "Last name", Kind: flow.KindText, Required: true},
				}
			},
		},
	}
	c.Bootstrap = func(ctx context.Context, sc *flow.StepContext) (*flow.Outcome, error) {
		return &flow.Outcome{Step: flow.StepPersonalInfo, Fields: c.Fields[flow.StepPersonalInfo]()}, nil
	}
	c.Steps = map[string]flow.Handler{
		flow.StepPersonalInfo: func(ctx context.Context, sc *flow.StepContext) (*flow.Outcome, error) {
			if err := sc.FillAll(ctx, "firstName", "lastName"); err != nil {
				return nil, err
			}
			return c.Advance(ctx, sc)
		},
	}
	return c
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	engine := flow.NewEngine(flow.Deps{
		Store:    session.NewStore(),
		Actions:  &stubBrowser{},
		Resolver: resolve.New(),
	})
	engine.RegisterCarrier(apiCarrier())
	return New(engine, nil)
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec, body := doJSON(t, s, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestCarriers(t *testing.T) {
	s := newTestServer(t)
	rec, body := doJSON(t, s, http.MethodGet, "/carriers", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body["carriers"], "testco")
}

func TestTaskLifecycle(t *testing.T) {
	s := newTestServer(t)

	rec, body := doJSON(t, s, http.MethodPost, "/tasks/t1/start", map[string]interface{}{
		"carrier": "testco",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "waiting_for_input", body["status"])
	assert.Equal(t, "personal_info", body["step"])
	fields, ok := body["required_fields"].([]interface{})
	require.True(t, ok)
	require.Len(t, fields, 2)

	rec, body = doJSON(t, s, http.MethodPost, "/tasks/t1/step", map[string]interface{}{
		"user_data": map[string]string{"firstName": "Ada", "lastName": "Lovelace"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "completed", body["status"])
	quote, ok := body["quote"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "$88.00", quote["price"])

	rec, body = doJSON(t, s, http.MethodGet, "/tasks/t1/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "completed", body["status"])

	rec, body = doJSON(t, s, http.MethodPost, "/tasks/t1/cleanup", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Contains(t, body["message"], "t1")

	rec, _ = doJSON(t, s, http.MethodGet, "/tasks/t1/status", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartRequiresCarrier(t *testing.T) {
	s := newTestServer(t)
	rec, body := doJSON(t, s, http.MethodPost, "/tasks/t1/start", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "carrier is required")
}

func TestStartUnknownCarrier(t *testing.T) {
	s := newTestServer(t)
	rec, body := doJSON(t, s, http.MethodPost, "/tasks/t1/start", map[string]interface{}{
		"carrier": "ghost",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "unknown carrier")
}

func TestStepUnknownTask(t *testing.T) {
	s := newTestServer(t)
	rec, body := doJSON(t, s, http.MethodPost, "/tasks/ghost/step", map[string]interface{}{
		"user_data": map[string]string{},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, body["error"], "session not found")
}

func TestInvalidBody(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/tasks/t1/start", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCleanupIsIdempotentOverHTTP(t *testing.T) {
	s := newTestServer(t)
	for i := 0; i < 2; i++ {
		rec, body := doJSON(t, s, http.MethodPost, "/tasks/never-started/cleanup", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, body["success"])
	}
}
