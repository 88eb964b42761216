package assist

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quotelane/quotelane/pkg/config"
	"github.com/quotelane/quotelane/pkg/logging"
	"github.com/quotelane/quotelane/pkg/snapshot"
)

func testSnapshot() *snapshot.Snapshot {
	return &snapshot.Snapshot{
		URL:   "https://quote.carrier.example/about-you",
		Title: "About you",
		Elements: []snapshot.Element{
			{Tag: "input", Attrs: map[string]string{"type": "text", "name": "fname", "id": "applicant-first"}},
			{Tag: "input", Attrs: map[string]string{"type": "text", "name": "lname"}},
			{Tag: "select", Attrs: map[string]string{"name": "state-code"}},
			{Tag: "button", Attrs: map[string]string{"type": "submit"}},
		},
	}
}

// fakeCompletions serves a canned chat-completions reply and records the
// last prompt it saw.
func fakeCompletions(t *testing.T, reply string) (*httptest.Server, *string) {
	t.Helper()
	var lastPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		for _, m := range req.Messages {
			if m.Role == "user" {
				lastPrompt = m.Content
			}
		}
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]interface{}{
			"id":     "chatcmpl-test",
			"object": "chat.completion",
			"model":  "gpt-4o-mini",
			"choices": []map[string]interface{}{
				{
					"index":         0,
					"finish_reason": "stop",
					"message":       map[string]interface{}{"role": "assistant", "content": reply},
				},
			},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(srv.Close)
	return srv, &lastPrompt
}

func discardLogger(t *testing.T) *logging.Logger {
	t.Helper()
	logger, _ := logging.NewLogger("assist-test")
	t.Cleanup(func() { _ = logger.Close() })
	return logger
}

func testAdvisor(t *testing.T, srv *httptest.Server, maxTokens int) *Advisor {
	t.Helper()
	client := openai.NewClient(
		option.WithBaseURL(srv.URL),
		option.WithAPIKey("test-key"),
	)
	return newWithClient(client, "gpt-4o-mini", maxTokens, discardLogger(t))
}

func TestSuggestSelector(t *testing.T) {
	srv, prompt := fakeCompletions(t, "#applicant-first")
	a := testAdvisor(t, srv, 6000)

	sel, err := a.SuggestSelector(context.Background(), testSnapshot(), "firstName")
	require.NoError(t, err)
	assert.Equal(t, "#applicant-first", sel)

	assert.Contains(t, *prompt, "Purpose: firstName")
	assert.Contains(t, *prompt, `name="fname"`)
	// Non-form elements never reach the model.
	assert.NotContains(t, *prompt, "button")
}

func TestSuggestSelectorDecline(t *testing.T) {
	srv, _ := fakeCompletions(t, "NONE")
	a := testAdvisor(t, srv, 6000)

	sel, err := a.SuggestSelector(context.Background(), testSnapshot(), "faxNumber")
	require.NoError(t, err)
	assert.Empty(t, sel)
}

func TestPromptTruncation(t *testing.T) {
	srv, prompt := fakeCompletions(t, "NONE")
	a := testAdvisor(t, srv, 1)

	_, err := a.SuggestSelector(context.Background(), testSnapshot(), "firstName")
	require.NoError(t, err)
	assert.Contains(t, *prompt, "truncated")
	assert.NotContains(t, *prompt, "state-code")
}

func TestExtractSelector(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{name: "bare selector", reply: "#zip", want: "#zip"},
		{name: "whitespace", reply: "  input[name=\"zip\"]  \n", want: `input[name="zip"]`},
		{name: "code fence", reply: "```css\n#zip\n```", want: "#zip"},
		{name: "backticks", reply: "`#zip`", want: "#zip"},
		{name: "decline", reply: "NONE", want: ""},
		{name: "lowercase decline", reply: "none", want: ""},
		{name: "empty", reply: "", want: ""},
		{name: "prose answer", reply: "The best selector would probably be #zip because it is unique.", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractSelector(tt.reply))
		})
	}
}

func TestNewDisabled(t *testing.T) {
	a, err := New(config.AssistConfig{Enabled: false}, nil)
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestNewWithoutKey(t *testing.T) {
	t.Setenv("QUOTELANE_TEST_NO_KEY", "")
	a, err := New(config.AssistConfig{Enabled: true, APIKeyEnv: "QUOTELANE_TEST_NO_KEY"}, discardLogger(t))
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestRenderElementFiltersAttrs(t *testing.T) {
	el := snapshot.Element{Tag: "input", Attrs: map[string]string{
		"name":  "zip",
		"value": "secret-prefill",
		"style": "display:block",
	}}
	line := renderElement(el)
	assert.True(t, strings.HasPrefix(line, "<input"))
	assert.Contains(t, line, `name="zip"`)
	// Values and styling are noise (and potentially sensitive).
	assert.NotContains(t, line, "secret-prefill")
	assert.NotContains(t, line, "display:block")
}
