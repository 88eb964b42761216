// Package assist is the model-guided fallback for field resolution: when
// the candidate table and the keyword scan both miss, the page's form
// structure is sent to an OpenAI-compatible model which proposes a CSS
// selector. It is strictly optional — the engine runs identically without
// it, just with a narrower resolution chain.
package assist

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/pkoukk/tiktoken-go"

	"github.com/quotelane/quotelane/pkg/config"
	"github.com/quotelane/quotelane/pkg/logging"
	"github.com/quotelane/quotelane/pkg/snapshot"
)

const systemPrompt = `You are a form-automation assistant. Given the form elements of a web page and the semantic purpose of a field, reply with exactly one CSS selector that targets the matching element. Reply with the selector only: no explanation, no markdown, no quotes. If no element matches, reply with the single word NONE.`

// Advisor proposes selectors for purposes the deterministic resolver
// cannot place.
type Advisor struct {
	client    openai.Client
	model     string
	maxTokens int
	logger    *logging.Logger
}

// New builds an advisor from config. It returns nil (and no error) when
// assist is disabled or the API key environment variable is unset, so
// callers can wire the result straight through.
func New(cfg config.AssistConfig, logger *logging.Logger) (*Advisor, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		if logger != nil {
			logger.Warnf("assist enabled but %s is unset; selector assist disabled", cfg.APIKeyEnv)
		}
		return nil, nil
	}
	if logger == nil {
		var err error
		logger, err = logging.NewLogger("assist")
		if err != nil {
			return nil, err
		}
	}
	return &Advisor{
		client:    openai.NewClient(option.WithAPIKey(key)),
		model:     cfg.Model,
		maxTokens: cfg.MaxPromptTokens,
		logger:    logger,
	}, nil
}

// newWithClient wires a preconfigured client, for tests against a fake
// endpoint.
func newWithClient(client openai.Client, model string, maxTokens int, logger *logging.Logger) *Advisor {
	return &Advisor{client: client, model: model, maxTokens: maxTokens, logger: logger}
}

// SuggestSelector asks the model which element serves the purpose. An
// empty selector with a nil error means the model declined.
func (a *Advisor) SuggestSelector(ctx context.Context, snap *snapshot.Snapshot, purpose string) (string, error) {
	prompt := a.buildPrompt(snap, purpose)

	resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(a.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(0),
	})
	if err != nil {
		return "", fmt.Errorf("selector assist request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("selector assist returned no choices")
	}

	selector := extractSelector(resp.Choices[0].Message.Content)
	if selector == "" {
		a.logger.Debugf("assist declined purpose %q", purpose)
		return "", nil
	}
	a.logger.Debugf("assist proposed %q for purpose %q", selector, purpose)
	return selector, nil
}

// buildPrompt renders the page's form elements one per line, truncated to
// the configured token budget so an oversized page cannot blow the request.
func (a *Advisor) buildPrompt(snap *snapshot.Snapshot, purpose string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Purpose: %s\nPage title: %s\nForm elements:\n", purpose, snap.Title)

	budget := a.maxTokens
	if budget <= 0 {
		budget = 6000
	}
	used := countTokens(a.model, b.String())

	for _, el := range snap.FormElements() {
		line := renderElement(el)
		cost := countTokens(a.model, line)
		if used+cost > budget {
			b.WriteString("(remaining elements truncated)\n")
			break
		}
		b.WriteString(line)
		used += cost
	}
	return b.String()
}

func renderElement(el snapshot.Element) string {
	var b strings.Builder
	b.WriteString("<" + el.Tag)
	for _, attr := range []string{"type", "name", "id", "placeholder", "aria-label", "class"} {
		if v := el.Attr(attr); v != "" {
			fmt.Fprintf(&b, " %s=%q", attr, v)
		}
	}
	b.WriteString(">\n")
	return b.String()
}

// extractSelector normalizes a model reply into a bare selector. Models
// occasionally wrap answers in code fences or quotes despite instructions.
func extractSelector(reply string) string {
	s := strings.TrimSpace(reply)
	s = strings.TrimPrefix(s, "```css")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.Trim(s, "`\"' \n")
	if s == "" || strings.EqualFold(s, "NONE") {
		return ""
	}
	// A selector is one token; a sentence means the model ignored the
	// format and the answer is unusable.
	if strings.ContainsAny(s, "\n") || len(strings.Fields(s)) > 3 {
		return ""
	}
	return s
}

// countTokens measures text against the model's tokenizer, falling back to
// a byte heuristic when the encoding is unavailable offline.
func countTokens(model, text string) int {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
	}
	if err != nil {
		return len(text) / 4
	}
	return len(enc.Encode(text, nil, nil))
}
