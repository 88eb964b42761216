package session

import "time"

// Status is the lifecycle state of an automation task.
type Status string

const (
	// StatusInitializing means the task exists but carrier bootstrap has
	// not finished yet.
	StatusInitializing Status = "initializing"

	// StatusWaitingForInput means the engine is blocked on user-supplied
	// field values for the current step.
	StatusWaitingForInput Status = "waiting_for_input"

	// StatusProcessing means a step is currently being executed.
	StatusProcessing Status = "processing"

	// StatusCompleted means a quote was extracted. Terminal.
	StatusCompleted Status = "completed"

	// StatusError means the task failed. Terminal except for explicit
	// retries, which may move it back to processing.
	StatusError Status = "error"
)

// Quote is the result of a completed carrier flow. Immutable once attached
// to a session.
type Quote struct {
	Carrier string `json:"carrier"`
	// Price is kept as the carrier renders it ("$102.50"), never parsed.
	Price    string            `json:"price"`
	Term     string            `json:"term"`
	Coverage map[string]string `json:"coverage,omitempty"`
}

// Session is one in-flight automation task. One record per task ID.
type Session struct {
	TaskID  string `json:"task_id"`
	Carrier string `json:"carrier"`
	Status  Status `json:"status"`

	// StepIndex counts handler dispatches; StepName is the symbolic name
	// the classifier resolved most recently.
	StepIndex int    `json:"step_index"`
	StepName  string `json:"step_name"`

	// Answers accumulates user-supplied field values across steps. Updates
	// merge into this map, they never replace it wholesale.
	Answers map[string]string `json:"answers"`

	// RemoteToken is the last-known remote-transport session token, empty
	// when the task has only ever used the local driver.
	RemoteToken string `json:"remote_token,omitempty"`

	LastError string `json:"last_error,omitempty"`
	Quote     *Quote `json:"quote,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Update is a partial mutation applied by Store.Update. Nil pointer fields
// are left untouched; Answers entries are merged key by key.
type Update struct {
	Status      *Status
	StepIndex   *int
	StepName    *string
	Answers     map[string]string
	RemoteToken *string
	LastError   *string
	Quote       *Quote
}

// clone returns a deep-enough copy so callers never share the store's
// internal maps.
func (s *Session) clone() *Session {
	out := *s
	out.Answers = make(map[string]string, len(s.Answers))
	for k, v := range s.Answers {
		out.Answers[k] = v
	}
	if s.Quote != nil {
		q := *s.Quote
		if s.Quote.Coverage != nil {
			q.Coverage = make(map[string]string, len(s.Quote.Coverage))
			for k, v := range s.Quote.Coverage {
				q.Coverage[k] = v
			}
		}
		out.Quote = &q
	}
	return &out
}
