package flow

import "github.com/quotelane/quotelane/pkg/session"

// FieldKind enumerates the input kinds the external UI collaborator knows
// how to render.
type FieldKind string

const (
	KindText     FieldKind = "text"
	KindEmail    FieldKind = "email"
	KindDate     FieldKind = "date"
	KindSelect   FieldKind = "select"
	KindRadio    FieldKind = "radio"
	KindCheckbox FieldKind = "checkbox"
	// KindArray is a repeated group of subfields (e.g. additional drivers).
	KindArray FieldKind = "array"
)

// FieldDef describes one logical input the caller must supply for a step.
// Definitions are produced fresh for every step response and never mutated
// after being handed out.
type FieldDef struct {
	Name     string    `json:"name"`
	Label    string    `json:"label"`
	Kind     FieldKind `json:"kind"`
	Required bool      `json:"required"`

	// Options constrains select/radio fields.
	Options []string `json:"options,omitempty"`

	// Validation hints.
	Pattern   string `json:"pattern,omitempty"`
	MinLength int    `json:"min_length,omitempty"`
	MaxLength int    `json:"max_length,omitempty"`

	// Subfields describes one entry of an array field.
	Subfields []FieldDef `json:"subfields,omitempty"`
}

// Outcome is what a step handler returns: either the next step's required
// fields or a terminal quote.
type Outcome struct {
	// Step is the symbolic name of the step the flow is now waiting on.
	Step string

	// Fields lists the inputs needed before the next Step call.
	Fields []FieldDef

	// Quote, when set, completes the task.
	Quote *session.Quote
}
