// Package contactform is the checkout contact-data form: a fixed schema of
// field descriptors, re-validated on every change, whose aggregate validity
// gates order submission.
package contactform

import (
	"maps"

	"github.com/dukerupert/burgerbuilder/internal/domain"
)

// FieldKind selects the input widget for a field.
type FieldKind string

const (
	KindText   FieldKind = "text"
	KindEmail  FieldKind = "email"
	KindSelect FieldKind = "select"
)

// SelectOption is one choice of a select field.
type SelectOption struct {
	Value        string `json:"value"`
	DisplayValue string `json:"displayValue"`
}

// FieldDescriptor describes one form field and its current input.
// Options and Rules are shared between states and must not be mutated.
type FieldDescriptor struct {
	Kind        FieldKind      `json:"kind"`
	Label       string         `json:"label"`
	Placeholder string         `json:"placeholder,omitempty"`
	Options     []SelectOption `json:"options,omitempty"`
	Value       string         `json:"value"`
	Rules       *Rules         `json:"validation,omitempty"`
	Valid       bool           `json:"valid"`
	Touched     bool           `json:"touched"`
}

// Field pairs a descriptor with its identifier.
type Field struct {
	ID string `json:"id"`
	FieldDescriptor
}

// State is an immutable snapshot of the form. Updates return a new State;
// earlier snapshots are never changed.
type State struct {
	ids    []string
	fields map[string]FieldDescriptor

	// FormIsValid is true iff every descriptor is valid.
	FormIsValid bool
}

func newState(ids []string, fields map[string]FieldDescriptor) State {
	s := State{ids: ids, fields: fields}
	s.FormIsValid = s.computeValidity()
	return s
}

// Field returns the descriptor for id.
func (s State) Field(id string) (FieldDescriptor, bool) {
	d, ok := s.fields[id]
	return d, ok
}

// IDs returns the field identifiers in schema order.
func (s State) IDs() []string {
	return append([]string(nil), s.ids...)
}

// Fields returns every field in schema order.
func (s State) Fields() []Field {
	out := make([]Field, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, Field{ID: id, FieldDescriptor: s.fields[id]})
	}
	return out
}

// Values projects each field's current value, keyed by identifier.
func (s State) Values() map[string]string {
	out := make(map[string]string, len(s.ids))
	for _, id := range s.ids {
		out[id] = s.fields[id].Value
	}
	return out
}

// InvalidFields returns a ValidationError naming every invalid field, or nil.
func (s State) InvalidFields(op string) error {
	var err error
	for _, id := range s.ids {
		d := s.fields[id]
		if d.Valid {
			continue
		}
		msg := violation(d.Label, d.Value, d.Rules)
		if msg == "" {
			msg = d.Label + " is invalid"
		}
		err = domain.AddFieldError(err, id, msg)
	}
	if err != nil {
		err.(*domain.ValidationError).Op = op
	}
	return err
}

// with returns a copy of s with one descriptor replaced. Siblings are
// carried over as-is.
func (s State) with(id string, d FieldDescriptor) State {
	fields := maps.Clone(s.fields)
	fields[id] = d
	return newState(s.ids, fields)
}

func (s State) computeValidity() bool {
	if len(s.ids) == 0 {
		return false
	}
	for _, id := range s.ids {
		if !s.fields[id].Valid {
			return false
		}
	}
	return true
}
