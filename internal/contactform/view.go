package contactform

// View is what the page renders: either the loading indicator or the form.
type View struct {
	Loading        bool        `json:"loading"`
	Fields         []FieldView `json:"fields,omitempty"`
	SubmitDisabled bool        `json:"submitDisabled"`
}

// FieldView parameterizes one input widget.
type FieldView struct {
	ID             string         `json:"id"`
	Kind           FieldKind      `json:"kind"`
	Label          string         `json:"label"`
	Placeholder    string         `json:"placeholder,omitempty"`
	Options        []SelectOption `json:"options,omitempty"`
	Value          string         `json:"value"`
	Invalid        bool           `json:"invalid"`
	ShouldValidate bool           `json:"shouldValidate"`
	Touched        bool           `json:"touched"`
}

// ShowError reports whether the widget should be styled as invalid. Fields
// are only flagged after the shopper has edited them.
func (f FieldView) ShowError() bool {
	return f.Invalid && f.ShouldValidate && f.Touched
}

// IsSelect reports whether the field renders as a select box.
func (f FieldView) IsSelect() bool {
	return f.Kind == KindSelect
}

// Project builds the view for a state. While loading, no fields are shown
// and nothing can be submitted.
func Project(s State, loading bool) View {
	if loading {
		return View{Loading: true, SubmitDisabled: true}
	}

	fields := s.Fields()
	v := View{
		Fields:         make([]FieldView, 0, len(fields)),
		SubmitDisabled: !s.FormIsValid,
	}
	for _, f := range fields {
		v.Fields = append(v.Fields, FieldView{
			ID:             f.ID,
			Kind:           f.Kind,
			Label:          f.Label,
			Placeholder:    f.Placeholder,
			Options:        f.Options,
			Value:          f.Value,
			Invalid:        !f.Valid,
			ShouldValidate: f.Rules != nil,
			Touched:        f.Touched,
		})
	}
	return v
}

// View projects the controller's current state.
func (c *Controller) View() View {
	return Project(c.CurrentState(), c.provider.Loading())
}
