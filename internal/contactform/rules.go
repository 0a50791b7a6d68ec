package contactform

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Rules are the validation rules attached to a field. A nil *Rules means
// the field is always valid. Zero MinLength or MaxLength disables that check.
type Rules struct {
	Required  bool `json:"required,omitempty"`
	MinLength int  `json:"minLength,omitempty"`
	MaxLength int  `json:"maxLength,omitempty"`
}

// CheckValidity applies rules to the trimmed value. Lengths are counted in
// runes.
func CheckValidity(value string, rules *Rules) bool {
	if rules == nil {
		return true
	}

	trimmed := strings.TrimSpace(value)
	n := utf8.RuneCountInString(trimmed)
	valid := true

	if rules.Required {
		valid = valid && trimmed != ""
	}
	if rules.MinLength > 0 {
		valid = valid && n >= rules.MinLength
	}
	if rules.MaxLength > 0 {
		valid = valid && n <= rules.MaxLength
	}

	return valid
}

// violation describes the first rule value breaks, for error messages.
func violation(label, value string, rules *Rules) string {
	if rules == nil {
		return ""
	}
	trimmed := strings.TrimSpace(value)
	n := utf8.RuneCountInString(trimmed)
	switch {
	case rules.Required && trimmed == "":
		return label + " is required"
	case rules.MinLength > 0 && rules.MinLength == rules.MaxLength && n != rules.MinLength:
		return fmt.Sprintf("%s must be exactly %d characters", label, rules.MinLength)
	case rules.MinLength > 0 && n < rules.MinLength:
		return fmt.Sprintf("%s must be at least %d characters", label, rules.MinLength)
	case rules.MaxLength > 0 && n > rules.MaxLength:
		return fmt.Sprintf("%s must be at most %d characters", label, rules.MaxLength)
	}
	return ""
}
