package handler

import (
	"html/template"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/burgerbuilder/internal/burger"
)

// TemplateFuncs returns a FuncMap with custom template functions
func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"add": func(a, b int) int {
			return a + b
		},
		"sub": func(a, b int) int {
			return a - b
		},
		// times yields n items so a template can repeat something n times
		"times": func(n int) []struct{} {
			return make([]struct{}, max(n, 0))
		},
		"year": func() int {
			return time.Now().Year()
		},
		// price formats a decimal amount with two places, e.g. "$5.30"
		"price": func(d decimal.Decimal) string {
			return "$" + d.StringFixed(2)
		},
		"ingredientLabel": func(name string) string {
			if ing, ok := burger.Lookup(name); ok {
				return ing.Label
			}
			return strings.ToUpper(name[:min(1, len(name))]) + name[min(1, len(name)):]
		},
		"menu": func() []burger.Ingredient {
			return burger.Menu
		},
		"shortID": func(s string) string {
			if len(s) > 8 {
				return s[:8]
			}
			return s
		},
		"date": func(t time.Time) string {
			return t.Format("Jan 2, 2006 15:04")
		},
	}
}
