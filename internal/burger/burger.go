// Package burger holds the burger builder: which ingredients a shopper has
// stacked and what the result costs.
package burger

import (
	"maps"

	"github.com/dukerupert/burgerbuilder/internal/domain"
	"github.com/shopspring/decimal"
)

// Ingredient names.
const (
	Salad  = "salad"
	Bacon  = "bacon"
	Cheese = "cheese"
	Meat   = "meat"
)

// BasePrice is the price of a burger with nothing but the bun.
var BasePrice = decimal.RequireFromString("4.00")

// Ingredient describes one ingredient the builder offers.
type Ingredient struct {
	Name  string
	Label string
	Price decimal.Decimal
}

// Menu lists the ingredients in the order they are stacked and displayed.
var Menu = []Ingredient{
	{Name: Salad, Label: "Salad", Price: decimal.RequireFromString("0.5")},
	{Name: Bacon, Label: "Bacon", Price: decimal.RequireFromString("0.7")},
	{Name: Cheese, Label: "Cheese", Price: decimal.RequireFromString("0.4")},
	{Name: Meat, Label: "Meat", Price: decimal.RequireFromString("1.3")},
}

// Lookup returns the menu entry for name.
func Lookup(name string) (Ingredient, bool) {
	for _, ing := range Menu {
		if ing.Name == name {
			return ing, true
		}
	}
	return Ingredient{}, false
}

// PriceOf returns what a burger with the given ingredient counts costs.
// Unknown ingredients and non-positive counts add nothing.
func PriceOf(ingredients map[string]int) decimal.Decimal {
	total := BasePrice
	for _, ing := range Menu {
		if n := ingredients[ing.Name]; n > 0 {
			total = total.Add(ing.Price.Mul(decimal.NewFromInt(int64(n))))
		}
	}
	return total
}

// Builder is a burger under construction. The zero value is not usable;
// call New.
type Builder struct {
	ingredients map[string]int
	totalPrice  decimal.Decimal
}

// New returns an empty burger priced at BasePrice.
func New() *Builder {
	b := &Builder{}
	b.Reset()
	return b
}

// Reset empties the burger.
func (b *Builder) Reset() {
	b.ingredients = make(map[string]int, len(Menu))
	for _, ing := range Menu {
		b.ingredients[ing.Name] = 0
	}
	b.totalPrice = BasePrice
}

// Add stacks one more of the named ingredient.
func (b *Builder) Add(name string) error {
	ing, ok := Lookup(name)
	if !ok {
		return domain.Errorf(domain.EINVALID, "burger.add", "unknown ingredient: %s", name)
	}
	b.ingredients[name]++
	b.totalPrice = b.totalPrice.Add(ing.Price)
	return nil
}

// Remove takes one of the named ingredient off. Removing an ingredient that
// is not on the burger is a no-op.
func (b *Builder) Remove(name string) error {
	ing, ok := Lookup(name)
	if !ok {
		return domain.Errorf(domain.EINVALID, "burger.remove", "unknown ingredient: %s", name)
	}
	if b.ingredients[name] == 0 {
		return nil
	}
	b.ingredients[name]--
	b.totalPrice = b.totalPrice.Sub(ing.Price)
	return nil
}

// Ingredients returns a copy of the ingredient counts.
func (b *Builder) Ingredients() map[string]int {
	return maps.Clone(b.ingredients)
}

// Count returns how many of the named ingredient are stacked.
func (b *Builder) Count(name string) int {
	return b.ingredients[name]
}

// TotalPrice returns the base price plus every stacked ingredient.
func (b *Builder) TotalPrice() decimal.Decimal {
	return b.totalPrice
}

// Purchasable reports whether at least one ingredient is stacked.
func (b *Builder) Purchasable() bool {
	for _, n := range b.ingredients {
		if n > 0 {
			return true
		}
	}
	return false
}
