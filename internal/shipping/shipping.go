// Package shipping lists the delivery methods a shopper can choose on the
// contact-data form.
package shipping

import (
	"context"
	"time"
)

// Delivery method codes offered by default.
const (
	MethodFastest  = "fastest"
	MethodCheapest = "cheapest"
)

// Provider defines the interface for delivery options.
type Provider interface {
	// GetRates returns the delivery options available for a destination.
	GetRates(ctx context.Context, params RateParams) ([]Rate, error)
}

// RateParams contains parameters for listing delivery options.
// A zero DestinationAddress asks for every option the provider offers.
type RateParams struct {
	DestinationAddress ShippingAddress
	ServiceTypes       []string // Optional filter for specific service codes
}

// ShippingAddress is the subset of the contact data that affects delivery.
type ShippingAddress struct {
	Name       string
	Street     string
	PostalCode string
	Country    string
}

// Rate represents a delivery option.
type Rate struct {
	RateID                string
	Carrier               string
	ServiceName           string
	ServiceCode           string
	CostCents             int64
	EstimatedDaysMin      int
	EstimatedDaysMax      int
	EstimatedDeliveryDate time.Time
}

// DefaultRates are the delivery options of the burger shop.
func DefaultRates() []FlatRate {
	return []FlatRate{
		{ServiceName: "Fastest", ServiceCode: MethodFastest, CostCents: 0, DaysMin: 0, DaysMax: 0},
		{ServiceName: "Cheapest", ServiceCode: MethodCheapest, CostCents: 0, DaysMin: 0, DaysMax: 1},
	}
}

// Supports reports whether the provider offers the service code.
func Supports(ctx context.Context, p Provider, code string) (bool, error) {
	rates, err := p.GetRates(ctx, RateParams{ServiceTypes: []string{code}})
	if err != nil {
		return false, err
	}
	return len(rates) > 0, nil
}
