package shipping

import (
	"context"
	"slices"
	"time"
)

// FlatRateProvider returns predefined delivery options.
type FlatRateProvider struct {
	rates []FlatRate
	now   func() time.Time
}

// FlatRate defines a single flat-rate delivery option.
type FlatRate struct {
	ServiceName string
	ServiceCode string
	CostCents   int64
	DaysMin     int
	DaysMax     int
}

// NewFlatRateProvider creates a new flat-rate delivery provider.
func NewFlatRateProvider(rates []FlatRate) *FlatRateProvider {
	return &FlatRateProvider{rates: rates, now: time.Now}
}

// GetRates converts flat rates to Rate objects, in configuration order.
func (p *FlatRateProvider) GetRates(ctx context.Context, params RateParams) ([]Rate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(p.rates) == 0 {
		return nil, ErrNoRates
	}

	result := make([]Rate, 0, len(p.rates))
	for _, fr := range p.rates {
		if len(params.ServiceTypes) > 0 && !slices.Contains(params.ServiceTypes, fr.ServiceCode) {
			continue
		}
		result = append(result, Rate{
			RateID:                fr.ServiceCode,
			Carrier:               "Flat Rate",
			ServiceName:           fr.ServiceName,
			ServiceCode:           fr.ServiceCode,
			CostCents:             fr.CostCents,
			EstimatedDaysMin:      fr.DaysMin,
			EstimatedDaysMax:      fr.DaysMax,
			EstimatedDeliveryDate: p.now().AddDate(0, 0, fr.DaysMax),
		})
	}
	return result, nil
}
