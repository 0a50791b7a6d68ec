package contactform_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dukerupert/burgerbuilder/internal/contactform"
	"github.com/dukerupert/burgerbuilder/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	ingredients map[string]int
	price       decimal.Decimal
	loading     bool
	orderReads  int
}

func (p *fakeProvider) Order() (map[string]int, decimal.Decimal) {
	p.orderReads++
	return p.ingredients, p.price
}

func (p *fakeProvider) Loading() bool { return p.loading }

type recordingDispatcher struct {
	mu       sync.Mutex
	requests []domain.OrderRequest
	err      error
}

func (d *recordingDispatcher) PurchaseOrder(ctx context.Context, req domain.OrderRequest) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests = append(d.requests, req)
	return d.err
}

func newTestController(t *testing.T) (*contactform.Controller, *fakeProvider, *recordingDispatcher) {
	t.Helper()
	provider := &fakeProvider{
		ingredients: map[string]int{"salad": 1, "bacon": 0, "cheese": 2, "meat": 1},
		price:       decimal.RequireFromString("6.60"),
	}
	dispatcher := &recordingDispatcher{}
	return contactform.NewController(provider, dispatcher), provider, dispatcher
}

func fillValid(t *testing.T, c *contactform.Controller) {
	t.Helper()
	for id, v := range map[string]string{
		domain.FieldName:    "Alice",
		domain.FieldStreet:  "Main St",
		domain.FieldZipCode: "12345",
		domain.FieldCountry: "US",
		domain.FieldEmail:   "a@b.com",
	} {
		_, err := c.OnFieldChanged(id, v)
		require.NoError(t, err)
	}
}

func TestInitialize(t *testing.T) {
	s := contactform.Initialize()

	assert.Equal(t, domain.ContactFields, s.IDs())
	assert.False(t, s.FormIsValid)

	for _, f := range s.Fields() {
		assert.False(t, f.Touched, "%s should start untouched", f.ID)
		if f.ID == domain.FieldDeliveryMethod {
			assert.True(t, f.Valid)
			assert.Equal(t, contactform.KindSelect, f.Kind)
			assert.Equal(t, "fastest", f.Value)
			assert.Nil(t, f.Rules)
			continue
		}
		assert.False(t, f.Valid, "%s should start invalid", f.ID)
		require.NotNil(t, f.Rules)
		assert.True(t, f.Rules.Required)
	}

	email, _ := s.Field(domain.FieldEmail)
	assert.Equal(t, contactform.KindEmail, email.Kind)
	assert.Equal(t, "Your Email", email.Placeholder)

	zip, _ := s.Field(domain.FieldZipCode)
	assert.Equal(t, &contactform.Rules{Required: true, MinLength: 5, MaxLength: 5}, zip.Rules)
}

func TestInitialize_WithDeliveryOptions(t *testing.T) {
	s := contactform.Initialize(contactform.WithDeliveryOptions([]contactform.SelectOption{
		{Value: "drone", DisplayValue: "Drone"},
		{Value: "bike", DisplayValue: "Bike"},
	}))

	d, ok := s.Field(domain.FieldDeliveryMethod)
	require.True(t, ok)
	assert.Equal(t, "drone", d.Value)
	assert.Len(t, d.Options, 2)
}

func TestOnFieldChanged_UpdatesOnlyThatField(t *testing.T) {
	c, _, _ := newTestController(t)
	_, err := c.OnFieldChanged(domain.FieldName, "Alice")
	require.NoError(t, err)

	before := c.CurrentState()
	after, err := c.OnFieldChanged(domain.FieldStreet, "Main St")
	require.NoError(t, err)

	for _, id := range before.IDs() {
		if id == domain.FieldStreet {
			continue
		}
		b, _ := before.Field(id)
		a, _ := after.Field(id)
		if diff := cmp.Diff(b, a); diff != "" {
			t.Errorf("field %s changed (-before +after):\n%s", id, diff)
		}
	}

	street, _ := after.Field(domain.FieldStreet)
	assert.Equal(t, "Main St", street.Value)
	assert.True(t, street.Valid)
	assert.True(t, street.Touched)
}

func TestOnFieldChanged_DoesNotMutatePreviousSnapshot(t *testing.T) {
	c, _, _ := newTestController(t)
	first := c.CurrentState()

	_, err := c.OnFieldChanged(domain.FieldZipCode, "123")
	require.NoError(t, err)

	zip, _ := first.Field(domain.FieldZipCode)
	assert.Equal(t, "", zip.Value)
	assert.False(t, zip.Touched)
}

func TestOnFieldChanged_TouchedNeverReverts(t *testing.T) {
	c, _, _ := newTestController(t)

	_, err := c.OnFieldChanged(domain.FieldCountry, "US")
	require.NoError(t, err)
	s, err := c.OnFieldChanged(domain.FieldCountry, "")
	require.NoError(t, err)

	country, _ := s.Field(domain.FieldCountry)
	assert.True(t, country.Touched)
	assert.False(t, country.Valid)
}

func TestOnFieldChanged_UnknownField(t *testing.T) {
	c, _, _ := newTestController(t)
	before := c.CurrentState()

	s, err := c.OnFieldChanged("zipcode", "12345")

	assert.True(t, domain.IsCode(err, domain.ENOTFOUND))
	assert.Equal(t, before.Values(), s.Values())
	assert.Equal(t, before.Values(), c.CurrentState().Values())
}

func TestFormIsValid_IsConjunctionOfFields(t *testing.T) {
	c, _, _ := newTestController(t)
	fillValid(t, c)
	require.True(t, c.CurrentState().FormIsValid)

	for _, id := range []string{domain.FieldName, domain.FieldStreet, domain.FieldZipCode, domain.FieldCountry, domain.FieldEmail} {
		t.Run(id, func(t *testing.T) {
			c, _, _ := newTestController(t)
			fillValid(t, c)

			s, err := c.OnFieldChanged(id, "  ")
			require.NoError(t, err)
			assert.False(t, s.FormIsValid)

			for _, f := range s.Fields() {
				if f.ID != id {
					assert.True(t, f.Valid, "%s should still be valid", f.ID)
				}
			}
		})
	}
}

func TestOnSubmit_DispatchesOrder(t *testing.T) {
	c, provider, dispatcher := newTestController(t)
	fillValid(t, c)
	require.True(t, c.CurrentState().FormIsValid)

	require.NoError(t, c.OnSubmit(context.Background()))

	require.Len(t, dispatcher.requests, 1)
	want := domain.OrderRequest{
		Ingredients: provider.ingredients,
		Price:       provider.price,
		OrderData: map[string]string{
			"name":           "Alice",
			"street":         "Main St",
			"zipCode":        "12345",
			"country":        "US",
			"email":          "a@b.com",
			"deliveryMethod": "fastest",
		},
	}
	got := dispatcher.requests[0]
	assert.Equal(t, want.Ingredients, got.Ingredients)
	assert.True(t, want.Price.Equal(got.Price))
	if diff := cmp.Diff(want.OrderData, got.OrderData); diff != "" {
		t.Errorf("order data mismatch (-want +got):\n%s", diff)
	}
}

func TestOnSubmit_ReadsBurgerOnce(t *testing.T) {
	c, provider, dispatcher := newTestController(t)
	fillValid(t, c)

	require.NoError(t, c.OnSubmit(context.Background()))

	// Ingredients and price come from one snapshot.
	assert.Equal(t, 1, provider.orderReads)
	require.Len(t, dispatcher.requests, 1)
}

func TestOnSubmit_ShortZipIsNotDispatched(t *testing.T) {
	c, _, dispatcher := newTestController(t)
	fillValid(t, c)

	s, err := c.OnFieldChanged(domain.FieldZipCode, "123")
	require.NoError(t, err)
	zip, _ := s.Field(domain.FieldZipCode)
	assert.False(t, zip.Valid)
	assert.False(t, s.FormIsValid)
	assert.True(t, c.View().SubmitDisabled)

	err = c.OnSubmit(context.Background())

	require.Error(t, err)
	assert.True(t, domain.IsValidationError(err))
	assert.Equal(t, map[string]string{"zipCode": "ZIP Code must be exactly 5 characters"}, domain.GetValidationFields(err))
	assert.Empty(t, dispatcher.requests)
}

func TestOnSubmit_UntouchedFormListsEveryRequiredField(t *testing.T) {
	c, _, dispatcher := newTestController(t)

	err := c.OnSubmit(context.Background())

	fields := domain.GetValidationFields(err)
	assert.Len(t, fields, 5)
	assert.Equal(t, "Name is required", fields[domain.FieldName])
	assert.NotContains(t, fields, domain.FieldDeliveryMethod)
	assert.Empty(t, dispatcher.requests)
}

func TestOnSubmit_WhileLoading(t *testing.T) {
	c, provider, dispatcher := newTestController(t)
	fillValid(t, c)
	provider.loading = true

	err := c.OnSubmit(context.Background())

	assert.True(t, domain.IsCode(err, domain.ECONFLICT))
	assert.Empty(t, dispatcher.requests)
}

func TestOnSubmit_PropagatesDispatchError(t *testing.T) {
	c, _, dispatcher := newTestController(t)
	fillValid(t, c)
	dispatcher.err = domain.Unavailable("order.purchase", "order queue is full")

	err := c.OnSubmit(context.Background())

	assert.True(t, domain.IsCode(err, domain.EUNAVAILABLE))
}

func TestOnSubmit_ChosenDeliveryMethod(t *testing.T) {
	c, _, dispatcher := newTestController(t)
	fillValid(t, c)
	_, err := c.OnFieldChanged(domain.FieldDeliveryMethod, "cheapest")
	require.NoError(t, err)

	require.NoError(t, c.OnSubmit(context.Background()))

	require.Len(t, dispatcher.requests, 1)
	assert.Equal(t, "cheapest", dispatcher.requests[0].OrderData[domain.FieldDeliveryMethod])
}

func TestDispatcherFunc(t *testing.T) {
	called := false
	d := contactform.DispatcherFunc(func(ctx context.Context, req domain.OrderRequest) error {
		called = true
		return errors.New("boom")
	})

	err := d.PurchaseOrder(context.Background(), domain.OrderRequest{})

	assert.True(t, called)
	assert.EqualError(t, err, "boom")
}

func TestSubscribe(t *testing.T) {
	c, _, _ := newTestController(t)

	var seen []contactform.Change
	unsubscribe := c.Subscribe(func(ch contactform.Change) {
		seen = append(seen, ch)
	})

	fillValid(t, c)
	require.Len(t, seen, 5)
	assert.True(t, seen[4].State.FormIsValid)

	_, err := c.OnFieldChanged(domain.FieldZipCode, "123")
	require.NoError(t, err)
	require.Len(t, seen, 6)
	assert.Equal(t, domain.FieldZipCode, seen[5].Field)
	zip, _ := seen[5].State.Field(domain.FieldZipCode)
	assert.False(t, zip.Valid)

	c.Reset()
	require.Len(t, seen, 7)
	assert.Empty(t, seen[6].Field, "a reset names no field")

	unsubscribe()
	_, err = c.OnFieldChanged(domain.FieldName, "Bob")
	require.NoError(t, err)
	assert.Len(t, seen, 7)
}

func TestSubscribe_UnknownFieldIsNotAChange(t *testing.T) {
	c, _, _ := newTestController(t)

	calls := 0
	c.Subscribe(func(contactform.Change) { calls++ })

	_, err := c.OnFieldChanged("zipcode", "12345")
	require.Error(t, err)
	assert.Zero(t, calls)
}

func TestReset(t *testing.T) {
	c, _, _ := newTestController(t)
	fillValid(t, c)

	c.Reset()

	s := c.CurrentState()
	assert.False(t, s.FormIsValid)
	name, _ := s.Field(domain.FieldName)
	assert.Equal(t, "", name.Value)
	assert.False(t, name.Touched)
}

func TestView(t *testing.T) {
	c, provider, _ := newTestController(t)

	v := c.View()
	require.Len(t, v.Fields, 6)
	assert.True(t, v.SubmitDisabled)
	assert.False(t, v.Loading)
	for _, f := range v.Fields {
		assert.False(t, f.ShowError(), "untouched field %s must not show an error", f.ID)
	}
	assert.Equal(t, domain.FieldName, v.Fields[0].ID)
	assert.True(t, v.Fields[5].IsSelect())
	assert.False(t, v.Fields[5].ShouldValidate)

	_, err := c.OnFieldChanged(domain.FieldZipCode, "12")
	require.NoError(t, err)
	v = c.View()
	assert.True(t, v.Fields[2].ShowError())

	fillValid(t, c)
	assert.False(t, c.View().SubmitDisabled)

	provider.loading = true
	v = c.View()
	assert.True(t, v.Loading)
	assert.Empty(t, v.Fields)
	assert.True(t, v.SubmitDisabled)
}

func TestController_ConcurrentChanges(t *testing.T) {
	c, _, _ := newTestController(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = c.OnFieldChanged(domain.FieldName, "Alice")
			} else {
				_, _ = c.OnFieldChanged(domain.FieldStreet, "Main St")
			}
		}(i)
	}
	wg.Wait()

	s := c.CurrentState()
	name, _ := s.Field(domain.FieldName)
	street, _ := s.Field(domain.FieldStreet)
	assert.Equal(t, "Alice", name.Value)
	assert.Equal(t, "Main St", street.Value)
}
