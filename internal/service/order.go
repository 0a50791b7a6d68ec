package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/burgerbuilder/internal/burger"
	"github.com/dukerupert/burgerbuilder/internal/domain"
	"github.com/dukerupert/burgerbuilder/internal/shipping"
	"github.com/dukerupert/burgerbuilder/internal/telemetry"
)

const (
	defaultOrderListLimit = 20
	maxOrderListLimit     = 100
)

// OrderService provides business logic for order operations
type OrderService interface {
	// PlaceOrder validates an order request, persists it and announces it.
	// The request is checked again here even though the contact form
	// already validated it, since the form runs in the shopper's session.
	PlaceOrder(ctx context.Context, sessionID uuid.UUID, req domain.OrderRequest) (*domain.Order, error)

	// GetOrder retrieves a single order by ID
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)

	// ListOrders returns the most recent orders, newest first
	ListOrders(ctx context.Context, limit int) ([]domain.Order, error)
}

type orderService struct {
	repo      domain.OrderRepository
	publisher domain.OrderEventPublisher
	delivery  shipping.Provider
	validate  *validator.Validate
	logger    *slog.Logger
	now       func() time.Time
}

// NewOrderService creates a new OrderService instance.
// delivery decides which delivery methods are accepted.
func NewOrderService(repo domain.OrderRepository, publisher domain.OrderEventPublisher, delivery shipping.Provider, logger *slog.Logger) OrderService {
	if logger == nil {
		logger = slog.Default()
	}
	return &orderService{
		repo:      repo,
		publisher: publisher,
		delivery:  delivery,
		validate:  newOrderValidator(),
		logger:    logger,
		now:       time.Now,
	}
}

// orderInput is the validated shape of an OrderRequest. Field names in
// validation errors come from the json tags so they match the form ids.
type orderInput struct {
	Ingredients    map[string]int  `json:"ingredients" validate:"required,dive,keys,ingredient,endkeys,gte=0"`
	Price          decimal.Decimal `json:"price" validate:"gt=0"`
	Name           string          `json:"name" validate:"required"`
	Street         string          `json:"street" validate:"required"`
	ZipCode        string          `json:"zipCode" validate:"required,len=5"`
	Country        string          `json:"country" validate:"required"`
	Email          string          `json:"email" validate:"required,email"`
	DeliveryMethod string          `json:"deliveryMethod" validate:"required"`
}

func newOrderInput(req domain.OrderRequest) orderInput {
	field := func(id string) string {
		return strings.TrimSpace(req.OrderData[id])
	}
	return orderInput{
		Ingredients:    req.Ingredients,
		Price:          req.Price,
		Name:           field(domain.FieldName),
		Street:         field(domain.FieldStreet),
		ZipCode:        field(domain.FieldZipCode),
		Country:        field(domain.FieldCountry),
		Email:          field(domain.FieldEmail),
		DeliveryMethod: field(domain.FieldDeliveryMethod),
	}
}

func newOrderValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("ingredient", func(fl validator.FieldLevel) bool {
		_, ok := burger.Lookup(fl.Field().String())
		return ok
	})

	return v
}

// PlaceOrder validates req, persists it as a new order and publishes an
// order placed event. The price must equal what the ingredients cost. A publish failure is logged but does not fail the
// order, which is already stored.
func (s *orderService) PlaceOrder(ctx context.Context, sessionID uuid.UUID, req domain.OrderRequest) (*domain.Order, error) {
	const op = "order.purchase"

	if req.OrderData == nil {
		return nil, ErrMissingContact
	}

	input := newOrderInput(req)
	if err := s.validate.StructCtx(ctx, input); err != nil {
		return nil, validationError(op, err)
	}

	if !hasIngredients(input.Ingredients) {
		return nil, ErrEmptyBurger
	}

	if want := burger.PriceOf(input.Ingredients); !input.Price.Equal(want) {
		return nil, domain.NewValidationError(op, "price",
			fmt.Sprintf("price %s does not match the burger, which costs %s", input.Price.StringFixed(2), want.StringFixed(2)))
	}

	ok, err := shipping.Supports(ctx, s.delivery, input.DeliveryMethod)
	if err != nil {
		return nil, domain.WrapError(err, domain.EUNAVAILABLE, op, ErrDeliveryDisabled.Error())
	}
	if !ok {
		return nil, domain.NewValidationError(op, domain.FieldDeliveryMethod, "deliveryMethod is not a delivery option")
	}

	order := &domain.Order{
		ID:          uuid.New(),
		SessionID:   sessionID,
		Ingredients: cloneIngredients(input.Ingredients),
		Price:       input.Price,
		OrderData: map[string]string{
			domain.FieldName:           input.Name,
			domain.FieldStreet:         input.Street,
			domain.FieldZipCode:        input.ZipCode,
			domain.FieldCountry:        input.Country,
			domain.FieldEmail:          input.Email,
			domain.FieldDeliveryMethod: input.DeliveryMethod,
		},
		CreatedAt: s.now().UTC(),
	}

	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return nil, domain.Internal(err, "order.save", "failed to save order")
	}

	if err := s.publisher.PublishOrderPlaced(ctx, *order); err != nil {
		s.logger.Warn("failed to publish order placed event",
			"order_id", order.ID,
			"error", err,
		)
		telemetry.CaptureErrorWithSession(err, sessionID.String(), map[string]interface{}{
			"order_id": order.ID.String(),
		})
		if telemetry.Business != nil {
			telemetry.Business.EventsPublished.WithLabelValues("error").Inc()
		}
	} else if telemetry.Business != nil {
		telemetry.Business.EventsPublished.WithLabelValues("ok").Inc()
	}

	return order, nil
}

// GetOrder retrieves a single order by ID
func (s *orderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	id, err := uuid.Parse(orderID)
	if err != nil {
		return nil, ErrInvalidOrderID
	}

	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return nil, ErrOrderNotFound
		}
		return nil, domain.Internal(err, "order.get", "failed to get order")
	}
	return order, nil
}

// ListOrders returns the most recent orders, newest first. A limit outside
// 1..100 falls back to the default page size or the maximum.
func (s *orderService) ListOrders(ctx context.Context, limit int) ([]domain.Order, error) {
	switch {
	case limit <= 0:
		limit = defaultOrderListLimit
	case limit > maxOrderListLimit:
		limit = maxOrderListLimit
	}

	orders, err := s.repo.ListOrders(ctx, limit)
	if err != nil {
		return nil, domain.Internal(err, "order.list", "failed to list orders")
	}
	return orders, nil
}

// validationError converts validator output into a domain.ValidationError
// keyed by form field id.
func validationError(op string, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domain.Internal(err, op, "failed to validate order")
	}

	var out error
	for _, fe := range verrs {
		field, _, _ := strings.Cut(fe.Field(), "[")
		if _, exists := domain.GetValidationFields(out)[field]; exists {
			continue
		}
		out = domain.AddFieldError(out, field, fieldMessage(field, fe))
	}
	out.(*domain.ValidationError).Op = op
	return out
}

func fieldMessage(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters", field, fe.Param())
	case "email":
		return field + " must be a valid email address"
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return field + " must not be negative"
	case "ingredient":
		return fmt.Sprintf("%s contains an unknown ingredient: %v", field, fe.Value())
	default:
		return field + " is invalid"
	}
}

func hasIngredients(ingredients map[string]int) bool {
	for _, n := range ingredients {
		if n > 0 {
			return true
		}
	}
	return false
}

func cloneIngredients(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
