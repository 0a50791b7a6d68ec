package contactform

import "github.com/dukerupert/burgerbuilder/internal/domain"

var (
	defaultRules = &Rules{Required: true}
	zipCodeRules = &Rules{Required: true, MinLength: 5, MaxLength: 5}
)

// DefaultDeliveryOptions are used when no delivery provider supplies options.
var DefaultDeliveryOptions = []SelectOption{
	{Value: "fastest", DisplayValue: "Fastest"},
	{Value: "cheapest", DisplayValue: "Cheapest"},
}

type schemaConfig struct {
	deliveryOptions []SelectOption
}

// Option configures the form schema.
type Option func(*schemaConfig)

// WithDeliveryOptions replaces the delivery-method choices. The first option
// is preselected. An empty list keeps DefaultDeliveryOptions.
func WithDeliveryOptions(options []SelectOption) Option {
	return func(c *schemaConfig) {
		if len(options) > 0 {
			c.deliveryOptions = append([]SelectOption(nil), options...)
		}
	}
}

// Initialize returns the starting form: five text inputs with rules and the
// delivery-method select. Fields with rules start invalid so submission stays
// disabled until the shopper fills them in; the select has no rules and
// starts valid.
func Initialize(opts ...Option) State {
	cfg := schemaConfig{deliveryOptions: DefaultDeliveryOptions}
	for _, opt := range opts {
		opt(&cfg)
	}

	fields := map[string]FieldDescriptor{
		domain.FieldName:    textInput(KindText, "Name", "Your Name", defaultRules),
		domain.FieldStreet:  textInput(KindText, "Street", "Street", defaultRules),
		domain.FieldZipCode: textInput(KindText, "ZIP Code", "ZIP Code", zipCodeRules),
		domain.FieldCountry: textInput(KindText, "Country", "Country", defaultRules),
		domain.FieldEmail:   textInput(KindEmail, "Email", "Your Email", defaultRules),
		domain.FieldDeliveryMethod: selectInput("Delivery Method",
			cfg.deliveryOptions, cfg.deliveryOptions[0].Value),
	}

	return newState(domain.ContactFields, fields)
}

func textInput(kind FieldKind, label, placeholder string, rules *Rules) FieldDescriptor {
	return FieldDescriptor{
		Kind:        kind,
		Label:       label,
		Placeholder: placeholder,
		Rules:       rules,
		Valid:       rules == nil,
	}
}

func selectInput(label string, options []SelectOption, value string) FieldDescriptor {
	return FieldDescriptor{
		Kind:    KindSelect,
		Label:   label,
		Options: options,
		Value:   value,
		Valid:   CheckValidity(value, nil),
	}
}
