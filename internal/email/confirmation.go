package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"sort"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/dukerupert/burgerbuilder/internal/burger"
	"github.com/dukerupert/burgerbuilder/internal/domain"
)

//go:embed templates/*
var templateFS embed.FS

// OrderConfirmation is the data rendered into the confirmation mail.
type OrderConfirmation struct {
	OrderNumber    string
	CustomerName   string
	Street         string
	ZipCode        string
	Country        string
	DeliveryMethod string
	Items          []OrderItem
	Total          string
	PlacedAt       time.Time
}

// OrderItem is one ingredient line of the confirmation.
type OrderItem struct {
	Label    string
	Quantity int
}

// Subject returns the mail subject line.
func (c OrderConfirmation) Subject() string {
	return "Your burger is on its way - order " + c.OrderNumber
}

// NewOrderConfirmation builds the mail data for a placed order. Ingredients
// with a zero count are left out.
func NewOrderConfirmation(order domain.Order) OrderConfirmation {
	items := make([]OrderItem, 0, len(order.Ingredients))
	for name, count := range order.Ingredients {
		if count <= 0 {
			continue
		}
		label := name
		if ing, ok := burger.Lookup(name); ok {
			label = ing.Label
		}
		items = append(items, OrderItem{Label: label, Quantity: count})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Label < items[j].Label })

	return OrderConfirmation{
		OrderNumber:    strings.ToUpper(order.ID.String()[:8]),
		CustomerName:   order.CustomerName(),
		Street:         order.OrderData[domain.FieldStreet],
		ZipCode:        order.OrderData[domain.FieldZipCode],
		Country:        order.OrderData[domain.FieldCountry],
		DeliveryMethod: order.DeliveryMethod(),
		Items:          items,
		Total:          "$" + order.Price.StringFixed(2),
		PlacedAt:       order.CreatedAt,
	}
}

// OrderMailer mails a confirmation to the shopper whenever an order is
// placed. It satisfies domain.OrderEventPublisher so it can run alongside
// the NATS publisher.
type OrderMailer struct {
	sender Sender
	html   *htmltemplate.Template
	text   *texttemplate.Template
}

// NewOrderMailer parses the embedded confirmation templates.
func NewOrderMailer(sender Sender) (*OrderMailer, error) {
	html, err := htmltemplate.ParseFS(templateFS, "templates/order_confirmation.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}
	text, err := texttemplate.ParseFS(templateFS, "templates/order_confirmation.txt")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}
	return &OrderMailer{sender: sender, html: html, text: text}, nil
}

// PublishOrderPlaced sends the confirmation for order.
func (m *OrderMailer) PublishOrderPlaced(ctx context.Context, order domain.Order) error {
	to := strings.TrimSpace(order.OrderData[domain.FieldEmail])
	if to == "" {
		return ErrNoRecipient
	}

	data := NewOrderConfirmation(order)

	var html, text bytes.Buffer
	if err := m.html.Execute(&html, data); err != nil {
		return fmt.Errorf("failed to render order confirmation: %w", err)
	}
	if err := m.text.Execute(&text, data); err != nil {
		return fmt.Errorf("failed to render order confirmation: %w", err)
	}

	_, err := m.sender.Send(ctx, &Email{
		To:       []string{to},
		Subject:  data.Subject(),
		HTMLBody: html.String(),
		TextBody: text.String(),
		Headers:  map[string]string{"X-Order-ID": order.ID.String()},
	})
	if err != nil {
		return fmt.Errorf("failed to send order confirmation: %w", err)
	}
	return nil
}
