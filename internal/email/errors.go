package email

import "errors"

var (
	// ErrNoRecipient is returned when an order carries no email address.
	ErrNoRecipient = errors.New("email: order has no recipient address")

	// ErrNotConfigured is returned when no SMTP host is set.
	ErrNotConfigured = errors.New("email: smtp host is not configured")
)
