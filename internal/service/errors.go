package service

import (
	"github.com/dukerupert/burgerbuilder/internal/domain"
)

// Order errors
var (
	ErrOrderNotFound    = domain.ErrOrderNotFound
	ErrInvalidOrderID   = domain.Errorf(domain.EINVALID, "", "Invalid order ID")
	ErrEmptyBurger      = domain.Errorf(domain.EINVALID, "", "Add at least one ingredient before ordering")
	ErrMissingContact   = domain.Errorf(domain.EINVALID, "", "Contact data is missing")
	ErrDeliveryDisabled = domain.Errorf(domain.EUNAVAILABLE, "", "Delivery options are unavailable right now")
)
