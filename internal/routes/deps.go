package routes

import (
	"net/http"

	"github.com/dukerupert/burgerbuilder/internal/handler/storefront"
	"github.com/dukerupert/burgerbuilder/internal/router"
)

// StorefrontDeps contains dependencies for storefront routes
type StorefrontDeps struct {
	// Burger builder
	BuilderHandler *storefront.BuilderHandler

	// Checkout and contact-data form
	CheckoutHandler *storefront.CheckoutHandler

	// Placed orders
	OrderHandler *storefront.OrderHandler

	// SubmitMiddleware wraps order submission only
	SubmitMiddleware []router.Middleware
}

// OpsDeps contains dependencies for operational endpoints
type OpsDeps struct {
	Metrics http.Handler
	Health  http.HandlerFunc
}
