package routes

import (
	"github.com/dukerupert/burgerbuilder/internal/router"
)

// RegisterStorefrontRoutes registers the shopper-facing routes. r must carry
// the session middleware: every handler here reads the shopper session.
func RegisterStorefrontRoutes(r *router.Router, deps StorefrontDeps) {
	// Burger builder
	r.Get("/{$}", deps.BuilderHandler.Home)
	r.Post("/builder/ingredients/{name}/add", deps.BuilderHandler.Add)
	r.Post("/builder/ingredients/{name}/remove", deps.BuilderHandler.Remove)

	// Checkout flow
	r.Get("/checkout", deps.CheckoutHandler.Page)
	r.Post("/checkout/contact-data/fields/{id}", deps.CheckoutHandler.FieldChanged)
	r.Post("/checkout/contact-data", deps.CheckoutHandler.Submit, deps.SubmitMiddleware...)
	r.Get("/checkout/contact-data/status", deps.CheckoutHandler.Status)
	r.Post("/checkout/contact-data/dismiss-error", deps.CheckoutHandler.DismissError)
	r.Get("/api/checkout/contact-data", deps.CheckoutHandler.ContactData)

	// Orders
	r.Get("/orders", deps.OrderHandler.List)
	r.Get("/orders/{id}", deps.OrderHandler.Detail)
	r.Get("/api/orders", deps.OrderHandler.APIList)
	r.Get("/api/orders/{id}", deps.OrderHandler.APIDetail)
}

// RegisterOpsRoutes registers metrics and health endpoints. They bypass the
// session middleware so health checks and scrapes do not create sessions.
func RegisterOpsRoutes(r *router.Router, deps OpsDeps) {
	r.Handle("GET", "/metrics", deps.Metrics)
	r.Get("/health", deps.Health)
}
