package storefront

import (
	"net/http"
	"strconv"

	"github.com/dukerupert/burgerbuilder/internal/handler"
	"github.com/dukerupert/burgerbuilder/internal/service"
)

// OrderHandler lists placed orders
type OrderHandler struct {
	orders   service.OrderService
	renderer *handler.Renderer
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orders service.OrderService, renderer *handler.Renderer) *OrderHandler {
	return &OrderHandler{
		orders:   orders,
		renderer: renderer,
	}
}

// List handles GET /orders
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListOrders(r.Context(), limitParam(r))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	data := BaseTemplateData(r)
	data["Orders"] = orders
	h.renderer.RenderHTTP(w, http.StatusOK, "orders", data)
}

// Detail handles GET /orders/{id}
func (h *OrderHandler) Detail(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	data := BaseTemplateData(r)
	data["Order"] = order
	h.renderer.RenderHTTP(w, http.StatusOK, "order", data)
}

// APIList handles GET /api/orders
func (h *OrderHandler) APIList(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListOrders(r.Context(), limitParam(r))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, map[string]interface{}{"orders": orders})
}

// APIDetail handles GET /api/orders/{id}
func (h *OrderHandler) APIDetail(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, order)
}

// limitParam reads ?limit=; anything unparsable leaves the default to the
// service.
func limitParam(r *http.Request) int {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return limit
}
