package storefront

import (
	"net/http"

	"github.com/dukerupert/burgerbuilder/internal/handler"
	"github.com/dukerupert/burgerbuilder/internal/session"
	"github.com/dukerupert/burgerbuilder/internal/telemetry"
)

// BuilderHandler serves the burger builder
type BuilderHandler struct {
	renderer *handler.Renderer
}

// NewBuilderHandler creates a new burger builder handler
func NewBuilderHandler(renderer *handler.Renderer) *BuilderHandler {
	return &BuilderHandler{renderer: renderer}
}

// Home handles GET /
func (h *BuilderHandler) Home(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	// A finished purchase lands here once; the builder has already been reset.
	status := sess.Status()
	if status.Purchased {
		sess.AcknowledgePurchase()
	}

	data := BaseTemplateData(r)
	data["Builder"] = sess.Builder()
	data["Loading"] = status.Loading
	if status.Purchased {
		data["PlacedOrderID"] = status.LastOrderID.String()
	}

	h.renderer.RenderHTTP(w, http.StatusOK, "home", data)
}

// Add handles POST /builder/ingredients/{name}/add
func (h *BuilderHandler) Add(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, "add", (*session.Session).AddIngredient)
}

// Remove handles POST /builder/ingredients/{name}/remove
func (h *BuilderHandler) Remove(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, "remove", (*session.Session).RemoveIngredient)
}

func (h *BuilderHandler) change(w http.ResponseWriter, r *http.Request, action string, apply func(*session.Session, string) error) {
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	name := r.PathValue("name")
	if err := apply(sess, name); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	if telemetry.Business != nil {
		telemetry.Business.IngredientChanges.WithLabelValues(name, action).Inc()
	}

	if !isHTMX(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	data := BaseTemplateData(r)
	data["Builder"] = sess.Builder()
	data["Loading"] = sess.Loading()
	h.renderer.RenderPartialHTTP(w, http.StatusOK, "builder_controls", data)
}
