package storefront

import (
	"net/http"

	"github.com/dukerupert/burgerbuilder/internal/contactform"
	"github.com/dukerupert/burgerbuilder/internal/domain"
	"github.com/dukerupert/burgerbuilder/internal/handler"
	"github.com/dukerupert/burgerbuilder/internal/middleware"
	"github.com/dukerupert/burgerbuilder/internal/session"
	"github.com/dukerupert/burgerbuilder/internal/telemetry"
)

// CheckoutHandler serves the checkout summary and the contact-data form
type CheckoutHandler struct {
	renderer *handler.Renderer
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(renderer *handler.Renderer) *CheckoutHandler {
	return &CheckoutHandler{renderer: renderer}
}

// Page handles GET /checkout
func (h *CheckoutHandler) Page(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	// Nothing to check out: back to the builder
	status := sess.Status()
	if status.Purchased || (!status.Loading && !sess.Builder().Purchasable) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if telemetry.Business != nil {
		telemetry.Business.CheckoutStarted.Inc()
	}

	h.renderer.RenderHTTP(w, http.StatusOK, "checkout", h.pageData(r, sess))
}

// FieldChanged handles POST /checkout/contact-data/fields/{id}. The posted
// value is read from the form key named after the field, so an input can
// post itself. htmx requests get the re-rendered field plus an out-of-band
// submit button; other clients are redirected back to the page.
func (h *CheckoutHandler) FieldChanged(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	if err := r.ParseForm(); err != nil {
		handler.ErrorResponse(w, r, domain.Invalid("contactform.change", "Invalid form data"))
		return
	}

	id := r.PathValue("id")
	state, err := sess.Form().OnFieldChanged(id, r.PostFormValue(id))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	field, _ := state.Field(id)
	middleware.GetLogger(r.Context()).Debug("contact field changed",
		"field", id,
		"valid", field.Valid,
		"form_valid", state.FormIsValid,
	)

	if !isHTMX(r) {
		http.Redirect(w, r, "/checkout", http.StatusSeeOther)
		return
	}

	view := contactform.Project(state, sess.Loading())
	data := BaseTemplateData(r)
	data["Form"] = view
	data["OOB"] = true
	for _, f := range view.Fields {
		if f.ID == id {
			data["Field"] = f
		}
	}
	h.renderer.RenderPartialHTTP(w, http.StatusOK, "field_changed", data)
}

// Submit handles POST /checkout/contact-data. Posted field values are applied
// first so the form also works without htmx. An invalid form is re-rendered
// with its errors and nothing is dispatched.
func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	if err := r.ParseForm(); err != nil {
		handler.ErrorResponse(w, r, domain.Invalid("contactform.submit", "Invalid form data"))
		return
	}

	form := sess.Form()
	for _, id := range domain.ContactFields {
		if values, posted := r.PostForm[id]; posted && len(values) > 0 {
			if _, err := form.OnFieldChanged(id, values[0]); err != nil {
				handler.ErrorResponse(w, r, err)
				return
			}
		}
	}

	err := form.OnSubmit(r.Context())
	recordSubmit(err)

	logger := middleware.GetLogger(r.Context())
	if err == nil {
		logger.Info("order submitted", "price", sess.Builder().Price.StringFixed(2))
		if !isHTMX(r) {
			http.Redirect(w, r, "/checkout", http.StatusSeeOther)
			return
		}
		h.renderer.RenderPartialHTTP(w, http.StatusOK, "checkout_region", h.pageData(r, sess))
		return
	}

	logger.Info("order submission rejected",
		"code", domain.ErrorCode(err),
		"error", err,
	)

	if acceptsJSON(r) {
		if domain.IsValidationError(err) {
			handler.ValidationErrorResponse(w, r, err)
			return
		}
		handler.ErrorResponse(w, r, err)
		return
	}

	data := h.pageData(r, sess)
	data["SubmitError"] = domain.ErrorMessage(err)
	data["InvalidFields"] = domain.GetValidationFields(err)

	// htmx only swaps successful responses
	if isHTMX(r) {
		h.renderer.RenderPartialHTTP(w, http.StatusOK, "checkout_region", data)
		return
	}
	status := http.StatusUnprocessableEntity
	if !domain.IsValidationError(err) {
		status = handler.ErrorCodeToHTTPStatus(domain.ErrorCode(err))
	}
	h.renderer.RenderHTTP(w, status, "checkout", data)
}

// Status handles GET /checkout/contact-data/status, which the loading
// indicator polls. Once the order went through the shopper is sent back to
// the builder.
func (h *CheckoutHandler) Status(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	if sess.Status().Purchased {
		if isHTMX(r) {
			w.Header().Set("HX-Redirect", "/")
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if !isHTMX(r) {
		http.Redirect(w, r, "/checkout", http.StatusSeeOther)
		return
	}
	h.renderer.RenderPartialHTTP(w, http.StatusOK, "checkout_region", h.pageData(r, sess))
}

// DismissError handles POST /checkout/contact-data/dismiss-error
func (h *CheckoutHandler) DismissError(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	sess.DismissError()
	if telemetry.Business != nil {
		telemetry.Business.ErrorsDismissed.Inc()
	}

	if isHTMX(r) {
		// The modal swaps itself out with the empty body
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, localRedirect(r.PostFormValue("return_to"), "/checkout"), http.StatusSeeOther)
}

// contactDataResponse is the JSON view of the checkout page
type contactDataResponse struct {
	Form        contactform.View `json:"form"`
	FormIsValid bool             `json:"formIsValid"`
	Ingredients map[string]int   `json:"ingredients"`
	Price       string           `json:"price"`
	Loading     bool             `json:"loading"`
	Purchased   bool             `json:"purchased"`
	Error       string           `json:"error,omitempty"`
}

// ContactData handles GET /api/checkout/contact-data
func (h *CheckoutHandler) ContactData(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	status := sess.Status()
	builder := sess.Builder()
	state := sess.Form().CurrentState()

	resp := contactDataResponse{
		Form:        contactform.Project(state, status.Loading),
		FormIsValid: state.FormIsValid,
		Ingredients: builder.Ingredients,
		Price:       builder.Price.StringFixed(2),
		Loading:     status.Loading,
		Purchased:   status.Purchased,
	}
	if status.Err != nil {
		resp.Error = domain.ErrorMessage(status.Err)
	}

	handler.WriteJSON(w, http.StatusOK, resp)
}

func (h *CheckoutHandler) pageData(r *http.Request, sess *session.Session) map[string]interface{} {
	data := BaseTemplateData(r)
	data["Builder"] = sess.Builder()
	data["Form"] = sess.Form().View()
	return data
}

func recordSubmit(err error) {
	if telemetry.Business == nil {
		return
	}
	switch {
	case err == nil:
		telemetry.Business.SubmitAttempts.WithLabelValues("queued").Inc()
	case domain.IsValidationError(err):
		telemetry.Business.SubmitAttempts.WithLabelValues("invalid").Inc()
		for field := range domain.GetValidationFields(err) {
			telemetry.Business.SubmitRejected.WithLabelValues(field).Inc()
		}
	default:
		telemetry.Business.SubmitAttempts.WithLabelValues(domain.ErrorCode(err)).Inc()
	}
}

func acceptsJSON(r *http.Request) bool {
	return r.Header.Get("Accept") == "application/json"
}
