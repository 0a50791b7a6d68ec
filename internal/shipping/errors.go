package shipping

// These constants mirror domain error codes to avoid circular imports.
// The handler layer maps these to HTTP status codes.
const (
	codeInvalid     = "invalid"
	codeUnavailable = "unavailable"
)

// ShippingError represents a delivery-specific error with a code and message.
type ShippingError struct {
	Code    string
	Message string
}

func (e *ShippingError) Error() string {
	return e.Message
}

// ErrorCode returns the error code for HTTP status mapping.
func (e *ShippingError) ErrorCode() string {
	return e.Code
}

func newShippingError(code, message string) *ShippingError {
	return &ShippingError{Code: code, Message: message}
}

var (
	// ErrNoRates is returned when the provider has no delivery options configured.
	ErrNoRates = newShippingError(codeUnavailable, "No delivery options available")

	// ErrUnknownMethod is returned when a delivery method code is not offered.
	ErrUnknownMethod = newShippingError(codeInvalid, "Unknown delivery method")
)
