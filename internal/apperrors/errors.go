package apperrors

import (
	"errors"
	"fmt"
)

// Wallet and resolution errors surfaced to callers as-is.
var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientHoldings = errors.New("insufficient holdings")
	ErrUnsupportedSource    = errors.New("unsupported price source")
	ErrNotFound             = errors.New("not found")
	ErrUnauthorized         = errors.New("unauthorized")
)

// ValidationError reports a rejected request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Validation builds a ValidationError.
func Validation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is a request validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// UpstreamKind classifies provider failures.
type UpstreamKind int

const (
	// UpstreamUnavailable covers transport failures and non-429 HTTP errors.
	UpstreamUnavailable UpstreamKind = iota
	// UpstreamRateLimited marks HTTP 429; caches serve stale data on it.
	UpstreamRateLimited
	// UpstreamBadPayload marks malformed or structurally missing JSON.
	UpstreamBadPayload
	// UpstreamDataError marks a syntactically valid but unusable value
	// (zero or negative price).
	UpstreamDataError
)

func (k UpstreamKind) String() string {
	switch k {
	case UpstreamRateLimited:
		return "rate_limited"
	case UpstreamBadPayload:
		return "bad_payload"
	case UpstreamDataError:
		return "data_error"
	default:
		return "unavailable"
	}
}

// UpstreamError is a typed failure from a market data provider.
type UpstreamError struct {
	Provider string
	Kind     UpstreamKind
	Message  string
	Err      error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Provider, e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Provider, e.Kind, e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Upstream builds an UpstreamError without a cause.
func Upstream(provider string, kind UpstreamKind, format string, args ...interface{}) error {
	return &UpstreamError{Provider: provider, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// UpstreamWrap builds an UpstreamError wrapping a cause.
func UpstreamWrap(provider string, kind UpstreamKind, err error, message string) error {
	return &UpstreamError{Provider: provider, Kind: kind, Message: message, Err: err}
}

// IsRateLimited reports whether err is an upstream 429.
func IsRateLimited(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.Kind == UpstreamRateLimited
}

// IsUpstream reports whether err originated from a provider call.
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}
