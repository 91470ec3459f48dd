package channel

import (
	"errors"
	"fmt"
	"net/http"
)

// Routing error taxonomy. Every member except the internal fault is an
// expected, caller-recoverable condition and travels as a value inside
// RoutingResult; none of them is ever allowed to surface as a panic.
var (
	// ErrUnknownChannel: the identifier is outside the closed enumeration.
	ErrUnknownChannel = errors.New("unknown channel")
	// ErrChannelNotRegistered: a valid channel with no adapter wired up.
	ErrChannelNotRegistered = errors.New("channel not registered")
	// ErrAuthenticationFailed: missing or invalid provider signature/token.
	ErrAuthenticationFailed = errors.New("signature verification failed")
	// ErrMalformedPayload: the body could not be parsed for its content type.
	ErrMalformedPayload = errors.New("malformed payload")
)

// NormalizationError reports a payload that parsed cleanly but violates the
// provider's expected schema.
type NormalizationError struct {
	Channel ChannelID
	Reason  string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("%s: normalize: %s", e.Channel, e.Reason)
}

// NewNormalizationError builds a NormalizationError for the given channel.
func NewNormalizationError(channel ChannelID, format string, args ...any) error {
	return &NormalizationError{Channel: channel, Reason: fmt.Sprintf(format, args...)}
}

// StatusFor maps a routing error to the HTTP status the provider contract
// expects. Unrecognized errors map to 500 (internal fault).
func StatusFor(err error) int {
	var normErr *NormalizationError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnknownChannel):
		return http.StatusNotFound
	case errors.Is(err, ErrChannelNotRegistered):
		return http.StatusNotImplemented
	case errors.Is(err, ErrAuthenticationFailed):
		return http.StatusUnauthorized
	case errors.Is(err, ErrMalformedPayload):
		return http.StatusBadRequest
	case errors.As(err, &normErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
