package channel

import "net/http"

// Adapter isolates one provider's wire format from the router. Implementations
// are stateless: every method is a pure function of the request data and the
// adapter's startup-time configuration.
type Adapter interface {
	ID() ChannelID
	Descriptor() Descriptor

	// VerifySignature checks the provider's authenticity scheme against the
	// captured raw body. It returns false, never an error, on malformed or
	// mismatched signatures; verification failure is a routing concern.
	// Comparisons against secrets must be constant-time.
	VerifySignature(meta InboundWebhookMeta) bool

	// Parse decodes the raw body per the provider's content type into a
	// provider-native payload structure.
	Parse(meta InboundWebhookMeta, body []byte) (any, error)

	// Normalize maps a parsed provider payload into the canonical envelope.
	// When the provider supplies no message id, implementations synthesize a
	// stable one so duplicate deliveries remain detectable downstream.
	Normalize(payload any) (NormalizedMessage, error)
}

// ChallengeResponse is the provider-defined reply to a webhook verification
// probe (the GET-based subscription handshake).
type ChallengeResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// ChallengeHandler is implemented only by adapters whose provider probes the
// webhook URL with a GET request and expects a specific echoed value before
// activating delivery. Returning false declines the challenge and lets the
// endpoint fall back to the generic status response.
type ChallengeHandler interface {
	HandleVerificationChallenge(r *http.Request) (ChallengeResponse, bool)
}
