// Package channel provides the inbound multi-channel message abstraction:
// the canonical message envelope, the adapter contract for provider-specific
// webhook handling, a registry of adapters, and the inbound router.
package channel

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// ChannelID identifies a messaging provider (e.g., "sms", "telegram").
// The set of valid values is closed; adding a provider means registering a
// new adapter, not extending a schema.
type ChannelID string

const (
	Web      ChannelID = "web"
	SMS      ChannelID = "sms"
	WhatsApp ChannelID = "whatsapp"
	IMessage ChannelID = "imessage"
	Email    ChannelID = "email"
	Telegram ChannelID = "telegram"
)

// String returns the channel id as a plain string.
func (c ChannelID) String() string {
	return string(c)
}

// AllChannels lists every member of the closed channel enumeration.
func AllChannels() []ChannelID {
	return []ChannelID{Web, SMS, WhatsApp, IMessage, Email, Telegram}
}

// ParseChannelID validates and normalizes a raw string into a ChannelID.
// It reports false for anything outside the closed enumeration.
func ParseChannelID(raw string) (ChannelID, bool) {
	id := ChannelID(strings.ToLower(strings.TrimSpace(raw)))
	switch id {
	case Web, SMS, WhatsApp, IMessage, Email, Telegram:
		return id, true
	default:
		return "", false
	}
}

// Capabilities describes what a channel's provider supports. It is consumed
// by the webhook status endpoint and by outbound delivery (out of scope here).
type Capabilities struct {
	Text         bool `json:"text"`
	Media        bool `json:"media"`
	ReadReceipts bool `json:"read_receipts"`
	Reply        bool `json:"reply"`
	GroupChat    bool `json:"group_chat"`
}

// Descriptor holds read-only metadata for a registered channel. It contains
// no behavior; behavior lives on the adapter and its optional interfaces.
type Descriptor struct {
	Channel           ChannelID    `json:"channel"`
	DisplayName       string       `json:"display_name"`
	Capabilities      Capabilities `json:"capabilities"`
	RequiresSignature bool         `json:"-"`
	// SignatureHeader names the request header carrying the provider's
	// signature or token. "Authorization" values have their Bearer prefix
	// stripped before verification.
	SignatureHeader string `json:"-"`
	// TimestampHeader names the provider's timestamp header, when one exists.
	TimestampHeader string `json:"-"`
}

// InboundWebhookMeta is the request-scoped transport metadata an endpoint
// extracts before routing. It is built fresh per request and never persisted.
// RawBody is populated only when a signature is present: verification needs
// the exact byte sequence the provider signed.
type InboundWebhookMeta struct {
	Channel     ChannelID
	Signature   string
	Timestamp   string
	SourceIP    string
	RequestURL  string
	ContentType string
	RawBody     []byte
}

// NormalizedMessage is the canonical envelope every adapter produces.
// SenderUserID is filled in only after directory resolution and stays empty
// for first-contact senders.
type NormalizedMessage struct {
	ID            string         `json:"id"`
	Channel       ChannelID      `json:"channel"`
	SenderAddress string         `json:"sender_address"`
	SenderUserID  string         `json:"sender_user_id,omitempty"`
	Text          string         `json:"text"`
	ReceivedAt    time.Time      `json:"received_at"`
	Raw           map[string]any `json:"raw,omitempty"`
}

// RoutingResult is the uniform outcome of routing one inbound request.
// Success implies Message is non-nil. StatusCode follows each provider's
// acknowledgment convention and is returned to the provider as-is.
type RoutingResult struct {
	Success    bool
	StatusCode int
	Message    *NormalizedMessage
	Err        string
}

// SynthesizeMessageID derives a stable idempotency key for providers that do
// not supply a message id. Identical raw deliveries (provider retries) hash
// to the same id.
func SynthesizeMessageID(channel ChannelID, sender, timestamp, text string) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{
		channel.String(),
		strings.TrimSpace(sender),
		strings.TrimSpace(timestamp),
		text,
	}, "|")))
	return hex.EncodeToString(sum[:])[:32]
}
