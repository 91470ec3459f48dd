// Package imessage implements the iMessage relay channel adapter. The relay
// bridge authenticates with a short-lived ES256 bearer token; the token is
// verified against the bridge's public key before the payload is touched.
package imessage

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tempohq/tempo/internal/channel"
)

// Config holds the relay verification material. PublicKeyPEM is the PEM
// encoding of the relay's ECDSA public key.
type Config struct {
	PublicKeyPEM string
}

// Adapter implements the imessage channel.
type Adapter struct {
	publicKey *ecdsa.PublicKey
	logger    *slog.Logger
}

// New creates the iMessage relay adapter. Without a usable public key every
// delivery fails verification.
func New(log *slog.Logger, cfg Config) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	a := &Adapter{logger: log.With(slog.String("adapter", "imessage"))}
	if pem := strings.TrimSpace(cfg.PublicKeyPEM); pem != "" {
		publicKey, err := jwt.ParseECPublicKeyFromPEM([]byte(pem))
		if err != nil {
			a.logger.Warn("relay public key unusable", slog.Any("error", err))
		} else {
			a.publicKey = publicKey
		}
	}
	return a
}

// ID returns the imessage channel id.
func (a *Adapter) ID() channel.ChannelID {
	return channel.IMessage
}

// Descriptor returns the imessage channel metadata. The bearer token rides
// the Authorization header; the inbound endpoint strips the scheme prefix.
func (a *Adapter) Descriptor() channel.Descriptor {
	return channel.Descriptor{
		Channel:     channel.IMessage,
		DisplayName: "iMessage",
		Capabilities: channel.Capabilities{
			Text:         true,
			Media:        true,
			ReadReceipts: true,
			Reply:        true,
			GroupChat:    true,
		},
		RequiresSignature: true,
		SignatureHeader:   "Authorization",
	}
}

// VerifySignature validates the relay bearer token: ES256 only, signed by
// the configured public key, unexpired.
func (a *Adapter) VerifySignature(meta channel.InboundWebhookMeta) bool {
	if a.publicKey == nil {
		return false
	}
	token, err := jwt.Parse(meta.Signature, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.publicKey, nil
	}, jwt.WithValidMethods([]string{"ES256"}), jwt.WithExpirationRequired())
	if err != nil {
		a.logger.Debug("relay token rejected", slog.Any("error", err))
		return false
	}
	return token.Valid
}

// Payload is the relay-native structure of one inbound message.
type Payload struct {
	ID            string `json:"id"`
	SourceID      string `json:"sourceId"`
	DestinationID string `json:"destinationId"`
	Body          struct {
		Text string `json:"text"`
	} `json:"body"`
	Group  string `json:"group,omitempty"`
	SentAt string `json:"sentAt"`
}

// Parse decodes the JSON relay body.
func (a *Adapter) Parse(_ channel.InboundWebhookMeta, body []byte) (any, error) {
	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse relay message: %w", err)
	}
	return payload, nil
}

// Normalize maps a relay message into the canonical envelope.
func (a *Adapter) Normalize(payload any) (channel.NormalizedMessage, error) {
	p, ok := payload.(Payload)
	if !ok {
		return channel.NormalizedMessage{}, channel.NewNormalizationError(channel.IMessage, "unexpected payload type %T", payload)
	}
	sender := strings.TrimSpace(p.SourceID)
	if sender == "" {
		return channel.NormalizedMessage{}, channel.NewNormalizationError(channel.IMessage, "sourceId is required")
	}
	receivedAt := time.Now().UTC()
	if p.SentAt != "" {
		parsed, err := time.Parse(time.RFC3339, p.SentAt)
		if err != nil {
			return channel.NormalizedMessage{}, channel.NewNormalizationError(channel.IMessage, "invalid sentAt %q", p.SentAt)
		}
		receivedAt = parsed.UTC()
	}
	id := strings.TrimSpace(p.ID)
	if id == "" {
		id = channel.SynthesizeMessageID(channel.IMessage, sender, p.SentAt, p.Body.Text)
	}
	raw := map[string]any{
		"destination_id": p.DestinationID,
	}
	if p.Group != "" {
		raw["group"] = p.Group
	}
	return channel.NormalizedMessage{
		ID:            id,
		Channel:       channel.IMessage,
		SenderAddress: sender,
		Text:          p.Body.Text,
		ReceivedAt:    receivedAt,
		Raw:           raw,
	}, nil
}

var _ channel.Adapter = (*Adapter)(nil)
