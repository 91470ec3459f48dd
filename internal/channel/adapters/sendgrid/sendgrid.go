// Package sendgrid implements the transactional email channel adapter. The
// provider signs each event delivery over the raw payload: ECDSA (P-256,
// ASN.1, base64) with a provider-issued verification key when one is
// configured, or HMAC-SHA256 keyed by a shared signing key otherwise. Both
// schemes cover timestamp+payload, so a replayed body with a shifted
// timestamp fails verification.
package sendgrid

import (
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/tempohq/tempo/internal/channel"
)

const (
	// SignatureHeader carries the base64 event signature.
	SignatureHeader = "X-Email-Event-Signature"
	// TimestampHeader carries the signing timestamp.
	TimestampHeader = "X-Email-Event-Timestamp"
)

// Config holds the provider verification material. VerificationKey is the
// base64 DER encoding of the provider's ECDSA public key; SigningKey is the
// shared HMAC secret used when no public key is issued.
type Config struct {
	VerificationKey string
	SigningKey      string
}

// Adapter implements the email channel.
type Adapter struct {
	cfg       Config
	publicKey *ecdsa.PublicKey
	logger    *slog.Logger
}

// New creates the email channel adapter. An unparseable verification key is
// logged and ignored; the adapter then falls back to the HMAC scheme.
func New(log *slog.Logger, cfg Config) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	a := &Adapter{
		cfg:    cfg,
		logger: log.With(slog.String("adapter", "email")),
	}
	if key := strings.TrimSpace(cfg.VerificationKey); key != "" {
		publicKey, err := parseVerificationKey(key)
		if err != nil {
			a.logger.Warn("verification key unusable, falling back to signing key", slog.Any("error", err))
		} else {
			a.publicKey = publicKey
		}
	}
	return a
}

func parseVerificationKey(encoded string) (*ecdsa.PublicKey, error) {
	der, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode verification key: %w", err)
	}
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse verification key: %w", err)
	}
	publicKey, ok := parsed.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("verification key is %T, want ECDSA", parsed)
	}
	return publicKey, nil
}

// ID returns the email channel id.
func (a *Adapter) ID() channel.ChannelID {
	return channel.Email
}

// Descriptor returns the email channel metadata.
func (a *Adapter) Descriptor() channel.Descriptor {
	return channel.Descriptor{
		Channel:     channel.Email,
		DisplayName: "Email",
		Capabilities: channel.Capabilities{
			Text:  true,
			Media: true,
			Reply: true,
		},
		RequiresSignature: true,
		SignatureHeader:   SignatureHeader,
		TimestampHeader:   TimestampHeader,
	}
}

// VerifySignature checks the event signature over timestamp+payload.
func (a *Adapter) VerifySignature(meta channel.InboundWebhookMeta) bool {
	signed := append([]byte(strings.TrimSpace(meta.Timestamp)), meta.RawBody...)
	if a.publicKey != nil {
		signature, err := base64.StdEncoding.DecodeString(strings.TrimSpace(meta.Signature))
		if err != nil {
			return false
		}
		digest := sha256.Sum256(signed)
		return ecdsa.VerifyASN1(a.publicKey, digest[:], signature)
	}
	signingKey := strings.TrimSpace(a.cfg.SigningKey)
	if signingKey == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(signingKey))
	mac.Write(signed)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(meta.Signature)))
}

// Payload is the provider-native structure of one inbound email event.
type Payload struct {
	MessageID string `json:"message_id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Subject   string `json:"subject"`
	Text      string `json:"text"`
	HTML      string `json:"html"`
	Timestamp int64  `json:"timestamp"`
}

// Parse decodes the JSON event body.
func (a *Adapter) Parse(_ channel.InboundWebhookMeta, body []byte) (any, error) {
	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse email event: %w", err)
	}
	return payload, nil
}

// Normalize maps an inbound email event into the canonical envelope. The
// sender address is the bare address part of the From header; display names
// are kept in Raw. Bodiless emails fall back to the subject line.
func (a *Adapter) Normalize(payload any) (channel.NormalizedMessage, error) {
	p, ok := payload.(Payload)
	if !ok {
		return channel.NormalizedMessage{}, channel.NewNormalizationError(channel.Email, "unexpected payload type %T", payload)
	}
	sender := strings.TrimSpace(p.From)
	if sender == "" {
		return channel.NormalizedMessage{}, channel.NewNormalizationError(channel.Email, "from address is required")
	}
	if addr, err := mail.ParseAddress(sender); err == nil {
		sender = addr.Address
	}
	text := strings.TrimSpace(p.Text)
	if text == "" {
		text = strings.TrimSpace(p.Subject)
	}
	receivedAt := time.Now().UTC()
	if p.Timestamp > 0 {
		receivedAt = time.Unix(p.Timestamp, 0).UTC()
	}
	id := strings.Trim(strings.TrimSpace(p.MessageID), "<>")
	if id == "" {
		id = channel.SynthesizeMessageID(channel.Email, sender, fmt.Sprint(p.Timestamp), p.Subject+p.Text)
	}
	return channel.NormalizedMessage{
		ID:            id,
		Channel:       channel.Email,
		SenderAddress: sender,
		Text:          text,
		ReceivedAt:    receivedAt,
		Raw: map[string]any{
			"from":    p.From,
			"to":      p.To,
			"subject": p.Subject,
		},
	}, nil
}

var _ channel.Adapter = (*Adapter)(nil)
