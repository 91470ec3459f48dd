// Package twilio implements the SMS and WhatsApp channel adapters for a
// Twilio-style messaging gateway: form-encoded webhook deliveries signed with
// an HMAC-SHA1 over the full request URL plus the sorted POST parameters.
package twilio

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/tempohq/tempo/internal/channel"
)

// SignatureHeader carries the gateway's request signature.
const SignatureHeader = "X-Twilio-Signature"

const whatsappAddressPrefix = "whatsapp:"

// Config holds the gateway credentials shared by the sms and whatsapp
// adapters. AuthToken keys the webhook HMAC. VerifyToken, when set on the
// whatsapp adapter, enables the Meta-style GET subscription handshake.
type Config struct {
	AccountSID  string
	AuthToken   string
	VerifyToken string
}

// Adapter handles one gateway-backed channel. The same wire format serves
// both sms and whatsapp; only the channel id and address shape differ.
type Adapter struct {
	id     channel.ChannelID
	cfg    Config
	logger *slog.Logger
}

// NewSMSAdapter creates the sms channel adapter.
func NewSMSAdapter(log *slog.Logger, cfg Config) *Adapter {
	return newAdapter(log, channel.SMS, cfg)
}

// NewWhatsAppAdapter creates the whatsapp channel adapter.
func NewWhatsAppAdapter(log *slog.Logger, cfg Config) *Adapter {
	return newAdapter(log, channel.WhatsApp, cfg)
}

func newAdapter(log *slog.Logger, id channel.ChannelID, cfg Config) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{
		id:     id,
		cfg:    cfg,
		logger: log.With(slog.String("adapter", id.String())),
	}
}

// ID returns the channel this adapter instance serves.
func (a *Adapter) ID() channel.ChannelID {
	return a.id
}

// Descriptor returns the channel metadata.
func (a *Adapter) Descriptor() channel.Descriptor {
	desc := channel.Descriptor{
		Channel:     a.id,
		DisplayName: "SMS",
		Capabilities: channel.Capabilities{
			Text: true,
		},
		RequiresSignature: true,
		SignatureHeader:   SignatureHeader,
	}
	if a.id == channel.WhatsApp {
		desc.DisplayName = "WhatsApp"
		desc.Capabilities = channel.Capabilities{
			Text:         true,
			Media:        true,
			ReadReceipts: true,
			Reply:        true,
		}
	}
	return desc
}

// VerifySignature recomputes the gateway HMAC from the request URL and the
// sorted form parameters and compares it against the header value.
func (a *Adapter) VerifySignature(meta channel.InboundWebhookMeta) bool {
	if strings.TrimSpace(a.cfg.AuthToken) == "" {
		return false
	}
	params, err := url.ParseQuery(string(meta.RawBody))
	if err != nil {
		return false
	}
	expected := ComputeSignature(a.cfg.AuthToken, meta.RequestURL, params)
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(meta.Signature)))
}

// ComputeSignature builds the gateway signature: HMAC-SHA1 over the full URL
// followed by every POST parameter key+value in sorted key order, keyed by
// the account auth token, base64 encoded.
func ComputeSignature(authToken, requestURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var builder strings.Builder
	builder.WriteString(requestURL)
	for _, key := range keys {
		for _, value := range params[key] {
			builder.WriteString(key)
			builder.WriteString(value)
		}
	}
	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(builder.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Payload is the provider-native structure of one inbound gateway message.
type Payload struct {
	MessageSID string
	AccountSID string
	From       string
	To         string
	Body       string
	NumMedia   string
}

// Parse decodes the form-encoded webhook body.
func (a *Adapter) Parse(_ channel.InboundWebhookMeta, body []byte) (any, error) {
	params, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse form body: %w", err)
	}
	return Payload{
		MessageSID: strings.TrimSpace(params.Get("MessageSid")),
		AccountSID: strings.TrimSpace(params.Get("AccountSid")),
		From:       strings.TrimSpace(params.Get("From")),
		To:         strings.TrimSpace(params.Get("To")),
		Body:       params.Get("Body"),
		NumMedia:   strings.TrimSpace(params.Get("NumMedia")),
	}, nil
}

// Normalize maps a gateway payload into the canonical envelope. WhatsApp
// addresses arrive prefixed ("whatsapp:+1555...") and are stripped down to
// the bare phone number.
func (a *Adapter) Normalize(payload any) (channel.NormalizedMessage, error) {
	p, ok := payload.(Payload)
	if !ok {
		return channel.NormalizedMessage{}, channel.NewNormalizationError(a.id, "unexpected payload type %T", payload)
	}
	sender := strings.TrimPrefix(p.From, whatsappAddressPrefix)
	if sender == "" {
		return channel.NormalizedMessage{}, channel.NewNormalizationError(a.id, "From is required")
	}
	id := p.MessageSID
	if id == "" {
		id = channel.SynthesizeMessageID(a.id, sender, "", p.Body)
	}
	return channel.NormalizedMessage{
		ID:            id,
		Channel:       a.id,
		SenderAddress: sender,
		Text:          p.Body,
		ReceivedAt:    time.Now().UTC(),
		Raw: map[string]any{
			"message_sid": p.MessageSID,
			"account_sid": p.AccountSID,
			"to":          p.To,
			"num_media":   p.NumMedia,
		},
	}, nil
}

// HandleVerificationChallenge answers the Meta-style GET subscription
// handshake (hub.mode / hub.verify_token / hub.challenge) when a verify
// token is configured. Only the whatsapp adapter participates.
func (a *Adapter) HandleVerificationChallenge(r *http.Request) (channel.ChallengeResponse, bool) {
	if a.id != channel.WhatsApp || strings.TrimSpace(a.cfg.VerifyToken) == "" {
		return channel.ChallengeResponse{}, false
	}
	query := r.URL.Query()
	if query.Get("hub.mode") != "subscribe" {
		return channel.ChallengeResponse{}, false
	}
	provided := query.Get("hub.verify_token")
	if subtle.ConstantTimeCompare([]byte(provided), []byte(a.cfg.VerifyToken)) != 1 {
		a.logger.Warn("subscription handshake verify token mismatch")
		return channel.ChallengeResponse{}, false
	}
	return channel.ChallengeResponse{
		StatusCode:  http.StatusOK,
		ContentType: "text/plain",
		Body:        []byte(query.Get("hub.challenge")),
	}, true
}

var (
	_ channel.Adapter          = (*Adapter)(nil)
	_ channel.ChallengeHandler = (*Adapter)(nil)
)
