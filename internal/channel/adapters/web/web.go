// Package web implements the first-party web client channel. Requests arrive
// from the authenticated web application behind the shared JWT middleware, so
// the adapter itself carries no signature scheme.
package web

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tempohq/tempo/internal/channel"
)

// Adapter implements the web channel.
type Adapter struct {
	logger *slog.Logger
}

// New creates the web channel adapter.
func New(log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{logger: log.With(slog.String("adapter", "web"))}
}

// ID returns the web channel id.
func (a *Adapter) ID() channel.ChannelID {
	return channel.Web
}

// Descriptor returns the web channel metadata.
func (a *Adapter) Descriptor() channel.Descriptor {
	return channel.Descriptor{
		Channel:     channel.Web,
		DisplayName: "Web",
		Capabilities: channel.Capabilities{
			Text:         true,
			Media:        true,
			ReadReceipts: true,
			Reply:        true,
		},
		RequiresSignature: false,
	}
}

// VerifySignature always accepts: the session is authenticated upstream.
func (a *Adapter) VerifySignature(channel.InboundWebhookMeta) bool {
	return true
}

// Payload is the web client message body.
type Payload struct {
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Parse decodes the JSON message body.
func (a *Adapter) Parse(_ channel.InboundWebhookMeta, body []byte) (any, error) {
	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse web message: %w", err)
	}
	return payload, nil
}

// Normalize maps a web message into the canonical envelope. The id is
// synthesized from the message content, so a client retry of the same
// delivery yields the same id.
func (a *Adapter) Normalize(payload any) (channel.NormalizedMessage, error) {
	p, ok := payload.(Payload)
	if !ok {
		return channel.NormalizedMessage{}, channel.NewNormalizationError(channel.Web, "unexpected payload type %T", payload)
	}
	sender := strings.TrimSpace(p.Sender)
	if sender == "" {
		return channel.NormalizedMessage{}, channel.NewNormalizationError(channel.Web, "sender is required")
	}
	if strings.TrimSpace(p.Text) == "" {
		return channel.NormalizedMessage{}, channel.NewNormalizationError(channel.Web, "text is required")
	}
	receivedAt := time.Now().UTC()
	if p.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, p.Timestamp)
		if err != nil {
			return channel.NormalizedMessage{}, channel.NewNormalizationError(channel.Web, "invalid timestamp %q", p.Timestamp)
		}
		receivedAt = parsed.UTC()
	}
	return channel.NormalizedMessage{
		ID:            channel.SynthesizeMessageID(channel.Web, sender, p.Timestamp, p.Text),
		Channel:       channel.Web,
		SenderAddress: sender,
		Text:          p.Text,
		ReceivedAt:    receivedAt,
	}, nil
}

var _ channel.Adapter = (*Adapter)(nil)
