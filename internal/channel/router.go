package channel

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
)

// Router orchestrates one inbound webhook end to end: adapter lookup,
// signature verification, payload parsing, and normalization. Every expected
// failure mode is returned as a RoutingResult with an explicit status code;
// webhook callers key their retry and backoff policies to these codes, so
// nothing here is allowed to escape as an exception. Only a genuine adapter
// defect (a panic) maps to 500.
type Router struct {
	registry *Registry
	logger   *slog.Logger
}

// NewRouter creates a Router over the given registry.
func NewRouter(log *slog.Logger, registry *Registry) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		registry: registry,
		logger:   log.With(slog.String("component", "inbound_router")),
	}
}

// Route admits, verifies, and normalizes a single inbound request. The body
// is the raw byte capture the endpoint read exactly once; the same buffer
// backs both the signature check and the parsed payload.
func (r *Router) Route(ctx context.Context, meta InboundWebhookMeta, body []byte) (result RoutingResult) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("inbound routing panic",
				slog.String("channel", meta.Channel.String()),
				slog.Any("panic", rec),
			)
			result = failure(http.StatusInternalServerError, fmt.Sprintf("internal fault: %v", rec))
		}
	}()

	adapter, ok := r.registry.Get(meta.Channel)
	if !ok {
		return failure(StatusFor(ErrChannelNotRegistered), "channel not configured")
	}

	if meta.Signature != "" {
		if !adapter.VerifySignature(meta) {
			r.logger.Warn("signature verification failed",
				slog.String("channel", meta.Channel.String()),
				slog.String("source_ip", meta.SourceIP),
			)
			return failure(StatusFor(ErrAuthenticationFailed), ErrAuthenticationFailed.Error())
		}
	} else if adapter.Descriptor().RequiresSignature {
		// Missing required signature fails closed, same as a bad one.
		r.logger.Warn("required signature absent",
			slog.String("channel", meta.Channel.String()),
			slog.String("source_ip", meta.SourceIP),
		)
		return failure(StatusFor(ErrAuthenticationFailed), ErrAuthenticationFailed.Error())
	}

	payload, err := adapter.Parse(meta, body)
	if err != nil {
		r.logger.Warn("payload parse failed",
			slog.String("channel", meta.Channel.String()),
			slog.Any("error", err),
		)
		return failure(StatusFor(ErrMalformedPayload), ErrMalformedPayload.Error())
	}

	msg, err := adapter.Normalize(payload)
	if err != nil {
		r.logger.Warn("normalization failed",
			slog.String("channel", meta.Channel.String()),
			slog.Any("error", err),
		)
		return failure(http.StatusUnprocessableEntity, err.Error())
	}
	msg.Channel = meta.Channel

	return RoutingResult{
		Success:    true,
		StatusCode: http.StatusOK,
		Message:    &msg,
	}
}

func failure(status int, detail string) RoutingResult {
	return RoutingResult{
		Success:    false,
		StatusCode: status,
		Err:        detail,
	}
}
