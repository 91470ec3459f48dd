package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/tempohq/tempo/internal/channel"
	"github.com/tempohq/tempo/internal/directory"
)

const maxBodyBytes int64 = 1 << 20 // 1 MiB

// Dispatcher receives each accepted message after normalization.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg channel.NormalizedMessage)
}

// LogDispatcher logs accepted messages. It stands in until a downstream
// consumer is attached.
type LogDispatcher struct {
	logger *slog.Logger
}

func NewLogDispatcher(log *slog.Logger) *LogDispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &LogDispatcher{logger: log.With(slog.String("component", "dispatcher"))}
}

func (d *LogDispatcher) Dispatch(_ context.Context, msg channel.NormalizedMessage) {
	d.logger.Info("message accepted",
		slog.String("message_id", msg.ID),
		slog.String("channel", msg.Channel.String()),
		slog.String("sender", msg.SenderAddress),
		slog.String("user_id", msg.SenderUserID),
	)
}

// InboundResponse is the JSON body returned for every inbound delivery.
type InboundResponse struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// StatusResponse is the JSON body for channel status probes.
type StatusResponse struct {
	Channel      string               `json:"channel"`
	Status       string               `json:"status"`
	Capabilities channel.Capabilities `json:"capabilities"`
}

// InboundHandler receives provider webhook deliveries and hands them to the
// router.
type InboundHandler struct {
	router     *channel.Router
	registry   *channel.Registry
	directory  directory.Resolver
	dispatcher Dispatcher
	logger     *slog.Logger
}

func NewInboundHandler(log *slog.Logger, router *channel.Router, registry *channel.Registry, resolver directory.Resolver, dispatcher Dispatcher) *InboundHandler {
	if log == nil {
		log = slog.Default()
	}
	return &InboundHandler{
		router:     router,
		registry:   registry,
		directory:  resolver,
		dispatcher: dispatcher,
		logger:     log.With(slog.String("handler", "inbound")),
	}
}

func (h *InboundHandler) Register(e *echo.Echo) {
	e.POST("/inbound/:channel", h.HandleInbound)
	e.GET("/inbound/:channel", h.HandleStatus)
}

// HandleInbound processes one webhook delivery. The response status code is
// the routing outcome: unknown channel 404, unregistered 501, bad signature
// 401, malformed payload 400, normalization fault 422, accepted 200.
func (h *InboundHandler) HandleInbound(c echo.Context) error {
	ch, ok := channel.ParseChannelID(c.Param("channel"))
	if !ok {
		return c.JSON(http.StatusNotFound, InboundResponse{Error: "unknown channel"})
	}

	requestID := uuid.NewString()
	log := h.logger.With(
		slog.String("request_id", requestID),
		slog.String("channel", ch.String()),
	)

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes+1))
	if err != nil {
		log.Warn("body read failed", slog.Any("error", err))
		return c.JSON(http.StatusBadRequest, InboundResponse{Error: "unreadable body"})
	}
	if int64(len(body)) > maxBodyBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, InboundResponse{Error: "payload too large"})
	}

	meta := h.buildMeta(c, ch, body)
	result := h.router.Route(c.Request().Context(), meta, body)
	if !result.Success {
		log.Warn("delivery rejected",
			slog.Int("status", result.StatusCode),
			slog.String("detail", result.Err),
		)
		return c.JSON(result.StatusCode, InboundResponse{Error: result.Err})
	}

	msg := *result.Message
	if h.directory != nil {
		if userID, found := h.directory.Resolve(c.Request().Context(), msg.Channel, msg.SenderAddress); found {
			msg.SenderUserID = userID
		}
	}
	if h.dispatcher != nil {
		h.dispatcher.Dispatch(c.Request().Context(), msg)
	}

	log.Info("delivery accepted", slog.String("message_id", msg.ID))
	return c.JSON(http.StatusOK, InboundResponse{Success: true, MessageID: msg.ID})
}

// buildMeta collects the request attributes the adapter needs for
// verification. The raw body rides along only when a signature is present.
func (h *InboundHandler) buildMeta(c echo.Context, ch channel.ChannelID, body []byte) channel.InboundWebhookMeta {
	req := c.Request()
	meta := channel.InboundWebhookMeta{
		Channel:     ch,
		SourceIP:    c.RealIP(),
		RequestURL:  c.Scheme() + "://" + req.Host + req.RequestURI,
		ContentType: req.Header.Get(echo.HeaderContentType),
	}

	desc, ok := h.registry.GetDescriptor(ch)
	if !ok {
		return meta
	}
	if desc.SignatureHeader != "" {
		signature := req.Header.Get(desc.SignatureHeader)
		if desc.SignatureHeader == "Authorization" {
			signature = strings.TrimPrefix(signature, "Bearer ")
		}
		meta.Signature = signature
	}
	if desc.TimestampHeader != "" {
		meta.Timestamp = req.Header.Get(desc.TimestampHeader)
	}
	if meta.Signature != "" {
		meta.RawBody = body
	}
	return meta
}

// HandleStatus answers provider verification challenges and plain status
// probes on the webhook URL.
func (h *InboundHandler) HandleStatus(c echo.Context) error {
	ch, ok := channel.ParseChannelID(c.Param("channel"))
	if !ok {
		return c.JSON(http.StatusNotFound, InboundResponse{Error: "unknown channel"})
	}
	adapter, ok := h.registry.Get(ch)
	if !ok {
		return c.JSON(http.StatusNotImplemented, InboundResponse{Error: "channel not configured"})
	}

	if challenger, ok := h.registry.GetChallengeHandler(ch); ok {
		if resp, handled := challenger.HandleVerificationChallenge(c.Request()); handled {
			return c.Blob(resp.StatusCode, resp.ContentType, resp.Body)
		}
	}

	return c.JSON(http.StatusOK, StatusResponse{
		Channel:      ch.String(),
		Status:       "active",
		Capabilities: adapter.Descriptor().Capabilities,
	})
}
