package channel_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/tempohq/tempo/internal/channel"
)

// fakeAdapter gives each routing stage a controllable outcome.
type fakeAdapter struct {
	id           channel.ChannelID
	requiresSig  bool
	verifyResult bool
	parseErr     error
	normalizeErr error
	panicOn      string
}

func (a *fakeAdapter) ID() channel.ChannelID { return a.id }

func (a *fakeAdapter) Descriptor() channel.Descriptor {
	return channel.Descriptor{Channel: a.id, DisplayName: "Fake", RequiresSignature: a.requiresSig}
}

func (a *fakeAdapter) VerifySignature(channel.InboundWebhookMeta) bool {
	if a.panicOn == "verify" {
		panic("verify blew up")
	}
	return a.verifyResult
}

func (a *fakeAdapter) Parse(_ channel.InboundWebhookMeta, body []byte) (any, error) {
	if a.panicOn == "parse" {
		panic("parse blew up")
	}
	if a.parseErr != nil {
		return nil, a.parseErr
	}
	return string(body), nil
}

func (a *fakeAdapter) Normalize(payload any) (channel.NormalizedMessage, error) {
	if a.panicOn == "normalize" {
		panic("normalize blew up")
	}
	if a.normalizeErr != nil {
		return channel.NormalizedMessage{}, a.normalizeErr
	}
	return channel.NormalizedMessage{
		ID:            "fake-1",
		SenderAddress: "sender",
		Text:          payload.(string),
	}, nil
}

func newRouterWith(t *testing.T, adapters ...channel.Adapter) *channel.Router {
	t.Helper()
	reg := channel.NewRegistry(nil)
	for _, a := range adapters {
		reg.MustRegister(a)
	}
	return channel.NewRouter(nil, reg)
}

func TestRoute_UnregisteredChannel(t *testing.T) {
	t.Parallel()
	router := newRouterWith(t)

	result := router.Route(context.Background(), channel.InboundWebhookMeta{Channel: channel.SMS}, nil)
	if result.Success || result.StatusCode != http.StatusNotImplemented {
		t.Fatalf("Route on empty registry = %+v, want 501 failure", result)
	}
}

func TestRoute_BadSignature(t *testing.T) {
	t.Parallel()
	router := newRouterWith(t, &fakeAdapter{id: channel.SMS, requiresSig: true, verifyResult: false})

	meta := channel.InboundWebhookMeta{Channel: channel.SMS, Signature: "tampered"}
	result := router.Route(context.Background(), meta, []byte("body"))
	if result.Success || result.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Route with bad signature = %+v, want 401 failure", result)
	}
}

func TestRoute_MissingRequiredSignature(t *testing.T) {
	t.Parallel()
	router := newRouterWith(t, &fakeAdapter{id: channel.SMS, requiresSig: true, verifyResult: true})

	result := router.Route(context.Background(), channel.InboundWebhookMeta{Channel: channel.SMS}, []byte("body"))
	if result.Success || result.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Route without required signature = %+v, want 401 failure", result)
	}
}

func TestRoute_MalformedPayload(t *testing.T) {
	t.Parallel()
	router := newRouterWith(t, &fakeAdapter{id: channel.Web, parseErr: errors.New("bad json")})

	result := router.Route(context.Background(), channel.InboundWebhookMeta{Channel: channel.Web}, []byte("{"))
	if result.Success || result.StatusCode != http.StatusBadRequest {
		t.Fatalf("Route with unparseable body = %+v, want 400 failure", result)
	}
}

func TestRoute_NormalizationFault(t *testing.T) {
	t.Parallel()
	router := newRouterWith(t, &fakeAdapter{
		id:           channel.Web,
		normalizeErr: channel.NewNormalizationError(channel.Web, "sender is required"),
	})

	result := router.Route(context.Background(), channel.InboundWebhookMeta{Channel: channel.Web}, []byte("body"))
	if result.Success || result.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("Route with normalize fault = %+v, want 422 failure", result)
	}
	if result.Err == "" {
		t.Fatal("422 result carries no detail")
	}
}

func TestRoute_Success(t *testing.T) {
	t.Parallel()
	router := newRouterWith(t, &fakeAdapter{id: channel.Web})

	result := router.Route(context.Background(), channel.InboundWebhookMeta{Channel: channel.Web}, []byte("hello"))
	if !result.Success || result.StatusCode != http.StatusOK {
		t.Fatalf("Route = %+v, want 200 success", result)
	}
	if result.Message == nil || result.Message.Text != "hello" {
		t.Fatalf("Message = %+v, want normalized text", result.Message)
	}
	if result.Message.Channel != channel.Web {
		t.Fatalf("Message.Channel = %q, want web", result.Message.Channel)
	}
}

func TestRoute_PanicBecomesInternalFault(t *testing.T) {
	t.Parallel()

	for _, stage := range []string{"verify", "parse", "normalize"} {
		router := newRouterWith(t, &fakeAdapter{id: channel.Web, verifyResult: true, panicOn: stage})
		meta := channel.InboundWebhookMeta{Channel: channel.Web, Signature: "sig"}
		result := router.Route(context.Background(), meta, []byte("body"))
		if result.Success || result.StatusCode != http.StatusInternalServerError {
			t.Fatalf("stage %s: Route = %+v, want 500 failure", stage, result)
		}
	}
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want int
	}{
		{err: nil, want: http.StatusOK},
		{err: channel.ErrUnknownChannel, want: http.StatusNotFound},
		{err: channel.ErrChannelNotRegistered, want: http.StatusNotImplemented},
		{err: channel.ErrAuthenticationFailed, want: http.StatusUnauthorized},
		{err: channel.ErrMalformedPayload, want: http.StatusBadRequest},
		{err: channel.NewNormalizationError(channel.SMS, "bad"), want: http.StatusUnprocessableEntity},
		{err: errors.New("surprise"), want: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := channel.StatusFor(tc.err); got != tc.want {
			t.Fatalf("StatusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
