package twilio_test

import (
	"context"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/tempohq/tempo/internal/channel"
	"github.com/tempohq/tempo/internal/channel/adapters/twilio"
)

const (
	testAuthToken  = "12345678901234567890123456789012"
	testRequestURL = "https://gateway.example.com/inbound/sms"
)

func signedMeta(t *testing.T, ch channel.ChannelID, form url.Values) channel.InboundWebhookMeta {
	t.Helper()
	body := form.Encode()
	return channel.InboundWebhookMeta{
		Channel:     ch,
		Signature:   twilio.ComputeSignature(testAuthToken, testRequestURL, form),
		RequestURL:  testRequestURL,
		ContentType: "application/x-www-form-urlencoded",
		RawBody:     []byte(body),
	}
}

func TestComputeSignature_Deterministic(t *testing.T) {
	t.Parallel()

	params := url.Values{}
	params.Set("From", "+15551234567")
	params.Set("Body", "hello")

	first := twilio.ComputeSignature(testAuthToken, testRequestURL, params)
	second := twilio.ComputeSignature(testAuthToken, testRequestURL, params)
	if first != second {
		t.Fatalf("signature not deterministic: %q vs %q", first, second)
	}
	if twilio.ComputeSignature("other-token", testRequestURL, params) == first {
		t.Fatal("different auth tokens produced the same signature")
	}
	if twilio.ComputeSignature(testAuthToken, "https://other.example.com/inbound/sms", params) == first {
		t.Fatal("different URLs produced the same signature")
	}
}

func TestVerifySignature(t *testing.T) {
	t.Parallel()
	adapter := twilio.NewSMSAdapter(nil, twilio.Config{AuthToken: testAuthToken})

	form := url.Values{}
	form.Set("MessageSid", "SM123")
	form.Set("From", "+15551234567")
	form.Set("Body", "hello")

	meta := signedMeta(t, channel.SMS, form)
	if !adapter.VerifySignature(meta) {
		t.Fatal("valid signature rejected")
	}

	meta.Signature = "tampered"
	if adapter.VerifySignature(meta) {
		t.Fatal("tampered signature accepted")
	}

	meta = signedMeta(t, channel.SMS, form)
	meta.RawBody = []byte("From=%2B15551234567&Body=changed")
	if adapter.VerifySignature(meta) {
		t.Fatal("signature accepted over altered body")
	}
}

func TestVerifySignature_NoToken(t *testing.T) {
	t.Parallel()
	adapter := twilio.NewSMSAdapter(nil, twilio.Config{})
	form := url.Values{}
	form.Set("Body", "hello")
	if adapter.VerifySignature(signedMeta(t, channel.SMS, form)) {
		t.Fatal("adapter without auth token accepted a signature")
	}
}

func TestParseAndNormalize_SMS(t *testing.T) {
	t.Parallel()
	adapter := twilio.NewSMSAdapter(nil, twilio.Config{AuthToken: testAuthToken})

	body := url.Values{}
	body.Set("MessageSid", "SM123")
	body.Set("AccountSid", "AC456")
	body.Set("From", "+15551234567")
	body.Set("To", "+15557654321")
	body.Set("Body", "hello")

	payload, err := adapter.Parse(channel.InboundWebhookMeta{}, []byte(body.Encode()))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	msg, err := adapter.Normalize(payload)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if msg.ID != "SM123" {
		t.Fatalf("ID = %q, want provider message sid", msg.ID)
	}
	if msg.SenderAddress != "+15551234567" {
		t.Fatalf("SenderAddress = %q", msg.SenderAddress)
	}
	if msg.Text != "hello" {
		t.Fatalf("Text = %q", msg.Text)
	}
}

func TestNormalize_WhatsAppPrefixStripped(t *testing.T) {
	t.Parallel()
	adapter := twilio.NewWhatsAppAdapter(nil, twilio.Config{AuthToken: testAuthToken})

	body := url.Values{}
	body.Set("MessageSid", "SM999")
	body.Set("From", "whatsapp:+15551234567")
	body.Set("Body", "hi")

	payload, err := adapter.Parse(channel.InboundWebhookMeta{}, []byte(body.Encode()))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	msg, err := adapter.Normalize(payload)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if msg.SenderAddress != "+15551234567" {
		t.Fatalf("SenderAddress = %q, want bare phone number", msg.SenderAddress)
	}
}

func TestNormalize_MissingFrom(t *testing.T) {
	t.Parallel()
	adapter := twilio.NewSMSAdapter(nil, twilio.Config{AuthToken: testAuthToken})

	payload, err := adapter.Parse(channel.InboundWebhookMeta{}, []byte("Body=hello"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := adapter.Normalize(payload); err == nil {
		t.Fatal("Normalize accepted payload without From")
	}
}

func TestHandleVerificationChallenge(t *testing.T) {
	t.Parallel()
	adapter := twilio.NewWhatsAppAdapter(nil, twilio.Config{AuthToken: testAuthToken, VerifyToken: "verify-me"})

	req := httptest.NewRequest("GET", "/inbound/whatsapp?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=12345", nil)
	resp, handled := adapter.HandleVerificationChallenge(req)
	if !handled {
		t.Fatal("valid handshake not handled")
	}
	if string(resp.Body) != "12345" {
		t.Fatalf("challenge echo = %q, want 12345", resp.Body)
	}

	req = httptest.NewRequest("GET", "/inbound/whatsapp?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil)
	if _, handled := adapter.HandleVerificationChallenge(req); handled {
		t.Fatal("handshake with wrong verify token handled")
	}
}

func TestRouter_SignedSMSDelivery(t *testing.T) {
	t.Parallel()
	registry := channel.NewRegistry(nil)
	registry.MustRegister(twilio.NewSMSAdapter(nil, twilio.Config{AuthToken: testAuthToken}))
	router := channel.NewRouter(nil, registry)

	form := url.Values{}
	form.Set("MessageSid", "SM777")
	form.Set("From", "+15551234567")
	form.Set("Body", "hello")
	meta := signedMeta(t, channel.SMS, form)

	result := router.Route(context.Background(), meta, meta.RawBody)
	if !result.Success || result.StatusCode != 200 {
		t.Fatalf("Route = %+v, want 200 success", result)
	}
	msg := result.Message
	if msg.Channel != channel.SMS || msg.SenderAddress != "+15551234567" || msg.Text != "hello" {
		t.Fatalf("Message = %+v", msg)
	}

	tampered := meta
	tampered.Signature = "forged"
	if result := router.Route(context.Background(), tampered, tampered.RawBody); result.Success || result.StatusCode != 401 {
		t.Fatalf("Route with forged signature = %+v, want 401 failure", result)
	}
}

func TestHandleVerificationChallenge_SMSDeclines(t *testing.T) {
	t.Parallel()
	adapter := twilio.NewSMSAdapter(nil, twilio.Config{AuthToken: testAuthToken, VerifyToken: "verify-me"})

	req := httptest.NewRequest("GET", "/inbound/sms?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=1", nil)
	if _, handled := adapter.HandleVerificationChallenge(req); handled {
		t.Fatal("sms adapter answered the subscription handshake")
	}
}
