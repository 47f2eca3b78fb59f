package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/LeventeLantos/whatsapp-autoreply/internal/config"
	"github.com/LeventeLantos/whatsapp-autoreply/internal/model"
)

func newTestClient(url string) *GraphClient {
	return NewGraphClient(config.PlatformConfig{
		BaseURL:       url,
		Version:       "v19.0",
		Token:         "tok-123",
		PhoneNumberID: "998877",
	})
}

func TestGraphClient_SendMessage_Text(t *testing.T) {
	t.Parallel()

	type gotReq struct {
		Method        string
		Path          string
		Authorization string
		ContentType   string
		Body          []byte
	}

	var captured gotReq

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.Method = r.Method
		captured.Path = r.URL.Path
		captured.Authorization = r.Header.Get("Authorization")
		captured.ContentType = r.Header.Get("Content-Type")

		b, _ := ioReadAll(r)
		captured.Body = b

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"messaging_product":"whatsapp","contacts":[{"input":"5491122334455","wa_id":"5491122334455"}],"messages":[{"id":"wamid.abc"}]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, err := c.SendMessage(ctx, model.NewTextMessage("5491122334455", "hello"))
	if err != nil {
		t.Fatalf("SendMessage() error: %v", err)
	}
	if res.MessageID != "wamid.abc" {
		t.Fatalf("expected message id %q, got %q", "wamid.abc", res.MessageID)
	}
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", res.StatusCode)
	}

	if captured.Method != http.MethodPost {
		t.Fatalf("expected method POST, got %q", captured.Method)
	}
	if captured.Path != "/v19.0/998877/messages" {
		t.Fatalf("unexpected path %q", captured.Path)
	}
	if captured.Authorization != "Bearer tok-123" {
		t.Fatalf("unexpected Authorization %q", captured.Authorization)
	}
	if captured.ContentType != "application/json" {
		t.Fatalf("expected Content-Type application/json, got %q", captured.ContentType)
	}

	var req map[string]any
	if err := json.Unmarshal(captured.Body, &req); err != nil {
		t.Fatalf("failed to decode request json: %v body=%q", err, string(captured.Body))
	}
	if req["messaging_product"] != "whatsapp" || req["to"] != "5491122334455" || req["type"] != "text" {
		t.Fatalf("unexpected envelope: %v", req)
	}
	text, ok := req["text"].(map[string]any)
	if !ok || text["body"] != "hello" {
		t.Fatalf("unexpected text payload: %v", req["text"])
	}
	if _, ok := req["template"]; ok {
		t.Fatalf("did not expect template payload: %v", req)
	}
}

func TestGraphClient_SendMessage_Template(t *testing.T) {
	t.Parallel()

	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = ioReadAll(r)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.tpl"}]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	msg := model.NewTemplateMessage("5491122334455", model.TemplateRef{Name: "hello_world", LanguageCode: "en_US"})
	if _, err := c.SendMessage(context.Background(), msg); err != nil {
		t.Fatalf("SendMessage() error: %v", err)
	}

	var req struct {
		Type     string `json:"type"`
		Text     any    `json:"text"`
		Template struct {
			Name     string `json:"name"`
			Language struct {
				Code string `json:"code"`
			} `json:"language"`
		} `json:"template"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		t.Fatalf("failed to decode request json: %v", err)
	}
	if req.Type != "template" || req.Template.Name != "hello_world" || req.Template.Language.Code != "en_US" {
		t.Fatalf("unexpected template request: %s", string(body))
	}
	if req.Text != nil {
		t.Fatalf("did not expect text payload: %s", string(body))
	}
}

func TestGraphClient_SendMessage_NonJSONSuccessWrapsRaw(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("queued"))
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).SendMessage(context.Background(), model.NewTextMessage("1", "x"))
	if err != nil {
		t.Fatalf("SendMessage() error: %v", err)
	}
	if res.Data["raw"] != "queued" {
		t.Fatalf("expected raw body wrapped, got %v", res.Data)
	}
	if res.MessageID != "" {
		t.Fatalf("expected no message id, got %q", res.MessageID)
	}
}

func TestGraphClient_SendMessage_Non2xxReturnsSendFailure(t *testing.T) {
	t.Parallel()

	const platformErr = `{"error":{"message":"Recipient phone number not in allowed list","code":131030}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(platformErr))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).SendMessage(context.Background(), model.NewTextMessage("1", "x"))
	if err == nil {
		t.Fatalf("expected error, got nil")
	}

	sf, ok := AsSendFailure(err)
	if !ok {
		t.Fatalf("expected SendFailure, got %T: %v", err, err)
	}
	if sf.HTTPStatus != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", sf.HTTPStatus)
	}
	if sf.RawBody != platformErr {
		t.Fatalf("expected raw body kept verbatim, got %q", sf.RawBody)
	}
	if !strings.Contains(err.Error(), "131030") {
		t.Fatalf("expected error text to carry platform code, got %v", err)
	}
}

func TestGraphClient_SendMessage_MissingCredentials(t *testing.T) {
	t.Parallel()

	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	cases := []struct {
		name    string
		cfg     config.PlatformConfig
		missing string
	}{
		{"no token", config.PlatformConfig{BaseURL: srv.URL, Version: "v19.0", PhoneNumberID: "1"}, "WHATSAPP_TOKEN"},
		{"no phone number id", config.PlatformConfig{BaseURL: srv.URL, Version: "v19.0", Token: "t"}, "PHONE_NUMBER_ID"},
	}

	for _, tc := range cases {
		c := NewGraphClient(tc.cfg)
		_, err := c.SendMessage(context.Background(), model.NewTextMessage("1", "x"))
		if !IsConfigurationError(err) {
			t.Fatalf("%s: expected configuration error, got %v", tc.name, err)
		}
		if !strings.Contains(err.Error(), tc.missing) {
			t.Fatalf("%s: expected error mentioning %s, got %v", tc.name, tc.missing, err)
		}
	}

	if calls != 0 {
		t.Fatalf("expected no outbound calls, got %d", calls)
	}
}

func TestGraphClient_SendMessage_InvalidMessage(t *testing.T) {
	t.Parallel()

	c := newTestClient("http://127.0.0.1:0")

	cases := []model.OutboundMessage{
		model.NewTextMessage("", "x"),
		{To: "1", Kind: model.KindTemplate},
		{To: "1", Kind: "audio"},
	}
	for _, msg := range cases {
		_, err := c.SendMessage(context.Background(), msg)
		var rich *goerrors.Error
		if !goerrors.As(err, &rich) {
			t.Fatalf("expected go-errors envelope for %+v, got %v", msg, err)
		}
		if rich.TextCode != TextCodeInvalidMessage || rich.Category != goerrors.CategoryBadInput {
			t.Fatalf("unexpected envelope for %+v: %+v", msg, rich)
		}
	}
}

func TestGraphClient_SendMessage_TransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestClient(url).SendMessage(context.Background(), model.NewTextMessage("1", "x"))
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if _, ok := AsSendFailure(err); ok {
		t.Fatalf("did not expect SendFailure for transport error")
	}
	if !strings.Contains(err.Error(), "send request") {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}
}

func TestGraphClient_SendMessage_ContextCanceled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := newTestClient(srv.URL).SendMessage(ctx, model.NewTextMessage("1", "x"))
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestGraphClient_PhoneNumberInfo_ProxiesVerbatim(t *testing.T) {
	t.Parallel()

	var path, auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "text/javascript; charset=UTF-8")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":190}}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL).PhoneNumberInfo(context.Background())
	if err != nil {
		t.Fatalf("PhoneNumberInfo() error: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 passed through, got %d", resp.StatusCode)
	}
	if string(resp.Body) != `{"error":{"code":190}}` {
		t.Fatalf("unexpected body %q", string(resp.Body))
	}
	if resp.ContentType != "text/javascript; charset=UTF-8" {
		t.Fatalf("unexpected content type %q", resp.ContentType)
	}
	if path != "/v19.0/998877" || auth != "Bearer tok-123" {
		t.Fatalf("unexpected request path=%q auth=%q", path, auth)
	}
}

func TestSendFailure_ToServiceError(t *testing.T) {
	t.Parallel()

	err := &SendFailure{HTTPStatus: 400, RawBody: "bad"}
	mapped := err.ToServiceError()
	if mapped == nil {
		t.Fatalf("expected mapped error")
	}
	if mapped.TextCode != TextCodeSendFailure {
		t.Fatalf("expected %q text code, got %q", TextCodeSendFailure, mapped.TextCode)
	}
	if mapped.Code != 400 {
		t.Fatalf("expected code 400, got %d", mapped.Code)
	}
	if mapped.Category != goerrors.CategoryExternal {
		t.Fatalf("expected external category, got %q", mapped.Category)
	}
}

func ioReadAll(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}
