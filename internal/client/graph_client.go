package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/LeventeLantos/whatsapp-autoreply/internal/config"
	"github.com/LeventeLantos/whatsapp-autoreply/internal/model"
)

const maxResponseBody int64 = 1 << 20

// GraphClient talks to the WhatsApp Cloud API (Meta Graph API).
type GraphClient struct {
	baseURL       string
	version       string
	token         string
	phoneNumberID string
	client        *http.Client
}

func NewGraphClient(cfg config.PlatformConfig) *GraphClient {
	return &GraphClient{
		baseURL:       cfg.BaseURL,
		version:       cfg.Version,
		token:         cfg.Token,
		phoneNumberID: cfg.PhoneNumberID,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type sendRequest struct {
	MessagingProduct string           `json:"messaging_product"`
	To               string           `json:"to"`
	Type             string           `json:"type"`
	Text             *textPayload     `json:"text,omitempty"`
	Template         *templatePayload `json:"template,omitempty"`
}

type textPayload struct {
	Body string `json:"body"`
}

type templatePayload struct {
	Name     string          `json:"name"`
	Language languagePayload `json:"language"`
}

type languagePayload struct {
	Code string `json:"code"`
}

// SendResult is the accepted response. Data is the decoded JSON body, or
// {"raw": body} when the platform answered with something else.
type SendResult struct {
	StatusCode int
	MessageID  string
	Data       map[string]any
}

func (c *GraphClient) SendMessage(ctx context.Context, msg model.OutboundMessage) (SendResult, error) {
	if err := c.checkCredentials(); err != nil {
		return SendResult{}, err
	}

	payload, err := buildSendRequest(msg)
	if err != nil {
		return SendResult{}, err
	}

	reqBody, err := json.Marshal(payload)
	if err != nil {
		return SendResult{}, err
	}

	url := fmt.Sprintf("%s/%s/%s/messages", c.baseURL, c.version, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return SendResult{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return SendResult{}, fmt.Errorf("graph api: send request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return SendResult{}, &SendFailure{HTTPStatus: resp.StatusCode, RawBody: string(body)}
	}

	result := SendResult{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(body, &result.Data); err != nil || result.Data == nil {
		result.Data = map[string]any{"raw": string(body)}
	}
	result.MessageID = firstMessageID(result.Data)
	return result, nil
}

// RawResponse is an upstream reply kept exactly as received.
type RawResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// PhoneNumberInfo fetches the configured phone number object. The response
// is returned as received so callers can proxy it.
func (c *GraphClient) PhoneNumberInfo(ctx context.Context) (RawResponse, error) {
	if err := c.checkCredentials(); err != nil {
		return RawResponse{}, err
	}

	url := fmt.Sprintf("%s/%s/%s", c.baseURL, c.version, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return RawResponse{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return RawResponse{}, fmt.Errorf("graph api: phone number request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return RawResponse{}, fmt.Errorf("graph api: read phone number response: %w", err)
	}
	return RawResponse{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

func (c *GraphClient) checkCredentials() error {
	if c.token == "" {
		return configurationError("WHATSAPP_TOKEN")
	}
	if c.phoneNumberID == "" {
		return configurationError("PHONE_NUMBER_ID")
	}
	return nil
}

func buildSendRequest(msg model.OutboundMessage) (sendRequest, error) {
	if msg.To == "" {
		return sendRequest{}, invalidMessage("recipient is required")
	}

	req := sendRequest{
		MessagingProduct: "whatsapp",
		To:               string(msg.To),
		Type:             string(msg.Kind),
	}

	switch msg.Kind {
	case model.KindText:
		req.Text = &textPayload{Body: msg.Body}
	case model.KindTemplate:
		if msg.Template == nil || msg.Template.Name == "" {
			return sendRequest{}, invalidMessage("template name is required")
		}
		req.Template = &templatePayload{
			Name:     msg.Template.Name,
			Language: languagePayload{Code: msg.Template.LanguageCode},
		}
	default:
		return sendRequest{}, invalidMessage(fmt.Sprintf("unsupported message kind %q", msg.Kind))
	}
	return req, nil
}

// firstMessageID reads messages[0].id from an accepted send response.
func firstMessageID(data map[string]any) string {
	msgs, ok := data["messages"].([]any)
	if !ok || len(msgs) == 0 {
		return ""
	}
	first, ok := msgs[0].(map[string]any)
	if !ok {
		return ""
	}
	id, _ := first["id"].(string)
	return id
}
