package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const DefaultGraphBaseURL = "https://graph.facebook.com"
const DefaultGraphApiVersion = "v20.0"

// GraphAPIError is returned when the Graph API answers with a non-2xx status.
type GraphAPIError struct {
	StatusCode int
	Body       string
}

func (e GraphAPIError) Error() string {
	return fmt.Sprintf("whatsapp api error: status=%d body=%s", e.StatusCode, e.Body)
}

// SendResult carries the provider message id and the raw response body.
type SendResult struct {
	MessageID string         `json:"message_id"`
	Response  map[string]any `json:"response"`
}

// GraphClient sends WhatsApp Cloud API messages. The access token is passed per call
// because each tenant channel resolves its own.
type GraphClient struct {
	BaseURL    string
	ApiVersion string // e.g. v20.0
	HTTPClient *http.Client
}

func NewGraphClient(baseURL, apiVersion string, timeout time.Duration) GraphClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return GraphClient{
		BaseURL:    baseURL,
		ApiVersion: apiVersion,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

func (c GraphClient) messagesURL(phoneNumberID string) string {
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if base == "" {
		base = DefaultGraphBaseURL
	}
	apiVersion := strings.TrimSpace(c.ApiVersion)
	if apiVersion == "" {
		apiVersion = DefaultGraphApiVersion
	}
	return fmt.Sprintf("%s/%s/%s/messages", base, apiVersion, strings.TrimSpace(phoneNumberID))
}

func (c GraphClient) post(ctx context.Context, token, phoneNumberID string, body any) (SendResult, error) {
	if strings.TrimSpace(phoneNumberID) == "" {
		return SendResult{}, fmt.Errorf("phone_number_id é obrigatório")
	}

	b, err := json.Marshal(body)
	if err != nil {
		return SendResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.messagesURL(phoneNumberID), bytes.NewReader(b))
	if err != nil {
		return SendResult{}, err
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	req.Header.Set("Content-Type", "application/json")

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return SendResult{}, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return SendResult{}, GraphAPIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var parsed struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	result := SendResult{Response: map[string]any{}}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &result.Response)
		if err := json.Unmarshal(raw, &parsed); err == nil && len(parsed.Messages) > 0 {
			result.MessageID = parsed.Messages[0].ID
		}
	}
	return result, nil
}

// SendText sends a plain text message.
func (c GraphClient) SendText(ctx context.Context, token, phoneNumberID, to, text string) (SendResult, error) {
	return c.post(ctx, token, phoneNumberID, map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text": map[string]any{
			"body": text,
		},
	})
}

// SendTemplate sends an approved message template without parameters.
func (c GraphClient) SendTemplate(ctx context.Context, token, phoneNumberID, to, name, language string) (SendResult, error) {
	if strings.TrimSpace(language) == "" {
		language = "es"
	}
	return c.post(ctx, token, phoneNumberID, map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "template",
		"template": map[string]any{
			"name": name,
			"language": map[string]any{
				"code": language,
			},
		},
	})
}
