package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/wowthedoge/nudgebot/internal/conversation_service/domain"
)

// WhatsAppProvider sends text messages through the WhatsApp Cloud API.
type WhatsAppProvider struct {
	logger        *slog.Logger
	httpClient    *http.Client
	apiURL        string
	token         string
	phoneNumberID string
}

func NewWhatsAppProvider(logger *slog.Logger, apiURL, token, phoneNumberID string, httpClient *http.Client) *WhatsAppProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &WhatsAppProvider{
		logger:        logger.With("provider", "whatsapp"),
		httpClient:    httpClient,
		apiURL:        strings.TrimRight(apiURL, "/"),
		token:         token,
		phoneNumberID: phoneNumberID,
	}
}

type whatsAppSendRequest struct {
	MessagingProduct string           `json:"messaging_product"`
	To               string           `json:"to"`
	Type             string           `json:"type"`
	Text             whatsAppTextBody `json:"text"`
}

type whatsAppTextBody struct {
	Body string `json:"body"`
}

type whatsAppSendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type whatsAppErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Send posts one text message. Any non-2xx answer is reported as
// domain.ErrSendFailed.
func (p *WhatsAppProvider) Send(ctx context.Context, phoneNumber, text string) (err error) {
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		providerRequestDurationHist.WithLabelValues(p.GetName(), status).Observe(time.Since(start).Seconds())
	}()

	reqBytes, err := json.Marshal(whatsAppSendRequest{
		MessagingProduct: "whatsapp",
		To:               phoneNumber,
		Type:             "text",
		Text:             whatsAppTextBody{Body: text},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal WhatsApp request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", p.apiURL, p.phoneNumberID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBytes))
	if err != nil {
		return fmt.Errorf("failed to create WhatsApp request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.token)

	p.logger.DebugContext(ctx, "Sending WhatsApp message", "recipient", phoneNumber, "content_length", len(text))

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		p.logger.ErrorContext(ctx, "WhatsApp request failed", "error", err)
		return fmt.Errorf("%w: whatsapp request: %v", domain.ErrSendFailed, err)
	}
	defer httpResp.Body.Close()

	respBody, readErr := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		errMsg := fmt.Sprintf("status %d", httpResp.StatusCode)
		var apiErr whatsAppErrorResponse
		if readErr == nil && json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			errMsg = fmt.Sprintf("status %d, code %d: %s", httpResp.StatusCode, apiErr.Error.Code, apiErr.Error.Message)
		}
		p.logger.WarnContext(ctx, "WhatsApp send rejected", "status_code", httpResp.StatusCode, "error_message", errMsg)
		return fmt.Errorf("%w: whatsapp %s", domain.ErrSendFailed, errMsg)
	}

	var ok whatsAppSendResponse
	if readErr == nil && json.Unmarshal(respBody, &ok) == nil && len(ok.Messages) > 0 {
		p.logger.InfoContext(ctx, "WhatsApp message sent", "provider_message_id", ok.Messages[0].ID)
	} else {
		p.logger.InfoContext(ctx, "WhatsApp message sent; response not parsed", "status_code", httpResp.StatusCode)
	}
	return nil
}

func (p *WhatsAppProvider) GetName() string {
	return "whatsapp"
}
