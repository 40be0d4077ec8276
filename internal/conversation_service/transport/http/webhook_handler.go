package http

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/wowthedoge/nudgebot/internal/conversation_service/domain"
	"github.com/wowthedoge/nudgebot/internal/platform/messagebroker"
)

const (
	maxWebhookBodyBytes = 1 << 20
	signatureHeader     = "X-Hub-Signature-256"
)

// WebhookConfig carries the channel secrets and the queue subject.
type WebhookConfig struct {
	VerifyToken    string
	AppSecret      string
	InboundSubject string
}

// WebhookHandler receives channel callbacks and queues user texts on NATS.
type WebhookHandler struct {
	natsClient messagebroker.NATSClient
	validate   *validator.Validate
	config     WebhookConfig
	logger     *slog.Logger
}

func NewWebhookHandler(nc messagebroker.NATSClient, validate *validator.Validate, cfg WebhookConfig, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		natsClient: nc,
		validate:   validate,
		config:     cfg,
		logger:     logger.With("handler", "webhook"),
	}
}

// Verify answers the channel's subscription handshake.
func (h *WebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if mode != "subscribe" || h.config.VerifyToken == "" ||
		!hmac.Equal([]byte(token), []byte(h.config.VerifyToken)) {
		h.logger.WarnContext(r.Context(), "Webhook verification rejected", "mode", mode)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	h.logger.InfoContext(r.Context(), "Webhook verified")
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(challenge))
}

// Receive queues every text message in the payload. Non-text messages and
// status callbacks are acknowledged and ignored. With an app secret
// configured, requests without a valid signature are rejected.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		logger.ErrorContext(ctx, "Failed to read webhook body", "error", err)
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if h.config.AppSecret != "" {
		if sig := r.Header.Get(signatureHeader); sig == "" || !validSignature(body, sig, h.config.AppSecret) {
			logger.WarnContext(ctx, "Webhook signature missing or invalid")
			http.Error(w, "Invalid signature", http.StatusUnauthorized)
			return
		}
	}

	var env WebhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		logger.WarnContext(ctx, "Failed to decode webhook JSON", "error", err)
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}

	queued := 0
	for _, entry := range env.Entry {
		for _, change := range entry.Changes {
			for _, m := range change.Value.Messages {
				if m.Type != "text" || m.Text == nil {
					logger.DebugContext(ctx, "Skipping non-text message", "type", m.Type, "message_id", m.ID)
					continue
				}
				inbound := domain.InboundMessage{
					From:       m.From,
					Text:       m.Text.Body,
					MessageID:  m.ID,
					ReceivedAt: parseUnixTimestamp(m.Timestamp),
				}
				if err := h.validate.StructCtx(ctx, inbound); err != nil {
					logger.WarnContext(ctx, "Dropping invalid inbound message", "message_id", m.ID, "error", err)
					continue
				}
				data, err := json.Marshal(inbound)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to marshal inbound message", "error", err)
					http.Error(w, "Internal server error preparing data for queue", http.StatusInternalServerError)
					return
				}
				if err := h.natsClient.Publish(ctx, h.config.InboundSubject, data); err != nil {
					logger.ErrorContext(ctx, "Failed to publish inbound message", "error", err, "subject", h.config.InboundSubject)
					http.Error(w, "Failed to queue message for processing", http.StatusInternalServerError)
					return
				}
				queued++
			}
		}
	}

	logger.InfoContext(ctx, "Webhook processed", "queued", queued)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]int{"queued": queued})
}

func validSignature(body []byte, header, secret string) bool {
	got, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	decoded, err := hex.DecodeString(got)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(decoded, mac.Sum(nil))
}

func parseUnixTimestamp(s string) time.Time {
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil || secs <= 0 {
		return time.Now().UTC()
	}
	return time.Unix(secs, 0).UTC()
}
