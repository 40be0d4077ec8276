package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wowthedoge/nudgebot/internal/conversation_service/domain"
)

// SentMessage records one DryRunProvider delivery.
type SentMessage struct {
	PhoneNumber string
	Text        string
	SentAt      time.Time
}

// DryRunProvider logs messages instead of delivering them. It is used when
// no delivery credential is configured.
type DryRunProvider struct {
	logger   *slog.Logger
	FailSend bool

	mu   sync.Mutex
	sent []SentMessage
}

func NewDryRunProvider(logger *slog.Logger, failSend bool) *DryRunProvider {
	return &DryRunProvider{
		logger:   logger.With("provider", "dry_run"),
		FailSend: failSend,
	}
}

func (p *DryRunProvider) Send(ctx context.Context, phoneNumber, text string) error {
	start := time.Now()
	if p.FailSend {
		providerRequestDurationHist.WithLabelValues(p.GetName(), "error").Observe(time.Since(start).Seconds())
		p.logger.WarnContext(ctx, "Dry-run provider simulated send failure", "recipient", phoneNumber)
		return fmt.Errorf("%w: dry-run provider simulated failure", domain.ErrSendFailed)
	}

	p.mu.Lock()
	p.sent = append(p.sent, SentMessage{PhoneNumber: phoneNumber, Text: text, SentAt: start.UTC()})
	p.mu.Unlock()

	providerRequestDurationHist.WithLabelValues(p.GetName(), "success").Observe(time.Since(start).Seconds())
	p.logger.InfoContext(ctx, "Dry-run provider: message not delivered", "recipient", phoneNumber, "content_length", len(text))
	return nil
}

// Sent returns a copy of everything accepted so far.
func (p *DryRunProvider) Sent() []SentMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]SentMessage(nil), p.sent...)
}

func (p *DryRunProvider) GetName() string {
	return "dry_run"
}
