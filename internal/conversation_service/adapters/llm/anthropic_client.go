// Package llm adapts the Anthropic Messages API to the chat-completion and
// summarization capabilities.
package llm

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

const anthropicVersion = "2023-06-01"

// Config holds the client's endpoint and budgets.
type Config struct {
	BaseURL          string
	APIKey           string
	Model            string
	MaxTokens        int
	SummaryMaxTokens int
}

// AnthropicClient implements domain.ChatCompleter and domain.Summarizer.
type AnthropicClient struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

func NewAnthropicClient(cfg Config, httpClient *http.Client, logger *slog.Logger) *AnthropicClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 300
	}
	if cfg.SummaryMaxTokens <= 0 {
		cfg.SummaryMaxTokens = 600
	}
	return &AnthropicClient{cfg: cfg, httpClient: httpClient, logger: logger.With("component", "anthropic_client")}
}

type messagesRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system,omitempty"`
	Messages  []chatMessage `json:"messages"`
	Tools     []domain.Tool `json:"tools,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type contentBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

type messagesResponse struct {
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
}

type apiErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends one user message with the given tools. Text blocks are
// joined; only the first tool_use block is returned.
func (c *AnthropicClient) Complete(ctx context.Context, systemPrompt, userMessage string, tools []domain.Tool) (*domain.Completion, error) {
	resp, err := c.createMessage(ctx, messagesRequest{
		Model:     c.cfg.Model,
		MaxTokens: c.cfg.MaxTokens,
		System:    systemPrompt,
		Messages:  []chatMessage{{Role: "user", Content: userMessage}},
		Tools:     tools,
	})
	if err != nil {
		return nil, err
	}

	out := &domain.Completion{}
	var text strings.Builder
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			if out.ToolInvocation == nil {
				out.ToolInvocation = &domain.ToolInvocation{Name: block.Name, Args: block.Input}
			}
		}
	}
	out.Text = text.String()
	return out, nil
}

// Summarize folds messages and the previous summary into a new summary.
func (c *AnthropicClient) Summarize(ctx context.Context, messages []domain.Message, previousSummary string) (string, error) {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, fmt.Sprintf("%s: %s", m.Role, m.Content))
	}

	resp, err := c.createMessage(ctx, messagesRequest{
		Model:     c.cfg.Model,
		MaxTokens: c.cfg.SummaryMaxTokens,
		System:    summarySystemPrompt(previousSummary),
		Messages:  []chatMessage{{Role: "user", Content: strings.Join(lines, "\n")}},
	})
	if err != nil {
		return "", err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	summary := strings.TrimSpace(text.String())
	if summary == "" {
		return "", fmt.Errorf("anthropic returned an empty summary")
	}
	return summary, nil
}

func (c *AnthropicClient) createMessage(ctx context.Context, body messagesRequest) (*messagesResponse, error) {
	reqBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/messages", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	c.logger.DebugContext(ctx, "Anthropic response", "status_code", httpResp.StatusCode, "duration", time.Since(start))

	if httpResp.StatusCode != http.StatusOK {
		var apiErr apiErrorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("anthropic API error (status %d, %s): %s", httpResp.StatusCode, apiErr.Error.Type, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("anthropic API error (status %d)", httpResp.StatusCode)
	}

	var resp messagesResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &resp, nil
}

func summarySystemPrompt(previousSummary string) string {
	var b strings.Builder
	b.WriteString("You're a caring friend who genuinely wants to see people succeed and feel their best.")
	if previousSummary != "" {
		b.WriteString("\n\nWhat you knew before:\n")
		b.WriteString(previousSummary)
	}
	b.WriteString("\n\nCreate a summary of your conversation that captures their habits, goals, challenges, and what matters to them. ")
	b.WriteString("Write it like you're taking notes about a friend you care about, including the important stuff so you can be genuinely helpful next time. Just the summary, nothing else.")
	return b.String()
}
