package domain

import (
	"context"
	"encoding/json"
)

// Tool declares a function the chat-completion capability may invoke.
// InputSchema is a JSON schema object.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// ToolInvocation is a tool call returned by the model, arguments undecoded.
type ToolInvocation struct {
	Name string
	Args json.RawMessage
}

// Completion is the model's answer: free text, a tool call, or both.
type Completion struct {
	Text           string
	ToolInvocation *ToolInvocation
}

// ChatCompleter is the intent producer.
type ChatCompleter interface {
	Complete(ctx context.Context, systemPrompt, userMessage string, tools []Tool) (*Completion, error)
}

// Summarizer condenses history into a new rolling summary.
type Summarizer interface {
	Summarize(ctx context.Context, messages []Message, previousSummary string) (string, error)
}

// MessageSender delivers text to an end user's device.
type MessageSender interface {
	Send(ctx context.Context, phoneNumber, text string) error
}
