package app

import (
	"fmt"
	"strings"

	"github.com/wowthedoge/nudgebot/internal/conversation_service/domain"
)

const (
	// ApologyText is the only failure text a user ever sees from scheduling.
	ApologyText = "Sorry, I couldn't set that reminder. Could you tell me again when you'd like me to reach out?"
	// GenericFailureText answers a request whose reminder could not be saved.
	GenericFailureText = "Sorry, something went wrong on my side. Please try again in a moment."

	confirmationFormat = "\n\n✅ Got it! I'll send you a friendly reminder on %s"
)

const persona = `You're a caring friend who genuinely wants to see people succeed and feel their best. You're warm, encouraging, but not too eager, like you're texting a close buddy.
Your main role is to be the high-achieving friend who is concerned about their goals and wants them to succeed as well. However, don't be too pushy.
You celebrate their wins and gently nudge them when they need it.
You're curious about their goals, but you know it's up to them to take action. Only offer help when they ask for it.
Match the user's tone, energy and how much they write.
Also, gently try to find out who they are as a person.`

func replySystemPrompt(localNow, conversationContext string) string {
	var b strings.Builder
	b.WriteString(persona)
	b.WriteString("\n\nCurrent time where they are: ")
	b.WriteString(localNow)
	if conversationContext != "" {
		b.WriteString("\n\nHere's what you know about them and the previous conversation:\n")
		b.WriteString(conversationContext)
	}
	return b.String()
}

func reengageSystemPrompt(summary string) string {
	var b strings.Builder
	b.WriteString(persona)
	if summary != "" {
		b.WriteString("\n\nHere's a summary of the user:\n")
		b.WriteString(summary)
	}
	b.WriteString("\n\nIn under 10 words, ask a friendly, thoughtful question to start a conversation with the user.")
	return b.String()
}

const reengageUserMessage = "(The user has been quiet for a while. Write your opener.)"

func scheduleTool(zone, localNow string) domain.Tool {
	return domain.Tool{
		Name: ScheduleToolName,
		Description: fmt.Sprintf(`Schedule a supportive message or reminder for later.

Current time where they are: %s (timezone %s)

When they ask for reminders or check-ins, set up a message that'll reach them at just the right moment. Don't offer to schedule something unless they explicitly ask.

IMPORTANT:
- Always provide scheduledAtUtc in UTC, ending with 'Z'. Convert from their local time to UTC yourself.
- When you confirm with them, talk about the time in their timezone (%s), never in UTC.

Examples:
- "remind me in 30 minutes": 30 minutes from now, stored in UTC; tell them the local time you'll check in.
- "wake me up at 7am tomorrow": 7am tomorrow in their timezone, converted to UTC.`, localNow, zone, zone),
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"content": map[string]any{
					"type":        "string",
					"description": "A friendly, encouraging message that will be delivered to them at the scheduled time.",
				},
				"scheduledAtUtc": map[string]any{
					"type":        "string",
					"description": "REQUIRED: ISO 8601 UTC datetime ending with 'Z' (e.g. '2025-09-30T13:03:00Z').",
				},
			},
			"required": []string{"content", "scheduledAtUtc"},
		},
	}
}

// buildContext renders memory as the summary followed by "role: content" lines.
func buildContext(mem *domain.Memory) string {
	if mem == nil {
		return ""
	}
	var parts []string
	if mem.Summary != "" {
		parts = append(parts, "Summary: "+mem.Summary)
	}
	for _, m := range mem.Messages {
		parts = append(parts, fmt.Sprintf("%s: %s", m.Role, m.Content))
	}
	return strings.Join(parts, "\n")
}
