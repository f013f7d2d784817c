package adapter

import "context"

// Message represents a chat message sent to the text-generation provider.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// AIServiceAdapter is the port for the external text-generation capability.
// Calls may fail or time out; callers wrap them with the retry utility.
type AIServiceAdapter interface {
	// Generate returns the assistant text for the given system instruction
	// and message history.
	Generate(ctx context.Context, system string, messages []Message) (string, error)

	// CountTokens returns prompt tokens for the provided messages
	// (provider-specific counting; best-effort when exact isn't available).
	CountTokens(ctx context.Context, messages []Message) (int, error)
}
