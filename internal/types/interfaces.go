package types

import (
	"context"
)

// LLMClient defines the interface for generative-model providers.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	// CompleteWithTools sends a prompt with tool definitions and returns
	// the response together with any tool calls the model proposed.
	CompleteWithTools(ctx context.Context, systemPrompt, userPrompt string, tools []ToolDefinition) (*LLMToolResponse, error)
}

// ToolDefinition describes one callable operation exposed to the model.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"` // JSON Schema for parameters
}

// ToolCall is one operation invocation proposed by the model.
type ToolCall struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

// UsageMetadata captures token usage from a model call.
type UsageMetadata struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// LLMToolResponse contains both the text response and the tool calls
// from one model turn.
type LLMToolResponse struct {
	Text       string        `json:"text"`
	ToolCalls  []ToolCall    `json:"tool_calls"`
	StopReason string        `json:"stop_reason"`
	Usage      UsageMetadata `json:"usage"`
}
