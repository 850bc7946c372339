package provider

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/amiinehachemi/portfolio-copilot/config"
)

// Client represents different LLM providers
type Client string

const (
	OpenAI    Client = "openai"
	Anthropic Client = "anthropic"
)

// Message represents a message in a conversation
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Tool describes a function the model may decide to invoke.
type Tool struct {
	Name        string
	Description string
	Parameters  json.RawMessage // JSON schema for the arguments object
}

// ToolCall is the model's request to invoke a tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON arguments as emitted by the model
}

// ChatRequest is a single chat-completion request.
type ChatRequest struct {
	Messages    []Message
	Tools       []Tool
	Temperature *float64 // nil means use the configured default
	MaxTokens   int
}

// ChatResponse is the model's final output for one completion call. Either
// Content is set (the model answered) or ToolCalls is non-empty (the model
// wants a tool invoked before answering).
type ChatResponse struct {
	Content   string
	ToolCalls []ToolCall
}

// Provider is the interface that all LLM implementations must satisfy
type Provider interface {
	// ChatCompletion runs one blocking completion call.
	ChatCompletion(ctx context.Context, req ChatRequest) (ChatResponse, error)

	// ChatStream runs a streaming completion, invoking fn for every content
	// delta in generation order. A non-nil error from fn stops the stream.
	ChatStream(ctx context.Context, req ChatRequest, fn func(delta string) error) error

	// CreateEmbedding generates vector embeddings for the given texts
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// NewProvider creates a new LLM client based on the provided configuration
func NewProvider(client Client, cfg config.LLMConfig) (Provider, error) {
	switch client {
	case OpenAI:
		if cfg.APIKey == "" {
			return nil, errors.New("OPENAI_API_KEY not set")
		}
		return NewOpenAIClient(cfg), nil
	case Anthropic:
		return nil, errors.New("anthropic client not implemented yet")
	default:
		return nil, errors.New("unsupported LLM provider")
	}
}

// FunctionSchema builds a JSON-schema parameters block for a tool definition.
func FunctionSchema(props map[string]any, required ...string) json.RawMessage {
	b, _ := json.Marshal(map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	})
	return b
}
