package provider

import (
	"context"

	"github.com/felixgeelhaar/apollo/internal/tool"
)

// Message represents a chat message.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // For tool results
}

// Response represents the output from the model.
type Response struct {
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Usage     Usage      `json:"usage"`
}

type ToolCall struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Args string `json:"args"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ToolSchema describes one tool the model may call. Adapters translate it
// into each vendor's function-calling format.
type ToolSchema struct {
	Name        string
	Description string
	Params      []tool.Param
}

// SchemaFromSpec converts a registered tool spec into a provider schema.
func SchemaFromSpec(s tool.Spec) ToolSchema {
	return ToolSchema{
		Name:        s.Name,
		Description: s.Description,
		Params:      s.Params,
	}
}

// SchemasFromSpecs converts a tool catalog into provider schemas.
func SchemasFromSpecs(specs []tool.Spec) []ToolSchema {
	schemas := make([]ToolSchema, len(specs))
	for i, s := range specs {
		schemas[i] = SchemaFromSpec(s)
	}
	return schemas
}

// JSONSchema returns the parameters as a JSON Schema object, the shape
// OpenAI and Anthropic expect.
func (ts ToolSchema) JSONSchema() map[string]interface{} {
	props := map[string]interface{}{}
	var required []string
	for _, p := range ts.Params {
		props[p.Name] = map[string]interface{}{
			"type":        p.Type,
			"description": p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]interface{}{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// Provider defines the interface for AI model interactions.
type Provider interface {
	// Chat sends the transcript and the available tool catalog to the
	// model and returns its next response.
	Chat(ctx context.Context, messages []Message, tools []ToolSchema) (*Response, error)

	// Name returns the provider identifier (e.g., "stub", "openai").
	Name() string
}
