package provider

import (
	"context"
)

// StubProvider is a scripted provider for testing and offline runs. It
// replays its canned responses in order and ignores the transcript.
type StubProvider struct {
	Responses []Response
}

func NewStubProvider() *StubProvider {
	return &StubProvider{
		Responses: []Response{
			{
				Content: "Let me look at the workspace first.",
				ToolCalls: []ToolCall{
					{ID: "call_1", Name: "list_dir", Args: `{"path": "."}`},
				},
				Usage: Usage{PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120},
			},
			{
				Content: "I found the relevant files. Nothing further to do.",
				Usage:   Usage{PromptTokens: 150, CompletionTokens: 25, TotalTokens: 175},
			},
		},
	}
}

func (m *StubProvider) Chat(ctx context.Context, messages []Message, _ []ToolSchema) (*Response, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if len(m.Responses) == 0 {
		return &Response{Content: "Done.", Usage: Usage{}}, nil
	}

	resp := m.Responses[0]
	m.Responses = m.Responses[1:]
	return &resp, nil
}

func (m *StubProvider) Name() string {
	return "stub"
}
