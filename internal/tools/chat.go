package tools

import (
	"context"

	"github.com/felixgeelhaar/apollo/internal/provider"
	"github.com/felixgeelhaar/apollo/internal/tool"
)

// Chat builds the chat tool: a plain question to the model with no tool
// catalog attached, for when the backend wants a direct answer.
func Chat(p provider.Provider) (tool.Spec, tool.Handler) {
	spec := tool.Spec{
		Name:        "chat",
		Description: "Ask the model a question and return its plain-text answer",
		Params: []tool.Param{
			{Name: "message", Type: "string", Description: "The question or message for the model", Required: true},
		},
		Effect: tool.EffectNetwork,
	}

	handler := func(ctx context.Context, sessionID string, args tool.Args) (*tool.Result, error) {
		message := args.String("message", "")

		resp, err := p.Chat(ctx, []provider.Message{
			{Role: "user", Content: message},
		}, nil)
		if err != nil {
			return nil, err
		}

		return &tool.Result{Payload: resp.Content}, nil
	}

	return spec, handler
}
