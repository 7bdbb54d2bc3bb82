package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type GeminiProvider struct {
	client *genai.Client
	model  string
}

func NewGeminiProvider(apiKey, model string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, errors.New("API key is required")
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	if model == "" {
		model = "gemini-1.5-pro-latest"
	}

	return &GeminiProvider{
		client: client,
		model:  model,
	}, nil
}

func (p *GeminiProvider) Name() string {
	return "gemini"
}

func geminiType(paramType string) genai.Type {
	switch paramType {
	case "boolean":
		return genai.TypeBoolean
	case "number":
		return genai.TypeNumber
	case "array":
		return genai.TypeArray
	default:
		return genai.TypeString
	}
}

func (p *GeminiProvider) Chat(ctx context.Context, messages []Message, schemas []ToolSchema) (*Response, error) {
	geminiModel := p.client.GenerativeModel(p.model)

	var decls []*genai.FunctionDeclaration
	for _, ts := range schemas {
		props := map[string]*genai.Schema{}
		var required []string
		for _, param := range ts.Params {
			schema := &genai.Schema{
				Type:        geminiType(param.Type),
				Description: param.Description,
			}
			if param.Type == "array" {
				schema.Items = &genai.Schema{Type: genai.TypeString}
			}
			props[param.Name] = schema
			if param.Required {
				required = append(required, param.Name)
			}
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        ts.Name,
			Description: ts.Description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: props,
				Required:   required,
			},
		})
	}
	if len(decls) > 0 {
		geminiModel.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	cs := geminiModel.StartChat()

	var history []*genai.Content
	if len(messages) > 0 {
		for _, m := range messages[:len(messages)-1] {
			if m.Role == "system" {
				geminiModel.SystemInstruction = &genai.Content{
					Parts: []genai.Part{genai.Text(m.Content)},
				}
				continue
			}

			role := "user"
			if m.Role == "assistant" {
				role = "model"
			}

			content := &genai.Content{
				Role: role,
			}

			if m.ToolCallID != "" {
				content.Role = "user"
				content.Parts = append(content.Parts, genai.FunctionResponse{
					Name:     m.ToolCallID,
					Response: map[string]any{"result": m.Content},
				})
			} else {
				if m.Content != "" {
					content.Parts = append(content.Parts, genai.Text(m.Content))
				}
				for _, tc := range m.ToolCalls {
					var args map[string]any
					json.Unmarshal([]byte(tc.Args), &args)
					content.Parts = append(content.Parts, genai.FunctionCall{
						Name: tc.Name,
						Args: args,
					})
				}
			}
			history = append(history, content)
		}
		cs.History = history
	}

	lastMsg := messages[len(messages)-1]
	resp, err := cs.SendMessage(ctx, genai.Text(lastMsg.Content))
	if err != nil {
		return nil, fmt.Errorf("gemini completion failed: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates returned")
	}
	cand := resp.Candidates[0]

	var contentStr string
	var toolCalls []ToolCall

	for _, part := range cand.Content.Parts {
		switch v := part.(type) {
		case genai.Text:
			contentStr += string(v)
		case genai.FunctionCall:
			argsBytes, _ := json.Marshal(v.Args)
			toolCalls = append(toolCalls, ToolCall{
				ID:   v.Name,
				Name: v.Name,
				Args: string(argsBytes),
			})
		}
	}

	usage := Usage{
		PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
		CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
	}

	return &Response{
		Content:   contentStr,
		ToolCalls: toolCalls,
		Usage:     usage,
	}, nil
}
