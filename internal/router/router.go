// Package router turns a user utterance into either a tool request or a
// plain reply. Shorthand commands are resolved locally with a fixed
// precedence table; everything else goes to the model backend, whose tool
// calls are validated against the registry before they reach the executor.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/apollo/internal/observe"
	"github.com/felixgeelhaar/apollo/internal/provider"
	"github.com/felixgeelhaar/apollo/internal/store"
	"github.com/felixgeelhaar/apollo/internal/tool"
)

// SystemPrompt frames every backend conversation.
const SystemPrompt = `You are a pair-programming assistant working inside a user's code workspace.
The task may require creating a new codebase, producing tests, modifying or
debugging existing code, or simply answering a question.

Tool calling rules:
1. ALWAYS follow the tool call schema exactly and provide all required parameters.
2. NEVER call tools that are not explicitly provided.
3. NEVER refer to tool names when speaking to the user. Say "I will edit your file", not "I will use the edit_file tool".
4. Only call tools when necessary. If you already know the answer, respond directly.

Search rules:
1. Prefer the codebase search tool over grep, file search, and directory listing.
2. Once you have found a reasonable place to edit or answer, stop calling tools and act on what you found.`

// ErrNoDecision is returned when the backend produces neither a tool call
// nor reply text.
var ErrNoDecision = errors.New("backend returned neither tool call nor reply")

// Request is a validated tool invocation ready for execution.
type Request struct {
	Tool string
	Args tool.Args
}

// Decision is the router's verdict on one utterance. Exactly one of
// Request and Reply is meaningful; Fallback marks a reply that recovered
// from an invalid backend tool call.
type Decision struct {
	Request  *Request
	Reply    string
	Fallback bool
}

// Router resolves utterances using the shorthand table first and the
// backend second.
type Router struct {
	registry *tool.Registry
	backend  provider.Provider
	obs      *observe.Observer
	window   int
}

// New builds a Router. window is the number of trailing transcript turns
// forwarded to the backend; zero sends none.
func New(registry *tool.Registry, backend provider.Provider, obs *observe.Observer, window int) *Router {
	return &Router{
		registry: registry,
		backend:  backend,
		obs:      obs,
		window:   window,
	}
}

// Route decides what to do with an utterance. The transcript holds the
// session's prior turns in order.
func (r *Router) Route(ctx context.Context, utterance string, transcript []*store.Turn) (*Decision, error) {
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return nil, fmt.Errorf("%w: empty utterance", tool.ErrInvalidArgs)
	}

	if req, ok := r.shorthand(utterance); ok {
		args, err := r.registry.Normalize(req.Tool, req.Args)
		if err != nil {
			return nil, err
		}
		req.Args = args
		r.obs.Log().Debug().Str("tool", req.Tool).Msg("shorthand matched")
		return &Decision{Request: req}, nil
	}

	return r.delegate(ctx, utterance, transcript)
}

// shorthand table, checked in order. The first matching verb wins.
var shorthandVerbs = []string{
	"search", "grep", "codebase", "ls", "list", "web", "wiki",
	"edit", "delete", "rm", "reapply", "run",
}

func (r *Router) shorthand(utterance string) (*Request, bool) {
	fields := strings.Fields(utterance)
	verb := strings.ToLower(fields[0])
	rest := strings.TrimSpace(strings.TrimPrefix(utterance, fields[0]))

	known := false
	for _, v := range shorthandVerbs {
		if v == verb {
			known = true
			break
		}
	}
	if !known {
		return nil, false
	}

	switch verb {
	case "search":
		if rest == "" {
			return nil, false
		}
		return &Request{Tool: "file_search", Args: tool.Args{"query": rest}}, true
	case "grep":
		if rest == "" {
			return nil, false
		}
		return &Request{Tool: "grep_search", Args: tool.Args{"query": rest}}, true
	case "codebase":
		if rest == "" {
			return nil, false
		}
		return &Request{Tool: "codebase_search", Args: tool.Args{"query": rest}}, true
	case "ls", "list":
		path := rest
		if path == "" {
			path = "."
		}
		return &Request{Tool: "list_dir", Args: tool.Args{"path": path}}, true
	case "web":
		if rest == "" {
			return nil, false
		}
		return &Request{Tool: "web_search", Args: tool.Args{"search_term": rest}}, true
	case "wiki":
		if rest == "" {
			return nil, false
		}
		return &Request{Tool: "wiki_search", Args: tool.Args{"search_term": rest}}, true
	case "edit":
		// edit <file> <content...>
		parts := strings.Fields(rest)
		if len(parts) < 2 {
			return nil, false
		}
		content := strings.TrimSpace(strings.TrimPrefix(rest, parts[0]))
		return &Request{Tool: "edit_file", Args: tool.Args{
			"target_file": parts[0],
			"content":     content,
		}}, true
	case "delete", "rm":
		if rest == "" || len(strings.Fields(rest)) != 1 {
			return nil, false
		}
		return &Request{Tool: "delete_file", Args: tool.Args{"target_file": rest}}, true
	case "reapply":
		if rest == "" || len(strings.Fields(rest)) != 1 {
			return nil, false
		}
		return &Request{Tool: "reapply", Args: tool.Args{"target_file": rest}}, true
	case "run":
		if rest == "" {
			return nil, false
		}
		return &Request{Tool: "run_command", Args: tool.Args{"command": rest}}, true
	}
	return nil, false
}

// delegate forwards the utterance to the backend with a windowed
// transcript and validates whatever comes back.
func (r *Router) delegate(ctx context.Context, utterance string, transcript []*store.Turn) (*Decision, error) {
	messages := []provider.Message{{Role: "system", Content: SystemPrompt}}

	turns := transcript
	if r.window >= 0 && len(turns) > r.window {
		turns = turns[len(turns)-r.window:]
	}
	for _, t := range turns {
		messages = append(messages, provider.Message{Role: t.Role, Content: t.Content})
	}
	messages = append(messages, provider.Message{Role: store.RoleUser, Content: utterance})

	schemas := provider.SchemasFromSpecs(r.registry.List())

	resp, err := r.backend.Chat(ctx, messages, schemas)
	if err != nil {
		return nil, fmt.Errorf("backend chat failed: %w", err)
	}

	if len(resp.ToolCalls) > 0 {
		call := resp.ToolCalls[0]

		var args tool.Args
		if call.Args != "" {
			if err := json.Unmarshal([]byte(call.Args), &args); err != nil {
				return r.recover(resp, call.Name, fmt.Errorf("unparseable arguments: %w", err))
			}
		}

		normalized, err := r.registry.Normalize(call.Name, args)
		if err != nil {
			return r.recover(resp, call.Name, err)
		}

		r.obs.Log().Debug().Str("tool", call.Name).Msg("backend tool call validated")
		return &Decision{Request: &Request{Tool: call.Name, Args: normalized}}, nil
	}

	if resp.Content != "" {
		return &Decision{Reply: resp.Content}, nil
	}

	return nil, ErrNoDecision
}

// recover downgrades an invalid backend tool call to a plain reply so a
// hallucinated tool never reaches the executor.
func (r *Router) recover(resp *provider.Response, toolName string, cause error) (*Decision, error) {
	r.obs.Log().Warn().
		Str("tool", toolName).
		Err(cause).
		Msg("rejected backend tool call")

	reply := resp.Content
	if reply == "" {
		reply = fmt.Sprintf("I tried to take an action that is not available (%s). Could you rephrase the request?", toolName)
	}
	return &Decision{Reply: reply, Fallback: true}, nil
}
