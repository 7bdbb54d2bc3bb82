// Package orchestrate drives a chat session: it owns the session state
// machine, persists every turn, and connects the router, executor, and
// storage behind a single entry point per utterance.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/apollo/internal/executor"
	"github.com/felixgeelhaar/apollo/internal/observe"
	"github.com/felixgeelhaar/apollo/internal/router"
	"github.com/felixgeelhaar/apollo/internal/store"
)

// State is the session lifecycle state. Terminated is absorbing.
type State string

const (
	StateIdle       State = "idle"
	StateActive     State = "active"
	StateProcessing State = "processing"
	StateTerminated State = "terminated"
)

var (
	ErrTerminated = errors.New("session is terminated")
	ErrBusy       = errors.New("an utterance is already being processed")
	ErrNoSession  = errors.New("no session started")
)

// Farewell words that end the session.
var exitWords = map[string]bool{"exit": true, "quit": true, "bye": true}

// Orchestrator coordinates one session at a time.
type Orchestrator struct {
	storage store.Storage
	router  *router.Router
	exec    *executor.Executor
	obs     *observe.Observer
	bus     *EventBus

	mu        sync.Mutex
	sessionID string
	state     State
}

func New(storage store.Storage, r *router.Router, exec *executor.Executor, obs *observe.Observer, bus *EventBus) *Orchestrator {
	if bus == nil {
		bus = NewEventBus()
	}
	return &Orchestrator{
		storage: storage,
		router:  r,
		exec:    exec,
		obs:     obs,
		bus:     bus,
		state:   StateIdle,
	}
}

// Bus exposes the event bus for UI subscriptions.
func (o *Orchestrator) Bus() *EventBus {
	return o.bus
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// SessionID returns the active session's identifier.
func (o *Orchestrator) SessionID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessionID
}

func (o *Orchestrator) transition(to State) {
	o.mu.Lock()
	from := o.state
	o.state = to
	id := o.sessionID
	o.mu.Unlock()

	o.bus.PublishWithData(EventStateTransition, id, map[string]interface{}{
		"from": string(from),
		"to":   string(to),
	})
}

// StartSession creates a new session, or resumes an existing one when id
// names a stored session. It returns the session identifier.
func (o *Orchestrator) StartSession(ctx context.Context, id string, metadata map[string]string) (string, error) {
	o.mu.Lock()
	if o.state == StateTerminated {
		o.mu.Unlock()
		return "", ErrTerminated
	}
	o.mu.Unlock()

	_, span := o.obs.StartSpan(ctx, "StartSession")
	defer span.End()

	if id == "" {
		id = uuid.NewString()
	}

	if existing, err := o.storage.GetSession(id); err == nil {
		o.mu.Lock()
		o.sessionID = existing.ID
		o.state = StateActive
		o.mu.Unlock()

		o.obs.Log().Info().Str("session", id).Msg("session resumed")
		o.bus.PublishSimple(EventSessionStart, id)
		return id, nil
	}

	now := time.Now()
	sess := &store.Session{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  metadata,
	}
	if err := o.storage.CreateSession(sess); err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}

	o.mu.Lock()
	o.sessionID = id
	o.state = StateActive
	o.mu.Unlock()

	o.obs.Log().Info().Str("session", id).Msg("session started")
	o.bus.PublishSimple(EventSessionStart, id)
	return id, nil
}

// HandleUtterance processes one user input and returns the text to show.
// A persistence failure terminates the session; every other failure leaves
// it active.
func (o *Orchestrator) HandleUtterance(ctx context.Context, utterance string) (string, error) {
	o.mu.Lock()
	switch o.state {
	case StateTerminated:
		o.mu.Unlock()
		return "", ErrTerminated
	case StateProcessing:
		o.mu.Unlock()
		return "", ErrBusy
	case StateIdle:
		o.mu.Unlock()
		return "", ErrNoSession
	}
	sessionID := o.sessionID
	o.mu.Unlock()

	utterance = strings.TrimSpace(utterance)
	if exitWords[strings.ToLower(utterance)] {
		if err := o.End(); err != nil {
			return "", err
		}
		return "Goodbye.", nil
	}

	o.transition(StateProcessing)
	defer func() {
		if o.State() == StateProcessing {
			o.transition(StateActive)
		}
	}()

	spanCtx, span := o.obs.StartSpan(ctx, "HandleUtterance")
	defer span.End()

	o.bus.PublishWithData(EventUtterance, sessionID, map[string]interface{}{"text": utterance})

	if err := o.appendTurn(&store.Turn{
		SessionID: sessionID,
		Role:      store.RoleUser,
		Content:   utterance,
	}); err != nil {
		return "", err
	}

	transcript, err := o.storage.ListTurns(sessionID)
	if err != nil {
		o.terminate(err)
		return "", fmt.Errorf("failed to load transcript: %w", err)
	}
	// The utterance itself is already persisted; the router gets the
	// turns that preceded it.
	if len(transcript) > 0 {
		transcript = transcript[:len(transcript)-1]
	}

	decision, err := o.router.Route(spanCtx, utterance, transcript)
	if err != nil {
		o.obs.Log().Error().Err(err).Str("session", sessionID).Msg("routing failed")
		reply := fmt.Sprintf("I could not act on that: %v", err)
		if appendErr := o.appendTurn(&store.Turn{
			SessionID: sessionID,
			Role:      store.RoleAssistant,
			Content:   reply,
		}); appendErr != nil {
			return "", appendErr
		}
		return reply, nil
	}

	if decision.Request != nil {
		return o.runTool(spanCtx, sessionID, decision)
	}

	if decision.Fallback {
		o.bus.PublishWithData(EventFallback, sessionID, map[string]interface{}{"reply": decision.Reply})
	} else {
		o.bus.PublishSimple(EventBackendReply, sessionID)
	}

	if err := o.appendTurn(&store.Turn{
		SessionID: sessionID,
		Role:      store.RoleAssistant,
		Content:   decision.Reply,
	}); err != nil {
		return "", err
	}
	return decision.Reply, nil
}

func (o *Orchestrator) runTool(ctx context.Context, sessionID string, decision *router.Decision) (string, error) {
	req := decision.Request

	o.bus.PublishWithData(EventToolCallStart, sessionID, map[string]interface{}{"tool": req.Tool})

	inv, summary := o.exec.Execute(ctx, sessionID, req.Tool, req.Args)

	o.bus.PublishWithData(EventToolCallEnd, sessionID, map[string]interface{}{
		"tool":   req.Tool,
		"status": inv.Status,
	})

	if err := o.appendTurn(&store.Turn{
		SessionID:  sessionID,
		Role:       store.RoleTool,
		Content:    summary,
		Invocation: inv,
	}); err != nil {
		return "", err
	}

	reply := composeToolReply(inv, summary)
	if err := o.appendTurn(&store.Turn{
		SessionID: sessionID,
		Role:      store.RoleAssistant,
		Content:   reply,
	}); err != nil {
		return "", err
	}
	return reply, nil
}

// appendTurn persists a turn, terminating the session on failure.
func (o *Orchestrator) appendTurn(turn *store.Turn) error {
	if err := o.storage.AppendTurn(turn); err != nil {
		o.terminate(err)
		return fmt.Errorf("failed to persist turn: %w", err)
	}
	return nil
}

func (o *Orchestrator) terminate(cause error) {
	o.mu.Lock()
	id := o.sessionID
	o.state = StateTerminated
	o.mu.Unlock()

	o.obs.Log().Error().Err(cause).Str("session", id).Msg("session terminated by persistence failure")
	o.bus.PublishWithData(EventSessionError, id, map[string]interface{}{"error": cause.Error()})
}

// End terminates the session normally.
func (o *Orchestrator) End() error {
	o.mu.Lock()
	if o.state == StateTerminated {
		o.mu.Unlock()
		return nil
	}
	id := o.sessionID
	o.state = StateTerminated
	o.mu.Unlock()

	if id != "" {
		if sess, err := o.storage.GetSession(id); err == nil {
			sess.UpdatedAt = time.Now()
			if err := o.storage.UpdateSession(sess); err != nil {
				o.obs.Log().Warn().Err(err).Msg("failed to stamp session end")
			}
		}
	}

	o.obs.Log().Info().Str("session", id).Msg("session ended")
	o.bus.PublishSimple(EventSessionEnd, id)
	return nil
}

func composeToolReply(inv *store.Invocation, summary string) string {
	took := executor.FormatDuration(inv.DurationMS)

	switch inv.Status {
	case store.StatusOK:
		var sb strings.Builder
		fmt.Fprintf(&sb, "Done in %s.", took)
		if inv.Warning != "" {
			fmt.Fprintf(&sb, " Warning: %s.", inv.Warning)
		}
		if summary != "" {
			sb.WriteString("\n")
			sb.WriteString(summary)
		}
		return sb.String()
	case store.StatusTimeout:
		return fmt.Sprintf("That took too long and was stopped after %s.", took)
	case store.StatusCancelled:
		return "That was cancelled."
	default:
		return fmt.Sprintf("That failed: %s.", inv.Error)
	}
}
