// Package executor runs validated tool requests: it applies the policy
// timeout, serializes conflicting file edits, records the outcome as an
// invocation, and commits successful mutations to the edit history.
package executor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/apollo/internal/guard"
	"github.com/felixgeelhaar/apollo/internal/history"
	"github.com/felixgeelhaar/apollo/internal/observe"
	"github.com/felixgeelhaar/apollo/internal/store"
	"github.com/felixgeelhaar/apollo/internal/tool"
)

// Payloads longer than this are stored as artifacts; the turn keeps a
// truncated summary.
const inlinePayloadLimit = 2048

const summaryLength = 400

// Executor runs tool requests end to end.
type Executor struct {
	registry *tool.Registry
	hist     *history.Log
	storage  store.Storage
	guard    *guard.Guard
	obs      *observe.Observer

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(registry *tool.Registry, hist *history.Log, storage store.Storage, g *guard.Guard, obs *observe.Observer) *Executor {
	return &Executor{
		registry: registry,
		hist:     hist,
		storage:  storage,
		guard:    g,
		obs:      obs,
		locks:    make(map[string]*sync.Mutex),
	}
}

// fileLock returns the mutex serializing edits to one file in one session.
func (e *Executor) fileLock(sessionID, path string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := sessionID + "\x00" + path
	if m, ok := e.locks[key]; ok {
		return m
	}
	m := &sync.Mutex{}
	e.locks[key] = m
	return m
}

// Execute runs one tool call and always returns an invocation record; the
// second return value is the payload summary to store on the tool turn.
// Failures are reported through the invocation status, not an error.
func (e *Executor) Execute(ctx context.Context, sessionID, toolName string, args tool.Args) (*store.Invocation, string) {
	inv := &store.Invocation{
		Tool: toolName,
		Args: stringifyArgs(args),
	}

	handler, err := e.registry.Handler(toolName)
	if err != nil {
		inv.Status = store.StatusError
		inv.Error = err.Error()
		return inv, ""
	}
	spec, _ := e.registry.Resolve(toolName)

	// Concurrent edits to the same file in one session run serially.
	if spec.Effect == tool.EffectMutatesFS {
		if target := args.String("target_file", ""); target != "" {
			lock := e.fileLock(sessionID, target)
			lock.Lock()
			defer lock.Unlock()
		}
	}

	spanCtx, span := e.obs.StartToolSpan(ctx, toolName, sessionID)
	defer span.End()

	runCtx, cancel := context.WithTimeout(spanCtx, e.guard.Policy().ToolTimeout)
	defer cancel()

	start := time.Now()
	result, err := handler(runCtx, sessionID, args)
	inv.DurationMS = time.Since(start).Milliseconds()

	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		inv.Status = store.StatusTimeout
		inv.Error = fmt.Sprintf("tool %s exceeded %s", toolName, e.guard.Policy().ToolTimeout)
	case errors.Is(ctx.Err(), context.Canceled):
		inv.Status = store.StatusCancelled
		inv.Error = "tool call cancelled"
	case err != nil:
		inv.Status = store.StatusError
		inv.Error = err.Error()
	case result == nil:
		// Handlers are an extension point; a nil result without an error
		// is a handler bug, not a crash.
		inv.Status = store.StatusError
		inv.Error = fmt.Sprintf("tool %s returned no result", toolName)
	default:
		inv.Status = store.StatusOK
	}

	e.obs.Log().Info().
		Str("session", sessionID).
		Str("tool", toolName).
		Str("status", inv.Status).
		Str("took", FormatDuration(inv.DurationMS)).
		Msg("tool call finished")

	if inv.Status != store.StatusOK {
		// Mutations from failed or interrupted runs never reach the
		// history: reapply must only see committed edits.
		return inv, ""
	}

	inv.Warning = result.Warning

	if result.Mutation != nil {
		e.hist.Append(history.Record{
			SessionID: sessionID,
			Path:      result.Mutation.Path,
			Existed:   result.Mutation.Existed,
			Previous:  result.Mutation.Previous,
			Content:   result.Mutation.Content,
			Removed:   result.Mutation.Removed,
			At:        time.Now(),
		})
	}

	summary := result.Payload
	if len(result.Payload) > inlinePayloadLimit {
		artifactID, err := e.saveArtifact(sessionID, toolName, result.Payload)
		if err != nil {
			e.obs.Log().Warn().Err(err).Msg("failed to save artifact; keeping truncated payload only")
		} else {
			inv.ArtifactID = artifactID
		}
		summary = result.Payload[:summaryLength] + "... [truncated]"
	}

	return inv, summary
}

func (e *Executor) saveArtifact(sessionID, toolName, payload string) (string, error) {
	digest := sha256.Sum256([]byte(payload))
	art := &store.Artifact{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Path:      fmt.Sprintf("%s/%s-%s.json", sessionID, toolName, uuid.NewString()),
		Type:      "tool_output",
		CreatedAt: time.Now(),
		Digest:    hex.EncodeToString(digest[:]),
	}
	if err := e.storage.SaveArtifact(art, []byte(payload)); err != nil {
		return "", err
	}
	return art.ID, nil
}

func stringifyArgs(args tool.Args) map[string]string {
	if len(args) == 0 {
		return nil
	}
	out := make(map[string]string, len(args))
	for k, v := range args {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}

// FormatDuration renders a millisecond count as "X hours, Y minutes,
// Z seconds, W ms", omitting zero units.
func FormatDuration(totalMS int64) string {
	if totalMS <= 0 {
		return "0 ms"
	}

	ms := totalMS % 1000
	totalSeconds := totalMS / 1000
	seconds := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes := totalMinutes % 60
	hours := totalMinutes / 60

	var parts []string
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%d hour%s", hours, plural(hours)))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%d minute%s", minutes, plural(minutes)))
	}
	if seconds > 0 {
		parts = append(parts, fmt.Sprintf("%d second%s", seconds, plural(seconds)))
	}
	if ms > 0 {
		parts = append(parts, fmt.Sprintf("%d ms", ms))
	}

	if len(parts) == 0 {
		return "0 ms"
	}
	return strings.Join(parts, ", ")
}

func plural(n int64) string {
	if n == 1 {
		return ""
	}
	return "s"
}
