package orchestrate

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/felixgeelhaar/apollo/internal/executor"
	"github.com/felixgeelhaar/apollo/internal/guard"
	"github.com/felixgeelhaar/apollo/internal/history"
	"github.com/felixgeelhaar/apollo/internal/observe"
	"github.com/felixgeelhaar/apollo/internal/provider"
	"github.com/felixgeelhaar/apollo/internal/router"
	"github.com/felixgeelhaar/apollo/internal/store"
	"github.com/felixgeelhaar/apollo/internal/tool"
)

type fixedBackend struct {
	resp *provider.Response
}

func (f *fixedBackend) Chat(ctx context.Context, messages []provider.Message, tools []provider.ToolSchema) (*provider.Response, error) {
	if f.resp == nil {
		return &provider.Response{Content: "understood"}, nil
	}
	return f.resp, nil
}

func (f *fixedBackend) Name() string { return "fixed" }

// failingStorage fails AppendTurn after a set number of successes.
type failingStorage struct {
	store.Storage
	appendsLeft int
}

func (f *failingStorage) AppendTurn(turn *store.Turn) error {
	if f.appendsLeft <= 0 {
		return store.ErrPersistence
	}
	f.appendsLeft--
	return f.Storage.AppendTurn(turn)
}

func newTestOrchestrator(t *testing.T, backend provider.Provider, storage store.Storage) *Orchestrator {
	t.Helper()

	if storage == nil {
		tmpDir := t.TempDir()
		s, err := store.NewSQLiteStore(filepath.Join(tmpDir, "meta.db"), filepath.Join(tmpDir, "artifacts"))
		if err != nil {
			t.Fatalf("store init failed: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		storage = s
	}

	reg := tool.NewRegistry()
	reg.Register(tool.Spec{
		Name:   "list_dir",
		Params: []tool.Param{{Name: "path", Type: "string", Required: true}},
		Effect: tool.EffectReadOnly,
	}, func(ctx context.Context, sessionID string, args tool.Args) (*tool.Result, error) {
		return &tool.Result{Payload: `{"entries": []}`}, nil
	})
	reg.Register(tool.Spec{
		Name:   "grep_search",
		Params: []tool.Param{{Name: "query", Type: "string", Required: true}},
		Effect: tool.EffectReadOnly,
	}, func(ctx context.Context, sessionID string, args tool.Args) (*tool.Result, error) {
		return nil, errors.New("scan failed")
	})

	obs := observe.New(&bytes.Buffer{}, false)
	g := guard.New(guard.DefaultPolicy)
	r := router.New(reg, backend, obs, 20)
	exec := executor.New(reg, history.NewLog(), storage, g, obs)

	return New(storage, r, exec, obs, nil)
}

func TestOrchestrator_Lifecycle(t *testing.T) {
	o := newTestOrchestrator(t, &fixedBackend{}, nil)

	if o.State() != StateIdle {
		t.Errorf("expected idle, got %s", o.State())
	}

	id, err := o.StartSession(context.Background(), "", map[string]string{"provider": "fixed"})
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if id == "" {
		t.Fatal("expected generated session id")
	}
	if o.State() != StateActive {
		t.Errorf("expected active, got %s", o.State())
	}

	if err := o.End(); err != nil {
		t.Fatalf("End failed: %v", err)
	}
	if o.State() != StateTerminated {
		t.Errorf("expected terminated, got %s", o.State())
	}

	// Terminated is absorbing.
	if _, err := o.HandleUtterance(context.Background(), "hello"); !errors.Is(err, ErrTerminated) {
		t.Errorf("expected ErrTerminated, got %v", err)
	}
	if _, err := o.StartSession(context.Background(), "", nil); !errors.Is(err, ErrTerminated) {
		t.Errorf("expected ErrTerminated on restart, got %v", err)
	}
}

func TestOrchestrator_RequiresSession(t *testing.T) {
	o := newTestOrchestrator(t, &fixedBackend{}, nil)

	if _, err := o.HandleUtterance(context.Background(), "hello"); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession, got %v", err)
	}
}

func TestOrchestrator_ToolUtterance(t *testing.T) {
	o := newTestOrchestrator(t, &fixedBackend{}, nil)

	id, _ := o.StartSession(context.Background(), "", nil)

	reply, err := o.HandleUtterance(context.Background(), "ls")
	if err != nil {
		t.Fatalf("HandleUtterance failed: %v", err)
	}
	if !strings.Contains(reply, "Done in") {
		t.Errorf("expected success reply, got %q", reply)
	}

	turns, err := o.storage.ListTurns(id)
	if err != nil {
		t.Fatalf("ListTurns failed: %v", err)
	}
	// user + tool + assistant
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(turns))
	}
	if turns[0].Role != store.RoleUser || turns[1].Role != store.RoleTool || turns[2].Role != store.RoleAssistant {
		t.Errorf("unexpected roles: %s %s %s", turns[0].Role, turns[1].Role, turns[2].Role)
	}
	if turns[1].Invocation == nil || turns[1].Invocation.Status != store.StatusOK {
		t.Errorf("expected ok invocation, got %+v", turns[1].Invocation)
	}

	if o.State() != StateActive {
		t.Errorf("session should return to active, got %s", o.State())
	}
}

func TestOrchestrator_ToolFailureKeepsSessionAlive(t *testing.T) {
	o := newTestOrchestrator(t, &fixedBackend{}, nil)
	o.StartSession(context.Background(), "", nil)

	reply, err := o.HandleUtterance(context.Background(), "grep anything")
	if err != nil {
		t.Fatalf("HandleUtterance failed: %v", err)
	}
	if !strings.Contains(reply, "failed") {
		t.Errorf("expected failure reply, got %q", reply)
	}
	if o.State() != StateActive {
		t.Errorf("tool failure must not terminate the session, got %s", o.State())
	}
}

func TestOrchestrator_BackendReply(t *testing.T) {
	o := newTestOrchestrator(t, &fixedBackend{resp: &provider.Response{Content: "plain answer"}}, nil)
	id, _ := o.StartSession(context.Background(), "", nil)

	reply, err := o.HandleUtterance(context.Background(), "explain this repo")
	if err != nil {
		t.Fatalf("HandleUtterance failed: %v", err)
	}
	if reply != "plain answer" {
		t.Errorf("expected backend reply, got %q", reply)
	}

	turns, _ := o.storage.ListTurns(id)
	if len(turns) != 2 {
		t.Errorf("expected user + assistant turns, got %d", len(turns))
	}
}

func TestOrchestrator_ExitWord(t *testing.T) {
	o := newTestOrchestrator(t, &fixedBackend{}, nil)
	o.StartSession(context.Background(), "", nil)

	reply, err := o.HandleUtterance(context.Background(), "exit")
	if err != nil {
		t.Fatalf("HandleUtterance failed: %v", err)
	}
	if reply != "Goodbye." {
		t.Errorf("expected farewell, got %q", reply)
	}
	if o.State() != StateTerminated {
		t.Errorf("expected terminated, got %s", o.State())
	}
}

func TestOrchestrator_PersistenceFailureTerminates(t *testing.T) {
	tmpDir := t.TempDir()
	inner, err := store.NewSQLiteStore(filepath.Join(tmpDir, "meta.db"), filepath.Join(tmpDir, "artifacts"))
	if err != nil {
		t.Fatalf("store init failed: %v", err)
	}
	defer inner.Close()

	// The user turn persists, the tool turn does not.
	failing := &failingStorage{Storage: inner, appendsLeft: 1}
	o := newTestOrchestrator(t, &fixedBackend{}, failing)
	o.StartSession(context.Background(), "", nil)

	if _, err := o.HandleUtterance(context.Background(), "ls"); err == nil {
		t.Fatal("expected persistence error")
	}
	if o.State() != StateTerminated {
		t.Errorf("persistence failure must terminate, got %s", o.State())
	}
}

func TestOrchestrator_SessionResume(t *testing.T) {
	tmpDir := t.TempDir()
	s, err := store.NewSQLiteStore(filepath.Join(tmpDir, "meta.db"), filepath.Join(tmpDir, "artifacts"))
	if err != nil {
		t.Fatalf("store init failed: %v", err)
	}
	defer s.Close()

	first := newTestOrchestrator(t, &fixedBackend{}, s)
	id, _ := first.StartSession(context.Background(), "", nil)
	first.HandleUtterance(context.Background(), "ls")
	first.End()

	second := newTestOrchestrator(t, &fixedBackend{}, s)
	resumed, err := second.StartSession(context.Background(), id, nil)
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if resumed != id {
		t.Errorf("expected same session id, got %s", resumed)
	}

	turns, _ := s.ListTurns(id)
	if len(turns) != 3 {
		t.Errorf("expected prior transcript intact, got %d turns", len(turns))
	}
}

func TestOrchestrator_Events(t *testing.T) {
	o := newTestOrchestrator(t, &fixedBackend{}, nil)

	var events []EventType
	o.Bus().SubscribeAll(func(e Event) {
		events = append(events, e.Type)
	})

	o.StartSession(context.Background(), "", nil)
	o.HandleUtterance(context.Background(), "ls")
	o.End()

	want := map[EventType]bool{
		EventSessionStart:  false,
		EventUtterance:     false,
		EventToolCallStart: false,
		EventToolCallEnd:   false,
		EventSessionEnd:    false,
	}
	for _, e := range events {
		if _, ok := want[e]; ok {
			want[e] = true
		}
	}
	for e, seen := range want {
		if !seen {
			t.Errorf("expected event %s", e)
		}
	}
}
