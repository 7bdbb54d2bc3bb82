package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/felixgeelhaar/apollo/internal/config"
	"github.com/felixgeelhaar/apollo/internal/executor"
	"github.com/felixgeelhaar/apollo/internal/guard"
	"github.com/felixgeelhaar/apollo/internal/history"
	"github.com/felixgeelhaar/apollo/internal/observe"
	"github.com/felixgeelhaar/apollo/internal/orchestrate"
	"github.com/felixgeelhaar/apollo/internal/provider"
	"github.com/felixgeelhaar/apollo/internal/router"
	"github.com/felixgeelhaar/apollo/internal/store"
	"github.com/felixgeelhaar/apollo/internal/tool"
	"github.com/felixgeelhaar/apollo/internal/tools"
	"github.com/felixgeelhaar/apollo/internal/ui"
)

type Runner struct {
	Observer  *observe.Observer
	Store     store.Storage
	Provider  provider.Provider
	Profile   *config.Profile
	SessionID string
	UI        ui.UI
}

func NewRunner(obs *observe.Observer, s store.Storage, p provider.Provider, profile *config.Profile, u ui.UI) *Runner {
	if u == nil {
		u = ui.SilentUI{}
	}
	return &Runner{
		Observer: obs,
		Store:    s,
		Provider: p,
		Profile:  profile,
		UI:       u,
	}
}

// build wires the registry, router, and executor into an orchestrator.
func (r *Runner) build() (*orchestrate.Orchestrator, error) {
	g := guard.New(r.Profile.Policy)

	ws, err := tools.NewWorkspace(r.Profile.Workspace, g)
	if err != nil {
		return nil, fmt.Errorf("failed to open workspace: %w", err)
	}

	hist := history.NewLog()
	reg := tool.NewRegistry()

	var regErr error
	register := func(spec tool.Spec, h tool.Handler) {
		if regErr == nil {
			regErr = reg.Register(spec, h)
		}
	}

	register(tools.ListDir(ws))
	register(tools.GrepSearch(ws, g))
	register(tools.FileSearch(ws, g))
	register(tools.CodebaseSearch(ws, g))
	register(tools.EditFile(ws))
	register(tools.DeleteFile(ws))
	register(tools.Reapply(ws, hist))
	register(tools.RunCommand(ws, g))
	register(tools.WebSearch(nil, ""))
	register(tools.WikiSearch(nil, ""))
	register(tools.Chat(r.Provider))
	if regErr != nil {
		return nil, fmt.Errorf("failed to build tool registry: %w", regErr)
	}

	rt := router.New(reg, r.Provider, r.Observer, r.Profile.HistoryWindow)
	exec := executor.New(reg, hist, r.Store, g, r.Observer)

	return orchestrate.New(r.Store, rt, exec, r.Observer, nil), nil
}

func (r *Runner) start(ctx context.Context, o *orchestrate.Orchestrator) error {
	id, err := o.StartSession(ctx, r.SessionID, map[string]string{
		"provider":  r.Provider.Name(),
		"workspace": r.Profile.Workspace,
	})
	if err != nil {
		r.Observer.Log().Error().Err(err).Msg("Failed to start session")
		return err
	}
	r.SessionID = id
	r.Observer.Log().Info().Str("session", id).Str("provider", r.Provider.Name()).Msg("chat session ready")
	return nil
}

// RunOnce processes a single utterance and prints the reply.
func (r *Runner) RunOnce(ctx context.Context, utterance string) error {
	o, err := r.build()
	if err != nil {
		r.Observer.Log().Error().Err(err).Msg("Failed to set up session")
		return err
	}
	if err := r.start(ctx, o); err != nil {
		return err
	}

	reply, err := o.HandleUtterance(ctx, utterance)
	if err != nil {
		r.Observer.Log().Error().Err(err).Msg("Utterance failed")
		return err
	}
	fmt.Println(reply)
	return o.End()
}

// RunREPL reads utterances line by line until EOF or a farewell.
func (r *Runner) RunREPL(ctx context.Context, in io.Reader, out io.Writer) error {
	o, err := r.build()
	if err != nil {
		r.Observer.Log().Error().Err(err).Msg("Failed to set up session")
		return err
	}
	if err := r.start(ctx, o); err != nil {
		return err
	}

	fmt.Fprintf(out, "Session %s. Type 'exit' to quit.\n", r.SessionID)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if line == "" {
			continue
		}

		reply, err := o.HandleUtterance(ctx, line)
		if err != nil {
			r.Observer.Log().Error().Err(err).Msg("Utterance failed")
			return err
		}
		fmt.Fprintln(out, reply)

		if o.State() == orchestrate.StateTerminated {
			return nil
		}
	}
	return o.End()
}

// RunInteractive consumes utterances submitted by the TUI.
func (r *Runner) RunInteractive(ctx context.Context, submit <-chan string) error {
	o, err := r.build()
	if err != nil {
		r.Observer.Log().Error().Err(err).Msg("Failed to set up session")
		return err
	}

	o.Bus().Subscribe(orchestrate.EventToolCallStart, func(e orchestrate.Event) {
		if name, ok := e.Data["tool"].(string); ok {
			r.UI.Log("running " + name)
		}
	})

	r.UI.UpdateStatus("Starting session...")
	if err := r.start(ctx, o); err != nil {
		return err
	}
	r.UI.UpdateStatus("Ready")

	for utterance := range submit {
		r.UI.ShowTurn("user", utterance)
		r.UI.UpdateStatus("Thinking...")

		reply, err := o.HandleUtterance(ctx, utterance)
		if err != nil {
			r.UI.UpdateStatus("Session failed")
			r.Observer.Log().Error().Err(err).Msg("Utterance failed")
			return err
		}
		r.UI.ShowTurn("assistant", reply)
		r.UI.UpdateStatus("Ready")

		if o.State() == orchestrate.StateTerminated {
			return nil
		}
	}
	return o.End()
}
