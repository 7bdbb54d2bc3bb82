package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/felixgeelhaar/apollo/internal/guard"
	"github.com/felixgeelhaar/apollo/internal/tool"
)

type runResult struct {
	Command  string `json:"command"`
	Output   string `json:"output"`
	ExitCode int    `json:"exit_code"`
}

// RunCommand builds the run_command tool. The command binary must pass the
// policy's allow list; the command runs with the workspace root as its
// working directory. Side effects on the filesystem are opaque, so runs are
// classified as mutating but produce no edit record.
func RunCommand(ws *Workspace, g *guard.Guard) (tool.Spec, tool.Handler) {
	spec := tool.Spec{
		Name:        "run_command",
		Description: "Execute a shell command inside the workspace",
		Params: []tool.Param{
			{Name: "command", Type: "string", Description: "The command line to run", Required: true},
		},
		Effect: tool.EffectMutatesFS,
	}

	handler := func(ctx context.Context, sessionID string, args tool.Args) (*tool.Result, error) {
		command := strings.TrimSpace(args.String("command", ""))
		if command == "" {
			return nil, fmt.Errorf("%w: empty command", tool.ErrInvalidArgs)
		}

		fields := strings.Fields(command)
		if v := g.CheckCommand(fields[0]); v != nil {
			return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, v.Message)
		}

		cmd := exec.CommandContext(ctx, "bash", "-c", command) // #nosec G204
		cmd.Dir = ws.Root()

		output, err := cmd.CombinedOutput()
		exitCode := 0
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if exitErr, ok := err.(*exec.ExitError); ok {
				exitCode = exitErr.ExitCode()
			} else {
				return nil, fmt.Errorf("failed to run command: %w", err)
			}
		}

		payload, err := json.Marshal(runResult{
			Command:  command,
			Output:   string(output),
			ExitCode: exitCode,
		})
		if err != nil {
			return nil, err
		}

		result := &tool.Result{Payload: string(payload)}
		if exitCode != 0 {
			result.Warning = fmt.Sprintf("command exited with status %d", exitCode)
		}
		return result, nil
	}

	return spec, handler
}
