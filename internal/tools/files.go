package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/apollo/internal/history"
	"github.com/felixgeelhaar/apollo/internal/tool"
)

type editResult struct {
	Path    string `json:"path"`
	Created bool   `json:"created"`
	Bytes   int    `json:"bytes"`
}

// EditFile builds the edit_file tool. The handler performs the write and
// reports the prior state as a mutation so the edit lands in the history
// only after the call commits.
func EditFile(ws *Workspace) (tool.Spec, tool.Handler) {
	spec := tool.Spec{
		Name:        "edit_file",
		Description: "Create or overwrite a file with the given content",
		Params: []tool.Param{
			{Name: "target_file", Type: "string", Description: "Path of the file, relative to the workspace", Required: true},
			{Name: "content", Type: "string", Description: "Full new content of the file", Required: true},
		},
		Effect: tool.EffectMutatesFS,
	}

	handler := func(ctx context.Context, sessionID string, args tool.Args) (*tool.Result, error) {
		path := args.String("target_file", "")
		content := args.String("content", "")

		previous, existed, err := ws.Read(path)
		if err != nil {
			return nil, err
		}

		if err := ws.Write(path, content); err != nil {
			return nil, err
		}

		payload, err := json.Marshal(editResult{Path: path, Created: !existed, Bytes: len(content)})
		if err != nil {
			return nil, err
		}

		return &tool.Result{
			Payload: string(payload),
			Mutation: &tool.Mutation{
				Path:     path,
				Existed:  existed,
				Previous: previous,
				Content:  content,
			},
		}, nil
	}

	return spec, handler
}

type deleteResult struct {
	Path    string `json:"path"`
	Deleted bool   `json:"deleted"`
}

// DeleteFile builds the delete_file tool.
func DeleteFile(ws *Workspace) (tool.Spec, tool.Handler) {
	spec := tool.Spec{
		Name:        "delete_file",
		Description: "Delete a file from the workspace",
		Params: []tool.Param{
			{Name: "target_file", Type: "string", Description: "Path of the file to delete, relative to the workspace", Required: true},
		},
		Effect: tool.EffectMutatesFS,
	}

	handler := func(ctx context.Context, sessionID string, args tool.Args) (*tool.Result, error) {
		path := args.String("target_file", "")

		previous, existed, err := ws.Read(path)
		if err != nil {
			return nil, err
		}
		if !existed {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}

		if err := ws.Delete(path); err != nil {
			return nil, err
		}

		payload, err := json.Marshal(deleteResult{Path: path, Deleted: true})
		if err != nil {
			return nil, err
		}

		return &tool.Result{
			Payload: string(payload),
			Mutation: &tool.Mutation{
				Path:     path,
				Existed:  true,
				Previous: previous,
				Removed:  true,
			},
		}, nil
	}

	return spec, handler
}

type reapplyResult struct {
	Path      string `json:"path"`
	Divergent bool   `json:"divergent"`
	Removed   bool   `json:"removed"`
}

// Reapply builds the reapply tool: it replays the most recent recorded edit
// for a file in this session. The file is divergent when its current state
// no longer matches what that edit left behind; the replay still proceeds
// but the result carries a warning.
func Reapply(ws *Workspace, log *history.Log) (tool.Spec, tool.Handler) {
	spec := tool.Spec{
		Name:        "reapply",
		Description: "Reapply the last edit made to a file in this session",
		Params: []tool.Param{
			{Name: "target_file", Type: "string", Description: "Path of the file to reapply, relative to the workspace", Required: true},
		},
		Effect: tool.EffectMutatesFS,
	}

	handler := func(ctx context.Context, sessionID string, args tool.Args) (*tool.Result, error) {
		path := args.String("target_file", "")

		rec, err := log.Latest(sessionID, path)
		if err != nil {
			// The sentinel stays visible to callers via errors.Is.
			return nil, fmt.Errorf("reapply %s: %w", path, err)
		}

		current, exists, err := ws.Read(path)
		if err != nil {
			return nil, err
		}

		divergent := false
		if rec.Removed {
			divergent = exists
		} else {
			divergent = !exists || current != rec.Content
		}

		mutation := &tool.Mutation{
			Path:     path,
			Existed:  exists,
			Previous: current,
		}

		if rec.Removed {
			if exists {
				if err := ws.Delete(path); err != nil {
					return nil, err
				}
			}
			mutation.Removed = true
		} else {
			if err := ws.Write(path, rec.Content); err != nil {
				return nil, err
			}
			mutation.Content = rec.Content
		}

		payload, err := json.Marshal(reapplyResult{Path: path, Divergent: divergent, Removed: rec.Removed})
		if err != nil {
			return nil, err
		}

		result := &tool.Result{Payload: string(payload), Mutation: mutation}
		if divergent {
			result.Warning = fmt.Sprintf("file %s changed since the last recorded edit; reapplied over the divergent state", path)
		}
		return result, nil
	}

	return spec, handler
}
