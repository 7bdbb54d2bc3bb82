// Package tools implements the agent's built-in tool handlers: workspace
// search and editing, shell execution, and web lookups. Each constructor
// returns a spec and handler pair ready for registration.
package tools

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/felixgeelhaar/apollo/internal/guard"
)

var (
	ErrNotFound         = errors.New("file not found")
	ErrOutsideWorkspace = errors.New("path escapes workspace")
	ErrPermissionDenied = errors.New("path not allowed by policy")
)

// Workspace confines all file operations to a root directory and applies
// the session policy to every resolved path.
type Workspace struct {
	root  string
	guard *guard.Guard
}

func NewWorkspace(root string, g *guard.Guard) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("workspace root inaccessible: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace root is not a directory: %s", abs)
	}
	return &Workspace{root: abs, guard: g}, nil
}

// Root returns the absolute workspace root.
func (w *Workspace) Root() string {
	return w.root
}

// Resolve turns a workspace-relative path into an absolute one, rejecting
// traversal outside the root and paths the policy blocks.
func (w *Workspace) Resolve(rel string) (string, error) {
	cleaned := filepath.Clean(rel)
	if filepath.IsAbs(cleaned) || strings.HasPrefix(cleaned, "..") {
		return "", fmt.Errorf("%w: %s", ErrOutsideWorkspace, rel)
	}

	abs := filepath.Join(w.root, cleaned)
	if abs != w.root && !strings.HasPrefix(abs, w.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideWorkspace, rel)
	}

	if v := w.guard.CheckFile(filepath.ToSlash(cleaned)); v != nil {
		return "", fmt.Errorf("%w: %s", ErrPermissionDenied, v.Message)
	}

	return abs, nil
}

// Read returns the file content and whether the file existed.
func (w *Workspace) Read(rel string) (string, bool, error) {
	abs, err := w.Resolve(rel)
	if err != nil {
		return "", false, err
	}
	data, err := os.ReadFile(abs) // #nosec G304
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read %s: %w", rel, err)
	}
	return string(data), true, nil
}

// Write creates or overwrites a file, creating parent directories as needed.
func (w *Workspace) Write(rel, content string) error {
	abs, err := w.Resolve(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0750); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}
	if err := os.WriteFile(abs, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", rel, err)
	}
	return nil
}

// Delete removes a file. Deleting a missing file returns ErrNotFound.
func (w *Workspace) Delete(rel string) error {
	abs, err := w.Resolve(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, rel)
		}
		return fmt.Errorf("failed to delete %s: %w", rel, err)
	}
	return nil
}

// Walk visits every regular file under the root, passing workspace-relative
// slash-separated paths. Hidden directories and node_modules are skipped.
func (w *Workspace) Walk(fn func(rel string, d fs.DirEntry) error) error {
	return filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(w.root, path)
		if relErr != nil {
			return relErr
		}
		if d.IsDir() {
			name := d.Name()
			if rel != "." && (strings.HasPrefix(name, ".") || name == "node_modules") {
				return filepath.SkipDir
			}
			return nil
		}
		return fn(filepath.ToSlash(rel), d)
	})
}

// Entry is one item in a directory listing.
type Entry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size"`
}

// List returns the direct children of a directory.
func (w *Workspace) List(rel string) ([]Entry, error) {
	abs, err := w.Resolve(rel)
	if err != nil {
		return nil, err
	}
	items, err := os.ReadDir(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, rel)
		}
		return nil, fmt.Errorf("failed to list %s: %w", rel, err)
	}

	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		e := Entry{Name: item.Name(), IsDir: item.IsDir()}
		if info, err := item.Info(); err == nil && !item.IsDir() {
			e.Size = info.Size()
		}
		entries = append(entries, e)
	}
	return entries, nil
}
