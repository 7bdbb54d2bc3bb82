package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/felixgeelhaar/apollo/internal/guard"
	"github.com/felixgeelhaar/apollo/internal/tool"
)

// matchGlob matches a pattern against the workspace-relative path. Bare
// patterns without a separator ("*.go") match the basename, so they apply
// at any depth.
func matchGlob(pattern, rel string) bool {
	if !strings.Contains(pattern, "/") {
		ok, _ := doublestar.Match(pattern, filepath.Base(rel))
		return ok
	}
	ok, _ := doublestar.Match(pattern, rel)
	return ok
}

// Source file extensions considered by codebase_search.
var codeExtensions = map[string]bool{
	".go": true, ".py": true, ".js": true, ".ts": true, ".html": true,
	".css": true, ".java": true, ".c": true, ".cpp": true, ".txt": true,
	".md": true, ".yaml": true, ".yml": true, ".json": true,
}

type grepMatch struct {
	File       string `json:"file"`
	LineNumber int    `json:"line_number"`
	Content    string `json:"content"`
}

type grepResult struct {
	Query          string      `json:"query"`
	CaseSensitive  bool        `json:"case_sensitive"`
	IncludePattern string      `json:"include_pattern,omitempty"`
	ExcludePattern string      `json:"exclude_pattern,omitempty"`
	Results        []grepMatch `json:"results"`
	TotalMatches   int         `json:"total_matches"`
	Capped         bool        `json:"capped"`
}

// GrepSearch builds the grep_search tool: a line-oriented regex scan over
// the workspace, capped at the policy's match limit.
func GrepSearch(ws *Workspace, g *guard.Guard) (tool.Spec, tool.Handler) {
	spec := tool.Spec{
		Name:        "grep_search",
		Description: "Fast text-based regex search that finds exact pattern matches within files",
		Params: []tool.Param{
			{Name: "query", Type: "string", Description: "The regex pattern to search for", Required: true},
			{Name: "case_sensitive", Type: "boolean", Description: "Whether the search should be case-sensitive"},
			{Name: "include_pattern", Type: "string", Description: "Glob pattern for files to include (e.g. '*.go')"},
			{Name: "exclude_pattern", Type: "string", Description: "Glob pattern for files to exclude"},
		},
		Effect: tool.EffectReadOnly,
	}

	handler := func(ctx context.Context, sessionID string, args tool.Args) (*tool.Result, error) {
		query := args.String("query", "")
		caseSensitive := args.Bool("case_sensitive", false)
		include := args.String("include_pattern", "")
		exclude := args.String("exclude_pattern", "")

		pattern := query
		if !caseSensitive {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: bad regex %q: %v", tool.ErrInvalidArgs, query, err)
		}

		limit := g.Policy().MaxGrepMatches
		result := grepResult{
			Query:          query,
			CaseSensitive:  caseSensitive,
			IncludePattern: include,
			ExcludePattern: exclude,
			Results:        []grepMatch{},
		}

		err = ws.Walk(func(rel string, d fs.DirEntry) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if len(result.Results) >= limit {
				return filepath.SkipAll
			}

			if include != "" && !matchGlob(include, rel) {
				return nil
			}
			if exclude != "" && matchGlob(exclude, rel) {
				return nil
			}

			content, exists, err := ws.Read(rel)
			if err != nil || !exists {
				// Unreadable or policy-blocked files are skipped, not fatal.
				return nil
			}

			scanner := bufio.NewScanner(strings.NewReader(content))
			scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
			for lineNo := 1; scanner.Scan(); lineNo++ {
				if re.MatchString(scanner.Text()) {
					result.Results = append(result.Results, grepMatch{
						File:       rel,
						LineNumber: lineNo,
						Content:    strings.TrimSpace(scanner.Text()),
					})
					if len(result.Results) >= limit {
						break
					}
				}
			}
			return nil
		})
		if err != nil && err != filepath.SkipAll {
			return nil, err
		}

		result.TotalMatches = len(result.Results)
		result.Capped = len(result.Results) >= limit

		payload, err := json.Marshal(result)
		if err != nil {
			return nil, err
		}
		return &tool.Result{Payload: string(payload)}, nil
	}

	return spec, handler
}

type fileMatch struct {
	FilePath string `json:"file_path"`
	Filename string `json:"filename"`
}

type fileSearchResult struct {
	Query        string      `json:"query"`
	Results      []fileMatch `json:"results"`
	TotalMatches int         `json:"total_matches"`
	Capped       bool        `json:"capped"`
}

// FileSearch builds the file_search tool: case-insensitive substring match
// on file names, capped at the policy's file limit.
func FileSearch(ws *Workspace, g *guard.Guard) (tool.Spec, tool.Handler) {
	spec := tool.Spec{
		Name:        "file_search",
		Description: "Fast file search based on fuzzy matching against a file path",
		Params: []tool.Param{
			{Name: "query", Type: "string", Description: "Fuzzy filename to search for", Required: true},
		},
		Effect: tool.EffectReadOnly,
	}

	handler := func(ctx context.Context, sessionID string, args tool.Args) (*tool.Result, error) {
		query := strings.ToLower(args.String("query", ""))
		limit := g.Policy().MaxFileMatches

		result := fileSearchResult{Query: args.String("query", ""), Results: []fileMatch{}}

		err := ws.Walk(func(rel string, d fs.DirEntry) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if len(result.Results) >= limit {
				return filepath.SkipAll
			}
			if strings.Contains(strings.ToLower(d.Name()), query) {
				result.Results = append(result.Results, fileMatch{
					FilePath: rel,
					Filename: d.Name(),
				})
			}
			return nil
		})
		if err != nil && err != filepath.SkipAll {
			return nil, err
		}

		result.TotalMatches = len(result.Results)
		result.Capped = len(result.Results) >= limit

		payload, err := json.Marshal(result)
		if err != nil {
			return nil, err
		}
		return &tool.Result{Payload: string(payload)}, nil
	}

	return spec, handler
}

type codebaseMatch struct {
	FilePath       string  `json:"file_path"`
	ContentSnippet string  `json:"content_snippet"`
	RelevanceScore float64 `json:"relevance_score"`
}

type codebaseResult struct {
	Query   string          `json:"query"`
	Results []codebaseMatch `json:"results"`
}

// CodebaseSearch builds the codebase_search tool: a content scan over
// source files that returns a leading snippet of each matching file.
func CodebaseSearch(ws *Workspace, g *guard.Guard) (tool.Spec, tool.Handler) {
	spec := tool.Spec{
		Name:        "codebase_search",
		Description: "Find snippets of code from the codebase most relevant to the search query",
		Params: []tool.Param{
			{Name: "query", Type: "string", Description: "The search query", Required: true},
			{Name: "target_directory", Type: "string", Description: "Directory to search in, relative to the workspace"},
		},
		Effect: tool.EffectReadOnly,
	}

	handler := func(ctx context.Context, sessionID string, args tool.Args) (*tool.Result, error) {
		query := strings.ToLower(args.String("query", ""))
		target := filepath.ToSlash(filepath.Clean(args.String("target_directory", ".")))
		snippetLen := g.Policy().SnippetLength

		result := codebaseResult{Query: args.String("query", ""), Results: []codebaseMatch{}}

		err := ws.Walk(func(rel string, d fs.DirEntry) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if target != "." && rel != target && !strings.HasPrefix(rel, target+"/") {
				return nil
			}
			if !codeExtensions[filepath.Ext(rel)] {
				return nil
			}

			content, exists, err := ws.Read(rel)
			if err != nil || !exists {
				return nil
			}

			if strings.Contains(strings.ToLower(content), query) {
				snippet := content
				if len(snippet) > snippetLen {
					snippet = snippet[:snippetLen] + "..."
				}
				result.Results = append(result.Results, codebaseMatch{
					FilePath:       rel,
					ContentSnippet: snippet,
					RelevanceScore: 0.8,
				})
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		payload, err := json.Marshal(result)
		if err != nil {
			return nil, err
		}
		return &tool.Result{Payload: string(payload)}, nil
	}

	return spec, handler
}

type listDirResult struct {
	Path    string  `json:"path"`
	Entries []Entry `json:"entries"`
}

// ListDir builds the list_dir tool.
func ListDir(ws *Workspace) (tool.Spec, tool.Handler) {
	spec := tool.Spec{
		Name:        "list_dir",
		Description: "List the contents of a directory relative to the workspace root",
		Params: []tool.Param{
			{Name: "path", Type: "string", Description: "Directory to list, relative to the workspace", Required: true},
		},
		Effect: tool.EffectReadOnly,
	}

	handler := func(ctx context.Context, sessionID string, args tool.Args) (*tool.Result, error) {
		path := args.String("path", ".")

		entries, err := ws.List(path)
		if err != nil {
			return nil, err
		}

		payload, err := json.Marshal(listDirResult{Path: path, Entries: entries})
		if err != nil {
			return nil, err
		}
		return &tool.Result{Payload: string(payload)}, nil
	}

	return spec, handler
}
