package guard

import (
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// Policy defines the limits and scopes for an agent session.
type Policy struct {
	AllowedCommands  []string      `json:"allowed_commands" yaml:"allowed_commands"`
	AllowedFileGlobs []string      `json:"allowed_file_globs" yaml:"allowed_file_globs"`
	MaxGrepMatches   int           `json:"max_grep_matches" yaml:"max_grep_matches"`
	MaxFileMatches   int           `json:"max_file_matches" yaml:"max_file_matches"`
	SnippetLength    int           `json:"snippet_length" yaml:"snippet_length"`
	ToolTimeout      time.Duration `json:"tool_timeout" yaml:"tool_timeout"`
}

// DefaultPolicy provides safe defaults matching the interactive agent's
// result caps.
var DefaultPolicy = Policy{
	AllowedCommands:  []string{"ls", "cat", "grep", "git", "go", "mkdir", "echo"},
	AllowedFileGlobs: []string{"**"},
	MaxGrepMatches:   50,
	MaxFileMatches:   10,
	SnippetLength:    500,
	ToolTimeout:      30 * time.Second,
}

// Violation represents a specific breach of policy.
type Violation struct {
	Rule    string
	Message string
	Fatal   bool
}

// Guard enforces the policy.
type Guard struct {
	policy Policy
}

func New(p Policy) *Guard {
	if p.MaxGrepMatches <= 0 {
		p.MaxGrepMatches = DefaultPolicy.MaxGrepMatches
	}
	if p.MaxFileMatches <= 0 {
		p.MaxFileMatches = DefaultPolicy.MaxFileMatches
	}
	if p.SnippetLength <= 0 {
		p.SnippetLength = DefaultPolicy.SnippetLength
	}
	if p.ToolTimeout <= 0 {
		p.ToolTimeout = DefaultPolicy.ToolTimeout
	}
	return &Guard{policy: p}
}

// Policy returns the guard's current policy configuration.
func (g *Guard) Policy() Policy {
	return g.policy
}

// CheckFile verifies if a workspace-relative file path is within the
// allowed globs.
func (g *Guard) CheckFile(path string) *Violation {
	allowed := false
	for _, pattern := range g.policy.AllowedFileGlobs {
		match, err := doublestar.Match(pattern, path)
		if err == nil && match {
			allowed = true
			break
		}
	}

	if !allowed {
		return &Violation{Rule: "allowed_file_globs", Message: "File access not allowed: " + path, Fatal: true}
	}
	return nil
}

// CheckCommand verifies if a command binary is allowed.
func (g *Guard) CheckCommand(cmd string) *Violation {
	allowed := false
	for _, allow := range g.policy.AllowedCommands {
		if allow == "*" || allow == cmd {
			allowed = true
			break
		}
	}

	if !allowed {
		return &Violation{Rule: "allowed_commands", Message: "Command not allowed: " + cmd, Fatal: true}
	}
	return nil
}
