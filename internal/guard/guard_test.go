package guard

import (
	"testing"
	"time"
)

func TestGuard_CheckFile(t *testing.T) {
	g := New(Policy{AllowedFileGlobs: []string{"src/**", "*.md"}})

	tests := []struct {
		path    string
		allowed bool
	}{
		{"src/main.go", true},
		{"src/pkg/util.go", true},
		{"README.md", true},
		{"secrets/key.pem", false},
	}

	for _, tt := range tests {
		v := g.CheckFile(tt.path)
		if tt.allowed && v != nil {
			t.Errorf("expected %q allowed, got violation %q", tt.path, v.Message)
		}
		if !tt.allowed && v == nil {
			t.Errorf("expected %q blocked", tt.path)
		}
	}
}

func TestGuard_CheckFileWildcard(t *testing.T) {
	g := New(DefaultPolicy)
	if v := g.CheckFile("anything/goes/here.txt"); v != nil {
		t.Errorf("default policy should allow all paths, got %q", v.Message)
	}
}

func TestGuard_CheckCommand(t *testing.T) {
	g := New(Policy{AllowedCommands: []string{"ls", "go"}})

	if v := g.CheckCommand("ls"); v != nil {
		t.Errorf("expected 'ls' allowed, got %q", v.Message)
	}
	if v := g.CheckCommand("rm"); v == nil {
		t.Error("expected 'rm' blocked")
	}

	star := New(Policy{AllowedCommands: []string{"*"}})
	if v := star.CheckCommand("anything"); v != nil {
		t.Errorf("wildcard policy should allow all commands, got %q", v.Message)
	}
}

func TestNew_FillsDefaults(t *testing.T) {
	g := New(Policy{})
	p := g.Policy()

	if p.MaxGrepMatches != DefaultPolicy.MaxGrepMatches {
		t.Errorf("expected default grep cap %d, got %d", DefaultPolicy.MaxGrepMatches, p.MaxGrepMatches)
	}
	if p.MaxFileMatches != DefaultPolicy.MaxFileMatches {
		t.Errorf("expected default file cap %d, got %d", DefaultPolicy.MaxFileMatches, p.MaxFileMatches)
	}
	if p.ToolTimeout != 30*time.Second {
		t.Errorf("expected default timeout 30s, got %v", p.ToolTimeout)
	}
}
