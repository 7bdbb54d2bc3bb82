package e2e

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// buildBinary compiles the apollo binary once per test run.
func buildBinary(t *testing.T) string {
	t.Helper()

	rootDir, err := filepath.Abs("../../")
	if err != nil {
		t.Fatalf("failed to resolve root dir: %v", err)
	}
	binPath := filepath.Join(t.TempDir(), "apollo_e2e")

	buildCmd := exec.Command("go", "build", "-o", binPath, "github.com/felixgeelhaar/apollo/cmd/apollo")
	buildCmd.Dir = rootDir
	if out, err := buildCmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to build apollo: %v\n%s", err, out)
	}
	return binPath
}

func TestE2E_ChatOnce(t *testing.T) {
	bin := buildBinary(t)

	// A fresh HOME keeps the store out of the real ~/.apollo.
	homeDir := t.TempDir()
	workspace := t.TempDir()
	if err := os.WriteFile(filepath.Join(workspace, "main.go"), []byte("package main\n"), 0600); err != nil {
		t.Fatalf("failed to seed workspace: %v", err)
	}

	cmd := exec.Command(bin, "chat",
		"--provider=stub",
		"--workspace="+workspace,
		"--once", "ls",
	)
	cmd.Env = append(os.Environ(), "HOME="+homeDir)

	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("apollo chat failed: %v\n%s", err, out)
	}
	if !strings.Contains(string(out), "Done in") {
		t.Errorf("expected tool outcome in output, got:\n%s", out)
	}

	// The store must have landed under the overridden HOME.
	if _, err := os.Stat(filepath.Join(homeDir, ".apollo", "metadata.db")); err != nil {
		t.Errorf("expected session store under HOME/.apollo: %v", err)
	}
}

func TestE2E_BackendToolCall(t *testing.T) {
	bin := buildBinary(t)

	homeDir := t.TempDir()
	workspace := t.TempDir()

	// A free-form utterance goes through the stub backend, which asks for
	// list_dir on its first response.
	cmd := exec.Command(bin, "chat",
		"--provider=stub",
		"--workspace="+workspace,
		"--once", "what is in this project?",
	)
	cmd.Env = append(os.Environ(), "HOME="+homeDir)

	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("apollo chat failed: %v\n%s", err, out)
	}
	if !strings.Contains(string(out), "Done in") {
		t.Errorf("expected the stub's tool call to run, got:\n%s", out)
	}
}

func TestE2E_ConfigRoundTrip(t *testing.T) {
	bin := buildBinary(t)
	homeDir := t.TempDir()

	set := exec.Command(bin, "config", "set", "openai.base_url", "http://localhost:8080")
	set.Env = append(os.Environ(), "HOME="+homeDir)
	if out, err := set.CombinedOutput(); err != nil {
		t.Fatalf("config set failed: %v\n%s", err, out)
	}

	get := exec.Command(bin, "config", "get", "openai.base_url")
	get.Env = append(os.Environ(), "HOME="+homeDir)
	out, err := get.CombinedOutput()
	if err != nil {
		t.Fatalf("config get failed: %v\n%s", err, out)
	}
	if !strings.Contains(string(out), "http://localhost:8080") {
		t.Errorf("expected stored value, got:\n%s", out)
	}
}
