package ui

import (
	"testing"
)

func TestSilentUI_NoPanic(t *testing.T) {
	u := SilentUI{}
	u.UpdateStatus("ready")
	u.ShowTurn("user", "hello")
	u.ShowTurn("assistant", "")
	u.Log("log line")
	u.Log("")
}

func TestSilentUI_ImplementsInterface(t *testing.T) {
	var _ UI = SilentUI{}
	var _ UI = &SilentUI{}
}

// MockUI records every call for assertions.
type MockUI struct {
	StatusUpdates []string
	Turns         [][2]string
	LogMessages   []string
}

func (m *MockUI) UpdateStatus(status string) {
	m.StatusUpdates = append(m.StatusUpdates, status)
}

func (m *MockUI) ShowTurn(role, content string) {
	m.Turns = append(m.Turns, [2]string{role, content})
}

func (m *MockUI) Log(msg string) {
	m.LogMessages = append(m.LogMessages, msg)
}

func TestMockUI_Records(t *testing.T) {
	u := &MockUI{}

	u.UpdateStatus("thinking")
	u.ShowTurn("user", "ls")
	u.ShowTurn("assistant", "Done in 3 ms.")
	u.Log("tool ran")

	if len(u.StatusUpdates) != 1 || u.StatusUpdates[0] != "thinking" {
		t.Errorf("unexpected status updates: %v", u.StatusUpdates)
	}
	if len(u.Turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(u.Turns))
	}
	if u.Turns[0] != [2]string{"user", "ls"} {
		t.Errorf("unexpected first turn: %v", u.Turns[0])
	}
	if len(u.LogMessages) != 1 {
		t.Errorf("expected 1 log message, got %d", len(u.LogMessages))
	}
}

func TestMockUI_ImplementsInterface(t *testing.T) {
	var _ UI = &MockUI{}
}

func TestUI_Polymorphic(t *testing.T) {
	uis := []UI{
		SilentUI{},
		&MockUI{},
	}
	for _, u := range uis {
		u.UpdateStatus("test")
		u.ShowTurn("user", "test")
		u.Log("test")
	}
}
