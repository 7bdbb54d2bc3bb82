// Package tui renders an interactive chat session with bubbletea: a
// scrolling transcript viewport above a single input line. Utterances
// submitted by the user are handed to the runner over the Submit channel.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type TUI struct {
	program *tea.Program
}

func NewTUI(p *tea.Program) *TUI {
	return &TUI{program: p}
}

func (t *TUI) UpdateStatus(status string) {
	t.program.Send(StatusMsg(status))
}

func (t *TUI) ShowTurn(role, content string) {
	t.program.Send(TurnMsg{Role: role, Content: content})
}

func (t *TUI) Log(msg string) {
	t.program.Send(LogMsg(msg))
}

// Done tells the model to quit once the session has ended.
func (t *TUI) Done() {
	t.program.Send(DoneMsg{})
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575"))

	userStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5F87FF"))

	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA"))

	toolStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#808080"))
)

type Model struct {
	Title    string
	Status   string
	Lines    []string
	Viewport viewport.Model
	Input    textinput.Model
	Submit   chan string
	Quitting bool
	Ready    bool
	Width    int
	Height   int
}

type TurnMsg struct {
	Role    string
	Content string
}
type StatusMsg string
type LogMsg string
type DoneMsg struct{}

func NewModel(title string) Model {
	in := textinput.New()
	in.Placeholder = "Type a command or question..."
	in.Prompt = "> "
	in.Focus()

	return Model{
		Title:  title,
		Status: "Ready",
		Input:  in,
		Submit: make(chan string, 16),
	}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.Quitting = true
			close(m.Submit)
			return m, tea.Quit
		case tea.KeyEnter:
			text := strings.TrimSpace(m.Input.Value())
			if text != "" {
				select {
				case m.Submit <- text:
					m.Input.Reset()
				default:
					// Runner is behind; keep the text in the input.
				}
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		if !m.Ready {
			m.Viewport = viewport.New(msg.Width, msg.Height-6)
			m.Ready = true
		} else {
			m.Viewport.Width = msg.Width
			m.Viewport.Height = msg.Height - 6
		}

	case TurnMsg:
		m.Lines = append(m.Lines, renderTurn(msg.Role, msg.Content))
		m.Viewport.SetContent(strings.Join(m.Lines, "\n"))
		m.Viewport.GotoBottom()

	case LogMsg:
		m.Lines = append(m.Lines, toolStyle.Render(string(msg)))
		m.Viewport.SetContent(strings.Join(m.Lines, "\n"))
		m.Viewport.GotoBottom()

	case StatusMsg:
		m.Status = string(msg)

	case DoneMsg:
		m.Quitting = true
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.Input, cmd = m.Input.Update(msg)
	cmds = append(cmds, cmd)

	m.Viewport, cmd = m.Viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	if !m.Ready {
		return "\n  Initializing..."
	}

	header := titleStyle.Render(" " + m.Title + " ")
	status := statusStyle.Render(fmt.Sprintf(" %s ", m.Status))

	view := fmt.Sprintf("%s%s\n\n%s\n\n%s",
		header, status,
		m.Viewport.View(),
		m.Input.View())

	if m.Quitting {
		return view + "\n  Quitting...\n"
	}

	return view
}

func renderTurn(role, content string) string {
	switch role {
	case "user":
		return userStyle.Render("you") + " " + content
	case "tool":
		return toolStyle.Render("tool "+content)
	default:
		return assistantStyle.Render(content)
	}
}
