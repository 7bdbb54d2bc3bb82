package ui

type UI interface {
	UpdateStatus(status string)
	ShowTurn(role, content string)
	Log(msg string)
}

type SilentUI struct{}

func (s SilentUI) UpdateStatus(status string)    {}
func (s SilentUI) ShowTurn(role, content string) {}
func (s SilentUI) Log(msg string)                {}
