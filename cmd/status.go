package cmd

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/gwsandbox/gwsandbox-ctl/internal/registry"
)

var statusStyles = map[registry.Status]lipgloss.Style{
	registry.StatusCreated:  lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
	registry.StatusStarting: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	registry.StatusRunning:  lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
	registry.StatusStopping: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	registry.StatusStopped:  lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	registry.StatusError:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
}

var statusSymbols = map[registry.Status]string{
	registry.StatusCreated:  "○",
	registry.StatusStarting: "◐",
	registry.StatusRunning:  "●",
	registry.StatusStopping: "◑",
	registry.StatusStopped:  "■",
	registry.StatusError:    "✗",
}

func formatStatus(s registry.Status) string {
	text := string(s)
	if sym, ok := statusSymbols[s]; ok {
		text = sym + " " + text
	}
	if style, ok := statusStyles[s]; ok {
		return style.Render(text)
	}
	return text
}
