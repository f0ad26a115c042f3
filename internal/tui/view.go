package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	selectedItemStyle = lipgloss.NewStyle().
				PaddingLeft(2).
				Foreground(lipgloss.Color("205")) // Pinkish

	unselectedItemStyle = lipgloss.NewStyle().
				PaddingLeft(4).
				Foreground(lipgloss.Color("240")) // Grey

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238"))

	boxStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63"))
)

// View renders the prompt, the filter line and a window of matches
// around the selection.
func (m PickerModel) View() string {
	if m.Chosen != "" || m.Aborted {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(strings.TrimSpace(m.Prompt)))
	b.WriteString("\n")
	b.WriteString(m.Filter.View())
	b.WriteString("\n\n")

	if len(m.Matches) == 0 {
		b.WriteString(dimStyle.Render("    no matches"))
	}

	// Windowing: keep the selection visible.
	visible := m.MaxVisible
	if visible < 1 {
		visible = 1
	}
	start := 0
	if m.SelectedIdx >= visible {
		start = m.SelectedIdx - visible + 1
	}
	end := start + visible
	if end > len(m.Matches) {
		end = len(m.Matches)
	}

	for i := start; i < end; i++ {
		item := m.Matches[i].Item
		if i == m.SelectedIdx {
			b.WriteString(selectedItemStyle.Render("> " + item))
		} else {
			b.WriteString(unselectedItemStyle.Render(item))
		}
		b.WriteString("\n")
	}

	b.WriteString(dimStyle.Render(fmt.Sprintf("\n  %d/%d  ↑/↓ move  enter select  esc cancel", len(m.Matches), len(m.Items))))
	return boxStyle.Render(b.String()) + "\n"
}
