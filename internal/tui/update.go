package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Update handles events.
func (m PickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.WindowSize = msg
		if msg.Height > 4 && msg.Height-4 < m.MaxVisible {
			m.MaxVisible = msg.Height - 4
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.Aborted = true
			return m, tea.Quit
		case tea.KeyEnter:
			if len(m.Matches) == 0 {
				// Nothing to pick; keep the picker open.
				return m, nil
			}
			m.Chosen = m.Matches[m.SelectedIdx].Item
			return m, tea.Quit
		case tea.KeyUp, tea.KeyCtrlP, tea.KeyShiftTab:
			if m.SelectedIdx > 0 {
				m.SelectedIdx--
			}
			return m, nil
		case tea.KeyDown, tea.KeyCtrlN, tea.KeyTab:
			if m.SelectedIdx < len(m.Matches)-1 {
				m.SelectedIdx++
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	before := m.Filter.Value()
	m.Filter, cmd = m.Filter.Update(msg)
	if m.Filter.Value() != before {
		m.refilter()
	}
	return m, cmd
}

func (m *PickerModel) refilter() {
	m.Matches = Rank(m.Items, m.Filter.Value())

	// Bounds check
	if m.SelectedIdx >= len(m.Matches) {
		if len(m.Matches) > 0 {
			m.SelectedIdx = len(m.Matches) - 1
		} else {
			m.SelectedIdx = 0
		}
	}
}
