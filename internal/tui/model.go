package tui

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// PickerModel holds the built-in selector state.
type PickerModel struct {
	// Data
	Prompt string
	Items  []string

	// UI State
	Filter      textinput.Model
	Matches     []Match // Items ranked against the current filter
	SelectedIdx int     // Index into Matches
	WindowSize  tea.WindowSizeMsg
	MaxVisible  int

	// Outcome
	Chosen  string
	Aborted bool
}

// NewPicker returns a picker over items with the filter focused.
func NewPicker(prompt string, items []string) PickerModel {
	ti := textinput.New()
	ti.Placeholder = "type to filter..."
	ti.CharLimit = 64
	ti.Width = 30
	ti.Prompt = "> "
	ti.Focus()

	return PickerModel{
		Prompt:     prompt,
		Items:      items,
		Filter:     ti,
		Matches:    Rank(items, ""),
		MaxVisible: 10,
	}
}

// Init starts the cursor blinking.
func (m PickerModel) Init() tea.Cmd {
	return textinput.Blink
}
