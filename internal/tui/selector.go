// Package tui provides the interactive environment selectors: the
// external fzf binary when it is installed, otherwise a built-in
// bubbletea picker ranked with fzf's matching algorithm.
package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	"golang.org/x/term"

	"vex/internal/config"
	"vex/internal/execx"
	"vex/internal/model"
)

// FzfSelector delegates to the fzf executable. fzf draws on /dev/tty so
// it works while stdout is captured by the shell wrapper.
type FzfSelector struct {
	Runner execx.Runner
}

// Available reports whether fzf is on PATH.
func (s FzfSelector) Available() bool {
	_, err := s.Runner.LookPath("fzf")
	return err == nil
}

// Select pipes items to fzf. Cancel (130) and no match (1) both mean no
// selection.
func (s FzfSelector) Select(ctx context.Context, prompt string, items []string) (string, error) {
	path, err := s.Runner.LookPath("fzf")
	if err != nil {
		return "", err
	}
	res, err := s.Runner.Run(ctx, execx.Command{
		Name:  path,
		Args:  []string{"--height=10", "--border", "--prompt=" + prompt},
		Stdin: strings.NewReader(strings.Join(items, "\n")),
	})
	var exitErr *execx.ExitError
	if errors.As(err, &exitErr) && (exitErr.ExitCode == 1 || exitErr.ExitCode == 130) {
		return "", model.ErrNoSelection
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrExternalTool, err)
	}
	choice := strings.TrimSpace(res.Stdout)
	if choice == "" {
		return "", model.ErrNoSelection
	}
	return choice, nil
}

// BuiltinSelector runs PickerModel on the controlling terminal.
type BuiltinSelector struct {
	TTYPath string // defaults to /dev/tty
}

func (s BuiltinSelector) ttyPath() string {
	if s.TTYPath != "" {
		return s.TTYPath
	}
	return "/dev/tty"
}

// Available reports whether a controlling terminal can be opened.
func (s BuiltinSelector) Available() bool {
	tty, err := os.OpenFile(s.ttyPath(), os.O_RDWR, 0)
	if err != nil {
		return false
	}
	defer tty.Close()
	return term.IsTerminal(int(tty.Fd()))
}

// Select runs the picker and returns the chosen item.
func (s BuiltinSelector) Select(ctx context.Context, prompt string, items []string) (string, error) {
	tty, err := os.OpenFile(s.ttyPath(), os.O_RDWR, 0)
	if err != nil {
		return "", fmt.Errorf("opening terminal: %w", err)
	}
	defer tty.Close()

	p := tea.NewProgram(NewPicker(prompt, items),
		tea.WithContext(ctx),
		tea.WithInput(tty),
		tea.WithOutput(tty),
	)
	final, err := p.Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, context.Canceled) {
			return "", model.ErrNoSelection
		}
		return "", err
	}
	return pickResult(final)
}

func pickResult(final tea.Model) (string, error) {
	m, ok := final.(PickerModel)
	if !ok || m.Aborted || m.Chosen == "" {
		return "", model.ErrNoSelection
	}
	return m.Chosen, nil
}

// Selector is satisfied by every selector in this package.
type Selector interface {
	Available() bool
	Select(ctx context.Context, prompt string, items []string) (string, error)
}

// chain tries the first available selector.
type chain []Selector

func (c chain) Available() bool {
	for _, s := range c {
		if s.Available() {
			return true
		}
	}
	return false
}

func (c chain) Select(ctx context.Context, prompt string, items []string) (string, error) {
	for _, s := range c {
		if s.Available() {
			return s.Select(ctx, prompt, items)
		}
	}
	return "", model.ErrNameRequired
}

// NewSelector builds the selector for a config mode (auto, fzf, builtin,
// none). It returns nil for none.
func NewSelector(mode string, runner execx.Runner, logger *zap.Logger) Selector {
	logger.Debug("selector mode", zap.String("mode", mode))
	switch mode {
	case config.SelectorNone:
		return nil
	case config.SelectorFzf:
		return FzfSelector{Runner: runner}
	case config.SelectorBuiltin:
		return BuiltinSelector{}
	default:
		return chain{FzfSelector{Runner: runner}, BuiltinSelector{}}
	}
}
