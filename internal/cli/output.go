package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"vex/internal/model"
)

var (
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	activeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	nameStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))

	panelStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder())
)

// hints pairs failure kinds with the next thing to try.
var hints = []struct {
	err  error
	hint string
}{
	{model.ErrEnvironmentNotFound, "Run 'vex list' to see registered environments, or 'vex create <name>' to make one."},
	{model.ErrNameRequired, "Pass an environment name, or install fzf for interactive selection: https://github.com/junegunn/fzf"},
	{model.ErrNoSelection, "Nothing was selected."},
	{model.ErrNoEnvironments, "Create one with 'vex create <name>'."},
	{model.ErrNoToolAvailable, "Install uv (https://docs.astral.sh/uv/) or make python3 available on PATH."},
	{model.ErrNoInstaller, "The environment has no pip; install uv or recreate the environment."},
	{model.ErrExternalTool, "Re-run with --verbose to see the commands vex ran."},
	{model.ErrIO, "Check the permissions of the vex state directory (VEX_HOME, default ~/.vex)."},
	{model.ErrInvalidName, "Names may contain letters, digits, '-' and '_'."},
	{model.ErrEnvironmentExists, "Use -y to overwrite it."},
	{model.ErrEnvironmentActive, "Run 'deactivate' first."},
	{model.ErrNoActiveEnvironment, "Activate one with 've activate <name>'."},
	{model.ErrUnsafePath, "Only directories containing bin/activate or pyvenv.cfg are deleted."},
}

// hintFor returns the hint for the first failure kind err matches.
func hintFor(err error) string {
	for _, h := range hints {
		if errors.Is(err, h.err) {
			return h.hint
		}
	}
	return ""
}

// PrintError renders err as a red line plus an actionable hint.
func PrintError(w io.Writer, err error) {
	fmt.Fprintln(w, errorStyle.Render(model.IconFailure+" "+err.Error()))
	if hint := hintFor(err); hint != "" {
		fmt.Fprintln(w, hintStyle.Render(model.IconHint+" "+hint))
	}
}

// printer writes styled status lines.
type printer struct {
	w io.Writer
}

func (p printer) success(format string, args ...any) {
	fmt.Fprintln(p.w, successStyle.Render(model.IconSuccess+" "+fmt.Sprintf(format, args...)))
}

func (p printer) warn(format string, args ...any) {
	fmt.Fprintln(p.w, warnStyle.Render(model.IconWarning+fmt.Sprintf(format, args...)))
}

func (p printer) info(format string, args ...any) {
	fmt.Fprintln(p.w, infoStyle.Render(fmt.Sprintf(format, args...)))
}

func (p printer) hint(format string, args ...any) {
	fmt.Fprintln(p.w, hintStyle.Render(model.IconHint+" "+fmt.Sprintf(format, args...)))
}

func (p printer) plain(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

// panel renders lines inside a rounded border coloured by accent.
func panel(title string, accent lipgloss.Color, lines []string) string {
	head := lipgloss.NewStyle().Bold(true).Foreground(accent).Render(title)
	body := head + "\n" + strings.Join(lines, "\n")
	return panelStyle.BorderForeground(accent).Render(body)
}
