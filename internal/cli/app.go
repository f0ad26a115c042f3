// Package cli is the vex command surface: it parses both the simple and
// the conda-style syntaxes, calls into venv, resolve and shell, and
// renders every failure as a coloured message with a hint.
package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"

	"vex/internal/config"
	"vex/internal/execx"
	"vex/internal/logging"
	"vex/internal/registry"
	"vex/internal/resolve"
	"vex/internal/shell"
	"vex/internal/tui"
	"vex/internal/venv"
)

// App holds the process-level dependencies of every command.
type App struct {
	Stdin  io.Reader
	Stdout io.Writer // Machine-readable output: the source line, listings
	Stderr io.Writer // Messages for the user
	Getenv func(string) string
	Getwd  func() (string, error)
	Runner execx.Runner

	// Config and Logger are loaded from the environment when nil.
	Config *config.Config
	Logger *zap.Logger

	// Selector replaces the configured interactive selector when set.
	Selector resolve.Selector

	ctx      context.Context
	verbose  bool
	input    *bufio.Reader
	store    registry.Store
	manager  *venv.Manager
	resolver *resolve.Resolver
}

// NewApp returns an App bound to the real process.
func NewApp() *App {
	return &App{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Getenv: os.Getenv,
		Getwd:  os.Getwd,
		Runner: execx.OSRunner{},
	}
}

// Execute runs one command line. Failures are rendered to Stderr and
// come back as an *ExitError carrying the exit status.
func (a *App) Execute(args []string) error {
	args, a.verbose = takeVerbose(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	a.ctx = ctx

	// The directory-change hook runs suggest on every cd; it only reads.
	readOnly := len(args) > 0 && args[0] == "suggest"
	if err := a.setup(readOnly); err != nil {
		PrintError(a.Stderr, err)
		return &ExitError{Code: 1}
	}
	defer a.Logger.Sync()

	err := a.Root().Execute(args)
	if err == nil {
		return nil
	}
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		return err
	}
	a.Logger.Debug("command failed", zap.Error(err))
	PrintError(a.Stderr, err)
	return &ExitError{Code: 1}
}

// takeVerbose removes --verbose from anywhere before "--" so it works as
// a global flag in front of or after the command name.
func takeVerbose(args []string) ([]string, bool) {
	out := make([]string, 0, len(args))
	verbose := false
	for i, arg := range args {
		if arg == "--" {
			out = append(out, args[i:]...)
			break
		}
		if arg == "--verbose" {
			verbose = true
			continue
		}
		out = append(out, arg)
	}
	return out, verbose
}

func (a *App) setup(readOnly bool) error {
	if a.Config == nil {
		cfg, err := config.LoadDefault()
		if err != nil {
			return err
		}
		a.Config = cfg
	}
	if a.Logger == nil {
		level := a.Config.LogLevel
		if a.verbose {
			level = "debug"
		}
		a.Logger = logging.MustNew(level)
	}
	if !readOnly {
		if err := a.Config.EnsureDirs(); err != nil {
			a.Logger.Debug("could not create state directories", zap.Error(err))
		}
	}

	a.store = registry.NewFileStore(a.Config.Root)

	a.manager = venv.New(a.store, a.Runner, a.Config, a.Logger)
	a.manager.Stdin = a.Stdin
	a.manager.Stdout = a.Stdout
	a.manager.Stderr = a.Stderr
	a.manager.Getenv = a.Getenv
	a.manager.Confirm = a.confirm

	selector := a.Selector
	if selector == nil {
		if s := tui.NewSelector(a.Config.Selector, a.Runner, a.Logger); s != nil {
			selector = s
		}
	}
	a.resolver = resolve.New(a.store, selector, a.Config.VenvsDir, a.Logger)
	a.resolver.VerifyScripts = true
	return nil
}

func (a *App) out() printer { return printer{w: a.Stderr} }

// confirm asks a yes/no question on Stderr and reads the answer from
// Stdin. Anything but y or yes is a no.
func (a *App) confirm(prompt string) bool {
	if a.input == nil {
		a.input = bufio.NewReader(a.Stdin)
	}
	io.WriteString(a.Stderr, prompt+" [y/N] ")
	line, _ := a.input.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func (a *App) workingDir() string {
	dir, err := a.Getwd()
	if err != nil {
		a.Logger.Debug("getwd failed", zap.Error(err))
		return ""
	}
	return dir
}

func (a *App) home() string {
	if h := a.Getenv("HOME"); h != "" {
		return h
	}
	h, _ := os.UserHomeDir()
	return h
}

// integration returns the shell integration for name, or for the
// detected shell when name is empty.
func (a *App) integration(name string) (*shell.Integration, error) {
	sh := shell.DetectShell(a.Getenv)
	if name != "" {
		var err error
		if sh, err = shell.ByName(name); err != nil {
			return nil, err
		}
	}
	return shell.NewIntegration(sh, a.home(), a.Logger), nil
}

// stdoutIsTerminal reports whether a person, rather than the ve wrapper,
// is reading Stdout.
func (a *App) stdoutIsTerminal() bool {
	f, ok := a.Stdout.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
