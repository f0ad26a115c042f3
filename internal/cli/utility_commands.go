package cli

import (
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"vex/internal/model"
	"vex/internal/resolve"
	"vex/internal/venv"
)

func (a *App) utilityCommands() []*Command {
	var shellName, suggestDir string
	var forget, initConfig bool
	return []*Command{
		{
			Name:    "info",
			Summary: "Show the active environment and interpreter",
			Run: func(args []string) error {
				return a.info()
			},
		},
		{
			Name:    "which",
			Summary: "Print an environment's directory",
			Usage:   "vex which <name>",
			Run: func(args []string) error {
				name, err := oneName("", args)
				if err != nil {
					return err
				}
				if name == "" {
					return model.ErrNameRequired
				}
				env, err := a.manager.Which(name)
				if err != nil {
					return err
				}
				fmt.Fprintln(a.Stdout, env.Dir())
				return nil
			},
		},
		{
			Name:    "history",
			Summary: "Show which environment was last activated in each directory",
			Usage:   "vex history [--forget [DIR]]",
			Flags: func() *pflag.FlagSet {
				fs := pflag.NewFlagSet("history", pflag.ContinueOnError)
				fs.BoolVar(&forget, "forget", false, "Forget the mapping for DIR (default: current directory)")
				return fs
			},
			Run: func(args []string) error {
				if forget {
					return a.forgetDirectory(args)
				}
				mappings, err := a.manager.History()
				if err != nil {
					return err
				}
				if len(mappings) == 0 {
					a.out().warn("No activation history")
					return nil
				}
				cwd := filepath.Clean(a.workingDir())
				for _, m := range mappings {
					mark := " "
					if filepath.Clean(m.Dir) == cwd {
						mark = model.IconCurrent
					}
					fmt.Fprintf(a.Stdout, "%s %s %s %s\n", mark, m.Dir, model.IconArrow, m.Env)
				}
				return nil
			},
		},
		{
			Name:    "clear-history",
			Summary: "Forget all directory to environment mappings",
			Run: func(args []string) error {
				if err := a.manager.ClearHistory(); err != nil {
					return err
				}
				a.out().success("Cleared activation history")
				return nil
			},
		},
		{
			Name:    "clean-shell",
			Summary: "Remove the ve shell integration from your shell startup file",
			Usage:   "vex clean-shell [--shell zsh|bash|fish]",
			Flags: func() *pflag.FlagSet {
				fs := pflag.NewFlagSet("clean-shell", pflag.ContinueOnError)
				fs.StringVar(&shellName, "shell", "", "Shell to clean (default: detected)")
				return fs
			},
			Run: func(args []string) error {
				integ, err := a.integration(shellName)
				if err != nil {
					return err
				}
				n, err := integ.Clean()
				if err != nil {
					return err
				}
				p := a.out()
				if n == 0 {
					p.info("No ve integration found in %s", integ.RCFile())
					return nil
				}
				p.success("Removed %d line(s) from %s", n, integ.RCFile())
				p.hint("Open a new terminal for the change to take effect")
				return nil
			},
		},
		{
			Name:    "config",
			Summary: "Print the effective configuration",
			Usage:   "vex config [--init]",
			Flags: func() *pflag.FlagSet {
				fs := pflag.NewFlagSet("config", pflag.ContinueOnError)
				fs.BoolVar(&initConfig, "init", false, "Write the effective configuration to the config file")
				return fs
			},
			Run: func(args []string) error {
				if initConfig {
					return a.initConfig()
				}
				data, err := a.Config.Encode()
				if err != nil {
					return err
				}
				_, err = a.Stdout.Write(data)
				return err
			},
		},
		{
			// Called by the shell hooks on every directory change.
			Name:    "suggest",
			Hidden:  true,
			Summary: "Print the environment remembered for a directory",
			Flags: func() *pflag.FlagSet {
				fs := pflag.NewFlagSet("suggest", pflag.ContinueOnError)
				fs.StringVar(&suggestDir, "dir", "", "Directory to look up (default: current)")
				return fs
			},
			Run: func(args []string) error {
				dir := suggestDir
				if dir == "" {
					dir = a.workingDir()
				}
				active := resolve.ActiveName(a.store, a.Getenv("VIRTUAL_ENV"))
				s, ok, err := a.resolver.Suggest(dir, active)
				if err != nil {
					a.Logger.Debug("suggest failed", zap.String("dir", dir), zap.Error(err))
					return nil
				}
				if ok {
					fmt.Fprintf(a.Stdout, "%s ve activate %s\n", model.IconHint, s.Env.Name)
				}
				return nil
			},
		},
	}
}

func (a *App) forgetDirectory(args []string) error {
	dir, err := oneName("", args)
	if err != nil {
		return err
	}
	if dir == "" {
		dir = a.workingDir()
	} else if dir, err = filepath.Abs(model.ExpandTilde(dir)); err != nil {
		return err
	}
	if err := a.manager.ForgetDirectory(dir); err != nil {
		return err
	}
	a.out().success("Forgot %s", dir)
	return nil
}

func (a *App) initConfig() error {
	path := a.Config.Path()
	if model.FileExists(path) {
		a.out().warn("%s already exists; not overwriting", path)
		return nil
	}
	if err := a.Config.Save(path); err != nil {
		return fmt.Errorf("%w: %w", model.ErrIO, err)
	}
	a.out().success("Wrote %s", path)
	return nil
}

func (a *App) info() error {
	info := a.manager.Info(a.ctx)

	var (
		title  string
		accent lipgloss.Color
		lines  []string
	)
	switch info.State {
	case venv.InfoActive:
		title, accent = model.IconPython+" Active environment: "+info.Name, "10"
		lines = []string{
			fmt.Sprintf("%s %s", model.IconFolder, info.VirtualEnv),
			fmt.Sprintf("Python:  %s", info.Python),
			fmt.Sprintf("Version: %s", info.Version),
		}
	case venv.InfoMismatch:
		title, accent = model.IconWarning+"VIRTUAL_ENV does not match python on PATH", "11"
		lines = []string{
			fmt.Sprintf("VIRTUAL_ENV: %s", info.VirtualEnv),
			fmt.Sprintf("Python:      %s", info.Python),
			fmt.Sprintf("Version:     %s", info.Version),
			"Try 'deactivate' and activate the environment again.",
		}
	case venv.InfoStray:
		title, accent = model.IconWarning+"Python looks like a venv, but VIRTUAL_ENV is not set", "11"
		lines = []string{
			fmt.Sprintf("Python:  %s", info.Python),
			fmt.Sprintf("Version: %s", info.Version),
		}
	default:
		title, accent = "No virtual environment active", "12"
		python := info.Python
		if python == "" {
			python = "not found"
		}
		lines = []string{
			fmt.Sprintf("System python: %s", python),
			fmt.Sprintf("Version:       %s", info.Version),
		}
	}
	fmt.Fprintln(a.Stdout, panel(title, accent, lines))

	if info.State == venv.InfoNone {
		envs, err := a.manager.List()
		if err != nil {
			return err
		}
		if len(envs) > 0 {
			fmt.Fprintln(a.Stdout)
			fmt.Fprintln(a.Stdout, "Available environments:")
			for _, e := range envs {
				fmt.Fprintf(a.Stdout, "  %s %s\n", nameStyle.Render(e.Name), dimStyle.Render(e.Dir()))
			}
			a.out().hint("Activate one with: ve activate <name>")
		}
	}
	return nil
}
