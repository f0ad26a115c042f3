package cli

import (
	"errors"
	"fmt"
	"strings"

	"vex/internal/execx"
	"vex/internal/model"
	"vex/internal/shell"
)

func (a *App) packageCommands() []*Command {
	return []*Command{
		{
			Name:    "install",
			Summary: "Install packages into the active environment, or the shell integration",
			Description: `With package arguments, installs them into the active environment.
Arguments are handed to the installer unchanged, so pip options such as
-r requirements.txt or -e . work.

Without arguments, installs the 've' shell function into your shell's
startup file. --shell zsh|bash|fish overrides the detected shell.`,
			Usage: "vex install [packages or pip options...] | vex install [--shell zsh|bash|fish]",
			Examples: []Example{
				{Command: "vex install requests 'flask>=3'"},
				{Command: "vex install -r requirements.txt"},
				{Description: "set up the ve shell function", Command: "vex install"},
			},
			Run: func(args []string) error {
				shellName, pkgs, err := takeShellFlag(args)
				if err != nil {
					return err
				}
				if len(pkgs) == 0 {
					return a.installIntegration(shellName)
				}
				if shellName != "" {
					return errors.New("--shell only applies to 'vex install' without packages")
				}
				if err := a.manager.Install(a.ctx, pkgs); err != nil {
					return err
				}
				a.out().success("Installed: %s", strings.Join(pkgs, " "))
				return nil
			},
		},
		{
			Name:    "installed",
			Aliases: []string{"freeze"},
			Summary: "List packages installed in the active environment",
			Run: func(args []string) error {
				out, err := a.manager.Installed(a.ctx)
				if err != nil {
					return err
				}
				fmt.Fprint(a.Stdout, out)
				return nil
			},
		},
		{
			Name:    "uninstall",
			Summary: "Remove packages from the active environment",
			Usage:   "vex uninstall <packages...>",
			Run: func(args []string) error {
				if err := a.manager.Uninstall(a.ctx, args); err != nil {
					return err
				}
				a.out().success("Uninstalled: %s", strings.Join(args, " "))
				return nil
			},
		},
		{
			Name:    "update",
			Aliases: []string{"upgrade"},
			Summary: "Upgrade packages in the active environment",
			Usage:   "vex update <packages...>",
			Run: func(args []string) error {
				if err := a.manager.Update(a.ctx, args); err != nil {
					return err
				}
				a.out().success("Updated: %s", strings.Join(args, " "))
				return nil
			},
		},
		{
			Name:    "search",
			Summary: "Search PyPI in your browser",
			Usage:   "vex search <query>",
			Run: func(args []string) error {
				if len(args) == 0 {
					return errors.New("search needs a query")
				}
				u, opened := a.manager.Search(a.ctx, strings.Join(args, " "))
				if opened {
					a.out().info("%s Opened %s", model.IconSearching, u)
					return nil
				}
				a.out().warn("No browser opener found; visit:")
				fmt.Fprintln(a.Stdout, u)
				return nil
			},
		},
		{
			Name:    "run",
			Summary: "Run a command with the active environment first on PATH",
			Usage:   "vex run <command> [args...]",
			Examples: []Example{
				{Command: "vex run pytest -x"},
			},
			Run: func(args []string) error {
				err := a.manager.Run(a.ctx, args)
				var exitErr *execx.ExitError
				if errors.As(err, &exitErr) {
					return &ExitError{Code: exitErr.ExitCode}
				}
				return err
			},
		},
	}
}

// takeShellFlag removes --shell from args and returns the remaining
// arguments untouched. Everything after "--" is passed through as is.
func takeShellFlag(args []string) (shellName string, rest []string, err error) {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--":
			return shellName, append(rest, args[i+1:]...), nil
		case arg == "--shell":
			if i+1 >= len(args) {
				return "", nil, errors.New("flag needs an argument: --shell")
			}
			i++
			shellName = args[i]
		case strings.HasPrefix(arg, "--shell="):
			shellName = strings.TrimPrefix(arg, "--shell=")
		default:
			rest = append(rest, arg)
		}
	}
	return shellName, rest, nil
}

func (a *App) installIntegration(shellName string) error {
	integ, err := a.integration(shellName)
	if err != nil {
		return err
	}
	res, err := integ.Install()
	if err != nil {
		return err
	}
	p := a.out()
	switch res {
	case shell.AlreadyInstalled:
		p.info("Shell integration already present in %s", integ.RCFile())
		p.info("Refreshed %s", integ.ScriptPath())
		return nil
	case shell.ForeignFunction:
		p.warn("%s already defines a 've' function; not touching it", integ.RCFile())
		p.hint("Run 'vex clean-shell' to remove it, then 'vex install' again")
		return nil
	}
	p.success("Installed shell integration for %s in %s", integ.Shell.Name(), integ.RCFile())
	p.hint("Run 'source %s' or open a new terminal to start using 've'", integ.RCFile())
	return nil
}
