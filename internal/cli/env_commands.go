package cli

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/pflag"

	"vex/internal/model"
)

func (a *App) environmentCommands() []*Command {
	return []*Command{
		a.createCommand("vex create <name> [--python=VERSION] [python=VERSION] [packages...]"),
		{
			Name:    "env",
			Summary: "Conda-style environment commands (create, list, remove)",
			Subcommands: []*Command{
				a.createCommand("vex env create -n <name> [python=VERSION] [packages...]"),
				{
					Name:    "list",
					Summary: "List environments in conda format",
					Run: func(args []string) error {
						return a.listConda()
					},
				},
				a.removeCommand("vex env remove [-n <name>] [-y]"),
			},
		},
		a.activateCommand(),
		{
			Name:    "deactivate",
			Summary: "Deactivate the current environment",
			Run: func(args []string) error {
				p := a.out()
				ve := a.Getenv("VIRTUAL_ENV")
				if ve == "" {
					p.warn("No environment active")
					return nil
				}
				env, _ := a.manager.Active()
				p.info("To deactivate the current environment, run:")
				p.plain("  deactivate")
				p.warn("Would deactivate: %s", env.Name)
				return nil
			},
		},
		{
			Name:    "list",
			Aliases: []string{"ls"},
			Summary: "List registered environments",
			Run: func(args []string) error {
				return a.list()
			},
		},
		a.removeCommand("vex remove [<name>...] [-y]"),
		a.removeAllExceptCommand(),
	}
}

func (a *App) createCommand(usage string) *Command {
	var name, python string
	var yes bool
	return &Command{
		Name:    "create",
		Summary: "Create a new environment",
		Usage:   usage,
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("create", pflag.ContinueOnError)
			fs.StringVarP(&name, "name", "n", "", "Environment name (conda-style)")
			fs.StringVar(&python, "python", "", "Python version to use, e.g. 3.12")
			fs.BoolVarP(&yes, "yes", "y", false, "Overwrite an existing environment without asking")
			return fs
		},
		Examples: []Example{
			{Command: "vex create myproject"},
			{Command: "vex create myproject --python=3.11 requests flask"},
			{Description: "conda syntax; numpy=1.26 is installed as numpy==1.26", Command: "vex env create -n dataproject python=3.11 numpy=1.26 pandas"},
		},
		Run: func(args []string) error {
			opts, err := parseCreateArgs(name, python, args)
			if err != nil {
				return err
			}
			opts.Force = yes

			env, err := a.manager.Create(a.ctx, opts)
			if env.Name == "" {
				return err
			}
			p := a.out()
			p.success("Created environment %s at %s", env.Name, env.Dir())
			if err != nil {
				return err
			}
			if len(opts.Packages) > 0 {
				p.success("Installed: %s", strings.Join(opts.Packages, " "))
			}
			p.hint("Activate it with: ve activate %s", env.Name)
			return nil
		},
	}
}

func (a *App) activateCommand() *Command {
	var vscode, auto bool
	return &Command{
		Name:    "activate",
		Summary: "Activate an environment (prints the source line for the ve wrapper)",
		Description: `Activate an environment by name or path. Without a name an interactive
selector is shown. The current directory is remembered so that cd'ing
back suggests the same environment.

vex prints "source <script>" on stdout; the 've' shell function sources it.`,
		Usage: "vex activate [<name|path>] [--vscode] [--auto]",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("activate", pflag.ContinueOnError)
			fs.BoolVar(&vscode, "vscode", false, "Point .vscode/settings.json at the environment's interpreter")
			fs.BoolVar(&auto, "auto", false, "Activate this environment in every new shell")
			return fs
		},
		Run: func(args []string) error {
			name, err := oneName("", args)
			if err != nil {
				return err
			}
			dir := a.workingDir()
			env, err := a.resolver.Resolve(a.ctx, name, dir)
			if err != nil {
				return err
			}

			p := a.out()
			if vscode {
				if py := env.Python(); !model.FileExists(py) {
					p.warn("No interpreter at %s, skipping VS Code settings", py)
				} else if path, err := a.manager.UpdateVSCodeSettings(dir, py); err != nil {
					p.warn("Could not update VS Code settings: %v", err)
				} else {
					p.success("Updated %s with Python interpreter: %s", path, py)
				}
			}
			if auto {
				a.setAutoActivation(env)
			}

			fmt.Fprintf(a.Stdout, "source %s\n", env.ActivateScript)
			if a.stdoutIsTerminal() {
				p.hint("Run 'vex install' once so 've activate %s' can activate it for you", env.Name)
			}
			return nil
		},
	}
}

func (a *App) setAutoActivation(env model.Environment) {
	p := a.out()
	integ, err := a.integration("")
	if err != nil {
		p.warn("%v", err)
		return
	}
	replaced, err := integ.SetAutoActivation(env.Name, env.ActivateScript)
	if err != nil {
		p.warn("Could not update shell config: %v", err)
		return
	}
	for _, line := range replaced {
		p.info("Replaced existing auto-activation: %s", line)
	}
	p.success("Added auto-activation of %s to %s", env.Name, integ.RCFile())
	p.hint("Run 'source %s' or restart your shell to apply changes", integ.RCFile())
}

func (a *App) list() error {
	statuses, pruned, err := a.manager.ListStatus()
	if err != nil {
		return err
	}
	p := a.out()
	if len(pruned) > 0 {
		p.info("Cleaned up %d missing environment(s) from the registry", len(pruned))
	}
	if len(statuses) == 0 {
		p.warn("No environments registered")
		p.hint("Create one with: vex create <name>")
		return nil
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("", "NAME", "PATH").
		StyleFunc(func(row, col int) lipgloss.Style {
			base := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return base.Bold(true)
			}
			s := statuses[row]
			switch {
			case s.Missing:
				return base.Inherit(warnStyle)
			case s.Active:
				return base.Inherit(activeStyle)
			case col == 1:
				return base.Inherit(nameStyle)
			}
			return base
		})
	for _, s := range statuses {
		mark := model.IconOK
		switch {
		case s.Missing:
			mark = model.IconMissing
		case s.Active:
			mark = model.IconActive
		}
		t.Row(mark, s.Name, s.Dir())
	}
	fmt.Fprintln(a.Stdout, t.String())
	return nil
}

// listConda prints the registry the way `conda env list` does.
func (a *App) listConda() error {
	statuses, _, err := a.manager.ListStatus()
	if err != nil {
		return err
	}
	fmt.Fprintln(a.Stdout, "# vex environments:")
	fmt.Fprintln(a.Stdout, "#")
	tw := tabwriter.NewWriter(a.Stdout, 0, 0, 2, ' ', 0)
	for _, s := range statuses {
		mark := " "
		if s.Active {
			mark = model.IconActive
		}
		path := s.Dir()
		if s.Missing {
			path += " (missing)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Name, mark, path)
	}
	return tw.Flush()
}

func (a *App) removeCommand(usage string) *Command {
	var name string
	var yes bool
	return &Command{
		Name:    "remove",
		Aliases: []string{"delete", "rm"},
		Summary: "Delete environments",
		Usage:   usage,
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("remove", pflag.ContinueOnError)
			fs.StringVarP(&name, "name", "n", "", "Environment name (conda-style)")
			fs.BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
			return fs
		},
		Run: func(args []string) error {
			names := args
			if name != "" {
				names = append([]string{name}, args...)
			}
			if len(names) == 0 {
				picked, err := a.resolver.Pick(a.ctx, "Select environment to remove: ")
				if err != nil {
					return err
				}
				names = []string{picked}
			}
			var errs []error
			for _, n := range names {
				if err := a.removeOne(n, yes); err != nil {
					errs = append(errs, err)
				}
			}
			return errors.Join(errs...)
		},
	}
}

func (a *App) removeOne(name string, yes bool) error {
	p := a.out()
	if env, err := a.manager.Which(name); err == nil && !yes {
		if !a.confirm(fmt.Sprintf("Delete %s at %s?", name, env.Dir())) {
			p.warn("Cancelled")
			return &ExitError{Code: 1}
		}
	}
	if err := a.manager.Remove(a.ctx, name); err != nil {
		return err
	}
	p.success("Deleted: %s", name)
	return nil
}

func (a *App) removeAllExceptCommand() *Command {
	var keep []string
	var yes bool
	return &Command{
		Name:    "remove-all-except",
		Aliases: []string{"remove-all-except-base"},
		Summary: "Delete every environment not matching --keep (default: base)",
		Usage:   "vex remove-all-except [--keep GLOB]... [-y]",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("remove-all-except", pflag.ContinueOnError)
			fs.StringArrayVarP(&keep, "keep", "k", nil, "Glob of environment names to keep (repeatable)")
			fs.BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
			return fs
		},
		Examples: []Example{
			{Description: "keep base and everything starting with work-", Command: "vex remove-all-except --keep base --keep 'work-*'"},
		},
		Run: func(args []string) error {
			keep = append(keep, args...)
			p := a.out()
			doomed, err := a.manager.Doomed(keep)
			if err != nil {
				return err
			}
			kept := keep
			if len(kept) == 0 {
				kept = []string{"base"}
			}
			if len(doomed) == 0 {
				p.warn("No environments to delete (keeping %s)", strings.Join(kept, ", "))
				return nil
			}
			p.info("Will delete %d environment(s), keeping %s:", len(doomed), strings.Join(kept, ", "))
			for _, env := range doomed {
				p.plain("  %s", env.Name)
			}
			if !yes && !a.confirm("Continue?") {
				p.warn("Cancelled")
				return &ExitError{Code: 1}
			}
			removed, err := a.manager.RemoveAllExcept(a.ctx, keep)
			for _, name := range removed {
				p.success("Deleted: %s", name)
			}
			return err
		},
	}
}
