package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/tcnksm/go-latest"
	"go.uber.org/zap"

	"vex/internal/model"
)

// Root builds the vex command tree.
func (a *App) Root() *Command {
	var showVersion, checkUpdate bool

	root := &Command{
		Name:       "vex",
		HelpOutput: a.Stderr,
		Description: `vex manages Python virtual environments with a conda-style interface.

Use it through the 've' shell function (installed by 'vex install') so
that 've activate' can change your shell's environment.`,
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("vex", pflag.ContinueOnError)
			fs.BoolVarP(&showVersion, "version", "V", false, "Print version information")
			fs.BoolVarP(&checkUpdate, "update", "u", false, "Check for a newer release")
			fs.Bool("verbose", false, "Log tool choices and external commands to stderr")
			return fs
		},
		Examples: []Example{
			{Description: "Create an environment with packages", Command: "ve create myproject --python=3.12 requests"},
			{Description: "Conda-style creation", Command: "ve env create -n dataproject python=3.11 numpy pandas"},
			{Description: "Activate and remember it for this directory", Command: "ve activate myproject"},
			{Description: "Pick an environment interactively", Command: "ve activate"},
		},
	}
	root.Subcommands = append(a.environmentCommands(), a.packageCommands()...)
	root.Subcommands = append(root.Subcommands, a.utilityCommands()...)

	root.Run = func(args []string) error {
		switch {
		case showVersion:
			fmt.Fprintf(a.Stdout, "vex version %s\n", model.Version)
			return nil
		case checkUpdate:
			a.checkUpdate(model.Version)
			return nil
		case len(args) > 0:
			if suggestion := suggestCommand(args[0], root.Subcommands); suggestion != "" {
				return fmt.Errorf("unknown command %q (did you mean %q?)", args[0], suggestion)
			}
			return fmt.Errorf("unknown command %q\n\nRun 'vex --help' for usage.", args[0])
		}
		root.PrintHelp(a.Stderr)
		return nil
	}
	return root
}

// checkUpdate compares version with the newest release tag of the
// configured GitHub repository. Network failures are silent.
func (a *App) checkUpdate(version string) {
	owner, repo, ok := strings.Cut(a.Config.UpdateRepo, "/")
	if !ok {
		a.Logger.Debug("update_repo is not owner/name", zap.String("update_repo", a.Config.UpdateRepo))
		return
	}
	githubTag := &latest.GithubTag{
		Owner:      owner,
		Repository: repo,
	}

	res, err := latest.Check(githubTag, version)
	if err != nil {
		a.Logger.Debug("update check failed", zap.Error(err))
		return
	}

	p := a.out()
	if res.Outdated {
		p.info("✨ A new version is available: %s (you have %s)", res.Current, version)
		p.hint("Download it from https://github.com/%s/releases", a.Config.UpdateRepo)
	} else {
		p.success("You are using the latest version: %s", version)
	}
}
