package venv

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"vex/internal/execx"
	"vex/internal/model"
)

// pipOp is one pip subcommand as spelled by each installer.
type pipOp struct {
	name string
	uv   []string
	pip  []string
}

var (
	installOp   = pipOp{name: "install", uv: []string{"install"}, pip: []string{"install"}}
	uninstallOp = pipOp{name: "uninstall", uv: []string{"uninstall"}, pip: []string{"uninstall", "-y"}}
	updateOp    = pipOp{name: "update", uv: []string{"install", "--upgrade"}, pip: []string{"install", "--upgrade"}}
	listOp      = pipOp{name: "list", uv: []string{"list"}, pip: []string{"list"}}
)

// installerCommand builds the command for one installer, or reports it
// unavailable. pip always means the environment's own pip so packages
// never land in another interpreter.
func (m *Manager) installerCommand(env model.Environment, installer string, op pipOp, pkgs []string) (execx.Command, bool) {
	switch installer {
	case "uv":
		uv, err := m.Runner.LookPath("uv")
		if err != nil {
			return execx.Command{}, false
		}
		args := append([]string{"pip"}, op.uv...)
		args = append(args, "--python", env.Python())
		return execx.Command{Name: uv, Args: append(args, pkgs...)}, true
	case "pip":
		pip := filepath.Join(env.Dir(), "bin", "pip")
		if !model.FileExists(pip) {
			return execx.Command{}, false
		}
		args := append([]string{}, op.pip...)
		return execx.Command{Name: pip, Args: append(args, pkgs...)}, true
	default:
		m.Logger.Warn("unknown installer in config", zap.String("installer", installer))
		return execx.Command{}, false
	}
}

// runInstallers tries each installer in order until one succeeds. With
// capture the tool's stdout is returned instead of streamed.
func (m *Manager) runInstallers(ctx context.Context, env model.Environment, order []string, op pipOp, pkgs []string, capture bool) (string, error) {
	var lastErr error
	for _, installer := range order {
		cmd, ok := m.installerCommand(env, installer, op, pkgs)
		if !ok {
			continue
		}
		if !capture {
			cmd.Stdout = m.Stderr
		}
		cmd.Stderr = m.Stderr

		m.Logger.Debug("running installer", zap.String("installer", installer), zap.String("cmd", cmd.String()))
		res, err := m.Runner.Run(ctx, cmd)
		if err != nil {
			m.Logger.Warn("installer failed", zap.String("installer", installer), zap.Error(err))
			lastErr = fmt.Errorf("%w: %s %s: %w", model.ErrExternalTool, installer, op.name, err)
			continue
		}
		m.Logger.Info("installer finished", zap.String("installer", installer), zap.String("op", op.name))
		return res.Stdout, nil
	}
	if lastErr != nil {
		return "", lastErr
	}
	return "", fmt.Errorf("%w in %s", model.ErrNoInstaller, env.Dir())
}

func (m *Manager) activePackages(ctx context.Context, op pipOp, pkgs []string, capture bool) (string, error) {
	env, err := m.Active()
	if err != nil {
		return "", err
	}
	return m.runInstallers(ctx, env, m.Config.Installers, op, pkgs, capture)
}

// Install installs packages into the active environment.
func (m *Manager) Install(ctx context.Context, pkgs []string) error {
	if len(pkgs) == 0 {
		return errors.New("no packages given")
	}
	_, err := m.activePackages(ctx, installOp, CondaSpecs(pkgs), false)
	return err
}

// Uninstall removes packages from the active environment.
func (m *Manager) Uninstall(ctx context.Context, pkgs []string) error {
	if len(pkgs) == 0 {
		return errors.New("no packages given")
	}
	_, err := m.activePackages(ctx, uninstallOp, pkgs, false)
	return err
}

// Update upgrades packages in the active environment.
func (m *Manager) Update(ctx context.Context, pkgs []string) error {
	if len(pkgs) == 0 {
		return errors.New("no packages given")
	}
	_, err := m.activePackages(ctx, updateOp, CondaSpecs(pkgs), false)
	return err
}

// Installed returns the installer's package listing for the active
// environment.
func (m *Manager) Installed(ctx context.Context) (string, error) {
	return m.activePackages(ctx, listOp, nil, true)
}

// SearchURL is the PyPI search page for a query.
func SearchURL(query string) string {
	return "https://pypi.org/search/?q=" + url.QueryEscape(query)
}

// Search opens the PyPI search page in a browser. It returns the URL and
// whether a browser opener succeeded.
func (m *Manager) Search(ctx context.Context, query string) (string, bool) {
	u := SearchURL(query)
	for _, opener := range []string{"xdg-open", "open"} {
		path, err := m.Runner.LookPath(opener)
		if err != nil {
			continue
		}
		if _, err := m.Runner.Run(ctx, execx.Command{Name: path, Args: []string{u}}); err != nil {
			m.Logger.Debug("browser opener failed", zap.String("opener", opener), zap.Error(err))
			continue
		}
		return u, true
	}
	return u, false
}

// Run executes argv with the active environment's bin directory first on
// PATH.
func (m *Manager) Run(ctx context.Context, argv []string) error {
	if len(argv) == 0 {
		return errors.New("no command given")
	}
	env, err := m.Active()
	if err != nil {
		return err
	}
	bin := filepath.Join(env.Dir(), "bin")

	name := filepath.Join(bin, argv[0])
	if strings.ContainsRune(argv[0], filepath.Separator) || !model.FileExists(name) {
		if name, err = m.Runner.LookPath(argv[0]); err != nil {
			return fmt.Errorf("%w: %s: %w", model.ErrExternalTool, argv[0], err)
		}
	}

	path := bin
	if p := m.getenv("PATH"); p != "" {
		path = bin + string(filepath.ListSeparator) + p
	}
	cmd := execx.Command{
		Name:   name,
		Args:   argv[1:],
		Env:    []string{"PATH=" + path, "VIRTUAL_ENV=" + env.Dir()},
		Stdin:  m.Stdin,
		Stdout: m.Stdout,
		Stderr: m.Stderr,
	}
	m.Logger.Debug("running in environment", zap.String("env", env.Name), zap.String("cmd", cmd.String()))
	if _, err := m.Runner.Run(ctx, cmd); err != nil {
		return fmt.Errorf("%w: %w", model.ErrExternalTool, err)
	}
	return nil
}
