package venv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"vex/internal/execx"
	"vex/internal/model"
)

// CreateOptions describes a new environment.
type CreateOptions struct {
	Name     string
	Python   string   // Interpreter version, e.g. 3.12; empty uses the tool default
	Packages []string // pip or conda-style specs installed after creation
	Force    bool     // Replace an existing environment without asking
}

// creator is one environment creation tool.
type creator struct {
	name string
	exe  string
	args func(dir string) []string
}

// creators expands the configured tool names into probes. They are
// evaluated lazily by Create: LookPath runs only when earlier tools failed.
func (m *Manager) creators(python string) []creator {
	var out []creator
	for _, name := range m.Config.Creators {
		switch name {
		case "uv":
			out = append(out, creator{name: "uv", exe: "uv", args: func(dir string) []string {
				args := []string{"venv"}
				if python != "" {
					args = append(args, "--python", python)
				}
				return append(args, dir)
			}})
		case "python-version":
			if python == "" {
				continue
			}
			exe := "python" + python
			out = append(out, creator{name: exe, exe: exe, args: venvModule})
		default:
			out = append(out, creator{name: name, exe: name, args: venvModule})
		}
	}
	return out
}

func venvModule(dir string) []string {
	return []string{"-m", "venv", dir}
}

// Create makes a new environment under the environments directory and
// registers it. The registry is only written once a tool has succeeded.
func (m *Manager) Create(ctx context.Context, opts CreateOptions) (model.Environment, error) {
	if opts.Name == "" {
		return model.Environment{}, model.ErrNameRequired
	}
	if !model.IsValidName(opts.Name) {
		return model.Environment{}, fmt.Errorf("%w: %q", model.ErrInvalidName, opts.Name)
	}

	dir := filepath.Join(m.Config.VenvsDir, opts.Name)
	env := model.Environment{Name: opts.Name, ActivateScript: model.ActivateScriptFor(dir)}

	if err := m.makeRoom(opts, dir); err != nil {
		return model.Environment{}, err
	}
	if err := os.MkdirAll(m.Config.VenvsDir, 0755); err != nil {
		return model.Environment{}, fmt.Errorf("%w: creating %s: %w", model.ErrIO, m.Config.VenvsDir, err)
	}

	if err := m.runCreators(ctx, opts.Python, dir); err != nil {
		return model.Environment{}, err
	}
	if err := m.Store.Register(env.Name, env.ActivateScript); err != nil {
		return model.Environment{}, err
	}

	pkgs, err := m.Config.BaseRequirementList()
	if err != nil {
		m.Logger.Warn("skipping base requirements", zap.Error(err))
		pkgs = nil
	}
	pkgs = append(pkgs, CondaSpecs(opts.Packages)...)
	if len(pkgs) == 0 {
		return env, nil
	}
	if _, err := m.runInstallers(ctx, env, []string{"pip", "uv"}, installOp, pkgs, false); err != nil {
		return env, fmt.Errorf("installing packages into %s: %w", env.Name, err)
	}
	return env, nil
}

// makeRoom clears an existing environment of the same name once the
// caller forced or confirmed the overwrite.
func (m *Manager) makeRoom(opts CreateOptions, dir string) error {
	_, registered, err := m.Store.Lookup(opts.Name)
	if err != nil {
		return err
	}
	exists := model.IsDir(dir)
	if !exists && !registered {
		return nil
	}
	if !opts.Force && !m.confirm(fmt.Sprintf("Overwrite environment %q?", opts.Name)) {
		return fmt.Errorf("%w: %s", model.ErrEnvironmentExists, opts.Name)
	}
	if exists {
		if m.isActive(dir) {
			return fmt.Errorf("%w: %s", model.ErrEnvironmentActive, opts.Name)
		}
		m.Logger.Info("removing existing environment", zap.String("dir", dir))
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("%w: removing %s: %w", model.ErrIO, dir, err)
		}
	}
	return nil
}

func (m *Manager) runCreators(ctx context.Context, python, dir string) error {
	var lastErr error
	found := false
	for _, c := range m.creators(python) {
		path, err := m.Runner.LookPath(c.exe)
		if err != nil {
			m.Logger.Debug("creation tool not found", zap.String("tool", c.name))
			continue
		}
		found = true

		cmd := execx.Command{Name: path, Args: c.args(dir)}
		m.Logger.Debug("running creation tool", zap.String("tool", c.name), zap.String("cmd", cmd.String()))
		if _, err := m.Runner.Run(ctx, cmd); err != nil {
			m.Logger.Warn("creation tool failed", zap.String("tool", c.name), zap.Error(err))
			lastErr = fmt.Errorf("%w: %s: %w", model.ErrExternalTool, c.name, err)
			continue
		}
		m.Logger.Info("created environment", zap.String("tool", c.name), zap.String("dir", dir))
		return nil
	}
	if !found {
		return model.ErrNoToolAvailable
	}
	return errors.Join(model.ErrNoToolAvailable, lastErr)
}

// CondaSpecs rewrites conda-style pins (pkg=1.2) to pip syntax
// (pkg==1.2). Specs that already use a pip operator pass through.
func CondaSpecs(specs []string) []string {
	out := make([]string, 0, len(specs))
	for _, s := range specs {
		out = append(out, condaSpec(s))
	}
	return out
}

func condaSpec(s string) string {
	if strings.HasPrefix(s, "-") || strings.Contains(s, "://") {
		return s
	}
	i := strings.IndexByte(s, '=')
	if i <= 0 || i == len(s)-1 {
		return s
	}
	if strings.ContainsAny(s[i-1:i], "<>!~=") || s[i+1] == '=' {
		return s
	}
	return s[:i] + "==" + s[i+1:]
}
