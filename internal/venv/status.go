package venv

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"vex/internal/execx"
	"vex/internal/model"
)

// ListStatus annotates every record with its active and missing state.
// With prune_missing set, records whose activation script is gone are
// dropped from the registry and returned separately.
func (m *Manager) ListStatus() (statuses []model.EnvStatus, pruned []model.Environment, err error) {
	if m.Config.PruneMissing {
		pruned, err = m.Store.Prune(func(e model.Environment) bool {
			return model.FileExists(e.ActivateScript)
		})
		if err != nil {
			return nil, nil, err
		}
		for _, e := range pruned {
			m.Logger.Info("pruned missing environment", zap.String("env", e.Name), zap.String("script", e.ActivateScript))
		}
	}

	envs, err := m.List()
	if err != nil {
		return nil, nil, err
	}
	for _, e := range envs {
		statuses = append(statuses, model.EnvStatus{
			Environment: e,
			Active:      m.isActive(e.Dir()),
			Missing:     !model.FileExists(e.ActivateScript),
		})
	}
	return statuses, pruned, nil
}

// Which returns the registered environment called name.
func (m *Manager) Which(name string) (model.Environment, error) {
	if name == "" {
		return model.Environment{}, model.ErrNameRequired
	}
	env, ok, err := m.Store.Lookup(name)
	if err != nil {
		return model.Environment{}, err
	}
	if !ok {
		return model.Environment{}, fmt.Errorf("%w: %s", model.ErrEnvironmentNotFound, name)
	}
	return env, nil
}

// History returns the directory mappings sorted by directory.
func (m *Manager) History() ([]model.DirMapping, error) {
	maps, err := m.Store.DirectoryMappings()
	if err != nil {
		return nil, err
	}
	sort.Slice(maps, func(i, j int) bool { return maps[i].Dir < maps[j].Dir })
	return maps, nil
}

// ForgetDirectory drops the mapping for dir. Unmapped directories are a
// no-op.
func (m *Manager) ForgetDirectory(dir string) error {
	return m.Store.RemoveDirectoryMapping(dir)
}

// ClearHistory forgets every directory mapping.
func (m *Manager) ClearHistory() error {
	return m.Store.ClearDirectoryMappings()
}

// InfoState classifies the interpreter situation reported by Info.
type InfoState int

const (
	InfoNone     InfoState = iota // No environment active
	InfoActive                    // VIRTUAL_ENV set and python comes from it
	InfoMismatch                  // VIRTUAL_ENV set but python comes from elsewhere
	InfoStray                     // python looks like a venv interpreter without VIRTUAL_ENV
)

// Info describes the current interpreter.
type Info struct {
	State      InfoState
	Name       string
	VirtualEnv string
	Python     string // python found on PATH
	Version    string
}

// Info inspects VIRTUAL_ENV and the python on PATH.
func (m *Manager) Info(ctx context.Context) Info {
	info := Info{VirtualEnv: m.getenv("VIRTUAL_ENV"), Version: "unknown"}

	if py, err := m.Runner.LookPath("python"); err == nil {
		info.Python = py
		res, err := m.Runner.Run(ctx, execx.Command{Name: py, Args: []string{"--version"}})
		if err == nil {
			// Old interpreters print the version on stderr.
			if v := strings.TrimSpace(res.Stdout + res.Stderr); v != "" {
				info.Version = v
			}
		}
	}

	switch {
	case info.VirtualEnv != "":
		info.Name = m.activeName()
		if info.Python != "" && strings.HasPrefix(info.Python, info.VirtualEnv) {
			info.State = InfoActive
		} else {
			info.State = InfoMismatch
		}
	case strings.Contains(info.Python, "venv") || strings.Contains(info.Python, "env"):
		info.State = InfoStray
	default:
		info.State = InfoNone
	}
	return info
}

func (m *Manager) activeName() string {
	env, err := m.Active()
	if err != nil {
		return ""
	}
	return env.Name
}
