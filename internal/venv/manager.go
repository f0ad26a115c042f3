// Package venv implements the environment operations behind the command
// surface: creating and removing environments, package management in
// the active environment and the small utilities around them. Every
// external program runs through an execx.Runner and every piece of
// persistent state goes through a registry.Store.
package venv

import (
	"io"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"vex/internal/config"
	"vex/internal/execx"
	"vex/internal/model"
	"vex/internal/registry"
	"vex/internal/resolve"
)

// Manager carries the collaborators shared by all operations.
type Manager struct {
	Store  registry.Store
	Runner execx.Runner
	Config *config.Config
	Logger *zap.Logger

	// Streams handed to external tools. Stdout is reserved for output
	// the user asked for (run); installer chatter goes to Stderr.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Confirm asks a yes/no question. nil answers no.
	Confirm func(prompt string) bool

	// Getenv reads the process environment (VIRTUAL_ENV, PATH).
	Getenv func(string) string
}

// New returns a Manager wired to the real process environment.
func New(store registry.Store, runner execx.Runner, cfg *config.Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		Store:  store,
		Runner: runner,
		Config: cfg,
		Logger: logger,
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Getenv: os.Getenv,
	}
}

func (m *Manager) getenv(key string) string {
	if m.Getenv == nil {
		return os.Getenv(key)
	}
	return m.Getenv(key)
}

func (m *Manager) confirm(prompt string) bool {
	return m.Confirm != nil && m.Confirm(prompt)
}

// Active returns the environment VIRTUAL_ENV points at, named after its
// registry record when one matches.
func (m *Manager) Active() (model.Environment, error) {
	ve := m.getenv("VIRTUAL_ENV")
	if ve == "" {
		return model.Environment{}, model.ErrNoActiveEnvironment
	}
	return model.Environment{
		Name:           resolve.ActiveName(m.Store, ve),
		ActivateScript: model.ActivateScriptFor(ve),
	}, nil
}

func (m *Manager) isActive(dir string) bool {
	ve := m.getenv("VIRTUAL_ENV")
	return ve != "" && filepath.Clean(ve) == filepath.Clean(dir)
}

// List returns every registered environment sorted by name.
func (m *Manager) List() ([]model.Environment, error) {
	envs, err := m.Store.List()
	if err != nil {
		return nil, err
	}
	sort.Slice(envs, func(i, j int) bool { return envs[i].Name < envs[j].Name })
	return envs, nil
}
