package venv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"vex/internal/model"
)

// Remove deletes an environment's directory and its registry record.
//
// An unregistered name still gets a best-effort cleanup of the default
// environments directory, then reports ErrEnvironmentNotFound; calling
// Remove twice therefore fails the second time exactly like any absent
// name, leaving the registry untouched.
func (m *Manager) Remove(ctx context.Context, name string) error {
	if name == "" {
		return model.ErrNameRequired
	}
	env, ok, err := m.Store.Lookup(name)
	if err != nil {
		return err
	}
	if !ok {
		m.cleanupOrphan(name)
		return fmt.Errorf("%w: %s", model.ErrEnvironmentNotFound, name)
	}

	dir := env.Dir()
	if m.isActive(dir) {
		return fmt.Errorf("%w: %s (run deactivate first)", model.ErrEnvironmentActive, name)
	}

	// Directory cleanup is best effort; the record goes either way.
	if !model.IsDir(dir) {
		m.Logger.Debug("environment directory already gone", zap.String("dir", dir))
	} else if err := checkSafe(dir); err != nil {
		m.Logger.Warn("not deleting a directory that is not a virtual environment", zap.String("dir", dir), zap.Error(err))
	} else if err := os.RemoveAll(dir); err != nil {
		m.Logger.Warn("could not delete environment directory", zap.String("dir", dir), zap.Error(err))
	}

	if err := m.Store.Unregister(name); err != nil {
		return err
	}
	m.Logger.Info("removed environment", zap.String("env", name), zap.String("dir", dir))
	return nil
}

func (m *Manager) cleanupOrphan(name string) {
	if !model.IsValidName(name) {
		return
	}
	dir := filepath.Join(m.Config.VenvsDir, name)
	if !model.IsDir(dir) || checkSafe(dir) != nil || m.isActive(dir) {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		m.Logger.Warn("could not delete unregistered environment", zap.String("dir", dir), zap.Error(err))
		return
	}
	m.Logger.Info("deleted unregistered environment directory", zap.String("dir", dir))
}

// checkSafe refuses filesystem roots, the home directory and anything
// that does not look like a virtual environment.
func checkSafe(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("%w: %s", model.ErrUnsafePath, dir)
	}
	if abs == filepath.Dir(abs) {
		return fmt.Errorf("%w: %s", model.ErrUnsafePath, abs)
	}
	if home, err := os.UserHomeDir(); err == nil && abs == filepath.Clean(home) {
		return fmt.Errorf("%w: %s", model.ErrUnsafePath, abs)
	}
	if !model.FileExists(model.ActivateScriptFor(abs)) && !model.FileExists(filepath.Join(abs, "pyvenv.cfg")) {
		return fmt.Errorf("%w: %s is not a virtual environment", model.ErrUnsafePath, abs)
	}
	return nil
}

// DefaultKeep is kept by RemoveAllExcept when no pattern is given.
var DefaultKeep = []string{"base"}

// Doomed lists the environments RemoveAllExcept would delete: every
// record whose name matches none of the keep patterns.
func (m *Manager) Doomed(keep []string) ([]model.Environment, error) {
	if len(keep) == 0 {
		keep = DefaultKeep
	}
	for _, p := range keep {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid keep pattern %q", p)
		}
	}

	envs, err := m.List()
	if err != nil {
		return nil, err
	}
	var doomed []model.Environment
	for _, env := range envs {
		if !matchesAny(keep, env.Name) {
			doomed = append(doomed, env)
		}
	}
	return doomed, nil
}

func matchesAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

// RemoveAllExcept removes every environment not matching keep. Failures
// do not stop the sweep; they are joined into the returned error.
func (m *Manager) RemoveAllExcept(ctx context.Context, keep []string) ([]string, error) {
	doomed, err := m.Doomed(keep)
	if err != nil {
		return nil, err
	}
	var removed []string
	var errs []error
	for _, env := range doomed {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := m.Remove(ctx, env.Name); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", env.Name, err))
			continue
		}
		removed = append(removed, env.Name)
	}
	return removed, errors.Join(errs...)
}
