// Package resolve turns an environment name (or nothing, or the current
// directory) into an activation script path. It never sources anything:
// the shell wrapper does that with the path it is handed.
package resolve

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"vex/internal/model"
	"vex/internal/registry"
)

// Selector lets the user pick one of items interactively. Select returns
// model.ErrNoSelection when the user aborts.
type Selector interface {
	Available() bool
	Select(ctx context.Context, prompt string, items []string) (string, error)
}

// Resolver resolves activation requests against a registry.
type Resolver struct {
	Store    registry.Store
	Selector Selector // nil means no interactive selection
	VenvsDir string   // default location of created environments
	Logger   *zap.Logger

	// VerifyScripts rejects registered environments whose activation
	// script no longer exists.
	VerifyScripts bool
}

// New returns a Resolver. selector may be nil.
func New(store registry.Store, selector Selector, venvsDir string, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{Store: store, Selector: selector, VenvsDir: venvsDir, Logger: logger}
}

// Resolve finds the environment to activate and records dir as its
// directory. An empty name asks the selector.
func (r *Resolver) Resolve(ctx context.Context, name, dir string) (model.Environment, error) {
	if name == "" {
		selected, err := r.Pick(ctx, "Select environment: ")
		if err != nil {
			return model.Environment{}, err
		}
		name = selected
	}

	env, register, err := r.find(name)
	if err != nil {
		return model.Environment{}, err
	}

	if register {
		if err := r.Store.Register(env.Name, env.ActivateScript); err != nil {
			return model.Environment{}, err
		}
		r.Logger.Debug("adopted environment", zap.String("name", env.Name), zap.String("script", env.ActivateScript))
	}
	if err := r.Store.RecordDirectoryMapping(dir, env.Name); err != nil {
		return model.Environment{}, err
	}
	if err := r.Store.SetLastActivated(env.Name); err != nil {
		return model.Environment{}, err
	}
	r.Logger.Debug("resolved environment", zap.String("name", env.Name), zap.String("dir", dir))
	return env, nil
}

// Pick asks the selector for one registered name. Without a usable
// selector it fails with ErrNameRequired.
func (r *Resolver) Pick(ctx context.Context, prompt string) (string, error) {
	if r.Selector == nil || !r.Selector.Available() {
		return "", model.ErrNameRequired
	}
	envs, err := r.Store.List()
	if err != nil {
		return "", err
	}
	if len(envs) == 0 {
		return "", model.ErrNoEnvironments
	}
	names := make([]string, len(envs))
	for i, e := range envs {
		names[i] = e.Name
	}
	sort.Strings(names)
	return r.Selector.Select(ctx, prompt, names)
}

// find looks name up in the registry, then treats it as a path to an
// environment or activation script, then as a directory under VenvsDir.
// register reports that the environment is not yet in the registry.
func (r *Resolver) find(name string) (env model.Environment, register bool, err error) {
	rec, found, err := r.Store.Lookup(name)
	if err != nil {
		return model.Environment{}, false, err
	}
	if found {
		if r.VerifyScripts && !model.FileExists(rec.ActivateScript) {
			return model.Environment{}, false, fmt.Errorf("%w: %s (activation script %s is missing)",
				model.ErrEnvironmentNotFound, name, rec.ActivateScript)
		}
		return rec, false, nil
	}

	if direct, ok := fromPath(name); ok {
		existing, taken, err := r.Store.Lookup(direct.Name)
		if err != nil {
			return model.Environment{}, false, err
		}
		if taken && existing.ActivateScript != direct.ActivateScript {
			return model.Environment{}, false, fmt.Errorf("%w: %s is already registered at %s",
				model.ErrEnvironmentExists, direct.Name, existing.Dir())
		}
		return direct, !taken, nil
	}

	if r.VenvsDir != "" && model.IsValidName(name) {
		script := model.ActivateScriptFor(filepath.Join(r.VenvsDir, name))
		if model.FileExists(script) {
			return model.Environment{Name: name, ActivateScript: script}, true, nil
		}
	}

	return model.Environment{}, false, fmt.Errorf("%w: %s", model.ErrEnvironmentNotFound, name)
}

// fromPath accepts an environment directory or its activation script.
func fromPath(p string) (model.Environment, bool) {
	abs, err := filepath.Abs(model.ExpandTilde(p))
	if err != nil {
		return model.Environment{}, false
	}
	var script string
	switch {
	case model.IsDir(abs) && model.FileExists(model.ActivateScriptFor(abs)):
		script = model.ActivateScriptFor(abs)
	case isActivateScript(abs):
		script = abs
	default:
		return model.Environment{}, false
	}
	env := model.Environment{ActivateScript: script}
	env.Name = nameFor(env.Dir())
	return env, true
}

// isActivateScript matches <env>/bin/activate and its per-shell variants
// (activate.fish, activate.csh).
func isActivateScript(p string) bool {
	if filepath.Base(filepath.Dir(p)) != "bin" || !model.FileExists(p) {
		return false
	}
	base := filepath.Base(p)
	return base == "activate" || strings.HasPrefix(base, "activate.")
}

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// nameFor derives a registry name for an environment directory. Hidden
// directories such as .venv are named after the project holding them.
func nameFor(dir string) string {
	base := filepath.Base(dir)
	if strings.HasPrefix(base, ".") {
		if parent := filepath.Base(filepath.Dir(dir)); parent != string(filepath.Separator) && parent != "." {
			base = parent
		}
	}
	name := strings.Trim(unsafeNameChars.ReplaceAllString(base, "-"), "-")
	if name == "" {
		return "venv"
	}
	return name
}

// Suggestion is what the directory-change hook offers.
type Suggestion struct {
	Env model.Environment
	Dir string
}

// Suggest reports the environment mapped to dir unless it is already
// active or no longer usable. It only reads.
func (r *Resolver) Suggest(dir, active string) (Suggestion, bool, error) {
	name, found, err := r.Store.LookupDirectoryMapping(dir)
	if err != nil || !found {
		return Suggestion{}, false, err
	}
	if name == active {
		return Suggestion{}, false, nil
	}
	env, ok, err := r.Store.Lookup(name)
	if err != nil || !ok {
		return Suggestion{}, false, err
	}
	if !model.FileExists(env.ActivateScript) {
		return Suggestion{}, false, nil
	}
	return Suggestion{Env: env, Dir: dir}, true, nil
}

// ActiveName names the environment VIRTUAL_ENV points at: the registered
// name whose directory matches, else the directory's base name.
func ActiveName(store registry.Store, virtualEnv string) string {
	if virtualEnv == "" {
		return ""
	}
	virtualEnv = filepath.Clean(virtualEnv)
	if envs, err := store.List(); err == nil {
		for _, e := range envs {
			if filepath.Clean(e.Dir()) == virtualEnv {
				return e.Name
			}
		}
	}
	return filepath.Base(virtualEnv)
}
