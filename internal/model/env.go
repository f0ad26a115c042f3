package model

import (
	"path/filepath"
	"regexp"
)

// Environment is one entry of the global registry.
type Environment struct {
	Name           string // Unique key (e.g., myproject)
	ActivateScript string // Absolute path to <env>/bin/activate
}

// Dir returns the environment directory the activation script lives in.
func (e Environment) Dir() string {
	return filepath.Dir(filepath.Dir(e.ActivateScript))
}

// Python returns the interpreter path inside the environment.
func (e Environment) Python() string {
	return filepath.Join(e.Dir(), "bin", "python")
}

// DirMapping associates a working directory with the environment last
// activated from it.
type DirMapping struct {
	Dir string // Absolute directory path
	Env string // Environment name
}

// EnvStatus is an Environment annotated for display.
type EnvStatus struct {
	Environment
	Active  bool // VIRTUAL_ENV points at this environment
	Missing bool // Activation script no longer exists
}

// ActivateScriptFor returns the conventional activation script location of
// an environment directory.
func ActivateScriptFor(envDir string) string {
	return filepath.Join(envDir, "bin", "activate")
}

var validName = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// IsValidName reports whether name can be used as an environment name.
func IsValidName(name string) bool {
	return validName.MatchString(name)
}
