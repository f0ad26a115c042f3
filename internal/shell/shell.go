// Package shell installs the `ve` wrapper function into the user's shell.
// The wrapper is what actually sources activation scripts: vex itself only
// prints the path.
package shell

import (
	"embed"
	"fmt"
	"path/filepath"
	"strings"
)

//go:embed scripts
var scripts embed.FS

// Shell defines the per-shell details of the integration.
type Shell interface {
	Name() string
	// RCFile is the startup file the integration is sourced from.
	RCFile(home string) string
	// ScriptName is the file name the wrapper is installed under.
	ScriptName() string
}

// ZshShell implements Shell for Zsh.
type ZshShell struct{}

func (s *ZshShell) Name() string { return "zsh" }

func (s *ZshShell) RCFile(home string) string {
	return filepath.Join(home, ".zshrc")
}

func (s *ZshShell) ScriptName() string { return "vex.zsh" }

// BashShell implements Shell for Bash.
type BashShell struct{}

func (s *BashShell) Name() string { return "bash" }

func (s *BashShell) RCFile(home string) string {
	return filepath.Join(home, ".bashrc")
}

func (s *BashShell) ScriptName() string { return "vex.bash" }

// FishShell implements Shell for fish.
type FishShell struct{}

func (s *FishShell) Name() string { return "fish" }

func (s *FishShell) RCFile(home string) string {
	return filepath.Join(home, ".config", "fish", "config.fish")
}

func (s *FishShell) ScriptName() string { return "vex.fish" }

// Script returns the embedded wrapper for sh.
func Script(sh Shell) ([]byte, error) {
	return scripts.ReadFile("scripts/" + sh.ScriptName())
}

// DetectShell identifies the user's shell from the environment, falling
// back to bash.
func DetectShell(getenv func(string) string) Shell {
	if getenv("FISH_VERSION") != "" {
		return &FishShell{}
	}
	shellPath := getenv("SHELL")
	switch {
	case strings.Contains(shellPath, "fish"):
		return &FishShell{}
	case strings.Contains(shellPath, "zsh"):
		return &ZshShell{}
	default:
		return &BashShell{}
	}
}

// ByName returns the Shell called name.
func ByName(name string) (Shell, error) {
	switch name {
	case "zsh":
		return &ZshShell{}, nil
	case "bash":
		return &BashShell{}, nil
	case "fish":
		return &FishShell{}, nil
	}
	return nil, fmt.Errorf("unsupported shell %q (want zsh, bash or fish)", name)
}
