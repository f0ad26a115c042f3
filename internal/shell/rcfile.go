package shell

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"vex/internal/model"
)

// Marker precedes the integration block in rc files.
const Marker = "# Virtual Environment Manager (ve) Integration"

const autoComment = "# Auto-activate virtual environment:"

// InstallResult tells the caller what Install did.
type InstallResult int

const (
	Installed        InstallResult = iota
	AlreadyInstalled               // Marker or source line already present
	ForeignFunction                // Someone else's ve() is defined; left alone
)

var (
	// A ve function defined in sh or fish syntax.
	veFunc = regexp.MustCompile(`^\s*(function\s+ve\b|ve\s*\(\s*\))`)

	// Lines SetAutoActivation owns.
	autoLine = regexp.MustCompile(`^(ve activate \S+|source .*/bin/activate(\.fish)?)$`)
)

// Integration edits one shell's startup file.
type Integration struct {
	Shell     Shell
	Home      string
	ConfigDir string // Where the wrapper script is written (~/.config/vex)
	Logger    *zap.Logger
}

// NewIntegration returns an Integration for sh rooted at home.
func NewIntegration(sh Shell, home string, logger *zap.Logger) *Integration {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Integration{
		Shell:     sh,
		Home:      home,
		ConfigDir: filepath.Join(home, ".config", "vex"),
		Logger:    logger,
	}
}

// RCFile is the startup file being edited.
func (in *Integration) RCFile() string {
	return in.Shell.RCFile(in.Home)
}

// ScriptPath is where the wrapper script is installed.
func (in *Integration) ScriptPath() string {
	return filepath.Join(in.ConfigDir, in.Shell.ScriptName())
}

func (in *Integration) sourceLine() string {
	return "source " + in.ScriptPath()
}

// Install writes the wrapper script and sources it from the rc file. The
// script itself is refreshed on every call so upgrades reach existing
// installs.
func (in *Integration) Install() (InstallResult, error) {
	body, err := Script(in.Shell)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(in.ConfigDir, 0755); err != nil {
		return 0, err
	}
	if err := os.WriteFile(in.ScriptPath(), body, 0644); err != nil {
		return 0, fmt.Errorf("writing %s: %w", in.ScriptPath(), err)
	}

	rc := in.RCFile()
	content, err := readRC(rc)
	if err != nil {
		return 0, err
	}
	if strings.Contains(content, Marker) || strings.Contains(content, in.sourceLine()) {
		in.Logger.Debug("integration already present", zap.String("rc", rc))
		return AlreadyInstalled, nil
	}
	for _, line := range strings.Split(content, "\n") {
		if veFunc.MatchString(line) {
			in.Logger.Warn("foreign ve function found, not installing", zap.String("rc", rc), zap.String("line", line))
			return ForeignFunction, nil
		}
	}

	var b strings.Builder
	if trimmed := strings.TrimRight(content, "\n \t"); trimmed != "" {
		b.WriteString(trimmed)
		b.WriteString("\n\n")
	}
	b.WriteString(Marker + "\n" + in.sourceLine() + "\n")
	if err := writeRC(rc, b.String()); err != nil {
		return 0, err
	}
	in.Logger.Info("installed shell integration", zap.String("rc", rc), zap.String("script", in.ScriptPath()))
	return Installed, nil
}

// Clean removes the integration block and any inline ve function from
// the rc file. It returns the number of lines removed.
func (in *Integration) Clean() (int, error) {
	rc := in.RCFile()
	content, err := readRC(rc)
	if err != nil {
		return 0, err
	}
	if content == "" {
		return 0, nil
	}

	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	kept := stripIntegration(lines)
	removed := len(lines) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	if err := writeRC(rc, strings.Join(kept, "\n")+"\n"); err != nil {
		return 0, err
	}
	in.Logger.Info("removed shell integration", zap.String("rc", rc), zap.Int("lines", removed))
	return removed, nil
}

// stripIntegration drops the marker block (marker up to the next blank
// line) and ve function bodies. sh bodies end when braces balance; fish
// bodies end at a matching "end".
func stripIntegration(lines []string) []string {
	var out []string
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == Marker:
			for i+1 < len(lines) && strings.TrimSpace(lines[i+1]) != "" {
				i++
			}
		case veFunc.MatchString(line) && !strings.HasPrefix(trimmed, "#"):
			if strings.HasPrefix(trimmed, "function") && !strings.Contains(line, "{") && !strings.Contains(line, "()") {
				i = skipFishFunction(lines, i)
			} else {
				i = skipBraces(lines, i)
			}
		default:
			out = append(out, line)
		}
	}
	return collapseBlank(out)
}

func skipBraces(lines []string, i int) int {
	depth := strings.Count(lines[i], "{") - strings.Count(lines[i], "}")
	opened := strings.Contains(lines[i], "{")
	for depth > 0 || !opened {
		if i+1 >= len(lines) {
			return i
		}
		i++
		depth += strings.Count(lines[i], "{") - strings.Count(lines[i], "}")
		if strings.Contains(lines[i], "{") {
			opened = true
		}
	}
	return i
}

var blockStart = regexp.MustCompile(`^(function|if|for|while|switch|begin)\b`)

func skipFishFunction(lines []string, i int) int {
	depth := 1
	for depth > 0 && i+1 < len(lines) {
		i++
		t := strings.TrimSpace(lines[i])
		switch {
		case t == "end" || strings.HasPrefix(t, "end "):
			depth--
		case blockStart.MatchString(t):
			depth++
		}
	}
	return i
}

func collapseBlank(lines []string) []string {
	var out []string
	for _, l := range lines {
		if strings.TrimSpace(l) == "" && len(out) > 0 && strings.TrimSpace(out[len(out)-1]) == "" {
			continue
		}
		out = append(out, l)
	}
	for len(out) > 0 && strings.TrimSpace(out[len(out)-1]) == "" {
		out = out[:len(out)-1]
	}
	return out
}

// SetAutoActivation makes the rc file activate script on shell start,
// replacing any activation line written before. It returns the replaced
// lines.
func (in *Integration) SetAutoActivation(envName, script string) ([]string, error) {
	rc := in.RCFile()
	if _, err := os.Stat(rc); err != nil {
		return nil, fmt.Errorf("shell config file %s: %w", rc, err)
	}
	content, err := readRC(rc)
	if err != nil {
		return nil, err
	}

	var kept, replaced []string
	for _, line := range strings.Split(strings.TrimRight(content, "\n"), "\n") {
		t := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(t, autoComment):
		case autoLine.MatchString(t):
			replaced = append(replaced, t)
		default:
			kept = append(kept, line)
		}
	}
	kept = collapseBlank(kept)

	if _, ok := in.Shell.(*FishShell); ok && model.FileExists(script+".fish") {
		script += ".fish"
	}
	if len(kept) > 0 {
		kept = append(kept, "")
	}
	kept = append(kept, autoComment+" "+envName, "source "+script)
	if err := writeRC(rc, strings.Join(kept, "\n")+"\n"); err != nil {
		return nil, err
	}
	in.Logger.Info("set auto-activation", zap.String("rc", rc), zap.String("env", envName))
	return replaced, nil
}

func readRC(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

// writeRC replaces path keeping its permissions.
func writeRC(path, content string) error {
	mode := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
