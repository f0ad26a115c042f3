package venv

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"
	"go.uber.org/zap"
)

// VSCodeSettingsFile is the workspace settings path below a project.
const VSCodeSettingsFile = ".vscode/settings.json"

// UpdateVSCodeSettings points the project's VS Code workspace at python
// and stops the Python extension from activating environments itself.
// Existing settings may contain comments and trailing commas; unreadable
// settings are replaced. It returns the file written.
func (m *Manager) UpdateVSCodeSettings(projectDir, python string) (string, error) {
	path := filepath.Join(projectDir, filepath.FromSlash(VSCodeSettingsFile))

	settings := map[string]any{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if len(bytes.TrimSpace(data)) > 0 {
			if err := json.Unmarshal(jsonc.ToJSON(data), &settings); err != nil {
				m.Logger.Warn("could not parse existing settings, rewriting", zap.String("file", path), zap.Error(err))
				settings = map[string]any{}
			}
		}
	case !os.IsNotExist(err):
		return "", fmt.Errorf("reading %s: %w", path, err)
	}

	settings["python.defaultInterpreterPath"] = python
	settings["python.terminal.activateEnvironment"] = false
	settings["python.terminal.activateEnvInCurrentTerminal"] = false

	out, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, append(out, '\n'), 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}
