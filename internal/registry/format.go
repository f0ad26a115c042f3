package registry

import (
	"strings"

	"vex/internal/model"
)

// Registry lines are "<name> <activate-path>"; the path may contain spaces.
func parseEnv(line string) (model.Environment, bool) {
	name, path, ok := strings.Cut(strings.TrimSpace(line), " ")
	if !ok || name == "" {
		return model.Environment{}, false
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return model.Environment{}, false
	}
	return model.Environment{Name: name, ActivateScript: path}, true
}

func formatEnv(env model.Environment) string {
	return env.Name + " " + env.ActivateScript
}

// Mapping lines are "<dir>:<name>". Names never contain ':' so the last
// colon is the separator even when the directory has one.
func parseMapping(line string) (model.DirMapping, bool) {
	i := strings.LastIndexByte(line, ':')
	if i <= 0 || i == len(line)-1 {
		return model.DirMapping{}, false
	}
	return model.DirMapping{Dir: line[:i], Env: line[i+1:]}, true
}

func formatMapping(m model.DirMapping) string {
	return m.Dir + ":" + m.Env
}

// filterEnv keeps registry lines whose name passes keep; malformed lines
// are dropped.
func filterEnv(lines []string, keep func(name string) bool) []string {
	var out []string
	for _, line := range lines {
		env, ok := parseEnv(line)
		if ok && keep(env.Name) {
			out = append(out, line)
		}
	}
	return out
}

func filterHistory(lines []string, keep func(dir string) bool) []string {
	var out []string
	for _, line := range lines {
		m, ok := parseMapping(line)
		if ok && keep(m.Dir) {
			out = append(out, line)
		}
	}
	return out
}
