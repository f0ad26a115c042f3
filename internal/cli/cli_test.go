package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vex/internal/config"
	"vex/internal/execx"
	"vex/internal/model"
	"vex/internal/registry"
)

type harness struct {
	app    *App
	cfg    *config.Config
	runner *execx.FakeRunner
	env    map[string]string
	cwd    string
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	root := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Root = filepath.Join(root, "state")
	cfg.VenvsDir = filepath.Join(cfg.Root, "venvs")
	cfg.Selector = config.SelectorNone
	cfg.PruneMissing = false

	h := &harness{
		cfg:    cfg,
		runner: &execx.FakeRunner{Paths: map[string]string{}},
		env:    map[string]string{"HOME": filepath.Join(root, "home"), "SHELL": "/bin/zsh"},
		cwd:    filepath.Join(root, "project"),
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
	}
	require.NoError(t, os.MkdirAll(h.env["HOME"], 0755))
	h.app = &App{
		Stdin:  strings.NewReader(""),
		Stdout: h.stdout,
		Stderr: h.stderr,
		Getenv: func(k string) string { return h.env[k] },
		Getwd:  func() (string, error) { return h.cwd, nil },
		Runner: h.runner,
		Config: cfg,
		Logger: zap.NewNop(),
	}
	return h
}

func (h *harness) run(args ...string) error {
	h.stdout.Reset()
	h.stderr.Reset()
	return h.app.Execute(args)
}

func (h *harness) store() *registry.FileStore {
	return registry.NewFileStore(h.cfg.Root)
}

// addEnv lays out a venv under VenvsDir and registers it.
func (h *harness) addEnv(t *testing.T, name string) model.Environment {
	t.Helper()
	dir := filepath.Join(h.cfg.VenvsDir, name)
	makeVenv(t, dir)
	env := model.Environment{Name: name, ActivateScript: model.ActivateScriptFor(dir)}
	require.NoError(t, h.store().Register(env.Name, env.ActivateScript))
	return env
}

func makeVenv(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "bin"), 0755))
	for _, name := range []string{"bin/activate", "bin/pip", "bin/python", "pyvenv.cfg"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("#\n"), 0755))
	}
}

func exitCode(err error) int {
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return -1
}

type stubSelector struct {
	choice string
	items  []string
}

func (s *stubSelector) Available() bool { return true }

func (s *stubSelector) Select(_ context.Context, _ string, items []string) (string, error) {
	s.items = items
	return s.choice, nil
}

func TestActivate_PrintsSourceLineAndRemembersDirectory(t *testing.T) {
	h := newHarness(t)
	env := h.addEnv(t, "web")

	require.NoError(t, h.run("activate", "web"))
	assert.Equal(t, "source "+env.ActivateScript+"\n", h.stdout.String())

	name, ok, err := h.store().LookupDirectoryMapping(h.cwd)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "web", name)

	last, err := h.store().LastActivated()
	require.NoError(t, err)
	assert.Equal(t, "web", last)
}

func TestActivate_Selector(t *testing.T) {
	h := newHarness(t)
	h.addEnv(t, "b")
	env := h.addEnv(t, "a")
	sel := &stubSelector{choice: "a"}
	h.app.Selector = sel

	require.NoError(t, h.run("activate"))
	assert.Equal(t, []string{"a", "b"}, sel.items)
	assert.Equal(t, "source "+env.ActivateScript+"\n", h.stdout.String())
}

func TestActivate_NoSelectorNeedsName(t *testing.T) {
	h := newHarness(t)
	h.addEnv(t, "a")

	err := h.run("activate")
	assert.Equal(t, 1, exitCode(err))
	assert.Empty(t, h.stdout.String())
	assert.Contains(t, h.stderr.String(), model.ErrNameRequired.Error())
	assert.Contains(t, h.stderr.String(), "fzf")
}

func TestActivate_Unknown(t *testing.T) {
	h := newHarness(t)

	err := h.run("activate", "nope")
	assert.Equal(t, 1, exitCode(err))
	assert.Empty(t, h.stdout.String())
	assert.Contains(t, h.stderr.String(), "vex list")
}

func TestActivate_VSCode(t *testing.T) {
	h := newHarness(t)
	env := h.addEnv(t, "web")
	require.NoError(t, os.MkdirAll(h.cwd, 0755))

	require.NoError(t, h.run("activate", "web", "--vscode"))
	data, err := os.ReadFile(filepath.Join(h.cwd, ".vscode", "settings.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), env.Python())
}

func TestActivate_Auto(t *testing.T) {
	h := newHarness(t)
	env := h.addEnv(t, "web")
	rc := filepath.Join(h.env["HOME"], ".zshrc")
	require.NoError(t, os.WriteFile(rc, []byte("export A=1\n"), 0644))

	require.NoError(t, h.run("activate", "--auto", "web"))
	data, err := os.ReadFile(rc)
	require.NoError(t, err)
	assert.Contains(t, string(data), "source "+env.ActivateScript)
}

func TestCreate(t *testing.T) {
	h := newHarness(t)
	h.runner.Paths["uv"] = "uv"
	h.runner.Handler = func(cmd execx.Command) (execx.Result, error) {
		if len(cmd.Args) > 0 && cmd.Args[0] == "venv" {
			makeVenv(t, cmd.Args[len(cmd.Args)-1])
		}
		return execx.Result{}, nil
	}

	require.NoError(t, h.run("env", "create", "-n", "data", "python=3.11", "numpy=1.26"))
	dir := filepath.Join(h.cfg.VenvsDir, "data")
	want := []string{
		"uv venv --python 3.11 " + dir,
		filepath.Join(dir, "bin", "pip") + " install numpy==1.26",
	}
	assert.Empty(t, cmp.Diff(want, h.runner.CommandLines()))
	assert.Contains(t, h.stderr.String(), "ve activate data")

	_, ok, err := h.store().Lookup("data")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCreate_NoName(t *testing.T) {
	h := newHarness(t)
	err := h.run("create")
	assert.Equal(t, 1, exitCode(err))
	assert.Contains(t, h.stderr.String(), model.ErrNameRequired.Error())
}

func TestRemove(t *testing.T) {
	h := newHarness(t)
	env := h.addEnv(t, "old")

	require.NoError(t, h.run("remove", "-y", "old"))
	assert.NoDirExists(t, env.Dir())
	_, ok, err := h.store().Lookup("old")
	require.NoError(t, err)
	assert.False(t, ok)

	err = h.run("rm", "-y", "old")
	assert.Equal(t, 1, exitCode(err))
	assert.Contains(t, h.stderr.String(), model.ErrEnvironmentNotFound.Error())
}

func TestRemove_Cancelled(t *testing.T) {
	h := newHarness(t)
	env := h.addEnv(t, "old")
	h.app.Stdin = strings.NewReader("n\n")

	err := h.run("env", "remove", "-n", "old")
	assert.Equal(t, 1, exitCode(err))
	assert.DirExists(t, env.Dir())
	assert.Contains(t, h.stderr.String(), "Cancelled")
}

func TestRemoveAllExcept(t *testing.T) {
	h := newHarness(t)
	for _, n := range []string{"base", "work-a", "tmp"} {
		h.addEnv(t, n)
	}
	h.app.Stdin = strings.NewReader("y\n")

	require.NoError(t, h.run("remove-all-except", "--keep", "base", "--keep", "work-*"))
	envs, err := h.store().List()
	require.NoError(t, err)
	var got []string
	for _, e := range envs {
		got = append(got, e.Name)
	}
	assert.ElementsMatch(t, []string{"base", "work-a"}, got)
}

func TestList(t *testing.T) {
	h := newHarness(t)
	h.addEnv(t, "alpha")
	beta := h.addEnv(t, "beta")
	h.env["VIRTUAL_ENV"] = beta.Dir()

	require.NoError(t, h.run("list"))
	out := h.stdout.String()
	assert.Contains(t, out, "alpha")
	assert.Contains(t, out, beta.Dir())
	assert.Less(t, strings.Index(out, "alpha"), strings.Index(out, "beta"))
}

func TestList_Empty(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("list"))
	assert.Empty(t, h.stdout.String())
	assert.Contains(t, h.stderr.String(), "No environments")
}

func TestEnvList(t *testing.T) {
	h := newHarness(t)
	a := h.addEnv(t, "a")
	b := h.addEnv(t, "b")
	h.env["VIRTUAL_ENV"] = b.Dir()

	require.NoError(t, h.run("env", "list"))
	lines := strings.Split(strings.TrimRight(h.stdout.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "# vex environments:", lines[0])
	assert.Equal(t, []string{"a", a.Dir()}, strings.Fields(lines[2]))
	assert.Equal(t, []string{"b", "*", b.Dir()}, strings.Fields(lines[3]))
}

func TestWhich(t *testing.T) {
	h := newHarness(t)
	env := h.addEnv(t, "a")

	require.NoError(t, h.run("which", "a"))
	assert.Equal(t, env.Dir()+"\n", h.stdout.String())
}

func TestSuggest(t *testing.T) {
	h := newHarness(t)
	env := h.addEnv(t, "web")
	require.NoError(t, h.store().RecordDirectoryMapping(h.cwd, "web"))

	require.NoError(t, h.run("suggest"))
	assert.Equal(t, model.IconHint+" ve activate web\n", h.stdout.String())

	// Nothing to say once it is active.
	h.env["VIRTUAL_ENV"] = env.Dir()
	require.NoError(t, h.run("suggest"))
	assert.Empty(t, h.stdout.String())

	require.NoError(t, h.run("suggest", "--dir", "/elsewhere"))
	assert.Empty(t, h.stdout.String())
}

func TestSuggest_IgnoresCorruptState(t *testing.T) {
	h := newHarness(t)
	// A directory where the history file should be makes reads fail.
	require.NoError(t, os.MkdirAll(filepath.Join(h.cfg.Root, registry.HistoryFile), 0755))

	assert.NoError(t, h.run("suggest"))
	assert.Empty(t, h.stdout.String())
}

func TestHistory(t *testing.T) {
	h := newHarness(t)
	h.addEnv(t, "a")
	require.NoError(t, h.store().RecordDirectoryMapping(h.cwd, "a"))
	require.NoError(t, h.store().RecordDirectoryMapping("/other", "a"))

	require.NoError(t, h.run("history"))
	assert.Contains(t, h.stdout.String(), fmt.Sprintf("%s %s %s a", model.IconCurrent, h.cwd, model.IconArrow))

	require.NoError(t, h.run("clear-history"))
	mappings, err := h.store().DirectoryMappings()
	require.NoError(t, err)
	assert.Empty(t, mappings)
}

func TestPackages_NeedActiveEnvironment(t *testing.T) {
	h := newHarness(t)
	err := h.run("install", "requests")
	assert.Equal(t, 1, exitCode(err))
	assert.Contains(t, h.stderr.String(), model.ErrNoActiveEnvironment.Error())
}

func TestInstall_ShellIntegration(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run("install", "--shell", "bash"))
	data, err := os.ReadFile(filepath.Join(h.env["HOME"], ".bashrc"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "vex.bash")

	require.NoError(t, h.run("clean-shell", "--shell", "bash"))
	data, err = os.ReadFile(filepath.Join(h.env["HOME"], ".bashrc"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "vex.bash")
}

func TestRun_PropagatesExitCode(t *testing.T) {
	h := newHarness(t)
	env := h.addEnv(t, "a")
	h.env["VIRTUAL_ENV"] = env.Dir()
	h.runner.Handler = func(cmd execx.Command) (execx.Result, error) {
		return execx.Result{ExitCode: 3}, nil
	}

	err := h.run("run", "python", "-c", "raise SystemExit(3)")
	assert.Equal(t, 3, exitCode(err))
}

func TestSearch_NoBrowser(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("search", "http client"))
	assert.Equal(t, "https://pypi.org/search/?q=http+client\n", h.stdout.String())
}

func TestVersion(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("--version"))
	assert.Equal(t, "vex version "+model.Version+"\n", h.stdout.String())
}

func TestUnknownCommand(t *testing.T) {
	h := newHarness(t)
	err := h.run("activte")
	assert.Equal(t, 1, exitCode(err))
	assert.Contains(t, h.stderr.String(), `did you mean "activate"`)
}

func TestUnknownFlag(t *testing.T) {
	h := newHarness(t)
	err := h.run("create", "x", "--pyton=3.11")
	assert.Equal(t, 1, exitCode(err))
	assert.Contains(t, h.stderr.String(), "--python")
}

func TestHelp(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("--help"))
	help := h.stderr.String()
	assert.Contains(t, help, "remove-all-except")
	assert.NotContains(t, help, "suggest")
}

func TestParseCreateArgs(t *testing.T) {
	tests := []struct {
		name    string
		flag    string
		python  string
		args    []string
		want    []string // name, python, packages...
		wantErr error
	}{
		{name: "positional", args: []string{"x", "requests"}, want: []string{"x", "", "requests"}},
		{name: "conda", flag: "x", args: []string{"python=3.11", "numpy"}, want: []string{"x", "3.11", "numpy"}},
		{name: "double equals", args: []string{"x", "python==3.12"}, want: []string{"x", "3.12"}},
		{name: "flag wins", python: "3.12", args: []string{"x", "python=3.10"}, want: []string{"x", "3.12"}},
		{name: "python first", args: []string{"python=3.11"}, wantErr: model.ErrNameRequired},
		{name: "missing", wantErr: model.ErrNameRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := parseCreateArgs(tt.flag, tt.python, tt.args)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			got := append([]string{opts.Name, opts.Python}, opts.Packages...)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := parseCreateArgs("x", "", []string{"python="})
	assert.Error(t, err)
}

func TestTakeVerbose(t *testing.T) {
	args, verbose := takeVerbose([]string{"--verbose", "run", "--", "x", "--verbose"})
	assert.True(t, verbose)
	assert.Equal(t, []string{"run", "--", "x", "--verbose"}, args)

	args, verbose = takeVerbose([]string{"list"})
	assert.False(t, verbose)
	assert.Equal(t, []string{"list"}, args)
}

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 0, levenshtein("list", "list"))
	assert.Equal(t, 1, levenshtein("lst", "list"))
	assert.Equal(t, 3, levenshtein("", "abc"))
	assert.Equal(t, 3, levenshtein("kitten", "sitting"))
}

func TestSuggestCommand(t *testing.T) {
	cmds := []*Command{
		{Name: "remove", Aliases: []string{"rm"}},
		{Name: "suggest", Hidden: true},
	}
	assert.Equal(t, "remove", suggestCommand("remve", cmds))
	assert.Equal(t, "rm", suggestCommand("rn", cmds))
	assert.Equal(t, "", suggestCommand("sugest", cmds))
	assert.Equal(t, "", suggestCommand("completely-different", cmds))
}

func TestHintFor(t *testing.T) {
	wrapped := fmt.Errorf("activating: %w", model.ErrEnvironmentActive)
	assert.Contains(t, hintFor(wrapped), "deactivate")
	assert.Empty(t, hintFor(errors.New("plain")))
}

func TestActivate_ProjectDotVenv(t *testing.T) {
	h := newHarness(t)
	dir := filepath.Join(h.cwd, ".venv")
	makeVenv(t, dir)

	require.NoError(t, h.run("activate", dir))
	assert.Equal(t, "source "+model.ActivateScriptFor(dir)+"\n", h.stdout.String())

	env, ok, err := h.store().Lookup(filepath.Base(h.cwd))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, model.ActivateScriptFor(dir), env.ActivateScript)
}

func TestInstall_PassesPipOptions(t *testing.T) {
	h := newHarness(t)
	env := h.addEnv(t, "a")
	h.env["VIRTUAL_ENV"] = env.Dir()
	pip := filepath.Join(env.Dir(), "bin", "pip")

	require.NoError(t, h.run("install", "-r", "req.txt"))
	require.NoError(t, h.run("install", "-e", ".", "numpy=1.26"))

	want := []string{
		pip + " install -r req.txt",
		pip + " install -e . numpy==1.26",
	}
	assert.Empty(t, cmp.Diff(want, h.runner.CommandLines()))
}

func TestTakeShellFlag(t *testing.T) {
	name, rest, err := takeShellFlag([]string{"--shell", "fish"})
	require.NoError(t, err)
	assert.Equal(t, "fish", name)
	assert.Empty(t, rest)

	name, rest, err = takeShellFlag([]string{"-r", "req.txt", "--shell=zsh", "--", "--shell"})
	require.NoError(t, err)
	assert.Equal(t, "zsh", name)
	assert.Equal(t, []string{"-r", "req.txt", "--shell"}, rest)

	_, _, err = takeShellFlag([]string{"--shell"})
	assert.Error(t, err)
}

func TestInstall_ShellWithPackagesRejected(t *testing.T) {
	h := newHarness(t)
	err := h.run("install", "--shell", "zsh", "requests")
	assert.Equal(t, 1, exitCode(err))
	assert.Empty(t, h.runner.Calls)
}

func TestRemove_PicksInteractively(t *testing.T) {
	h := newHarness(t)
	keep := h.addEnv(t, "keep")
	old := h.addEnv(t, "old")
	sel := &stubSelector{choice: "old"}
	h.app.Selector = sel
	h.app.Stdin = strings.NewReader("y\n")

	require.NoError(t, h.run("remove"))
	assert.Equal(t, []string{"keep", "old"}, sel.items)
	assert.Contains(t, h.stderr.String(), "Delete old at "+old.Dir()+"?")
	assert.NoDirExists(t, old.Dir())
	assert.DirExists(t, keep.Dir())
}

func TestRemove_NoSelector(t *testing.T) {
	h := newHarness(t)
	h.addEnv(t, "a")

	err := h.run("remove")
	assert.Equal(t, 1, exitCode(err))
	assert.Contains(t, h.stderr.String(), model.ErrNameRequired.Error())
}

func TestHistoryForget(t *testing.T) {
	h := newHarness(t)
	h.addEnv(t, "a")
	require.NoError(t, h.store().RecordDirectoryMapping(h.cwd, "a"))
	require.NoError(t, h.store().RecordDirectoryMapping("/other", "a"))

	require.NoError(t, h.run("history", "--forget"))
	require.NoError(t, h.run("history", "--forget", "/other"))

	mappings, err := h.store().DirectoryMappings()
	require.NoError(t, err)
	assert.Empty(t, mappings)
}

func TestConfigCommand(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run("config"))
	assert.Contains(t, h.stdout.String(), "selector: none")

	require.NoError(t, h.run("config", "--init"))
	loaded, err := config.Load(h.cfg.Path())
	require.NoError(t, err)
	assert.Equal(t, config.SelectorNone, loaded.Selector)

	require.NoError(t, h.run("config", "--init"))
	assert.Contains(t, h.stderr.String(), "already exists")
}

func TestSuggest_CreatesNoState(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run("suggest"))
	assert.NoDirExists(t, h.cfg.Root)
	assert.NoDirExists(t, h.cfg.VenvsDir)
}
