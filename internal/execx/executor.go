// Package execx runs the external tools vex delegates to (uv, python,
// pip, fzf). Everything that shells out goes through Runner so tests can
// substitute a fake.
package execx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Command describes one external invocation.
type Command struct {
	Name   string
	Args   []string
	Dir    string
	Env    []string // Extra KEY=VALUE entries appended to the inherited environment
	Stdin  io.Reader
	Stdout io.Writer // nil captures into Result.Stdout
	Stderr io.Writer // nil captures into Result.Stderr
}

// String renders the command line for logs.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result holds captured output and the exit status.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner locates and runs executables.
type Runner interface {
	LookPath(name string) (string, error)
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExitError is returned by Run when the process ran but exited non-zero.
type ExitError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Command, e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + lastLine(s)
	}
	return msg
}

// OSRunner is the Runner backed by os/exec.
type OSRunner struct{}

// LookPath wraps exec.LookPath.
func (OSRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Run starts the command and waits for it. A non-zero exit yields an
// *ExitError alongside the populated Result.
func (OSRunner) Run(ctx context.Context, c Command) (Result, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = MergeEnv(os.Environ(), c.Env)
	}
	cmd.Stdin = c.Stdin

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	if c.Stdout != nil {
		cmd.Stdout = c.Stdout
	}
	cmd.Stderr = &stderr
	if c.Stderr != nil {
		cmd.Stderr = io.MultiWriter(c.Stderr, &stderr)
	}

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, &ExitError{Command: c.String(), ExitCode: res.ExitCode, Stderr: res.Stderr}
	}
	if err != nil {
		res.ExitCode = -1
		return res, err
	}
	return res, nil
}

// MergeEnv overrides entries of base with extra, keyed by variable name.
func MergeEnv(base, extra []string) []string {
	keys := make(map[string]bool, len(extra))
	for _, e := range extra {
		if k, _, ok := strings.Cut(e, "="); ok {
			keys[k] = true
		}
	}
	var env []string
	for _, e := range base {
		k, _, _ := strings.Cut(e, "=")
		if keys[k] {
			continue
		}
		env = append(env, e)
	}
	return append(env, extra...)
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
