package execx

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
)

// FakeRunner is a scriptable Runner for tests. Paths maps executable names
// to the path LookPath reports; names absent from Paths are not found.
// Handler decides the outcome of each Run; a nil Handler succeeds.
type FakeRunner struct {
	Paths   map[string]string
	Handler func(cmd Command) (Result, error)

	mu    sync.Mutex
	Calls []Command
}

// LookPath reports the configured path or exec.ErrNotFound.
func (f *FakeRunner) LookPath(name string) (string, error) {
	if p, ok := f.Paths[name]; ok {
		return p, nil
	}
	return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
}

// Run records the call and delegates to Handler.
func (f *FakeRunner) Run(_ context.Context, cmd Command) (Result, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, cmd)
	f.mu.Unlock()

	if f.Handler == nil {
		return Result{}, nil
	}
	res, err := f.Handler(cmd)
	if err == nil && res.ExitCode != 0 {
		err = &ExitError{Command: cmd.String(), ExitCode: res.ExitCode, Stderr: res.Stderr}
	}
	if cmd.Stdout != nil && res.Stdout != "" {
		fmt.Fprint(cmd.Stdout, res.Stdout)
	}
	return res, err
}

// CommandLines returns every recorded call rendered with Command.String.
func (f *FakeRunner) CommandLines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	lines := make([]string, len(f.Calls))
	for i, c := range f.Calls {
		lines[i] = c.String()
	}
	return lines
}
