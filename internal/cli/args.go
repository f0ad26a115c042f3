package cli

import (
	"fmt"
	"strings"

	"vex/internal/model"
	"vex/internal/venv"
)

// pythonSpec recognises the conda-style interpreter argument
// (python=3.11 or python==3.11).
func pythonSpec(arg string) (string, bool) {
	v, ok := strings.CutPrefix(arg, "python=")
	if !ok {
		return "", false
	}
	return strings.TrimPrefix(v, "="), true
}

// parseCreateArgs merges the flag values of create with its positional
// arguments. Both syntaxes end up here:
//
//	create myenv --python=3.12 requests
//	env create -n myenv python=3.12 requests
//
// The name comes from -n when given, else from the first positional. A
// --python flag wins over a python= argument.
func parseCreateArgs(name, python string, args []string) (venv.CreateOptions, error) {
	rest := args
	if name == "" && len(rest) > 0 {
		if _, isPython := pythonSpec(rest[0]); !isPython {
			name, rest = rest[0], rest[1:]
		}
	}
	if name == "" {
		return venv.CreateOptions{}, model.ErrNameRequired
	}

	opts := venv.CreateOptions{Name: name, Python: python}
	for _, arg := range rest {
		if v, ok := pythonSpec(arg); ok {
			if v == "" {
				return venv.CreateOptions{}, fmt.Errorf("empty python version in %q", arg)
			}
			if opts.Python == "" {
				opts.Python = v
			}
			continue
		}
		opts.Packages = append(opts.Packages, arg)
	}
	return opts, nil
}

// oneName returns the single optional positional argument of a command.
func oneName(flagName string, args []string) (string, error) {
	switch {
	case flagName != "" && len(args) > 0:
		return "", fmt.Errorf("unexpected argument %q (name already given with -n)", args[0])
	case flagName != "":
		return flagName, nil
	case len(args) > 1:
		return "", fmt.Errorf("expected one environment name, got %d", len(args))
	case len(args) == 1:
		return args[0], nil
	}
	return "", nil
}
