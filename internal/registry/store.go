// Package registry persists the environment registry, the
// directory-to-environment mappings and the last-activated pointer as flat
// text files under the vex state root.
//
// Writers hold an exclusive lock on <root>/.lock for the whole
// read-modify-write and replace files by rename, so readers never observe
// a partial file and never need the lock. Concurrent sessions still race
// at the granularity of a whole operation: the last writer wins.
package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"vex/internal/model"
)

// File names inside the state root.
const (
	EnvFile     = "venv_all_env"
	HistoryFile = "atv_history"
	LastFile    = "last_venv"
	LockFile    = ".lock"
)

// Store is the registry contract used by the resolver and the environment
// operations.
type Store interface {
	Register(name, activateScript string) error
	Unregister(name string) error
	List() ([]model.Environment, error)
	Lookup(name string) (model.Environment, bool, error)

	// Prune drops every record for which keep returns false and reports
	// the dropped records.
	Prune(keep func(model.Environment) bool) ([]model.Environment, error)

	RecordDirectoryMapping(dir, name string) error
	LookupDirectoryMapping(dir string) (string, bool, error)
	RemoveDirectoryMapping(dir string) error
	DirectoryMappings() ([]model.DirMapping, error)
	ClearDirectoryMappings() error

	SetLastActivated(name string) error
	LastActivated() (string, error)
}

// FileStore implements Store on plain files in Root.
type FileStore struct {
	Root string
}

// NewFileStore returns a FileStore rooted at root.
func NewFileStore(root string) *FileStore {
	return &FileStore{Root: root}
}

func (s *FileStore) envPath() string     { return filepath.Join(s.Root, EnvFile) }
func (s *FileStore) historyPath() string { return filepath.Join(s.Root, HistoryFile) }
func (s *FileStore) lastPath() string    { return filepath.Join(s.Root, LastFile) }
func (s *FileStore) lockPath() string    { return filepath.Join(s.Root, LockFile) }

// Register inserts or silently overwrites the record for name. Names the
// line format cannot hold are rejected with ErrInvalidName.
func (s *FileStore) Register(name, activateScript string) error {
	if err := checkName(name); err != nil {
		return err
	}
	return s.update(s.envPath(), func(lines []string) []string {
		out := filterEnv(lines, func(n string) bool { return n != name })
		return append(out, formatEnv(model.Environment{Name: name, ActivateScript: activateScript}))
	})
}

// Unregister removes the record for name; absent names are a no-op.
func (s *FileStore) Unregister(name string) error {
	return s.update(s.envPath(), func(lines []string) []string {
		return filterEnv(lines, func(n string) bool { return n != name })
	})
}

// List returns all records in file order. Duplicate names resolve to the
// last line, matching Register's overwrite semantics.
func (s *FileStore) List() ([]model.Environment, error) {
	lines, err := s.read(s.envPath())
	if err != nil {
		return nil, err
	}
	index := make(map[string]int)
	var envs []model.Environment
	for _, line := range lines {
		env, ok := parseEnv(line)
		if !ok {
			continue
		}
		if i, seen := index[env.Name]; seen {
			envs[i] = env
			continue
		}
		index[env.Name] = len(envs)
		envs = append(envs, env)
	}
	return envs, nil
}

// Lookup returns the record for name.
func (s *FileStore) Lookup(name string) (model.Environment, bool, error) {
	envs, err := s.List()
	if err != nil {
		return model.Environment{}, false, err
	}
	for _, env := range envs {
		if env.Name == name {
			return env, true, nil
		}
	}
	return model.Environment{}, false, nil
}

// Prune rewrites the registry keeping only records accepted by keep.
func (s *FileStore) Prune(keep func(model.Environment) bool) ([]model.Environment, error) {
	var dropped []model.Environment
	err := s.update(s.envPath(), func(lines []string) []string {
		var out []string
		for _, line := range lines {
			env, ok := parseEnv(line)
			if !ok {
				continue
			}
			if keep(env) {
				out = append(out, line)
			} else {
				dropped = append(dropped, env)
			}
		}
		return out
	})
	if err != nil {
		return nil, err
	}
	return dropped, nil
}

// RecordDirectoryMapping maps dir to name, replacing any previous mapping.
func (s *FileStore) RecordDirectoryMapping(dir, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	return s.update(s.historyPath(), func(lines []string) []string {
		out := filterHistory(lines, func(d string) bool { return d != dir })
		return append(out, formatMapping(model.DirMapping{Dir: dir, Env: name}))
	})
}

// LookupDirectoryMapping returns the environment mapped to dir.
func (s *FileStore) LookupDirectoryMapping(dir string) (string, bool, error) {
	mappings, err := s.DirectoryMappings()
	if err != nil {
		return "", false, err
	}
	for _, m := range mappings {
		if m.Dir == dir {
			return m.Env, true, nil
		}
	}
	return "", false, nil
}

// RemoveDirectoryMapping forgets dir; absent directories are a no-op.
func (s *FileStore) RemoveDirectoryMapping(dir string) error {
	return s.update(s.historyPath(), func(lines []string) []string {
		return filterHistory(lines, func(d string) bool { return d != dir })
	})
}

// DirectoryMappings returns every mapping, one per directory.
func (s *FileStore) DirectoryMappings() ([]model.DirMapping, error) {
	lines, err := s.read(s.historyPath())
	if err != nil {
		return nil, err
	}
	index := make(map[string]int)
	var mappings []model.DirMapping
	for _, line := range lines {
		m, ok := parseMapping(line)
		if !ok {
			continue
		}
		if i, seen := index[m.Dir]; seen {
			mappings[i] = m
			continue
		}
		index[m.Dir] = len(mappings)
		mappings = append(mappings, m)
	}
	return mappings, nil
}

// ClearDirectoryMappings deletes the mapping file.
func (s *FileStore) ClearDirectoryMappings() error {
	return s.withLock(func() error {
		if err := os.Remove(s.historyPath()); err != nil && !os.IsNotExist(err) {
			return ioErr("clearing directory mappings", err)
		}
		return nil
	})
}

// SetLastActivated overwrites the last-activated pointer.
func (s *FileStore) SetLastActivated(name string) error {
	return s.withLock(func() error {
		return s.writeAtomic(s.lastPath(), []byte(name))
	})
}

// LastActivated returns the last-activated name, or "" if none was set.
func (s *FileStore) LastActivated() (string, error) {
	data, err := os.ReadFile(s.lastPath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", ioErr("reading last activated", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// update applies fn to the lines of path under the writer lock and writes
// the result back atomically.
func (s *FileStore) update(path string, fn func([]string) []string) error {
	return s.withLock(func() error {
		lines, err := s.read(path)
		if err != nil {
			return err
		}
		out := fn(lines)
		var b strings.Builder
		for _, line := range out {
			b.WriteString(line)
			b.WriteByte('\n')
		}
		return s.writeAtomic(path, []byte(b.String()))
	})
}

func checkName(name string) error {
	if !model.IsValidName(name) {
		return fmt.Errorf("%w: %q", model.ErrInvalidName, name)
	}
	return nil
}

func (s *FileStore) read(path string) ([]string, error) {
	lines, err := model.ReadLines(path)
	if err != nil {
		return nil, ioErr("reading "+filepath.Base(path), err)
	}
	return lines, nil
}

func (s *FileStore) withLock(fn func() error) error {
	if err := os.MkdirAll(s.Root, 0755); err != nil {
		return ioErr("creating state directory", err)
	}
	unlock, err := lockFile(s.lockPath())
	if err != nil {
		return ioErr("locking registry", err)
	}
	defer unlock()
	return fn()
}

func (s *FileStore) writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(s.Root, "."+filepath.Base(path)+".*")
	if err != nil {
		return ioErr("writing "+filepath.Base(path), err)
	}
	tmpName := tmp.Name()
	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		os.Remove(tmpName)
		return ioErr("writing "+filepath.Base(path), err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return ioErr("writing "+filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return ioErr("writing "+filepath.Base(path), err)
	}
	return nil
}

func ioErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", model.ErrIO, op, err)
}
