package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vex/internal/model"
)

func newStore(t *testing.T) *FileStore {
	t.Helper()
	return NewFileStore(filepath.Join(t.TempDir(), "state"))
}

func sortEnvs() cmp.Option {
	return cmpopts.SortSlices(func(a, b model.Environment) bool { return a.Name < b.Name })
}

func TestEmptyStore(t *testing.T) {
	s := newStore(t)

	envs, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, envs)

	_, found, err := s.LookupDirectoryMapping("/proj")
	require.NoError(t, err)
	assert.False(t, found)

	last, err := s.LastActivated()
	require.NoError(t, err)
	assert.Equal(t, "", last)
}

func TestRegister_LastWriteWins(t *testing.T) {
	s := newStore(t)

	require.NoError(t, s.Register("a", "/venvs/a/bin/activate"))
	require.NoError(t, s.Register("b", "/venvs/b/bin/activate"))
	require.NoError(t, s.Register("a", "/other/a/bin/activate"))

	envs, err := s.List()
	require.NoError(t, err)

	want := []model.Environment{
		{Name: "a", ActivateScript: "/other/a/bin/activate"},
		{Name: "b", ActivateScript: "/venvs/b/bin/activate"},
	}
	if diff := cmp.Diff(want, envs, sortEnvs()); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}
}

func TestRegister_PathWithSpaces(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Register("spaced", "/Users/me/My Envs/spaced/bin/activate"))

	env, found, err := s.Lookup("spaced")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "/Users/me/My Envs/spaced/bin/activate", env.ActivateScript)
	assert.Equal(t, "/Users/me/My Envs/spaced", env.Dir())
}

func TestUnregister(t *testing.T) {
	s := newStore(t)

	// Never registered: no-op.
	require.NoError(t, s.Unregister("ghost"))

	require.NoError(t, s.Register("x", "/venvs/x/bin/activate"))
	require.NoError(t, s.Register("y", "/venvs/y/bin/activate"))
	require.NoError(t, s.Unregister("x"))
	require.NoError(t, s.Unregister("x"))

	envs, err := s.List()
	require.NoError(t, err)
	require.Len(t, envs, 1)
	assert.Equal(t, "y", envs[0].Name)
}

func TestUnregister_DoesNotMatchPrefix(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Register("web", "/venvs/web/bin/activate"))
	require.NoError(t, s.Register("web-api", "/venvs/web-api/bin/activate"))

	require.NoError(t, s.Unregister("web"))

	_, found, err := s.Lookup("web-api")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestDirectoryMapping_Overwrite(t *testing.T) {
	s := newStore(t)

	require.NoError(t, s.RecordDirectoryMapping("/proj", "n1"))
	require.NoError(t, s.RecordDirectoryMapping("/other", "n3"))
	require.NoError(t, s.RecordDirectoryMapping("/proj", "n2"))

	name, found, err := s.LookupDirectoryMapping("/proj")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "n2", name)

	mappings, err := s.DirectoryMappings()
	require.NoError(t, err)
	assert.Len(t, mappings, 2)
}

func TestDirectoryMapping_ColonInPath(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.RecordDirectoryMapping("/mnt/c:/work", "win"))

	name, found, err := s.LookupDirectoryMapping("/mnt/c:/work")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "win", name)
}

func TestInvalidNamesRejected(t *testing.T) {
	for _, name := range []string{"my env", "#hash", "a:b", "", "tab\tname"} {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)

			err := s.Register(name, "/venvs/x/bin/activate")
			assert.ErrorIs(t, err, model.ErrInvalidName)
			envs, err := s.List()
			require.NoError(t, err)
			assert.Empty(t, envs)

			err = s.RecordDirectoryMapping("/proj", name)
			assert.ErrorIs(t, err, model.ErrInvalidName)
			mappings, err := s.DirectoryMappings()
			require.NoError(t, err)
			assert.Empty(t, mappings)
		})
	}
}

func TestRemoveAndClearDirectoryMappings(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.RecordDirectoryMapping("/a", "x"))
	require.NoError(t, s.RecordDirectoryMapping("/b", "y"))

	require.NoError(t, s.RemoveDirectoryMapping("/a"))
	_, found, err := s.LookupDirectoryMapping("/a")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.ClearDirectoryMappings())
	require.NoError(t, s.ClearDirectoryMappings())
	mappings, err := s.DirectoryMappings()
	require.NoError(t, err)
	assert.Empty(t, mappings)
}

func TestLastActivated(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.SetLastActivated("one"))
	require.NoError(t, s.SetLastActivated("two"))

	last, err := s.LastActivated()
	require.NoError(t, err)
	assert.Equal(t, "two", last)
}

func TestPrune(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Register("keep", "/venvs/keep/bin/activate"))
	require.NoError(t, s.Register("drop", "/venvs/drop/bin/activate"))

	dropped, err := s.Prune(func(e model.Environment) bool { return e.Name == "keep" })
	require.NoError(t, err)
	require.Len(t, dropped, 1)
	assert.Equal(t, "drop", dropped[0].Name)

	envs, err := s.List()
	require.NoError(t, err)
	require.Len(t, envs, 1)
	assert.Equal(t, "keep", envs[0].Name)
}

func TestMalformedLinesSkipped(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.MkdirAll(s.Root, 0755))
	content := "good /venvs/good/bin/activate\nbroken\n\n  \nalso /venvs/also/bin/activate\n"
	require.NoError(t, os.WriteFile(filepath.Join(s.Root, EnvFile), []byte(content), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(s.Root, HistoryFile), []byte("nocolon\n/p:good\n/q:\n"), 0644))

	envs, err := s.List()
	require.NoError(t, err)
	assert.Len(t, envs, 2)

	mappings, err := s.DirectoryMappings()
	require.NoError(t, err)
	assert.Equal(t, []model.DirMapping{{Dir: "/p", Env: "good"}}, mappings)
}

func TestUnreadableStateIsIOError(t *testing.T) {
	if runtime.GOOS == "windows" || os.Getuid() == 0 {
		t.Skip("permission bits not enforced")
	}
	s := newStore(t)
	require.NoError(t, s.Register("a", "/venvs/a/bin/activate"))
	require.NoError(t, os.Chmod(filepath.Join(s.Root, EnvFile), 0000))
	t.Cleanup(func() { os.Chmod(filepath.Join(s.Root, EnvFile), 0644) })

	_, err := s.List()
	assert.ErrorIs(t, err, model.ErrIO)
}

func TestConcurrentRegister(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no advisory locking")
	}
	s := newStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("env%02d", i)
			assert.NoError(t, s.Register(name, "/venvs/"+name+"/bin/activate"))
		}(i)
	}
	wg.Wait()

	envs, err := s.List()
	require.NoError(t, err)
	names := make([]string, len(envs))
	for i, e := range envs {
		names[i] = e.Name
	}
	sort.Strings(names)
	assert.Len(t, names, 20)
	assert.Equal(t, "env00", names[0])
	assert.Equal(t, "env19", names[19])
}
