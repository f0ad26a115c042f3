//go:build !unix

package registry

import "os"

// lockFile only ensures the lock file exists; there is no advisory
// locking off unix, so concurrent writers fall back to last-writer-wins.
func lockFile(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	return func() { f.Close() }, nil
}
