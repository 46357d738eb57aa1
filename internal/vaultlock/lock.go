// Package vaultlock offers a best-effort, host-optional single-writer
// advisory lock over a vault's state directory, generalized from this
// codebase's Windows-only exclusive-handle instance lock into a
// cross-platform one — the vault, unlike a desktop monitor tied to one OS,
// has no reason to restrict itself to Windows.
package vaultlock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/personafy/personafy-core/internal/vaulttypes"
)

// Lock is an acquired advisory lock over one vault state directory.
type Lock struct {
	path   string
	file   *os.File
	locked bool
}

// lockFileName is the sentinel file the lock is taken against, sitting
// alongside vault-data.json rather than locking that file directly so a
// concurrent reader can still stat the data file.
const lockFileName = "vault.lock"

// Acquire takes the single-writer advisory lock for dir. It fails with
// io_failure if another process already holds it.
func Acquire(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating %s: %v", vaulttypes.ErrIOFailure, dir, err)
	}
	path := filepath.Join(dir, lockFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: opening lock file: %v", vaulttypes.ErrIOFailure, err)
	}

	l := &Lock{path: path, file: f}
	if err := lockFile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: another process holds the vault lock at %s: %v", vaulttypes.ErrIOFailure, path, err)
	}
	l.locked = true

	fmt.Fprintf(f, "%d", os.Getpid())
	return l, nil
}

// Release gives up the lock and closes the underlying file. Safe to call
// more than once.
func (l *Lock) Release() error {
	if !l.locked {
		return nil
	}
	err := unlockFile(l.file)
	l.file.Close()
	l.locked = false
	return err
}
