// Package symlink implements the default-deny symlink policy checks applied
// to the input, output, and lock paths before any destructive operation,
// per spec.md §4.5 / §9.
package symlink

import (
	"os"

	"github.com/termfx/mutx/internal/mutxerr"
)

// Check lstats path and fails if it is a symlink and allow is false. It
// never stats through the link — a symlink is detected structurally, not by
// following it, so a dangling or malicious target never gets dereferenced.
func Check(path string, allow bool) error {
	if allow {
		return nil
	}
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return mutxerr.Wrap(mutxerr.ReadFailed, path, err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return mutxerr.New(mutxerr.SymlinkNotAllowed, path)
	}
	return nil
}

// CheckLock is the stricter variant applied to the derived/overridden lock
// path. It reports LockSymlinkNotAllowed instead of SymlinkNotAllowed so the
// CLI can point the user at --follow-lock-symlinks specifically.
func CheckLock(path string, allow bool) error {
	if allow {
		return nil
	}
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return mutxerr.Wrap(mutxerr.ReadFailed, path, err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return mutxerr.New(mutxerr.LockSymlinkNotAllowed, path)
	}
	return nil
}
