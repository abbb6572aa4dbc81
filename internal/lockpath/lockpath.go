// Package lockpath derives the stable, collision-resistant lock-file path
// for a given target, per spec.md §3 / §4.1. The hashing scheme is grounded
// on the teacher's util.SHA1FileHex content-hash helper
// (internal/util/file.go), generalized from SHA-1-of-content to
// SHA-256-of-canonical-path and truncated to 8 hex characters as spec'd.
package lockpath

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"github.com/termfx/mutx/internal/mutxerr"
)

const appSubpath = "mutx"

// Derive returns the absolute lock path for target. If custom is true, the
// target string itself (interpreted as the lock path) is returned, made
// absolute but not canonicalized or hashed — the caller accepts
// responsibility for its uniqueness.
func Derive(target string, custom bool) (string, error) {
	if custom {
		abs, err := filepath.Abs(target)
		if err != nil {
			return "", mutxerr.Wrap(mutxerr.Other, target, err)
		}
		return abs, nil
	}

	canonicalTarget, err := canonicalize(target)
	if err != nil {
		return "", err
	}

	cacheDir, err := locksDir()
	if err != nil {
		return "", err
	}

	base := filepath.Base(canonicalTarget)
	parentDir := filepath.Dir(canonicalTarget)
	parentName := filepath.Base(parentDir)
	if parentName == "" || parentName == string(filepath.Separator) || parentName == "." {
		parentName = "root"
	}
	init := initialism(filepath.Dir(parentDir))
	hash := hash8(canonicalTarget)

	name := init + parentName + "." + base + "." + hash + ".lock"
	return filepath.Join(cacheDir, name), nil
}

// Validate refuses a lock path whose canonical form equals the target's.
func Validate(lockPath, target string) error {
	canonLock, err := canonicalizeLenient(lockPath)
	if err != nil {
		return err
	}
	canonTarget, err := canonicalizeLenient(target)
	if err != nil {
		return err
	}
	if canonLock == canonTarget {
		return mutxerr.New(mutxerr.LockPathCollision, lockPath)
	}
	return nil
}

// canonicalize resolves target to an absolute, symlink-free path. If target
// doesn't exist yet, its parent directory is canonicalized and the original
// basename is re-appended; a missing parent is PathNotFound.
func canonicalize(target string) (string, error) {
	abs, err := filepath.Abs(target)
	if err != nil {
		return "", mutxerr.Wrap(mutxerr.Other, target, err)
	}

	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}

	parent := filepath.Dir(abs)
	resolvedParent, err := filepath.EvalSymlinks(parent)
	if err != nil {
		if os.IsNotExist(err) {
			return "", mutxerr.New(mutxerr.PathNotFound, parent)
		}
		return "", mutxerr.Wrap(mutxerr.ReadFailed, parent, err)
	}
	return filepath.Join(resolvedParent, filepath.Base(abs)), nil
}

// canonicalizeLenient is like canonicalize but never fails on a missing
// parent — used for the collision check, which must run even against a
// not-yet-existent lock file argument.
func canonicalizeLenient(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", mutxerr.Wrap(mutxerr.Other, path, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	parent := filepath.Dir(abs)
	if resolvedParent, err := filepath.EvalSymlinks(parent); err == nil {
		return filepath.Join(resolvedParent, filepath.Base(abs)), nil
	}
	return abs, nil
}

// locksDir returns the process-wide per-user cache directory for lock
// files, creating it if missing.
func locksDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", mutxerr.Wrap(mutxerr.CacheDirectoryFailed, base, err)
	}
	dir := filepath.Join(base, appSubpath, "locks")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", mutxerr.Wrap(mutxerr.CacheDirectoryFailed, dir, err)
	}
	return dir, nil
}

// initialism concatenates, lowercased and dot-separated, the first
// alphanumeric character of up to the three directory components
// immediately above the target's parent directory. The parent itself is
// spliced into the lock filename separately, in full, by Derive.
func initialism(ancestorsDir string) string {
	comps := splitComponents(ancestorsDir)
	start := 0
	if len(comps) > 3 {
		start = len(comps) - 3
	}
	comps = comps[start:]

	var letters []string
	for _, c := range comps {
		for _, r := range c {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
				letters = append(letters, strings.ToLower(string(r)))
				break
			}
		}
	}
	if len(letters) == 0 {
		return ""
	}
	return strings.Join(letters, ".") + "."
}

func splitComponents(dir string) []string {
	dir = filepath.ToSlash(filepath.Clean(dir))
	parts := strings.Split(dir, "/")
	comps := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			comps = append(comps, p)
		}
	}
	return comps
}

func hash8(canonicalPath string) string {
	sum := sha256.Sum256([]byte(canonicalPath))
	return hex.EncodeToString(sum[:])[:8]
}
