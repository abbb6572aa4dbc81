// Package backup implements the pre-write backup descriptor from
// spec.md §4.4: a single, optionally timestamped copy of the target, taken before the
// atomic write commits. The read-stat-copy sequence is grounded directly on
// the teacher's AtomicWriter.createBackup and TransactionManager.createBackup
// (core/atomicwriter.go, core/transaction.go), generalized to a
// caller-supplied suffix/timestamp/destination-dir descriptor instead of
// the teacher's fixed ".morfx-backup-..." naming.
package backup

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/termfx/mutx/internal/mutxerr"
)

// Descriptor configures where and how the backup copy is named.
type Descriptor struct {
	// Suffix is appended to the original basename, e.g. ".bak".
	Suffix string
	// Timestamped inserts a timestamp between the basename and Suffix.
	Timestamped bool
	// DestDir, if non-empty, places the backup there instead of
	// alongside the original.
	DestDir string
}

// TimestampLayout is spec.md §3's YYYYMMDD_HHMMSS stamp — the underscore
// at position 8 is load-bearing: internal/housekeep's group-key regex
// strips exactly this shape when pruning backup generations.
const TimestampLayout = "20060102_150405"

// Create copies target to a derived backup path and returns that path.
// A missing target is PathNotFound, per the resolved Open Question in
// SPEC_FULL.md §11 (a backup is only meaningful for a pre-existing file).
func Create(target string, d Descriptor) (string, error) {
	info, err := os.Stat(target)
	if err != nil {
		if os.IsNotExist(err) {
			return "", mutxerr.New(mutxerr.PathNotFound, target)
		}
		return "", mutxerr.Wrap(mutxerr.ReadFailed, target, err)
	}
	if info.IsDir() {
		return "", mutxerr.New(mutxerr.NotAFile, target)
	}

	src, err := os.Open(target)
	if err != nil {
		return "", mutxerr.Wrap(mutxerr.ReadFailed, target, err)
	}
	defer src.Close()

	dest := Path(target, d)

	mode := info.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", mutxerr.Wrap(mutxerr.BackupFailed, dest, err)
	}

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return "", mutxerr.Wrap(mutxerr.BackupFailed, dest, err)
	}
	defer out.Close()

	// io.Copy rather than ReadFile+WriteFile keeps a backup of a file
	// written with --stream in the same constant memory the streaming
	// writer itself uses.
	if _, err := io.Copy(out, src); err != nil {
		return "", mutxerr.Wrap(mutxerr.BackupFailed, dest, err)
	}
	if err := out.Close(); err != nil {
		return "", mutxerr.Wrap(mutxerr.BackupFailed, dest, err)
	}
	if err := os.Chmod(dest, mode); err != nil {
		return "", mutxerr.Wrap(mutxerr.BackupFailed, dest, err)
	}
	return dest, nil
}

// ValidateSuffix enforces spec.md §3's backup-descriptor invariant: a
// caller-supplied suffix must be non-empty and must not be the single
// character ".". An empty string passed through Descriptor.Suffix is a
// different thing — it means "use the default" — this function is for
// validating a value the caller explicitly typed (e.g. a --backup-suffix or
// --suffix flag value), not the zero-value sentinel.
func ValidateSuffix(suffix string) error {
	if suffix == "" || suffix == "." {
		return mutxerr.Wrap(mutxerr.Other, suffix, fmt.Errorf("backup suffix must be non-empty and not %q", "."))
	}
	return nil
}

// Path computes the backup destination for target without touching disk.
// internal/housekeep does not call it; it recognizes backup files by their
// suffix and the TimestampLayout stamp that Path inserts.
func Path(target string, d Descriptor) string {
	dir := filepath.Dir(target)
	if d.DestDir != "" {
		dir = d.DestDir
	}
	name := filepath.Base(target)

	if d.Timestamped {
		name = fmt.Sprintf("%s.%s", name, time.Now().UTC().Format(TimestampLayout))
	}
	suffix := d.Suffix
	if suffix == "" {
		suffix = ".bak"
	}
	name += suffix

	return filepath.Join(dir, name)
}
