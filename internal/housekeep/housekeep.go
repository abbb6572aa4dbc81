// Package housekeep implements the garbage collector from spec.md §4.4: a
// serial, symlink-refusing directory scan that reclaims orphaned lock files
// (via a non-blocking re-lock probe, never by inspecting mtime alone) and
// prunes generational backup files by a keep-newest/older-than policy. The
// entry-type-not-stat traversal discipline is grounded on the teacher's
// FileWalker.scanDirectory (core/filewalker.go), which already uses
// DirEntry.Type() and skips os.ModeSymlink entries to avoid exactly this
// TOCTOU hazard; this package drops the teacher's parallel worker pool
// since spec.md §5 mandates a single-threaded, serial scan.
package housekeep

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/termfx/mutx/internal/lock"
)

// Options configures both clean-locks and clean-backups scans.
type Options struct {
	Recursive  bool
	OlderThan  time.Duration // zero means unset, i.e. no age filter
	KeepNewest int           // backups only; 0 means unset, i.e. no keep-newest filter
	Suffix     string        // backups only; default ".mutx.backup"
	DryRun     bool
}

// DefaultBackupSuffix is used when Options.Suffix is empty.
const DefaultBackupSuffix = ".mutx.backup"

// Result reports what a scan found and (in real mode) removed.
type Result struct {
	Scheduled []string // paths scheduled for deletion (populated in both modes)
	Deleted   []string // paths actually unlinked (empty in dry-run)
	Skipped   []string // paths logged-and-skipped due to a non-fatal per-file error
}

var timestampSuffix = regexp.MustCompile(`^\.\d{8}_\d{6}$`)

// CleanLocks scans root for orphaned *.lock files.
func CleanLocks(root string, opts Options) (Result, error) {
	var res Result

	walkErr := walk(root, opts.Recursive, func(path string, d os.DirEntry) error {
		if !strings.HasSuffix(d.Name(), ".lock") {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			res.Skipped = append(res.Skipped, path)
			return nil
		}

		if opts.OlderThan > 0 && info.ModTime().After(time.Now().Add(-opts.OlderThan)) {
			return nil
		}

		orphaned, err := lock.ProbeOrphan(path)
		if err != nil {
			res.Skipped = append(res.Skipped, path)
			return nil
		}
		if !orphaned {
			return nil
		}

		res.Scheduled = append(res.Scheduled, path)
		if opts.DryRun {
			return nil
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			res.Skipped = append(res.Skipped, path)
			return nil
		}
		res.Deleted = append(res.Deleted, path)
		return nil
	})

	return res, walkErr
}

// CleanBackups scans root for backup files matching suffix, groups them by
// stripped base name, and schedules all but the newest keep-newest (or all
// older than OlderThan) for deletion.
func CleanBackups(root string, opts Options) (Result, error) {
	suffix := opts.Suffix
	if suffix == "" {
		suffix = DefaultBackupSuffix
	}

	type entry struct {
		path    string
		modTime time.Time
	}
	groups := make(map[string][]entry)
	var res Result

	walkErr := walk(root, opts.Recursive, func(path string, d os.DirEntry) error {
		name := d.Name()
		if !strings.HasSuffix(name, suffix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			res.Skipped = append(res.Skipped, path)
			return nil
		}

		base := strings.TrimSuffix(name, suffix)
		if ts := lastSixteen(base); timestampSuffix.MatchString(ts) {
			base = strings.TrimSuffix(base, ts)
		}

		groups[base] = append(groups[base], entry{path: path, modTime: info.ModTime()})
		return nil
	})
	if walkErr != nil {
		return Result{}, walkErr
	}

	now := time.Now()
	for _, g := range groups {
		sort.Slice(g, func(i, j int) bool { return g[i].modTime.After(g[j].modTime) })

		for i, e := range g {
			byKeepNewest := opts.KeepNewest > 0 && i >= opts.KeepNewest
			byAge := opts.OlderThan > 0 && now.Sub(e.modTime) > opts.OlderThan
			if !byKeepNewest && !byAge {
				continue
			}

			res.Scheduled = append(res.Scheduled, e.path)
			if opts.DryRun {
				continue
			}
			if err := os.Remove(e.path); err != nil && !os.IsNotExist(err) {
				res.Skipped = append(res.Skipped, e.path)
				continue
			}
			res.Deleted = append(res.Deleted, e.path)
		}
	}

	return res, nil
}

// lastSixteen returns the last 16 bytes of s, or "" if s is shorter —
// exactly the width of ".YYYYMMDD_HHMMSS".
func lastSixteen(s string) string {
	const width = 16
	if len(s) < width {
		return ""
	}
	return s[len(s)-width:]
}

// walk performs a serial, symlink-refusing traversal of root, invoking fn
// for each regular file. A symlinked directory is never descended; a
// symlinked file is never passed to fn.
func walk(root string, recursive bool, fn func(path string, d os.DirEntry) error) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("housekeep: read %s: %w", root, err)
	}

	for _, d := range entries {
		path := filepath.Join(root, d.Name())

		if d.Type()&os.ModeSymlink != 0 {
			continue
		}

		if d.IsDir() {
			if recursive {
				if err := walk(path, recursive, fn); err != nil {
					return err
				}
			}
			continue
		}

		if !d.Type().IsRegular() {
			continue
		}

		if err := fn(path, d); err != nil {
			return err
		}
	}
	return nil
}
