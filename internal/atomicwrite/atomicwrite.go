// Package atomicwrite implements the write-temp-then-rename primitive from
// spec.md §4.3, generalized from the teacher's util.WriteFileAtomic
// (internal/util/file.go) — a single os.CreateTemp/Write/Close/Rename
// sequence — into a Writer that supports both buffered (content known
// up-front) and streaming (content produced incrementally) modes, optional
// fsync-before-rename durability, and permission propagation from an
// existing target file.
package atomicwrite

import (
	"io"
	"os"
	"path/filepath"

	"github.com/termfx/mutx/internal/mutxerr"
)

// Config controls one atomic write.
type Config struct {
	// UseFsync calls File.Sync before the rename, trading latency for a
	// guarantee the new content survives a crash immediately after rename.
	UseFsync bool
	// TempSuffix is appended to the generated temp file name, purely for
	// operator-visible diagnostics (ioutil-style random suffixes already
	// guarantee uniqueness).
	TempSuffix string
	// Perm is used for a brand-new target; an existing target's mode is
	// preserved instead, per spec.md §4.3's "do not clobber permissions"
	// edge case.
	Perm os.FileMode
}

// DefaultConfig mirrors the teacher's DefaultAtomicConfig defaults, with
// fsync off by default (performance over guaranteed durability, matching
// the corpus default) and 0644 as the fallback mode for new files.
func DefaultConfig() Config {
	return Config{
		UseFsync:   false,
		TempSuffix: ".mutx.tmp",
		Perm:       0o644,
	}
}

// Writer performs one buffered or streaming atomic write against a single
// target path. It is not safe for concurrent use by multiple goroutines —
// callers serialize via internal/lock before constructing one.
type Writer struct {
	target string
	cfg    Config

	tmp       *os.File
	tmpPath   string
	committed bool
	aborted   bool
}

// New prepares a Writer for target. No file is created until the first
// Write or WriteBuffered call.
func New(target string, cfg Config) *Writer {
	return &Writer{target: target, cfg: cfg}
}

// WriteBuffered performs the whole write in one call: create temp, write
// the full buffer, then Commit (optional fsync, close, rename over target). Equivalent to
// the teacher's WriteFileAtomic but permission-aware and fsync-optional.
func (w *Writer) WriteBuffered(data []byte) error {
	if err := w.ensureTemp(); err != nil {
		return err
	}
	if _, err := w.tmp.Write(data); err != nil {
		w.abortTemp()
		return mutxerr.Wrap(mutxerr.WriteFailed, w.target, err)
	}
	return w.Commit()
}

// Write implements io.Writer for streaming mode: the temp file is created
// lazily on first Write and content is appended as it arrives. Callers must
// call Commit or Abort when finished.
func (w *Writer) Write(p []byte) (int, error) {
	if err := w.ensureTemp(); err != nil {
		return 0, err
	}
	n, err := w.tmp.Write(p)
	if err != nil {
		return n, mutxerr.Wrap(mutxerr.WriteFailed, w.target, err)
	}
	return n, nil
}

// ReadFrom streams src into the temp file without an intermediate buffer,
// for large inputs.
func (w *Writer) ReadFrom(src io.Reader) (int64, error) {
	if err := w.ensureTemp(); err != nil {
		return 0, err
	}
	n, err := io.Copy(w.tmp, src)
	if err != nil {
		w.abortTemp()
		return n, mutxerr.Wrap(mutxerr.WriteFailed, w.target, err)
	}
	return n, nil
}

func (w *Writer) ensureTemp() error {
	if w.tmp != nil {
		return nil
	}
	dir := filepath.Dir(w.target)
	pattern := filepath.Base(w.target) + w.cfg.TempSuffix + "-*"
	tmp, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return mutxerr.Wrap(mutxerr.WriteFailed, w.target, err)
	}
	w.tmp = tmp
	w.tmpPath = tmp.Name()
	return nil
}

// Commit applies the target's existing permissions (or Config.Perm for a
// new file) to the temp file, optionally fsyncs it, closes it, and renames
// it into place. Rename is the single atomic visibility point: readers either see
// the fully-old or fully-new content, never a partial write.
func (w *Writer) Commit() error {
	if w.tmp == nil {
		// Nothing was ever written; an empty file still satisfies "wrote
		// the (empty) content" semantics.
		if err := w.ensureTemp(); err != nil {
			return err
		}
	}

	perm := w.cfg.Perm
	if info, err := os.Stat(w.target); err == nil {
		perm = info.Mode().Perm()
	}
	if err := w.tmp.Chmod(perm); err != nil {
		w.abortTemp()
		return mutxerr.Wrap(mutxerr.WriteFailed, w.target, err)
	}

	if w.cfg.UseFsync {
		if err := w.tmp.Sync(); err != nil {
			w.abortTemp()
			return mutxerr.Wrap(mutxerr.WriteFailed, w.target, err)
		}
	}

	if err := w.tmp.Close(); err != nil {
		os.Remove(w.tmpPath)
		return mutxerr.Wrap(mutxerr.WriteFailed, w.target, err)
	}

	if err := os.Rename(w.tmpPath, w.target); err != nil {
		os.Remove(w.tmpPath)
		return mutxerr.Wrap(mutxerr.WriteFailed, w.target, err)
	}

	w.committed = true
	return nil
}

// Abort discards the temp file without touching target. Safe to call after
// a failed Write/ReadFrom, and a no-op if nothing was ever created.
func (w *Writer) Abort() error {
	if w.committed || w.aborted {
		return nil
	}
	w.abortTemp()
	return nil
}

func (w *Writer) abortTemp() {
	if w.tmp == nil {
		return
	}
	w.tmp.Close()
	os.Remove(w.tmpPath)
	w.aborted = true
}

// WriteFile is the convenience buffered form for simple callers, equivalent
// to New(target, cfg).WriteBuffered(data) (the call the write subcommand's
// default non-streaming path makes directly).
func WriteFile(target string, data []byte, cfg Config) error {
	return New(target, cfg).WriteBuffered(data)
}
