package housekeep

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/termfx/mutx/internal/lock"
)

func TestCleanLocksRemovesOrphan(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.out.abcd1234.lock")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := CleanLocks(dir, Options{})
	if err != nil {
		t.Fatalf("CleanLocks() error = %v", err)
	}
	if len(res.Deleted) != 1 || res.Deleted[0] != path {
		t.Errorf("Deleted = %v, want [%s]", res.Deleted, path)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("lock file still exists after clean")
	}
}

func TestCleanLocksSkipsHeldLock(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "held.lock")

	held, err := lock.Acquire(context.Background(), path, lock.FailFast, lock.PollSchedule{})
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer held.Release()

	res, err := CleanLocks(dir, Options{})
	if err != nil {
		t.Fatalf("CleanLocks() error = %v", err)
	}
	if len(res.Deleted) != 0 {
		t.Errorf("Deleted = %v, want none (lock held)", res.Deleted)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("held lock file was removed: %v", err)
	}
}

func TestCleanLocksDryRunDoesNotDelete(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.lock")
	os.WriteFile(path, nil, 0o644)

	res, err := CleanLocks(dir, Options{DryRun: true})
	if err != nil {
		t.Fatalf("CleanLocks() error = %v", err)
	}
	if len(res.Scheduled) != 1 {
		t.Errorf("Scheduled = %v, want 1 entry", res.Scheduled)
	}
	if len(res.Deleted) != 0 {
		t.Errorf("Deleted = %v, want none in dry-run", res.Deleted)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("dry-run deleted the file: %v", err)
	}
}

func TestCleanLocksSkipsSymlinkedDir(t *testing.T) {
	dir := t.TempDir()
	real := filepath.Join(dir, "real")
	os.Mkdir(real, 0o755)
	os.WriteFile(filepath.Join(real, "a.lock"), nil, 0o644)

	link := filepath.Join(dir, "link")
	if err := os.Symlink(real, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	res, err := CleanLocks(dir, Options{Recursive: true})
	if err != nil {
		t.Fatalf("CleanLocks() error = %v", err)
	}
	if len(res.Scheduled) != 0 {
		t.Errorf("Scheduled = %v, want none (symlinked dir must not be descended)", res.Scheduled)
	}
}

func TestCleanBackupsKeepNewest(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	var paths []string
	for i := 0; i < 5; i++ {
		ts := base.Add(time.Duration(i) * time.Minute).Format("20060102_150405")
		p := filepath.Join(dir, "data.txt."+ts+".mutx.backup")
		os.WriteFile(p, nil, 0o644)
		mt := base.Add(time.Duration(i) * time.Minute)
		os.Chtimes(p, mt, mt)
		paths = append(paths, p)
	}

	res, err := CleanBackups(dir, Options{KeepNewest: 2})
	if err != nil {
		t.Fatalf("CleanBackups() error = %v", err)
	}
	if len(res.Deleted) != 3 {
		t.Fatalf("Deleted count = %d, want 3", len(res.Deleted))
	}
	// the two newest (last two written, highest index) must remain
	for _, keep := range paths[3:] {
		if _, err := os.Stat(keep); err != nil {
			t.Errorf("expected to keep %s: %v", keep, err)
		}
	}
	for _, gone := range paths[:3] {
		if _, err := os.Stat(gone); !os.IsNotExist(err) {
			t.Errorf("expected %s to be deleted", gone)
		}
	}
}

func TestCleanBackupsIgnoresUnrelatedSuffix(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "data.txt.bak")
	os.WriteFile(p, nil, 0o644)

	res, err := CleanBackups(dir, Options{KeepNewest: 0, OlderThan: time.Nanosecond})
	if err != nil {
		t.Fatalf("CleanBackups() error = %v", err)
	}
	if len(res.Scheduled) != 0 {
		t.Errorf("Scheduled = %v, want none (.bak is not the default suffix)", res.Scheduled)
	}
	if _, err := os.Stat(p); err != nil {
		t.Errorf("unrelated file was touched: %v", err)
	}
}

func TestCleanBackupsDryRun(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "data.txt.20200101_000000.mutx.backup")
	old := time.Now().Add(-48 * time.Hour)
	os.WriteFile(p, nil, 0o644)
	os.Chtimes(p, old, old)

	res, err := CleanBackups(dir, Options{OlderThan: time.Hour, DryRun: true})
	if err != nil {
		t.Fatalf("CleanBackups() error = %v", err)
	}
	if len(res.Scheduled) != 1 {
		t.Errorf("Scheduled = %v, want 1", res.Scheduled)
	}
	if _, err := os.Stat(p); err != nil {
		t.Errorf("dry-run deleted the file: %v", err)
	}
}
