package symlink

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/termfx/mutx/internal/mutxerr"
)

func TestCheckRegularFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out.txt")
	if err := os.WriteFile(target, []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Check(target, false); err != nil {
		t.Errorf("Check() on regular file = %v, want nil", err)
	}
}

func TestCheckMissingFile(t *testing.T) {
	dir := t.TempDir()
	if err := Check(filepath.Join(dir, "missing.txt"), false); err != nil {
		t.Errorf("Check() on missing file = %v, want nil", err)
	}
}

func TestCheckSymlinkDenied(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real.txt")
	link := filepath.Join(dir, "link.txt")
	os.WriteFile(target, []byte("hi"), 0o644)
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	err := Check(link, false)
	if !mutxerr.As(err, mutxerr.SymlinkNotAllowed) {
		t.Errorf("Check() on symlink = %v, want SymlinkNotAllowed", err)
	}
}

func TestCheckSymlinkAllowed(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real.txt")
	link := filepath.Join(dir, "link.txt")
	os.WriteFile(target, []byte("hi"), 0o644)
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	if err := Check(link, true); err != nil {
		t.Errorf("Check() with allow=true = %v, want nil", err)
	}
}

func TestCheckLockSymlinkDenied(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real.lock")
	link := filepath.Join(dir, "link.lock")
	os.WriteFile(target, []byte(""), 0o644)
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	err := CheckLock(link, false)
	if !mutxerr.As(err, mutxerr.LockSymlinkNotAllowed) {
		t.Errorf("CheckLock() on symlink = %v, want LockSymlinkNotAllowed", err)
	}
}
