package lockpath

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/termfx/mutx/internal/mutxerr"
)

func TestDeriveDeterministic(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "sub", "a", "out.txt")
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(target, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	p1, err := Derive(target, false)
	if err != nil {
		t.Fatalf("Derive() error: %v", err)
	}
	p2, err := Derive(target, false)
	if err != nil {
		t.Fatalf("Derive() error: %v", err)
	}
	if p1 != p2 {
		t.Errorf("Derive() not deterministic: %q != %q", p1, p2)
	}
	if filepath.Base(p1) == "" || filepath.Ext(p1) != ".lock" {
		t.Errorf("Derive() = %q, want *.lock", p1)
	}
}

// TestDeriveFilenameShape pins the lock filename template down to
// {initialism}{parent}.{basename}.{hash8}.lock: the three ancestors
// immediately above the parent directory are initialed, but the parent
// itself is spliced in as a full, literal token.
func TestDeriveFilenameShape(t *testing.T) {
	root := t.TempDir()
	leaf := filepath.Join(root, "x", "aa", "bb", "cc")
	if err := os.MkdirAll(leaf, 0o755); err != nil {
		t.Fatal(err)
	}
	target := filepath.Join(leaf, "out.txt")
	if err := os.WriteFile(target, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := Derive(target, false)
	if err != nil {
		t.Fatalf("Derive() error: %v", err)
	}

	name := filepath.Base(got)
	const wantPrefix = "x.a.b.cc.out.txt."
	re := regexp.MustCompile(`^x\.a\.b\.cc\.out\.txt\.[0-9a-f]{8}\.lock$`)
	if !re.MatchString(name) {
		t.Errorf("Derive() filename = %q, want shape %s<hash8>.lock", name, wantPrefix)
	}
}

func TestDeriveDistinctTargets(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	os.WriteFile(a, []byte("x"), 0o644)
	os.WriteFile(b, []byte("x"), 0o644)

	pa, err := Derive(a, false)
	if err != nil {
		t.Fatal(err)
	}
	pb, err := Derive(b, false)
	if err != nil {
		t.Fatal(err)
	}
	if pa == pb {
		t.Errorf("Derive() collided for distinct targets: %q", pa)
	}
}

func TestDeriveCustom(t *testing.T) {
	got, err := Derive("/tmp/my.lock", true)
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/my.lock" {
		t.Errorf("Derive(custom=true) = %q, want verbatim path", got)
	}
}

func TestDerivePathNotFound(t *testing.T) {
	_, err := Derive("/no/such/parent/dir/out.txt", false)
	if !mutxerr.As(err, mutxerr.PathNotFound) {
		t.Errorf("Derive() on missing parent = %v, want PathNotFound", err)
	}
}

func TestValidateCollision(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out.txt")
	os.WriteFile(target, []byte("x"), 0o644)

	err := Validate(target, target)
	if !mutxerr.As(err, mutxerr.LockPathCollision) {
		t.Errorf("Validate() on identical paths = %v, want LockPathCollision", err)
	}
}

func TestValidateNoCollision(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out.txt")
	lock := filepath.Join(dir, "out.txt.lock")
	os.WriteFile(target, []byte("x"), 0o644)

	if err := Validate(lock, target); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}
