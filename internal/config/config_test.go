package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFileMissingIsEmpty(t *testing.T) {
	d, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if d.Timeout != nil {
		t.Errorf("Timeout = %v, want nil", d.Timeout)
	}
}

func TestLoadFileParsesDurations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mutx.yaml")
	content := "timeout: 5s\nmax_poll_interval: 1s\nbackup_suffix: .bak\nverbosity: 2\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	d, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if d.Timeout == nil || *d.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", d.Timeout)
	}
	if d.BackupSuffix == nil || *d.BackupSuffix != ".bak" {
		t.Errorf("BackupSuffix = %v, want .bak", d.BackupSuffix)
	}
	if d.Verbosity == nil || *d.Verbosity != 2 {
		t.Errorf("Verbosity = %v, want 2", d.Verbosity)
	}
}

func TestMergeOverridesWin(t *testing.T) {
	baseT := 5 * time.Second
	overT := 10 * time.Second
	base := Defaults{Timeout: &baseT}
	override := Defaults{Timeout: &overT}

	merged := Merge(base, override)
	if *merged.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", merged.Timeout)
	}
}

func TestDefaultsOrFallback(t *testing.T) {
	d := Defaults{}
	if got := d.TimeoutOr(3 * time.Second); got != 3*time.Second {
		t.Errorf("TimeoutOr() = %v, want 3s", got)
	}
	if got := d.HousekeepSuffixOr(); got != ".mutx.backup" {
		t.Errorf("HousekeepSuffixOr() = %v, want .mutx.backup", got)
	}
}

func TestLoadEnvReadsVars(t *testing.T) {
	t.Setenv("MUTX_TIMEOUT", "2s")
	t.Setenv("MUTX_BACKUP_SUFFIX", ".envbak")

	d, err := LoadEnv()
	if err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}
	if d.Timeout == nil || *d.Timeout != 2*time.Second {
		t.Errorf("Timeout = %v, want 2s", d.Timeout)
	}
	if d.BackupSuffix == nil || *d.BackupSuffix != ".envbak" {
		t.Errorf("BackupSuffix = %v, want .envbak", d.BackupSuffix)
	}
}
