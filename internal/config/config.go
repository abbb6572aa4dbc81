// Package config implements the layered configuration mutx reads before
// flag values are applied: built-in defaults, then an optional YAML file,
// then MUTX_* environment variables, in increasing precedence (CLI flags,
// applied by the caller whenever a flag carries a non-empty value, take
// final precedence over all of this). The env-var-with-fallback-default shape is grounded directly on
// the teacher's internal/config/config.go (LoadConfig reading MORFX_* vars
// with strconv coercion and zero-value-triggered defaults); YAML loading and
// .env support are additions from the rest of the pack (gopkg.in/yaml.v3 and
// joho/godotenv both already sit in the teacher's own dependency graph
// unused at runtime — wired here for the first time).
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/termfx/mutx/internal/durfmt"
	"github.com/termfx/mutx/internal/housekeep"
	"github.com/termfx/mutx/internal/mutxerr"
)

// Defaults holds the subset of options that can be supplied by file or
// environment instead of a flag. Every field is a pointer so "unset" is
// distinguishable from "set to the zero value".
type Defaults struct {
	Timeout         *time.Duration `yaml:"timeout"`
	MaxPollInterval *time.Duration `yaml:"max_poll_interval"`
	BackupSuffix    *string        `yaml:"backup_suffix"`
	HousekeepSuffix *string        `yaml:"housekeep_suffix"`
	Verbosity       *int           `yaml:"verbosity"`
}

// rawFile mirrors Defaults but with the duration fields as strings, since
// spec.md's own duration grammar ("10s", "5m") is what operators write in a
// YAML config, not a Go time.Duration literal.
type rawFile struct {
	Timeout         string `yaml:"timeout"`
	MaxPollInterval string `yaml:"max_poll_interval"`
	BackupSuffix    string `yaml:"backup_suffix"`
	HousekeepSuffix string `yaml:"housekeep_suffix"`
	Verbosity       int    `yaml:"verbosity"`
}

// LoadFile reads an optional YAML config file. A missing file is not an
// error — it simply yields an empty Defaults, so callers can unconditionally
// call LoadFile(path) and merge the result.
func LoadFile(path string) (Defaults, error) {
	if path == "" {
		return Defaults{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Defaults{}, nil
		}
		return Defaults{}, mutxerr.Wrap(mutxerr.ReadFailed, path, err)
	}

	var raw rawFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Defaults{}, mutxerr.Wrap(mutxerr.Other, path, err)
	}

	d := Defaults{}
	if raw.Timeout != "" {
		dur, err := durfmt.Parse(raw.Timeout)
		if err != nil {
			return Defaults{}, err
		}
		d.Timeout = &dur
	}
	if raw.MaxPollInterval != "" {
		dur, err := durfmt.Parse(raw.MaxPollInterval)
		if err != nil {
			return Defaults{}, err
		}
		d.MaxPollInterval = &dur
	}
	if raw.BackupSuffix != "" {
		d.BackupSuffix = &raw.BackupSuffix
	}
	if raw.HousekeepSuffix != "" {
		d.HousekeepSuffix = &raw.HousekeepSuffix
	}
	if raw.Verbosity != 0 {
		d.Verbosity = &raw.Verbosity
	}
	return d, nil
}

// LoadEnv reads MUTX_* environment variables, first loading a sibling .env
// file via godotenv (a no-op, non-fatal step if none exists — the same
// tolerant-missing-file posture the teacher's own config loader takes
// toward its env vars).
func LoadEnv() (Defaults, error) {
	_ = godotenv.Load()

	d := Defaults{}
	if v := os.Getenv("MUTX_TIMEOUT"); v != "" {
		dur, err := durfmt.Parse(v)
		if err != nil {
			return Defaults{}, err
		}
		d.Timeout = &dur
	}
	if v := os.Getenv("MUTX_MAX_POLL_INTERVAL"); v != "" {
		dur, err := durfmt.Parse(v)
		if err != nil {
			return Defaults{}, err
		}
		d.MaxPollInterval = &dur
	}
	if v := os.Getenv("MUTX_BACKUP_SUFFIX"); v != "" {
		d.BackupSuffix = &v
	}
	if v := os.Getenv("MUTX_HOUSEKEEP_SUFFIX"); v != "" {
		d.HousekeepSuffix = &v
	}
	if v := os.Getenv("MUTX_VERBOSITY"); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil && n >= 0 {
			d.Verbosity = &n
		}
	}
	return d, nil
}

// Merge layers override on top of base: any non-nil field in override wins.
func Merge(base, override Defaults) Defaults {
	if override.Timeout != nil {
		base.Timeout = override.Timeout
	}
	if override.MaxPollInterval != nil {
		base.MaxPollInterval = override.MaxPollInterval
	}
	if override.BackupSuffix != nil {
		base.BackupSuffix = override.BackupSuffix
	}
	if override.HousekeepSuffix != nil {
		base.HousekeepSuffix = override.HousekeepSuffix
	}
	if override.Verbosity != nil {
		base.Verbosity = override.Verbosity
	}
	return base
}

// TimeoutOr returns d.Timeout if set, else fallback.
func (d Defaults) TimeoutOr(fallback time.Duration) time.Duration {
	if d.Timeout != nil {
		return *d.Timeout
	}
	return fallback
}

// MaxPollIntervalOr returns d.MaxPollInterval if set, else fallback.
func (d Defaults) MaxPollIntervalOr(fallback time.Duration) time.Duration {
	if d.MaxPollInterval != nil {
		return *d.MaxPollInterval
	}
	return fallback
}

// BackupSuffixOr returns d.BackupSuffix if set, else fallback.
func (d Defaults) BackupSuffixOr(fallback string) string {
	if d.BackupSuffix != nil {
		return *d.BackupSuffix
	}
	return fallback
}

// HousekeepSuffixOr returns d.HousekeepSuffix if set, else housekeep's
// built-in default suffix.
func (d Defaults) HousekeepSuffixOr() string {
	if d.HousekeepSuffix != nil {
		return *d.HousekeepSuffix
	}
	return housekeep.DefaultBackupSuffix
}

// VerbosityOr returns d.Verbosity if set, else fallback.
func (d Defaults) VerbosityOr(fallback int) int {
	if d.Verbosity != nil {
		return *d.Verbosity
	}
	return fallback
}
