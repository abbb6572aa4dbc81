package cli

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/termfx/mutx/internal/housekeep"
)

// HousekeepOptions mirrors the `housekeep {locks|backups|all}` flag set.
type HousekeepOptions struct {
	Mode string // "locks", "backups", or "all"

	Dir         string // used for locks/backups when LocksDir/BackupsDir unset
	LocksDir    string // all-mode override
	BackupsDir  string // all-mode override
	Recursive   bool
	OlderThan   time.Duration
	KeepNewest  int
	Suffix      string
	DryRun      bool
}

// HousekeepSummary aggregates results across whichever sub-scans ran.
type HousekeepSummary struct {
	Locks   housekeep.Result
	Backups housekeep.Result
}

// RunHousekeep always completes successfully at the exit-code level — per
// spec.md §6, housekeep's exit status is 0 whenever the scan itself
// completed, regardless of how many files were found or removed. Per-file
// errors are folded into Result.Skipped rather than returned.
func RunHousekeep(opts HousekeepOptions, log zerolog.Logger) (HousekeepSummary, error) {
	hkOpts := housekeep.Options{
		Recursive:  opts.Recursive,
		OlderThan:  opts.OlderThan,
		KeepNewest: opts.KeepNewest,
		Suffix:     opts.Suffix,
		DryRun:     opts.DryRun,
	}

	var summary HousekeepSummary

	locksDir := opts.Dir
	if opts.LocksDir != "" {
		locksDir = opts.LocksDir
	}
	backupsDir := opts.Dir
	if opts.BackupsDir != "" {
		backupsDir = opts.BackupsDir
	}

	if opts.Mode == "locks" || opts.Mode == "all" {
		res, err := housekeep.CleanLocks(locksDir, hkOpts)
		if err != nil {
			return summary, err
		}
		summary.Locks = res
		for _, p := range res.Skipped {
			log.Warn().Str("path", p).Msg("lock file skipped after a per-file error")
		}
		log.Info().Int("scheduled", len(res.Scheduled)).Int("deleted", len(res.Deleted)).Msg("clean-locks complete")
	}

	if opts.Mode == "backups" || opts.Mode == "all" {
		res, err := housekeep.CleanBackups(backupsDir, hkOpts)
		if err != nil {
			return summary, err
		}
		summary.Backups = res
		for _, p := range res.Skipped {
			log.Warn().Str("path", p).Msg("backup file skipped after a per-file error")
		}
		log.Info().Int("scheduled", len(res.Scheduled)).Int("deleted", len(res.Deleted)).Msg("clean-backups complete")
	}

	return summary, nil
}
