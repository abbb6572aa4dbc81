// Package buildinfo holds the version metadata stamped in at link time via
// -ldflags, following the pack's convention of package-level string vars
// overridden by the release build (see the other CLI entrypoints in the
// pack that expose a `version` subcommand off similarly-named vars).
package buildinfo

// Version, Commit, and Date are overridden by -ldflags
// "-X github.com/termfx/mutx/internal/buildinfo.Version=..." at release
// build time. The zero values below are what a `go build` without ldflags
// produces, which is the expected shape for local/dev builds.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String renders the one-line version banner used by `mutx version`.
func String() string {
	return "mutx " + Version + " (" + Commit + ", " + Date + ")"
}
