// Package build carries version information stamped in at link time via
// -ldflags "-X github.com/sbuerk/dbdoctor/pkg/build.Version=...".
package build

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
	BuiltBy = "unknown"
)
