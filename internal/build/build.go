// Package build carries version information set at link time.
package build

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)
