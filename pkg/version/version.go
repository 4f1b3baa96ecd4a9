// Package version exposes build metadata set through -ldflags.
package version

import (
	"fmt"
	"runtime"
)

var (
	// Version is the release tag.
	Version = "dev"
	// GitCommit is the source revision.
	GitCommit = "unknown"
	// BuildDate is the build timestamp.
	BuildDate = "unknown"
	// GoVersion is the toolchain that built the binary.
	GoVersion = runtime.Version()
)

// Info is the build metadata in a form suitable for JSON output.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns the current build metadata.
func Get() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: GoVersion,
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String renders a one-line version banner.
func (i Info) String() string {
	return fmt.Sprintf("pulse %s (commit %s, built %s, %s %s)",
		i.Version, i.GitCommit, i.BuildDate, i.GoVersion, i.Platform)
}
