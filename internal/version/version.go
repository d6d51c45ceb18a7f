// Package version reports build metadata.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

// Set with -ldflags "-X github.com/smazurov/camrelay/internal/version.Version=..."
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	BuildID   = "unknown"
)

// Info contains version and build metadata.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	BuildID   string `json:"build_id"`
	GoVersion string `json:"go_version"`
	Compiler  string `json:"compiler"`
	Platform  string `json:"platform"`
}

var vcsOnce = sync.OnceValues(func() (revision, at string) {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.time":
			at = s.Value
		}
	}
	return revision, at
})

// Get returns version and build information. Commit and date fall back to
// the VCS stamp the go tool embeds when ldflags did not set them.
func Get() Info {
	info := Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		BuildID:   BuildID,
		GoVersion: runtime.Version(),
		Compiler:  runtime.Compiler,
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
	revision, at := vcsOnce()
	if info.GitCommit == "unknown" && revision != "" {
		info.GitCommit = shortRevision(revision)
	}
	if info.BuildDate == "unknown" && at != "" {
		info.BuildDate = at
	}
	return info
}

func shortRevision(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}

// String returns the version with the commit, e.g. "1.2.0 (abc1234)".
func String() string {
	info := Get()
	if info.GitCommit == "unknown" {
		return info.Version
	}
	return fmt.Sprintf("%s (%s)", info.Version, info.GitCommit)
}
