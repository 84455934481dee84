// Package version provides build-time version information.
package version

import (
	"fmt"
	"runtime/debug"
)

// These variables are set at build time using -ldflags. When installed
// with `go install module@version` they are filled from the build info.
var (
	// Version is the semantic version
	Version = "dev"

	// BuildTime is the UTC time when the binary was built
	BuildTime = "unknown"

	// GitCommit is the git commit hash
	GitCommit = "unknown"
)

func init() {
	if Version != "dev" {
		return
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	fromBuildInfo(info)
}

func fromBuildInfo(info *debug.BuildInfo) {
	if mv := info.Main.Version; mv != "" && mv != "(devel)" {
		Version = mv
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			GitCommit = s.Value
		case "vcs.time":
			BuildTime = s.Value
		}
	}
}

// String returns "version (commit) build-time" with a short commit hash.
func String() string {
	short := GitCommit
	if len(short) > 7 {
		short = short[:7]
	}
	return fmt.Sprintf("%s (%s) %s", Version, short, BuildTime)
}
