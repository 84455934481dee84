package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func restore(t *testing.T) {
	v, b, c := Version, BuildTime, GitCommit
	t.Cleanup(func() { Version, BuildTime, GitCommit = v, b, c })
}

func TestString(t *testing.T) {
	restore(t)
	Version, GitCommit, BuildTime = "v1.2.0", "0123456789abcdef", "2024-05-01T10:00:00Z"

	assert.Equal(t, "v1.2.0 (0123456) 2024-05-01T10:00:00Z", String())

	GitCommit = "abc"
	assert.Equal(t, "v1.2.0 (abc) 2024-05-01T10:00:00Z", String())
}

func TestFromBuildInfo(t *testing.T) {
	restore(t)
	Version, GitCommit, BuildTime = "dev", "unknown", "unknown"

	fromBuildInfo(&debug.BuildInfo{
		Main: debug.Module{Version: "v0.3.1"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "deadbeefcafe"},
			{Key: "vcs.time", Value: "2024-06-01T00:00:00Z"},
			{Key: "GOOS", Value: "linux"},
		},
	})

	assert.Equal(t, "v0.3.1", Version)
	assert.Equal(t, "deadbeefcafe", GitCommit)
	assert.Equal(t, "2024-06-01T00:00:00Z", BuildTime)
}

func TestFromBuildInfoKeepsDevelVersion(t *testing.T) {
	restore(t)
	Version = "dev"

	fromBuildInfo(&debug.BuildInfo{Main: debug.Module{Version: "(devel)"}})
	assert.Equal(t, "dev", Version)
}
