package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo(t *testing.T) {
	oldVersion, oldCommit, oldDate := Version, Commit, Date
	t.Cleanup(func() { Version, Commit, Date = oldVersion, oldCommit, oldDate })

	Version, Commit, Date = "v3.1.0", "a1b2c3d", "2026-10-19T12:00:00Z"
	assert.Equal(t, "obs version v3.1.0 (commit: a1b2c3d, built: 2026-10-19T12:00:00Z)", Info())
	assert.Contains(t, FullInfo(), "go: "+GoVersion)
}
