package version

import (
	"encoding/json"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	info := Get()
	assert.Equal(t, Version, info.Version)
	assert.Equal(t, GitCommit, info.GitCommit)
	assert.Equal(t, runtime.Version(), info.GoVersion)
}

func TestInfoString(t *testing.T) {
	info := Info{Version: "1.2.3", GitCommit: "abc123", GoVersion: "go1.25.1"}
	assert.Equal(t, "agentkit 1.2.3 (abc123, go1.25.1)", info.String())
}

func TestInfoJSON(t *testing.T) {
	info := Info{Version: "1.2.3", GitCommit: "abc123", GoVersion: "go1.25.1"}

	out, err := info.JSON()
	require.NoError(t, err)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "1.2.3", decoded["version"])
	assert.Equal(t, "abc123", decoded["gitCommit"])
	assert.Equal(t, "go1.25.1", decoded["goVersion"])
}
