package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRunningInDocker(t *testing.T) {
	old := dockerEnvPath
	t.Cleanup(func() { dockerEnvPath = old })

	dockerEnvPath = filepath.Join(t.TempDir(), ".dockerenv")
	assert.False(t, IsRunningInDocker())

	require.NoError(t, os.WriteFile(dockerEnvPath, nil, 0o644))
	assert.True(t, IsRunningInDocker())
}
