package secretservice

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRequiresPassword(t *testing.T) {
	t.Setenv(passwordEnvVar, "")
	ResetDefaultForTest()

	_, err := Default()
	assert.Error(t, err)
}

func TestDefaultIsASingleton(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(passwordEnvVar, "password")
	t.Setenv(pathEnvVar, filepath.Join(dir, "default.jwe"))
	ResetDefaultForTest()
	t.Cleanup(ResetDefaultForTest)

	first, err := Default()
	require.NoError(t, err)
	second, err := Default()
	require.NoError(t, err)
	assert.Same(t, first, second)
}
