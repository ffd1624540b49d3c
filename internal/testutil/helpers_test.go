package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteTempFile(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested", "plugins")
	path := WriteTempFile(t, dir, "a.yaml", "name: a\n")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "name: a\n", string(data))
}

func TestWriteManifest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := WriteManifest(t, dir, NewManifestBuilder("owners"))

	assert.Equal(t, filepath.Join(dir, "owners.yaml"), path)
	assert.FileExists(t, path)
}
