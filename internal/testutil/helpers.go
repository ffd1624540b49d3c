// Package testutil provides test helpers and utilities for flux9s tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// WriteTempFile writes content to dir/filename, creating dir if needed.
func WriteTempFile(t *testing.T, dir, filename, content string) string {
	t.Helper()

	require.NoError(t, os.MkdirAll(dir, 0o755), "failed to create directory: %s", dir)
	path := filepath.Join(dir, filename)
	err := os.WriteFile(path, []byte(content), 0o644)
	require.NoError(t, err, "failed to write temp file: %s", filename)

	return path
}

// WriteManifest writes the builder's manifest to dir/<name>.yaml.
func WriteManifest(t *testing.T, dir string, b *ManifestBuilder) string {
	t.Helper()
	return WriteTempFile(t, dir, b.Name()+".yaml", b.YAML())
}
