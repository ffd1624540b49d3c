package main

import (
	"path/filepath"
	"testing"

	"github.com/felixgeelhaar/flux9s/internal/config"
	"github.com/felixgeelhaar/flux9s/internal/testutil"
)

// resetFlags restores the global flag variables after a test.
func resetFlags(t *testing.T) {
	t.Helper()
	saved := []string{cfgFile, pluginsDir, clusterDomain, kubeconfig, kubeContext}
	savedVerbose := verbose
	t.Cleanup(func() {
		cfgFile, pluginsDir, clusterDomain, kubeconfig, kubeContext = saved[0], saved[1], saved[2], saved[3], saved[4]
		verbose = savedVerbose
	})
}

// testConfig returns settings rooted in a temp dir with no usable kubeconfig.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.PluginsDir = filepath.Join(root, "plugins")
	cfg.Kubeconfig = filepath.Join(root, "no-kubeconfig")
	cfg.LogLevel = "error"
	return cfg
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	return testutil.WriteTempFile(t, filepath.Dir(path), filepath.Base(path), content)
}

func fileManifest(name, dataPath string) string {
	return testutil.NewManifestBuilder(name).
		WithFileSource(dataPath).
		WithResources("Kustomization").
		WithColumn(name+"-team", "$.team").
		YAML()
}
