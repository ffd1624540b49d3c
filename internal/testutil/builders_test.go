package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestManifestBuilder(t *testing.T) {
	t.Parallel()

	yaml := NewManifestBuilder("owners").
		WithFileSource("/data/owners.json").
		WithSourceField("refresh_interval", "1m").
		WithResources("Kustomization", "HelmRelease").
		WithColumn("owner", `.owners[$name].team`).
		WithTestColumn(TestColumn{Name: "issues", Path: "$.issues", Renderer: "IssueBadge", Disabled: true}).
		WithView(":owners", "o").
		YAML()

	assert.Contains(t, yaml, "name: owners\n")
	assert.Contains(t, yaml, "version: \"1.0.0\"\n")
	assert.Contains(t, yaml, "  type: File\n  file_path: /data/owners.json\n  refresh_interval: 1m\n")
	assert.Contains(t, yaml, "resources: [Kustomization, HelmRelease]\n")
	assert.Contains(t, yaml, "    path: \".owners[$name].team\"\n")
	assert.Contains(t, yaml, "    renderer: IssueBadge\n    enabled: false\n")
	assert.Contains(t, yaml, "keybinding: \"o\"")
}

func TestManifestBuilder_Minimal(t *testing.T) {
	t.Parallel()

	yaml := NewManifestBuilder("views-only").WithVersion("2.0.0").Disabled().YAML()

	assert.Equal(t, "name: views-only\nversion: \"2.0.0\"\nenabled: false\n", yaml)
}

func TestManifestBuilder_ClusterService(t *testing.T) {
	t.Parallel()

	yaml := NewManifestBuilder("trivy").
		WithClusterServiceSource("trivy", "trivy-system", 8080, "/summary").
		YAML()

	assert.Contains(t, yaml, "  port: 8080\n")
	assert.Contains(t, yaml, "  namespace: trivy-system\n")
}

func TestManifestBuilder_HTTP(t *testing.T) {
	t.Parallel()

	yaml := NewManifestBuilder("api").WithHTTPSource("https://example.com/api.json").YAML()
	assert.Contains(t, yaml, "  type: Http\n  endpoint: https://example.com/api.json\n")
}
