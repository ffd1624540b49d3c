package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const trivyManifest = `
name: trivy
version: 1.2.0
description: Vulnerability counts from the trivy operator
source:
  type: ClusterService
  service: trivy-operator
  namespace: trivy-system
  port: 8080
  path: /api/v1/reports
  refresh_interval: 1m
resources:
  - Kustomization
  - HelmRelease
columns:
  - name: vulns
    path: $.summary.critical
    renderer: issue-badge
  - name: scanned
    path: $.lastScan
    width: 8
    enabled: false
    renderer: Age
views:
  - name: vulnerabilities
    keybinding: ":vulns"
view_columns:
  vulnerabilities:
    - name: severity
      path: $.severity
watched_resources:
  - kind: VulnerabilityReport
    group: aquasecurity.github.io
    version: v1alpha1
    command: ":vr"
`

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest([]byte(trivyManifest))
	require.NoError(t, err)

	assert.Equal(t, "trivy", m.Name)
	assert.Equal(t, "1.2.0", m.Version)
	assert.True(t, m.Enabled)
	assert.Equal(t, "trivy@1.2.0", m.String())

	require.NotNil(t, m.Source)
	assert.Equal(t, SourceClusterService, m.Source.Type)
	assert.Equal(t, 8080, m.Source.Port)
	assert.Equal(t, SourceClusterService, m.SourceType())
	assert.Equal(t, "1m0s", m.RefreshTTL().String())

	require.Len(t, m.Columns, 2)
	assert.Equal(t, ColumnConfig{Name: "vulns", Path: "$.summary.critical", Width: DefaultColumnWidth, Enabled: true, Renderer: RendererIssueBadge}, m.Columns[0])
	assert.Equal(t, ColumnConfig{Name: "scanned", Path: "$.lastScan", Width: 8, Enabled: false, Renderer: RendererAge}, m.Columns[1])

	require.Len(t, m.ViewColumns["vulnerabilities"], 1)
	assert.Equal(t, RendererText, m.ViewColumns["vulnerabilities"][0].Renderer)

	require.Len(t, m.WatchedResources, 1)
	w := m.WatchedResources[0]
	assert.True(t, w.SupportsYAML)
	assert.True(t, w.SupportsDescribe)
	assert.False(t, w.SupportsLogs)
}

func TestParseManifest_Defaults(t *testing.T) {
	m, err := ParseManifest([]byte("name: bare\nversion: \"1\"\n"))
	require.NoError(t, err)

	assert.True(t, m.Enabled)
	assert.False(t, m.IsEnrichment())
	assert.Equal(t, SourceType(""), m.SourceType())
	assert.Equal(t, DefaultRefreshInterval, m.RefreshTTL())
}

func TestParseManifest_Disabled(t *testing.T) {
	m, err := ParseManifest([]byte("name: off\nversion: \"1\"\nenabled: false\n"))
	require.NoError(t, err)
	assert.False(t, m.Enabled)
}

func TestParseManifest_TypeAliases(t *testing.T) {
	m, err := ParseManifest([]byte(`
name: api
version: "1"
source:
  source_type: http
  endpoint: https://example.com/data.json
  auth:
    auth_type: api_key
    header: X-API-Key
    token_env: API_KEY
`))
	require.NoError(t, err)
	assert.Equal(t, SourceHTTP, m.Source.Type)
	assert.Equal(t, AuthAPIKey, m.Source.Auth.Type)
	assert.Equal(t, "API_KEY", m.Source.Auth.TokenEnv)
}

func TestParseManifest_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"malformed yaml", "name: [unclosed\n"},
		{"wrong shape", "- a\n- b\n"},
		{"unknown source type", "name: x\nversion: '1'\nsource:\n  type: Ftp\n"},
		{"unknown renderer", "name: x\nversion: '1'\ncolumns:\n  - name: a\n    path: .a\n    renderer: Sparkline\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseManifest([]byte(tt.data))
			require.Error(t, err)
			assert.True(t, IsInvalidManifest(err), "got %T: %v", err, err)
		})
	}
}

func TestManifest_Accessors(t *testing.T) {
	m, err := ParseManifest([]byte(trivyManifest))
	require.NoError(t, err)

	assert.True(t, m.IsEnrichment())
	assert.True(t, m.Enhances("kustomization"))
	assert.False(t, m.Enhances("GitRepository"))

	enabled := m.EnabledColumns()
	require.Len(t, enabled, 1)
	assert.Equal(t, "vulns", enabled[0].Name)

	col, ok := m.Column("scanned")
	assert.True(t, ok)
	assert.Equal(t, 8, col.Width)
	_, ok = m.Column("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"vulnerabilities"}, m.ViewNames())
}

func TestPlugin_ID(t *testing.T) {
	p := &Plugin{Manifest: &Manifest{Name: "owners", Version: "0.3.0"}}
	assert.Equal(t, "owners", p.ID())
	assert.Equal(t, "owners@0.3.0", p.String())
}

func TestParseSourceType(t *testing.T) {
	tests := []struct {
		in   string
		want SourceType
	}{
		{"ClusterService", SourceClusterService},
		{"cluster-service", SourceClusterService},
		{"cluster_crd", SourceClusterCRD},
		{"HTTP", SourceHTTP},
		{"file", SourceFile},
	}
	for _, tt := range tests {
		got, err := ParseSourceType(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseSourceType("grpc")
	assert.ErrorContains(t, err, "ClusterService, ClusterCRD, Http, File")
}

func TestSourceType_RequiresCluster(t *testing.T) {
	assert.True(t, SourceClusterService.RequiresCluster())
	assert.True(t, SourceClusterCRD.RequiresCluster())
	assert.False(t, SourceHTTP.RequiresCluster())
	assert.False(t, SourceFile.RequiresCluster())
}

func TestParseAuthType(t *testing.T) {
	got, err := ParseAuthType("apikey")
	require.NoError(t, err)
	assert.Equal(t, AuthAPIKey, got)

	got, err = ParseAuthType("BASIC")
	require.NoError(t, err)
	assert.Equal(t, AuthBasic, got)

	_, err = ParseAuthType("oauth")
	assert.Error(t, err)
}

func TestDataSourceConfig_RefreshTTL(t *testing.T) {
	var nilSource *DataSourceConfig
	assert.Equal(t, DefaultRefreshInterval, nilSource.RefreshTTL())
	assert.Equal(t, DefaultRefreshInterval, (&DataSourceConfig{RefreshInterval: ptr("soon")}).RefreshTTL())
	assert.Equal(t, "500ms", (&DataSourceConfig{RefreshInterval: ptr("500ms")}).RefreshTTL().String())
}
