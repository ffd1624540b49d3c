package plugin

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string { return &s }

func validManifest() *Manifest {
	return &Manifest{
		Name:    "owners",
		Version: "1.0.0",
		Enabled: true,
		Source: &DataSourceConfig{
			Type:            SourceHTTP,
			Endpoint:        "https://example.com/owners.json",
			RefreshInterval: ptr("30s"),
			Timeout:         ptr("5s"),
		},
		Resources: []string{"Kustomization"},
		Columns: []ColumnConfig{
			{Name: "owner", Path: "$.owner", Width: 12, Enabled: true, Renderer: RendererText},
			{Name: "issues", Path: "$.issues", Width: 6, Enabled: true, Renderer: RendererIssueBadge},
		},
		Views: []ViewConfig{
			{Name: "owners", Keybinding: ":owners"},
		},
	}
}

func TestValidate_Valid(t *testing.T) {
	require.NoError(t, Validate(validManifest()))

	require.NoError(t, Validate(&Manifest{Name: "watch_only", Version: "0.1"}))
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m *Manifest)
		field  string
	}{
		{"nil source endpoint", func(m *Manifest) { m.Source.Endpoint = "" }, "source.endpoint"},
		{"empty name", func(m *Manifest) { m.Name = "" }, "name"},
		{"name charset", func(m *Manifest) { m.Name = "my plugin" }, "name"},
		{"name path traversal", func(m *Manifest) { m.Name = "../etc" }, "name"},
		{"empty version", func(m *Manifest) { m.Version = " " }, "version"},
		{"endpoint not a url", func(m *Manifest) { m.Source.Endpoint = "example.com/owners" }, "source.endpoint"},
		{"missing source type", func(m *Manifest) { m.Source.Type = "" }, "source.type"},
		{"cluster service service", func(m *Manifest) {
			m.Source = &DataSourceConfig{Type: SourceClusterService, Namespace: "ns", Port: 80, Path: "/"}
		}, "source.service"},
		{"cluster service namespace", func(m *Manifest) {
			m.Source = &DataSourceConfig{Type: SourceClusterService, Service: "svc", Port: 80, Path: "/"}
		}, "source.namespace"},
		{"cluster service port", func(m *Manifest) {
			m.Source = &DataSourceConfig{Type: SourceClusterService, Service: "svc", Namespace: "ns", Path: "/"}
		}, "source.port"},
		{"cluster service port range", func(m *Manifest) {
			m.Source = &DataSourceConfig{Type: SourceClusterService, Service: "svc", Namespace: "ns", Port: 70000, Path: "/"}
		}, "source.port"},
		{"cluster service path", func(m *Manifest) {
			m.Source = &DataSourceConfig{Type: SourceClusterService, Service: "svc", Namespace: "ns", Port: 80}
		}, "source.path"},
		{"crd version", func(m *Manifest) {
			m.Source = &DataSourceConfig{Type: SourceClusterCRD, Plural: "reports"}
		}, "source.version"},
		{"crd plural", func(m *Manifest) {
			m.Source = &DataSourceConfig{Type: SourceClusterCRD, Version: "v1"}
		}, "source.plural"},
		{"file path", func(m *Manifest) { m.Source = &DataSourceConfig{Type: SourceFile} }, "source.file_path"},
		{"bearer token env", func(m *Manifest) { m.Source.Auth = &AuthConfig{Type: AuthBearer} }, "source.auth.token_env"},
		{"basic username", func(m *Manifest) {
			m.Source.Auth = &AuthConfig{Type: AuthBasic, PasswordEnv: "PW"}
		}, "source.auth.username"},
		{"basic password env", func(m *Manifest) {
			m.Source.Auth = &AuthConfig{Type: AuthBasic, Username: "u"}
		}, "source.auth.password_env"},
		{"api key header", func(m *Manifest) {
			m.Source.Auth = &AuthConfig{Type: AuthAPIKey, TokenEnv: "KEY"}
		}, "source.auth.header"},
		{"api key token env", func(m *Manifest) {
			m.Source.Auth = &AuthConfig{Type: AuthAPIKey, Header: "X-Key"}
		}, "source.auth.token_env"},
		{"resources empty", func(m *Manifest) { m.Resources = nil }, "resources"},
		{"resource blank", func(m *Manifest) { m.Resources = []string{"Kustomization", ""} }, "resources[1]"},
		{"duplicate column", func(m *Manifest) { m.Columns[1].Name = "owner" }, "columns[1].name"},
		{"column empty name", func(m *Manifest) { m.Columns[0].Name = "" }, "columns[0].name"},
		{"column empty path", func(m *Manifest) { m.Columns[1].Path = "" }, "columns[1].path"},
		{"column zero width", func(m *Manifest) { m.Columns[1].Width = 0 }, "columns[1].width"},
		{"column bad path", func(m *Manifest) { m.Columns[0].Path = "$.items[" }, "columns[0].path"},
		{"view column zero width", func(m *Manifest) {
			m.ViewColumns = map[string][]ColumnConfig{"owners": {{Name: "team", Path: ".team"}}}
		}, "view_columns.owners[0].width"},
		{"duplicate view name", func(m *Manifest) {
			m.Views = append(m.Views, ViewConfig{Name: "owners", Keybinding: ":o"})
		}, "views[1].name"},
		{"duplicate keybinding", func(m *Manifest) {
			m.Views = append(m.Views, ViewConfig{Name: "teams", Keybinding: ":owners"})
		}, "views[1].keybinding"},
		{"keybinding without colon", func(m *Manifest) { m.Views[0].Keybinding = "owners" }, "views[0].keybinding"},
		{"keybinding bare colon", func(m *Manifest) { m.Views[0].Keybinding = ":" }, "views[0].keybinding"},
		{"view empty name", func(m *Manifest) { m.Views[0].Name = "" }, "views[0].name"},
		{"refresh interval", func(m *Manifest) { m.Source.RefreshInterval = ptr("30") }, "source.refresh_interval"},
		{"empty refresh interval", func(m *Manifest) { m.Source.RefreshInterval = ptr("") }, "source.refresh_interval"},
		{"timeout", func(m *Manifest) { m.Source.Timeout = ptr("1x") }, "source.timeout"},
		{"empty timeout", func(m *Manifest) { m.Source.Timeout = ptr("") }, "source.timeout"},
		{"watched kind", func(m *Manifest) {
			m.WatchedResources = []WatchedResourceConfig{{Version: "v1"}}
		}, "watched_resources[0].kind"},
		{"watched version", func(m *Manifest) {
			m.WatchedResources = []WatchedResourceConfig{{Kind: "Certificate"}}
		}, "watched_resources[0].version"},
		{"watched command", func(m *Manifest) {
			m.WatchedResources = []WatchedResourceConfig{{Kind: "Certificate", Version: "v1", Command: "certs"}}
		}, "watched_resources[0].command"},
		{"watched column", func(m *Manifest) {
			m.WatchedResources = []WatchedResourceConfig{{Kind: "Certificate", Version: "v1", Columns: []ColumnConfig{{Name: "ready", Width: 5}}}}
		}, "watched_resources[0].columns[0].path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validManifest()
			tt.mutate(m)

			err := Validate(m)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.NotEmpty(t, verr.Message)
		})
	}
}

func TestValidate_FailFastOrder(t *testing.T) {
	m := validManifest()
	m.Name = ""
	m.Version = ""
	m.Source.Endpoint = ""
	m.Views[0].Keybinding = "bad"

	var verr *ValidationError
	require.ErrorAs(t, Validate(m), &verr)
	assert.Equal(t, "name", verr.Field)

	m.Name = "owners"
	require.ErrorAs(t, Validate(m), &verr)
	assert.Equal(t, "version", verr.Field)
}

func TestValidate_KeybindingRejectedRegardless(t *testing.T) {
	m := &Manifest{
		Name:    "views-only",
		Version: "1",
		Views:   []ViewConfig{{Name: "v", Keybinding: "v"}},
	}

	var verr *ValidationError
	require.ErrorAs(t, Validate(m), &verr)
	assert.Equal(t, "views[0].keybinding", verr.Field)
	assert.Contains(t, verr.Error(), "must start with ':'")
}

func TestValidate_Nil(t *testing.T) {
	assert.True(t, IsValidationError(Validate(nil)))
}

func TestValidate_DoesNotModify(t *testing.T) {
	m := validManifest()
	m.Source.RefreshInterval = nil
	before := *m.Source

	require.NoError(t, Validate(m))
	assert.Equal(t, before, *m.Source)
}

func TestValidate_EmptyDurationFromYAML(t *testing.T) {
	base := `name: local
version: "1.0.0"
source:
  type: File
  file_path: /tmp/owners.json
resources: [Kustomization]
`
	tests := []struct {
		name  string
		extra string
		field string
	}{
		{"refresh interval", "  refresh_interval: \"\"\n", "source.refresh_interval"},
		{"timeout", "  timeout: \"\"\n", "source.timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			yamlDoc := strings.Replace(base, "resources:", tt.extra+"resources:", 1)
			m, err := ParseManifest([]byte(yamlDoc))
			require.NoError(t, err)

			var verr *ValidationError
			require.ErrorAs(t, Validate(m), &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	m, err := ParseManifest([]byte(base))
	require.NoError(t, err)
	require.NoError(t, Validate(m))
	assert.Nil(t, m.Source.RefreshInterval)
	assert.Equal(t, DefaultRefreshInterval, m.Source.RefreshTTL())
}
