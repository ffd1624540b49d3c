package plugin

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// manifestTemplateStr is the commented starter manifest written by "plugin init".
const manifestTemplateStr = `# flux9s plugin manifest.
# Install with: flux9s plugin install {{.Name}}.yaml
name: {{.Name}}
version: "0.1.0"
description: Adds {{.Name}} data to the Kustomization and HelmRelease views
enabled: true

# Where the plugin fetches data. One of ClusterService, Http, File.
#
#   ClusterService: service, namespace, port, path
#       URL is http://<service>.<namespace><cluster domain>:<port><path>
#   Http:           endpoint
#   File:           file_path (a local JSON file)
source:
  type: Http
  endpoint: https://example.com/api/{{.Name}}.json
  # Secrets are read from environment variables at fetch time.
  # auth:
  #   type: Bearer          # None, Bearer, Basic or ApiKey
  #   token_env: {{.EnvPrefix}}_TOKEN
  refresh_interval: 30s   # <number>(ms|s|m|h)
  timeout: 5s

# Resource kinds that get the extra columns.
resources:
  - Kustomization
  - HelmRelease

# Column paths are evaluated against the fetched JSON. $name, $namespace
# and $kind refer to the row being rendered.
columns:
  - name: {{.Name}}-owner
    path: '.owners[$namespace + "/" + $name].team'
    width: 14
    renderer: Text       # Text, IssueBadge, PercentageBar, Duration, StatusBadge, Age, Boolean
  - name: {{.Name}}-issues
    path: '.owners[$namespace + "/" + $name].issues'
    width: 8
    renderer: IssueBadge

# Custom views open with a ':' command.
# views:
#   - name: {{.Name}}
#     keybinding: ":{{.Name}}"
#     resource: Kustomization

# Custom resources shown as new views.
# watched_resources:
#   - kind: ExternalSecret
#     group: external-secrets.io
#     version: v1beta1
#     command: ":externalsecrets"
#     status:
#       ready_path: '.status.conditions[] | select(.type == "Ready") | .status'
`

var manifestTemplate = template.Must(template.New("manifest").Parse(manifestTemplateStr))

type manifestTemplateData struct {
	Name      string
	EnvPrefix string
}

// Template renders a commented starter manifest for a new plugin.
func Template(name string) ([]byte, error) {
	if name == "" {
		return nil, ErrEmptyPluginName
	}
	if !pluginNamePattern.MatchString(name) {
		return nil, &ValidationError{Field: "name", Message: fmt.Sprintf("%q contains invalid characters", name), Expected: "letters, digits, '-' and '_' only"}
	}

	var buf bytes.Buffer
	if err := manifestTemplate.Execute(&buf, manifestTemplateData{
		Name:      name,
		EnvPrefix: envPrefix(name),
	}); err != nil {
		return nil, fmt.Errorf("rendering manifest template: %w", err)
	}
	return buf.Bytes(), nil
}

func envPrefix(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}
