package plugin

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var pluginNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Validate checks a manifest against the schema and returns the first
// violation as a *ValidationError. Checks run in a fixed order: name,
// version, data source, resources, columns, views, durations, watched
// resources. Validate never modifies the manifest.
func Validate(m *Manifest) error {
	if m == nil {
		return &ValidationError{Field: "manifest", Message: "is nil"}
	}
	checks := []func(*Manifest) error{
		validateName,
		validateVersion,
		validateSource,
		validateResources,
		validateColumns,
		validateViews,
		validateDurations,
		validateWatchedResources,
	}
	for _, check := range checks {
		if err := check(m); err != nil {
			return err
		}
	}
	return nil
}

func validateName(m *Manifest) error {
	if strings.TrimSpace(m.Name) == "" {
		return &ValidationError{Field: "name", Message: "is required", Expected: "name: my-plugin"}
	}
	if !pluginNamePattern.MatchString(m.Name) {
		return &ValidationError{
			Field:    "name",
			Message:  fmt.Sprintf("%q contains invalid characters", m.Name),
			Expected: "letters, digits, '-' and '_' only",
		}
	}
	return nil
}

func validateVersion(m *Manifest) error {
	if strings.TrimSpace(m.Version) == "" {
		return &ValidationError{Field: "version", Message: "is required", Expected: `version: "1.0.0"`}
	}
	return nil
}

func validateSource(m *Manifest) error {
	s := m.Source
	if s == nil {
		return nil
	}
	switch s.Type {
	case SourceClusterService:
		if s.Service == "" {
			return missing("source.service", "ClusterService", "service: trivy-operator")
		}
		if s.Namespace == "" {
			return missing("source.namespace", "ClusterService", "namespace: trivy-system")
		}
		if s.Port == 0 {
			return missing("source.port", "ClusterService", "port: 8080")
		}
		if s.Port < 0 || s.Port > 65535 {
			return &ValidationError{Field: "source.port", Message: fmt.Sprintf("%d is out of range", s.Port), Expected: "1-65535"}
		}
		if s.Path == "" {
			return missing("source.path", "ClusterService", "path: /api/v1/reports")
		}
	case SourceClusterCRD:
		if s.Version == "" {
			return missing("source.version", "ClusterCRD", "version: v1alpha1")
		}
		if s.Plural == "" {
			return missing("source.plural", "ClusterCRD", "plural: vulnerabilityreports")
		}
	case SourceHTTP:
		if s.Endpoint == "" {
			return missing("source.endpoint", "Http", "endpoint: https://example.com/api/data.json")
		}
		u, err := url.Parse(s.Endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return &ValidationError{Field: "source.endpoint", Message: fmt.Sprintf("%q is not an http(s) URL", s.Endpoint), Expected: "https://host/path"}
		}
	case SourceFile:
		if s.FilePath == "" {
			return missing("source.file_path", "File", "file_path: /var/lib/flux9s/owners.json")
		}
	case "":
		return &ValidationError{Field: "source.type", Message: "is required", Expected: "one of " + joinEnum(SourceTypes)}
	default:
		return &ValidationError{Field: "source.type", Message: fmt.Sprintf("unknown type %q", s.Type), Expected: "one of " + joinEnum(SourceTypes)}
	}
	return validateAuth(s.Auth)
}

func validateAuth(a *AuthConfig) error {
	if a == nil {
		return nil
	}
	switch a.Type {
	case AuthNone, "":
	case AuthBearer:
		if a.TokenEnv == "" {
			return missing("source.auth.token_env", "Bearer auth", "token_env: MY_API_TOKEN")
		}
	case AuthBasic:
		if a.Username == "" {
			return missing("source.auth.username", "Basic auth", "username: flux9s")
		}
		if a.PasswordEnv == "" {
			return missing("source.auth.password_env", "Basic auth", "password_env: MY_API_PASSWORD")
		}
	case AuthAPIKey:
		if a.Header == "" {
			return missing("source.auth.header", "ApiKey auth", "header: X-API-Key")
		}
		if a.TokenEnv == "" {
			return missing("source.auth.token_env", "ApiKey auth", "token_env: MY_API_KEY")
		}
	default:
		return &ValidationError{Field: "source.auth.type", Message: fmt.Sprintf("unknown type %q", a.Type), Expected: "one of " + joinEnum(AuthTypes)}
	}
	return nil
}

func validateResources(m *Manifest) error {
	if m.Source != nil && len(m.Resources) == 0 {
		return &ValidationError{
			Field:    "resources",
			Message:  "must list at least one resource kind when source is set",
			Expected: "resources: [Kustomization, HelmRelease]",
		}
	}
	for i, r := range m.Resources {
		if strings.TrimSpace(r) == "" {
			return &ValidationError{Field: fmt.Sprintf("resources[%d]", i), Message: "is empty", Expected: "a resource kind"}
		}
	}
	return nil
}

func validateColumns(m *Manifest) error {
	if err := validateColumnList("columns", m.Columns); err != nil {
		return err
	}
	for _, view := range m.ViewNames() {
		if err := validateColumnList(fmt.Sprintf("view_columns.%s", view), m.ViewColumns[view]); err != nil {
			return err
		}
	}
	return nil
}

func validateColumnList(field string, columns []ColumnConfig) error {
	seen := make(map[string]int, len(columns))
	for i, c := range columns {
		if first, dup := seen[c.Name]; dup {
			return &ValidationError{
				Field:    fmt.Sprintf("%s[%d].name", field, i),
				Message:  fmt.Sprintf("duplicate column name %q (also %s[%d])", c.Name, field, first),
				Expected: "unique column names within a plugin",
			}
		}
		seen[c.Name] = i
	}
	for i, c := range columns {
		prefix := fmt.Sprintf("%s[%d]", field, i)
		if strings.TrimSpace(c.Name) == "" {
			return &ValidationError{Field: prefix + ".name", Message: "is required", Expected: "name: owner"}
		}
		if strings.TrimSpace(c.Path) == "" {
			return &ValidationError{Field: prefix + ".path", Message: "is required", Expected: "path: $.owner"}
		}
		if c.Width <= 0 {
			return &ValidationError{Field: prefix + ".width", Message: fmt.Sprintf("must be positive, got %d", c.Width), Expected: "width: 12"}
		}
		if _, err := CompilePath(c.Path); err != nil {
			return &ValidationError{Field: prefix + ".path", Message: err.Error(), Expected: "a JSONPath-like or jq expression"}
		}
	}
	return nil
}

func validateViews(m *Manifest) error {
	names := make(map[string]int, len(m.Views))
	keys := make(map[string]int, len(m.Views))
	for i, v := range m.Views {
		prefix := fmt.Sprintf("views[%d]", i)
		if first, dup := names[v.Name]; dup {
			return &ValidationError{Field: prefix + ".name", Message: fmt.Sprintf("duplicate view name %q (also views[%d])", v.Name, first), Expected: "unique view names within a plugin"}
		}
		names[v.Name] = i
		if first, dup := keys[v.Keybinding]; dup {
			return &ValidationError{Field: prefix + ".keybinding", Message: fmt.Sprintf("duplicate keybinding %q (also views[%d])", v.Keybinding, first), Expected: "unique keybindings within a plugin"}
		}
		keys[v.Keybinding] = i
	}
	for i, v := range m.Views {
		prefix := fmt.Sprintf("views[%d]", i)
		if strings.TrimSpace(v.Name) == "" {
			return &ValidationError{Field: prefix + ".name", Message: "is required", Expected: "name: vulnerabilities"}
		}
		if !isCommand(v.Keybinding) {
			return &ValidationError{Field: prefix + ".keybinding", Message: fmt.Sprintf("%q must start with ':'", v.Keybinding), Expected: "keybinding: :vulns"}
		}
	}
	return nil
}

func validateDurations(m *Manifest) error {
	if m.Source == nil {
		return nil
	}
	if s := m.Source.RefreshInterval; s != nil && !IsValidDuration(*s) {
		return &ValidationError{Field: "source.refresh_interval", Message: fmt.Sprintf("%q is not a valid duration", *s), Expected: "a number followed by ms, s, m or h, e.g. 30s"}
	}
	if s := m.Source.Timeout; s != nil && !IsValidDuration(*s) {
		return &ValidationError{Field: "source.timeout", Message: fmt.Sprintf("%q is not a valid duration", *s), Expected: "a number followed by ms, s, m or h, e.g. 5s"}
	}
	return nil
}

func validateWatchedResources(m *Manifest) error {
	for i, w := range m.WatchedResources {
		prefix := fmt.Sprintf("watched_resources[%d]", i)
		if w.Kind == "" {
			return &ValidationError{Field: prefix + ".kind", Message: "is required", Expected: "kind: ExternalSecret"}
		}
		if w.Version == "" {
			return &ValidationError{Field: prefix + ".version", Message: "is required", Expected: "version: v1beta1"}
		}
		if w.Command != "" && !isCommand(w.Command) {
			return &ValidationError{Field: prefix + ".command", Message: fmt.Sprintf("%q must start with ':'", w.Command), Expected: "command: :externalsecrets"}
		}
		if err := validateColumnList(prefix+".columns", w.Columns); err != nil {
			return err
		}
	}
	return nil
}

func isCommand(s string) bool {
	return len(s) > 1 && strings.HasPrefix(s, ":")
}

func missing(field, owner, example string) error {
	return &ValidationError{Field: field, Message: "is required for " + owner + " sources", Expected: example}
}
