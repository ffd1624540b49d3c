package plugin

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SourceType selects the connector backend for a data source.
type SourceType string

// Supported source types. ClusterCRD is reserved: it validates but no
// connector can be built for it yet.
const (
	SourceClusterService SourceType = "ClusterService"
	SourceClusterCRD     SourceType = "ClusterCRD"
	SourceHTTP           SourceType = "Http"
	SourceFile           SourceType = "File"
)

// SourceTypes lists every source type in documentation order.
var SourceTypes = []SourceType{SourceClusterService, SourceClusterCRD, SourceHTTP, SourceFile}

// ParseSourceType accepts the canonical names as well as lower, kebab and
// snake case spellings ("cluster-service", "http", "FILE").
func ParseSourceType(s string) (SourceType, error) {
	for _, t := range SourceTypes {
		if normalizeEnum(s) == normalizeEnum(string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown source type %q (expected one of %s)", s, joinEnum(SourceTypes))
}

// UnmarshalYAML decodes a source type name.
func (t *SourceType) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseSourceType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// RequiresCluster reports whether the source type needs a cluster client.
func (t SourceType) RequiresCluster() bool {
	return t == SourceClusterService || t == SourceClusterCRD
}

// AuthType selects how an HTTP connector authenticates.
type AuthType string

// Supported authentication schemes.
const (
	AuthNone   AuthType = "None"
	AuthBearer AuthType = "Bearer"
	AuthBasic  AuthType = "Basic"
	AuthAPIKey AuthType = "ApiKey"
)

// AuthTypes lists every auth type in documentation order.
var AuthTypes = []AuthType{AuthNone, AuthBearer, AuthBasic, AuthAPIKey}

// ParseAuthType accepts the canonical names case-insensitively ("api-key", "bearer").
func ParseAuthType(s string) (AuthType, error) {
	for _, t := range AuthTypes {
		if normalizeEnum(s) == normalizeEnum(string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown auth type %q (expected one of %s)", s, joinEnum(AuthTypes))
}

// UnmarshalYAML decodes an auth type name.
func (t *AuthType) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseAuthType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// DataSourceConfig describes where an enrichment plugin fetches its data.
// Which fields are required depends on Type.
type DataSourceConfig struct {
	// Type is the connector backend.
	Type SourceType `yaml:"type"`

	// Service, Namespace, Port and Path address a cluster Service (ClusterService).
	Service   string `yaml:"service,omitempty"`
	Namespace string `yaml:"namespace,omitempty"`
	Port      int    `yaml:"port,omitempty"`
	Path      string `yaml:"path,omitempty"`

	// Group, Version and Plural identify a custom resource (ClusterCRD).
	Group   string `yaml:"group,omitempty"`
	Version string `yaml:"version,omitempty"`
	Plural  string `yaml:"plural,omitempty"`

	// Endpoint is the URL fetched by Http sources.
	Endpoint string `yaml:"endpoint,omitempty"`

	// FilePath is the JSON file read by File sources.
	FilePath string `yaml:"file_path,omitempty"`

	// Auth configures request authentication for Http and ClusterService sources.
	Auth *AuthConfig `yaml:"auth,omitempty"`
	// Headers are static request headers for Http and ClusterService sources.
	Headers map[string]string `yaml:"headers,omitempty"`

	// RefreshInterval is the cache TTL, e.g. "30s". Nil means
	// DefaultRefreshInterval; a present value must be a valid duration.
	RefreshInterval *string `yaml:"refresh_interval,omitempty"`
	// Timeout bounds an Http request, e.g. "5s".
	Timeout *string `yaml:"timeout,omitempty"`
}

// UnmarshalYAML decodes a data source, accepting source_type as an alias
// of type.
func (c *DataSourceConfig) UnmarshalYAML(value *yaml.Node) error {
	type rawSource DataSourceConfig
	var raw struct {
		rawSource  `yaml:",inline"`
		SourceType SourceType `yaml:"source_type"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*c = DataSourceConfig(raw.rawSource)
	if c.Type == "" {
		c.Type = raw.SourceType
	}
	return nil
}

// RefreshTTL returns the parsed refresh interval, falling back to
// DefaultRefreshInterval when it is unset or does not parse.
func (c *DataSourceConfig) RefreshTTL() time.Duration {
	if c == nil || c.RefreshInterval == nil {
		return DefaultRefreshInterval
	}
	d, err := ParseDuration(*c.RefreshInterval)
	if err != nil {
		return DefaultRefreshInterval
	}
	return d
}

// AuthConfig names the environment variables holding request credentials.
// Secret values are never stored in a manifest.
type AuthConfig struct {
	Type AuthType `yaml:"type"`
	// TokenEnv names the variable holding the bearer token or API key.
	TokenEnv string `yaml:"token_env,omitempty"`
	// Username is the literal basic-auth user name.
	Username string `yaml:"username,omitempty"`
	// PasswordEnv names the variable holding the basic-auth password.
	PasswordEnv string `yaml:"password_env,omitempty"`
	// Header is the header that carries the API key.
	Header string `yaml:"header,omitempty"`
}

// UnmarshalYAML decodes auth settings, accepting auth_type as an alias of type.
func (a *AuthConfig) UnmarshalYAML(value *yaml.Node) error {
	type rawAuth AuthConfig
	var raw struct {
		rawAuth  `yaml:",inline"`
		AuthType AuthType `yaml:"auth_type"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*a = AuthConfig(raw.rawAuth)
	if a.Type == "" {
		a.Type = raw.AuthType
	}
	return nil
}

func normalizeEnum(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("-", "", "_", "", " ", "").Replace(s)
}

func joinEnum[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}
