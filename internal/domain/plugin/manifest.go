// Package plugin implements the declarative plugin subsystem: the manifest
// schema, its validator, directory loading with cross-plugin conflict
// detection, installation, and reload-on-change watching.
package plugin

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Manifest is one plugin definition file.
//
// A manifest may enrich existing views (Source, Resources, Columns),
// declare new watched resources (WatchedResources), do both, or neither.
type Manifest struct {
	// Name is the plugin identifier; letters, digits, '-' and '_' only.
	Name string `yaml:"name"`
	// Version is free-form; semantic versioning is recommended.
	Version string `yaml:"version"`
	// Enabled defaults to true. Disabled plugins parse but are not loaded.
	Enabled     bool   `yaml:"enabled"`
	Description string `yaml:"description,omitempty"`

	Source    *DataSourceConfig `yaml:"source,omitempty"`
	Resources []string          `yaml:"resources,omitempty"`
	Columns   []ColumnConfig    `yaml:"columns,omitempty"`

	Views       []ViewConfig              `yaml:"views,omitempty"`
	ViewColumns map[string][]ColumnConfig `yaml:"view_columns,omitempty"`

	WatchedResources []WatchedResourceConfig `yaml:"watched_resources,omitempty"`
}

// ViewConfig is a custom view opened with a ':' command.
type ViewConfig struct {
	Name        string `yaml:"name"`
	Keybinding  string `yaml:"keybinding"`
	Description string `yaml:"description,omitempty"`
	// Resource is the resource kind the view lists.
	Resource string `yaml:"resource,omitempty"`
}

// UnmarshalYAML applies manifest defaults before decoding.
func (m *Manifest) UnmarshalYAML(value *yaml.Node) error {
	type rawManifest Manifest
	raw := rawManifest{Enabled: true}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*m = Manifest(raw)
	return nil
}

// ParseManifest decodes a single YAML manifest. Only the first document of
// the input is read.
func ParseManifest(data []byte) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &InvalidManifestError{Err: errors.New("manifest is empty")}
		}
		return nil, &InvalidManifestError{Err: err}
	}
	return &m, nil
}

// IsEnrichment reports whether the plugin adds columns from a data source.
func (m *Manifest) IsEnrichment() bool {
	return m.Source != nil
}

// Enhances reports whether the plugin adds columns to the given resource kind.
// Kinds compare case-insensitively.
func (m *Manifest) Enhances(kind string) bool {
	for _, r := range m.Resources {
		if strings.EqualFold(r, kind) {
			return true
		}
	}
	return false
}

// EnabledColumns returns the columns whose enabled flag is set.
func (m *Manifest) EnabledColumns() []ColumnConfig {
	out := make([]ColumnConfig, 0, len(m.Columns))
	for _, c := range m.Columns {
		if c.Enabled {
			out = append(out, c)
		}
	}
	return out
}

// Column returns the column with the given name.
func (m *Manifest) Column(name string) (ColumnConfig, bool) {
	for _, c := range m.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnConfig{}, false
}

// ViewNames returns the keys of ViewColumns in sorted order.
func (m *Manifest) ViewNames() []string {
	names := make([]string, 0, len(m.ViewColumns))
	for name := range m.ViewColumns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RefreshTTL returns the cache TTL for the plugin's data source.
func (m *Manifest) RefreshTTL() time.Duration {
	return m.Source.RefreshTTL()
}

// SourceType returns the data source type, or "" when the plugin has no source.
func (m *Manifest) SourceType() SourceType {
	if m.Source == nil {
		return ""
	}
	return m.Source.Type
}

// String returns "name@version".
func (m *Manifest) String() string {
	return fmt.Sprintf("%s@%s", m.Name, m.Version)
}

// Plugin is a manifest loaded from the plugins directory.
type Plugin struct {
	Manifest *Manifest
	// Path is the manifest file the plugin was loaded from.
	Path     string
	LoadedAt time.Time
}

// ID returns the plugin identifier.
func (p *Plugin) ID() string {
	return p.Manifest.Name
}

// String returns a human-readable plugin description.
func (p *Plugin) String() string {
	return p.Manifest.String()
}
