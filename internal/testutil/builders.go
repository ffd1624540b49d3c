package testutil

import (
	"fmt"
	"strings"
)

// TestColumn is a simplified column for testing.
type TestColumn struct {
	Name     string
	Path     string
	Renderer string
	Disabled bool
}

// TestView is a simplified view for testing.
type TestView struct {
	Name       string
	Keybinding string
}

// ManifestBuilder builds plugin manifest YAML for tests.
type ManifestBuilder struct {
	name      string
	version   string
	disabled  bool
	source    []string
	resources []string
	columns   []TestColumn
	views     []TestView
}

// NewManifestBuilder creates a builder for a plugin named name at version 1.0.0.
func NewManifestBuilder(name string) *ManifestBuilder {
	return &ManifestBuilder{name: name, version: "1.0.0"}
}

// Name returns the plugin name.
func (b *ManifestBuilder) Name() string {
	return b.name
}

// WithVersion sets the manifest version.
func (b *ManifestBuilder) WithVersion(version string) *ManifestBuilder {
	b.version = version
	return b
}

// Disabled sets enabled: false.
func (b *ManifestBuilder) Disabled() *ManifestBuilder {
	b.disabled = true
	return b
}

// WithFileSource sets a File source.
func (b *ManifestBuilder) WithFileSource(path string) *ManifestBuilder {
	b.source = []string{"type: File", "file_path: " + path}
	return b
}

// WithHTTPSource sets an Http source.
func (b *ManifestBuilder) WithHTTPSource(endpoint string) *ManifestBuilder {
	b.source = []string{"type: Http", "endpoint: " + endpoint}
	return b
}

// WithClusterServiceSource sets a ClusterService source.
func (b *ManifestBuilder) WithClusterServiceSource(service, namespace string, port int, path string) *ManifestBuilder {
	b.source = []string{
		"type: ClusterService",
		"service: " + service,
		"namespace: " + namespace,
		fmt.Sprintf("port: %d", port),
		"path: " + path,
	}
	return b
}

// WithSourceField adds a raw "key: value" line to the source block.
func (b *ManifestBuilder) WithSourceField(key, value string) *ManifestBuilder {
	b.source = append(b.source, key+": "+value)
	return b
}

// WithResources sets the resource kinds the plugin enhances.
func (b *ManifestBuilder) WithResources(kinds ...string) *ManifestBuilder {
	b.resources = append(b.resources, kinds...)
	return b
}

// WithColumn adds a Text column.
func (b *ManifestBuilder) WithColumn(name, path string) *ManifestBuilder {
	b.columns = append(b.columns, TestColumn{Name: name, Path: path})
	return b
}

// WithTestColumn adds a fully specified column.
func (b *ManifestBuilder) WithTestColumn(c TestColumn) *ManifestBuilder {
	b.columns = append(b.columns, c)
	return b
}

// WithView adds a view.
func (b *ManifestBuilder) WithView(name, keybinding string) *ManifestBuilder {
	b.views = append(b.views, TestView{Name: name, Keybinding: keybinding})
	return b
}

// YAML renders the manifest.
func (b *ManifestBuilder) YAML() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "name: %s\n", b.name)
	fmt.Fprintf(&sb, "version: %q\n", b.version)
	if b.disabled {
		sb.WriteString("enabled: false\n")
	}

	if len(b.source) > 0 {
		sb.WriteString("source:\n")
		for _, line := range b.source {
			fmt.Fprintf(&sb, "  %s\n", line)
		}
	}

	if len(b.resources) > 0 {
		fmt.Fprintf(&sb, "resources: [%s]\n", strings.Join(b.resources, ", "))
	}

	if len(b.columns) > 0 {
		sb.WriteString("columns:\n")
		for _, c := range b.columns {
			fmt.Fprintf(&sb, "  - name: %s\n", c.Name)
			fmt.Fprintf(&sb, "    path: %q\n", c.Path)
			if c.Renderer != "" {
				fmt.Fprintf(&sb, "    renderer: %s\n", c.Renderer)
			}
			if c.Disabled {
				sb.WriteString("    enabled: false\n")
			}
		}
	}

	if len(b.views) > 0 {
		sb.WriteString("views:\n")
		for _, v := range b.views {
			fmt.Fprintf(&sb, "  - name: %q\n", v.Name)
			fmt.Fprintf(&sb, "    keybinding: %q\n", v.Keybinding)
		}
	}

	return sb.String()
}
