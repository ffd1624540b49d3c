package plugin

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/felixgeelhaar/flux9s/internal/ports"
)

// Installer copies validated manifests into a plugins directory and removes
// them again.
type Installer struct {
	dir string
	fs  ports.FileSystem
}

// NewInstaller creates an installer for the given plugins directory.
func NewInstaller(dir string, fs ports.FileSystem) *Installer {
	return &Installer{dir: dir, fs: fs}
}

// Install validates the manifest at src and copies it to <dir>/<name>.yaml.
// It refuses to overwrite an existing file for the plugin and to install a
// second plugin with the same manifest name under a different file name.
func (i *Installer) Install(src string) (*Plugin, error) {
	if i.fs.IsDir(src) {
		return nil, &LoadError{Path: src, Err: errors.New("is a directory")}
	}
	data, err := i.fs.ReadFile(src)
	if err != nil {
		return nil, &LoadError{Path: src, Err: err}
	}
	if int64(len(data)) > maxManifestSize {
		return nil, &LoadError{Path: src, Err: fmt.Errorf("%w: %d bytes (limit %d)", ErrManifestTooLarge, len(data), maxManifestSize)}
	}

	m, err := ParseManifest(data)
	if err != nil {
		var invalid *InvalidManifestError
		if errors.As(err, &invalid) {
			invalid.Path = src
		}
		return nil, err
	}
	if err := Validate(m); err != nil {
		return nil, err
	}

	if existing, ok := i.find(m.Name); ok {
		return nil, &PluginExistsError{Name: m.Name, Path: existing}
	}
	if existing, ok := i.findByManifestName(m.Name); ok {
		return nil, &PluginExistsError{Name: m.Name, Path: existing}
	}

	if err := i.fs.MkdirAll(i.dir, 0o755); err != nil {
		return nil, &LoadError{Path: i.dir, Err: err}
	}
	dest := filepath.Join(i.dir, m.Name+".yaml")
	if err := i.fs.WriteFile(dest, data, 0o644); err != nil {
		return nil, &LoadError{Path: dest, Err: err}
	}

	return &Plugin{Manifest: m, Path: dest}, nil
}

// Uninstall removes <dir>/<name>.yaml (or .yml) and returns the removed path.
func (i *Installer) Uninstall(name string) (string, error) {
	if name == "" {
		return "", ErrEmptyPluginName
	}
	if !pluginNamePattern.MatchString(name) {
		return "", &ValidationError{Field: "name", Message: fmt.Sprintf("%q contains invalid characters", name), Expected: "letters, digits, '-' and '_' only"}
	}

	path, ok := i.find(name)
	if !ok {
		return "", &NotFoundError{Kind: "plugin", Name: name}
	}
	if err := i.fs.Remove(path); err != nil {
		return "", &LoadError{Path: path, Err: err}
	}
	return path, nil
}

// find returns the manifest file named after the plugin, if present.
func (i *Installer) find(name string) (string, bool) {
	for _, ext := range []string{".yaml", ".yml"} {
		path := filepath.Join(i.dir, name+ext)
		if i.fs.Exists(path) {
			return path, true
		}
	}
	return "", false
}

// findByManifestName scans the directory for a manifest declaring name.
// Unreadable or invalid files are ignored.
func (i *Installer) findByManifestName(name string) (string, bool) {
	files, err := i.fs.ListFiles(i.dir)
	if err != nil {
		return "", false
	}
	for _, f := range files {
		if !IsManifestFile(f) {
			continue
		}
		path := filepath.Join(i.dir, f)
		data, err := i.fs.ReadFile(path)
		if err != nil {
			continue
		}
		m, err := ParseManifest(data)
		if err != nil {
			continue
		}
		if m.Name == name {
			return path, true
		}
	}
	return "", false
}
