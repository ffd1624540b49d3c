package plugin

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/flux9s/internal/testutil/mocks"
)

const pluginsDir = "/home/user/.config/flux9s/plugins"

func TestInstaller_Install(t *testing.T) {
	fs := mocks.NewFileSystem()
	fs.AddFile("/tmp/my-owners.yaml", enrichment("owners", "owner", ":owners"))

	installer := NewInstaller(pluginsDir, fs)
	p, err := installer.Install("/tmp/my-owners.yaml")
	require.NoError(t, err)

	assert.Equal(t, "owners", p.ID())
	assert.Equal(t, pluginsDir+"/owners.yaml", p.Path)
	assert.True(t, fs.IsDir(pluginsDir))

	data, err := fs.ReadFile(pluginsDir + "/owners.yaml")
	require.NoError(t, err)
	assert.Equal(t, enrichment("owners", "owner", ":owners"), string(data))
}

func TestInstaller_Install_RefusesExisting(t *testing.T) {
	fs := mocks.NewFileSystem()
	fs.AddFile("/tmp/owners.yaml", enrichment("owners", "owner", ":owners"))
	fs.AddFile(pluginsDir+"/owners.yml", "name: owners\nversion: 0.9.0\n")

	_, err := NewInstaller(pluginsDir, fs).Install("/tmp/owners.yaml")
	require.Error(t, err)
	assert.True(t, IsPluginExists(err))

	var exists *PluginExistsError
	require.ErrorAs(t, err, &exists)
	assert.Equal(t, pluginsDir+"/owners.yml", exists.Path)
}

func TestInstaller_Install_RefusesDuplicateManifestName(t *testing.T) {
	fs := mocks.NewFileSystem()
	fs.AddFile("/tmp/owners.yaml", enrichment("owners", "owner", ":owners"))
	fs.AddFile(pluginsDir+"/team-owners.yaml", "name: owners\nversion: 0.9.0\n")
	fs.AddFile(pluginsDir+"/garbage.yaml", "name: [oops\n")

	_, err := NewInstaller(pluginsDir, fs).Install("/tmp/owners.yaml")
	var exists *PluginExistsError
	require.ErrorAs(t, err, &exists)
	assert.Equal(t, pluginsDir+"/team-owners.yaml", exists.Path)
}

func TestInstaller_Install_Invalid(t *testing.T) {
	fs := mocks.NewFileSystem()
	fs.AddFile("/tmp/bad.yaml", "name: bad\nversion: 1.0.0\nviews:\n  - name: v\n    keybinding: v\n")
	fs.AddFile("/tmp/broken.yaml", "name: [\n")

	installer := NewInstaller(pluginsDir, fs)

	_, err := installer.Install("/tmp/bad.yaml")
	assert.True(t, IsValidationError(err))

	_, err = installer.Install("/tmp/broken.yaml")
	var invalid *InvalidManifestError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "/tmp/broken.yaml", invalid.Path)

	_, err = installer.Install("/tmp/missing.yaml")
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)

	assert.Equal(t, []string{"/tmp/bad.yaml", "/tmp/broken.yaml"}, fs.Files())
}

func TestInstaller_Install_Directory(t *testing.T) {
	fs := mocks.NewFileSystem()
	require.NoError(t, fs.MkdirAll("/tmp/plugins-src", 0o755))

	_, err := NewInstaller(pluginsDir, fs).Install("/tmp/plugins-src")
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Contains(t, err.Error(), "is a directory")
}

func TestInstaller_Uninstall(t *testing.T) {
	fs := mocks.NewFileSystem()
	fs.AddFile(pluginsDir+"/owners.yaml", "name: owners\n")
	fs.AddFile(pluginsDir+"/cost.yml", "name: cost\n")

	installer := NewInstaller(pluginsDir, fs)

	path, err := installer.Uninstall("owners")
	require.NoError(t, err)
	assert.Equal(t, pluginsDir+"/owners.yaml", path)

	path, err = installer.Uninstall("cost")
	require.NoError(t, err)
	assert.Equal(t, pluginsDir+"/cost.yml", path)
	assert.Empty(t, fs.Files())

	_, err = installer.Uninstall("owners")
	assert.True(t, IsNotFound(err))

	_, err = installer.Uninstall("")
	assert.ErrorIs(t, err, ErrEmptyPluginName)

	_, err = installer.Uninstall("../../.bashrc")
	assert.True(t, IsValidationError(err))
}

func TestInstaller_Uninstall_RemoveFails(t *testing.T) {
	fs := mocks.NewFileSystem()
	fs.AddFile(pluginsDir+"/owners.yaml", "name: owners\n")
	installer := NewInstaller(pluginsDir, failingRemoveFS{fs})

	_, err := installer.Uninstall("owners")
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, pluginsDir+"/owners.yaml", loadErr.Path)
	assert.Len(t, fs.Files(), 1)
}

type failingRemoveFS struct {
	*mocks.FileSystem
}

func (failingRemoveFS) Remove(string) error {
	return errors.New("read-only file system")
}
