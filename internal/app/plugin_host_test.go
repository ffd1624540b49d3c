package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/flux9s/internal/adapters/logging"
	"github.com/felixgeelhaar/flux9s/internal/domain/cache"
	"github.com/felixgeelhaar/flux9s/internal/domain/plugin"
	"github.com/felixgeelhaar/flux9s/internal/ports"
)

const ownersData = `{
  "owners": {"apps/podinfo": {"team": "sre"}, "infra/cert-manager": {"team": "platform"}},
  "issues": ["CVE-2024-0001", "CVE-2024-0002"]
}`

func ownersManifest(dataPath string) string {
	return `name: owners
version: 1.0.0
source:
  type: File
  file_path: ` + dataPath + `
  refresh_interval: 1m
resources: [Kustomization, HelmRelease]
columns:
  - name: owner
    path: '.owners[$namespace + "/" + $name].team'
    width: 12
  - name: issues
    path: $.issues
    renderer: IssueBadge
  - name: hidden
    path: $.issues
    enabled: false
views:
  - name: ":owners"
    keybinding: "o"
view_columns:
  ":owners":
    - name: team
      path: '.owners[$namespace + "/" + $name].team'
      renderer: StatusBadge
watched_resources:
  - kind: ExternalSecret
    group: external-secrets.io
    version: v1beta1
`
}

type hostClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *hostClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *hostClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type hostFixture struct {
	host      *PluginHost
	pluginDir string
	dataPath  string
	clock     *hostClock
	logs      *bytes.Buffer
}

func newHostFixture(t *testing.T) *hostFixture {
	t.Helper()
	root := t.TempDir()
	pluginDir := filepath.Join(root, "plugins")
	require.NoError(t, os.MkdirAll(pluginDir, 0o755))

	dataPath := filepath.Join(root, "owners.json")
	require.NoError(t, os.WriteFile(dataPath, []byte(ownersData), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(pluginDir, "owners.yaml"), []byte(ownersManifest(dataPath)), 0o644))

	clock := &hostClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	logs := &bytes.Buffer{}
	host := NewPluginHost(HostOptions{
		PluginsDir: pluginDir,
		Logger:     logging.NewConsoleLogger(logging.WithOutput(logs), logging.WithTimestamp(false), logging.WithLevel(ports.LevelDebug)),
		Now:        clock.Now,
	})
	return &hostFixture{host: host, pluginDir: pluginDir, dataPath: dataPath, clock: clock, logs: logs}
}

func TestPluginHost_LoadAndTick(t *testing.T) {
	f := newHostFixture(t)
	ctx := context.Background()
	podinfo := plugin.ResourceRef{Kind: "Kustomization", Namespace: "apps", Name: "podinfo"}

	result, err := f.host.Load(ctx)
	require.NoError(t, err)
	require.Len(t, result.Plugins, 1)
	assert.Equal(t, f.pluginDir, f.host.Dir())

	assert.Empty(t, f.host.ColumnValue("owners", "owner", podinfo), "no data before the first tick")

	sweep := f.host.Tick(ctx)
	assert.Equal(t, []string{"owners"}, sweep.Refreshed)

	assert.Equal(t, "sre", f.host.ColumnValue("owners", "owner", podinfo))
	assert.Equal(t, "⚠ 2", f.host.ColumnValue("owners", "issues", podinfo))
	assert.Empty(t, f.host.ColumnValue("owners", "owner", plugin.ResourceRef{Namespace: "apps", Name: "unknown"}))
	assert.Empty(t, f.host.ColumnValue("owners", "missing", podinfo))
	assert.Empty(t, f.host.ColumnValue("nobody", "owner", podinfo))

	assert.Equal(t, "Sre", f.host.ViewColumnValue("owners", ":owners", "team", podinfo))

	assert.Empty(t, f.host.Tick(ctx).Refreshed, "data is still fresh")
	assert.Equal(t, cache.Stats{TotalEntries: 1, FreshEntries: 1}, f.host.Stats())
}

func TestPluginHost_Columns(t *testing.T) {
	f := newHostFixture(t)
	_, err := f.host.Load(context.Background())
	require.NoError(t, err)

	cols := f.host.Columns("kustomization")
	require.Len(t, cols, 2)
	assert.Equal(t, "owners", cols[0].Plugin)
	assert.Equal(t, "owner", cols[0].Name)
	assert.Equal(t, 12, cols[0].Width)
	assert.Equal(t, "issues", cols[1].Name)
	assert.Equal(t, plugin.RendererIssueBadge, cols[1].Renderer)

	assert.Empty(t, f.host.Columns("GitRepository"))
}

func TestPluginHost_ViewsAndWatched(t *testing.T) {
	f := newHostFixture(t)
	_, err := f.host.Load(context.Background())
	require.NoError(t, err)

	views := f.host.Views()
	require.Len(t, views, 1)
	assert.Equal(t, ":owners", views[0].Name)

	v, ok := f.host.View("o")
	require.True(t, ok)
	assert.Equal(t, "owners", v.Plugin)
	_, ok = f.host.View("x")
	assert.False(t, ok)

	watched := f.host.WatchedResources()
	require.Len(t, watched, 1)
	assert.Equal(t, "owners", watched[0].Plugin)
	assert.Equal(t, "ExternalSecret", watched[0].Kind)
}

func TestPluginHost_States(t *testing.T) {
	f := newHostFixture(t)
	ctx := context.Background()
	_, err := f.host.Load(ctx)
	require.NoError(t, err)

	states := f.host.States()
	require.Len(t, states, 1)
	assert.False(t, states[0].Cached)
	assert.NoError(t, states[0].LastError)

	f.host.Tick(ctx)
	states = f.host.States()
	assert.True(t, states[0].Cached)
	assert.True(t, states[0].Fresh)
	assert.Equal(t, time.Minute, states[0].TTL)
	assert.Equal(t, plugin.SourceFile, states[0].SourceType)

	f.clock.Advance(time.Minute)
	require.NoError(t, os.Remove(f.dataPath))
	sweep := f.host.Tick(ctx)
	require.Contains(t, sweep.Failed, "owners")

	states = f.host.States()
	assert.True(t, states[0].Cached, "the previous entry is kept")
	assert.False(t, states[0].Fresh)
	assert.Error(t, states[0].LastError)
	assert.Contains(t, f.logs.String(), "plugin refresh failed")

	health := f.host.Health(ctx)
	assert.Error(t, health["owners"])
}

func TestPluginHost_FailedReloadKeepsPlugins(t *testing.T) {
	f := newHostFixture(t)
	ctx := context.Background()
	_, err := f.host.Load(ctx)
	require.NoError(t, err)

	// A second file declaring the same plugin name fails the conflict pass.
	require.NoError(t, os.WriteFile(filepath.Join(f.pluginDir, "owners-copy.yaml"), []byte(ownersManifest(f.dataPath)), 0o644))

	_, err = f.host.Reload(ctx)
	require.Error(t, err)
	assert.True(t, plugin.IsConflict(err))
	assert.Len(t, f.host.Plugins(), 1)
	assert.Contains(t, f.logs.String(), "keeping previous plugins")

	require.NoError(t, os.Remove(filepath.Join(f.pluginDir, "owners.yaml")))
	require.NoError(t, os.Remove(filepath.Join(f.pluginDir, "owners-copy.yaml")))
	result, err := f.host.Reload(ctx)
	require.NoError(t, err)
	assert.Empty(t, result.Plugins)
	assert.Empty(t, f.host.Plugins())
	assert.Contains(t, f.logs.String(), "plugins reloaded")
}

func TestPluginHost_HandleReload(t *testing.T) {
	f := newHostFixture(t)
	ctx := context.Background()
	_, err := f.host.Load(ctx)
	require.NoError(t, err)

	f.host.HandleReload(ctx, nil, errors.New("conflict"))
	assert.Len(t, f.host.Plugins(), 1)

	f.host.HandleReload(ctx, &plugin.LoadResult{}, nil)
	assert.Empty(t, f.host.Plugins())
	assert.Empty(t, f.host.Columns("Kustomization"))
	assert.Empty(t, f.host.Cache().Names())
}

func TestPluginHost_Watch(t *testing.T) {
	f := newHostFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- f.host.Watch(ctx, plugin.WithWatchDebounce(20*time.Millisecond))
	}()

	require.Eventually(t, func() bool {
		// Rewriting the manifest until the watcher has picked it up covers
		// the window before the watch is registered.
		_ = os.WriteFile(filepath.Join(f.pluginDir, "owners.yaml"), []byte(ownersManifest(f.dataPath)), 0o644)
		return len(f.host.Plugins()) == 1
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestNewPluginHost_Defaults(t *testing.T) {
	host := NewPluginHost(HostOptions{PluginsDir: t.TempDir()})
	assert.Empty(t, host.Plugins())
	assert.Empty(t, host.States())
	assert.Empty(t, host.Tick(context.Background()).Refreshed)
	assert.Empty(t, host.Health(context.Background()))
}
