// Package app composes the plugin domain packages into the services the
// dashboard and CLI use.
package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/felixgeelhaar/flux9s/internal/domain/cache"
	"github.com/felixgeelhaar/flux9s/internal/domain/connector"
	"github.com/felixgeelhaar/flux9s/internal/domain/plugin"
	"github.com/felixgeelhaar/flux9s/internal/ports"
)

// HostOptions configures a PluginHost.
type HostOptions struct {
	PluginsDir string
	// Client is the cluster client for cluster-backed sources. May be nil.
	Client connector.ClusterClient
	// DNSSuffix is the cluster domain for ClusterService URLs.
	DNSSuffix    string
	Logger       ports.Logger
	CacheOptions []cache.Option
	// Now defaults to time.Now.
	Now func() time.Time
}

// PluginColumn is a column together with the plugin that declares it.
type PluginColumn struct {
	Plugin string
	plugin.ColumnConfig
}

// PluginView is a view together with the plugin that declares it.
type PluginView struct {
	Plugin string
	plugin.ViewConfig
}

// PluginWatched is a watched resource together with its plugin.
type PluginWatched struct {
	Plugin string
	plugin.WatchedResourceConfig
}

// PluginState is a point-in-time summary of one loaded plugin.
type PluginState struct {
	Name       string
	Version    string
	SourceType plugin.SourceType
	Resources  []string
	// Cached is true once a refresh has succeeded.
	Cached      bool
	Fresh       bool
	LastRefresh time.Time
	TTL         time.Duration
	LastError   error
}

// PluginHost owns the loaded plugin set and its cache. The loaded set is
// replaced atomically on reload; a failed reload keeps the previous set.
type PluginHost struct {
	loader    *plugin.Loader
	client    connector.ClusterClient
	dnsSuffix string
	logger    ports.Logger
	cacheOpts []cache.Option
	now       func() time.Time

	mu     sync.RWMutex
	result *plugin.LoadResult
	cache  *cache.Cache
	paths  map[string]*plugin.Path
}

// NewPluginHost creates a host with nothing loaded.
func NewPluginHost(opts HostOptions) *PluginHost {
	logger := opts.Logger
	if logger == nil {
		logger = ports.Discard()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	cacheOpts := append([]cache.Option{cache.WithLogger(logger), cache.WithClock(now)}, opts.CacheOptions...)

	return &PluginHost{
		loader:    plugin.NewLoader(opts.PluginsDir, plugin.WithLoaderLogger(logger), plugin.WithLoaderClock(now)),
		client:    opts.Client,
		dnsSuffix: opts.DNSSuffix,
		logger:    logger,
		cacheOpts: cacheOpts,
		now:       now,
		result:    &plugin.LoadResult{},
		cache:     cache.New(nil, cacheOpts...),
		paths:     map[string]*plugin.Path{},
	}
}

// Load scans the plugins directory and, on success, replaces the loaded
// set and cache. On error the previous set stays active.
func (h *PluginHost) Load(ctx context.Context) (*plugin.LoadResult, error) {
	result, err := h.loader.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	h.apply(ctx, result)
	return result, nil
}

// Reload is Load with a summary log line, for user-triggered reloads.
func (h *PluginHost) Reload(ctx context.Context) (*plugin.LoadResult, error) {
	result, err := h.Load(ctx)
	if err != nil {
		h.logger.Warn(ctx, "plugin reload failed, keeping previous plugins", ports.Err(err))
		return nil, err
	}
	h.logger.Info(ctx, "plugins reloaded",
		ports.F("loaded", len(result.Plugins)),
		ports.F("skipped", len(result.Skipped)),
	)
	return result, nil
}

// HandleReload applies a load result delivered by a directory watcher.
func (h *PluginHost) HandleReload(ctx context.Context, result *plugin.LoadResult, err error) {
	if err != nil {
		h.logger.Warn(ctx, "plugin reload failed, keeping previous plugins", ports.Err(err))
		return
	}
	h.apply(ctx, result)
}

// Watch reloads whenever the plugins directory changes, until ctx is done.
func (h *PluginHost) Watch(ctx context.Context, opts ...plugin.WatcherOption) error {
	opts = append([]plugin.WatcherOption{plugin.WithWatcherLogger(h.logger)}, opts...)
	return plugin.NewWatcher(h.loader, h.HandleReload, opts...).Run(ctx)
}

func (h *PluginHost) apply(ctx context.Context, result *plugin.LoadResult) {
	manifests := result.Manifests()
	c := cache.FromManifests(ctx, manifests, h.client, h.dnsSuffix, h.cacheOpts...)

	paths := make(map[string]*plugin.Path)
	for _, m := range manifests {
		for _, col := range m.Columns {
			h.compile(ctx, paths, m.Name, "", col)
		}
		for view, cols := range m.ViewColumns {
			for _, col := range cols {
				h.compile(ctx, paths, m.Name, view, col)
			}
		}
	}

	h.mu.Lock()
	h.result = result
	h.cache = c
	h.paths = paths
	h.mu.Unlock()
}

func (h *PluginHost) compile(ctx context.Context, paths map[string]*plugin.Path, pluginName, view string, col plugin.ColumnConfig) {
	p, err := plugin.CompilePath(col.Path)
	if err != nil {
		// Unreachable for validated manifests.
		h.logger.Debug(ctx, "column path does not compile", ports.F("plugin", pluginName), ports.F("column", col.Name), ports.Err(err))
		return
	}
	paths[pathKey(pluginName, view, col.Name)] = p
}

func pathKey(pluginName, view, column string) string {
	return pluginName + "\x00" + view + "\x00" + column
}

// Dir returns the plugins directory.
func (h *PluginHost) Dir() string {
	return h.loader.Dir()
}

// Plugins returns the loaded plugins in load order.
func (h *PluginHost) Plugins() []*plugin.Plugin {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]*plugin.Plugin(nil), h.result.Plugins...)
}

// Result returns the most recently applied load result.
func (h *PluginHost) Result() *plugin.LoadResult {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.result
}

// Cache returns the active cache.
func (h *PluginHost) Cache() *cache.Cache {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cache
}

// Tick refreshes every plugin whose data is missing or expired. It is
// meant to be called on a fixed interval by the dashboard.
func (h *PluginHost) Tick(ctx context.Context) cache.SweepResult {
	h.mu.RLock()
	c, manifests := h.cache, h.result.Manifests()
	h.mu.RUnlock()
	return c.RefreshExpired(ctx, manifests)
}

// Health checks every plugin's connector.
func (h *PluginHost) Health(ctx context.Context) map[string]error {
	return h.Cache().HealthCheckAll(ctx)
}

// Stats returns the cache entry counts.
func (h *PluginHost) Stats() cache.Stats {
	return h.Cache().Stats()
}

// Columns returns the enabled plugin columns for a resource kind, in
// plugin load order.
func (h *PluginHost) Columns(kind string) []PluginColumn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []PluginColumn
	for _, p := range h.result.Plugins {
		if !p.Manifest.Enhances(kind) {
			continue
		}
		for _, col := range p.Manifest.EnabledColumns() {
			out = append(out, PluginColumn{Plugin: p.ID(), ColumnConfig: col})
		}
	}
	return out
}

// Views returns every plugin view, in plugin load order.
func (h *PluginHost) Views() []PluginView {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []PluginView
	for _, p := range h.result.Plugins {
		for _, v := range p.Manifest.Views {
			out = append(out, PluginView{Plugin: p.ID(), ViewConfig: v})
		}
	}
	return out
}

// View finds a view by its keybinding.
func (h *PluginHost) View(keybinding string) (PluginView, bool) {
	for _, v := range h.Views() {
		if v.Keybinding == keybinding {
			return v, true
		}
	}
	return PluginView{}, false
}

// WatchedResources returns every plugin's watched resource declarations.
func (h *PluginHost) WatchedResources() []PluginWatched {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []PluginWatched
	for _, p := range h.result.Plugins {
		for _, w := range p.Manifest.WatchedResources {
			out = append(out, PluginWatched{Plugin: p.ID(), WatchedResourceConfig: w})
		}
	}
	return out
}

// ColumnValue returns the display string for a plugin column on one
// resource row. It never fetches: it reads the cached data and returns ""
// when the plugin has no data yet or the path yields nothing.
func (h *PluginHost) ColumnValue(pluginName, column string, ref plugin.ResourceRef) string {
	return h.value(pluginName, "", column, ref)
}

// ViewColumnValue is ColumnValue for a column of a plugin view.
func (h *PluginHost) ViewColumnValue(pluginName, view, column string, ref plugin.ResourceRef) string {
	return h.value(pluginName, view, column, ref)
}

func (h *PluginHost) value(pluginName, view, column string, ref plugin.ResourceRef) string {
	h.mu.RLock()
	p, ok := h.paths[pathKey(pluginName, view, column)]
	c := h.cache
	col, found := h.column(pluginName, view, column)
	h.mu.RUnlock()
	if !ok || !found {
		return ""
	}

	data, ok := c.Get(pluginName)
	if !ok {
		return ""
	}
	v, err := p.Eval(data, ref)
	if err != nil {
		h.logger.Debug(context.Background(), "column path failed",
			ports.F("plugin", pluginName), ports.F("column", column), ports.F("resource", ref.Key()), ports.Err(err))
		return ""
	}
	return col.Renderer.FormatAt(v, h.now())
}

// column must be called with h.mu held.
func (h *PluginHost) column(pluginName, view, column string) (plugin.ColumnConfig, bool) {
	for _, p := range h.result.Plugins {
		if p.ID() != pluginName {
			continue
		}
		cols := p.Manifest.Columns
		if view != "" {
			cols = p.Manifest.ViewColumns[view]
		}
		for _, col := range cols {
			if col.Name == column {
				return col, true
			}
		}
	}
	return plugin.ColumnConfig{}, false
}

// States summarises every loaded plugin, sorted by name.
func (h *PluginHost) States() []PluginState {
	h.mu.RLock()
	plugins, c := h.result.Plugins, h.cache
	h.mu.RUnlock()

	now := h.now()
	states := make([]PluginState, 0, len(plugins))
	for _, p := range plugins {
		m := p.Manifest
		s := PluginState{
			Name:       m.Name,
			Version:    m.Version,
			SourceType: m.SourceType(),
			Resources:  m.Resources,
			LastError:  c.LastError(m.Name),
		}
		if e, ok := c.Entry(m.Name); ok {
			s.Cached = true
			s.Fresh = !e.IsExpired(now)
			s.LastRefresh = e.LastRefresh
			s.TTL = e.TTL
		}
		states = append(states, s)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].Name < states[j].Name })
	return states
}
