// Package cache keeps the most recent data fetched for each plugin and
// refreshes it when its time-to-live runs out.
package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/felixgeelhaar/flux9s/internal/domain/connector"
	"github.com/felixgeelhaar/flux9s/internal/domain/plugin"
	"github.com/felixgeelhaar/flux9s/internal/ports"
)

// DefaultConcurrency bounds how many fetches a sweep runs at once.
const DefaultConcurrency = 8

// Entry is the data from one successful fetch together with the time and
// TTL it was stored with.
type Entry struct {
	Data        any
	LastRefresh time.Time
	TTL         time.Duration
}

// IsExpired reports whether now is at least TTL past LastRefresh.
func (e Entry) IsExpired(now time.Time) bool {
	return now.Sub(e.LastRefresh) >= e.TTL
}

// Age returns how long ago the entry was refreshed.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.LastRefresh)
}

// Stats is a point-in-time count of cache entries.
type Stats struct {
	TotalEntries   int
	ExpiredEntries int
	FreshEntries   int
}

// SweepResult reports what a RefreshExpired call did.
type SweepResult struct {
	// Refreshed names the plugins fetched successfully, sorted.
	Refreshed []string
	// Failed maps plugin names to their fetch errors.
	Failed map[string]error
}

// Cache owns one connector per plugin and the latest entry each produced.
//
// Reads never block on I/O. A refresh fetches without holding the lock and
// only locks to swap in the new entry. Concurrent refreshes of the same
// plugin share a single fetch.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]Entry
	lastErrs   map[string]error
	connectors map[string]connector.Connector
	buildErrs  map[string]error

	inflight    singleflight.Group
	now         func() time.Time
	logger      ports.Logger
	metrics     *Metrics
	concurrency int
	connOpts    []connector.Option
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock sets the clock used for refresh timestamps and expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// WithLogger sets the logger for sweep failures.
func WithLogger(logger ports.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// WithMetrics records refreshes, fetch latency and health checks.
func WithMetrics(m *Metrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

// WithConcurrency bounds concurrent fetches during sweeps and health checks.
func WithConcurrency(n int) Option {
	return func(c *Cache) {
		c.concurrency = n
	}
}

// WithConnectorOptions passes options to connectors built by FromManifests.
func WithConnectorOptions(opts ...connector.Option) Option {
	return func(c *Cache) {
		c.connOpts = append(c.connOpts, opts...)
	}
}

// New creates a cache over prebuilt connectors keyed by plugin name.
func New(connectors map[string]connector.Connector, opts ...Option) *Cache {
	c := &Cache{
		entries:     make(map[string]Entry),
		lastErrs:    make(map[string]error),
		connectors:  make(map[string]connector.Connector, len(connectors)),
		buildErrs:   make(map[string]error),
		now:         time.Now,
		logger:      ports.Discard(),
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.concurrency <= 0 {
		c.concurrency = DefaultConcurrency
	}
	for name, conn := range connectors {
		c.connectors[name] = conn
	}
	return c
}

// FromManifests builds a connector for every manifest with a source.
// A plugin whose connector cannot be built is kept out of the cache; its
// error is logged and reported by HealthCheckAll, and other plugins are
// unaffected.
func FromManifests(ctx context.Context, manifests []*plugin.Manifest, client connector.ClusterClient, dnsSuffix string, opts ...Option) *Cache {
	c := New(nil, opts...)
	for _, m := range manifests {
		if m.Source == nil {
			continue
		}
		conn, err := connector.New(m.Source, client, dnsSuffix, c.connOpts...)
		if err != nil {
			c.logger.Warn(ctx, "cannot build plugin connector", ports.F("plugin", m.Name), ports.Err(err))
			c.buildErrs[m.Name] = err
			continue
		}
		c.connectors[m.Name] = conn
	}
	return c
}

// Get returns the cached data for a plugin, or false if it was never
// refreshed successfully. Get never fetches.
func (c *Cache) Get(name string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[name]
	return e.Data, ok
}

// Entry returns the full cache entry for a plugin.
func (c *Cache) Entry(name string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[name]
	return e, ok
}

// LastError returns the error from the plugin's most recent failed refresh,
// or nil once a refresh succeeds.
func (c *Cache) LastError(name string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err, ok := c.buildErrs[name]; ok {
		return err
	}
	return c.lastErrs[name]
}

// Names returns the plugins that have a connector, sorted.
func (c *Cache) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.connectors))
	for name := range c.connectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Metrics returns the metrics the cache records to, or nil.
func (c *Cache) Metrics() *Metrics {
	return c.metrics
}

// Refresh fetches a plugin's data and, on success, replaces its entry with
// the new data, the current time and ttl. On failure the previous entry is
// left untouched and the error is returned. There is no retry.
//
// If a refresh of the same plugin is already in flight, Refresh waits for
// it and returns its result instead of fetching again.
func (c *Cache) Refresh(ctx context.Context, name string, ttl time.Duration) error {
	c.mu.RLock()
	conn, ok := c.connectors[name]
	buildErr := c.buildErrs[name]
	c.mu.RUnlock()
	if !ok {
		if buildErr != nil {
			return buildErr
		}
		return &plugin.NotFoundError{Kind: "connector", Name: name}
	}

	_, err, _ := c.inflight.Do(name, func() (any, error) {
		start := c.now()
		data, err := conn.Fetch(ctx)
		c.metrics.observeRefresh(name, c.now().Sub(start), err)

		c.mu.Lock()
		defer c.mu.Unlock()
		if err != nil {
			c.lastErrs[name] = err
			return nil, err
		}
		c.entries[name] = Entry{Data: data, LastRefresh: c.now(), TTL: ttl}
		delete(c.lastErrs, name)
		return nil, nil
	})
	return err
}

// IsDue reports whether a plugin has no entry or its entry has expired.
func (c *Cache) IsDue(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[name]
	return !ok || e.IsExpired(c.now())
}

// RefreshExpired refreshes every manifest's plugin whose entry is missing or
// expired, using the manifest's refresh interval as TTL. Fetches run
// concurrently. A failing plugin is logged and reported in the result; it
// never stops the others and never fails the sweep. Plugins whose connector
// could not be built are reported in Failed with the build error.
func (c *Cache) RefreshExpired(ctx context.Context, manifests []*plugin.Manifest) SweepResult {
	result := SweepResult{Refreshed: []string{}, Failed: map[string]error{}}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(c.concurrency)

	for _, m := range manifests {
		if err := c.buildErr(m.Name); err != nil {
			result.Failed[m.Name] = err
			continue
		}
		if !c.hasConnector(m.Name) || !c.IsDue(m.Name) {
			continue
		}
		name, ttl := m.Name, m.RefreshTTL()
		g.Go(func() error {
			err := c.Refresh(ctx, name, ttl)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				c.logger.Warn(ctx, "plugin refresh failed", ports.F("plugin", name), ports.Err(err))
				result.Failed[name] = err
				return nil
			}
			result.Refreshed = append(result.Refreshed, name)
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(result.Refreshed)
	c.metrics.observeStats(c.Stats())
	return result
}

// HealthCheckAll runs every connector's health check concurrently and
// returns each plugin's result; nil means healthy. Plugins whose connector
// could not be built report the build error.
func (c *Cache) HealthCheckAll(ctx context.Context) map[string]error {
	c.mu.RLock()
	connectors := make(map[string]connector.Connector, len(c.connectors))
	for name, conn := range c.connectors {
		connectors[name] = conn
	}
	results := make(map[string]error, len(connectors)+len(c.buildErrs))
	for name, err := range c.buildErrs {
		results[name] = err
	}
	c.mu.RUnlock()

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(c.concurrency)
	for name, conn := range connectors {
		g.Go(func() error {
			err := conn.HealthCheck(ctx)
			c.metrics.observeHealth(name, err)

			mu.Lock()
			results[name] = err
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Stats counts entries by freshness at the current time.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	now := c.now()
	s := Stats{TotalEntries: len(c.entries)}
	for _, e := range c.entries {
		if e.IsExpired(now) {
			s.ExpiredEntries++
		} else {
			s.FreshEntries++
		}
	}
	return s
}

func (c *Cache) buildErr(name string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.buildErrs[name]
}

func (c *Cache) hasConnector(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.connectors[name]
	return ok
}
