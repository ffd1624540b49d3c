package plugin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/felixgeelhaar/flux9s/internal/ports"
)

// maxManifestSize limits manifest file size to prevent memory exhaustion (256KB).
const maxManifestSize int64 = 256 * 1024

// DefaultPluginsDir returns <user config dir>/flux9s/plugins.
func DefaultPluginsDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating user config directory: %w", err)
	}
	return filepath.Join(dir, "flux9s", "plugins"), nil
}

// IsManifestFile reports whether a file name has a manifest extension.
func IsManifestFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// LoadResult is the outcome of scanning a plugins directory.
type LoadResult struct {
	// Plugins are the enabled, valid, conflict-free plugins in file name order.
	Plugins []*Plugin
	// Skipped lists files that failed to read, parse or validate.
	Skipped []LoadError
	// Disabled names plugins that parsed but have enabled: false.
	Disabled []string
}

// Manifests returns the manifests of the loaded plugins.
func (r *LoadResult) Manifests() []*Manifest {
	out := make([]*Manifest, len(r.Plugins))
	for i, p := range r.Plugins {
		out[i] = p.Manifest
	}
	return out
}

// Loader reads plugin manifests from a single directory.
type Loader struct {
	dir    string
	logger ports.Logger
	now    func() time.Time
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLoaderLogger sets the logger used to report skipped and disabled plugins.
func WithLoaderLogger(logger ports.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

// WithLoaderClock sets the clock used for Plugin.LoadedAt.
func WithLoaderClock(now func() time.Time) LoaderOption {
	return func(l *Loader) {
		l.now = now
	}
}

// NewLoader creates a loader for the given plugins directory.
func NewLoader(dir string, opts ...LoaderOption) *Loader {
	l := &Loader{
		dir:    dir,
		logger: ports.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Dir returns the plugins directory.
func (l *Loader) Dir() string {
	return l.dir
}

// LoadAll scans the plugins directory (non-recursively) and returns every
// enabled plugin that parses and validates, then runs the conflict pass.
//
// A missing directory yields an empty result. A file that fails to load is
// logged and recorded in Skipped; the scan continues. LoadAll fails only when
// the directory cannot be read, ctx is cancelled, or loaded plugins conflict.
func (l *Loader) LoadAll(ctx context.Context) (*LoadResult, error) {
	logger := ports.LoggerOr(ctx, l.logger)
	result := &LoadResult{
		Plugins:  make([]*Plugin, 0),
		Skipped:  make([]LoadError, 0),
		Disabled: make([]string, 0),
	}

	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug(ctx, "plugins directory does not exist", ports.F("dir", l.dir))
			return result, nil
		}
		return nil, &LoadError{Path: l.dir, Err: err}
	}

	// os.ReadDir sorts by file name, which keeps results deterministic.
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if entry.IsDir() || !IsManifestFile(entry.Name()) {
			continue
		}

		path := filepath.Join(l.dir, entry.Name())
		m, err := LoadPlugin(path)
		if err != nil {
			logger.Warn(ctx, "skipping plugin file", ports.F("path", path), ports.Err(err))
			result.Skipped = append(result.Skipped, LoadError{Path: path, Err: err})
			continue
		}

		if !m.Enabled {
			logger.Info(ctx, "plugin disabled", ports.F("plugin", m.Name), ports.F("path", path))
			result.Disabled = append(result.Disabled, m.Name)
			continue
		}

		for _, finding := range Lint(m) {
			logger.Debug(ctx, "plugin lint", ports.F("plugin", m.Name), ports.F("finding", finding.String()))
		}

		result.Plugins = append(result.Plugins, &Plugin{
			Manifest: m,
			Path:     path,
			LoadedAt: l.now(),
		})
	}

	if err := CheckConflicts(result.Manifests()); err != nil {
		return nil, err
	}

	sort.Strings(result.Disabled)
	logger.Debug(ctx, "plugins loaded",
		ports.F("dir", l.dir),
		ports.F("loaded", len(result.Plugins)),
		ports.F("skipped", len(result.Skipped)),
		ports.F("disabled", len(result.Disabled)))

	return result, nil
}

// LoadPlugin reads, parses and validates a single manifest file. It does not
// check for conflicts with other plugins.
func LoadPlugin(path string) (*Manifest, error) {
	data, err := readManifestFile(path)
	if err != nil {
		return nil, err
	}

	m, err := ParseManifest(data)
	if err != nil {
		var invalid *InvalidManifestError
		if errors.As(err, &invalid) {
			invalid.Path = path
		}
		return nil, err
	}

	if err := Validate(m); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func readManifestFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	if info.IsDir() {
		return nil, &LoadError{Path: path, Err: errors.New("is a directory")}
	}
	if info.Size() > maxManifestSize {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("%w: %d bytes (limit %d)", ErrManifestTooLarge, info.Size(), maxManifestSize)}
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(io.LimitReader(file, maxManifestSize))
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return data, nil
}
