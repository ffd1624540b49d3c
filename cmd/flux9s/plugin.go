package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/flux9s/internal/adapters/filesystem"
	"github.com/felixgeelhaar/flux9s/internal/adapters/kube"
	"github.com/felixgeelhaar/flux9s/internal/adapters/logging"
	"github.com/felixgeelhaar/flux9s/internal/app"
	"github.com/felixgeelhaar/flux9s/internal/config"
	"github.com/felixgeelhaar/flux9s/internal/domain/cache"
	"github.com/felixgeelhaar/flux9s/internal/domain/connector"
	"github.com/felixgeelhaar/flux9s/internal/domain/plugin"
	"github.com/felixgeelhaar/flux9s/internal/ports"
	"github.com/felixgeelhaar/flux9s/internal/tui"
)

var (
	initOutput    string
	initForce     bool
	healthTimeout time.Duration
	metricsAddr   string
)

var pluginCmd = &cobra.Command{
	Use:   "plugin",
	Short: "Manage flux9s plugins",
	Long:  `Create, validate, install, and inspect plugins that add columns and views to the dashboard.`,
}

var pluginListCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed plugins",
	Long:  `Load every manifest in the plugins directory and list the active, disabled, and skipped plugins.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadSettings()
		if err != nil {
			return err
		}
		return runPluginList(cmd.Context(), cmd.OutOrStdout(), cfg)
	},
}

var pluginValidateCmd = &cobra.Command{
	Use:   "validate [file...]",
	Short: "Validate plugin manifests",
	Long: `Validate manifest files against the plugin schema and report lint findings.

Without arguments, validates the whole plugins directory including the
cross-plugin conflict checks.

Examples:
  flux9s plugin validate ./trivy.yaml
  flux9s plugin validate`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			return runPluginValidateFiles(cmd.OutOrStdout(), args)
		}
		cfg, err := loadSettings()
		if err != nil {
			return err
		}
		return runPluginValidateDir(cmd.Context(), cmd.OutOrStdout(), cfg)
	},
}

var pluginInitCmd = &cobra.Command{
	Use:   "init <name>",
	Short: "Create a plugin manifest from a template",
	Long: `Write a commented Http enrichment manifest to stdout or to --output.

Examples:
  flux9s plugin init owners > owners.yaml
  flux9s plugin init owners --output owners.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPluginInit(cmd.OutOrStdout(), args[0], initOutput, initForce)
	},
}

var pluginInstallCmd = &cobra.Command{
	Use:   "install <file>",
	Short: "Install a plugin manifest",
	Long: `Validate a manifest and copy it into the plugins directory as <name>.yaml.

Examples:
  flux9s plugin install ./trivy.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSettings()
		if err != nil {
			return err
		}
		return runPluginInstall(cmd.OutOrStdout(), cfg, args[0])
	},
}

var pluginUninstallCmd = &cobra.Command{
	Use:     "uninstall <name>",
	Aliases: []string{"remove", "rm"},
	Short:   "Remove an installed plugin",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSettings()
		if err != nil {
			return err
		}
		return runPluginUninstall(cmd.OutOrStdout(), cfg, args[0])
	},
}

var pluginHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check plugin data sources",
	Long:  `Run the health check of every plugin's data source once and report the results.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadSettings()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), healthTimeout)
		defer cancel()
		return runPluginHealth(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg)
	},
}

var pluginStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show live plugin cache status",
	Long: `Open a live view of every plugin's cached data: freshness, age, last
error and health. The view refreshes expired plugins on a tick and reloads
when manifests in the plugins directory change.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadSettings()
		if err != nil {
			return err
		}
		return runPluginStatus(cmd.Context(), cfg, metricsAddr)
	},
}

func init() {
	rootCmd.AddCommand(pluginCmd)
	pluginCmd.AddCommand(pluginListCmd)
	pluginCmd.AddCommand(pluginValidateCmd)
	pluginCmd.AddCommand(pluginInitCmd)
	pluginCmd.AddCommand(pluginInstallCmd)
	pluginCmd.AddCommand(pluginUninstallCmd)
	pluginCmd.AddCommand(pluginHealthCmd)
	pluginCmd.AddCommand(pluginStatusCmd)

	pluginInitCmd.Flags().StringVarP(&initOutput, "output", "o", "", "write the manifest to this file instead of stdout")
	pluginInitCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing output file")
	pluginHealthCmd.Flags().DurationVar(&healthTimeout, "timeout", 30*time.Second, "overall timeout for the health checks")
	pluginStatusCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus cache metrics on this address, e.g. :9090")
}

func runPluginList(ctx context.Context, w io.Writer, cfg *config.Config) error {
	loader := plugin.NewLoader(cfg.PluginsDir, plugin.WithLoaderLogger(newLogger(cfg, io.Discard)))
	result, err := loader.LoadAll(ctx)
	if err != nil {
		return err
	}

	if len(result.Plugins) == 0 && len(result.Disabled) == 0 && len(result.Skipped) == 0 {
		_, _ = fmt.Fprintf(w, "No plugins installed in %s.\n", cfg.PluginsDir)
		_, _ = fmt.Fprintln(w, "")
		_, _ = fmt.Fprintln(w, "Create one using:")
		_, _ = fmt.Fprintln(w, "  flux9s plugin init <name> --output <name>.yaml")
		_, _ = fmt.Fprintln(w, "  flux9s plugin install <name>.yaml")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tVERSION\tSOURCE\tRESOURCES\tCOLUMNS\tVIEWS")
	_, _ = fmt.Fprintln(tw, "────\t───────\t──────\t─────────\t───────\t─────")
	for _, p := range result.Plugins {
		m := p.Manifest
		source := string(m.SourceType())
		if source == "" {
			source = "-"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\n",
			m.Name,
			m.Version,
			source,
			orDash(strings.Join(m.Resources, ",")),
			len(m.EnabledColumns()),
			len(m.Views),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(result.Disabled) > 0 {
		_, _ = fmt.Fprintf(w, "\nDisabled: %s\n", strings.Join(result.Disabled, ", "))
	}
	if len(result.Skipped) > 0 {
		_, _ = fmt.Fprintln(w, "\nSkipped:")
		for _, s := range result.Skipped {
			_, _ = fmt.Fprintf(w, "  ✗ %s\n", s.Error())
		}
	}
	return nil
}

func runPluginValidateFiles(w io.Writer, paths []string) error {
	failed := 0
	for _, path := range paths {
		m, err := plugin.LoadPlugin(path)
		if err != nil {
			failed++
			_, _ = fmt.Fprintf(w, "✗ %s\n", err)
			continue
		}
		_, _ = fmt.Fprintf(w, "✓ %s: %s\n", path, m)
		for _, f := range plugin.Lint(m) {
			_, _ = fmt.Fprintf(w, "  ! %s\n", f)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d manifests failed validation", failed, len(paths))
	}
	return nil
}

func runPluginValidateDir(ctx context.Context, w io.Writer, cfg *config.Config) error {
	loader := plugin.NewLoader(cfg.PluginsDir, plugin.WithLoaderLogger(newLogger(cfg, io.Discard)))
	result, err := loader.LoadAll(ctx)
	if err != nil {
		return err
	}

	for _, p := range result.Plugins {
		_, _ = fmt.Fprintf(w, "✓ %s: %s\n", p.Path, p.Manifest)
		for _, f := range plugin.Lint(p.Manifest) {
			_, _ = fmt.Fprintf(w, "  ! %s\n", f)
		}
	}
	for _, s := range result.Skipped {
		_, _ = fmt.Fprintf(w, "✗ %s\n", s.Error())
	}
	if len(result.Skipped) > 0 {
		return fmt.Errorf("%d manifests in %s failed validation", len(result.Skipped), cfg.PluginsDir)
	}
	_, _ = fmt.Fprintf(w, "%d plugins valid, no conflicts\n", len(result.Plugins))
	return nil
}

func runPluginInit(w io.Writer, name, output string, force bool) error {
	data, err := plugin.Template(name)
	if err != nil {
		return err
	}
	if output == "" {
		_, err := w.Write(data)
		return err
	}

	if !force {
		if _, err := os.Stat(output); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", output)
		}
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	_, _ = fmt.Fprintf(w, "✓ Created %s\n", output)
	_, _ = fmt.Fprintf(w, "  Edit the source and columns, then run: flux9s plugin install %s\n", output)
	return nil
}

func runPluginInstall(w io.Writer, cfg *config.Config, src string) error {
	installer := plugin.NewInstaller(cfg.PluginsDir, filesystem.NewRealFileSystem())
	p, err := installer.Install(src)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "✓ Installed %s to %s\n", p.Manifest, p.Path)
	for _, f := range plugin.Lint(p.Manifest) {
		_, _ = fmt.Fprintf(w, "  ! %s\n", f)
	}
	return nil
}

func runPluginUninstall(w io.Writer, cfg *config.Config, name string) error {
	installer := plugin.NewInstaller(cfg.PluginsDir, filesystem.NewRealFileSystem())
	path, err := installer.Uninstall(name)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "✓ Removed %s\n", path)
	return nil
}

// clusterClient loads the kubeconfig client. Plugins without cluster
// sources work without one, so a failure is only logged.
func clusterClient(ctx context.Context, cfg *config.Config, logger ports.Logger) (connector.ClusterClient, string) {
	client, err := kube.Load(cfg.Kubeconfig, cfg.Context)
	if err != nil {
		logger.Debug(ctx, "no cluster client, cluster sources are unavailable", ports.Err(err))
		return nil, cfg.Context
	}
	return client.Clientset, client.Context
}

func newHost(ctx context.Context, cfg *config.Config, logger ports.Logger, opts ...cache.Option) *app.PluginHost {
	client, kubeCtx := clusterClient(ctx, cfg, logger)
	return app.NewPluginHost(app.HostOptions{
		PluginsDir:   cfg.PluginsDir,
		Client:       client,
		DNSSuffix:    cfg.ClusterDomainFor(kubeCtx),
		Logger:       logger,
		CacheOptions: opts,
	})
}

func runPluginHealth(ctx context.Context, w, logOut io.Writer, cfg *config.Config) error {
	host := newHost(ctx, cfg, newLogger(cfg, logOut))
	if _, err := host.Load(ctx); err != nil {
		return err
	}

	results := host.Health(ctx)
	if len(results) == 0 {
		_, _ = fmt.Fprintln(w, "No plugins with data sources.")
		return nil
	}

	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	unhealthy := 0
	for _, name := range names {
		if err := results[name]; err != nil {
			unhealthy++
			_, _ = fmt.Fprintf(w, "✗ %s: %v\n", name, err)
			continue
		}
		_, _ = fmt.Fprintf(w, "✓ %s\n", name)
	}
	if unhealthy > 0 {
		return fmt.Errorf("%d of %d plugin sources unhealthy", unhealthy, len(results))
	}
	return nil
}

func runPluginStatus(ctx context.Context, cfg *config.Config, addr string) error {
	level, err := cfg.Level()
	if err != nil {
		return err
	}
	logs := logging.NewBufferLogger(logging.DefaultBufferSize, level)
	metrics := cache.NewMetrics()

	host := newHost(ctx, cfg, logs, cache.WithMetrics(metrics))
	if _, err := host.Load(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return host.Watch(ctx)
	})
	if addr != "" {
		g.Go(func() error {
			return serveMetrics(ctx, addr, metrics)
		})
	}
	g.Go(func() error {
		defer cancel()
		return tui.RunPluginStatus(ctx, tui.PluginStatusOptions{
			Source:   host,
			Logs:     logs,
			Interval: cfg.Tick(),
		})
	})
	return g.Wait()
}

func serveMetrics(ctx context.Context, addr string, metrics *cache.Metrics) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving metrics: %w", err)
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
