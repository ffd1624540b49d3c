package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/flux9s/internal/adapters/logging"
	"github.com/felixgeelhaar/flux9s/internal/config"
	"github.com/felixgeelhaar/flux9s/internal/domain/plugin"
	"github.com/felixgeelhaar/flux9s/internal/ports"
)

var (
	// Global flags
	cfgFile       string
	pluginsDir    string
	clusterDomain string
	kubeconfig    string
	kubeContext   string
	verbose       bool
)

var rootCmd = &cobra.Command{
	Use:   "flux9s",
	Short: "A terminal dashboard for Flux CD",
	Long: `flux9s shows Flux CD resources in the terminal.

Plugins extend the dashboard with extra columns fetched from external
data sources, custom views, and watched custom resources. Manifests live
in the plugins directory (default: <config dir>/flux9s/plugins).`,
	SilenceErrors: true, // main prints errors itself
	SilenceUsage:  true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: <config dir>/flux9s/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&pluginsDir, "plugins-dir", "", "plugins directory (env: "+config.EnvPluginsDir+")")
	rootCmd.PersistentFlags().StringVar(&clusterDomain, "cluster-domain", "", "cluster DNS suffix for ClusterService sources (env: "+config.EnvClusterDomain+")")
	rootCmd.PersistentFlags().StringVar(&kubeconfig, "kubeconfig", "", "path to the kubeconfig file")
	rootCmd.PersistentFlags().StringVar(&kubeContext, "context", "", "kubeconfig context to use")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	_ = rootCmd.RegisterFlagCompletionFunc("config", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"yaml", "yml"}, cobra.ShellCompDirectiveFilterFileExt
	})
	_ = rootCmd.MarkPersistentFlagDirname("plugins-dir")

	rootCmd.AddCommand(versionCmd)
}

// loadSettings layers the config file, environment and flags.
func loadSettings() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		p, err := config.DefaultPath()
		if err == nil {
			path = p
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.LookupEnv)

	if pluginsDir != "" {
		cfg.PluginsDir = pluginsDir
	}
	if clusterDomain != "" {
		cfg.ClusterDomain = clusterDomain
	}
	if kubeconfig != "" {
		cfg.Kubeconfig = kubeconfig
	}
	if kubeContext != "" {
		cfg.Context = kubeContext
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger returns a console logger at the configured level.
func newLogger(cfg *config.Config, w io.Writer) ports.Logger {
	level, err := cfg.Level()
	if err != nil {
		level = ports.LevelInfo
	}
	return logging.NewConsoleLogger(logging.WithOutput(w), logging.WithLevel(level))
}

// formatError returns a user-friendly error message with a suggestion for
// the errors a user can act on.
func formatError(err error) string {
	msg := err.Error()

	var (
		exists   *plugin.PluginExistsError
		conflict *plugin.ConflictError
		notFound *plugin.NotFoundError
	)
	switch {
	case errors.As(err, &exists):
		msg += fmt.Sprintf("\n\nSuggestion: run 'flux9s plugin uninstall %s' first", exists.Name)
	case errors.As(err, &conflict):
		msg += "\n\nSuggestion: set 'enabled: false' in one of the conflicting manifests"
	case errors.As(err, &notFound) && notFound.Kind == "plugin":
		msg += "\n\nSuggestion: run 'flux9s plugin list' to see installed plugins"
	}

	if verbose {
		if cause := errors.Unwrap(err); cause != nil {
			msg += fmt.Sprintf("\n\nTechnical details: %v", cause)
		}
	}
	return msg
}

// printError prints an error message to stderr with proper formatting.
func printError(err error) {
	printErrorTo(os.Stderr, err)
}

// printErrorTo prints an error message to the given writer.
func printErrorTo(w io.Writer, err error) {
	_, _ = fmt.Fprintf(w, "Error: %s\n", formatError(err))
}
