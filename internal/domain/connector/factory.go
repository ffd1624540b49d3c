package connector

import (
	"fmt"
	"time"

	"github.com/felixgeelhaar/flux9s/internal/domain/plugin"
)

// New builds the connector for a data source. dnsSuffix is the cluster's
// Service domain and only applies to ClusterService sources.
//
// New re-checks the fields each source type needs, so a configuration that
// never went through plugin.Validate fails here instead of at fetch time.
func New(cfg *plugin.DataSourceConfig, client ClusterClient, dnsSuffix string, opts ...Option) (Connector, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: source is nil", ErrInvalidConfig)
	}

	if cfg.Type.RequiresCluster() && client == nil {
		return nil, fmt.Errorf("%w: %s", ErrClusterClientRequired, cfg.Type)
	}

	switch cfg.Type {
	case plugin.SourceFile:
		if cfg.FilePath == "" {
			return nil, missingField(cfg.Type, "file_path")
		}
		return NewFileConnector(cfg.FilePath), nil

	case plugin.SourceHTTP:
		if cfg.Endpoint == "" {
			return nil, missingField(cfg.Type, "endpoint")
		}
		timeout, err := parseTimeout(cfg.Timeout)
		if err != nil {
			return nil, err
		}
		return NewHTTPConnector(cfg.Endpoint, timeout, cfg.Auth, cfg.Headers, opts...), nil

	case plugin.SourceClusterService:
		switch {
		case cfg.Service == "":
			return nil, missingField(cfg.Type, "service")
		case cfg.Namespace == "":
			return nil, missingField(cfg.Type, "namespace")
		case cfg.Port <= 0 || cfg.Port > 65535:
			return nil, fmt.Errorf("%w: %s port %d out of range", ErrInvalidConfig, cfg.Type, cfg.Port)
		case cfg.Path == "":
			return nil, missingField(cfg.Type, "path")
		}
		return NewClusterServiceConnector(client, cfg.Service, cfg.Namespace, cfg.Port, cfg.Path, dnsSuffix, cfg.Auth, cfg.Headers, opts...), nil

	case plugin.SourceClusterCRD:
		return nil, fmt.Errorf("%w: %s", ErrNotImplemented, cfg.Type)

	default:
		return nil, fmt.Errorf("%w: unknown source type %q", ErrInvalidConfig, cfg.Type)
	}
}

func missingField(t plugin.SourceType, field string) error {
	return fmt.Errorf("%w: %s source requires %s", ErrInvalidConfig, t, field)
}

func parseTimeout(s *string) (time.Duration, error) {
	if s == nil {
		return DefaultHTTPTimeout, nil
	}
	d, err := plugin.ParseDuration(*s)
	if err != nil {
		return 0, fmt.Errorf("%w: timeout: %w", ErrInvalidConfig, err)
	}
	return d, nil
}
