package connector

import (
	"context"
	"fmt"
	"strings"
	"time"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/felixgeelhaar/flux9s/internal/domain/plugin"
)

// ClusterServiceTimeout bounds every cluster-service request. It is not
// configurable from a manifest.
const ClusterServiceTimeout = 10 * time.Second

// DefaultDNSSuffix is the in-cluster Service domain used when the cluster
// context configures none.
const DefaultDNSSuffix = ".svc.cluster.local"

// ClusterServiceConnector fetches JSON from a Service inside the cluster at
// http://<service>.<namespace><dns suffix>:<port><path>.
type ClusterServiceConnector struct {
	*HTTPConnector
	client    ClusterClient
	service   string
	namespace string
}

// NewClusterServiceConnector creates a connector for a cluster Service.
func NewClusterServiceConnector(client ClusterClient, service, namespace string, port int, path, dnsSuffix string, auth *plugin.AuthConfig, headers map[string]string, opts ...Option) *ClusterServiceConnector {
	url := ServiceURL(service, namespace, port, path, dnsSuffix)
	return &ClusterServiceConnector{
		HTTPConnector: NewHTTPConnector(url, ClusterServiceTimeout, auth, headers, opts...),
		client:        client,
		service:       service,
		namespace:     namespace,
	}
}

// ServiceURL builds http://<service>.<namespace><dnsSuffix>:<port><path>.
// An empty suffix selects DefaultDNSSuffix; a missing leading dot on the
// suffix or slash on the path is added.
func ServiceURL(service, namespace string, port int, path, dnsSuffix string) string {
	return fmt.Sprintf("http://%s.%s%s:%d%s", service, namespace, NormalizeDNSSuffix(dnsSuffix), port, normalizeURLPath(path))
}

// NormalizeDNSSuffix returns suffix with a leading dot, or DefaultDNSSuffix when empty.
func NormalizeDNSSuffix(suffix string) string {
	suffix = strings.TrimSpace(suffix)
	if suffix == "" {
		return DefaultDNSSuffix
	}
	if !strings.HasPrefix(suffix, ".") {
		suffix = "." + suffix
	}
	return strings.TrimSuffix(suffix, ".")
}

func normalizeURLPath(path string) string {
	if !strings.HasPrefix(path, "/") {
		return "/" + path
	}
	return path
}

// HealthCheck confirms the Service exists, then probes the URL like an Http
// source. Errors other than not-found from the API (for example missing RBAC
// permission to read Services) skip straight to the HTTP probe.
func (c *ClusterServiceConnector) HealthCheck(ctx context.Context) error {
	_, err := c.client.CoreV1().Services(c.namespace).Get(ctx, c.service, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return &FetchError{
			Op:     opHealth,
			Target: c.namespace + "/" + c.service,
			Err:    fmt.Errorf("%w: %s/%s", ErrServiceNotFound, c.namespace, c.service),
		}
	}
	return c.HTTPConnector.HealthCheck(ctx)
}

// String describes the connector.
func (c *ClusterServiceConnector) String() string {
	return "ClusterService " + c.URL()
}
