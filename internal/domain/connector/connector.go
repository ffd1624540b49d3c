// Package connector fetches plugin data from the backends a manifest's
// source can name: a local JSON file, an HTTP endpoint, or a Service inside
// the cluster.
package connector

import (
	"context"
	"errors"
	"fmt"

	"k8s.io/client-go/kubernetes"
)

// Connector fetches a plugin's data.
type Connector interface {
	// Fetch returns the decoded JSON document. It never returns partial data.
	Fetch(ctx context.Context) (any, error)
	// HealthCheck reports whether the backend is reachable without
	// necessarily transferring its data.
	HealthCheck(ctx context.Context) error
}

// Fetcher is the fetch half of a Connector.
type Fetcher interface {
	Fetch(ctx context.Context) (any, error)
}

// HealthCheckByFetch is the fallback health check for backends without a
// cheaper probe: it performs a full fetch and discards the data.
func HealthCheckByFetch(ctx context.Context, f Fetcher) error {
	_, err := f.Fetch(ctx)
	return err
}

// ClusterClient is the Kubernetes API client used by cluster-backed sources.
type ClusterClient = kubernetes.Interface

// Sentinel errors for programmatic error handling.
var (
	// ErrMissingSecret indicates an auth environment variable is unset or empty.
	ErrMissingSecret = errors.New("secret environment variable is not set")
	// ErrUnexpectedStatus indicates a non-success HTTP status.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")
	// ErrDecode indicates the response is not valid JSON.
	ErrDecode = errors.New("response is not valid JSON")
	// ErrResponseTooLarge indicates the response exceeds maxResponseSize.
	ErrResponseTooLarge = errors.New("response exceeds size limit")
	// ErrServiceNotFound indicates the target Service does not exist.
	ErrServiceNotFound = errors.New("service not found")
	// ErrNotImplemented indicates a source type that has no connector yet.
	ErrNotImplemented = errors.New("source type not implemented")
	// ErrClusterClientRequired indicates a cluster source was configured
	// without a cluster client.
	ErrClusterClientRequired = errors.New("source type requires a cluster client")
	// ErrInvalidConfig indicates a source configuration missing a required field.
	ErrInvalidConfig = errors.New("invalid source configuration")
)

// FetchError describes a failed fetch or health check.
type FetchError struct {
	// Op is "fetch" or "health check".
	Op string
	// Target is the URL or file path involved.
	Target string
	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Target, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsFetchError returns true if the error is a connector failure.
func IsFetchError(err error) bool {
	var target *FetchError
	return errors.As(err, &target)
}

const (
	opFetch  = "fetch"
	opHealth = "health check"
)
