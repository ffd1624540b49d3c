package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

func TestWatchedResourceConfig_Accessors(t *testing.T) {
	w := WatchedResourceConfig{Kind: "ExternalSecret", Group: "external-secrets.io", Version: "v1beta1"}

	assert.Equal(t, "ExternalSecret", w.Name())
	assert.Equal(t, "external-secrets.io/v1beta1", w.APIVersion())
	assert.Equal(t, "externalsecrets", w.ResourcePlural())
	assert.Equal(t, schema.GroupVersionResource{Group: "external-secrets.io", Version: "v1beta1", Resource: "externalsecrets"}, w.GroupVersionResource())
	assert.Equal(t, schema.GroupVersionKind{Group: "external-secrets.io", Version: "v1beta1", Kind: "ExternalSecret"}, w.GroupVersionKind())

	core := WatchedResourceConfig{Kind: "ConfigMap", Version: "v1", Plural: "configmaps", DisplayName: "Config"}
	assert.Equal(t, "Config", core.Name())
	assert.Equal(t, "v1", core.APIVersion())
	assert.Equal(t, "configmaps", core.ResourcePlural())
}

func TestWatchedResourceConfig_Defaults(t *testing.T) {
	var w WatchedResourceConfig
	require.NoError(t, yaml.Unmarshal([]byte("kind: Certificate\nversion: v1\nsupports_logs: true\n"), &w))
	assert.True(t, w.SupportsYAML)
	assert.True(t, w.SupportsDescribe)
	assert.True(t, w.SupportsLogs)

	require.NoError(t, yaml.Unmarshal([]byte("kind: Certificate\nversion: v1\nsupports_yaml: false\n"), &w))
	assert.False(t, w.SupportsYAML)
}

func newExternalSecret(spec map[string]any, conditions ...map[string]any) *unstructured.Unstructured {
	conds := make([]any, len(conditions))
	for i, c := range conditions {
		conds[i] = c
	}
	return &unstructured.Unstructured{Object: map[string]any{
		"apiVersion": "external-secrets.io/v1beta1",
		"kind":       "ExternalSecret",
		"metadata":   map[string]any{"name": "db", "namespace": "apps", "generation": int64(3)},
		"spec":       spec,
		"status": map[string]any{
			"conditions":            conds,
			"syncedResourceVersion": "1-abc",
		},
	}}
}

func TestStatusConfig_Evaluate(t *testing.T) {
	cfg := StatusConfig{
		ReadyPath:     `.status.conditions[] | select(.type == "Ready") | .status`,
		SuspendedPath: "$.spec.suspend",
		MessagePath:   `.status.conditions[] | select(.type == "Ready") | .message`,
		RevisionPath:  "$.status.syncedResourceVersion",
	}

	obj := newExternalSecret(map[string]any{"suspend": false},
		map[string]any{"type": "Ready", "status": "True", "message": "secret synced"})

	status, err := cfg.Evaluate(obj)
	require.NoError(t, err)
	assert.Equal(t, ResourceStatus{Ready: true, Suspended: false, Message: "secret synced", Revision: "1-abc"}, status)
}

func TestStatusConfig_EvaluateNotReady(t *testing.T) {
	cfg := StatusConfig{
		ReadyPath:            `.status.conditions[] | select(.type == "Ready") | .status`,
		SuspendedPath:        "$.spec.paused",
		SuspendedWhenMissing: true,
	}

	obj := newExternalSecret(map[string]any{},
		map[string]any{"type": "Ready", "status": "False", "message": "provider unreachable"})

	status, err := cfg.Evaluate(obj)
	require.NoError(t, err)
	assert.False(t, status.Ready)
	assert.True(t, status.Suspended)
	assert.Empty(t, status.Message)
}

func TestStatusConfig_EvaluateCustomReadyValue(t *testing.T) {
	cfg := StatusConfig{ReadyPath: "$.status.phase", ReadyValue: "Issued"}
	obj := &unstructured.Unstructured{Object: map[string]any{"status": map[string]any{"phase": "issued"}}}

	status, err := cfg.Evaluate(obj)
	require.NoError(t, err)
	assert.True(t, status.Ready)
}

func TestStatusConfig_EvaluateNil(t *testing.T) {
	status, err := StatusConfig{ReadyPath: ".status"}.Evaluate(nil)
	require.NoError(t, err)
	assert.Equal(t, ResourceStatus{}, status)
}
