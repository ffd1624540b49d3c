package plugin

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// WatchedResourceConfig declares a custom resource that the dashboard
// watches and shows as its own view.
type WatchedResourceConfig struct {
	Kind    string `yaml:"kind"`
	Group   string `yaml:"group,omitempty"`
	Version string `yaml:"version"`
	Plural  string `yaml:"plural,omitempty"`
	// Command is the keybinding that opens the view, e.g. ":externalsecrets".
	Command string `yaml:"command,omitempty"`
	// DisplayName defaults to Kind.
	DisplayName      string         `yaml:"display_name,omitempty"`
	SupportsYAML     bool           `yaml:"supports_yaml"`
	SupportsDescribe bool           `yaml:"supports_describe"`
	SupportsLogs     bool           `yaml:"supports_logs"`
	Columns          []ColumnConfig `yaml:"columns,omitempty"`
	Status           *StatusConfig  `yaml:"status,omitempty"`
}

// UnmarshalYAML applies the capability defaults: YAML and describe on, logs off.
func (w *WatchedResourceConfig) UnmarshalYAML(value *yaml.Node) error {
	type rawWatched WatchedResourceConfig
	raw := rawWatched{SupportsYAML: true, SupportsDescribe: true}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*w = WatchedResourceConfig(raw)
	return nil
}

// Name returns the display name, defaulting to the kind.
func (w WatchedResourceConfig) Name() string {
	if w.DisplayName != "" {
		return w.DisplayName
	}
	return w.Kind
}

// APIVersion returns "group/version", or the bare version for the core group.
func (w WatchedResourceConfig) APIVersion() string {
	if w.Group == "" {
		return w.Version
	}
	return w.Group + "/" + w.Version
}

// ResourcePlural returns the plural resource name, defaulting to the
// lower-cased kind with an "s" suffix.
func (w WatchedResourceConfig) ResourcePlural() string {
	if w.Plural != "" {
		return w.Plural
	}
	return strings.ToLower(w.Kind) + "s"
}

// GroupVersionResource identifies the resource for dynamic clients.
func (w WatchedResourceConfig) GroupVersionResource() schema.GroupVersionResource {
	return schema.GroupVersionResource{Group: w.Group, Version: w.Version, Resource: w.ResourcePlural()}
}

// GroupVersionKind identifies the resource's kind.
func (w WatchedResourceConfig) GroupVersionKind() schema.GroupVersionKind {
	return schema.GroupVersionKind{Group: w.Group, Version: w.Version, Kind: w.Kind}
}

// StatusConfig tells the dashboard how to derive a watched resource's status.
type StatusConfig struct {
	ReadyPath            string `yaml:"ready_path,omitempty"`
	ReadyValue           string `yaml:"ready_value,omitempty"`
	SuspendedPath        string `yaml:"suspended_path,omitempty"`
	SuspendedWhenMissing bool   `yaml:"suspended_when_missing,omitempty"`
	MessagePath          string `yaml:"message_path,omitempty"`
	RevisionPath         string `yaml:"revision_path,omitempty"`
}

// DefaultReadyValue is compared against ready_path when ready_value is unset.
const DefaultReadyValue = "True"

// ResourceStatus is the status derived from one watched object.
type ResourceStatus struct {
	Ready     bool
	Suspended bool
	Message   string
	Revision  string
}

// Evaluate derives the status of obj. Paths that fail to evaluate are
// treated as missing values.
func (s StatusConfig) Evaluate(obj *unstructured.Unstructured) (ResourceStatus, error) {
	var status ResourceStatus
	if obj == nil {
		return status, nil
	}
	data, err := normalizeJSON(obj.Object)
	if err != nil {
		return status, fmt.Errorf("normalizing %s: %w", obj.GetName(), err)
	}
	ref := ResourceRef{Kind: obj.GetKind(), Namespace: obj.GetNamespace(), Name: obj.GetName()}

	if s.ReadyPath != "" {
		want := s.ReadyValue
		if want == "" {
			want = DefaultReadyValue
		}
		if v := evalOptional(s.ReadyPath, data, ref); v != nil {
			status.Ready = strings.EqualFold(formatText(v), want)
		}
	}

	if s.SuspendedPath != "" {
		v := evalOptional(s.SuspendedPath, data, ref)
		switch val := v.(type) {
		case nil:
			status.Suspended = s.SuspendedWhenMissing
		case bool:
			status.Suspended = val
		default:
			status.Suspended = strings.EqualFold(formatText(val), "true")
		}
	}

	if v := evalOptional(s.MessagePath, data, ref); v != nil {
		status.Message = formatText(v)
	}
	if v := evalOptional(s.RevisionPath, data, ref); v != nil {
		status.Revision = formatText(v)
	}
	return status, nil
}

func evalOptional(expr string, data any, ref ResourceRef) any {
	if expr == "" {
		return nil
	}
	p, err := CompilePath(expr)
	if err != nil {
		return nil
	}
	v, err := p.Eval(data, ref)
	if err != nil {
		return nil
	}
	return v
}
