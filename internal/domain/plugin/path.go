package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/itchyny/gojq"
)

// ResourceRef identifies the dashboard row a column value is extracted for.
// Its fields are bound to $kind, $namespace and $name inside path expressions.
type ResourceRef struct {
	Kind      string
	Namespace string
	Name      string
}

// Key returns "namespace/name", or just name for cluster-scoped resources.
func (r ResourceRef) Key() string {
	if r.Namespace == "" {
		return r.Name
	}
	return r.Namespace + "/" + r.Name
}

// Path is a compiled extraction expression.
//
// Paths accept three spellings: JSONPath-like ("$.summary.critical",
// "$.items[0]['owner-team']"), bare dotted keys ("summary.critical"), and
// full jq (".resources[$namespace + \"/\" + $name].owner").
type Path struct {
	source string
	code   *gojq.Code
}

var pathVariables = []string{"$name", "$namespace", "$kind"}

var (
	simplePath    = regexp.MustCompile(`^(\.[^.\[\]\s|(),$"]+|\[[^\]]*\])+$`)
	segmentToken  = regexp.MustCompile(`\.[^.\[\]]+|\[[^\]]*\]`)
	identifierKey = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// CompilePath parses and compiles an extraction expression.
func CompilePath(expr string) (*Path, error) {
	query := normalizePath(expr)
	if query == "" {
		return nil, errors.New("path is empty")
	}
	parsed, err := gojq.Parse(query)
	if err != nil {
		return nil, fmt.Errorf("parsing path %q: %w", expr, err)
	}
	code, err := gojq.Compile(parsed, gojq.WithVariables(pathVariables))
	if err != nil {
		return nil, fmt.Errorf("compiling path %q: %w", expr, err)
	}
	return &Path{source: expr, code: code}, nil
}

// String returns the expression as written in the manifest.
func (p *Path) String() string {
	return p.source
}

// Eval returns the first value the path yields for data, or nil when it
// yields nothing. data must be JSON-shaped (maps, slices, float64, string, bool, nil).
func (p *Path) Eval(data any, ref ResourceRef) (any, error) {
	iter := p.code.Run(data, ref.Name, ref.Namespace, ref.Kind)
	v, ok := iter.Next()
	if !ok {
		return nil, nil
	}
	if err, isErr := v.(error); isErr {
		var halt *gojq.HaltError
		if errors.As(err, &halt) && halt.Value() == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("evaluating path %q: %w", p.source, err)
	}
	return v, nil
}

func normalizePath(expr string) string {
	q := strings.TrimSpace(expr)
	if q == "" {
		return ""
	}

	if strings.HasPrefix(q, "$") && (len(q) == 1 || q[1] == '.' || q[1] == '[') {
		q = q[1:]
		if q == "" {
			return "."
		}
		if q[0] == '[' {
			q = "." + q
		}
	} else if q[0] != '.' && q[0] != '[' && simplePath.MatchString("."+q) {
		q = "." + q
	}

	body := q
	if strings.HasPrefix(body, ".[") {
		body = body[1:]
	}
	if !simplePath.MatchString(body) {
		return q
	}

	var b strings.Builder
	for _, seg := range segmentToken.FindAllString(body, -1) {
		switch {
		case seg == "[*]":
			b.WriteString("[]")
		case strings.HasPrefix(seg, "['") && strings.HasSuffix(seg, "']"):
			b.WriteString(fmt.Sprintf("[%q]", seg[2:len(seg)-2]))
		case strings.HasPrefix(seg, "["):
			b.WriteString(seg)
		case identifierKey.MatchString(seg[1:]):
			b.WriteString(seg)
		default:
			b.WriteString(fmt.Sprintf("[%q]", seg[1:]))
		}
	}
	out := b.String()
	if strings.HasPrefix(q, ".") && !strings.HasPrefix(out, ".") {
		out = "." + out
	}
	return out
}

// normalizeJSON converts arbitrary decoded values (for example int64 numbers
// from unstructured Kubernetes objects) into the JSON shapes gojq accepts.
func normalizeJSON(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
