package plugin

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// DefaultColumnWidth is applied when a column omits width.
const DefaultColumnWidth = 12

// Renderer is a display hint for a column's extracted value.
type Renderer string

// Supported renderers.
const (
	RendererText          Renderer = "Text"
	RendererIssueBadge    Renderer = "IssueBadge"
	RendererPercentageBar Renderer = "PercentageBar"
	RendererDuration      Renderer = "Duration"
	RendererStatusBadge   Renderer = "StatusBadge"
	RendererAge           Renderer = "Age"
	RendererBoolean       Renderer = "Boolean"
)

// Renderers lists every renderer in documentation order.
var Renderers = []Renderer{
	RendererText, RendererIssueBadge, RendererPercentageBar, RendererDuration,
	RendererStatusBadge, RendererAge, RendererBoolean,
}

// ParseRenderer accepts the canonical names case-insensitively ("status-badge", "age").
func ParseRenderer(s string) (Renderer, error) {
	for _, r := range Renderers {
		if normalizeEnum(s) == normalizeEnum(string(r)) {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown renderer %q (expected one of %s)", s, joinEnum(Renderers))
}

// UnmarshalYAML decodes a renderer name.
func (r *Renderer) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseRenderer(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ColumnConfig is an extra table column filled from a plugin's fetched data.
type ColumnConfig struct {
	Name     string   `yaml:"name"`
	Path     string   `yaml:"path"`
	Width    int      `yaml:"width"`
	Enabled  bool     `yaml:"enabled"`
	Renderer Renderer `yaml:"renderer,omitempty"`
}

// UnmarshalYAML applies column defaults before decoding: enabled, Text
// renderer and DefaultColumnWidth. An explicit width of 0 is kept so the
// validator can reject it.
func (c *ColumnConfig) UnmarshalYAML(value *yaml.Node) error {
	type rawColumn ColumnConfig
	raw := rawColumn{
		Width:    DefaultColumnWidth,
		Enabled:  true,
		Renderer: RendererText,
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*c = ColumnConfig(raw)
	return nil
}

// Extract evaluates the column path against data for one resource.
func (c ColumnConfig) Extract(data any, ref ResourceRef) (any, error) {
	p, err := CompilePath(c.Path)
	if err != nil {
		return nil, err
	}
	return p.Eval(data, ref)
}

// Format renders v for display using the current time for Age values.
func (r Renderer) Format(v any) string {
	return r.FormatAt(v, time.Now())
}

// FormatAt renders v for display. A nil value always renders as "".
func (r Renderer) FormatAt(v any, now time.Time) string {
	if v == nil {
		return ""
	}
	switch r {
	case RendererIssueBadge:
		return formatIssueBadge(v)
	case RendererPercentageBar:
		return formatPercentageBar(v)
	case RendererDuration:
		return formatDuration(v)
	case RendererStatusBadge:
		return formatStatusBadge(v)
	case RendererAge:
		return formatAge(v, now)
	case RendererBoolean:
		return formatBoolean(v)
	default:
		return formatText(v)
	}
}

func formatText(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1e15 {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case map[string]any, []any:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	default:
		return fmt.Sprint(val)
	}
}

func formatIssueBadge(v any) string {
	var count int
	switch val := v.(type) {
	case []any:
		count = len(val)
	case map[string]any:
		count = len(val)
	default:
		n, ok := toNumber(v)
		if !ok {
			return formatText(v)
		}
		count = int(n)
	}
	if count == 0 {
		return "✓"
	}
	return fmt.Sprintf("⚠ %d", count)
}

const barCells = 10

func formatPercentageBar(v any) string {
	n, ok := toNumber(v)
	if !ok {
		return formatText(v)
	}
	pct := math.Max(0, math.Min(100, n))
	filled := int(math.Round(pct / 100 * barCells))
	return fmt.Sprintf("%s%s %d%%",
		strings.Repeat("█", filled), strings.Repeat("░", barCells-filled), int(math.Round(pct)))
}

func formatDuration(v any) string {
	if s, ok := v.(string); ok {
		if d, err := time.ParseDuration(s); err == nil {
			return humanizeDuration(d)
		}
		return s
	}
	n, ok := toNumber(v)
	if !ok {
		return formatText(v)
	}
	return humanizeDuration(time.Duration(n * float64(time.Second)))
}

func formatStatusBadge(v any) string {
	switch val := v.(type) {
	case bool:
		if val {
			return "Ready"
		}
		return "NotReady"
	case string:
		return cases.Title(language.English).String(strings.ToLower(val))
	default:
		return formatText(v)
	}
}

func formatAge(v any, now time.Time) string {
	var ts time.Time
	switch val := v.(type) {
	case string:
		parsed, err := time.Parse(time.RFC3339, val)
		if err != nil {
			return val
		}
		ts = parsed
	default:
		n, ok := toNumber(v)
		if !ok {
			return formatText(v)
		}
		ts = time.Unix(int64(n), 0)
	}
	age := now.Sub(ts)
	if age < 0 {
		age = 0
	}
	return humanizeAge(age)
}

func formatBoolean(v any) string {
	switch val := v.(type) {
	case bool:
		return boolMark(val)
	case string:
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err != nil {
			return val
		}
		return boolMark(b)
	default:
		n, ok := toNumber(v)
		if !ok {
			return formatText(v)
		}
		return boolMark(n != 0)
	}
}

func boolMark(b bool) string {
	if b {
		return "✓"
	}
	return "✗"
}

func toNumber(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSuffix(val, "%"), 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// humanizeDuration renders d with at most two units: "45s", "2m30s", "1h5m", "3d4h".
func humanizeDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	d = d.Round(time.Second)
	days := d / (24 * time.Hour)
	hours := (d % (24 * time.Hour)) / time.Hour
	minutes := (d % time.Hour) / time.Minute
	seconds := (d % time.Minute) / time.Second

	switch {
	case days > 0:
		return joinUnits(int(days), "d", int(hours), "h")
	case hours > 0:
		return joinUnits(int(hours), "h", int(minutes), "m")
	case minutes > 0:
		return joinUnits(int(minutes), "m", int(seconds), "s")
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

func joinUnits(major int, majorUnit string, minor int, minorUnit string) string {
	if minor == 0 {
		return fmt.Sprintf("%d%s", major, majorUnit)
	}
	return fmt.Sprintf("%d%s%d%s", major, majorUnit, minor, minorUnit)
}

// humanizeAge renders an age with a single unit, the way kubectl does.
func humanizeAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d/time.Second))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d/time.Hour))
	default:
		return fmt.Sprintf("%dd", int(d/(24*time.Hour)))
	}
}
