package plugin

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// LintFinding is an advisory note about a manifest that is valid but
// probably not what the author intended.
type LintFinding struct {
	Field   string
	Message string
}

func (f LintFinding) String() string {
	return fmt.Sprintf("%s: %s", f.Field, f.Message)
}

// Lint returns advisory findings for a manifest. Findings never make a
// manifest invalid; run Validate for that.
func Lint(m *Manifest) []LintFinding {
	var findings []LintFinding

	if m.Version != "" && !semver.IsValid(canonicalVersion(m.Version)) {
		findings = append(findings, LintFinding{
			Field:   "version",
			Message: fmt.Sprintf("%q is not a semantic version; use MAJOR.MINOR.PATCH", m.Version),
		})
	}

	if m.Source != nil && len(m.Columns) == 0 {
		findings = append(findings, LintFinding{
			Field:   "columns",
			Message: "source is set but no columns read from it",
		})
	}

	if len(m.Columns) > 0 && len(m.EnabledColumns()) == 0 {
		findings = append(findings, LintFinding{
			Field:   "columns",
			Message: "every column is disabled",
		})
	}

	if m.Source == nil && len(m.Columns) > 0 {
		findings = append(findings, LintFinding{
			Field:   "source",
			Message: "columns are defined but there is no source to read them from",
		})
	}

	return findings
}

func canonicalVersion(v string) string {
	if !strings.HasPrefix(v, "v") {
		return "v" + v
	}
	return v
}
