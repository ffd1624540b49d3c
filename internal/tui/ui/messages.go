package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/felixgeelhaar/flux9s/internal/domain/cache"
	"github.com/felixgeelhaar/flux9s/internal/domain/plugin"
)

// TickMsg fires when the next refresh sweep is due.
type TickMsg struct {
	Time time.Time
}

// SweepMsg carries the outcome of a refresh sweep.
type SweepMsg struct {
	Result cache.SweepResult
}

// HealthMsg carries per-plugin health check results; nil means healthy.
type HealthMsg struct {
	Results map[string]error
}

// ReloadedMsg carries the outcome of a plugin reload.
type ReloadedMsg struct {
	Result *plugin.LoadResult
	Err    error
}

// ErrorMsg represents an error that occurred during processing.
type ErrorMsg struct {
	Err error
}

func (e ErrorMsg) Error() string {
	return e.Err.Error()
}

// TickAfter schedules a TickMsg after d.
func TickAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}
