// Package tui provides terminal user interface entry points for flux9s.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/felixgeelhaar/flux9s/internal/adapters/logging"
	"github.com/felixgeelhaar/flux9s/internal/app"
	"github.com/felixgeelhaar/flux9s/internal/domain/cache"
	"github.com/felixgeelhaar/flux9s/internal/domain/plugin"
	"github.com/felixgeelhaar/flux9s/internal/ports"
	"github.com/felixgeelhaar/flux9s/internal/tui/ui"
)

// PluginSource is what the status view needs from the plugin host.
type PluginSource interface {
	Dir() string
	Tick(ctx context.Context) cache.SweepResult
	Reload(ctx context.Context) (*plugin.LoadResult, error)
	Health(ctx context.Context) map[string]error
	States() []app.PluginState
	Stats() cache.Stats
}

// LogSource supplies recent log entries for the log panel.
type LogSource interface {
	Entries() []logging.Entry
}

// PluginStatusOptions configures the plugin status view.
type PluginStatusOptions struct {
	Source PluginSource
	// Logs may be nil, which hides the log panel.
	Logs LogSource
	// Interval between refresh sweeps. Defaults to ui.DefaultRefreshInterval.
	Interval time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

type pluginStatusModel struct {
	ctx      context.Context
	source   PluginSource
	logs     LogSource
	interval time.Duration
	now      func() time.Time

	styles  ui.Styles
	keys    ui.KeyMap
	help    help.Model
	spinner spinner.Model
	width   int
	height  int

	states     []app.PluginState
	stats      cache.Stats
	health     map[string]error
	lastSweep  time.Time
	sweeping   bool
	cursor     int
	showLogs   bool
	flash      string
	flashIsErr bool
	quitting   bool
}

func newPluginStatusModel(ctx context.Context, opts PluginStatusOptions) pluginStatusModel {
	styles := ui.DefaultStyles()
	interval := opts.Interval
	if interval <= 0 {
		interval = ui.DefaultRefreshInterval
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return pluginStatusModel{
		ctx:      ctx,
		source:   opts.Source,
		logs:     opts.Logs,
		interval: interval,
		now:      now,
		styles:   styles,
		keys:     ui.DefaultKeyMap(),
		help:     help.New(),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.Spinner)),
		width:    ui.DefaultWidth,
		height:   ui.DefaultHeight,
		states:   opts.Source.States(),
		stats:    opts.Source.Stats(),
		sweeping: true,
		showLogs: opts.Logs != nil,
	}
}

// Init starts the spinner and the first sweep.
func (m pluginStatusModel) Init() tea.Cmd {
	return tea.Batch(tea.WindowSize(), m.spinner.Tick, m.sweep())
}

func (m pluginStatusModel) sweep() tea.Cmd {
	return func() tea.Msg {
		return ui.SweepMsg{Result: m.source.Tick(m.ctx)}
	}
}

func (m pluginStatusModel) checkHealth() tea.Cmd {
	return func() tea.Msg {
		return ui.HealthMsg{Results: m.source.Health(m.ctx)}
	}
}

func (m pluginStatusModel) reload() tea.Cmd {
	return func() tea.Msg {
		result, err := m.source.Reload(m.ctx)
		return ui.ReloadedMsg{Result: result, Err: err}
	}
}

// Update handles messages.
func (m pluginStatusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.styles = m.styles.WithWidth(msg.Width)
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case ui.TickMsg:
		if m.sweeping {
			return m, ui.TickAfter(m.interval)
		}
		m.sweeping = true
		return m, m.sweep()

	case ui.SweepMsg:
		m.sweeping = false
		m.lastSweep = m.now()
		m.refresh()
		return m, ui.TickAfter(m.interval)

	case ui.HealthMsg:
		m.health = msg.Results
		failed := 0
		for _, err := range msg.Results {
			if err != nil {
				failed++
			}
		}
		m.setFlash(fmt.Sprintf("health check: %d/%d healthy", len(msg.Results)-failed, len(msg.Results)), failed > 0)
		return m, nil

	case ui.ReloadedMsg:
		if msg.Err != nil {
			m.setFlash("reload failed: "+msg.Err.Error(), true)
			return m, nil
		}
		m.health = nil
		m.refresh()
		m.setFlash(fmt.Sprintf("reloaded %d plugins (%d skipped)", len(msg.Result.Plugins), len(msg.Result.Skipped)), len(msg.Result.Skipped) > 0)
		return m, nil
	}

	return m, nil
}

func (m pluginStatusModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case m.keys.IsUp(msg):
		if m.cursor > 0 {
			m.cursor--
		}
	case m.keys.IsDown(msg):
		if m.cursor < len(m.states)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Reload):
		m.setFlash("reloading plugins...", false)
		return m, m.reload()
	case key.Matches(msg, m.keys.Health):
		m.setFlash("checking health...", false)
		return m, m.checkHealth()
	case key.Matches(msg, m.keys.Logs):
		if m.logs != nil {
			m.showLogs = !m.showLogs
		}
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

func (m *pluginStatusModel) refresh() {
	m.states = m.source.States()
	m.stats = m.source.Stats()
	if m.cursor >= len(m.states) {
		m.cursor = max(len(m.states)-1, 0)
	}
}

func (m *pluginStatusModel) setFlash(text string, isErr bool) {
	m.flash = text
	m.flashIsErr = isErr
}

// View renders the model.
func (m pluginStatusModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	title := m.styles.Title.Render("flux9s plugins")
	if m.sweeping {
		title += " " + m.spinner.View()
	}
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(m.styles.Subtitle.Render(m.source.Dir()))
	b.WriteString("\n\n")

	if len(m.states) == 0 {
		b.WriteString(m.styles.Muted.Render("No plugins loaded."))
		b.WriteString("\n")
	} else {
		b.WriteString(m.styles.Header.Render(statusRow("NAME", "VERSION", "SOURCE", "STATUS", "AGE", "HEALTH")))
		b.WriteString("\n")
		for i, s := range m.states {
			b.WriteString(m.renderState(i, s))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(m.styles.Muted.Render(m.summary()))
	b.WriteString("\n")

	if m.flash != "" {
		style := m.styles.Info
		if m.flashIsErr {
			style = m.styles.Warning
		}
		b.WriteString(style.Render(m.flash))
		b.WriteString("\n")
	}

	if m.showLogs {
		if logs := m.renderLogs(); logs != "" {
			b.WriteString("\n")
			b.WriteString(logs)
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))

	return m.styles.App.Render(b.String())
}

func statusRow(name, version, source, status, age, health string) string {
	return fmt.Sprintf("%-20s %-10s %-15s %-8s %-8s %s", name, version, source, status, age, health)
}

func (m pluginStatusModel) renderState(i int, s app.PluginState) string {
	source := string(s.SourceType)
	if source == "" {
		source = "-"
	}
	age := "-"
	if s.Cached {
		age = m.now().Sub(s.LastRefresh).Truncate(time.Second).String()
	}
	status := stateStatus(s)

	health := "-"
	if err, ok := m.health[s.Name]; ok {
		health = "ok"
		if err != nil {
			health = err.Error()
		}
	}

	line := statusRow(truncate(s.Name, 20), truncate(s.Version, 10), source, status, age, health)
	if i == m.cursor {
		line = m.styles.RowSelected.Render(line)
	} else {
		line = m.styles.Row.Render(line)
	}

	if i == m.cursor && s.LastError != nil {
		line += "\n" + m.styles.Error.Render("  "+s.LastError.Error())
	}
	return line
}

func stateStatus(s app.PluginState) string {
	switch {
	case s.SourceType == "":
		return "static"
	case s.LastError != nil:
		return "error"
	case !s.Cached:
		return "pending"
	case s.Fresh:
		return "fresh"
	default:
		return "stale"
	}
}

func (m pluginStatusModel) summary() string {
	errored := 0
	for _, s := range m.states {
		if s.LastError != nil {
			errored++
		}
	}
	line := fmt.Sprintf("%d plugins, %d cached (%d fresh, %d expired), %d failing",
		len(m.states), m.stats.TotalEntries, m.stats.FreshEntries, m.stats.ExpiredEntries, errored)
	if !m.lastSweep.IsZero() {
		line += ", last sweep " + m.lastSweep.Format("15:04:05")
	}
	return line
}

func (m pluginStatusModel) renderLogs() string {
	entries := m.logs.Entries()
	if len(entries) == 0 {
		return ""
	}
	if len(entries) > ui.DefaultLogLines {
		entries = entries[len(entries)-ui.DefaultLogLines:]
	}

	lines := make([]string, 0, len(entries)+1)
	lines = append(lines, m.styles.PanelTitle.Render("Recent log"))
	for _, e := range entries {
		style := m.styles.Muted
		switch {
		case e.Level >= ports.LevelError:
			style = m.styles.Error
		case e.Level == ports.LevelWarn:
			style = m.styles.Warning
		}
		lines = append(lines, style.Render(e.Time.Format("15:04:05")+" "+e.Text()))
	}
	return m.styles.Panel.Render(strings.Join(lines, "\n"))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

// RunPluginStatus runs the plugin status view until the user quits or ctx
// is cancelled.
func RunPluginStatus(ctx context.Context, opts PluginStatusOptions) error {
	model := newPluginStatusModel(ctx, opts)

	p := tea.NewProgram(model, tea.WithContext(ctx), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("plugin status view failed: %w", err)
	}
	return nil
}
