package liveview

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/webwatch/monitor/internal/history"
)

var (
	critStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))  // red
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")) // yellow
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))  // dim gray

	headerStyle    = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	detailStyle    = lipgloss.NewStyle().Padding(0, 1)
	separatorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Model is the Bubble Tea model backing `monitor now`.
type Model struct {
	generatedAt time.Time
	allAlerts   []history.AlertView // full sorted set
	alerts      []history.AlertView // current view (may be filtered)
	table       table.Model
	width       int
	height      int
	quitting    bool
	searching   bool
	searchInput textinput.Model
}

// NewModel builds a TUI model from the current active-alert set.
func NewModel(alerts []history.AlertView, generatedAt time.Time) *Model {
	sorted := sortAlerts(alerts)

	cols := []table.Column{
		{Title: "SEV", Width: 8},
		{Title: "KIND", Width: 16},
		{Title: "ENTITY", Width: 16},
		{Title: "PLATFORM", Width: 30},
		{Title: "AGE", Width: 10},
	}

	rows := make([]table.Row, len(sorted))
	for i := range sorted {
		rows[i] = alertToRow(&sorted[i], generatedAt)
	}

	s := table.DefaultStyles()
	s.Header = s.Header.Bold(true).BorderBottom(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240"))
	s.Selected = s.Selected.Bold(true).
		Foreground(lipgloss.Color("15")).
		Background(lipgloss.Color("57"))

	t := table.New(
		table.WithColumns(cols),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(10),
		table.WithStyles(s),
	)

	ti := textinput.New()
	ti.Placeholder = "type to filter..."
	ti.CharLimit = 64

	return &Model{
		generatedAt: generatedAt,
		table:       t,
		allAlerts:   sorted,
		alerts:      sorted,
		width:       80,
		height:      24,
		searchInput: ti,
	}
}

// Init satisfies tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles key events.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.searching {
		return m.updateSearch(msg)
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "esc":
			if m.searchInput.Value() != "" {
				m.searchInput.SetValue("")
				m.applyFilter()
				return m, nil
			}
			m.quitting = true
			return m, tea.Quit
		case "/":
			m.searching = true
			return m, m.searchInput.Focus()
		case "g":
			m.table.GotoTop()
			return m, nil
		case "G":
			m.table.GotoBottom()
			return m, nil
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetHeight(m.tableHeight())
		m.table.SetWidth(m.width)
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) updateSearch(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			m.searching = false
			m.searchInput.Blur()
			return m, nil
		case "esc":
			m.searching = false
			m.searchInput.SetValue("")
			m.searchInput.Blur()
			m.applyFilter()
			return m, nil
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetHeight(m.tableHeight())
		m.table.SetWidth(m.width)
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	m.applyFilter()
	return m, cmd
}

// View renders the full TUI.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.headerView())
	b.WriteByte('\n')
	b.WriteString(m.table.View())
	b.WriteByte('\n')
	b.WriteString(separatorStyle.Render(strings.Repeat("─", m.width)))
	b.WriteByte('\n')
	b.WriteString(m.detailView())
	b.WriteByte('\n')
	b.WriteString(m.footerView())
	return b.String()
}

func (m *Model) headerView() string {
	var crit, warn int
	for i := range m.alerts {
		switch severityOf(m.alerts[i]) {
		case SeverityCritical:
			crit++
		case SeverityWarn:
			warn++
		}
	}

	title := headerStyle.Render(fmt.Sprintf("webwatch-monitor · %s",
		m.generatedAt.UTC().Format("2006-01-02 15:04 UTC")))

	totalStr := fmt.Sprintf("Total: %d", len(m.alerts))
	if len(m.alerts) != len(m.allAlerts) {
		totalStr = fmt.Sprintf("Showing: %d/%d", len(m.alerts), len(m.allAlerts))
	}

	counts := headerStyle.Render(fmt.Sprintf(
		"%s  %s  %s",
		critStyle.Render(fmt.Sprintf("Critical: %d", crit)),
		warnStyle.Render(fmt.Sprintf("Warn: %d", warn)),
		totalStr,
	))

	return title + "\n" + counts
}

func (m *Model) detailView() string {
	if len(m.alerts) == 0 {
		if m.searchInput.Value() != "" {
			return detailStyle.Render(dimStyle.Render("No matches."))
		}
		return detailStyle.Render("No active alerts.")
	}

	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.alerts) {
		return ""
	}

	a := &m.alerts[idx]
	var lines []string
	lines = append(lines, fmt.Sprintf("Platform: %s", a.PlatformURL))
	lines = append(lines, fmt.Sprintf("Entity: %s", a.EntityName))
	lines = append(lines, fmt.Sprintf("Status: %s", a.Status))
	if a.Details != "" {
		detail := a.Details
		if severityOf(*a) == SeverityCritical {
			detail = critStyle.Render(detail)
		}
		lines = append(lines, fmt.Sprintf("Details: %s", detail))
	}

	return detailStyle.Render(strings.Join(lines, "\n"))
}

func (m *Model) footerView() string {
	if m.searching {
		return " /" + m.searchInput.View()
	}
	help := " q quit · ↑↓/jk navigate · g/G top/bottom · / search"
	if m.searchInput.Value() != "" {
		help += " · esc clear"
	}
	return dimStyle.Render(help)
}

func (m *Model) tableHeight() int {
	reserved := 12
	h := m.height - reserved
	if h < 3 {
		h = 3
	}
	return h
}

func (m *Model) applyFilter() {
	query := strings.ToLower(m.searchInput.Value())
	if query == "" {
		m.alerts = m.allAlerts
	} else {
		var filtered []history.AlertView
		for i := range m.allAlerts {
			a := &m.allAlerts[i]
			hay := strings.ToLower(a.EntityName + " " + a.PlatformURL + " " + string(a.Kind) + " " + a.Details)
			if strings.Contains(hay, query) {
				filtered = append(filtered, m.allAlerts[i])
			}
		}
		m.alerts = filtered
	}
	m.rebuildRows()
}

func (m *Model) rebuildRows() {
	rows := make([]table.Row, len(m.alerts))
	for i := range m.alerts {
		rows[i] = alertToRow(&m.alerts[i], m.generatedAt)
	}
	m.table.SetRows(rows)
}

// PlainText returns a non-interactive text representation for piped output.
func PlainText(alerts []history.AlertView, generatedAt time.Time) string {
	sorted := sortAlerts(alerts)
	if len(sorted) == 0 {
		return "No active alerts."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-8s %-16s %-16s %-30s %s\n", "SEV", "KIND", "ENTITY", "PLATFORM", "AGE")
	fmt.Fprintf(&b, "%-8s %-16s %-16s %-30s %s\n", "---", "----", "------", "--------", "---")
	for i := range sorted {
		row := alertToRow(&sorted[i], generatedAt)
		fmt.Fprintf(&b, "%-8s %-16s %-16s %-30s %s\n", row[0], row[1], row[2], row[3], row[4])
	}
	return b.String()
}

func alertToRow(a *history.AlertView, now time.Time) table.Row {
	var sev string
	switch severityOf(*a) {
	case SeverityCritical:
		sev = "CRIT"
	case SeverityWarn:
		sev = "WARN"
	default:
		sev = "INFO"
	}
	return table.Row{sev, string(a.Kind), a.EntityName, a.PlatformURL, formatAge(a.CreatedAt, now)}
}

func formatAge(createdAt, now time.Time) string {
	d := now.Sub(createdAt)
	if d < 0 {
		d = 0
	}
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh", hours)
	default:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
}

// sortAlerts returns a sorted copy: critical first, then warn, earliest
// created first within the same severity (longest-standing issue surfaces
// first).
func sortAlerts(alerts []history.AlertView) []history.AlertView {
	sorted := make([]history.AlertView, len(alerts))
	copy(sorted, alerts)

	sort.SliceStable(sorted, func(i, j int) bool {
		si, sj := severityOf(sorted[i]), severityOf(sorted[j])
		if si != sj {
			return si > sj
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	return sorted
}
