// Package tui provides a Bubble Tea viewer for cleaned conversations.
package tui

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/minhvu/chatrake/internal/row"
)

// ── Styles ────────────

var (
	// Title bar at the very top
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	// Active tab: bright, underlined
	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	// Inactive tab: muted
	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245")).
				Background(lipgloss.Color("235")).
				Padding(0, 1)

	tabSepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238")).
			Background(lipgloss.Color("235"))

	sectionHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	selfNameStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	otherNameStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	timeStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("178"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	attachStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	labelStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("33")).Bold(true)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("245")).
			Padding(0, 1)
)

// ── Tab definitions ─────────────────

type tabID int

const (
	tabTranscript tabID = iota
	tabStats
	tabCount
)

var tabNames = [tabCount]string{"Transcript", "Stats"}

// ── Model ────────────────────

// Model is the root Bubble Tea model for the viewer.
type Model struct {
	msgs      []row.CleanedMessage
	filename  string
	selfName  string
	activeTab tabID
	viewports [tabCount]viewport.Model
	width     int
	height    int
	ready     bool
}

// New creates a viewer model for the given cleaned conversation.
func New(msgs []row.CleanedMessage, filename, selfName string) Model {
	return Model{
		msgs:     msgs,
		filename: filepath.Base(filename),
		selfName: selfName,
	}
}

// ── Bubble Tea interface ───────────────

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab", "l", "right":
			m.activeTab = (m.activeTab + 1) % tabCount
		case "shift+tab", "h", "left":
			m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
		case "1", "2":
			m.activeTab = tabID(msg.String()[0] - '1')
		case "g":
			m.viewports[m.activeTab].GotoTop()
		case "G":
			m.viewports[m.activeTab].GotoBottom()
		}
		var cmd tea.Cmd
		m.viewports[m.activeTab], cmd = m.viewports[m.activeTab].Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.initViewports()
		return m, nil
	}
	return m, nil
}

func (m Model) View() string {
	if !m.ready {
		return "Loading…"
	}

	title := titleStyle.Width(m.width).Render("  chatrake  " + m.filename)

	var tabParts []string
	for i := tabID(0); i < tabCount; i++ {
		label := fmt.Sprintf(" %d %s ", i+1, tabNames[i])
		if i == m.activeTab {
			tabParts = append(tabParts, activeTabStyle.Render(label))
		} else {
			tabParts = append(tabParts, inactiveTabStyle.Render(label))
		}
		if i < tabCount-1 {
			tabParts = append(tabParts, tabSepStyle.Render("│"))
		}
	}
	tabRow := lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Width(m.width).
		Render(lipgloss.JoinHorizontal(lipgloss.Top, tabParts...))

	content := m.viewports[m.activeTab].View()

	hint := "  ←/→ tab  ↑/↓ scroll  g/G top/bottom  q quit"
	pct := fmt.Sprintf("%3.0f%%", m.viewports[m.activeTab].ScrollPercent()*100)
	pad := m.width - lipgloss.Width(hint) - len(pct) - 2
	if pad < 1 {
		pad = 1
	}
	statusBar := statusBarStyle.Width(m.width).Render(
		hint + strings.Repeat(" ", pad) + pct,
	)

	return lipgloss.JoinVertical(lipgloss.Left, title, tabRow, content, statusBar)
}

// ── Viewport management ───────────────

func (m *Model) initViewports() {
	// title(1) + tabRow(1) + statusBar(1) = 3 fixed rows
	vpHeight := m.height - 3
	if vpHeight < 1 {
		vpHeight = 1
	}
	for i := tabID(0); i < tabCount; i++ {
		vp := viewport.New(m.width, vpHeight)
		vp.SetContent(m.renderTab(i))
		m.viewports[i] = vp
	}
}

func (m *Model) renderTab(t tabID) string {
	switch t {
	case tabTranscript:
		return m.renderTranscript()
	case tabStats:
		return m.renderStats()
	}
	return ""
}

func heading(s string) string {
	return "\n" + sectionHeader.Render("  "+s) + "\n\n"
}

func (m *Model) renderTranscript() string {
	if len(m.msgs) == 0 {
		return dimStyle.Render("\n  (empty conversation)")
	}

	var sb strings.Builder
	lastTS := ""
	for _, msg := range m.msgs {
		if msg.Timestamp != "" && msg.Timestamp != lastTS {
			sb.WriteString("\n" + timeStyle.Render("  ── "+msg.Timestamp+" ──") + "\n")
			lastTS = msg.Timestamp
		}

		nameStyle := otherNameStyle
		if msg.Sender == m.selfName {
			nameStyle = selfNameStyle
		}
		sb.WriteString("\n  " + nameStyle.Render(msg.Sender) + "\n")
		for _, line := range strings.Split(msg.Content, "\n") {
			sb.WriteString("    " + line + "\n")
		}
		for _, att := range msg.Attachments {
			sb.WriteString("    " + attachStyle.Render("⎙ "+att) + "\n")
		}
	}
	return sb.String()
}

func (m *Model) renderStats() string {
	var sb strings.Builder
	sb.WriteString(heading("Conversation Stats"))

	bySender := make(map[string]int)
	attachments := 0
	for _, msg := range m.msgs {
		bySender[msg.Sender]++
		attachments += len(msg.Attachments)
	}

	line := func(label, value string) {
		sb.WriteString(labelStyle.Render(fmt.Sprintf("  %-14s", label)) + "  " + value + "\n")
	}
	line("Messages", fmt.Sprintf("%d", len(m.msgs)))
	line("Attachments", fmt.Sprintf("%d", attachments))
	senders := make([]string, 0, len(bySender))
	for sender := range bySender {
		senders = append(senders, sender)
	}
	sort.Strings(senders)
	for _, sender := range senders {
		line(sender, fmt.Sprintf("%d messages", bySender[sender]))
	}
	return sb.String()
}

// Run starts the viewer for the given cleaned conversation.
func Run(msgs []row.CleanedMessage, filename, selfName string) error {
	p := tea.NewProgram(New(msgs, filename, selfName), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
