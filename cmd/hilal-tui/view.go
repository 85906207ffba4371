package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/unklstewy/hilalscope/internal/render"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	inputStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
)

func (m model) View() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("HILALSCOPE  crescent visibility " + m.state.Date().Format("Mon 2006-01-02")))
	s.WriteString("  ")
	s.WriteString(m.renderStatus())
	s.WriteString("\n\n")

	if m.inputMode == "search" {
		s.WriteString(promptStyle.Render("Search for a place (saved places first, then Nominatim):"))
		s.WriteString("\n")
		s.WriteString(inputStyle.Render("> " + m.inputBuffer + "_"))
		s.WriteString("\n\n")
		s.WriteString(helpStyle.Render("ENTER: Search  ESC: Cancel"))
		return s.String()
	}

	mw, mh := m.mapSize()
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		m.canvas.Render(mw, mh),
		strings.Repeat(" ", panelGap),
		m.renderPanel(),
	))
	s.WriteString("\n")

	switch {
	case m.err != nil:
		s.WriteString(errStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	case m.notice != "":
		s.WriteString(noticeStyle.Render(m.notice))
	default:
		s.WriteString(helpStyle.Render("←↑↓→ move  ENTER select  [ ] day  t today  / search  p save place  n grey cells  q quit"))
	}
	return s.String()
}

// mapSize gives the map whatever the detail panel leaves over.
func (m model) mapSize() (int, int) {
	w := m.width - panelGap - panelMin
	h := m.height - 4
	if w < 20 {
		w = 20
	}
	if h < 8 {
		h = 8
	}
	return w, h
}

func (m model) renderStatus() string {
	frac := m.progressFraction()
	if frac >= 1 {
		c := m.progress.completed
		if c.Cells == 0 {
			return doneStyle.Render("Scan complete")
		}
		f := m.state.Formatter()
		return doneStyle.Render(fmt.Sprintf("Scan complete: %s cells in %s",
			f.Number(float64(c.Cells), 0), c.Elapsed.Round(10*time.Millisecond)))
	}

	const barWidth = 20
	filled := int(frac * barWidth)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
	return noticeStyle.Render(fmt.Sprintf("Scanning %s %3.0f%%", bar, frac*100))
}

func (m model) renderPanel() string {
	var p strings.Builder

	p.WriteString(headerStyle.Render("Selected location"))
	p.WriteString("\n\n")
	for _, row := range m.state.Rows(m.detail) {
		p.WriteString(labelStyle.Render(fmt.Sprintf("%-18s", row.Label)))
		p.WriteString(valueStyle.Render(row.Value))
		p.WriteString("\n")
	}

	p.WriteString("\n")
	p.WriteString(headerStyle.Render("Cursor"))
	p.WriteString("\n")
	f := m.state.Formatter()
	p.WriteString(valueStyle.Render(fmt.Sprintf("%s, %s", f.Degrees(m.cursorLat), f.Degrees(m.cursorLon))))
	p.WriteString("\n\n")

	p.WriteString(headerStyle.Render("Legend"))
	p.WriteString("\n")
	p.WriteString(render.Legend(m.canvas.ShowNotVisible))
	return p.String()
}
