package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/unklstewy/hilalscope/internal/app"
	"github.com/unklstewy/hilalscope/internal/render"
	"github.com/unklstewy/hilalscope/internal/scan"
)

// Map viewport defaults, used until the first WindowSizeMsg.
const (
	mapWidth  = 90
	mapHeight = 32
	panelGap  = 2
	panelMin  = 38
)

// searchTimeout bounds a place lookup or a save.
const searchTimeout = 15 * time.Second

// scanStepMsg carries the next slice of the live scan through the event loop.
type scanStepMsg struct {
	step *scan.Step
}

// searchResultMsg carries a resolved place back from a search command.
type searchResultMsg struct {
	query    string
	location app.Location
	err      error
}

// scanProgress is shared with the scheduler's completion callback.
type scanProgress struct {
	row, col  int
	done      bool
	completed scan.Completion
}

type model struct {
	state    *app.State
	canvas   *render.Canvas
	progress *scanProgress
	detail   app.Detail
	pending  *scan.Step

	cursorLat float64
	cursorLon float64

	width  int
	height int

	inputMode   string // "search" or ""
	inputBuffer string
	notice      string
	err         error
}

func newModel(state *app.State, canvas *render.Canvas, progress *scanProgress, date time.Time) model {
	sel := state.Selected()
	canvas.SetCursor(sel.Latitude, sel.Longitude)
	detail, first := state.SetDate(date)
	return model{
		state:     state,
		canvas:    canvas,
		progress:  progress,
		detail:    detail,
		pending:   first,
		cursorLat: sel.Latitude,
		cursorLon: sel.Longitude,
		width:     mapWidth + panelGap + panelMin,
		height:    mapHeight + 6,
	}
}

func stepCmd(step *scan.Step) tea.Cmd {
	if step == nil {
		return nil
	}
	return func() tea.Msg {
		return scanStepMsg{step: step}
	}
}

// searchCmd resolves query off the event loop; the result is selected in Update.
func searchCmd(state *app.State, query string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), searchTimeout)
		defer cancel()
		loc, err := state.Resolve(ctx, query)
		return searchResultMsg{query: query, location: loc, err: err}
	}
}

// startDate switches the date and schedules the first slice of the new scan.
func (m model) startDate(date time.Time) (model, tea.Cmd) {
	d, step := m.state.SetDate(date)
	m.detail = d
	if step != nil {
		*m.progress = scanProgress{}
	}
	return m, stepCmd(step)
}

func (m model) shiftDate(days int) (model, tea.Cmd) {
	return m.startDate(m.state.Date().AddDate(0, 0, days))
}

func (m model) Init() tea.Cmd {
	return stepCmd(m.pending)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case scanStepMsg:
		next := msg.step.Run()
		if next != nil {
			m.progress.row, m.progress.col = next.Position()
		}
		return m, stepCmd(next)

	case searchResultMsg:
		m.notice = ""
		switch {
		case errors.Is(msg.err, app.ErrPlaceNotFound):
			m.notice = fmt.Sprintf("No place found for %q", msg.query)
			return m, nil
		case msg.err != nil:
			m.err = msg.err
			return m, nil
		}
		loc := msg.location
		d, err := m.state.Select(loc.Latitude, loc.Longitude, loc.Label)
		if err != nil {
			m.err = err
			return m, nil
		}
		m.detail = d
		m.cursorLat, m.cursorLon = loc.Latitude, loc.Longitude
		m.canvas.SetCursor(m.cursorLat, m.cursorLon)
		return m, nil

	case tea.KeyMsg:
		if m.inputMode != "" {
			return m.updateInput(msg)
		}

		// Clear notices on any keypress
		if m.err != nil || m.notice != "" {
			m.err = nil
			m.notice = ""
		}

		step := m.state.Scheduler().Grid().Step
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "up", "k":
			m.moveCursor(step, 0)
		case "down", "j":
			m.moveCursor(-step, 0)
		case "left", "h":
			m.moveCursor(0, -step)
		case "right", "l":
			m.moveCursor(0, step)
		case "enter", " ":
			d, err := m.state.Select(m.cursorLat, m.cursorLon, "")
			if err != nil {
				m.err = err
				return m, nil
			}
			m.detail = d
		case "[":
			return m.shiftDate(-1)
		case "]":
			return m.shiftDate(1)
		case "t":
			return m.startDate(time.Now().UTC())
		case "n":
			m.canvas.ShowNotVisible = !m.canvas.ShowNotVisible
			if m.canvas.ShowNotVisible {
				m.notice = "Grey cells appear from the next scan"
			}
		case "/":
			m.inputMode = "search"
			m.inputBuffer = ""
		case "p":
			ctx, cancel := context.WithTimeout(context.Background(), searchTimeout)
			defer cancel()
			if err := m.state.SaveSelected(ctx); err != nil {
				m.err = err
				return m, nil
			}
			m.notice = fmt.Sprintf("Saved %q", m.state.Selected().Label)
		}
	}

	return m, nil
}

func (m model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		query := m.inputBuffer
		m.inputMode = ""
		m.inputBuffer = ""

		m.notice = fmt.Sprintf("Searching for %q...", query)
		return m, searchCmd(m.state, query)
	case "esc":
		m.inputMode = ""
		m.inputBuffer = ""
	case "backspace":
		if len(m.inputBuffer) > 0 {
			runes := []rune(m.inputBuffer)
			m.inputBuffer = string(runes[:len(runes)-1])
		}
	default:
		switch msg.Type {
		case tea.KeyRunes:
			m.inputBuffer += string(msg.Runes)
		case tea.KeySpace:
			m.inputBuffer += " "
		}
	}
	return m, nil
}

// moveCursor steps the cursor, clamping latitude and wrapping longitude.
func (m *model) moveCursor(dLat, dLon float64) {
	m.cursorLat += dLat
	if m.cursorLat > 90 {
		m.cursorLat = 90
	}
	if m.cursorLat < -90 {
		m.cursorLat = -90
	}
	m.cursorLon += dLon
	for m.cursorLon >= 180 {
		m.cursorLon -= 360
	}
	for m.cursorLon < -180 {
		m.cursorLon += 360
	}
	m.canvas.SetCursor(m.cursorLat, m.cursorLon)
}

// progressFraction is the share of the grid the live scan has emitted.
func (m model) progressFraction() float64 {
	if m.progress.done || !m.state.Scheduler().Busy() {
		return 1
	}
	grid := m.state.Scheduler().Grid()
	done := m.progress.row*grid.Cols() + m.progress.col
	return float64(done) / float64(grid.Cells())
}
