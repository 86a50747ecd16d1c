// Package tui is the terminal front end over an engine.Controller.
package tui

import (
	"context"
	"log/slog"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"envman/internal/engine"
	"envman/internal/model"
)

// Mode is what the keyboard currently drives.
type Mode int

const (
	ModeBrowse Mode = iota
	ModeEdit
	ModeConfirmDelete
	ModeInvalid
	ModeSearch
	ModeHelp
)

// rowKind distinguishes scope headings from projection entries.
type rowKind int

const (
	rowSection rowKind = iota
	rowEntry
)

// row is one line of the left panel.
type row struct {
	kind     rowKind
	scope    model.Scope
	count    int  // records in the section
	expanded bool // section rows only
	entry    model.Entry
}

// AppModel holds the TUI state.
type AppModel struct {
	ctx    context.Context
	ctrl   *engine.Controller
	logger *slog.Logger

	// Data
	rows    []row
	Loading bool
	Err     error

	// UI State
	SelectedIdx int
	WindowSize  tea.WindowSizeMsg
	Mode        Mode

	// Edit / delete
	InputBuffer  textinput.Model
	EditTarget   string
	DeleteTarget string

	// Search State
	SearchActive  bool
	SearchTerm    string
	SearchEntries []model.Entry

	// Delete-invalid dialog
	Invalid         []model.VariableRecord
	InvalidSelected map[string]bool
	InvalidIdx      int

	// Status line
	Status    string
	StatusErr bool
	Busy      bool

	// Components
	HelpViewport viewport.Model
}

// InitialModel returns the initial state. The first refresh runs from Init.
func InitialModel(ctx context.Context, ctrl *engine.Controller, logger *slog.Logger) AppModel {
	ti := textinput.New()
	ti.CharLimit = 4096
	ti.Width = 60

	vp := viewport.New(80, 20)
	vp.SetContent(model.Help())

	if logger == nil {
		logger = slog.Default()
	}
	return AppModel{
		ctx:             ctx,
		ctrl:            ctrl,
		logger:          logger.With("component", "tui"),
		Loading:         true,
		InputBuffer:     ti,
		InvalidSelected: make(map[string]bool),
		HelpViewport:    vp,
	}
}

func (m AppModel) Init() tea.Cmd {
	return refreshCmd(m.ctx, m.ctrl)
}

// rebuild recomputes rows from the controller, or from the last search.
func (m *AppModel) rebuild() {
	if m.SearchActive {
		rows := make([]row, 0, len(m.SearchEntries))
		for _, e := range m.SearchEntries {
			rows = append(rows, row{kind: rowEntry, scope: e.EntryScope(), entry: e})
		}
		m.rows = rows
	} else {
		m.rows = buildRows(m.ctrl.Projection(), m.ctrl.Expansion())
	}
	m.clampCursor()
}

// buildRows lays out a heading per scope followed by its visible entries.
func buildRows(full []model.Entry, exp engine.ExpansionState) []row {
	var (
		scopes []model.Scope
		counts = make(map[model.Scope]int)
	)
	for _, e := range full {
		sc := e.EntryScope()
		if _, seen := counts[sc]; !seen {
			scopes = append(scopes, sc)
			counts[sc] = 0
		}
		if _, isElem := e.(model.ListElementEntry); !isElem {
			counts[sc]++
		}
	}

	visible := engine.Visible(full, exp)
	var rows []row
	for _, sc := range scopes {
		rows = append(rows, row{kind: rowSection, scope: sc, count: counts[sc], expanded: exp.SectionExpanded(sc)})
		for _, e := range visible {
			if e.EntryScope() == sc {
				rows = append(rows, row{kind: rowEntry, scope: sc, entry: e})
			}
		}
	}
	return rows
}

func (m *AppModel) clampCursor() {
	if m.SelectedIdx >= len(m.rows) {
		m.SelectedIdx = len(m.rows) - 1
	}
	if m.SelectedIdx < 0 {
		m.SelectedIdx = 0
	}
}

// selected returns the row under the cursor.
func (m AppModel) selected() (row, bool) {
	if m.SelectedIdx < 0 || m.SelectedIdx >= len(m.rows) {
		return row{}, false
	}
	return m.rows[m.SelectedIdx], true
}

// selectID moves the cursor to the row for id, if present.
func (m *AppModel) selectID(id string) {
	for i, r := range m.rows {
		if r.kind == rowEntry && r.entry.EntryID() == id {
			m.SelectedIdx = i
			return
		}
	}
}

func (m *AppModel) setStatus(msg string) {
	m.Status = msg
	m.StatusErr = false
}

func (m *AppModel) setError(err error) {
	m.Status = err.Error()
	m.StatusErr = true
	m.logger.Warn("operation failed", "error", err)
}
