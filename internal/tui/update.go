package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"envman/internal/engine"
	"envman/internal/model"
)

// MsgRefreshed reports the end of a reload.
type MsgRefreshed struct{ Err error }

// MsgValidated reports the end of a validation run.
type MsgValidated struct{ Err error }

type MsgEdited struct {
	ID  string
	Err error
}

type MsgDeleted struct {
	ID  string
	Err error
}

type MsgBatchDeleted engine.BatchResult

type MsgSearched struct {
	Term    string
	Entries []model.Entry
	Err     error
}

type MsgExported struct {
	Location string
	Err      error
}

func refreshCmd(ctx context.Context, c *engine.Controller) tea.Cmd {
	return func() tea.Msg { return MsgRefreshed{Err: c.Refresh(ctx)} }
}

func validateCmd(ctx context.Context, c *engine.Controller) tea.Cmd {
	return func() tea.Msg { return MsgValidated{Err: c.ValidateAll(ctx)} }
}

func editCmd(ctx context.Context, c *engine.Controller, id, value string) tea.Cmd {
	return func() tea.Msg { return MsgEdited{ID: id, Err: c.Edit(ctx, id, value)} }
}

func deleteCmd(ctx context.Context, c *engine.Controller, id string) tea.Cmd {
	return func() tea.Msg { return MsgDeleted{ID: id, Err: c.Delete(ctx, id)} }
}

func batchDeleteCmd(ctx context.Context, c *engine.Controller, ids []string) tea.Cmd {
	return func() tea.Msg { return MsgBatchDeleted(c.BatchDelete(ctx, ids)) }
}

func searchCmd(ctx context.Context, c *engine.Controller, term string) tea.Cmd {
	return func() tea.Msg {
		entries, err := c.Search(ctx, model.SearchQuery{NameKeyword: term, ValueKeyword: term})
		return MsgSearched{Term: term, Entries: entries, Err: err}
	}
}

func exportCmd(ctx context.Context, c *engine.Controller) tea.Cmd {
	return func() tea.Msg {
		loc, err := c.Export(ctx)
		return MsgExported{Location: loc, Err: err}
	}
}

// Update handles events.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.WindowSize = msg
		m.HelpViewport.Width = max(msg.Width*80/100-4, 20)
		m.HelpViewport.Height = max(msg.Height-8, 5)
		return m, nil

	case MsgRefreshed:
		m.Loading = false
		m.Busy = false
		if msg.Err != nil {
			if errors.Is(msg.Err, engine.ErrSuperseded) {
				return m, nil
			}
			if len(m.ctrl.Records()) == 0 {
				m.Err = msg.Err
			}
			m.setError(msg.Err)
			return m, nil
		}
		m.Err = nil
		m.rebuild()
		m.setStatus(fmt.Sprintf("Loaded %d variables", len(m.ctrl.Records())))
		return m, nil

	case MsgValidated:
		m.Busy = false
		if msg.Err != nil && !errors.Is(msg.Err, engine.ErrValidationPartial) {
			if !errors.Is(msg.Err, engine.ErrSuperseded) {
				m.setError(msg.Err)
			}
			return m, nil
		}
		m.rebuild()
		if msg.Err != nil {
			m.setError(msg.Err)
		}
		if m.openInvalidDialog() {
			return m, nil
		}
		if msg.Err == nil {
			m.setStatus("All variables are valid")
		}
		return m, nil

	case MsgEdited:
		m.Busy = false
		if msg.Err != nil {
			m.setError(msg.Err)
			return m, nil
		}
		m.rebuild()
		m.selectID(msg.ID)
		m.setStatus("Saved " + m.describe(msg.ID))
		return m, m.researchCmd()

	case MsgDeleted:
		m.Busy = false
		if msg.Err != nil {
			m.setError(msg.Err)
			return m, nil
		}
		m.rebuild()
		m.setStatus("Deleted " + msg.ID)
		return m, m.researchCmd()

	case MsgBatchDeleted:
		m.Busy = false
		res := engine.BatchResult(msg)
		m.rebuild()
		if len(res.Failed) > 0 {
			m.Status = fmt.Sprintf("Deleted %d, %d failed: %v", len(res.Succeeded), len(res.Failed), res.Errors[res.Failed[0]])
			m.StatusErr = true
			return m, nil
		}
		m.setStatus(fmt.Sprintf("Deleted %d invalid variables", len(res.Succeeded)))
		return m, nil

	case MsgSearched:
		m.Busy = false
		if msg.Err != nil {
			if !errors.Is(msg.Err, engine.ErrSuperseded) {
				m.setError(msg.Err)
			}
			return m, nil
		}
		if !m.SearchActive || msg.Term != m.SearchTerm {
			m.SelectedIdx = 0
		}
		m.SearchActive = true
		m.SearchTerm = msg.Term
		m.SearchEntries = msg.Entries
		m.rebuild()
		m.setStatus(fmt.Sprintf("%d matches for %q (esc to clear)", len(msg.Entries), msg.Term))
		return m, nil

	case MsgExported:
		m.Busy = false
		if msg.Err != nil {
			m.setError(msg.Err)
			return m, nil
		}
		m.setStatus("Exported to " + msg.Location)
		return m, nil

	case tea.KeyMsg:
		switch m.Mode {
		case ModeEdit, ModeSearch:
			return m.updateInput(msg)
		case ModeConfirmDelete:
			return m.updateConfirm(msg)
		case ModeInvalid:
			return m.updateInvalid(msg)
		case ModeHelp:
			switch msg.String() {
			case "esc", "q", "?":
				m.Mode = ModeBrowse
				return m, nil
			}
			m.HelpViewport, cmd = m.HelpViewport.Update(msg)
			return m, cmd
		}
		return m.updateBrowse(msg)
	}

	if m.Mode == ModeEdit || m.Mode == ModeSearch {
		m.InputBuffer, cmd = m.InputBuffer.Update(msg)
	}
	return m, cmd
}

func (m AppModel) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "esc":
		if m.SearchActive {
			m.clearSearch()
		}
	case "up", "k":
		if m.SelectedIdx > 0 {
			m.SelectedIdx--
		}
	case "down", "j":
		if m.SelectedIdx < len(m.rows)-1 {
			m.SelectedIdx++
		}
	case "home", "g":
		m.SelectedIdx = 0
	case "end", "G":
		m.SelectedIdx = max(len(m.rows)-1, 0)
	case "enter", " ", "right", "left":
		r, ok := m.selected()
		if !ok {
			return m, nil
		}
		switch e := r.entry.(type) {
		case nil:
			m.ctrl.ToggleSection(r.scope)
			m.rebuild()
		case model.ListHeaderEntry:
			if !m.SearchActive {
				m.ctrl.ToggleList(e.Record.ID)
				m.rebuild()
			}
		default:
			if msg.String() == "enter" {
				return m.startEdit(r)
			}
		}
	case "e":
		if r, ok := m.selected(); ok && r.kind == rowEntry {
			return m.startEdit(r)
		}
	case "d", "delete":
		r, ok := m.selected()
		if !ok || r.kind != rowEntry {
			return m, nil
		}
		if _, isElem := r.entry.(model.ListElementEntry); isElem {
			m.setError(fmt.Errorf("%w: list elements cannot be deleted, edit the element instead", engine.ErrUnsupportedOperation))
			return m, nil
		}
		m.DeleteTarget = r.entry.EntryID()
		m.Mode = ModeConfirmDelete
	case "v":
		m.Busy = true
		m.setStatus("Validating...")
		return m, validateCmd(m.ctx, m.ctrl)
	case "i":
		if !m.openInvalidDialog() {
			m.setStatus("No invalid variables (press v to validate)")
		}
	case "/":
		m.Mode = ModeSearch
		m.InputBuffer.Placeholder = "name or value..."
		m.InputBuffer.SetValue(m.SearchTerm)
		m.InputBuffer.CursorEnd()
		m.InputBuffer.Focus()
		return m, textinput.Blink
	case "r":
		m.Busy = true
		m.setStatus("Reloading...")
		return m, refreshCmd(m.ctx, m.ctrl)
	case "x":
		m.Busy = true
		m.setStatus("Exporting...")
		return m, exportCmd(m.ctx, m.ctrl)
	case "?":
		m.Mode = ModeHelp
		m.HelpViewport.GotoTop()
	}
	return m, nil
}

func (m AppModel) startEdit(r row) (tea.Model, tea.Cmd) {
	var value string
	switch e := r.entry.(type) {
	case model.PlainEntry:
		value = e.Record.Value
	case model.ListHeaderEntry:
		value = e.Record.Value
	case model.ListElementEntry:
		value = e.Value
	default:
		return m, nil
	}
	m.Mode = ModeEdit
	m.EditTarget = r.entry.EntryID()
	m.InputBuffer.Placeholder = ""
	m.InputBuffer.SetValue(value)
	m.InputBuffer.CursorEnd()
	m.InputBuffer.Focus()
	return m, textinput.Blink
}

func (m AppModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg.Type {
	case tea.KeyEnter:
		value := m.InputBuffer.Value()
		mode := m.Mode
		m.Mode = ModeBrowse
		m.InputBuffer.Blur()
		if mode == ModeSearch {
			term := strings.TrimSpace(value)
			if term == "" {
				m.clearSearch()
				return m, nil
			}
			m.Busy = true
			return m, searchCmd(m.ctx, m.ctrl, term)
		}
		m.Busy = true
		m.setStatus("Saving...")
		return m, editCmd(m.ctx, m.ctrl, m.EditTarget, value)
	case tea.KeyEsc:
		m.Mode = ModeBrowse
		m.InputBuffer.Blur()
		m.InputBuffer.SetValue("")
		return m, nil
	}
	m.InputBuffer, cmd = m.InputBuffer.Update(msg)
	return m, cmd
}

func (m AppModel) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y", "enter":
		m.Mode = ModeBrowse
		m.Busy = true
		return m, deleteCmd(m.ctx, m.ctrl, m.DeleteTarget)
	case "n", "N", "esc", "q":
		m.Mode = ModeBrowse
		m.DeleteTarget = ""
	}
	return m, nil
}

func (m AppModel) updateInvalid(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q":
		m.Mode = ModeBrowse
	case "up", "k":
		if m.InvalidIdx > 0 {
			m.InvalidIdx--
		}
	case "down", "j":
		if m.InvalidIdx < len(m.Invalid)-1 {
			m.InvalidIdx++
		}
	case " ", "x":
		if m.InvalidIdx < len(m.Invalid) {
			id := m.Invalid[m.InvalidIdx].ID
			m.InvalidSelected[id] = !m.InvalidSelected[id]
		}
	case "a":
		all := len(m.selectedInvalid()) < len(m.Invalid)
		for _, r := range m.Invalid {
			m.InvalidSelected[r.ID] = all
		}
	case "enter":
		ids := m.selectedInvalid()
		m.Mode = ModeBrowse
		if len(ids) == 0 {
			m.setStatus("Nothing selected")
			return m, nil
		}
		m.Busy = true
		m.setStatus(fmt.Sprintf("Deleting %d variables...", len(ids)))
		return m, batchDeleteCmd(m.ctx, m.ctrl, ids)
	}
	return m, nil
}

// openInvalidDialog loads the invalid records with every one checked. It
// reports false when there is nothing to show.
func (m *AppModel) openInvalidDialog() bool {
	m.Invalid = m.ctrl.InvalidRecords()
	if len(m.Invalid) == 0 {
		return false
	}
	m.InvalidSelected = make(map[string]bool, len(m.Invalid))
	for _, r := range m.Invalid {
		m.InvalidSelected[r.ID] = true
	}
	m.InvalidIdx = 0
	m.Mode = ModeInvalid
	return true
}

// selectedInvalid returns the checked ids in dialog order.
func (m AppModel) selectedInvalid() []string {
	var ids []string
	for _, r := range m.Invalid {
		if m.InvalidSelected[r.ID] {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

// researchCmd repeats the active search so results reflect a write.
func (m AppModel) researchCmd() tea.Cmd {
	if !m.SearchActive {
		return nil
	}
	return searchCmd(m.ctx, m.ctrl, m.SearchTerm)
}

func (m *AppModel) clearSearch() {
	m.SearchActive = false
	m.SearchTerm = ""
	m.SearchEntries = nil
	m.InputBuffer.SetValue("")
	m.rebuild()
	m.setStatus("")
}

// describe names id for the status line.
func (m AppModel) describe(id string) string {
	if r, ok := m.ctrl.Record(id); ok {
		return r.Name
	}
	if parent, index, ok := engine.ParseElementID(id); ok {
		if r, ok := m.ctrl.Record(parent); ok {
			return fmt.Sprintf("%s[%d]", r.Name, index)
		}
	}
	return id
}
