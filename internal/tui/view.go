package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"envman/internal/listvalue"
	"envman/internal/model"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	sectionStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	normalStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	invalidStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	adviceStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("208")) // Orange
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))

	borderColor = lipgloss.Color("63")
	activeColor = lipgloss.Color("205")
)

func (m AppModel) View() string {
	if m.Loading {
		return "\n  Loading environment variables... please wait.\n"
	}
	if m.Err != nil {
		return fmt.Sprintf("\n  Error: %v\n\n  Press q to quit.\n", m.Err)
	}

	switch m.Mode {
	case ModeHelp:
		return m.renderHelpDialog()
	case ModeInvalid:
		return m.renderInvalidDialog()
	case ModeConfirmDelete:
		return m.renderConfirmDialog()
	}

	width := max(m.WindowSize.Width, 60)
	height := max(m.WindowSize.Height, 12)

	netWidth := width - 6
	leftWidth := netWidth * 55 / 100
	rightWidth := netWidth - leftWidth

	// Title, status and footer lines plus borders
	interiorHeight := max(height-7, 3)

	left := lipgloss.NewStyle().
		Width(leftWidth).
		Height(interiorHeight).
		Border(lipgloss.NormalBorder()).
		BorderForeground(activeColor).
		Render(m.renderList(leftWidth, interiorHeight))

	right := lipgloss.NewStyle().
		Width(rightWidth).
		Height(interiorHeight).
		Border(lipgloss.NormalBorder()).
		BorderForeground(borderColor).
		Render(clipLines(m.renderDetails(), rightWidth, interiorHeight))

	title := titleStyle.Render("envman " + model.Version)
	if m.SearchActive {
		title += dimStyle.Render(fmt.Sprintf("  search: %q", m.SearchTerm))
	}

	status := m.Status
	switch {
	case m.Busy && status == "":
		status = "Working..."
	case status == "":
		status = " "
	}
	statusLine := normalStyle.Render(status)
	if m.StatusErr {
		statusLine = invalidStyle.Render(status)
	}

	footer := dimStyle.Render("↑/↓ move • enter toggle/edit • e edit • d delete • v validate • i invalid • / search • r reload • x export • ? help • q quit")
	switch m.Mode {
	case ModeEdit:
		footer = fmt.Sprintf("Edit %s: %s", m.describe(m.EditTarget), m.InputBuffer.View())
	case ModeSearch:
		footer = fmt.Sprintf("Search: %s", m.InputBuffer.View())
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		lipgloss.JoinHorizontal(lipgloss.Top, left, right),
		statusLine,
		footer,
	)
}

// renderList draws the rows around the cursor.
func (m AppModel) renderList(width, height int) string {
	if len(m.rows) == 0 {
		if m.SearchActive {
			return dimStyle.Render("No matches.")
		}
		return dimStyle.Render("No variables.")
	}

	startIdx := 0
	endIdx := len(m.rows)
	if len(m.rows) > height {
		if m.SelectedIdx >= height/2 {
			startIdx = m.SelectedIdx - height/2
		}
		if startIdx+height > len(m.rows) {
			startIdx = len(m.rows) - height
		}
		endIdx = startIdx + height
	}

	var sb strings.Builder
	for i := startIdx; i < endIdx; i++ {
		r := m.rows[i]
		line := truncate(m.rowText(r), width)

		style := normalStyle
		switch {
		case i == m.SelectedIdx:
			style = selectedStyle
		case r.kind == rowSection:
			style = sectionStyle
		case rowValidity(r.entry) == model.ValidityFalse:
			style = invalidStyle
		}
		sb.WriteString(style.Render(line))
		if i < endIdx-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func (m AppModel) rowText(r row) string {
	if r.kind == rowSection {
		icon := model.IconCollapsed
		if r.expanded {
			icon = model.IconExpanded
		}
		return fmt.Sprintf("%s %s (%d)", icon, strings.ToUpper(string(r.scope)), r.count)
	}

	exp := m.ctrl.Expansion()
	switch e := r.entry.(type) {
	case model.PlainEntry:
		return fmt.Sprintf("  %s %s = %s", model.ValidityIcon(e.Record.Valid), e.Record.Name, e.Record.Value)
	case model.ListHeaderEntry:
		icon := model.IconCollapsed
		if exp.ListExpanded(e.Record.ID) || m.SearchActive {
			icon = model.IconExpanded
		}
		return fmt.Sprintf("  %s %s %s (%d entries)", model.ValidityIcon(e.Record.Valid), icon, e.Record.Name, e.ElementCount)
	case model.ListElementEntry:
		return fmt.Sprintf("      %s %2d. %s", model.IconElement, e.Index, e.Value)
	}
	return ""
}

func rowValidity(e model.Entry) model.Validity {
	switch e := e.(type) {
	case model.PlainEntry:
		return e.Record.Valid
	case model.ListHeaderEntry:
		return e.Record.Valid
	}
	return model.ValidityUnknown
}

// renderDetails describes the record behind the selected row.
func (m AppModel) renderDetails() string {
	r, ok := m.selected()
	if !ok {
		return sectionStyle.Render("Details") + "\n\nNothing selected."
	}

	var sb strings.Builder
	sb.WriteString(sectionStyle.Render("Details"))
	sb.WriteString("\n")

	if r.kind == rowSection {
		sb.WriteString(fmt.Sprintf("\nScope:      %s", r.scope))
		sb.WriteString(fmt.Sprintf("\nVariables:  %d", r.count))
		sb.WriteString(dimStyle.Render("\n\nenter to expand or collapse"))
		return sb.String()
	}

	var (
		rec     model.VariableRecord
		element = -1
	)
	switch e := r.entry.(type) {
	case model.PlainEntry:
		rec = e.Record
	case model.ListHeaderEntry:
		rec = e.Record
	case model.ListElementEntry:
		parent, found := m.ctrl.Record(e.ParentID)
		if !found {
			sb.WriteString("\nElement of a variable that no longer exists.")
			return sb.String()
		}
		rec = parent
		element = e.Index
	}

	sb.WriteString(fmt.Sprintf("\nName:       %s", rec.Name))
	sb.WriteString(fmt.Sprintf("\nScope:      %s", rec.Scope))
	sb.WriteString(fmt.Sprintf("\nStatus:     %s", validityText(rec.Valid)))
	if note := rec.NoteString(); note != "" {
		sb.WriteString(fmt.Sprintf("\nNote:       %s", note))
	}
	if !rec.UpdatedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("\nUpdated:    %s", rec.UpdatedAt.Local().Format("2006-01-02 15:04:05")))
	}
	sb.WriteString(dimStyle.Render(fmt.Sprintf("\nID:         %s", rec.ID)))

	if !listvalue.IsListValued(rec) {
		sb.WriteString("\n\n--- Value ---\n")
		sb.WriteString(rec.Value)
		return sb.String()
	}

	elements := listvalue.Decode(rec.Value)
	sb.WriteString(fmt.Sprintf("\n\n--- %d Elements ---", len(elements)))
	for i, v := range elements {
		prefix := "  "
		if i == element {
			prefix = "» "
		}
		sb.WriteString(fmt.Sprintf("\n%s%2d. %s", prefix, i, v))
	}
	return sb.String()
}

func validityText(v model.Validity) string {
	switch v {
	case model.ValidityTrue:
		return okStyle.Render(model.IconValid + " valid")
	case model.ValidityFalse:
		return adviceStyle.Render(model.IconInvalid + " invalid")
	}
	return "not validated"
}

func (m AppModel) renderConfirmDialog() string {
	name := m.describe(m.DeleteTarget)
	body := fmt.Sprintf("Delete %s?\n\n", name) + dimStyle.Render("y/enter to delete, n/esc to cancel")
	dialog := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("208")).
		Padding(1, 2).
		Render(body)
	return m.place(dialog)
}

func (m AppModel) renderInvalidDialog() string {
	w := max(m.WindowSize.Width*80/100, 40)
	h := max(m.WindowSize.Height-6, 8)
	visible := h - 6

	start := 0
	if m.InvalidIdx >= visible {
		start = m.InvalidIdx - visible + 1
	}
	end := min(start+visible, len(m.Invalid))

	var sb strings.Builder
	sb.WriteString(titleStyle.Render(fmt.Sprintf("Invalid variables (%d of %d selected)", len(m.selectedInvalid()), len(m.Invalid))))
	sb.WriteString("\n\n")
	for i := start; i < end; i++ {
		r := m.Invalid[i]
		box := model.IconCleared
		if m.InvalidSelected[r.ID] {
			box = model.IconSelected
		}
		line := truncate(fmt.Sprintf("%s [%s] %s = %s", box, r.Scope, r.Name, r.Value), w-4)
		if i == m.InvalidIdx {
			line = selectedStyle.Render(line)
		}
		sb.WriteString(line + "\n")
	}
	sb.WriteString(dimStyle.Render("\nspace toggle • a all/none • enter delete selected • esc close"))

	dialog := lipgloss.NewStyle().
		Width(w).
		Height(h).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("208")). // Orange
		Padding(0, 1).
		Render(sb.String())
	return m.place(dialog)
}

func (m AppModel) renderHelpDialog() string {
	dialog := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Padding(0, 1).
		Render(m.HelpViewport.View() + "\n" + dimStyle.Render("↑/↓ scroll • esc close"))
	return m.place(dialog)
}

func (m AppModel) place(dialog string) string {
	w, h := m.WindowSize.Width, m.WindowSize.Height
	if w < 20 || h < 10 {
		return dialog
	}
	return lipgloss.Place(w, h, lipgloss.Center, lipgloss.Center, dialog)
}

// truncate shortens s to width cells, keeping escape sequences intact.
func truncate(s string, width int) string {
	if width <= 3 {
		return s
	}
	return ansi.Truncate(s, width, "...")
}

// clipLines truncates every line and keeps at most height of them.
func clipLines(s string, width, height int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > height {
		lines = lines[:height]
	}
	for i, l := range lines {
		lines[i] = truncate(l, width)
	}
	return strings.Join(lines, "\n")
}
