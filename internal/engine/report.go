package engine

import (
	"fmt"
	"strings"

	"envman/internal/model"
)

// EntryView is the flat, serializable form of a projection entry.
type EntryView struct {
	Kind         string `json:"kind"` // plain, list, element
	ID           string `json:"id"`
	ParentID     string `json:"parentId,omitempty"`
	Index        *int   `json:"index,omitempty"` // set for elements, 0 included
	Name         string `json:"name,omitempty"`
	Value        string `json:"value"`
	Scope        string `json:"scope"`
	Note         string `json:"note,omitempty"`
	ElementCount int    `json:"elementCount,omitempty"`
	Validity     string `json:"validity,omitempty"`
}

// Views flattens entries for JSON output.
func Views(entries []model.Entry) []EntryView {
	views := make([]EntryView, 0, len(entries))
	for _, e := range entries {
		switch e := e.(type) {
		case model.PlainEntry:
			views = append(views, EntryView{
				Kind:     "plain",
				ID:       e.Record.ID,
				Name:     e.Record.Name,
				Value:    e.Record.Value,
				Scope:    string(e.Record.Scope),
				Note:     e.Record.NoteString(),
				Validity: e.Record.Valid.String(),
			})
		case model.ListHeaderEntry:
			views = append(views, EntryView{
				Kind:         "list",
				ID:           e.Record.ID,
				Name:         e.Record.Name,
				Value:        e.Record.Value,
				Scope:        string(e.Record.Scope),
				Note:         e.Record.NoteString(),
				ElementCount: e.ElementCount,
				Validity:     e.Record.Valid.String(),
			})
		case model.ListElementEntry:
			views = append(views, EntryView{
				Kind:     "element",
				ID:       e.ID,
				ParentID: e.ParentID,
				Index:    &e.Index,
				Value:    e.Value,
				Scope:    string(e.Scope),
			})
		}
	}
	return views
}

// GenerateReport renders a projection as plain text grouped by scope.
// Verbose adds record ids, notes and timestamps.
func GenerateReport(entries []model.Entry, verbose bool) string {
	var sb strings.Builder
	sb.WriteString("Environment Variables Report\n")
	sb.WriteString("============================\n")

	var lastScope model.Scope
	plain, lists, elements, invalid := 0, 0, 0, 0
	for _, e := range entries {
		if s := e.EntryScope(); s != lastScope {
			lastScope = s
			fmt.Fprintf(&sb, "\n[%s]\n", strings.ToUpper(string(s)))
		}
		switch e := e.(type) {
		case model.PlainEntry:
			plain++
			if e.Record.Valid == model.ValidityFalse {
				invalid++
			}
			fmt.Fprintf(&sb, "%s %s=%s\n", model.ValidityIcon(e.Record.Valid), e.Record.Name, e.Record.Value)
			writeDetails(&sb, e.Record, verbose)
		case model.ListHeaderEntry:
			lists++
			if e.Record.Valid == model.ValidityFalse {
				invalid++
			}
			fmt.Fprintf(&sb, "%s %s (%d entries)\n", model.ValidityIcon(e.Record.Valid), e.Record.Name, e.ElementCount)
			writeDetails(&sb, e.Record, verbose)
		case model.ListElementEntry:
			elements++
			fmt.Fprintf(&sb, "    %2d. %s\n", e.Index+1, e.Value)
		}
	}

	sb.WriteString("\nSummary\n-------\n")
	fmt.Fprintf(&sb, "Variables:       %d\n", plain+lists)
	fmt.Fprintf(&sb, "List variables:  %d (%d elements)\n", lists, elements)
	fmt.Fprintf(&sb, "Invalid:         %d\n", invalid)
	return sb.String()
}

func writeDetails(sb *strings.Builder, r model.VariableRecord, verbose bool) {
	if !verbose {
		return
	}
	fmt.Fprintf(sb, "    id:      %s\n", r.ID)
	if note := r.NoteString(); note != "" {
		fmt.Fprintf(sb, "    note:    %s\n", note)
	}
	if !r.UpdatedAt.IsZero() {
		fmt.Fprintf(sb, "    updated: %s\n", r.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
}
