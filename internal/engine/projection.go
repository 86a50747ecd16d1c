package engine

import (
	"envman/internal/listvalue"
	"envman/internal/model"
)

// DefaultSectionOrder lists user variables before system variables.
var DefaultSectionOrder = []model.Scope{model.ScopeUser, model.ScopeSystem}

// Build projects records into display entries, grouped by scope in the given
// order and in store order within a group. Records of a scope missing from
// order follow the listed groups. A list-valued record yields its header and
// then one element entry per decoded element, whatever the expansion state.
func Build(records []model.VariableRecord, order []model.Scope) []model.Entry {
	groups := make(map[model.Scope][]model.VariableRecord)
	var extra []model.Scope
	listed := make(map[model.Scope]bool, len(order))
	for _, s := range order {
		listed[s] = true
	}
	for _, r := range records {
		if !listed[r.Scope] {
			if _, seen := groups[r.Scope]; !seen {
				extra = append(extra, r.Scope)
			}
		}
		groups[r.Scope] = append(groups[r.Scope], r)
	}

	entries := make([]model.Entry, 0, len(records))
	emitted := make(map[model.Scope]bool, len(order))
	for _, s := range append(append([]model.Scope{}, order...), extra...) {
		if emitted[s] {
			continue
		}
		emitted[s] = true
		for _, r := range groups[s] {
			entries = appendRecord(entries, r)
		}
	}
	return entries
}

func appendRecord(entries []model.Entry, r model.VariableRecord) []model.Entry {
	if !listvalue.IsListValued(r) {
		return append(entries, model.PlainEntry{Record: r})
	}
	elements := listvalue.Decode(r.Value)
	entries = append(entries, model.ListHeaderEntry{Record: r, ElementCount: len(elements)})
	for i, el := range elements {
		entries = append(entries, model.ListElementEntry{
			ID:       model.ElementID(r.ID, i),
			ParentID: r.ID,
			Index:    i,
			Value:    el,
			Scope:    r.Scope,
		})
	}
	return entries
}

// Visible filters a projection down to the rows a presentation shows for the
// given expansion state: nothing from collapsed sections, and no elements of
// collapsed list headers.
func Visible(entries []model.Entry, state ExpansionState) []model.Entry {
	out := make([]model.Entry, 0, len(entries))
	for _, e := range entries {
		if !state.SectionExpanded(e.EntryScope()) {
			continue
		}
		switch e := e.(type) {
		case model.ListElementEntry:
			if !state.ListExpanded(e.ParentID) {
				continue
			}
		case model.PlainEntry, model.ListHeaderEntry:
		}
		out = append(out, e)
	}
	return out
}
