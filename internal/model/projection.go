package model

import "fmt"

// Entry is one row of a projection. It is implemented only by PlainEntry,
// ListHeaderEntry and ListElementEntry; consumers switch on the concrete type.
type Entry interface {
	EntryID() string
	EntryScope() Scope
	isEntry()
}

// PlainEntry mirrors a record that is not list-valued.
type PlainEntry struct {
	Record VariableRecord
}

// ListHeaderEntry mirrors a list-valued record.
type ListHeaderEntry struct {
	Record       VariableRecord
	ElementCount int
}

// ListElementEntry is one decoded element of a list-valued record.
// Its ID is only meaningful against the build it came from.
type ListElementEntry struct {
	ID       string // parentID#index
	ParentID string
	Index    int
	Value    string
	Scope    Scope
}

func (e PlainEntry) EntryID() string   { return e.Record.ID }
func (e PlainEntry) EntryScope() Scope { return e.Record.Scope }
func (PlainEntry) isEntry()            {}

func (e ListHeaderEntry) EntryID() string   { return e.Record.ID }
func (e ListHeaderEntry) EntryScope() Scope { return e.Record.Scope }
func (ListHeaderEntry) isEntry()            {}

func (e ListElementEntry) EntryID() string   { return e.ID }
func (e ListElementEntry) EntryScope() Scope { return e.Scope }
func (ListElementEntry) isEntry()            {}

// ElementID builds the synthetic id of a list element.
func ElementID(parentID string, index int) string {
	return fmt.Sprintf("%s#%d", parentID, index)
}
