package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"envman/internal/model"
)

func TestBuildListValuedRecord(t *testing.T) {
	records := []model.VariableRecord{
		rec("p1", "PATH", "/usr/bin; /bin ;;/opt/bin", model.ScopeUser),
	}

	entries := Build(records, DefaultSectionOrder)

	require.Len(t, entries, 4)
	header, ok := entries[0].(model.ListHeaderEntry)
	require.True(t, ok, "first entry should be the list header, got %T", entries[0])
	assert.Equal(t, 3, header.ElementCount)

	want := []string{"/usr/bin", "/bin", "/opt/bin"}
	for i, w := range want {
		el, ok := entries[i+1].(model.ListElementEntry)
		require.True(t, ok)
		assert.Equal(t, w, el.Value)
		assert.Equal(t, i, el.Index)
		assert.Equal(t, "p1", el.ParentID)
		assert.Equal(t, model.ElementID("p1", i), el.ID)
		assert.Equal(t, model.ScopeUser, el.Scope)
	}
}

func TestBuildGroupsByScopeAndKeepsStoreOrder(t *testing.T) {
	records := []model.VariableRecord{
		rec("s1", "WINDIR", "C:\\Windows", model.ScopeSystem),
		rec("u1", "EDITOR", "vim", model.ScopeUser),
		rec("s2", "Path", "a;b", model.ScopeSystem),
		rec("u2", "MY_PATH", "x;y", model.ScopeUser),
	}

	ids := func(entries []model.Entry) []string {
		var out []string
		for _, e := range entries {
			out = append(out, e.EntryID())
		}
		return out
	}

	assert.Equal(t,
		[]string{"u1", "u2", "s1", "s2", "s2#0", "s2#1"},
		ids(Build(records, []model.Scope{model.ScopeUser, model.ScopeSystem})))
	assert.Equal(t,
		[]string{"s1", "s2", "s2#0", "s2#1", "u1", "u2"},
		ids(Build(records, []model.Scope{model.ScopeSystem, model.ScopeUser})))

	// Scopes missing from the order still appear, after the listed groups.
	assert.Equal(t,
		[]string{"s1", "s2", "s2#0", "s2#1", "u1", "u2"},
		ids(Build(records, []model.Scope{model.ScopeSystem})))
}

func TestBuildPlainEntries(t *testing.T) {
	records := []model.VariableRecord{
		rec("1", "MY_PATH", "/usr/bin;/bin", model.ScopeUser),
		rec("2", "PATH", "/usr/bin", model.ScopeUser),
		rec("3", "EMPTY", "", model.ScopeUser),
	}
	entries := Build(records, DefaultSectionOrder)
	require.Len(t, entries, 3)
	for _, e := range entries {
		_, ok := e.(model.PlainEntry)
		assert.True(t, ok, "%s should be plain", e.EntryID())
	}
}

func TestBuildIgnoresExpansionAndVisibleFilters(t *testing.T) {
	records := []model.VariableRecord{
		rec("u1", "PATH", "a;b", model.ScopeUser),
		rec("s1", "PATH", "c;d;e", model.ScopeSystem),
		rec("s2", "TEMP", "/tmp", model.ScopeSystem),
	}
	entries := Build(records, DefaultSectionOrder)
	require.Len(t, entries, 3+5)

	state := NewExpansionState()
	visible := Visible(entries, state)
	assert.Len(t, visible, 3, "only headers and plain rows while lists are collapsed")

	state.ToggleList("s1")
	visible = Visible(entries, state)
	assert.Len(t, visible, 6)

	state.ToggleSection(model.ScopeSystem)
	visible = Visible(entries, state)
	require.Len(t, visible, 1)
	assert.Equal(t, "u1", visible[0].EntryID())

	// Build output is unaffected by any of this.
	assert.Len(t, Build(records, DefaultSectionOrder), 8)
}

func TestBuildEmpty(t *testing.T) {
	assert.Empty(t, Build(nil, DefaultSectionOrder))
}

func TestParseElementID(t *testing.T) {
	tests := []struct {
		id     string
		parent string
		index  int
		ok     bool
	}{
		{"abc#2", "abc", 2, true},
		{"a#b#10", "a#b", 10, true},
		{"abc#-1", "abc", -1, true},
		{"abc", "", 0, false},
		{"abc#", "", 0, false},
		{"#3", "", 0, false},
		{"abc#x", "", 0, false},
		{"abc#+1", "", 0, false},
		{"abc#01", "", 0, false},
		{"abc#-0", "", 0, false},
		{"abc#00", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			parent, index, ok := ParseElementID(tt.id)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.parent, parent)
			assert.Equal(t, tt.index, index)
		})
	}
}
