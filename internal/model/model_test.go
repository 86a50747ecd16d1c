package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScope(t *testing.T) {
	for in, want := range map[string]Scope{"user": ScopeUser, " System ": ScopeSystem, "USER": ScopeUser} {
		got, ok := ParseScope(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseScope("machine")
	assert.False(t, ok)
}

func TestValidityIcon(t *testing.T) {
	assert.Equal(t, IconValid, ValidityIcon(ValidityTrue))
	assert.Equal(t, IconInvalid, ValidityIcon(ValidityFalse))
	assert.Equal(t, IconUnknown, ValidityIcon(ValidityUnknown))
	assert.Equal(t, "invalid", ValidityFalse.String())
}

func TestElementID(t *testing.T) {
	assert.Equal(t, "abc#3", ElementID("abc", 3))
	assert.Equal(t, "abc#3", ListElementEntry{ID: ElementID("abc", 3)}.EntryID())
}

func TestFileHelpers(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	assert.Equal(t, filepath.Join(home, "bin"), ExpandTilde("~/bin"))
	assert.Equal(t, home, ExpandTilde("~"))
	assert.Equal(t, "/abs/~/x", ExpandTilde("/abs/~/x"))

	file := filepath.Join(home, "f")
	require.NoError(t, os.WriteFile(file, nil, 0o600))
	assert.True(t, DirExists(home))
	assert.False(t, DirExists(file))
	assert.True(t, PathExists(file))
	assert.False(t, PathExists(filepath.Join(home, "missing")))
}

func TestHelpHasVersion(t *testing.T) {
	assert.Contains(t, Help(), "# envman "+Version)
	assert.NotContains(t, Help(), "{{VERSION}}")
}
