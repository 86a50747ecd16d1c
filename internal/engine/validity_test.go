package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"envman/internal/model"
)

func TestTrackerMerge(t *testing.T) {
	tr := NewTracker()
	assert.Equal(t, model.ValidityUnknown, tr.Get("x"))

	tr.Merge([]model.ValidationResult{{ID: "x", Valid: false}, {ID: "y", Valid: true}})
	assert.Equal(t, model.ValidityFalse, tr.Get("x"))
	assert.Equal(t, model.ValidityTrue, tr.Get("y"))
	assert.Equal(t, []string{"x"}, tr.InvalidIDs())

	// Absent ids keep their state.
	tr.Merge([]model.ValidationResult{{ID: "z", Valid: false}})
	assert.Equal(t, model.ValidityFalse, tr.Get("x"))
	assert.Equal(t, model.ValidityTrue, tr.Get("y"))
	assert.Equal(t, []string{"x", "z"}, tr.InvalidIDs())

	tr.Merge([]model.ValidationResult{{ID: "x", Valid: true}})
	assert.Equal(t, []string{"z"}, tr.InvalidIDs())
}

func TestTrackerReset(t *testing.T) {
	tr := NewTracker()
	tr.Merge([]model.ValidationResult{{ID: "x", Valid: false}})
	tr.Reset("x")
	assert.Equal(t, model.ValidityUnknown, tr.Get("x"))
	assert.Empty(t, tr.InvalidIDs())
}
