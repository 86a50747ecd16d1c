package engine

import (
	"sort"

	"envman/internal/model"
)

// Tracker keeps the per-record validity from bulk validation results.
// It is not safe for concurrent use; the Controller guards it.
type Tracker struct {
	states map[string]model.Validity
}

func NewTracker() *Tracker {
	return &Tracker{states: make(map[string]model.Validity)}
}

// Merge applies results. Ids missing from results keep their state.
func (t *Tracker) Merge(results []model.ValidationResult) {
	for _, r := range results {
		if r.Valid {
			t.states[r.ID] = model.ValidityTrue
		} else {
			t.states[r.ID] = model.ValidityFalse
		}
	}
}

// Get returns the state of id, Unknown if never validated.
func (t *Tracker) Get(id string) model.Validity {
	return t.states[id]
}

// Reset returns id to Unknown after its value changed.
func (t *Tracker) Reset(id string) {
	delete(t.states, id)
}

// Forget drops id entirely once the record is gone.
func (t *Tracker) Forget(id string) {
	delete(t.states, id)
}

// InvalidIDs lists every id whose state is False, sorted.
func (t *Tracker) InvalidIDs() []string {
	var ids []string
	for id, v := range t.states {
		if v == model.ValidityFalse {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
