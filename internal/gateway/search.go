package gateway

import (
	"context"
	"slices"
	"strings"

	"envman/internal/model"
)

// Search returns records matching q, in insertion order. Keywords are
// case-insensitive substrings under Unicode case folding. When a name or
// value keyword is given a record matches if either matches; a remark
// keyword must match the note.
func (s *Store) Search(ctx context.Context, q model.SearchQuery) ([]model.VariableRecord, error) {
	records, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.VariableRecord
	for _, r := range records {
		if matches(r, q) {
			out = append(out, r)
		}
	}
	return out, nil
}

func matches(r model.VariableRecord, q model.SearchQuery) bool {
	if len(q.Scopes) > 0 && !slices.Contains(q.Scopes, r.Scope) {
		return false
	}
	if q.NameKeyword != "" || q.ValueKeyword != "" {
		hit := (q.NameKeyword != "" && containsFold(r.Name, q.NameKeyword)) ||
			(q.ValueKeyword != "" && containsFold(r.Value, q.ValueKeyword))
		if !hit {
			return false
		}
	}
	if q.RemarkKeyword != "" && !containsFold(r.NoteString(), q.RemarkKeyword) {
		return false
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
