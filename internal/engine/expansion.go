package engine

import "envman/internal/model"

// ExpansionState holds which list headers and which scope sections are open.
type ExpansionState struct {
	Lists    map[string]bool
	Sections map[model.Scope]bool
}

// NewExpansionState opens every known section and no list header.
func NewExpansionState() ExpansionState {
	return ExpansionState{
		Lists: make(map[string]bool),
		Sections: map[model.Scope]bool{
			model.ScopeUser:   true,
			model.ScopeSystem: true,
		},
	}
}

func (s ExpansionState) ListExpanded(id string) bool { return s.Lists[id] }

func (s ExpansionState) SectionExpanded(scope model.Scope) bool { return s.Sections[scope] }

// ToggleList flips a list header and returns its new state.
func (s *ExpansionState) ToggleList(id string) bool {
	if s.Lists[id] {
		delete(s.Lists, id)
		return false
	}
	s.Lists[id] = true
	return true
}

// ToggleSection flips a scope section and returns its new state.
func (s *ExpansionState) ToggleSection(scope model.Scope) bool {
	if s.Sections[scope] {
		delete(s.Sections, scope)
		return false
	}
	s.Sections[scope] = true
	return true
}

// Clone returns an independent copy.
func (s ExpansionState) Clone() ExpansionState {
	c := ExpansionState{
		Lists:    make(map[string]bool, len(s.Lists)),
		Sections: make(map[model.Scope]bool, len(s.Sections)),
	}
	for k, v := range s.Lists {
		c.Lists[k] = v
	}
	for k, v := range s.Sections {
		c.Sections[k] = v
	}
	return c
}
