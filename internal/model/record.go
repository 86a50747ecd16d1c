package model

import (
	"strings"
	"time"
)

// Scope classifies a variable as user-level or system-level.
type Scope string

const (
	ScopeUser   Scope = "user"
	ScopeSystem Scope = "system"
)

// ParseScope maps a case-insensitive name to a Scope.
func ParseScope(s string) (Scope, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user":
		return ScopeUser, true
	case "system":
		return ScopeSystem, true
	}
	return "", false
}

// Validity is the tri-state result of the last bulk validation.
type Validity int

const (
	ValidityUnknown Validity = iota
	ValidityTrue
	ValidityFalse
)

func (v Validity) String() string {
	switch v {
	case ValidityTrue:
		return "valid"
	case ValidityFalse:
		return "invalid"
	}
	return "unknown"
}

// VariableRecord is one stored environment variable.
type VariableRecord struct {
	ID        string    `json:"id"`              // Opaque, unique within the store
	Name      string    `json:"name"`            // e.g. PATH
	Value     string    `json:"value"`           // Raw value, list-valued names use ';'
	Scope     Scope     `json:"type"`            // user or system
	Note      *string   `json:"remark"`          // Optional free-form remark
	CreatedAt time.Time `json:"createdAt"`       // Set by the gateway on create
	UpdatedAt time.Time `json:"updatedAt"`       // Bumped by the gateway on update
	Valid     Validity  `json:"valid,omitempty"` // Stamped by the controller, never persisted
}

// NoteString returns the note or "" when unset.
func (r VariableRecord) NoteString() string {
	if r.Note == nil {
		return ""
	}
	return *r.Note
}

// ValidationResult is one entry of a bulk validation.
type ValidationResult struct {
	ID    string `json:"id"`
	Valid bool   `json:"valid"`
}

// SearchQuery filters records. Empty fields match everything.
type SearchQuery struct {
	NameKeyword   string  `json:"nameKeyword,omitempty"`
	ValueKeyword  string  `json:"valueKeyword,omitempty"`
	RemarkKeyword string  `json:"remarkKeyword,omitempty"`
	Scopes        []Scope `json:"types,omitempty"`
}
