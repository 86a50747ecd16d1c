// Package listvalue decodes and encodes delimiter-separated variable values
// such as PATH, and decides which variables are treated as lists.
package listvalue

import (
	"strings"

	"envman/internal/model"
)

// Delimiter separates the elements of a list-valued variable.
const Delimiter = ";"

// listNames is the fixed set of names recognized as list-valued.
var listNames = map[string]struct{}{
	"PATH":        {},
	"CLASSPATH":   {},
	"PYTHONPATH":  {},
	"PYTHON_PATH": {},
	"PATHEXT":     {},
}

// Decode splits value on the delimiter, trims each segment and drops empty
// ones. Order and duplicates are preserved. It never fails.
func Decode(value string) []string {
	parts := strings.Split(value, Delimiter)
	elements := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		elements = append(elements, p)
	}
	return elements
}

// Encode joins elements with the delimiter, without a trailing delimiter.
// Elements are written verbatim.
func Encode(elements []string) string {
	return strings.Join(elements, Delimiter)
}

// IsListName reports whether name belongs to the recognized list names,
// ignoring case.
func IsListName(name string) bool {
	_, ok := listNames[strings.ToUpper(name)]
	return ok
}

// IsListValued reports whether r should be projected as a list: its name is
// recognized and its value contains the delimiter.
func IsListValued(r model.VariableRecord) bool {
	return IsListName(r.Name) && strings.Contains(r.Value, Delimiter)
}
