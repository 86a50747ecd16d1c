package model

import (
	_ "embed"
	"strings"
)

//go:embed help.md
var helpMD string

// Help returns the user guide shown by the TUI help overlay and the web UI.
func Help() string {
	return strings.ReplaceAll(helpMD, "{{VERSION}}", Version)
}
