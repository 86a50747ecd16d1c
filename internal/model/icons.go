package model

// Centralized icons for the UI components
// Using simple single-width characters for consistent terminal rendering
const (
	IconExpanded  = "▾" // Open list or section
	IconCollapsed = "▸" // Closed list or section
	IconElement   = "·" // List element row
	IconInvalid   = "✗" // Failed the last validation
	IconValid     = "✓" // Passed the last validation
	IconUnknown   = " " // Not validated since load or last edit
	IconSelected  = "■" // Checked in the delete-invalid dialog
	IconCleared   = "□" // Unchecked in the delete-invalid dialog
)

// ValidityIcon returns the status icon for v.
func ValidityIcon(v Validity) string {
	switch v {
	case ValidityTrue:
		return IconValid
	case ValidityFalse:
		return IconInvalid
	}
	return IconUnknown
}
