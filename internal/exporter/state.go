package exporter

import "fmt"

// State is the export session state. Idle is the only reentry point;
// Complete, Cancelled and Failed are terminal for the session and reset to
// Idle when the next export begins.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateParsing
	StateBuildingDocument
	StateExportingGeometry
	StateExportingMaterials
	StateExportingRigging
	StateSaving
	StateComplete
	StateCancelled
	StateFailed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating options"
	case StateParsing:
		return "parsing scene"
	case StateBuildingDocument:
		return "building document"
	case StateExportingGeometry:
		return "exporting geometry"
	case StateExportingMaterials:
		return "exporting materials"
	case StateExportingRigging:
		return "exporting rigging"
	case StateSaving:
		return "saving"
	case StateComplete:
		return "complete"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Terminal reports whether the state ends a session.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateCancelled || s == StateFailed
}

// Progress weighting across phases. Each phase interpolates between its
// bounds while iterating its items.
const (
	progressParseStart   = 0.0
	progressParseEnd     = 30.0
	progressDocument     = 30.0
	progressGeometryEnd  = 60.0
	progressMaterialsEnd = 80.0
	progressRiggingEnd   = 90.0
	progressSaveEnd      = 100.0
)
