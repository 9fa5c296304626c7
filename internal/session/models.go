package session

import (
	"neurovoice/internal/analysis"

	"github.com/google/uuid"
)

// Stage is a named step of the session pipeline.
type Stage string

const (
	StageIdle             Stage = "idle"
	StageUploading        Stage = "uploading"
	StageProcessingAI     Stage = "processing_ai"
	StageProcessingRhythm Stage = "processing_rhythm"
	StageReady            Stage = "ready"
	StageError            Stage = "error"
)

// Busy reports whether a pipeline run is in flight.
func (s Stage) Busy() bool {
	switch s {
	case StageUploading, StageProcessingAI, StageProcessingRhythm:
		return true
	default:
		return false
	}
}

// Label returns the text shown on the run action for the stage.
func (s Stage) Label() string {
	switch s {
	case StageIdle:
		return "Analyze session"
	case StageUploading:
		return "Uploading..."
	case StageProcessingAI:
		return "Querying AI..."
	case StageProcessingRhythm:
		return "Computing rhythm..."
	case StageReady:
		return "Analysis complete"
	case StageError:
		return "Process failed"
	default:
		return ""
	}
}

// FailureMessage is the only failure text surfaced to the user; the cause is logged.
const FailureMessage = "process failed"

// Session is the state of one analysis of one selected file.
// Transcription is set only once the stage has moved past processing_ai and
// Rhythm only once the stage is ready.
type Session struct {
	ID            uuid.UUID
	File          *analysis.AudioFile
	Stage         Stage
	Transcription *analysis.Transcription
	Rhythm        analysis.Rhythm
	Failure       string
}
