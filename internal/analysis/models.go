package analysis

import (
	"encoding/json"
	"strconv"
	"strings"
)

// AudioFile is the opaque handle for a selected recording.
type AudioFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// Fluency is the upstream fluency classification of a segment. The zero value
// means no annotation.
type Fluency string

const (
	FluencyNone    Fluency = ""
	FluencySlow    Fluency = "slow"
	FluencyBlocked Fluency = "blocked"
)

// UnmarshalJSON maps the remote labels ("normal", "lento", "bloqueo") onto
// Fluency. Anything unrecognised, including null, is FluencyNone.
func (f *Fluency) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil || s == nil {
		*f = FluencyNone
		return nil
	}
	switch strings.ToLower(strings.TrimSpace(*s)) {
	case "lento", "slow":
		*f = FluencySlow
	case "bloqueo", "blocked":
		*f = FluencyBlocked
	default:
		*f = FluencyNone
	}
	return nil
}

// SpeakerRole attributes a clinical role to a diarized speaker.
type SpeakerRole struct {
	SpeakerID string `json:"hablante"`
	Role      string `json:"rol"`
}

// Segment is one timestamped utterance of the transcript.
// StartTime and EndTime are displayed timestamps ("MM:SS").
type Segment struct {
	StartTime      string  `json:"inicio"`
	EndTime        string  `json:"fin"`
	SpeakerID      string  `json:"hablante"`
	Role           string  `json:"rol"`
	Emotion        string  `json:"emocion,omitempty"`
	SourceText     string  `json:"texto_es"`
	TranslatedText string  `json:"texto_en"`
	Fluency        Fluency `json:"fluidez"`
}

// UnmarshalJSON accepts "inicio" and "fin" as strings or as plain seconds.
// Any other value, including null, leaves the timestamp empty, which reads
// as zero.
func (s *Segment) UnmarshalJSON(b []byte) error {
	type plain Segment
	aux := struct {
		*plain
		StartTime json.RawMessage `json:"inicio"`
		EndTime   json.RawMessage `json:"fin"`
	}{plain: (*plain)(s)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	s.StartTime = timestampText(aux.StartTime)
	s.EndTime = timestampText(aux.EndTime)
	return nil
}

func timestampText(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

// Transcription is the result of the transcription/diarization stage.
type Transcription struct {
	Summary      string        `json:"resumen_clinico"`
	SpeakerRoles []SpeakerRole `json:"roles_identificados"`
	Segments     []Segment     `json:"dialogo"`
}

// RhythmKind classifies a stretch of audio in the rhythm analysis.
type RhythmKind string

const (
	RhythmNormal      RhythmKind = "normal"
	RhythmPause       RhythmKind = "pausa"
	RhythmAccelerated RhythmKind = "acelerado"
	RhythmOther       RhythmKind = "ajeno" // not the patient speaking
)

// RhythmMark starts a run of the given kind at Timestamp seconds.
// The remote service only emits a mark when the kind changes.
type RhythmMark struct {
	Timestamp float64    `json:"timestamp"`
	Kind      RhythmKind `json:"tipo"`
}

// Rhythm is the result of the rhythm analysis stage.
type Rhythm []RhythmMark
