package console

import (
	"neurovoice/internal/analysis"
	"neurovoice/internal/playback"
	"neurovoice/internal/session"
	"neurovoice/internal/timefmt"
	"neurovoice/internal/transcript"
)

// View is the read-only rendering of the session served to the UI.
type View struct {
	SessionID   string        `json:"session_id"`
	File        string        `json:"file,omitempty"`
	Stage       session.Stage `json:"stage"`
	ActionLabel string        `json:"action_label"`
	CanSelect   bool          `json:"can_select"`
	CanRun      bool          `json:"can_run"`
	CanPlay     bool          `json:"can_play"`
	Failure     string        `json:"failure,omitempty"`

	Summary      string                 `json:"summary,omitempty"`
	SpeakerRoles []analysis.SpeakerRole `json:"speaker_roles,omitempty"`
	Transcript   []RowView              `json:"transcript"`

	Playback PlaybackView `json:"playback"`
}

// RowView is one transcript row.
type RowView struct {
	Timestamp      string           `json:"timestamp"`
	Start          float64          `json:"start"`
	End            float64          `json:"end"`
	SpeakerID      string           `json:"speaker"`
	Role           string           `json:"role"`
	Emotion        string           `json:"emotion,omitempty"`
	SourceText     string           `json:"source_text"`
	TranslatedText string           `json:"translated_text"`
	Active         bool             `json:"active"`
	Badge          transcript.Badge `json:"badge,omitempty"`
}

// PlaybackView is the player state with the formatted clock.
type PlaybackView struct {
	IsPlaying   bool    `json:"is_playing"`
	CurrentTime float64 `json:"current_time"`
	Clock       string  `json:"clock"`
	Duration    float64 `json:"duration"`
}

func buildView(s session.Session, st playback.State, duration float64) View {
	v := View{
		SessionID:   s.ID.String(),
		Stage:       s.Stage,
		ActionLabel: s.Stage.Label(),
		CanSelect:   !s.Stage.Busy(),
		CanRun:      s.File != nil && s.Stage == session.StageIdle,
		CanPlay:     s.Stage == session.StageReady,
		Failure:     s.Failure,
		Transcript:  []RowView{},
		Playback:    playbackView(st, duration),
	}
	if s.File != nil {
		v.File = s.File.Name
	}
	if s.Transcription == nil {
		return v
	}

	v.Summary = s.Transcription.Summary
	v.SpeakerRoles = s.Transcription.SpeakerRoles
	for _, r := range transcript.Rows(st.CurrentTime, s.Transcription.Segments) {
		v.Transcript = append(v.Transcript, RowView{
			Timestamp:      r.Segment.StartTime,
			Start:          r.Start,
			End:            r.End,
			SpeakerID:      r.Segment.SpeakerID,
			Role:           r.Segment.Role,
			Emotion:        r.Segment.Emotion,
			SourceText:     r.Segment.SourceText,
			TranslatedText: r.Segment.TranslatedText,
			Active:         r.Active,
			Badge:          r.Badge,
		})
	}
	return v
}

func playbackView(st playback.State, duration float64) PlaybackView {
	return PlaybackView{
		IsPlaying:   st.IsPlaying,
		CurrentTime: st.CurrentTime,
		Clock:       timefmt.FormatSeconds(st.CurrentTime),
		Duration:    duration,
	}
}
