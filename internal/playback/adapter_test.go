package playback

import (
	"errors"
	"log/slog"
	"os"
	"testing"

	"neurovoice/internal/analysis"
)

// fakeEngine records calls and lets tests emit notifications directly.
type fakeEngine struct {
	duration float64
	loadErr  error
	loads    int
	releases int
	toggles  int
	gen      uint64
	listener func(uint64, Event)
	onLoad   func()
}

func (f *fakeEngine) Load(file analysis.AudioFile) (Track, error) {
	f.gen++
	if f.onLoad != nil {
		f.onLoad()
	}
	if f.loadErr != nil {
		return Track{}, f.loadErr
	}
	f.loads++
	return Track{Gen: f.gen, Duration: f.duration}, nil
}

func (f *fakeEngine) PlayPause()                    { f.toggles++ }
func (f *fakeEngine) Seek(progress float64)         { f.emit(Seeked{Progress: progress}) }
func (f *fakeEngine) Peaks(bars int) []float64      { return make([]float64, bars) }
func (f *fakeEngine) Listen(fn func(uint64, Event)) { f.listener = fn }

func (f *fakeEngine) Release() {
	f.gen++
	f.releases++
}

// emit delivers ev for the currently loaded audio.
func (f *fakeEngine) emit(ev Event) { f.emitFor(f.gen, ev) }

func (f *fakeEngine) emitFor(gen uint64, ev Event) {
	if f.listener != nil {
		f.listener(gen, ev)
	}
}

func newTestAdapter(t *testing.T, duration float64) (*Adapter, *fakeEngine) {
	t.Helper()
	eng := &fakeEngine{duration: duration}
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewAdapter(eng, log, nil), eng
}

var rhythm = analysis.Rhythm{{Timestamp: 0, Kind: analysis.RhythmNormal}, {Timestamp: 2.5, Kind: analysis.RhythmPause}}

func TestAdapter_Load_releases_previous(t *testing.T) {
	a, eng := newTestAdapter(t, 120)

	for i := 0; i < 3; i++ {
		if err := a.Load(analysis.AudioFile{Name: "a.wav"}, rhythm); err != nil {
			t.Fatalf("Load: %v", err)
		}
	}
	if eng.loads != 3 || eng.releases != 3 {
		t.Errorf("each load must release first: loads=%d releases=%d", eng.loads, eng.releases)
	}
	if a.Duration() != 120 || len(a.Rhythm()) != 2 {
		t.Errorf("duration=%v rhythm=%v", a.Duration(), a.Rhythm())
	}
}

func TestAdapter_Load_failure(t *testing.T) {
	a, eng := newTestAdapter(t, 120)
	eng.loadErr = errors.New("bad header")

	err := a.Load(analysis.AudioFile{Name: "a.wav"}, rhythm)
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	if st := a.PlayPause(); st.IsPlaying || eng.toggles != 0 {
		t.Error("play must be a no-op without loaded audio")
	}
}

func TestAdapter_PlayPause_twice_restores_state(t *testing.T) {
	a, eng := newTestAdapter(t, 60)
	if err := a.Load(analysis.AudioFile{Name: "a.wav"}, nil); err != nil {
		t.Fatalf("Load: %v", err)
	}

	before := a.State().IsPlaying
	if st := a.PlayPause(); st.IsPlaying == before {
		t.Error("first toggle should change IsPlaying")
	}
	if st := a.PlayPause(); st.IsPlaying != before {
		t.Error("second toggle should restore IsPlaying")
	}
	if eng.toggles != 2 {
		t.Errorf("engine toggles = %d, want 2", eng.toggles)
	}
}

func TestAdapter_PlayPause_without_audio(t *testing.T) {
	a, _ := newTestAdapter(t, 60)
	a.PlayPause()
	a.PlayPause()
	if a.State().IsPlaying {
		t.Error("nothing loaded: state must not change")
	}
}

func TestAdapter_position_and_finish(t *testing.T) {
	a, eng := newTestAdapter(t, 60)
	var changes []State
	a.OnChange(func(s State) { changes = append(changes, s) })
	if err := a.Load(analysis.AudioFile{Name: "a.wav"}, nil); err != nil {
		t.Fatalf("Load: %v", err)
	}

	a.PlayPause()
	eng.emit(PositionChanged{Seconds: 12.5})
	if st := a.State(); st.CurrentTime != 12.5 || !st.IsPlaying {
		t.Errorf("after position: %+v", st)
	}
	eng.emit(PositionChanged{Seconds: -3})
	if st := a.State(); st.CurrentTime != 0 {
		t.Errorf("negative position should clamp to 0: %+v", st)
	}

	eng.emit(Finished{})
	if st := a.State(); st.IsPlaying {
		t.Error("finish should stop playback")
	}
	if len(changes) != 4 {
		t.Errorf("owner should see every change, got %d", len(changes))
	}
}

func TestAdapter_Seek_maps_progress_to_seconds(t *testing.T) {
	a, _ := newTestAdapter(t, 200)
	if err := a.Load(analysis.AudioFile{Name: "a.wav"}, nil); err != nil {
		t.Fatalf("Load: %v", err)
	}

	a.Seek(0.25)
	if st := a.State(); st.CurrentTime != 50 {
		t.Errorf("seek 0.25 of 200s = %v, want 50", st.CurrentTime)
	}
	a.Seek(1.7)
	if st := a.State(); st.CurrentTime != 200 {
		t.Errorf("seek beyond end should clamp, got %v", st.CurrentTime)
	}
}

func TestAdapter_ignores_events_after_release(t *testing.T) {
	a, eng := newTestAdapter(t, 60)
	if err := a.Load(analysis.AudioFile{Name: "a.wav"}, rhythm); err != nil {
		t.Fatalf("Load: %v", err)
	}
	a.Release()

	eng.emit(PositionChanged{Seconds: 30})
	if st := a.State(); st.CurrentTime != 0 {
		t.Errorf("released adapter should ignore events: %+v", st)
	}
	if a.Rhythm() != nil || a.Waveform(10) != nil {
		t.Error("release should drop rhythm and waveform")
	}
}

func TestAdapter_ignores_events_from_replaced_audio(t *testing.T) {
	a, eng := newTestAdapter(t, 60)
	if err := a.Load(analysis.AudioFile{Name: "a.wav"}, nil); err != nil {
		t.Fatalf("Load: %v", err)
	}
	a.PlayPause()
	old := eng.gen

	if err := a.Load(analysis.AudioFile{Name: "b.wav"}, nil); err != nil {
		t.Fatalf("Load: %v", err)
	}
	var changes int
	a.OnChange(func(State) { changes++ })

	eng.emitFor(old, PositionChanged{Seconds: 42})
	eng.emitFor(old, Finished{})
	if st := a.State(); st.CurrentTime != 0 || changes != 0 {
		t.Errorf("notifications for replaced audio must be dropped: %+v changes=%d", st, changes)
	}

	eng.emit(PositionChanged{Seconds: 5})
	if st := a.State(); st.CurrentTime != 5 || changes != 1 {
		t.Errorf("current audio notifications apply: %+v changes=%d", st, changes)
	}
}

func TestAdapter_Release_during_Load(t *testing.T) {
	a, eng := newTestAdapter(t, 60)
	eng.onLoad = func() {
		if st := a.State(); st.IsPlaying {
			t.Error("state should be readable while decoding")
		}
		a.Release()
	}

	err := a.Load(analysis.AudioFile{Name: "a.wav"}, rhythm)
	if !errors.Is(err, ErrReleased) {
		t.Fatalf("expected ErrReleased, got %v", err)
	}
	if a.Duration() != 0 || a.Rhythm() != nil {
		t.Errorf("released load must not leave audio behind: duration=%v", a.Duration())
	}
	if eng.releases != 3 {
		t.Errorf("decoded audio should be released again, releases=%d", eng.releases)
	}
}
