package playback

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"neurovoice/internal/analysis"
	"neurovoice/internal/platform/metrics"
)

// Event is a notification delivered by an Engine.
type Event interface {
	kind() string
}

// PositionChanged is emitted whenever playback advances.
type PositionChanged struct {
	Seconds float64
}

// Seeked is emitted when the user scrubs the waveform. Progress is the
// normalized position in [0, 1].
type Seeked struct {
	Progress float64
}

// Finished is emitted when playback reaches the end of the audio.
type Finished struct{}

func (PositionChanged) kind() string { return "position" }
func (Seeked) kind() string          { return "seek" }
func (Finished) kind() string        { return "finish" }

// Track describes audio loaded into an Engine. Gen changes on every Load and
// Release, and each notification carries the Gen of the audio it belongs to.
type Track struct {
	Gen      uint64
	Duration float64 // seconds
}

// Engine is the audio playback and waveform capability.
// Load must release previously loaded audio. Events are delivered only from
// Seek and from the engine's own clock, never from Load, PlayPause or Release,
// and never while the engine holds its own lock.
type Engine interface {
	// Load decodes file for playback and waveform rendering.
	Load(file analysis.AudioFile) (Track, error)
	PlayPause()
	Seek(progress float64)
	// Peaks returns bars normalized amplitudes in [0, 1].
	Peaks(bars int) []float64
	Release()
	Listen(fn func(gen uint64, ev Event))
}

var (
	// ErrDecode wraps any failure to load audio into the engine.
	ErrDecode = errors.New("decode audio")

	// ErrReleased is returned by Load when Release ran while the audio was
	// being decoded.
	ErrReleased = errors.New("playback released while loading")
)

// State is the playback state. Only the Adapter mutates it.
type State struct {
	IsPlaying   bool
	CurrentTime float64
}

// Adapter owns the playback state and turns engine notifications into state
// changes, which it reports to its owner through OnChange.
type Adapter struct {
	mu       sync.Mutex
	engine   Engine
	log      *slog.Logger
	metrics  *metrics.Metrics
	loaded   bool
	epoch    uint64 // bumped by every release
	gen      uint64
	duration float64
	state    State
	rhythm   analysis.Rhythm
	onChange func(State)
}

// NewAdapter returns an Adapter subscribed to engine's notifications.
// Metrics may be nil.
func NewAdapter(engine Engine, log *slog.Logger, m *metrics.Metrics) *Adapter {
	a := &Adapter{engine: engine, log: log, metrics: m}
	engine.Listen(a.handle)
	return a
}

// OnChange registers the owner callback invoked after every applied
// notification. It is called without the Adapter's lock held.
func (a *Adapter) OnChange(fn func(State)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onChange = fn
}

// Load releases any previously loaded audio and loads file. The rhythm
// analysis is held for later rendering of waveform regions. The Adapter is not
// locked while the engine decodes, so a concurrent Release wins and Load
// returns ErrReleased. Loads must not run concurrently with each other.
func (a *Adapter) Load(file analysis.AudioFile, rhythm analysis.Rhythm) error {
	a.mu.Lock()
	a.releaseLocked()
	epoch := a.epoch
	a.mu.Unlock()

	tr, err := a.engine.Load(file)
	if err != nil {
		return fmt.Errorf("%w %q: %v", ErrDecode, file.Name, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.epoch != epoch {
		a.engine.Release()
		return ErrReleased
	}

	a.loaded = true
	a.gen = tr.Gen
	a.duration = tr.Duration
	a.state = State{}
	a.rhythm = rhythm
	a.log.Info("audio loaded",
		slog.String("file", file.Name),
		slog.Float64("duration_s", tr.Duration),
		slog.Int("rhythm_marks", len(rhythm)))
	return nil
}

// Release frees the loaded audio and resets the state.
func (a *Adapter) Release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.releaseLocked()
}

func (a *Adapter) releaseLocked() {
	a.engine.Release()
	a.epoch++
	a.loaded = false
	a.duration = 0
	a.state = State{}
	a.rhythm = nil
}

// PlayPause toggles playback. Without loaded audio it does nothing.
func (a *Adapter) PlayPause() State {
	a.mu.Lock()
	if !a.loaded {
		st := a.state
		a.mu.Unlock()
		return st
	}
	a.engine.PlayPause()
	a.state.IsPlaying = !a.state.IsPlaying
	st := a.state
	fn := a.onChange
	a.mu.Unlock()

	if fn != nil {
		fn(st)
	}
	return st
}

// Seek asks the engine to move to the normalized position progress. The
// resulting Seeked notification updates the state.
func (a *Adapter) Seek(progress float64) {
	a.mu.Lock()
	loaded := a.loaded
	a.mu.Unlock()
	if loaded {
		a.engine.Seek(clamp01(progress))
	}
}

// State returns the current playback state.
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Duration returns the loaded audio's duration in seconds, 0 if none.
func (a *Adapter) Duration() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.duration
}

// Rhythm returns the rhythm analysis held with the loaded audio.
func (a *Adapter) Rhythm() analysis.Rhythm {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rhythm
}

// Waveform returns normalized peaks of the loaded audio.
func (a *Adapter) Waveform(bars int) []float64 {
	a.mu.Lock()
	loaded := a.loaded
	a.mu.Unlock()
	if !loaded || bars <= 0 {
		return nil
	}
	return a.engine.Peaks(bars)
}

// handle applies ev unless it belongs to audio that has since been released
// or replaced.
func (a *Adapter) handle(gen uint64, ev Event) {
	a.mu.Lock()
	if !a.loaded || gen != a.gen {
		a.mu.Unlock()
		return
	}
	switch e := ev.(type) {
	case PositionChanged:
		if e.Seconds > 0 {
			a.state.CurrentTime = e.Seconds
		} else {
			a.state.CurrentTime = 0
		}
	case Seeked:
		a.state.CurrentTime = clamp01(e.Progress) * a.duration
	case Finished:
		a.state.IsPlaying = false
	}
	st := a.state
	fn := a.onChange
	a.mu.Unlock()

	if a.metrics != nil {
		a.metrics.IncPlaybackEvent(ev.kind())
	}
	if fn != nil {
		fn(st)
	}
}

func clamp01(v float64) float64 {
	switch {
	case v != v || v < 0: // NaN
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
