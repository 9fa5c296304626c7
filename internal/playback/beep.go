package playback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"neurovoice/internal/analysis"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/flac"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/vorbis"
	"github.com/gopxl/beep/wav"
)

// ErrUnsupportedFormat is returned by Load for audio beep cannot decode.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

const chunkSize = 512

// BeepEngine is an Engine that decodes audio with beep into memory and plays
// it against a virtual clock. It renders no sound; the clock exists so the
// transcript can follow playback.
type BeepEngine struct {
	mu       sync.Mutex
	format   beep.Format
	buf      *beep.Buffer
	stream   beep.StreamSeeker
	playing  bool
	gen      uint64
	listener func(gen uint64, ev Event)
	scratch  [][2]float64
}

// NewBeepEngine returns an engine with nothing loaded.
func NewBeepEngine() *BeepEngine {
	return &BeepEngine{scratch: make([][2]float64, chunkSize)}
}

// Listen sets the receiver of playback notifications.
func (e *BeepEngine) Listen(fn func(gen uint64, ev Event)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listener = fn
}

// Load decodes file (WAV, MP3, FLAC or Ogg Vorbis, chosen by content type or
// extension) into memory, replacing any loaded audio.
func (e *BeepEngine) Load(file analysis.AudioFile) (Track, error) {
	streamer, format, err := decode(file)
	if err != nil {
		return Track{}, err
	}
	defer streamer.Close()

	buf := beep.NewBuffer(format)
	buf.Append(streamer)
	if err := streamer.Err(); err != nil {
		return Track{}, fmt.Errorf("decode %s: %w", file.Name, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.releaseLocked()
	e.format = format
	e.buf = buf
	e.stream = buf.Streamer(0, buf.Len())
	return Track{Gen: e.gen, Duration: format.SampleRate.D(buf.Len()).Seconds()}, nil
}

func decode(file analysis.AudioFile) (beep.StreamSeekCloser, beep.Format, error) {
	r := bytes.NewReader(file.Data)
	switch codec(file) {
	case "wav":
		return wav.Decode(r)
	case "mp3":
		return mp3.Decode(io.NopCloser(r))
	case "flac":
		return flac.Decode(r)
	case "ogg":
		return vorbis.Decode(io.NopCloser(r))
	default:
		return nil, beep.Format{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, file.Name)
	}
}

func codec(file analysis.AudioFile) string {
	switch ct := strings.ToLower(file.ContentType); {
	case strings.Contains(ct, "wav"):
		return "wav"
	case strings.Contains(ct, "mpeg"), strings.Contains(ct, "mp3"):
		return "mp3"
	case strings.Contains(ct, "flac"):
		return "flac"
	case strings.Contains(ct, "ogg"), strings.Contains(ct, "vorbis"):
		return "ogg"
	}
	switch strings.ToLower(filepath.Ext(file.Name)) {
	case ".wav":
		return "wav"
	case ".mp3":
		return "mp3"
	case ".flac":
		return "flac"
	case ".ogg":
		return "ogg"
	}
	return ""
}

// Release drops the loaded audio and stops playback.
func (e *BeepEngine) Release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.releaseLocked()
}

func (e *BeepEngine) releaseLocked() {
	e.gen++
	e.buf = nil
	e.stream = nil
	e.playing = false
}

// PlayPause toggles playback. Playing from the end rewinds to the start.
func (e *BeepEngine) PlayPause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stream == nil {
		return
	}
	if !e.playing && e.stream.Position() >= e.stream.Len() {
		_ = e.stream.Seek(0)
	}
	e.playing = !e.playing
}

// Seek moves to the normalized position progress and emits Seeked.
func (e *BeepEngine) Seek(progress float64) {
	e.mu.Lock()
	if e.stream == nil {
		e.mu.Unlock()
		return
	}
	progress = clamp01(progress)
	_ = e.stream.Seek(int(progress * float64(e.stream.Len())))
	fn, gen := e.listener, e.gen
	e.mu.Unlock()

	if fn != nil {
		fn(gen, Seeked{Progress: progress})
	}
}

// Advance consumes d worth of samples while playing and emits
// PositionChanged, followed by Finished when the end is reached.
func (e *BeepEngine) Advance(d time.Duration) {
	e.mu.Lock()
	if e.stream == nil || !e.playing {
		e.mu.Unlock()
		return
	}

	remaining := e.format.SampleRate.N(d)
	for remaining > 0 {
		n := min(remaining, len(e.scratch))
		got, ok := e.stream.Stream(e.scratch[:n])
		remaining -= got
		if !ok || got < n {
			break
		}
	}

	events := []Event{PositionChanged{Seconds: e.format.SampleRate.D(e.stream.Position()).Seconds()}}
	if e.stream.Position() >= e.stream.Len() {
		e.playing = false
		events = append(events, Finished{})
	}
	fn, gen := e.listener, e.gen
	e.mu.Unlock()

	if fn != nil {
		for _, ev := range events {
			fn(gen, ev)
		}
	}
}

// Run drives the playback clock every interval until ctx is done.
func (e *BeepEngine) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			e.Advance(now.Sub(last))
			last = now
		}
	}
}

// Peaks returns the maximum absolute amplitude of each of bars equal slices
// of the audio, scaled so the loudest bar is 1.
func (e *BeepEngine) Peaks(bars int) []float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.buf == nil || bars <= 0 {
		return nil
	}

	total := e.buf.Len()
	peaks := make([]float64, bars)
	if total == 0 {
		return peaks
	}

	s := e.buf.Streamer(0, total)
	samples := make([][2]float64, chunkSize)
	pos := 0
	loudest := 0.0
	for {
		n, ok := s.Stream(samples)
		for i := 0; i < n; i++ {
			bar := (pos + i) * bars / total
			amp := math.Max(math.Abs(samples[i][0]), math.Abs(samples[i][1]))
			if amp > peaks[bar] {
				peaks[bar] = amp
			}
			if amp > loudest {
				loudest = amp
			}
		}
		pos += n
		if !ok || n == 0 {
			break
		}
	}

	if loudest > 0 {
		for i := range peaks {
			peaks[i] /= loudest
		}
	}
	return peaks
}
