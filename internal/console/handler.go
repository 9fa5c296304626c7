package console

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"neurovoice/internal/analysis"
	"neurovoice/internal/platform/metrics"
	"neurovoice/internal/playback"
	"neurovoice/internal/session"
	"neurovoice/internal/transcript"

	"github.com/go-chi/chi/v5"
)

const (
	defaultMaxUpload    = 100 << 20
	defaultWaveformBars = 200
	maxWaveformBars     = 2000
)

// Options tunes the console handler. Zero values select defaults.
type Options struct {
	MaxUploadBytes int64
	WaveformBars   int
}

// Handler exposes the single analysis session over HTTP using go-chi. It owns
// the playback adapter's notifications and keeps the active-segment index
// current as playback moves.
type Handler struct {
	ctx      context.Context
	pipeline *session.Pipeline
	player   *playback.Adapter
	log      *slog.Logger
	metrics  *metrics.Metrics
	opts     Options

	// spawn starts a pipeline run; tests replace it to run synchronously.
	spawn func(func())

	mu    sync.Mutex
	index *transcript.Index
}

// NewHandler returns a Handler driving pipeline and player. Runs started by
// the handler use ctx, so cancelling it aborts them. Metrics may be nil.
func NewHandler(ctx context.Context, pipeline *session.Pipeline, player *playback.Adapter, log *slog.Logger, m *metrics.Metrics, opts Options) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUpload
	}
	if opts.WaveformBars <= 0 {
		opts.WaveformBars = defaultWaveformBars
	}
	h := &Handler{
		ctx:      ctx,
		pipeline: pipeline,
		player:   player,
		log:      log,
		metrics:  m,
		opts:     opts,
		spawn:    func(fn func()) { go fn() },
	}
	pipeline.OnTransition(h.onTransition)
	player.OnChange(h.onPlayback)
	return h
}

// Routes mounts the session endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.GetSession)
	r.Post("/file", h.SelectFile)
	r.Post("/run", h.Run)
	r.Post("/retry", h.Retry)
	r.Get("/waveform", h.GetWaveform)
	r.Route("/playback", func(r chi.Router) {
		r.Post("/toggle", h.TogglePlayback)
		r.Post("/seek", h.Seek)
	})
}

// GetSession handles GET /session.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, buildView(h.pipeline.Snapshot(), h.player.State(), h.player.Duration()))
}

// SelectFile handles POST /session/file with a multipart "file" field holding
// any audio/* content.
func (h *Handler) SelectFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)

	f, hdr, err := r.FormFile("file")
	if err != nil {
		h.log.Debug("invalid upload", slog.String("error", err.Error()))
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	defer f.Close()

	ct := hdr.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(ct); err != nil || !strings.HasPrefix(mt, "audio/") {
		h.log.Info("file rejected not audio",
			slog.String("file", hdr.Filename),
			slog.String("content_type", ct))
		w.WriteHeader(http.StatusUnsupportedMediaType)
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		h.log.Error("read upload failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	id := h.pipeline.SelectFile(analysis.AudioFile{Name: hdr.Filename, ContentType: ct, Data: data})
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": id.String()})
}

// Run handles POST /session/run. The pipeline runs in the background; clients
// follow progress through GET /session.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	snap := h.pipeline.Snapshot()
	if snap.File == nil || snap.Stage != session.StageIdle {
		w.WriteHeader(http.StatusConflict)
		return
	}

	h.spawn(func() {
		err := h.pipeline.Run(h.ctx)
		switch {
		case err == nil:
			h.log.Info("session ready", slog.String("session_id", snap.ID.String()))
		case errors.Is(err, session.ErrSuperseded), errors.Is(err, session.ErrNotIdle):
			h.log.Debug("run ended early", slog.String("session_id", snap.ID.String()), slog.String("error", err.Error()))
		default:
			h.log.Debug("run failed", slog.String("session_id", snap.ID.String()), slog.String("error", err.Error()))
		}
	})
	writeJSON(w, http.StatusAccepted, map[string]string{"session_id": snap.ID.String()})
}

// Retry handles POST /session/retry.
func (h *Handler) Retry(w http.ResponseWriter, r *http.Request) {
	if err := h.pipeline.Retry(); err != nil {
		switch err {
		case session.ErrNotFailed:
			w.WriteHeader(http.StatusConflict)
		default:
			h.log.Error("retry failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusInternalServerError)
		}
		return
	}
	w.WriteHeader(http.StatusOK)
}

// TogglePlayback handles POST /session/playback/toggle.
func (h *Handler) TogglePlayback(w http.ResponseWriter, r *http.Request) {
	if h.pipeline.Snapshot().Stage != session.StageReady {
		w.WriteHeader(http.StatusConflict)
		return
	}
	h.player.PlayPause()
	h.writePlayback(w)
}

type seekRequest struct {
	Progress *float64 `json:"progress"`
}

// Seek handles POST /session/playback/seek.
// Body: { "progress": 0.5 } with progress normalized to [0, 1].
func (h *Handler) Seek(w http.ResponseWriter, r *http.Request) {
	var req seekRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Progress == nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if h.pipeline.Snapshot().Stage != session.StageReady {
		w.WriteHeader(http.StatusConflict)
		return
	}
	h.player.Seek(*req.Progress)
	h.writePlayback(w)
}

// GetWaveform handles GET /session/waveform?bars=N.
func (h *Handler) GetWaveform(w http.ResponseWriter, r *http.Request) {
	bars := h.opts.WaveformBars
	if s := r.URL.Query().Get("bars"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > maxWaveformBars {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		bars = n
	}
	peaks := h.player.Waveform(bars)
	if peaks == nil {
		peaks = []float64{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"duration": h.player.Duration(), "peaks": peaks})
}

func (h *Handler) writePlayback(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, playbackView(h.player.State(), h.player.Duration()))
}

// onTransition rebuilds the active-segment index when a session becomes
// ready and drops it otherwise.
func (h *Handler) onTransition(s session.Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if s.Stage == session.StageReady && s.Transcription != nil {
		h.index = transcript.NewIndex(s.Transcription.Segments)
		return
	}
	h.index = nil
	if h.metrics != nil {
		h.metrics.SetActiveSegments(0)
	}
}

// onPlayback recomputes the active segments for the new position.
func (h *Handler) onPlayback(st playback.State) {
	h.mu.Lock()
	ix := h.index
	h.mu.Unlock()
	if ix == nil {
		return
	}

	active := ix.Active(st.CurrentTime)
	if h.metrics != nil {
		h.metrics.SetActiveSegments(len(active))
	}
	h.log.Debug("playback position",
		slog.Float64("current_time", st.CurrentTime),
		slog.Bool("is_playing", st.IsPlaying),
		slog.Any("active_segments", active))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
