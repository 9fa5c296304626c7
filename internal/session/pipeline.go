package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"neurovoice/internal/analysis"
	"neurovoice/internal/platform/metrics"

	"github.com/google/uuid"
)

// Analyzer is the remote analysis API. Each call depends on the handle
// returned by Upload.
type Analyzer interface {
	Upload(ctx context.Context, file analysis.AudioFile) (string, error)
	Transcribe(ctx context.Context, handle string) (*analysis.Transcription, error)
	AnalyzeRhythm(ctx context.Context, handle string) (analysis.Rhythm, error)
}

// Player is the playback side the pipeline initializes once analysis is done.
type Player interface {
	Load(file analysis.AudioFile, rhythm analysis.Rhythm) error
	Release()
}

var (
	// ErrNoFile is returned by Run when no file has been selected.
	ErrNoFile = errors.New("no file selected")

	// ErrNotIdle is returned by Run when the session is not idle.
	ErrNotIdle = errors.New("session is not idle")

	// ErrNotFailed is returned by Retry when the session is not in the error stage.
	ErrNotFailed = errors.New("session has not failed")

	// ErrSuperseded is returned by Run when a new file was selected while
	// the run was in flight; its results were discarded.
	ErrSuperseded = errors.New("session superseded by a new file selection")
)

// RunError reports the stage in which a pipeline run failed.
type RunError struct {
	Stage Stage
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("pipeline failed in %s: %v", e.Stage, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// Pipeline owns the session and drives upload, transcription and rhythm
// analysis strictly in sequence. All session mutation goes through its
// transition methods.
type Pipeline struct {
	mu        sync.Mutex
	loadMu    sync.Mutex
	api       Analyzer
	player    Player
	log       *slog.Logger
	metrics   *metrics.Metrics
	sess      Session
	cancel    context.CancelFunc
	observers []func(Session)
}

// NewPipeline returns an idle Pipeline with no file selected.
// Metrics may be nil to disable metric recording (e.g. in tests).
func NewPipeline(api Analyzer, player Player, log *slog.Logger, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		api:     api,
		player:  player,
		log:     log,
		metrics: m,
		sess:    Session{ID: uuid.New(), Stage: StageIdle},
	}
}

// OnTransition registers fn to be called with a copy of the session after
// every stage change. Observers run synchronously, in registration order,
// while the pipeline is locked; they must not call back into the Pipeline.
func (p *Pipeline) OnTransition(fn func(Session)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, fn)
}

// Snapshot returns a copy of the current session.
func (p *Pipeline) Snapshot() Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sess
}

// SelectFile starts a fresh idle session for file. Any run in flight is
// cancelled and its results will be discarded, and loaded audio is released.
func (p *Pipeline) SelectFile(file analysis.AudioFile) uuid.UUID {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	if p.player != nil {
		p.player.Release()
	}

	prev := p.sess.Stage
	p.sess = Session{ID: uuid.New(), File: &file}
	p.log.Info("file selected",
		slog.String("session_id", p.sess.ID.String()),
		slog.String("file", file.Name),
		slog.Int("bytes", len(file.Data)),
		slog.String("previous_stage", string(prev)))
	p.transitionLocked(StageIdle)
	return p.sess.ID
}

// Retry re-enters idle with the same file after a failed run.
func (p *Pipeline) Retry() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sess.Stage != StageError {
		return ErrNotFailed
	}
	p.sess = Session{ID: uuid.New(), File: p.sess.File}
	p.transitionLocked(StageIdle)
	return nil
}

// Run executes the pipeline for the selected file. It blocks until the
// session is ready, fails, or is superseded by a new selection. A failure
// leaves the session in the error stage with no partial results and is
// returned as a *RunError.
func (p *Pipeline) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.sess.File == nil {
		p.mu.Unlock()
		return ErrNoFile
	}
	if p.sess.Stage != StageIdle {
		p.mu.Unlock()
		return ErrNotIdle
	}
	id := p.sess.ID
	file := *p.sess.File
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.transitionLocked(StageUploading)
	p.mu.Unlock()
	defer cancel()

	started := time.Now()
	handle, err := p.api.Upload(ctx, file)
	if err != nil {
		return p.fail(id, StageUploading, err)
	}
	started = p.advance(id, StageUploading, started)
	if started.IsZero() {
		return p.superseded(id)
	}

	tr, err := p.api.Transcribe(ctx, handle)
	if err != nil {
		return p.fail(id, StageProcessingAI, err)
	}
	if tr == nil {
		tr = &analysis.Transcription{}
	}
	started = p.advance(id, StageProcessingAI, started, func(s *Session) { s.Transcription = tr })
	if started.IsZero() {
		return p.superseded(id)
	}

	rh, err := p.api.AnalyzeRhythm(ctx, handle)
	if err != nil {
		return p.fail(id, StageProcessingRhythm, err)
	}

	// Decoding can take a while; p.mu stays free so the session can be read
	// or superseded meanwhile. loadMu keeps loads from two runs apart.
	p.loadMu.Lock()
	defer p.loadMu.Unlock()
	if p.stale(id) {
		return p.superseded(id)
	}
	var loadErr error
	if p.player != nil {
		loadErr = p.player.Load(file, rh)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sess.ID != id {
		if loadErr == nil && p.player != nil {
			p.player.Release()
		}
		return p.supersededLocked(id)
	}
	if loadErr != nil {
		return p.failLocked(StageProcessingRhythm, fmt.Errorf("load playback: %w", loadErr))
	}
	p.observe(StageProcessingRhythm, started)
	p.sess.Rhythm = rh
	p.cancel = nil
	p.transitionLocked(StageReady)
	if p.metrics != nil {
		p.metrics.IncPipelineRun("ready")
	}
	return nil
}

// advance moves session id from stage cur to the next stage, applying
// updates first. It returns the start time of the next stage, or the zero
// time if the session was superseded.
func (p *Pipeline) advance(id uuid.UUID, cur Stage, started time.Time, updates ...func(*Session)) time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sess.ID != id {
		return time.Time{}
	}
	p.observe(cur, started)
	for _, u := range updates {
		u(&p.sess)
	}
	p.transitionLocked(nextStage(cur))
	return time.Now()
}

func nextStage(s Stage) Stage {
	switch s {
	case StageIdle:
		return StageUploading
	case StageUploading:
		return StageProcessingAI
	case StageProcessingAI:
		return StageProcessingRhythm
	default:
		return StageReady
	}
}

func (p *Pipeline) fail(id uuid.UUID, stage Stage, err error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sess.ID != id {
		return p.supersededLocked(id)
	}
	return p.failLocked(stage, err)
}

// failLocked collapses any failure into the error stage. Caller must hold p.mu.
func (p *Pipeline) failLocked(stage Stage, err error) error {
	p.log.Error("pipeline failed",
		slog.String("session_id", p.sess.ID.String()),
		slog.String("stage", string(stage)),
		slog.String("error", err.Error()))

	p.sess.Transcription = nil
	p.sess.Rhythm = nil
	p.sess.Failure = FailureMessage
	p.cancel = nil
	p.transitionLocked(StageError)
	if p.metrics != nil {
		p.metrics.IncStageFailure(string(stage))
		p.metrics.IncPipelineRun("error")
	}
	return &RunError{Stage: stage, Err: err}
}

func (p *Pipeline) stale(id uuid.UUID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sess.ID != id
}

func (p *Pipeline) superseded(id uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.supersededLocked(id)
}

func (p *Pipeline) supersededLocked(id uuid.UUID) error {
	p.log.Info("discarding results of superseded session", slog.String("session_id", id.String()))
	if p.metrics != nil {
		p.metrics.IncPipelineRun("superseded")
	}
	return ErrSuperseded
}

func (p *Pipeline) observe(stage Stage, started time.Time) {
	if p.metrics != nil {
		p.metrics.ObserveStage(string(stage), time.Since(started).Seconds())
	}
}

// transitionLocked sets the stage and notifies observers. Caller must hold p.mu.
func (p *Pipeline) transitionLocked(next Stage) {
	p.sess.Stage = next
	p.log.Debug("stage transition",
		slog.String("session_id", p.sess.ID.String()),
		slog.String("stage", string(next)))
	snap := p.sess
	for _, fn := range p.observers {
		fn(snap)
	}
}
