package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"manimate/internal/history"
	"manimate/internal/logging"
	"manimate/internal/render"
	"manimate/internal/scene"
	"manimate/internal/services/llm"
)

// ErrGenerationFailed reports that neither the requested scene nor the
// failure fallback produced a video.
var ErrGenerationFailed = errors.New("video generation failed completely")

// Fallback names recorded in Result and history.
const (
	FallbackNone         = ""
	FallbackMinimal      = "minimal"
	FallbackQuota        = "quota_exhausted"
	FallbackRenderFailed = "render_failed"
)

const lockRetryDelay = 250 * time.Millisecond

// Oracle writes scene source for a prompt.
type Oracle interface {
	GenerateScene(ctx context.Context, prompt string) (string, error)
}

// Renderer renders normalized source. *render.Orchestrator satisfies it.
type Renderer interface {
	Render(ctx context.Context, src scene.Source, entryPoint string) render.Outcome
}

// Config carries the paths the service publishes under.
type Config struct {
	// LockPath is the cross-process lock file. Empty disables file locking.
	LockPath string
	// VideosMount is the URL prefix the canonical artifact is served under.
	VideosMount string
	// CanonicalName is the artifact's file name inside the mount.
	CanonicalName string
}

// Result describes a finished request.
type Result struct {
	ID       uuid.UUID
	VideoURL string
	// Fallback names the fixed scene that produced the video, if any.
	Fallback string
	Outcome  render.Outcome
	Source   scene.Source
}

// Option customizes the service.
type Option func(*Service)

// WithHistory records every attempt in store.
func WithHistory(store history.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.history = store
		}
	}
}

// WithLogger overrides the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logging.NewComponentLogger(logger, "generate")
	}
}

// WithClock overrides time.Now (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service runs the prompt-to-video pipeline.
type Service struct {
	cfg      Config
	oracle   Oracle
	renderer Renderer
	history  history.Store
	logger   *slog.Logger
	now      func() time.Time

	mu   sync.Mutex
	lock *flock.Flock
}

// New constructs a service. oracle may be nil, in which case every prompt
// renders the minimal scene.
func New(cfg Config, oracle Oracle, renderer Renderer, opts ...Option) (*Service, error) {
	if renderer == nil {
		return nil, errors.New("generate: renderer required")
	}
	if strings.TrimSpace(cfg.CanonicalName) == "" {
		cfg.CanonicalName = render.DefaultCanonicalName
	}
	if strings.TrimSpace(cfg.VideosMount) == "" {
		cfg.VideosMount = "/videos"
	}
	s := &Service{
		cfg:      cfg,
		oracle:   oracle,
		renderer: renderer,
		history:  history.Nop{},
		logger:   logging.NewComponentLogger(nil, "generate"),
		now:      time.Now,
	}
	if cfg.LockPath != "" {
		s.lock = flock.New(cfg.LockPath)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// VideoURL is the public path of the canonical artifact.
func (s *Service) VideoURL() string {
	return path.Join("/", s.cfg.VideosMount, s.cfg.CanonicalName)
}

// Generate asks the oracle for a scene visualizing prompt and renders it,
// falling back to fixed scenes as needed.
func (s *Service) Generate(ctx context.Context, prompt string) (Result, error) {
	id := uuid.New()
	ctx = logging.WithRenderID(ctx, id.String())
	logger := logging.WithContext(ctx, s.logger)

	src, fallback := s.ask(ctx, logger, prompt)
	return s.run(ctx, id, prompt, src, fallback)
}

// RenderSource normalizes raw model output (or hand-written source) and
// renders it with the same fallback policy as Generate.
func (s *Service) RenderSource(ctx context.Context, raw string) (Result, error) {
	id := uuid.New()
	ctx = logging.WithRenderID(ctx, id.String())

	src := scene.Normalize(raw)
	fallback := FallbackNone
	if src.Fallback {
		fallback = FallbackMinimal
	}
	return s.run(ctx, id, "", src, fallback)
}

func (s *Service) ask(ctx context.Context, logger *slog.Logger, prompt string) (scene.Source, string) {
	if s.oracle == nil {
		logging.WarnWithContext(logger, "no model configured", "oracle_missing",
			logging.String(logging.FieldErrorHint, "set llm.api_key"),
			logging.String(logging.FieldImpact, "minimal scene rendered"),
		)
		return scene.Minimal(), FallbackMinimal
	}

	raw, err := s.oracle.GenerateScene(ctx, prompt)
	switch {
	case errors.Is(err, llm.ErrQuotaExhausted):
		logging.WarnWithContext(logger, "model quota exhausted", "oracle_quota",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the provider account limits"),
			logging.String(logging.FieldImpact, "quota scene rendered"),
		)
		return scene.Fixed(scene.QuotaExhaustedScene), FallbackQuota
	case err != nil:
		logging.WarnWithContext(logger, "model request failed", "oracle_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run manimate doctor to test the llm settings"),
			logging.String(logging.FieldImpact, "minimal scene rendered"),
		)
		return scene.Minimal(), FallbackMinimal
	}

	src := scene.Normalize(raw)
	if src.Fallback {
		logging.WarnWithContext(logger, "model output has no scene class", "scene_missing",
			logging.Int("raw_bytes", len(raw)),
			logging.String(logging.FieldImpact, "minimal scene rendered"),
		)
		return src, FallbackMinimal
	}
	logger.Debug("scene normalized",
		logging.Bool("three_d", src.ThreeD),
		logging.Bool("hold_inserted", src.HoldInserted),
		logging.Int("font_sizes_clamped", src.Clamped),
		logging.Int("entry_points", src.EntryPoints),
	)
	return src, FallbackNone
}

func (s *Service) run(ctx context.Context, id uuid.UUID, prompt string, src scene.Source, fallback string) (Result, error) {
	unlock, err := s.acquire(ctx)
	if err != nil {
		return Result{ID: id}, fmt.Errorf("acquire render lock: %w", err)
	}
	defer unlock()

	outcome := s.renderer.Render(ctx, src, scene.EntryPoint)
	s.record(ctx, id, prompt, src, fallback, outcome)
	if outcome.OK() {
		return s.result(id, src, fallback, outcome), nil
	}
	if ctx.Err() != nil {
		return Result{ID: id, Outcome: outcome}, fmt.Errorf("%w: %w", ErrGenerationFailed, ctx.Err())
	}

	retry := scene.Fixed(scene.RenderFailedScene)
	retryOutcome := s.renderer.Render(ctx, retry, scene.EntryPoint)
	s.record(ctx, id, prompt, retry, FallbackRenderFailed, retryOutcome)
	if !retryOutcome.OK() {
		logging.ErrorWithContext(logging.WithContext(ctx, s.logger), "fallback render failed", "generation_failed",
			logging.String("first_outcome", string(outcome.Kind)),
			logging.String("fallback_outcome", string(retryOutcome.Kind)),
			logging.String(logging.FieldErrorHint, "run manimate doctor; the renderer itself is likely broken"),
		)
		return Result{ID: id, Outcome: retryOutcome, Source: retry, Fallback: FallbackRenderFailed},
			fmt.Errorf("%w: %w", ErrGenerationFailed, retryOutcome.Err())
	}
	return s.result(id, retry, FallbackRenderFailed, retryOutcome), nil
}

func (s *Service) result(id uuid.UUID, src scene.Source, fallback string, outcome render.Outcome) Result {
	return Result{
		ID:       id,
		VideoURL: s.VideoURL(),
		Fallback: fallback,
		Outcome:  outcome,
		Source:   src,
	}
}

func (s *Service) acquire(ctx context.Context) (func(), error) {
	s.mu.Lock()
	if s.lock == nil {
		return s.mu.Unlock, nil
	}
	ok, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !ok {
		s.mu.Unlock()
		if err == nil {
			err = errors.New("lock not acquired")
		}
		return nil, err
	}
	return func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("release render lock", logging.Error(err))
		}
		s.mu.Unlock()
	}, nil
}

func (s *Service) record(ctx context.Context, requestID uuid.UUID, prompt string, src scene.Source, fallback string, outcome render.Outcome) {
	rec := history.Record{
		RequestID:    requestID,
		Prompt:       prompt,
		Kind:         string(outcome.Kind),
		Fallback:     fallback,
		Detail:       outcome.Detail,
		ArtifactPath: outcome.ArtifactPath,
		ThreeD:       src.ThreeD,
		HoldInserted: src.HoldInserted,
		DurationMS:   outcome.Duration.Milliseconds(),
		CreatedAt:    s.now(),
	}
	if err := s.history.Add(context.WithoutCancel(ctx), rec); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "history write failed", "history_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "render not recorded"),
		)
	}
}
