package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"manimate/internal/fileutil"
	"manimate/internal/logging"
	"manimate/internal/scene"
)

const (
	DefaultBinary        = "manim"
	DefaultQuality       = "l"
	DefaultTimeout       = 120 * time.Second
	DefaultSourceName    = "generated_scene.py"
	DefaultOutputStem    = "output"
	DefaultCanonicalName = "output.mp4"
	DefaultExcerptLimit  = 2000

	// freshnessSlack absorbs coarse filesystem timestamps when filtering out
	// videos left by earlier renders.
	freshnessSlack = 2 * time.Second
)

// Config pins every path and flag of a render. Zero fields take the Default
// constants.
type Config struct {
	WorkDir       string
	OutputDir     string
	SourceName    string
	OutputStem    string
	CanonicalName string
	Binary        string
	Quality       string
	Timeout       time.Duration
	ExcerptLimit  int
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.OutputDir) == "" {
		c.OutputDir = c.WorkDir
	}
	if c.SourceName == "" {
		c.SourceName = DefaultSourceName
	}
	if c.OutputStem == "" {
		c.OutputStem = DefaultOutputStem
	}
	if c.CanonicalName == "" {
		c.CanonicalName = DefaultCanonicalName
	}
	if c.Binary == "" {
		c.Binary = DefaultBinary
	}
	if c.Quality == "" {
		c.Quality = DefaultQuality
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.ExcerptLimit <= 0 {
		c.ExcerptLimit = DefaultExcerptLimit
	}
	return c
}

// CanonicalPath is where successful renders are copied.
func (c Config) CanonicalPath() string {
	c = c.withDefaults()
	return filepath.Join(c.OutputDir, c.CanonicalName)
}

// SourcePath is where the scene source is persisted before each render.
func (c Config) SourcePath() string {
	c = c.withDefaults()
	return filepath.Join(c.WorkDir, c.SourceName)
}

// Job is one render attempt.
type Job struct {
	Source     scene.Source
	EntryPoint string
	WorkDir    string
	Started    time.Time
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(o *Orchestrator) {
		if exec != nil {
			o.exec = exec
		}
	}
}

// WithLocator replaces the default pattern cascade.
func WithLocator(l Locator) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.locator = l
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logging.NewComponentLogger(logger, "render")
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// Orchestrator runs renders against one working directory.
type Orchestrator struct {
	cfg     Config
	exec    Executor
	locator Locator
	logger  *slog.Logger
	now     func() time.Time
}

// New constructs an orchestrator.
func New(cfg Config, opts ...Option) (*Orchestrator, error) {
	if strings.TrimSpace(cfg.WorkDir) == "" {
		return nil, errors.New("render work directory required")
	}
	o := &Orchestrator{
		cfg:     cfg.withDefaults(),
		exec:    commandExecutor{},
		locator: NewPatternLocator(),
		logger:  logging.NewComponentLogger(nil, "render"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Config returns the effective configuration.
func (o *Orchestrator) Config() Config {
	return o.cfg
}

// Render persists src, runs the renderer against entryPoint and copies the
// located video to the canonical path. It never returns a failure as a panic
// or bare error; inspect Outcome.Kind.
func (o *Orchestrator) Render(ctx context.Context, src scene.Source, entryPoint string) Outcome {
	if strings.TrimSpace(entryPoint) == "" {
		entryPoint = scene.EntryPoint
	}
	job := Job{Source: src, EntryPoint: entryPoint, WorkDir: o.cfg.WorkDir, Started: o.now()}
	outcome := o.run(ctx, job)
	outcome.Duration = o.now().Sub(job.Started)
	o.log(logging.WithContext(ctx, o.logger), job, outcome)
	return outcome
}

func (o *Orchestrator) run(ctx context.Context, job Job) Outcome {
	sourcePath, err := o.persist(job)
	if err != nil {
		return Outcome{Kind: KindProcessFailure, ExitCode: -1, Detail: err.Error()}
	}

	runCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	result, err := o.exec.Run(runCtx, Command{
		Binary: o.cfg.Binary,
		Args:   o.args(sourcePath, job.EntryPoint),
		Dir:    job.WorkDir,
	})
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return Outcome{Kind: KindProcessFailure, ExitCode: -1, Detail: "render canceled: " + ctx.Err().Error()}
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return Outcome{Kind: KindTimeout, ExitCode: -1, Detail: fmt.Sprintf("killed after %s", o.cfg.Timeout)}
	case errors.Is(err, ErrLaunch):
		return Outcome{Kind: KindProcessFailure, ExitCode: -1, LaunchFailed: true, Detail: err.Error()}
	default:
		return Outcome{Kind: KindProcessFailure, ExitCode: result.ExitCode, Detail: err.Error()}
	}

	if result.ExitCode != 0 {
		return Outcome{
			Kind:     KindProcessFailure,
			ExitCode: result.ExitCode,
			Detail:   excerpt(result.Stderr, result.Stdout, o.cfg.ExcerptLimit),
		}
	}

	canonical := o.cfg.CanonicalPath()
	found, searched, err := o.locator.Locate(job.WorkDir, Query{
		EntryPoint: job.EntryPoint,
		Stem:       o.cfg.OutputStem,
		Since:      job.Started.Add(-freshnessSlack),
		Exclude:    []string{canonical},
	})
	if err != nil {
		return Outcome{Kind: KindArtifactNotFound, Searched: searched, Detail: err.Error()}
	}
	if found == "" {
		return Outcome{Kind: KindArtifactNotFound, Searched: searched}
	}

	if err := os.MkdirAll(o.cfg.OutputDir, 0o755); err != nil {
		return Outcome{Kind: KindProcessFailure, ExitCode: -1, Detail: fmt.Sprintf("create output directory: %v", err)}
	}
	if err := fileutil.CopyFileAtomic(found, canonical); err != nil {
		return Outcome{Kind: KindProcessFailure, ExitCode: -1, Detail: fmt.Sprintf("canonicalize %s: %v", found, err)}
	}
	return Outcome{Kind: KindSuccess, ArtifactPath: canonical, Searched: searched}
}

func (o *Orchestrator) persist(job Job) (string, error) {
	if err := os.MkdirAll(job.WorkDir, 0o755); err != nil {
		return "", fmt.Errorf("create work directory: %w", err)
	}
	path := filepath.Join(job.WorkDir, o.cfg.SourceName)
	if err := fileutil.WriteFileAtomic(path, []byte(job.Source.Text), 0o644); err != nil {
		return "", fmt.Errorf("persist scene source: %w", err)
	}
	return path, nil
}

func (o *Orchestrator) args(sourcePath, entryPoint string) []string {
	return []string{
		sourcePath,
		entryPoint,
		"-q" + o.cfg.Quality,
		"--output_file", o.cfg.OutputStem,
		"--media_dir", o.cfg.WorkDir,
	}
}

func (o *Orchestrator) log(logger *slog.Logger, job Job, outcome Outcome) {
	attrs := []logging.Attr{
		logging.String(logging.FieldEntryPoint, job.EntryPoint),
		logging.String("outcome", string(outcome.Kind)),
		logging.Duration("duration", outcome.Duration),
	}
	if outcome.OK() {
		logger.Info("render complete", logging.Args(append(attrs, logging.String("artifact", outcome.ArtifactPath))...)...)
		return
	}
	switch outcome.Kind {
	case KindProcessFailure:
		attrs = append(attrs,
			logging.Int("exit_code", outcome.ExitCode),
			logging.Bool("launch_failed", outcome.LaunchFailed),
			logging.String("detail", outcome.Detail),
		)
	case KindArtifactNotFound:
		attrs = append(attrs, logging.String("searched", strings.Join(outcome.Searched, ", ")))
	}
	logging.WarnWithContext(logger, "render failed", "render_failed",
		append(attrs,
			logging.String(logging.FieldErrorHint, hint(outcome)),
			logging.String(logging.FieldImpact, impact(job)),
		)...,
	)
}

func impact(job Job) string {
	if job.Source.Fallback {
		return "fallback scene failed; request may fail"
	}
	return "fallback scene will be rendered"
}

func hint(o Outcome) string {
	switch {
	case o.LaunchFailed:
		return "install manim or set render.binary"
	case o.Kind == KindTimeout:
		return "simplify the scene or raise render.timeout_seconds"
	case o.Kind == KindArtifactNotFound:
		return "check the manim media layout under the work directory"
	default:
		return "inspect the renderer output in detail"
	}
}
