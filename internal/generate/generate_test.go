package generate

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"manimate/internal/history"
	"manimate/internal/render"
	"manimate/internal/scene"
	"manimate/internal/services/llm"
)

type stubOracle struct {
	code string
	err  error
}

func (o stubOracle) GenerateScene(context.Context, string) (string, error) {
	return o.code, o.err
}

type stubRenderer struct {
	mu       sync.Mutex
	sources  []string
	outcomes []render.Outcome
}

func (r *stubRenderer) Render(_ context.Context, src scene.Source, entryPoint string) render.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entryPoint != scene.EntryPoint {
		panic("unexpected entry point " + entryPoint)
	}
	r.sources = append(r.sources, src.Text)
	idx := len(r.sources) - 1
	if idx < len(r.outcomes) {
		return r.outcomes[idx]
	}
	return success()
}

func success() render.Outcome {
	return render.Outcome{Kind: render.KindSuccess, ArtifactPath: "/work/output.mp4", Duration: 1500 * time.Millisecond}
}

type memoryStore struct {
	history.Nop
	mu      sync.Mutex
	records []history.Record
	err     error
}

func (m *memoryStore) Add(_ context.Context, rec history.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return m.err
}

const goodScene = "```python\nfrom manim import *\n\nclass Demo(Scene):\n    def construct(self):\n        self.play(Create(Circle()))\n```"

func newService(t *testing.T, oracle Oracle, renderer Renderer, store history.Store) *Service {
	t.Helper()
	svc, err := New(Config{
		LockPath:      filepath.Join(t.TempDir(), ".render.lock"),
		VideosMount:   "/videos",
		CanonicalName: "output.mp4",
	}, oracle, renderer, WithHistory(store))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return svc
}

func TestGenerateSuccess(t *testing.T) {
	renderer := &stubRenderer{}
	store := &memoryStore{}
	svc := newService(t, stubOracle{code: goodScene}, renderer, store)

	res, err := svc.Generate(context.Background(), "draw a circle")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if res.VideoURL != "/videos/output.mp4" {
		t.Fatalf("VideoURL = %q", res.VideoURL)
	}
	if res.Fallback != FallbackNone || !res.Outcome.OK() {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(renderer.sources) != 1 {
		t.Fatalf("expected one render, got %d", len(renderer.sources))
	}
	src := renderer.sources[0]
	if !strings.Contains(src, "class GeneratedScene(Scene):") || !strings.Contains(src, "self.wait()") {
		t.Fatalf("source was not normalized:\n%s", src)
	}
	if len(store.records) != 1 {
		t.Fatalf("expected one history record, got %d", len(store.records))
	}
	rec := store.records[0]
	if rec.RequestID != res.ID || rec.Prompt != "draw a circle" || rec.Kind != "success" || !rec.HoldInserted || rec.DurationMS != 1500 {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestGenerateOracleFailuresUseFixedScenes(t *testing.T) {
	tests := []struct {
		name     string
		oracle   Oracle
		want     string
		fallback string
	}{
		{"quota", stubOracle{err: fmt.Errorf("llm generate: %w", llm.ErrQuotaExhausted)}, scene.QuotaExhaustedScene, FallbackQuota},
		{"network", stubOracle{err: errors.New("connection refused")}, scene.MinimalScene, FallbackMinimal},
		{"no class", stubOracle{code: "I cannot help with that."}, scene.MinimalScene, FallbackMinimal},
		{"nil oracle", nil, scene.MinimalScene, FallbackMinimal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			renderer := &stubRenderer{}
			svc := newService(t, tt.oracle, renderer, nil)

			res, err := svc.Generate(context.Background(), "anything")
			if err != nil {
				t.Fatalf("Generate failed: %v", err)
			}
			if res.Fallback != tt.fallback {
				t.Fatalf("fallback = %q, want %q", res.Fallback, tt.fallback)
			}
			if len(renderer.sources) != 1 || renderer.sources[0] != tt.want {
				t.Fatalf("rendered %q, want %q", renderer.sources, tt.want)
			}
		})
	}
}

func TestGenerateRetriesWithRenderFailedScene(t *testing.T) {
	renderer := &stubRenderer{outcomes: []render.Outcome{
		{Kind: render.KindTimeout, Detail: "killed after 2m0s"},
		success(),
	}}
	store := &memoryStore{}
	svc := newService(t, stubOracle{code: goodScene}, renderer, store)

	res, err := svc.Generate(context.Background(), "slow scene")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if res.Fallback != FallbackRenderFailed || res.VideoURL == "" {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(renderer.sources) != 2 || renderer.sources[1] != scene.RenderFailedScene {
		t.Fatalf("expected fallback render, got %q", renderer.sources)
	}
	if len(store.records) != 2 {
		t.Fatalf("expected two records, got %d", len(store.records))
	}
	if store.records[0].Kind != "timeout" || store.records[1].Fallback != FallbackRenderFailed {
		t.Fatalf("unexpected records %+v", store.records)
	}
	if store.records[0].RequestID != store.records[1].RequestID {
		t.Fatal("attempts of one request should share a request id")
	}
}

func TestGenerateFailsWhenFallbackFails(t *testing.T) {
	renderer := &stubRenderer{outcomes: []render.Outcome{
		{Kind: render.KindProcessFailure, ExitCode: 1},
		{Kind: render.KindArtifactNotFound, Searched: []string{"**/*.mp4"}},
	}}
	svc := newService(t, stubOracle{code: goodScene}, renderer, nil)

	res, err := svc.Generate(context.Background(), "broken")
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
	if !errors.Is(err, render.ErrArtifactNotFound) {
		t.Fatalf("expected wrapped outcome error, got %v", err)
	}
	if res.VideoURL != "" {
		t.Fatalf("failed request must not report a video url, got %q", res.VideoURL)
	}
	if len(renderer.sources) != 2 {
		t.Fatalf("fallback must be attempted exactly once, got %d renders", len(renderer.sources))
	}
}

func TestGenerateCanceledSkipsFallback(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	renderer := &stubRenderer{outcomes: []render.Outcome{{Kind: render.KindProcessFailure, Detail: "render canceled"}}}
	svc, err := New(Config{}, stubOracle{code: goodScene}, renderer)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Generate(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(renderer.sources) != 1 {
		t.Fatalf("expected no fallback after cancellation, got %d renders", len(renderer.sources))
	}
}

func TestRenderSource(t *testing.T) {
	renderer := &stubRenderer{}
	svc := newService(t, nil, renderer, nil)

	res, err := svc.RenderSource(context.Background(), "class Foo(ThreeDScene):\n    def construct(self):\n        self.set_camera_orientation(phi=75 * DEGREES)\n")
	if err != nil {
		t.Fatalf("RenderSource failed: %v", err)
	}
	if !res.Source.ThreeD || res.Fallback != FallbackNone {
		t.Fatalf("unexpected result %+v", res)
	}

	res, err = svc.RenderSource(context.Background(), "print('hi')")
	if err != nil {
		t.Fatal(err)
	}
	if res.Fallback != FallbackMinimal {
		t.Fatalf("expected minimal fallback, got %q", res.Fallback)
	}
}

func TestHistoryFailureDoesNotFailRequest(t *testing.T) {
	store := &memoryStore{err: errors.New("disk full")}
	svc := newService(t, stubOracle{code: goodScene}, &stubRenderer{}, store)
	if _, err := svc.Generate(context.Background(), "x"); err != nil {
		t.Fatalf("history errors must not fail requests: %v", err)
	}
}

type blockingRenderer struct {
	active, peak atomic.Int32
}

func (r *blockingRenderer) Render(context.Context, scene.Source, string) render.Outcome {
	n := r.active.Add(1)
	for {
		p := r.peak.Load()
		if n <= p || r.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	r.active.Add(-1)
	return success()
}

func TestRendersAreSerialized(t *testing.T) {
	renderer := &blockingRenderer{}
	svc := newService(t, stubOracle{code: goodScene}, renderer, nil)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Generate(context.Background(), "x"); err != nil {
				t.Errorf("Generate failed: %v", err)
			}
		}()
	}
	wg.Wait()
	if renderer.peak.Load() != 1 {
		t.Fatalf("expected serialized renders, peak concurrency %d", renderer.peak.Load())
	}
}

func TestLockSharedAcrossServices(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), ".render.lock")
	a, _ := New(Config{LockPath: lockPath}, nil, &stubRenderer{})
	b, _ := New(Config{LockPath: lockPath}, nil, &stubRenderer{})

	unlock, err := a.acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := b.acquire(ctx); err == nil {
		t.Fatal("second service acquired a held lock")
	}
	unlock()

	unlockB, err := b.acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
	unlockB()
}

func TestNewRequiresRenderer(t *testing.T) {
	if _, err := New(Config{}, nil, nil); err == nil {
		t.Fatal("expected error without renderer")
	}
	svc, _ := New(Config{VideosMount: "media/"}, nil, &stubRenderer{})
	if svc.VideoURL() != "/media/output.mp4" {
		t.Fatalf("VideoURL = %q", svc.VideoURL())
	}
}
