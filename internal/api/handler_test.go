package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"manimate/internal/generate"
	"manimate/internal/history"
	"manimate/internal/preflight"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubGenerator struct {
	prompts []string
	result  generate.Result
	err     error
}

func (g *stubGenerator) Generate(_ context.Context, prompt string) (generate.Result, error) {
	g.prompts = append(g.prompts, prompt)
	return g.result, g.err
}

type stubStore struct {
	history.Nop
	records []history.Record
	err     error
	limit   int
}

func (s *stubStore) List(_ context.Context, limit int) ([]history.Record, error) {
	s.limit = limit
	return s.records, s.err
}

func (s *stubStore) Get(_ context.Context, id uuid.UUID) (history.Record, error) {
	for _, rec := range s.records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return history.Record{}, history.ErrNotFound
}

func newTestEngine(t *testing.T, gen Generator, store history.Store, cfg RouteConfig) *gin.Engine {
	t.Helper()
	status := func(context.Context) Status {
		return Status{Ready: true, WorkDir: "/work", Checks: []preflight.Result{{Name: "Manim", Passed: true}}}
	}
	return NewEngine(cfg, NewHandler(gen, store, status, nil), nil)
}

func do(r http.Handler, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestRoot(t *testing.T) {
	r := newTestEngine(t, &stubGenerator{}, nil, RouteConfig{})
	w := do(r, http.MethodGet, "/", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := decode(t, w)["message"]; got != "Hello World" {
		t.Fatalf("message = %v", got)
	}
}

func TestGenerateReturnsVideoURL(t *testing.T) {
	for _, target := range []string{"/generate", "/generate/"} {
		t.Run(target, func(t *testing.T) {
			gen := &stubGenerator{result: generate.Result{VideoURL: "/videos/output.mp4"}}
			r := newTestEngine(t, gen, nil, RouteConfig{})

			w := do(r, http.MethodPost, target, `{"prompt":"a bouncing ball"}`)
			if w.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
			}
			if got := decode(t, w)["video_url"]; got != "/videos/output.mp4" {
				t.Fatalf("video_url = %v", got)
			}
			if len(gen.prompts) != 1 || gen.prompts[0] != "a bouncing ball" {
				t.Fatalf("prompts = %v", gen.prompts)
			}
		})
	}
}

func TestGenerateBadBody(t *testing.T) {
	tests := []string{`not json`, `{}`, `{"prompt":""}`}
	for _, body := range tests {
		gen := &stubGenerator{}
		r := newTestEngine(t, gen, nil, RouteConfig{})
		w := do(r, http.MethodPost, "/generate/", body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, w.Code)
		}
		if len(gen.prompts) != 0 {
			t.Fatalf("body %q: generator should not be called", body)
		}
	}
}

func TestGenerateFailureHidesDetail(t *testing.T) {
	gen := &stubGenerator{err: errors.New("manim exploded: Traceback ...")}
	r := newTestEngine(t, gen, nil, RouteConfig{})

	w := do(r, http.MethodPost, "/generate/", `{"prompt":"x"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if got := decode(t, w)["detail"]; got != GenerationFailedDetail {
		t.Fatalf("detail = %v", got)
	}
	if strings.Contains(w.Body.String(), "Traceback") {
		t.Fatal("renderer output leaked to client")
	}
}

func TestVideosAreServed(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "output.mp4"), []byte("video-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := newTestEngine(t, &stubGenerator{}, nil, RouteConfig{VideosMount: "/videos", OutputDir: dir})

	w := do(r, http.MethodGet, "/videos/output.mp4", "")
	if w.Code != http.StatusOK || w.Body.String() != "video-bytes" {
		t.Fatalf("GET video = %d %q", w.Code, w.Body.String())
	}
	if w := do(r, http.MethodGet, "/videos/missing.mp4", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing file, got %d", w.Code)
	}
}

func TestCORS(t *testing.T) {
	r := newTestEngine(t, &stubGenerator{}, nil, RouteConfig{})

	w := do(r, http.MethodOptions, "/generate/", "",
		"Origin", "http://localhost:3000",
		"Access-Control-Request-Method", "POST",
		"Access-Control-Request-Headers", "content-type",
	)
	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", w.Code)
	}
	h := w.Header()
	if h.Get("Access-Control-Allow-Origin") != "http://localhost:3000" || h.Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatalf("unexpected CORS headers: %v", h)
	}
	if h.Get("Access-Control-Allow-Methods") != "POST" || h.Get("Access-Control-Allow-Headers") != "content-type" {
		t.Fatalf("unexpected preflight headers: %v", h)
	}

	w = do(r, http.MethodGet, "/", "")
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("expected wildcard origin without Origin header, got %q", w.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestRequestIDHeader(t *testing.T) {
	r := newTestEngine(t, &stubGenerator{}, nil, RouteConfig{})
	if w := do(r, http.MethodGet, "/", "", requestIDHeader, "abc-123"); w.Header().Get(requestIDHeader) != "abc-123" {
		t.Fatalf("request id not echoed: %q", w.Header().Get(requestIDHeader))
	}
	if w := do(r, http.MethodGet, "/", ""); w.Header().Get(requestIDHeader) == "" {
		t.Fatal("expected generated request id")
	}
}

func TestAPIRequiresTokenWhenConfigured(t *testing.T) {
	r := newTestEngine(t, &stubGenerator{}, nil, RouteConfig{APIToken: "s3cret"})

	if w := do(r, http.MethodGet, "/api/status", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: expected 401, got %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/status", "", "Authorization", "Bearer wrong"); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token: expected 401, got %d", w.Code)
	}
	w := do(r, http.MethodGet, "/api/status", "", "Authorization", "Bearer s3cret")
	if w.Code != http.StatusOK {
		t.Fatalf("valid token: expected 200, got %d", w.Code)
	}
	if decode(t, w)["ready"] != true {
		t.Fatalf("unexpected status body %s", w.Body.String())
	}
	if w := do(r, http.MethodPost, "/generate/", `{"prompt":"x"}`); w.Code != http.StatusOK {
		t.Fatalf("generate must stay public, got %d", w.Code)
	}
}

func TestRenders(t *testing.T) {
	rec := history.Record{ID: uuid.New(), Prompt: "p", Kind: "success"}
	store := &stubStore{records: []history.Record{rec}}
	r := newTestEngine(t, &stubGenerator{}, store, RouteConfig{})

	w := do(r, http.MethodGet, "/api/renders?limit=5", "")
	if w.Code != http.StatusOK || store.limit != 5 {
		t.Fatalf("list = %d (limit %d)", w.Code, store.limit)
	}
	var list struct {
		Renders []history.Record `json:"renders"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Renders) != 1 || list.Renders[0].ID != rec.ID {
		t.Fatalf("unexpected renders %+v", list.Renders)
	}

	if w := do(r, http.MethodGet, "/api/renders?limit=-1", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad limit: expected 400, got %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/renders/"+rec.ID.String(), ""); w.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/renders/"+uuid.NewString(), ""); w.Code != http.StatusNotFound {
		t.Fatalf("missing: expected 404, got %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/renders/nope", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("invalid id: expected 400, got %d", w.Code)
	}
}

func TestRendersEmptyListIsArray(t *testing.T) {
	r := newTestEngine(t, &stubGenerator{}, nil, RouteConfig{})
	w := do(r, http.MethodGet, "/api/renders", "")
	if !strings.Contains(w.Body.String(), `"renders":[]`) {
		t.Fatalf("expected empty array, got %s", w.Body.String())
	}
}

func TestServerServeAndShutdown(t *testing.T) {
	r := newTestEngine(t, &stubGenerator{}, nil, RouteConfig{})
	srv, err := NewServer("127.0.0.1:0", r, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := srv.Listen(); err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	resp, err := http.Get("http://" + srv.Addr() + "/")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Serve returned %v", err)
	}
	if _, err := NewServer(" ", r, nil); err == nil {
		t.Fatal("expected error for empty bind")
	}
}
