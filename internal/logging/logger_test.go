package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"manimate/internal/config"
	"manimate/internal/logging"
)

func readLog(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	return string(content)
}

func TestNewFromConfigWritesJSONFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Logging.Level = "info"

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("artifact ready", logging.String(logging.FieldRenderID, "abc"))

	content := readLog(t, filepath.Join(cfg.Paths.LogDir, logging.LogFileName))
	if strings.Contains(content, "hidden") {
		t.Fatalf("debug line leaked at info level: %q", content)
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &entry); err != nil {
		t.Fatalf("log file is not JSON: %v (%q)", err, content)
	}
	if entry["msg"] != "artifact ready" || entry["render_id"] != "abc" || entry["level"] != "info" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", entry)
	}
}

func TestNewFromConfigRejectsUnknownFormat(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = ""
	cfg.Logging.Format = "xml"
	if _, err := logging.NewFromConfig(&cfg); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestConsoleLoggerSubjectAndFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger = logging.NewComponentLogger(logger, "render")
	logger.Info("artifact ready",
		logging.String(logging.FieldRenderID, "0123456789abcdef"),
		logging.String("path", "/tmp/out put.mp4"),
		logging.Int("exit_code", 0),
	)

	content := readLog(t, logPath)
	if !strings.Contains(content, " INFO render[01234567]: artifact ready") {
		t.Fatalf("missing subject: %q", content)
	}
	if !strings.Contains(content, `path="/tmp/out put.mp4"`) || !strings.Contains(content, "exit_code=0") {
		t.Fatalf("missing fields: %q", content)
	}
	if strings.Contains(content, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerDebugIncludesSource(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.WithGroup("scene").Debug("normalized", logging.Bool("three_d", true))

	content := readLog(t, logPath)
	if !strings.Contains(content, "logger_test.go:") {
		t.Fatalf("expected caller in debug logs, got %q", content)
	}
	if !strings.Contains(content, "scene.three_d=true") {
		t.Fatalf("expected grouped key, got %q", content)
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	logging.WarnWithContext(logger, "render failed", "render_failed",
		logging.String(logging.FieldImpact, "fallback scene will be rendered"),
	)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry[logging.FieldEventType] != "render_failed" {
		t.Fatalf("event_type = %v", entry[logging.FieldEventType])
	}
	if entry[logging.FieldErrorHint] != "check logs for details" {
		t.Fatalf("error_hint = %v", entry[logging.FieldErrorHint])
	}
	if entry[logging.FieldImpact] != "fallback scene will be rendered" {
		t.Fatalf("impact overwritten: %v", entry[logging.FieldImpact])
	}
}

func TestWithContextAddsIdentifiers(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := logging.WithRequestID(logging.WithRenderID(context.Background(), "r-1"), "q-1")
	logging.WithContext(ctx, base).Info("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry[logging.FieldRenderID] != "r-1" || entry[logging.FieldRequestID] != "q-1" {
		t.Fatalf("unexpected entry: %v", entry)
	}

	if got := logging.WithContext(context.Background(), base); got != base {
		t.Fatal("expected unchanged logger without context fields")
	}
	if _, ok := logging.RenderIDFromContext(logging.WithRenderID(context.Background(), "")); ok {
		t.Fatal("empty render id should not be stored")
	}
}

type failingHandler struct{ slog.Handler }

func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("boom") }

func TestTeeHandler(t *testing.T) {
	if _, ok := logging.TeeHandler(nil, nil).(logging.NoopHandler); !ok {
		t.Fatal("expected NoopHandler when every handler is nil")
	}

	var first bytes.Buffer
	single := slog.NewJSONHandler(&first, nil)
	if logging.TeeHandler(nil, single) != single {
		t.Fatal("expected single handler to be returned unwrapped")
	}

	var info, debug bytes.Buffer
	infoHandler := slog.NewJSONHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo})
	debugHandler := slog.NewJSONHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(logging.TeeHandler(infoHandler, debugHandler)).With(logging.String("k", "v"))

	logger.Debug("only debug")
	logger.Info("both")

	if strings.Contains(info.String(), "only debug") {
		t.Fatalf("info handler received debug record: %q", info.String())
	}
	if !strings.Contains(debug.String(), "only debug") || !strings.Contains(debug.String(), `"k":"v"`) {
		t.Fatalf("debug handler output: %q", debug.String())
	}
	if !strings.Contains(info.String(), "both") {
		t.Fatalf("info handler missed record: %q", info.String())
	}

	var ok bytes.Buffer
	tee := logging.TeeHandler(failingHandler{slog.NewJSONHandler(&bytes.Buffer{}, nil)}, slog.NewJSONHandler(&ok, nil))
	if err := tee.Handle(context.Background(), slog.NewRecord(testTime, slog.LevelInfo, "x", 0)); err == nil {
		t.Fatal("expected handler error to surface")
	}
	if !strings.Contains(ok.String(), `"msg":"x"`) {
		t.Fatal("healthy handler should still receive the record")
	}
}

var testTime = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
