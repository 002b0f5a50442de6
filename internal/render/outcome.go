package render

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind classifies a render attempt.
type Kind string

const (
	KindSuccess          Kind = "success"
	KindProcessFailure   Kind = "process_failure"
	KindTimeout          Kind = "timeout"
	KindArtifactNotFound Kind = "artifact_not_found"
)

var (
	// ErrProcessFailure marks renders whose child process could not start or
	// exited non-zero.
	ErrProcessFailure = errors.New("render process failed")
	// ErrTimeout marks renders killed at the deadline.
	ErrTimeout = errors.New("render timed out")
	// ErrArtifactNotFound marks renders that exited cleanly without a video.
	ErrArtifactNotFound = errors.New("render artifact not found")
)

// Outcome is the discriminated result of one render attempt. Fields beyond
// Kind are populated according to it:
//
//   - success: ArtifactPath
//   - process_failure: ExitCode, Detail, LaunchFailed
//   - timeout: Detail
//   - artifact_not_found: Searched
type Outcome struct {
	Kind         Kind
	ArtifactPath string
	ExitCode     int
	// Detail is the stderr excerpt (stdout when stderr is empty) or an
	// internal description of the failure.
	Detail       string
	LaunchFailed bool
	Searched     []string
	Duration     time.Duration
}

// OK reports whether the render produced the canonical artifact.
func (o Outcome) OK() bool {
	return o.Kind == KindSuccess
}

// Err returns nil on success and a *Failure otherwise.
func (o Outcome) Err() error {
	if o.OK() {
		return nil
	}
	return &Failure{Outcome: o}
}

// Failure wraps a failed Outcome as an error.
type Failure struct {
	Outcome Outcome
}

func (f *Failure) Error() string {
	o := f.Outcome
	switch o.Kind {
	case KindProcessFailure:
		if o.LaunchFailed {
			return fmt.Sprintf("%v: launch: %s", ErrProcessFailure, o.Detail)
		}
		if o.Detail == "" {
			return fmt.Sprintf("%v: exit code %d", ErrProcessFailure, o.ExitCode)
		}
		return fmt.Sprintf("%v: exit code %d: %s", ErrProcessFailure, o.ExitCode, o.Detail)
	case KindTimeout:
		return fmt.Sprintf("%v after %s", ErrTimeout, o.Duration.Round(time.Millisecond))
	case KindArtifactNotFound:
		return fmt.Sprintf("%v (searched %s)", ErrArtifactNotFound, strings.Join(o.Searched, ", "))
	default:
		return fmt.Sprintf("render failed: %s", o.Kind)
	}
}

func (f *Failure) Unwrap() error {
	switch f.Outcome.Kind {
	case KindProcessFailure:
		return ErrProcessFailure
	case KindTimeout:
		return ErrTimeout
	case KindArtifactNotFound:
		return ErrArtifactNotFound
	default:
		return nil
	}
}

// excerpt picks stderr, falling back to stdout, and keeps the last limit
// bytes since the renderer prints its traceback last.
func excerpt(stderr, stdout string, limit int) string {
	text := strings.TrimSpace(stderr)
	if text == "" {
		text = strings.TrimSpace(stdout)
	}
	if limit <= 0 || len(text) <= limit {
		return text
	}
	cut := len(text) - limit
	for cut < len(text) && !utf8Start(text[cut]) {
		cut++
	}
	return "..." + text[cut:]
}

func utf8Start(b byte) bool {
	return b&0xC0 != 0x80
}
