package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Get when no record has the requested id.
var ErrNotFound = errors.New("history record not found")

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

// Record is one render attempt.
type Record struct {
	ID           uuid.UUID `json:"id"`
	RequestID    uuid.UUID `json:"request_id"`
	Prompt       string    `json:"prompt"`
	Kind         string    `json:"kind"`
	Fallback     string    `json:"fallback,omitempty"`
	Detail       string    `json:"detail,omitempty"`
	ArtifactPath string    `json:"artifact_path,omitempty"`
	ThreeD       bool      `json:"three_d"`
	HoldInserted bool      `json:"hold_inserted"`
	DurationMS   int64     `json:"duration_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store persists render records.
type Store interface {
	Add(ctx context.Context, rec Record) error
	Get(ctx context.Context, id uuid.UUID) (Record, error)
	// List returns the newest records first.
	List(ctx context.Context, limit int) ([]Record, error)
	Close() error
}

// DefaultListLimit caps List when callers pass a non-positive limit.
const DefaultListLimit = 50

// Open connects to the store named by driver.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverSQLite:
		return OpenSQLite(ctx, dsn)
	case DriverPostgres:
		return OpenPostgres(ctx, dsn)
	case DriverNone:
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("history: unsupported driver %q", driver)
	}
}

// Nop discards records. It backs driver "none".
type Nop struct{}

func (Nop) Add(context.Context, Record) error { return nil }

func (Nop) Get(context.Context, uuid.UUID) (Record, error) { return Record{}, ErrNotFound }

func (Nop) List(context.Context, int) ([]Record, error) { return nil, nil }

func (Nop) Close() error { return nil }

func prepare(rec Record) (Record, error) {
	if rec.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return rec, fmt.Errorf("history: new id: %w", err)
		}
		rec.ID = id
	}
	if rec.Kind == "" {
		return rec, errors.New("history: record kind required")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}
