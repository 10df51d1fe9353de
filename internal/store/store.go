// Package store persists optimization runs to SQLite or Postgres.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/tripleyak/marginal-roas-optimizer/internal/model"
)

// DefaultListLimit caps ListRuns when no limit is given.
const DefaultListLimit = 100

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Mode         model.RunMode `json:"mode,omitempty"`
	CreatedAfter time.Time     `json:"created_after,omitempty"`
	Limit        int           `json:"limit,omitempty"`
	Offset       int           `json:"offset,omitempty"`
}

func (f RunFilter) limit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}

// Store defines run history persistence.
type Store interface {
	// SaveRun inserts run, assigning ID and CreatedAt when they are unset.
	SaveRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, id string) (*model.Run, error)
	// ListRuns returns runs newest first.
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)
	DeleteRun(ctx context.Context, id string) error

	Migrate(ctx context.Context) error
	Close() error
}

// runPayload holds the JSON-encoded columns of a run row.
type runPayload struct {
	settings []byte
	margin   []byte
	result   []byte // nil when the run has no single result
	rows     []byte // nil when the run has no portfolio rows
}

// prepareRun fills in ID and CreatedAt (normalized to UTC) and encodes the
// JSON columns.
func prepareRun(run *model.Run) (*runPayload, error) {
	if run == nil {
		return nil, eris.New("store: nil run")
	}
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	run.CreatedAt = run.CreatedAt.UTC()

	var (
		p   runPayload
		err error
	)
	if p.settings, err = json.Marshal(run.Settings); err != nil {
		return nil, eris.Wrap(err, "store: marshal settings")
	}
	if p.margin, err = json.Marshal(run.Margin); err != nil {
		return nil, eris.Wrap(err, "store: marshal margin")
	}
	if run.Result != nil {
		if p.result, err = json.Marshal(run.Result); err != nil {
			return nil, eris.Wrap(err, "store: marshal result")
		}
	}
	if run.Rows != nil {
		if p.rows, err = json.Marshal(run.Rows); err != nil {
			return nil, eris.Wrap(err, "store: marshal rows")
		}
	}
	return &p, nil
}

// decode restores the JSON columns onto run.
func (p *runPayload) decode(run *model.Run) error {
	if err := json.Unmarshal(p.settings, &run.Settings); err != nil {
		return eris.Wrap(err, "store: unmarshal settings")
	}
	if err := json.Unmarshal(p.margin, &run.Margin); err != nil {
		return eris.Wrap(err, "store: unmarshal margin")
	}
	if present(p.result) {
		run.Result = &model.OptimizationResult{}
		if err := json.Unmarshal(p.result, run.Result); err != nil {
			return eris.Wrap(err, "store: unmarshal result")
		}
	}
	if present(p.rows) {
		if err := json.Unmarshal(p.rows, &run.Rows); err != nil {
			return eris.Wrap(err, "store: unmarshal rows")
		}
	}
	return nil
}

// present reports whether a JSON column holds a value. SQL NULL and the JSON
// literal null are both absent.
func present(b []byte) bool {
	return len(b) > 0 && !bytes.Equal(bytes.TrimSpace(b), []byte("null"))
}

func notFound(id string) error {
	return eris.Errorf("run not found: %s", id)
}
