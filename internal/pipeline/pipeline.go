// Package pipeline implements the four batch stages: fetch, consolidate,
// normalize, and publish. Each stage consumes the previous stage's output
// from the cache tree and produces its own; stages are independently
// invocable and idempotently re-runnable. Processing is sequential:
// the binding constraint is per-provider rate-limit compliance, not CPU
// or IO parallelism.
package pipeline

import (
	"context"
	"strings"
	"time"

	"pennypipe/internal/domain"
	"pennypipe/internal/store"
)

// Stage is the interface all pipeline stages implement.
type Stage interface {
	// Name returns the stage identifier.
	Name() string
	// Run executes the stage over every configured entity. It returns an
	// error only for fatal conditions; per-entity and per-provider problems
	// are logged and skipped.
	Run(ctx context.Context) error
}

// joinSources renders a source set as the semicolon-joined form used in the
// catalog and the published CSV.
func joinSources(sources []domain.Source) string {
	parts := make([]string, len(sources))
	for i, s := range sources {
		parts[i] = string(s)
	}
	return strings.Join(parts, ";")
}

// recordRun writes a catalog entry, tolerating a nil catalog (tests run
// stages without one).
func recordRun(ctx context.Context, catalog *store.Catalog, stage, cik, ticker string, records int, sources []domain.Source, note string, started time.Time) {
	if catalog == nil {
		return
	}
	// Catalog writes are observability only; a failed insert never fails the
	// stage.
	_ = catalog.RecordRun(ctx, store.RunRecord{
		Stage:      stage,
		CIK:        cik,
		Ticker:     ticker,
		Records:    records,
		Sources:    joinSources(sources),
		Note:       note,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
	})
}
