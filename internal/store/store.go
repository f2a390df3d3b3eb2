// Package store persists answering runs. Two backends are provided:
// SQLite (the default, zero-setup) and PostgreSQL for shared deployments.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/caseforms/formfill-cli/internal/model"
)

// Store records runs of the answering pipeline and their result documents.
type Store interface {
	// CreateRun inserts a new queued run for the given form file.
	CreateRun(ctx context.Context, form string) (*model.Run, error)
	// UpdateRunStatus transitions a run between lifecycle states.
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	// UpdateRunResult stores the final result document and marks the run complete.
	UpdateRunResult(ctx context.Context, runID string, result *model.ResultDocument) error
	// GetRun fetches a single run by id.
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	// ListRuns returns runs matching the filter, newest first.
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)
	// Migrate creates or updates the schema.
	Migrate(ctx context.Context) error
	Close() error
}

// RunFilter narrows ListRuns results. Zero values mean "no constraint".
type RunFilter struct {
	Status model.RunStatus
	Form   string
	Limit  int
	Offset int
}

// Open constructs a Store for the configured driver.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "sqlite", "":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
