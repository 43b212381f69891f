// Package store persists flowcharts for the REST backend.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/flowpad/flowpad/config"
	"github.com/flowpad/flowpad/graph"
)

// ErrNotFound is returned when no flowchart has the requested id.
var ErrNotFound = errors.New("flowchart not found")

// FlowchartStore defines the interface for flowchart storage backends.
// Implementations must be safe for concurrent use.
type FlowchartStore interface {
	// List returns summaries ordered by creation time, oldest first.
	List(ctx context.Context) ([]graph.Summary, error)

	// Get returns the flowchart with the given id or ErrNotFound.
	Get(ctx context.Context, id string) (*graph.Flowchart, error)

	// Create stores a new flowchart. ID and CreatedAt are set by the caller.
	Create(ctx context.Context, f graph.Flowchart) error

	// Update replaces the title and data of an existing flowchart.
	Update(ctx context.Context, f graph.Flowchart) error

	// Delete removes a flowchart or returns ErrNotFound.
	Delete(ctx context.Context, id string) error

	// Close releases the backend's resources.
	Close() error
}

// New opens the backend selected by cfg.
func New(ctx context.Context, cfg config.StoreConfig) (FlowchartStore, error) {
	switch cfg.Backend {
	case "", "gob":
		path := cfg.GOBPath
		if path == "" {
			path = config.StoreFileName
		}
		st := NewGOBStore(path)
		if err := st.Load(ctx); err != nil {
			return nil, fmt.Errorf("failed to load flowcharts: %w", err)
		}
		return st, nil
	case "postgres":
		st, err := NewPostgresStore(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return st, nil
	case "redis":
		prefix := cfg.Redis.Prefix
		if prefix == "" {
			prefix = "flowpad"
		}
		st, err := NewRedisStore(ctx, cfg.Redis.URL, prefix)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Backend)
	}
}

func sortSummaries(s []graph.Summary) {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].CreatedAt.Equal(s[j].CreatedAt) {
			return s[i].ID < s[j].ID
		}
		return s[i].CreatedAt.Before(s[j].CreatedAt)
	})
}
