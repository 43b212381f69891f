package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flowpad/flowpad/graph"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS flowcharts (
	id         TEXT PRIMARY KEY,
	title      VARCHAR(255) NOT NULL,
	data       JSONB NOT NULL DEFAULT '{"nodes": [], "edges": []}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_flowcharts_created_at ON flowcharts (created_at);
`

// PostgresStore keeps flowcharts in a single table with the graph as jsonb.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]graph.Summary, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, title, created_at FROM flowcharts ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list flowcharts: %w", err)
	}
	defer rows.Close()

	out := []graph.Summary{}
	for rows.Next() {
		var sum graph.Summary
		if err := rows.Scan(&sum.ID, &sum.Title, &sum.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan flowchart: %w", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list flowcharts: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*graph.Flowchart, error) {
	var (
		f   graph.Flowchart
		raw []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, title, data, created_at FROM flowcharts WHERE id = $1`, id,
	).Scan(&f.ID, &f.Title, &raw, &f.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get flowchart: %w", err)
	}
	if err := json.Unmarshal(raw, &f.Data); err != nil {
		return nil, fmt.Errorf("failed to decode flowchart data: %w", err)
	}
	return &f, nil
}

func (s *PostgresStore) Create(ctx context.Context, f graph.Flowchart) error {
	raw, err := json.Marshal(f.Data)
	if err != nil {
		return fmt.Errorf("failed to encode flowchart data: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO flowcharts (id, title, data, created_at) VALUES ($1, $2, $3, $4)`,
		f.ID, f.Title, raw, f.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert flowchart: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, f graph.Flowchart) error {
	raw, err := json.Marshal(f.Data)
	if err != nil {
		return fmt.Errorf("failed to encode flowchart data: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE flowcharts SET title = $2, data = $3 WHERE id = $1`,
		f.ID, f.Title, raw,
	)
	if err != nil {
		return fmt.Errorf("failed to update flowchart: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM flowcharts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete flowchart: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
