// Package manager is the state behind the flowchart list: what exists, and
// the create, rename, delete and open actions on it.
package manager

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/flowpad/flowpad/editor"
	"github.com/flowpad/flowpad/graph"
)

// Remote is the part of the sync client the list needs.
type Remote interface {
	editor.Remote
	List(ctx context.Context) ([]graph.Summary, error)
	Create(ctx context.Context, doc graph.Document) (*graph.Flowchart, error)
	Rename(ctx context.Context, id, title string) (*graph.Flowchart, error)
	Delete(ctx context.Context, id string) error
}

// Manager caches the flowchart list. Every action talks to the backend first
// and only touches the cached list once the backend agreed.
type Manager struct {
	remote Remote
	log    zerolog.Logger

	mu    sync.RWMutex
	items []graph.Summary
}

func New(remote Remote, log zerolog.Logger) *Manager {
	return &Manager{remote: remote, log: log}
}

// Refresh reloads the list from the backend.
func (m *Manager) Refresh(ctx context.Context) error {
	items, err := m.remote.List(ctx)
	if err != nil {
		m.log.Error().Err(err).Msg("failed to list flowcharts")
		return fmt.Errorf("failed to list flowcharts: %w", err)
	}
	m.mu.Lock()
	m.items = items
	m.mu.Unlock()
	return nil
}

// Items returns a copy of the cached list.
func (m *Manager) Items() []graph.Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]graph.Summary{}, m.items...)
}

// Create adds a flowchart titled title ("New Flowchart" when empty) with an
// optional initial graph.
func (m *Manager) Create(ctx context.Context, title string, seed *graph.Data) (*graph.Flowchart, error) {
	if title == "" {
		title = graph.DefaultTitle
	}
	doc := graph.Document{Title: title}
	if seed != nil {
		doc.Data = seed.Clone()
	}

	f, err := m.remote.Create(ctx, doc)
	if err != nil {
		m.log.Error().Err(err).Str("title", title).Msg("failed to create flowchart")
		return nil, fmt.Errorf("failed to create flowchart: %w", err)
	}

	m.mu.Lock()
	m.items = append(m.items, f.Summary())
	m.mu.Unlock()
	m.log.Info().Str("flowchart", f.ID).Str("title", f.Title).Msg("flowchart created")
	return f, nil
}

// Rename changes a flowchart's title. The stored graph is not sent.
func (m *Manager) Rename(ctx context.Context, id, title string) error {
	f, err := m.remote.Rename(ctx, id, title)
	if err != nil {
		m.log.Error().Err(err).Str("flowchart", id).Msg("failed to rename flowchart")
		return fmt.Errorf("failed to rename flowchart %s: %w", id, err)
	}

	m.mu.Lock()
	for i := range m.items {
		if m.items[i].ID == id {
			m.items[i].Title = f.Title
		}
	}
	m.mu.Unlock()
	return nil
}

func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := m.remote.Delete(ctx, id); err != nil {
		m.log.Error().Err(err).Str("flowchart", id).Msg("failed to delete flowchart")
		return fmt.Errorf("failed to delete flowchart %s: %w", id, err)
	}

	m.mu.Lock()
	kept := m.items[:0]
	for _, it := range m.items {
		if it.ID != id {
			kept = append(kept, it)
		}
	}
	m.items = kept
	m.mu.Unlock()
	return nil
}

// Open starts an editor session on the flowchart.
func (m *Manager) Open(ctx context.Context, id string, opts ...editor.Option) (*editor.Session, error) {
	opts = append([]editor.Option{editor.WithLogger(m.log)}, opts...)
	return editor.Open(ctx, m.remote, id, opts...)
}
