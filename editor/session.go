// Package editor holds one open flowchart: its working copy, the autosave
// scheduler that keeps the backend in step with it, and the terminal UI that
// edits it.
package editor

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/flowpad/flowpad/autosave"
	"github.com/flowpad/flowpad/graph"
)

// placementRange bounds the random position given to new nodes.
const placementRange = 250.0

// Remote is the part of the sync client a session needs.
type Remote interface {
	Fetch(ctx context.Context, id string) (*graph.Flowchart, error)
	Save(ctx context.Context, id string, doc graph.Document) (*graph.Flowchart, error)
}

type Option func(*sessionOptions)

type sessionOptions struct {
	autosave []autosave.Option
	log      zerolog.Logger
}

// WithAutosave passes options through to the session's scheduler.
func WithAutosave(opts ...autosave.Option) Option {
	return func(o *sessionOptions) {
		o.autosave = append(o.autosave, opts...)
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *sessionOptions) {
		o.log = l
	}
}

// Session is one open flowchart.
type Session struct {
	id     string
	store  *graph.Store
	sched  *autosave.Scheduler
	log    zerolog.Logger
	cancel context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

// Open fetches the flowchart, loads it into a fresh store and starts
// autosaving. On error nothing is left running.
func Open(ctx context.Context, remote Remote, id string, opts ...Option) (*Session, error) {
	o := sessionOptions{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	f, err := remote.Fetch(ctx, id)
	if err != nil {
		o.log.Error().Err(err).Str("flowchart", id).Msg("failed to load flowchart")
		return nil, fmt.Errorf("failed to open flowchart %s: %w", id, err)
	}

	title := f.Title
	if title == "" {
		title = graph.UntitledTitle
	}
	st := graph.NewStore()
	if err := st.ReplaceAll(f.Data.Nodes, f.Data.Edges, title); err != nil {
		return nil, fmt.Errorf("flowchart %s holds an invalid graph: %w", id, err)
	}

	log := o.log.With().Str("flowchart", id).Logger()
	saver := autosave.SaverFunc(func(ctx context.Context, doc graph.Document) error {
		_, err := remote.Save(ctx, id, doc)
		return err
	})
	schedOpts := append([]autosave.Option{autosave.WithLogger(log)}, o.autosave...)
	sched := autosave.New(st, saver, schedOpts...)
	if f.Title != "" {
		sched.MarkSaved(st.Revision())
	}

	// The worker outlives the request that opened the session.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sched.Start(runCtx)

	log.Info().Int("nodes", len(f.Data.Nodes)).Int("edges", len(f.Data.Edges)).Msg("flowchart opened")

	return &Session{
		id:     id,
		store:  st,
		sched:  sched,
		log:    log,
		cancel: cancel,
	}, nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) Snapshot() graph.Snapshot { return s.store.Snapshot() }

func (s *Session) Status() autosave.Status { return s.sched.Status() }

// AddNode adds a node of type t with the next free node-N id, label "Node N"
// and a random position.
func (s *Session) AddNode(t graph.NodeType) (graph.Node, error) {
	id := s.store.NextNodeID()
	n := graph.Node{
		ID:   id,
		Type: t.Normalize(),
		Data: graph.NodeData{Label: "Node " + strings.TrimPrefix(id, "node-")},
		Position: graph.Position{
			X: rand.Float64() * placementRange,
			Y: rand.Float64() * placementRange,
		},
	}
	if err := s.store.AddNode(n); err != nil {
		return graph.Node{}, err
	}
	return n, nil
}

// Connect adds an animated edge from source to target.
func (s *Session) Connect(source, target string) (graph.Edge, error) {
	e := graph.NewEdge(source, target)
	if err := s.store.AddEdge(e); err != nil {
		return graph.Edge{}, err
	}
	return e, nil
}

// Delete removes the node or edge with the given id. Deleting a node also
// removes its edges.
func (s *Session) Delete(id string) error {
	err := s.store.DeleteNode(id)
	if errors.Is(err, graph.ErrNodeNotFound) {
		return s.store.DeleteEdge(id)
	}
	return err
}

// Move shifts a node by (dx, dy).
func (s *Session) Move(id string, dx, dy float64) error {
	n, ok := s.store.Node(id)
	if !ok {
		return fmt.Errorf("%w: %s", graph.ErrNodeNotFound, id)
	}
	return s.store.UpdateNodePosition(id, graph.Position{X: n.Position.X + dx, Y: n.Position.Y + dy})
}

func (s *Session) Relabel(id, label string) error {
	return s.store.UpdateNodeLabel(id, label)
}

// CycleType advances a node to the next node type.
func (s *Session) CycleType(id string) error {
	n, ok := s.store.Node(id)
	if !ok {
		return fmt.Errorf("%w: %s", graph.ErrNodeNotFound, id)
	}
	return s.store.SetNodeType(id, n.Type.Next())
}

func (s *Session) Retitle(title string) {
	s.store.SetTitle(title)
}

// Save asks for an immediate save without waiting for it.
func (s *Session) Save() {
	s.sched.Trigger()
}

// SaveNow saves synchronously.
func (s *Session) SaveNow(ctx context.Context) error {
	return s.sched.SaveNow(ctx)
}

// Close flushes pending changes within the exit budget and stops autosaving.
// Only the first call does anything; later calls return its result.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		if err := s.sched.Flush(ctx); err != nil {
			s.log.Warn().Err(err).Msg("exit save failed")
			s.closeErr = err
		}
		s.sched.Stop()
		s.cancel()
		s.log.Info().Msg("flowchart closed")
	})
	return s.closeErr
}
