// Package autosave pushes the editor's working copy to the backend on a timer,
// on demand, and once more on exit.
//
// A Scheduler owns one worker goroutine and a single save slot. Every save,
// whichever path requested it, takes the slot first and only then reads the
// snapshot, so requests never overlap and each one carries the state that was
// current when it was sent.
package autosave

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/flowpad/flowpad/graph"
)

const (
	DefaultInterval      = 5 * time.Second
	DefaultErrorCooldown = 2 * time.Second
	DefaultExitBudget    = 3 * time.Second
)

// SnapshotSource is implemented by *graph.Store.
type SnapshotSource interface {
	Snapshot() graph.Snapshot
}

// Saver persists a document. Implementations must be safe to call with the
// same document more than once.
type Saver interface {
	Save(ctx context.Context, doc graph.Document) error
}

// SaverFunc adapts a function to Saver.
type SaverFunc func(ctx context.Context, doc graph.Document) error

func (f SaverFunc) Save(ctx context.Context, doc graph.Document) error {
	return f(ctx, doc)
}

type State int

const (
	StateIdle State = iota
	StateSaving
	StateSaved
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSaving:
		return "saving"
	case StateSaved:
		return "saved"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Status is what the editor shows in its save indicator.
type Status struct {
	State     State
	Err       error     // set in StateError
	LastSaved time.Time // zero until the first successful save
	Revision  uint64    // revision of the last successful save
}

type Scheduler struct {
	source   SnapshotSource
	saver    Saver
	interval time.Duration
	cooldown time.Duration
	budget   time.Duration
	listener func(Status)
	log      zerolog.Logger

	slot    chan struct{}
	trigger chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      chan struct{}

	notifyMu sync.Mutex
	mu       sync.Mutex
	status   Status
	saved    bool
	gen      uint64
	timer    *time.Timer
	stopped  bool
}

type Option func(*Scheduler)

func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithErrorCooldown sets how long Saved and Error stay visible before the
// status drops back to Idle.
func WithErrorCooldown(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.cooldown = d
		}
	}
}

// WithExitBudget bounds the time Flush may spend.
func WithExitBudget(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.budget = d
		}
	}
}

// WithStatusListener registers fn to be called on every status change.
// Calls are serialized; fn may call Status but must not call SaveNow or Flush.
func WithStatusListener(fn func(Status)) Option {
	return func(s *Scheduler) {
		s.listener = fn
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Scheduler) {
		s.log = l
	}
}

func New(source SnapshotSource, saver Saver, opts ...Option) *Scheduler {
	s := &Scheduler{
		source:   source,
		saver:    saver,
		interval: DefaultInterval,
		cooldown: DefaultErrorCooldown,
		budget:   DefaultExitBudget,
		log:      zerolog.Nop(),
		slot:     make(chan struct{}, 1),
		trigger:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the periodic worker. It runs until ctx is cancelled or Stop
// is called. Calling Start more than once has no effect.
func (s *Scheduler) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(ctx)
		s.mu.Lock()
		s.cancel = cancel
		s.mu.Unlock()
		go s.run(ctx)
	})
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			if err := s.save(ctx, false); err != nil && ctx.Err() == nil {
				s.log.Debug().Err(err).Msg("periodic save failed")
			}

		case <-s.trigger:
			if err := s.save(ctx, true); err != nil && ctx.Err() == nil {
				s.log.Debug().Err(err).Msg("requested save failed")
			}
		}
	}
}

// Stop ends the worker and waits for it to exit. It is safe to call more
// than once and without a prior Start.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		cancel := s.cancel
		s.stopped = true
		if s.timer != nil {
			s.timer.Stop()
		}
		s.mu.Unlock()

		if cancel != nil {
			cancel()
			<-s.done
		}
	})
}

// Trigger requests an immediate save from the worker. Requests made while
// one is already pending collapse into it; a request made during a save
// produces one more save afterwards.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// SaveNow saves the current snapshot synchronously, dirty or not.
func (s *Scheduler) SaveNow(ctx context.Context) error {
	return s.save(ctx, true)
}

// Flush is the exit hook: one last save bounded by the exit budget. The
// result is advisory; callers exit regardless.
func (s *Scheduler) Flush(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.budget)
	defer cancel()
	return s.save(ctx, true)
}

// MarkSaved records revision as already persisted, e.g. right after the
// graph was loaded from the backend, so the periodic save skips it.
func (s *Scheduler) MarkSaved(revision uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = true
	s.status.Revision = revision
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Scheduler) save(ctx context.Context, force bool) error {
	select {
	case s.slot <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("failed to acquire save slot: %w", ctx.Err())
	}
	defer func() { <-s.slot }()

	snap := s.source.Snapshot()
	if !force && s.isClean(snap.Revision) {
		return nil
	}

	s.setStatus(func(st *Status) {
		st.State = StateSaving
		st.Err = nil
	}, false)

	start := time.Now()
	doc := snap.Document()
	if doc.Title == "" {
		doc.Title = graph.UntitledTitle
	}
	if err := s.saver.Save(ctx, doc); err != nil {
		s.log.Warn().Err(err).Uint64("revision", snap.Revision).Msg("autosave failed")
		s.setStatus(func(st *Status) {
			st.State = StateError
			st.Err = err
		}, true)
		return fmt.Errorf("failed to save flowchart: %w", err)
	}

	s.log.Debug().
		Uint64("revision", snap.Revision).
		Int("nodes", len(snap.Data.Nodes)).
		Int("edges", len(snap.Data.Edges)).
		Dur("took", time.Since(start)).
		Msg("autosave complete")

	s.setStatus(func(st *Status) {
		st.State = StateSaved
		st.Err = nil
		st.LastSaved = time.Now()
		st.Revision = snap.Revision
		s.saved = true
	}, true)
	return nil
}

func (s *Scheduler) isClean(revision uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved && s.status.Revision == revision
}

// setStatus applies update and notifies the listener. With cool set, the
// status returns to Idle after the cooldown unless it changed in between.
func (s *Scheduler) setStatus(update func(*Status), cool bool) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	update(&s.status)
	s.gen++
	gen := s.gen
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if cool && !s.stopped {
		s.timer = time.AfterFunc(s.cooldown, func() { s.toIdle(gen) })
	}
	st := s.status
	s.mu.Unlock()

	if s.listener != nil {
		s.listener(st)
	}
}

func (s *Scheduler) toIdle(gen uint64) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.status.State = StateIdle
	s.status.Err = nil
	s.gen++
	s.timer = nil
	st := s.status
	s.mu.Unlock()

	if s.listener != nil {
		s.listener(st)
	}
}
