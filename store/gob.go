package store

import (
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"sync"

	"github.com/flowpad/flowpad/graph"
	"github.com/flowpad/flowpad/internal/fileutil"
)

// GOBStore keeps every flowchart in memory and writes the whole set to a
// single gob file after each change.
type GOBStore struct {
	path     string
	lockPath string
	mu       sync.RWMutex
	charts   map[string]graph.Flowchart
}

type gobData struct {
	Flowcharts map[string]graph.Flowchart
}

func NewGOBStore(path string) *GOBStore {
	return &GOBStore{
		path:     path,
		lockPath: path + ".lock",
		charts:   make(map[string]graph.Flowchart),
	}
}

func (s *GOBStore) List(ctx context.Context) ([]graph.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]graph.Summary, 0, len(s.charts))
	for _, f := range s.charts {
		out = append(out, f.Summary())
	}
	sortSummaries(out)
	return out, nil
}

func (s *GOBStore) Get(ctx context.Context, id string) (*graph.Flowchart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.charts[id]
	if !ok {
		return nil, ErrNotFound
	}
	f.Data = f.Data.Clone()
	return &f, nil
}

func (s *GOBStore) Create(ctx context.Context, f graph.Flowchart) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.charts[f.ID]; ok {
		return fmt.Errorf("flowchart %s already exists", f.ID)
	}
	f.Data = f.Data.Clone()
	s.charts[f.ID] = f
	if err := s.persistLocked(); err != nil {
		delete(s.charts, f.ID)
		return err
	}
	return nil
}

func (s *GOBStore) Update(ctx context.Context, f graph.Flowchart) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.charts[f.ID]
	if !ok {
		return ErrNotFound
	}
	updated := old
	updated.Title = f.Title
	updated.Data = f.Data.Clone()
	s.charts[f.ID] = updated
	if err := s.persistLocked(); err != nil {
		s.charts[f.ID] = old
		return err
	}
	return nil
}

func (s *GOBStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.charts[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.charts, id)
	if err := s.persistLocked(); err != nil {
		s.charts[id] = old
		return err
	}
	return nil
}

// Load reads the store file. A missing file is an empty store.
func (s *GOBStore) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Shared lock: other processes may read at the same time, not write.
	lock, err := fileutil.Lock(s.lockPath, false)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open store file: %w", err)
	}
	defer file.Close()

	var data gobData
	if err := gob.NewDecoder(file).Decode(&data); err != nil {
		return fmt.Errorf("failed to decode store file: %w", err)
	}

	s.charts = data.Flowcharts
	if s.charts == nil {
		s.charts = make(map[string]graph.Flowchart)
	}
	return nil
}

// Persist writes the current state to disk.
func (s *GOBStore) Persist(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persistLocked()
}

func (s *GOBStore) persistLocked() error {
	lock, err := fileutil.Lock(s.lockPath, true)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	return fileutil.WriteFileAtomically(s.path, func(f *os.File) error {
		if err := gob.NewEncoder(f).Encode(gobData{Flowcharts: s.charts}); err != nil {
			return fmt.Errorf("failed to encode store file: %w", err)
		}
		return nil
	})
}

func (s *GOBStore) Close() error {
	return s.Persist(context.Background())
}
