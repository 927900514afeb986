package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kulbirminhas-aiinitiative/maestro-platform-sub014/pkg/domain"
)

// Store implements ports.CheckpointStore with an in-process map. Snapshots
// are deep-copied on save and load so callers never share live state.
// This is for testing and single-process use.
type Store struct {
	states map[string]*domain.RunState
	mu     sync.RWMutex
}

// NewStore creates a new in-memory checkpoint store.
func NewStore() *Store {
	return &Store{
		states: make(map[string]*domain.RunState),
	}
}

// Save upserts a snapshot keyed by execution id.
func (s *Store) Save(ctx context.Context, state *domain.RunState) error {
	if state == nil || state.ExecutionID == "" {
		return fmt.Errorf("run state requires an execution id")
	}
	snapshot, err := state.Clone()
	if err != nil {
		return fmt.Errorf("failed to snapshot run state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.ExecutionID] = snapshot
	return nil
}

// Load retrieves the snapshot for an execution.
func (s *Store) Load(ctx context.Context, executionID string) (*domain.RunState, error) {
	s.mu.RLock()
	snapshot, ok := s.states[executionID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrExecutionNotFound, executionID)
	}
	return snapshot.Clone()
}

// List returns stored execution ids, filtered by workflow when non-empty.
func (s *Store) List(ctx context.Context, workflowID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.states))
	for id, state := range s.states {
		if workflowID != "" && state.WorkflowID != workflowID {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes the snapshot for an execution.
func (s *Store) Delete(ctx context.Context, executionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.states, executionID)
	return nil
}
