package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/kulbirminhas-aiinitiative/maestro-platform-sub014/pkg/domain"
)

// Store implements ports.CheckpointStore on the local filesystem: one JSON
// document per execution under the base directory. Writes go through a
// temp-file rename so a crash mid-save never leaves a torn checkpoint.
type Store struct {
	dir    string
	logger *zap.Logger
	mu     sync.Mutex
}

// NewStore creates a file-backed checkpoint store rooted at dir, creating
// the directory if needed.
func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Save upserts a snapshot keyed by execution id.
func (s *Store) Save(ctx context.Context, state *domain.RunState) error {
	if state == nil || state.ExecutionID == "" {
		return fmt.Errorf("run state requires an execution id")
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(state.ExecutionID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to commit checkpoint: %w", err)
	}

	if s.logger != nil {
		s.logger.Debug("checkpoint saved",
			zap.String("execution_id", state.ExecutionID),
			zap.String("path", path))
	}
	return nil
}

// Load retrieves the snapshot for an execution.
func (s *Store) Load(ctx context.Context, executionID string) (*domain.RunState, error) {
	s.mu.Lock()
	data, err := os.ReadFile(s.path(executionID))
	s.mu.Unlock()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrExecutionNotFound, executionID)
		}
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	state := &domain.RunState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return state, nil
}

// List returns stored execution ids, filtered by workflow when non-empty.
// Filtering reads each document; checkpoint directories are small.
func (s *Store) List(ctx context.Context, workflowID string) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id := strings.TrimSuffix(name, ".json")
		if workflowID != "" {
			state, err := s.Load(ctx, id)
			if err != nil || state.WorkflowID != workflowID {
				continue
			}
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes the snapshot for an execution. Deleting a missing
// execution is not an error.
func (s *Store) Delete(ctx context.Context, executionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(executionID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

func (s *Store) path(executionID string) string {
	return filepath.Join(s.dir, executionID+".json")
}
