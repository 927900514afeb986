package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kulbirminhas-aiinitiative/maestro-platform-sub014/pkg/domain"
)

const keyPrefix = "maestro:checkpoint:"

// Store implements ports.CheckpointStore using Redis with JSON
// serialization. Snapshots expire after the configured TTL; a workflow
// index set supports List filtering without scanning values.
type Store struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewStore creates a Redis checkpoint store.
func NewStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *Store {
	return &Store{
		client: client,
		logger: logger,
		ttl:    ttl,
	}
}

// Save upserts a snapshot keyed by execution id.
func (s *Store) Save(ctx context.Context, state *domain.RunState) error {
	if state == nil || state.ExecutionID == "" {
		return fmt.Errorf("run state requires an execution id")
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal run state: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, getStateKey(state.ExecutionID), data, s.ttl)
	pipe.SAdd(ctx, getIndexKey(state.WorkflowID), state.ExecutionID)
	if s.ttl > 0 {
		pipe.Expire(ctx, getIndexKey(state.WorkflowID), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	s.logger.Debug("checkpoint saved",
		zap.String("execution_id", state.ExecutionID),
		zap.String("status", string(state.Status)))
	return nil
}

// Load retrieves the snapshot for an execution.
func (s *Store) Load(ctx context.Context, executionID string) (*domain.RunState, error) {
	data, err := s.client.Get(ctx, getStateKey(executionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", domain.ErrExecutionNotFound, executionID)
		}
		return nil, fmt.Errorf("failed to get checkpoint: %w", err)
	}

	state := &domain.RunState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return state, nil
}

// List returns execution ids for one workflow (from its index set) or all
// workflows (key scan) when workflowID is empty.
func (s *Store) List(ctx context.Context, workflowID string) ([]string, error) {
	if workflowID != "" {
		ids, err := s.client.SMembers(ctx, getIndexKey(workflowID)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to list checkpoints: %w", err)
		}
		sort.Strings(ids)
		return ids, nil
	}

	var cursor uint64
	var ids []string
	pattern := keyPrefix + "*"
	for {
		batch, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan checkpoints: %w", err)
		}
		for _, key := range batch {
			if len(key) > len(keyPrefix) {
				ids = append(ids, key[len(keyPrefix):])
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes the snapshot for an execution.
func (s *Store) Delete(ctx context.Context, executionID string) error {
	state, err := s.Load(ctx, executionID)
	if err != nil {
		if errors.Is(err, domain.ErrExecutionNotFound) {
			return nil
		}
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, getStateKey(executionID))
	pipe.SRem(ctx, getIndexKey(state.WorkflowID), executionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	s.logger.Debug("checkpoint deleted",
		zap.String("execution_id", executionID))
	return nil
}

// getStateKey returns the Redis key for an execution's snapshot.
func getStateKey(executionID string) string {
	return keyPrefix + executionID
}

// getIndexKey returns the Redis key for a workflow's execution index.
func getIndexKey(workflowID string) string {
	return fmt.Sprintf("maestro:checkpoint-index:%s", workflowID)
}
