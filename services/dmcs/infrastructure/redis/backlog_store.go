package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/lsst-dm/dmcs/services/dmcs/domain"
)

// BacklogStore is a Redis-backed implementation of
// repositories.BacklogStore, grounded on the original source's
// BacklogScoreboard and AckScoreboard.resolve_pending_nonblock_acks
// (MISSING_NONBLOCK_ACKS list).
type BacklogStore struct {
	client *redis.Client
}

// NewBacklogStore returns a BacklogStore backed by client.
func NewBacklogStore(client *redis.Client) *BacklogStore {
	return &BacklogStore{client: client}
}

// PushMissingAck appends ackID to the missing-ack backlog.
func (s *BacklogStore) PushMissingAck(ctx context.Context, ackID string) error {
	if err := s.client.RPush(ctx, missingAcksKey, ackID).Err(); err != nil {
		return fmt.Errorf("redis: push missing ack %s: %w", ackID, domain.ErrStoreUnavailable)
	}
	return nil
}

// ListMissingAcks returns the full missing-ack backlog.
func (s *BacklogStore) ListMissingAcks(ctx context.Context) ([]string, error) {
	vals, err := s.client.LRange(ctx, missingAcksKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list missing acks: %w", domain.ErrStoreUnavailable)
	}
	return vals, nil
}

// Ping checks Redis connectivity.
func (s *BacklogStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", domain.ErrStoreUnavailable)
	}
	return nil
}
