package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lsst-dm/dmcs/services/dmcs/domain"
	"github.com/lsst-dm/dmcs/services/dmcs/domain/models"
)

const (
	timedAckKeyPrefix = "timed_ack:"
	pendingAcksKey    = "PENDING_ACKS"
	missingAcksKey    = "MISSING_NONBLOCK_ACKS"
)

// AckStore is a Redis-backed implementation of repositories.AckStore,
// grounded on the original source's AckScoreboard: a hash per timed ack
// (HSET component -> replied), and a single hash holding all pending
// non-blocking acks with their deadlines, swept on a poll loop instead of
// blocking a waiting caller.
type AckStore struct {
	client *redis.Client
}

// NewAckStore returns an AckStore backed by client.
func NewAckStore(client *redis.Client) *AckStore {
	return &AckStore{client: client}
}

func timedAckKey(ackID string) string {
	return timedAckKeyPrefix + ackID
}

// AddTimedAck registers a new progressive ack awaiting replies from every
// component in ack.Components.
func (s *AckStore) AddTimedAck(ctx context.Context, ack *models.TimedAck) error {
	fields := map[string]interface{}{"deadline": ack.Deadline.UTC().Format(time.RFC3339Nano)}
	for component, replied := range ack.Components {
		fields[component] = strconv.FormatBool(replied)
	}
	if err := s.client.HSet(ctx, timedAckKey(ack.AckID), fields).Err(); err != nil {
		return fmt.Errorf("redis: add timed ack %s: %w", ack.AckID, domain.ErrStoreUnavailable)
	}
	return nil
}

// GetTimedAck loads a timed ack's current component-reply state.
func (s *AckStore) GetTimedAck(ctx context.Context, ackID string) (*models.TimedAck, error) {
	vals, err := s.client.HGetAll(ctx, timedAckKey(ackID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: get timed ack %s: %w", ackID, domain.ErrStoreUnavailable)
	}
	if len(vals) == 0 {
		return nil, nil
	}

	ack := &models.TimedAck{AckID: ackID, Components: map[string]bool{}}
	for k, v := range vals {
		if k == "deadline" {
			ack.Deadline, _ = time.Parse(time.RFC3339Nano, v)
			continue
		}
		ack.Components[k] = v == "true"
	}
	return ack, nil
}

// MarkComponentReplied records that component has answered ackID.
func (s *AckStore) MarkComponentReplied(ctx context.Context, ackID, component string) error {
	if err := s.client.HSet(ctx, timedAckKey(ackID), component, "true").Err(); err != nil {
		return fmt.Errorf("redis: mark replied %s/%s: %w", ackID, component, domain.ErrStoreUnavailable)
	}
	return nil
}

// DeleteTimedAck removes a resolved or abandoned timed ack record.
func (s *AckStore) DeleteTimedAck(ctx context.Context, ackID string) error {
	if err := s.client.Del(ctx, timedAckKey(ackID)).Err(); err != nil {
		return fmt.Errorf("redis: delete timed ack %s: %w", ackID, domain.ErrStoreUnavailable)
	}
	return nil
}

// AddPendingAck registers a non-blocking ack to be swept for resolution
// or expiry rather than polled directly.
func (s *AckStore) AddPendingAck(ctx context.Context, ack *models.PendingAck) error {
	if err := s.client.HSet(ctx, pendingAcksKey, ack.AckID, ack.Deadline.UTC().Format(time.RFC3339Nano)).Err(); err != nil {
		return fmt.Errorf("redis: add pending ack %s: %w", ack.AckID, domain.ErrStoreUnavailable)
	}
	return nil
}

// ResolvePendingAck removes ackID from the pending set once its reply
// arrives.
func (s *AckStore) ResolvePendingAck(ctx context.Context, ackID string) error {
	if err := s.client.HDel(ctx, pendingAcksKey, ackID).Err(); err != nil {
		return fmt.Errorf("redis: resolve pending ack %s: %w", ackID, domain.ErrStoreUnavailable)
	}
	return nil
}

// SweepExpiredPendingAcks removes every pending ack whose deadline has
// passed and appends it to the missing-ack backlog list, returning the
// expired ack ids.
func (s *AckStore) SweepExpiredPendingAcks(ctx context.Context, now time.Time) ([]string, error) {
	all, err := s.client.HGetAll(ctx, pendingAcksKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: sweep pending acks: %w", domain.ErrStoreUnavailable)
	}

	var expired []string
	for ackID, deadlineStr := range all {
		deadline, perr := time.Parse(time.RFC3339Nano, deadlineStr)
		if perr != nil || now.After(deadline) {
			expired = append(expired, ackID)
		}
	}
	if len(expired) == 0 {
		return nil, nil
	}

	pipe := s.client.TxPipeline()
	pipe.HDel(ctx, pendingAcksKey, expired...)
	for _, ackID := range expired {
		pipe.RPush(ctx, missingAcksKey, ackID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis: sweep pending acks: %w", domain.ErrStoreUnavailable)
	}

	return expired, nil
}

// Ping checks Redis connectivity.
func (s *AckStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", domain.ErrStoreUnavailable)
	}
	return nil
}
