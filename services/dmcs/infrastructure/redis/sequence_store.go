package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/lsst-dm/dmcs/services/dmcs/domain"
)

// Initial seed values, preserved from the original source's IncrScoreboard:
// each counter is set only if absent, so values survive process restarts
// rather than resetting to these seeds every time.
const (
	SessionSequenceSeed = 100
	JobSequenceSeed     = 1000
	AckSequenceSeed     = 1
	ReceiptSequenceSeed = 100
)

const (
	sessionSeqKey = "SESSION_SEQUENCE_NUM"
	jobSeqKey     = "JOB_SEQUENCE_NUM"
	ackSeqKey     = "ACK_SEQUENCE_NUM"
	receiptSeqKey = "RECEIPT_SEQUENCE_NUM"
)

// SequenceStore is a Redis-backed implementation of
// repositories.SequenceStore, grounded on the original source's
// IncrScoreboard: each counter is seeded with SetNX and thereafter only
// ever incremented, so sequence numbers never repeat across restarts.
type SequenceStore struct {
	client *redis.Client
}

// NewSequenceStore returns a SequenceStore backed by client, seeding any
// counter that does not yet exist.
func NewSequenceStore(ctx context.Context, client *redis.Client) (*SequenceStore, error) {
	s := &SequenceStore{client: client}
	seeds := map[string]int64{
		sessionSeqKey: SessionSequenceSeed,
		jobSeqKey:     JobSequenceSeed,
		ackSeqKey:     AckSequenceSeed,
		receiptSeqKey: ReceiptSequenceSeed,
	}
	for key, seed := range seeds {
		if err := client.SetNX(ctx, key, seed, 0).Err(); err != nil {
			return nil, fmt.Errorf("redis: seed %s: %w", key, domain.ErrStoreUnavailable)
		}
	}
	return s, nil
}

func (s *SequenceStore) incr(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: incr %s: %w", key, domain.ErrStoreUnavailable)
	}
	return n, nil
}

// NextSessionID returns the next monotonic session id.
func (s *SequenceStore) NextSessionID(ctx context.Context) (int64, error) {
	return s.incr(ctx, sessionSeqKey)
}

// NextJobNum returns the next monotonic job number.
func (s *SequenceStore) NextJobNum(ctx context.Context) (int64, error) {
	return s.incr(ctx, jobSeqKey)
}

// NextAckSeq returns the next monotonic ack sequence number, embedded in
// an ack id via services.FormatAckID.
func (s *SequenceStore) NextAckSeq(ctx context.Context) (int64, error) {
	return s.incr(ctx, ackSeqKey)
}

// NextReceiptID returns the next monotonic receipt id.
func (s *SequenceStore) NextReceiptID(ctx context.Context) (int64, error) {
	return s.incr(ctx, receiptSeqKey)
}

// SkipAhead bumps counter by n without returning a value, used at startup
// to reserve a safety margin against in-flight ids from a prior process.
func (s *SequenceStore) SkipAhead(ctx context.Context, counter string, n int64) error {
	if err := s.client.IncrBy(ctx, counter, n).Err(); err != nil {
		return fmt.Errorf("redis: skip ahead %s: %w", counter, domain.ErrStoreUnavailable)
	}
	return nil
}

// Ping checks Redis connectivity.
func (s *SequenceStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", domain.ErrStoreUnavailable)
	}
	return nil
}
