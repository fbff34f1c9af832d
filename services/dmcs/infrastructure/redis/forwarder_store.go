package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/lsst-dm/dmcs/services/dmcs/domain"
	"github.com/lsst-dm/dmcs/services/dmcs/domain/models"
)

const (
	forwarderKeyPrefix = "forwarder:"
	forwarderSetKey    = "forwarders"
)

// ForwarderStore is a Redis-backed implementation of
// repositories.ForwarderStore, grounded on the original source's
// ForwarderScoreboard forwarder registration hashes.
type ForwarderStore struct {
	client *redis.Client
}

// NewForwarderStore returns a ForwarderStore backed by client.
func NewForwarderStore(client *redis.Client) *ForwarderStore {
	return &ForwarderStore{client: client}
}

func forwarderKey(name string) string {
	return forwarderKeyPrefix + name
}

// GetForwarder loads a forwarder record, returning nil with no error if
// it does not exist.
func (s *ForwarderStore) GetForwarder(ctx context.Context, name string) (*models.ForwarderRecord, error) {
	vals, err := s.client.HGetAll(ctx, forwarderKey(name)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: get forwarder %s: %w", name, domain.ErrStoreUnavailable)
	}
	if len(vals) == 0 {
		return nil, nil
	}

	f := &models.ForwarderRecord{Name: name}
	f.ConsumeQueue = vals["consume_queue"]
	f.XferRoot = vals["xfer_root"]
	f.Healthy, _ = strconv.ParseBool(vals["healthy"])
	f.Rafts = splitCSV(vals["rafts"])
	return f, nil
}

// SaveForwarder persists a forwarder record and tracks its name in the
// registry set used by ListForwarders.
func (s *ForwarderStore) SaveForwarder(ctx context.Context, f *models.ForwarderRecord) error {
	fields := map[string]interface{}{
		"consume_queue": f.ConsumeQueue,
		"xfer_root":     f.XferRoot,
		"healthy":       strconv.FormatBool(f.Healthy),
		"rafts":         joinCSV(f.Rafts),
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, forwarderKey(f.Name), fields)
	pipe.SAdd(ctx, forwarderSetKey, f.Name)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: save forwarder %s: %w", f.Name, domain.ErrStoreUnavailable)
	}
	return nil
}

// ListForwarders returns every registered forwarder record.
func (s *ForwarderStore) ListForwarders(ctx context.Context) ([]*models.ForwarderRecord, error) {
	names, err := s.client.SMembers(ctx, forwarderSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list forwarders: %w", domain.ErrStoreUnavailable)
	}

	out := make([]*models.ForwarderRecord, 0, len(names))
	for _, name := range names {
		f, err := s.GetForwarder(ctx, name)
		if err != nil {
			return nil, err
		}
		if f != nil {
			out = append(out, f)
		}
	}
	return out, nil
}

// Ping checks Redis connectivity.
func (s *ForwarderStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", domain.ErrStoreUnavailable)
	}
	return nil
}
