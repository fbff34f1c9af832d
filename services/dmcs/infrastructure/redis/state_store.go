// Package redis adapts the domain repository ports onto Redis, mirroring
// the original source's per-concern Scoreboard classes (StateScoreboard,
// JobScoreboard, AckScoreboard, IncrScoreboard, BacklogScoreboard): one
// Redis hash, list or string value per record, keyed by name.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/lsst-dm/dmcs/services/dmcs/domain"
	"github.com/lsst-dm/dmcs/services/dmcs/domain/models"
)

const deviceKeyPrefix = "device:"

// StateStore is a Redis-backed implementation of repositories.StateStore.
type StateStore struct {
	client *redis.Client
}

// NewStateStore returns a StateStore backed by client.
func NewStateStore(client *redis.Client) *StateStore {
	return &StateStore{client: client}
}

func deviceKey(name string) string {
	return deviceKeyPrefix + name
}

// GetDevice loads a device record by HGETALL. A missing key yields a
// record for name in OFFLINE with no error, since a brand-new device is a
// valid state in this system rather than an error case.
func (s *StateStore) GetDevice(ctx context.Context, name string) (*models.Device, error) {
	vals, err := s.client.HGetAll(ctx, deviceKey(name)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: get device %s: %w", name, domain.ErrStoreUnavailable)
	}

	d := &models.Device{Name: name, State: models.StateOffline}
	if len(vals) == 0 {
		return d, nil
	}

	if v, ok := vals["consume_queue"]; ok {
		d.ConsumeQueue = v
	}
	if v, ok := vals["state"]; ok {
		d.State = models.State(v)
	}
	if v, ok := vals["current_cfg_key"]; ok {
		d.CurrentCfgKey = v
	}
	if v, ok := vals["allowed_cfg_keys"]; ok {
		d.AllowedCfgKeys = splitCSV(v)
	}
	return d, nil
}

// SaveDevice writes a device record via HSET.
func (s *StateStore) SaveDevice(ctx context.Context, d *models.Device) error {
	fields := map[string]interface{}{
		"consume_queue":    d.ConsumeQueue,
		"state":            string(d.State),
		"current_cfg_key":  d.CurrentCfgKey,
		"allowed_cfg_keys": joinCSV(d.AllowedCfgKeys),
	}
	if err := s.client.HSet(ctx, deviceKey(d.Name), fields).Err(); err != nil {
		return fmt.Errorf("redis: save device %s: %w", d.Name, domain.ErrStoreUnavailable)
	}
	return nil
}

// Ping checks Redis connectivity.
func (s *StateStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", domain.ErrStoreUnavailable)
	}
	return nil
}
