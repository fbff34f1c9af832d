package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"github.com/lsst-dm/dmcs/services/dmcs/domain"
	"github.com/lsst-dm/dmcs/services/dmcs/domain/models"
)

const (
	jobKeyPrefix     = "job:"
	sessionKeyPrefix = "session:"
)

// JobStore is a Redis-backed implementation of repositories.JobStore.
// Jobs and sessions are nested structures (RaftsByFwd, VisitIDs), so
// unlike StateStore's flat hash they are YAML-marshaled and stored as a
// single string value per key, mirroring the original source's practice
// of persisting whole YAML documents for the richer scoreboard records.
type JobStore struct {
	client *redis.Client
}

// NewJobStore returns a JobStore backed by client.
func NewJobStore(client *redis.Client) *JobStore {
	return &JobStore{client: client}
}

// GetJob loads a job record, returning nil with no error if it does not
// exist.
func (s *JobStore) GetJob(ctx context.Context, jobNum string) (*models.Job, error) {
	raw, err := s.client.Get(ctx, jobKeyPrefix+jobNum).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get job %s: %w", jobNum, domain.ErrStoreUnavailable)
	}

	var j models.Job
	if err := yaml.Unmarshal([]byte(raw), &j); err != nil {
		return nil, fmt.Errorf("redis: decode job %s: %w", jobNum, domain.ErrStoreUnavailable)
	}
	return &j, nil
}

// SaveJob persists a job record.
func (s *JobStore) SaveJob(ctx context.Context, j *models.Job) error {
	raw, err := yaml.Marshal(j)
	if err != nil {
		return fmt.Errorf("redis: encode job %s: %w", j.JobNum, domain.ErrStoreUnavailable)
	}
	if err := s.client.Set(ctx, jobKeyPrefix+j.JobNum, raw, 0).Err(); err != nil {
		return fmt.Errorf("redis: save job %s: %w", j.JobNum, domain.ErrStoreUnavailable)
	}
	return nil
}

// GetSession loads a session record, returning nil with no error if it
// does not exist.
func (s *JobStore) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	raw, err := s.client.Get(ctx, sessionKeyPrefix+sessionID).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get session %s: %w", sessionID, domain.ErrStoreUnavailable)
	}

	var sess models.Session
	if err := yaml.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, fmt.Errorf("redis: decode session %s: %w", sessionID, domain.ErrStoreUnavailable)
	}
	return &sess, nil
}

// SaveSession persists a session record.
func (s *JobStore) SaveSession(ctx context.Context, sess *models.Session) error {
	raw, err := yaml.Marshal(sess)
	if err != nil {
		return fmt.Errorf("redis: encode session %s: %w", sess.SessionID, domain.ErrStoreUnavailable)
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+sess.SessionID, raw, 0).Err(); err != nil {
		return fmt.Errorf("redis: save session %s: %w", sess.SessionID, domain.ErrStoreUnavailable)
	}
	return nil
}

// Ping checks Redis connectivity.
func (s *JobStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", domain.ErrStoreUnavailable)
	}
	return nil
}
