// Package repositories declares the storage-port interfaces the
// application layer depends on. Concrete Redis-backed implementations
// live in services/dmcs/infrastructure/redis; tests may substitute
// in-memory fakes satisfying the same interfaces.
package repositories

import (
	"context"
	"time"

	"github.com/lsst-dm/dmcs/services/dmcs/domain/models"
)

// StateStore persists device state and configuration key assignments.
type StateStore interface {
	GetDevice(ctx context.Context, name string) (*models.Device, error)
	SaveDevice(ctx context.Context, d *models.Device) error
	Ping(ctx context.Context) error
}

// JobStore persists exposure job orchestration records, sessions, and
// visits.
type JobStore interface {
	GetJob(ctx context.Context, jobNum string) (*models.Job, error)
	SaveJob(ctx context.Context, j *models.Job) error
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	SaveSession(ctx context.Context, s *models.Session) error
	Ping(ctx context.Context) error
}

// AckStore persists progressive (timed) acks and non-blocking pending
// acks, matching the original source's AckScoreboard semantics: timed
// acks are consumer-polled against a deadline, pending acks are swept
// periodically rather than polled by a waiting caller.
type AckStore interface {
	AddTimedAck(ctx context.Context, ack *models.TimedAck) error
	GetTimedAck(ctx context.Context, ackID string) (*models.TimedAck, error)
	MarkComponentReplied(ctx context.Context, ackID, component string) error
	DeleteTimedAck(ctx context.Context, ackID string) error

	AddPendingAck(ctx context.Context, ack *models.PendingAck) error
	ResolvePendingAck(ctx context.Context, ackID string) error
	// SweepExpiredPendingAcks removes and returns all pending acks whose
	// deadline has passed, pushing their ids onto the missing-ack backlog.
	SweepExpiredPendingAcks(ctx context.Context, now time.Time) ([]string, error)

	Ping(ctx context.Context) error
}

// SequenceStore issues monotonically increasing ids that survive process
// restarts, mirroring the original source's IncrScoreboard: each counter
// is seeded once and thereafter only ever incremented.
type SequenceStore interface {
	NextSessionID(ctx context.Context) (int64, error)
	NextJobNum(ctx context.Context) (int64, error)
	NextAckSeq(ctx context.Context) (int64, error)
	NextReceiptID(ctx context.Context) (int64, error)

	// SkipAhead bumps a counter by n without returning a value, used at
	// startup to reserve a safety margin across restarts.
	SkipAhead(ctx context.Context, counter string, n int64) error

	Ping(ctx context.Context) error
}

// BacklogStore holds the append-only lists of work that could not be
// completed: missing non-blocking acks and distributor backlog items.
type BacklogStore interface {
	PushMissingAck(ctx context.Context, ackID string) error
	ListMissingAcks(ctx context.Context) ([]string, error)

	Ping(ctx context.Context) error
}

// ForwarderStore persists forwarder registration and health records.
type ForwarderStore interface {
	GetForwarder(ctx context.Context, name string) (*models.ForwarderRecord, error)
	SaveForwarder(ctx context.Context, f *models.ForwarderRecord) error
	ListForwarders(ctx context.Context) ([]*models.ForwarderRecord, error)

	Ping(ctx context.Context) error
}
