package services

import (
	"context"
	"time"

	"github.com/lsst-dm/dmcs/pkg/logger"
	"github.com/lsst-dm/dmcs/services/dmcs/domain"
	"github.com/lsst-dm/dmcs/services/dmcs/domain/models"
	"github.com/lsst-dm/dmcs/services/dmcs/domain/repositories"
)

// pollInterval is the cooperative-concurrency poll granularity: no
// consumer thread ever blocks on an ack, it re-checks the store on this
// cadence instead.
const pollInterval = 500 * time.Millisecond

// AckCoordinator tracks progressive (timed) acks and sweeps non-blocking
// pending acks, grounded on the original source's AckScoreboard: timed
// acks are deadline-polled by the caller awaiting a choreography step;
// pending acks are swept in the background and pushed to the missing-ack
// backlog on expiry rather than ever blocking a waiting thread.
type AckCoordinator struct {
	acks repositories.AckStore
	log  logger.Logger
}

// NewAckCoordinator returns an AckCoordinator backed by acks. Expired
// pending acks are pushed onto the missing-ack backlog by the AckStore
// implementation itself (see infrastructure/redis.AckStore.SweepExpiredPendingAcks).
func NewAckCoordinator(acks repositories.AckStore, log logger.Logger) *AckCoordinator {
	return &AckCoordinator{acks: acks, log: log}
}

// RegisterTimedAck starts tracking a progressive ack awaiting replies
// from every named component.
func (c *AckCoordinator) RegisterTimedAck(ctx context.Context, ackID string, components []string, deadline time.Time) error {
	replies := make(map[string]bool, len(components))
	for _, comp := range components {
		replies[comp] = false
	}
	return c.acks.AddTimedAck(ctx, &models.TimedAck{AckID: ackID, Components: replies, Deadline: deadline})
}

// RecordReply marks component as having replied to ackID.
func (c *AckCoordinator) RecordReply(ctx context.Context, ackID, component string) error {
	return c.acks.MarkComponentReplied(ctx, ackID, component)
}

// WaitForAck cooperatively polls ackID every 500ms until every expected
// component has replied or the deadline passes, never blocking the
// caller's goroutine on a single redis call.
func (c *AckCoordinator) WaitForAck(ctx context.Context, ackID string, deadline time.Time) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		ack, err := c.acks.GetTimedAck(ctx, ackID)
		if err != nil {
			return err
		}
		if ack != nil && ack.AllReplied() {
			_ = c.acks.DeleteTimedAck(ctx, ackID)
			return nil
		}
		if time.Now().After(deadline) {
			_ = c.acks.DeleteTimedAck(ctx, ackID)
			return domain.ErrAckTimeout
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// AwaitQuorum polls ackID every 500ms until every expected component has
// replied or the deadline passes, then deletes the ack record and
// returns whichever components did reply. Unlike WaitForAck this never
// itself reports a timeout: partial quorum is a valid outcome callers
// doing fan-out/gather (health checks, archive directory queries) must
// handle themselves, recording a fault per missing component rather than
// failing the whole step.
func (c *AckCoordinator) AwaitQuorum(ctx context.Context, ackID string, deadline time.Time) (replied []string, allReplied bool, err error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		ack, getErr := c.acks.GetTimedAck(ctx, ackID)
		if getErr != nil {
			return nil, false, getErr
		}
		if ack != nil && ack.AllReplied() {
			_ = c.acks.DeleteTimedAck(ctx, ackID)
			return repliedComponents(ack), true, nil
		}
		if time.Now().After(deadline) {
			_ = c.acks.DeleteTimedAck(ctx, ackID)
			if ack == nil {
				return nil, false, nil
			}
			return repliedComponents(ack), false, nil
		}

		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-ticker.C:
		}
	}
}

func repliedComponents(ack *models.TimedAck) []string {
	out := make([]string, 0, len(ack.Components))
	for comp, ok := range ack.Components {
		if ok {
			out = append(out, comp)
		}
	}
	return out
}

// RegisterPendingAck starts tracking a non-blocking ack; its expiry is
// driven by RunSweeper and its resolution by ResolvePendingAck, never by
// a waiting caller.
func (c *AckCoordinator) RegisterPendingAck(ctx context.Context, ackID string, deadline time.Time) error {
	return c.acks.AddPendingAck(ctx, &models.PendingAck{AckID: ackID, Deadline: deadline})
}

// ResolvePendingAck marks a pending ack resolved once its reply arrives.
func (c *AckCoordinator) ResolvePendingAck(ctx context.Context, ackID string) error {
	return c.acks.ResolvePendingAck(ctx, ackID)
}

// RunSweeper polls every 500ms until ctx is cancelled, moving expired
// pending acks onto the missing-ack backlog.
func (c *AckCoordinator) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired, err := c.acks.SweepExpiredPendingAcks(ctx, time.Now())
			if err != nil {
				c.log.ErrorContext(ctx, "application: pending ack sweep failed", "error", err)
				continue
			}
			for _, ackID := range expired {
				c.log.WarnContext(ctx, "application: pending ack expired", "ack_id", ackID)
			}
		}
	}
}
