package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lsst-dm/dmcs/services/dmcs/domain"
	"github.com/lsst-dm/dmcs/services/dmcs/domain/models"
)

type fakeAckStore struct {
	mu      sync.Mutex
	timed   map[string]*models.TimedAck
	pending map[string]*models.PendingAck
	missing []string
}

func newFakeAckStore() *fakeAckStore {
	return &fakeAckStore{
		timed:   map[string]*models.TimedAck{},
		pending: map[string]*models.PendingAck{},
	}
}

func (f *fakeAckStore) AddTimedAck(_ context.Context, ack *models.TimedAck) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timed[ack.AckID] = ack
	return nil
}

func (f *fakeAckStore) GetTimedAck(_ context.Context, ackID string) (*models.TimedAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.timed[ackID], nil
}

func (f *fakeAckStore) MarkComponentReplied(_ context.Context, ackID, component string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ack, ok := f.timed[ackID]; ok {
		ack.Components[component] = true
	}
	return nil
}

func (f *fakeAckStore) DeleteTimedAck(_ context.Context, ackID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.timed, ackID)
	return nil
}

func (f *fakeAckStore) AddPendingAck(_ context.Context, ack *models.PendingAck) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending[ack.AckID] = ack
	return nil
}

func (f *fakeAckStore) ResolvePendingAck(_ context.Context, ackID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.pending, ackID)
	return nil
}

func (f *fakeAckStore) SweepExpiredPendingAcks(_ context.Context, now time.Time) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var expired []string
	for id, ack := range f.pending {
		if now.After(ack.Deadline) {
			expired = append(expired, id)
			delete(f.pending, id)
		}
	}
	f.missing = append(f.missing, expired...)
	return expired, nil
}

func (f *fakeAckStore) Ping(_ context.Context) error { return nil }

func TestAckCoordinator_WaitForAck_ResolvesWhenAllReplied(t *testing.T) {
	store := newFakeAckStore()
	coord := NewAckCoordinator(store, testLogger())
	ctx := context.Background()

	if err := coord.RegisterTimedAck(ctx, "ack-1", []string{"fwd0", "fwd1"}, time.Now().Add(5*time.Second)); err != nil {
		t.Fatalf("RegisterTimedAck: %v", err)
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = coord.RecordReply(ctx, "ack-1", "fwd0")
		_ = coord.RecordReply(ctx, "ack-1", "fwd1")
	}()

	waitCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := coord.WaitForAck(waitCtx, "ack-1", time.Now().Add(3*time.Second)); err != nil {
		t.Fatalf("WaitForAck: %v", err)
	}
}

func TestAckCoordinator_WaitForAck_TimesOut(t *testing.T) {
	store := newFakeAckStore()
	coord := NewAckCoordinator(store, testLogger())
	ctx := context.Background()

	if err := coord.RegisterTimedAck(ctx, "ack-2", []string{"fwd0"}, time.Now().Add(10*time.Millisecond)); err != nil {
		t.Fatalf("RegisterTimedAck: %v", err)
	}

	err := coord.WaitForAck(ctx, "ack-2", time.Now().Add(10*time.Millisecond))
	if !errors.Is(err, domain.ErrAckTimeout) {
		t.Errorf("expected ErrAckTimeout, got %v", err)
	}
}

func TestAckCoordinator_AwaitQuorum_PartialReply(t *testing.T) {
	store := newFakeAckStore()
	coord := NewAckCoordinator(store, testLogger())
	ctx := context.Background()

	if err := coord.RegisterTimedAck(ctx, "ack-3", []string{"fwd0", "fwd1"}, time.Now().Add(20*time.Millisecond)); err != nil {
		t.Fatalf("RegisterTimedAck: %v", err)
	}
	if err := coord.RecordReply(ctx, "ack-3", "fwd0"); err != nil {
		t.Fatalf("RecordReply: %v", err)
	}

	replied, all, err := coord.AwaitQuorum(ctx, "ack-3", time.Now().Add(20*time.Millisecond))
	if err != nil {
		t.Fatalf("AwaitQuorum: %v", err)
	}
	if all {
		t.Errorf("expected partial quorum, got allReplied=true")
	}
	if len(replied) != 1 || replied[0] != "fwd0" {
		t.Errorf("expected only fwd0 to have replied, got %v", replied)
	}
}

func TestAckCoordinator_AwaitQuorum_FullReply(t *testing.T) {
	store := newFakeAckStore()
	coord := NewAckCoordinator(store, testLogger())
	ctx := context.Background()

	if err := coord.RegisterTimedAck(ctx, "ack-4", []string{"fwd0"}, time.Now().Add(3*time.Second)); err != nil {
		t.Fatalf("RegisterTimedAck: %v", err)
	}
	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = coord.RecordReply(ctx, "ack-4", "fwd0")
	}()

	replied, all, err := coord.AwaitQuorum(ctx, "ack-4", time.Now().Add(3*time.Second))
	if err != nil {
		t.Fatalf("AwaitQuorum: %v", err)
	}
	if !all || len(replied) != 1 {
		t.Errorf("expected full quorum with fwd0 replied, got %v all=%v", replied, all)
	}
}

func TestAckCoordinator_RunSweeper_MovesExpiredToBacklog(t *testing.T) {
	store := newFakeAckStore()
	coord := NewAckCoordinator(store, testLogger())
	ctx, cancel := context.WithCancel(context.Background())

	if err := coord.RegisterPendingAck(ctx, "pending-1", time.Now().Add(-time.Second)); err != nil {
		t.Fatalf("RegisterPendingAck: %v", err)
	}

	done := make(chan struct{})
	go func() {
		coord.RunSweeper(ctx)
		close(done)
	}()

	time.Sleep(600 * time.Millisecond)
	cancel()
	<-done

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.missing) != 1 || store.missing[0] != "pending-1" {
		t.Errorf("expected pending-1 swept to backlog, got %v", store.missing)
	}
}
