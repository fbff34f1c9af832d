package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/lsst-dm/dmcs/pkg/config"
	"github.com/lsst-dm/dmcs/pkg/logger"
	"github.com/lsst-dm/dmcs/services/dmcs/domain/models"
)

func testLogger() logger.Logger {
	return logger.New(&config.Config{LogLevel: "error"})
}

// fakeBus captures every publish call for assertions.
type fakeBus struct {
	mu        sync.Mutex
	published map[string][]*message.Message
}

func newFakeBus() *fakeBus {
	return &fakeBus{published: map[string][]*message.Message{}}
}

func (b *fakeBus) Publish(_ context.Context, queue string, msgs ...*message.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published[queue] = append(b.published[queue], msgs...)
	return nil
}

func (b *fakeBus) count(queue string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published[queue])
}

// fakeStateStore is an in-memory repositories.StateStore.
type fakeStateStore struct {
	devices map[string]*models.Device
}

func newFakeStateStore() *fakeStateStore {
	return &fakeStateStore{devices: map[string]*models.Device{}}
}

func (f *fakeStateStore) GetDevice(_ context.Context, name string) (*models.Device, error) {
	if d, ok := f.devices[name]; ok {
		return d, nil
	}
	return &models.Device{Name: name, State: models.StateOffline}, nil
}

func (f *fakeStateStore) SaveDevice(_ context.Context, d *models.Device) error {
	f.devices[d.Name] = d
	return nil
}

func (f *fakeStateStore) Ping(_ context.Context) error { return nil }

// fakeSequences is an in-memory sequenceIssuer.
type fakeSequences struct {
	mu  sync.Mutex
	seq int64
}

func (f *fakeSequences) NextAckSeq(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	return f.seq, nil
}

// fakeAckStore is an in-memory repositories.AckStore, mirroring the one
// in application/services but local to this package to avoid an
// internal test-only cross-package dependency.
type fakeAckStore struct {
	mu      sync.Mutex
	timed   map[string]*models.TimedAck
	pending map[string]*models.PendingAck
}

func newFakeAckStore() *fakeAckStore {
	return &fakeAckStore{timed: map[string]*models.TimedAck{}, pending: map[string]*models.PendingAck{}}
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

func (f *fakeAckStore) SweepExpiredPendingAcks(_ context.Context, _ time.Time) ([]string, error) {
	return nil, nil
}

func (f *fakeAckStore) Ping(_ context.Context) error { return nil }
