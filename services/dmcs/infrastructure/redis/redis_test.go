package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/lsst-dm/dmcs/services/dmcs/domain/models"
)

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestStateStore_SaveAndGetDevice(t *testing.T) {
	ctx := context.Background()
	store := NewStateStore(newTestClient(t))

	d := &models.Device{
		Name:           "ARCHIVER",
		ConsumeQueue:   "ar_foreman_consume",
		State:          models.StateStandby,
		CurrentCfgKey:  "normal",
		AllowedCfgKeys: []string{"normal", "engineering"},
	}
	if err := store.SaveDevice(ctx, d); err != nil {
		t.Fatalf("SaveDevice: %v", err)
	}

	got, err := store.GetDevice(ctx, "ARCHIVER")
	if err != nil {
		t.Fatalf("GetDevice: %v", err)
	}
	if got.State != models.StateStandby || got.CurrentCfgKey != "normal" {
		t.Errorf("unexpected device: %+v", got)
	}
	if len(got.AllowedCfgKeys) != 2 || got.AllowedCfgKeys[0] != "normal" {
		t.Errorf("unexpected cfg keys: %v", got.AllowedCfgKeys)
	}
}

func TestStateStore_GetDevice_NotFoundDefaultsOffline(t *testing.T) {
	ctx := context.Background()
	store := NewStateStore(newTestClient(t))

	got, err := store.GetDevice(ctx, "UNKNOWN")
	if err != nil {
		t.Fatalf("GetDevice: %v", err)
	}
	if got.State != models.StateOffline {
		t.Errorf("expected default OFFLINE state, got %v", got.State)
	}
}

func TestAckStore_TimedAckLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewAckStore(newTestClient(t))

	ack := &models.TimedAck{
		AckID:      "HEALTH_CHECK_1",
		Components: map[string]bool{"fwd0": false, "fwd1": false},
		Deadline:   time.Now().Add(time.Minute),
	}
	if err := store.AddTimedAck(ctx, ack); err != nil {
		t.Fatalf("AddTimedAck: %v", err)
	}

	if err := store.MarkComponentReplied(ctx, ack.AckID, "fwd0"); err != nil {
		t.Fatalf("MarkComponentReplied: %v", err)
	}

	got, err := store.GetTimedAck(ctx, ack.AckID)
	if err != nil {
		t.Fatalf("GetTimedAck: %v", err)
	}
	if !got.Components["fwd0"] || got.Components["fwd1"] {
		t.Errorf("unexpected component state: %+v", got.Components)
	}
	if got.AllReplied() {
		t.Error("expected AllReplied to be false")
	}

	if err := store.DeleteTimedAck(ctx, ack.AckID); err != nil {
		t.Fatalf("DeleteTimedAck: %v", err)
	}
	got, err = store.GetTimedAck(ctx, ack.AckID)
	if err != nil {
		t.Fatalf("GetTimedAck after delete: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil after delete, got %+v", got)
	}
}

func TestAckStore_PendingAckSweep(t *testing.T) {
	ctx := context.Background()
	store := NewAckStore(newTestClient(t))

	past := &models.PendingAck{AckID: "expired-1", Deadline: time.Now().Add(-time.Minute)}
	future := &models.PendingAck{AckID: "still-pending", Deadline: time.Now().Add(time.Hour)}

	if err := store.AddPendingAck(ctx, past); err != nil {
		t.Fatalf("AddPendingAck: %v", err)
	}
	if err := store.AddPendingAck(ctx, future); err != nil {
		t.Fatalf("AddPendingAck: %v", err)
	}

	expired, err := store.SweepExpiredPendingAcks(ctx, time.Now())
	if err != nil {
		t.Fatalf("SweepExpiredPendingAcks: %v", err)
	}
	if len(expired) != 1 || expired[0] != "expired-1" {
		t.Errorf("expected only expired-1 to be swept, got %v", expired)
	}

	backlog := NewBacklogStore(store.client)
	missing, err := backlog.ListMissingAcks(ctx)
	if err != nil {
		t.Fatalf("ListMissingAcks: %v", err)
	}
	if len(missing) != 1 || missing[0] != "expired-1" {
		t.Errorf("expected expired-1 in missing-ack backlog, got %v", missing)
	}
}

func TestAckStore_ResolvePendingAck(t *testing.T) {
	ctx := context.Background()
	store := NewAckStore(newTestClient(t))

	ack := &models.PendingAck{AckID: "resolve-me", Deadline: time.Now().Add(time.Hour)}
	if err := store.AddPendingAck(ctx, ack); err != nil {
		t.Fatalf("AddPendingAck: %v", err)
	}
	if err := store.ResolvePendingAck(ctx, ack.AckID); err != nil {
		t.Fatalf("ResolvePendingAck: %v", err)
	}

	expired, err := store.SweepExpiredPendingAcks(ctx, time.Now().Add(2*time.Hour))
	if err != nil {
		t.Fatalf("SweepExpiredPendingAcks: %v", err)
	}
	if len(expired) != 0 {
		t.Errorf("expected resolved ack to not be swept, got %v", expired)
	}
}

func TestSequenceStore_Monotonic(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	store, err := NewSequenceStore(ctx, client)
	if err != nil {
		t.Fatalf("NewSequenceStore: %v", err)
	}

	first, err := store.NextJobNum(ctx)
	if err != nil {
		t.Fatalf("NextJobNum: %v", err)
	}
	if first != JobSequenceSeed+1 {
		t.Errorf("expected first job num to be seed+1 = %d, got %d", JobSequenceSeed+1, first)
	}

	second, err := store.NextJobNum(ctx)
	if err != nil {
		t.Fatalf("NextJobNum: %v", err)
	}
	if second != first+1 {
		t.Errorf("expected monotonic increment, got %d then %d", first, second)
	}
}

func TestSequenceStore_SeedPreservedAcrossReconnect(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	store1, err := NewSequenceStore(ctx, client)
	if err != nil {
		t.Fatalf("NewSequenceStore: %v", err)
	}
	if _, err := store1.NextSessionID(ctx); err != nil {
		t.Fatalf("NextSessionID: %v", err)
	}

	store2, err := NewSequenceStore(ctx, client)
	if err != nil {
		t.Fatalf("NewSequenceStore (reconnect): %v", err)
	}
	got, err := store2.NextSessionID(ctx)
	if err != nil {
		t.Fatalf("NextSessionID: %v", err)
	}
	if got != SessionSequenceSeed+2 {
		t.Errorf("expected seed to persist across reconnect, got %d want %d", got, SessionSequenceSeed+2)
	}
}

func TestJobStore_SaveAndGetJob(t *testing.T) {
	ctx := context.Background()
	store := NewJobStore(newTestClient(t))

	j := &models.Job{
		JobNum:     "1001",
		DeviceName: "ARCHIVER",
		State:      models.JobStateAccepted,
		Forwarders: []string{"fwd0", "fwd1"},
		RaftsByFwd: models.WorkAssignment{
			"fwd0": {Rafts: []string{"R00"}, CcdLists: [][]string{{"S00"}}},
			"fwd1": {Rafts: []string{"R01"}, CcdLists: [][]string{{"S01"}}},
		},
	}
	if err := store.SaveJob(ctx, j); err != nil {
		t.Fatalf("SaveJob: %v", err)
	}

	got, err := store.GetJob(ctx, "1001")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.State != models.JobStateAccepted || len(got.Forwarders) != 2 {
		t.Errorf("unexpected job: %+v", got)
	}
}

func TestJobStore_GetJob_NotFound(t *testing.T) {
	ctx := context.Background()
	store := NewJobStore(newTestClient(t))

	got, err := store.GetJob(ctx, "nope")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing job, got %+v", got)
	}
}

func TestForwarderStore_SaveAndList(t *testing.T) {
	ctx := context.Background()
	store := NewForwarderStore(newTestClient(t))

	f := &models.ForwarderRecord{
		Name:         "fwd0",
		ConsumeQueue: "fwd0_consume",
		XferRoot:     "/archive/staging",
		Healthy:      true,
		Rafts:        []string{"R00", "R01"},
	}
	if err := store.SaveForwarder(ctx, f); err != nil {
		t.Fatalf("SaveForwarder: %v", err)
	}

	got, err := store.GetForwarder(ctx, "fwd0")
	if err != nil {
		t.Fatalf("GetForwarder: %v", err)
	}
	if !got.Healthy || len(got.Rafts) != 2 {
		t.Errorf("unexpected forwarder: %+v", got)
	}

	all, err := store.ListForwarders(ctx)
	if err != nil {
		t.Fatalf("ListForwarders: %v", err)
	}
	if len(all) != 1 || all[0].Name != "fwd0" {
		t.Errorf("unexpected forwarder list: %+v", all)
	}
}

func TestBacklogStore_PushAndList(t *testing.T) {
	ctx := context.Background()
	store := NewBacklogStore(newTestClient(t))

	if err := store.PushMissingAck(ctx, "ack-1"); err != nil {
		t.Fatalf("PushMissingAck: %v", err)
	}
	if err := store.PushMissingAck(ctx, "ack-2"); err != nil {
		t.Fatalf("PushMissingAck: %v", err)
	}

	got, err := store.ListMissingAcks(ctx)
	if err != nil {
		t.Fatalf("ListMissingAcks: %v", err)
	}
	if len(got) != 2 || got[0] != "ack-1" || got[1] != "ack-2" {
		t.Errorf("unexpected backlog: %v", got)
	}
}
