package services

import (
	"context"
	"testing"

	"github.com/lsst-dm/dmcs/pkg/config"
	"github.com/lsst-dm/dmcs/pkg/logger"
	"github.com/lsst-dm/dmcs/services/dmcs/domain"
	"github.com/lsst-dm/dmcs/services/dmcs/domain/events"
	"github.com/lsst-dm/dmcs/services/dmcs/domain/models"
)

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

func testLogger() logger.Logger {
	return logger.New(&config.Config{LogLevel: "error"})
}

func TestDeviceStateService_ApplyCommand_Success(t *testing.T) {
	store := newFakeStateStore()
	store.devices["ARCHIVER"] = &models.Device{Name: "ARCHIVER", State: models.StateOffline}
	svc := NewDeviceStateService(store, testLogger())

	result, err := svc.ApplyCommand(context.Background(), "ARCHIVER", events.MsgTypeEnterControl, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.AckCode != domain.AckCodeOK {
		t.Errorf("expected AckCodeOK, got %d", result.AckCode)
	}
	if store.devices["ARCHIVER"].State != models.StateStandby {
		t.Errorf("expected device to move to STANDBY, got %v", store.devices["ARCHIVER"].State)
	}
}

func TestDeviceStateService_ApplyCommand_InvalidTransition(t *testing.T) {
	store := newFakeStateStore()
	store.devices["ARCHIVER"] = &models.Device{Name: "ARCHIVER", State: models.StateOffline}
	svc := NewDeviceStateService(store, testLogger())

	result, err := svc.ApplyCommand(context.Background(), "ARCHIVER", events.MsgTypeEnable, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.AckCode != domain.AckCodeInvalidTransition {
		t.Errorf("expected AckCodeInvalidTransition, got %d", result.AckCode)
	}
	if store.devices["ARCHIVER"].State != models.StateOffline {
		t.Errorf("expected device to remain OFFLINE, got %v", store.devices["ARCHIVER"].State)
	}
}

func TestDeviceStateService_ApplyCommand_SameState(t *testing.T) {
	store := newFakeStateStore()
	store.devices["ARCHIVER"] = &models.Device{Name: "ARCHIVER", State: models.StateStandby}
	svc := NewDeviceStateService(store, testLogger())

	result, err := svc.ApplyCommand(context.Background(), "ARCHIVER", events.MsgTypeStandby, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.AckCode != domain.AckCodeSameState {
		t.Errorf("expected AckCodeSameState, got %d", result.AckCode)
	}
}

func TestDeviceStateService_ApplyCommand_UnknownMsgType(t *testing.T) {
	store := newFakeStateStore()
	svc := NewDeviceStateService(store, testLogger())

	_, err := svc.ApplyCommand(context.Background(), "ARCHIVER", "BOGUS", "")
	if err == nil {
		t.Fatal("expected error for unknown MSG_TYPE")
	}
}

func TestDeviceStateService_ApplyCommand_StartEmitsSettingsEvents(t *testing.T) {
	store := newFakeStateStore()
	store.devices["ARCHIVER"] = &models.Device{
		Name: "ARCHIVER", State: models.StateStandby, AllowedCfgKeys: []string{"normal"},
	}
	svc := NewDeviceStateService(store, testLogger())

	result, err := svc.ApplyCommand(context.Background(), "ARCHIVER", events.MsgTypeStart, "normal")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Events) != 3 {
		t.Fatalf("expected 3 events for START, got %v", result.Events)
	}
	if result.Events[0] != events.MsgTypeSummaryStateEvent {
		t.Errorf("expected SUMMARY_STATE_EVENT first, got %q", result.Events[0])
	}
	if store.devices["ARCHIVER"].State != models.StateDisable {
		t.Errorf("expected device to move to DISABLE, got %v", store.devices["ARCHIVER"].State)
	}
}

func TestDeviceStateService_ApplyCommand_StartRejectsBadCfgKey(t *testing.T) {
	store := newFakeStateStore()
	store.devices["ARCHIVER"] = &models.Device{
		Name: "ARCHIVER", State: models.StateStandby, AllowedCfgKeys: []string{"normal"},
	}
	svc := NewDeviceStateService(store, testLogger())

	result, err := svc.ApplyCommand(context.Background(), "ARCHIVER", events.MsgTypeStart, "bogus")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.AckCode != domain.AckCodeInvalidCfgKey {
		t.Errorf("expected AckCodeInvalidCfgKey, got %d", result.AckCode)
	}
	if result.AckStatement != "Bad CFG Key - remaining in STANDBY" {
		t.Errorf("unexpected ack statement: %q", result.AckStatement)
	}
	if store.devices["ARCHIVER"].State != models.StateStandby {
		t.Errorf("expected device to remain STANDBY, got %v", store.devices["ARCHIVER"].State)
	}
}

func TestDeviceStateService_RecordFault(t *testing.T) {
	store := newFakeStateStore()
	store.devices["ARCHIVER"] = &models.Device{Name: "ARCHIVER", State: models.StateEnable}
	svc := NewDeviceStateService(store, testLogger())

	fault := models.FaultRecord{Component: "ARCHIVER", ErrorCode: domain.ErrCodeNoHealthCheckResponse, Description: "no reply"}
	result, err := svc.RecordFault(context.Background(), "ARCHIVER", fault)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.devices["ARCHIVER"].State != models.StateFault {
		t.Errorf("expected device to move to FAULT, got %v", store.devices["ARCHIVER"].State)
	}
	if len(store.devices["ARCHIVER"].FaultHistory) != 1 {
		t.Errorf("expected 1 fault history entry, got %d", len(store.devices["ARCHIVER"].FaultHistory))
	}
	if len(result.Events) != 2 {
		t.Errorf("expected 2 fault events, got %v", result.Events)
	}
}
