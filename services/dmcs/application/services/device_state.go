// Package services holds the DMCS core's application-layer orchestration:
// it wires domain rules to the storage and transport ports and drives the
// actual choreography (state transitions, ack collection, exposure
// fan-out/gather, fault routing).
package services

import (
	"context"
	"fmt"

	"github.com/lsst-dm/dmcs/pkg/logger"
	"github.com/lsst-dm/dmcs/services/dmcs/domain"
	"github.com/lsst-dm/dmcs/services/dmcs/domain/events"
	"github.com/lsst-dm/dmcs/services/dmcs/domain/models"
	"github.com/lsst-dm/dmcs/services/dmcs/domain/repositories"
	domainsvc "github.com/lsst-dm/dmcs/services/dmcs/domain/services"
)

// DeviceStateService applies a requested state transition to a device,
// persists the result, and reports the ack code plus the ordered event
// list the caller must publish.
type DeviceStateService struct {
	states repositories.StateStore
	log    logger.Logger
}

// NewDeviceStateService returns a DeviceStateService backed by states.
func NewDeviceStateService(states repositories.StateStore, log logger.Logger) *DeviceStateService {
	return &DeviceStateService{states: states, log: log}
}

// TransitionResult is what a caller needs to ack the OCS and publish the
// right follow-up events. AckStatement is set only on a rejection that
// carries an explanatory statement (e.g. a bad CFG_KEY).
type TransitionResult struct {
	AckCode      int
	AckStatement string
	Events       []string
}

// ApplyCommand resolves msgType to a target state, validates the
// transition against the device's current state, and on success persists
// the new state and returns the events to publish. On a rejected
// transition it returns the negative ack code without modifying state.
// For START, cfgKey additionally names the configuration to apply; a
// cfgKey not in the device's allowed list is refused without changing
// state, per the same contract as an invalid transition.
func (s *DeviceStateService) ApplyCommand(ctx context.Context, deviceName, msgType, cfgKey string) (*TransitionResult, error) {
	device, err := s.states.GetDevice(ctx, deviceName)
	if err != nil {
		return nil, err
	}

	target, ok := targetStateFor(msgType)
	if !ok {
		return nil, fmt.Errorf("application: %w: %s", domain.ErrUnknownMessageType, msgType)
	}

	if msgType == events.MsgTypeStart {
		if _, err := domainsvc.ResolveCfgKey(device, cfgKey); err != nil {
			s.log.WarnContext(ctx, "application: rejected START with bad CFG_KEY",
				"device", deviceName, "cfg_key", cfgKey)
			return &TransitionResult{
				AckCode:      domain.AckCodeInvalidCfgKey,
				AckStatement: "Bad CFG Key - remaining in STANDBY",
			}, nil
		}
	}

	if device.State == models.StateFault && msgType != events.MsgTypeResetFromFault {
		return &TransitionResult{AckCode: domain.AckCodeInvalidTransition}, nil
	}

	if err := domainsvc.ValidateTransition(device.State, target); err != nil {
		return &TransitionResult{AckCode: domainsvc.AckCodeForTransitionError(err)}, nil
	}

	device.State = target
	if err := s.states.SaveDevice(ctx, device); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "application: device transitioned",
		"device", deviceName, "msg_type", msgType, "new_state", string(target))

	return &TransitionResult{
		AckCode: domain.AckCodeOK,
		Events:  domainsvc.EventsForTransition(msgType),
	}, nil
}

// RecordFault forces a device into FAULT, appends to its fault history,
// and returns the fault event sequence to publish.
func (s *DeviceStateService) RecordFault(ctx context.Context, deviceName string, fault models.FaultRecord) (*TransitionResult, error) {
	device, err := s.states.GetDevice(ctx, deviceName)
	if err != nil {
		return nil, err
	}

	device.State = models.StateFault
	device.FaultHistory = append(device.FaultHistory, fault)
	if err := s.states.SaveDevice(ctx, device); err != nil {
		return nil, err
	}

	s.log.ErrorContext(ctx, "application: device entered fault",
		"device", deviceName, "error_code", fault.ErrorCode, "description", fault.Description)

	return &TransitionResult{AckCode: domain.AckCodeOK, Events: domainsvc.FaultEvents()}, nil
}

func targetStateFor(msgType string) (models.State, bool) {
	switch msgType {
	case events.MsgTypeEnterControl:
		return models.StateStandby, true
	case events.MsgTypeExitControl:
		return models.StateOffline, true
	case events.MsgTypeStart:
		return models.StateDisable, true
	case events.MsgTypeEnable:
		return models.StateEnable, true
	case events.MsgTypeDisable:
		return models.StateDisable, true
	case events.MsgTypeStandby:
		return models.StateStandby, true
	case events.MsgTypeResetFromFault:
		return models.StateStandby, true
	default:
		return "", false
	}
}
