package handlers

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/lsst-dm/dmcs/pkg/logger"
	"github.com/lsst-dm/dmcs/pkg/transport"
	appservices "github.com/lsst-dm/dmcs/services/dmcs/application/services"
	"github.com/lsst-dm/dmcs/services/dmcs/domain/events"
	"github.com/lsst-dm/dmcs/services/dmcs/domain/models"
)

// FaultHandler routes fault reports arriving on events.QueueFaultConsume
// into DeviceStateService.RecordFault and publishes the resulting fault
// event sequence.
type FaultHandler struct {
	states *appservices.DeviceStateService
	bus    publisher
	log    logger.Logger
}

// NewFaultHandler returns a FaultHandler wired to its dependencies.
func NewFaultHandler(states *appservices.DeviceStateService, bus publisher, log logger.Logger) *FaultHandler {
	return &FaultHandler{states: states, bus: bus, log: log}
}

// Handle implements the signature transport.Bus.Subscribe expects.
func (h *FaultHandler) Handle(ctx context.Context, wm *message.Message) error {
	msg, err := transport.DecodeMessage(wm)
	if err != nil {
		return err
	}

	device := msg.String("DEVICE")
	if device == "" {
		h.log.WarnContext(ctx, "application: fault report missing DEVICE", "msg", msg)
		return nil
	}

	errCode, _ := msg["ERROR_CODE"].(int)
	fault := models.FaultRecord{
		Component:   msg.String("COMPONENT"),
		Device:      device,
		FaultType:   msg.String("FAULT_TYPE"),
		ErrorCode:   errCode,
		Description: msg.String("DESCRIPTION"),
	}

	result, err := h.states.RecordFault(ctx, device, fault)
	if err != nil {
		return err
	}

	for _, evtType := range result.Events {
		evt := events.Message{"MSG_TYPE": evtType, "DEVICE": device}
		wmEvt, err := transport.EncodeMessage(evt)
		if err != nil {
			return err
		}
		if err := h.bus.Publish(ctx, events.QueueOCSPublish, wmEvt); err != nil {
			return err
		}
	}

	return nil
}
