package handlers

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/lsst-dm/dmcs/pkg/logger"
	"github.com/lsst-dm/dmcs/pkg/transport"
	appservices "github.com/lsst-dm/dmcs/services/dmcs/application/services"
)

// AckHandler routes forwarder/device ack replies arriving on
// events.QueueAckConsume into the AckCoordinator, resolving whichever of
// the timed-ack or pending-ack tracks the ack id belongs to.
type AckHandler struct {
	coordinator *appservices.AckCoordinator
	log         logger.Logger
}

// NewAckHandler returns an AckHandler wired to coordinator.
func NewAckHandler(coordinator *appservices.AckCoordinator, log logger.Logger) *AckHandler {
	return &AckHandler{coordinator: coordinator, log: log}
}

// Handle implements the signature transport.Bus.Subscribe expects.
func (h *AckHandler) Handle(ctx context.Context, wm *message.Message) error {
	msg, err := transport.DecodeMessage(wm)
	if err != nil {
		return err
	}

	ackID := msg.String("ACK_ID")
	component := msg.String("COMPONENT")
	if ackID == "" || component == "" {
		h.log.WarnContext(ctx, "application: ack missing ACK_ID or COMPONENT", "msg", msg)
		return nil
	}

	if err := h.coordinator.RecordReply(ctx, ackID, component); err != nil {
		return err
	}
	return h.coordinator.ResolvePendingAck(ctx, ackID)
}
