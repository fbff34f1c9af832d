// Package handlers wires the transport bus to the application services:
// each handler decodes an inbound message, invokes the relevant
// application service, and publishes the ack plus any follow-up events.
// CommandHandler also runs the Message Authority shape check first.
package handlers

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/lsst-dm/dmcs/pkg/logger"
	"github.com/lsst-dm/dmcs/pkg/transport"
	appservices "github.com/lsst-dm/dmcs/services/dmcs/application/services"
	"github.com/lsst-dm/dmcs/services/dmcs/domain/events"
	domainsvc "github.com/lsst-dm/dmcs/services/dmcs/domain/services"
)

// CommandHandler processes device state commands arriving on
// events.QueueOCSConsume.
type CommandHandler struct {
	authority *domainsvc.MessageAuthority
	states    *appservices.DeviceStateService
	sequences sequenceIssuer
	bus       publisher
	log       logger.Logger
}

// sequenceIssuer is the subset of repositories.SequenceStore the command
// handler needs to stamp outgoing acks with a monotonic sequence number.
type sequenceIssuer interface {
	NextAckSeq(ctx context.Context) (int64, error)
}

// NewCommandHandler returns a CommandHandler wired to its dependencies.
func NewCommandHandler(
	authority *domainsvc.MessageAuthority,
	states *appservices.DeviceStateService,
	sequences sequenceIssuer,
	bus publisher,
	log logger.Logger,
) *CommandHandler {
	return &CommandHandler{authority: authority, states: states, sequences: sequences, bus: bus, log: log}
}

// Handle implements the signature transport.Bus.Subscribe expects.
func (h *CommandHandler) Handle(ctx context.Context, wm *message.Message) error {
	msg, err := transport.DecodeMessage(wm)
	if err != nil {
		return err
	}

	if err := h.authority.CheckShape(msg); err != nil {
		h.log.WarnContext(ctx, "application: rejected malformed message", "msg_type", msg.MsgType(), "error", err)
		return nil // malformed input is not redelivered; it will never become valid
	}

	device := msg.String("DEVICE")
	cfgKey := msg.String("CFG_KEY")
	result, err := h.states.ApplyCommand(ctx, device, msg.MsgType(), cfgKey)
	if err != nil {
		return err
	}

	seq, err := h.sequences.NextAckSeq(ctx)
	if err != nil {
		return err
	}
	ackID := domainsvc.FormatAckID(msg.MsgType(), time.Now(), seq)

	var ack events.Message
	if result.AckStatement != "" {
		ack = events.NewAckWithStatement(msg, device, ackID, result.AckCode, result.AckStatement)
	} else {
		ack = events.NewAck(msg, device, ackID, result.AckCode)
	}
	replyQueue := msg.String("REPLY_QUEUE")
	if replyQueue == "" {
		replyQueue = events.QueueAckConsume
	}

	wmAck, err := transport.EncodeMessage(ack)
	if err != nil {
		return err
	}
	if err := h.bus.Publish(ctx, replyQueue, wmAck); err != nil {
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
