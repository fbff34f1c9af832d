package handlers

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/lsst-dm/dmcs/pkg/transport"
	"github.com/lsst-dm/dmcs/services/dmcs/domain/events"
)

// CommandRouter dispatches messages arriving on the single OCS command
// queue by MSG_TYPE: NEXT_VISIT starts the exposure choreography,
// END_READOUT/HEADER_READY/ITEMS_XFERD advance a job already underway,
// and every other command flows through the device FSM.
type CommandRouter struct {
	command   *CommandHandler
	nextVisit *NextVisitHandler
	exposure  *ExposureEventHandler
}

// NewCommandRouter returns a CommandRouter wired to its downstream
// handlers.
func NewCommandRouter(command *CommandHandler, nextVisit *NextVisitHandler, exposure *ExposureEventHandler) *CommandRouter {
	return &CommandRouter{command: command, nextVisit: nextVisit, exposure: exposure}
}

// Handle implements the signature transport.Bus.Subscribe expects.
func (r *CommandRouter) Handle(ctx context.Context, wm *message.Message) error {
	msg, err := transport.DecodeMessage(wm)
	if err != nil {
		return err
	}
	switch msg.MsgType() {
	case events.MsgTypeNewVisit:
		return r.nextVisit.Handle(ctx, wm)
	case events.MsgTypeEndReadout, events.MsgTypeHeaderReady, events.MsgTypeItemsXferd:
		return r.exposure.Handle(ctx, wm)
	default:
		return r.command.Handle(ctx, wm)
	}
}
