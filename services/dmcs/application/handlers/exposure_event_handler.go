package handlers

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/lsst-dm/dmcs/pkg/logger"
	"github.com/lsst-dm/dmcs/pkg/transport"
	appservices "github.com/lsst-dm/dmcs/services/dmcs/application/services"
	"github.com/lsst-dm/dmcs/services/dmcs/domain/events"
	"github.com/lsst-dm/dmcs/services/dmcs/domain/models"
	"github.com/lsst-dm/dmcs/services/dmcs/domain/repositories"
)

// ExposureEventHandler advances an in-progress exposure job on the
// camera-side triggers that follow NEXT_VISIT: END_READOUT, HEADER_READY,
// and ITEMS_XFERD, grounded on the original source's
// ArchiveDevice.process_end_readout / process_header_ready_event /
// take_images_done. Each trigger names the job by JOB_NUM; a trigger for
// an unknown job is logged and dropped rather than redelivered.
type ExposureEventHandler struct {
	jobs      repositories.JobStore
	exposures *appservices.ExposureOrchestrator
	bus       publisher
	log       logger.Logger
}

// NewExposureEventHandler returns an ExposureEventHandler wired to its
// dependencies.
func NewExposureEventHandler(
	jobs repositories.JobStore,
	exposures *appservices.ExposureOrchestrator,
	bus publisher,
	log logger.Logger,
) *ExposureEventHandler {
	return &ExposureEventHandler{jobs: jobs, exposures: exposures, bus: bus, log: log}
}

// Handle implements the signature transport.Bus.Subscribe expects.
func (h *ExposureEventHandler) Handle(ctx context.Context, wm *message.Message) error {
	msg, err := transport.DecodeMessage(wm)
	if err != nil {
		return err
	}

	jobNum := msg.String("JOB_NUM")
	job, err := h.jobs.GetJob(ctx, jobNum)
	if err != nil {
		return err
	}
	if job == nil {
		h.log.WarnContext(ctx, "application: exposure event for unknown job", "msg_type", msg.MsgType(), "job_num", jobNum)
		return nil
	}

	var faults []models.FaultRecord
	switch msg.MsgType() {
	case events.MsgTypeEndReadout:
		faults, err = h.exposures.AdvanceToEndReadout(ctx, job, msg.String("IMAGE_ID"))
	case events.MsgTypeHeaderReady:
		faults, err = h.exposures.AdvanceToHeaderReady(ctx, job, msg.String("FILENAME"), msg.String("IMAGE_ID"))
	case events.MsgTypeItemsXferd:
		resultList, _ := msg["RESULT_LIST"].(map[string]interface{})
		err = h.exposures.CompleteItemsTransferred(ctx, job, resultList)
	default:
		h.log.WarnContext(ctx, "application: exposure event handler received unexpected MSG_TYPE", "msg_type", msg.MsgType())
		return nil
	}
	if err != nil {
		return err
	}

	for _, fault := range faults {
		faultMsg := events.Message{
			"MSG_TYPE":    "FAULT_REPORT",
			"DEVICE":      fault.Device,
			"COMPONENT":   fault.Component,
			"FAULT_TYPE":  fault.FaultType,
			"ERROR_CODE":  fault.ErrorCode,
			"DESCRIPTION": fault.Description,
		}
		wmFault, encErr := transport.EncodeMessage(faultMsg)
		if encErr != nil {
			return encErr
		}
		if pubErr := h.bus.Publish(ctx, events.QueueFaultConsume, wmFault); pubErr != nil {
			return pubErr
		}
	}
	return nil
}
