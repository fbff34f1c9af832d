package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/lsst-dm/dmcs/pkg/logger"
	"github.com/lsst-dm/dmcs/pkg/transport"
	appservices "github.com/lsst-dm/dmcs/services/dmcs/application/services"
	"github.com/lsst-dm/dmcs/services/dmcs/domain/events"
	"github.com/lsst-dm/dmcs/services/dmcs/domain/models"
	domainsvc "github.com/lsst-dm/dmcs/services/dmcs/domain/services"
)

// jobNumIssuer is the subset of repositories.SequenceStore NextVisitHandler
// needs to mint a job number for the new exposure.
type jobNumIssuer interface {
	NextJobNum(ctx context.Context) (int64, error)
}

// NextVisitHandler starts the archive forwarder choreography for a new
// OCS visit, grounded on the original source's ArchiveDevice.process_next_visit:
// divide the announced rafts across healthy forwarders and send each its
// transfer parameters, then ack the OCS and report any forwarders that
// missed health check as faults.
type NextVisitHandler struct {
	exposures *appservices.ExposureOrchestrator
	sequences jobNumIssuer
	acks      sequenceIssuer
	bus       publisher
	log       logger.Logger
}

// NewNextVisitHandler returns a NextVisitHandler wired to its dependencies.
func NewNextVisitHandler(
	exposures *appservices.ExposureOrchestrator,
	sequences jobNumIssuer,
	acks sequenceIssuer,
	bus publisher,
	log logger.Logger,
) *NextVisitHandler {
	return &NextVisitHandler{exposures: exposures, sequences: sequences, acks: acks, bus: bus, log: log}
}

// Handle implements the signature transport.Bus.Subscribe expects.
func (h *NextVisitHandler) Handle(ctx context.Context, wm *message.Message) error {
	msg, err := transport.DecodeMessage(wm)
	if err != nil {
		return err
	}

	raftList, err := stringList(msg["RAFT_LIST"])
	if err != nil {
		h.log.WarnContext(ctx, "application: NEXT_VISIT with malformed RAFT_LIST", "error", err)
		return nil
	}
	raftCcdList, err := stringListList(msg["RAFT_CCD_LIST"])
	if err != nil {
		h.log.WarnContext(ctx, "application: NEXT_VISIT with malformed RAFT_CCD_LIST", "error", err)
		return nil
	}

	jobNum, err := h.sequences.NextJobNum(ctx)
	if err != nil {
		return err
	}

	replyQueue := msg.String("REPLY_QUEUE")
	if replyQueue == "" {
		replyQueue = events.QueueAckConsume
	}

	job := &models.Job{
		JobNum:     fmt.Sprintf("%d", jobNum),
		VisitID:    msg.String("VISIT_ID"),
		SessionID:  msg.String("SESSION_ID"),
		State:      models.JobStateNew,
		ReplyQueue: replyQueue,
	}

	result, faults, err := h.exposures.StartExposure(ctx, job, raftList, raftCcdList)

	ackCode := 1
	if err != nil {
		ackCode = -1
	}

	seq, seqErr := h.acks.NextAckSeq(ctx)
	if seqErr != nil {
		return seqErr
	}
	ackID := domainsvc.FormatAckID(events.MsgTypeNewVisit, time.Now(), seq)

	ack := events.NewAck(msg, job.DeviceName, ackID, ackCode)
	ack["JOB_NUM"] = job.JobNum
	wmAck, encErr := transport.EncodeMessage(ack)
	if encErr != nil {
		return encErr
	}
	if pubErr := h.bus.Publish(ctx, replyQueue, wmAck); pubErr != nil {
		return pubErr
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

	if err != nil {
		h.log.ErrorContext(ctx, "application: exposure start failed", "visit_id", job.VisitID, "error", err)
		return nil // already acked the failure; do not redeliver
	}

	h.log.InfoContext(ctx, "application: exposure started",
		"job_num", result.JobNum, "visit_id", result.VisitID, "forwarders", result.Forwarders)
	return nil
}

// stringList converts a decoded YAML list field (always []interface{}
// once it has round-tripped through map[string]interface{}) into a
// []string, used for RAFT_LIST.
func stringList(v interface{}) ([]string, error) {
	raw, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("expected a list, got %T", v)
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("expected a string list item, got %T", item)
		}
		out = append(out, s)
	}
	return out, nil
}

// stringListList converts a decoded YAML list-of-lists field into a
// [][]string, used for RAFT_CCD_LIST. A nil/absent field yields a nil
// result rather than an error: not every device subdivides rafts by CCD.
func stringListList(v interface{}) ([][]string, error) {
	if v == nil {
		return nil, nil
	}
	raw, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("expected a list of lists, got %T", v)
	}
	out := make([][]string, 0, len(raw))
	for _, item := range raw {
		inner, err := stringList(item)
		if err != nil {
			return nil, err
		}
		out = append(out, inner)
	}
	return out, nil
}
