package services

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/lsst-dm/dmcs/pkg/logger"
	"github.com/lsst-dm/dmcs/pkg/transport"
	"github.com/lsst-dm/dmcs/services/dmcs/domain"
	"github.com/lsst-dm/dmcs/services/dmcs/domain/events"
	"github.com/lsst-dm/dmcs/services/dmcs/domain/models"
	"github.com/lsst-dm/dmcs/services/dmcs/domain/repositories"
	domainsvc "github.com/lsst-dm/dmcs/services/dmcs/domain/services"
)

// publisher is the narrow slice of transport.Bus the orchestrator needs.
type publisher interface {
	Publish(ctx context.Context, queue string, msgs ...*message.Message) error
}

// Timing defaults for the exposure choreography's progressive acks,
// grounded on the original source's ack_timer/progressive_ack_timer
// call sites in ArchiveDevice.process_next_visit.
const (
	defaultHealthCheckTimeout = 2 * time.Second
	defaultXferParamsTimeout  = 30 * time.Second
	defaultArchiveDirTimeout  = 4 * time.Second
	defaultItemsXferdTimeout  = 8 * time.Second
)

// archiveCtrlComponent is the COMPONENT name the archive controller
// identifies itself with on every timed ack it replies to.
const archiveCtrlComponent = "ARCHIVE_CTRL"

// ArchiveConfig names the archive controller this orchestrator's jobs
// stage files to, grounded on the original source's COMPONENT_NAME /
// archive_name / archive_ip / configured transfer root fields.
type ArchiveConfig struct {
	Login    string
	IP       string
	XferRoot string
}

// targetLocation composes the TARGET_LOCATION a forwarder stages files
// under, in the archive_login@ip:dir form the original source built from
// archive_name/archive_ip plus whatever directory the archive controller
// returned (ArchiveDevice.process_next_visit, line ~296).
func (a ArchiveConfig) targetLocation(dir string) string {
	return a.Login + "@" + a.IP + ":" + dir
}

// ExposureOrchestrator drives one exposure job through the archive
// forwarder choreography: health check the candidate forwarders, divide
// the raft/CCD work across whichever replied, hand each its transfer
// parameters, and track the job through to ITEMS_XFERD.
type ExposureOrchestrator struct {
	jobs       repositories.JobStore
	forwarders repositories.ForwarderStore
	sequences  repositories.SequenceStore
	acks       *AckCoordinator
	bus        publisher
	log        logger.Logger

	device  string
	archive ArchiveConfig

	healthCheckTimeout time.Duration
	xferParamsTimeout  time.Duration
	archiveDirTimeout  time.Duration
	itemsXferdTimeout  time.Duration
}

// NewExposureOrchestrator returns an ExposureOrchestrator wired to its
// storage ports, ack coordinator, and transport bus, using the
// production timeout defaults. device names the commandable device this
// instance orchestrates jobs for (e.g. "ARCHIVER"), stamped onto every
// job and forwarder message.
func NewExposureOrchestrator(
	jobs repositories.JobStore,
	forwarders repositories.ForwarderStore,
	sequences repositories.SequenceStore,
	acks *AckCoordinator,
	bus publisher,
	log logger.Logger,
	device string,
	archive ArchiveConfig,
) *ExposureOrchestrator {
	return &ExposureOrchestrator{
		jobs:               jobs,
		forwarders:         forwarders,
		sequences:          sequences,
		acks:               acks,
		bus:                bus,
		log:                log,
		device:             device,
		archive:            archive,
		healthCheckTimeout: defaultHealthCheckTimeout,
		xferParamsTimeout:  defaultXferParamsTimeout,
		archiveDirTimeout:  defaultArchiveDirTimeout,
		itemsXferdTimeout:  defaultItemsXferdTimeout,
	}
}

func (o *ExposureOrchestrator) nextAckID(ctx context.Context, ackType models.AckType) (string, error) {
	seq, err := o.sequences.NextAckSeq(ctx)
	if err != nil {
		return "", err
	}
	return domainsvc.FormatAckID(string(ackType), time.Now(), seq), nil
}

// StartExposure runs next-visit choreography for job: health-checks every
// registered forwarder marked healthy, queries the archive controller for a staging
// directory, divides raftList/raftCcdList across whichever forwarder
// replied in time, persists the work assignment, and sends each surviving
// forwarder its transfer parameters (including the composed
// TARGET_LOCATION). A forwarder that misses the health check is recorded
// as a non-fatal fault (error code 5751) and excluded from the job; if
// none reply, the job fails outright.
func (o *ExposureOrchestrator) StartExposure(ctx context.Context, job *models.Job, raftList []string, raftCcdList [][]string) (*models.Job, []models.FaultRecord, error) {
	job.DeviceName = o.device

	records, err := o.forwarders.ListForwarders(ctx)
	if err != nil {
		return nil, nil, err
	}
	byName := make(map[string]*models.ForwarderRecord, len(records))
	candidateNames := make([]string, 0, len(records))
	for _, f := range records {
		byName[f.Name] = f
		if f.Healthy {
			candidateNames = append(candidateNames, f.Name)
		}
	}
	if len(candidateNames) == 0 {
		return nil, nil, fmt.Errorf("exposure orchestrator: %w", domain.ErrNoHealthyForwarder)
	}

	healthyFwdrs, faults, err := o.runHealthCheck(ctx, candidateNames, byName)
	if err != nil {
		return nil, nil, err
	}
	if len(healthyFwdrs) == 0 {
		job.State = models.JobStateFailed
		_ = o.jobs.SaveJob(ctx, job)
		return job, faults, fmt.Errorf("exposure orchestrator: %w", domain.ErrNoHealthyForwarder)
	}
	job.State = models.JobStateHealthChecked

	dir, dirFault, err := o.queryArchiveDirectory(ctx, job)
	if err != nil {
		return nil, faults, err
	}
	if dirFault != nil {
		faults = append(faults, *dirFault)
	}
	targetLocation := o.archive.targetLocation(dir)

	assignment := models.DivideWork(healthyFwdrs, raftList, raftCcdList)
	job.Forwarders = healthyFwdrs
	job.RaftsByFwd = assignment

	if err := o.sendXferParams(ctx, job, assignment, targetLocation, byName); err != nil {
		job.State = models.JobStateFailed
		_ = o.jobs.SaveJob(ctx, job)
		return job, faults, err
	}
	job.State = models.JobStateXferParamsSent

	if err := o.jobs.SaveJob(ctx, job); err != nil {
		return nil, faults, err
	}
	return job, faults, nil
}

// runHealthCheck sends AR_FWDR_HEALTH_CHECK to every candidate's own
// consume queue and gathers whichever reply within the timeout.
// Non-replying forwarders generate a fault record (error code 5751) but
// never abort the step.
func (o *ExposureOrchestrator) runHealthCheck(ctx context.Context, candidates []string, byName map[string]*models.ForwarderRecord) ([]string, []models.FaultRecord, error) {
	ackID, err := o.nextAckID(ctx, models.AckTypeHealthCheck)
	if err != nil {
		return nil, nil, err
	}
	deadline := time.Now().Add(o.healthCheckTimeout)
	if err := o.acks.RegisterTimedAck(ctx, ackID, candidates, deadline); err != nil {
		return nil, nil, err
	}

	for _, fwd := range candidates {
		msg := events.Message{"MSG_TYPE": events.MsgTypeFwdrHealthCheck, "ACK_ID": ackID, "COMPONENT": fwd}
		if err := o.publish(ctx, consumeQueueFor(byName, fwd), msg); err != nil {
			return nil, nil, err
		}
	}

	replied, all, err := o.acks.AwaitQuorum(ctx, ackID, deadline)
	if err != nil {
		return nil, nil, err
	}

	var faults []models.FaultRecord
	if !all {
		repliedSet := make(map[string]bool, len(replied))
		for _, r := range replied {
			repliedSet[r] = true
		}
		for _, fwd := range candidates {
			if !repliedSet[fwd] {
				faults = append(faults, models.FaultRecord{
					Component:   fwd,
					FaultType:   "HEALTH_CHECK_TIMEOUT",
					ErrorCode:   domain.ErrCodeNoHealthCheckResponse,
					Description: "no health check response from " + fwd,
				})
				o.log.WarnContext(ctx, "exposure orchestrator: forwarder missed health check", "forwarder", fwd)
			}
		}
	}
	return replied, faults, nil
}

// sendXferParams hands each forwarder in assignment its raft/CCD work and
// the composed archive TARGET_LOCATION, routed to the forwarder's own
// consume queue, and waits for every one of them to ack. Unlike the
// health check, a forwarder that already passed health check but then
// misses this ack fails the whole job (error code 5752): it has already
// been told it is responsible for specific rafts.
func (o *ExposureOrchestrator) sendXferParams(ctx context.Context, job *models.Job, assignment models.WorkAssignment, targetLocation string, byName map[string]*models.ForwarderRecord) error {
	ackID, err := o.nextAckID(ctx, models.AckTypeXferParams)
	if err != nil {
		return err
	}
	deadline := time.Now().Add(o.xferParamsTimeout)
	if err := o.acks.RegisterTimedAck(ctx, ackID, job.Forwarders, deadline); err != nil {
		return err
	}

	for _, fwd := range job.Forwarders {
		work := assignment[fwd]
		msg := events.Message{
			"MSG_TYPE":        events.MsgTypeFwdrXferParams,
			"ACK_ID":          ackID,
			"COMPONENT":       fwd,
			"SESSION_ID":      job.SessionID,
			"IMAGE_ID":        job.ImageID,
			"DEVICE":          job.DeviceName,
			"JOB_NUM":         job.JobNum,
			"REPLY_QUEUE":     events.QueueArchiverAckPub,
			"TARGET_LOCATION": targetLocation,
			"XFER_PARAMS": map[string]interface{}{
				"RAFT_LIST":     work.Rafts,
				"RAFT_CCD_LIST": work.CcdLists,
				"AT_FWDR":       fwd,
			},
		}
		if err := o.publish(ctx, consumeQueueFor(byName, fwd), msg); err != nil {
			return err
		}
	}

	_, all, err := o.acks.AwaitQuorum(ctx, ackID, deadline)
	if err != nil {
		return err
	}
	if !all {
		return fmt.Errorf("exposure orchestrator: job %s: error code %d: %w",
			job.JobNum, domain.ErrCodeXferParamsTimeout, domain.ErrAckTimeout)
	}
	return nil
}

// queryArchiveDirectory asks the archive controller once for job's
// staging directory. A timeout is logged as a non-fatal fault (error code
// 4451) and falls back to the configured archive transfer root: the
// original source's own directory-extraction path was itself dead code
// (hardcoded to a scratch value, with the real extraction commented out),
// so ArchiveConfig.XferRoot is the only directory value this core ever
// actually has to offer.
func (o *ExposureOrchestrator) queryArchiveDirectory(ctx context.Context, job *models.Job) (string, *models.FaultRecord, error) {
	ackID, err := o.nextAckID(ctx, models.AckTypeArchiveDir)
	if err != nil {
		return "", nil, err
	}
	deadline := time.Now().Add(o.archiveDirTimeout)
	if err := o.acks.RegisterTimedAck(ctx, ackID, []string{archiveCtrlComponent}, deadline); err != nil {
		return "", nil, err
	}

	msg := events.Message{
		"MSG_TYPE":    events.MsgTypeNewArchiveItem,
		"ACK_ID":      ackID,
		"JOB_NUM":     job.JobNum,
		"SESSION_ID":  job.SessionID,
		"IMAGE_ID":    job.ImageID,
		"REPLY_QUEUE": events.QueueArchiverAckPub,
	}
	if err := o.publish(ctx, events.QueueArchiveCtrlPub, msg); err != nil {
		return "", nil, err
	}

	_, all, err := o.acks.AwaitQuorum(ctx, ackID, deadline)
	if err != nil {
		return "", nil, err
	}
	if !all {
		o.log.WarnContext(ctx, "exposure orchestrator: archive directory query timed out, using configured root",
			"job_num", job.JobNum)
		return o.archive.XferRoot, &models.FaultRecord{
			Component:   archiveCtrlComponent,
			FaultType:   "ARCHIVE_DIR_QUERY_TIMEOUT",
			ErrorCode:   domain.ErrCodeArchiveDirTimeout,
			Description: "no archive directory response, using configured archive transfer root",
		}, nil
	}
	return o.archive.XferRoot, nil, nil
}

// currentForwarder re-runs the health check across job's assigned
// forwarders and returns the first that replies healthy, grounded on
// §4.5 steps 5/6's "repeat a fresh health check, then send to
// current_fwdr" — the choreography's single target for end-readout and
// header-ready once a job is already underway.
func (o *ExposureOrchestrator) currentForwarder(ctx context.Context, job *models.Job) (string, []models.FaultRecord, error) {
	records, err := o.forwarders.ListForwarders(ctx)
	if err != nil {
		return "", nil, err
	}
	byName := make(map[string]*models.ForwarderRecord, len(records))
	for _, f := range records {
		byName[f.Name] = f
	}

	healthy, faults, err := o.runHealthCheck(ctx, job.Forwarders, byName)
	if err != nil {
		return "", faults, err
	}
	if len(healthy) == 0 {
		return "", faults, fmt.Errorf("exposure orchestrator: %w", domain.ErrNoHealthyForwarder)
	}
	return consumeQueueFor(byName, healthy[0]), faults, nil
}

// AdvanceToEndReadout implements §4.5 step 5: on an END_READOUT trigger,
// re-checks forwarder health and sends AR_FWDR_END_READOUT to
// current_fwdr as a non-blocking pending ack — the forwarder's result set
// arrives later, asynchronously, as AR_FWDR_END_READOUT_ACK.
func (o *ExposureOrchestrator) AdvanceToEndReadout(ctx context.Context, job *models.Job, imageID string) ([]models.FaultRecord, error) {
	queue, faults, err := o.currentForwarder(ctx, job)
	if err != nil {
		return faults, err
	}

	ackID, err := o.nextAckID(ctx, models.AckTypeEndReadout)
	if err != nil {
		return faults, err
	}
	deadline := time.Now().Add(o.itemsXferdTimeout)
	if err := o.acks.RegisterPendingAck(ctx, ackID, deadline); err != nil {
		return faults, err
	}

	msg := events.Message{
		"MSG_TYPE": events.MsgTypeFwdrEndReadout,
		"ACK_ID":   ackID,
		"JOB_NUM":  job.JobNum,
		"IMAGE_ID": imageID,
	}
	if err := o.publish(ctx, queue, msg); err != nil {
		return faults, err
	}

	job.ImageID = imageID
	job.State = models.JobStateEndReadout
	return faults, o.jobs.SaveJob(ctx, job)
}

// AdvanceToHeaderReady implements §4.5 step 6: re-checks forwarder health
// and relays AR_FWDR_HEADER_READY to current_fwdr.
func (o *ExposureOrchestrator) AdvanceToHeaderReady(ctx context.Context, job *models.Job, filename, imageID string) ([]models.FaultRecord, error) {
	queue, faults, err := o.currentForwarder(ctx, job)
	if err != nil {
		return faults, err
	}

	msg := events.Message{
		"MSG_TYPE": events.MsgTypeFwdrHeaderReady,
		"JOB_NUM":  job.JobNum,
		"FILENAME": filename,
		"IMAGE_ID": imageID,
	}
	if err := o.publish(ctx, queue, msg); err != nil {
		return faults, err
	}

	job.State = models.JobStateHeaderReady
	return faults, o.jobs.SaveJob(ctx, job)
}

// CompleteItemsTransferred implements §4.5 step 7: forwards resultList to
// the archive controller for confirmation (8s progressive timer, N=1),
// then relays the result back to job's ReplyQueue as
// <DEV>_READOUT_ACK{ACK_BOOL=true, RESULT_LIST}. A controller timeout is
// logged but does not fail the job — forwarders have already confirmed
// their own transfers; archive-controller confirmation is supplementary.
func (o *ExposureOrchestrator) CompleteItemsTransferred(ctx context.Context, job *models.Job, resultList map[string]interface{}) error {
	ackID, err := o.nextAckID(ctx, models.AckTypeItemsXferd)
	if err != nil {
		return err
	}
	deadline := time.Now().Add(o.itemsXferdTimeout)
	if err := o.acks.RegisterTimedAck(ctx, ackID, []string{archiveCtrlComponent}, deadline); err != nil {
		return err
	}

	msg := events.Message{
		"MSG_TYPE":    events.MsgTypeArchiveItemsXferd,
		"ACK_ID":      ackID,
		"JOB_NUM":     job.JobNum,
		"IMAGE_ID":    job.ImageID,
		"REPLY_QUEUE": events.QueueArchiverAckPub,
		"RESULT_LIST": resultList,
	}
	if err := o.publish(ctx, events.QueueArchiveCtrlCon, msg); err != nil {
		return err
	}

	if _, all, err := o.acks.AwaitQuorum(ctx, ackID, deadline); err != nil {
		return err
	} else if !all {
		o.log.WarnContext(ctx, "exposure orchestrator: archive controller did not confirm items transferred in time",
			"job_num", job.JobNum)
	}

	replyQueue := job.ReplyQueue
	if replyQueue == "" {
		replyQueue = events.QueueAckConsume
	}
	ack := events.Message{
		"MSG_TYPE":    job.DeviceName + "_READOUT_ACK",
		"JOB_NUM":     job.JobNum,
		"COMPONENT":   job.DeviceName,
		"ACK_BOOL":    true,
		"RESULT_LIST": resultList,
	}
	if err := o.publish(ctx, replyQueue, ack); err != nil {
		return err
	}

	job.State = models.JobStateItemsXferd
	return o.jobs.SaveJob(ctx, job)
}

func consumeQueueFor(byName map[string]*models.ForwarderRecord, fwd string) string {
	if rec, ok := byName[fwd]; ok && rec.ConsumeQueue != "" {
		return rec.ConsumeQueue
	}
	return events.QueueArchiverForeman
}

func (o *ExposureOrchestrator) publish(ctx context.Context, queue string, msg events.Message) error {
	wm, err := transport.EncodeMessage(msg)
	if err != nil {
		return err
	}
	return o.bus.Publish(ctx, queue, wm)
}
