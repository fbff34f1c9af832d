package models

// JobState tracks an exposure job's progress through the archive
// choreography, from acceptance through all forwarders reporting
// ITEMS_XFERD.
type JobState string

const (
	JobStateNew            JobState = "NEW"
	JobStateHealthChecked  JobState = "HEALTH_CHECKED"
	JobStateXferParamsSent JobState = "XFER_PARAMS_SENT"
	JobStateAccepted       JobState = "ACCEPTED"
	JobStateEndReadout     JobState = "END_READOUT"
	JobStateHeaderReady    JobState = "HEADER_READY"
	JobStateItemsXferd     JobState = "ITEMS_XFERD"
	JobStateFailed         JobState = "FAILED"
)

// Job is one exposure's orchestration record: the unit the
// ExposureOrchestrator drives from NEW to ITEMS_XFERD (or FAILED),
// fanning work out across one or more forwarders and gathering their
// replies.
type Job struct {
	JobNum     string
	VisitID    string
	SessionID  string
	ImageID    string
	DeviceName string
	State      JobState
	Forwarders []string       // forwarder names assigned to this job
	RaftsByFwd WorkAssignment // forwarder name -> assigned raft/CCD sub-lists
	AckIDs     []string       // outstanding progressive-ack ids for this job
	ReplyQueue string         // OCS queue the final <DEV>_READOUT_ACK is returned to
}

// Visit groups one or more jobs taken under a single OCS visit.
type Visit struct {
	VisitID   string
	SessionID string
	JobNums   []string
}

// Session is the top-level OCS observing session grouping visits.
type Session struct {
	SessionID string
	VisitIDs  []string
}
