// Package events defines the wire message types, MSG_TYPE constants, and
// durable queue names exchanged over the message bus.
package events

// Queue names bound as routing keys on the direct "message" exchange.
const (
	QueueOCSConsume      = "ocs_dmcs_consume"    // OCS bridge -> DMCS commands
	QueueOCSPublish      = "dmcs_ocs_publish"    // DMCS -> OCS bridge events
	QueueAckConsume      = "dmcs_ack_consume"    // forwarder/device replies -> DMCS
	QueueFaultConsume    = "dmcs_fault_consume"  // fault reports -> DMCS
	QueueTelemetry       = "telemetry_queue"     // telemetry reports -> DMCS
	QueueArchiverForeman = "ar_foreman_consume"  // DMCS -> archiver foreman commands
	QueueAuxtelForeman   = "at_foreman_consume"  // DMCS -> auxtel foreman commands
	QueueArchiveCtrlPub  = "archive_ctrl_publish"
	QueueArchiveCtrlCon  = "archive_ctrl_consume"
	QueueArchiverAckPub  = "ar_foreman_ack_publish"
	QueueAuxtelAckPub    = "at_foreman_ack_publish"
)

// MsgType values carried in a message's MSG_TYPE field.
const (
	MsgTypeStart          = "START"
	MsgTypeEnable         = "ENABLE"
	MsgTypeDisable        = "DISABLE"
	MsgTypeStandby        = "STANDBY"
	MsgTypeExitControl    = "EXIT_CONTROL"
	MsgTypeEnterControl   = "ENTER_CONTROL"
	MsgTypeResetFromFault = "RESET_FROM_FAULT"
	MsgTypeAbort          = "ABORT"
	MsgTypeNewSession     = "NEW_SESSION"
	MsgTypeNewVisit       = "NEXT_VISIT"

	// Camera/OCS-side triggers that advance a job already in progress,
	// dispatched through the same command queue as device commands.
	MsgTypeEndReadout  = "END_READOUT"
	MsgTypeHeaderReady = "HEADER_READY"
	MsgTypeItemsXferd  = "ITEMS_XFERD"

	MsgTypeFwdrHealthCheck      = "AR_FWDR_HEALTH_CHECK"
	MsgTypeFwdrHealthCheckAck   = "AR_FWDR_HEALTH_CHECK_ACK"
	MsgTypeFwdrXferParams       = "AR_FWDR_XFER_PARAMS"
	MsgTypeFwdrTakeImages       = "AR_FWDR_TAKE_IMAGES"
	MsgTypeFwdrHeaderReady      = "AR_FWDR_HEADER_READY"
	MsgTypeFwdrEndReadout       = "AR_FWDR_END_READOUT"
	MsgTypeFwdrEndReadoutAck    = "AR_FWDR_END_READOUT_ACK"
	MsgTypeArchiveItemsXferd    = "AR_ITEMS_XFERD"
	MsgTypeArchiveItemsXferdAck = "AR_ITEMS_XFERD_ACK"
	MsgTypeNewArchiveItem       = "NEW_ARCHIVE_ITEM"
	MsgTypeArchiveDirQuery      = "ARCHIVE_DIR_QUERY"
	MsgTypeArchiveDirResp       = "ARCHIVE_DIR_RESPONSE"

	MsgTypeSummaryStateEvent         = "SUMMARY_STATE_EVENT"
	MsgTypeSettingsAppliedEvent      = "SETTINGS_APPLIED_EVENT"
	MsgTypeAppliedSettingsMatchEvent = "APPLIED_SETTINGS_MATCH_START_EVENT"
	MsgTypeRecommendedSettingsEvent  = "RECOMMENDED_SETTINGS_VERSION_EVENT"
	MsgTypeErrorCodeEvent            = "ERROR_CODE_EVENT"

	ackSuffix = "_ACK"
)

// AckTypeFor returns the MSG_TYPE used to acknowledge msgType, e.g.
// "START" -> "START_ACK".
func AckTypeFor(msgType string) string {
	return msgType + ackSuffix
}
