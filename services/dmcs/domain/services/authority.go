package services

import (
	"github.com/lsst-dm/dmcs/services/dmcs/domain"
	"github.com/lsst-dm/dmcs/services/dmcs/domain/events"
)

// MessageAuthority validates that an inbound message's key set matches
// the required shape for its MSG_TYPE, mirroring the original source's
// MessageAuthority.check_message_shape: a structural (keys-only) check,
// never a check of field values.
type MessageAuthority struct {
	shapes map[string][]string
}

// NewMessageAuthority builds an authority from a MSG_TYPE -> required-keys
// table. DefaultMessageShapes returns the table used in production.
func NewMessageAuthority(shapes map[string][]string) *MessageAuthority {
	return &MessageAuthority{shapes: shapes}
}

// RequiredKeys returns the keys a message of msgType must carry, or false
// if msgType is not registered.
func (a *MessageAuthority) RequiredKeys(msgType string) ([]string, bool) {
	keys, ok := a.shapes[msgType]
	return keys, ok
}

// CheckShape verifies msg carries exactly the keys its MSG_TYPE requires,
// returning domain.ErrUnknownMessageType for an unregistered MSG_TYPE and
// domain.ErrMessageShapeMismatch when the key set differs.
func (a *MessageAuthority) CheckShape(msg events.Message) error {
	msgType := msg.MsgType()
	required, ok := a.shapes[msgType]
	if !ok {
		return domain.ErrUnknownMessageType
	}

	if len(msg) != len(required) {
		return domain.ErrMessageShapeMismatch
	}
	for _, key := range required {
		if _, ok := msg[key]; !ok {
			return domain.ErrMessageShapeMismatch
		}
	}
	return nil
}

// DefaultMessageShapes is the production MSG_TYPE -> required-keys table,
// grounded on the commands and events this core actually exchanges.
func DefaultMessageShapes() map[string][]string {
	return map[string][]string{
		events.MsgTypeStart:              {"MSG_TYPE", "DEVICE", "CFG_KEY", "SESSION_ID", "REPLY_QUEUE"},
		events.MsgTypeEnable:             {"MSG_TYPE", "DEVICE", "REPLY_QUEUE"},
		events.MsgTypeDisable:            {"MSG_TYPE", "DEVICE", "REPLY_QUEUE"},
		events.MsgTypeStandby:            {"MSG_TYPE", "DEVICE", "REPLY_QUEUE"},
		events.MsgTypeExitControl:        {"MSG_TYPE", "DEVICE", "REPLY_QUEUE"},
		events.MsgTypeEnterControl:       {"MSG_TYPE", "DEVICE", "REPLY_QUEUE"},
		events.MsgTypeResetFromFault:     {"MSG_TYPE", "DEVICE", "REPLY_QUEUE"},
		events.MsgTypeAbort:              {"MSG_TYPE", "DEVICE", "REPLY_QUEUE"},
		events.MsgTypeNewVisit:           {"MSG_TYPE", "VISIT_ID", "SESSION_ID", "RAFT_LIST", "RAFT_CCD_LIST", "REPLY_QUEUE"},
		events.MsgTypeEndReadout:         {"MSG_TYPE", "JOB_NUM", "IMAGE_ID", "REPLY_QUEUE"},
		events.MsgTypeHeaderReady:        {"MSG_TYPE", "JOB_NUM", "FILENAME", "IMAGE_ID", "REPLY_QUEUE"},
		events.MsgTypeItemsXferd:         {"MSG_TYPE", "JOB_NUM", "RESULT_LIST", "REPLY_QUEUE"},
		events.MsgTypeFwdrHealthCheckAck: {"MSG_TYPE", "COMPONENT", "ACK_ID", "ACK_BOOL"},
		events.MsgTypeNewArchiveItem:     {"MSG_TYPE", "ACK_ID", "JOB_NUM", "SESSION_ID", "IMAGE_ID", "REPLY_QUEUE"},
	}
}
