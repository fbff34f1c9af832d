// Package services holds the DMCS core's pure business logic that spans
// more than one model: transition validation, ack-id formatting, and
// event emission ordering.
package services

import (
	"fmt"

	"github.com/lsst-dm/dmcs/services/dmcs/domain"
	"github.com/lsst-dm/dmcs/services/dmcs/domain/events"
	"github.com/lsst-dm/dmcs/services/dmcs/domain/models"
)

// ValidateTransition checks a requested move from "from" to "to" against
// the device state transition matrix. It returns ErrSameStateTransition
// for a no-op request and ErrInvalidTransition for any move the matrix
// disallows; a nil error means the move is legal.
func ValidateTransition(from, to models.State) error {
	if from == to {
		return domain.ErrSameStateTransition
	}
	if !models.CanTransition(from, to) {
		return domain.ErrInvalidTransition
	}
	return nil
}

// AckCodeForTransitionError maps a transition validation error to the ack
// code sent back to the OCS; it panics if err is not one of the two
// transition sentinel errors, since callers must only call this after
// ValidateTransition has returned a non-nil error.
func AckCodeForTransitionError(err error) int {
	switch err {
	case domain.ErrSameStateTransition:
		return domain.AckCodeSameState
	case domain.ErrInvalidTransition:
		return domain.AckCodeInvalidTransition
	default:
		panic(fmt.Sprintf("services: not a transition error: %v", err))
	}
}

// EventsForTransition returns the MSG_TYPEs that must be published, in
// order, after a successful state transition triggered by msgType.
// SUMMARY_STATE_EVENT is always first; additional events depend on the
// triggering command.
func EventsForTransition(msgType string) []string {
	evts := []string{events.MsgTypeSummaryStateEvent}

	switch msgType {
	case events.MsgTypeStart:
		evts = append(evts, events.MsgTypeSettingsAppliedEvent, events.MsgTypeAppliedSettingsMatchEvent)
	case events.MsgTypeEnterControl:
		evts = append(evts, events.MsgTypeRecommendedSettingsEvent)
	}

	return evts
}

// FaultEvents returns the MSG_TYPEs published when a device enters FAULT:
// SUMMARY_STATE_EVENT then ERROR_CODE_EVENT.
func FaultEvents() []string {
	return []string{events.MsgTypeSummaryStateEvent, events.MsgTypeErrorCodeEvent}
}
