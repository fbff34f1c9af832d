// Package domain holds the DMCS core's types, sentinel errors, and pure
// business rules: device state, jobs, acks, and the work-decomposition
// algorithm. It has zero dependency on transport or storage.
package domain

import "errors"

// Sentinel errors for the DMCS core. Use errors.Is() to check these.
var (
	// ErrTransportUnavailable indicates the message bus could not be reached
	// after exhausting reconnect retries.
	ErrTransportUnavailable = errors.New("transport unavailable")

	// ErrStoreUnavailable indicates a scoreboard call to Redis failed. The
	// stores return it on the first failed call; they do not retry.
	ErrStoreUnavailable = errors.New("scoreboard store unavailable")

	// ErrUnknownMessageType indicates MSG_TYPE has no entry in the message
	// dictionary.
	ErrUnknownMessageType = errors.New("unknown message type")

	// ErrMessageShapeMismatch indicates a message's keys do not match the
	// required shape for its MSG_TYPE.
	ErrMessageShapeMismatch = errors.New("message shape mismatch")

	// ErrInvalidTransition indicates a requested device state transition is
	// not present in the transition matrix.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrSameStateTransition indicates a requested transition targets the
	// device's current state.
	ErrSameStateTransition = errors.New("invalid same state transition")

	// ErrUnknownCfgKey indicates a START command named a CFG_KEY absent from
	// the device's allowed configuration key list.
	ErrUnknownCfgKey = errors.New("unknown configuration key")

	// ErrNoHealthyForwarder indicates a health check round produced zero
	// healthy forwarder replies.
	ErrNoHealthyForwarder = errors.New("no healthy forwarder")

	// ErrAckTimeout indicates a progressive timer expired without collecting
	// the expected number of replies.
	ErrAckTimeout = errors.New("ack wait timed out")

	// ErrOrchestratorAlreadyRunning indicates a second orchestrator of the
	// same device type attempted to start in this process.
	ErrOrchestratorAlreadyRunning = errors.New("orchestrator already running for device type")
)

// Error codes the core itself emits. First digit 5 (DM), second digit
// classifies originator, last two digits the specific cause.
const (
	ErrCodeNoHealthCheckResponse = 5751 // no health check response from any forwarder
	ErrCodeXferParamsTimeout     = 5752 // forwarder did not ack xfer params in time
	ErrCodeArchiveDirTimeout     = 4451 // archive directory query timeout (non-fatal telemetry)
)

// Ack codes returned to the OCS for a rejected command.
const (
	AckCodeSameState         = -324
	AckCodeInvalidTransition = -320
	AckCodeInvalidCfgKey     = -326
	AckCodeOK                = 1
)
