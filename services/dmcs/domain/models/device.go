package models

// State is a device's position in the OCS-standard lifecycle state machine.
type State string

const (
	StateOffline State = "OFFLINE"
	StateStandby State = "STANDBY"
	StateDisable State = "DISABLE"
	StateEnable  State = "ENABLE"
	StateFault   State = "FAULT"
)

// stateIndex mirrors the original source's state_enumeration table so the
// transition matrix below can be expressed as a dense grid.
var stateIndex = map[State]int{
	StateOffline: 0,
	StateStandby: 1,
	StateDisable: 2,
	StateEnable:  3,
	StateFault:   4,
}

// transitionMatrix[from][to] is true iff the device may move directly from
// "from" to "to": OFFLINE<->STANDBY<->DISABLE<->ENABLE, any of
// STANDBY/DISABLE/ENABLE -> FAULT, and FAULT -> STANDBY only via
// RESET_FROM_FAULT.
var transitionMatrix = [5][5]bool{
	// OFFLINE STANDBY DISABLE ENABLE FAULT
	{false, true, false, false, false}, // OFFLINE
	{true, false, true, false, true},   // STANDBY
	{false, true, false, true, true},   // DISABLE
	{false, false, true, false, true},  // ENABLE
	{false, true, false, false, false}, // FAULT
}

// CanTransition reports whether the transition matrix allows moving directly
// from "from" to "to". A same-state request (from == to) is always false
// here; callers must special-case it to return AckCodeSameState rather than
// AckCodeInvalidTransition.
func CanTransition(from, to State) bool {
	fi, ok := stateIndex[from]
	if !ok {
		return false
	}
	ti, ok := stateIndex[to]
	if !ok {
		return false
	}
	return transitionMatrix[fi][ti]
}

// Device is one record per instrument device (archiver, prompt-processor,
// catchup, auxtel).
type Device struct {
	Name           string
	ConsumeQueue   string
	State          State
	CurrentCfgKey  string
	AllowedCfgKeys []string // ordered; index 0 is the default
	FaultHistory   []FaultRecord
}

// DefaultCfgKey returns the device's index-0 configuration key, used as the
// fallback when a START command omits CFG_KEY.
func (d *Device) DefaultCfgKey() string {
	if len(d.AllowedCfgKeys) == 0 {
		return ""
	}
	return d.AllowedCfgKeys[0]
}

// HasCfgKey reports whether key is in the device's allowed configuration key
// list.
func (d *Device) HasCfgKey(key string) bool {
	for _, k := range d.AllowedCfgKeys {
		if k == key {
			return true
		}
	}
	return false
}

// FaultRecord is one entry appended to a device's append-only fault history.
type FaultRecord struct {
	Component   string
	Device      string
	FaultType   string
	ErrorCode   int
	Description string
}
