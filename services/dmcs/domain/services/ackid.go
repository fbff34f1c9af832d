package services

import (
	"fmt"
	"time"
)

// FormatAckID builds a globally unique, monotonically increasing ack id:
// <TYPE>_<ISO-timestamp>_<zero-padded-seq>. seq must come from a
// sequence store (SequenceStore.NextAckSeq) so ids stay monotonic across
// process restarts.
func FormatAckID(ackType string, at time.Time, seq int64) string {
	return fmt.Sprintf("%s_%s_%05d", ackType, at.UTC().Format(time.RFC3339Nano), seq)
}
