package events

// Message is the generic envelope exchanged over the bus: a YAML-encoded
// dict keyed by field name, always carrying MSG_TYPE. Components add
// whatever additional fields their MSG_TYPE requires. CommandHandler
// checks device commands against the Message Authority's required shape
// before acting; the other handlers read only the fields they use.
type Message map[string]interface{}

// MsgType returns the message's MSG_TYPE field, or "" if absent or not a
// string.
func (m Message) MsgType() string {
	v, ok := m["MSG_TYPE"]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// String returns a field's value as a string, or "" if absent or not a
// string.
func (m Message) String(key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// NewAck builds the standard _ACK reply envelope for msg, carrying the
// component's name, the outgoing ack id, and the ack outcome as a bool:
// true for any positive ack code, false otherwise.
func NewAck(msg Message, component string, ackID string, ackCode int) Message {
	return Message{
		"MSG_TYPE":  AckTypeFor(msg.MsgType()),
		"COMPONENT": component,
		"ACK_ID":    ackID,
		"ACK_BOOL":  ackCode > 0,
	}
}

// NewAckWithStatement builds a NewAck envelope and layers an ACK_STATEMENT
// explaining a rejection, e.g. a bad CFG_KEY on a START command.
func NewAckWithStatement(msg Message, component string, ackID string, ackCode int, statement string) Message {
	ack := NewAck(msg, component, ackID, ackCode)
	ack["ACK_STATEMENT"] = statement
	return ack
}
