package transport

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/lsst-dm/dmcs/services/dmcs/domain/events"
)

// EncodeMessage YAML-encodes msg into a Watermill message.Message, the
// wire format every component on this bus speaks. Each message is stamped
// with its own UUID rather than a counter, since message ids never need to
// survive a restart or be compared across processes the way sequence ids
// (ack ids, job numbers) do.
func EncodeMessage(msg events.Message) (*message.Message, error) {
	raw, err := yaml.Marshal(map[string]interface{}(msg))
	if err != nil {
		return nil, fmt.Errorf("transport: encode message: %w", err)
	}
	return message.NewMessage(uuid.NewString(), raw), nil
}

// DecodeMessage YAML-decodes a Watermill message.Message payload into an
// events.Message.
func DecodeMessage(wm *message.Message) (events.Message, error) {
	var decoded map[string]interface{}
	if err := yaml.Unmarshal(wm.Payload, &decoded); err != nil {
		return nil, fmt.Errorf("transport: decode message: %w", err)
	}
	return events.Message(decoded), nil
}
