package handlers

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
)

// publisher is the narrow slice of transport.Bus the handlers need:
// publishing encoded events onto a named queue. Depending on this
// interface instead of the concrete bus keeps handlers testable without
// a broker.
type publisher interface {
	Publish(ctx context.Context, queue string, msgs ...*message.Message) error
}
