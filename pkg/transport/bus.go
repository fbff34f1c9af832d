// Package transport provides an AMQP-backed pub/sub Bus built on Watermill,
// matching the direct-exchange / routing-key-per-queue contract: every
// publish targets the "message" exchange with its queue name as routing
// key, and every queue is durable so messages survive a broker restart.
//
// Handlers should be idempotent. On failure a message is Nacked and
// redelivered; the bus runs the handler up to 3 times in all, with
// exponential backoff between attempts, before giving up.
//
// OTel context propagation: trace context is injected into message
// metadata on Publish and extracted in Subscribe, enabling end-to-end
// distributed tracing across the supervisor, forwarders, and archive
// controllers.
package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	amqp "github.com/ThreeDotsLabs/watermill-amqp/v2/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/lsst-dm/dmcs/pkg/config"
	"github.com/lsst-dm/dmcs/pkg/logger"
)

const (
	maxRetries      = 3
	retryBaseDelay  = time.Second
	shutdownTimeout = 30 * time.Second
	exchangeName    = "message"
)

// Bus is a direct-exchange AMQP pub/sub transport. Each queue name is
// also its routing key, matching the original broker topology: one
// durable queue per consumer (ocs_dmcs_consume, dmcs_ack_consume,
// dmcs_fault_consume, telemetry_queue, per-device foreman queues, the
// archive controller pair).
type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	log        logger.Logger
	wg         sync.WaitGroup
}

// NewBus dials the broker at brokerURL (as built by BrokerURL from the
// config and its credential file), and wires a Watermill AMQP publisher
// and subscriber against a single durable, named-queue topology (not
// Watermill's default fanout-per-subscriber).
func NewBus(brokerURL string, log logger.Logger) (*Bus, error) {
	wlog := &slogAdapter{log: log}

	amqpConfig := amqp.NewDurableQueueConfig(brokerURL)
	amqpConfig.Exchange = amqp.ExchangeConfig{
		GenerateName: func(topic string) string { return exchangeName },
		Type:         "direct",
		Durable:      true,
	}
	amqpConfig.Queue.GenerateName = func(topic string) string { return topic }
	amqpConfig.QueueBind.GenerateRoutingKey = func(topic string) string { return topic }
	amqpConfig.Publish.GenerateRoutingKey = func(topic string) string { return topic }

	pub, err := amqp.NewPublisher(amqpConfig, wlog)
	if err != nil {
		return nil, fmt.Errorf("transport: new publisher: %w", err)
	}

	sub, err := amqp.NewSubscriber(amqpConfig, wlog)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("transport: new subscriber: %w", err)
	}

	return &Bus{publisher: pub, subscriber: sub, log: log}, nil
}

// BrokerURL resolves credentials (alias-validated against cfg) and
// builds the amqp:// connection string NewBus expects.
func BrokerURL(cfg *config.Config) (string, error) {
	creds, err := config.LoadCredentials(cfg.CredentialFile)
	if err != nil {
		return "", err
	}
	return creds.BrokerURL(cfg.BaseBrokerAddr, cfg.ServiceUser, cfg.ServicePasswd)
}

// Publish sends one or more messages to the named queue. OTel trace
// context from ctx is injected into each message's metadata so the
// receiving subscriber can restore the trace and continue the span tree.
func (b *Bus) Publish(ctx context.Context, queue string, msgs ...*message.Message) error {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	for _, msg := range msgs {
		for k, v := range carrier {
			msg.Metadata.Set(k, v)
		}
	}
	if err := b.publisher.Publish(queue, msgs...); err != nil {
		return fmt.Errorf("transport: publish to %s: %w", queue, err)
	}
	return nil
}

// Subscribe registers handler to process messages from queue
// asynchronously.
//
// Ack/Nack is managed by the bus:
//   - handler returns nil   → Ack (message consumed)
//   - handler returns error → run again, up to 3 attempts in all, waiting 1s then 2s between them
//   - all retries exhausted → Nack + error forwarded to the returned channel
//
// The returned error channel is buffered (capacity 100). Callers must
// drain it. All in-flight handlers complete before Close() returns.
func (b *Bus) Subscribe(ctx context.Context, queue string, handler func(context.Context, *message.Message) error) (<-chan error, error) {
	ch, err := b.subscriber.Subscribe(ctx, queue)
	if err != nil {
		return nil, fmt.Errorf("transport: subscribe to %s: %w", queue, err)
	}

	errCh := make(chan error, 100)
	propagator := otel.GetTextMapPropagator()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer close(errCh)

		for msg := range ch {
			carrier := propagation.MapCarrier{}
			for k, v := range msg.Metadata {
				carrier[k] = v
			}
			msgCtx := propagator.Extract(ctx, carrier)

			if err := retryWithBackoff(msgCtx, msg, handler, maxRetries, retryBaseDelay, b.log); err != nil {
				msg.Nack()
				select {
				case errCh <- err:
				default:
					b.log.ErrorContext(msgCtx, "transport: error channel full, dropping error",
						"error", err, "queue", queue)
				}
			} else {
				msg.Ack()
			}
		}
	}()

	return errCh, nil
}

func retryWithBackoff(
	ctx context.Context,
	msg *message.Message,
	handler func(context.Context, *message.Message) error,
	maxRetries int,
	baseDelay time.Duration,
	log logger.Logger,
) error {
	delay := baseDelay
	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err = handler(ctx, msg); err == nil {
			return nil
		}
		if attempt < maxRetries {
			log.WarnContext(ctx, "transport: handler failed, retrying",
				"attempt", attempt,
				"max_retries", maxRetries,
				"next_delay", delay,
				"error", err,
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}
	return fmt.Errorf("transport: handler failed after %d retries: %w", maxRetries, err)
}

// Ping checks broker connectivity by publishing a zero-length probe
// message to a dedicated health-check queue.
func (b *Bus) Ping(ctx context.Context) error {
	return b.Publish(ctx, "_health_probe", message.NewMessage(watermill.NewUUID(), nil))
}

// Close gracefully shuts down the bus: stop subscriber, wait for
// in-flight handlers (30 s max), then close the publisher.
func (b *Bus) Close() error {
	if err := b.subscriber.Close(); err != nil {
		return fmt.Errorf("transport: close subscriber: %w", err)
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	select {
	case <-done:
	case <-ctx.Done():
		b.log.Error("transport: timed out waiting for in-flight handlers to complete")
	}

	return b.publisher.Close()
}

// slogAdapter bridges logger.Logger to watermill.LoggerAdapter.
type slogAdapter struct{ log logger.Logger }

func (a *slogAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.log.Error(msg, append(fieldsToArgs(fields), "error", err)...)
}
func (a *slogAdapter) Info(msg string, fields watermill.LogFields) {
	a.log.Info(msg, fieldsToArgs(fields)...)
}
func (a *slogAdapter) Debug(msg string, fields watermill.LogFields) {
	a.log.Debug(msg, fieldsToArgs(fields)...)
}
func (a *slogAdapter) Trace(msg string, fields watermill.LogFields) {
	a.log.Debug(msg, fieldsToArgs(fields)...)
}
func (a *slogAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &slogAdapter{log: a.log.With(fieldsToArgs(fields)...)}
}

func fieldsToArgs(fields watermill.LogFields) []any {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return args
}
