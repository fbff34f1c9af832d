package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/lsst-dm/dmcs/pkg/logger"
	"github.com/lsst-dm/dmcs/pkg/transport"
	"github.com/lsst-dm/dmcs/services/dmcs/domain"
	"github.com/lsst-dm/dmcs/services/dmcs/domain/events"
)

// Supervisor drives the DMCS core's consumer lifecycle: it subscribes
// every handler to its queue, starts the background ack sweeper, and
// enforces a single running instance per process, mirroring the original
// source's single-daemon-per-device-type guard (only one ArchiveDevice
// process may own a given foreman queue at a time).
type Supervisor struct {
	Logger logger.Logger
	Bus    *transport.Bus

	acks *AckCoordinator

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// NewSupervisor returns a Supervisor wired to bus and the ack coordinator
// that backs its background sweeper.
func NewSupervisor(log logger.Logger, bus *transport.Bus, acks *AckCoordinator) *Supervisor {
	return &Supervisor{Logger: log, Bus: bus, acks: acks}
}

// Start subscribes each route's handler to its queue and begins
// consuming, plus starts the ack sweeper. It refuses to run twice
// concurrently in the same process.
func (s *Supervisor) Start(ctx context.Context, routes map[string]func(context.Context, *message.Message) error) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("supervisor: %w", domain.ErrOrchestratorAlreadyRunning)
	}
	s.running = true
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	queues := make([]string, 0, len(routes))
	for queue, handler := range routes {
		errCh, err := s.Bus.Subscribe(runCtx, queue, handler)
		if err != nil {
			cancel()
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
			return fmt.Errorf("supervisor: subscribe %s: %w", queue, err)
		}
		queues = append(queues, queue)
		go s.drainErrors(runCtx, queue, errCh)
	}

	go s.acks.RunSweeper(runCtx)

	s.Logger.InfoContext(ctx, "supervisor: consumer loop started", "queues", queues)
	return nil
}

// Stop cancels every subscription and the background sweeper, then
// releases the single-instance guard.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.running = false
}

func (s *Supervisor) drainErrors(ctx context.Context, queue string, errCh <-chan error) {
	for err := range errCh {
		s.Logger.ErrorContext(ctx, "supervisor: handler error", "queue", queue, "error", err)
	}
}

// DefaultRoutes builds the production queue -> handler map: OCS commands,
// fault reports, and telemetry each land on their own durable queue; ack
// replies are consumed from both the DMCS ack queue and the archiver
// foreman's ack-publish queue.
func DefaultRoutes(
	onCommand, onAck, onFault, onTelemetry func(context.Context, *message.Message) error,
) map[string]func(context.Context, *message.Message) error {
	return map[string]func(context.Context, *message.Message) error{
		events.QueueOCSConsume:     onCommand,
		events.QueueAckConsume:     onAck,
		events.QueueArchiverAckPub: onAck,
		events.QueueFaultConsume:   onFault,
		events.QueueTelemetry:      onTelemetry,
	}
}
