// Command supervisor is the DMCS core's long-running consumer process: it
// subscribes to the OCS command, ack, fault, and telemetry queues and
// drives every device and exposure job through its choreography.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lsst-dm/dmcs/pkg/cache"
	"github.com/lsst-dm/dmcs/pkg/config"
	"github.com/lsst-dm/dmcs/pkg/logger"
	"github.com/lsst-dm/dmcs/pkg/telemetry"
	"github.com/lsst-dm/dmcs/pkg/transport"
	"github.com/lsst-dm/dmcs/services/dmcs/application/handlers"
	appservices "github.com/lsst-dm/dmcs/services/dmcs/application/services"
	domainsvc "github.com/lsst-dm/dmcs/services/dmcs/domain/services"
	redisinfra "github.com/lsst-dm/dmcs/services/dmcs/infrastructure/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := config.ValidateForProduction(cfg); err != nil {
		slog.Error("production config validation failed", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg)
	ctx := context.Background()

	otelShutdown, _, err := telemetry.Setup(ctx, cfg)
	if err != nil {
		log.Error("failed to setup otel", "error", err)
		os.Exit(1)
	}
	defer otelShutdown(ctx) //nolint:errcheck

	if err := telemetry.SetupSentry(cfg); err != nil {
		log.Warn("failed to setup sentry, continuing without crash reporting", "error", err)
	}
	defer telemetry.SentryFlush()

	redisClient, err := cache.NewRedisClient(cfg)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1) //nolint:gocritic
	}
	defer redisClient.Close() //nolint:errcheck
	log.Info("redis connected")

	brokerURL, err := transport.BrokerURL(cfg)
	if err != nil {
		log.Error("failed to resolve broker credentials", "error", err)
		os.Exit(1) //nolint:gocritic
	}
	bus, err := transport.NewBus(brokerURL, log)
	if err != nil {
		log.Error("failed to connect to message bus", "error", err)
		os.Exit(1) //nolint:gocritic
	}
	defer bus.Close() //nolint:errcheck
	log.Info("message bus connected")

	client := redisClient.Client()
	states := redisinfra.NewStateStore(client)
	jobs := redisinfra.NewJobStore(client)
	acksStore := redisinfra.NewAckStore(client)
	forwarders := redisinfra.NewForwarderStore(client)
	sequences, err := redisinfra.NewSequenceStore(ctx, client)
	if err != nil {
		log.Error("failed to seed sequence counters", "error", err)
		os.Exit(1) //nolint:gocritic
	}
	for _, counter := range []string{"SESSION_SEQUENCE_NUM", "JOB_SEQUENCE_NUM", "ACK_SEQUENCE_NUM", "RECEIPT_SEQUENCE_NUM"} {
		if err := sequences.SkipAhead(ctx, counter, 10); err != nil {
			log.Error("failed to bump sequence counters", "error", err)
			os.Exit(1) //nolint:gocritic
		}
	}

	deviceStates := appservices.NewDeviceStateService(states, log)
	ackCoord := appservices.NewAckCoordinator(acksStore, log)
	archiveCfg := appservices.ArchiveConfig{Login: cfg.ArchiveLogin, IP: cfg.ArchiveIP, XferRoot: cfg.ArchiveXferRoot}
	exposures := appservices.NewExposureOrchestrator(jobs, forwarders, sequences, ackCoord, bus, log, "ARCHIVER", archiveCfg)

	authority := domainsvc.NewMessageAuthority(domainsvc.DefaultMessageShapes())
	commandHandler := handlers.NewCommandHandler(authority, deviceStates, sequences, bus, log)
	ackHandler := handlers.NewAckHandler(ackCoord, log)
	faultHandler := handlers.NewFaultHandler(deviceStates, bus, log)
	telemetryHandler, err := handlers.NewTelemetryHandler(log)
	if err != nil {
		log.Error("failed to set up telemetry handler", "error", err)
		os.Exit(1) //nolint:gocritic
	}
	nextVisitHandler := handlers.NewNextVisitHandler(exposures, sequences, sequences, bus, log)
	exposureEventHandler := handlers.NewExposureEventHandler(jobs, exposures, bus, log)
	commandRouter := handlers.NewCommandRouter(commandHandler, nextVisitHandler, exposureEventHandler)

	supervisor := appservices.NewSupervisor(log, bus, ackCoord)
	routes := appservices.DefaultRoutes(commandRouter.Handle, ackHandler.Handle, faultHandler.Handle, telemetryHandler.Handle)
	if err := supervisor.Start(ctx, routes); err != nil {
		log.Error("failed to start supervisor", "error", err)
		os.Exit(1) //nolint:gocritic
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down supervisor...")
	supervisor.Stop()
	// bus.Close() (via defer) waits up to 30s for in-flight handlers.
	log.Info("supervisor stopped")
}
