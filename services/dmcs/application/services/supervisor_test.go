package services

import (
	"context"
	"errors"
	"testing"

	"github.com/lsst-dm/dmcs/services/dmcs/domain"
)

func TestSupervisor_Start_RefusesSecondInstance(t *testing.T) {
	sup := &Supervisor{Logger: testLogger(), running: true}

	err := sup.Start(context.Background(), nil)
	if !errors.Is(err, domain.ErrOrchestratorAlreadyRunning) {
		t.Fatalf("expected ErrOrchestratorAlreadyRunning, got %v", err)
	}
}

func TestSupervisor_Stop_IsNoOpWhenNotRunning(t *testing.T) {
	sup := &Supervisor{Logger: testLogger()}
	sup.Stop() // must not panic
}
