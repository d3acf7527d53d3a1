package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/go-logr/logr"

	"github.com/canonical/hydra-operator/api/v1alpha1"
	"github.com/canonical/hydra-operator/internal/events"
	"github.com/canonical/hydra-operator/internal/kv"
	"github.com/canonical/hydra-operator/internal/leadership"
	"github.com/canonical/hydra-operator/internal/workload"
)

func newTestEngine(sup *workload.Fake) (*Engine, kv.Store) {
	store := kv.NewMemoryStore(leadership.Static(true))
	return NewEngine(sup, store, logr.Discard()), store
}

func TestRunStopsBeforeSideEffectsOnFailure(t *testing.T) {
	sup := workload.NewFake()
	engine, _ := newTestEngine(sup)

	in := readyInput()
	in.Connected = false

	v := engine.Run(context.Background(), in, "rendered config")
	if v.Phase != v1alpha1.ServicePhaseWaiting {
		t.Fatalf("Run() = %+v, want Waiting", v)
	}
	if sup.Restarts != 0 {
		t.Errorf("side effects ran on a failing checklist: restarts=%d", sup.Restarts)
	}
}

func TestRunConvergesOnce(t *testing.T) {
	sup := workload.NewFake()
	engine, _ := newTestEngine(sup)
	ctx := context.Background()

	v := engine.Run(ctx, readyInput(), "rendered config")
	if v.Phase != v1alpha1.ServicePhaseActive {
		t.Fatalf("Run() = %+v, want Active", v)
	}
	if sup.Restarts != 1 {
		t.Errorf("restarts = %d, want 1", sup.Restarts)
	}

	// Same config again: checksum matches, no second restart.
	v = engine.Run(ctx, readyInput(), "rendered config")
	if v.Phase != v1alpha1.ServicePhaseActive {
		t.Fatalf("Run() = %+v, want Active", v)
	}
	if sup.Restarts != 1 {
		t.Errorf("restarts = %d after unchanged config, want 1", sup.Restarts)
	}

	// Changed config restarts again.
	v = engine.Run(ctx, readyInput(), "new config")
	if v.Phase != v1alpha1.ServicePhaseActive {
		t.Fatalf("Run() = %+v, want Active", v)
	}
	if sup.Restarts != 2 {
		t.Errorf("restarts = %d after changed config, want 2", sup.Restarts)
	}

	// Config reaches the pod through its mount; the engine never delivers it
	// over container exec.
	if len(sup.Calls) != 0 {
		t.Errorf("converge used container exec: %v", sup.Calls)
	}
}

func TestRunBlockedOnSupervisorFailure(t *testing.T) {
	failing := &restartFailingSupervisor{Fake: workload.NewFake()}
	engine := NewEngine(failing, kv.NewMemoryStore(leadership.Static(true)), logr.Discard())

	v := engine.Run(context.Background(), readyInput(), "rendered config")
	if v.Phase != v1alpha1.ServicePhaseBlocked {
		t.Fatalf("Run() = %+v, want Blocked", v)
	}
	if v.Reason != "failed to start, check logs" {
		t.Errorf("reason = %q", v.Reason)
	}
}

type restartFailingSupervisor struct {
	*workload.Fake
}

func (s *restartFailingSupervisor) Restart(context.Context) error {
	return errors.New("restart rejected")
}

func TestShouldDefer(t *testing.T) {
	for _, typ := range []events.Type{events.TypeDatabaseCreated, events.TypeClientCreated, events.TypeClientChanged} {
		if !ShouldDefer(typ) {
			t.Errorf("ShouldDefer(%s) = false, want true", typ)
		}
	}
	if ShouldDefer(events.Type("update-status")) {
		t.Error("ShouldDefer(update-status) = true, want no-op default")
	}
}
