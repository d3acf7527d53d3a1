package reconcile

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/canonical/hydra-operator/internal/config"
	"github.com/canonical/hydra-operator/internal/constants"
	"github.com/canonical/hydra-operator/internal/events"
	"github.com/canonical/hydra-operator/internal/kv"
	"github.com/canonical/hydra-operator/internal/workload"
)

// Engine runs a full holistic pass: the read-only checklist first, then, and
// only then, the convergence side effects.
type Engine struct {
	supervisor workload.Supervisor
	store      kv.Store
	log        logr.Logger
}

// NewEngine wires an Engine.
func NewEngine(supervisor workload.Supervisor, store kv.Store, log logr.Logger) *Engine {
	return &Engine{supervisor: supervisor, store: store, log: log.WithName("reconcile")}
}

// Run evaluates the checklist and converges the workload configuration when
// every check passes. rendered is the configuration content already mounted
// into the pod by the infrastructure manager; the engine only decides whether
// a restart is needed to pick it up. The checklist portion is side-effect
// free; only a passing evaluation reaches the restart path.
func (e *Engine) Run(ctx context.Context, in Input, rendered string) Verdict {
	if v := Evaluate(in); v.Phase != Active.Phase {
		return v
	}

	checksum := config.Checksum(rendered)
	stored, _, err := e.store.Get(ctx, constants.ConfigChecksumKey)
	if err != nil {
		// An unreadable checksum means we cannot prove the running pods have
		// the current config; restart again, the operation is idempotent.
		e.log.Error(err, "failed to read config checksum")
	}
	if stored == checksum {
		return Active
	}

	if err := e.supervisor.Restart(ctx); err != nil {
		e.log.Error(err, "failed to restart workload")
		return *blocked("failed to start, check logs")
	}
	if err := e.store.Put(ctx, constants.ConfigChecksumKey, checksum); err != nil {
		e.log.Error(err, "failed to record config checksum")
	}

	e.log.Info("workload configuration converged", "checksum", checksum)
	return Active
}

// EventPolicy decides what happens to an event observed while the container
// is unreachable: deferred for redelivery, or dropped as a no-op because a
// later holistic pass re-derives everything it would have done.
type EventPolicy struct {
	Type  events.Type
	Defer bool
}

// EventPolicies is ordered most-specific first; the first matching entry
// decides. Unlisted event types default to no-op since holistic passes are
// re-entrant.
var EventPolicies = []EventPolicy{
	{Type: events.TypeDatabaseCreated, Defer: true},
	{Type: events.TypeClientCreated, Defer: true},
	{Type: events.TypeClientChanged, Defer: true},
}

// ShouldDefer reports whether an event of type t must be deferred when the
// container is unreachable.
func ShouldDefer(t events.Type) bool {
	for _, policy := range EventPolicies {
		if policy.Type == t {
			return policy.Defer
		}
	}
	return false
}
