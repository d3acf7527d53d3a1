// Package reconcile holds the holistic reconciliation engine: an ordered,
// fail-fast checklist that turns a dependency snapshot into a status
// verdict, and the converge step that restarts the workload onto changed
// configuration once every check passes.
package reconcile

import (
	"github.com/canonical/hydra-operator/api/v1alpha1"
	"github.com/canonical/hydra-operator/internal/constants"
	"github.com/canonical/hydra-operator/internal/deps"
)

// Verdict is the status outcome of an evaluation.
type Verdict struct {
	Phase  v1alpha1.ServicePhase
	Reason string
}

// Active is the verdict of a fully converged service.
var Active = Verdict{Phase: v1alpha1.ServicePhaseActive}

func waiting(reason string) *Verdict {
	return &Verdict{Phase: v1alpha1.ServicePhaseWaiting, Reason: reason}
}

func blocked(reason string) *Verdict {
	return &Verdict{Phase: v1alpha1.ServicePhaseBlocked, Reason: reason}
}

// Input is everything the checklist looks at. It is assembled once per
// evaluation so every check sees the same world.
type Input struct {
	// Connected reports whether the workload container is reachable.
	Connected bool
	// DevMode relaxes the HTTPS requirement on the public ingress.
	DevMode bool
	// Snapshot is the loaded dependency state.
	Snapshot deps.Snapshot
	// WorkloadVersion is the version the hydra binary reports, when known.
	WorkloadVersion string
	// MigratedVersion is the version the schema was last migrated for,
	// empty when no migration record exists.
	MigratedVersion string
}

// Check is one named readiness predicate. Eval returns nil when the check
// passes and the failure verdict otherwise.
type Check struct {
	Name string
	Eval func(Input) *Verdict
}

// Checklist is the ordered readiness chain. Evaluation is fail-fast: the
// first failing check decides the verdict and later checks never run.
var Checklist = []Check{
	{
		Name: "container-connected",
		Eval: func(in Input) *Verdict {
			if !in.Connected {
				return waiting("container is not connected yet")
			}
			return nil
		},
	},
	{
		Name: "database-integration-exists",
		Eval: func(in Input) *Verdict {
			if !in.Snapshot.Database.Exists() {
				return blocked("missing integration " + constants.DatabaseIntegrationName)
			}
			return nil
		},
	},
	{
		Name: "public-ingress-ready",
		Eval: func(in Input) *Verdict {
			if !in.Snapshot.PublicIngress.Exists {
				return blocked("missing integration " + constants.PublicIngressIntegrationName)
			}
			if !in.Snapshot.PublicIngress.IsReady() {
				return waiting("waiting for ingress readiness")
			}
			return nil
		},
	},
	{
		Name: "public-ingress-secured",
		Eval: func(in Input) *Verdict {
			if in.DevMode {
				return nil
			}
			if !in.Snapshot.PublicIngress.Secured() {
				return blocked("public endpoint requires HTTPS, secure the ingress or enable dev mode")
			}
			return nil
		},
	},
	{
		Name: "database-created",
		Eval: func(in Input) *Verdict {
			if !in.Snapshot.Database.IsReady() {
				return waiting("waiting for database creation")
			}
			return nil
		},
	},
	{
		Name: "migration-applied",
		Eval: func(in Input) *Verdict {
			if in.MigratedVersion == "" || in.MigratedVersion != in.WorkloadVersion {
				return waiting("waiting for migration, run the run-migration action")
			}
			return nil
		},
	},
	{
		Name: "secrets-ready",
		Eval: func(in Input) *Verdict {
			if !in.Snapshot.Secrets.IsReady() {
				return waiting("waiting for secrets creation")
			}
			return nil
		},
	},
	{
		Name: "login-ui-ready",
		Eval: func(in Input) *Verdict {
			if !in.Snapshot.LoginUI.IsReady() {
				return waiting("waiting for login UI")
			}
			return nil
		},
	},
}

// Evaluate folds the checklist over in: the first failing check decides.
func Evaluate(in Input) Verdict {
	for _, check := range Checklist {
		if v := check.Eval(in); v != nil {
			return *v
		}
	}
	return Active
}
