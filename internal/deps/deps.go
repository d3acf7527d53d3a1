// Package deps loads immutable snapshots of every external dependency the
// workload needs: database credentials, ingress routes, login UI endpoints,
// tracing, the token hook and secret material. Loading is total: a missing or
// malformed dependency never fails a load, it degrades to a not-ready
// snapshot. Readiness decisions belong to the reconciliation engine, not to
// the loaders.
package deps

import (
	"context"

	"github.com/go-logr/logr"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/canonical/hydra-operator/api/v1alpha1"
)

// ServiceConfigs is one source's contribution to the rendered config file.
// Contributions are merged left to right; later sources win on collision.
type ServiceConfigs map[string]any

// EnvVars is one source's contribution to the workload environment.
type EnvVars map[string]string

// DefaultContainerEnv seeds the workload environment before contributions
// are merged in.
var DefaultContainerEnv = EnvVars{
	"TRACING_ENABLED": "false",
}

// Snapshot is a consistent view of all dependencies at one point in time.
type Snapshot struct {
	Database        DatabaseConfig
	PublicIngress   IngressConfig
	InternalIngress IngressConfig
	LoginUI         LoginUIEndpoints
	Tracing         TracingConfig
	TokenHook       TokenHookConfig
	Secrets         SecretsBundle
}

// Loader assembles snapshots from the cluster.
type Loader struct {
	client client.Client
	log    logr.Logger
}

// NewLoader returns a Loader reading through c.
func NewLoader(c client.Client, log logr.Logger) *Loader {
	return &Loader{client: c, log: log.WithName("deps")}
}

// Load reads every dependency of cr. It never fails; unavailable
// dependencies come back not ready.
func (l *Loader) Load(ctx context.Context, cr *v1alpha1.HydraService) Snapshot {
	return Snapshot{
		Database:        l.LoadDatabase(ctx, cr),
		PublicIngress:   l.LoadIngress(ctx, cr, cr.Spec.PublicIngress, false),
		InternalIngress: l.LoadIngress(ctx, cr, cr.Spec.InternalIngress, true),
		LoginUI:         l.LoadLoginUI(ctx, cr),
		Tracing:         l.LoadTracing(ctx, cr),
		TokenHook:       l.LoadTokenHook(ctx, cr),
		Secrets:         l.LoadSecrets(ctx, cr),
	}
}

// MergeServiceConfigs folds contributions into one config map, later sources
// overriding earlier ones.
func MergeServiceConfigs(sources ...ServiceConfigs) ServiceConfigs {
	merged := ServiceConfigs{}
	for _, source := range sources {
		for k, v := range source {
			merged[k] = v
		}
	}
	return merged
}

// MergeEnvVars folds environment contributions on top of the defaults.
func MergeEnvVars(sources ...EnvVars) EnvVars {
	merged := EnvVars{}
	for k, v := range DefaultContainerEnv {
		merged[k] = v
	}
	for _, source := range sources {
		for k, v := range source {
			merged[k] = v
		}
	}
	return merged
}
