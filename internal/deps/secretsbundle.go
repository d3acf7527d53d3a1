package deps

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/canonical/hydra-operator/api/v1alpha1"
	"github.com/canonical/hydra-operator/internal/leadership"
	"github.com/canonical/hydra-operator/internal/secrets"
)

// SecretsBundle is the data source snapshot of both secret families, each
// ordered newest first.
type SecretsBundle struct {
	System []string
	Cookie []string
}

// IsReady reports whether both families hold at least one generation.
func (b SecretsBundle) IsReady() bool {
	return len(b.System) > 0 && len(b.Cookie) > 0
}

// ServiceConfigs contributes the full generation sequences so the workload
// signs with the newest key while still validating older ones.
func (b SecretsBundle) ServiceConfigs() ServiceConfigs {
	return ServiceConfigs{
		"system_secrets": b.System,
		"cookie_secrets": b.Cookie,
	}
}

// LoadSecrets reads both families through a read-only secrets manager.
func (l *Loader) LoadSecrets(ctx context.Context, cr *v1alpha1.HydraService) SecretsBundle {
	manager := secrets.NewManager(l.client, leadership.Static(false), cr.Namespace, cr.Name, logr.Discard())

	bundle := SecretsBundle{}
	var err error
	if bundle.System, err = manager.GetKeys(ctx, secrets.FamilySystem); err != nil {
		l.log.V(1).Info("system secrets unavailable", "error", err.Error())
		return SecretsBundle{}
	}
	if bundle.Cookie, err = manager.GetKeys(ctx, secrets.FamilyCookie); err != nil {
		l.log.V(1).Info("cookie secrets unavailable", "error", err.Error())
		return SecretsBundle{}
	}
	return bundle
}
