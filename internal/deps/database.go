package deps

import (
	"context"
	"fmt"
	"strings"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/types"

	"github.com/canonical/hydra-operator/api/v1alpha1"
	"github.com/canonical/hydra-operator/internal/constants"
)

// DatabaseConfig is the data source snapshot of the database integration.
// The zero value means the integration is absent or its credentials have not
// been published yet.
type DatabaseConfig struct {
	Endpoint string
	Database string
	Username string
	Password string
	// MigrationVersionKey is the peer data key recording the last migrated
	// workload version for this database integration.
	MigrationVersionKey string
}

// Exists reports whether the database integration is declared at all.
func (c DatabaseConfig) Exists() bool {
	return c.MigrationVersionKey != ""
}

// IsReady reports whether the credentials are complete enough to build a DSN.
func (c DatabaseConfig) IsReady() bool {
	return c.Endpoint != "" && c.Database != "" && c.Username != "" && c.Password != ""
}

// DSN derives the PostgreSQL connection string. Empty when not ready.
func (c DatabaseConfig) DSN() string {
	if !c.IsReady() {
		return ""
	}
	return fmt.Sprintf("postgres://%s:%s@%s/%s", c.Username, c.Password, c.Endpoint, c.Database)
}

// ServiceConfigs contributes the DSN to the rendered configuration.
func (c DatabaseConfig) ServiceConfigs() ServiceConfigs {
	return ServiceConfigs{"dsn": c.DSN()}
}

// LoadDatabase reads the credentials Secret named by the database spec. The
// Secret publishes "endpoint" (a comma-separated list is tolerated, the
// first entry wins), "username" and "password".
func (l *Loader) LoadDatabase(ctx context.Context, cr *v1alpha1.HydraService) DatabaseConfig {
	spec := cr.Spec.Database
	if spec == nil {
		return DatabaseConfig{}
	}

	cfg := DatabaseConfig{
		Database:            spec.Name,
		MigrationVersionKey: constants.MigrationVersionKeyPrefix + spec.CredentialsSecretRef.Name,
	}

	var secret corev1.Secret
	key := types.NamespacedName{Namespace: cr.Namespace, Name: spec.CredentialsSecretRef.Name}
	if err := l.client.Get(ctx, key, &secret); err != nil {
		l.log.V(1).Info("database credentials unavailable", "secret", key.Name, "error", err.Error())
		return cfg
	}

	endpoint := string(secret.Data["endpoint"])
	if endpoint == "" {
		endpoint = string(secret.Data["endpoints"])
	}
	cfg.Endpoint = strings.Split(endpoint, ",")[0]
	cfg.Username = string(secret.Data["username"])
	cfg.Password = string(secret.Data["password"])
	return cfg
}
