// Package actions implements the administrative operations an operator can
// invoke against a managed service: migrations, manual OAuth client CRUD,
// key rotation, secret management and the stale-client reconcile sweep.
// Every action that needs the workload fails with a short readable message
// when it is not ready, instead of surfacing a transport error.
package actions

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/canonical/hydra-operator/internal/deps"
	operrors "github.com/canonical/hydra-operator/internal/errors"
	"github.com/canonical/hydra-operator/internal/hydra"
	"github.com/canonical/hydra-operator/internal/kv"
	"github.com/canonical/hydra-operator/internal/lifecycle"
	"github.com/canonical/hydra-operator/internal/secrets"
	"github.com/canonical/hydra-operator/internal/workload"
)

// ErrNotReady is returned when an action needs the workload and it is not
// running. The message is meant for humans.
var ErrNotReady = errors.New("service is not ready, try again later")

// Runner executes administrative actions for one service instance.
type Runner struct {
	cli        *hydra.CLI
	supervisor workload.Supervisor
	machine    *lifecycle.Machine
	registry   *lifecycle.Registry
	secrets    *secrets.Manager
	store      kv.Store
	log        logr.Logger
}

// NewRunner wires a Runner.
func NewRunner(cli *hydra.CLI, supervisor workload.Supervisor, machine *lifecycle.Machine,
	registry *lifecycle.Registry, secretMgr *secrets.Manager, store kv.Store, log logr.Logger) *Runner {
	return &Runner{
		cli:        cli,
		supervisor: supervisor,
		machine:    machine,
		registry:   registry,
		secrets:    secretMgr,
		store:      store,
		log:        log.WithName("actions"),
	}
}

func (r *Runner) ensureRunning(ctx context.Context) error {
	if !r.supervisor.Running(ctx) {
		return ErrNotReady
	}
	return nil
}

// RunMigration applies the database migration plan and records the migrated
// workload version under the integration's migration key.
func (r *Runner) RunMigration(ctx context.Context, db deps.DatabaseConfig) (string, error) {
	if !r.supervisor.Connected(ctx) {
		return "", ErrNotReady
	}
	if !db.IsReady() {
		return "", fmt.Errorf("database is not available yet")
	}

	if err := r.cli.Migrate(ctx, db.DSN()); err != nil {
		return "", fmt.Errorf("migration failed: %w", err)
	}

	version, err := r.cli.Version(ctx)
	if err != nil {
		return "", fmt.Errorf("migration applied but version unknown: %w", err)
	}
	if err := r.store.Put(ctx, db.MigrationVersionKey, version); err != nil {
		return "", fmt.Errorf("recording migration version: %w", err)
	}

	r.log.Info("database migrated", "version", version)
	return version, nil
}

// CreateOAuthClient registers a client outside the integration protocol.
func (r *Runner) CreateOAuthClient(ctx context.Context, client hydra.Client) (*hydra.Client, error) {
	if err := r.ensureRunning(ctx); err != nil {
		return nil, err
	}
	return r.cli.CreateClient(ctx, client)
}

// GetOAuthClientInfo fetches a client record by id.
func (r *Runner) GetOAuthClientInfo(ctx context.Context, clientID string) (*hydra.Client, error) {
	if err := r.ensureRunning(ctx); err != nil {
		return nil, err
	}

	client, err := r.cli.GetClient(ctx, clientID)
	if err != nil {
		if operrors.IsClientNotFound(err) {
			return nil, fmt.Errorf("no such client: %s", clientID)
		}
		return nil, err
	}
	return client, nil
}

// UpdateOAuthClient replaces the spec of a manually managed client.
// Integration-managed clients are refused; their spec belongs to the
// requesting application.
func (r *Runner) UpdateOAuthClient(ctx context.Context, client hydra.Client) (*hydra.Client, error) {
	if err := r.ensureRunning(ctx); err != nil {
		return nil, err
	}

	existing, err := r.cli.GetClient(ctx, client.ClientID)
	if err != nil {
		if operrors.IsClientNotFound(err) {
			return nil, fmt.Errorf("no such client: %s", client.ClientID)
		}
		return nil, err
	}
	if existing.ManagedByIntegration() {
		return nil, fmt.Errorf("client %s is managed by an integration and cannot be updated manually", client.ClientID)
	}

	return r.cli.UpdateClient(ctx, client)
}

// DeleteOAuthClient removes a manually managed client.
func (r *Runner) DeleteOAuthClient(ctx context.Context, clientID string) (string, error) {
	if err := r.ensureRunning(ctx); err != nil {
		return "", err
	}

	existing, err := r.cli.GetClient(ctx, clientID)
	if err != nil {
		if operrors.IsClientNotFound(err) {
			return "", fmt.Errorf("no such client: %s", clientID)
		}
		return "", err
	}
	if existing.ManagedByIntegration() {
		return "", fmt.Errorf("client %s is managed by an integration, remove the integration instead", clientID)
	}

	return r.cli.DeleteClient(ctx, clientID)
}

// ListOAuthClients returns every registered client.
func (r *Runner) ListOAuthClients(ctx context.Context) ([]hydra.Client, error) {
	if err := r.ensureRunning(ctx); err != nil {
		return nil, err
	}
	return r.cli.ListClients(ctx)
}

// RevokeOAuthClientAccessTokens invalidates all access tokens of a client.
func (r *Runner) RevokeOAuthClientAccessTokens(ctx context.Context, clientID string) (string, error) {
	if err := r.ensureRunning(ctx); err != nil {
		return "", err
	}

	revoked, err := r.cli.DeleteAccessTokens(ctx, clientID)
	if err != nil {
		if operrors.IsClientNotFound(err) {
			return "", fmt.Errorf("no such client: %s", clientID)
		}
		return "", err
	}
	return revoked, nil
}

// RotateKey mints a new JSON Web Key in the given set.
func (r *Runner) RotateKey(ctx context.Context, keySetID, algorithm string) (string, error) {
	if err := r.ensureRunning(ctx); err != nil {
		return "", err
	}
	return r.cli.CreateKey(ctx, keySetID, algorithm)
}

// ReconcileOAuthClients sweeps registry entries whose backing relation is
// gone, deleting the corresponding clients.
func (r *Runner) ReconcileOAuthClients(ctx context.Context, liveRelations map[int64]bool) (lifecycle.SweepResult, error) {
	if err := r.ensureRunning(ctx); err != nil {
		return lifecycle.SweepResult{}, err
	}
	return r.machine.ReconcileSweep(ctx, liveRelations)
}

// AddSecretKey appends a new generation to a secret family. Works without
// the workload; the next converge picks it up.
func (r *Runner) AddSecretKey(ctx context.Context, family secrets.Family, key string) error {
	return r.secrets.AddKey(ctx, family, key)
}

// GetSecretKeys returns the generations of a secret family, newest first.
func (r *Runner) GetSecretKeys(ctx context.Context, family secrets.Family) ([]string, error) {
	return r.secrets.GetKeys(ctx, family)
}
