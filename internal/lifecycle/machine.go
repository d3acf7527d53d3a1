package lifecycle

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/go-logr/logr"

	operrors "github.com/canonical/hydra-operator/internal/errors"
	"github.com/canonical/hydra-operator/internal/events"
	"github.com/canonical/hydra-operator/internal/hydra"
	"github.com/canonical/hydra-operator/internal/workload"
)

// Outcome classifies how the state machine handled a notification.
type Outcome string

const (
	// OutcomeDone means the operation completed and state was updated.
	OutcomeDone Outcome = "done"
	// OutcomeNoOp means nothing needed to happen (idempotent redelivery or
	// policy no-op).
	OutcomeNoOp Outcome = "no-op"
	// OutcomeDeferred means the event was queued for redelivery with zero
	// side effects applied.
	OutcomeDeferred Outcome = "deferred"
	// OutcomeWaiting means a precondition is missing and the event was
	// dropped; a later notification will retry.
	OutcomeWaiting Outcome = "waiting"
	// OutcomeFailed means the external operation failed; state is unchanged.
	OutcomeFailed Outcome = "failed"
)

// ClientAPI is the slice of the hydra CLI the state machine drives.
type ClientAPI interface {
	CreateClient(ctx context.Context, client hydra.Client) (*hydra.Client, error)
	UpdateClient(ctx context.Context, client hydra.Client) (*hydra.Client, error)
	DeleteClient(ctx context.Context, clientID string) (string, error)
}

// CredentialsPublisher propagates minted credentials back to the requesting
// application.
type CredentialsPublisher interface {
	Publish(ctx context.Context, relationID int64, clientID, clientSecret string) error
}

// ClientRequest is the desired client spec carried by a lifecycle
// notification.
type ClientRequest struct {
	RelationID              int64          `json:"relation_id"`
	RedirectURIs            []string       `json:"redirect_uri,omitempty"`
	Scope                   string         `json:"scope,omitempty"`
	GrantTypes              []string       `json:"grant_types,omitempty"`
	Audience                []string       `json:"audience,omitempty"`
	TokenEndpointAuthMethod string         `json:"token_endpoint_auth_method,omitempty"`
	Metadata                map[string]any `json:"metadata,omitempty"`
}

func (r ClientRequest) toClient() hydra.Client {
	// The integration-id entry keys the client back to its relation during
	// sweeps, so it always wins over caller-supplied metadata.
	metadata := make(map[string]any, len(r.Metadata)+1)
	for k, v := range r.Metadata {
		metadata[k] = v
	}
	metadata["integration-id"] = strconv.FormatInt(r.RelationID, 10)

	return hydra.Client{
		RedirectURIs:            r.RedirectURIs,
		Scope:                   r.Scope,
		GrantTypes:              r.GrantTypes,
		Audience:                r.Audience,
		TokenEndpointAuthMethod: r.TokenEndpointAuthMethod,
		Metadata:                metadata,
	}
}

// Machine drives client lifecycle notifications against the registry and the
// workload. All checks that can defer or drop an event run before any side
// effect, so deferral never loses work.
type Machine struct {
	registry   *Registry
	api        ClientAPI
	supervisor workload.Supervisor
	queue      *events.Queue
	publisher  CredentialsPublisher
	log        logr.Logger
}

// NewMachine wires a Machine. publisher may be nil when credential
// propagation is handled elsewhere.
func NewMachine(registry *Registry, api ClientAPI, supervisor workload.Supervisor,
	queue *events.Queue, publisher CredentialsPublisher, log logr.Logger) *Machine {
	return &Machine{
		registry:   registry,
		api:        api,
		supervisor: supervisor,
		queue:      queue,
		publisher:  publisher,
		log:        log.WithName("client-lifecycle"),
	}
}

// HandleClientCreated provisions a client for a new relation. Redelivery
// with an existing registry entry is a no-op: entry presence, not command
// history, gates the create call.
func (m *Machine) HandleClientCreated(ctx context.Context, req ClientRequest) (Outcome, error) {
	if _, ok, err := m.registry.Get(ctx, req.RelationID); err != nil {
		return OutcomeFailed, err
	} else if ok {
		m.log.V(1).Info("client already provisioned", "relationID", req.RelationID)
		return OutcomeNoOp, nil
	}

	if !m.supervisor.Running(ctx) {
		m.deferEvent(events.TypeClientCreated, req)
		return OutcomeDeferred, nil
	}

	created, err := m.api.CreateClient(ctx, req.toClient())
	if err != nil {
		m.log.Error(err, "failed to create oauth client", "relationID", req.RelationID)
		return OutcomeFailed, nil
	}

	entry := Entry{ClientID: created.ClientID, ClientSecret: created.ClientSecret}
	if err := m.registry.Put(ctx, req.RelationID, entry); err != nil {
		return OutcomeFailed, err
	}

	if m.publisher != nil {
		if err := m.publisher.Publish(ctx, req.RelationID, created.ClientID, created.ClientSecret); err != nil {
			m.log.Error(err, "failed to publish client credentials", "relationID", req.RelationID)
		}
	}

	m.log.Info("provisioned oauth client", "relationID", req.RelationID, "clientID", created.ClientID)
	return OutcomeDone, nil
}

// HandleClientChanged updates the provisioned client of a relation to a new
// desired spec.
func (m *Machine) HandleClientChanged(ctx context.Context, req ClientRequest) (Outcome, error) {
	entry, ok, err := m.registry.Get(ctx, req.RelationID)
	if err != nil {
		return OutcomeFailed, err
	}
	if !ok {
		m.log.Info("no provisioned client for relation, waiting for creation", "relationID", req.RelationID)
		return OutcomeWaiting, nil
	}

	if !m.supervisor.Running(ctx) {
		m.deferEvent(events.TypeClientChanged, req)
		return OutcomeDeferred, nil
	}

	desired := req.toClient()
	desired.ClientID = entry.ClientID
	updated, err := m.api.UpdateClient(ctx, desired)
	if err != nil {
		m.log.Error(err, "failed to update oauth client", "relationID", req.RelationID, "clientID", entry.ClientID)
		return OutcomeFailed, nil
	}

	entry.ClientID = updated.ClientID
	if updated.ClientSecret != "" {
		entry.ClientSecret = updated.ClientSecret
	}
	if err := m.registry.Put(ctx, req.RelationID, entry); err != nil {
		return OutcomeFailed, err
	}

	if m.publisher != nil && updated.ClientSecret != "" {
		if err := m.publisher.Publish(ctx, req.RelationID, entry.ClientID, entry.ClientSecret); err != nil {
			m.log.Error(err, "failed to publish client credentials", "relationID", req.RelationID)
		}
	}
	return OutcomeDone, nil
}

// HandleClientDeleted reacts to a relation going away. Current policy keeps
// both the remote client and the registry entry; cleanup happens through the
// reconcile sweep instead.
func (m *Machine) HandleClientDeleted(_ context.Context, relationID int64) (Outcome, error) {
	m.log.Info("relation removed, keeping client until reconcile sweep", "relationID", relationID)
	return OutcomeNoOp, nil
}

// SweepResult summarizes one reconcile sweep.
type SweepResult struct {
	Deleted int
	Failed  int
}

// ReconcileSweep deletes every registry entry whose backing relation is no
// longer live, removing the remote client first. A client already gone on
// the server counts as deleted.
func (m *Machine) ReconcileSweep(ctx context.Context, liveRelations map[int64]bool) (SweepResult, error) {
	ids, entries, err := m.registry.ListAll(ctx)
	if err != nil {
		return SweepResult{}, err
	}

	var result SweepResult
	for _, id := range ids {
		if liveRelations[id] {
			continue
		}

		entry := entries[id]
		if _, err := m.api.DeleteClient(ctx, entry.ClientID); err != nil && !operrors.IsClientNotFound(err) {
			m.log.Error(err, "failed to delete stale oauth client", "relationID", id, "clientID", entry.ClientID)
			result.Failed++
			continue
		}
		if err := m.registry.Remove(ctx, id); err != nil {
			result.Failed++
			continue
		}
		result.Deleted++
		m.log.Info("deleted stale oauth client", "relationID", id, "clientID", entry.ClientID)
	}
	return result, nil
}

func (m *Machine) deferEvent(t events.Type, req ClientRequest) {
	payload, err := json.Marshal(req)
	if err != nil {
		m.log.Error(err, "failed to capture event payload", "type", t, "relationID", req.RelationID)
		return
	}
	m.queue.Defer(events.Event{Type: t, RelationID: req.RelationID, Payload: payload})
	m.log.Info("workload not running, deferred event", "type", t, "relationID", req.RelationID)
}
