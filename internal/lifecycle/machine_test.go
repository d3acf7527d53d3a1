package lifecycle

import (
	"context"
	"fmt"
	"testing"

	"github.com/go-logr/logr"

	operrors "github.com/canonical/hydra-operator/internal/errors"
	"github.com/canonical/hydra-operator/internal/events"
	"github.com/canonical/hydra-operator/internal/hydra"
	"github.com/canonical/hydra-operator/internal/kv"
	"github.com/canonical/hydra-operator/internal/leadership"
	"github.com/canonical/hydra-operator/internal/workload"
)

type fakeAPI struct {
	creates    int
	updates    int
	deletes    []string
	failWith   error
	nextID     int
	notFound   map[string]bool
	secretVal  string
	lastCreate hydra.Client
}

func (f *fakeAPI) CreateClient(_ context.Context, client hydra.Client) (*hydra.Client, error) {
	f.creates++
	f.lastCreate = client
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.nextID++
	secret := f.secretVal
	if secret == "" {
		secret = "generated-secret"
	}
	return &hydra.Client{ClientID: fmt.Sprintf("client-%d", f.nextID), ClientSecret: secret}, nil
}

func (f *fakeAPI) UpdateClient(_ context.Context, client hydra.Client) (*hydra.Client, error) {
	f.updates++
	if f.failWith != nil {
		return nil, f.failWith
	}
	return &hydra.Client{ClientID: client.ClientID}, nil
}

func (f *fakeAPI) DeleteClient(_ context.Context, clientID string) (string, error) {
	f.deletes = append(f.deletes, clientID)
	if f.notFound[clientID] {
		return "", fmt.Errorf("client %s: %w", clientID, operrors.ErrClientNotFound)
	}
	if f.failWith != nil {
		return "", f.failWith
	}
	return clientID, nil
}

type recordingPublisher struct {
	published map[int64]string
}

func (p *recordingPublisher) Publish(_ context.Context, relationID int64, clientID, _ string) error {
	if p.published == nil {
		p.published = map[int64]string{}
	}
	p.published[relationID] = clientID
	return nil
}

func newTestMachine(api *fakeAPI, running bool) (*Machine, *Registry, *events.Queue, *recordingPublisher) {
	registry := NewRegistry(kv.NewMemoryStore(leadership.Static(true)))
	queue := events.NewQueue()
	publisher := &recordingPublisher{}
	supervisor := workload.NewFake()
	supervisor.RunningVal = running
	m := NewMachine(registry, api, supervisor, queue, publisher, logr.Discard())
	return m, registry, queue, publisher
}

func TestClientCreatedProvisionsOnce(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{}
	m, registry, _, publisher := newTestMachine(api, true)

	req := ClientRequest{RelationID: 3, RedirectURIs: []string{"https://app/cb"}, Scope: "openid"}

	outcome, err := m.HandleClientCreated(ctx, req)
	if err != nil || outcome != OutcomeDone {
		t.Fatalf("first delivery = (%s, %v), want done", outcome, err)
	}

	// Redelivery is a no-op gated by entry presence.
	outcome, err = m.HandleClientCreated(ctx, req)
	if err != nil || outcome != OutcomeNoOp {
		t.Fatalf("second delivery = (%s, %v), want no-op", outcome, err)
	}

	if api.creates != 1 {
		t.Errorf("CreateClient called %d times, want 1", api.creates)
	}
	entry, ok, err := registry.Get(ctx, 3)
	if err != nil || !ok {
		t.Fatalf("registry entry missing: %v", err)
	}
	if entry.ClientID != "client-1" || entry.ClientSecret != "generated-secret" {
		t.Errorf("entry = %+v", entry)
	}
	if publisher.published[3] != "client-1" {
		t.Errorf("credentials not published: %v", publisher.published)
	}
}

func TestClientCreatedCarriesMetadata(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{}
	m, _, _, _ := newTestMachine(api, true)

	outcome, err := m.HandleClientCreated(ctx, ClientRequest{
		RelationID: 5,
		Metadata:   map[string]any{"team": "identity", "integration-id": "spoofed"},
	})
	if err != nil || outcome != OutcomeDone {
		t.Fatalf("outcome = (%s, %v), want done", outcome, err)
	}

	if api.lastCreate.Metadata["team"] != "identity" {
		t.Errorf("requested metadata dropped: %v", api.lastCreate.Metadata)
	}
	// The relation marker always wins so sweeps can trace the client back.
	if api.lastCreate.Metadata["integration-id"] != "5" {
		t.Errorf("integration-id = %v, want 5", api.lastCreate.Metadata["integration-id"])
	}
}

func TestClientRequestWithoutMetadataStampsIntegrationID(t *testing.T) {
	c := ClientRequest{RelationID: 7}.toClient()
	if len(c.Metadata) != 1 || c.Metadata["integration-id"] != "7" {
		t.Errorf("metadata = %v, want only integration-id=7", c.Metadata)
	}
}

func TestClientCreatedDefersWhenNotRunning(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{}
	m, registry, queue, _ := newTestMachine(api, false)

	outcome, err := m.HandleClientCreated(ctx, ClientRequest{RelationID: 7})
	if err != nil || outcome != OutcomeDeferred {
		t.Fatalf("outcome = (%s, %v), want deferred", outcome, err)
	}

	// Zero side effects before the defer decision.
	if api.creates != 0 {
		t.Errorf("CreateClient called %d times, want 0", api.creates)
	}
	if _, ok, _ := registry.Get(ctx, 7); ok {
		t.Error("registry mutated by a deferred event")
	}
	if !queue.Has(events.TypeClientCreated, 7) {
		t.Error("event not present in deferred queue")
	}
}

func TestClientCreatedFailureLeavesNoEntry(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{failWith: &operrors.ExecError{ExitCode: 1, Stderr: "boom"}}
	m, registry, _, _ := newTestMachine(api, true)

	outcome, err := m.HandleClientCreated(ctx, ClientRequest{RelationID: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeFailed {
		t.Fatalf("outcome = %s, want failed", outcome)
	}
	if _, ok, _ := registry.Get(ctx, 2); ok {
		t.Error("registry entry written despite create failure")
	}
}

func TestClientChangedRequiresEntry(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{}
	m, _, _, _ := newTestMachine(api, true)

	outcome, err := m.HandleClientChanged(ctx, ClientRequest{RelationID: 9})
	if err != nil || outcome != OutcomeWaiting {
		t.Fatalf("outcome = (%s, %v), want waiting", outcome, err)
	}
	if api.updates != 0 {
		t.Errorf("UpdateClient called %d times, want 0", api.updates)
	}
}

func TestClientChangedUpdates(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{}
	m, registry, _, _ := newTestMachine(api, true)

	if _, err := m.HandleClientCreated(ctx, ClientRequest{RelationID: 3}); err != nil {
		t.Fatalf("seeding entry: %v", err)
	}

	outcome, err := m.HandleClientChanged(ctx, ClientRequest{
		RelationID:   3,
		RedirectURIs: []string{"https://app/new-cb"},
	})
	if err != nil || outcome != OutcomeDone {
		t.Fatalf("outcome = (%s, %v), want done", outcome, err)
	}
	if api.updates != 1 {
		t.Errorf("UpdateClient called %d times, want 1", api.updates)
	}

	// Secret survives an update that does not return one.
	entry, _, _ := registry.Get(ctx, 3)
	if entry.ClientSecret != "generated-secret" {
		t.Errorf("secret lost on update: %+v", entry)
	}
}

func TestClientChangedDefersWhenNotRunning(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{}
	m, registry, queue, _ := newTestMachine(api, true)

	if _, err := m.HandleClientCreated(ctx, ClientRequest{RelationID: 3}); err != nil {
		t.Fatalf("seeding entry: %v", err)
	}
	m.supervisor.(*workload.Fake).RunningVal = false

	outcome, err := m.HandleClientChanged(ctx, ClientRequest{RelationID: 3})
	if err != nil || outcome != OutcomeDeferred {
		t.Fatalf("outcome = (%s, %v), want deferred", outcome, err)
	}
	if api.updates != 0 {
		t.Errorf("UpdateClient called %d times, want 0", api.updates)
	}
	if !queue.Has(events.TypeClientChanged, 3) {
		t.Error("event not present in deferred queue")
	}

	entry, _, _ := registry.Get(ctx, 3)
	if entry.ClientID != "client-1" {
		t.Errorf("registry mutated by deferred event: %+v", entry)
	}
}

func TestClientDeletedIsNoOp(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{}
	m, registry, _, _ := newTestMachine(api, true)

	if _, err := m.HandleClientCreated(ctx, ClientRequest{RelationID: 3}); err != nil {
		t.Fatalf("seeding entry: %v", err)
	}

	outcome, err := m.HandleClientDeleted(ctx, 3)
	if err != nil || outcome != OutcomeNoOp {
		t.Fatalf("outcome = (%s, %v), want no-op", outcome, err)
	}
	if len(api.deletes) != 0 {
		t.Errorf("DeleteClient called %v, want none", api.deletes)
	}
	if _, ok, _ := registry.Get(ctx, 3); !ok {
		t.Error("registry entry removed by client-deleted")
	}
}

func TestReconcileSweepDeletesStaleEntries(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{}
	m, registry, _, _ := newTestMachine(api, true)

	for _, id := range []int64{1, 2, 3, 4} {
		if _, err := m.HandleClientCreated(ctx, ClientRequest{RelationID: id}); err != nil {
			t.Fatalf("seeding entry %d: %v", id, err)
		}
	}

	// Relation 4 is still live; 1, 2, 3 are stale.
	result, err := m.ReconcileSweep(ctx, map[int64]bool{4: true})
	if err != nil {
		t.Fatalf("ReconcileSweep() error: %v", err)
	}
	if result.Deleted != 3 || result.Failed != 0 {
		t.Errorf("sweep result = %+v, want 3 deleted", result)
	}
	if len(api.deletes) != 3 {
		t.Errorf("DeleteClient called %d times, want 3", len(api.deletes))
	}

	ids, _, err := registry.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll() error: %v", err)
	}
	if len(ids) != 1 || ids[0] != 4 {
		t.Errorf("remaining entries = %v, want [4]", ids)
	}
}

func TestReconcileSweepTreatsNotFoundAsDeleted(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{notFound: map[string]bool{"client-1": true}}
	m, registry, _, _ := newTestMachine(api, true)

	if _, err := m.HandleClientCreated(ctx, ClientRequest{RelationID: 1}); err != nil {
		t.Fatalf("seeding entry: %v", err)
	}

	result, err := m.ReconcileSweep(ctx, map[int64]bool{})
	if err != nil {
		t.Fatalf("ReconcileSweep() error: %v", err)
	}
	if result.Deleted != 1 || result.Failed != 0 {
		t.Errorf("sweep result = %+v, want 1 deleted", result)
	}
	if _, ok, _ := registry.Get(ctx, 1); ok {
		t.Error("stale entry kept after sweep")
	}
}

func TestAllocateRelationIDSequence(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry(kv.NewMemoryStore(leadership.Static(true)))

	for want := int64(1); want <= 3; want++ {
		got, err := registry.AllocateRelationID(ctx)
		if err != nil {
			t.Fatalf("AllocateRelationID() error: %v", err)
		}
		if got != want {
			t.Errorf("AllocateRelationID() = %d, want %d", got, want)
		}
	}
}

func TestAllocateRelationIDNonLeader(t *testing.T) {
	registry := NewRegistry(kv.NewMemoryStore(leadership.Static(false)))

	if _, err := registry.AllocateRelationID(context.Background()); err == nil {
		t.Fatal("expected error allocating an id as non-leader")
	}
}
