// Package lifecycle implements the OAuth client provisioning protocol: the
// registry mapping relation identities to client records, and the state
// machine reacting to client lifecycle notifications.
package lifecycle

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/canonical/hydra-operator/internal/constants"
	"github.com/canonical/hydra-operator/internal/kv"
)

// Entry is one registry record: the provisioned client identity of a
// relation. Either the secret itself or a reference to where it is stored is
// set, never both.
type Entry struct {
	ClientID string `json:"client_id"`
	// ClientSecret is the plaintext secret, present only for entries that
	// have not been handed off to a Secret object.
	ClientSecret string `json:"client_secret,omitempty"`
	// ClientSecretRef names the Secret holding the credential.
	ClientSecretRef string `json:"client_secret_id,omitempty"`
}

// Registry is the persistent relation-to-client mapping, backed by the peer
// key-value space. The store enforces leader-only writes, so registry
// mutations from non-leader replicas silently do nothing.
type Registry struct {
	store kv.Store
}

// NewRegistry returns a Registry over store.
func NewRegistry(store kv.Store) *Registry {
	return &Registry{store: store}
}

func registryKey(relationID int64) string {
	return constants.OAuthRegistryKeyPrefix + strconv.FormatInt(relationID, 10)
}

// Get returns the entry for a relation, if present.
func (r *Registry) Get(ctx context.Context, relationID int64) (Entry, bool, error) {
	var entry Entry
	ok, err := kv.GetJSON(ctx, r.store, registryKey(relationID), &entry)
	if err != nil {
		return Entry{}, false, fmt.Errorf("reading registry entry %d: %w", relationID, err)
	}
	return entry, ok, nil
}

// Put stores the entry for a relation, overwriting any previous record under
// the same key.
func (r *Registry) Put(ctx context.Context, relationID int64, entry Entry) error {
	if err := kv.PutJSON(ctx, r.store, registryKey(relationID), entry); err != nil {
		return fmt.Errorf("writing registry entry %d: %w", relationID, err)
	}
	return nil
}

// Remove deletes the entry for a relation.
func (r *Registry) Remove(ctx context.Context, relationID int64) error {
	if err := r.store.Delete(ctx, registryKey(relationID)); err != nil {
		return fmt.Errorf("removing registry entry %d: %w", relationID, err)
	}
	return nil
}

// ListAll returns every registry entry keyed by relation id, in ascending
// relation order.
func (r *Registry) ListAll(ctx context.Context) ([]int64, map[int64]Entry, error) {
	keys, err := r.store.Keys(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("listing registry keys: %w", err)
	}

	entries := map[int64]Entry{}
	ids := make([]int64, 0)
	for _, key := range keys {
		if !strings.HasPrefix(key, constants.OAuthRegistryKeyPrefix) {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimPrefix(key, constants.OAuthRegistryKeyPrefix), 10, 64)
		if err != nil {
			continue
		}
		entry, ok, err := r.Get(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			continue
		}
		ids = append(ids, id)
		entries[id] = entry
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, entries, nil
}

// AllocateRelationID mints the next relation identifier from the shared
// sequence. Only the leader advances the sequence; a non-leader call returns
// an error instead of risking a duplicate id.
func (r *Registry) AllocateRelationID(ctx context.Context) (int64, error) {
	raw, ok, err := r.store.Get(ctx, constants.RelationSequenceKey)
	if err != nil {
		return 0, fmt.Errorf("reading relation sequence: %w", err)
	}

	var last int64
	if ok {
		if last, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return 0, fmt.Errorf("corrupt relation sequence %q: %w", raw, err)
		}
	}

	next := last + 1
	if err := r.store.Put(ctx, constants.RelationSequenceKey, strconv.FormatInt(next, 10)); err != nil {
		return 0, fmt.Errorf("advancing relation sequence: %w", err)
	}

	// Read back: a non-leader Put is a silent no-op and must not hand out ids.
	stored, ok, err := r.store.Get(ctx, constants.RelationSequenceKey)
	if err != nil {
		return 0, err
	}
	if !ok || stored != strconv.FormatInt(next, 10) {
		return 0, fmt.Errorf("relation sequence not advanced: not the leader")
	}
	return next, nil
}
