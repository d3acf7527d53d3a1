// Package kv models the replicated key-value space shared by all replicas of
// a managed service. All replicas read it; only the leader writes it. The
// store is the source of truth for idempotency decisions, so a crash between
// an external mutation and the corresponding Put must leave redelivery safe.
package kv

import (
	"context"
	"encoding/json"
	"fmt"
)

// Store is a flat string-to-string bag with replicated visibility.
// Implementations enforce the leader-only write discipline at this boundary:
// a mutating call from a non-leader is a silent no-op.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	// Put stores value under key. No-op when the caller is not the leader.
	Put(ctx context.Context, key, value string) error
	// Delete removes key. No-op when the caller is not the leader.
	Delete(ctx context.Context, key string) error
	// Keys lists all present keys in unspecified order.
	Keys(ctx context.Context) ([]string, error)
}

// GetJSON unmarshals the value stored under key into out. A missing key
// returns (false, nil) and leaves out untouched.
func GetJSON(ctx context.Context, s Store, key string, out any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}

	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, fmt.Errorf("decoding value for key %q: %w", key, err)
	}

	return true, nil
}

// PutJSON marshals value and stores it under key.
func PutJSON(ctx context.Context, s Store, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding value for key %q: %w", key, err)
	}

	return s.Put(ctx, key, string(raw))
}
