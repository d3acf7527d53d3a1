package secrets

import (
	"context"
	"errors"
	"testing"
	"time"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	operrors "github.com/canonical/hydra-operator/internal/errors"
	"github.com/canonical/hydra-operator/internal/leadership"

	"github.com/go-logr/logr"
)

func newTestManager(t *testing.T, leader bool) *Manager {
	t.Helper()
	scheme := runtime.NewScheme()
	if err := corev1.AddToScheme(scheme); err != nil {
		t.Fatalf("building scheme: %v", err)
	}
	c := fake.NewClientBuilder().WithScheme(scheme).Build()
	m := NewManager(c, leadership.Static(leader), "default", "hydra", logr.Discard())
	m.nowFunc = func() time.Time { return time.Unix(1700000000, 0) }
	return m
}

func TestAddKeyCreatesFamily(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, true)

	if err := m.AddKey(ctx, FamilySystem, "0123456789abcdef"); err != nil {
		t.Fatalf("AddKey() error: %v", err)
	}

	keys, err := m.GetKeys(ctx, FamilySystem)
	if err != nil {
		t.Fatalf("GetKeys() error: %v", err)
	}
	if len(keys) != 1 || keys[0] != "0123456789abcdef" {
		t.Errorf("GetKeys() = %v, want one generation", keys)
	}
}

func TestAddKeyAppendOnly(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, true)

	base := time.Unix(1700000000, 0)
	for i, value := range []string{"generation-0-aaaa", "generation-1-bbbb", "generation-2-cccc"} {
		offset := time.Duration(i) * time.Minute
		m.nowFunc = func() time.Time { return base.Add(offset) }
		if err := m.AddKey(ctx, FamilyCookie, value); err != nil {
			t.Fatalf("AddKey() #%d error: %v", i, err)
		}
	}

	keys, err := m.GetKeys(ctx, FamilyCookie)
	if err != nil {
		t.Fatalf("GetKeys() error: %v", err)
	}
	if len(keys) != 3 {
		t.Fatalf("GetKeys() returned %d generations, want 3", len(keys))
	}
	// Newest first.
	want := []string{"generation-2-cccc", "generation-1-bbbb", "generation-0-aaaa"}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("GetKeys()[%d] = %q, want %q", i, keys[i], want[i])
		}
	}
}

func TestAddKeySameSecondOrdering(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, true)

	// Two generations minted within one second; the sequence suffix keeps
	// them ordered.
	if err := m.AddKey(ctx, FamilySystem, "first-generation"); err != nil {
		t.Fatalf("AddKey() error: %v", err)
	}
	if err := m.AddKey(ctx, FamilySystem, "second-generation"); err != nil {
		t.Fatalf("AddKey() error: %v", err)
	}

	keys, err := m.GetKeys(ctx, FamilySystem)
	if err != nil {
		t.Fatalf("GetKeys() error: %v", err)
	}
	if len(keys) != 2 || keys[0] != "second-generation" {
		t.Errorf("GetKeys() = %v, want second-generation first", keys)
	}
}

func TestAddKeyRejectsShortContent(t *testing.T) {
	m := newTestManager(t, true)

	err := m.AddKey(context.Background(), FamilySystem, "too-short")
	if !errors.Is(err, operrors.ErrInvalidSecretContent) {
		t.Fatalf("AddKey() error = %v, want ErrInvalidSecretContent", err)
	}
}

func TestAddKeyNonLeaderNoOp(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, false)

	if err := m.AddKey(ctx, FamilySystem, "0123456789abcdef"); err != nil {
		t.Fatalf("AddKey() error: %v", err)
	}

	keys, err := m.GetKeys(ctx, FamilySystem)
	if err != nil {
		t.Fatalf("GetKeys() error: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("non-leader AddKey wrote %v", keys)
	}
}

func TestIsReady(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, true)

	ready, err := m.IsReady(ctx)
	if err != nil {
		t.Fatalf("IsReady() error: %v", err)
	}
	if ready {
		t.Error("IsReady() = true with no generations")
	}

	if err := m.AddKey(ctx, FamilySystem, "0123456789abcdef"); err != nil {
		t.Fatalf("AddKey() error: %v", err)
	}
	ready, err = m.IsReady(ctx)
	if err != nil {
		t.Fatalf("IsReady() error: %v", err)
	}
	if ready {
		t.Error("IsReady() = true with only one family populated")
	}

	if err := m.AddKey(ctx, FamilyCookie, "fedcba9876543210"); err != nil {
		t.Fatalf("AddKey() error: %v", err)
	}
	ready, err = m.IsReady(ctx)
	if err != nil {
		t.Fatalf("IsReady() error: %v", err)
	}
	if !ready {
		t.Error("IsReady() = false with both families populated")
	}
}

func TestGenerationKeyFormat(t *testing.T) {
	key := GenerationKey(FamilySystem, time.Unix(1700000000, 0), 7)
	if key != "system-1700000000-007" {
		t.Errorf("GenerationKey() = %q, want system-1700000000-007", key)
	}
}

func TestNewRandomKeyLength(t *testing.T) {
	key, err := NewRandomKey()
	if err != nil {
		t.Fatalf("NewRandomKey() error: %v", err)
	}
	if len(key) < MinKeyLength {
		t.Errorf("NewRandomKey() produced %d characters, want at least %d", len(key), MinKeyLength)
	}
}
