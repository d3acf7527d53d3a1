// Package secrets manages the two rotating secret families the workload
// signs tokens (system) and encrypts session cookies (cookie) with. Each
// family is a Kubernetes Secret holding timestamped generations; rotation
// appends, never deletes, so material signed with older generations stays
// verifiable.
package secrets

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/canonical/hydra-operator/internal/constants"
	operrors "github.com/canonical/hydra-operator/internal/errors"
	"github.com/canonical/hydra-operator/internal/leadership"
)

// Family names the two secret families.
type Family string

const (
	// FamilySystem holds the token signing keys.
	FamilySystem Family = "system"
	// FamilyCookie holds the session cookie encryption keys.
	FamilyCookie Family = "cookie"
)

// Families lists every family the manager owns.
var Families = []Family{FamilySystem, FamilyCookie}

// MinKeyLength is the shortest secret value the workload accepts.
const MinKeyLength = 16

// Manager owns the secret families of one service instance. Writes are
// leader-guarded; reads are unrestricted.
type Manager struct {
	client  client.Client
	leader  leadership.Checker
	log     logr.Logger
	owner   string
	ns      string
	nowFunc func() time.Time
}

// NewManager returns a Manager for the service named owner in namespace ns.
func NewManager(c client.Client, leader leadership.Checker, ns, owner string, log logr.Logger) *Manager {
	return &Manager{
		client:  c,
		leader:  leader,
		log:     log.WithName("secrets"),
		owner:   owner,
		ns:      ns,
		nowFunc: time.Now,
	}
}

func (m *Manager) secretName(family Family) string {
	switch family {
	case FamilyCookie:
		return m.owner + constants.SuffixCookieSecret
	default:
		return m.owner + constants.SuffixSystemSecret
	}
}

// GenerationKey mints the storage key for a new generation: the family name,
// the current unix timestamp, and a zero-padded sequence number that makes
// keys minted within the same second sort correctly.
func GenerationKey(family Family, now time.Time, existing int) string {
	return fmt.Sprintf("%s-%d-%03d", family, now.Unix(), existing)
}

// OrderedValues returns the generation values of content newest first, by
// reverse-sorting the generation keys.
func OrderedValues(content map[string][]byte) []string {
	keys := make([]string, 0, len(content))
	for k := range content {
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))

	values := make([]string, 0, len(keys))
	for _, k := range keys {
		values = append(values, string(content[k]))
	}
	return values
}

func (m *Manager) fetch(ctx context.Context, family Family) (*corev1.Secret, error) {
	var secret corev1.Secret
	key := types.NamespacedName{Namespace: m.ns, Name: m.secretName(family)}
	if err := m.client.Get(ctx, key, &secret); err != nil {
		if apierrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching secret %s: %w", key.Name, err)
	}
	return &secret, nil
}

// GetKeys returns all generations of a family, newest first. A missing
// family yields an empty slice.
func (m *Manager) GetKeys(ctx context.Context, family Family) ([]string, error) {
	secret, err := m.fetch(ctx, family)
	if err != nil {
		return nil, err
	}
	if secret == nil {
		return nil, nil
	}
	return OrderedValues(secret.Data), nil
}

// AddKey appends value as the newest generation of a family. Existing
// generations are never overwritten. Non-leader calls are silent no-ops.
func (m *Manager) AddKey(ctx context.Context, family Family, value string) error {
	if len(value) < MinKeyLength {
		return fmt.Errorf("%w: key for family %q is shorter than %d characters",
			operrors.ErrInvalidSecretContent, family, MinKeyLength)
	}

	isLeader, err := m.leader.IsLeader(ctx)
	if err != nil {
		return err
	}
	if !isLeader {
		return nil
	}

	secret, err := m.fetch(ctx, family)
	if err != nil {
		return err
	}

	if secret == nil {
		secret = &corev1.Secret{
			ObjectMeta: metav1.ObjectMeta{
				Namespace: m.ns,
				Name:      m.secretName(family),
				Labels: map[string]string{
					"app.kubernetes.io/managed-by": "hydra-operator",
					"app.kubernetes.io/instance":   m.owner,
				},
			},
			Data: map[string][]byte{},
		}
		key := GenerationKey(family, m.nowFunc(), 0)
		secret.Data[key] = []byte(value)
		if err := m.client.Create(ctx, secret); err != nil {
			return fmt.Errorf("creating secret for family %q: %w", family, err)
		}
		m.log.Info("created secret family", "family", family, "generation", key)
		return nil
	}

	if secret.Data == nil {
		secret.Data = map[string][]byte{}
	}
	key := GenerationKey(family, m.nowFunc(), len(secret.Data))
	secret.Data[key] = []byte(value)
	if err := m.client.Update(ctx, secret); err != nil {
		return fmt.Errorf("updating secret for family %q: %w", family, err)
	}
	m.log.Info("added secret generation", "family", family, "generation", key)
	return nil
}

// IsReady reports whether both families hold at least one generation.
func (m *Manager) IsReady(ctx context.Context) (bool, error) {
	for _, family := range Families {
		keys, err := m.GetKeys(ctx, family)
		if err != nil {
			return false, err
		}
		if len(keys) == 0 {
			return false, nil
		}
	}
	return true, nil
}
