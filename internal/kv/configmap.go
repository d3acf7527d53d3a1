package kv

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/canonical/hydra-operator/internal/leadership"
)

// ConfigMapStore persists the peer data of one service in a ConfigMap.
// Reads go through the (cached) client; writes are leader-guarded.
type ConfigMapStore struct {
	client     client.Client
	leadership leadership.Checker
	namespace  string
	name       string
	labels     map[string]string
}

// NewConfigMapStore returns a Store backed by the ConfigMap namespace/name.
func NewConfigMapStore(c client.Client, check leadership.Checker, namespace, name string, labels map[string]string) *ConfigMapStore {
	return &ConfigMapStore{
		client:     c,
		leadership: check,
		namespace:  namespace,
		name:       name,
		labels:     labels,
	}
}

func (s *ConfigMapStore) Get(ctx context.Context, key string) (string, bool, error) {
	cm, err := s.fetch(ctx)
	if err != nil {
		return "", false, err
	}
	if cm == nil {
		return "", false, nil
	}

	value, ok := cm.Data[key]
	return value, ok, nil
}

func (s *ConfigMapStore) Put(ctx context.Context, key, value string) error {
	leader, err := s.leadership.IsLeader(ctx)
	if err != nil {
		return err
	}
	if !leader {
		return nil
	}

	cm, err := s.fetch(ctx)
	if err != nil {
		return err
	}

	if cm == nil {
		cm = &corev1.ConfigMap{
			ObjectMeta: metav1.ObjectMeta{
				Namespace: s.namespace,
				Name:      s.name,
				Labels:    s.labels,
			},
			Data: map[string]string{key: value},
		}
		if err := s.client.Create(ctx, cm); err != nil {
			return fmt.Errorf("failed to create peer data ConfigMap %s/%s: %w", s.namespace, s.name, err)
		}
		return nil
	}

	if cm.Data == nil {
		cm.Data = map[string]string{}
	}
	if existing, ok := cm.Data[key]; ok && existing == value {
		return nil
	}
	cm.Data[key] = value

	if err := s.client.Update(ctx, cm); err != nil {
		return fmt.Errorf("failed to update peer data ConfigMap %s/%s: %w", s.namespace, s.name, err)
	}

	return nil
}

func (s *ConfigMapStore) Delete(ctx context.Context, key string) error {
	leader, err := s.leadership.IsLeader(ctx)
	if err != nil {
		return err
	}
	if !leader {
		return nil
	}

	cm, err := s.fetch(ctx)
	if err != nil {
		return err
	}
	if cm == nil {
		return nil
	}

	if _, ok := cm.Data[key]; !ok {
		return nil
	}
	delete(cm.Data, key)

	if err := s.client.Update(ctx, cm); err != nil {
		return fmt.Errorf("failed to update peer data ConfigMap %s/%s: %w", s.namespace, s.name, err)
	}

	return nil
}

func (s *ConfigMapStore) Keys(ctx context.Context) ([]string, error) {
	cm, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	if cm == nil {
		return nil, nil
	}

	keys := make([]string, 0, len(cm.Data))
	for key := range cm.Data {
		keys = append(keys, key)
	}

	return keys, nil
}

func (s *ConfigMapStore) fetch(ctx context.Context) (*corev1.ConfigMap, error) {
	cm := &corev1.ConfigMap{}
	err := s.client.Get(ctx, types.NamespacedName{Namespace: s.namespace, Name: s.name}, cm)
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get peer data ConfigMap %s/%s: %w", s.namespace, s.name, err)
	}

	return cm, nil
}
