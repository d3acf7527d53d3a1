// Package leadership answers "may this process write shared state right
// now". Mutations to peer data and secrets are guarded at the store boundary
// with a Checker, never inline in business logic, so the single-writer model
// stays enforceable when the backing store changes.
package leadership

import (
	"context"
	"fmt"

	coordinationv1 "k8s.io/api/coordination/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// Checker reports whether the current process holds leadership.
type Checker interface {
	IsLeader(ctx context.Context) (bool, error)
}

// Static is a fixed leadership answer, used by tests and by contexts where
// controller-runtime leader election already guarantees a single writer.
type Static bool

func (s Static) IsLeader(_ context.Context) (bool, error) {
	return bool(s), nil
}

// LeaseChecker consults a coordination Lease, the same object
// controller-runtime leader election maintains, and compares its holder to
// this process's identity.
type LeaseChecker struct {
	Client    client.Client
	Namespace string
	LeaseName string
	Identity  string
}

func (c *LeaseChecker) IsLeader(ctx context.Context) (bool, error) {
	lease := &coordinationv1.Lease{}
	err := c.Client.Get(ctx, types.NamespacedName{Namespace: c.Namespace, Name: c.LeaseName}, lease)
	if err != nil {
		if apierrors.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get leadership Lease %s/%s: %w", c.Namespace, c.LeaseName, err)
	}

	if lease.Spec.HolderIdentity == nil {
		return false, nil
	}

	return *lease.Spec.HolderIdentity == c.Identity, nil
}
