/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package controller

import (
	"k8s.io/apimachinery/pkg/api/equality"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/event"
	"sigs.k8s.io/controller-runtime/pkg/predicate"

	hydrav1alpha1 "github.com/canonical/hydra-operator/api/v1alpha1"
)

// HydraServicePredicate filters HydraService events to only reconcile on
// meaningful changes. This reduces noise and CPU usage by preventing the
// operator from waking up for irrelevant changes like status-only updates.
//
// The predicate allows reconciliation when:
//   - The resource is created
//   - The resource is deleted
//   - The Spec changes (detected via Generation change)
//   - DeletionTimestamp changes (triggers deletion handling)
//   - Finalizers change (triggers finalizer handling)
//   - Metadata labels or annotations change (may affect behavior)
//
// Status-only updates (like Phase, Reason, Conditions) are filtered out
// since they don't require reconciliation - the controller updates status
// based on observed state, not in response to status changes.
func HydraServicePredicate() predicate.Predicate {
	return predicate.Funcs{
		CreateFunc: func(e event.CreateEvent) bool {
			// Always reconcile on create
			return true
		},
		DeleteFunc: func(e event.DeleteEvent) bool {
			// Always reconcile on delete
			return true
		},
		UpdateFunc: func(e event.UpdateEvent) bool {
			oldService, ok := e.ObjectOld.(*hydrav1alpha1.HydraService)
			if !ok {
				return true // If type assertion fails, allow reconciliation to be safe
			}
			newService, ok := e.ObjectNew.(*hydrav1alpha1.HydraService)
			if !ok {
				return true // If type assertion fails, allow reconciliation to be safe
			}

			// Reconcile if Generation changed (indicates Spec change)
			if oldService.Generation != newService.Generation {
				return true
			}

			// Reconcile if DeletionTimestamp changed
			if !oldService.DeletionTimestamp.Equal(newService.DeletionTimestamp) {
				return true
			}

			// Reconcile if finalizers changed
			if !equality.Semantic.DeepEqual(oldService.Finalizers, newService.Finalizers) {
				return true
			}

			// Reconcile if labels changed (may affect resource selection or behavior)
			if !equality.Semantic.DeepEqual(oldService.Labels, newService.Labels) {
				return true
			}

			// Reconcile if annotations changed (may affect behavior)
			if !equality.Semantic.DeepEqual(oldService.Annotations, newService.Annotations) {
				return true
			}

			// Filter out status-only updates
			return false
		},
		GenericFunc: func(e event.GenericEvent) bool {
			// Always reconcile on generic events (rare, but be safe)
			return true
		},
	}
}

// ResourceGenerationChangedPredicate is a generic predicate that filters
// update events to only trigger reconciliation when the Generation changes.
// Generation changes indicate that the Spec has been modified.
//
// This is useful for any resource type that follows the standard Kubernetes
// pattern where Generation increments on Spec changes.
func ResourceGenerationChangedPredicate() predicate.Predicate {
	return predicate.Funcs{
		CreateFunc: func(e event.CreateEvent) bool {
			return true
		},
		DeleteFunc: func(e event.DeleteEvent) bool {
			return true
		},
		UpdateFunc: func(e event.UpdateEvent) bool {
			oldObj, ok := e.ObjectOld.(metav1.Object)
			if !ok {
				return true
			}
			newObj, ok := e.ObjectNew.(metav1.Object)
			if !ok {
				return true
			}

			// Only reconcile if Generation changed
			return oldObj.GetGeneration() != newObj.GetGeneration()
		},
		GenericFunc: func(e event.GenericEvent) bool {
			return true
		},
	}
}
