package controller

import (
	"testing"

	hydrav1alpha1 "github.com/canonical/hydra-operator/api/v1alpha1"
)

func TestReconcileMetrics_NoPanic(t *testing.T) {
	m := NewReconcileMetrics("ns", "name", "ctrl")

	// These calls should not panic and will register/update metrics for the
	// given label set.
	m.ObserveDuration(0.5)
	m.ObserveDuration(1.0)
	m.IncrementError("Error")
}

func TestServiceMetrics_NoPanic(t *testing.T) {
	m := NewServiceMetrics("ns", "name")

	m.SetPhase(hydrav1alpha1.ServicePhaseWaiting)
	m.SetPhase(hydrav1alpha1.ServicePhaseActive)
	m.RecordClientProvision(true)
	m.RecordClientProvision(false)
	m.RecordSweepDeleted(2)
	m.SetDeferredEvents(1)
	m.RecordSecretRotation()
	m.Clear()
}
