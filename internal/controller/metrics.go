package controller

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"

	hydrav1alpha1 "github.com/canonical/hydra-operator/api/v1alpha1"
)

var (
	reconcileDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hydra",
			Name:      "reconcile_duration_seconds",
			Help:      "Duration of reconciliation loops in seconds",
			// Buckets chosen to capture fast reconciles and the exec-heavy tail.
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"namespace", "name", "controller"},
	)

	reconcileErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hydra",
			Name:      "reconcile_errors_total",
			Help:      "Total number of reconciliation errors",
		},
		[]string{"namespace", "name", "controller", "reason"},
	)

	servicePhaseGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "hydra",
			Name:      "service_phase",
			Help:      "Current phase of a HydraService (1 = active phase)",
		},
		[]string{"namespace", "name", "phase"},
	)

	clientProvisionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hydra",
			Name:      "oauth_client_provision_total",
			Help:      "Total number of OAuth client provisioning attempts",
		},
		[]string{"namespace", "name"},
	)

	clientProvisionFailureTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hydra",
			Name:      "oauth_client_provision_failure_total",
			Help:      "Total number of failed OAuth client provisioning attempts",
		},
		[]string{"namespace", "name"},
	)

	clientSweepDeletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hydra",
			Name:      "oauth_client_sweep_deleted_total",
			Help:      "Total number of orphaned OAuth clients removed by the reconcile sweep",
		},
		[]string{"namespace", "name"},
	)

	deferredEventsGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "hydra",
			Name:      "deferred_events",
			Help:      "Number of lifecycle events currently deferred until the workload is running",
		},
		[]string{"namespace", "name"},
	)

	secretRotationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hydra",
			Name:      "secret_rotations_total",
			Help:      "Total number of scheduled secret rotations performed",
		},
		[]string{"namespace", "name"},
	)
)

func init() {
	metrics.Registry.MustRegister(
		reconcileDurationHistogram,
		reconcileErrorsTotal,
		servicePhaseGauge,
		clientProvisionTotal,
		clientProvisionFailureTotal,
		clientSweepDeletedTotal,
		deferredEventsGauge,
		secretRotationsTotal,
	)
}

// ReconcileMetrics provides helpers to record reconcile-level metrics for a
// specific controller and resource.
type ReconcileMetrics struct {
	namespace  string
	name       string
	controller string
}

// NewReconcileMetrics creates a new ReconcileMetrics instance.
func NewReconcileMetrics(namespace, name, controller string) *ReconcileMetrics {
	return &ReconcileMetrics{
		namespace:  namespace,
		name:       name,
		controller: controller,
	}
}

// ObserveDuration records the duration of a reconcile loop in seconds.
func (m *ReconcileMetrics) ObserveDuration(durationSeconds float64) {
	reconcileDurationHistogram.
		WithLabelValues(m.namespace, m.name, m.controller).
		Observe(durationSeconds)
}

// IncrementError increments the reconcile error counter with the given reason.
// Reason values should be low-cardinality strings (for example, "KubernetesAPIError").
func (m *ReconcileMetrics) IncrementError(reason string) {
	reconcileErrorsTotal.
		WithLabelValues(m.namespace, m.name, m.controller, reason).
		Inc()
}

// ServiceMetrics provides helpers to record per-service state metrics.
type ServiceMetrics struct {
	namespace string
	name      string
}

// NewServiceMetrics creates a new ServiceMetrics instance.
func NewServiceMetrics(namespace, name string) *ServiceMetrics {
	return &ServiceMetrics{
		namespace: namespace,
		name:      name,
	}
}

// SetPhase records the current phase for the service. The gauge is set to 1
// for the provided phase and 0 for the others so dashboards see a clean
// transition.
func (m *ServiceMetrics) SetPhase(phase hydrav1alpha1.ServicePhase) {
	for _, p := range []hydrav1alpha1.ServicePhase{
		hydrav1alpha1.ServicePhaseActive,
		hydrav1alpha1.ServicePhaseWaiting,
		hydrav1alpha1.ServicePhaseBlocked,
	} {
		value := 0.0
		if p == phase {
			value = 1.0
		}
		servicePhaseGauge.
			WithLabelValues(m.namespace, m.name, string(p)).
			Set(value)
	}
}

// RecordClientProvision records one OAuth client provisioning attempt.
func (m *ServiceMetrics) RecordClientProvision(succeeded bool) {
	clientProvisionTotal.
		WithLabelValues(m.namespace, m.name).
		Inc()
	if !succeeded {
		clientProvisionFailureTotal.
			WithLabelValues(m.namespace, m.name).
			Inc()
	}
}

// RecordSweepDeleted records orphaned clients removed by the reconcile sweep.
func (m *ServiceMetrics) RecordSweepDeleted(count int) {
	if count <= 0 {
		return
	}
	clientSweepDeletedTotal.
		WithLabelValues(m.namespace, m.name).
		Add(float64(count))
}

// SetDeferredEvents records the current depth of the deferral queue.
func (m *ServiceMetrics) SetDeferredEvents(count int) {
	deferredEventsGauge.
		WithLabelValues(m.namespace, m.name).
		Set(float64(count))
}

// RecordSecretRotation records one completed scheduled rotation.
func (m *ServiceMetrics) RecordSecretRotation() {
	secretRotationsTotal.
		WithLabelValues(m.namespace, m.name).
		Inc()
}

// Clear removes all per-service metrics for this service. This should be
// called during finalization to avoid leaving stale series after deletion.
func (m *ServiceMetrics) Clear() {
	for _, phase := range []hydrav1alpha1.ServicePhase{
		hydrav1alpha1.ServicePhaseActive,
		hydrav1alpha1.ServicePhaseWaiting,
		hydrav1alpha1.ServicePhaseBlocked,
	} {
		servicePhaseGauge.
			DeleteLabelValues(m.namespace, m.name, string(phase))
	}

	deferredEventsGauge.
		DeleteLabelValues(m.namespace, m.name)
}
