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
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-logr/logr"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/util/workqueue"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/builder"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller"
	"sigs.k8s.io/controller-runtime/pkg/log"

	hydrav1alpha1 "github.com/canonical/hydra-operator/api/v1alpha1"
	"github.com/canonical/hydra-operator/internal/config"
	"github.com/canonical/hydra-operator/internal/constants"
	"github.com/canonical/hydra-operator/internal/deps"
	"github.com/canonical/hydra-operator/internal/hydra"
	"github.com/canonical/hydra-operator/internal/infra"
	"github.com/canonical/hydra-operator/internal/kv"
	"github.com/canonical/hydra-operator/internal/leadership"
	"github.com/canonical/hydra-operator/internal/reconcile"
	"github.com/canonical/hydra-operator/internal/secrets"
	"github.com/canonical/hydra-operator/internal/security"
	"github.com/canonical/hydra-operator/internal/workload"
)

// HydraServiceReconciler reconciles a HydraService object. Each reconcile is
// holistic: it loads the full dependency snapshot, folds the readiness
// checklist and, only when every check passes, converges the workload
// configuration.
type HydraServiceReconciler struct {
	client.Client
	Scheme     *runtime.Scheme
	Clientset  kubernetes.Interface
	RESTConfig *rest.Config
	Pinner     *security.ImagePinner
	Rotator    *secrets.Rotator

	// SupervisorFactory overrides the pod-exec supervisor, used by tests.
	SupervisorFactory func(*hydrav1alpha1.HydraService) workload.Supervisor
}

// +kubebuilder:rbac:groups=hydra.identity.canonical.com,resources=hydraservices,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=hydra.identity.canonical.com,resources=hydraservices/status,verbs=get;update;patch
// +kubebuilder:rbac:groups=hydra.identity.canonical.com,resources=hydraservices/finalizers,verbs=update
// +kubebuilder:rbac:groups="",resources=secrets,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups="",resources=configmaps,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups="",resources=services,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups="",resources=pods,verbs=get;list;watch
// +kubebuilder:rbac:groups="",resources=pods/exec,verbs=create
// +kubebuilder:rbac:groups=apps,resources=deployments,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=gateway.networking.k8s.io,resources=httproutes;gateways,verbs=get;list;watch

// Reconcile is part of the main Kubernetes reconciliation loop which aims to
// move the current state of the cluster closer to the desired state.
// For more details, check Reconcile and its Result here:
// - https://pkg.go.dev/sigs.k8s.io/controller-runtime@v0.22.4/pkg/reconcile
func (r *HydraServiceReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	start := time.Now()
	logger := log.FromContext(ctx).WithValues(
		"service_namespace", req.Namespace,
		"service_name", req.Name,
		"controller", "hydraservice",
	)
	reconcileMetrics := NewReconcileMetrics(req.Namespace, req.Name, "hydraservice")
	defer func() {
		reconcileMetrics.ObserveDuration(time.Since(start).Seconds())
	}()

	logger.Info("Reconciling HydraService")

	service := &hydrav1alpha1.HydraService{}
	if err := r.Get(ctx, req.NamespacedName, service); err != nil {
		if apierrors.IsNotFound(err) {
			logger.Info("HydraService resource not found; assuming it was deleted")
			return ctrl.Result{}, nil
		}

		reconcileMetrics.IncrementError("KubernetesAPIError")
		return ctrl.Result{}, fmt.Errorf("failed to get HydraService %s/%s: %w", req.Namespace, req.Name, err)
	}

	if !service.DeletionTimestamp.IsZero() {
		logger.Info("HydraService is marked for deletion")
		if containsFinalizer(service.Finalizers, hydrav1alpha1.HydraServiceFinalizer) {
			if err := r.handleDeletion(ctx, service); err != nil {
				reconcileMetrics.IncrementError("FinalizationError")
				return ctrl.Result{}, err
			}

			service.Finalizers = removeFinalizer(service.Finalizers, hydrav1alpha1.HydraServiceFinalizer)
			if err := r.Update(ctx, service); err != nil {
				return ctrl.Result{}, fmt.Errorf("failed to remove finalizer from HydraService %s/%s: %w", service.Namespace, service.Name, err)
			}
		}

		return ctrl.Result{}, nil
	}

	if !containsFinalizer(service.Finalizers, hydrav1alpha1.HydraServiceFinalizer) {
		service.Finalizers = append(service.Finalizers, hydrav1alpha1.HydraServiceFinalizer)
		if err := r.Update(ctx, service); err != nil {
			return ctrl.Result{}, fmt.Errorf("failed to add finalizer to HydraService %s/%s: %w", service.Namespace, service.Name, err)
		}

		// Requeue to observe the resource with the finalizer attached.
		return ctrl.Result{}, nil
	}

	snapshot := deps.NewLoader(r.Client, logger).Load(ctx, service)

	image, err := r.resolveImage(ctx, service)
	if err != nil {
		logger.Error(err, "failed to resolve workload image")
		reconcileMetrics.IncrementError("ImageResolutionError")
		if statusErr := r.updateStatus(ctx, service, snapshot, reconcile.Verdict{
			Phase:  hydrav1alpha1.ServicePhaseBlocked,
			Reason: "cannot resolve the workload image, check the image reference",
		}, "", ""); statusErr != nil {
			return ctrl.Result{}, statusErr
		}
		return ctrl.Result{RequeueAfter: constants.RequeueStandard}, nil
	}

	rendered, err := config.Render(service, snapshot)
	if err != nil {
		reconcileMetrics.IncrementError("ConfigRenderError")
		return ctrl.Result{}, fmt.Errorf("failed to render workload config for HydraService %s/%s: %w", service.Namespace, service.Name, err)
	}

	env := deps.MergeEnvVars(snapshot.Tracing.EnvVars())
	if err := infra.NewManager(r.Client, r.Scheme).Reconcile(ctx, logger, service, image, env, rendered); err != nil {
		reconcileMetrics.IncrementError("InfrastructureError")
		return ctrl.Result{}, err
	}

	r.scheduleRotation(service, logger)

	supervisor := r.supervisorFor(service)
	store := r.storeFor(service)

	workloadVersion := ""
	if supervisor.Running(ctx) {
		cli := hydra.NewCLI(supervisor, logger)
		version, err := cli.Version(ctx)
		if err != nil {
			logger.Error(err, "failed to read workload version")
		} else {
			workloadVersion = version
		}
	}

	migratedVersion := ""
	if key := snapshot.Database.MigrationVersionKey; key != "" {
		value, _, err := store.Get(ctx, key)
		if err != nil {
			logger.Error(err, "failed to read migration record")
		} else {
			migratedVersion = value
		}
	}

	input := reconcile.Input{
		Connected:       supervisor.Connected(ctx),
		DevMode:         service.Spec.Dev,
		Snapshot:        snapshot,
		WorkloadVersion: workloadVersion,
		MigratedVersion: migratedVersion,
	}

	verdict := reconcile.NewEngine(supervisor, store, logger).Run(ctx, input, rendered)

	if err := r.updateStatus(ctx, service, snapshot, verdict, workloadVersion, migratedVersion); err != nil {
		reconcileMetrics.IncrementError("StatusUpdateError")
		return ctrl.Result{}, err
	}

	logger.Info("Reconciled HydraService", "phase", verdict.Phase, "reason", verdict.Reason)

	switch verdict.Phase {
	case hydrav1alpha1.ServicePhaseWaiting:
		return ctrl.Result{RequeueAfter: constants.RequeueStandard}, nil
	default:
		// Safety-net requeue with jitter so drift is noticed even without
		// watch events.
		jitter := time.Duration(rand.Int63n(int64(constants.RequeueSafetyNetJitter)))
		return ctrl.Result{RequeueAfter: constants.RequeueSafetyNetBase + jitter}, nil
	}
}

func (r *HydraServiceReconciler) resolveImage(ctx context.Context, service *hydrav1alpha1.HydraService) (string, error) {
	if !service.Spec.PinImageDigest || r.Pinner == nil {
		return service.Spec.Image, nil
	}
	return r.Pinner.Pin(ctx, service.Spec.Image, nil, service.Namespace)
}

func (r *HydraServiceReconciler) scheduleRotation(service *hydrav1alpha1.HydraService, logger logr.Logger) {
	if r.Rotator == nil {
		return
	}

	name := service.Namespace + "/" + service.Name
	if service.Spec.SecretRotation == nil {
		r.Rotator.Unschedule(name)
		return
	}

	manager := secrets.NewManager(r.Client, leadership.Static(true), service.Namespace, service.Name, logger)
	if err := r.Rotator.Schedule(name, service.Spec.SecretRotation.Schedule, manager); err != nil {
		logger.Error(err, "failed to schedule secret rotation", "schedule", service.Spec.SecretRotation.Schedule)
	}
}

func (r *HydraServiceReconciler) supervisorFor(service *hydrav1alpha1.HydraService) workload.Supervisor {
	if r.SupervisorFactory != nil {
		return r.SupervisorFactory(service)
	}
	return &workload.PodSupervisor{
		Clientset:      r.Clientset,
		RESTConfig:     r.RESTConfig,
		Namespace:      service.Namespace,
		DeploymentName: infra.DeploymentName(service),
		Selector:       infra.SelectorLabels(service),
		Container:      constants.ContainerNameHydra,
	}
}

func (r *HydraServiceReconciler) storeFor(service *hydrav1alpha1.HydraService) kv.Store {
	// The manager's leader election already guarantees a single writer.
	return kv.NewConfigMapStore(r.Client, leadership.Static(true), service.Namespace, service.Name+constants.SuffixPeerData, map[string]string{
		"app.kubernetes.io/instance":   service.Name,
		"app.kubernetes.io/managed-by": "hydra-operator",
	})
}

func (r *HydraServiceReconciler) handleDeletion(ctx context.Context, service *hydrav1alpha1.HydraService) error {
	logger := log.FromContext(ctx)

	if r.Rotator != nil {
		r.Rotator.Unschedule(service.Namespace + "/" + service.Name)
	}

	if err := infra.NewManager(r.Client, r.Scheme).Cleanup(ctx, logger, service); err != nil {
		return err
	}

	NewServiceMetrics(service.Namespace, service.Name).Clear()

	return nil
}

func (r *HydraServiceReconciler) updateStatus(ctx context.Context, service *hydrav1alpha1.HydraService, snapshot deps.Snapshot, verdict reconcile.Verdict, workloadVersion, migratedVersion string) error {
	service.Status.Phase = verdict.Phase
	service.Status.Reason = verdict.Reason
	if workloadVersion != "" {
		service.Status.Version = workloadVersion
	}
	service.Status.MigratedVersion = migratedVersion

	now := metav1.Now()

	availableStatus := metav1.ConditionFalse
	availableReason := "NotConverged"
	availableMessage := verdict.Reason
	if verdict.Phase == hydrav1alpha1.ServicePhaseActive {
		availableStatus = metav1.ConditionTrue
		availableReason = "Converged"
		availableMessage = "The workload is configured, migrated and running"
	}
	meta.SetStatusCondition(&service.Status.Conditions, metav1.Condition{
		Type:               string(hydrav1alpha1.ConditionAvailable),
		Status:             availableStatus,
		ObservedGeneration: service.Generation,
		LastTransitionTime: now,
		Reason:             availableReason,
		Message:            availableMessage,
	})

	migratedStatus := metav1.ConditionFalse
	migratedReason := "NotMigrated"
	migratedMessage := "No migration record for the current workload version"
	if migratedVersion != "" && migratedVersion == workloadVersion {
		migratedStatus = metav1.ConditionTrue
		migratedReason = "Migrated"
		migratedMessage = fmt.Sprintf("Schema migrated for workload version %s", migratedVersion)
	}
	meta.SetStatusCondition(&service.Status.Conditions, metav1.Condition{
		Type:               string(hydrav1alpha1.ConditionMigrated),
		Status:             migratedStatus,
		ObservedGeneration: service.Generation,
		LastTransitionTime: now,
		Reason:             migratedReason,
		Message:            migratedMessage,
	})

	secretsStatus := metav1.ConditionFalse
	secretsReason := "MissingGenerations"
	secretsMessage := "One or both secret families have no generations yet"
	if snapshot.Secrets.IsReady() {
		secretsStatus = metav1.ConditionTrue
		secretsReason = "Ready"
		secretsMessage = "Both secret families hold at least one generation"
	}
	meta.SetStatusCondition(&service.Status.Conditions, metav1.Condition{
		Type:               string(hydrav1alpha1.ConditionSecretsReady),
		Status:             secretsStatus,
		ObservedGeneration: service.Generation,
		LastTransitionTime: now,
		Reason:             secretsReason,
		Message:            secretsMessage,
	})

	degradedStatus := metav1.ConditionFalse
	degradedReason := "Healthy"
	degradedMessage := "No operator action is required"
	if verdict.Phase == hydrav1alpha1.ServicePhaseBlocked {
		degradedStatus = metav1.ConditionTrue
		degradedReason = "OperatorActionRequired"
		degradedMessage = verdict.Reason
	}
	meta.SetStatusCondition(&service.Status.Conditions, metav1.Condition{
		Type:               string(hydrav1alpha1.ConditionDegraded),
		Status:             degradedStatus,
		ObservedGeneration: service.Generation,
		LastTransitionTime: now,
		Reason:             degradedReason,
		Message:            degradedMessage,
	})

	if err := r.Status().Update(ctx, service); err != nil {
		return fmt.Errorf("failed to update status for HydraService %s/%s: %w", service.Namespace, service.Name, err)
	}

	NewServiceMetrics(service.Namespace, service.Name).SetPhase(verdict.Phase)

	return nil
}

func containsFinalizer(finalizers []string, value string) bool {
	for _, f := range finalizers {
		if f == value {
			return true
		}
	}
	return false
}

func removeFinalizer(finalizers []string, value string) []string {
	result := make([]string, 0, len(finalizers))
	for _, f := range finalizers {
		if f == value {
			continue
		}
		result = append(result, f)
	}
	return result
}

// SetupWithManager sets up the controller with the Manager.
// It registers watches on the HydraService CR and all owned resources so that
// changes to child resources trigger reconciliation of the parent service.
func (r *HydraServiceReconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&hydrav1alpha1.HydraService{}, builder.WithPredicates(HydraServicePredicate())).
		Owns(&appsv1.Deployment{}).
		Owns(&corev1.Service{}).
		Owns(&corev1.ConfigMap{}).
		Owns(&corev1.Secret{}).
		WithOptions(controller.Options{
			MaxConcurrentReconciles: 1,
			RateLimiter:             workqueue.NewTypedItemExponentialFailureRateLimiter[ctrl.Request](1*time.Second, 60*time.Second),
		}).
		Named("hydraservice").
		Complete(r)
}
