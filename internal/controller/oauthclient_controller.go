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
	"encoding/json"
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/builder"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"
	"sigs.k8s.io/controller-runtime/pkg/log"

	hydrav1alpha1 "github.com/canonical/hydra-operator/api/v1alpha1"
	"github.com/canonical/hydra-operator/internal/constants"
	"github.com/canonical/hydra-operator/internal/events"
	"github.com/canonical/hydra-operator/internal/hydra"
	"github.com/canonical/hydra-operator/internal/infra"
	"github.com/canonical/hydra-operator/internal/kv"
	"github.com/canonical/hydra-operator/internal/leadership"
	"github.com/canonical/hydra-operator/internal/lifecycle"
	"github.com/canonical/hydra-operator/internal/workload"
)

// OAuthClientReconciler provisions OAuth2 clients in a HydraService for each
// OAuthClient resource. It drives the lifecycle state machine; a deferred
// outcome (workload not running) maps to a requeue, which redelivers the
// event with the same payload.
type OAuthClientReconciler struct {
	client.Client
	Scheme     *runtime.Scheme
	Clientset  kubernetes.Interface
	RESTConfig *rest.Config

	// SupervisorFactory overrides the pod-exec supervisor, used by tests.
	SupervisorFactory func(*hydrav1alpha1.HydraService) workload.Supervisor
}

// +kubebuilder:rbac:groups=hydra.identity.canonical.com,resources=oauthclients,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=hydra.identity.canonical.com,resources=oauthclients/status,verbs=get;update;patch
// +kubebuilder:rbac:groups=hydra.identity.canonical.com,resources=oauthclients/finalizers,verbs=update
// +kubebuilder:rbac:groups="",resources=secrets,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups="",resources=configmaps,verbs=get;list;watch;create;update;patch

// Reconcile provisions or updates the OAuth2 client backing the OAuthClient
// resource.
func (r *OAuthClientReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	start := time.Now()
	logger := log.FromContext(ctx).WithValues(
		"client_namespace", req.Namespace,
		"client_name", req.Name,
		"controller", "oauthclient",
	)
	reconcileMetrics := NewReconcileMetrics(req.Namespace, req.Name, "oauthclient")
	defer func() {
		reconcileMetrics.ObserveDuration(time.Since(start).Seconds())
	}()

	oauthClient := &hydrav1alpha1.OAuthClient{}
	if err := r.Get(ctx, req.NamespacedName, oauthClient); err != nil {
		if apierrors.IsNotFound(err) {
			return ctrl.Result{}, nil
		}
		reconcileMetrics.IncrementError("KubernetesAPIError")
		return ctrl.Result{}, fmt.Errorf("failed to get OAuthClient %s/%s: %w", req.Namespace, req.Name, err)
	}

	if !oauthClient.DeletionTimestamp.IsZero() {
		if containsFinalizer(oauthClient.Finalizers, hydrav1alpha1.OAuthClientFinalizer) {
			// Relation departure is a policy no-op: the remote client and the
			// registry entry stay until the reconcile sweep removes them.
			logger.Info("OAuthClient removed, keeping provisioned client until reconcile sweep",
				"relationID", oauthClient.Status.RelationID)

			oauthClient.Finalizers = removeFinalizer(oauthClient.Finalizers, hydrav1alpha1.OAuthClientFinalizer)
			if err := r.Update(ctx, oauthClient); err != nil {
				return ctrl.Result{}, fmt.Errorf("failed to remove finalizer from OAuthClient %s/%s: %w", oauthClient.Namespace, oauthClient.Name, err)
			}
		}
		return ctrl.Result{}, nil
	}

	if !containsFinalizer(oauthClient.Finalizers, hydrav1alpha1.OAuthClientFinalizer) {
		oauthClient.Finalizers = append(oauthClient.Finalizers, hydrav1alpha1.OAuthClientFinalizer)
		if err := r.Update(ctx, oauthClient); err != nil {
			return ctrl.Result{}, fmt.Errorf("failed to add finalizer to OAuthClient %s/%s: %w", oauthClient.Namespace, oauthClient.Name, err)
		}
		return ctrl.Result{}, nil
	}

	service := &hydrav1alpha1.HydraService{}
	if err := r.Get(ctx, types.NamespacedName{Namespace: oauthClient.Namespace, Name: oauthClient.Spec.ServiceRef}, service); err != nil {
		if apierrors.IsNotFound(err) {
			logger.Info("referenced HydraService does not exist", "serviceRef", oauthClient.Spec.ServiceRef)
			if statusErr := r.setProvisioned(ctx, oauthClient, metav1.ConditionFalse, "ServiceNotFound",
				fmt.Sprintf("HydraService %q does not exist in this namespace", oauthClient.Spec.ServiceRef)); statusErr != nil {
				return ctrl.Result{}, statusErr
			}
			return ctrl.Result{RequeueAfter: constants.RequeueStandard}, nil
		}
		reconcileMetrics.IncrementError("KubernetesAPIError")
		return ctrl.Result{}, fmt.Errorf("failed to get HydraService %s/%s: %w", oauthClient.Namespace, oauthClient.Spec.ServiceRef, err)
	}

	store := r.storeFor(service)
	registry := lifecycle.NewRegistry(store)

	if oauthClient.Status.RelationID == nil {
		relationID, err := registry.AllocateRelationID(ctx)
		if err != nil {
			reconcileMetrics.IncrementError("RelationIDAllocationError")
			return ctrl.Result{}, fmt.Errorf("failed to allocate relation ID for OAuthClient %s/%s: %w", oauthClient.Namespace, oauthClient.Name, err)
		}
		oauthClient.Status.RelationID = &relationID
		if err := r.Status().Update(ctx, oauthClient); err != nil {
			return ctrl.Result{}, fmt.Errorf("failed to record relation ID for OAuthClient %s/%s: %w", oauthClient.Namespace, oauthClient.Name, err)
		}
		logger.Info("allocated relation ID", "relationID", relationID)
	}

	supervisor := r.supervisorFor(service)
	cli := hydra.NewCLI(supervisor, logger)
	queue := events.NewQueue()
	publisher := &credentialsPublisher{client: r.Client, scheme: r.Scheme, owner: oauthClient}
	machine := lifecycle.NewMachine(registry, cli, supervisor, queue, publisher, logger)

	metadata, err := clientMetadata(oauthClient)
	if err != nil {
		reconcileMetrics.IncrementError("InvalidMetadataError")
		if statusErr := r.setProvisioned(ctx, oauthClient, metav1.ConditionFalse, "InvalidMetadata",
			"spec.metadata is not a JSON object"); statusErr != nil {
			return ctrl.Result{}, statusErr
		}
		return ctrl.Result{RequeueAfter: constants.RequeueStandard}, nil
	}

	request := lifecycle.ClientRequest{
		RelationID:              *oauthClient.Status.RelationID,
		RedirectURIs:            oauthClient.Spec.RedirectURIs,
		Scope:                   oauthClient.Spec.Scope,
		GrantTypes:              oauthClient.Spec.GrantTypes,
		Audience:                oauthClient.Spec.Audience,
		TokenEndpointAuthMethod: oauthClient.Spec.TokenEndpointAuthMethod,
		Metadata:                metadata,
	}

	var outcome lifecycle.Outcome
	if oauthClient.Status.ClientID == "" {
		outcome, err = machine.HandleClientCreated(ctx, request)
	} else {
		outcome, err = machine.HandleClientChanged(ctx, request)
	}
	if err != nil {
		reconcileMetrics.IncrementError("LifecycleError")
		return ctrl.Result{}, fmt.Errorf("failed to handle OAuthClient %s/%s: %w", oauthClient.Namespace, oauthClient.Name, err)
	}

	serviceMetrics := NewServiceMetrics(service.Namespace, service.Name)
	serviceMetrics.SetDeferredEvents(queue.Len())

	switch outcome {
	case lifecycle.OutcomeDone:
		serviceMetrics.RecordClientProvision(true)
		if publisher.clientID != "" {
			oauthClient.Status.ClientID = publisher.clientID
			oauthClient.Status.CredentialsSecretRef = &corev1.LocalObjectReference{Name: credentialsSecretName(oauthClient)}
		}
		if err := r.setProvisioned(ctx, oauthClient, metav1.ConditionTrue, "Provisioned",
			"The client exists in the authorization server and its credentials are published"); err != nil {
			return ctrl.Result{}, err
		}
		return ctrl.Result{}, nil

	case lifecycle.OutcomeNoOp:
		// Redelivery of an already provisioned client; backfill status from
		// the registry if a previous update never landed.
		if oauthClient.Status.ClientID == "" {
			entry, ok, err := registry.Get(ctx, *oauthClient.Status.RelationID)
			if err == nil && ok {
				oauthClient.Status.ClientID = entry.ClientID
			}
		}
		if err := r.setProvisioned(ctx, oauthClient, metav1.ConditionTrue, "Provisioned",
			"The client exists in the authorization server and its credentials are published"); err != nil {
			return ctrl.Result{}, err
		}
		return ctrl.Result{}, nil

	case lifecycle.OutcomeDeferred:
		logger.Info("workload not running, deferring client provisioning")
		if err := r.setProvisioned(ctx, oauthClient, metav1.ConditionFalse, "WorkloadNotRunning",
			"The workload is not running yet; the event was deferred"); err != nil {
			return ctrl.Result{}, err
		}
		return ctrl.Result{RequeueAfter: constants.RequeueShort}, nil

	case lifecycle.OutcomeWaiting:
		if err := r.setProvisioned(ctx, oauthClient, metav1.ConditionFalse, "WaitingForCreation",
			"No provisioned client exists yet for this relation"); err != nil {
			return ctrl.Result{}, err
		}
		return ctrl.Result{RequeueAfter: constants.RequeueShort}, nil

	default: // lifecycle.OutcomeFailed
		serviceMetrics.RecordClientProvision(false)
		if err := r.setProvisioned(ctx, oauthClient, metav1.ConditionFalse, "ProvisioningFailed",
			"The authorization server rejected the operation, check the operator logs"); err != nil {
			return ctrl.Result{}, err
		}
		return ctrl.Result{RequeueAfter: constants.RequeueStandard}, nil
	}
}

func (r *OAuthClientReconciler) setProvisioned(ctx context.Context, oauthClient *hydrav1alpha1.OAuthClient, status metav1.ConditionStatus, reason, message string) error {
	meta.SetStatusCondition(&oauthClient.Status.Conditions, metav1.Condition{
		Type:               string(hydrav1alpha1.OAuthClientConditionProvisioned),
		Status:             status,
		ObservedGeneration: oauthClient.Generation,
		LastTransitionTime: metav1.Now(),
		Reason:             reason,
		Message:            message,
	})

	if err := r.Status().Update(ctx, oauthClient); err != nil {
		return fmt.Errorf("failed to update status for OAuthClient %s/%s: %w", oauthClient.Namespace, oauthClient.Name, err)
	}
	return nil
}

func (r *OAuthClientReconciler) storeFor(service *hydrav1alpha1.HydraService) kv.Store {
	return kv.NewConfigMapStore(r.Client, leadership.Static(true), service.Namespace, service.Name+constants.SuffixPeerData, map[string]string{
		"app.kubernetes.io/instance":   service.Name,
		"app.kubernetes.io/managed-by": "hydra-operator",
	})
}

func (r *OAuthClientReconciler) supervisorFor(service *hydrav1alpha1.HydraService) workload.Supervisor {
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

func credentialsSecretName(oauthClient *hydrav1alpha1.OAuthClient) string {
	return oauthClient.Name + constants.SuffixCredentials
}

// clientMetadata decodes spec.metadata into the free-form map attached to the
// provisioned client.
func clientMetadata(oauthClient *hydrav1alpha1.OAuthClient) (map[string]any, error) {
	if oauthClient.Spec.Metadata == nil {
		return nil, nil
	}

	metadata := map[string]any{}
	if err := json.Unmarshal(oauthClient.Spec.Metadata.Raw, &metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata of OAuthClient %s/%s: %w", oauthClient.Namespace, oauthClient.Name, err)
	}
	return metadata, nil
}

// credentialsPublisher writes minted client credentials into a Secret owned
// by the OAuthClient, the relation surface consuming applications read.
type credentialsPublisher struct {
	client client.Client
	scheme *runtime.Scheme
	owner  *hydrav1alpha1.OAuthClient

	// clientID records the last published client, for status updates.
	clientID string
}

func (p *credentialsPublisher) Publish(ctx context.Context, relationID int64, clientID, clientSecret string) error {
	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Namespace: p.owner.Namespace,
			Name:      credentialsSecretName(p.owner),
			Labels: map[string]string{
				"app.kubernetes.io/managed-by": "hydra-operator",
			},
		},
	}

	_, err := controllerutil.CreateOrUpdate(ctx, p.client, secret, func() error {
		if secret.Data == nil {
			secret.Data = map[string][]byte{}
		}
		secret.Data["client_id"] = []byte(clientID)
		if clientSecret != "" {
			secret.Data["client_secret"] = []byte(clientSecret)
		}
		return controllerutil.SetControllerReference(p.owner, secret, p.scheme)
	})
	if err != nil {
		return fmt.Errorf("failed to publish credentials Secret %s/%s: %w", p.owner.Namespace, credentialsSecretName(p.owner), err)
	}

	p.clientID = clientID
	return nil
}

// SetupWithManager sets up the controller with the Manager.
func (r *OAuthClientReconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&hydrav1alpha1.OAuthClient{}, builder.WithPredicates(ResourceGenerationChangedPredicate())).
		Owns(&corev1.Secret{}).
		Named("oauthclient").
		Complete(r)
}
