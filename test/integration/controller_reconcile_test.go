//go:build integration
// +build integration

package integration

import (
	"testing"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	ctrl "sigs.k8s.io/controller-runtime"

	hydrav1alpha1 "github.com/canonical/hydra-operator/api/v1alpha1"
	"github.com/canonical/hydra-operator/internal/constants"
	"github.com/canonical/hydra-operator/internal/controller"
	"github.com/canonical/hydra-operator/internal/infra"
	"github.com/canonical/hydra-operator/internal/workload"
)

func newServiceReconciler(supervisor *workload.Fake) *controller.HydraServiceReconciler {
	return &controller.HydraServiceReconciler{
		Client: k8sClient,
		Scheme: k8sScheme,
		SupervisorFactory: func(*hydrav1alpha1.HydraService) workload.Supervisor {
			return supervisor
		},
	}
}

func newClientReconciler(supervisor *workload.Fake) *controller.OAuthClientReconciler {
	return &controller.OAuthClientReconciler{
		Client: k8sClient,
		Scheme: k8sScheme,
		SupervisorFactory: func(*hydrav1alpha1.HydraService) workload.Supervisor {
			return supervisor
		},
	}
}

func reconcileService(t *testing.T, r *controller.HydraServiceReconciler, namespace, name string, times int) {
	t.Helper()
	for i := 0; i < times; i++ {
		req := ctrl.Request{NamespacedName: types.NamespacedName{Namespace: namespace, Name: name}}
		if _, err := r.Reconcile(ctx, req); err != nil {
			t.Fatalf("Reconcile %d: %v", i, err)
		}
	}
}

// TestHydraServiceReconciler_BlockedWithoutDatabase verifies that a service
// with no database integration still renders workload infrastructure but
// reports Blocked.
func TestHydraServiceReconciler_BlockedWithoutDatabase(t *testing.T) {
	namespace := newTestNamespace(t)
	serviceName := "blocked-service"

	service := createMinimalService(t, namespace, serviceName)

	supervisor := workload.NewFake()
	r := newServiceReconciler(supervisor)
	reconcileService(t, r, namespace, serviceName, 2)

	var latest hydrav1alpha1.HydraService
	if err := k8sClient.Get(ctx, types.NamespacedName{Name: serviceName, Namespace: namespace}, &latest); err != nil {
		t.Fatalf("get service: %v", err)
	}

	if latest.Status.Phase != hydrav1alpha1.ServicePhaseBlocked {
		t.Errorf("phase = %q, want %q", latest.Status.Phase, hydrav1alpha1.ServicePhaseBlocked)
	}
	if len(latest.Finalizers) == 0 {
		t.Error("expected finalizer to be added")
	}

	deploy := &appsv1.Deployment{}
	if err := k8sClient.Get(ctx, types.NamespacedName{Name: infra.DeploymentName(service), Namespace: namespace}, deploy); err != nil {
		t.Errorf("expected Deployment despite Blocked phase: %v", err)
	}
}

// TestOAuthClientReconciler_Provisions runs the full client provisioning path
// against a real API server with a scripted workload.
func TestOAuthClientReconciler_Provisions(t *testing.T) {
	namespace := newTestNamespace(t)
	serviceName := "client-service"

	createMinimalService(t, namespace, serviceName)
	createDatabaseSecret(t, namespace, "pg-creds")

	supervisor := workload.NewFake()
	supervisor.Responses["create"] = workload.FakeResponse{
		Stdout: `{"client_id":"minted-id","client_secret":"minted-secret"}`,
	}

	oauthClient := &hydrav1alpha1.OAuthClient{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "dashboard",
			Namespace: namespace,
		},
		Spec: hydrav1alpha1.OAuthClientSpec{
			ServiceRef:   serviceName,
			RedirectURIs: []string{"https://dashboard.example.com/callback"},
			GrantTypes:   []string{"authorization_code"},
		},
	}
	if err := k8sClient.Create(ctx, oauthClient); err != nil {
		t.Fatalf("create OAuthClient: %v", err)
	}

	r := newClientReconciler(supervisor)
	for i := 0; i < 3; i++ {
		req := ctrl.Request{NamespacedName: types.NamespacedName{Namespace: namespace, Name: "dashboard"}}
		if _, err := r.Reconcile(ctx, req); err != nil {
			t.Fatalf("Reconcile %d: %v", i, err)
		}
	}

	var latest hydrav1alpha1.OAuthClient
	if err := k8sClient.Get(ctx, types.NamespacedName{Name: "dashboard", Namespace: namespace}, &latest); err != nil {
		t.Fatalf("get OAuthClient: %v", err)
	}

	if latest.Status.ClientID != "minted-id" {
		t.Errorf("ClientID = %q, want minted-id", latest.Status.ClientID)
	}
	if latest.Status.RelationID == nil || *latest.Status.RelationID != 1 {
		t.Errorf("RelationID = %v, want 1", latest.Status.RelationID)
	}

	secret := &corev1.Secret{}
	err := k8sClient.Get(ctx, types.NamespacedName{Name: "dashboard" + constants.SuffixCredentials, Namespace: namespace}, secret)
	if err != nil {
		t.Fatalf("expected credentials Secret: %v", err)
	}
	if string(secret.Data["client_id"]) != "minted-id" {
		t.Errorf("credentials client_id = %q", secret.Data["client_id"])
	}

	// The registry entry lands in the peer data ConfigMap.
	cm := &corev1.ConfigMap{}
	if err := k8sClient.Get(ctx, types.NamespacedName{Name: serviceName + constants.SuffixPeerData, Namespace: namespace}, cm); err != nil {
		t.Fatalf("expected peer data ConfigMap: %v", err)
	}
	if _, ok := cm.Data["oauth_1"]; !ok {
		t.Errorf("peer data = %v, want oauth_1 entry", cm.Data)
	}
}
