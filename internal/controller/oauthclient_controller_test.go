package controller

import (
	"context"
	"encoding/json"
	"testing"

	corev1 "k8s.io/api/core/v1"
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	hydrav1alpha1 "github.com/canonical/hydra-operator/api/v1alpha1"
	"github.com/canonical/hydra-operator/internal/workload"
)

func newClientReconciler(t *testing.T, sup workload.Supervisor, objs ...client.Object) (*OAuthClientReconciler, client.Client) {
	t.Helper()
	scheme := newTestScheme(t)
	c := fake.NewClientBuilder().
		WithScheme(scheme).
		WithObjects(objs...).
		WithStatusSubresource(&hydrav1alpha1.HydraService{}, &hydrav1alpha1.OAuthClient{}).
		Build()

	r := &OAuthClientReconciler{
		Client: c,
		Scheme: scheme,
		SupervisorFactory: func(*hydrav1alpha1.HydraService) workload.Supervisor {
			return sup
		},
	}
	return r, c
}

func clientFixture() *hydrav1alpha1.OAuthClient {
	return &hydrav1alpha1.OAuthClient{
		ObjectMeta: metav1.ObjectMeta{Namespace: "default", Name: "dashboard"},
		Spec: hydrav1alpha1.OAuthClientSpec{
			ServiceRef:   "hydra",
			RedirectURIs: []string{"https://dash.example.com/callback"},
			GrantTypes:   []string{"authorization_code"},
		},
	}
}

func reconcileClient(t *testing.T, r *OAuthClientReconciler, times int) ctrl.Result {
	t.Helper()
	var result ctrl.Result
	var err error
	req := ctrl.Request{NamespacedName: types.NamespacedName{Namespace: "default", Name: "dashboard"}}
	for i := 0; i < times; i++ {
		result, err = r.Reconcile(context.Background(), req)
		if err != nil {
			t.Fatalf("Reconcile %d: %v", i+1, err)
		}
	}
	return result
}

func TestClientReconcileProvisions(t *testing.T) {
	sup := workload.NewFake()
	sup.Responses["create"] = workload.FakeResponse{
		Stdout: `{"client_id":"id-1","client_secret":"minted-secret"}`,
	}

	r, c := newClientReconciler(t, sup, serviceFixture(), clientFixture())

	// First reconcile attaches the finalizer, second provisions.
	reconcileClient(t, r, 2)

	oauthClient := &hydrav1alpha1.OAuthClient{}
	if err := c.Get(context.Background(), types.NamespacedName{Namespace: "default", Name: "dashboard"}, oauthClient); err != nil {
		t.Fatalf("get client: %v", err)
	}

	if oauthClient.Status.RelationID == nil || *oauthClient.Status.RelationID != 1 {
		t.Fatalf("relationID = %v, want 1", oauthClient.Status.RelationID)
	}
	if oauthClient.Status.ClientID != "id-1" {
		t.Errorf("clientID = %q", oauthClient.Status.ClientID)
	}
	if oauthClient.Status.CredentialsSecretRef == nil || oauthClient.Status.CredentialsSecretRef.Name != "dashboard-oauth-credentials" {
		t.Errorf("credentialsSecretRef = %v", oauthClient.Status.CredentialsSecretRef)
	}

	cond := meta.FindStatusCondition(oauthClient.Status.Conditions, string(hydrav1alpha1.OAuthClientConditionProvisioned))
	if cond == nil || cond.Status != metav1.ConditionTrue {
		t.Errorf("Provisioned condition = %+v", cond)
	}

	secret := &corev1.Secret{}
	if err := c.Get(context.Background(), types.NamespacedName{Namespace: "default", Name: "dashboard-oauth-credentials"}, secret); err != nil {
		t.Fatalf("get credentials secret: %v", err)
	}
	if string(secret.Data["client_id"]) != "id-1" || string(secret.Data["client_secret"]) != "minted-secret" {
		t.Errorf("secret data = %v", secret.Data)
	}
}

func TestClientReconcileForwardsMetadata(t *testing.T) {
	sup := workload.NewFake()
	sup.Responses["create"] = workload.FakeResponse{
		Stdout: `{"client_id":"id-1","client_secret":"minted-secret"}`,
	}

	oauthClient := clientFixture()
	oauthClient.Spec.Metadata = &apiextensionsv1.JSON{Raw: []byte(`{"team":"identity"}`)}

	r, _ := newClientReconciler(t, sup, serviceFixture(), oauthClient)

	reconcileClient(t, r, 2)

	var metadataArg string
	for _, call := range sup.Calls {
		if len(call.Args) > 1 && call.Args[1] == "create" {
			for i, arg := range call.Args {
				if arg == "--metadata" && i+1 < len(call.Args) {
					metadataArg = call.Args[i+1]
				}
			}
		}
	}
	if metadataArg == "" {
		t.Fatalf("no --metadata argument in create call: %v", sup.Calls)
	}

	metadata := map[string]any{}
	if err := json.Unmarshal([]byte(metadataArg), &metadata); err != nil {
		t.Fatalf("decoding metadata argument %q: %v", metadataArg, err)
	}
	if metadata["team"] != "identity" {
		t.Errorf("spec metadata dropped: %v", metadata)
	}
	if metadata["integration-id"] != "1" {
		t.Errorf("integration-id = %v, want 1", metadata["integration-id"])
	}
}

func TestClientReconcileRejectsMalformedMetadata(t *testing.T) {
	sup := workload.NewFake()

	oauthClient := clientFixture()
	oauthClient.Spec.Metadata = &apiextensionsv1.JSON{Raw: []byte(`["not","an","object"]`)}

	r, c := newClientReconciler(t, sup, serviceFixture(), oauthClient)

	result := reconcileClient(t, r, 2)

	if len(sup.Calls) != 0 {
		t.Errorf("exec calls = %v, want none for invalid metadata", sup.Calls)
	}
	if result.RequeueAfter == 0 {
		t.Error("expected requeue for invalid metadata")
	}

	got := &hydrav1alpha1.OAuthClient{}
	if err := c.Get(context.Background(), types.NamespacedName{Namespace: "default", Name: "dashboard"}, got); err != nil {
		t.Fatalf("get client: %v", err)
	}
	cond := meta.FindStatusCondition(got.Status.Conditions, string(hydrav1alpha1.OAuthClientConditionProvisioned))
	if cond == nil || cond.Reason != "InvalidMetadata" {
		t.Errorf("Provisioned condition = %+v", cond)
	}
}

func TestClientReconcileIsIdempotent(t *testing.T) {
	sup := workload.NewFake()
	sup.Responses["create"] = workload.FakeResponse{
		Stdout: `{"client_id":"id-1","client_secret":"minted-secret"}`,
	}
	sup.Responses["update"] = workload.FakeResponse{
		Stdout: `{"client_id":"id-1"}`,
	}

	r, _ := newClientReconciler(t, sup, serviceFixture(), clientFixture())

	reconcileClient(t, r, 3)

	creates := 0
	for _, call := range sup.Calls {
		if len(call.Args) > 1 && call.Args[1] == "create" {
			creates++
		}
	}
	if creates != 1 {
		t.Errorf("create calls = %d, want 1", creates)
	}
}

func TestClientReconcileDefersWhenWorkloadDown(t *testing.T) {
	sup := workload.NewFake()
	sup.RunningVal = false

	r, c := newClientReconciler(t, sup, serviceFixture(), clientFixture())

	result := reconcileClient(t, r, 2)

	// Deferral happens before any side effect: nothing was executed in the
	// container and the reconcile is requeued to redeliver the event.
	if len(sup.Calls) != 0 {
		t.Errorf("exec calls = %v, want none", sup.Calls)
	}
	if result.RequeueAfter == 0 {
		t.Error("expected requeue for deferred event")
	}

	oauthClient := &hydrav1alpha1.OAuthClient{}
	if err := c.Get(context.Background(), types.NamespacedName{Namespace: "default", Name: "dashboard"}, oauthClient); err != nil {
		t.Fatalf("get client: %v", err)
	}
	cond := meta.FindStatusCondition(oauthClient.Status.Conditions, string(hydrav1alpha1.OAuthClientConditionProvisioned))
	if cond == nil || cond.Reason != "WorkloadNotRunning" {
		t.Errorf("Provisioned condition = %+v", cond)
	}
}

func TestClientReconcileRelationIDsAreStable(t *testing.T) {
	sup := workload.NewFake()
	sup.Responses["create"] = workload.FakeResponse{
		Stdout: `{"client_id":"id-1","client_secret":"s"}`,
	}
	sup.Responses["update"] = workload.FakeResponse{
		Stdout: `{"client_id":"id-1"}`,
	}

	r, c := newClientReconciler(t, sup, serviceFixture(), clientFixture())

	reconcileClient(t, r, 3)

	oauthClient := &hydrav1alpha1.OAuthClient{}
	if err := c.Get(context.Background(), types.NamespacedName{Namespace: "default", Name: "dashboard"}, oauthClient); err != nil {
		t.Fatalf("get client: %v", err)
	}
	if *oauthClient.Status.RelationID != 1 {
		t.Errorf("relationID changed across reconciles: %d", *oauthClient.Status.RelationID)
	}
}

func TestClientReconcileMissingService(t *testing.T) {
	r, c := newClientReconciler(t, workload.NewFake(), clientFixture())

	result := reconcileClient(t, r, 2)

	if result.RequeueAfter == 0 {
		t.Error("expected requeue while the service is missing")
	}

	oauthClient := &hydrav1alpha1.OAuthClient{}
	if err := c.Get(context.Background(), types.NamespacedName{Namespace: "default", Name: "dashboard"}, oauthClient); err != nil {
		t.Fatalf("get client: %v", err)
	}
	cond := meta.FindStatusCondition(oauthClient.Status.Conditions, string(hydrav1alpha1.OAuthClientConditionProvisioned))
	if cond == nil || cond.Reason != "ServiceNotFound" {
		t.Errorf("Provisioned condition = %+v", cond)
	}
}

func TestClientDeletionKeepsProvisionedClient(t *testing.T) {
	sup := workload.NewFake()
	sup.Responses["create"] = workload.FakeResponse{
		Stdout: `{"client_id":"id-1","client_secret":"s"}`,
	}

	r, c := newClientReconciler(t, sup, serviceFixture(), clientFixture())
	reconcileClient(t, r, 2)

	oauthClient := &hydrav1alpha1.OAuthClient{}
	if err := c.Get(context.Background(), types.NamespacedName{Namespace: "default", Name: "dashboard"}, oauthClient); err != nil {
		t.Fatalf("get client: %v", err)
	}
	if err := c.Delete(context.Background(), oauthClient); err != nil {
		t.Fatalf("delete client: %v", err)
	}

	callsBefore := len(sup.Calls)
	reconcileClient(t, r, 1)

	// Removal is a policy no-op: no delete command reaches the workload and
	// the registry entry survives for the reconcile sweep.
	if len(sup.Calls) != callsBefore {
		t.Errorf("exec calls grew on deletion: %v", sup.Calls[callsBefore:])
	}

	cm := &corev1.ConfigMap{}
	if err := c.Get(context.Background(), types.NamespacedName{Namespace: "default", Name: "hydra-peer-data"}, cm); err != nil {
		t.Fatalf("get peer data: %v", err)
	}
	if _, ok := cm.Data["oauth_1"]; !ok {
		t.Errorf("registry entry removed on relation departure: %v", cm.Data)
	}
}
