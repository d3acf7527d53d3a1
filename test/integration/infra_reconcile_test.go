//go:build integration
// +build integration

package integration

import (
	"testing"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/types"

	"github.com/canonical/hydra-operator/internal/infra"
)

// TestInfraManager_Reconcile verifies that a service renders its Deployment
// and Services against a real API server, with owner references that make
// garbage collection work.
func TestInfraManager_Reconcile(t *testing.T) {
	namespace := newTestNamespace(t)
	serviceName := "infra-reconcile"

	service := createMinimalService(t, namespace, serviceName)

	manager := infra.NewManager(k8sClient, k8sScheme)
	if err := manager.Reconcile(ctx, discardLogger(), service, service.Spec.Image, nil, "serve:\n  cookies: {}\n"); err != nil {
		t.Fatalf("Manager.Reconcile error: %v", err)
	}

	t.Run("creates Deployment", func(t *testing.T) {
		deploy := &appsv1.Deployment{}
		err := k8sClient.Get(ctx, types.NamespacedName{Name: infra.DeploymentName(service), Namespace: namespace}, deploy)
		if err != nil {
			t.Fatalf("expected Deployment to be created: %v", err)
		}

		if deploy.Spec.Replicas == nil || *deploy.Spec.Replicas != 1 {
			t.Errorf("replicas = %v, want 1", deploy.Spec.Replicas)
		}
		if len(deploy.OwnerReferences) == 0 {
			t.Error("expected Deployment to have owner reference")
		}
		if got := deploy.Spec.Template.Spec.Containers[0].Image; got != "oryd/hydra:v2.2.0" {
			t.Errorf("image = %q", got)
		}
	})

	t.Run("creates config ConfigMap mounted by the pod", func(t *testing.T) {
		cm := &corev1.ConfigMap{}
		err := k8sClient.Get(ctx, types.NamespacedName{Name: infra.ConfigMapName(service), Namespace: namespace}, cm)
		if err != nil {
			t.Fatalf("expected config ConfigMap to be created: %v", err)
		}
		if cm.Data["hydra.yaml"] == "" {
			t.Error("config ConfigMap carries no configuration")
		}

		deploy := &appsv1.Deployment{}
		if err := k8sClient.Get(ctx, types.NamespacedName{Name: infra.DeploymentName(service), Namespace: namespace}, deploy); err != nil {
			t.Fatalf("get Deployment: %v", err)
		}
		volume := deploy.Spec.Template.Spec.Volumes[0]
		if volume.ConfigMap == nil || volume.ConfigMap.Name != infra.ConfigMapName(service) {
			t.Errorf("config volume = %+v, want projection of %s", volume, infra.ConfigMapName(service))
		}
	})

	t.Run("creates public Service", func(t *testing.T) {
		svc := &corev1.Service{}
		err := k8sClient.Get(ctx, types.NamespacedName{Name: infra.PublicServiceName(service), Namespace: namespace}, svc)
		if err != nil {
			t.Fatalf("expected public Service to be created: %v", err)
		}
		if len(svc.Spec.Ports) != 1 || svc.Spec.Ports[0].Port != 4444 {
			t.Errorf("public ports = %v", svc.Spec.Ports)
		}
	})

	t.Run("creates admin Service", func(t *testing.T) {
		svc := &corev1.Service{}
		err := k8sClient.Get(ctx, types.NamespacedName{Name: infra.AdminServiceName(service), Namespace: namespace}, svc)
		if err != nil {
			t.Fatalf("expected admin Service to be created: %v", err)
		}
		if len(svc.Spec.Ports) != 1 || svc.Spec.Ports[0].Port != 4445 {
			t.Errorf("admin ports = %v", svc.Spec.Ports)
		}
	})

	t.Run("is idempotent", func(t *testing.T) {
		if err := manager.Reconcile(ctx, discardLogger(), service, service.Spec.Image, nil, "serve:\n  cookies: {}\n"); err != nil {
			t.Fatalf("second Reconcile error: %v", err)
		}
	})

	t.Run("cleanup removes everything", func(t *testing.T) {
		if err := manager.Cleanup(ctx, discardLogger(), service); err != nil {
			t.Fatalf("Cleanup error: %v", err)
		}

		deploy := &appsv1.Deployment{}
		if err := k8sClient.Get(ctx, types.NamespacedName{Name: infra.DeploymentName(service), Namespace: namespace}, deploy); err == nil {
			t.Error("expected Deployment to be deleted")
		}
	})
}
