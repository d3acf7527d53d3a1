//go:build integration
// +build integration

package integration

import (
	"testing"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	hydrav1alpha1 "github.com/canonical/hydra-operator/api/v1alpha1"
)

func discardLogger() logr.Logger {
	return logr.Discard()
}

// createMinimalService creates a HydraService with no integrations. Such a
// service renders workload infrastructure but reports Blocked until a
// database is wired.
func createMinimalService(t *testing.T, namespace, name string) *hydrav1alpha1.HydraService {
	t.Helper()

	service := &hydrav1alpha1.HydraService{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
		},
		Spec: hydrav1alpha1.HydraServiceSpec{
			Image:    "oryd/hydra:v2.2.0",
			Replicas: 1,
			Dev:      true,
			LogLevel: "info",
		},
	}
	if err := k8sClient.Create(ctx, service); err != nil {
		t.Fatalf("create HydraService: %v", err)
	}
	return service
}

// createDatabaseSecret publishes the credentials a database integration
// would provide.
func createDatabaseSecret(t *testing.T, namespace, name string) {
	t.Helper()

	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
		},
		StringData: map[string]string{
			"endpoint": "postgres.example.com:5432",
			"username": "hydra",
			"password": "sekret",
		},
	}
	if err := k8sClient.Create(ctx, secret); err != nil {
		t.Fatalf("create database secret: %v", err)
	}
}
