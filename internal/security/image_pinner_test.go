package security

import (
	"context"
	"testing"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
)

func TestPinReturnsDigestReferencesUnchanged(t *testing.T) {
	pinner := NewImagePinner(logr.Discard(), nil)

	ref := "oryd/hydra@sha256:4bbd446200cbbeb15871e86ac7030947e4d0377d38ecf54ed143232c56e5102f"
	pinned, err := pinner.Pin(context.Background(), ref, nil, "default")
	if err != nil {
		t.Fatalf("Pin: %v", err)
	}
	// name normalizes the reference but the digest must survive untouched.
	if pinned != "index.docker.io/oryd/hydra@sha256:4bbd446200cbbeb15871e86ac7030947e4d0377d38ecf54ed143232c56e5102f" {
		t.Errorf("pinned = %q", pinned)
	}
}

func TestPinRejectsMalformedReference(t *testing.T) {
	pinner := NewImagePinner(logr.Discard(), nil)

	if _, err := pinner.Pin(context.Background(), "not a reference!", nil, "default"); err == nil {
		t.Fatal("expected error for malformed reference")
	}
}

func TestPinUsesCache(t *testing.T) {
	pinner := NewImagePinner(logr.Discard(), nil)
	pinner.cache.put("oryd/hydra:v2.2.0", "index.docker.io/oryd/hydra@sha256:cafe")

	pinned, err := pinner.Pin(context.Background(), "oryd/hydra:v2.2.0", nil, "default")
	if err != nil {
		t.Fatalf("Pin: %v", err)
	}
	if pinned != "index.docker.io/oryd/hydra@sha256:cafe" {
		t.Errorf("pinned = %q", pinned)
	}
}

func TestBuildKeychainFromPullSecret(t *testing.T) {
	scheme := runtime.NewScheme()
	if err := clientgoscheme.AddToScheme(scheme); err != nil {
		t.Fatalf("add scheme: %v", err)
	}

	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Namespace: "default", Name: "regcred"},
		Type:       corev1.SecretTypeDockerConfigJson,
		Data: map[string][]byte{
			corev1.DockerConfigJsonKey: []byte(`{"auths":{"registry.example.com":{"username":"bot","password":"hunter2"}}}`),
		},
	}

	c := fake.NewClientBuilder().WithScheme(scheme).WithObjects(secret).Build()
	pinner := NewImagePinner(logr.Discard(), c)

	keychain, err := pinner.buildKeychain(context.Background(), []corev1.LocalObjectReference{{Name: "regcred"}}, "default")
	if err != nil {
		t.Fatalf("buildKeychain: %v", err)
	}
	if keychain == nil {
		t.Fatal("expected a keychain")
	}

	auth, err := keychain.Resolve(registryResource("registry.example.com"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	cfg, err := auth.Authorization()
	if err != nil {
		t.Fatalf("Authorization: %v", err)
	}
	if cfg.Username != "bot" || cfg.Password != "hunter2" {
		t.Errorf("auth = %+v", cfg)
	}
}

func TestBuildKeychainRejectsWrongSecretType(t *testing.T) {
	scheme := runtime.NewScheme()
	if err := clientgoscheme.AddToScheme(scheme); err != nil {
		t.Fatalf("add scheme: %v", err)
	}

	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Namespace: "default", Name: "regcred"},
		Type:       corev1.SecretTypeOpaque,
	}

	c := fake.NewClientBuilder().WithScheme(scheme).WithObjects(secret).Build()
	pinner := NewImagePinner(logr.Discard(), c)

	if _, err := pinner.buildKeychain(context.Background(), []corev1.LocalObjectReference{{Name: "regcred"}}, "default"); err == nil {
		t.Fatal("expected error for Opaque pull secret")
	}
}

// registryResource is a minimal authn.Resource for tests.
type registryResource string

func (r registryResource) String() string      { return string(r) }
func (r registryResource) RegistryStr() string { return string(r) }
