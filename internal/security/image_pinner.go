package security

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-logr/logr"
	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	ggcrremote "github.com/google/go-containerregistry/pkg/v1/remote"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// ImagePinner resolves image tags to digest references so that every workload
// replica runs identical bits and a re-pushed tag cannot swap the image under
// a running Deployment. It keeps an in-memory cache to avoid a registry
// round-trip on every reconcile loop.
type ImagePinner struct {
	logger logr.Logger
	cache  *digestCache
	client client.Client
}

// NewImagePinner creates a new ImagePinner with the provided logger and Kubernetes client.
// The client is used to read ImagePullSecrets for private registry authentication.
func NewImagePinner(logger logr.Logger, k8sClient client.Client) *ImagePinner {
	return &ImagePinner{
		logger: logger,
		cache:  newDigestCache(),
		client: k8sClient,
	}
}

// Pin resolves the given image reference to a digest reference
// (e.g., "oryd/hydra@sha256:abc..."). References that already carry a digest
// are returned unchanged.
func (p *ImagePinner) Pin(ctx context.Context, imageRef string, imagePullSecrets []corev1.LocalObjectReference, namespace string) (string, error) {
	ref, err := name.ParseReference(imageRef)
	if err != nil {
		return "", fmt.Errorf("failed to parse image reference %q: %w", imageRef, err)
	}

	if d, ok := ref.(name.Digest); ok {
		return d.String(), nil
	}

	if digest, ok := p.cache.get(imageRef); ok {
		p.logger.V(1).Info("Image digest cache hit", "image", imageRef, "digest", digest)
		return digest, nil
	}

	var opts []ggcrremote.Option
	if len(imagePullSecrets) > 0 && p.client != nil {
		keychain, err := p.buildKeychain(ctx, imagePullSecrets, namespace)
		if err != nil {
			return "", fmt.Errorf("failed to build keychain for image pull secrets: %w", err)
		}
		if keychain != nil {
			opts = append(opts, ggcrremote.WithAuthFromKeychain(keychain))
		}
	}
	opts = append(opts, ggcrremote.WithContext(ctx))

	desc, err := ggcrremote.Head(ref, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to resolve image digest for %q: %w", imageRef, err)
	}

	digestRef, err := name.NewDigest(fmt.Sprintf("%s@%s", ref.Context().Name(), desc.Digest.String()))
	if err != nil {
		return "", fmt.Errorf("failed to create digest reference: %w", err)
	}

	digest := digestRef.String()
	p.cache.put(imageRef, digest)
	p.logger.Info("Pinned image to digest", "image", imageRef, "digest", digest)

	return digest, nil
}

// buildKeychain constructs a keychain from ImagePullSecrets by reading the secrets
// and creating an authn.Keychain that uses the docker config from the secrets.
// Returns nil if no secrets are provided or if client is not available.
func (p *ImagePinner) buildKeychain(ctx context.Context, imagePullSecrets []corev1.LocalObjectReference, namespace string) (authn.Keychain, error) {
	if len(imagePullSecrets) == 0 || p.client == nil {
		return nil, nil
	}

	// Docker config format: {"auths": {"registry": {"username": "...", "password": "...", "auth": "..."}}}
	type dockerConfig struct {
		Auths map[string]dockerAuthConfig `json:"auths"`
	}

	combined := dockerConfig{
		Auths: make(map[string]dockerAuthConfig),
	}

	for _, secretRef := range imagePullSecrets {
		secret := &corev1.Secret{}
		if err := p.client.Get(ctx, types.NamespacedName{
			Namespace: namespace,
			Name:      secretRef.Name,
		}, secret); err != nil {
			return nil, fmt.Errorf("failed to get ImagePullSecret %s/%s: %w", namespace, secretRef.Name, err)
		}

		if secret.Type != corev1.SecretTypeDockerConfigJson && secret.Type != corev1.SecretTypeDockercfg {
			return nil, fmt.Errorf("ImagePullSecret %s/%s has invalid type %s, expected %s or %s",
				namespace, secretRef.Name, secret.Type, corev1.SecretTypeDockerConfigJson, corev1.SecretTypeDockercfg)
		}

		dockerConfigKey := corev1.DockerConfigJsonKey
		if secret.Type == corev1.SecretTypeDockercfg {
			dockerConfigKey = corev1.DockerConfigKey
		}

		dockerConfigData, ok := secret.Data[dockerConfigKey]
		if !ok {
			return nil, fmt.Errorf("ImagePullSecret %s/%s missing key %s", namespace, secretRef.Name, dockerConfigKey)
		}

		var secretConfig dockerConfig
		if err := json.Unmarshal(dockerConfigData, &secretConfig); err != nil {
			return nil, fmt.Errorf("failed to parse docker config from ImagePullSecret %s/%s: %w", namespace, secretRef.Name, err)
		}

		// Later secrets override earlier ones for the same registry.
		for registry, authConfig := range secretConfig.Auths {
			combined.Auths[registry] = authConfig
		}
	}

	if len(combined.Auths) == 0 {
		return nil, nil
	}

	return &dockerConfigKeychain{auths: combined.Auths}, nil
}

// dockerAuthConfig represents a single docker auth config entry.
type dockerAuthConfig struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Auth     string `json:"auth,omitempty"`
}

// dockerConfigKeychain implements authn.Keychain using docker config auths.
type dockerConfigKeychain struct {
	auths map[string]dockerAuthConfig
}

func (k *dockerConfigKeychain) Resolve(resource authn.Resource) (authn.Authenticator, error) {
	registry := resource.RegistryStr()
	if auth, ok := k.auths[registry]; ok {
		if auth.Username != "" || auth.Password != "" || auth.Auth != "" {
			return &authn.Basic{
				Username: auth.Username,
				Password: auth.Password,
			}, nil
		}
	}
	return authn.Anonymous, nil
}

// digestCache is a simple in-memory tag-to-digest cache.
type digestCache struct {
	mu    sync.RWMutex
	cache map[string]string
}

func newDigestCache() *digestCache {
	return &digestCache{
		cache: make(map[string]string),
	}
}

func (c *digestCache) get(imageRef string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	digest, ok := c.cache[imageRef]
	return digest, ok
}

func (c *digestCache) put(imageRef, digest string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[imageRef] = digest
}
