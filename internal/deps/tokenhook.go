package deps

import (
	"context"
	"encoding/json"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/types"

	"github.com/canonical/hydra-operator/api/v1alpha1"
)

// HookAuth is the resolved authentication descriptor of the token hook: how
// the workload presents its credential to the hook endpoint.
type HookAuth struct {
	// Name is the header or cookie name.
	Name string
	// In is "header" or "cookie".
	In v1alpha1.HookAuthIn
	// Value is the resolved credential.
	Value string
}

// TokenHookConfig is the data source snapshot of the token hook integration.
type TokenHookConfig struct {
	Ready bool
	URL   string
	// Auth is nil when the hook needs no authentication.
	Auth *HookAuth
}

// IsReady reports whether the hook is fully configured.
func (c TokenHookConfig) IsReady() bool {
	return c.Ready
}

// AuthEnabled reports whether the workload must authenticate to the hook.
func (c TokenHookConfig) AuthEnabled() bool {
	return c.Auth != nil && c.Auth.Name != "" && c.Auth.Value != ""
}

// ServiceConfigs contributes the token hook settings. A hook without auth
// contributes only its URL.
func (c TokenHookConfig) ServiceConfigs() ServiceConfigs {
	if !c.Ready {
		return ServiceConfigs{}
	}
	configs := ServiceConfigs{"token_hook_url": c.URL}
	if c.AuthEnabled() {
		configs["token_hook_auth_type"] = "api_key"
		configs["token_hook_auth_name"] = c.Auth.Name
		configs["token_hook_auth_value"] = c.Auth.Value
		configs["token_hook_auth_in"] = string(c.Auth.In)
	}
	return configs
}

// hookEnvelope is the JSON wire form of a hook descriptor as published on
// the peer data bus.
type hookEnvelope struct {
	URL             string              `json:"url"`
	AuthConfigName  string              `json:"auth_config_name,omitempty"`
	AuthConfigValue string              `json:"auth_config_value,omitempty"`
	AuthConfigIn    v1alpha1.HookAuthIn `json:"auth_config_in,omitempty"`
}

// DecodeTokenHook parses a JSON hook envelope into a TokenHookConfig. The
// auth descriptor is a tagged union on the "auth_config_in" discriminator;
// a value without a name defaults to an Authorization header, matching the
// provider contract.
func DecodeTokenHook(raw []byte) (TokenHookConfig, error) {
	var envelope hookEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return TokenHookConfig{}, fmt.Errorf("parsing token hook envelope: %w", err)
	}
	if envelope.URL == "" {
		return TokenHookConfig{}, fmt.Errorf("token hook envelope has no url")
	}

	cfg := TokenHookConfig{Ready: true, URL: envelope.URL}
	if envelope.AuthConfigValue == "" {
		return cfg, nil
	}

	auth := &HookAuth{
		Name:  envelope.AuthConfigName,
		In:    envelope.AuthConfigIn,
		Value: envelope.AuthConfigValue,
	}
	if auth.Name == "" {
		auth.Name = "Authorization"
	}
	switch auth.In {
	case v1alpha1.HookAuthInHeader, v1alpha1.HookAuthInCookie:
	case "":
		auth.In = v1alpha1.HookAuthInHeader
	default:
		return TokenHookConfig{}, fmt.Errorf("unknown token hook auth location %q", auth.In)
	}
	cfg.Auth = auth
	return cfg, nil
}

// LoadTokenHook builds the hook snapshot from the spec, resolving the
// credential Secret when auth is configured. An unresolvable credential
// degrades to not ready rather than failing the load.
func (l *Loader) LoadTokenHook(ctx context.Context, cr *v1alpha1.HydraService) TokenHookConfig {
	spec := cr.Spec.TokenHook
	if spec == nil || spec.URL == "" {
		return TokenHookConfig{}
	}

	cfg := TokenHookConfig{Ready: true, URL: spec.URL}
	if spec.Auth == nil {
		return cfg
	}

	var secret corev1.Secret
	key := types.NamespacedName{Namespace: cr.Namespace, Name: spec.Auth.ValueSecretRef.Name}
	if err := l.client.Get(ctx, key, &secret); err != nil {
		l.log.V(1).Info("token hook credential unavailable", "secret", key.Name, "error", err.Error())
		return TokenHookConfig{}
	}

	value := string(secret.Data[spec.Auth.ValueSecretRef.Key])
	if value == "" {
		l.log.V(1).Info("token hook credential key empty",
			"secret", key.Name, "key", spec.Auth.ValueSecretRef.Key)
		return TokenHookConfig{}
	}

	in := spec.Auth.In
	if in == "" {
		in = v1alpha1.HookAuthInHeader
	}
	cfg.Auth = &HookAuth{Name: spec.Auth.Name, In: in, Value: value}
	return cfg
}
