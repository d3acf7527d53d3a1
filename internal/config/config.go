// Package config renders the workload configuration file from the merged
// dependency snapshot contributions.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"sigs.k8s.io/yaml"

	"github.com/canonical/hydra-operator/api/v1alpha1"
	"github.com/canonical/hydra-operator/internal/deps"
	"github.com/canonical/hydra-operator/internal/hydra"
)

// File is the hydra configuration document. Field names follow the workload's
// own configuration schema.
type File struct {
	DSN        string           `json:"dsn,omitempty"`
	Log        LogConfig        `json:"log"`
	Secrets    SecretsConfig    `json:"secrets"`
	URLs       URLsConfig       `json:"urls"`
	Strategies StrategiesConfig `json:"strategies"`
	OAuth2     *OAuth2Config    `json:"oauth2,omitempty"`
	Webfinger  WebfingerConfig  `json:"webfinger"`
}

type LogConfig struct {
	Level string `json:"level"`
}

type SecretsConfig struct {
	System []string `json:"system,omitempty"`
	Cookie []string `json:"cookie,omitempty"`
}

type SelfURLs struct {
	Issuer string `json:"issuer"`
	Public string `json:"public"`
	Admin  string `json:"admin,omitempty"`
}

type URLsConfig struct {
	Self               SelfURLs `json:"self"`
	Login              string   `json:"login,omitempty"`
	Consent            string   `json:"consent,omitempty"`
	Error              string   `json:"error,omitempty"`
	DeviceVerification string   `json:"device_verification,omitempty"`
	PostDeviceDone     string   `json:"post_device_done,omitempty"`
}

type StrategiesConfig struct {
	AccessToken string `json:"access_token"`
}

type TokenHookAuthConfig struct {
	Type   string            `json:"type"`
	Config map[string]string `json:"config"`
}

type TokenHookConfig struct {
	URL  string               `json:"url"`
	Auth *TokenHookAuthConfig `json:"auth,omitempty"`
}

type OAuth2Config struct {
	TokenHook *TokenHookConfig `json:"token_hook,omitempty"`
}

type WebfingerConfig struct {
	OIDCDiscovery OIDCDiscoveryConfig `json:"oidc_discovery"`
}

type OIDCDiscoveryConfig struct {
	SupportedScope []string `json:"supported_scope"`
}

// Render produces the workload configuration for cr from the dependency
// snapshot. Contributions merge left to right; the snapshot sources override
// the spec-level defaults on collision.
func Render(cr *v1alpha1.HydraService, snapshot deps.Snapshot) (string, error) {
	merged := deps.MergeServiceConfigs(
		specConfigs(cr),
		snapshot.Database.ServiceConfigs(),
		snapshot.PublicIngress.ServiceConfigs(),
		snapshot.InternalIngress.ServiceConfigs(),
		snapshot.LoginUI.ServiceConfigs(),
		snapshot.TokenHook.ServiceConfigs(),
		snapshot.Secrets.ServiceConfigs(),
	)

	file := File{
		DSN: str(merged["dsn"]),
		Log: LogConfig{Level: str(merged["log_level"])},
		Secrets: SecretsConfig{
			System: strs(merged["system_secrets"]),
			Cookie: strs(merged["cookie_secrets"]),
		},
		URLs: URLsConfig{
			Self: SelfURLs{
				Issuer: str(merged["public_url"]),
				Public: str(merged["public_url"]),
				Admin:  str(merged["admin_url"]),
			},
			Login:              str(merged["login_url"]),
			Consent:            str(merged["consent_url"]),
			Error:              str(merged["oidc_error_url"]),
			DeviceVerification: str(merged["device_verification_url"]),
			PostDeviceDone:     str(merged["post_device_done_url"]),
		},
		Strategies: StrategiesConfig{AccessToken: str(merged["access_token_strategy"])},
		Webfinger: WebfingerConfig{
			OIDCDiscovery: OIDCDiscoveryConfig{SupportedScope: hydra.DefaultScopes},
		},
	}

	if url := str(merged["token_hook_url"]); url != "" {
		hook := &TokenHookConfig{URL: url}
		if name := str(merged["token_hook_auth_name"]); name != "" {
			hook.Auth = &TokenHookAuthConfig{
				Type: str(merged["token_hook_auth_type"]),
				Config: map[string]string{
					"name":  name,
					"value": str(merged["token_hook_auth_value"]),
					"in":    str(merged["token_hook_auth_in"]),
				},
			}
		}
		file.OAuth2 = &OAuth2Config{TokenHook: hook}
	}

	out, err := yaml.Marshal(file)
	if err != nil {
		return "", fmt.Errorf("rendering workload config: %w", err)
	}
	return string(out), nil
}

// specConfigs is the spec-level contribution, the leftmost merge source.
func specConfigs(cr *v1alpha1.HydraService) deps.ServiceConfigs {
	strategy := "opaque"
	if cr.Spec.JWTAccessTokens {
		strategy = "jwt"
	}
	level := cr.Spec.LogLevel
	if level == "" {
		level = "info"
	}
	return deps.ServiceConfigs{
		"log_level":             level,
		"access_token_strategy": strategy,
	}
}

// Checksum fingerprints rendered config content for change detection.
func Checksum(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func strs(v any) []string {
	s, _ := v.([]string)
	return s
}
