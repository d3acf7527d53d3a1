package config

import (
	"strings"
	"testing"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"

	"github.com/canonical/hydra-operator/api/v1alpha1"
	"github.com/canonical/hydra-operator/internal/deps"
)

func testSnapshot() deps.Snapshot {
	return deps.Snapshot{
		Database: deps.DatabaseConfig{
			Endpoint:            "db:5432",
			Database:            "hydra_db",
			Username:            "hydra",
			Password:            "pw",
			MigrationVersionKey: "migration_version_pg-creds",
		},
		PublicIngress: deps.IngressConfig{Exists: true, Ready: true, URL: "https://auth.example.com/"},
		LoginUI: deps.LoginUIEndpoints{
			LoginURL:              "https://ui/login",
			ConsentURL:            "https://ui/consent",
			OIDCErrorURL:          "https://ui/error",
			DeviceVerificationURL: "https://ui/device",
			PostDeviceDoneURL:     "https://ui/done",
		},
		Secrets: deps.SecretsBundle{
			System: []string{"new-system-secret", "old-system-secret"},
			Cookie: []string{"new-cookie-secret"},
		},
	}
}

func TestRender(t *testing.T) {
	cr := &v1alpha1.HydraService{
		ObjectMeta: metav1.ObjectMeta{Namespace: "default", Name: "hydra"},
		Spec:       v1alpha1.HydraServiceSpec{JWTAccessTokens: true, LogLevel: "debug"},
	}

	rendered, err := Render(cr, testSnapshot())
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	var file File
	if err := yaml.Unmarshal([]byte(rendered), &file); err != nil {
		t.Fatalf("rendered config is not valid YAML: %v", err)
	}

	if file.DSN != "postgres://hydra:pw@db:5432/hydra_db" {
		t.Errorf("dsn = %q", file.DSN)
	}
	if file.Log.Level != "debug" {
		t.Errorf("log level = %q, want debug", file.Log.Level)
	}
	if file.Strategies.AccessToken != "jwt" {
		t.Errorf("access token strategy = %q, want jwt", file.Strategies.AccessToken)
	}
	if file.URLs.Self.Issuer != "https://auth.example.com/" {
		t.Errorf("issuer = %q", file.URLs.Self.Issuer)
	}
	if file.URLs.Login != "https://ui/login" {
		t.Errorf("login url = %q", file.URLs.Login)
	}
	// Newest generation first so the workload signs with it.
	if len(file.Secrets.System) != 2 || file.Secrets.System[0] != "new-system-secret" {
		t.Errorf("system secrets = %v", file.Secrets.System)
	}
	if file.OAuth2 != nil {
		t.Error("oauth2 section rendered without a token hook")
	}
}

func TestRenderTokenHook(t *testing.T) {
	cr := &v1alpha1.HydraService{
		ObjectMeta: metav1.ObjectMeta{Namespace: "default", Name: "hydra"},
	}
	snapshot := testSnapshot()
	snapshot.TokenHook = deps.TokenHookConfig{
		Ready: true,
		URL:   "https://hook.example.com",
		Auth:  &deps.HookAuth{Name: "Authorization", In: "header", Value: "token"},
	}

	rendered, err := Render(cr, snapshot)
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	var file File
	if err := yaml.Unmarshal([]byte(rendered), &file); err != nil {
		t.Fatalf("rendered config is not valid YAML: %v", err)
	}
	if file.OAuth2 == nil || file.OAuth2.TokenHook == nil {
		t.Fatal("token hook section missing")
	}
	hook := file.OAuth2.TokenHook
	if hook.URL != "https://hook.example.com" {
		t.Errorf("hook url = %q", hook.URL)
	}
	if hook.Auth == nil || hook.Auth.Type != "api_key" || hook.Auth.Config["in"] != "header" {
		t.Errorf("hook auth = %+v", hook.Auth)
	}
	if file.Strategies.AccessToken != "opaque" {
		t.Errorf("access token strategy = %q, want opaque default", file.Strategies.AccessToken)
	}
}

func TestChecksumStable(t *testing.T) {
	a := Checksum("content")
	b := Checksum("content")
	if a != b {
		t.Error("Checksum() is not deterministic")
	}
	if a == Checksum("other") {
		t.Error("Checksum() collides on different content")
	}
	if !strings.Contains(a, "") || len(a) != 64 {
		t.Errorf("Checksum() = %q, want 64 hex characters", a)
	}
}
