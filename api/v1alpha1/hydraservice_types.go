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

package v1alpha1

import (
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// ServicePhase is a coarse summary of the service state, mirroring the three
// status levels an operator acts on: converged, waiting on a dependency, or
// blocked on missing operator input.
// +kubebuilder:validation:Enum=Active;Waiting;Blocked
type ServicePhase string

const (
	// HydraServiceFinalizer guards cleanup logic before a HydraService is removed.
	HydraServiceFinalizer = "hydra.identity.canonical.com/hydraservice-finalizer"

	// ServicePhaseActive means the workload is configured, migrated and running.
	ServicePhaseActive ServicePhase = "Active"
	// ServicePhaseWaiting means a dependency exists but is not ready yet;
	// no operator action is required.
	ServicePhaseWaiting ServicePhase = "Waiting"
	// ServicePhaseBlocked means a required dependency is missing or invalid
	// and operator action is required.
	ServicePhaseBlocked ServicePhase = "Blocked"
)

// ConditionType identifies a specific aspect of service health or lifecycle.
type ConditionType string

const (
	// ConditionAvailable indicates whether the workload converged to a running state.
	ConditionAvailable ConditionType = "Available"
	// ConditionMigrated indicates whether the database schema matches the
	// running workload version.
	ConditionMigrated ConditionType = "Migrated"
	// ConditionSecretsReady indicates whether both secret families hold at
	// least one generation.
	ConditionSecretsReady ConditionType = "SecretsReady"
	// ConditionDegraded indicates the operator has detected a problem requiring attention.
	ConditionDegraded ConditionType = "Degraded"
)

// DatabaseSpec points at the PostgreSQL credentials this service uses.
type DatabaseSpec struct {
	// Name is the logical database name to connect to.
	// +kubebuilder:validation:MinLength=1
	Name string `json:"name"`
	// CredentialsSecretRef references a Secret in the service namespace with
	// keys "endpoint", "username" and "password". Cross-namespace references
	// are not allowed.
	CredentialsSecretRef corev1.LocalObjectReference `json:"credentialsSecretRef"`
}

// IngressSpec references the HTTPRoute that exposes the service.
type IngressSpec struct {
	// RouteRef is the name of a Gateway API HTTPRoute in the service namespace.
	// +kubebuilder:validation:MinLength=1
	RouteRef string `json:"routeRef"`
}

// LoginUISpec references the ConfigMap published by the login UI application.
type LoginUISpec struct {
	// EndpointsConfigMapRef references a ConfigMap with the five login UI
	// endpoint URLs: login_url, consent_url, oidc_error_url,
	// device_verification_url and post_device_done_url.
	EndpointsConfigMapRef corev1.LocalObjectReference `json:"endpointsConfigMapRef"`
}

// TracingSpec configures OTLP trace export for the workload.
type TracingSpec struct {
	// Endpoint is the OTLP HTTP collector endpoint, host:port.
	// +kubebuilder:validation:MinLength=1
	Endpoint string `json:"endpoint"`
}

// HookAuthIn is where the token hook authentication credential is carried.
// +kubebuilder:validation:Enum=header;cookie
type HookAuthIn string

const (
	HookAuthInHeader HookAuthIn = "header"
	HookAuthInCookie HookAuthIn = "cookie"
)

// HookAuth describes how the workload authenticates to the token hook.
type HookAuth struct {
	// Name is the header or cookie name carrying the credential.
	// +kubebuilder:validation:MinLength=1
	Name string `json:"name"`
	// In selects whether the credential is sent as a header or a cookie.
	// +kubebuilder:default=header
	// +optional
	In HookAuthIn `json:"in,omitempty"`
	// ValueSecretRef references a Secret key holding the credential value.
	ValueSecretRef corev1.SecretKeySelector `json:"valueSecretRef"`
}

// TokenHookSpec configures the access-token webhook the workload invokes
// while minting tokens.
type TokenHookSpec struct {
	// URL of the hook endpoint.
	// +kubebuilder:validation:MinLength=1
	URL string `json:"url"`
	// Auth optionally configures authentication towards the hook.
	// +optional
	Auth *HookAuth `json:"auth,omitempty"`
}

// SecretRotationSpec schedules automatic rotation of the signing and cookie
// secret families.
type SecretRotationSpec struct {
	// Schedule is a cron expression evaluated by the operator; each firing
	// appends a fresh generation to both families.
	// +kubebuilder:validation:MinLength=1
	Schedule string `json:"schedule"`
}

// HydraServiceSpec defines the desired state of a managed Ory Hydra deployment.
type HydraServiceSpec struct {
	// Image is the workload container image. When verification is enabled the
	// operator pins the image by its resolved digest.
	// +kubebuilder:validation:MinLength=1
	Image string `json:"image"`
	// PinImageDigest makes the operator resolve the image tag to a digest
	// before rolling the workload, so that all replicas run identical bits.
	// +optional
	PinImageDigest bool `json:"pinImageDigest,omitempty"`
	// Replicas is the desired number of workload replicas.
	// +kubebuilder:default=1
	// +kubebuilder:validation:Minimum=1
	// +optional
	Replicas int32 `json:"replicas,omitempty"`
	// Dev relaxes the HTTPS requirement on the public endpoint. Never enable
	// in production.
	// +optional
	Dev bool `json:"dev,omitempty"`
	// LogLevel is the workload log level.
	// +kubebuilder:validation:Enum=trace;debug;info;warn;error;fatal;panic
	// +kubebuilder:default=info
	// +optional
	LogLevel string `json:"logLevel,omitempty"`
	// JWTAccessTokens selects the "jwt" access token strategy instead of "opaque".
	// +optional
	JWTAccessTokens bool `json:"jwtAccessTokens,omitempty"`
	// Database configures the PostgreSQL integration. Absent means the
	// integration is missing and the service reports Blocked.
	// +optional
	Database *DatabaseSpec `json:"database,omitempty"`
	// PublicIngress exposes the OAuth2/OIDC public endpoints.
	// +optional
	PublicIngress *IngressSpec `json:"publicIngress,omitempty"`
	// InternalIngress exposes the admin endpoints inside the cluster.
	// +optional
	InternalIngress *IngressSpec `json:"internalIngress,omitempty"`
	// LoginUI wires the external login/consent user interface.
	// +optional
	LoginUI *LoginUISpec `json:"loginUI,omitempty"`
	// Tracing enables OTLP trace export.
	// +optional
	Tracing *TracingSpec `json:"tracing,omitempty"`
	// TokenHook configures the access token webhook.
	// +optional
	TokenHook *TokenHookSpec `json:"tokenHook,omitempty"`
	// SecretRotation schedules automatic secret rotation.
	// +optional
	SecretRotation *SecretRotationSpec `json:"secretRotation,omitempty"`
}

// HydraServiceStatus defines the observed state of a HydraService.
type HydraServiceStatus struct {
	// Phase is the coarse service status.
	// +optional
	Phase ServicePhase `json:"phase,omitempty"`
	// Reason is a short human-readable explanation for a non-Active phase.
	// +optional
	Reason string `json:"reason,omitempty"`
	// Version is the workload version reported by the hydra binary.
	// +optional
	Version string `json:"version,omitempty"`
	// MigratedVersion is the workload version the schema was last migrated for.
	// +optional
	MigratedVersion string `json:"migratedVersion,omitempty"`
	// Conditions represent the latest observations of the service state.
	// +optional
	Conditions []metav1.Condition `json:"conditions,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:printcolumn:name="Phase",type=string,JSONPath=`.status.phase`
// +kubebuilder:printcolumn:name="Reason",type=string,JSONPath=`.status.reason`
// +kubebuilder:printcolumn:name="Version",type=string,JSONPath=`.status.version`

// HydraService is the Schema for the hydraservices API.
type HydraService struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   HydraServiceSpec   `json:"spec,omitempty"`
	Status HydraServiceStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// HydraServiceList contains a list of HydraService.
type HydraServiceList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []HydraService `json:"items"`
}

func init() {
	SchemeBuilder.Register(&HydraService{}, &HydraServiceList{})
}
