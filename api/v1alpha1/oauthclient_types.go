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
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// OAuthClientFinalizer guards registry bookkeeping before an OAuthClient is removed.
const OAuthClientFinalizer = "hydra.identity.canonical.com/oauthclient-finalizer"

// OAuthClientConditionType identifies a lifecycle aspect of a provisioned client.
type OAuthClientConditionType string

const (
	// OAuthClientConditionProvisioned indicates the client exists in the
	// authorization server and its credentials have been published.
	OAuthClientConditionProvisioned OAuthClientConditionType = "Provisioned"
)

// OAuthClientSpec is the requested OAuth2 client configuration. Field
// semantics follow the hydra client registry; omitted fields fall back to the
// server defaults.
type OAuthClientSpec struct {
	// ServiceRef names the HydraService this client is registered with. The
	// referenced service must live in the same namespace.
	// +kubebuilder:validation:MinLength=1
	ServiceRef string `json:"serviceRef"`
	// RedirectURIs the client may use in authorization flows.
	// +optional
	RedirectURIs []string `json:"redirectURIs,omitempty"`
	// Scope is the space-separated OAuth2 scope the client may request.
	// +optional
	Scope string `json:"scope,omitempty"`
	// GrantTypes the client may use.
	// +optional
	GrantTypes []string `json:"grantTypes,omitempty"`
	// Audience values the client may request tokens for.
	// +optional
	Audience []string `json:"audience,omitempty"`
	// TokenEndpointAuthMethod is the client authentication method at the
	// token endpoint.
	// +kubebuilder:validation:Enum=client_secret_basic;client_secret_post;private_key_jwt;none
	// +optional
	TokenEndpointAuthMethod string `json:"tokenEndpointAuthMethod,omitempty"`
	// Metadata is free-form metadata stored alongside the client record.
	// +optional
	Metadata *apiextensionsv1.JSON `json:"metadata,omitempty"`
}

// OAuthClientStatus is the observed provisioning state of the client.
type OAuthClientStatus struct {
	// RelationID is the stable integer identity this client is tracked under
	// in the registry. Allocated once by the operator and never reused.
	// +optional
	RelationID *int64 `json:"relationID,omitempty"`
	// ClientID is the identifier issued by the authorization server.
	// +optional
	ClientID string `json:"clientID,omitempty"`
	// CredentialsSecretRef references the Secret carrying client_id and
	// client_secret for the consuming application.
	// +optional
	CredentialsSecretRef *corev1.LocalObjectReference `json:"credentialsSecretRef,omitempty"`
	// Conditions represent the latest observations of the client state.
	// +optional
	Conditions []metav1.Condition `json:"conditions,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:printcolumn:name="Client ID",type=string,JSONPath=`.status.clientID`
// +kubebuilder:printcolumn:name="Relation",type=integer,JSONPath=`.status.relationID`

// OAuthClient is the Schema for the oauthclients API. Each object asks the
// operator to provision one OAuth2 client in the referenced HydraService.
type OAuthClient struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   OAuthClientSpec   `json:"spec,omitempty"`
	Status OAuthClientStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// OAuthClientList contains a list of OAuthClient.
type OAuthClientList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []OAuthClient `json:"items"`
}

func init() {
	SchemeBuilder.Register(&OAuthClient{}, &OAuthClientList{})
}
