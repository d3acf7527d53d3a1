// Package hydra wraps the hydra binary running inside the workload container.
// All OAuth client CRUD, key rotation and schema migrations go through this
// package; it never talks to the admin API over HTTP directly.
package hydra

import (
	"encoding/json"
	"strings"
)

// DefaultScopes are requested for clients that do not specify their own.
var DefaultScopes = []string{"openid", "profile", "email", "phone"}

// DefaultResponseTypes are requested for clients that do not specify their own.
var DefaultResponseTypes = []string{"code"}

// integrationIDMetadataKey marks clients provisioned for an integration as
// opposed to ones created by hand through an administrative action.
const integrationIDMetadataKey = "integration-id"

// Client is an OAuth 2.0 client record as the hydra CLI reports it in JSON
// format.
type Client struct {
	ClientID                string         `json:"client_id,omitempty"`
	ClientSecret            string         `json:"client_secret,omitempty"`
	Name                    string         `json:"client_name,omitempty"`
	RedirectURIs            []string       `json:"redirect_uris,omitempty"`
	ResponseTypes           []string       `json:"response_types,omitempty"`
	Scope                   string         `json:"scope,omitempty"`
	GrantTypes              []string       `json:"grant_types,omitempty"`
	Audience                []string       `json:"audience,omitempty"`
	TokenEndpointAuthMethod string         `json:"token_endpoint_auth_method,omitempty"`
	ClientURI               string         `json:"client_uri,omitempty"`
	Contacts                []string       `json:"contacts,omitempty"`
	Metadata                map[string]any `json:"metadata,omitempty"`
}

// ManagedByIntegration reports whether this client was provisioned for an
// integration rather than created manually.
func (c *Client) ManagedByIntegration() bool {
	_, ok := c.Metadata[integrationIDMetadataKey]
	return ok
}

// IntegrationID returns the integration identifier stamped into the client
// metadata, or "" for manually created clients.
func (c *Client) IntegrationID() string {
	v, ok := c.Metadata[integrationIDMetadataKey].(string)
	if !ok {
		return ""
	}
	return v
}

// Flags renders the client as hydra CLI flags. Flag order is part of the CLI
// contract and must stay stable.
func (c *Client) Flags() ([]string, error) {
	scope := c.Scope
	if scope == "" {
		scope = strings.Join(DefaultScopes, ",")
	}
	responseTypes := c.ResponseTypes
	if len(responseTypes) == 0 {
		responseTypes = DefaultResponseTypes
	}

	flags := []string{
		"--scope", scope,
		"--response-type", strings.Join(responseTypes, ","),
	}

	if len(c.Audience) > 0 {
		flags = append(flags, "--audience", strings.Join(c.Audience, ","))
	}
	if c.Name != "" {
		flags = append(flags, "--name", c.Name)
	}
	if c.ClientURI != "" {
		flags = append(flags, "--client-uri", c.ClientURI)
	}
	if len(c.Contacts) > 0 {
		flags = append(flags, "--contact", strings.Join(c.Contacts, ","))
	}
	if len(c.GrantTypes) > 0 {
		flags = append(flags, "--grant-type", strings.Join(c.GrantTypes, ","))
	}
	if len(c.RedirectURIs) > 0 {
		flags = append(flags, "--redirect-uri", strings.Join(c.RedirectURIs, ","))
	}
	if c.ClientSecret != "" {
		flags = append(flags, "--secret", c.ClientSecret)
	}
	if c.TokenEndpointAuthMethod != "" {
		flags = append(flags, "--token-endpoint-auth-method", c.TokenEndpointAuthMethod)
	}
	if len(c.Metadata) > 0 {
		raw, err := json.Marshal(c.Metadata)
		if err != nil {
			return nil, err
		}
		flags = append(flags, "--metadata", string(raw))
	}

	return flags, nil
}
