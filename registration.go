package schlussel

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
)

// ClientMetadata is the RFC 7591 §2 client metadata this library accepts
// and emits. RedirectURIs must contain at least one entry.
type ClientMetadata struct {
	RedirectURIs            []string `json:"redirect_uris"`
	ClientName              string   `json:"client_name,omitempty"`
	GrantTypes              []string `json:"grant_types,omitempty"`
	ResponseTypes           []string `json:"response_types,omitempty"`
	Scope                   string   `json:"scope,omitempty"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method,omitempty"`
}

// RegisteredClient is the authorization server's response to a successful
// registration (RFC 7591 §3.2.1), carrying the credentials and management
// URI needed for subsequent RFC 7592 operations.
type RegisteredClient struct {
	ClientID                string `json:"client_id"`
	ClientSecret            string `json:"client_secret,omitempty"`
	RegistrationAccessToken string `json:"registration_access_token,omitempty"`
	RegistrationClientURI   string `json:"registration_client_uri,omitempty"`
	ClientMetadata
}

// NewClientMetadataFromCommaSeparated builds a ClientMetadata from
// comma-separated grantTypes/responseTypes strings, per spec.md §4.8's
// "comma-separated inputs from the outer layer are split and trimmed".
func NewClientMetadataFromCommaSeparated(redirectURIs []string, clientName, grantTypes, responseTypes, scope, tokenEndpointAuthMethod string) (*ClientMetadata, error) {
	if len(redirectURIs) == 0 {
		return nil, newError(KindInvalidParameter, "redirect_uris must contain at least one entry", nil)
	}
	return &ClientMetadata{
		RedirectURIs:            redirectURIs,
		ClientName:              clientName,
		GrantTypes:              trimmedSplit(grantTypes),
		ResponseTypes:           trimmedSplit(responseTypes),
		Scope:                   scope,
		TokenEndpointAuthMethod: tokenEndpointAuthMethod,
	}, nil
}

// RegisterClient performs RFC 7591 dynamic client registration: POST
// metadata to registration_endpoint and parse the resulting
// RegisteredClient.
func (c *Client) RegisterClient(ctx context.Context, metadata *ClientMetadata) (*RegisteredClient, error) {
	if c.provider.RegistrationEndpoint == "" {
		return nil, newError(KindUnsupported, "provider has no registration_endpoint configured", nil)
	}
	if len(metadata.RedirectURIs) == 0 {
		return nil, newError(KindInvalidParameter, "redirect_uris must contain at least one entry", nil)
	}

	var rc RegisteredClient
	if err := c.registrationRequest(ctx, http.MethodPost, c.provider.RegistrationEndpoint, "", metadata, &rc); err != nil {
		return nil, err
	}
	return &rc, nil
}

// ReadClientRegistration performs RFC 7592 §2.1: GET the registration
// client's current configuration using its registration_access_token.
func (c *Client) ReadClientRegistration(ctx context.Context, registrationClientURI, registrationAccessToken string) (*RegisteredClient, error) {
	var rc RegisteredClient
	if err := c.registrationRequest(ctx, http.MethodGet, registrationClientURI, registrationAccessToken, nil, &rc); err != nil {
		return nil, err
	}
	return &rc, nil
}

// UpdateClientRegistration performs RFC 7592 §2.2: PUT new metadata to the
// client's registration URI.
func (c *Client) UpdateClientRegistration(ctx context.Context, registrationClientURI, registrationAccessToken string, metadata *ClientMetadata) (*RegisteredClient, error) {
	var rc RegisteredClient
	if err := c.registrationRequest(ctx, http.MethodPut, registrationClientURI, registrationAccessToken, metadata, &rc); err != nil {
		return nil, err
	}
	return &rc, nil
}

// DeleteClientRegistration performs RFC 7592 §2.3: DELETE the client's
// registration.
func (c *Client) DeleteClientRegistration(ctx context.Context, registrationClientURI, registrationAccessToken string) error {
	return c.registrationRequest(ctx, http.MethodDelete, registrationClientURI, registrationAccessToken, nil, nil)
}

// registrationRequest is the thin protocol wrapper spec.md §4.8 describes:
// every non-create operation carries Authorization: Bearer
// <registration_access_token>.
func (c *Client) registrationRequest(ctx context.Context, method, endpoint, accessToken string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errorf(KindJSON, err, "failed to marshal registration request body")
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return errorf(KindConfiguration, err, "failed to build registration request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errorf(KindConnectionFailed, err, "registration request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var oauthErr struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&oauthErr)
		if oauthErr.Error != "" {
			return mapOAuthError(oauthErr.Error, oauthErr.ErrorDescription)
		}
		return errorf(KindServer, nil, "registration endpoint returned HTTP %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errorf(KindJSON, err, "failed to decode registration response")
	}
	return nil
}
