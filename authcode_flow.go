package schlussel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// AuthorizeInteractive drives the Authorization-Code-with-PKCE flow to
// completion: it binds the loopback callback server, opens the
// authorization URL in the user's browser, waits for the redirect, checks
// state, and exchanges the code for a TokenRecord (spec.md §4.5).
func (c *Client) AuthorizeInteractive(ctx context.Context) (*TokenRecord, error) {
	flowID, failErr, done := c.beginFlow()
	if failErr != nil {
		return nil, failErr
	}
	defer done()

	c.logger.Info("oauth: starting authorization code flow", "flow_id", flowID, "client_id", c.provider.ClientID)

	session, err := newPkceSession(0)
	if err != nil {
		return nil, err
	}

	path, err := redirectPath(c.provider.RedirectURI)
	if err != nil {
		return nil, errorf(KindInvalidParameter, err, "invalid redirect_uri")
	}
	port, err := redirectPort(c.provider.RedirectURI)
	if err != nil {
		return nil, err
	}

	server, boundPort, err := newCallbackServer(port, path)
	if err != nil {
		return nil, err
	}
	defer server.stop()

	redirectURI, err := withPort(c.provider.RedirectURI, boundPort)
	if err != nil {
		return nil, errorf(KindConfiguration, err, "failed to rewrite redirect_uri with bound port")
	}

	authURL, err := c.buildAuthorizationURL(redirectURI, session)
	if err != nil {
		return nil, err
	}

	if err := c.browser.OpenURL(authURL); err != nil {
		c.logger.Warn("oauth: failed to open browser automatically", "error", err)
	}
	fmt.Fprintf(c.output, "Open this URL to continue: %s\n", authURL)

	result, err := server.wait(ctx)
	if err != nil {
		return nil, err
	}

	if result.isError() {
		return nil, mapOAuthError(result.Error, result.ErrorDescription)
	}

	if !statesEqual(result.State, session.State) {
		c.logger.Warn("oauth: state mismatch on callback, rejecting")
		return nil, newError(KindInvalidState, "callback state did not match the value sent with the authorization request", nil)
	}

	tok, err := c.exchangeCode(ctx, redirectURI, result.Code, session.CodeVerifier)
	if err != nil {
		return nil, err
	}

	c.logger.Info("oauth: authorization code flow completed", "flow_id", flowID)
	return tok, nil
}

func (c *Client) buildAuthorizationURL(redirectURI string, session *PkceSession) (string, error) {
	base, err := url.Parse(c.provider.AuthorizationEndpoint)
	if err != nil {
		return "", errorf(KindConfiguration, err, "invalid authorization_endpoint")
	}
	q := base.Query()
	q.Set("response_type", "code")
	q.Set("client_id", c.provider.ClientID)
	q.Set("redirect_uri", redirectURI)
	if c.provider.Scopes != "" {
		q.Set("scope", c.provider.Scopes)
	}
	q.Set("state", session.State)
	q.Set("code_challenge", session.CodeChallenge)
	q.Set("code_challenge_method", "S256")
	base.RawQuery = q.Encode()
	return base.String(), nil
}

// exchangeCode performs step 4 of spec.md §4.5: the authorization-code
// exchange at token_endpoint.
func (c *Client) exchangeCode(ctx context.Context, redirectURI, code, codeVerifier string) (*TokenRecord, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)
	form.Set("code_verifier", codeVerifier)
	// client_id is always included in the body: RFC 6749 §3.2.1 requires it
	// for public clients, and including it alongside Basic auth is harmless
	// for confidential ones.
	form.Set("client_id", c.provider.ClientID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.provider.TokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errorf(KindConfiguration, err, "failed to build token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if c.provider.IsConfidential() {
		req.SetBasicAuth(c.provider.ClientID, c.provider.ClientSecret)
	}

	receivedAt := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errorf(KindConnectionFailed, err, "token request failed")
	}
	defer resp.Body.Close()

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, errorf(KindJSON, err, "failed to decode token response")
	}

	if tr.Error != "" {
		return nil, mapOAuthError(tr.Error, tr.ErrorDescription)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errorf(KindServer, nil, "token endpoint returned HTTP %d", resp.StatusCode)
	}

	return tr.toTokenRecord(receivedAt), nil
}

// mapOAuthError implements spec.md §4.5 step 5's error mapping, shared by
// the authorization-code and device flows.
func mapOAuthError(oauthError, description string) *Error {
	switch oauthError {
	case "access_denied":
		return newError(KindAuthorizationDenied, describeOAuthError(oauthError, description), nil)
	case "expired_token":
		return newError(KindDeviceCodeExpired, describeOAuthError(oauthError, description), nil)
	case "authorization_pending":
		return newError(kindAuthorizationPending, describeOAuthError(oauthError, description), nil)
	case "slow_down":
		return newError(kindSlowDown, describeOAuthError(oauthError, description), nil)
	default:
		return newError(KindServer, describeOAuthError(oauthError, description), nil)
	}
}

func describeOAuthError(oauthError, description string) string {
	if description == "" {
		return oauthError
	}
	return oauthError + ": " + description
}
