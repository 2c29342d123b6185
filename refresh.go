package schlussel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Refresh exchanges refreshToken at token_endpoint for a new TokenRecord
// (spec.md §4.7). When scope is non-empty it is sent to narrow the granted
// scope; pass "" to request the same scope as before. If the server's
// response omits refresh_token, the returned TokenRecord retains the
// refresh_token the caller supplied.
func (c *Client) Refresh(ctx context.Context, refreshToken, scope string) (*TokenRecord, error) {
	if refreshToken == "" {
		return nil, newError(KindInvalidParameter, "refresh_token must not be empty", nil)
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", c.provider.ClientID)
	if scope != "" {
		form.Set("scope", scope)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.provider.TokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errorf(KindConfiguration, err, "failed to build refresh request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if c.provider.IsConfidential() {
		req.SetBasicAuth(c.provider.ClientID, c.provider.ClientSecret)
	}

	receivedAt := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errorf(KindConnectionFailed, err, "refresh request failed")
	}
	defer resp.Body.Close()

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, errorf(KindJSON, err, "failed to decode refresh response")
	}

	if tr.Error != "" {
		return nil, mapOAuthError(tr.Error, tr.ErrorDescription)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errorf(KindServer, nil, "token endpoint returned HTTP %d", resp.StatusCode)
	}

	rec := tr.toTokenRecord(receivedAt)
	if rec.RefreshToken == "" {
		rec.RefreshToken = refreshToken
	}
	return rec, nil
}
