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

// slowDownIncrement is how much the poll interval grows, permanently for
// the session, each time the server responds slow_down (spec.md §4.6 step
// 3, §8 testable property).
const slowDownIncrement = 5 * time.Second

// defaultDevicePollInterval is used when the server's device_authorization
// response omits interval.
const defaultDevicePollInterval = 5 * time.Second

// defaultDeviceFlowTimeout bounds the whole device flow, further narrowed
// by the server-reported expires_in (spec.md §5).
const defaultDeviceFlowTimeout = 900 * time.Second

// DeviceSession is the server's response to the device authorization
// request (RFC 8628 §3.2).
type DeviceSession struct {
	DeviceCode              string
	UserCode                string
	VerificationURI         string
	VerificationURIComplete string
	ExpiresAt               time.Time
	Interval                time.Duration
}

type deviceAuthorizationResponse struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete"`
	ExpiresIn               int64  `json:"expires_in"`
	Interval                int64  `json:"interval"`
}

// AuthorizeDevice drives RFC 8628's Device Authorization Grant to
// completion (spec.md §4.6). It requires the provider to have been
// configured with a device_authorization_endpoint.
func (c *Client) AuthorizeDevice(ctx context.Context) (*TokenRecord, error) {
	if !c.provider.SupportsDeviceFlow() {
		return nil, newError(KindUnsupported, "provider has no device_authorization_endpoint configured", nil)
	}

	flowID, failErr, done := c.beginFlow()
	if failErr != nil {
		return nil, failErr
	}
	defer done()

	c.logger.Info("oauth: starting device authorization flow", "flow_id", flowID, "client_id", c.provider.ClientID)

	session, err := c.requestDeviceSession(ctx)
	if err != nil {
		return nil, err
	}

	c.printDeviceInstructions(session)
	if session.VerificationURIComplete != "" {
		if err := c.browser.OpenURL(session.VerificationURIComplete); err != nil {
			c.logger.Warn("oauth: failed to open browser automatically", "error", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, defaultDeviceFlowTimeout)
	defer cancel()

	tok, err := c.pollDeviceToken(ctx, session)
	if err != nil {
		return nil, err
	}

	c.logger.Info("oauth: device authorization flow completed", "flow_id", flowID)
	return tok, nil
}

func (c *Client) requestDeviceSession(ctx context.Context) (*DeviceSession, error) {
	form := url.Values{}
	form.Set("client_id", c.provider.ClientID)
	if c.provider.Scopes != "" {
		form.Set("scope", c.provider.Scopes)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.provider.DeviceAuthorizationEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errorf(KindConfiguration, err, "failed to build device authorization request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	receivedAt := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errorf(KindConnectionFailed, err, "device authorization request failed")
	}
	defer resp.Body.Close()

	var dr deviceAuthorizationResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return nil, errorf(KindJSON, err, "failed to decode device authorization response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errorf(KindServer, nil, "device authorization endpoint returned HTTP %d", resp.StatusCode)
	}

	interval := defaultDevicePollInterval
	if dr.Interval > 0 {
		interval = time.Duration(dr.Interval) * time.Second
	}

	return &DeviceSession{
		DeviceCode:              dr.DeviceCode,
		UserCode:                dr.UserCode,
		VerificationURI:         dr.VerificationURI,
		VerificationURIComplete: dr.VerificationURIComplete,
		ExpiresAt:               receivedAt.Add(time.Duration(dr.ExpiresIn) * time.Second),
		Interval:                interval,
	}, nil
}

func (c *Client) printDeviceInstructions(session *DeviceSession) {
	fmt.Fprintf(c.output, "To sign in, visit %s and enter code %s\n", session.VerificationURI, session.UserCode)
}

// pollDeviceToken implements spec.md §4.6 step 3's poll loop.
func (c *Client) pollDeviceToken(ctx context.Context, session *DeviceSession) (*TokenRecord, error) {
	interval := session.Interval

	for {
		if !time.Now().Before(session.ExpiresAt) {
			return nil, newError(KindDeviceCodeExpired, "device code expired before authorization completed", nil)
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, newError(KindTimeout, "device authorization cancelled or timed out", nil)
		case <-timer.C:
		}

		tok, pollErr := c.pollDeviceTokenOnce(ctx, session.DeviceCode)
		if pollErr == nil {
			return tok, nil
		}

		kindErr, ok := pollErr.(*Error)
		if !ok {
			return nil, pollErr
		}

		switch kindErr.Kind {
		case kindAuthorizationPending:
			continue
		case kindSlowDown:
			interval += slowDownIncrement
			continue
		case KindAuthorizationDenied, KindDeviceCodeExpired:
			return nil, kindErr
		default:
			return nil, kindErr
		}
	}
}

func (c *Client) pollDeviceTokenOnce(ctx context.Context, deviceCode string) (*TokenRecord, error) {
	form := url.Values{}
	form.Set("grant_type", "urn:ietf:params:oauth:grant-type:device_code")
	form.Set("device_code", deviceCode)
	form.Set("client_id", c.provider.ClientID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.provider.TokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errorf(KindConfiguration, err, "failed to build device poll request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	receivedAt := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errorf(KindConnectionFailed, err, "device poll request failed")
	}
	defer resp.Body.Close()

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, errorf(KindJSON, err, "failed to decode device poll response")
	}

	if tr.Error != "" {
		return nil, mapOAuthError(tr.Error, tr.ErrorDescription)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errorf(KindServer, nil, "token endpoint returned HTTP %d", resp.StatusCode)
	}

	return tr.toTokenRecord(receivedAt), nil
}
