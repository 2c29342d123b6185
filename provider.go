package schlussel

import (
	"net/url"
	"strconv"
	"strings"
)

// ProviderConfig describes one OAuth provider's endpoints and client
// identity. It is immutable after construction (NewProviderConfig
// validates and returns a value; nothing later mutates its fields).
type ProviderConfig struct {
	ClientID                    string
	ClientSecret                string
	AuthorizationEndpoint       string
	TokenEndpoint               string
	DeviceAuthorizationEndpoint string
	RegistrationEndpoint        string
	RedirectURI                 string
	Scopes                      string
}

// ProviderOption configures a ProviderConfig under construction.
type ProviderOption func(*ProviderConfig)

// WithClientSecret marks the client as confidential. Its absence implies a
// public client authenticating solely via PKCE.
func WithClientSecret(secret string) ProviderOption {
	return func(c *ProviderConfig) { c.ClientSecret = secret }
}

// WithDeviceAuthorizationEndpoint enables the device flow for this
// provider. Its absence means Client.AuthorizeDevice fails with
// KindUnsupported.
func WithDeviceAuthorizationEndpoint(endpoint string) ProviderOption {
	return func(c *ProviderConfig) { c.DeviceAuthorizationEndpoint = endpoint }
}

// WithRegistrationEndpoint enables dynamic client registration (RFC
// 7591/7592) against endpoint.
func WithRegistrationEndpoint(endpoint string) ProviderOption {
	return func(c *ProviderConfig) { c.RegistrationEndpoint = endpoint }
}

// WithScopes sets the space-delimited scope string requested during
// authorization.
func WithScopes(scopes string) ProviderOption {
	return func(c *ProviderConfig) { c.Scopes = scopes }
}

// NewProviderConfig validates and builds a ProviderConfig for the
// Authorization-Code-with-PKCE flow against a loopback redirect URI.
// clientID must be non-empty; authorizationEndpoint and tokenEndpoint must
// be absolute https URLs; redirectURI must be a loopback URL
// (http://127.0.0.1:<port>/... or http://localhost:<port>/..., port 0
// meaning "pick one at flow time").
func NewProviderConfig(clientID, authorizationEndpoint, tokenEndpoint, redirectURI string, opts ...ProviderOption) (*ProviderConfig, error) {
	if clientID == "" {
		return nil, newError(KindInvalidParameter, "client_id must not be empty", nil)
	}
	if err := validateHTTPSEndpoint(authorizationEndpoint); err != nil {
		return nil, errorf(KindInvalidParameter, err, "invalid authorization_endpoint %q", authorizationEndpoint)
	}
	if err := validateHTTPSEndpoint(tokenEndpoint); err != nil {
		return nil, errorf(KindInvalidParameter, err, "invalid token_endpoint %q", tokenEndpoint)
	}
	if err := validateLoopbackRedirect(redirectURI); err != nil {
		return nil, errorf(KindInvalidParameter, err, "invalid redirect_uri %q", redirectURI)
	}

	cfg := &ProviderConfig{
		ClientID:              clientID,
		AuthorizationEndpoint: authorizationEndpoint,
		TokenEndpoint:         tokenEndpoint,
		RedirectURI:           redirectURI,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg, nil
}

// IsConfidential reports whether the provider was configured with a client
// secret. Public clients rely solely on PKCE.
func (c *ProviderConfig) IsConfidential() bool {
	return c.ClientSecret != ""
}

// SupportsDeviceFlow reports whether device_authorization_endpoint was
// configured.
func (c *ProviderConfig) SupportsDeviceFlow() bool {
	return c.DeviceAuthorizationEndpoint != ""
}

func validateHTTPSEndpoint(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if !u.IsAbs() || u.Scheme != "https" {
		return newError(KindInvalidParameter, "endpoint must be an absolute https URL", nil)
	}
	return nil
}

// validateLoopbackRedirect enforces spec.md §3's redirect_uri rule: for the
// loopback flow it must be http://127.0.0.1:<port>/... or
// http://localhost:<port>/..., where port 0 means "assign one at flow
// start."
func validateLoopbackRedirect(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" {
		return newError(KindInvalidParameter, "loopback redirect_uri must use http", nil)
	}
	host := u.Hostname()
	if host != "127.0.0.1" && host != "localhost" {
		return newError(KindInvalidParameter, "loopback redirect_uri host must be 127.0.0.1 or localhost", nil)
	}
	return nil
}

// redirectPort extracts the port from a loopback redirect_uri; 0 means
// "auto-assign."
func redirectPort(raw string) (int, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return 0, err
	}
	if u.Port() == "" {
		return 0, nil
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		return 0, newError(KindInvalidParameter, "redirect_uri port must be numeric", err)
	}
	return port, nil
}

// withPort rewrites the redirect_uri's port, used after the loopback
// listener binds an OS-assigned port (spec.md §4.5 step 1).
func withPort(raw string, port int) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	host := u.Hostname()
	u.Host = host + ":" + strconv.Itoa(port)
	return u.String(), nil
}

// Well-known preset endpoints, named constructors supplying endpoint URLs
// per spec.md §3. GitHub and Google mirror the named constructors declared
// in original_source/include/schlussel.h; GitLab and Microsoft are this
// module's own supplement, added by applying the same preset shape to
// other well-known providers.

// NewGitHubProviderConfig builds a ProviderConfig for GitHub OAuth Apps.
func NewGitHubProviderConfig(clientID, redirectURI string, opts ...ProviderOption) (*ProviderConfig, error) {
	opts = append([]ProviderOption{WithDeviceAuthorizationEndpoint("https://github.com/login/device/code")}, opts...)
	return NewProviderConfig(clientID, "https://github.com/login/oauth/authorize", "https://github.com/login/oauth/access_token", redirectURI, opts...)
}

// NewGoogleProviderConfig builds a ProviderConfig for Google OAuth 2.0.
func NewGoogleProviderConfig(clientID, redirectURI string, opts ...ProviderOption) (*ProviderConfig, error) {
	opts = append([]ProviderOption{WithDeviceAuthorizationEndpoint("https://oauth2.googleapis.com/device/code")}, opts...)
	return NewProviderConfig(clientID, "https://accounts.google.com/o/oauth2/v2/auth", "https://oauth2.googleapis.com/token", redirectURI, opts...)
}

// NewGitLabProviderConfig builds a ProviderConfig for GitLab OAuth 2.0.
func NewGitLabProviderConfig(clientID, redirectURI string, opts ...ProviderOption) (*ProviderConfig, error) {
	return NewProviderConfig(clientID, "https://gitlab.com/oauth/authorize", "https://gitlab.com/oauth/token", redirectURI, opts...)
}

// NewMicrosoftProviderConfig builds a ProviderConfig for Microsoft Identity
// Platform (Azure AD) OAuth 2.0, using the "common" multi-tenant endpoint.
func NewMicrosoftProviderConfig(clientID, redirectURI string, opts ...ProviderOption) (*ProviderConfig, error) {
	return NewProviderConfig(clientID,
		"https://login.microsoftonline.com/common/oauth2/v2.0/authorize",
		"https://login.microsoftonline.com/common/oauth2/v2.0/token",
		redirectURI, opts...)
}

// trimmedSplit splits a comma-separated input string, trims each element,
// and drops empty elements — used by dynamic registration (spec.md §4.8)
// when the outer layer supplies comma-separated lists.
func trimmedSplit(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
