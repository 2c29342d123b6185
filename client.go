package schlussel

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/pepicrft/schlussel/tokenstore"
)

// DefaultHTTPTimeout bounds any single HTTP request the core issues
// (spec.md §5, "per HTTP request 30 s").
const DefaultHTTPTimeout = 30 * time.Second

// Client drives OAuth flows against one ProviderConfig. It holds no
// credentials of its own beyond what ProviderConfig carries; a Client is
// cheap to construct and safe for concurrent use across goroutines, except
// that only one flow may be in flight per Client instance at a time
// (spec.md §5).
type Client struct {
	provider *ProviderConfig
	http     *http.Client
	logger   *slog.Logger
	browser  BrowserOpener
	output   io.Writer

	store   tokenstore.Store
	appName string

	flowActive   atomic.Bool
	refreshGroup singleflight.Group
}

// ClientOption configures a Client under construction.
type ClientOption func(*Client)

// WithHTTPClient overrides the http.Client used for all provider requests.
// The caller-supplied client's Timeout, if non-zero, is respected as-is.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) { c.http = httpClient }
}

// WithLogger overrides the structured logger used for security-relevant
// events (flow start/end, token refresh, registration).
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// WithBrowserOpener overrides the BrowserOpener used to surface the
// authorization URL. Defaults to DefaultBrowserOpener.
func WithBrowserOpener(opener BrowserOpener) ClientOption {
	return func(c *Client) { c.browser = opener }
}

// WithOutput sets the user channel that the device flow prints
// verification_uri/user_code to. Defaults to os.Stderr (spec.md §4.6,
// "stderr by contract").
func WithOutput(w io.Writer) ClientOption {
	return func(c *Client) { c.output = w }
}

// WithTokenStore attaches a tokenstore.Store to the client, scoping all
// stored records under appName. Without a store, callers are responsible
// for persisting the TokenRecord returned by each flow themselves.
func WithTokenStore(store tokenstore.Store, appName string) ClientOption {
	return func(c *Client) {
		c.store = store
		c.appName = appName
	}
}

// NewClient creates a Client for provider.
func NewClient(provider *ProviderConfig, opts ...ClientOption) *Client {
	c := &Client{
		provider: provider,
		http:     &http.Client{Timeout: DefaultHTTPTimeout},
		logger:   slog.Default(),
		browser:  DefaultBrowserOpener,
		output:   os.Stderr,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// beginFlow enforces the single-flow-per-client invariant (spec.md §5: "a
// client is either idle or driving exactly one in-progress flow"). It
// returns a flow correlation ID for log lines spanning the flow's
// suspension points, and a func to release the flow slot.
func (c *Client) beginFlow() (string, *Error, func()) {
	if !c.flowActive.CompareAndSwap(false, true) {
		return "", newError(KindConfiguration, "a flow is already in progress on this client", nil), nil
	}
	return uuid.New().String(), nil, func() { c.flowActive.Store(false) }
}

// StoreToken persists record under key via the configured token store,
// converting to the store's wire representation. It is a no-op error
// returning KindConfiguration if no store was attached.
func (c *Client) StoreToken(key string, record *TokenRecord) error {
	if c.store == nil {
		return newError(KindConfiguration, "client was not configured with a token store", nil)
	}
	if err := c.store.Put(tokenstore.Key{AppName: c.appName, Key: key}, toStoreRecord(record)); err != nil {
		return errorf(KindStorage, err, "failed to store token")
	}
	return nil
}

// LoadToken reads the record for key from the configured token store.
func (c *Client) LoadToken(key string) (*TokenRecord, error) {
	if c.store == nil {
		return nil, newError(KindConfiguration, "client was not configured with a token store", nil)
	}
	rec, err := c.store.Get(tokenstore.Key{AppName: c.appName, Key: key})
	if err != nil {
		if err == tokenstore.ErrNotFound {
			return nil, newError(KindStorage, "no token stored for key", err)
		}
		return nil, errorf(KindStorage, err, "failed to load token")
	}
	return fromStoreRecord(rec), nil
}

// EnsureValidToken loads the token stored at key, refreshing it through
// this provider's token endpoint if it is expired and a refresh_token is
// available, then writes the result back to the store before returning it.
func (c *Client) EnsureValidToken(ctx context.Context, key string) (*TokenRecord, error) {
	current, err := c.LoadToken(key)
	if err != nil {
		return nil, err
	}
	if !current.IsExpired(time.Now()) {
		return current, nil
	}
	if current.RefreshToken == "" {
		return nil, newError(KindNoRefreshToken, "stored token is expired and carries no refresh_token", nil)
	}

	refreshed, err := c.refreshDeduped(ctx, key, current.RefreshToken, "")
	if err != nil {
		return nil, err
	}
	if err := c.StoreToken(key, refreshed); err != nil {
		return nil, err
	}
	return refreshed, nil
}

// refreshDeduped wraps Refresh in a singleflight group keyed by the
// storage key, so concurrent EnsureValidToken calls racing on the same
// token don't issue duplicate refresh requests.
func (c *Client) refreshDeduped(ctx context.Context, key, refreshToken, scope string) (*TokenRecord, error) {
	v, err, _ := c.refreshGroup.Do(key, func() (any, error) {
		return c.Refresh(ctx, refreshToken, scope)
	})
	if err != nil {
		return nil, err
	}
	return v.(*TokenRecord), nil
}

func toStoreRecord(t *TokenRecord) tokenstore.Record {
	rec := tokenstore.Record{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Scope:        t.Scope,
		IDToken:      t.IDToken,
	}
	if t.ExpiresAt != nil {
		unix := t.ExpiresAt.Unix()
		rec.ExpiresAt = &unix
	}
	return rec
}

func fromStoreRecord(r *tokenstore.Record) *TokenRecord {
	rec := &TokenRecord{
		AccessToken:  r.AccessToken,
		TokenType:    r.TokenType,
		RefreshToken: r.RefreshToken,
		Scope:        r.Scope,
		IDToken:      r.IDToken,
	}
	if r.ExpiresAt != nil {
		t := time.Unix(*r.ExpiresAt, 0)
		rec.ExpiresAt = &t
	}
	return rec
}
