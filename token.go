package schlussel

import (
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// expirySkew is subtracted from expires_at when checking expiry, guarding
// against clock jitter and in-flight round-trip time (spec.md §4.2).
const expirySkew = 30 * time.Second

// TokenRecord is an immutable credential bundle. Once created its fields
// are never mutated; a refresh produces a new TokenRecord rather than
// updating this one in place.
type TokenRecord struct {
	AccessToken  string
	TokenType    string
	RefreshToken string
	Scope        string
	ExpiresAt    *time.Time
	IDToken      string
}

// IsExpired reports whether the token is expired as of now, using a 30
// second skew. A TokenRecord with no ExpiresAt is treated as never
// expiring from this library's perspective.
func (t *TokenRecord) IsExpired(now time.Time) bool {
	if t.ExpiresAt == nil {
		return false
	}
	return !now.Before(t.ExpiresAt.Add(-expirySkew))
}

// Scopes splits Scope on whitespace, per RFC 6749's space-delimited scope
// string.
func (t *TokenRecord) Scopes() []string {
	if t.Scope == "" {
		return nil
	}
	return strings.Fields(t.Scope)
}

// IsBearer reports whether TokenType is "Bearer", case-insensitively, per
// spec.md's "case-insensitive, canonically Bearer" rule. An empty TokenType
// also counts as Bearer.
func (t *TokenRecord) IsBearer() bool {
	return t.TokenType == "" || strings.EqualFold(t.TokenType, "Bearer")
}

// ToOAuth2Token converts a TokenRecord to golang.org/x/oauth2's Token type,
// so a TokenRecord can be dropped into any oauth2.TokenSource-consuming
// code (for example oauth2.StaticTokenSource, or an http.Client built from
// one).
func (t *TokenRecord) ToOAuth2Token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
	}
	if t.ExpiresAt != nil {
		tok.Expiry = *t.ExpiresAt
	}
	if t.IDToken != "" {
		tok = tok.WithExtra(map[string]any{"id_token": t.IDToken})
	}
	return tok
}

// TokenRecordFromOAuth2Token converts an oauth2.Token (and the scope it was
// granted with, which oauth2.Token doesn't track) to a TokenRecord.
func TokenRecordFromOAuth2Token(tok *oauth2.Token, scope string) *TokenRecord {
	rec := &TokenRecord{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		Scope:        scope,
	}
	if !tok.Expiry.IsZero() {
		exp := tok.Expiry
		rec.ExpiresAt = &exp
	}
	if idToken, ok := tok.Extra("id_token").(string); ok {
		rec.IDToken = idToken
	}
	return rec
}

// tokenResponse is the JSON shape of a token-endpoint response, shared by
// the authorization-code exchange, refresh, and device-code poll paths
// (RFC 6749 §5.1, RFC 8628 §3.5).
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int64  `json:"expires_in"`
	RefreshToken     string `json:"refresh_token"`
	Scope            string `json:"scope"`
	IDToken          string `json:"id_token"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Interval         int64  `json:"interval"`
}

// toTokenRecord builds a TokenRecord from a successful token response,
// computing expires_at as receivedAt + expires_in when the server supplied
// expires_in (spec.md §3: "expires_at = now_on_receipt + expires_in").
func (r *tokenResponse) toTokenRecord(receivedAt time.Time) *TokenRecord {
	rec := &TokenRecord{
		AccessToken:  r.AccessToken,
		TokenType:    r.TokenType,
		RefreshToken: r.RefreshToken,
		Scope:        r.Scope,
		IDToken:      r.IDToken,
	}
	if r.ExpiresIn > 0 {
		exp := receivedAt.Add(time.Duration(r.ExpiresIn) * time.Second)
		rec.ExpiresAt = &exp
	}
	return rec
}
