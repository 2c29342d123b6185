package schlussel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRefresh_PreservesOldRefreshTokenWhenOmitted(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("failed to parse form: %v", err)
		}
		if r.Form.Get("grant_type") != "refresh_token" {
			t.Errorf("grant_type = %q, want refresh_token", r.Form.Get("grant_type"))
		}
		if r.Form.Get("refresh_token") != "R1" {
			t.Errorf("refresh_token = %q, want R1", r.Form.Get("refresh_token"))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "A2",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	defer server.Close()

	provider, err := NewProviderConfig("abc", "https://as.example.com/auth", server.URL, "http://127.0.0.1:0/cb")
	if err != nil {
		t.Fatalf("NewProviderConfig() failed: %v", err)
	}
	client := NewClient(provider, WithHTTPClient(server.Client()))

	tok, err := client.Refresh(context.Background(), "R1", "")
	if err != nil {
		t.Fatalf("Refresh() failed: %v", err)
	}
	if tok.AccessToken != "A2" {
		t.Errorf("AccessToken = %q, want A2", tok.AccessToken)
	}
	if tok.RefreshToken != "R1" {
		t.Errorf("RefreshToken = %q, want the old refresh_token R1 to be retained", tok.RefreshToken)
	}
}

func TestRefresh_ReplacesRefreshTokenWhenServerSuppliesOne(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "A2",
			"token_type":    "Bearer",
			"refresh_token": "R2",
		})
	}))
	defer server.Close()

	provider, err := NewProviderConfig("abc", "https://as.example.com/auth", server.URL, "http://127.0.0.1:0/cb")
	if err != nil {
		t.Fatalf("NewProviderConfig() failed: %v", err)
	}
	client := NewClient(provider, WithHTTPClient(server.Client()))

	tok, err := client.Refresh(context.Background(), "R1", "")
	if err != nil {
		t.Fatalf("Refresh() failed: %v", err)
	}
	if tok.RefreshToken != "R2" {
		t.Errorf("RefreshToken = %q, want R2", tok.RefreshToken)
	}
}

func TestRefresh_RejectsEmptyRefreshToken(t *testing.T) {
	provider, err := NewProviderConfig("abc", "https://as.example.com/auth", "https://as.example.com/token", "http://127.0.0.1:0/cb")
	if err != nil {
		t.Fatalf("NewProviderConfig() failed: %v", err)
	}
	client := NewClient(provider)

	_, err = client.Refresh(context.Background(), "", "")
	assertKind(t, err, KindInvalidParameter)
}
