package schlussel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestAuthorizeDevice_SlowDownThenSuccess(t *testing.T) {
	var pollCount int32
	var pollTimes []time.Time

	var mux http.ServeMux
	mux.HandleFunc("/device", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"device_code":      "D",
			"user_code":        "WDJB-MJHT",
			"verification_uri": "https://as.example.com/dev",
			"interval":         1,
			"expires_in":       60,
		})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		pollTimes = append(pollTimes, time.Now())
		n := atomic.AddInt32(&pollCount, 1)
		w.Header().Set("Content-Type", "application/json")
		switch n {
		case 1:
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "slow_down"})
		case 2:
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "authorization_pending"})
		default:
			_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "A", "token_type": "Bearer"})
		}
	})

	server := httptest.NewTLSServer(&mux)
	defer server.Close()

	provider, err := NewProviderConfig("abc", "https://as.example.com/auth", server.URL+"/token", "http://127.0.0.1:0/cb",
		WithDeviceAuthorizationEndpoint(server.URL+"/device"))
	if err != nil {
		t.Fatalf("NewProviderConfig() failed: %v", err)
	}

	client := NewClient(provider, WithBrowserOpener(NoopBrowserOpener), WithOutput(discardWriter{}), WithHTTPClient(server.Client()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tok, err := client.AuthorizeDevice(ctx)
	if err != nil {
		t.Fatalf("AuthorizeDevice() failed: %v", err)
	}
	if tok.AccessToken != "A" {
		t.Errorf("AccessToken = %q, want A", tok.AccessToken)
	}
	if atomic.LoadInt32(&pollCount) < 3 {
		t.Errorf("expected at least 3 poll cycles, got %d", pollCount)
	}
	if len(pollTimes) >= 3 {
		gap := pollTimes[2].Sub(pollTimes[1])
		if gap < 1500*time.Millisecond {
			t.Errorf("expected the interval to have grown after slow_down, gap = %v", gap)
		}
	}
}

func TestAuthorizeDevice_CodeExpires(t *testing.T) {
	var mux http.ServeMux
	mux.HandleFunc("/device", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"device_code":      "D",
			"user_code":        "WDJB-MJHT",
			"verification_uri": "https://as.example.com/dev",
			"interval":         1,
			"expires_in":       2,
		})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "authorization_pending"})
	})

	server := httptest.NewTLSServer(&mux)
	defer server.Close()

	provider, err := NewProviderConfig("abc", "https://as.example.com/auth", server.URL+"/token", "http://127.0.0.1:0/cb",
		WithDeviceAuthorizationEndpoint(server.URL+"/device"))
	if err != nil {
		t.Fatalf("NewProviderConfig() failed: %v", err)
	}

	client := NewClient(provider, WithBrowserOpener(NoopBrowserOpener), WithOutput(discardWriter{}), WithHTTPClient(server.Client()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = client.AuthorizeDevice(ctx)
	assertKind(t, err, KindDeviceCodeExpired)
}

func TestAuthorizeDevice_RequiresDeviceEndpoint(t *testing.T) {
	provider, err := NewProviderConfig("abc", "https://as.example.com/auth", "https://as.example.com/token", "http://127.0.0.1:0/cb")
	if err != nil {
		t.Fatalf("NewProviderConfig() failed: %v", err)
	}
	client := NewClient(provider)
	_, err = client.AuthorizeDevice(context.Background())
	assertKind(t, err, KindUnsupported)
}
