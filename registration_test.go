package schlussel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRegisterClient_RoundTrip(t *testing.T) {
	const clientID = "cid"
	const registrationAccessToken = "rat"

	var mux http.ServeMux
	mux.HandleFunc("/register", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		var metadata ClientMetadata
		if err := json.NewDecoder(r.Body).Decode(&metadata); err != nil {
			t.Fatalf("failed to decode registration request: %v", err)
		}
		if len(metadata.RedirectURIs) != 1 || metadata.RedirectURIs[0] != "http://127.0.0.1/cb" {
			t.Errorf("unexpected redirect_uris: %v", metadata.RedirectURIs)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(RegisteredClient{
			ClientID:                clientID,
			RegistrationAccessToken: registrationAccessToken,
			ClientMetadata:          metadata,
		})
	})
	mux.HandleFunc("/register/cid", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer "+registrationAccessToken {
			t.Errorf("Authorization header = %q, want Bearer %s", got, registrationAccessToken)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(RegisteredClient{ClientID: clientID})
	})

	server := httptest.NewServer(&mux)
	defer server.Close()

	provider, err := NewProviderConfig("abc", "https://as.example.com/auth", "https://as.example.com/token", "http://127.0.0.1:0/cb",
		WithRegistrationEndpoint(server.URL+"/register"))
	if err != nil {
		t.Fatalf("NewProviderConfig() failed: %v", err)
	}
	client := NewClient(provider)

	metadata, err := NewClientMetadataFromCommaSeparated([]string{"http://127.0.0.1/cb"}, "my app", "authorization_code, refresh_token", "code", "", "")
	if err != nil {
		t.Fatalf("NewClientMetadataFromCommaSeparated() failed: %v", err)
	}

	registered, err := client.RegisterClient(context.TODO(), metadata)
	if err != nil {
		t.Fatalf("RegisterClient() failed: %v", err)
	}
	if registered.ClientID != clientID {
		t.Errorf("ClientID = %q, want %q", registered.ClientID, clientID)
	}

	read, err := client.ReadClientRegistration(context.TODO(), server.URL+"/register/cid", registered.RegistrationAccessToken)
	if err != nil {
		t.Fatalf("ReadClientRegistration() failed: %v", err)
	}
	if read.ClientID != registered.ClientID {
		t.Errorf("ReadClientRegistration().ClientID = %q, want %q", read.ClientID, registered.ClientID)
	}
}

func TestNewClientMetadataFromCommaSeparated_RequiresRedirectURIs(t *testing.T) {
	_, err := NewClientMetadataFromCommaSeparated(nil, "my app", "", "", "", "")
	assertKind(t, err, KindInvalidParameter)
}
