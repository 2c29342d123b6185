package schlussel

import (
	"context"
	"encoding/json"
)

// scriptVersion is the canonical script format version emitted by
// ResolveScript. Per spec.md §9's open question, the script is an internal
// canonical form with no claimed external compatibility; the version field
// exists so a future incompatible change can be detected defensively, not
// so other implementations can parse it.
const scriptVersion = 1

// ResolvedScript is the canonical, self-contained document
// script_resolve_from_formula produces (spec.md §4.9): enough to drive
// RunScript without reconsulting the originating FormulaDoc.
type ResolvedScript struct {
	Version      int              `json:"version"`
	Method       string           `json:"method"`
	ClientID     string           `json:"client_id"`
	ClientSecret string           `json:"client_secret,omitempty"`
	Scope        string           `json:"scope,omitempty"`
	RedirectURI  string           `json:"redirect_uri,omitempty"`
	Endpoints    FormulaEndpoints `json:"endpoints"`
}

const (
	methodAuthorizationCode = "authorization_code"
	methodDeviceCode        = "device_code"
)

// ResolveScript validates method against doc's declared methods, fills
// defaults (an auto-assigned loopback redirect_uri when omitted for
// authorization_code), and produces the canonical ResolvedScript
// (spec.md §4.9).
func ResolveScript(doc *FormulaDoc, method, clientID, clientSecret, scope, redirectURI string) (*ResolvedScript, error) {
	m, ok := doc.method(method)
	if !ok {
		return nil, newError(KindUnsupported, "method "+method+" is not declared by this formula", nil)
	}
	if clientID == "" {
		return nil, newError(KindInvalidParameter, "client_id is required", nil)
	}
	for _, input := range m.Inputs {
		if !scriptHasInput(input, clientID, clientSecret, scope, redirectURI) {
			return nil, newError(KindInvalidParameter, "method "+method+" requires input "+input, nil)
		}
	}

	if redirectURI == "" && method == methodAuthorizationCode {
		redirectURI = "http://127.0.0.1:0/callback"
	}

	return &ResolvedScript{
		Version:      scriptVersion,
		Method:       method,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scope:        scope,
		RedirectURI:  redirectURI,
		Endpoints:    doc.Endpoints,
	}, nil
}

// scriptHasInput reports whether the named input was supplied among the
// values ResolveScript was called with.
func scriptHasInput(input, clientID, clientSecret, scope, redirectURI string) bool {
	switch input {
	case "client_id":
		return clientID != ""
	case "client_secret":
		return clientSecret != ""
	case "scope":
		return scope != ""
	case "redirect_uri":
		return true // auto-assigned later for authorization_code when omitted
	default:
		return true
	}
}

// MarshalCanonicalJSON serializes the ResolvedScript with sorted object
// keys, including those of the nested endpoints object.
func (s *ResolvedScript) MarshalCanonicalJSON() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, errorf(KindJSON, err, "failed to marshal resolved script")
	}
	// A struct marshals in field declaration order; a map marshals with its
	// keys sorted, so round-trip through a generic map.
	var generic map[string]any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, errorf(KindJSON, err, "failed to re-decode resolved script")
	}
	data, err = json.Marshal(generic)
	if err != nil {
		return nil, errorf(KindJSON, err, "failed to marshal resolved script")
	}
	return data, nil
}

// RunScript validates that client is compatible with script's endpoints
// and dispatches to the matching flow engine (spec.md §4.9). An unknown
// method fails with KindUnsupported.
func RunScript(ctx context.Context, client *Client, script *ResolvedScript) (*TokenRecord, error) {
	if err := validateScriptCompatibility(client.provider, script); err != nil {
		return nil, err
	}

	switch script.Method {
	case methodAuthorizationCode:
		return client.AuthorizeInteractive(ctx)
	case methodDeviceCode:
		return client.AuthorizeDevice(ctx)
	default:
		return nil, newError(KindUnsupported, "unknown script method "+script.Method, nil)
	}
}

// validateScriptCompatibility checks that the client's provider points at
// the same endpoints the script was resolved against, so a caller can't
// accidentally run a script meant for one provider against a Client
// configured for another.
func validateScriptCompatibility(provider *ProviderConfig, script *ResolvedScript) error {
	if provider.AuthorizationEndpoint != script.Endpoints.Authorization {
		return newError(KindConfiguration, "client's authorization_endpoint does not match the script's", nil)
	}
	if provider.TokenEndpoint != script.Endpoints.Token {
		return newError(KindConfiguration, "client's token_endpoint does not match the script's", nil)
	}
	if script.Method == methodDeviceCode && !provider.SupportsDeviceFlow() {
		return newError(KindUnsupported, "client does not support the device flow this script requires", nil)
	}
	return nil
}
