package schlussel

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"time"
)

// verifierBytes is the number of random bytes drawn for the PKCE code
// verifier. 32 bytes (256 bits) base64url-encodes to 43 characters, at the
// low end of RFC 7636's 43-128 char range and the value the teacher's
// GeneratePKCE uses.
const verifierBytes = 32

// stateEntropyBytes is the number of random bytes drawn for the OAuth state
// parameter; 16 bytes is 128 bits of entropy, the minimum spec.md requires.
const stateEntropyBytes = 16

// PkceSession is the ephemeral, single-use state of one in-flight
// Authorization-Code-with-PKCE flow. It is never persisted and is dropped
// after the flow succeeds or fails.
type PkceSession struct {
	CodeVerifier         string
	CodeChallenge        string
	State                string
	ExpectedRedirectPort int
	CreatedAt            time.Time
}

// newPkceSession generates a fresh code verifier, its S256 challenge, and a
// random state value, per spec.md §4.1 and §4.5 step 1.
func newPkceSession(port int) (*PkceSession, error) {
	verifier, err := randomVerifier()
	if err != nil {
		return nil, errorf(KindConfiguration, err, "failed to generate PKCE code verifier")
	}

	state, err := randomState()
	if err != nil {
		return nil, errorf(KindConfiguration, err, "failed to generate OAuth state")
	}

	return &PkceSession{
		CodeVerifier:         verifier,
		CodeChallenge:        challenge(verifier),
		State:                state,
		ExpectedRedirectPort: port,
		CreatedAt:            time.Now(),
	}, nil
}

// randomVerifier draws 32 cryptographically random bytes and base64url
// (no padding) encodes them, producing a 43-character string drawn from the
// unreserved character set RFC 7636 requires.
func randomVerifier() (string, error) {
	b := make([]byte, verifierBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// challenge computes the RFC 7636 S256 code challenge for a verifier:
// base64url_nopad(sha256(verifier)).
func challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// randomState draws 128 bits of cryptographically random data and
// base64url (no padding) encodes it for use as the OAuth `state` parameter.
func randomState() (string, error) {
	b := make([]byte, stateEntropyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// statesEqual compares two OAuth state values in constant time so a timing
// side-channel can't help an attacker guess the expected state.
func statesEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
