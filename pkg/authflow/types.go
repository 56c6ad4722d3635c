package authflow

import (
	"time"

	"github.com/aussiebroadwan/loginkit/pkg/idx"
)

// ============================================================================
// Login Attempt Types
// ============================================================================

// MFAType identifies a multi-factor method requested from the authorization
// server through the acr_values parameter.
type MFAType string

const (
	// MFATypeOTP asks the server to run a one-time password challenge.
	MFATypeOTP MFAType = "otp"
)

// AuthState is the single-use record of a login attempt's anti-forgery and
// PKCE parameters. It is written when the login URL is generated and consumed
// by the first redirect whose state matches. At most one attempt is
// outstanding per client; starting a new attempt overwrites the old one,
// which becomes unrecoverable.
type AuthState struct {
	// State is echoed back by the authorization server and proves the
	// redirect answers an attempt this client started.
	State string

	// Nonce binds the issued ID token to this attempt.
	Nonce string

	// CodeVerifier is the PKCE secret redeemed during the code exchange.
	CodeVerifier string

	// MFA is the multi-factor method requested for this attempt, nil when
	// the default account chooser was used instead.
	MFA *MFAType
}

// ============================================================================
// Token Types
// ============================================================================

// TokenSet is an immutable snapshot of the tokens held for a user. A refresh
// replaces the whole value (copy with replacement); nothing mutates a
// TokenSet in place.
type TokenSet struct {
	AccessToken  string
	RefreshToken string // empty when the server issued none
	IDToken      string
	TokenType    string // typically "Bearer"
	ExpiresIn    int64  // seconds until the access token expires
}

// HasRefreshToken reports whether this set can be refreshed at all.
func (t TokenSet) HasRefreshToken() bool { return t.RefreshToken != "" }

// TokenResponse represents the OAuth2 token endpoint response per RFC 6749,
// for both the authorization_code and refresh_token grants.
type TokenResponse struct {
	// AccessToken authenticates API requests on behalf of the user
	AccessToken string `json:"access_token"`

	// RefreshToken is the opaque token used to obtain new access tokens.
	// Servers may rotate it on refresh or omit it to keep the old one.
	RefreshToken string `json:"refresh_token,omitempty"`

	// IDToken is the OIDC identity assertion for the authenticated user
	IDToken string `json:"id_token,omitempty"`

	// TokenType is always "Bearer" per OAuth2 spec
	TokenType string `json:"token_type"`

	// ExpiresIn is the lifetime in seconds of the access token
	ExpiresIn int64 `json:"expires_in"`

	// Scope is the space-delimited list of scopes granted to this token
	Scope string `json:"scope,omitempty"`
}

// ErrorResponse represents a standard OAuth2 error response per RFC 6749.
// This is used internally for parsing token endpoint failures.
type ErrorResponse struct {
	// Error is the OAuth2 error code (e.g., "invalid_request", "invalid_grant")
	Error string `json:"error"`

	// ErrorDescription is a human-readable description of the error
	ErrorDescription string `json:"error_description"`
}

// ============================================================================
// Session Types
// ============================================================================

// StoredUserSession is the durable record of an authenticated user's tokens
// for this client installation. Exactly one record exists per client id (not
// per user): only one authenticated identity is tracked per installation.
type StoredUserSession struct {
	// ID is the row identity assigned by the store on first save. It stays
	// stable across updates for the same client id and takes no part in
	// record equality.
	ID idx.ID

	// ClientID keys the record.
	ClientID string

	// Tokens always carries a non-empty AccessToken.
	Tokens TokenSet

	// UpdatedAt moves forward on every successful exchange or refresh.
	UpdatedAt time.Time
}
