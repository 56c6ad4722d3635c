package authflow

import (
	"encoding/json"
	"fmt"
)

// ============================================================================
// Login Errors
// ============================================================================

// LoginErrorKind discriminates the failure families of HandleRedirect.
// Callers can switch on the kind exhaustively; new kinds are not added
// lightly.
type LoginErrorKind string

const (
	// LoginErrorUnexpected covers responses the flow cannot make sense of,
	// such as an empty redirect or an authorization response carrying
	// neither an error nor a code.
	LoginErrorUnexpected LoginErrorKind = "unexpected"

	// LoginErrorAuthStateRead means no login attempt is outstanding, or the
	// attempt record could not be read. Replayed redirects land here
	// because the first delivery consumed the attempt.
	LoginErrorAuthStateRead LoginErrorKind = "auth_state_read"

	// LoginErrorUnsolicited means the redirect's state did not match the
	// outstanding attempt: a stale redirect or a forgery. The attempt
	// record is kept so the genuine redirect can still complete.
	LoginErrorUnsolicited LoginErrorKind = "unsolicited_response"

	// LoginErrorAuthResponse carries an explicit error returned by the
	// authorization endpoint, such as access_denied.
	LoginErrorAuthResponse LoginErrorKind = "authentication_error_response"

	// LoginErrorTokenResponse means the token endpoint rejected the
	// authorization code exchange.
	LoginErrorTokenResponse LoginErrorKind = "token_error_response"

	// LoginErrorIDToken means the exchanged ID token failed validation
	// against the attempt's nonce.
	LoginErrorIDToken LoginErrorKind = "id_token_validation"
)

// LoginError is the failure result of HandleRedirect. Exactly one of the
// server pair (Code, Description) or the local Message is populated,
// depending on where the failure originated.
type LoginError struct {
	Kind LoginErrorKind

	// Code and Description carry the OAuth2 error pair when the failure
	// originated from the authorization or token endpoint.
	Code        string
	Description string

	// Message is the local diagnostic for client-side failures.
	Message string

	err error
}

func (e *LoginError) Error() string {
	switch {
	case e.Code != "" && e.Description != "":
		return fmt.Sprintf("login failed (%s): %s: %s", e.Kind, e.Code, e.Description)
	case e.Code != "":
		return fmt.Sprintf("login failed (%s): %s", e.Kind, e.Code)
	case e.Message != "":
		return fmt.Sprintf("login failed (%s): %s", e.Kind, e.Message)
	default:
		return fmt.Sprintf("login failed (%s)", e.Kind)
	}
}

// Unwrap exposes the underlying cause for errors.Is / errors.As chains.
func (e *LoginError) Unwrap() error { return e.err }

// ============================================================================
// Refresh Errors
// ============================================================================

// RefreshErrorKind discriminates the failure families of Session.Refresh.
type RefreshErrorKind string

const (
	// RefreshErrorNoRefreshToken means the session holds no refresh token,
	// so a refresh can never succeed. The caller needs a fresh login.
	RefreshErrorNoRefreshToken RefreshErrorKind = "no_refresh_token"

	// RefreshErrorRequestFailed means the refresh request could not be
	// completed: a transport failure, a token endpoint rejection, or a
	// failure persisting the refreshed session.
	RefreshErrorRequestFailed RefreshErrorKind = "request_failed"

	// RefreshErrorLoggedOut means a logout invalidated the session while
	// the refresh was in flight. The fresh tokens were discarded.
	RefreshErrorLoggedOut RefreshErrorKind = "logged_out"
)

// RefreshError is the failure result of Session.Refresh.
type RefreshError struct {
	Kind RefreshErrorKind

	err error
}

func (e *RefreshError) Error() string {
	switch e.Kind {
	case RefreshErrorNoRefreshToken:
		return "no refresh token available"
	case RefreshErrorLoggedOut:
		return "User has logged-out during token refresh"
	case RefreshErrorRequestFailed:
		if e.err != nil {
			return fmt.Sprintf("token refresh request failed: %v", e.err)
		}
		return "token refresh request failed"
	default:
		return fmt.Sprintf("token refresh failed (%s)", e.Kind)
	}
}

// Unwrap exposes the underlying cause for errors.Is / errors.As chains.
func (e *RefreshError) Unwrap() error { return e.err }

// ============================================================================
// Transport Errors
// ============================================================================

// HTTPError is a non-200 response from the token endpoint. The transport
// never interprets the response beyond capturing it; the flow decides what a
// rejection means.
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	if code, desc := e.OAuthError(); code != "" {
		if desc != "" {
			return fmt.Sprintf("token endpoint returned %d: %s: %s", e.StatusCode, code, desc)
		}
		return fmt.Sprintf("token endpoint returned %d: %s", e.StatusCode, code)
	}
	return fmt.Sprintf("token endpoint returned %d", e.StatusCode)
}

// OAuthError extracts the RFC 6749 error code and description from the
// response body. Both are empty when the body is not an OAuth2 error
// document.
func (e *HTTPError) OAuthError() (code, description string) {
	var resp ErrorResponse
	if err := json.Unmarshal(e.Body, &resp); err != nil {
		return "", ""
	}
	return resp.Error, resp.ErrorDescription
}
