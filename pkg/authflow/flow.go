package authflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/loginkit/pkg/cryptox"
	"github.com/aussiebroadwan/loginkit/pkg/jwtx"
	"github.com/aussiebroadwan/loginkit/pkg/slogx"
	"github.com/aussiebroadwan/loginkit/pkg/urlx"
)

// baselineScopes are requested on every login: "openid" for an OIDC identity
// token and "offline_access" for a refresh token.
var baselineScopes = []string{"openid", "offline_access"}

// Lengths of the generated protocol values. The verifier length satisfies
// RFC 7636's 43..128 character range.
const (
	stateLength    = 10
	nonceLength    = 10
	verifierLength = 60
)

// Config identifies this client installation to the authorization server.
type Config struct {
	// ServerURL is the authorization server's base URL. A trailing slash
	// is tolerated.
	ServerURL string

	// ClientID is the OAuth2 client identifier for this installation.
	ClientID string

	// RedirectURI is where the authorization server sends the user back.
	// It must match a URI registered for the client.
	RedirectURI string

	// LoginHint, when set, is forwarded so the server can prefill the
	// account picker.
	LoginHint string
}

// Flow drives the authorization code + PKCE login for one client: login URL
// generation, redirect validation, code exchange and session persistence.
// Methods are safe for concurrent use as long as the injected stores are.
type Flow struct {
	cfg       Config
	states    AuthStateStore
	sessions  SessionStore
	exchanger TokenExchanger
}

// New assembles a Flow from its collaborators.
func New(cfg Config, states AuthStateStore, sessions SessionStore, exchanger TokenExchanger) *Flow {
	cfg.ServerURL = strings.TrimSuffix(cfg.ServerURL, "/")

	return &Flow{
		cfg:       cfg,
		states:    states,
		sessions:  sessions,
		exchanger: exchanger,
	}
}

// GenerateLoginURL mints fresh anti-forgery and PKCE values, records them as
// the in-flight login attempt and returns the authorization URL to open in
// the user's browser. Any previous unresolved attempt is overwritten. No
// network round-trip happens here.
//
// extraScopes are merged into the baseline openid and offline_access scopes.
// Passing an MFAType requests that challenge via acr_values instead of the
// default account chooser prompt.
func (f *Flow) GenerateLoginURL(ctx context.Context, extraScopes []string, mfa *MFAType) (string, error) {
	// 1. Mint the protocol values. Entropy failure panics: continuing a
	// login with guessable values is worse than crashing.
	state := cryptox.MustRandomString(stateLength)
	nonce := cryptox.MustRandomString(nonceLength)
	verifier := cryptox.MustRandomString(verifierLength)

	// 2. Record the attempt, overwriting any outstanding one
	attempt := AuthState{
		State:        state,
		Nonce:        nonce,
		CodeVerifier: verifier,
		MFA:          mfa,
	}
	if err := f.states.Set(ctx, AuthStateKey, attempt); err != nil {
		return "", fmt.Errorf("failed to store login attempt: %w", err)
	}

	// 3. Build the authorization request query
	q := urlx.New()
	q.Set("client_id", f.cfg.ClientID)
	q.Set("redirect_uri", f.cfg.RedirectURI)
	q.Set("response_type", "code")
	q.Set("state", state)
	q.Set("scope", strings.Join(mergeScopes(extraScopes), " "))
	q.Set("nonce", nonce)
	q.Set("code_challenge", cryptox.S256Challenge(verifier))
	q.Set("code_challenge_method", "S256")

	// Requesting an MFA method replaces the account chooser; the two
	// prompts are mutually exclusive.
	if mfa != nil {
		q.Set("acr_values", string(*mfa))
	} else {
		q.Set("prompt", "select_account")
	}

	if f.cfg.LoginHint != "" {
		q.Set("login_hint", f.cfg.LoginHint)
	}

	slogx.FromContext(ctx).Debug("generated login url",
		"client_id", f.cfg.ClientID,
		"mfa", mfa != nil,
	)

	return f.cfg.ServerURL + "/oauth/authorize?" + q.Encode(), nil
}

// mergeScopes appends extra scopes to the baseline, preserving order and
// dropping duplicates and blanks.
func mergeScopes(extra []string) []string {
	scopes := make([]string, 0, len(baselineScopes)+len(extra))
	seen := make(map[string]bool, len(baselineScopes)+len(extra))

	for _, scope := range baselineScopes {
		seen[scope] = true
		scopes = append(scopes, scope)
	}
	for _, scope := range extra {
		if scope == "" || seen[scope] {
			continue
		}
		seen[scope] = true
		scopes = append(scopes, scope)
	}

	return scopes
}

// HandleRedirect consumes the raw query string the authorization server
// redirected back with and resolves the login attempt it answers. On success
// the tokens are persisted and a live Session is returned; every failure is
// a *LoginError whose Kind names the step that rejected the response.
//
// The stored attempt is consumed by the first redirect whose state matches,
// so a replayed redirect cannot trigger a second code exchange.
func (f *Flow) HandleRedirect(ctx context.Context, rawQuery string) (*Session, error) {
	log := slogx.FromContext(ctx)

	// 1. No query at all means the caller was invoked without an
	// authorization response to process.
	if rawQuery == "" {
		return nil, &LoginError{
			Kind:    LoginErrorUnexpected,
			Message: "No authentication response",
		}
	}

	// 2. Load the outstanding attempt. Nothing outstanding also covers
	// replayed redirects, whose attempt was consumed the first time round.
	attempt, err := f.states.Get(ctx, AuthStateKey)
	if err != nil {
		return nil, &LoginError{
			Kind:    LoginErrorAuthStateRead,
			Message: "no login attempt in progress",
			err:     err,
		}
	}

	query := urlx.ParseQuery(rawQuery)

	// 3. A state mismatch is an unsolicited response: stale, or forged.
	// The attempt is kept so the genuine redirect can still land.
	if query.Get("state") != attempt.State {
		log.Warn("unsolicited authentication response",
			"client_id", f.cfg.ClientID,
		)
		return nil, &LoginError{
			Kind:    LoginErrorUnsolicited,
			Message: "authentication response does not match the login attempt",
		}
	}

	// 4. The response answers our attempt. Consume the attempt before
	// touching the network so it is single use no matter what follows.
	if err := f.states.Remove(ctx, AuthStateKey); err != nil {
		return nil, &LoginError{
			Kind:    LoginErrorAuthStateRead,
			Message: "failed to consume login attempt",
			err:     err,
		}
	}

	// 5. The server may have answered with an explicit denial
	if query.Has("error") {
		return nil, &LoginError{
			Kind:        LoginErrorAuthResponse,
			Code:        query.Get("error"),
			Description: query.Get("error_description"),
		}
	}

	code := query.Get("code")
	if code == "" {
		return nil, &LoginError{
			Kind:    LoginErrorUnexpected,
			Message: "Missing authorization code in authentication response",
		}
	}

	// 6. Redeem the code with the attempt's PKCE verifier
	resp, err := f.exchanger.ExchangeCode(ctx, code, attempt.CodeVerifier)
	if err != nil {
		log.Error("authorization code exchange failed", "error", err)

		loginErr := &LoginError{
			Kind:    LoginErrorTokenResponse,
			Message: "authorization code exchange failed",
			err:     err,
		}
		var httpErr *HTTPError
		if errors.As(err, &httpErr) {
			loginErr.Code, loginErr.Description = httpErr.OAuthError()
		}
		return nil, loginErr
	}

	if resp.AccessToken == "" {
		return nil, &LoginError{
			Kind:    LoginErrorUnexpected,
			Message: "token response is missing an access token",
		}
	}

	// 7. Bind the identity to this attempt through the ID token's nonce
	if resp.IDToken != "" {
		claims, err := jwtx.ParseIDToken(resp.IDToken)
		if err != nil {
			return nil, &LoginError{
				Kind:    LoginErrorIDToken,
				Message: "malformed ID token in token response",
				err:     err,
			}
		}
		if err := claims.ValidateNonce(attempt.Nonce); err != nil {
			return nil, &LoginError{
				Kind:    LoginErrorIDToken,
				Message: "ID token nonce does not match the login attempt",
				err:     err,
			}
		}
	}

	// 8. Persist the session and hand back a live handle
	record := StoredUserSession{
		ClientID: f.cfg.ClientID,
		Tokens: TokenSet{
			AccessToken:  resp.AccessToken,
			RefreshToken: resp.RefreshToken,
			IDToken:      resp.IDToken,
			TokenType:    resp.TokenType,
			ExpiresIn:    resp.ExpiresIn,
		},
		UpdatedAt: time.Now().UTC(),
	}
	if err := f.sessions.Save(ctx, record); err != nil {
		return nil, &LoginError{
			Kind:    LoginErrorUnexpected,
			Message: "failed to persist session",
			err:     err,
		}
	}

	log.Info("login complete", "client_id", f.cfg.ClientID)

	return f.newSession(record), nil
}

// RestoreSession loads the persisted session for this client and wraps it in
// a live handle, letting a restarted application skip the browser round-trip.
// Returns ErrNotFound (wrapped) when nobody is logged in.
func (f *Flow) RestoreSession(ctx context.Context) (*Session, error) {
	record, err := f.sessions.Get(ctx, f.cfg.ClientID)
	if err != nil {
		return nil, fmt.Errorf("failed to restore session: %w", err)
	}

	return f.newSession(*record), nil
}
