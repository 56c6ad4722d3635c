package login_test

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/loginkit/pkg/authflow"
	"github.com/aussiebroadwan/loginkit/pkg/authflow/drivers/sqlite"
	"github.com/aussiebroadwan/loginkit/pkg/cryptox"
)

/*
 * Common constants and helper functions for login end-to-end tests.
 * This includes the in-process fake identity provider, the client stack
 * setup, and the fake browser.
 */

const (
	testClientID = "loginkit-e2e"
	testSubject  = "user-42"
	testUserName = "Alice Example"

	// HS256 secret the fake IdP signs ID tokens with. The client never
	// verifies signatures, so any stable value works.
	idpSigningKey = "e2e-idp-signing-secret"

	tokenLifetime = 3600 // seconds, reported as expires_in
)

// ============================================================================
// Fake Identity Provider
// ============================================================================

// issuedCode is the server-side record of an authorization code, kept until
// the code is redeemed at the token endpoint.
type issuedCode struct {
	clientID      string
	redirectURI   string
	nonce         string
	codeChallenge string
	scope         string
}

// fakeIdP is an in-process OAuth2/OIDC provider implementing just the two
// endpoints the login flow talks to: /oauth/authorize and /oauth/token. It
// enforces the parts a real provider would (PKCE S256 verification,
// single-use codes, refresh token rotation, TOTP for MFA logins) and
// responds with standard OAuth error payloads otherwise.
type fakeIdP struct {
	server *httptest.Server

	// totpSecret is the enrolled secret for testSubject; MFA logins must
	// present a matching one-time password.
	totpSecret string

	mu             sync.Mutex
	codes          map[string]issuedCode
	refreshTokens  map[string]bool
	rotateRefresh  bool
	denyReason     string
	refreshEntered chan struct{}
	refreshGate    chan struct{}
}

func newFakeIdP(t *testing.T) *fakeIdP {
	t.Helper()

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "loginkit-e2e",
		AccountName: testSubject,
	})
	require.NoError(t, err, "failed to enrol TOTP secret")

	idp := &fakeIdP{
		totpSecret:    key.Secret(),
		codes:         make(map[string]issuedCode),
		refreshTokens: make(map[string]bool),
		rotateRefresh: true,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/authorize", idp.handleAuthorize)
	mux.HandleFunc("/oauth/token", idp.handleToken)

	idp.server = httptest.NewServer(mux)
	t.Cleanup(idp.server.Close)

	return idp
}

// URL returns the provider's base URL.
func (idp *fakeIdP) URL() string {
	return idp.server.URL
}

// denyNextLogins makes every authorize request fail with access_denied until
// reset, simulating the user cancelling at the consent screen.
func (idp *fakeIdP) denyNextLogins(reason string) {
	idp.mu.Lock()
	defer idp.mu.Unlock()
	idp.denyReason = reason
}

// setRotateRefresh controls whether the refresh grant rotates the refresh
// token or leaves the old one valid and omits the field from the response.
func (idp *fakeIdP) setRotateRefresh(rotate bool) {
	idp.mu.Lock()
	defer idp.mu.Unlock()
	idp.rotateRefresh = rotate
}

// holdNextRefresh makes the next refresh grant block server-side until
// release is called, signalling entry on the returned channel. It simulates a
// slow token endpoint so a scenario can interleave work with an in-flight
// refresh. release is idempotent.
func (idp *fakeIdP) holdNextRefresh() (entered <-chan struct{}, release func()) {
	enteredCh := make(chan struct{})
	gate := make(chan struct{})

	idp.mu.Lock()
	idp.refreshEntered = enteredCh
	idp.refreshGate = gate
	idp.mu.Unlock()

	var once sync.Once
	return enteredCh, func() { once.Do(func() { close(gate) }) }
}

// currentOTP mints a one-time password valid for the current TOTP window.
func (idp *fakeIdP) currentOTP(t *testing.T) string {
	t.Helper()

	code, err := totp.GenerateCode(idp.totpSecret, time.Now())
	require.NoError(t, err, "failed to generate one-time password")
	return code
}

func (idp *fakeIdP) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	redirectURI := q.Get("redirect_uri")
	state := q.Get("state")
	if redirectURI == "" || state == "" {
		http.Error(w, "missing redirect_uri or state", http.StatusBadRequest)
		return
	}

	// Authorize failures travel back on the redirect, carrying the state
	// of the attempt they answer.
	fail := func(code, description string) {
		v := url.Values{
			"error": {code},
			"state": {state},
		}
		if description != "" {
			v.Set("error_description", description)
		}
		http.Redirect(w, r, redirectURI+"?"+v.Encode(), http.StatusFound)
	}

	if q.Get("response_type") != "code" {
		fail("unsupported_response_type", "only code is supported")
		return
	}
	if q.Get("client_id") != testClientID {
		fail("unauthorized_client", "unknown client")
		return
	}
	if q.Get("code_challenge") == "" || q.Get("code_challenge_method") != "S256" {
		fail("invalid_request", "PKCE S256 challenge required")
		return
	}

	idp.mu.Lock()
	denyReason := idp.denyReason
	idp.mu.Unlock()

	if denyReason != "" {
		fail("access_denied", denyReason)
		return
	}

	// An MFA login must present a valid one-time password. The fake
	// browser appends it to the authorize URL in place of a real
	// challenge page.
	if q.Get("acr_values") == "otp" {
		if !totp.Validate(q.Get("totp_code"), idp.totpSecret) {
			fail("access_denied", "invalid one-time password")
			return
		}
	}

	code := cryptox.MustGenerateToken(cryptox.TokenSize128)

	idp.mu.Lock()
	idp.codes[code] = issuedCode{
		clientID:      q.Get("client_id"),
		redirectURI:   redirectURI,
		nonce:         q.Get("nonce"),
		codeChallenge: q.Get("code_challenge"),
		scope:         q.Get("scope"),
	}
	idp.mu.Unlock()

	v := url.Values{
		"code":  {code},
		"state": {state},
	}
	http.Redirect(w, r, redirectURI+"?"+v.Encode(), http.StatusFound)
}

func (idp *fakeIdP) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		idp.tokenError(w, http.StatusBadRequest, "invalid_request", "malformed form body")
		return
	}

	if r.PostForm.Get("client_id") != testClientID {
		idp.tokenError(w, http.StatusUnauthorized, "invalid_client", "unknown client")
		return
	}

	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		idp.handleCodeGrant(w, r)
	case "refresh_token":
		idp.handleRefreshGrant(w, r)
	default:
		idp.tokenError(w, http.StatusBadRequest, "unsupported_grant_type", "")
	}
}

func (idp *fakeIdP) handleCodeGrant(w http.ResponseWriter, r *http.Request) {
	code := r.PostForm.Get("code")

	// Codes are single use: the record is removed on first redemption,
	// valid or not.
	idp.mu.Lock()
	issued, ok := idp.codes[code]
	delete(idp.codes, code)
	idp.mu.Unlock()

	if !ok {
		idp.tokenError(w, http.StatusBadRequest, "invalid_grant", "unknown or already redeemed authorization code")
		return
	}
	if r.PostForm.Get("redirect_uri") != issued.redirectURI {
		idp.tokenError(w, http.StatusBadRequest, "invalid_grant", "redirect_uri mismatch")
		return
	}

	challenge := cryptox.S256Challenge(r.PostForm.Get("code_verifier"))
	if subtle.ConstantTimeCompare([]byte(challenge), []byte(issued.codeChallenge)) != 1 {
		idp.tokenError(w, http.StatusBadRequest, "invalid_grant", "PKCE verification failed")
		return
	}

	idp.respondTokens(w, issued.nonce, true)
}

func (idp *fakeIdP) handleRefreshGrant(w http.ResponseWriter, r *http.Request) {
	// One-shot hold point, armed by holdNextRefresh.
	idp.mu.Lock()
	entered, gate := idp.refreshEntered, idp.refreshGate
	idp.refreshEntered, idp.refreshGate = nil, nil
	idp.mu.Unlock()

	if entered != nil {
		close(entered)
		<-gate
	}

	token := r.PostForm.Get("refresh_token")

	idp.mu.Lock()
	ok := idp.refreshTokens[token]
	rotate := idp.rotateRefresh
	if ok && rotate {
		delete(idp.refreshTokens, token)
	}
	idp.mu.Unlock()

	if !ok {
		idp.tokenError(w, http.StatusBadRequest, "invalid_grant", "unknown refresh token")
		return
	}

	idp.respondTokens(w, "", rotate)
}

// respondTokens mints a fresh token set. A nonce is only present when
// answering a code exchange; rotate controls whether the response carries a
// new refresh token or omits the field entirely.
func (idp *fakeIdP) respondTokens(w http.ResponseWriter, nonce string, rotate bool) {
	resp := authflow.TokenResponse{
		AccessToken: cryptox.MustGenerateToken(cryptox.TokenSize256),
		TokenType:   "Bearer",
		ExpiresIn:   tokenLifetime,
	}

	if rotate {
		refresh := cryptox.MustGenerateToken(cryptox.TokenSize256)

		idp.mu.Lock()
		idp.refreshTokens[refresh] = true
		idp.mu.Unlock()

		resp.RefreshToken = refresh
	}

	if nonce != "" {
		resp.IDToken = idp.mintIDToken(nonce)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// mintIDToken signs an HS256 ID token echoing the attempt's nonce.
func (idp *fakeIdP) mintIDToken(nonce string) string {
	now := time.Now().UTC()

	claims := jwt.MapClaims{
		"iss":   idp.server.URL,
		"sub":   testSubject,
		"aud":   testClientID,
		"name":  testUserName,
		"nonce": nonce,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(idpSigningKey))
	if err != nil {
		panic(fmt.Sprintf("failed to sign id token: %v", err))
	}
	return raw
}

func (idp *fakeIdP) tokenError(w http.ResponseWriter, status int, code, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(authflow.ErrorResponse{
		Error:            code,
		ErrorDescription: description,
	})
}

// ============================================================================
// Client Stack
// ============================================================================

// loginStack wires the pieces an application embedding the flow would hold:
// a SQLite store on disk and the fake IdP to log in against. Flows are built
// per login because each login binds to a fresh loopback listener.
type loginStack struct {
	idp    *fakeIdP
	store  *sqlite.Store
	dbPath string
}

// loginResult carries everything a scenario may want to inspect after a
// login: the session (nil on failure), the raw redirect query for replay
// checks, the flow that handled it, and the flow's error.
type loginResult struct {
	session  *authflow.Session
	rawQuery string
	flow     *authflow.Flow
	err      error
}

// loginOpts tweak a single login attempt.
type loginOpts struct {
	scopes []string
	mfa    *authflow.MFAType

	// urlSuffix is appended verbatim to the authorize URL, standing in
	// for values the user would type on the provider's pages (e.g. a
	// one-time password).
	urlSuffix string
}

// setupLoginStack provisions a fresh on-disk store and fake IdP for one test.
func setupLoginStack(t *testing.T) *loginStack {
	t.Helper()

	idp := newFakeIdP(t)

	dbPath := filepath.Join(t.TempDir(), "login.db")
	store, err := sqlite.NewStore(fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", dbPath))
	require.NoError(t, err, "failed to open sqlite store")
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.ApplyMigrations(), "failed to apply migrations")

	return &loginStack{
		idp:    idp,
		store:  store,
		dbPath: dbPath,
	}
}

// newFlow builds a flow bound to the given redirect URI, sharing the stack's
// persistent stores the way successive runs of a CLI share their database.
func (s *loginStack) newFlow(redirectURI string) *authflow.Flow {
	return authflow.New(authflow.Config{
		ServerURL:   s.idp.URL(),
		ClientID:    testClientID,
		RedirectURI: redirectURI,
	}, s.store.AuthStates(), s.store.Sessions(),
		authflow.NewTokenClient(s.idp.URL(), testClientID, redirectURI))
}

// completeLogin drives one full login: start a loopback listener, generate
// the login URL, let the fake browser follow it, and hand the redirect back
// to the flow.
func (s *loginStack) completeLogin(ctx context.Context, t *testing.T, opts loginOpts) loginResult {
	t.Helper()

	listener := authflow.NewRedirectListener(0)
	redirectURI, err := listener.Start(ctx)
	require.NoError(t, err, "failed to start redirect listener")
	defer listener.Stop()

	flow := s.newFlow(redirectURI)

	loginURL, err := flow.GenerateLoginURL(ctx, opts.scopes, opts.mfa)
	require.NoError(t, err, "failed to generate login URL")

	browse(t, loginURL+opts.urlSuffix)

	rawQuery, err := listener.WaitForRedirect(ctx)
	require.NoError(t, err, "no redirect received")

	session, err := flow.HandleRedirect(ctx, rawQuery)
	return loginResult{
		session:  session,
		rawQuery: rawQuery,
		flow:     flow,
		err:      err,
	}
}

// mustLogin is completeLogin for scenarios where the login has to succeed.
func (s *loginStack) mustLogin(ctx context.Context, t *testing.T, opts loginOpts) loginResult {
	t.Helper()

	result := s.completeLogin(ctx, t, opts)
	require.NoError(t, result.err, "login failed")
	require.NotNil(t, result.session)
	return result
}

// restoreSession loads the persisted session the way a fresh process start
// would.
func (s *loginStack) restoreSession(ctx context.Context) (*authflow.Session, error) {
	return s.newFlow("http://localhost:0/callback").RestoreSession(ctx)
}

// ============================================================================
// Fake Browser
// ============================================================================

// browse plays the user's browser: it follows the authorize redirect chain
// all the way to the loopback listener and returns the final status code.
func browse(t *testing.T, rawURL string) int {
	t.Helper()

	resp, err := http.Get(rawURL)
	require.NoError(t, err, "browser request failed")
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode
}
