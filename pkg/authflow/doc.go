/*
Package authflow implements the client side of an OAuth2 authorization code
login with PKCE, aimed at native and desktop applications.

# Overview

The package is organized around two main types:

  - Flow: generates login URLs, validates redirect responses and exchanges
    authorization codes for tokens
  - Session: the live handle for an authenticated user, with refresh and
    logout

A Flow is assembled from injected collaborators: an AuthStateStore for the
in-flight login attempt, a SessionStore for the durable user session, and a
TokenExchanger for the token endpoint. In-memory and SQLite-backed stores
ship with the module; any implementation of the interfaces works.

# The Login Sequence

	flow := authflow.New(
		authflow.Config{
			ServerURL:   "https://auth.example.com",
			ClientID:    "client-id",
			RedirectURI: "http://localhost:8765/callback",
		},
		authflow.NewMemoryAuthStateStore(),
		authflow.NewMemorySessionStore(),
		authflow.NewTokenClient("https://auth.example.com", "client-id", "http://localhost:8765/callback"),
	)

	// 1. Generate the URL and open it in the user's browser
	loginURL, err := flow.GenerateLoginURL(ctx, []string{"profile:read"}, nil)

	// 2. The authorization server redirects back; hand the flow the raw
	// query string from that redirect
	session, err := flow.HandleRedirect(ctx, rawQuery)

GenerateLoginURL records a single-use login attempt (anti-forgery state,
OIDC nonce and PKCE verifier) before returning. Only the redirect matching
that attempt's state can complete the login, the attempt is consumed on
first use, and starting a new attempt overwrites the previous one.

For native applications, RedirectListener is a one-shot loopback server
that captures the redirect and hands over its raw query:

	listener := authflow.NewRedirectListener(8765)
	redirectURI, err := listener.Start(ctx)
	// ... open loginURL in the browser ...
	rawQuery, err := listener.WaitForRedirect(ctx)

# Multi-Factor Login

Passing an MFAType requests that challenge from the server via acr_values
instead of the default account chooser:

	mfa := authflow.MFATypeOTP
	loginURL, err := flow.GenerateLoginURL(ctx, nil, &mfa)

# Sessions, Refresh and Logout

HandleRedirect persists the tokens and returns a *Session. A restarted
application recovers it without a browser round-trip:

	session, err := flow.RestoreSession(ctx)

Session.AccessToken refreshes automatically when the access token is within
30 seconds of expiring; Session.Refresh forces a refresh. Logout invalidates
the handle and deletes the persisted record without touching the network.

Refresh and logout may race on the same session. The session guarantees that
a logout completing while a refresh is waiting on the token endpoint wins:
the refresh fails with RefreshErrorLoggedOut and the fresh tokens are
discarded rather than resurrecting the logged-out session.

# Error Handling

Login failures are *LoginError values and refresh failures are
*RefreshError values, each carrying a Kind the caller can switch on:

	session, err := flow.HandleRedirect(ctx, rawQuery)
	if err != nil {
		var loginErr *authflow.LoginError
		if errors.As(err, &loginErr) {
			switch loginErr.Kind {
			case authflow.LoginErrorAuthResponse:
				// the server said no, e.g. access_denied
			case authflow.LoginErrorUnsolicited:
				// stale or forged redirect; the attempt is still live
			}
		}
	}

Server-originated failures carry the OAuth2 error and error_description
pair; local failures carry a Message.

# Thread Safety

Flow methods are safe for concurrent use when the injected stores are.
Sessions are safe for concurrent use; the session lock is never held across
a network call, so logout stays fast even while a refresh is in flight.
*/
package authflow
