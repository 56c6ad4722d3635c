package authflow

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/loginkit/pkg/httpx"
)

// TokenExchanger performs the two token endpoint operations the flow needs.
// Implementations return *HTTPError for non-200 responses so the flow can
// surface the server's OAuth2 error pair; any other error is a transport
// failure.
type TokenExchanger interface {
	// ExchangeCode redeems an authorization code together with the PKCE
	// verifier that produced the challenge the code was bound to.
	ExchangeCode(ctx context.Context, code, verifier string) (*TokenResponse, error)

	// Refresh redeems a refresh token for a new token set.
	Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error)
}

// TokenClient is the HTTP TokenExchanger for a server's /oauth/token
// endpoint. This is a public client in OAuth2 terms: requests carry no
// client secret, PKCE stands in for one.
type TokenClient struct {
	BaseURL     string
	ClientID    string
	RedirectURI string
	HTTPClient  *http.Client
}

// NewTokenClient creates a token endpoint client. The underlying HTTP client
// is rate limited so a broken retry loop upstream cannot hammer the token
// endpoint, and times out after 10 seconds per request.
func NewTokenClient(baseURL, clientID, redirectURI string) *TokenClient {
	return &TokenClient{
		BaseURL:     strings.TrimSuffix(baseURL, "/"),
		ClientID:    clientID,
		RedirectURI: redirectURI,
		HTTPClient:  httpx.NewClient(httpx.TokenEndpointLimit, 10*time.Second),
	}
}

// ExchangeCode redeems an authorization code using the authorization_code
// grant. The redirect URI must match the one the code was issued against.
func (c *TokenClient) ExchangeCode(ctx context.Context, code, verifier string) (*TokenResponse, error) {
	data := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {c.RedirectURI},
		"code_verifier": {verifier},
		"client_id":     {c.ClientID},
	}

	return c.requestToken(ctx, data)
}

// Refresh requests new tokens using the refresh_token grant.
func (c *TokenClient) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	data := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {c.ClientID},
	}

	return c.requestToken(ctx, data)
}

func (c *TokenClient) requestToken(ctx context.Context, data url.Values) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.BaseURL+"/oauth/token",
		strings.NewReader(data.Encode()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: body}
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &tokenResp, nil
}
