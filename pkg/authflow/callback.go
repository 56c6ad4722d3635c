package authflow

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/aussiebroadwan/loginkit/pkg/slogx"
)

// callbackPath is the loopback path the authorization server redirects to.
const callbackPath = "/callback"

// RedirectListener is a temporary loopback HTTP server that captures the
// authorization server's redirect for native applications. It hands the
// redirect's raw query string to the caller exactly once; all validation of
// the response stays with Flow.HandleRedirect.
type RedirectListener struct {
	port     int
	server   *http.Server
	listener net.Listener
	queries  chan string
	once     sync.Once
	baseURL  string
}

// NewRedirectListener creates a listener for the given loopback port. Pass 0
// to pick a free port; the bound address is known after Start.
func NewRedirectListener(port int) *RedirectListener {
	return &RedirectListener{
		port:    port,
		queries: make(chan string, 1),
	}
}

// Start binds the loopback listener and begins serving. It returns the
// redirect URI to use in the authorization request. The listener shuts down
// when ctx is cancelled or Stop is called.
func (l *RedirectListener) Start(ctx context.Context) (string, error) {
	addr := fmt.Sprintf("127.0.0.1:%d", l.port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to start redirect listener on %s: %w", addr, err)
	}

	l.listener = listener
	l.port = listener.Addr().(*net.TCPAddr).Port
	l.baseURL = fmt.Sprintf("http://localhost:%d", l.port)

	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, l.handleRedirect)

	l.server = &http.Server{
		Handler:           slogx.HTTPMiddleware(slogx.FromContext(ctx))(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		// ErrServerClosed is the normal Stop path
		_ = l.server.Serve(listener)
	}()

	go func() {
		<-ctx.Done()
		l.Stop()
	}()

	return l.baseURL + callbackPath, nil
}

// WaitForRedirect blocks until the authorization server redirects the user
// back (or ctx ends) and returns the redirect's raw query string. Only the
// first redirect is delivered; later hits on the callback URL are rejected.
func (l *RedirectListener) WaitForRedirect(ctx context.Context) (string, error) {
	select {
	case query := <-l.queries:
		return query, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (l *RedirectListener) handleRedirect(w http.ResponseWriter, r *http.Request) {
	delivered := false
	l.once.Do(func() {
		delivered = true
		l.queries <- r.URL.RawQuery
	})

	if !delivered {
		http.Error(w, "Redirect already processed", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write([]byte(redirectLandingHTML))
}

// Stop gracefully shuts the listener down. Safe to call more than once.
func (l *RedirectListener) Stop() {
	if l.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = l.server.Shutdown(ctx)
	}
	if l.listener != nil {
		_ = l.listener.Close()
	}
}

// RedirectURI returns the URI the authorization server redirects to. Valid
// after Start.
func (l *RedirectListener) RedirectURI() string {
	return l.baseURL + callbackPath
}

const redirectLandingHTML = `<!DOCTYPE html>
<html>
<head><title>Signed in</title></head>
<body>
<p>Sign-in complete. You can close this window and return to the application.</p>
</body>
</html>
`
