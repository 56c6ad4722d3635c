package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aussiebroadwan/loginkit/pkg/authflow"
	"github.com/aussiebroadwan/loginkit/pkg/authflow/drivers/sqlite"
	"github.com/aussiebroadwan/loginkit/pkg/idx"
	"github.com/aussiebroadwan/loginkit/pkg/jwtx"
	"github.com/aussiebroadwan/loginkit/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application wires the login flow to its SQLite stores and drives one
// command per invocation.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db   *sqlite.Store
	flow *authflow.Flow
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	if cfg.ServerURL == "" {
		return nil, errors.New("LOGIN_SERVER_URL is required")
	}
	if cfg.ClientID == "" {
		return nil, errors.New("LOGIN_CLIENT_ID is required")
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "login",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	app.initFlow()

	return app, nil
}

// Run executes the configured command and blocks until it finishes or a
// shutdown signal arrives.
func (app *Application) Run() error {
	defer func() {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx = slogx.WithContext(ctx, app.logger)

	switch app.cfg.Command {
	case "", "login":
		return app.runLogin(ctx)
	case "status":
		return app.runStatus(ctx)
	case "refresh":
		return app.runRefresh(ctx)
	case "logout":
		return app.runLogout(ctx)
	default:
		return fmt.Errorf("unknown command %q (expected login, status, refresh or logout)", app.cfg.Command)
	}
}

// initDatabase opens the SQLite file and applies migrations.
func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Debug("database migrations applied successfully")
	return nil
}

// initFlow assembles the auth flow over the database-backed stores.
func (app *Application) initFlow() {
	redirectURI := fmt.Sprintf("http://localhost:%d/callback", app.cfg.CallbackPort)

	app.flow = authflow.New(
		authflow.Config{
			ServerURL:   app.cfg.ServerURL,
			ClientID:    app.cfg.ClientID,
			RedirectURI: redirectURI,
			LoginHint:   app.cfg.LoginHint,
		},
		app.db.AuthStates(),
		app.db.Sessions(),
		authflow.NewTokenClient(app.cfg.ServerURL, app.cfg.ClientID, redirectURI),
	)
}

// runLogin walks the whole browser round-trip: start the loopback listener,
// print the login URL, wait for the redirect and resolve it. Refuses when a
// session is already persisted rather than silently replacing it.
func (app *Application) runLogin(ctx context.Context) error {
	if _, err := app.flow.RestoreSession(ctx); err == nil {
		fmt.Println("Already signed in. Run 'login logout' first to sign in again.")
		return nil
	} else if !errors.Is(err, authflow.ErrNotFound) {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, app.cfg.LoginTimeout)
	defer cancel()

	// Tag everything this attempt logs with one flow id.
	ctx = slogx.WithFlowID(ctx, idx.MustNew().String())

	listener := authflow.NewRedirectListener(app.cfg.CallbackPort)
	redirectURI, err := listener.Start(ctx)
	if err != nil {
		return err
	}
	defer listener.Stop()

	var mfa *authflow.MFAType
	if app.cfg.MFA != "" {
		method := authflow.MFAType(app.cfg.MFA)
		mfa = &method
	}

	loginURL, err := app.flow.GenerateLoginURL(ctx, app.cfg.Scopes, mfa)
	if err != nil {
		return fmt.Errorf("failed to generate login url: %w", err)
	}

	fmt.Println("Open this URL in your browser to sign in:")
	fmt.Println()
	fmt.Println("  " + loginURL)
	fmt.Println()

	app.logger.Info("waiting for the authorization server redirect",
		"redirect_uri", redirectURI,
		"timeout", app.cfg.LoginTimeout,
	)

	rawQuery, err := listener.WaitForRedirect(ctx)
	if err != nil {
		return fmt.Errorf("no redirect received: %w", err)
	}

	session, err := app.flow.HandleRedirect(ctx, rawQuery)
	if err != nil {
		return err
	}

	tokens := session.Tokens()
	fmt.Printf("Signed in. Access token expires in %d seconds.\n", tokens.ExpiresIn)
	return nil
}

// runStatus reports who, if anyone, is signed in.
func (app *Application) runStatus(ctx context.Context) error {
	session, err := app.flow.RestoreSession(ctx)
	if errors.Is(err, authflow.ErrNotFound) {
		fmt.Println("Nobody is signed in.")
		return nil
	}
	if err != nil {
		return err
	}

	tokens := session.Tokens()
	fmt.Printf("Signed in to %s as client %s.\n", app.cfg.ServerURL, session.ClientID())

	if tokens.IDToken != "" {
		if claims, err := jwtx.ParseIDToken(tokens.IDToken); err == nil {
			fmt.Printf("User: %s\n", claims.DisplayName())
		}
	}

	fmt.Printf("Refresh token held: %v\n", tokens.HasRefreshToken())
	return nil
}

// runRefresh forces a token refresh for the stored session.
func (app *Application) runRefresh(ctx context.Context) error {
	session, err := app.flow.RestoreSession(ctx)
	if errors.Is(err, authflow.ErrNotFound) {
		return errors.New("nobody is signed in")
	}
	if err != nil {
		return err
	}

	tokens, err := session.Refresh(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Tokens refreshed. Access token expires in %d seconds.\n", tokens.ExpiresIn)
	return nil
}

// runLogout clears the stored session.
func (app *Application) runLogout(ctx context.Context) error {
	session, err := app.flow.RestoreSession(ctx)
	if errors.Is(err, authflow.ErrNotFound) {
		fmt.Println("Nobody is signed in.")
		return nil
	}
	if err != nil {
		return err
	}

	if err := session.Logout(ctx); err != nil {
		return err
	}

	fmt.Println("Signed out.")
	return nil
}
