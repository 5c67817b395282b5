package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/desertthunder/nowplaying/internal/server"
	"github.com/desertthunder/nowplaying/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const authTimeout = 2 * time.Minute

// Auth runs the authorization-code flow against a local callback server and prints the refresh token.
func (r *Runner) Auth(ctx context.Context, cmd *cli.Command) error {
	upstream := r.config.Upstream
	if upstream.ClientID == "" || upstream.ClientSecret == "" {
		return fmt.Errorf("%w: CLIENT_ID and CLIENT_SECRET are required", shared.ErrMissingCredentials)
	}

	ln, err := net.Listen("tcp", "localhost:"+strconv.Itoa(int(cmd.Int("callback-port"))))
	if err != nil {
		return fmt.Errorf("failed to start callback listener: %w", err)
	}

	redirectURL := "http://" + ln.Addr().String() + "/callback"
	config := server.AuthorizationConfig(upstream.ClientID, upstream.ClientSecret, redirectURL, upstream.TokenURL)

	token, err := r.doOAuth(ctx, ln, config, !cmd.Bool("no-browser"))
	if err != nil {
		return err
	}

	refresh, err := server.OAuthResult{Token: token}.RefreshToken()
	if err != nil {
		return err
	}

	r.logger.Info("authorization complete", "expiry", token.Expiry)
	if err := r.writePlain("✓ Authorization successful\n"); err != nil {
		return err
	}
	return r.writePlain("Set this in your environment or config.toml:\nREFRESH_TOKEN=%s\n", refresh)
}

// doOAuth serves the callback on ln until one result arrives, the flow times out or ctx ends.
func (r *Runner) doOAuth(ctx context.Context, ln net.Listener, config *oauth2.Config, browser bool) (*oauth2.Token, error) {
	state := shared.GenerateID()
	authURL := config.AuthCodeURL(state)

	oauthHandler := server.NewOAuthHandler(config, state)
	router := server.NewBasicRouter()
	router.Handler(oauthHandler)

	httpServer := &http.Server{Handler: router}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth callback server at %v", ln.Addr())
		if err := httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	opened := false
	if browser {
		r.writePlain("→ Opening browser for Spotify authorization...\n")
		if err := shared.OpenBrowser(ctx, authURL); err != nil {
			r.logger.Warnf("failed to open browser automatically %v", err)
			r.writePlain("⚠ Could not open browser automatically.\n")
		} else {
			opened = true
		}
	}
	if !opened {
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(authTimeout)
	defer timeout.Stop()

	var result server.OAuthResult
	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if result.Err != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Err)
	}
	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}
	return result.Token, nil
}
