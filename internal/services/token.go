package services

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nowplaying/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const spotifyTokenURL = "https://accounts.spotify.com/api/token"

// TokenProviderOpts contains configuration options for creating a [TokenProvider].
type TokenProviderOpts struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	TokenURL     string
	HTTPClient   *http.Client
	// ExchangeLimit caps how often credentials are exchanged. Zero means one per second with a burst of two.
	ExchangeLimit rate.Limit
	ExchangeBurst int
	Logger        *log.Logger
}

// TokenProvider owns the access token for one upstream account.
//
// Tokens are acquired lazily with a refresh-token credential grant and kept until they expire or
// are invalidated. It never retries an exchange itself; retry policy belongs to the caller.
// Safe for concurrent use: concurrent acquirers share a single exchange.
type TokenProvider struct {
	config       *oauth2.Config
	refreshToken string
	httpClient   *http.Client
	limiter      *rate.Limiter
	logger       *log.Logger

	mu        sync.Mutex
	token     *oauth2.Token
	exchanges int
}

// NewTokenProvider creates a [TokenProvider] for the given credentials.
func NewTokenProvider(opts TokenProviderOpts) (*TokenProvider, error) {
	switch {
	case opts.ClientID == "":
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	case opts.ClientSecret == "":
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	case opts.RefreshToken == "":
		return nil, shared.ErrNoRefreshToken
	}

	if opts.TokenURL == "" {
		opts.TokenURL = spotifyTokenURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.ExchangeLimit == 0 {
		opts.ExchangeLimit = rate.Every(time.Second)
	}
	if opts.ExchangeBurst <= 0 {
		opts.ExchangeBurst = 2
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &TokenProvider{
		config: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  opts.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		refreshToken: opts.RefreshToken,
		httpClient:   opts.HTTPClient,
		limiter:      rate.NewLimiter(opts.ExchangeLimit, opts.ExchangeBurst),
		logger:       shared.WithLogger(opts.Logger, "component", "tokens"),
	}, nil
}

// Acquire returns the cached access token, or performs a credential grant when none is held
// or the held one has expired.
//
// Exchange failures are wrapped with [shared.ErrAuthFailed].
func (p *TokenProvider) Acquire(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token.Valid() {
		return p.token.AccessToken, nil
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: exchange throttled: %v", shared.ErrAuthFailed, err)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	seed := &oauth2.Token{RefreshToken: p.refreshToken}

	token, err := p.config.TokenSource(ctx, seed).Token()
	if err != nil {
		p.logger.Error("credential exchange failed", "error", err)
		return "", fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}

	p.token = token
	p.exchanges++
	p.logger.Debug("access token acquired", "expiry", token.Expiry, "exchanges", p.exchanges)

	return token.AccessToken, nil
}

// Invalidate clears the cached token, forcing the next [TokenProvider.Acquire] to re-exchange.
func (p *TokenProvider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = nil
}

// Exchanges returns how many successful credential grants have been performed.
func (p *TokenProvider) Exchanges() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exchanges
}
