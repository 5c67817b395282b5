// Pre-built endpoint implementation of [NowPlayingSource]
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/shared"
)

// EndpointSource reads playback from a URL that already serves the [models.Song] shape.
//
// No token is managed; a failed request is retried once immediately.
type EndpointSource struct {
	url        string
	httpClient *http.Client
	logger     *log.Logger
}

// NewEndpointSource creates an [EndpointSource] for url.
func NewEndpointSource(url string, timeout time.Duration, client *http.Client, logger *log.Logger) (*EndpointSource, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: endpoint url", shared.ErrMissingArgument)
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &EndpointSource{
		url:        url,
		httpClient: client,
		logger:     shared.WithLogger(logger, "component", "endpoint"),
	}, nil
}

func (e *EndpointSource) Name() string {
	return "Endpoint"
}

// NowPlaying fetches the current playback from the endpoint.
func (e *EndpointSource) NowPlaying(ctx context.Context) (*models.Song, error) {
	song, err := e.get(ctx)
	if err == nil {
		return song, nil
	}
	if errors.Is(err, shared.ErrMalformedPayload) || ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrQueryFailed, err)
	}

	e.logger.Warn("endpoint request failed, retrying", "error", err)
	if song, err = e.get(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrQueryFailed, err)
	}
	return song, nil
}

func (e *EndpointSource) get(ctx context.Context) (*models.Song, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-store")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}
	if isEmptyPayload(resp.StatusCode, body) {
		return nil, nil
	}

	var song models.Song
	if err := json.Unmarshal(body, &song); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrMalformedPayload, err)
	}
	if song.Title == "" {
		return nil, fmt.Errorf("%w: song without a title", shared.ErrMalformedPayload)
	}
	return &song, nil
}
