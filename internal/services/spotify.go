// Spotify implementation of [NowPlayingSource]
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/get-the-users-currently-playing-track
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

const (
	spotifyNowPlayingURL = "https://api.spotify.com/v1/me/player/currently-playing"
	defaultPlatform      = "spotify"
)

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL string `json:"url"`
}

// SpotifyArtist represents a simplified artist object.
type SpotifyArtist struct {
	Name         string            `json:"name"`
	ExternalURLs map[string]string `json:"external_urls"`
}

// SpotifyAlbum represents a simplified album object.
type SpotifyAlbum struct {
	Name        string         `json:"name"`
	Images      []SpotifyImage `json:"images"`
	ReleaseDate string         `json:"release_date"`
}

// SpotifyItem represents the playing track.
type SpotifyItem struct {
	Name         string            `json:"name"`
	DurationMS   int               `json:"duration_ms"`
	Album        SpotifyAlbum      `json:"album"`
	Artists      []SpotifyArtist   `json:"artists"`
	ExternalURLs map[string]string `json:"external_urls"`
}

// CurrentlyPlaying represents the currently playing object.
// Item is nil when nothing is playing or the item is unavailable.
type CurrentlyPlaying struct {
	ProgressMS int          `json:"progress_ms"`
	IsPlaying  bool         `json:"is_playing"`
	Type       string       `json:"currently_playing_type"`
	Item       *SpotifyItem `json:"item"`
}

// decodeCurrentlyPlaying parses a non-empty body, rejecting objects that are not playback state.
//
// is_playing must be present. A playing payload needs a named item unless an ad is playing.
func decodeCurrentlyPlaying(body []byte) (*CurrentlyPlaying, error) {
	var shape struct {
		IsPlaying *bool `json:"is_playing"`
	}
	if err := json.Unmarshal(body, &shape); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrMalformedPayload, err)
	}
	if shape.IsPlaying == nil {
		return nil, fmt.Errorf("%w: missing is_playing", shared.ErrMalformedPayload)
	}

	var payload CurrentlyPlaying
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrMalformedPayload, err)
	}

	switch {
	case payload.Item != nil && payload.Item.Name == "":
		return nil, fmt.Errorf("%w: item without a name", shared.ErrMalformedPayload)
	case payload.Item == nil && payload.IsPlaying && payload.Type != "ad":
		return nil, fmt.Errorf("%w: playing without an item", shared.ErrMalformedPayload)
	}
	return &payload, nil
}

// Song maps the payload to a [models.Song], reading external URLs under platform.
//
// Returns nil when there is no item.
func (c *CurrentlyPlaying) Song(platform string) *models.Song {
	if c == nil || c.Item == nil {
		return nil
	}
	item := c.Item

	song := &models.Song{
		Title:     item.Name,
		Duration:  item.DurationMS,
		Progress:  c.ProgressMS,
		IsPlaying: c.IsPlaying,
		URL:       item.ExternalURLs[platform],
		Album: models.Album{
			Name:        item.Album.Name,
			ReleaseDate: item.Album.ReleaseDate,
		},
		Artists: models.Artists{
			Name: make([]string, 0, len(item.Artists)),
			URL:  make([]string, 0, len(item.Artists)),
		},
	}

	if len(item.Album.Images) > 0 {
		song.Album.Image = item.Album.Images[0].URL
	}

	for _, artist := range item.Artists {
		song.Artists.Name = append(song.Artists.Name, artist.Name)
		song.Artists.URL = append(song.Artists.URL, artist.ExternalURLs[platform])
	}

	return song
}

// SpotifyClientOpts contains configuration options for creating a [SpotifyClient].
type SpotifyClientOpts struct {
	Tokens     Authorizer
	HTTPClient *http.Client
	URL        string
	Platform   string
	Timeout    time.Duration
	Logger     *log.Logger
}

// SpotifyClient queries the currently playing endpoint on behalf of one account.
type SpotifyClient struct {
	tokens     Authorizer
	httpClient *http.Client
	url        string
	platform   string
	logger     *log.Logger
}

// NewSpotifyClient creates a [SpotifyClient] authorized by opts.Tokens.
func NewSpotifyClient(opts SpotifyClientOpts) (*SpotifyClient, error) {
	if opts.Tokens == nil {
		return nil, fmt.Errorf("%w: token provider is required", shared.ErrMissingCredentials)
	}
	if opts.URL == "" {
		opts.URL = spotifyNowPlayingURL
	}
	if opts.Platform == "" {
		opts.Platform = defaultPlatform
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &SpotifyClient{
		tokens:     opts.Tokens,
		httpClient: opts.HTTPClient,
		url:        opts.URL,
		platform:   opts.Platform,
		logger:     shared.WithLogger(opts.Logger, "component", "spotify"),
	}, nil
}

func (s *SpotifyClient) Name() string {
	return "Spotify"
}

// attempt is the outcome of one authorize-and-fetch pass.
type attempt struct {
	song *models.Song
	err  error
}

// retryable reports whether a second pass with a fresh token could succeed.
// A payload that parsed into the wrong shape will not improve with a new token.
func (a attempt) retryable() bool {
	return a.err != nil && !errors.Is(a.err, shared.ErrMalformedPayload)
}

// NowPlaying fetches the current playback.
//
// A failed first attempt invalidates the cached token and makes exactly one more attempt with a
// freshly exchanged token. A failure of that second attempt is returned; the next call starts over.
func (s *SpotifyClient) NowPlaying(ctx context.Context) (*models.Song, error) {
	first := s.fetch(ctx)
	if first.err == nil {
		return first.song, nil
	}
	if !first.retryable() || ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrQueryFailed, first.err)
	}

	s.logger.Warn("currently playing request failed, re-authorizing", "error", first.err)
	s.tokens.Invalidate()

	second := s.fetch(ctx)
	if second.err != nil {
		return nil, fmt.Errorf("%w: after re-authorization: %w", shared.ErrQueryFailed, second.err)
	}
	return second.song, nil
}

func (s *SpotifyClient) fetch(ctx context.Context) attempt {
	token, err := s.tokens.Acquire(ctx)
	if err != nil {
		return attempt{err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return attempt{err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return attempt{err: fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)}
	}

	body, err := readBody(resp)
	if err != nil {
		return attempt{err: err}
	}

	if isEmptyPayload(resp.StatusCode, body) {
		return attempt{}
	}

	payload, err := decodeCurrentlyPlaying(body)
	if err != nil {
		return attempt{err: err}
	}
	return attempt{song: payload.Song(s.platform)}
}
