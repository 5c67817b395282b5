package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/shared"
)

// maxBodyBytes bounds how much of an upstream response is read.
const maxBodyBytes = 1 << 20

// NowPlayingSource is a provider of the account's current playback.
type NowPlayingSource interface {
	// NowPlaying returns the playing song, or nil when nothing is playing.
	//
	// Any failure is wrapped with [shared.ErrQueryFailed].
	NowPlaying(ctx context.Context) (*models.Song, error)

	// Name returns the name of the source (e.g., "Spotify", "Endpoint")
	Name() string
}

// Authorizer hands out bearer tokens and forgets them on demand.
type Authorizer interface {
	// Acquire returns a cached access token, exchanging credentials when none is held.
	Acquire(ctx context.Context) (string, error)

	// Invalidate drops the cached token so the next Acquire performs a fresh exchange.
	Invalidate()
}

// readBody drains a response body up to [maxBodyBytes] and rejects non-2xx statuses.
func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}
	return body, nil
}

// isEmptyPayload reports whether a response carries no playback (204, blank or JSON null).
func isEmptyPayload(status int, body []byte) bool {
	if status == http.StatusNoContent {
		return true
	}
	body = bytes.TrimSpace(body)
	return len(body) == 0 || bytes.Equal(body, []byte("null"))
}
