package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/shared"
	tu "github.com/desertthunder/nowplaying/internal/testing"
)

// scriptedAPI answers the currently-playing endpoint with one handler per request, repeating the last.
type scriptedAPI struct {
	mu       sync.Mutex
	handlers []http.HandlerFunc
	auth     []string
	requests int
}

func (a *scriptedAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	idx := a.requests
	if idx >= len(a.handlers) {
		idx = len(a.handlers) - 1
	}
	a.requests++
	a.auth = append(a.auth, r.Header.Get("Authorization"))
	handler := a.handlers[idx]
	a.mu.Unlock()

	handler(w, r)
}

func (a *scriptedAPI) Requests() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.requests
}

func (a *scriptedAPI) AuthHeaders() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.auth...)
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}
}

func newScriptedClient(t *testing.T, tokens Authorizer, handlers ...http.HandlerFunc) (*SpotifyClient, *scriptedAPI) {
	t.Helper()
	api := &scriptedAPI{handlers: handlers}
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)

	client, err := NewSpotifyClient(SpotifyClientOpts{Tokens: tokens, URL: server.URL})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return client, api
}

func TestCurrentlyPlaying(t *testing.T) {
	t.Run("Song", func(t *testing.T) {
		var payload CurrentlyPlaying
		if err := json.Unmarshal([]byte(tu.CurrentlyPlayingJSON("Heat Waves", 42000, true)), &payload); err != nil {
			t.Fatalf("failed to unmarshal fixture: %v", err)
		}

		got := payload.Song("spotify")
		want := &models.Song{
			Title:     "Heat Waves",
			Duration:  180000,
			Progress:  42000,
			IsPlaying: true,
			URL:       "https://open.spotify.com/track/Heat Waves",
			Album: models.Album{
				Name:        "Album of Heat Waves",
				Image:       "https://i.scdn.co/image/Heat Waves-640",
				ReleaseDate: "2021-06-04",
			},
			Artists: models.Artists{
				Name: []string{"First Artist", "Second Artist"},
				URL:  []string{"https://open.spotify.com/artist/first", "https://open.spotify.com/artist/second"},
			},
		}

		if !reflect.DeepEqual(got, want) {
			t.Errorf("Song() mismatch\n got: %+v\nwant: %+v", got, want)
		}
	})

	t.Run("Song without item", func(t *testing.T) {
		payload := &CurrentlyPlaying{IsPlaying: false}
		if song := payload.Song("spotify"); song != nil {
			t.Errorf("expected nil song, got %+v", song)
		}

		var nilPayload *CurrentlyPlaying
		if song := nilPayload.Song("spotify"); song != nil {
			t.Errorf("expected nil song for nil payload, got %+v", song)
		}
	})

	t.Run("Song without images or artists", func(t *testing.T) {
		payload := &CurrentlyPlaying{Item: &SpotifyItem{Name: "Instrumental"}}
		song := payload.Song("spotify")

		if song.Album.Image != "" {
			t.Errorf("expected no image, got %s", song.Album.Image)
		}
		if song.Artists.Name == nil || song.Artists.URL == nil {
			t.Error("expected empty, non-nil artist lists")
		}

		data, err := json.Marshal(song)
		if err != nil {
			t.Fatalf("failed to marshal: %v", err)
		}
		if !strings.Contains(string(data), `"artists":{"name":[],"url":[]}`) {
			t.Errorf("expected empty artist arrays in %s", data)
		}
		if strings.Contains(string(data), `"image"`) {
			t.Errorf("expected image to be omitted in %s", data)
		}
	})

	t.Run("Song with another platform key", func(t *testing.T) {
		payload := &CurrentlyPlaying{Item: &SpotifyItem{
			Name:         "Track",
			ExternalURLs: map[string]string{"spotify": "a", "other": "b"},
			Artists:      []SpotifyArtist{{Name: "X", ExternalURLs: map[string]string{"other": "c"}}},
		}}
		song := payload.Song("other")
		if song.URL != "b" || song.Artists.URL[0] != "c" {
			t.Errorf("expected platform urls b and c, got %s and %s", song.URL, song.Artists.URL[0])
		}
	})
}

func TestSpotifyClient(t *testing.T) {
	t.Run("NewSpotifyClient", func(t *testing.T) {
		t.Run("requires tokens", func(t *testing.T) {
			if _, err := NewSpotifyClient(SpotifyClientOpts{}); !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("defaults", func(t *testing.T) {
			client, err := NewSpotifyClient(SpotifyClientOpts{Tokens: &tu.StaticAuthorizer{}})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if client.url != spotifyNowPlayingURL {
				t.Errorf("expected default url, got %s", client.url)
			}
			if client.platform != "spotify" {
				t.Errorf("expected default platform, got %s", client.platform)
			}
			if client.Name() != "Spotify" {
				t.Errorf("expected name Spotify, got %s", client.Name())
			}
		})
	})

	t.Run("NowPlaying", func(t *testing.T) {
		t.Run("playing", func(t *testing.T) {
			tokens := &tu.StaticAuthorizer{}
			client, api := newScriptedClient(t, tokens, respond(http.StatusOK, tu.CurrentlyPlayingJSON("Song A", 1000, true)))

			song, err := client.NowPlaying(context.Background())
			if err != nil {
				t.Fatalf("NowPlaying() error = %v", err)
			}
			if song == nil || song.Title != "Song A" {
				t.Fatalf("expected Song A, got %+v", song)
			}
			if api.Requests() != 1 {
				t.Errorf("expected 1 request, got %d", api.Requests())
			}
			if got := api.AuthHeaders()[0]; got != "Bearer token-1" {
				t.Errorf("expected bearer token-1, got %s", got)
			}
			if tokens.Invalidations() != 0 {
				t.Errorf("expected no invalidations, got %d", tokens.Invalidations())
			}
		})

		tc := []struct {
			name    string
			handler http.HandlerFunc
		}{
			{name: "no content", handler: respond(http.StatusNoContent, "")},
			{name: "null body", handler: respond(http.StatusOK, "null")},
			{name: "blank body", handler: respond(http.StatusOK, "  \n")},
			{name: "null item", handler: respond(http.StatusOK, `{"is_playing":false,"item":null}`)},
			{name: "ad break", handler: respond(http.StatusOK, `{"is_playing":true,"currently_playing_type":"ad","item":null}`)},
		}

		for _, tt := range tc {
			t.Run("not playing/"+tt.name, func(t *testing.T) {
				tokens := &tu.StaticAuthorizer{}
				client, _ := newScriptedClient(t, tokens, tt.handler)

				song, err := client.NowPlaying(context.Background())
				if err != nil {
					t.Fatalf("NowPlaying() error = %v", err)
				}
				if song != nil {
					t.Errorf("expected nil song, got %+v", song)
				}
				if tokens.Invalidations() != 0 {
					t.Errorf("expected no re-authorization, got %d", tokens.Invalidations())
				}
			})
		}

		t.Run("expired token recovers with one re-authorization", func(t *testing.T) {
			tokens := &tu.StaticAuthorizer{}
			client, api := newScriptedClient(t, tokens,
				respond(http.StatusUnauthorized, `{"error":{"status":401,"message":"The access token expired"}}`),
				respond(http.StatusOK, tu.CurrentlyPlayingJSON("Song A", 2000, true)),
			)

			song, err := client.NowPlaying(context.Background())
			if err != nil {
				t.Fatalf("NowPlaying() error = %v", err)
			}
			if song == nil || song.Title != "Song A" {
				t.Fatalf("expected Song A, got %+v", song)
			}
			if tokens.Invalidations() != 1 {
				t.Errorf("expected exactly 1 invalidation, got %d", tokens.Invalidations())
			}
			if tokens.Issued() != 2 {
				t.Errorf("expected 2 tokens issued, got %d", tokens.Issued())
			}

			auth := api.AuthHeaders()
			if len(auth) != 2 || auth[0] != "Bearer token-1" || auth[1] != "Bearer token-2" {
				t.Errorf("expected token-1 then token-2, got %v", auth)
			}
		})

		t.Run("second failure is returned", func(t *testing.T) {
			tokens := &tu.StaticAuthorizer{}
			client, api := newScriptedClient(t, tokens, respond(http.StatusInternalServerError, `{"error":"boom"}`))

			song, err := client.NowPlaying(context.Background())
			if !errors.Is(err, shared.ErrQueryFailed) {
				t.Errorf("expected ErrQueryFailed, got %v", err)
			}
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest in chain, got %v", err)
			}
			if song != nil {
				t.Errorf("expected nil song, got %+v", song)
			}
			if api.Requests() != 2 {
				t.Errorf("expected exactly 2 requests, got %d", api.Requests())
			}
			if tokens.Invalidations() != 1 {
				t.Errorf("expected 1 invalidation, got %d", tokens.Invalidations())
			}
		})

		t.Run("malformed payload is not retried", func(t *testing.T) {
			tokens := &tu.StaticAuthorizer{}
			client, api := newScriptedClient(t, tokens, respond(http.StatusOK, `{"item": "not an object"}`))

			_, err := client.NowPlaying(context.Background())
			if !errors.Is(err, shared.ErrMalformedPayload) {
				t.Errorf("expected ErrMalformedPayload, got %v", err)
			}
			if !errors.Is(err, shared.ErrQueryFailed) {
				t.Errorf("expected ErrQueryFailed, got %v", err)
			}
			if api.Requests() != 1 {
				t.Errorf("expected 1 request, got %d", api.Requests())
			}
			if tokens.Invalidations() != 0 {
				t.Errorf("expected no invalidations, got %d", tokens.Invalidations())
			}
		})

		t.Run("item without a name is malformed", func(t *testing.T) {
			client, _ := newScriptedClient(t, &tu.StaticAuthorizer{}, respond(http.StatusOK, `{"is_playing":true,"item":{"duration_ms":1}}`))

			if _, err := client.NowPlaying(context.Background()); !errors.Is(err, shared.ErrMalformedPayload) {
				t.Errorf("expected ErrMalformedPayload, got %v", err)
			}
		})

		unexpected := []struct {
			name string
			body string
		}{
			{name: "empty object", body: `{}`},
			{name: "unrelated object", body: `{"foo":1}`},
			{name: "playing without an item", body: `{"is_playing":true}`},
			{name: "array", body: `[1,2]`},
		}

		for _, tt := range unexpected {
			t.Run("unexpected shape/"+tt.name, func(t *testing.T) {
				tokens := &tu.StaticAuthorizer{}
				client, api := newScriptedClient(t, tokens, respond(http.StatusOK, tt.body))

				song, err := client.NowPlaying(context.Background())
				if !errors.Is(err, shared.ErrQueryFailed) || !errors.Is(err, shared.ErrMalformedPayload) {
					t.Errorf("expected ErrQueryFailed wrapping ErrMalformedPayload, got %v", err)
				}
				if song != nil {
					t.Errorf("expected nil song, got %+v", song)
				}
				if api.Requests() != 1 {
					t.Errorf("expected 1 request, got %d", api.Requests())
				}
				if tokens.Invalidations() != 0 {
					t.Errorf("expected no invalidations, got %d", tokens.Invalidations())
				}
			})
		}

		t.Run("authorization failure", func(t *testing.T) {
			tokens := &tu.StaticAuthorizer{Err: fmt.Errorf("%w: invalid_grant", shared.ErrAuthFailed)}
			client, api := newScriptedClient(t, tokens, respond(http.StatusOK, tu.CurrentlyPlayingJSON("Song A", 0, true)))

			_, err := client.NowPlaying(context.Background())
			if !errors.Is(err, shared.ErrQueryFailed) || !errors.Is(err, shared.ErrAuthFailed) {
				t.Errorf("expected ErrQueryFailed wrapping ErrAuthFailed, got %v", err)
			}
			if api.Requests() != 0 {
				t.Errorf("expected no upstream requests, got %d", api.Requests())
			}
			if tokens.Invalidations() != 1 {
				t.Errorf("expected 1 invalidation, got %d", tokens.Invalidations())
			}
		})

		t.Run("transport failure", func(t *testing.T) {
			httpClient := &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection reset"))}
			client, err := NewSpotifyClient(SpotifyClientOpts{Tokens: &tu.StaticAuthorizer{}, HTTPClient: httpClient})
			if err != nil {
				t.Fatalf("failed to create client: %v", err)
			}

			if _, err := client.NowPlaying(context.Background()); !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
		})

		t.Run("unreadable body", func(t *testing.T) {
			resp := &http.Response{StatusCode: http.StatusOK, Body: &tu.FCloser{}, Header: http.Header{}}
			httpClient := &http.Client{Transport: tu.NewMockRoundTripper(resp, nil)}
			client, _ := NewSpotifyClient(SpotifyClientOpts{Tokens: &tu.StaticAuthorizer{}, HTTPClient: httpClient})

			if _, err := client.NowPlaying(context.Background()); !errors.Is(err, shared.ErrQueryFailed) {
				t.Errorf("expected ErrQueryFailed, got %v", err)
			}
		})

		t.Run("cancelled context skips the retry", func(t *testing.T) {
			tokens := &tu.StaticAuthorizer{}
			client, api := newScriptedClient(t, tokens, respond(http.StatusOK, tu.CurrentlyPlayingJSON("Song A", 0, true)))

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			if _, err := client.NowPlaying(ctx); !errors.Is(err, shared.ErrQueryFailed) {
				t.Errorf("expected ErrQueryFailed, got %v", err)
			}
			if api.Requests() != 0 {
				t.Errorf("expected no requests on a cancelled context, got %d", api.Requests())
			}
			if tokens.Invalidations() != 0 {
				t.Errorf("expected no invalidations, got %d", tokens.Invalidations())
			}
		})
	})

	t.Run("with TokenProvider", func(t *testing.T) {
		tokenServer, exchanges := newTokenServer(t, 3600)
		provider := newTestTokenProvider(t, tokenServer.URL)

		var requests int32
		api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&requests, 1)
			if r.Header.Get("Authorization") != "Bearer access-2" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			io.WriteString(w, tu.CurrentlyPlayingJSON("Song A", 1000, true))
		}))
		defer api.Close()

		client, err := NewSpotifyClient(SpotifyClientOpts{Tokens: provider, URL: api.URL})
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}

		song, err := client.NowPlaying(context.Background())
		if err != nil {
			t.Fatalf("NowPlaying() error = %v", err)
		}
		if song.Title != "Song A" {
			t.Errorf("expected Song A, got %s", song.Title)
		}
		if got := atomic.LoadInt32(exchanges); got != 2 {
			t.Errorf("expected initial exchange plus one re-authorization, got %d", got)
		}

		if _, err := client.NowPlaying(context.Background()); err != nil {
			t.Fatalf("NowPlaying() error = %v", err)
		}
		if got := atomic.LoadInt32(exchanges); got != 2 {
			t.Errorf("expected cached token to be reused, got %d exchanges", got)
		}
		if got := atomic.LoadInt32(&requests); got != 3 {
			t.Errorf("expected 3 upstream requests, got %d", got)
		}
	})
}
