// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/nowplaying/internal/models"
)

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

// Result is one scripted poll outcome for [FakeSource].
type Result struct {
	Song *models.Song
	Err  error
}

// FakeSource replays scripted results; once exhausted it repeats the last one.
type FakeSource struct {
	mu      sync.Mutex
	results []Result
	calls   int
}

func NewFakeSource(results ...Result) *FakeSource {
	return &FakeSource{results: results}
}

func (f *FakeSource) NowPlaying(ctx context.Context) (*models.Song, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.results) == 0 {
		return nil, nil
	}
	idx := f.calls
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	f.calls++
	return f.results[idx].Song, f.results[idx].Err
}

func (f *FakeSource) Name() string { return "fake" }

// Calls returns how many times NowPlaying was invoked.
func (f *FakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// StaticAuthorizer hands out numbered tokens ("token-1", "token-2", ...) and counts invalidations.
type StaticAuthorizer struct {
	mu            sync.Mutex
	current       string
	issued        int
	invalidations int
	Err           error
}

func (s *StaticAuthorizer) Acquire(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return "", s.Err
	}
	if s.current == "" {
		s.issued++
		s.current = fmt.Sprintf("token-%d", s.issued)
	}
	return s.current, nil
}

func (s *StaticAuthorizer) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = ""
	s.invalidations++
}

// Issued returns how many tokens were handed out.
func (s *StaticAuthorizer) Issued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issued
}

// Invalidations returns how many times Invalidate was called.
func (s *StaticAuthorizer) Invalidations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invalidations
}

// NewSong builds a playing song fixture identified by title.
func NewSong(title string, progress int) *models.Song {
	return &models.Song{
		Title:     title,
		Duration:  180000,
		Progress:  progress,
		IsPlaying: true,
		Album:     models.Album{Name: title + " (Album)", Image: "https://i.scdn.co/image/" + title, ReleaseDate: "2021-06-04"},
		Artists:   models.Artists{Name: []string{"Artist"}, URL: []string{"https://open.spotify.com/artist/1"}},
		URL:       "https://open.spotify.com/track/" + title,
	}
}

// CurrentlyPlayingJSON renders a representative upstream payload for title.
func CurrentlyPlayingJSON(title string, progress int, playing bool) string {
	return fmt.Sprintf(`{
  "timestamp": 1700000000000,
  "progress_ms": %d,
  "is_playing": %t,
  "currently_playing_type": "track",
  "item": {
    "name": %q,
    "duration_ms": 180000,
    "album": {
      "name": "Album of %s",
      "images": [{"url": "https://i.scdn.co/image/%s-640", "height": 640, "width": 640}, {"url": "https://i.scdn.co/image/%s-300"}],
      "release_date": "2021-06-04"
    },
    "artists": [
      {"name": "First Artist", "external_urls": {"spotify": "https://open.spotify.com/artist/first"}},
      {"name": "Second Artist", "external_urls": {"spotify": "https://open.spotify.com/artist/second"}}
    ],
    "external_urls": {"spotify": "https://open.spotify.com/track/%s"}
  }
}`, progress, playing, title, title, title, title, title)
}

// Eventually polls cond until it holds or timeout elapses.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v: %s", timeout, msg)
}
