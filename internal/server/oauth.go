package server

import (
	"fmt"
	"html/template"
	"net/http"
	"sync"

	"github.com/desertthunder/nowplaying/internal/shared"
	"golang.org/x/oauth2"
)

// Scopes needed to read playback.
const (
	ScopeCurrentlyPlaying = "user-read-currently-playing"
	ScopePlaybackState    = "user-read-playback-state"
)

const spotifyAuthURL = "https://accounts.spotify.com/authorize"

// AuthorizationConfig builds the authorization-code configuration used to mint a refresh token.
// An empty tokenURL selects the Spotify accounts endpoint.
func AuthorizationConfig(clientID, clientSecret, redirectURL, tokenURL string) *oauth2.Config {
	if tokenURL == "" {
		tokenURL = "https://accounts.spotify.com/api/token"
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{ScopeCurrentlyPlaying, ScopePlaybackState},
		Endpoint: oauth2.Endpoint{
			AuthURL:   spotifyAuthURL,
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// OAuthResult contains the outcome of an authorization-code flow.
type OAuthResult struct {
	Token *oauth2.Token
	Err   error
}

// RefreshToken returns the long-lived credential to configure as REFRESH_TOKEN.
func (o OAuthResult) RefreshToken() (string, error) {
	if o.Err != nil {
		return "", o.Err
	}
	if o.Token == nil || o.Token.RefreshToken == "" {
		return "", shared.ErrNoRefreshToken
	}
	return o.Token.RefreshToken, nil
}

var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #121212; color: #fff; }
        .card { text-align: center; background: #181818; padding: 2rem; border-radius: 8px; }
        h1 { color: {{.Color}}; margin: 0 0 1rem 0; }
        p { color: #b3b3b3; margin: 0; }
    </style>
</head>
<body>
    <div class="card">
        <h1>{{.Title}}</h1>
        <p>{{.Message}}</p>
    </div>
</body>
</html>
`))

type callbackView struct {
	Title   string
	Message string
	Color   string
}

// OAuthHandler handles the single authorization callback of the `auth` command.
// Implements the [Handler] interface for registration with a [Router].
type OAuthHandler struct {
	config *oauth2.Config
	state  string
	result chan OAuthResult

	once sync.Once
	mu   sync.Mutex
	used bool
}

// NewOAuthHandler creates an [OAuthHandler]. state must be unguessable; it guards against CSRF.
func NewOAuthHandler(config *oauth2.Config, state string) *OAuthHandler {
	return &OAuthHandler{
		config: config,
		state:  state,
		result: make(chan OAuthResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{"/callback"}
}

// ServeHTTP validates the callback, exchanges the code and publishes the result.
// Only the first callback carrying the expected state is processed; others are refused and the flow keeps waiting.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if query.Get("state") != h.state {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusBadRequest)
		callbackPage.Execute(w, callbackView{
			Title:   "Authorization Failed",
			Message: "Invalid state parameter.",
			Color:   "#e22134",
		})
		return
	}

	h.mu.Lock()
	if h.used {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.used = true
	h.mu.Unlock()

	code := query.Get("code")
	if code == "" {
		err := fmt.Errorf("%w: %s: %s", shared.ErrAuthFailed, query.Get("error"), query.Get("error_description"))
		h.fail(w, http.StatusBadRequest, err)
		return
	}

	token, err := h.config.Exchange(r.Context(), code)
	if err != nil {
		h.fail(w, http.StatusInternalServerError, fmt.Errorf("%w: token exchange: %v", shared.ErrAuthFailed, err))
		return
	}

	h.Send(OAuthResult{Token: token})
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	callbackPage.Execute(w, callbackView{
		Title:   "Authorization Successful",
		Message: "You can close this window and return to the terminal.",
		Color:   "#1DB954",
	})
}

func (h *OAuthHandler) fail(w http.ResponseWriter, status int, err error) {
	h.Send(OAuthResult{Err: err})
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	callbackPage.Execute(w, callbackView{Title: "Authorization Failed", Message: err.Error(), Color: "#e22134"})
}

// Send publishes the result once; later calls are ignored.
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.result <- result
		close(h.result)
	})
}

// Result receives exactly one [OAuthResult] and is then closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.result
}
