package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
	"setlistbot/internal/shared"
)

// SpotifyAuthorizer is the slice of the Spotify service the OAuth handler needs.
type SpotifyAuthorizer interface {
	GetAuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	Authenticate(ctx context.Context, credentials map[string]string) error
}

// TokenSaver persists the captured refresh credential.
type TokenSaver interface {
	SaveToken(refreshToken string) error
}

// OAuthHandler implements the one-time authorization flow that links the
// worker Spotify account: /login redirects to the consent page, /callback
// exchanges the code, stores the refresh credential and re-authenticates the
// shared Spotify service so playlist assembly works without a restart.
type OAuthHandler struct {
	spotify SpotifyAuthorizer
	store   TokenSaver
	state   string
	logger  *log.Logger
}

// NewOAuthHandler creates an OAuth handler. A fresh random state token is
// generated per process for CSRF protection.
func NewOAuthHandler(spotify SpotifyAuthorizer, store TokenSaver, logger *log.Logger) *OAuthHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &OAuthHandler{
		spotify: spotify,
		store:   store,
		state:   shared.GenerateID(),
		logger:  logger,
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{"/login", "/callback"}
}

// ServeHTTP dispatches between the login redirect and the callback exchange.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/login":
		h.login(w, r)
	case "/callback":
		h.callback(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *OAuthHandler) login(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.spotify.GetAuthURL(h.state), http.StatusFound)
}

// callback validates state, exchanges the authorization code and captures the
// long-lived refresh credential.
func (h *OAuthHandler) callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if errParam := query.Get("error"); errParam != "" {
		http.Error(w, fmt.Sprintf("Spotify error: %s", errParam), http.StatusBadRequest)
		return
	}

	if state := query.Get("state"); state != h.state {
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	code := query.Get("code")
	if code == "" {
		http.Error(w, "Missing ?code= parameter", http.StatusBadRequest)
		return
	}

	token, err := h.spotify.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("token exchange failed", "error", err)
		http.Error(w, "Token exchange failed", http.StatusInternalServerError)
		return
	}

	if token.RefreshToken == "" {
		http.Error(w, "No refresh token returned. Try again.", http.StatusBadRequest)
		return
	}

	if h.store != nil {
		if err := h.store.SaveToken(token.RefreshToken); err != nil {
			h.logger.Error("failed to persist refresh token", "error", err)
			http.Error(w, "Failed to store credential", http.StatusInternalServerError)
			return
		}
	}

	if err := h.spotify.Authenticate(r.Context(), map[string]string{"refresh_token": token.RefreshToken}); err != nil {
		h.logger.Error("failed to authenticate with new token", "error", err)
		http.Error(w, "Failed to activate credential", http.StatusInternalServerError)
		return
	}

	h.logger.Info("spotify account linked")

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "✅ Authorized! The bot can now create playlists on this account.")
}
