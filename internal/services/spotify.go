// Spotify API implementation of [PlaylistBuilder]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
	"setlistbot/internal/shared"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// Hard upstream ceiling for a single add-tracks call.
	addTracksBatchSize = 100
)

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Artists []SpotifyArtist `json:"artists"`
	URI     string          `json:"uri"`
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}

// SpotifyPlaylist represents a Spotify playlist.
type SpotifyPlaylist struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Public       bool         `json:"public"`
	ExternalURLs externalURLs `json:"external_urls"`
	URI          string       `json:"uri"`
}

type searchTracksResponse struct {
	Tracks struct {
		Items []SpotifyTrack `json:"items"`
	} `json:"tracks"`
}

// SpotifyService implements [PlaylistBuilder] for the single pre-authorized
// worker account. Uses [oauth2] for authentication; the token source refreshes
// the short-lived access credential lazily and is safe for concurrent use.
type SpotifyService struct {
	config      *oauth2.Config
	tokenSource oauth2.TokenSource
	httpClient  *http.Client
	baseURL     string
	logger      *log.Logger
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string, logger *log.Logger) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = "http://localhost:8080/callback"
	}

	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"playlist-modify-public",
			"playlist-modify-private",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &SpotifyService{
		config:     config,
		httpClient: http.DefaultClient,
		baseURL:    spotifyBaseURL,
		logger:     logger,
	}, nil
}

// Authenticate establishes the credential used for all subsequent calls.
// Expects either an "access_token" or a "refresh_token" in credentials.
//
// The refresh token path is the normal one for the deployed bot: the
// long-lived secret is exchanged lazily for short-lived access tokens, which
// [oauth2] caches and refreshes as they expire.
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	if accessToken, ok := credentials["access_token"]; ok && accessToken != "" {
		s.tokenSource = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
		return nil
	}

	if refreshToken, ok := credentials["refresh_token"]; ok && refreshToken != "" {
		s.tokenSource = s.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
		return nil
	}

	return fmt.Errorf("%w: access_token or refresh_token required", shared.ErrMissingCredentials)
}

// Authenticated reports whether a credential has been established.
func (s *SpotifyService) Authenticated() bool {
	return s.tokenSource != nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// GetAuthURL returns the OAuth2 authorization URL for the one-time account login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a token. Used by the callback
// handler to capture the long-lived refresh credential.
func (s *SpotifyService) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange auth code: %w", err)
	}
	return token, nil
}

// doRequest performs an authenticated HTTP request to the Spotify API.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body any, result any) error {
	if s.tokenSource == nil {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	token, err := s.tokenSource.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}

	apiURL := s.baseURL + endpoint

	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: spotify status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// CurrentUser retrieves the authenticated account's profile.
func (s *SpotifyService) CurrentUser(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// CreatePlaylist creates a new public playlist owned by the given user.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, userID, name, description string) (*SpotifyPlaylist, error) {
	payload := map[string]any{
		"name":        name,
		"public":      true,
		"description": description,
	}

	var playlist SpotifyPlaylist
	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(userID))
	if err := s.doRequest(ctx, http.MethodPost, endpoint, payload, &playlist); err != nil {
		return nil, err
	}

	return &playlist, nil
}

// SearchTrack searches the catalog for a track by title and artist and
// returns the single top hit, or nil when nothing matched.
//
// The query pins both fields; no fuzzy scoring is applied beyond what the
// upstream search does.
func (s *SpotifyService) SearchTrack(ctx context.Context, title, artist string) (*SpotifyTrack, error) {
	q := fmt.Sprintf("track:\"%s\" artist:\"%s\"", title, artist)
	endpoint := "/search?" + url.Values{
		"q":     {q},
		"type":  {"track"},
		"limit": {"1"},
	}.Encode()

	var result searchTracksResponse
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &result); err != nil {
		return nil, err
	}

	if len(result.Tracks.Items) == 0 {
		return nil, nil
	}

	return &result.Tracks.Items[0], nil
}

// AddTracks appends tracks to a playlist in order, batching writes to the
// upstream's 100-URI ceiling per call.
func (s *SpotifyService) AddTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))

	for start := 0; start < len(trackIDs); start += addTracksBatchSize {
		end := min(start+addTracksBatchSize, len(trackIDs))

		uris := make([]string, 0, end-start)
		for _, id := range trackIDs[start:end] {
			uris = append(uris, "spotify:track:"+id)
		}

		payload := map[string]any{"uris": uris}
		if err := s.doRequest(ctx, http.MethodPost, endpoint, payload, nil); err != nil {
			return err
		}
	}

	return nil
}

// BuildPlaylist implements [PlaylistBuilder].
//
// Resolves each song title to a catalog track (best effort, unmatched songs
// are skipped) and assembles a playlist on the authenticated account. Songs
// that fail to match are reflected only in a lower TrackCount. A credential
// problem is returned as-is so the caller can tell misconfiguration apart
// from bad user input.
func (s *SpotifyService) BuildPlaylist(ctx context.Context, artist string, songs []string, name string) (*Playlist, error) {
	if s.tokenSource == nil {
		return nil, fmt.Errorf("%w: spotify account not linked", shared.ErrNotAuthenticated)
	}

	user, err := s.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve account: %w", err)
	}

	if name == "" {
		name = "Setlist " + artist
	}
	description := fmt.Sprintf("Generated by setlistbot - %s", artist)

	playlist, err := s.CreatePlaylist(ctx, user.ID, name, description)
	if err != nil {
		return nil, fmt.Errorf("failed to create playlist: %w", err)
	}

	trackIDs := make([]string, 0, len(songs))
	for _, song := range songs {
		track, err := s.SearchTrack(ctx, song, artist)
		if err != nil {
			s.logger.Warn("track search failed", "song", song, "error", err)
			continue
		}
		if track == nil {
			s.logger.Debug("no match for song", "song", song, "artist", artist)
			continue
		}
		trackIDs = append(trackIDs, track.ID)
	}

	if err := s.AddTracks(ctx, playlist.ID, trackIDs); err != nil {
		return nil, fmt.Errorf("failed to add tracks: %w", err)
	}

	return &Playlist{
		ID:         playlist.ID,
		Name:       playlist.Name,
		URL:        playlist.ExternalURLs.Spotify,
		TrackCount: len(trackIDs),
	}, nil
}
