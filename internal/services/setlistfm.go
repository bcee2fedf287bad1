// setlist.fm implementation of [SetlistSource]
//
// Response types based on https://api.setlist.fm/docs/1.0/index.html
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
	"setlistbot/internal/shared"
)

const (
	setlistFMBaseURL = "https://api.setlist.fm/rest/1.0"

	// Upstream calls are bounded; a hung setlist search should not stall the
	// whole pipeline.
	setlistFMTimeout = 20 * time.Second
)

type setlistSong struct {
	Name string `json:"name"`
}

type setlistSet struct {
	Name   string        `json:"name"`
	Encore int           `json:"encore"`
	Songs  []setlistSong `json:"song"`
}

type setlistSets struct {
	Set []setlistSet `json:"set"`
}

// setlistItem represents one performance returned by the search endpoint.
type setlistItem struct {
	ID        string      `json:"id"`
	EventDate string      `json:"eventDate"`
	Sets      setlistSets `json:"sets"`
}

type setlistSearchResponse struct {
	Total   int           `json:"total"`
	Setlist []setlistItem `json:"setlist"`
}

// SetlistFMClient implements [SetlistSource] against the setlist.fm REST API.
//
// The free tier enforces a low request rate, so all calls go through a
// client-side [rate.Limiter].
type SetlistFMClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
}

// NewSetlistFMClient creates a setlist.fm client with a bounded request
// timeout and a 2 req/s rate limit.
func NewSetlistFMClient(apiKey string, client *http.Client, logger *log.Logger) *SetlistFMClient {
	if client == nil {
		client = &http.Client{Timeout: setlistFMTimeout}
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &SetlistFMClient{
		apiKey:     apiKey,
		baseURL:    setlistFMBaseURL,
		httpClient: client,
		limiter:    rate.NewLimiter(rate.Limit(2), 1),
		logger:     logger,
	}
}

// Setlist searches for the best-matching performance and returns its songs in
// performance order.
//
// Only the first result is used; when the artist/city/year combination is
// ambiguous, whichever setlist the upstream ranks first wins. Songs from every
// set segment (main sets, encores) are flattened into one ordered list.
//
// Non-success statuses, transport failures and empty result sets all collapse
// to an empty slice. The caller decides what an empty list means.
func (c *SetlistFMClient) Setlist(ctx context.Context, query SetlistQuery) ([]string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	params := url.Values{}
	params.Set("artistName", query.Artist)
	params.Set("p", "1")
	if query.City != "" {
		params.Set("cityName", query.City)
	}
	if query.Year != "" {
		params.Set("year", query.Year)
	}

	endpoint := c.baseURL + "/search/setlists?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("setlist.fm request failed", "artist", query.Artist, "error", err)
		return []string{}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		c.logger.Error("setlist.fm error", "status", resp.StatusCode, "body", string(body))
		return []string{}, nil
	}

	var result setlistSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		c.logger.Warn("failed to decode setlist.fm response", "error", err)
		return []string{}, nil
	}

	if len(result.Setlist) == 0 {
		return []string{}, nil
	}

	return flattenSets(result.Setlist[0].Sets), nil
}

// flattenSets concatenates every song of every set segment, preserving the
// order the upstream returns them in.
func flattenSets(sets setlistSets) []string {
	songs := []string{}
	for _, set := range sets.Set {
		for _, song := range set.Songs {
			if song.Name != "" {
				songs = append(songs, song.Name)
			}
		}
	}
	return songs
}
