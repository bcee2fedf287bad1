// package services defines interfaces for the external collaborators of the
// request-to-playlist pipeline
//
// OpenAI (field extraction), setlist.fm (setlist search), Spotify (playlist assembly)
package services

import (
	"context"
)

// Extractor converts free-form user text into a structured [Extraction].
type Extractor interface {
	// Extract issues a single deterministic language model request.
	//
	// It never fails: malformed model output and transport errors are
	// recoverable conditions that degrade to a zero Extraction.
	Extract(ctx context.Context, text string) Extraction
}

// SetlistSource looks up a historical concert setlist.
type SetlistSource interface {
	// Setlist returns the ordered song titles of the best-matching performance.
	//
	// Upstream failures and empty result sets collapse to an empty slice;
	// the error return is reserved for context cancellation.
	Setlist(ctx context.Context, query SetlistQuery) ([]string, error)
}

// PlaylistBuilder resolves song titles to catalog tracks and assembles a playlist.
type PlaylistBuilder interface {
	// BuildPlaylist creates a playlist named name (or "Setlist <artist>" when
	// empty) on the pre-authorized account and fills it with the tracks that
	// the catalog search matched. Unmatched songs are dropped.
	BuildPlaylist(ctx context.Context, artist string, songs []string, name string) (*Playlist, error)
}

// Extraction is the structured interpretation of one user message.
//
// Empty strings mean the field was not identified. A missing Artist makes
// the whole record unusable.
type Extraction struct {
	Artist string
	City   string
	Year   string
}

// HasArtist reports whether the extraction is usable for a setlist lookup.
func (e Extraction) HasArtist() bool {
	return e.Artist != ""
}

// SetlistQuery holds the search filters for a setlist lookup.
// City and Year are optional and omitted from the upstream request when empty.
type SetlistQuery struct {
	Artist string
	City   string
	Year   string
}

// Query builds a SetlistQuery from the extraction. Valid only when HasArtist.
func (e Extraction) Query() SetlistQuery {
	return SetlistQuery{Artist: e.Artist, City: e.City, Year: e.Year}
}

// Playlist represents a playlist created on the streaming service.
type Playlist struct {
	ID         string
	Name       string
	URL        string
	TrackCount int
}
