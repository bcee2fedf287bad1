// Package services implements the three external collaborators of the
// request-to-playlist pipeline behind small interfaces.
//
// # Interfaces
//
// Each pipeline stage depends on one interface so the orchestrator can be
// tested with doubles:
//   - [Extractor] : free-form text → structured (artist, city, year)
//   - [SetlistSource] : (artist, city, year) → ordered song titles
//   - [PlaylistBuilder] : (artist, songs) → created playlist
//
// # OpenAI Implementation
//
// [OpenAIClient] issues a single temperature-zero chat completion with a
// strict JSON output contract. Surrounding markdown fences are stripped before
// parsing. Malformed output and transport errors are recoverable: they degrade
// to a zero [Extraction] and a warning log, never a crash.
//
// # setlist.fm Implementation
//
// [SetlistFMClient] performs one bounded-timeout search, uses only the first
// result, and flattens all set segments (main sets and encores) into one
// ordered song list. Upstream failures collapse to an empty list.
//
// # Spotify Implementation
//
// [SpotifyService] uses OAuth2 with a long-lived refresh credential for the
// single worker account. The [oauth2] token source refreshes expired access
// tokens lazily and is safe for concurrent use across pipeline runs.
// Add-tracks writes are batched at the upstream's 100-URI ceiling.
//
// # Error Handling
//
// Expected upstream conditions (bad JSON, empty results, non-200 statuses)
// convert to empty or absent sentinel values inside each client. Only
// misconfiguration and genuine defects propagate as errors, wrapped with
// typed sentinels from the shared package:
//   - [shared.ErrNotAuthenticated] : Authenticate() not called
//   - [shared.ErrRefreshFailed] : credential refresh failed
//   - [shared.ErrAPIRequest] : HTTP request failed
package services
