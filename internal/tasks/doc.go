// Package tasks orchestrates the request-to-playlist pipeline with real-time progress reporting.
//
// # Pipeline
//
// [PipelineEngine.Run] processes one user message through three sequential stages:
//
//  1. Field extraction : free-form text → (artist, city, year)
//  2. Setlist retrieval : filters → ordered song titles
//  3. Playlist assembly : artist + songs → Spotify playlist
//
// Each stage depends on the previous one's output, so there is no internal
// parallelism; concurrent user requests run as independent pipeline
// invocations over the same shared stage clients.
//
// # Outcomes
//
// Every anticipated terminal condition is a tagged [Outcome] on the
// [PipelineResult] rather than an error:
//
//   - [OutcomeNoArtist] : extraction found no artist, downstream stages never ran
//   - [OutcomeNoSetlist] : empty search result, the result echoes the filters used
//   - [OutcomeAssemblyFailed] : credential or playlist-service failure, cause in Err
//   - [OutcomeCreated] : playlist URL, track count and skipped-song count available
//
// The error return of Run is the catch-all path: it fires only for
// unexpected defects (context cancellation, nil dependencies) and is handled
// once at the transport boundary.
//
// # Progress Reporting
//
// Runs emit [ProgressUpdate] values on an optional channel. Sends use select
// with default so a slow or absent consumer never blocks a run.
//
// # Recording
//
// The optional [PlaylistRecorder] persists created playlists. Recording is
// best-effort; errors are logged and ignored.
package tasks
