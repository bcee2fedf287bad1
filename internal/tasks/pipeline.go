// package tasks implements the request-to-playlist pipeline.
//
// The core abstraction is Engine, which sequences field extraction, setlist
// retrieval and playlist assembly, and reduces each run to a tagged outcome.
// Operations emit progress updates via channels for non-blocking status
// reporting to the transport layer.
package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"setlistbot/internal/services"
	"setlistbot/internal/shared"
)

// Outcome tags the terminal state of a pipeline run. Every run ends in
// exactly one of these; the transport layer maps each to a user-facing reply.
type Outcome int

const (
	// OutcomeCreated means the playlist exists and PipelineResult.Playlist is set.
	OutcomeCreated Outcome = iota
	// OutcomeNoArtist means extraction produced no artist; nothing downstream ran.
	OutcomeNoArtist
	// OutcomeNoSetlist means the setlist search came back empty for the filters used.
	OutcomeNoSetlist
	// OutcomeAssemblyFailed means playlist creation or population failed;
	// PipelineResult.Err carries the cause for server-side logging.
	OutcomeAssemblyFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeNoArtist:
		return "no_artist"
	case OutcomeNoSetlist:
		return "no_setlist"
	case OutcomeAssemblyFailed:
		return "assembly_failed"
	default:
		return ""
	}
}

// PipelineResult contains all data from a single pipeline run.
type PipelineResult struct {
	Outcome    Outcome             // Terminal state of the run
	Extraction services.Extraction // Fields extracted from the user text
	SongCount  int                 // Songs in the retrieved setlist
	Skipped    int                 // Songs that produced no catalog match
	Playlist   *services.Playlist  // Created playlist (OutcomeCreated only)
	Err        error               // Failure detail (OutcomeAssemblyFailed only)
}

// Filters describes the optional setlist search filters that were applied,
// for echoing back to the user when no setlist was found.
func (r *PipelineResult) Filters() string {
	var parts []string
	if r.Extraction.City != "" {
		parts = append(parts, "city="+r.Extraction.City)
	}
	if r.Extraction.Year != "" {
		parts = append(parts, "year="+r.Extraction.Year)
	}
	return strings.Join(parts, ", ")
}

// PlaylistRecorder persists a record of a created playlist.
//
// Recording is best-effort: implementations may fail and the pipeline must
// not care.
type PlaylistRecorder interface {
	Record(artist string, playlist *services.Playlist) error
}

// Engine defines the request-to-playlist pipeline.
type Engine interface {
	// Run processes one user message end to end. The returned error is the
	// catch-all path for unexpected defects only; every anticipated condition
	// is expressed as a PipelineResult outcome.
	Run(ctx context.Context, text string, progress chan<- ProgressUpdate) (*PipelineResult, error)
}

// PipelineEngine implements [Engine]. Holds the three stage dependencies,
// which are shared across concurrent runs and must be safe for reuse.
type PipelineEngine struct {
	extractor services.Extractor
	setlists  services.SetlistSource
	builder   services.PlaylistBuilder
	recorder  PlaylistRecorder
	logger    *log.Logger
}

// NewPipelineEngine creates a new PipelineEngine with the provided stage
// implementations. The recorder is optional.
func NewPipelineEngine(extractor services.Extractor, setlists services.SetlistSource, builder services.PlaylistBuilder, logger *log.Logger) *PipelineEngine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &PipelineEngine{
		extractor: extractor,
		setlists:  setlists,
		builder:   builder,
		logger:    logger,
	}
}

// SetRecorder attaches an optional best-effort playlist recorder.
func (e *PipelineEngine) SetRecorder(r PlaylistRecorder) {
	e.recorder = r
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default so progress reporting never stalls a run.
func (e *PipelineEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Run sequences extraction → setlist retrieval → assembly for one message.
//
// The stages are strictly sequential since each depends on the previous
// one's output. Short-circuits: a missing artist and an empty setlist each
// terminate the run with a distinct outcome without touching the stages
// below them. An empty setlist never reaches the builder, so the bot never
// creates an empty playlist.
func (e *PipelineEngine) Run(ctx context.Context, text string, progress chan<- ProgressUpdate) (*PipelineResult, error) {
	if e.extractor == nil || e.setlists == nil || e.builder == nil {
		return nil, fmt.Errorf("%w: pipeline stage not initialized", shared.ErrServiceUnavailable)
	}

	result := &PipelineResult{}

	e.sendProgress(progress, extractUpdate())
	result.Extraction = e.extractor.Extract(ctx, text)

	if !result.Extraction.HasArtist() {
		result.Outcome = OutcomeNoArtist
		return result, nil
	}

	query := result.Extraction.Query()
	e.sendProgress(progress, fetchSetlistUpdate(query))

	songs, err := e.setlists.Setlist(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("setlist lookup: %w", err)
	}
	result.SongCount = len(songs)

	if len(songs) == 0 {
		result.Outcome = OutcomeNoSetlist
		return result, nil
	}

	e.sendProgress(progress, assembleUpdate(query.Artist, len(songs)))

	name := playlistName(result.Extraction)
	playlist, err := e.builder.BuildPlaylist(ctx, query.Artist, songs, name)
	if err != nil {
		e.logger.Error("playlist assembly failed", "artist", query.Artist, "error", err)
		result.Outcome = OutcomeAssemblyFailed
		result.Err = err
		return result, nil
	}

	result.Outcome = OutcomeCreated
	result.Playlist = playlist
	result.Skipped = result.SongCount - playlist.TrackCount

	e.sendProgress(progress, createdUpdate(playlist))
	e.record(query.Artist, playlist)

	return result, nil
}

// record logs the created playlist through the optional recorder.
// Errors are swallowed so persistence problems never disturb a run.
func (e *PipelineEngine) record(artist string, playlist *services.Playlist) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.Record(artist, playlist); err != nil {
		e.logger.Warn("failed to record playlist", "playlist", playlist.ID, "error", err)
	}
}

// playlistName composes the playlist title from the extracted fields,
// e.g. "Setlist Coldplay São Paulo 2022".
func playlistName(ex services.Extraction) string {
	parts := []string{"Setlist", ex.Artist}
	if ex.City != "" {
		parts = append(parts, ex.City)
	}
	if ex.Year != "" {
		parts = append(parts, ex.Year)
	}
	return strings.Join(parts, " ")
}
