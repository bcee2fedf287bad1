package tasks

import (
	"fmt"

	"setlistbot/internal/services"
)

// ProgressUpdate represents a progress event during a pipeline run.
//
// Used to send real-time updates to the transport layer for narration.
type ProgressUpdate struct {
	Phase   Phase  // Pipeline phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Pipeline phase enumeration
type Phase int

const (
	ExtractFields Phase = iota
	FetchSetlist
	AssemblePlaylist
	PlaylistCreated
)

func (p Phase) String() string {
	switch p {
	case ExtractFields:
		return "extract_fields"
	case FetchSetlist:
		return "fetch_setlist"
	case AssemblePlaylist:
		return "assemble_playlist"
	case PlaylistCreated:
		return "playlist_created"
	default:
		return ""
	}
}

func extractUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExtractFields,
		Message: "Interpreting your request...",
	}
}

func fetchSetlistUpdate(q services.SetlistQuery) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSetlist,
		Message: fmt.Sprintf("Looking up a setlist for %s...", q.Artist),
		Data:    q,
	}
}

func assembleUpdate(artist string, songCount int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AssemblePlaylist,
		Message: fmt.Sprintf("Creating your Spotify playlist (%d songs)...", songCount),
	}
}

func createdUpdate(pl *services.Playlist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PlaylistCreated,
		Message: fmt.Sprintf("Playlist created: %s (%d tracks)", pl.Name, pl.TrackCount),
		Data:    pl,
	}
}
