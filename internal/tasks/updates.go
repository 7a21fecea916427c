package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchStats Phase = iota
	FetchSongs
	FetchCategories
	FetchGenres
	FetchPlaylists
	ModerateSongs
)

func (p Phase) String() string {
	switch p {
	case FetchStats:
		return "fetch_stats"
	case FetchSongs:
		return "fetch_songs"
	case FetchCategories:
		return "fetch_categories"
	case FetchGenres:
		return "fetch_genres"
	case FetchPlaylists:
		return "fetch_playlists"
	case ModerateSongs:
		return "moderate_songs"
	default:
		return ""
	}
}

func operationUpdate(endpoint endpointOperation, step int, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   endpoint.phase,
		Step:    step,
		Total:   total,
		Message: endpoint.message,
	}
}

func fetchSongsUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSongs,
		Step:    step,
		Total:   total,
		Message: "Fetching songs...",
	}
}

func moderationStartedUpdate(action Action, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ModerateSongs,
		Step:    0,
		Total:   total,
		Message: fmt.Sprintf("Applying %s to %d songs...", action, total),
	}
}

func moderationUpdate(step, total int, action Action, id string, err error) ProgressUpdate {
	if err != nil {
		return ProgressUpdate{
			Phase:   ModerateSongs,
			Step:    step,
			Total:   total,
			Message: fmt.Sprintf("[%d/%d] ✗ %s %s: %v", step, total, action, id, err),
			Data:    id,
		}
	}
	return ProgressUpdate{
		Phase:   ModerateSongs,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s %s", step, total, action, id),
		Data:    id,
	}
}
