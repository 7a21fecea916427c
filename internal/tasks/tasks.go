// package tasks implements long-running console operations with progress reporting.
//
// The core abstraction is ContentEngine, which runs bulk song moderation and content dumps.
// Operations emit progress updates via channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/apostle/internal/models"
	"github.com/desertthunder/apostle/internal/services"
	"github.com/desertthunder/apostle/internal/shared"
)

// EndpointResult represents the result of fetching data from a single API endpoint.
type EndpointResult struct {
	Endpoint string
	Data     any
	Error    error
}

// DumpResult contains raw data fetched from every content endpoint.
type DumpResult struct {
	Stats      any              // Dashboard stats
	Songs      any              // Songs
	Categories any              // Categories
	Genres     any              // Genres
	Playlists  any              // Playlists
	Errors     []EndpointResult // Failed endpoint fetches
}

// DumpData is the serialized form of a [DumpResult].
type DumpData struct {
	Stats      any      `json:"stats,omitempty"`
	Songs      any      `json:"songs,omitempty"`
	Categories any      `json:"categories,omitempty"`
	Genres     any      `json:"genres,omitempty"`
	Playlists  any      `json:"playlists,omitempty"`
	Errors     []string `json:"errors,omitempty"`
}

// Data converts the result for JSON output.
func (r *DumpResult) Data() DumpData {
	d := DumpData{
		Stats:      r.Stats,
		Songs:      r.Songs,
		Categories: r.Categories,
		Genres:     r.Genres,
		Playlists:  r.Playlists,
	}
	for _, e := range r.Errors {
		d.Errors = append(d.Errors, fmt.Sprintf("%s: %v", e.Endpoint, e.Error))
	}
	return d
}

type endpointOperation struct {
	name    string
	path    string
	target  *any
	phase   Phase
	message string
}

// Engine defines bulk operations against the admin API.
type Engine interface {
	// Moderate applies action to every song in ids using a bounded worker pool.
	Moderate(ctx context.Context, progress chan<- ProgressUpdate, action Action, ids []string, opts ModerateOpts) (*ModerationResult, error)

	// SelectSongs resolves the IDs of songs matching a filter.
	SelectSongs(ctx context.Context, progress chan<- ProgressUpdate, filter SongFilter) ([]models.Song, error)

	// Dump fetches raw data from every content endpoint.
	Dump(ctx context.Context, progress chan<- ProgressUpdate) (*DumpResult, error)
}

// ContentClient is the subset of [services.Client] used for moderation.
type ContentClient interface {
	Songs(ctx context.Context, opts services.ListOptions) ([]models.Song, error)
	HideSong(ctx context.Context, id string) error
	UnhideSong(ctx context.Context, id string) error
	DeleteSong(ctx context.Context, id string) error
}

// APIClient defines the interface for making raw API requests.
type APIClient interface {
	Get(ctx context.Context, path string) (*services.APIResponse, error)
}

// ContentEngine implements [Engine].
type ContentEngine struct {
	content ContentClient
	api     APIClient
}

var _ Engine = (*ContentEngine)(nil)

// NewContentEngine creates a new ContentEngine. Either client may be nil if the
// operations that need it are not used.
func NewContentEngine(content ContentClient, api APIClient) *ContentEngine {
	return &ContentEngine{content: content, api: api}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *ContentEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Dump fetches raw data from every content endpoint. Failed endpoints are
// collected in [DumpResult.Errors] rather than aborting the dump.
func (e *ContentEngine) Dump(ctx context.Context, progress chan<- ProgressUpdate) (*DumpResult, error) {
	if e.api == nil {
		return nil, fmt.Errorf("%w: API client not initialized", shared.ErrServiceUnavailable)
	}

	result := &DumpResult{
		Errors: []EndpointResult{},
	}

	endpoints := []endpointOperation{
		{name: "stats", path: services.StatsPath, target: &result.Stats, phase: FetchStats, message: "Fetching dashboard stats..."},
		{name: "songs", path: services.SongsPath, target: &result.Songs, phase: FetchSongs, message: "Fetching songs..."},
		{name: "categories", path: services.CategoriesPath, target: &result.Categories, phase: FetchCategories, message: "Fetching categories..."},
		{name: "genres", path: services.GenresPath, target: &result.Genres, phase: FetchGenres, message: "Fetching genres..."},
		{name: "playlists", path: services.PlaylistsPath, target: &result.Playlists, phase: FetchPlaylists, message: "Fetching playlists..."},
	}

	totalSteps := len(endpoints)

	for i, endpoint := range endpoints {
		e.sendProgress(progress, operationUpdate(endpoint, i+1, totalSteps))

		resp, err := e.api.Get(ctx, endpoint.path)
		if err != nil || resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if err == nil {
				err = fmt.Errorf("status %d", resp.StatusCode)
			}
			result.Errors = append(result.Errors, EndpointResult{
				Endpoint: endpoint.path,
				Error:    err,
			})
			continue
		}
		*endpoint.target = resp.JSONData
	}

	return result, nil
}
