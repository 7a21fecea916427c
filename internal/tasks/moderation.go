package tasks

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/desertthunder/apostle/internal/models"
	"github.com/desertthunder/apostle/internal/services"
	"github.com/desertthunder/apostle/internal/shared"
	"golang.org/x/time/rate"
)

// Action is a moderation operation applied to a song.
type Action string

const (
	Hide   Action = "hide"
	Unhide Action = "unhide"
	Delete Action = "delete"
)

// ParseAction validates an action name.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case Hide, Unhide, Delete:
		return a, nil
	default:
		return "", fmt.Errorf("%w: unknown action %q (hide, unhide, delete)", shared.ErrInvalidArgument, s)
	}
}

// ModerateOpts contains configuration for bulk moderation.
type ModerateOpts struct {
	NumWorkers int     // Concurrent workers (default: 4, max: 10)
	RateLimit  float64 // Requests per second (default: 5)
}

// SongFilter selects songs for bulk moderation.
type SongFilter struct {
	Search string // Passed to the API and matched against titles locally
	Hidden *bool  // When set, only songs with this visibility
}

// SongResult is the outcome for a single song.
type SongResult struct {
	SongID  string
	Success bool
	Error   error
}

// ModerationResult summarizes a bulk moderation run.
type ModerationResult struct {
	Action     Action
	Total      int
	Successful int
	Failed     int
	Results    []SongResult
}

type moderationJob struct {
	index int
	id    string
}

// Moderate applies action to every song in ids.
//
// Requests are paced by a shared rate limiter and spread across a worker pool.
// Per-song failures are recorded in the result; the run itself fails only when
// it cannot start or ctx is cancelled.
func (e *ContentEngine) Moderate(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	action Action,
	ids []string,
	opts ModerateOpts,
) (*ModerationResult, error) {
	if e.content == nil {
		return nil, fmt.Errorf("%w: content client not initialized", shared.ErrServiceUnavailable)
	}
	apply, err := e.actionFunc(action)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no song IDs given", shared.ErrMissingArgument)
	}

	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 4
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	result := &ModerationResult{
		Action:  action,
		Total:   len(ids),
		Results: make([]SongResult, len(ids)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	jobs := make(chan moderationJob)
	results := make(chan moderationJob, len(ids))
	outcomes := make([]error, len(ids))
	seen := make([]bool, len(ids))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				if err := limiter.Wait(ctx); err != nil {
					outcomes[job.index] = err
				} else {
					outcomes[job.index] = apply(ctx, job.id)
				}
				results <- job
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, id := range ids {
			select {
			case <-ctx.Done():
				return
			case jobs <- moderationJob{index: i, id: id}:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	e.sendProgress(prog, moderationStartedUpdate(action, len(ids)))

	completed := 0
	for job := range results {
		completed++
		seen[job.index] = true
		err := outcomes[job.index]
		result.Results[job.index] = SongResult{SongID: job.id, Success: err == nil, Error: err}
		if err == nil {
			result.Successful++
		} else {
			result.Failed++
		}
		e.sendProgress(prog, moderationUpdate(completed, len(ids), action, job.id, err))
	}

	for i, id := range ids {
		if !seen[i] {
			result.Results[i] = SongResult{SongID: id, Error: context.Cause(ctx)}
			result.Failed++
		}
	}

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("moderation interrupted: %w", err)
	}
	return result, nil
}

func (e *ContentEngine) actionFunc(action Action) (func(context.Context, string) error, error) {
	switch action {
	case Hide:
		return e.content.HideSong, nil
	case Unhide:
		return e.content.UnhideSong, nil
	case Delete:
		return e.content.DeleteSong, nil
	default:
		return nil, fmt.Errorf("%w: unknown action %q", shared.ErrInvalidArgument, action)
	}
}

// SelectSongs lists songs matching filter.
func (e *ContentEngine) SelectSongs(ctx context.Context, prog chan<- ProgressUpdate, filter SongFilter) ([]models.Song, error) {
	if e.content == nil {
		return nil, fmt.Errorf("%w: content client not initialized", shared.ErrServiceUnavailable)
	}

	e.sendProgress(prog, fetchSongsUpdate(1, 1))
	songs, err := e.content.Songs(ctx, services.ListOptions{Search: filter.Search})
	if err != nil {
		return nil, fmt.Errorf("failed to list songs: %w", err)
	}

	needle := strings.ToLower(filter.Search)
	selected := make([]models.Song, 0, len(songs))
	for _, s := range songs {
		if needle != "" && !strings.Contains(strings.ToLower(s.Title), needle) {
			continue
		}
		if filter.Hidden != nil && s.Hidden != *filter.Hidden {
			continue
		}
		selected = append(selected, s)
	}
	return selected, nil
}

// SongIDs extracts the IDs of songs.
func SongIDs(songs []models.Song) []string {
	ids := make([]string, 0, len(songs))
	for _, s := range songs {
		ids = append(ids, s.ID)
	}
	return ids
}
