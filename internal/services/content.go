package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/desertthunder/apostle/internal/models"
)

// Content endpoints.
const (
	StatsPath      = "/api/admin/stats"
	SongsPath      = "/api/content/songs"
	CategoriesPath = "/api/content/categories"
	GenresPath     = "/api/content/genres"
	PlaylistsPath  = "/api/content/playlists"
)

// ListOptions filters a content listing. Zero values are omitted.
type ListOptions struct {
	Search string
	Page   int
	Limit  int
}

func (o ListOptions) query() string {
	q := url.Values{}
	if o.Search != "" {
		q.Set("search", o.Search)
	}
	if o.Page > 0 {
		q.Set("page", strconv.Itoa(o.Page))
	}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// CategoryInput creates or updates a category.
type CategoryInput struct {
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// GenreInput creates or updates a genre.
type GenreInput struct {
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}

// Stats fetches the dashboard counters.
func (c *Client) Stats(ctx context.Context) (*models.Stats, error) {
	var body struct {
		Stats models.Stats `json:"stats"`
	}
	if err := c.call(ctx, http.MethodGet, StatsPath, nil, &body); err != nil {
		return nil, err
	}
	return &body.Stats, nil
}

// Songs lists songs.
func (c *Client) Songs(ctx context.Context, opts ListOptions) ([]models.Song, error) {
	return list[models.Song](ctx, c, SongsPath+opts.query(), "songs")
}

// Song fetches one song.
func (c *Client) Song(ctx context.Context, id string) (*models.Song, error) {
	return item[models.Song](ctx, c, http.MethodGet, SongsPath+"/"+escape(id), nil, "song")
}

// HideSong hides a song from listeners.
func (c *Client) HideSong(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodPatch, SongsPath+"/"+escape(id)+"/hide", nil, nil)
}

// UnhideSong makes a hidden song visible again.
func (c *Client) UnhideSong(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodPatch, SongsPath+"/"+escape(id)+"/unhide", nil, nil)
}

// DeleteSong removes a song.
func (c *Client) DeleteSong(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, SongsPath+"/"+escape(id), nil, nil)
}

// Categories lists categories.
func (c *Client) Categories(ctx context.Context, opts ListOptions) ([]models.Category, error) {
	return list[models.Category](ctx, c, CategoriesPath+opts.query(), "categories")
}

// CreateCategory adds a category. The returned value is nil if the API does not echo it.
func (c *Client) CreateCategory(ctx context.Context, in CategoryInput) (*models.Category, error) {
	return item[models.Category](ctx, c, http.MethodPost, CategoriesPath, in, "category")
}

// UpdateCategory replaces a category's fields.
func (c *Client) UpdateCategory(ctx context.Context, id string, in CategoryInput) (*models.Category, error) {
	return item[models.Category](ctx, c, http.MethodPut, CategoriesPath+"/"+escape(id), in, "category")
}

// DeleteCategory removes a category.
func (c *Client) DeleteCategory(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, CategoriesPath+"/"+escape(id), nil, nil)
}

// Genres lists genres.
func (c *Client) Genres(ctx context.Context, opts ListOptions) ([]models.Genre, error) {
	return list[models.Genre](ctx, c, GenresPath+opts.query(), "genres")
}

// CreateGenre adds a genre.
func (c *Client) CreateGenre(ctx context.Context, in GenreInput) (*models.Genre, error) {
	return item[models.Genre](ctx, c, http.MethodPost, GenresPath, in, "genre")
}

// UpdateGenre replaces a genre's fields.
func (c *Client) UpdateGenre(ctx context.Context, id string, in GenreInput) (*models.Genre, error) {
	return item[models.Genre](ctx, c, http.MethodPut, GenresPath+"/"+escape(id), in, "genre")
}

// DeleteGenre removes a genre.
func (c *Client) DeleteGenre(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, GenresPath+"/"+escape(id), nil, nil)
}

// Playlists lists user playlists.
func (c *Client) Playlists(ctx context.Context, opts ListOptions) ([]models.Playlist, error) {
	return list[models.Playlist](ctx, c, PlaylistsPath+opts.query(), "playlists")
}

// DeletePlaylist removes a playlist.
func (c *Client) DeletePlaylist(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, PlaylistsPath+"/"+escape(id), nil, nil)
}

// list decodes either a bare array or an envelope holding the array under key or "data".
func list[T any](ctx context.Context, c *Client, path, key string) ([]T, error) {
	var raw json.RawMessage
	if err := c.call(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}

	items := []T{}
	switch kind(raw) {
	case '[':
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, &TransportError{Op: "GET " + path, Err: malformed("%v", err)}
		}
	case '{':
		fields, err := object(raw)
		if err != nil {
			return nil, &TransportError{Op: "GET " + path, Err: err}
		}
		for _, name := range []string{key, "data"} {
			if v, ok := fields[name]; ok && kind(v) == '[' {
				if err := json.Unmarshal(v, &items); err != nil {
					return nil, &TransportError{Op: "GET " + path, Err: malformed("%s: %v", name, err)}
				}
				break
			}
		}
	}
	return items, nil
}

// item decodes either a bare object or an envelope holding it under key or "data".
func item[T any](ctx context.Context, c *Client, method, path string, in any, key string) (*T, error) {
	var raw json.RawMessage
	if err := c.call(ctx, method, path, in, &raw); err != nil {
		return nil, err
	}
	if kind(raw) != '{' {
		return nil, nil
	}

	fields, err := object(raw)
	if err != nil {
		return nil, &TransportError{Op: method + " " + path, Err: err}
	}

	target := json.RawMessage(raw)
	for _, name := range []string{key, "data"} {
		if v, ok := fields[name]; ok && kind(v) == '{' {
			target = v
			break
		}
	}
	if _, isEnvelope := fields["success"]; isEnvelope && string(target) == string(raw) {
		return nil, nil
	}

	var out T
	if err := json.Unmarshal(target, &out); err != nil {
		return nil, &TransportError{Op: method + " " + path, Err: malformed("%v", err)}
	}
	return &out, nil
}
