package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/desertthunder/apostle/internal/formatter"
	"github.com/desertthunder/apostle/internal/services"
	"github.com/desertthunder/apostle/internal/shared"
	"github.com/desertthunder/apostle/internal/tasks"
	"github.com/urfave/cli/v3"
)

func listOptions(cmd *cli.Command) services.ListOptions {
	return services.ListOptions{
		Search: cmd.String("search"),
		Page:   cmd.Int("page"),
		Limit:  cmd.Int("limit"),
	}
}

func requireID(cmd *cli.Command) (string, error) {
	id := cmd.StringArg("id")
	if id == "" {
		return "", fmt.Errorf("%w: id", shared.ErrMissingArgument)
	}
	return id, nil
}

// export renders v in the --format format to stdout or the --output file.
func (r *Runner) export(cmd *cli.Command, v any, table *formatter.Table) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	data, err := formatter.Export(v, table, format)
	if err != nil {
		return err
	}

	if output := cmd.String("output"); output != "" {
		path, err := formatter.WriteExport(output, format, data)
		if err != nil {
			return err
		}
		r.logger.Info("export written", "path", path, "format", format)
		return r.writePlain("✓ Saved %s\n", path)
	}

	_, err = r.output.Write(data)
	return err
}

// Stats prints the dashboard counters.
func (r *Runner) Stats(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireCredential(); err != nil {
		return err
	}

	stats, err := r.client.Stats(ctx)
	if err != nil {
		return err
	}
	return r.export(cmd, stats, formatter.StatsTable(stats))
}

// SongsList lists songs.
func (r *Runner) SongsList(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireCredential(); err != nil {
		return err
	}

	songs, err := r.client.Songs(ctx, listOptions(cmd))
	if err != nil {
		return err
	}
	return r.export(cmd, songs, formatter.SongsTable(songs))
}

// SongsGet shows a single song.
func (r *Runner) SongsGet(ctx context.Context, cmd *cli.Command) error {
	id, err := requireID(cmd)
	if err != nil {
		return err
	}
	if err := r.requireCredential(); err != nil {
		return err
	}

	song, err := r.client.Song(ctx, id)
	if err != nil {
		return err
	}
	if song == nil {
		return fmt.Errorf("%w: song %s", shared.ErrNotFound, id)
	}

	if cmd.Bool("json") {
		return r.writeJSON(song, cmd.Bool("pretty"))
	}

	r.writePlainHeader(song.Title)
	r.writePlain("ID:         %s\n", song.ID)
	r.writePlain("Artist:     %s\n", song.Artist)
	r.writePlain("Visibility: %s\n", shared.VisibilityString(song.Hidden))
	return r.writePlain("Plays:      %d\n", song.PlaysCount)
}

// SongsModerate returns the action for the hide, unhide and delete commands.
func (r *Runner) SongsModerate(name string) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		action, err := tasks.ParseAction(name)
		if err != nil {
			return err
		}
		ids := cmd.Args().Slice()
		if len(ids) == 0 {
			return fmt.Errorf("%w: at least one song ID", shared.ErrMissingArgument)
		}
		if err := r.requireCredential(); err != nil {
			return err
		}
		return r.moderate(ctx, cmd, action, ids)
	}
}

// SongsBulk applies an action to every song matching the filter flags.
func (r *Runner) SongsBulk(ctx context.Context, cmd *cli.Command) error {
	action, err := tasks.ParseAction(cmd.String("action"))
	if err != nil {
		return err
	}

	filter := tasks.SongFilter{Search: cmd.String("search")}
	switch hidden, visible := cmd.Bool("hidden"), cmd.Bool("visible"); {
	case hidden && visible:
		return fmt.Errorf("%w: cannot specify both --hidden and --visible", shared.ErrInvalidArgument)
	case hidden, visible:
		filter.Hidden = &hidden
	}

	if err := r.requireCredential(); err != nil {
		return err
	}

	songs, err := r.engine.SelectSongs(ctx, nil, filter)
	if err != nil {
		return err
	}
	if len(songs) == 0 {
		return r.writePlain("No songs match\n")
	}

	if cmd.Bool("dry-run") {
		r.output.Write(formatter.SongsTable(songs).ToText())
		return r.writePlainln("Dry run: %d songs would be %s", len(songs), pastTense(action))
	}
	return r.moderate(ctx, cmd, action, tasks.SongIDs(songs))
}

func (r *Runner) moderate(ctx context.Context, cmd *cli.Command, action tasks.Action, ids []string) error {
	progress := make(chan tasks.ProgressUpdate, 10)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			if update.Step == 0 {
				r.logger.Info(update.Message)
				continue
			}
			r.logger.Debug(update.Message)
		}
	}()

	result, err := r.engine.Moderate(ctx, progress, action, ids, tasks.ModerateOpts{
		NumWorkers: cmd.Int("workers"),
		RateLimit:  cmd.Float("rate"),
	})
	close(progress)
	<-done
	if err != nil {
		return err
	}

	for _, res := range result.Results {
		if res.Success {
			r.writePlain("✓ %s\n", res.SongID)
		} else {
			r.writePlain("✗ %s: %v\n", res.SongID, res.Error)
		}
	}
	r.writePlainln("%d %s, %d failed", result.Successful, pastTense(action), result.Failed)

	if result.Failed > 0 {
		return fmt.Errorf("%w: %d of %d songs failed", shared.ErrAPIRequest, result.Failed, result.Total)
	}
	return nil
}

func pastTense(a tasks.Action) string {
	switch a {
	case tasks.Hide:
		return "hidden"
	case tasks.Unhide:
		return "unhidden"
	case tasks.Delete:
		return "deleted"
	default:
		return string(a)
	}
}

// CategoriesList lists categories.
func (r *Runner) CategoriesList(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireCredential(); err != nil {
		return err
	}

	categories, err := r.client.Categories(ctx, listOptions(cmd))
	if err != nil {
		return err
	}
	return r.export(cmd, categories, formatter.CategoriesTable(categories))
}

// categoryInput builds the payload from flags, uploading --upload artwork first.
func (r *Runner) categoryInput(ctx context.Context, cmd *cli.Command) (services.CategoryInput, error) {
	in := services.CategoryInput{Name: cmd.String("name"), ImageURL: cmd.String("image")}

	upload := cmd.String("upload")
	if upload == "" {
		return in, nil
	}
	if in.ImageURL != "" {
		return in, fmt.Errorf("%w: cannot specify both --image and --upload", shared.ErrInvalidArgument)
	}
	if r.uploader == nil {
		return in, fmt.Errorf("%w: upload.cloud_name and upload.preset must be set", shared.ErrMissingConfig)
	}

	r.logger.Info("uploading artwork", "file", upload)
	url, err := r.uploader.UploadFile(ctx, upload)
	if err != nil {
		return in, err
	}
	in.ImageURL = url
	return in, nil
}

// CategoriesCreate creates a category.
func (r *Runner) CategoriesCreate(ctx context.Context, cmd *cli.Command) error {
	if cmd.String("name") == "" {
		return fmt.Errorf("%w: --name", shared.ErrMissingArgument)
	}
	if err := r.requireCredential(); err != nil {
		return err
	}

	in, err := r.categoryInput(ctx, cmd)
	if err != nil {
		return err
	}
	category, err := r.client.CreateCategory(ctx, in)
	if err != nil {
		return err
	}
	if category == nil {
		return r.writePlain("✓ Created category\n")
	}
	return r.writePlain("✓ Created category %s (%s)\n", category.Name, category.ID)
}

// CategoriesUpdate updates a category.
func (r *Runner) CategoriesUpdate(ctx context.Context, cmd *cli.Command) error {
	id, err := requireID(cmd)
	if err != nil {
		return err
	}
	if err := r.requireCredential(); err != nil {
		return err
	}

	in, err := r.categoryInput(ctx, cmd)
	if err != nil {
		return err
	}
	category, err := r.client.UpdateCategory(ctx, id, in)
	if err != nil {
		return err
	}
	if category == nil {
		return r.writePlain("✓ Updated category\n")
	}
	return r.writePlain("✓ Updated category %s (%s)\n", category.Name, category.ID)
}

// CategoriesDelete deletes a category.
func (r *Runner) CategoriesDelete(ctx context.Context, cmd *cli.Command) error {
	id, err := requireID(cmd)
	if err != nil {
		return err
	}
	if err := r.requireCredential(); err != nil {
		return err
	}

	if err := r.client.DeleteCategory(ctx, id); err != nil {
		return err
	}
	return r.writePlain("✓ Deleted category %s\n", id)
}

// CategoriesArtwork downloads a category's artwork to a local file.
//
// The image host is a third party, so the download uses a plain client without credentials.
func (r *Runner) CategoriesArtwork(ctx context.Context, cmd *cli.Command) error {
	id, err := requireID(cmd)
	if err != nil {
		return err
	}
	if err := r.requireCredential(); err != nil {
		return err
	}

	categories, err := r.client.Categories(ctx, services.ListOptions{})
	if err != nil {
		return err
	}

	var imageURL string
	for _, c := range categories {
		if c.ID == id {
			imageURL = c.ImageURL
			break
		}
	}
	if imageURL == "" {
		return fmt.Errorf("%w: category %s has no artwork", shared.ErrNotFound, id)
	}

	data, err := formatter.DownloadImage(ctx, nil, imageURL)
	if err != nil {
		return err
	}

	output := cmd.String("output")
	if dir := filepath.Dir(output); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(output, data, 0644); err != nil {
		return fmt.Errorf("failed to write artwork: %w", err)
	}
	return r.writePlain("✓ Saved %d bytes to %s\n", len(data), output)
}

// GenresList lists genres.
func (r *Runner) GenresList(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireCredential(); err != nil {
		return err
	}

	genres, err := r.client.Genres(ctx, listOptions(cmd))
	if err != nil {
		return err
	}
	return r.export(cmd, genres, formatter.GenresTable(genres))
}

// GenresCreate creates a genre.
func (r *Runner) GenresCreate(ctx context.Context, cmd *cli.Command) error {
	if cmd.String("name") == "" {
		return fmt.Errorf("%w: --name", shared.ErrMissingArgument)
	}
	if err := r.requireCredential(); err != nil {
		return err
	}

	genre, err := r.client.CreateGenre(ctx, services.GenreInput{Name: cmd.String("name"), Slug: cmd.String("slug")})
	if err != nil {
		return err
	}
	if genre == nil {
		return r.writePlain("✓ Created genre\n")
	}
	return r.writePlain("✓ Created genre %s (%s)\n", genre.Name, genre.ID)
}

// GenresUpdate updates a genre.
func (r *Runner) GenresUpdate(ctx context.Context, cmd *cli.Command) error {
	id, err := requireID(cmd)
	if err != nil {
		return err
	}
	if err := r.requireCredential(); err != nil {
		return err
	}

	genre, err := r.client.UpdateGenre(ctx, id, services.GenreInput{Name: cmd.String("name"), Slug: cmd.String("slug")})
	if err != nil {
		return err
	}
	if genre == nil {
		return r.writePlain("✓ Updated genre\n")
	}
	return r.writePlain("✓ Updated genre %s (%s)\n", genre.Name, genre.ID)
}

// GenresDelete deletes a genre.
func (r *Runner) GenresDelete(ctx context.Context, cmd *cli.Command) error {
	id, err := requireID(cmd)
	if err != nil {
		return err
	}
	if err := r.requireCredential(); err != nil {
		return err
	}

	if err := r.client.DeleteGenre(ctx, id); err != nil {
		return err
	}
	return r.writePlain("✓ Deleted genre %s\n", id)
}

// PlaylistsList lists listener playlists.
func (r *Runner) PlaylistsList(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireCredential(); err != nil {
		return err
	}

	playlists, err := r.client.Playlists(ctx, listOptions(cmd))
	if err != nil {
		return err
	}
	return r.export(cmd, playlists, formatter.PlaylistsTable(playlists))
}

// PlaylistsDelete deletes a playlist.
func (r *Runner) PlaylistsDelete(ctx context.Context, cmd *cli.Command) error {
	id, err := requireID(cmd)
	if err != nil {
		return err
	}
	if err := r.requireCredential(); err != nil {
		return err
	}

	if err := r.client.DeletePlaylist(ctx, id); err != nil {
		return err
	}
	return r.writePlain("✓ Deleted playlist %s\n", id)
}
