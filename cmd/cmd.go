// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

func jsonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
		},
	}
}

func exportFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format (text, markdown, csv, json)",
			Value:   "text",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write the export to this file instead of stdout",
		},
	}
}

func listFlags() []cli.Flag {
	return append([]cli.Flag{
		&cli.StringFlag{
			Name:    "search",
			Aliases: []string{"s"},
			Usage:   "Filter by search term",
		},
		&cli.IntFlag{
			Name:  "page",
			Usage: "Page number",
		},
		&cli.IntFlag{
			Name:  "limit",
			Usage: "Maximum number of items to return",
		},
	}, exportFlags()...)
}

func moderationFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "workers",
			Usage: "Concurrent requests (max 10)",
			Value: 4,
		},
		&cli.FloatFlag{
			Name:  "rate",
			Usage: "Requests per second",
			Value: 5,
		},
	}
}

// setupCommand initializes local state
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration and local storage",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write a config.toml from the bundled template",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Create the credential database and run migrations",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the most recent migration instead",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

// authCommand handles the admin session
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Sign in, sign out and inspect the admin session",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Sign in with email and password",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "email",
						Aliases: []string{"e"},
						Usage:   "Admin email (prompted when omitted)",
					},
					&cli.StringFlag{
						Name:    "password",
						Aliases: []string{"p"},
						Usage:   "Admin password (prompted when omitted)",
						Sources: cli.EnvVars("APOSTLE_PASSWORD"),
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:  "register",
				Usage: "Create an admin account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "Admin email", Required: true},
					&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "Admin password", Sources: cli.EnvVars("APOSTLE_PASSWORD")},
					&cli.StringFlag{Name: "name", Usage: "Display name"},
					&cli.StringFlag{Name: "phone", Usage: "Phone number"},
				},
				Action: r.AuthRegister,
			},
			{
				Name:   "logout",
				Usage:  "Sign out and clear stored credentials",
				Action: r.AuthLogout,
			},
			{
				Name:   "status",
				Usage:  "Show the local session state",
				Flags:  jsonFlags(),
				Action: r.AuthStatus,
			},
			{
				Name:   "whoami",
				Usage:  "Fetch the signed-in admin from the server",
				Flags:  jsonFlags(),
				Action: r.AuthWhoami,
			},
			{
				Name:  "verify-otp",
				Usage: "Confirm a one-time code",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "Admin email", Required: true},
					&cli.StringFlag{Name: "otp", Usage: "One-time code", Required: true},
				},
				Action: r.AuthVerifyOTP,
			},
			{
				Name:  "forgot-password",
				Usage: "Request a password reset code",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "Admin email", Required: true},
				},
				Action: r.AuthForgotPassword,
			},
			{
				Name:  "reset-password",
				Usage: "Set a new password with a reset code",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "Admin email", Required: true},
					&cli.StringFlag{Name: "otp", Usage: "Reset code", Required: true},
					&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "New password", Sources: cli.EnvVars("APOSTLE_PASSWORD")},
				},
				Action: r.AuthResetPassword,
			},
			{
				Name:  "history",
				Usage: "Show recent session events",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Number of events", Value: 20},
				},
				Action: r.AuthHistory,
			},
		},
	}
}

func statsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "stats",
		Usage:  "Show dashboard counters",
		Flags:  exportFlags(),
		Action: r.Stats,
	}
}

// songsCommand handles song listing and moderation
func songsCommand(r *Runner) *cli.Command {
	moderate := func(name, usage string) *cli.Command {
		return &cli.Command{
			Name:      name,
			Usage:     usage,
			ArgsUsage: "<id>...",
			Flags:     moderationFlags(),
			Action:    r.SongsModerate(name),
		}
	}

	return &cli.Command{
		Name:  "songs",
		Usage: "List and moderate songs",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List songs",
				Flags:  listFlags(),
				Action: r.SongsList,
			},
			{
				Name:      "get",
				Usage:     "Show one song",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags:     jsonFlags(),
				Action:    r.SongsGet,
			},
			moderate("hide", "Hide songs from listeners"),
			moderate("unhide", "Make hidden songs visible again"),
			moderate("delete", "Delete songs"),
			{
				Name:  "bulk",
				Usage: "Apply an action to every song matching a filter",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "action", Aliases: []string{"a"}, Usage: "hide, unhide or delete", Required: true},
					&cli.StringFlag{Name: "search", Aliases: []string{"s"}, Usage: "Only songs matching this term"},
					&cli.BoolFlag{Name: "hidden", Usage: "Only hidden songs"},
					&cli.BoolFlag{Name: "visible", Usage: "Only visible songs"},
					&cli.BoolFlag{Name: "dry-run", Usage: "List the selection without changing anything"},
				}, moderationFlags()...),
				Action: r.SongsBulk,
			},
		},
	}
}

// categoriesCommand handles category CRUD and artwork
func categoriesCommand(r *Runner) *cli.Command {
	editFlags := func() []cli.Flag {
		return []cli.Flag{
			&cli.StringFlag{Name: "name", Usage: "Category name"},
			&cli.StringFlag{Name: "image", Usage: "Artwork URL"},
			&cli.StringFlag{Name: "upload", Usage: "Local artwork file to upload"},
		}
	}

	return &cli.Command{
		Name:    "categories",
		Aliases: []string{"cat"},
		Usage:   "Manage song categories",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List categories",
				Flags:  listFlags(),
				Action: r.CategoriesList,
			},
			{
				Name:   "create",
				Usage:  "Create a category",
				Flags:  editFlags(),
				Action: r.CategoriesCreate,
			},
			{
				Name:      "update",
				Usage:     "Update a category",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags:     editFlags(),
				Action:    r.CategoriesUpdate,
			},
			{
				Name:      "delete",
				Usage:     "Delete a category",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.CategoriesDelete,
			},
			{
				Name:      "artwork",
				Usage:     "Download a category's artwork",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Destination file", Required: true},
				},
				Action: r.CategoriesArtwork,
			},
		},
	}
}

func genresCommand(r *Runner) *cli.Command {
	editFlags := func() []cli.Flag {
		return []cli.Flag{
			&cli.StringFlag{Name: "name", Usage: "Genre name"},
			&cli.StringFlag{Name: "slug", Usage: "URL slug"},
		}
	}

	return &cli.Command{
		Name:  "genres",
		Usage: "Manage genres",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List genres",
				Flags:  listFlags(),
				Action: r.GenresList,
			},
			{
				Name:   "create",
				Usage:  "Create a genre",
				Flags:  editFlags(),
				Action: r.GenresCreate,
			},
			{
				Name:      "update",
				Usage:     "Update a genre",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags:     editFlags(),
				Action:    r.GenresUpdate,
			},
			{
				Name:      "delete",
				Usage:     "Delete a genre",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.GenresDelete,
			},
		},
	}
}

func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "playlists",
		Usage: "Inspect and remove listener playlists",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List playlists",
				Flags:  listFlags(),
				Action: r.PlaylistsList,
			},
			{
				Name:      "delete",
				Usage:     "Delete a playlist",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.PlaylistsDelete,
			},
		},
	}
}

// apiCommand handles raw admin API access
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct admin API requests",
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "GET request to an API path",
				Arguments: []cli.Argument{&cli.StringArg{Name: "path"}},
				Flags:     jsonFlags(),
				Action:    r.APIGet,
			},
			{
				Name:      "post",
				Usage:     "POST request to an API path",
				Arguments: []cli.Argument{&cli.StringArg{Name: "path"}},
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "data", Aliases: []string{"d"}, Usage: "JSON request body"},
					&cli.StringFlag{Name: "file", Usage: "Read the request body from a file"},
				}, jsonFlags()...),
				Action: r.APIPost,
			},
			{
				Name:  "dump",
				Usage: "Fetch every content endpoint into one JSON document",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Write the dump to this file"},
					&cli.BoolFlag{Name: "pretty", Usage: "Pretty-print JSON output", Value: true},
				},
				Action: r.APIDump,
			},
		},
	}
}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the console gateway to local browsers",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Usage: "Listen host (default from config)"},
			&cli.IntFlag{Name: "port", Usage: "Listen port (default from config)"},
			&cli.BoolFlag{Name: "open", Usage: "Open the session page in a browser"},
		},
		Action: r.Serve,
	}
}

func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "tui",
		Usage:  "Launch the interactive console",
		Action: r.TUI,
	}
}
