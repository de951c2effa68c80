// submodule cmd contains command definitions
package main

import (
	"github.com/desertthunder/vidx/internal/formatter"
	"github.com/urfave/cli/v3"
)

func userFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "user",
		Aliases: []string{"u"},
		Usage:   "Acting user, by email or id",
		Sources: cli.EnvVars("VIDX_USER"),
	}
}

func criteriaFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "criteria",
			Usage: `Filter criteria as JSON, e.g. '{"genres":["rock"],"year_range":{"min":1990}}'`,
		},
		&cli.StringFlag{
			Name:  "criteria-file",
			Usage: "Path to a JSON file containing filter criteria",
		},
	}
}

// setupCommand handles setup operations for configuration and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and maintenance commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Create the config file if missing, initialize the database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "migrations",
				Usage:  "Show applied and pending migrations",
				Action: r.SetupMigrations,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recently applied migration",
				Action: r.SetupRollback,
			},
		},
	}
}

// serveCommand starts the HTTP API.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address, overrides server.host and server.port",
			},
		},
		Action: r.Serve,
	}
}

// userCommand manages playlist owners.
func userCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "user",
		Usage: "Manage users",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Create a user",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "email"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "Display name, defaults to the email"},
					&cli.BoolFlag{Name: "admin", Usage: "Grant admin rights"},
				},
				Action: r.UserAdd,
			},
			{
				Name:  "list",
				Usage: "List users",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
				},
				Action: r.UserList,
			},
		},
	}
}

// catalogCommand manages artists and videos.
func catalogCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "catalog",
		Usage: "Manage the music video catalog",
		Commands: []*cli.Command{
			{
				Name:  "import",
				Usage: "Import videos from a JSON file",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Action: r.CatalogImport,
			},
			{
				Name:  "list",
				Usage: "List catalog videos, newest first",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
				},
				Action: r.CatalogList,
			},
			{
				Name:  "status",
				Usage: "Set a video's lifecycle status",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
					&cli.StringArg{Name: "status"},
				},
				Action: r.CatalogStatus,
			},
		},
	}
}

// playlistCommand handles playlist operations.
func playlistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlist",
		Aliases: []string{"pl"},
		Usage:   "Create, inspect and refresh playlists",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a playlist, DYNAMIC unless --static is given",
				Flags: append([]cli.Flag{
					userFlag(),
					&cli.StringFlag{Name: "name", Usage: "Playlist name", Required: true},
					&cli.StringFlag{Name: "description", Usage: "Playlist description"},
					&cli.BoolFlag{Name: "static", Usage: "Create a hand-curated STATIC playlist"},
					&cli.BoolFlag{Name: "public", Usage: "Make the playlist public"},
					&cli.BoolFlag{Name: "featured", Usage: "Feature the playlist (admins only)"},
					&cli.BoolFlag{Name: "auto-update", Usage: "Include in refresh-all", Value: true},
				}, criteriaFlags()...),
				Action: r.PlaylistCreate,
			},
			{
				Name:  "list",
				Usage: "List the acting user's playlists",
				Flags: []cli.Flag{
					userFlag(),
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
				},
				Action: r.PlaylistList,
			},
			{
				Name:  "show",
				Usage: "Show a playlist and its entries",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					userFlag(),
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: text, markdown, csv or json",
						Value:   string(formatter.FormatText),
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write to a file instead of stdout",
					},
				},
				Action: r.PlaylistShow,
			},
			{
				Name:  "refresh",
				Usage: "Reconcile a DYNAMIC playlist against the catalog",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					userFlag(),
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
				},
				Action: r.PlaylistRefresh,
			},
			{
				Name:  "criteria",
				Usage: "Replace a DYNAMIC playlist's criteria and reconcile",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: append([]cli.Flag{
					userFlag(),
					&cli.BoolFlag{Name: "auto-update", Usage: "Set whether refresh-all includes the playlist"},
				}, criteriaFlags()...),
				Action: r.PlaylistCriteria,
			},
			{
				Name:  "preview",
				Usage: "Show what criteria would match without saving anything",
				Flags: append([]cli.Flag{
					&cli.IntFlag{Name: "limit", Usage: "Number of sample videos to show"},
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
				}, criteriaFlags()...),
				Action: r.PlaylistPreview,
			},
		},
	}
}

// templatesCommand lists and applies playlist templates.
func templatesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "templates",
		Aliases: []string{"tpl"},
		Usage:   "Predefined dynamic playlist templates",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List available templates",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
				},
				Action: r.TemplatesList,
			},
			{
				Name:  "apply",
				Usage: "Create a DYNAMIC playlist from a template",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					userFlag(),
					&cli.StringFlag{Name: "name", Usage: "Override the template name"},
					&cli.StringFlag{Name: "description", Usage: "Override the template description"},
					&cli.BoolFlag{Name: "public", Usage: "Make the playlist public"},
					&cli.BoolFlag{Name: "auto-update", Usage: "Include in refresh-all", Value: true},
				},
				Action: r.TemplatesApply,
			},
		},
	}
}

// refreshAllCommand runs the stale-playlist sweep, typically from cron.
func refreshAllCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "refresh-all",
		Usage: "Reconcile every auto-update playlist not refreshed within --max-age (admins only)",
		Flags: []cli.Flag{
			userFlag(),
			&cli.DurationFlag{
				Name:  "max-age",
				Usage: "Staleness threshold, defaults to refresh.max_age_hours",
			},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "Only print the summary"},
		},
		Action: r.RefreshAll,
	}
}
