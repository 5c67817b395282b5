// submodule cmd contains command definitions
package main

import (
	"github.com/desertthunder/nowplaying/internal/formatter"
	"github.com/urfave/cli/v3"
)

// serveCommand runs the broadcaster
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Poll the upstream and broadcast changes to real-time subscribers",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on (overrides PORT)",
			},
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Poll interval per subscriber (overrides POLL_INTERVAL)",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Upstream request timeout (overrides UPSTREAM_TIMEOUT)",
			},
			&cli.StringFlag{
				Name:  "endpoint",
				Usage: "Pre-built currently playing URL (overrides ENDPOINT)",
			},
			&cli.StringSliceFlag{
				Name:  "origins",
				Usage: "Allowed subscriber origins (overrides ALLOWED_ORIGINS)",
			},
		},
		Action: r.Serve,
	}
}

// nowCommand fetches the current track once
func nowCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "now",
		Usage: "Print the currently playing track once",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format (json, text, markdown)",
				Value:   formatter.FormatText,
			},
			&cli.StringFlag{
				Name:  "cover",
				Usage: "Save the album cover to this path",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print JSON output",
			},
		},
		Action: r.Now,
	}
}

// healthCommand probes a running broadcaster
func healthCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check that a running broadcaster answers its health probe",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "url",
				Usage: "Health probe URL (default: http://localhost:<port>/health)",
			},
		},
		Action: r.Health,
	}
}

// watchCommand subscribes from the terminal
func watchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Subscribe to a running broadcaster in an interactive terminal UI",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "url",
				Usage: "Broadcaster URL (default: ws://localhost:<port>/)",
			},
			&cli.StringFlag{
				Name:  "origin",
				Usage: "Origin header to present during the handshake",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "File to write logs to while the UI owns the terminal",
				Value: "nowplaying.log",
			},
		},
		Action: r.Watch,
	}
}

// authCommand obtains a refresh token
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authorize with Spotify and print a refresh token",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "callback-port",
				Usage: "Local port for the OAuth callback",
				Value: 8888,
			},
			&cli.BoolFlag{
				Name:  "no-browser",
				Usage: "Print the authorization URL instead of opening a browser",
			},
		},
		Action: r.Auth,
	}
}

// setupCommand handles first-run setup
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup helpers",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write an example config.toml",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Destination path",
						Value:   "config.toml",
					},
				},
				Action: r.SetupConfig,
			},
		},
	}
}
