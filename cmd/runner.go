package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nowplaying/internal/server"
	"github.com/desertthunder/nowplaying/internal/services"
	"github.com/desertthunder/nowplaying/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	loaded     bool
	source     services.NowPlayingSource
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	lookup     func(string) (string, bool)
}

// RunnerOpts contains configuration options for creating a Runner.
//
// A non-nil Config is used as-is and skips file and environment loading.
type RunnerOpts struct {
	Config     *shared.Config
	Source     services.NowPlayingSource
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Lookup     func(string) (string, bool)
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	loaded := opts.Config != nil
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Lookup == nil {
		opts.Lookup = os.LookupEnv
	}

	return &Runner{
		config:     opts.Config,
		loaded:     loaded,
		source:     opts.Source,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		lookup:     opts.Lookup,
	}
}

// app builds the root command.
func (r *Runner) app() *cli.Command {
	return &cli.Command{
		Name:    "nowplaying",
		Usage:   "Broadcast what's currently playing to real-time subscribers",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Path to a dotenv file loaded before reading the environment",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
			},
		},
		Before:   r.Load,
		Commands: r.register(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		serveCommand, nowCommand, healthCommand, watchCommand, authCommand, setupCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Load resolves configuration layers (defaults, TOML file, dotenv, environment, global flags).
func (r *Runner) Load(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if !r.loaded {
		if envFile := cmd.String("env-file"); envFile != "" {
			if err := shared.LoadEnv(envFile); err != nil {
				r.logger.Debug("dotenv not loaded", "error", err)
			}
		}

		config, err := shared.ResolveConfig(cmd.String("config"), r.lookup)
		if err != nil {
			return ctx, err
		}
		r.config = config
		r.loaded = true
	}

	if cmd.IsSet("log-level") {
		r.config.Log.Level = cmd.String("log-level")
	}
	level, err := shared.ParseLogLevel(r.config.Log.Level)
	if err != nil {
		return ctx, err
	}
	shared.SetLogLevel(r.logger, level)

	return ctx, nil
}

// SetLogger replaces the runner's logger, e.g. to keep output away from a full-screen UI.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// newSource picks the configured upstream: a pre-built endpoint, or Spotify with managed tokens.
func (r *Runner) newSource() (services.NowPlayingSource, error) {
	if r.source != nil {
		return r.source, nil
	}

	upstream := r.config.Upstream
	if r.config.EndpointMode() {
		return services.NewEndpointSource(upstream.Endpoint, upstream.Timeout, nil, r.logger)
	}

	tokens, err := services.NewTokenProvider(services.TokenProviderOpts{
		ClientID:     upstream.ClientID,
		ClientSecret: upstream.ClientSecret,
		RefreshToken: upstream.RefreshToken,
		TokenURL:     upstream.TokenURL,
		Logger:       r.logger,
	})
	if err != nil {
		return nil, err
	}

	return services.NewSpotifyClient(services.SpotifyClientOpts{
		Tokens:   tokens,
		URL:      upstream.NowPlayingURL,
		Platform: upstream.Platform,
		Timeout:  upstream.Timeout,
		Logger:   r.logger,
	})
}

// newHub builds the broadcast hub around the configured source.
func (r *Runner) newHub() (*server.Hub, error) {
	source, err := r.newSource()
	if err != nil {
		return nil, err
	}

	return server.NewHub(server.HubOpts{
		Source:   source,
		Interval: r.config.Poll.Interval,
		Timeout:  r.config.Upstream.Timeout,
		Logger:   r.logger,
	})
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writeBytes(data []byte) error {
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
