package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/nowplaying/internal/server"
	"github.com/urfave/cli/v3"
)

// applyServeFlags overlays explicitly set serve flags onto the loaded configuration.
func (r *Runner) applyServeFlags(cmd *cli.Command) {
	if cmd.IsSet("port") {
		r.config.Server.Port = int(cmd.Int("port"))
	}
	if cmd.IsSet("interval") {
		r.config.Poll.Interval = cmd.Duration("interval")
	}
	if cmd.IsSet("timeout") {
		r.config.Upstream.Timeout = cmd.Duration("timeout")
	}
	if cmd.IsSet("endpoint") {
		r.config.Upstream.Endpoint = cmd.String("endpoint")
	}
	if cmd.IsSet("origins") {
		r.config.Server.AllowedOrigins = cmd.StringSlice("origins")
	}
}

// Serve starts the broadcaster and blocks until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	r.applyServeFlags(cmd)
	if r.source == nil {
		if err := r.config.Validate(); err != nil {
			return err
		}
	}

	hub, err := r.newHub()
	if err != nil {
		return err
	}

	srv, err := server.NewServer(server.ServerOpts{
		Addr:    r.config.Addr(),
		Hub:     hub,
		Origins: r.config.Server.AllowedOrigins,
		Logger:  r.logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	mode := "credentials"
	if r.config.EndpointMode() {
		mode = "endpoint"
	}
	r.logger.Info("starting broadcaster",
		"addr", r.config.Addr(),
		"mode", mode,
		"interval", r.config.Poll.Interval,
		"origins", len(r.config.Server.AllowedOrigins),
	)

	return srv.Run(ctx)
}
