package main

import (
	"context"
	"fmt"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/nowplaying/internal/server"
	"github.com/desertthunder/nowplaying/internal/shared"
	"github.com/desertthunder/nowplaying/internal/ui"
	"github.com/urfave/cli/v3"
)

// Watch launches the interactive subscriber UI.
func (r *Runner) Watch(ctx context.Context, cmd *cli.Command) error {
	target := cmd.String("url")
	if target == "" {
		target = "ws://localhost:" + strconv.Itoa(r.config.Server.Port) + "/"
	}
	origin := cmd.String("origin")

	if path := cmd.String("log-file"); path != "" {
		logger, err := shared.NewFileLogger(path)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		shared.SetLogLevel(logger, r.logger.GetLevel())
		r.SetLogger(logger)
	}

	connect := func(ctx context.Context) (ui.Stream, error) {
		r.logger.Info("connecting", "url", target)
		client, err := server.Dial(ctx, target, origin)
		if err != nil {
			r.logger.Error("connect failed", "url", target, "error", err)
			return nil, err
		}
		return client, nil
	}

	model := ui.NewModel(ctx, target, connect)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("watch UI failed: %w", err)
	}
	return nil
}
