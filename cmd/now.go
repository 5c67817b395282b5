package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/nowplaying/internal/formatter"
	"github.com/urfave/cli/v3"
)

// Now performs a single upstream fetch and prints the result.
//
// Nothing playing prints null (json) or a short notice; upstream errors fail the command.
func (r *Runner) Now(ctx context.Context, cmd *cli.Command) error {
	if r.source == nil {
		if err := r.config.Validate(); err != nil {
			return err
		}
	}

	source, err := r.newSource()
	if err != nil {
		return err
	}

	song, err := source.NowPlaying(ctx)
	if err != nil {
		return err
	}
	r.logger.Debug("fetched", "source", source.Name(), "playing", song.Playing())

	format := cmd.String("format")
	var out []byte
	if format == formatter.FormatJSON {
		out, err = formatter.ToJSON(song, cmd.Bool("pretty"))
	} else {
		out, err = formatter.Render(song, format)
	}
	if err != nil {
		return err
	}

	if path := cmd.String("cover"); path != "" && song.Playing() {
		if err := formatter.WriteCover(ctx, r.httpClient, song, path); err != nil {
			return fmt.Errorf("failed to save cover: %w", err)
		}
		r.logger.Info("cover saved", "path", path)
	}

	return r.writeBytes(out)
}
