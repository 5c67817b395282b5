package main

import (
	"context"

	"github.com/desertthunder/nowplaying/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the example configuration file, refusing to overwrite an existing one.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("output")
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", path)
	if err := r.writePlain("✓ Config written to %s\n", path); err != nil {
		return err
	}
	return r.writePlain("Next steps:\n1. Set ENDPOINT, or CLIENT_ID, CLIENT_SECRET and REFRESH_TOKEN\n2. Run 'nowplaying serve'\n")
}
