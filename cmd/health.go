package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/desertthunder/nowplaying/internal/shared"
	"github.com/urfave/cli/v3"
)

const healthTimeout = 5 * time.Second

// Health probes a running broadcaster's /health route.
func (r *Runner) Health(ctx context.Context, cmd *cli.Command) error {
	target := cmd.String("url")
	if target == "" {
		target = "http://localhost:" + strconv.Itoa(r.config.Server.Port) + "/health"
	}

	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", shared.ErrServiceUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", shared.ErrServiceUnavailable, err)
	}

	return r.writePlain("✓ %s is healthy: %s\n", target, body)
}
