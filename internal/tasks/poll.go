package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/services"
	"github.com/desertthunder/nowplaying/internal/shared"
)

const (
	DefaultInterval = 3 * time.Second
	DefaultTimeout  = 8 * time.Second
)

// Publisher receives every successful poll result.
type Publisher interface {
	// Publish runs the change policy against the shared snapshot and fans out an event if needed.
	// It must drop the result when ctx is already done and report whether an event was emitted.
	Publish(ctx context.Context, song *models.Song) bool
}

// PollerOpts contains configuration options for creating a [Poller].
type PollerOpts struct {
	Source    services.NowPlayingSource
	Publisher Publisher
	Interval  time.Duration // Tick period, defaults to [DefaultInterval]
	Timeout   time.Duration // Upper bound on one tick's upstream query, defaults to [DefaultTimeout]
	Reports   chan<- TickReport
	Logger    *log.Logger
}

// Poller periodically queries a source and hands results to a publisher.
//
// Each tick runs in its own goroutine; a slow query does not delay the next tick, so overlapping
// ticks resolve by whichever publishes last.
type Poller struct {
	source    services.NowPlayingSource
	publisher Publisher
	interval  time.Duration
	timeout   time.Duration
	reports   chan<- TickReport
	logger    *log.Logger
}

// NewPoller creates a [Poller].
func NewPoller(opts PollerOpts) (*Poller, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("%w: source not initialized", shared.ErrServiceUnavailable)
	}
	if opts.Publisher == nil {
		return nil, fmt.Errorf("%w: publisher", shared.ErrMissingArgument)
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Poller{
		source:    opts.Source,
		publisher: opts.Publisher,
		interval:  opts.Interval,
		timeout:   opts.Timeout,
		reports:   opts.Reports,
		logger:    opts.Logger,
	}, nil
}

// Run ticks every interval until ctx is done, then waits for in-flight ticks to return.
//
// The first tick fires one interval after Run starts.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			wg.Add(1)
			go func() {
				defer wg.Done()
				p.Tick(ctx)
			}()
		}
	}
}

// Tick performs one query and publish cycle. Failures are logged and leave the snapshot untouched.
func (p *Poller) Tick(ctx context.Context) TickReport {
	queryCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	song, err := p.source.NowPlaying(queryCtx)
	report := TickReport{Song: song, Elapsed: time.Since(start)}

	switch {
	case ctx.Err() != nil:
		report.Outcome = Discarded
		report.Song = nil
		p.logger.Debug("poll result discarded", "source", p.source.Name())
	case err != nil:
		report.Outcome = Failed
		report.Err = err
		p.logFailure(err)
	case p.publisher.Publish(ctx, song):
		report.Outcome = Emitted
	default:
		report.Outcome = Unchanged
	}

	p.send(report)
	return report
}

func (p *Poller) logFailure(err error) {
	switch {
	case errors.Is(err, shared.ErrAuthFailed):
		p.logger.Error("authorization failed", "source", p.source.Name(), "error", err)
	case errors.Is(err, context.DeadlineExceeded):
		p.logger.Error("query timed out", "source", p.source.Name(), "timeout", p.timeout)
	default:
		p.logger.Error("query failed", "source", p.source.Name(), "error", err)
	}
}

// send delivers a report without blocking the tick.
func (p *Poller) send(report TickReport) {
	if p.reports == nil {
		return
	}
	select {
	case p.reports <- report:
	default:
	}
}
