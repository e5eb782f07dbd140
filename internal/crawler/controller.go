package crawler

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrNoPagesAccepted reports a run that dispatched URLs but accepted none.
// The CrawlResult returned alongside it is still valid.
var ErrNoPagesAccepted = errors.New("crawl accepted no pages")

// ControllerConfig holds the per-run knobs owned by the Controller.
type ControllerConfig struct {
	StartURL string
	MaxDepth int
}

// Controller drives the depth-by-depth crawl loop. All mutable crawl state
// (frontier, fingerprint set, page store) is owned by one Controller
// instance per run, so independent runs never share state.
type Controller struct {
	frontier   *Frontier
	dispatcher *Dispatcher
	store      PageStore
	cfg        ControllerConfig
	logger     *zap.Logger
}

// NewController wires a Controller for a single crawl run.
func NewController(
	frontier *Frontier,
	dispatcher *Dispatcher,
	store PageStore,
	cfg ControllerConfig,
	logger *zap.Logger,
) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		frontier:   frontier,
		dispatcher: dispatcher,
		store:      store,
		cfg:        cfg,
		logger:     logger,
	}
}

// Crawl runs the level-synchronous BFS: depth N's dispatch batch fully
// drains before depth N+1 starts, because the next level is only known once
// every fetch at the current level has completed. On cancellation the loop
// stops admitting levels and returns whatever the store already holds.
func (c *Controller) Crawl(ctx context.Context) (*CrawlResult, error) {
	start := Normalize(c.cfg.StartURL)
	if !c.frontier.Enqueue(c.cfg.StartURL, 0) {
		return nil, fmt.Errorf("seed url %q rejected by frontier", c.cfg.StartURL)
	}

	var stats Stats
	for depth := 0; depth <= c.cfg.MaxDepth; depth++ {
		entries := c.frontier.DrainLevel(depth)
		if len(entries) == 0 {
			break
		}
		c.logger.Info("dispatching level",
			zap.Int("depth", depth),
			zap.Int("urls", len(entries)),
		)

		levelStats := c.dispatcher.RunLevel(ctx, c.frontier, entries)
		stats.Merge(levelStats)

		if ctx.Err() != nil {
			c.logger.Warn("crawl interrupted; returning completed pages",
				zap.Int("depth", depth),
				zap.Int("accepted_so_far", stats.Accepted),
			)
			break
		}
	}

	// Read back with cancellation masked: partial results on interrupt are
	// valid output and must survive the canceled context.
	pages, err := c.store.GetAll(context.WithoutCancel(ctx))
	if err != nil {
		return nil, fmt.Errorf("read back accepted pages: %w", err)
	}

	result := &CrawlResult{
		StartURL: start,
		Pages:    pages,
		Stats:    stats,
		Failed:   c.dispatcher.FailedURLs(),
	}

	c.logger.Info("crawl finished",
		zap.Int("attempted", stats.Attempted),
		zap.Int("accepted", stats.Accepted),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("failed", stats.Failed),
		zap.Int("retries", stats.Retries),
	)

	if stats.Accepted == 0 && stats.Attempted > 0 {
		return result, ErrNoPagesAccepted
	}
	return result, nil
}
