package crawler

import (
	"context"
	"crypto/rand"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sitedown/sitedown/internal/policy/ratelimit"
)

// overloadPollInterval is how often the dispatcher re-checks the resource
// monitor while paused.
const overloadPollInterval = 250 * time.Millisecond

// DispatcherConfig controls Dispatcher behavior.
type DispatcherConfig struct {
	Concurrency    int
	MaxRetries     int
	RequestTimeout time.Duration
	DelayMin       time.Duration
	DelayMax       time.Duration
	DomainRPS      float64
}

// Dispatcher executes one frontier level at a time under a fixed
// concurrency bound. Every per-URL failure is contained here: fetch errors,
// conversion errors, and store errors all terminate as a Failed outcome for
// that URL and never abort sibling fetches or the run.
type Dispatcher struct {
	fetcher   Fetcher
	converter Converter
	store     PageStore
	hasher    Hasher
	clock     Clock
	retry     RetryPolicy
	monitor   ResourceMonitor
	scope     *Scope
	limiter   *ratelimit.Limiter
	cfg       DispatcherConfig
	logger    *zap.Logger

	mu           sync.Mutex
	fingerprints map[string]struct{}
	failedURLs   []string
	live         Stats
}

// NewDispatcher constructs a Dispatcher. monitor may be nil when resource
// adaptivity is disabled.
func NewDispatcher(
	fetcher Fetcher,
	converter Converter,
	store PageStore,
	hasher Hasher,
	clock Clock,
	retry RetryPolicy,
	monitor ResourceMonitor,
	scope *Scope,
	cfg DispatcherConfig,
	logger *zap.Logger,
) *Dispatcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		fetcher:   fetcher,
		converter: converter,
		store:     store,
		hasher:    hasher,
		clock:     clock,
		retry:     retry,
		monitor:   monitor,
		scope:     scope,
		limiter:   ratelimit.New(ratelimit.Config{DefaultRPS: cfg.DomainRPS, DefaultBurst: cfg.Concurrency}),
		cfg:       cfg,
		logger:    logger,
	}
}

// RunLevel fetches and processes every entry of one frontier level with at
// most cfg.Concurrency fetches in flight. Cancellation stops the admission
// of new entries; in-flight fetches are allowed to finish so completed work
// is never discarded.
func (d *Dispatcher) RunLevel(ctx context.Context, frontier *Frontier, entries []FrontierEntry) Stats {
	frontierLevelSize.Observe(float64(len(entries)))

	var (
		mu    sync.Mutex
		stats Stats
		wg    sync.WaitGroup
	)
	slots := make(chan struct{}, d.cfg.Concurrency)

admission:
	for _, entry := range entries {
		if err := d.waitForCapacity(ctx); err != nil {
			break
		}
		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
			break admission
		}

		wg.Add(1)
		go func(entry FrontierEntry) {
			defer wg.Done()
			defer func() { <-slots }()

			outcome, retries := d.process(ctx, frontier, entry)
			pagesTotal.WithLabelValues(string(outcome)).Inc()
			d.recordLive(outcome, retries)

			mu.Lock()
			defer mu.Unlock()
			stats.Attempted++
			stats.Retries += retries
			switch outcome {
			case OutcomeAccepted:
				stats.Accepted++
			case OutcomeDuplicate:
				stats.Duplicates++
			case OutcomeFailed:
				stats.Failed++
			}
		}(entry)
	}

	wg.Wait()
	return stats
}

// Snapshot returns the cumulative outcome counters across every level run
// so far. It backs the live status endpoint.
func (d *Dispatcher) Snapshot() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live
}

func (d *Dispatcher) recordLive(outcome Outcome, retries int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.live.Attempted++
	d.live.Retries += retries
	switch outcome {
	case OutcomeAccepted:
		d.live.Accepted++
	case OutcomeDuplicate:
		d.live.Duplicates++
	case OutcomeFailed:
		d.live.Failed++
	}
}

// FailedURLs returns the URLs that terminated as Failed, in completion order.
func (d *Dispatcher) FailedURLs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.failedURLs...)
}

func (d *Dispatcher) process(ctx context.Context, frontier *Frontier, entry FrontierEntry) (Outcome, int) {
	d.pace(ctx, entry.RawURL)

	result, retries, err := d.fetchWithRetry(ctx, entry)
	if err != nil {
		d.markFailed(entry.RawURL)
		d.logger.Warn("fetch failed",
			zap.String("url", entry.RawURL),
			zap.Int("depth", entry.Depth),
			zap.Int("retries", retries),
			zap.Error(err),
		)
		return OutcomeFailed, retries
	}
	fetchDurationSeconds.Observe(result.Duration.Seconds())

	doc, err := d.converter.Convert(entry.RawURL, result.HTML)
	if err != nil {
		d.markFailed(entry.RawURL)
		d.logger.Warn("conversion failed", zap.String("url", entry.RawURL), zap.Error(err))
		return OutcomeFailed, retries
	}

	fingerprint, err := d.hasher.Hash([]byte(doc.Markdown))
	if err != nil {
		d.markFailed(entry.RawURL)
		d.logger.Error("fingerprint failed", zap.String("url", entry.RawURL), zap.Error(err))
		return OutcomeFailed, retries
	}

	if !d.markFingerprint(fingerprint) {
		d.logger.Debug("duplicate content suppressed",
			zap.String("url", entry.RawURL),
			zap.String("fingerprint", fingerprint),
		)
		return OutcomeDuplicate, retries
	}

	page := Page{
		URL:           entry.RawURL,
		NormalizedURL: entry.NormalizedURL,
		Title:         doc.Title,
		Content:       doc.Markdown,
		Fingerprint:   fingerprint,
		FetchedAt:     d.clock.Now(),
	}
	if err := d.store.Put(ctx, page); err != nil {
		d.unmarkFingerprint(fingerprint)
		d.markFailed(entry.RawURL)
		d.logger.Error("store page failed", zap.String("url", entry.RawURL), zap.Error(err))
		return OutcomeFailed, retries
	}

	d.feedFrontier(frontier, entry, result.Links)

	d.logger.Debug("page accepted",
		zap.String("url", entry.RawURL),
		zap.Int("depth", entry.Depth),
		zap.Int("links", len(result.Links)),
	)
	return OutcomeAccepted, retries
}

func (d *Dispatcher) feedFrontier(frontier *Frontier, entry FrontierEntry, links []string) {
	for _, link := range links {
		if !d.scope.Allows(Normalize(link)) {
			continue
		}
		frontier.Enqueue(link, entry.Depth+1)
	}
}

func (d *Dispatcher) fetchWithRetry(ctx context.Context, entry FrontierEntry) (FetchResult, int, error) {
	retries := 0
	for attempt := 0; ; attempt++ {
		reqCtx, cancel := context.WithTimeout(ctx, d.cfg.RequestTimeout)
		result, err := d.fetcher.Fetch(reqCtx, FetchRequest{
			URL:     entry.RawURL,
			Depth:   entry.Depth,
			Timeout: d.cfg.RequestTimeout,
		})
		cancel()
		if err == nil {
			return result, retries, nil
		}
		if !d.retry.ShouldRetry(err, attempt) {
			return FetchResult{}, retries, err
		}
		retries++
		fetchRetriesTotal.Inc()
		d.pause(ctx, d.retry.Backoff(attempt))
		if ctx.Err() != nil {
			return FetchResult{}, retries, ctx.Err()
		}
	}
}

// pace applies the per-domain token bucket plus the sampled inter-request
// delay before a fetch is issued.
func (d *Dispatcher) pace(ctx context.Context, rawURL string) {
	if err := d.limiter.Wait(ctx, rawURL); err != nil {
		return
	}
	d.pause(ctx, sampleDelay(d.cfg.DelayMin, d.cfg.DelayMax))
}

// waitForCapacity blocks while the resource monitor reports overload,
// re-checking periodically. It returns the context error on cancellation.
func (d *Dispatcher) waitForCapacity(ctx context.Context) error {
	if d.monitor == nil {
		return ctx.Err()
	}
	for d.monitor.Overloaded() {
		d.logger.Warn("resource pressure high; pausing admission")
		d.pause(ctx, overloadPollInterval)
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func (d *Dispatcher) pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (d *Dispatcher) markFingerprint(fingerprint string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fingerprints == nil {
		d.fingerprints = make(map[string]struct{})
	}
	if _, seen := d.fingerprints[fingerprint]; seen {
		return false
	}
	d.fingerprints[fingerprint] = struct{}{}
	return true
}

func (d *Dispatcher) unmarkFingerprint(fingerprint string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.fingerprints, fingerprint)
}

func (d *Dispatcher) markFailed(rawURL string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failedURLs = append(d.failedURLs, rawURL)
}

// sampleDelay picks a uniform random delay from [min, max].
func sampleDelay(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	span := big.NewInt(int64(max - min))
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return min
	}
	return min + time.Duration(n.Int64())
}
