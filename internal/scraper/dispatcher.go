package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/marketpulse/market-scraper/internal/models"
)

// Runner is the per-marketplace engine the dispatcher fans out over.
// Service satisfies it; tests substitute a fake.
type Runner interface {
	ScrapeListings(ctx context.Context, marketplace, query string) *models.MarketplaceResult
	ScrapeReviews(ctx context.Context, marketplace, productRef string) *models.MarketplaceResult
}

const defaultTaskTimeout = 3 * time.Minute

// Dispatcher runs one scrape task per marketplace concurrently. Every task
// gets its own deadline and panic boundary, so a hung or crashing
// marketplace never takes down its siblings.
type Dispatcher struct {
	runner  Runner
	timeout time.Duration
	logger  *slog.Logger
}

func NewDispatcher(runner Runner, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultTaskTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		runner:  runner,
		timeout: timeout,
		logger:  logger.With("component", "dispatcher"),
	}
}

// ScrapeAll scrapes the search results of every requested marketplace.
func (d *Dispatcher) ScrapeAll(ctx context.Context, query string, marketplaces []string) map[string]*models.MarketplaceResult {
	return d.fanOut(ctx, marketplaces, func(taskCtx context.Context, mp string) *models.MarketplaceResult {
		return d.runner.ScrapeListings(taskCtx, mp, query)
	})
}

// ScrapeReviewsAll scrapes the reviews of one product on every requested
// marketplace.
func (d *Dispatcher) ScrapeReviewsAll(ctx context.Context, productRef string, marketplaces []string) map[string]*models.MarketplaceResult {
	return d.fanOut(ctx, marketplaces, func(taskCtx context.Context, mp string) *models.MarketplaceResult {
		return d.runner.ScrapeReviews(taskCtx, mp, productRef)
	})
}

func (d *Dispatcher) fanOut(ctx context.Context, marketplaces []string, task func(context.Context, string) *models.MarketplaceResult) map[string]*models.MarketplaceResult {
	// Placeholders and the dup-check happen before any worker exists;
	// after that the map is touched only under mu.
	results := make(map[string]*models.MarketplaceResult, len(marketplaces))
	unique := make([]string, 0, len(marketplaces))
	for _, mp := range marketplaces {
		if _, dup := results[mp]; dup {
			continue
		}
		results[mp] = &models.MarketplaceResult{Marketplace: mp, Status: models.StatusPending}
		unique = append(unique, mp)
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, mp := range unique {
		mp := mp
		wg.Add(1)
		go func() {
			defer wg.Done()

			taskCtx, cancel := context.WithTimeout(ctx, d.timeout)
			defer cancel()

			res := d.runTask(taskCtx, mp, task)

			mu.Lock()
			results[mp] = res
			mu.Unlock()
		}()
	}
	wg.Wait()

	return results
}

// runTask converts a panicking task into a failed result.
func (d *Dispatcher) runTask(ctx context.Context, mp string, task func(context.Context, string) *models.MarketplaceResult) (res *models.MarketplaceResult) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("scrape task panicked", "marketplace", mp, "panic", r)
			res = &models.MarketplaceResult{
				Marketplace: mp,
				Status:      models.StatusFailed,
				Error:       fmt.Sprintf("internal error: %v", r),
			}
		}
	}()

	res = task(ctx, mp)
	if res == nil {
		res = &models.MarketplaceResult{
			Marketplace: mp,
			Status:      models.StatusFailed,
			Error:       "scrape returned no result",
		}
	}
	return res
}
