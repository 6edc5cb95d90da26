package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/marketpulse/market-scraper/internal/browser"
	"github.com/marketpulse/market-scraper/internal/models"
	"github.com/marketpulse/market-scraper/internal/parser"
	"github.com/marketpulse/market-scraper/internal/ratelimit"
)

type Config struct {
	ListingLimit int
	Scroll       browser.ScrollConfig
	RateLimitMin time.Duration
	RateLimitMax time.Duration
}

func DefaultConfig() Config {
	return Config{
		ListingLimit: 10,
		Scroll:       browser.DefaultScrollConfig(),
		RateLimitMin: 2 * time.Second,
		RateLimitMax: 6 * time.Second,
	}
}

// Service runs one marketplace scrape end to end: session, navigation,
// scroll exhaustion, the extraction fallback chain, dedup. Errors never
// escape the marketplace boundary; they land in the result status.
type Service struct {
	browser  *browser.Manager
	registry *parser.Registry
	cfg      Config
	logger   *slog.Logger

	mu       sync.Mutex
	limiters map[string]*ratelimit.AdaptiveLimiter
}

func NewService(b *browser.Manager, registry *parser.Registry, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ListingLimit <= 0 {
		cfg.ListingLimit = DefaultConfig().ListingLimit
	}
	return &Service{
		browser:  b,
		registry: registry,
		cfg:      cfg,
		logger:   logger.With("component", "scraper"),
		limiters: make(map[string]*ratelimit.AdaptiveLimiter),
	}
}

func (s *Service) Supported(marketplace string) bool {
	return s.registry.Supported(marketplace)
}

func (s *Service) Marketplaces() []string {
	return s.registry.Names()
}

// limiterFor returns the per-marketplace adaptive limiter, creating it on
// first use.
func (s *Service) limiterFor(marketplace string) *ratelimit.AdaptiveLimiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	lim, ok := s.limiters[marketplace]
	if !ok {
		lim = ratelimit.NewAdaptiveLimiter(s.cfg.RateLimitMin, s.cfg.RateLimitMax)
		s.limiters[marketplace] = lim
	}
	return lim
}

// ScrapeListings scrapes one marketplace's search results for query.
func (s *Service) ScrapeListings(ctx context.Context, marketplace, query string) *models.MarketplaceResult {
	result := &models.MarketplaceResult{Marketplace: marketplace, Status: models.StatusRunning}

	strat, ok := s.registry.Get(marketplace)
	if !ok {
		result.Status = models.StatusFailed
		result.Error = ErrUnsupportedMarketplace.Error()
		return result
	}

	target := strat.SearchURL(query)
	attempt := &models.ScrapeAttempt{
		Marketplace: marketplace,
		Target:      target,
		Strategy:    models.StrategyNone,
		Status:      models.StatusRunning,
	}
	logger := s.logger.With("marketplace", marketplace, "query", query)

	lim := s.limiterFor(marketplace)
	if err := lim.Wait(ctx); err != nil {
		return s.fail(result, attempt, err, lim)
	}

	sess, err := s.browser.OpenPage(ctx, target)
	if err != nil {
		return s.fail(result, attempt, err, lim)
	}
	defer sess.Close()

	if _, err := browser.LoadAll(ctx, sess.Page(), strat.ListingProbe(), s.cfg.Scroll, logger); err != nil {
		logger.Warn("scroll pass ended early", "error", err)
	}

	html, err := sess.Page().Content()
	if err != nil {
		return s.fail(result, attempt, fmt.Errorf("failed to read page content: %w", err), lim)
	}

	listings, strategy := ExtractListingChain(sess.Page(), strat, html, s.cfg.ListingLimit)
	attempt.Strategy = strategy
	attempt.ItemCount = len(listings)

	if len(listings) == 0 {
		return s.fail(result, attempt, ErrExtractionEmpty, lim)
	}

	lim.RecordSuccess()
	attempt.Status = models.StatusCompleted
	result.Status = models.StatusCompleted
	result.Strategy = strategy
	result.Listings = listings
	logger.Info("listings scraped", "count", len(listings), "strategy", strategy)
	return result
}

// ScrapeReviews scrapes the reviews of one product. productRef is either a
// full product URL or the marketplace-native identifier.
func (s *Service) ScrapeReviews(ctx context.Context, marketplace, productRef string) *models.MarketplaceResult {
	result := &models.MarketplaceResult{Marketplace: marketplace, Status: models.StatusRunning}

	strat, ok := s.registry.Get(marketplace)
	if !ok {
		result.Status = models.StatusFailed
		result.Error = ErrUnsupportedMarketplace.Error()
		return result
	}

	target, productID, err := resolveReviewTarget(strat, productRef)
	attempt := &models.ScrapeAttempt{
		Marketplace: marketplace,
		Target:      target,
		Strategy:    models.StrategyNone,
		Status:      models.StatusRunning,
	}
	logger := s.logger.With("marketplace", marketplace, "product", productID)

	lim := s.limiterFor(marketplace)
	if err != nil {
		return s.fail(result, attempt, err, nil)
	}
	if err := lim.Wait(ctx); err != nil {
		return s.fail(result, attempt, err, lim)
	}

	sess, err := s.browser.OpenPage(ctx, target)
	if err != nil {
		return s.fail(result, attempt, err, lim)
	}
	defer sess.Close()

	if _, err := browser.LoadAll(ctx, sess.Page(), strat.ReviewProbe(), s.cfg.Scroll, logger); err != nil {
		logger.Warn("scroll pass ended early", "error", err)
	}

	html, err := sess.Page().Content()
	if err != nil {
		return s.fail(result, attempt, fmt.Errorf("failed to read page content: %w", err), lim)
	}

	scrapedAt := time.Now()
	reviews, strategy := ExtractReviewChain(sess.Page(), strat, html, scrapedAt)
	for i := range reviews {
		reviews[i].ProductID = productID
	}
	attempt.Strategy = strategy
	attempt.ItemCount = len(reviews)

	if len(reviews) == 0 {
		return s.fail(result, attempt, ErrExtractionEmpty, lim)
	}

	lim.RecordSuccess()
	attempt.Status = models.StatusCompleted
	result.Status = models.StatusCompleted
	result.Strategy = strategy
	result.Reviews = reviews
	logger.Info("reviews scraped", "count", len(reviews), "strategy", strategy)
	return result
}

func (s *Service) fail(result *models.MarketplaceResult, attempt *models.ScrapeAttempt, err error, lim *ratelimit.AdaptiveLimiter) *models.MarketplaceResult {
	if lim != nil {
		lim.RecordError()
	}
	attempt.Status = models.StatusFailed
	attempt.Error = err.Error()
	result.Status = models.StatusFailed
	result.Strategy = attempt.Strategy
	result.Error = err.Error()
	s.logger.Warn("marketplace scrape failed",
		"marketplace", attempt.Marketplace,
		"target", attempt.Target,
		"strategy", attempt.Strategy,
		"error", err)
	return result
}

// resolveReviewTarget turns a product reference into the URL to navigate
// and the identifier stamped onto extracted reviews.
func resolveReviewTarget(strat parser.Strategy, productRef string) (target, productID string, err error) {
	ref := strings.TrimSpace(productRef)
	if ref == "" {
		return "", "", ErrMissingProductRef
	}

	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		productID = strat.ProductID(ref)
		if productID != "" {
			return strat.ReviewsURL(productID), productID, nil
		}
		// Unrecognized URL shape: navigate to it as given.
		return ref, ref, nil
	}

	return strat.ReviewsURL(ref), ref, nil
}

// ExtractListingChain runs the listing strategies in priority order:
// selector chains over the HTML snapshot, then the in-page DOM walk. The
// first non-empty batch wins. page may be nil when no live page exists.
func ExtractListingChain(page browser.Pager, strat parser.Strategy, html string, limit int) ([]models.Listing, models.ExtractionStrategy) {
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
		if listings := parser.DedupListings(strat.ExtractListings(doc, limit)); len(listings) > 0 {
			return listings, models.StrategySelectors
		}
	}

	if page != nil {
		if listings := evalListings(page, strat, limit); len(listings) > 0 {
			return listings, models.StrategyInPageJS
		}
	}

	return nil, models.StrategyNone
}

// ExtractReviewChain runs the review strategies in priority order:
// selector chains, in-page DOM walk, then the text-shape heuristic.
func ExtractReviewChain(page browser.Pager, strat parser.Strategy, html string, scrapedAt time.Time) ([]models.Review, models.ExtractionStrategy) {
	doc, docErr := goquery.NewDocumentFromReader(strings.NewReader(html))

	if docErr == nil {
		if reviews := strat.ExtractReviews(doc, scrapedAt); len(reviews) > 0 {
			return reviews, models.StrategySelectors
		}
	}

	if page != nil {
		if reviews := evalReviews(page, strat, scrapedAt); len(reviews) > 0 {
			return reviews, models.StrategyInPageJS
		}
	}

	if docErr == nil {
		if reviews := parser.HeuristicReviews(doc, strat.Marketplace(), scrapedAt); len(reviews) > 0 {
			return reviews, models.StrategyHeuristic
		}
	}

	return nil, models.StrategyNone
}
