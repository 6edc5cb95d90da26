package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/marketpulse/market-scraper/internal/models"
)

const StreamScrapeResults = "stream:scrape_results"

const (
	EventListingsScraped = "LISTINGS_SCRAPED"
	EventReviewsScraped  = "REVIEWS_SCRAPED"
)

// RedisClient is the slice of redis the publisher uses. *redis.Client
// satisfies it; tests substitute a mock.
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
	Close() error
}

// Publisher announces finished scrape batches on a Redis stream so
// downstream consumers (analysis, indexing) pick them up. A nil Publisher
// is valid and drops every event; running without Redis stays supported.
type Publisher struct {
	client RedisClient
	logger *slog.Logger
}

func NewPublisher(client RedisClient, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		client: client,
		logger: logger.With("component", "events"),
	}
}

// PublishResult emits one event per finished marketplace batch. Failed
// batches are not announced.
func (p *Publisher) PublishResult(ctx context.Context, query string, result *models.MarketplaceResult) error {
	if p == nil || p.client == nil {
		return nil
	}
	if result == nil || result.Status != models.StatusCompleted {
		return nil
	}

	eventType := EventListingsScraped
	if len(result.Reviews) > 0 {
		eventType = EventReviewsScraped
	}

	payload, err := json.Marshal(map[string]interface{}{
		"event_id":    uuid.New().String(),
		"query":       query,
		"marketplace": result.Marketplace,
		"strategy":    result.Strategy,
		"item_count":  result.ItemCount(),
		"scraped_at":  time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamScrapeResults,
		Values: map[string]interface{}{
			"event_type":  eventType,
			"marketplace": result.Marketplace,
			"payload":     string(payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Info("published scrape event",
		"event_type", eventType,
		"marketplace", result.Marketplace,
		"item_count", result.ItemCount())
	return nil
}
