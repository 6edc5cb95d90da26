package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/marketpulse/market-scraper/internal/analysis"
	"github.com/marketpulse/market-scraper/internal/models"
)

// Dispatcher fans a scrape request out over marketplaces.
type Dispatcher interface {
	ScrapeAll(ctx context.Context, query string, marketplaces []string) map[string]*models.MarketplaceResult
	ScrapeReviewsAll(ctx context.Context, productRef string, marketplaces []string) map[string]*models.MarketplaceResult
}

// Catalog answers which marketplaces the registry supports.
type Catalog interface {
	Supported(marketplace string) bool
	Marketplaces() []string
}

// Sink persists finished batches. May be nil when running without Postgres.
type Sink interface {
	SaveListings(ctx context.Context, query, marketplace string, listings []models.Listing) error
	SaveReviews(ctx context.Context, reviews []models.Review) (int, error)
}

// Announcer publishes finished batches downstream. May be nil.
type Announcer interface {
	PublishResult(ctx context.Context, query string, result *models.MarketplaceResult) error
}

// Analyzer summarizes a review batch. May be nil when no analysis service
// is configured.
type Analyzer interface {
	Analyze(ctx context.Context, marketplace, productID string, reviews []models.Review) (*analysis.AnalyzeResponse, error)
}

type Handlers struct {
	dispatcher Dispatcher
	catalog    Catalog
	sink       Sink
	announcer  Announcer
	analyzer   Analyzer
	logger     *slog.Logger
}

func NewHandlers(dispatcher Dispatcher, catalog Catalog, sink Sink, announcer Announcer, analyzer Analyzer, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		dispatcher: dispatcher,
		catalog:    catalog,
		sink:       sink,
		announcer:  announcer,
		analyzer:   analyzer,
		logger:     logger.With("component", "api"),
	}
}

// ScrapeRequest asks for the search results of one query.
type ScrapeRequest struct {
	Query        string   `json:"query"`
	Marketplaces []string `json:"marketplaces"`
}

// ScrapeResponse maps marketplace name to its outcome. Failed marketplaces
// appear with status "failed", never as a request-level error.
type ScrapeResponse struct {
	Query   string                              `json:"query"`
	Results map[string]*models.MarketplaceResult `json:"results"`
}

// Scrape handles search scraping requests.
func (h *Handlers) Scrape(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		h.respondError(w, http.StatusBadRequest, "query is required")
		return
	}

	marketplaces, errMsg := h.resolveMarketplaces(req.Marketplaces)
	if errMsg != "" {
		h.respondError(w, http.StatusBadRequest, errMsg)
		return
	}

	results := h.dispatcher.ScrapeAll(r.Context(), req.Query, marketplaces)

	for mp, res := range results {
		if res.Status != models.StatusCompleted || len(res.Listings) == 0 {
			continue
		}
		if h.sink != nil {
			if err := h.sink.SaveListings(r.Context(), req.Query, mp, res.Listings); err != nil {
				h.logger.Error("failed to persist listings", "marketplace", mp, "error", err)
			}
		}
		if h.announcer != nil {
			if err := h.announcer.PublishResult(r.Context(), req.Query, res); err != nil {
				h.logger.Error("failed to publish event", "marketplace", mp, "error", err)
			}
		}
	}

	h.respondJSON(w, http.StatusOK, ScrapeResponse{Query: req.Query, Results: results})
}

// ReviewsRequest asks for the reviews of one product.
type ReviewsRequest struct {
	ProductURL   string   `json:"product_url"`
	ProductID    string   `json:"product_id"`
	Marketplaces []string `json:"marketplaces"`
}

// ReviewsResponse carries the per-marketplace outcomes plus an optional
// aggregated analysis over everything that was collected.
type ReviewsResponse struct {
	Results  map[string]*models.MarketplaceResult `json:"results"`
	Analysis *analysis.AnalyzeResponse            `json:"analysis,omitempty"`
}

// ScrapeReviews handles review scraping requests.
func (h *Handlers) ScrapeReviews(w http.ResponseWriter, r *http.Request) {
	var req ReviewsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	productRef := strings.TrimSpace(req.ProductURL)
	if productRef == "" {
		productRef = strings.TrimSpace(req.ProductID)
	}
	if productRef == "" {
		h.respondError(w, http.StatusBadRequest, "product_url or product_id is required")
		return
	}

	marketplaces, errMsg := h.resolveMarketplaces(req.Marketplaces)
	if errMsg != "" {
		h.respondError(w, http.StatusBadRequest, errMsg)
		return
	}

	results := h.dispatcher.ScrapeReviewsAll(r.Context(), productRef, marketplaces)

	var collected []models.Review
	for mp, res := range results {
		if res.Status != models.StatusCompleted || len(res.Reviews) == 0 {
			continue
		}
		collected = append(collected, res.Reviews...)
		if h.sink != nil {
			if _, err := h.sink.SaveReviews(r.Context(), res.Reviews); err != nil {
				h.logger.Error("failed to persist reviews", "marketplace", mp, "error", err)
			}
		}
		if h.announcer != nil {
			if err := h.announcer.PublishResult(r.Context(), productRef, res); err != nil {
				h.logger.Error("failed to publish event", "marketplace", mp, "error", err)
			}
		}
	}

	resp := ReviewsResponse{Results: results}
	if h.analyzer != nil && len(collected) > 0 {
		verdict, err := h.analyzer.Analyze(r.Context(), collected[0].Marketplace, productRef, collected)
		if err != nil {
			h.logger.Error("review analysis failed", "error", err)
		} else {
			resp.Analysis = verdict
		}
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// Marketplaces lists the supported marketplace names.
func (h *Handlers) Marketplaces(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"marketplaces": h.catalog.Marketplaces(),
	})
}

// resolveMarketplaces validates the requested names; an empty request means
// all supported marketplaces. Returns a message on the one client error
// that is the caller's fault.
func (h *Handlers) resolveMarketplaces(requested []string) ([]string, string) {
	if len(requested) == 0 {
		return h.catalog.Marketplaces(), ""
	}

	out := make([]string, 0, len(requested))
	for _, mp := range requested {
		name := strings.ToLower(strings.TrimSpace(mp))
		if name == "" {
			continue
		}
		if !h.catalog.Supported(name) {
			return nil, "unsupported marketplace: " + name
		}
		out = append(out, name)
	}
	if len(out) == 0 {
		return h.catalog.Marketplaces(), ""
	}
	return out, ""
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
