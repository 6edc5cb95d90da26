package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketpulse/market-scraper/internal/analysis"
	"github.com/marketpulse/market-scraper/internal/models"
)

type fakeDispatcher struct {
	results    map[string]*models.MarketplaceResult
	gotQuery   string
	gotProduct string
	gotMarkets []string
}

func (f *fakeDispatcher) ScrapeAll(ctx context.Context, query string, marketplaces []string) map[string]*models.MarketplaceResult {
	f.gotQuery = query
	f.gotMarkets = marketplaces
	return f.results
}

func (f *fakeDispatcher) ScrapeReviewsAll(ctx context.Context, productRef string, marketplaces []string) map[string]*models.MarketplaceResult {
	f.gotProduct = productRef
	f.gotMarkets = marketplaces
	return f.results
}

type fakeCatalog struct{}

func (fakeCatalog) Supported(mp string) bool {
	return mp == "wildberries" || mp == "ozon"
}

func (fakeCatalog) Marketplaces() []string {
	return []string{"ozon", "wildberries"}
}

type fakeSink struct {
	savedListings int
	savedReviews  int
}

func (f *fakeSink) SaveListings(ctx context.Context, query, marketplace string, listings []models.Listing) error {
	f.savedListings += len(listings)
	return nil
}

func (f *fakeSink) SaveReviews(ctx context.Context, reviews []models.Review) (int, error) {
	f.savedReviews += len(reviews)
	return len(reviews), nil
}

type fakeAnalyzer struct{}

func (fakeAnalyzer) Analyze(ctx context.Context, marketplace, productID string, reviews []models.Review) (*analysis.AnalyzeResponse, error) {
	return &analysis.AnalyzeResponse{
		Summary:   "в целом довольны",
		Sentiment: analysis.Sentiment{Positive: 80, Neutral: 15, Negative: 5},
	}, nil
}

func postJSON(t *testing.T, h http.HandlerFunc, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(buf))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestScrapeRejectsEmptyQuery(t *testing.T) {
	h := NewHandlers(&fakeDispatcher{}, fakeCatalog{}, nil, nil, nil, nil)

	rec := postJSON(t, h.Scrape, ScrapeRequest{Query: "   "})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScrapeRejectsUnknownMarketplace(t *testing.T) {
	h := NewHandlers(&fakeDispatcher{}, fakeCatalog{}, nil, nil, nil, nil)

	rec := postJSON(t, h.Scrape, ScrapeRequest{Query: "наушники", Marketplaces: []string{"amazon"}})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unsupported marketplace")
}

func TestScrapeReturnsPerMarketplaceStatuses(t *testing.T) {
	dispatcher := &fakeDispatcher{results: map[string]*models.MarketplaceResult{
		"wildberries": {
			Marketplace: "wildberries",
			Status:      models.StatusCompleted,
			Strategy:    models.StrategySelectors,
			Listings: []models.Listing{
				{Marketplace: "wildberries", ExternalID: "1", Title: "Наушники"},
				{Marketplace: "wildberries", ExternalID: "2", Title: "Гарнитура"},
			},
		},
		"ozon": {
			Marketplace: "ozon",
			Status:      models.StatusFailed,
			Error:       "captcha or block page detected",
		},
	}}
	sink := &fakeSink{}
	h := NewHandlers(dispatcher, fakeCatalog{}, sink, nil, nil, nil)

	rec := postJSON(t, h.Scrape, ScrapeRequest{Query: "наушники"})

	// A failed marketplace never fails the request.
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "наушники", dispatcher.gotQuery)
	assert.Equal(t, []string{"ozon", "wildberries"}, dispatcher.gotMarkets, "empty request means all marketplaces")

	var resp ScrapeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 2)
	assert.Equal(t, models.StatusCompleted, resp.Results["wildberries"].Status)
	assert.Equal(t, models.StatusFailed, resp.Results["ozon"].Status)

	// Only the completed batch is persisted.
	assert.Equal(t, 2, sink.savedListings)
}

func TestScrapeReviewsRequiresProductRef(t *testing.T) {
	h := NewHandlers(&fakeDispatcher{}, fakeCatalog{}, nil, nil, nil, nil)

	rec := postJSON(t, h.ScrapeReviews, ReviewsRequest{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScrapeReviewsPersistsAndAnalyzes(t *testing.T) {
	dispatcher := &fakeDispatcher{results: map[string]*models.MarketplaceResult{
		"wildberries": {
			Marketplace: "wildberries",
			Status:      models.StatusCompleted,
			Strategy:    models.StrategyHeuristic,
			Reviews: []models.Review{
				{Marketplace: "wildberries", ProductID: "123", Text: "Отличный товар", Rating: 5, Fingerprint: "a"},
				{Marketplace: "wildberries", ProductID: "123", Text: "Не понравился", Rating: 2, Fingerprint: "b"},
			},
		},
	}}
	sink := &fakeSink{}
	h := NewHandlers(dispatcher, fakeCatalog{}, sink, nil, fakeAnalyzer{}, nil)

	rec := postJSON(t, h.ScrapeReviews, ReviewsRequest{
		ProductID:    "123",
		Marketplaces: []string{"wildberries"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "123", dispatcher.gotProduct)
	assert.Equal(t, 2, sink.savedReviews)

	var resp ReviewsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Analysis)
	assert.Equal(t, "в целом довольны", resp.Analysis.Summary)
	assert.InDelta(t, 80, resp.Analysis.Sentiment.Positive, 0.001)
}

func TestMarketplacesEndpoint(t *testing.T) {
	h := NewHandlers(&fakeDispatcher{}, fakeCatalog{}, nil, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.Marketplaces(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "wildberries")
}
