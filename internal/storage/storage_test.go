package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketpulse/market-scraper/internal/models"
)

func TestFileSinkListingsSupersede(t *testing.T) {
	sink, err := NewFileSink(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	first := []models.Listing{
		{Marketplace: "wildberries", ExternalID: "1", Title: "Наушники"},
		{Marketplace: "wildberries", ExternalID: "2", Title: "Гарнитура"},
	}
	require.NoError(t, sink.SaveListings(ctx, "наушники", "wildberries", first))

	second := []models.Listing{
		{Marketplace: "wildberries", ExternalID: "3", Title: "Колонка"},
	}
	require.NoError(t, sink.SaveListings(ctx, "наушники", "wildberries", second))

	got, err := sink.ListingsForQuery(ctx, "наушники", "wildberries")
	require.NoError(t, err)
	require.Len(t, got, 1, "a rescrape replaces the previous batch")
	assert.Equal(t, "3", got[0].ExternalID)
}

func TestFileSinkReviewsIdempotent(t *testing.T) {
	sink, err := NewFileSink(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	batch := []models.Review{
		{Marketplace: "ozon", ProductID: "42", Text: "Отлично", Fingerprint: "a"},
		{Marketplace: "ozon", ProductID: "42", Text: "Нормально", Fingerprint: "b"},
	}

	n, err := sink.SaveReviews(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// The same batch again stores nothing new.
	n, err = sink.SaveReviews(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	got, err := sink.ReviewsForProduct(ctx, "ozon", "42")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestFileSinkMissingBatchIsEmpty(t *testing.T) {
	sink, err := NewFileSink(t.TempDir())
	require.NoError(t, err)

	got, err := sink.ListingsForQuery(context.Background(), "нет", "ozon")
	require.NoError(t, err)
	assert.Empty(t, got)
}
