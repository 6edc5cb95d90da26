package parser

import (
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketpulse/market-scraper/internal/models"
)

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

const wbSearchPage = `
<html><body>
<div class="product-card" data-product-id="101">
	<a href="/catalog/101/detail.aspx"><img src="/images/101.webp"></a>
	<span class="product-card__name">Наушники беспроводные TWS</span>
	<span class="product-card__price">2 590 ₽</span>
	<span class="product-card__rating">4.8</span>
</div>
<div class="product-card" data-product-id="102">
	<a href="/catalog/102/detail.aspx"></a>
	<span class="product-card__name">Наушники проводные</span>
	<span class="product-card__rating">4.2</span>
</div>
<div class="product-card" data-product-id="103">
	<a href="/catalog/103/detail.aspx"></a>
	<span class="product-card__name">Гарнитура игровая</span>
	<span class="product-card__price">5 990 ₽</span>
</div>
</body></html>`

func TestWildberriesExtractListings(t *testing.T) {
	wb := NewWildberries()
	listings := wb.ExtractListings(mustDoc(t, wbSearchPage), 10)

	require.Len(t, listings, 3)

	assert.Equal(t, "101", listings[0].ExternalID)
	assert.Equal(t, "Наушники беспроводные TWS", listings[0].Title)
	assert.InDelta(t, 2590, listings[0].Price, 0.001)
	assert.InDelta(t, 4.8, listings[0].Rating, 0.001)
	assert.Equal(t, "https://www.wildberries.ru/catalog/101/detail.aspx", listings[0].DetailURL)
	assert.Equal(t, "https://www.wildberries.ru/images/101.webp", listings[0].ImageURL)

	// A missing price degrades to zero instead of dropping the card.
	assert.Equal(t, "102", listings[1].ExternalID)
	assert.InDelta(t, 0, listings[1].Price, 0.001)
}

func TestWildberriesExtractListingsLimit(t *testing.T) {
	wb := NewWildberries()
	listings := wb.ExtractListings(mustDoc(t, wbSearchPage), 2)
	assert.Len(t, listings, 2)
}

func TestWildberriesExtractListingsIDFromLink(t *testing.T) {
	html := `
	<div class="product-card">
		<a href="https://www.wildberries.ru/catalog/555/detail.aspx"></a>
		<span class="product-card__name">Чехол для телефона</span>
		<span class="product-card__price">499 ₽</span>
	</div>`

	wb := NewWildberries()
	listings := wb.ExtractListings(mustDoc(t, html), 10)
	require.Len(t, listings, 1)
	assert.Equal(t, "555", listings[0].ExternalID)
}

const wbFeedbackPage = `
<html><body>
<div class="feedback__item">
	<strong class="feedback__author">Мария</strong>
	<span class="star star-fill"></span><span class="star star-fill"></span>
	<span class="star star-fill"></span><span class="star star-fill"></span>
	<span class="star"></span>
	<p>Отличные наушники, звук чистый, держат заряд два дня.</p>
	<time datetime="2024-01-02">2 января</time>
</div>
<div class="feedback__item">
	<strong class="feedback__author">Иван</strong>
	<p>Пришли быстро, упаковка целая, работают без нареканий.</p>
</div>
<div class="feedback__item">
	<strong class="feedback__author">Мария</strong>
	<p>Отличные наушники, звук чистый, держат заряд два дня.</p>
</div>
<div class="feedback__item">
	<p>Середнячок, за свои деньги нормально, но ждал большего.</p>
</div>
<div class="feedback__item">
	<p>Пришли быстро, упаковка целая, работают без нареканий.</p>
</div>
</body></html>`

func TestWildberriesExtractReviews(t *testing.T) {
	wb := NewWildberries()
	scrapedAt := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	reviews := wb.ExtractReviews(mustDoc(t, wbFeedbackPage), scrapedAt)

	// Five DOM nodes, two of them duplicates.
	require.Len(t, reviews, 3)

	assert.Equal(t, "Мария", reviews[0].Author)
	assert.Equal(t, 4, reviews[0].Rating)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), reviews[0].PostedAt)

	assert.Equal(t, "Иван", reviews[1].Author)
	assert.Equal(t, scrapedAt, reviews[1].PostedAt, "undated review falls back to scrape time")

	// The no-author node collapses to the sentinel.
	assert.Equal(t, models.AnonymousAuthor, reviews[2].Author)

	for _, r := range reviews {
		assert.Equal(t, "wildberries", r.Marketplace)
		assert.NotEmpty(t, r.Fingerprint)
		assert.True(t, r.Valid())
	}
}

func TestWildberriesURLs(t *testing.T) {
	wb := NewWildberries()

	assert.Equal(t,
		"https://www.wildberries.ru/catalog/0/search.aspx?search=%D0%BD%D0%B0%D1%83%D1%88%D0%BD%D0%B8%D0%BA%D0%B8",
		wb.SearchURL("наушники"))
	assert.Equal(t, "https://www.wildberries.ru/catalog/123/feedbacks", wb.ReviewsURL("123"))
	assert.Equal(t, "123", wb.ProductID("https://www.wildberries.ru/catalog/123/detail.aspx"))
	assert.Equal(t, "", wb.ProductID("https://www.wildberries.ru/brands/apple"))
}

func TestDefaultRegistry(t *testing.T) {
	reg := DefaultRegistry()

	assert.Equal(t, []string{"goldapple", "megamarket", "ozon", "wildberries", "yandexmarket"}, reg.Names())
	assert.True(t, reg.Supported("Wildberries "))
	assert.False(t, reg.Supported("amazon"))

	s, ok := reg.Get("OZON")
	require.True(t, ok)
	assert.Equal(t, "ozon", s.Marketplace())
}
