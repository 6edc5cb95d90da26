package parser

import (
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/marketpulse/market-scraper/internal/models"
)

// Wildberries search and feedbacks pages. Selector chains cover the card
// markup revisions observed in production; most-specific first.
type Wildberries struct {
	listings listingSelectors
	reviews  fieldChain
}

var wbArticleRe = regexp.MustCompile(`/catalog/(\d+)`)

func NewWildberries() *Wildberries {
	return &Wildberries{
		listings: listingSelectors{
			container: fieldChain{".product-card", ".catalog-item", ".product-card__main"},
			title: fieldChain{
				".product-card__name", ".catalog-item__name", ".goods-name",
			},
			price: fieldChain{
				".product-card__price", ".catalog-item__price",
				".price__lower-price", "ins.price__lower-price",
			},
			rating: fieldChain{
				".product-card__rating", ".address-rate-mini",
			},
			description: fieldChain{
				".product-card__description", ".catalog-item__description",
			},
			link:      fieldChain{"a[href*='/catalog/']"},
			image:     fieldChain{"img"},
			idAttr:    "data-product-id",
			idPattern: wbArticleRe,
		},
		reviews: fieldChain{
			"div.feedback__item", "div[class*='feedback__item']",
			"[data-feedback-id]", "article[class*='feedback']",
			"div[class*='feedback']", "div[class*='review']",
			"div[class*='comment']",
		},
	}
}

func (w *Wildberries) Marketplace() string { return "wildberries" }
func (w *Wildberries) BaseURL() string     { return "https://www.wildberries.ru" }

func (w *Wildberries) SearchURL(query string) string {
	return fmt.Sprintf("%s/catalog/0/search.aspx?search=%s", w.BaseURL(), url.QueryEscape(query))
}

func (w *Wildberries) ReviewsURL(productID string) string {
	return fmt.Sprintf("%s/catalog/%s/feedbacks", w.BaseURL(), productID)
}

func (w *Wildberries) ProductID(rawURL string) string {
	if m := wbArticleRe.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}
	return ""
}

func (w *Wildberries) ListingProbe() string {
	return ".product-card, .catalog-item"
}

func (w *Wildberries) ReviewProbe() string {
	return "[class*='feedback'], [data-feedback-id], article"
}

func (w *Wildberries) ExtractListings(doc *goquery.Document, limit int) []models.Listing {
	return extractListings(doc, w.Marketplace(), w.BaseURL(), w.listings, func(id string) string {
		return fmt.Sprintf("%s/catalog/%s/detail.aspx", w.BaseURL(), id)
	}, limit)
}

func (w *Wildberries) ExtractReviews(doc *goquery.Document, scrapedAt time.Time) []models.Review {
	return extractReviews(doc, w.reviews, w.Marketplace(), "", scrapedAt)
}
