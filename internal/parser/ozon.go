package parser

import (
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/marketpulse/market-scraper/internal/models"
)

// Ozon search and review widgets. Ozon rotates obfuscated class names, so
// the chains lean on data attributes and fall back to class substrings.
type Ozon struct {
	listings listingSelectors
	reviews  fieldChain
}

var ozonProductRe = regexp.MustCompile(`/product/(?:[\w-]*?-)?(\d+)`)

func NewOzon() *Ozon {
	return &Ozon{
		listings: listingSelectors{
			container: fieldChain{
				"[data-widget='searchResultsV2'] .tile-root",
				".tile-hover-target", ".product-card",
			},
			title: fieldChain{
				".tsBody500", ".product-card__name", ".product-card__title",
			},
			price: fieldChain{
				".c2h5", ".product-card__price", ".price",
			},
			rating: fieldChain{".rating"},
			description: fieldChain{
				".product-card__description",
			},
			link:      fieldChain{"a[href*='/product/']"},
			image:     fieldChain{"img"},
			idAttr:    "data-product-id",
			idPattern: ozonProductRe,
		},
		reviews: fieldChain{
			"[data-review-id]", "[data-widget='webReview']",
			"div[class*='review']", "div[class*='comment']",
		},
	}
}

func (o *Ozon) Marketplace() string { return "ozon" }
func (o *Ozon) BaseURL() string     { return "https://www.ozon.ru" }

func (o *Ozon) SearchURL(query string) string {
	return fmt.Sprintf("%s/search/?text=%s", o.BaseURL(), url.QueryEscape(query))
}

func (o *Ozon) ReviewsURL(productID string) string {
	return fmt.Sprintf("%s/product/%s/reviews/", o.BaseURL(), productID)
}

func (o *Ozon) ProductID(rawURL string) string {
	if m := ozonProductRe.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}
	return ""
}

func (o *Ozon) ListingProbe() string {
	return ".tile-hover-target, .product-card, [data-widget='searchResultsV2'] .tile-root"
}

func (o *Ozon) ReviewProbe() string {
	return "[data-widget='webReview'], [class*='review'], [data-review-id]"
}

func (o *Ozon) ExtractListings(doc *goquery.Document, limit int) []models.Listing {
	return extractListings(doc, o.Marketplace(), o.BaseURL(), o.listings, func(id string) string {
		return fmt.Sprintf("%s/product/%s/", o.BaseURL(), id)
	}, limit)
}

func (o *Ozon) ExtractReviews(doc *goquery.Document, scrapedAt time.Time) []models.Review {
	return extractReviews(doc, o.reviews, o.Marketplace(), "", scrapedAt)
}
