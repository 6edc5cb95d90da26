package parser

import (
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/marketpulse/market-scraper/internal/models"
)

// YandexMarket search snippets and review blocks, keyed on the stable
// data-auto attributes with class fallbacks.
type YandexMarket struct {
	listings listingSelectors
	reviews  fieldChain
}

var ymProductRe = regexp.MustCompile(`/product--[\w-]+/(\d+)`)

func NewYandexMarket() *YandexMarket {
	return &YandexMarket{
		listings: listingSelectors{
			container: fieldChain{
				"[data-auto='snippet-card']",
				"article[data-auto='searchOrganic']",
				".product-card",
			},
			title: fieldChain{
				"[data-auto='snippet-title']", "h3 a", ".product-card__name",
			},
			price: fieldChain{
				"[data-auto='snippet-price-current']",
				"[data-auto='price-value']", ".price",
			},
			rating: fieldChain{
				"[data-auto='rating-badge-value']", ".rating",
			},
			description: fieldChain{
				"[data-auto='snippet-description']",
			},
			link:      fieldChain{"a[href*='/product--']", "a[href*='/product/']"},
			image:     fieldChain{"img"},
			idAttr:    "data-product-id",
			idPattern: ymProductRe,
		},
		reviews: fieldChain{
			"[data-auto='review-item']", "[data-auto*='review']",
			"div[class*='review']", "div[class*='comment']",
		},
	}
}

func (y *YandexMarket) Marketplace() string { return "yandexmarket" }
func (y *YandexMarket) BaseURL() string     { return "https://market.yandex.ru" }

func (y *YandexMarket) SearchURL(query string) string {
	return fmt.Sprintf("%s/search?text=%s", y.BaseURL(), url.QueryEscape(query))
}

func (y *YandexMarket) ReviewsURL(productID string) string {
	return fmt.Sprintf("%s/product/%s/reviews", y.BaseURL(), productID)
}

func (y *YandexMarket) ProductID(rawURL string) string {
	if m := ymProductRe.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}
	return ""
}

func (y *YandexMarket) ListingProbe() string {
	return "[data-auto='snippet-card'], article[data-auto='searchOrganic'], .product-card"
}

func (y *YandexMarket) ReviewProbe() string {
	return "[class*='review'], [data-auto*='review']"
}

func (y *YandexMarket) ExtractListings(doc *goquery.Document, limit int) []models.Listing {
	return extractListings(doc, y.Marketplace(), y.BaseURL(), y.listings, func(id string) string {
		return fmt.Sprintf("%s/product/%s", y.BaseURL(), id)
	}, limit)
}

func (y *YandexMarket) ExtractReviews(doc *goquery.Document, scrapedAt time.Time) []models.Review {
	return extractReviews(doc, y.reviews, y.Marketplace(), "", scrapedAt)
}
