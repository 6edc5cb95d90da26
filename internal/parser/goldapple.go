package parser

import (
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/marketpulse/market-scraper/internal/models"
)

// GoldApple catalog cards and review blocks.
type GoldApple struct {
	listings listingSelectors
	reviews  fieldChain
}

var gaProductRe = regexp.MustCompile(`/product/(\d+)`)

func NewGoldApple() *GoldApple {
	return &GoldApple{
		listings: listingSelectors{
			container: fieldChain{".product-card", ".catalog-item", ".product-item"},
			title: fieldChain{
				".product-card__name", ".catalog-item__name", ".product-item__name",
			},
			price: fieldChain{
				".product-card__price", ".catalog-item__price", ".product-item__price",
			},
			rating: fieldChain{
				".product-card__rating", ".catalog-item__rating",
			},
			description: fieldChain{
				".product-card__description", ".catalog-item__description",
			},
			link:      fieldChain{"a[href*='/product/']", "a"},
			image:     fieldChain{"img"},
			idAttr:    "data-product-id",
			idPattern: gaProductRe,
		},
		reviews: fieldChain{
			"div[class*='review']", "div[class*='feedback']",
			"div[class*='comment']", "article",
		},
	}
}

func (g *GoldApple) Marketplace() string { return "goldapple" }
func (g *GoldApple) BaseURL() string     { return "https://goldapple.ru" }

func (g *GoldApple) SearchURL(query string) string {
	return fmt.Sprintf("%s/catalogsearch/result/?q=%s", g.BaseURL(), url.QueryEscape(query))
}

func (g *GoldApple) ReviewsURL(productID string) string {
	return fmt.Sprintf("%s/product/%s/", g.BaseURL(), productID)
}

func (g *GoldApple) ProductID(rawURL string) string {
	if m := gaProductRe.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}
	return ""
}

func (g *GoldApple) ListingProbe() string {
	return ".product-card, .catalog-item, .product-item"
}

func (g *GoldApple) ReviewProbe() string {
	return "[class*='review'], [class*='feedback']"
}

func (g *GoldApple) ExtractListings(doc *goquery.Document, limit int) []models.Listing {
	return extractListings(doc, g.Marketplace(), g.BaseURL(), g.listings, func(id string) string {
		return fmt.Sprintf("%s/product/%s/", g.BaseURL(), id)
	}, limit)
}

func (g *GoldApple) ExtractReviews(doc *goquery.Document, scrapedAt time.Time) []models.Review {
	return extractReviews(doc, g.reviews, g.Marketplace(), "", scrapedAt)
}
