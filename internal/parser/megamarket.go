package parser

import (
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/marketpulse/market-scraper/internal/models"
)

// MegaMarket (mm.ru) cards and the feedback tab. Its review markup is the
// most stable of the set, so a dedicated extraction pass runs before the
// generic container chains.
type MegaMarket struct {
	listings listingSelectors
	reviews  fieldChain
}

var mmProductRe = regexp.MustCompile(`/product/(?:[\w-]+-)?(\d+)`)

func NewMegaMarket() *MegaMarket {
	return &MegaMarket{
		listings: listingSelectors{
			container: fieldChain{"div.ui-card", ".catalog-item", ".product-card"},
			title: fieldChain{
				".card-info-block", ".item-title", ".product-card__name",
			},
			price: fieldChain{
				".price", ".product-card__price",
			},
			rating: fieldChain{".rating"},
			description: fieldChain{
				".product-card__description",
			},
			link:      fieldChain{"a[href*='/product/']", "a"},
			image:     fieldChain{"img"},
			idAttr:    "data-product-id",
			idPattern: mmProductRe,
		},
		reviews: fieldChain{
			".feedback-item", "div[class*='feedback']", "div[class*='review']",
		},
	}
}

func (m *MegaMarket) Marketplace() string { return "megamarket" }
func (m *MegaMarket) BaseURL() string     { return "https://mm.ru" }

func (m *MegaMarket) SearchURL(query string) string {
	return fmt.Sprintf("%s/search?query=%s", m.BaseURL(), url.QueryEscape(query))
}

func (m *MegaMarket) ReviewsURL(productID string) string {
	return fmt.Sprintf("%s/product/%s", m.BaseURL(), productID)
}

func (m *MegaMarket) ProductID(rawURL string) string {
	if match := mmProductRe.FindStringSubmatch(rawURL); match != nil {
		return match[1]
	}
	return ""
}

func (m *MegaMarket) ListingProbe() string {
	return "div.ui-card"
}

func (m *MegaMarket) ReviewProbe() string {
	return ".feedback-item"
}

func (m *MegaMarket) ExtractListings(doc *goquery.Document, limit int) []models.Listing {
	return extractListings(doc, m.Marketplace(), m.BaseURL(), m.listings, func(id string) string {
		return fmt.Sprintf("%s/product/%s", m.BaseURL(), id)
	}, limit)
}

func (m *MegaMarket) ExtractReviews(doc *goquery.Document, scrapedAt time.Time) []models.Review {
	reviews := m.extractFeedbackItems(doc, scrapedAt)
	if len(reviews) > 0 {
		return DedupReviews(reviews)
	}
	return extractReviews(doc, m.reviews, m.Marketplace(), "", scrapedAt)
}

// extractFeedbackItems reads the native .feedback-item markup: review body
// in div.content, rating as svg star count under .top-heading-stars.
func (m *MegaMarket) extractFeedbackItems(doc *goquery.Document, scrapedAt time.Time) []models.Review {
	var reviews []models.Review

	doc.Find(".feedback-item").Each(func(_ int, item *goquery.Selection) {
		text := CollapseWhitespace(item.Find("div.content").First().Text())
		if len([]rune(text)) < minReviewTextLen || IsBoilerplate(text) {
			return
		}

		rating := item.Find(".top-heading-stars svg").Length()
		if rating > 5 {
			rating = 5
		}

		postedAt := scrapedAt
		if raw := dateChain.text(item); raw != "" {
			postedAt = ParseDate(raw, scrapedAt)
		}

		reviews = append(reviews, models.Review{
			Marketplace: m.Marketplace(),
			Author:      SanitizeAuthor(authorChain.text(item), models.AnonymousAuthor),
			Rating:      rating,
			Text:        text,
			PostedAt:    postedAt,
		})
	})

	return reviews
}
