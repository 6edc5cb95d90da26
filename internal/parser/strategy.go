package parser

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/marketpulse/market-scraper/internal/models"
)

// Strategy converts loaded marketplace pages into structured records. One
// variant exists per supported marketplace; the registry is the closed set
// of them. Extraction never returns an error: total failure is an empty
// slice.
type Strategy interface {
	Marketplace() string
	BaseURL() string
	SearchURL(query string) string
	ReviewsURL(productID string) string
	// ProductID extracts the marketplace-native identifier from a product
	// URL; empty when the URL shape is not recognized.
	ProductID(rawURL string) string
	// ListingProbe and ReviewProbe are the DOM count probes the scroll
	// driver polls while lazy content loads.
	ListingProbe() string
	ReviewProbe() string
	ExtractListings(doc *goquery.Document, limit int) []models.Listing
	ExtractReviews(doc *goquery.Document, scrapedAt time.Time) []models.Review
}

// Registry maps marketplace identifiers to their strategy at startup.
type Registry struct {
	strategies map[string]Strategy
}

func NewRegistry(strategies ...Strategy) *Registry {
	r := &Registry{strategies: make(map[string]Strategy, len(strategies))}
	for _, s := range strategies {
		r.strategies[s.Marketplace()] = s
	}
	return r
}

// DefaultRegistry returns the closed set of supported marketplaces.
func DefaultRegistry() *Registry {
	return NewRegistry(
		NewWildberries(),
		NewOzon(),
		NewYandexMarket(),
		NewGoldApple(),
		NewMegaMarket(),
	)
}

func (r *Registry) Get(marketplace string) (Strategy, bool) {
	s, ok := r.strategies[strings.ToLower(strings.TrimSpace(marketplace))]
	return s, ok
}

func (r *Registry) Supported(marketplace string) bool {
	_, ok := r.Get(marketplace)
	return ok
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// fieldChain is an ordered selector list for one field, most-specific
// first. Chains fall through independently: a missing optional field
// degrades to its zero value without failing the record.
type fieldChain []string

func (c fieldChain) text(s *goquery.Selection) string {
	for _, sel := range c {
		if found := s.Find(sel).First(); found.Length() > 0 {
			if text := CollapseWhitespace(found.Text()); text != "" {
				return text
			}
		}
	}
	return ""
}

func (c fieldChain) attr(s *goquery.Selection, name string) string {
	for _, sel := range c {
		if found := s.Find(sel).First(); found.Length() > 0 {
			if v, ok := found.Attr(name); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
	}
	return ""
}

// containers returns the matches of the first selector in the chain that
// yields any, so a stale primary selector degrades to the next revision.
func (c fieldChain) containers(doc *goquery.Document) *goquery.Selection {
	for _, sel := range c {
		if found := doc.Find(sel); found.Length() > 0 {
			return found
		}
	}
	return doc.Find(c[len(c)-1])
}

// listingSelectors is the per-marketplace selector inventory the shared
// listing extractor runs on.
type listingSelectors struct {
	container   fieldChain
	title       fieldChain
	price       fieldChain
	rating      fieldChain
	description fieldChain
	link        fieldChain
	image       fieldChain
	idAttr      string
	idPattern   *regexp.Regexp
}

// extractListings applies the selector chains card by card. Cards without
// a resolvable identifier or title are dropped, not fatal.
func extractListings(doc *goquery.Document, mp, baseURL string, sel listingSelectors, detailURL func(id string) string, limit int) []models.Listing {
	listings := make([]models.Listing, 0, limit)

	sel.container.containers(doc).EachWithBreak(func(_ int, card *goquery.Selection) bool {
		if limit > 0 && len(listings) >= limit {
			return false
		}

		id := ""
		if sel.idAttr != "" {
			id, _ = card.Attr(sel.idAttr)
		}
		href := sel.link.attr(card, "href")
		if id == "" && href != "" && sel.idPattern != nil {
			if m := sel.idPattern.FindStringSubmatch(href); m != nil {
				id = m[len(m)-1]
			}
		}

		listing := models.Listing{
			Marketplace: mp,
			ExternalID:  id,
			Title:       sel.title.text(card),
			Price:       CleanPrice(sel.price.text(card)),
			Rating:      CleanRating(sel.rating.text(card)),
			Description: sel.description.text(card),
			ImageURL:    AbsoluteURL(baseURL, sel.image.attr(card, "src")),
		}

		switch {
		case href != "":
			listing.DetailURL = AbsoluteURL(baseURL, href)
		case id != "" && detailURL != nil:
			listing.DetailURL = detailURL(id)
		}

		if listing.Valid() {
			listings = append(listings, listing)
		}
		return true
	})

	return listings
}

var (
	authorChain = fieldChain{
		"[class*='author']", "[class*='user']", "[class*='name'] strong",
		"strong", "b",
	}
	dateChain = fieldChain{
		"time", "[class*='date']",
	}
)

// reviewFromContainer pulls author, rating, text and date out of one
// candidate review node the way every marketplace variant shares: class
// keyword probes first, text-shape heuristics after.
func reviewFromContainer(node *goquery.Selection, mp, productID string, scrapedAt time.Time) (models.Review, bool) {
	text := longestParagraph(node)
	if text == "" || IsBoilerplate(text) {
		return models.Review{}, false
	}

	rating := countFilledStars(node)
	if rating == 0 {
		rating = StarCountFromText(node.Text())
	}
	if rating == 0 {
		if v, ok := node.Attr("data-rating"); ok {
			rating = ReviewRating(v)
		}
	}

	postedAt := scrapedAt
	if node.Find("time").Length() > 0 {
		t := node.Find("time").First()
		raw, ok := t.Attr("datetime")
		if !ok {
			raw = t.Text()
		}
		postedAt = ParseDate(raw, scrapedAt)
	} else if raw := dateChain.text(node); raw != "" {
		postedAt = ParseDate(raw, scrapedAt)
	}

	return models.Review{
		Marketplace: mp,
		ProductID:   productID,
		Author:      SanitizeAuthor(authorChain.text(node), models.AnonymousAuthor),
		Rating:      rating,
		Text:        text,
		PostedAt:    postedAt,
	}, true
}

// extractReviews walks the container chain and parses each candidate node.
// Duplicate DOM matches of one review are collapsed later by fingerprint.
func extractReviews(doc *goquery.Document, containerChain fieldChain, mp, productID string, scrapedAt time.Time) []models.Review {
	var reviews []models.Review

	for _, sel := range containerChain {
		doc.Find(sel).Each(func(_ int, node *goquery.Selection) {
			if review, ok := reviewFromContainer(node, mp, productID, scrapedAt); ok {
				reviews = append(reviews, review)
			}
		})
	}

	return DedupReviews(reviews)
}

// longestParagraph picks the longest block of text inside a review node,
// skipping UI chrome lines that leak into the container.
func longestParagraph(node *goquery.Selection) string {
	best := ""
	node.Find("p, span, div").Each(func(_ int, p *goquery.Selection) {
		if p.Children().Length() > 0 {
			return
		}
		text := CollapseWhitespace(p.Text())
		if len([]rune(text)) > len([]rune(best)) && !IsBoilerplate(text) {
			best = text
		}
	})

	if len([]rune(best)) < minReviewTextLen {
		full := CollapseWhitespace(node.Text())
		if len([]rune(full)) >= minReviewTextLen && !IsBoilerplate(full) {
			return full
		}
		return ""
	}
	return best
}

// minReviewTextLen filters out ratings-only stubs and stray labels.
const minReviewTextLen = 20

// countFilledStars counts star icons whose class marks them active.
func countFilledStars(node *goquery.Selection) int {
	count := 0
	node.Find("[class*='star']").Each(func(_ int, star *goquery.Selection) {
		class, _ := star.Attr("class")
		lower := strings.ToLower(class)
		if strings.Contains(lower, "fill") || strings.Contains(lower, "active") {
			count++
		}
	})
	if count > 5 {
		return 5
	}
	return count
}
