package scraper

import (
	"time"

	"github.com/marketpulse/market-scraper/internal/browser"
	"github.com/marketpulse/market-scraper/internal/models"
	"github.com/marketpulse/market-scraper/internal/parser"
)

// jsReviewExtract walks the live DOM from inside the page. It exists for
// late-hydrated markup where the HTML snapshot carries no review nodes:
// the match is looser than the selector chains, any element whose class
// smells like a review container.
const jsReviewExtract = `
() => {
	const selectors = [
		'[class*="feedback"]', '[class*="review"]', '[class*="comment"]',
		'[data-review-id]', '[data-feedback-id]', 'article'
	];
	const seen = new Set();
	const out = [];
	for (const selector of selectors) {
		for (const el of document.querySelectorAll(selector)) {
			const text = (el.innerText || '').replace(/\s+/g, ' ').trim();
			if (text.length < 30 || text.length > 3000) continue;
			const key = text.slice(0, 100);
			if (seen.has(key)) continue;
			seen.add(key);

			let author = '';
			const authorEl = el.querySelector('[class*="author"], [class*="user"], [class*="name"], strong, b');
			if (authorEl) author = (authorEl.innerText || '').trim();

			let rating = 0;
			const stars = el.querySelectorAll('[class*="star"]');
			for (const s of stars) {
				const cls = (s.className && s.className.baseVal) || s.className || '';
				if (String(cls).match(/fill|active/i)) rating++;
			}
			if (rating === 0) {
				const dataRating = el.getAttribute('data-rating');
				if (dataRating) rating = parseInt(dataRating, 10) || 0;
			}

			let date = '';
			const dateEl = el.querySelector('time, [class*="date"], [datetime]');
			if (dateEl) date = dateEl.getAttribute('datetime') || (dateEl.innerText || '').trim();

			out.push({ author: author, rating: rating, text: text, date: date });
		}
	}
	return out;
}
`

// jsListingExtract is the listing counterpart: any card-shaped element
// holding a product link, title and price text.
const jsListingExtract = `
() => {
	const out = [];
	const seen = new Set();
	for (const el of document.querySelectorAll('[class*="product"], [class*="card"], [class*="tile"], article')) {
		const link = el.querySelector('a[href*="/product"], a[href*="/catalog"]');
		if (!link) continue;
		const href = link.getAttribute('href') || '';
		if (seen.has(href)) continue;
		const text = (el.innerText || '').replace(/\s+/g, ' ').trim();
		if (text.length < 10) continue;
		seen.add(href);

		let title = '';
		const titleEl = el.querySelector('[class*="name"], [class*="title"], h2, h3');
		if (titleEl) title = (titleEl.innerText || '').trim();

		let price = '';
		const priceEl = el.querySelector('[class*="price"]');
		if (priceEl) price = (priceEl.innerText || '').trim();

		let image = '';
		const img = el.querySelector('img');
		if (img) image = img.getAttribute('src') || '';

		out.push({ href: href, title: title, price: price, image: image });
	}
	return out;
}
`

// evalReviews runs the in-page review walk and converts the raw maps the
// evaluator hands back.
func evalReviews(page browser.Pager, strat parser.Strategy, scrapedAt time.Time) []models.Review {
	raw, err := page.Evaluate(jsReviewExtract)
	if err != nil {
		return nil
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil
	}

	reviews := make([]models.Review, 0, len(items))
	for _, item := range items {
		fields, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		text := parser.CollapseWhitespace(asString(fields["text"]))
		if text == "" || parser.IsBoilerplate(text) {
			continue
		}
		rating := asInt(fields["rating"])
		if rating < 0 || rating > 5 {
			rating = 0
		}
		reviews = append(reviews, models.Review{
			Marketplace: strat.Marketplace(),
			Author:      parser.SanitizeAuthor(asString(fields["author"]), models.AnonymousAuthor),
			Rating:      rating,
			Text:        text,
			PostedAt:    parser.ParseDate(asString(fields["date"]), scrapedAt),
		})
	}
	return parser.DedupReviews(reviews)
}

// evalListings runs the in-page listing walk.
func evalListings(page browser.Pager, strat parser.Strategy, limit int) []models.Listing {
	raw, err := page.Evaluate(jsListingExtract)
	if err != nil {
		return nil
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil
	}

	listings := make([]models.Listing, 0, len(items))
	for _, item := range items {
		if limit > 0 && len(listings) >= limit {
			break
		}
		fields, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		href := asString(fields["href"])
		listing := models.Listing{
			Marketplace: strat.Marketplace(),
			ExternalID:  strat.ProductID(href),
			Title:       parser.CollapseWhitespace(asString(fields["title"])),
			Price:       parser.CleanPrice(asString(fields["price"])),
			DetailURL:   parser.AbsoluteURL(strat.BaseURL(), href),
			ImageURL:    parser.AbsoluteURL(strat.BaseURL(), asString(fields["image"])),
		}
		if listing.Valid() {
			listings = append(listings, listing)
		}
	}
	return parser.DedupListings(listings)
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
