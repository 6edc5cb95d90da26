package parser

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/marketpulse/market-scraper/internal/models"
)

// reviewKeywords flag the DOM neighborhoods where review content lives.
var reviewKeywords = []string{"отзыв", "feedback", "review", "comment", "оценка"}

const (
	heuristicMinLen = 50
	heuristicMaxLen = 2000
)

// HeuristicReviews is the last-resort extraction pass: it scans block
// elements for text shaped like a review (long enough, several sentence
// breaks) whose ancestor markup mentions a review keyword. Runs only after
// the selector and in-page strategies came up empty; a higher
// false-positive rate is the accepted trade.
func HeuristicReviews(doc *goquery.Document, marketplace string, scrapedAt time.Time) []models.Review {
	var reviews []models.Review

	doc.Find("div, p, article, section").Each(func(_ int, node *goquery.Selection) {
		if node.Children().Length() > 3 {
			return
		}

		text := CollapseWhitespace(node.Text())
		n := len([]rune(text))
		if n < heuristicMinLen || n > heuristicMaxLen {
			return
		}
		if IsBoilerplate(text) {
			return
		}
		if sentenceBreaks(text) < 2 {
			return
		}
		if !ancestorMentionsReview(node) {
			return
		}

		rating := StarCountFromText(text)
		reviews = append(reviews, models.Review{
			Marketplace: marketplace,
			Author:      models.AnonymousAuthor,
			Rating:      rating,
			Text:        text,
			PostedAt:    scrapedAt,
		})
	})

	return DedupReviews(reviews)
}

func sentenceBreaks(text string) int {
	return strings.Count(text, ".") + strings.Count(text, "!") + strings.Count(text, "?")
}

func ancestorMentionsReview(node *goquery.Selection) bool {
	for parent := node.Parent(); parent.Length() > 0; parent = parent.Parent() {
		class, _ := parent.Attr("class")
		id, _ := parent.Attr("id")
		haystack := strings.ToLower(class + " " + id)
		for _, kw := range reviewKeywords {
			if strings.Contains(haystack, kw) {
				return true
			}
		}
		if goquery.NodeName(parent) == "body" {
			break
		}
	}
	return false
}
