package parser

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/marketpulse/market-scraper/internal/models"
)

// fingerprintPrefixLen bounds how much normalized text feeds the dedup
// hash; near-duplicate DOM matches of one review share this prefix.
const fingerprintPrefixLen = 100

// Fingerprint hashes the normalized prefix of a review text into the key
// used to collapse duplicates.
func Fingerprint(text string) string {
	norm := strings.ToLower(CollapseWhitespace(text))
	runes := []rune(norm)
	if len(runes) > fingerprintPrefixLen {
		runes = runes[:fingerprintPrefixLen]
	}
	return fmt.Sprintf("%016x", xxhash.Sum64String(string(runes)))
}

// DedupReviews assigns fingerprints and keeps the first-seen record per
// fingerprint, preserving DOM order.
func DedupReviews(in []models.Review) []models.Review {
	out := make([]models.Review, 0, len(in))
	seen := make(map[string]struct{}, len(in))

	for _, r := range in {
		if r.Fingerprint == "" {
			r.Fingerprint = Fingerprint(r.Text)
		}
		if _, dup := seen[r.Fingerprint]; dup {
			continue
		}
		seen[r.Fingerprint] = struct{}{}
		out = append(out, r)
	}
	return out
}

// DedupListings keeps the first-seen listing per (marketplace, external id).
func DedupListings(in []models.Listing) []models.Listing {
	out := make([]models.Listing, 0, len(in))
	seen := make(map[string]struct{}, len(in))

	for _, l := range in {
		key := l.Marketplace + "|" + l.ExternalID
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, l)
	}
	return out
}

// AbsoluteURL resolves href against the marketplace base URL. Already
// absolute links and unparseable input pass through unchanged.
func AbsoluteURL(base, href string) string {
	if href == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	h, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(h).String()
}
