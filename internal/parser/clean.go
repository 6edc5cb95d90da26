package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	nonPriceChars = regexp.MustCompile(`[^\d.,]`)
	ratingNumRe   = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
	whitespaceRun = regexp.MustCompile(`\s+`)
	starCountRe   = regexp.MustCompile(`(?i)(\d)\s*(?:звезд|звёзд|star|⭐)`)
)

// CleanPrice converts a marketplace price string ("2 590 ₽", "1.299,00") to
// a non-negative decimal. Unparseable input yields 0.0, never an error.
// Values above a million are assumed to be minor-unit markup and divided
// by 100.
func CleanPrice(raw string) float64 {
	s := nonPriceChars.ReplaceAllString(raw, "")
	if s == "" {
		return 0
	}

	// The rightmost separator followed by one or two digits is the decimal
	// mark; every other separator is a thousands group.
	decimalAt := -1
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] != ',' && s[i] != '.' {
			continue
		}
		if tail := len(s) - 1 - i; tail >= 1 && tail <= 2 {
			decimalAt = i
		}
		break
	}

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] >= '0' && s[i] <= '9':
			b.WriteByte(s[i])
		case i == decimalAt:
			b.WriteByte('.')
		}
	}

	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil || v < 0 {
		return 0
	}
	if v > 1_000_000 {
		v = v / 100
	}
	return v
}

// CleanRating parses a 0–5 rating value; out-of-range and unparseable
// input normalizes to 0. Only the first number in the string counts, so
// "4.8 из 5" reads as 4.8 rather than the digits collapsing together.
func CleanRating(raw string) float64 {
	s := ratingNumRe.FindString(raw)
	if s == "" {
		return 0
	}
	s = strings.Replace(s, ",", ".", 1)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || v > 5 {
		return 0
	}
	return v
}

// ReviewRating parses an integer star rating, clamped to [0,5].
func ReviewRating(raw string) int {
	v := int(CleanRating(raw))
	if v < 0 {
		return 0
	}
	if v > 5 {
		return 5
	}
	return v
}

// StarCountFromText finds "N звезд" / "N star" phrasing inside free text.
func StarCountFromText(text string) int {
	m := starCountRe.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n > 5 {
		return 0
	}
	return n
}

// CollapseWhitespace trims and squeezes whitespace runs to single spaces.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

var russianMonths = map[string]time.Month{
	"января": time.January, "февраля": time.February, "марта": time.March,
	"апреля": time.April, "мая": time.May, "июня": time.June,
	"июля": time.July, "августа": time.August, "сентября": time.September,
	"октября": time.October, "ноября": time.November, "декабря": time.December,
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02.01.2006",
	"02.01.2006 15:04",
}

var russianDateRe = regexp.MustCompile(`(\d{1,2})\s+([а-яё]+)(?:\s+(\d{4}))?`)

// ParseDate makes a best-effort pass over the date formats marketplaces
// render (ISO timestamps, dotted dates, "2 января 2024"). Unparseable input
// falls back to now, which callers pass as the scrape time.
func ParseDate(raw string, now time.Time) time.Time {
	s := strings.TrimSpace(raw)
	if s == "" {
		return now
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}

	if m := russianDateRe.FindStringSubmatch(strings.ToLower(s)); m != nil {
		if month, ok := russianMonths[m[2]]; ok {
			day, _ := strconv.Atoi(m[1])
			year := now.Year()
			if m[3] != "" {
				year, _ = strconv.Atoi(m[3])
			}
			if day >= 1 && day <= 31 {
				return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
			}
		}
	}

	return now
}

// boilerplateMarkers flag UI chrome that leaks into review containers.
var boilerplateMarkers = []string{
	"cookie", "куки", "согласие", "политика", "copyright",
}

// IsBoilerplate reports whether text is consent-banner or footer chrome
// rather than review content.
func IsBoilerplate(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range boilerplateMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// SanitizeAuthor collapses empty or implausibly long display names to the
// anonymous sentinel.
func SanitizeAuthor(name, sentinel string) string {
	name = CollapseWhitespace(name)
	if name == "" || utf8.RuneCountInString(name) > 50 {
		return sentinel
	}
	return name
}
