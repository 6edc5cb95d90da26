package scraper

import (
	"errors"
)

var (
	// ErrUnsupportedMarketplace is the only scrape failure surfaced to the
	// caller as a client error; everything else degrades to a partial
	// result.
	ErrUnsupportedMarketplace = errors.New("unsupported marketplace")

	// ErrExtractionEmpty means every strategy in the fallback chain came
	// up empty for a page that did load.
	ErrExtractionEmpty = errors.New("all extraction strategies yielded nothing")

	// ErrMissingProductRef means a reviews scrape was requested without a
	// product URL or identifier.
	ErrMissingProductRef = errors.New("product url or id required")
)
