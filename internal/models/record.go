package models

import (
	"time"
)

// Listing is a single product card extracted from a marketplace search page.
// A listing is never mutated after extraction; the next scrape of the same
// query supersedes the previous batch instead of updating it in place.
type Listing struct {
	Marketplace string  `json:"marketplace"`
	ExternalID  string  `json:"external_id"`
	Title       string  `json:"title"`
	Price       float64 `json:"price"`
	ImageURL    string  `json:"image_url,omitempty"`
	DetailURL   string  `json:"detail_url,omitempty"`
	Rating      float64 `json:"rating,omitempty"`
	Description string  `json:"description,omitempty"`
}

// AnonymousAuthor is the sentinel used when a review carries no usable
// display name.
const AnonymousAuthor = "Аноним"

// Review is a single customer review extracted from a product page.
type Review struct {
	Marketplace string    `json:"marketplace"`
	ProductID   string    `json:"product_id"`
	Author      string    `json:"author"`
	Rating      int       `json:"rating"`
	Text        string    `json:"text"`
	PostedAt    time.Time `json:"posted_at"`
	Fingerprint string    `json:"fingerprint"`
}

// ExtractionStrategy identifies which stage of the fallback chain produced
// a batch of records.
type ExtractionStrategy string

const (
	StrategySelectors ExtractionStrategy = "selectors"
	StrategyInPageJS  ExtractionStrategy = "in_page_js"
	StrategyHeuristic ExtractionStrategy = "heuristic"
	StrategyNone      ExtractionStrategy = "none"
)

// ScrapeStatus is the terminal state of one marketplace scrape task.
type ScrapeStatus string

const (
	StatusPending   ScrapeStatus = "pending"
	StatusRunning   ScrapeStatus = "running"
	StatusCompleted ScrapeStatus = "completed"
	StatusFailed    ScrapeStatus = "failed"
)

// ScrapeAttempt describes one marketplace-level scrape call. It lives only
// for the duration of the call and is never persisted.
type ScrapeAttempt struct {
	Marketplace string             `json:"marketplace"`
	Target      string             `json:"target"`
	Strategy    ExtractionStrategy `json:"strategy"`
	Status      ScrapeStatus       `json:"status"`
	Error       string             `json:"error,omitempty"`
	ItemCount   int                `json:"item_count"`
}

// MarketplaceResult is the per-marketplace entry of a dispatcher response.
// A failed marketplace is reported with an empty item list and a status
// flag, never as a hard error to the caller.
type MarketplaceResult struct {
	Marketplace string             `json:"marketplace"`
	Status      ScrapeStatus       `json:"status"`
	Strategy    ExtractionStrategy `json:"strategy,omitempty"`
	Listings    []Listing          `json:"listings,omitempty"`
	Reviews     []Review           `json:"reviews,omitempty"`
	Error       string             `json:"error,omitempty"`
}

func (r *MarketplaceResult) ItemCount() int {
	return len(r.Listings) + len(r.Reviews)
}

// Valid reports whether a listing carries the fields required to keep it.
// Candidates failing validation are dropped, not fatal.
func (l *Listing) Valid() bool {
	return l.Title != "" && l.ExternalID != "" && l.Price >= 0
}

// Valid reports whether a review carries the fields required to keep it.
func (r *Review) Valid() bool {
	return r.Text != "" && r.Rating >= 0 && r.Rating <= 5
}
