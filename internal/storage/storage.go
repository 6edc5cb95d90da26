package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/marketpulse/market-scraper/internal/models"
)

// FileSink persists scrape batches as JSON files on disk. It is the
// fallback sink for deployments running without Postgres; one file per
// (query, marketplace) batch, reviews keyed by fingerprint.
type FileSink struct {
	mu  sync.Mutex
	dir string
}

type listingBatch struct {
	Query       string           `json:"query"`
	Marketplace string           `json:"marketplace"`
	ScrapedAt   time.Time        `json:"scraped_at"`
	Listings    []models.Listing `json:"listings"`
}

func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sink directory: %w", err)
	}
	return &FileSink{dir: dir}, nil
}

// SaveListings writes the batch file for (query, marketplace), replacing
// any previous batch for the same pair.
func (s *FileSink) SaveListings(ctx context.Context, query, marketplace string, listings []models.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := listingBatch{
		Query:       query,
		Marketplace: marketplace,
		ScrapedAt:   time.Now().UTC(),
		Listings:    listings,
	}

	return s.writeJSON(s.listingPath(query, marketplace), batch)
}

// SaveReviews merges reviews into the per-product file, skipping
// fingerprints already stored. Returns the number of new reviews.
func (s *FileSink) SaveReviews(ctx context.Context, reviews []models.Review) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byFile := make(map[string][]models.Review)
	for _, r := range reviews {
		path := s.reviewPath(r.Marketplace, r.ProductID)
		byFile[path] = append(byFile[path], r)
	}

	inserted := 0
	for path, batch := range byFile {
		existing, err := s.readReviews(path)
		if err != nil {
			return inserted, err
		}

		seen := make(map[string]struct{}, len(existing))
		for _, r := range existing {
			seen[r.Fingerprint] = struct{}{}
		}

		for _, r := range batch {
			if _, dup := seen[r.Fingerprint]; dup {
				continue
			}
			seen[r.Fingerprint] = struct{}{}
			existing = append(existing, r)
			inserted++
		}

		if err := s.writeJSON(path, existing); err != nil {
			return inserted, err
		}
	}

	return inserted, nil
}

// ListingsForQuery reads back a stored batch; an absent batch is an empty
// slice, not an error.
func (s *FileSink) ListingsForQuery(ctx context.Context, query, marketplace string) ([]models.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.listingPath(query, marketplace))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read batch: %w", err)
	}

	var batch listingBatch
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("failed to decode batch: %w", err)
	}
	return batch.Listings, nil
}

// ReviewsForProduct reads back the stored reviews of one product.
func (s *FileSink) ReviewsForProduct(ctx context.Context, marketplace, productID string) ([]models.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.readReviews(s.reviewPath(marketplace, productID))
}

func (s *FileSink) readReviews(path string) ([]models.Review, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read reviews: %w", err)
	}

	var reviews []models.Review
	if err := json.Unmarshal(data, &reviews); err != nil {
		return nil, fmt.Errorf("failed to decode reviews: %w", err)
	}
	return reviews, nil
}

func (s *FileSink) writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write: %w", err)
	}
	return os.Rename(tmp, path)
}

func (s *FileSink) listingPath(query, marketplace string) string {
	return filepath.Join(s.dir, fmt.Sprintf("listings_%s_%s.json", sanitize(query), sanitize(marketplace)))
}

func (s *FileSink) reviewPath(marketplace, productID string) string {
	return filepath.Join(s.dir, fmt.Sprintf("reviews_%s_%s.json", sanitize(marketplace), sanitize(productID)))
}

// sanitize keeps file names portable across filesystems.
func sanitize(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		case r >= 'а' && r <= 'я', r >= 'А' && r <= 'Я', r == 'ё', r == 'Ё':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	if len(out) > 64 {
		out = out[:64]
	}
	return string(out)
}
