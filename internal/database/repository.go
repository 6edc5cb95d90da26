package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/marketpulse/market-scraper/internal/models"
)

// EnsureSchema creates the result tables if they do not exist yet. Safe to
// call on every startup.
func (db *DB) EnsureSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS listings (
			id           BIGSERIAL PRIMARY KEY,
			query        TEXT NOT NULL,
			marketplace  TEXT NOT NULL,
			external_id  TEXT NOT NULL,
			title        TEXT NOT NULL,
			price        DOUBLE PRECISION NOT NULL DEFAULT 0,
			image_url    TEXT,
			detail_url   TEXT,
			rating       DOUBLE PRECISION,
			description  TEXT,
			scraped_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_listings_query_marketplace
			ON listings (query, marketplace);

		CREATE TABLE IF NOT EXISTS reviews (
			fingerprint  TEXT PRIMARY KEY,
			marketplace  TEXT NOT NULL,
			product_id   TEXT NOT NULL,
			author       TEXT NOT NULL,
			rating       INT NOT NULL,
			review_text  TEXT NOT NULL,
			posted_at    TIMESTAMPTZ,
			scraped_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_reviews_product
			ON reviews (marketplace, product_id);`

	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// SaveListings replaces the stored batch for (query, marketplace) with the
// given one. A rescrape supersedes, it never merges.
func (db *DB) SaveListings(ctx context.Context, query, marketplace string, listings []models.Listing) error {
	return db.Transaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM listings WHERE query = $1 AND marketplace = $2`,
			query, marketplace,
		); err != nil {
			return fmt.Errorf("failed to clear previous batch: %w", err)
		}

		now := time.Now()
		for _, l := range listings {
			if _, err := tx.Exec(ctx, `
				INSERT INTO listings
					(query, marketplace, external_id, title, price, image_url, detail_url, rating, description, scraped_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
				query, l.Marketplace, l.ExternalID, l.Title, l.Price,
				l.ImageURL, l.DetailURL, l.Rating, l.Description, now,
			); err != nil {
				return fmt.Errorf("failed to insert listing %s: %w", l.ExternalID, err)
			}
		}
		return nil
	})
}

// SaveReviews inserts the reviews that have not been seen before. The
// fingerprint key makes repeated scrapes of the same product idempotent.
// Returns the number of newly stored rows.
func (db *DB) SaveReviews(ctx context.Context, reviews []models.Review) (int, error) {
	inserted := 0
	err := db.Transaction(ctx, func(tx pgx.Tx) error {
		for _, r := range reviews {
			var postedAt interface{}
			if !r.PostedAt.IsZero() {
				postedAt = r.PostedAt
			}
			tag, err := tx.Exec(ctx, `
				INSERT INTO reviews
					(fingerprint, marketplace, product_id, author, rating, review_text, posted_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (fingerprint) DO NOTHING`,
				r.Fingerprint, r.Marketplace, r.ProductID, r.Author, r.Rating, r.Text, postedAt,
			)
			if err != nil {
				return fmt.Errorf("failed to insert review: %w", err)
			}
			inserted += int(tag.RowsAffected())
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// ListingsForQuery returns the stored batch for (query, marketplace).
func (db *DB) ListingsForQuery(ctx context.Context, query, marketplace string) ([]models.Listing, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT marketplace, external_id, title, price,
		       COALESCE(image_url, ''), COALESCE(detail_url, ''),
		       COALESCE(rating, 0), COALESCE(description, '')
		FROM listings
		WHERE query = $1 AND marketplace = $2
		ORDER BY id`,
		query, marketplace,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query listings: %w", err)
	}
	defer rows.Close()

	var out []models.Listing
	for rows.Next() {
		var l models.Listing
		if err := rows.Scan(&l.Marketplace, &l.ExternalID, &l.Title, &l.Price,
			&l.ImageURL, &l.DetailURL, &l.Rating, &l.Description); err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ReviewsForProduct returns the stored reviews of one product.
func (db *DB) ReviewsForProduct(ctx context.Context, marketplace, productID string) ([]models.Review, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT fingerprint, marketplace, product_id, author, rating, review_text,
		       COALESCE(posted_at, 'epoch'::timestamptz)
		FROM reviews
		WHERE marketplace = $1 AND product_id = $2
		ORDER BY posted_at DESC NULLS LAST`,
		marketplace, productID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}
	defer rows.Close()

	var out []models.Review
	for rows.Next() {
		var r models.Review
		if err := rows.Scan(&r.Fingerprint, &r.Marketplace, &r.ProductID,
			&r.Author, &r.Rating, &r.Text, &r.PostedAt); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
