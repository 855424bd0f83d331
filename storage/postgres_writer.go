package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"book-digest/models"
)

const archiveColumns = 12

// PostgresWriter archives the digest listings of each run to PostgreSQL.
type PostgresWriter struct {
	db *sql.DB
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(ctx context.Context, dsn string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			db.Close()
			return nil, fmt.Errorf("postgres: ping: %w", ctx.Err())
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pw := &PostgresWriter{db: db}
	if err := pw.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate(ctx context.Context) error {
	_, err := pw.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS digest_listings (
			id          SERIAL PRIMARY KEY,
			run_id      UUID         NOT NULL,
			position    INTEGER      NOT NULL,
			publisher   TEXT         NOT NULL,
			title       TEXT         NOT NULL,
			author      TEXT         NOT NULL DEFAULT '',
			price       TEXT         NOT NULL DEFAULT '',
			image_url   TEXT         NOT NULL DEFAULT '',
			link        TEXT         NOT NULL DEFAULT '#',
			excerpt     TEXT         NOT NULL DEFAULT '',
			date_meta   TEXT         NOT NULL DEFAULT '',
			local_image TEXT         NOT NULL DEFAULT '',
			has_image   BOOLEAN      NOT NULL DEFAULT FALSE,
			created_at  TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			UNIQUE (run_id, position)
		);

		CREATE INDEX IF NOT EXISTS idx_digest_listings_publisher ON digest_listings(publisher);
		CREATE INDEX IF NOT EXISTS idx_digest_listings_created   ON digest_listings(created_at);
	`)
	return err
}

// Archive batch-inserts one run's listings. Re-archiving a run is a no-op.
func (pw *PostgresWriter) Archive(ctx context.Context, runID string, listings []models.Listing) error {
	const batchSize = 50
	for i := 0; i < len(listings); i += batchSize {
		end := min(i+batchSize, len(listings))
		query, args := buildInsert(runID, i, listings[i:end])
		if _, err := pw.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("postgres: insert batch at %d: %w", i, err)
		}
	}
	return nil
}

// buildInsert renders one multi-row INSERT. offset is the position of the
// first listing of batch within the run.
func buildInsert(runID string, offset int, batch []models.Listing) (string, []any) {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]any, 0, len(batch)*archiveColumns)

	for idx, l := range batch {
		base := idx * archiveColumns
		ph := make([]string, archiveColumns)
		for c := range ph {
			ph[c] = fmt.Sprintf("$%d", base+c+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(ph, ",")+")")
		valueArgs = append(valueArgs,
			runID, offset+idx, l.PublisherKey(), l.Title, l.Author, l.Price,
			l.ImageURL, l.Link, l.Excerpt, l.DateMeta, l.LocalImage, l.ContentID != "")
	}

	query := fmt.Sprintf(`
		INSERT INTO digest_listings
			(run_id, position, publisher, title, author, price, image_url, link, excerpt, date_meta, local_image, has_image)
		VALUES %s
		ON CONFLICT (run_id, position) DO NOTHING
	`, strings.Join(valueStrings, ","))
	return query, valueArgs
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}

// FetchRun retrieves the archived listings of one run in digest order.
func (pw *PostgresWriter) FetchRun(ctx context.Context, runID string) ([]models.Listing, error) {
	rows, err := pw.db.QueryContext(ctx, `
		SELECT publisher, title, author, price, image_url, link, excerpt, date_meta, local_image
		FROM digest_listings
		WHERE run_id = $1
		ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch run: %w", err)
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		var l models.Listing
		if err := rows.Scan(
			&l.Publisher, &l.Title, &l.Author, &l.Price, &l.ImageURL,
			&l.Link, &l.Excerpt, &l.DateMeta, &l.LocalImage,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}
