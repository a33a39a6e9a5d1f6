package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/kaylam/govsignals/internal/model"
)

// PostgresSourceRepo is the PostgreSQL SourceRepository.
type PostgresSourceRepo struct {
	db *sql.DB
}

// NewPostgresSourceRepo builds a PostgresSourceRepo.
func NewPostgresSourceRepo(db *sql.DB) *PostgresSourceRepo {
	return &PostgresSourceRepo{db: db}
}

const sourceColumns = `id, slug, department, category, language_urls, cursors, active, created_at, updated_at`

// FindBySlug returns the source with the given slug, or nil.
func (r *PostgresSourceRepo) FindBySlug(ctx context.Context, slug string) (*model.FeedSource, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sourceColumns+` FROM feed_sources WHERE slug = $1`,
		slug,
	)

	source, err := scanSource(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find source by slug: %w", err)
	}
	return source, nil
}

// ListActive returns all active sources ordered by slug.
func (r *PostgresSourceRepo) ListActive(ctx context.Context) ([]*model.FeedSource, error) {
	return r.list(ctx, `SELECT `+sourceColumns+` FROM feed_sources WHERE active ORDER BY slug`)
}

// ListAll returns every source ordered by slug.
func (r *PostgresSourceRepo) ListAll(ctx context.Context) ([]*model.FeedSource, error) {
	return r.list(ctx, `SELECT `+sourceColumns+` FROM feed_sources ORDER BY slug`)
}

func (r *PostgresSourceRepo) list(ctx context.Context, query string) ([]*model.FeedSource, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	var sources []*model.FeedSource
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, source)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sources: %w", err)
	}
	return sources, nil
}

// Create inserts a new source.
func (r *PostgresSourceRepo) Create(ctx context.Context, source *model.FeedSource) error {
	urls, err := json.Marshal(source.LanguageURLs)
	if err != nil {
		return fmt.Errorf("failed to encode language URLs: %w", err)
	}
	cursors, err := marshalCursors(source.Cursors)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO feed_sources (id, slug, department, category, language_urls, cursors, active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		source.ID, source.Slug, source.Department, source.Category,
		urls, cursors, source.Active, source.CreatedAt, source.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create source: %w", err)
	}
	return nil
}

// UpdateMetadata updates catalog-owned fields, leaving cursors alone.
func (r *PostgresSourceRepo) UpdateMetadata(ctx context.Context, source *model.FeedSource) error {
	urls, err := json.Marshal(source.LanguageURLs)
	if err != nil {
		return fmt.Errorf("failed to encode language URLs: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE feed_sources SET
		    department = $2, category = $3, language_urls = $4,
		    active = $5, updated_at = $6
		 WHERE id = $1`,
		source.ID, source.Department, source.Category, urls,
		source.Active, source.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update source metadata: %w", err)
	}
	return nil
}

// UpdateCursor records a successful fetch for one language by merging the
// timestamp into the cursors document in place.
func (r *PostgresSourceRepo) UpdateCursor(ctx context.Context, sourceID string, lang model.Language, fetchedAt time.Time) error {
	value, err := json.Marshal(fetchedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to encode cursor value: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE feed_sources SET
		    cursors = jsonb_set(cursors, ARRAY[$2], $3::jsonb, true),
		    updated_at = now()
		 WHERE id = $1`,
		sourceID, string(lang), string(value),
	)
	if err != nil {
		return fmt.Errorf("failed to update cursor: %w", err)
	}
	return nil
}

// DeactivateMissing deactivates active sources not listed in keepSlugs.
func (r *PostgresSourceRepo) DeactivateMissing(ctx context.Context, keepSlugs []string) (int, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE feed_sources SET active = FALSE, updated_at = now()
		 WHERE active AND slug <> ALL($1)`,
		pq.Array(keepSlugs),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate sources: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return int(n), nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*model.FeedSource, error) {
	source := &model.FeedSource{}
	var urls, cursors []byte

	err := row.Scan(
		&source.ID, &source.Slug, &source.Department, &source.Category,
		&urls, &cursors, &source.Active, &source.CreatedAt, &source.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(urls, &source.LanguageURLs); err != nil {
		return nil, fmt.Errorf("failed to decode language URLs: %w", err)
	}
	source.Cursors, err = unmarshalCursors(cursors)
	if err != nil {
		return nil, err
	}

	return source, nil
}

func marshalCursors(cursors map[model.Language]time.Time) ([]byte, error) {
	out := make(map[model.Language]string, len(cursors))
	for lang, t := range cursors {
		out[lang] = t.UTC().Format(time.RFC3339Nano)
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cursors: %w", err)
	}
	return data, nil
}

func unmarshalCursors(data []byte) (map[model.Language]time.Time, error) {
	raw := make(map[model.Language]string)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to decode cursors: %w", err)
		}
	}
	cursors := make(map[model.Language]time.Time, len(raw))
	for lang, s := range raw {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, fmt.Errorf("failed to parse cursor for %s: %w", lang, err)
		}
		cursors[lang] = t
	}
	return cursors, nil
}
