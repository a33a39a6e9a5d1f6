package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/kaylam/govsignals/internal/model"
)

// PostgresSignalRepo is the PostgreSQL SignalRepository.
type PostgresSignalRepo struct {
	db *sql.DB
}

// NewPostgresSignalRepo builds a PostgresSignalRepo.
func NewPostgresSignalRepo(db *sql.DB) *PostgresSignalRepo {
	return &PostgresSignalRepo{db: db}
}

const signalColumns = `id, source_id, category, published_at, content, severity,
	relevance_score, enrichment_status, image_status, enriched, version,
	created_at, updated_at`

// FindByID returns the signal with the given ID, or nil.
func (r *PostgresSignalRepo) FindByID(ctx context.Context, id string) (*model.Signal, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+signalColumns+` FROM signals WHERE id = $1`,
		id,
	)

	signal, err := scanSignal(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find signal: %w", err)
	}
	return signal, nil
}

// Create inserts a new signal.
func (r *PostgresSignalRepo) Create(ctx context.Context, signal *model.Signal) error {
	content, err := json.Marshal(signal.Content)
	if err != nil {
		return fmt.Errorf("failed to encode content: %w", err)
	}
	enriched, err := marshalEnriched(signal.Enriched)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO signals (id, source_id, category, published_at, content, severity,
		                      relevance_score, enrichment_status, image_status, enriched,
		                      version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		signal.ID, signal.SourceID, signal.Category, signal.PublishedAt, content,
		signal.Severity, signal.RelevanceScore, signal.EnrichmentStatus,
		signal.ImageStatus, enriched, signal.Version, signal.CreatedAt, signal.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create signal: %w", err)
	}
	return nil
}

// UpdateContent writes content and scores guarded by the version column.
// Returns false when the version moved underneath us.
func (r *PostgresSignalRepo) UpdateContent(ctx context.Context, signal *model.Signal) (bool, error) {
	content, err := json.Marshal(signal.Content)
	if err != nil {
		return false, fmt.Errorf("failed to encode content: %w", err)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE signals SET
		    content = $2, severity = $3, relevance_score = $4,
		    published_at = $5, version = version + 1, updated_at = $6
		 WHERE id = $1 AND version = $7`,
		signal.ID, content, signal.Severity, signal.RelevanceScore,
		signal.PublishedAt, signal.UpdatedAt, signal.Version,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update signal content: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

// ListPendingEnrichment returns up to limit pending signals, oldest
// first so long-waiting signals are served before fresh ones.
func (r *PostgresSignalRepo) ListPendingEnrichment(ctx context.Context, limit int) ([]*model.Signal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+signalColumns+` FROM signals
		 WHERE enrichment_status = $1
		 ORDER BY created_at ASC
		 LIMIT $2`,
		model.EnrichmentPending, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending signals: %w", err)
	}
	defer rows.Close()

	var signals []*model.Signal
	for rows.Next() {
		signal, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}
		signals = append(signals, signal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate signals: %w", err)
	}
	return signals, nil
}

// TransitionEnrichment moves the status forward. The allowed source
// states are derived from the state machine and enforced in the WHERE
// clause, so concurrent writers cannot regress a signal.
func (r *PostgresSignalRepo) TransitionEnrichment(ctx context.Context, id string, to model.EnrichmentStatus, fields *model.EnrichedFields) (bool, error) {
	allowed := allowedSources(to)
	if len(allowed) == 0 {
		return false, fmt.Errorf("no valid transition into status %q", to)
	}

	enriched, err := marshalEnriched(fields)
	if err != nil {
		return false, err
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE signals SET
		    enrichment_status = $2,
		    enriched = COALESCE($3, enriched),
		    updated_at = now()
		 WHERE id = $1 AND enrichment_status = ANY($4)`,
		id, to, enriched, pq.Array(allowed),
	)
	if err != nil {
		return false, fmt.Errorf("failed to transition enrichment status: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

// UpdateImageStatus settles the image state and merges image fields into
// the enriched document when provided.
func (r *PostgresSignalRepo) UpdateImageStatus(ctx context.Context, id string, status model.ImageStatus, fields *model.EnrichedFields) error {
	enriched, err := marshalEnriched(fields)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE signals SET
		    image_status = $2,
		    enriched = COALESCE($3, enriched),
		    updated_at = now()
		 WHERE id = $1`,
		id, status, enriched,
	)
	if err != nil {
		return fmt.Errorf("failed to update image status: %w", err)
	}
	return nil
}

// RefreshPublicView rebuilds the materialized view. CONCURRENTLY keeps
// readers unblocked during the refresh.
func (r *PostgresSignalRepo) RefreshPublicView(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `REFRESH MATERIALIZED VIEW CONCURRENTLY public_signals_view`)
	if err != nil {
		return fmt.Errorf("failed to refresh public view: %w", err)
	}
	return nil
}

// ListPublic reads the public view, newest first.
func (r *PostgresSignalRepo) ListPublic(ctx context.Context, filter PublicFilter) ([]model.PublicSignal, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, source_slug, department, category, title, summary,
		        severity, relevance_score, image_url, languages, published_at
		 FROM public_signals_view
		 WHERE ($1 = '' OR category = $1)
		   AND severity >= $2
		 ORDER BY published_at DESC
		 LIMIT $3`,
		filter.Category, filter.MinSeverity, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list public signals: %w", err)
	}
	defer rows.Close()

	var signals []model.PublicSignal
	for rows.Next() {
		signal, err := scanPublicSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan public signal: %w", err)
		}
		signals = append(signals, signal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate public signals: %w", err)
	}
	return signals, nil
}

// FindPublicByID reads one public view row, or nil.
func (r *PostgresSignalRepo) FindPublicByID(ctx context.Context, id string) (*model.PublicSignal, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, source_slug, department, category, title, summary,
		        severity, relevance_score, image_url, languages, published_at
		 FROM public_signals_view WHERE id = $1`,
		id,
	)

	signal, err := scanPublicSignal(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find public signal: %w", err)
	}
	return &signal, nil
}

// allowedSources lists the states a forward transition into "to" may
// start from, per the state machine in the model package.
func allowedSources(to model.EnrichmentStatus) []string {
	candidates := []model.EnrichmentStatus{
		model.EnrichmentPending,
		model.EnrichmentEnriched,
		model.EnrichmentReady,
		model.EnrichmentFailed,
	}
	var allowed []string
	for _, from := range candidates {
		if model.CanTransition(from, to) {
			allowed = append(allowed, string(from))
		}
	}
	return allowed
}

func scanSignal(row rowScanner) (*model.Signal, error) {
	signal := &model.Signal{}
	var content []byte
	var enriched []byte

	err := row.Scan(
		&signal.ID, &signal.SourceID, &signal.Category, &signal.PublishedAt,
		&content, &signal.Severity, &signal.RelevanceScore,
		&signal.EnrichmentStatus, &signal.ImageStatus, &enriched,
		&signal.Version, &signal.CreatedAt, &signal.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(content, &signal.Content); err != nil {
		return nil, fmt.Errorf("failed to decode content: %w", err)
	}
	if len(enriched) > 0 {
		signal.Enriched = &model.EnrichedFields{}
		if err := json.Unmarshal(enriched, signal.Enriched); err != nil {
			return nil, fmt.Errorf("failed to decode enriched fields: %w", err)
		}
	}

	return signal, nil
}

func scanPublicSignal(row rowScanner) (model.PublicSignal, error) {
	var signal model.PublicSignal
	var languages pq.StringArray

	err := row.Scan(
		&signal.ID, &signal.SourceSlug, &signal.Department, &signal.Category,
		&signal.Title, &signal.Summary, &signal.Severity, &signal.Relevance,
		&signal.ImageURL, &languages, &signal.PublishedAt,
	)
	if err != nil {
		return model.PublicSignal{}, err
	}

	signal.Languages = make([]model.Language, 0, len(languages))
	for _, lang := range languages {
		signal.Languages = append(signal.Languages, model.Language(lang))
	}

	return signal, nil
}

// marshalEnriched encodes enriched fields, mapping nil to SQL NULL so
// COALESCE can keep the stored document.
func marshalEnriched(fields *model.EnrichedFields) ([]byte, error) {
	if fields == nil {
		return nil, nil
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode enriched fields: %w", err)
	}
	return data, nil
}
