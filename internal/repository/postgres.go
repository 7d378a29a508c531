package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/faultline-systems/faultline/internal/models"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, connString string) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// Close releases the connection pool.
func (r *PostgresRepository) Close() {
	r.pool.Close()
}

// GetProjectBySlug retrieves a project by its slug
func (r *PostgresRepository) GetProjectBySlug(ctx context.Context, slug string) (*models.Project, error) {
	query := `
		SELECT id, slug, name, public_key
		FROM projects
		WHERE slug = $1
	`

	p := &models.Project{}
	err := r.pool.QueryRow(ctx, query, slug).Scan(&p.ID, &p.Slug, &p.Name, &p.PublicKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return p, nil
}

// GetProjectByID retrieves a project by its numeric ID
func (r *PostgresRepository) GetProjectByID(ctx context.Context, id int64) (*models.Project, error) {
	query := `
		SELECT id, slug, name, public_key
		FROM projects
		WHERE id = $1
	`

	p := &models.Project{}
	err := r.pool.QueryRow(ctx, query, id).Scan(&p.ID, &p.Slug, &p.Name, &p.PublicKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return p, nil
}

// UpsertOccurrence records one error occurrence in a single atomic statement
// so concurrent arrivals for the same fingerprint never lose updates.
func (r *PostgresRepository) UpsertOccurrence(ctx context.Context, occ *IssueOccurrence) (*models.Issue, error) {
	query := `
		INSERT INTO issues (project_id, fingerprint, title, error_type, status, count, first_seen, last_seen)
		VALUES ($1, $2, $3, $4, 'open', 1, $5, $5)
		ON CONFLICT (project_id, fingerprint) DO UPDATE SET
			count = issues.count + 1,
			last_seen = GREATEST(issues.last_seen, EXCLUDED.last_seen),
			status = CASE WHEN issues.status = 'resolved' THEN 'open' ELSE issues.status END
		RETURNING id, project_id, fingerprint, title, error_type, status, count, first_seen, last_seen
	`

	issue := &models.Issue{}
	err := r.pool.QueryRow(ctx, query,
		occ.ProjectID, occ.Fingerprint, occ.Title, occ.ErrorType, occ.Timestamp,
	).Scan(
		&issue.ID, &issue.ProjectID, &issue.Fingerprint, &issue.Title,
		&issue.ErrorType, &issue.Status, &issue.Count, &issue.FirstSeen, &issue.LastSeen,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert issue occurrence: %w", err)
	}

	return issue, nil
}

// GetIssue retrieves an issue by ID
func (r *PostgresRepository) GetIssue(ctx context.Context, id int64) (*models.Issue, error) {
	query := `
		SELECT id, project_id, fingerprint, title, error_type, status, count, first_seen, last_seen
		FROM issues
		WHERE id = $1
	`

	issue := &models.Issue{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&issue.ID, &issue.ProjectID, &issue.Fingerprint, &issue.Title,
		&issue.ErrorType, &issue.Status, &issue.Count, &issue.FirstSeen, &issue.LastSeen,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrIssueNotFound
		}
		return nil, fmt.Errorf("failed to get issue: %w", err)
	}

	return issue, nil
}

// SetIssueStatus updates an issue's lifecycle status
func (r *PostgresRepository) SetIssueStatus(ctx context.Context, id int64, status string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE issues SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update issue status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrIssueNotFound
	}
	return nil
}

// InsertEvent stores one error event. The event_id primary key makes this
// idempotent: a redelivered event reports ErrDuplicateEvent and is dropped.
func (r *PostgresRepository) InsertEvent(ctx context.Context, event *models.Event) error {
	query := `
		INSERT INTO events (event_id, issue_id, project_id, payload, received_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id) DO NOTHING
	`

	// Zero means "not yet grouped"; stored as NULL to satisfy the FK.
	var issueID *int64
	if event.IssueID != 0 {
		issueID = &event.IssueID
	}

	tag, err := r.pool.Exec(ctx, query,
		event.EventID, issueID, event.ProjectID, event.Payload, event.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateEvent
	}
	return nil
}

// LinkEventToIssue attaches a stored event to its issue
func (r *PostgresRepository) LinkEventToIssue(ctx context.Context, eventID string, issueID int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE events SET issue_id = $2 WHERE event_id = $1`, eventID, issueID)
	if err != nil {
		return fmt.Errorf("failed to link event to issue: %w", err)
	}
	return nil
}

// InsertTransaction stores one performance transaction
func (r *PostgresRepository) InsertTransaction(ctx context.Context, tx *models.Transaction) error {
	query := `
		INSERT INTO transactions (id, project_id, name, duration_ms, measurements, payload, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		tx.ID, tx.ProjectID, tx.Name, tx.DurationMS, tx.Measurements, tx.Payload, tx.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}
