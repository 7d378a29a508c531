package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/faultline-systems/faultline/internal/models"
)

// setupTestDatabase creates a PostgreSQL testcontainer and runs migrations.
func setupTestDatabase(t *testing.T) *PostgresRepository {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("faultline_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err, "start PostgreSQL container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, applyMigrations(connStr))

	repo, err := NewPostgresRepository(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(repo.Close)

	return repo
}

// applyMigrations executes the up migrations against a fresh database.
func applyMigrations(connStr string) error {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	paths, err := filepath.Glob(filepath.Join("..", "..", "migrations", "*.up.sql"))
	if err != nil {
		return err
	}
	for _, path := range paths {
		migrationSQL, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read migration file: %w", err)
		}
		if _, err := db.Exec(string(migrationSQL)); err != nil {
			return fmt.Errorf("failed to execute %s: %w", filepath.Base(path), err)
		}
	}
	return nil
}

func createTestProject(t *testing.T, repo *PostgresRepository, slug string) *models.Project {
	t.Helper()
	ctx := context.Background()

	var id int64
	err := repo.pool.QueryRow(ctx,
		`INSERT INTO projects (slug, name, public_key) VALUES ($1, $2, $3) RETURNING id`,
		slug, slug, "pk-"+slug,
	).Scan(&id)
	require.NoError(t, err)

	project, err := repo.GetProjectByID(ctx, id)
	require.NoError(t, err)
	return project
}

func TestGetProjectBySlug(t *testing.T) {
	repo := setupTestDatabase(t)
	ctx := context.Background()

	created := createTestProject(t, repo, "backend")

	project, err := repo.GetProjectBySlug(ctx, "backend")
	require.NoError(t, err)
	assert.Equal(t, created.ID, project.ID)
	assert.Equal(t, "pk-backend", project.PublicKey)

	_, err = repo.GetProjectBySlug(ctx, "nonexistent")
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestUpsertOccurrence(t *testing.T) {
	repo := setupTestDatabase(t)
	ctx := context.Background()
	project := createTestProject(t, repo, "backend")

	first := time.Now().UTC().Truncate(time.Millisecond)
	occ := &IssueOccurrence{
		ProjectID:   project.ID,
		Fingerprint: "fp-1",
		Title:       "NoMethodError: undefined method",
		ErrorType:   "NoMethodError",
		Timestamp:   first,
	}

	issue, err := repo.UpsertOccurrence(ctx, occ)
	require.NoError(t, err)
	assert.Equal(t, int64(1), issue.Count)
	assert.Equal(t, models.IssueStatusOpen, issue.Status)
	assert.Equal(t, "fp-1", issue.Fingerprint)

	// Second occurrence increments and advances last_seen.
	later := first.Add(time.Minute)
	occ.Timestamp = later
	updated, err := repo.UpsertOccurrence(ctx, occ)
	require.NoError(t, err)
	assert.Equal(t, issue.ID, updated.ID)
	assert.Equal(t, int64(2), updated.Count)
	assert.WithinDuration(t, later, updated.LastSeen, time.Second)
	assert.WithinDuration(t, first, updated.FirstSeen, time.Second)
}

func TestUpsertOccurrence_OutOfOrderKeepsLastSeen(t *testing.T) {
	repo := setupTestDatabase(t)
	ctx := context.Background()
	project := createTestProject(t, repo, "backend")

	now := time.Now().UTC()
	occ := &IssueOccurrence{
		ProjectID:   project.ID,
		Fingerprint: "fp-order",
		Title:       "Timeout::Error",
		ErrorType:   "Timeout::Error",
		Timestamp:   now,
	}
	_, err := repo.UpsertOccurrence(ctx, occ)
	require.NoError(t, err)

	// A delayed delivery with an older timestamp must not move last_seen
	// backwards.
	occ.Timestamp = now.Add(-time.Hour)
	updated, err := repo.UpsertOccurrence(ctx, occ)
	require.NoError(t, err)
	assert.WithinDuration(t, now, updated.LastSeen, time.Second)
	assert.Equal(t, int64(2), updated.Count)
}

func TestUpsertOccurrence_ReopensResolved(t *testing.T) {
	repo := setupTestDatabase(t)
	ctx := context.Background()
	project := createTestProject(t, repo, "backend")

	occ := &IssueOccurrence{
		ProjectID:   project.ID,
		Fingerprint: "fp-resolved",
		Title:       "ArgumentError",
		ErrorType:   "ArgumentError",
		Timestamp:   time.Now().UTC(),
	}
	issue, err := repo.UpsertOccurrence(ctx, occ)
	require.NoError(t, err)

	require.NoError(t, repo.SetIssueStatus(ctx, issue.ID, models.IssueStatusResolved))

	updated, err := repo.UpsertOccurrence(ctx, occ)
	require.NoError(t, err)
	assert.Equal(t, models.IssueStatusOpen, updated.Status, "a recurrence reopens a resolved issue")
}

func TestUpsertOccurrence_IgnoredStaysIgnored(t *testing.T) {
	repo := setupTestDatabase(t)
	ctx := context.Background()
	project := createTestProject(t, repo, "backend")

	occ := &IssueOccurrence{
		ProjectID:   project.ID,
		Fingerprint: "fp-ignored",
		Title:       "Net::ReadTimeout",
		ErrorType:   "Net::ReadTimeout",
		Timestamp:   time.Now().UTC(),
	}
	issue, err := repo.UpsertOccurrence(ctx, occ)
	require.NoError(t, err)

	require.NoError(t, repo.SetIssueStatus(ctx, issue.ID, models.IssueStatusIgnored))

	updated, err := repo.UpsertOccurrence(ctx, occ)
	require.NoError(t, err)
	assert.Equal(t, models.IssueStatusIgnored, updated.Status)
	assert.Equal(t, int64(2), updated.Count, "ignored issues still count occurrences")
}

func TestSetIssueStatus_NotFound(t *testing.T) {
	repo := setupTestDatabase(t)

	err := repo.SetIssueStatus(context.Background(), 424242, models.IssueStatusResolved)
	assert.ErrorIs(t, err, ErrIssueNotFound)
}

func TestInsertEvent(t *testing.T) {
	repo := setupTestDatabase(t)
	ctx := context.Background()
	project := createTestProject(t, repo, "backend")

	event := &models.Event{
		EventID:    "aabbccdd00112233aabbccdd00112233",
		ProjectID:  project.ID,
		Payload:    json.RawMessage(`{"message":"boom"}`),
		ReceivedAt: time.Now().UTC(),
	}

	require.NoError(t, repo.InsertEvent(ctx, event))

	// Redelivery of the same event_id reports a duplicate.
	err := repo.InsertEvent(ctx, event)
	assert.ErrorIs(t, err, ErrDuplicateEvent)
}

func TestLinkEventToIssue(t *testing.T) {
	repo := setupTestDatabase(t)
	ctx := context.Background()
	project := createTestProject(t, repo, "backend")

	event := &models.Event{
		EventID:    "11112222333344445555666677778888",
		ProjectID:  project.ID,
		Payload:    json.RawMessage(`{"message":"boom"}`),
		ReceivedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.InsertEvent(ctx, event))

	issue, err := repo.UpsertOccurrence(ctx, &IssueOccurrence{
		ProjectID:   project.ID,
		Fingerprint: "fp-link",
		Title:       "boom",
		ErrorType:   "RuntimeError",
		Timestamp:   time.Now().UTC(),
	})
	require.NoError(t, err)

	require.NoError(t, repo.LinkEventToIssue(ctx, event.EventID, issue.ID))

	var linked int64
	err = repo.pool.QueryRow(ctx,
		`SELECT issue_id FROM events WHERE event_id = $1`, event.EventID,
	).Scan(&linked)
	require.NoError(t, err)
	assert.Equal(t, issue.ID, linked)
}

func TestInsertTransaction(t *testing.T) {
	repo := setupTestDatabase(t)
	ctx := context.Background()
	project := createTestProject(t, repo, "backend")

	duration := int64(250)
	tx := &models.Transaction{
		ID:           "txn-1",
		ProjectID:    project.ID,
		Name:         "OrdersController#index",
		DurationMS:   &duration,
		Measurements: json.RawMessage(`{"db":{"value":70}}`),
		Payload:      json.RawMessage(`{"transaction":"OrdersController#index"}`),
		ReceivedAt:   time.Now().UTC(),
	}
	require.NoError(t, repo.InsertTransaction(ctx, tx))

	// Duration and measurements are optional for malformed payloads.
	bare := &models.Transaction{
		ID:         "txn-2",
		ProjectID:  project.ID,
		Payload:    json.RawMessage(`{}`),
		ReceivedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.InsertTransaction(ctx, bare))

	var count int64
	err := repo.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM transactions WHERE project_id = $1`, project.ID,
	).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
