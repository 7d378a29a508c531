package grouping

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faultline-systems/faultline/internal/models"
	"github.com/faultline-systems/faultline/internal/repository"
)

func exceptionPayload(excType, value, filename string, lineno int) map[string]any {
	return map[string]any{
		"exception": map[string]any{
			"values": []any{
				map[string]any{
					"type":  excType,
					"value": value,
					"stacktrace": map[string]any{
						"frames": []any{
							map[string]any{"filename": "lib/runner.rb", "lineno": float64(3)},
							map[string]any{"filename": filename, "lineno": float64(lineno)},
						},
					},
				},
			},
		},
	}
}

func TestFingerprint_ExplicitListWins(t *testing.T) {
	payload := exceptionPayload("ZeroDivisionError", "divided by 0", "app.rb", 12)
	payload["fingerprint"] = []any{"checkout", "payment-failed"}

	assert.Equal(t, "checkout::payment-failed", Fingerprint(payload))
}

func TestFingerprint_ExceptionTypeFileLine(t *testing.T) {
	payload := exceptionPayload("ZeroDivisionError", "divided by 0", "app.rb", 12)

	assert.Equal(t, "ZeroDivisionError::app.rb::12", Fingerprint(payload))
}

func TestFingerprint_StableAcrossIdenticalLocations(t *testing.T) {
	a := exceptionPayload("NoMethodError", "undefined method `x'", "models/user.rb", 88)
	b := exceptionPayload("NoMethodError", "something else entirely", "models/user.rb", 88)

	// Same type/file/line groups together regardless of the message.
	assert.Equal(t, Fingerprint(a), Fingerprint(b))
}

func TestFingerprint_MessageDigestFallback(t *testing.T) {
	a := Fingerprint(map[string]any{"message": "boom"})
	b := Fingerprint(map[string]any{"message": "boom"})
	c := Fingerprint(map[string]any{"message": "different"})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64) // hex-encoded 256-bit digest
}

func TestFingerprint_NoMessageUsesUnknownError(t *testing.T) {
	a := Fingerprint(map[string]any{})
	b := Fingerprint(map[string]any{"message": "Unknown Error"})

	assert.Equal(t, a, b)
}

func TestTitle_Preference(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
		want    string
	}{
		{
			name:    "exception message first",
			payload: exceptionPayload("ZeroDivisionError", "divided by 0", "app.rb", 12),
			want:    "divided by 0",
		},
		{
			name:    "free-text message next",
			payload: map[string]any{"message": "something broke"},
			want:    "something broke",
		},
		{
			name: "exception type when no messages",
			payload: map[string]any{
				"exception": map[string]any{
					"values": []any{map[string]any{"type": "Timeout::Error"}},
				},
			},
			want: "Timeout::Error",
		},
		{
			name:    "unknown error last",
			payload: map[string]any{},
			want:    "Unknown Error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Title(tt.payload))
		})
	}
}

func TestGroupEvent_CreateThenIncrement(t *testing.T) {
	repo := repository.NewInMemoryRepository()
	grouper := NewGrouper(repo)
	project := &models.Project{ID: 1, Slug: "checkout"}

	payload := exceptionPayload("ZeroDivisionError", "divided by 0", "app.rb", 12)
	payload["timestamp"] = "2025-10-18T08:00:00Z"

	issue, err := grouper.GroupEvent(context.Background(), payload, project)
	require.NoError(t, err)
	assert.Equal(t, int64(1), issue.Count)
	assert.Equal(t, "divided by 0", issue.Title)
	assert.Equal(t, "ZeroDivisionError", issue.ErrorType)
	assert.Equal(t, models.IssueStatusOpen, issue.Status)
	assert.Equal(t, issue.FirstSeen, issue.LastSeen)

	later := exceptionPayload("ZeroDivisionError", "divided by 0", "app.rb", 12)
	later["timestamp"] = "2025-10-18T09:30:00Z"

	issue2, err := grouper.GroupEvent(context.Background(), later, project)
	require.NoError(t, err)
	assert.Equal(t, issue.ID, issue2.ID)
	assert.Equal(t, int64(2), issue2.Count)
	assert.Equal(t, time.Date(2025, 10, 18, 9, 30, 0, 0, time.UTC), issue2.LastSeen.UTC())
	assert.Equal(t, issue.FirstSeen, issue2.FirstSeen)
}

func TestGroupEvent_LastSeenNeverMovesBackwards(t *testing.T) {
	repo := repository.NewInMemoryRepository()
	grouper := NewGrouper(repo)
	project := &models.Project{ID: 1}

	first := map[string]any{"message": "boom", "timestamp": "2025-10-18T10:00:00Z"}
	_, err := grouper.GroupEvent(context.Background(), first, project)
	require.NoError(t, err)

	// An out-of-order occurrence with an older timestamp.
	stale := map[string]any{"message": "boom", "timestamp": "2025-10-18T07:00:00Z"}
	issue, err := grouper.GroupEvent(context.Background(), stale, project)
	require.NoError(t, err)

	assert.Equal(t, int64(2), issue.Count)
	assert.Equal(t, time.Date(2025, 10, 18, 10, 0, 0, 0, time.UTC), issue.LastSeen.UTC())
}

func TestGroupEvent_ResolvedReopensIgnoredStays(t *testing.T) {
	repo := repository.NewInMemoryRepository()
	grouper := NewGrouper(repo)
	project := &models.Project{ID: 1}
	payload := map[string]any{"message": "boom"}

	issue, err := grouper.GroupEvent(context.Background(), payload, project)
	require.NoError(t, err)

	require.NoError(t, repo.SetIssueStatus(context.Background(), issue.ID, models.IssueStatusResolved))
	issue, err = grouper.GroupEvent(context.Background(), payload, project)
	require.NoError(t, err)
	assert.Equal(t, models.IssueStatusOpen, issue.Status, "occurrence on a resolved issue reopens it")

	require.NoError(t, repo.SetIssueStatus(context.Background(), issue.ID, models.IssueStatusIgnored))
	issue, err = grouper.GroupEvent(context.Background(), payload, project)
	require.NoError(t, err)
	assert.Equal(t, models.IssueStatusIgnored, issue.Status, "occurrence on an ignored issue keeps it ignored")
}
