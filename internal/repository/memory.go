package repository

import (
	"context"
	"sync"

	"github.com/faultline-systems/faultline/internal/models"
)

// InMemoryRepository implements Repository without a database. It mirrors
// the PostgreSQL semantics, including the atomic occurrence upsert, and is
// used in tests.
type InMemoryRepository struct {
	mu             sync.RWMutex
	projects       map[int64]*models.Project
	projectsBySlug map[string]*models.Project
	issues         map[int64]*models.Issue
	issueKeys      map[issueKey]int64
	events         map[string]*models.Event
	transactions   []*models.Transaction
	nextIssueID    int64
}

type issueKey struct {
	projectID   int64
	fingerprint string
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		projects:       make(map[int64]*models.Project),
		projectsBySlug: make(map[string]*models.Project),
		issues:         make(map[int64]*models.Issue),
		issueKeys:      make(map[issueKey]int64),
		events:         make(map[string]*models.Event),
		nextIssueID:    1,
	}
}

// AddProject seeds a project. Test helper; projects are otherwise managed
// outside this pipeline.
func (r *InMemoryRepository) AddProject(p *models.Project) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.projects[p.ID] = p
	r.projectsBySlug[p.Slug] = p
}

func (r *InMemoryRepository) GetProjectBySlug(ctx context.Context, slug string) (*models.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.projectsBySlug[slug]
	if !exists {
		return nil, ErrProjectNotFound
	}
	return p, nil
}

func (r *InMemoryRepository) GetProjectByID(ctx context.Context, id int64) (*models.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.projects[id]
	if !exists {
		return nil, ErrProjectNotFound
	}
	return p, nil
}

func (r *InMemoryRepository) UpsertOccurrence(ctx context.Context, occ *IssueOccurrence) (*models.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := issueKey{projectID: occ.ProjectID, fingerprint: occ.Fingerprint}
	if id, exists := r.issueKeys[key]; exists {
		issue := r.issues[id]
		issue.Count++
		if occ.Timestamp.After(issue.LastSeen) {
			issue.LastSeen = occ.Timestamp
		}
		if issue.Status == models.IssueStatusResolved {
			issue.Status = models.IssueStatusOpen
		}
		cp := *issue
		return &cp, nil
	}

	issue := &models.Issue{
		ID:          r.nextIssueID,
		ProjectID:   occ.ProjectID,
		Fingerprint: occ.Fingerprint,
		Title:       occ.Title,
		ErrorType:   occ.ErrorType,
		Status:      models.IssueStatusOpen,
		Count:       1,
		FirstSeen:   occ.Timestamp,
		LastSeen:    occ.Timestamp,
	}
	r.nextIssueID++
	r.issues[issue.ID] = issue
	r.issueKeys[key] = issue.ID

	cp := *issue
	return &cp, nil
}

func (r *InMemoryRepository) GetIssue(ctx context.Context, id int64) (*models.Issue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	issue, exists := r.issues[id]
	if !exists {
		return nil, ErrIssueNotFound
	}
	cp := *issue
	return &cp, nil
}

func (r *InMemoryRepository) SetIssueStatus(ctx context.Context, id int64, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	issue, exists := r.issues[id]
	if !exists {
		return ErrIssueNotFound
	}
	issue.Status = status
	return nil
}

func (r *InMemoryRepository) InsertEvent(ctx context.Context, event *models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.events[event.EventID]; exists {
		return ErrDuplicateEvent
	}
	r.events[event.EventID] = event
	return nil
}

func (r *InMemoryRepository) LinkEventToIssue(ctx context.Context, eventID string, issueID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event, exists := r.events[eventID]; exists {
		event.IssueID = issueID
	}
	return nil
}

func (r *InMemoryRepository) InsertTransaction(ctx context.Context, tx *models.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.transactions = append(r.transactions, tx)
	return nil
}

// EventCount reports how many events are stored. Test helper.
func (r *InMemoryRepository) EventCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.events)
}

// Transactions returns the stored transactions. Test helper.
func (r *InMemoryRepository) Transactions() []*models.Transaction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Transaction, len(r.transactions))
	copy(out, r.transactions)
	return out
}

// TransactionCount reports how many transactions are stored. Test helper.
func (r *InMemoryRepository) TransactionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.transactions)
}
