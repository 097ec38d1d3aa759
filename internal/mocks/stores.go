package mocks

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/suggestion-api/internal/domain"
	"github.com/phrazzld/suggestion-api/internal/store"
)

// MockHistoryReader implements store.HistoryReader for testing
type MockHistoryReader struct {
	ListActivitiesFn func(ctx context.Context, q store.HistoryQuery) ([]domain.HistoricalActivity, error)

	// Default response values
	Activities []domain.HistoricalActivity
	Err        error

	mu      sync.Mutex
	Queries []store.HistoryQuery
}

// ListActivities implements store.HistoryReader
func (m *MockHistoryReader) ListActivities(
	ctx context.Context,
	q store.HistoryQuery,
) ([]domain.HistoricalActivity, error) {
	m.mu.Lock()
	m.Queries = append(m.Queries, q)
	m.mu.Unlock()

	if m.ListActivitiesFn != nil {
		return m.ListActivitiesFn(ctx, q)
	}
	return m.Activities, m.Err
}

// MockUserDirectory implements store.UserDirectory and
// store.ActivityTypeCatalog for testing
type MockUserDirectory struct {
	ListUsersFn func(ctx context.Context, page, pageSize int) (store.UserPage, error)
	ListTypesFn func(ctx context.Context) ([]string, error)

	// Users is paged through when ListUsersFn is nil
	Users []uuid.UUID
	Types []string

	mu    sync.Mutex
	Pages []int
}

// ListUsers implements store.UserDirectory
func (m *MockUserDirectory) ListUsers(ctx context.Context, page, pageSize int) (store.UserPage, error) {
	m.mu.Lock()
	m.Pages = append(m.Pages, page)
	m.mu.Unlock()

	if m.ListUsersFn != nil {
		return m.ListUsersFn(ctx, page, pageSize)
	}

	start := (page - 1) * pageSize
	if start >= len(m.Users) {
		return store.UserPage{UserIDs: []uuid.UUID{}, Total: len(m.Users)}, nil
	}
	end := min(start+pageSize, len(m.Users))
	return store.UserPage{UserIDs: append([]uuid.UUID(nil), m.Users[start:end]...), Total: len(m.Users)}, nil
}

// ListTypes implements store.ActivityTypeCatalog
func (m *MockUserDirectory) ListTypes(ctx context.Context) ([]string, error) {
	if m.ListTypesFn != nil {
		return m.ListTypesFn(ctx)
	}
	return m.Types, nil
}

// RequestedPages returns the page numbers passed to ListUsers
func (m *MockUserDirectory) RequestedPages() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.Pages...)
}

// MockSuggestionStore is an in-memory store.SuggestionStore. WithTx returns
// the same instance, so tests pair it with sqlmock for transaction
// boundaries.
type MockSuggestionStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*domain.Suggestion

	// Per-method error injection
	CreateManyErr       error
	GetErr              error
	ListErr             error
	CountErr            error
	DeleteForDateErr    error
	DeleteUnusedErr     error
	DeleteUnusedBeforeF func(ctx context.Context, cutoff time.Time) (int64, error)

	// Cutoffs records arguments passed to DeleteUnusedBefore
	Cutoffs []time.Time
}

// NewMockSuggestionStore creates an empty in-memory store
func NewMockSuggestionStore() *MockSuggestionStore {
	return &MockSuggestionStore{rows: make(map[uuid.UUID]*domain.Suggestion)}
}

var _ store.SuggestionStore = (*MockSuggestionStore)(nil)

// Put stores copies of suggestions without validation
func (m *MockSuggestionStore) Put(suggestions ...*domain.Suggestion) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range suggestions {
		cp := *s
		m.rows[s.ID] = &cp
	}
}

// All returns a copy of every stored suggestion
func (m *MockSuggestionStore) All() []*domain.Suggestion {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Suggestion, 0, len(m.rows))
	for _, s := range m.rows {
		cp := *s
		out = append(out, &cp)
	}
	return out
}

func (m *MockSuggestionStore) CreateMany(_ context.Context, suggestions []*domain.Suggestion) error {
	if m.CreateManyErr != nil {
		return m.CreateManyErr
	}
	for _, s := range suggestions {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	m.Put(suggestions...)
	return nil
}

func (m *MockSuggestionStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Suggestion, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok {
		return nil, store.ErrSuggestionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockSuggestionStore) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Suggestion, error) {
	return m.GetByID(ctx, id)
}

func (m *MockSuggestionStore) ListUnusedForDate(
	_ context.Context,
	userID uuid.UUID,
	date time.Time,
) ([]*domain.Suggestion, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	out := make([]*domain.Suggestion, 0)
	for _, s := range m.matching(userID, date) {
		if !s.IsUsed {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *MockSuggestionStore) CountForDate(_ context.Context, userID uuid.UUID, date time.Time) (int, error) {
	if m.CountErr != nil {
		return 0, m.CountErr
	}
	return len(m.matching(userID, date)), nil
}

func (m *MockSuggestionStore) DeleteForDate(_ context.Context, userID uuid.UUID, date time.Time) (int64, error) {
	if m.DeleteForDateErr != nil {
		return 0, m.DeleteForDateErr
	}
	return m.deleteWhere(func(s *domain.Suggestion) bool {
		return s.UserID == userID && sameDay(s.SuggestedDate, date)
	}), nil
}

func (m *MockSuggestionStore) DeleteUnusedForDate(_ context.Context, userID uuid.UUID, date time.Time) (int64, error) {
	if m.DeleteUnusedErr != nil {
		return 0, m.DeleteUnusedErr
	}
	return m.deleteWhere(func(s *domain.Suggestion) bool {
		return s.UserID == userID && !s.IsUsed && sameDay(s.SuggestedDate, date)
	}), nil
}

func (m *MockSuggestionStore) DeleteUnusedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	m.Cutoffs = append(m.Cutoffs, cutoff)
	m.mu.Unlock()

	if m.DeleteUnusedBeforeF != nil {
		return m.DeleteUnusedBeforeF(ctx, cutoff)
	}
	day := cutoff.Format(time.DateOnly)
	return m.deleteWhere(func(s *domain.Suggestion) bool {
		return !s.IsUsed && s.SuggestedDate.Format(time.DateOnly) < day
	}), nil
}

func (m *MockSuggestionStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return store.ErrSuggestionNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *MockSuggestionStore) WithTx(*sql.Tx) store.SuggestionStore {
	return m
}

func (m *MockSuggestionStore) matching(userID uuid.UUID, date time.Time) []*domain.Suggestion {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Suggestion, 0)
	for _, s := range m.rows {
		if s.UserID == userID && sameDay(s.SuggestedDate, date) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out
}

func (m *MockSuggestionStore) deleteWhere(match func(*domain.Suggestion) bool) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.rows {
		if match(s) {
			delete(m.rows, id)
			n++
		}
	}
	return n
}

func sameDay(a, b time.Time) bool {
	return a.Format(time.DateOnly) == b.Format(time.DateOnly)
}

// MockActivityStore implements store.ActivityStore for testing
type MockActivityStore struct {
	CreateFn func(ctx context.Context, a *domain.Activity) error

	mu      sync.Mutex
	Created []*domain.Activity
}

var _ store.ActivityStore = (*MockActivityStore)(nil)

func (m *MockActivityStore) Create(ctx context.Context, a *domain.Activity) error {
	if m.CreateFn != nil {
		if err := m.CreateFn(ctx, a); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.Created = append(m.Created, a)
	m.mu.Unlock()
	return nil
}

func (m *MockActivityStore) WithTx(*sql.Tx) store.ActivityStore {
	return m
}
