package v1_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/careboard/internal/auth"
	"github.com/gosuda/careboard/internal/domain"
	"github.com/gosuda/careboard/internal/server/middleware"
)

// ---------------------------------------------------------------------------
// Context helpers: inject the signed-in identity for DoCtx
// ---------------------------------------------------------------------------

const ownerEmail = "patient@example.com"

func userCtx(userID uuid.UUID) context.Context {
	return middleware.WithUser(context.Background(), userID, ownerEmail)
}

func ownedRecordFixture(name, kanban string) *domain.Record {
	now := time.Now().UTC()
	return &domain.Record{
		ID:             uuid.New(),
		UserID:         uuid.New(),
		RecordName:     name,
		AnalysisResult: "Take the prescribed medication twice a day.",
		KanbanRecords:  kanban,
		CreatedBy:      ownerEmail,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// ---------------------------------------------------------------------------
// Mock DataStore
// ---------------------------------------------------------------------------

type mockDataStore struct {
	users   domain.UserRepository
	records domain.RecordRepository
}

func (m *mockDataStore) Users() domain.UserRepository     { return m.users }
func (m *mockDataStore) Records() domain.RecordRepository { return m.records }

// ---------------------------------------------------------------------------
// Mock UserRepository
// ---------------------------------------------------------------------------

type mockUserRepo struct {
	createFunc     func(ctx context.Context, u *domain.User) error
	getByIDFunc    func(ctx context.Context, id uuid.UUID) (*domain.User, error)
	getByEmailFunc func(ctx context.Context, email string) (*domain.User, error)
}

func (m *mockUserRepo) Create(ctx context.Context, u *domain.User) error {
	return m.createFunc(ctx, u)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return m.getByEmailFunc(ctx, email)
}

// ---------------------------------------------------------------------------
// Mock RecordRepository
// ---------------------------------------------------------------------------

type mockRecordRepo struct {
	createFunc      func(ctx context.Context, r *domain.Record) error
	getByIDFunc     func(ctx context.Context, id uuid.UUID) (*domain.Record, error)
	listByOwnerFunc func(ctx context.Context, ownerEmail string) ([]*domain.Record, error)
	updateFunc      func(ctx context.Context, u domain.RecordUpdate) (*domain.Record, error)
	updateBoardFunc func(ctx context.Context, id uuid.UUID, payload string) error
	initBoardFunc   func(ctx context.Context, id uuid.UUID, payload string) (*domain.Record, error)
}

func (m *mockRecordRepo) Create(ctx context.Context, r *domain.Record) error {
	return m.createFunc(ctx, r)
}

func (m *mockRecordRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Record, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockRecordRepo) ListByOwner(ctx context.Context, ownerEmail string) ([]*domain.Record, error) {
	return m.listByOwnerFunc(ctx, ownerEmail)
}

func (m *mockRecordRepo) Update(ctx context.Context, u domain.RecordUpdate) (*domain.Record, error) {
	return m.updateFunc(ctx, u)
}

func (m *mockRecordRepo) UpdateBoard(ctx context.Context, id uuid.UUID, payload string) error {
	return m.updateBoardFunc(ctx, id, payload)
}

func (m *mockRecordRepo) InitBoard(ctx context.Context, id uuid.UUID, payload string) (*domain.Record, error) {
	return m.initBoardFunc(ctx, id, payload)
}

// recordStore returns a store holding the given records in memory. Update
// applies the partial update to the stored record.
func recordStore(records ...*domain.Record) *mockDataStore {
	var mu sync.Mutex
	byID := make(map[uuid.UUID]*domain.Record, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}
	return &mockDataStore{records: &mockRecordRepo{
		getByIDFunc: func(_ context.Context, id uuid.UUID) (*domain.Record, error) {
			mu.Lock()
			defer mu.Unlock()
			r, ok := byID[id]
			if !ok {
				return nil, domain.ErrNotFound
			}
			cp := *r
			return &cp, nil
		},
		listByOwnerFunc: func(_ context.Context, email string) ([]*domain.Record, error) {
			var out []*domain.Record
			for _, r := range records {
				if r.CreatedBy == email {
					out = append(out, r)
				}
			}
			return out, nil
		},
		updateFunc: func(_ context.Context, u domain.RecordUpdate) (*domain.Record, error) {
			mu.Lock()
			defer mu.Unlock()
			r, ok := byID[u.ID]
			if !ok {
				return nil, domain.ErrNotFound
			}
			u.Apply(r)
			cp := *r
			return &cp, nil
		},
		updateBoardFunc: func(_ context.Context, id uuid.UUID, payload string) error {
			mu.Lock()
			defer mu.Unlock()
			r, ok := byID[id]
			if !ok {
				return domain.ErrNotFound
			}
			r.KanbanRecords = payload
			return nil
		},
		initBoardFunc: func(_ context.Context, id uuid.UUID, payload string) (*domain.Record, error) {
			mu.Lock()
			defer mu.Unlock()
			r, ok := byID[id]
			if !ok {
				return nil, domain.ErrNotFound
			}
			if r.KanbanRecords != "" {
				return nil, domain.ErrConflict
			}
			r.KanbanRecords = payload
			cp := *r
			return &cp, nil
		},
	}}
}

// ---------------------------------------------------------------------------
// Mock AuthService
// ---------------------------------------------------------------------------

type mockAuthService struct {
	signInFunc       func(ctx context.Context, email, name string) (*domain.User, auth.Tokens, error)
	refreshTokenFunc func(ctx context.Context, refreshToken string) (string, error)
	newStateFunc     func(ttl time.Duration) (string, error)
	checkStateFunc   func(state string) error
}

func (m *mockAuthService) SignIn(ctx context.Context, email, name string) (*domain.User, auth.Tokens, error) {
	return m.signInFunc(ctx, email, name)
}

func (m *mockAuthService) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	return m.refreshTokenFunc(ctx, refreshToken)
}

func (m *mockAuthService) NewState(ttl time.Duration) (string, error) {
	return m.newStateFunc(ttl)
}

func (m *mockAuthService) CheckState(state string) error {
	return m.checkStateFunc(state)
}

// ---------------------------------------------------------------------------
// Mock IdentityProvider
// ---------------------------------------------------------------------------

type mockIdentityProvider struct {
	authorizationURLFunc func(state string) string
	exchangeCodeFunc     func(ctx context.Context, code string) (*auth.UserInfo, error)
}

func (m *mockIdentityProvider) AuthorizationURL(state string) string {
	return m.authorizationURLFunc(state)
}

func (m *mockIdentityProvider) ExchangeCode(ctx context.Context, code string) (*auth.UserInfo, error) {
	return m.exchangeCodeFunc(ctx, code)
}

// ---------------------------------------------------------------------------
// Mock Analyzer
// ---------------------------------------------------------------------------

type mockAnalyzer struct {
	analyzeDocumentFunc func(ctx context.Context, data []byte, mimeType string) (string, error)
	generatePlanFunc    func(ctx context.Context, analysis string) (string, error)
}

func (m *mockAnalyzer) AnalyzeDocument(ctx context.Context, data []byte, mimeType string) (string, error) {
	return m.analyzeDocumentFunc(ctx, data, mimeType)
}

func (m *mockAnalyzer) GeneratePlan(ctx context.Context, analysis string) (string, error) {
	return m.generatePlanFunc(ctx, analysis)
}
