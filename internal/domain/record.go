package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Record is one medical record: an uploaded document's analysis plus the
// treatment board derived from it. KanbanRecords holds the serialized board
// and is empty until a plan has been generated.
type Record struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	RecordName     string
	AnalysisResult string
	KanbanRecords  string
	CreatedBy      string // owner email
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewRecord creates a Record owned by u.
func NewRecord(u *User, name string) (*Record, error) {
	if u == nil || u.ID == uuid.Nil {
		return nil, errors.New("record: owner is required")
	}
	if name == "" {
		return nil, errors.New("record: name is required")
	}
	now := time.Now()
	return &Record{
		ID:         uuid.New(),
		UserID:     u.ID,
		RecordName: name,
		CreatedBy:  u.Email,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// OwnedBy reports whether email owns the record.
func (r *Record) OwnedBy(email string) bool {
	return r.CreatedBy == NormalizeEmail(email)
}

// HasBoard reports whether a treatment board has been stored.
func (r *Record) HasBoard() bool {
	return r.KanbanRecords != ""
}

// RecordUpdate is a partial update. Nil fields are left unchanged.
type RecordUpdate struct {
	ID             uuid.UUID
	RecordName     *string
	AnalysisResult *string
	KanbanRecords  *string
}

// IsEmpty reports whether the update sets no field.
func (u RecordUpdate) IsEmpty() bool {
	return u.RecordName == nil && u.AnalysisResult == nil && u.KanbanRecords == nil
}

// Apply writes the set fields of u into r.
func (u RecordUpdate) Apply(r *Record) {
	if u.RecordName != nil {
		r.RecordName = *u.RecordName
	}
	if u.AnalysisResult != nil {
		r.AnalysisResult = *u.AnalysisResult
	}
	if u.KanbanRecords != nil {
		r.KanbanRecords = *u.KanbanRecords
	}
}

type RecordRepository interface {
	Create(ctx context.Context, r *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	ListByOwner(ctx context.Context, ownerEmail string) ([]*Record, error)
	Update(ctx context.Context, u RecordUpdate) (*Record, error)
	UpdateBoard(ctx context.Context, id uuid.UUID, payload string) error
	// InitBoard stores payload only if the record has no board yet and
	// returns ErrConflict otherwise.
	InitBoard(ctx context.Context, id uuid.UUID, payload string) (*Record, error)
}
