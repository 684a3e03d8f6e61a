package v1

import (
	"context"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/careboard/internal/board"
	"github.com/gosuda/careboard/internal/domain"
	"github.com/gosuda/careboard/internal/server/middleware"
)

// RecordView is the wire form of a record.
type RecordView struct {
	ID             uuid.UUID `json:"id"`
	RecordName     string    `json:"recordName"`
	AnalysisResult string    `json:"analysisResult"`
	KanbanRecords  string    `json:"kanbanRecords"`
	CreatedBy      string    `json:"createdBy"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func recordView(r *domain.Record) RecordView {
	return RecordView{
		ID:             r.ID,
		RecordName:     r.RecordName,
		AnalysisResult: r.AnalysisResult,
		KanbanRecords:  r.KanbanRecords,
		CreatedBy:      r.CreatedBy,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

// TaskView is the wire form of a board task.
type TaskView struct {
	ID               string `json:"id"`
	ColumnID         string `json:"columnId"`
	Content          string `json:"content"`
	OriginalRecordID string `json:"originalRecordId,omitempty"`
	OriginalTaskID   string `json:"originalTaskId,omitempty"`
}

// BoardView is the wire form of a board. Empty mirrors the no-data display
// state.
type BoardView struct {
	Columns []board.Column `json:"columns"`
	Tasks   []TaskView     `json:"tasks"`
	Empty   bool           `json:"empty"`
}

func boardView(s board.State) BoardView {
	v := BoardView{
		Columns: make([]board.Column, len(s.Columns)),
		Tasks:   make([]TaskView, len(s.Tasks)),
		Empty:   s.IsEmpty(),
	}
	copy(v.Columns, s.Columns)
	for i, t := range s.Tasks {
		v.Tasks[i] = TaskView{ID: t.ID, ColumnID: t.ColumnID, Content: t.Content}
		if t.Origin != nil {
			v.Tasks[i].OriginalRecordID = t.Origin.RecordID
			v.Tasks[i].OriginalTaskID = t.Origin.TaskID
		}
	}
	return v
}

// currentUser returns the authenticated identity as a partial user.
func currentUser(ctx context.Context) (*domain.User, error) {
	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("missing user context")
	}
	email, ok := middleware.EmailFromContext(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("missing user context")
	}
	return &domain.User{ID: userID, Email: email}, nil
}

// ownedRecord loads a record and hides records of other owners behind 404.
func ownedRecord(ctx context.Context, store DataStore, id uuid.UUID) (*domain.Record, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	rec, err := store.Records().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, huma.Error404NotFound("record not found")
		}
		return nil, huma.Error500InternalServerError("failed to get record", err)
	}
	if !rec.OwnedBy(user.Email) {
		return nil, huma.Error404NotFound("record not found")
	}
	return rec, nil
}
