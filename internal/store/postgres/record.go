package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/careboard/internal/domain"
)

const recordColumns = `id, user_id, record_name, analysis_result, kanban_records, created_by, created_at, updated_at`

type RecordRepo struct {
	pool *pgxpool.Pool
}

func NewRecordRepo(pool *pgxpool.Pool) *RecordRepo {
	return &RecordRepo{pool: pool}
}

func (r *RecordRepo) Create(ctx context.Context, rec *domain.Record) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO records (`+recordColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.UserID, rec.RecordName, rec.AnalysisResult, rec.KanbanRecords,
		rec.CreatedBy, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("recordRepo.Create: %w", err)
	}

	return nil
}

func (r *RecordRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Record, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM records WHERE id = $1`,
		id,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("recordRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("recordRepo.GetByID: %w", err)
	}

	return rec, nil
}

// ListByOwner returns the records created by ownerEmail, oldest first. The
// first record is the default target for tasks created on an aggregated board.
func (r *RecordRepo) ListByOwner(ctx context.Context, ownerEmail string) ([]*domain.Record, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+recordColumns+` FROM records
		 WHERE created_by = $1
		 ORDER BY created_at, id
		 LIMIT 500`,
		domain.NormalizeEmail(ownerEmail),
	)
	if err != nil {
		return nil, fmt.Errorf("recordRepo.ListByOwner: %w", err)
	}
	defer rows.Close()

	var records []*domain.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("recordRepo.ListByOwner: scan: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recordRepo.ListByOwner: rows: %w", err)
	}

	return records, nil
}

// Update writes the fields set in u and returns the updated record.
func (r *RecordRepo) Update(ctx context.Context, u domain.RecordUpdate) (*domain.Record, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE records SET
		     record_name     = COALESCE($2, record_name),
		     analysis_result = COALESCE($3, analysis_result),
		     kanban_records  = COALESCE($4, kanban_records),
		     updated_at      = now()
		 WHERE id = $1
		 RETURNING `+recordColumns,
		u.ID, u.RecordName, u.AnalysisResult, u.KanbanRecords,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("recordRepo.Update: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("recordRepo.Update: %w", err)
	}

	return rec, nil
}

func (r *RecordRepo) UpdateBoard(ctx context.Context, id uuid.UUID, payload string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE records SET kanban_records = $1, updated_at = now() WHERE id = $2`,
		payload, id,
	)
	if err != nil {
		return fmt.Errorf("recordRepo.UpdateBoard: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("recordRepo.UpdateBoard: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *RecordRepo) InitBoard(ctx context.Context, id uuid.UUID, payload string) (*domain.Record, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE records SET kanban_records = $2, updated_at = now()
		 WHERE id = $1 AND kanban_records = ''
		 RETURNING `+recordColumns,
		id, payload,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, fmt.Errorf("recordRepo.InitBoard: %w", getErr)
		}
		return nil, fmt.Errorf("recordRepo.InitBoard: %w", domain.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("recordRepo.InitBoard: %w", err)
	}

	return rec, nil
}

func scanRecord(row pgx.Row) (*domain.Record, error) {
	var rec domain.Record
	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.RecordName, &rec.AnalysisResult, &rec.KanbanRecords,
		&rec.CreatedBy, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
