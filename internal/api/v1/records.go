package v1

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/gosuda/careboard/internal/analysis"
	"github.com/gosuda/careboard/internal/board"
	"github.com/gosuda/careboard/internal/domain"
)

type ListRecordsInput struct{}

type ListRecordsOutput struct {
	Body []RecordView
}

type CreateRecordInput struct {
	Body struct {
		RecordName string `json:"recordName" minLength:"1" maxLength:"255" doc:"Record name"`
	}
}

type RecordOutput struct {
	Body RecordView
}

type GetRecordInput struct {
	ID uuid.UUID `path:"id" doc:"Record ID"`
}

type RenameRecordInput struct {
	ID   uuid.UUID `path:"id" doc:"Record ID"`
	Body struct {
		RecordName string `json:"recordName" minLength:"1" maxLength:"255" doc:"Record name"`
	}
}

type AnalyzeRecordInput struct {
	ID   uuid.UUID `path:"id" doc:"Record ID"`
	Body struct {
		MimeType string `json:"mimeType" minLength:"1" doc:"Document MIME type (image/* or application/pdf)"`
		Data     []byte `json:"data" minLength:"1" doc:"Base64-encoded document"`
	}
}

type TreatmentPlanInput struct {
	ID uuid.UUID `path:"id" doc:"Record ID"`
}

type TreatmentPlanOutput struct {
	Body struct {
		Generated bool       `json:"generated" doc:"False when an existing board was returned"`
		Record    RecordView `json:"record"`
		Board     BoardView  `json:"board"`
	}
}

func RegisterRecordRoutes(api huma.API, store DataStore, analyzer Analyzer) {
	// Concurrent requests for the same record share one model call.
	var plans singleflight.Group

	huma.Register(api, huma.Operation{
		OperationID: "list-records",
		Method:      http.MethodGet,
		Path:        "/records",
		Summary:     "List the signed-in user's records",
		Tags:        []string{"Records"},
	}, func(ctx context.Context, _ *ListRecordsInput) (*ListRecordsOutput, error) {
		user, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		records, err := store.Records().ListByOwner(ctx, user.Email)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list records", err)
		}

		out := &ListRecordsOutput{Body: make([]RecordView, len(records))}
		for i, r := range records {
			out.Body[i] = recordView(r)
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-record",
		Method:      http.MethodPost,
		Path:        "/records",
		Summary:     "Create a record",
		Tags:        []string{"Records"},
	}, func(ctx context.Context, input *CreateRecordInput) (*RecordOutput, error) {
		user, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		rec, err := domain.NewRecord(user, strings.TrimSpace(input.Body.RecordName))
		if err != nil {
			return nil, huma.Error422UnprocessableEntity(err.Error())
		}

		err = store.Records().Create(ctx, rec)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to create record", err)
		}

		return &RecordOutput{Body: recordView(rec)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-record",
		Method:      http.MethodGet,
		Path:        "/records/{id}",
		Summary:     "Get a record",
		Tags:        []string{"Records"},
	}, func(ctx context.Context, input *GetRecordInput) (*RecordOutput, error) {
		rec, err := ownedRecord(ctx, store, input.ID)
		if err != nil {
			return nil, err
		}
		return &RecordOutput{Body: recordView(rec)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "rename-record",
		Method:      http.MethodPatch,
		Path:        "/records/{id}",
		Summary:     "Rename a record",
		Tags:        []string{"Records"},
	}, func(ctx context.Context, input *RenameRecordInput) (*RecordOutput, error) {
		if _, err := ownedRecord(ctx, store, input.ID); err != nil {
			return nil, err
		}

		name := strings.TrimSpace(input.Body.RecordName)
		if name == "" {
			return nil, huma.Error422UnprocessableEntity("record name is required")
		}

		updated, err := store.Records().Update(ctx, domain.RecordUpdate{ID: input.ID, RecordName: &name})
		if err != nil {
			return nil, updateError(err)
		}
		return &RecordOutput{Body: recordView(updated)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "analyze-record",
		Method:      http.MethodPost,
		Path:        "/records/{id}/analysis",
		Summary:     "Analyze a medical document into the record",
		Description: "Stores the written analysis and clears any treatment board derived from an earlier analysis.",
		Tags:        []string{"Records"},
	}, func(ctx context.Context, input *AnalyzeRecordInput) (*RecordOutput, error) {
		if _, err := ownedRecord(ctx, store, input.ID); err != nil {
			return nil, err
		}

		result, err := analyzer.AnalyzeDocument(ctx, input.Body.Data, input.Body.MimeType)
		if err != nil {
			return nil, analysisError("document analysis failed", err)
		}

		cleared := ""
		updated, err := store.Records().Update(ctx, domain.RecordUpdate{
			ID:             input.ID,
			AnalysisResult: &result,
			KanbanRecords:  &cleared,
		})
		if err != nil {
			return nil, updateError(err)
		}

		log.Info().Str("record_id", input.ID.String()).Int("analysis_len", len(result)).Msg("record analyzed")
		return &RecordOutput{Body: recordView(updated)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "generate-treatment-plan",
		Method:      http.MethodPost,
		Path:        "/records/{id}/treatment-plan",
		Summary:     "Get or generate the record's treatment board",
		Description: "Returns the stored board when one exists; otherwise generates one from the analysis and stores it.",
		Tags:        []string{"Records"},
	}, func(ctx context.Context, input *TreatmentPlanInput) (*TreatmentPlanOutput, error) {
		rec, err := ownedRecord(ctx, store, input.ID)
		if err != nil {
			return nil, err
		}

		out := &TreatmentPlanOutput{}
		if rec.HasBoard() {
			out.Body.Record = recordView(rec)
			out.Body.Board = boardView(board.ParseBoard(rec.KanbanRecords))
			return out, nil
		}

		if strings.TrimSpace(rec.AnalysisResult) == "" {
			return nil, huma.Error422UnprocessableEntity("record has no analysis; analyze a document first")
		}

		v, err, _ := plans.Do(rec.ID.String(), func() (any, error) {
			return generatePlan(ctx, store, analyzer, rec)
		})
		if err != nil {
			return nil, err
		}
		return v.(*TreatmentPlanOutput), nil
	})
}

// generatePlan asks the model for a board and stores it unless another
// request stored one first, in which case the stored board is returned.
func generatePlan(ctx context.Context, store DataStore, analyzer Analyzer, rec *domain.Record) (*TreatmentPlanOutput, error) {
	plan, err := analyzer.GeneratePlan(ctx, rec.AnalysisResult)
	if err != nil {
		return nil, analysisError("treatment plan generation failed", err)
	}

	// Store the normalized form so ids are strings from here on.
	serialized := board.ParseBoard(plan).Serialize()
	out := &TreatmentPlanOutput{}
	updated, err := store.Records().InitBoard(ctx, rec.ID, serialized)
	switch {
	case errors.Is(err, domain.ErrConflict):
		current, getErr := store.Records().GetByID(ctx, rec.ID)
		if getErr != nil {
			return nil, updateError(getErr)
		}
		log.Info().Str("record_id", rec.ID.String()).Msg("treatment board already stored; discarding generated plan")
		out.Body.Record = recordView(current)
		out.Body.Board = boardView(board.ParseBoard(current.KanbanRecords))
		return out, nil
	case err != nil:
		return nil, updateError(err)
	}

	out.Body.Generated = true
	out.Body.Record = recordView(updated)
	out.Body.Board = boardView(board.ParseBoard(serialized))
	return out, nil
}

func updateError(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return huma.Error404NotFound("record not found")
	}
	return huma.Error500InternalServerError("failed to update record", err)
}

func analysisError(msg string, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, analysis.ErrUnsupportedType):
		return huma.Error415UnsupportedMediaType("only images and PDF documents can be analyzed")
	case errors.Is(err, analysis.ErrNotConfigured):
		return huma.Error503ServiceUnavailable("document analysis is not configured")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled),
		errors.As(err, &netErr) && netErr.Timeout():
		return huma.Error504GatewayTimeout(msg)
	default:
		log.Error().Err(err).Msg(msg)
		return huma.Error502BadGateway(msg)
	}
}
