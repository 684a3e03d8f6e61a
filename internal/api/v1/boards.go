package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/careboard/internal/board"
	"github.com/gosuda/careboard/internal/store"
)

type GetBoardInput struct {
	RecordID uuid.UUID `path:"recordID" doc:"Record ID"`
}

type GetBoardOutput struct {
	Body struct {
		RecordID   uuid.UUID `json:"recordId"`
		RecordName string    `json:"recordName"`
		Board      BoardView `json:"board"`
	}
}

type GetAggregatedBoardInput struct{}

// BoardSource names one record contributing to the aggregated board.
type BoardSource struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type GetAggregatedBoardOutput struct {
	Body struct {
		Sources []BoardSource `json:"sources"`
		Board   BoardView     `json:"board"`
	}
}

func RegisterBoardRoutes(api huma.API, ds DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "get-board",
		Method:      http.MethodGet,
		Path:        "/boards/{recordID}",
		Summary:     "Get the treatment board of one record",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *GetBoardInput) (*GetBoardOutput, error) {
		rec, err := ownedRecord(ctx, ds, input.RecordID)
		if err != nil {
			return nil, err
		}

		out := &GetBoardOutput{}
		out.Body.RecordID = rec.ID
		out.Body.RecordName = rec.RecordName
		out.Body.Board = boardView(board.ParseBoard(rec.KanbanRecords))
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-aggregated-board",
		Method:      http.MethodGet,
		Path:        "/boards",
		Summary:     "Get one board merging the tasks of all records",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, _ *GetAggregatedBoardInput) (*GetAggregatedBoardOutput, error) {
		user, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		records, err := ds.Records().ListByOwner(ctx, user.Email)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list records", err)
		}

		sources := store.Sources(records)
		out := &GetAggregatedBoardOutput{}
		out.Body.Sources = make([]BoardSource, len(sources))
		for i, src := range sources {
			out.Body.Sources[i] = BoardSource{ID: src.ID, Name: src.Name}
		}
		out.Body.Board = boardView(board.Aggregate(sources))
		return out, nil
	})
}
