// Package store adapts the record repositories to the board engine.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/careboard/internal/board"
	"github.com/gosuda/careboard/internal/domain"
	redisstore "github.com/gosuda/careboard/internal/store/redis"
)

// EventRecordsUpdated is published after every stored board, one event per
// record. Refresh on the save request only concerns the saving session.
const EventRecordsUpdated = "records_updated"

// Publisher sends raw payloads to a pub/sub channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Event is the payload published on an owner channel.
type Event struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	RecordID  string    `json:"record_id"`
	At        time.Time `json:"at"`
}

// BoardWriter persists boards into records and announces each write to the
// owner's other sessions.
type BoardWriter struct {
	records   domain.RecordRepository
	pub       Publisher
	owner     string
	sessionID string
}

// NewBoardWriter creates a writer for the boards of owner. pub may be nil, in
// which case writes are not announced.
func NewBoardWriter(records domain.RecordRepository, pub Publisher, owner, sessionID string) *BoardWriter {
	return &BoardWriter{records: records, pub: pub, owner: owner, sessionID: sessionID}
}

// SaveBoard implements board.BoardWriter.
func (w *BoardWriter) SaveBoard(ctx context.Context, req board.SaveRequest) error {
	id, err := uuid.Parse(req.RecordID)
	if err != nil {
		return fmt.Errorf("store.BoardWriter.SaveBoard: record id %q: %w", req.RecordID, err)
	}

	if err := w.records.UpdateBoard(ctx, id, req.Payload); err != nil {
		return fmt.Errorf("store.BoardWriter.SaveBoard: %w", err)
	}

	if w.pub == nil {
		return nil
	}

	payload, err := json.Marshal(Event{
		Type:      EventRecordsUpdated,
		SessionID: w.sessionID,
		RecordID:  req.RecordID,
		At:        time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("store.BoardWriter.SaveBoard: marshal event: %w", err)
	}
	// The board is stored at this point; a failed publish is not a failed save.
	if err := w.pub.Publish(ctx, redisstore.OwnerChannel(w.owner), payload); err != nil {
		log.Warn().Err(err).Str("record_id", req.RecordID).Msg("store.BoardWriter: publish refresh failed")
	}
	return nil
}

// DecodeEvent parses a payload received on an owner channel.
func DecodeEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("store.DecodeEvent: %w", err)
	}
	return ev, nil
}

// Sources converts records into aggregator sources, preserving order.
func Sources(records []*domain.Record) []board.Source {
	out := make([]board.Source, len(records))
	for i, r := range records {
		out[i] = Source(r)
	}
	return out
}

// Source converts one record into an aggregator source.
func Source(r *domain.Record) board.Source {
	return board.Source{ID: r.ID.String(), Name: r.RecordName, Board: r.KanbanRecords}
}
