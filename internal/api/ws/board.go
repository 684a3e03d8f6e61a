package ws

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gosuda/careboard/internal/board"
)

// Client commands.
const (
	OpCreateColumn = "create_column"
	OpRenameColumn = "rename_column"
	OpDeleteColumn = "delete_column"
	OpCreateTask   = "create_task"
	OpRenameTask   = "rename_task"
	OpDeleteTask   = "delete_task"
	OpDragStart    = "drag_start"
	OpDragOver     = "drag_over"
	OpDragEnd      = "drag_end"
	OpDragCancel   = "drag_cancel"
	OpReload       = "reload"
)

// Server messages.
const (
	MsgSnapshot       = "snapshot"
	MsgRecordsUpdated = "records_updated"
	MsgError          = "error"
)

var (
	errUnknownOp    = errors.New("unknown op")
	errMissingField = errors.New("missing field")
)

// Command is a client request. Which fields are read depends on Op.
type Command struct {
	Op       string    `json:"op"`
	ID       string    `json:"id,omitempty"`
	ColumnID string    `json:"columnId,omitempty"`
	Title    string    `json:"title,omitempty"`
	Content  string    `json:"content,omitempty"`
	Active   board.Ref `json:"active"`
	Over     board.Ref `json:"over"`
}

// DragView reports the engine's interaction state.
type DragView struct {
	State  string    `json:"state"`
	Active board.Ref `json:"active"`
}

// SourceView names a record behind the board.
type SourceView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Message is sent to the client.
type Message struct {
	Type     string       `json:"type"`
	Mode     board.Mode   `json:"mode,omitempty"`
	Empty    bool         `json:"empty,omitempty"`
	Board    *board.State `json:"board,omitempty"`
	Drag     *DragView    `json:"drag,omitempty"`
	Sources  []SourceView `json:"sources,omitempty"`
	Created  string       `json:"created,omitempty"`
	RecordID string       `json:"recordId,omitempty"`
	Error    string       `json:"error,omitempty"`
}

func decodeCommand(data []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return Command{}, fmt.Errorf("malformed command: %w", err)
	}
	if cmd.Op == "" {
		return Command{}, fmt.Errorf("op: %w", errMissingField)
	}
	return cmd, nil
}

// apply runs cmd against c and returns the id of a created entity, if any.
// OpReload is handled by the session.
func apply(c *board.Controller, cmd Command) (string, error) {
	switch cmd.Op {
	case OpCreateColumn:
		return c.CreateColumn().ID, nil
	case OpRenameColumn:
		if cmd.ID == "" {
			return "", fmt.Errorf("%s: id: %w", cmd.Op, errMissingField)
		}
		c.RenameColumn(cmd.ID, cmd.Title)
	case OpDeleteColumn:
		if cmd.ID == "" {
			return "", fmt.Errorf("%s: id: %w", cmd.Op, errMissingField)
		}
		c.DeleteColumn(cmd.ID)
	case OpCreateTask:
		if cmd.ColumnID == "" {
			return "", fmt.Errorf("%s: columnId: %w", cmd.Op, errMissingField)
		}
		return c.CreateTask(cmd.ColumnID).ID, nil
	case OpRenameTask:
		if cmd.ID == "" {
			return "", fmt.Errorf("%s: id: %w", cmd.Op, errMissingField)
		}
		c.RenameTaskContent(cmd.ID, cmd.Content)
	case OpDeleteTask:
		if cmd.ID == "" {
			return "", fmt.Errorf("%s: id: %w", cmd.Op, errMissingField)
		}
		c.DeleteTask(cmd.ID)
	case OpDragStart:
		if cmd.Active.IsZero() {
			return "", fmt.Errorf("%s: active: %w", cmd.Op, errMissingField)
		}
		c.BeginDrag(cmd.Active)
	case OpDragOver:
		c.DragOver(cmd.Active, cmd.Over)
	case OpDragEnd:
		// A zero Over is a drop outside any target.
		c.EndDrag(cmd.Active, cmd.Over)
	case OpDragCancel:
		c.CancelDrag()
	default:
		return "", fmt.Errorf("%q: %w", cmd.Op, errUnknownOp)
	}
	return "", nil
}

func snapshot(c *board.Controller, created string) Message {
	s := c.State()
	drag, active := c.Drag()
	srcs := c.Sources()
	views := make([]SourceView, len(srcs))
	for i, src := range srcs {
		views[i] = SourceView{ID: src.ID, Name: src.Name}
	}
	return Message{
		Type:    MsgSnapshot,
		Mode:    c.Mode(),
		Empty:   s.IsEmpty(),
		Board:   &s,
		Drag:    &DragView{State: drag.String(), Active: active},
		Sources: views,
		Created: created,
	}
}
