// Package board implements the treatment-task board: its entity model, the
// drag-reorder engine, multi-record aggregation, and debounced persistence.
package board

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// Column is one board column. Order within State.Columns is the display order.
type Column struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Origin identifies the source record of a task shown on an aggregated board.
// TaskID is the task's id inside that record's own board.
type Origin struct {
	RecordID string
	TaskID   string
}

// Task is one card on the board. Origin is nil for tasks of a single-record
// board and set for tasks synthesized by Aggregate.
type Task struct {
	ID       string
	ColumnID string
	Content  string
	Origin   *Origin
}

// Aggregated reports whether the task belongs to an aggregated board.
func (t Task) Aggregated() bool {
	return t.Origin != nil
}

type taskJSON struct {
	ID               string `json:"id"`
	ColumnID         string `json:"columnId"`
	Content          string `json:"content"`
	OriginalRecordID string `json:"originalRecordId,omitempty"`
	OriginalTaskID   string `json:"originalTaskId,omitempty"`
}

// MarshalJSON encodes the task for clients. Origin is flattened into the
// originalRecordId/originalTaskId fields.
func (t Task) MarshalJSON() ([]byte, error) {
	out := taskJSON{ID: t.ID, ColumnID: t.ColumnID, Content: t.Content}
	if t.Origin != nil {
		out.OriginalRecordID = t.Origin.RecordID
		out.OriginalTaskID = t.Origin.TaskID
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes leniently through NormalizeTask.
func (t *Task) UnmarshalJSON(data []byte) error {
	var raw RawTask
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = NormalizeTask(raw)
	return nil
}

// State is the full set of columns and tasks for one board view. Tasks is a
// single ordered list; grouping by column happens at read time.
type State struct {
	Columns []Column `json:"columns"`
	Tasks   []Task   `json:"tasks"`
}

// EmptyState returns a board with no columns and no tasks.
func EmptyState() State {
	return State{Columns: []Column{}, Tasks: []Task{}}
}

// IsEmpty reports whether the board has neither columns nor tasks.
func (s State) IsEmpty() bool {
	return len(s.Columns) == 0 && len(s.Tasks) == 0
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := State{
		Columns: make([]Column, len(s.Columns)),
		Tasks:   make([]Task, len(s.Tasks)),
	}
	copy(out.Columns, s.Columns)
	for i, t := range s.Tasks {
		if t.Origin != nil {
			o := *t.Origin
			t.Origin = &o
		}
		out.Tasks[i] = t
	}
	return out
}

// TasksInColumn returns the tasks whose ColumnID is columnID, in list order.
// A column that does not exist has no tasks, so orphans are never returned.
func (s State) TasksInColumn(columnID string) []Task {
	if s.columnIndex(columnID) < 0 {
		return nil
	}
	var out []Task
	for _, t := range s.Tasks {
		if t.ColumnID == columnID {
			out = append(out, t)
		}
	}
	return out
}

// Orphans returns tasks whose ColumnID does not reference an existing column.
func (s State) Orphans() []Task {
	known := make(map[string]struct{}, len(s.Columns))
	for _, c := range s.Columns {
		known[c.ID] = struct{}{}
	}
	var out []Task
	for _, t := range s.Tasks {
		if _, ok := known[t.ColumnID]; !ok {
			out = append(out, t)
		}
	}
	return out
}

func (s State) columnIndex(id string) int {
	for i, c := range s.Columns {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (s State) taskIndex(id string) int {
	for i, t := range s.Tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

type persistedTask struct {
	ID       string `json:"id"`
	ColumnID string `json:"columnId"`
	Content  string `json:"content"`
}

type persistedState struct {
	Columns []Column        `json:"columns"`
	Tasks   []persistedTask `json:"tasks"`
}

// Serialize encodes s in the persisted kanbanRecords format. Origin fields are
// not part of that format and are dropped.
func (s State) Serialize() string {
	p := persistedState{
		Columns: make([]Column, len(s.Columns)),
		Tasks:   make([]persistedTask, len(s.Tasks)),
	}
	copy(p.Columns, s.Columns)
	for i, t := range s.Tasks {
		p.Tasks[i] = persistedTask{ID: t.ID, ColumnID: t.ColumnID, Content: t.Content}
	}
	// Only strings and slices of plain structs; Marshal cannot fail.
	data, _ := json.Marshal(p)
	return string(data)
}

// RawTask is a task as found in untrusted JSON. Fields are optional and ids
// may have been stored as numbers.
type RawTask struct {
	ID               FlexString `json:"id"`
	ColumnID         FlexString `json:"columnId"`
	Content          *string    `json:"content"`
	OriginalRecordID FlexString `json:"originalRecordId"`
	OriginalTaskID   FlexString `json:"originalTaskId"`
}

// NormalizeTask converts a raw task into a Task. Missing fields default to
// empty strings. Origin is set only when the raw task names a source record.
func NormalizeTask(raw RawTask) Task {
	t := Task{
		ID:       string(raw.ID),
		ColumnID: string(raw.ColumnID),
	}
	if raw.Content != nil {
		t.Content = *raw.Content
	}
	if raw.OriginalRecordID != "" {
		t.Origin = &Origin{
			RecordID: string(raw.OriginalRecordID),
			TaskID:   string(raw.OriginalTaskID),
		}
	}
	return t
}

type rawColumn struct {
	ID    FlexString `json:"id"`
	Title *string    `json:"title"`
}

type rawState struct {
	Columns []rawColumn `json:"columns"`
	Tasks   []RawTask   `json:"tasks"`
}

// ParseBoard decodes a serialized board. The empty string and malformed JSON
// both yield an empty board; parse failures are logged, never returned.
func ParseBoard(serialized string) State {
	if strings.TrimSpace(serialized) == "" {
		return EmptyState()
	}

	var raw rawState
	if err := json.Unmarshal([]byte(serialized), &raw); err != nil {
		log.Warn().Err(err).Msg("board.ParseBoard: malformed board payload, using empty board")
		return EmptyState()
	}

	s := State{
		Columns: make([]Column, 0, len(raw.Columns)),
		Tasks:   make([]Task, 0, len(raw.Tasks)),
	}
	for _, c := range raw.Columns {
		col := Column{ID: string(c.ID)}
		if c.Title != nil {
			col.Title = *c.Title
		}
		s.Columns = append(s.Columns, col)
	}
	for _, t := range raw.Tasks {
		s.Tasks = append(s.Tasks, NormalizeTask(t))
	}
	return s
}

// FlexString decodes a JSON string or number into a string. Anything else
// (null, objects, arrays) decodes to the empty string.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		*f = ""
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
			*f = FlexString(strconv.FormatInt(i, 10))
			return nil
		}
		*f = FlexString(n.String())
	default:
		*f = ""
	}
	return nil
}
