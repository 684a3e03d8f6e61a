package board

import (
	"regexp"
	"strconv"
)

// Source is one record's contribution to an aggregated board.
type Source struct {
	ID    string
	Name  string
	Board string // serialized board, "" when the record has none yet
}

// DefaultColumns is the column set used when no source record has columns.
func DefaultColumns() []Column {
	return []Column{
		{ID: "todo", Title: "Todo"},
		{ID: "doing", Title: "Work in progress"},
		{ID: "done", Title: "Done"},
	}
}

var recordPrefix = regexp.MustCompile(`^\[.*?\]\s*`)

// StripRecordPrefix removes a leading "[name] " tag from task content.
func StripRecordPrefix(content string) string {
	return recordPrefix.ReplaceAllString(content, "")
}

// Aggregate merges the boards of sources into one board.
//
// Columns come from the first source whose board has any; otherwise
// DefaultColumns is used. Every task of every source appears once, in
// source-then-task order, with a synthetic id, a "[name] " content prefix and
// an Origin pointing back at the source.
func Aggregate(sources []Source) State {
	parsed := make([]State, len(sources))
	for i, src := range sources {
		parsed[i] = ParseBoard(src.Board)
	}

	out := State{Tasks: []Task{}}
	for _, p := range parsed {
		if len(p.Columns) > 0 {
			out.Columns = append([]Column(nil), p.Columns...)
			break
		}
	}
	if out.Columns == nil {
		out.Columns = DefaultColumns()
	}

	counter := 1
	for i, src := range sources {
		for _, t := range parsed[i].Tasks {
			out.Tasks = append(out.Tasks, Task{
				ID:       src.ID + "-" + t.ID + "-" + strconv.Itoa(counter),
				ColumnID: t.ColumnID,
				Content:  "[" + src.Name + "] " + t.Content,
				Origin:   &Origin{RecordID: src.ID, TaskID: t.ID},
			})
			counter++
		}
	}
	return out
}

// Demultiplex splits an aggregated board back into one board per record.
//
// Every id in recordIDs is present in the result, with an empty task list when
// no task belongs to it, so deletions are written back. Tasks without an
// Origin or with an unknown record are dropped. Columns are copied into every
// board unchanged.
func Demultiplex(s State, recordIDs []string) map[string]State {
	out := make(map[string]State, len(recordIDs))
	for _, id := range recordIDs {
		cols := make([]Column, len(s.Columns))
		copy(cols, s.Columns)
		out[id] = State{Columns: cols, Tasks: []Task{}}
	}

	for _, t := range s.Tasks {
		if t.Origin == nil {
			continue
		}
		rb, ok := out[t.Origin.RecordID]
		if !ok {
			continue
		}
		id := t.Origin.TaskID
		if id == "" {
			id = t.ID
		}
		rb.Tasks = append(rb.Tasks, Task{
			ID:       id,
			ColumnID: t.ColumnID,
			Content:  StripRecordPrefix(t.Content),
		})
		out[t.Origin.RecordID] = rb
	}
	return out
}
