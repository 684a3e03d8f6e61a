package board_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/careboard/internal/board"
)

func TestParseBoard(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want board.State
	}{
		{name: "empty string", in: "", want: board.EmptyState()},
		{name: "whitespace", in: "  \n", want: board.EmptyState()},
		{name: "malformed", in: "{columns:", want: board.EmptyState()},
		{name: "wrong shape", in: `[1,2,3]`, want: board.EmptyState()},
		{name: "no fields", in: `{}`, want: board.EmptyState()},
		{
			name: "full",
			in:   `{"columns":[{"id":"todo","title":"Todo"}],"tasks":[{"id":"1","columnId":"todo","content":"A"}]}`,
			want: board.State{
				Columns: []board.Column{{ID: "todo", Title: "Todo"}},
				Tasks:   []board.Task{{ID: "1", ColumnID: "todo", Content: "A"}},
			},
		},
		{
			name: "numeric ids",
			in:   `{"columns":[{"id":1712345678901,"title":"Todo"}],"tasks":[{"id":42,"columnId":1712345678901,"content":"A"}]}`,
			want: board.State{
				Columns: []board.Column{{ID: "1712345678901", Title: "Todo"}},
				Tasks:   []board.Task{{ID: "42", ColumnID: "1712345678901", Content: "A"}},
			},
		},
		{
			name: "missing fields default to empty",
			in:   `{"columns":[{"id":"c"}],"tasks":[{"id":"t","columnId":null}]}`,
			want: board.State{
				Columns: []board.Column{{ID: "c"}},
				Tasks:   []board.Task{{ID: "t"}},
			},
		},
		{
			name: "origin fields",
			in:   `{"columns":[],"tasks":[{"id":"t","columnId":"c","content":"x","originalRecordId":"r","originalTaskId":5}]}`,
			want: board.State{
				Columns: []board.Column{},
				Tasks: []board.Task{{
					ID: "t", ColumnID: "c", Content: "x",
					Origin: &board.Origin{RecordID: "r", TaskID: "5"},
				}},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, board.ParseBoard(tc.in))
		})
	}
}

func TestSerialize_DropsOrigin(t *testing.T) {
	t.Parallel()

	s := board.State{
		Columns: []board.Column{{ID: "todo", Title: "Todo"}},
		Tasks: []board.Task{
			{ID: "1", ColumnID: "todo", Content: "A", Origin: &board.Origin{RecordID: "r", TaskID: "1"}},
		},
	}

	assert.JSONEq(t,
		`{"columns":[{"id":"todo","title":"Todo"}],"tasks":[{"id":"1","columnId":"todo","content":"A"}]}`,
		s.Serialize())
}

func TestSerialize_EmptyUsesArrays(t *testing.T) {
	t.Parallel()

	assert.JSONEq(t, `{"columns":[],"tasks":[]}`, board.State{}.Serialize())
}

func TestSerialize_ParseRoundTrip(t *testing.T) {
	t.Parallel()

	s := sampleState()
	assert.Equal(t, s, board.ParseBoard(s.Serialize()))
}

func TestTask_JSONCarriesOrigin(t *testing.T) {
	t.Parallel()

	task := board.Task{ID: "rx-1-1", ColumnID: "todo", Content: "[A] x", Origin: &board.Origin{RecordID: "rx", TaskID: "1"}}
	data, err := json.Marshal(task)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"id":"rx-1-1","columnId":"todo","content":"[A] x","originalRecordId":"rx","originalTaskId":"1"}`,
		string(data))

	var back board.Task
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, task, back)
}

func TestState_Clone(t *testing.T) {
	t.Parallel()

	s := board.State{
		Columns: []board.Column{{ID: "c", Title: "C"}},
		Tasks:   []board.Task{{ID: "t", ColumnID: "c", Origin: &board.Origin{RecordID: "r", TaskID: "t"}}},
	}
	c := s.Clone()
	c.Columns[0].Title = "changed"
	c.Tasks[0].Origin.RecordID = "changed"

	assert.Equal(t, "C", s.Columns[0].Title)
	assert.Equal(t, "r", s.Tasks[0].Origin.RecordID)
}

func TestState_OrphansAndGrouping(t *testing.T) {
	t.Parallel()

	s := board.State{
		Columns: []board.Column{{ID: "a"}, {ID: "b"}},
		Tasks: []board.Task{
			{ID: "1", ColumnID: "a"},
			{ID: "2", ColumnID: "gone"},
			{ID: "3", ColumnID: "b"},
			{ID: "4", ColumnID: "a"},
		},
	}

	assert.Equal(t, []board.Task{{ID: "1", ColumnID: "a"}, {ID: "4", ColumnID: "a"}}, s.TasksInColumn("a"))
	assert.Equal(t, []board.Task{{ID: "2", ColumnID: "gone"}}, s.Orphans())
	assert.Empty(t, s.TasksInColumn("gone"))
}

func TestState_IsEmpty(t *testing.T) {
	t.Parallel()

	assert.True(t, board.EmptyState().IsEmpty())
	assert.True(t, board.State{}.IsEmpty())
	assert.False(t, board.State{Columns: []board.Column{{ID: "c"}}}.IsEmpty())
	assert.False(t, board.State{Tasks: []board.Task{{ID: "t"}}}.IsEmpty())
}
