package board

import (
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Kind distinguishes the two draggable entity kinds.
type Kind string

const (
	KindColumn Kind = "column"
	KindTask   Kind = "task"
)

// Ref points at a draggable entity. The zero Ref means "no entity", which is
// how a drop outside any droppable area is reported to EndDrag.
type Ref struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`
}

// IsZero reports whether r references nothing.
func (r Ref) IsZero() bool {
	return r.ID == ""
}

// DragState is the engine's interaction state.
type DragState int

const (
	Idle DragState = iota
	DraggingColumn
	DraggingTask
)

func (d DragState) String() string {
	switch d {
	case Idle:
		return "idle"
	case DraggingColumn:
		return "dragging_column"
	case DraggingTask:
		return "dragging_task"
	default:
		return "unknown"
	}
}

// RecordRef names a source record. In aggregated mode new tasks are assigned
// to the engine's default RecordRef.
type RecordRef struct {
	ID   string
	Name string
}

// Listener receives a snapshot of the board after every committed change.
type Listener func(State)

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithDefaultRecord switches the engine to aggregated mode: created tasks are
// attributed to rec and their content is prefixed with "[rec.Name] ".
func WithDefaultRecord(rec RecordRef) EngineOption {
	return func(e *Engine) {
		r := rec
		e.defaultRecord = &r
	}
}

// WithIDGenerator overrides the id source for created columns and tasks.
func WithIDGenerator(gen func() string) EngineOption {
	return func(e *Engine) {
		e.newID = gen
	}
}

// Engine owns the board state of one board view. Every method is total:
// unknown ids are ignored, and ignored calls do not notify listeners.
type Engine struct {
	mu            sync.Mutex
	state         State
	drag          DragState
	active        Ref
	defaultRecord *RecordRef
	newID         func() string

	listenersMu sync.Mutex
	listeners   map[int]Listener
	nextLis     int
}

// NewEngine creates an engine that starts from a copy of initial.
func NewEngine(initial State, opts ...EngineOption) *Engine {
	e := &Engine{
		state:     initial.Clone(),
		newID:     uuid.NewString,
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Subscribe registers l for committed changes and returns a function that
// removes it.
func (e *Engine) Subscribe(l Listener) func() {
	e.listenersMu.Lock()
	id := e.nextLis
	e.nextLis++
	e.listeners[id] = l
	e.listenersMu.Unlock()

	return func() {
		e.listenersMu.Lock()
		delete(e.listeners, id)
		e.listenersMu.Unlock()
	}
}

// State returns a snapshot of the current board.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// Drag returns the current interaction state and the dragged entity.
func (e *Engine) Drag() (DragState, Ref) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.drag, e.active
}

// Reset replaces the board with s and ends any drag. Listeners are not
// notified: a reset is a load, not an edit.
func (e *Engine) Reset(s State) {
	e.mu.Lock()
	e.state = s.Clone()
	e.drag, e.active = Idle, Ref{}
	e.mu.Unlock()
}

// Aggregated reports whether the engine runs in aggregated mode.
func (e *Engine) Aggregated() bool {
	return e.defaultRecord != nil
}

// update applies fn under the lock and notifies listeners when fn reports a
// change.
func (e *Engine) update(fn func(s *State) bool) {
	e.mu.Lock()
	changed := fn(&e.state)
	var snap State
	if changed {
		snap = e.state.Clone()
	}
	e.mu.Unlock()

	if changed {
		e.notify(snap)
	}
}

func (e *Engine) notify(s State) {
	e.listenersMu.Lock()
	ls := make([]Listener, 0, len(e.listeners))
	for _, l := range e.listeners {
		ls = append(ls, l)
	}
	e.listenersMu.Unlock()

	for _, l := range ls {
		l(s.Clone())
	}
}

// CreateColumn appends a new column titled "Column N".
func (e *Engine) CreateColumn() Column {
	var col Column
	e.update(func(s *State) bool {
		col = Column{
			ID:    e.newID(),
			Title: "Column " + strconv.Itoa(len(s.Columns)+1),
		}
		s.Columns = append(s.Columns, col)
		return true
	})
	log.Debug().Str("column_id", col.ID).Msg("board: column created")
	return col
}

// RenameColumn sets the title of column id.
func (e *Engine) RenameColumn(id, title string) {
	e.update(func(s *State) bool {
		i := s.columnIndex(id)
		if i < 0 {
			return false
		}
		s.Columns[i].Title = title
		return true
	})
}

// DeleteColumn removes column id and every task in it.
func (e *Engine) DeleteColumn(id string) {
	e.update(func(s *State) bool {
		i := s.columnIndex(id)
		if i < 0 {
			return false
		}
		cols := make([]Column, 0, len(s.Columns)-1)
		cols = append(cols, s.Columns[:i]...)
		cols = append(cols, s.Columns[i+1:]...)
		s.Columns = cols

		tasks := make([]Task, 0, len(s.Tasks))
		for _, t := range s.Tasks {
			if t.ColumnID != id {
				tasks = append(tasks, t)
			}
		}
		s.Tasks = tasks
		return true
	})
}

// CreateTask appends a task to columnID with content "Task N". In aggregated
// mode the task is attributed to the default record.
func (e *Engine) CreateTask(columnID string) Task {
	var task Task
	e.update(func(s *State) bool {
		id := e.newID()
		content := "Task " + strconv.Itoa(len(s.Tasks)+1)
		task = Task{ID: id, ColumnID: columnID, Content: content}
		if rec := e.defaultRecord; rec != nil {
			task.Origin = &Origin{RecordID: rec.ID, TaskID: id}
			task.Content = "[" + rec.Name + "] " + content
		}
		s.Tasks = append(s.Tasks, task)
		return true
	})
	log.Debug().Str("task_id", task.ID).Str("column_id", columnID).Msg("board: task created")
	return task
}

// RenameTaskContent sets the content of task id.
func (e *Engine) RenameTaskContent(id, content string) {
	e.update(func(s *State) bool {
		i := s.taskIndex(id)
		if i < 0 {
			return false
		}
		s.Tasks[i].Content = content
		return true
	})
}

// DeleteTask removes task id.
func (e *Engine) DeleteTask(id string) {
	e.update(func(s *State) bool {
		i := s.taskIndex(id)
		if i < 0 {
			return false
		}
		tasks := make([]Task, 0, len(s.Tasks)-1)
		tasks = append(tasks, s.Tasks[:i]...)
		tasks = append(tasks, s.Tasks[i+1:]...)
		s.Tasks = tasks
		return true
	})
}

// BeginDrag records the dragged entity. Refs that name no existing entity
// leave the engine idle.
func (e *Engine) BeginDrag(ref Ref) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case ref.Kind == KindColumn && e.state.columnIndex(ref.ID) >= 0:
		e.drag, e.active = DraggingColumn, ref
	case ref.Kind == KindTask && e.state.taskIndex(ref.ID) >= 0:
		e.drag, e.active = DraggingTask, ref
	default:
		e.drag, e.active = Idle, Ref{}
	}
}

// CancelDrag returns to Idle without touching the board.
func (e *Engine) CancelDrag() {
	e.mu.Lock()
	e.drag, e.active = Idle, Ref{}
	e.mu.Unlock()
}

// DragOver gives live feedback while a task hovers over a drop target.
// Column-over-column hovering is ignored; columns reorder on EndDrag only.
func (e *Engine) DragOver(active, over Ref) {
	if over.IsZero() || active.ID == over.ID || active.Kind != KindTask {
		return
	}
	e.update(func(s *State) bool {
		return moveTask(s, active.ID, over)
	})
}

// EndDrag commits the drop of active onto over and returns to Idle. A zero
// over (dropped outside any target) or a drop onto itself changes nothing.
func (e *Engine) EndDrag(active, over Ref) {
	e.mu.Lock()
	e.drag, e.active = Idle, Ref{}
	e.mu.Unlock()

	if over.IsZero() || active.ID == over.ID {
		return
	}

	switch active.Kind {
	case KindColumn:
		e.update(func(s *State) bool {
			return moveColumn(s, active.ID, over)
		})
	case KindTask:
		e.update(func(s *State) bool {
			return moveTask(s, active.ID, over)
		})
	}
}

// moveColumn moves column activeID to the index of the column under the
// pointer. Dropping a column onto a task targets that task's column.
func moveColumn(s *State, activeID string, over Ref) bool {
	from := s.columnIndex(activeID)
	if from < 0 {
		return false
	}

	targetID := over.ID
	if over.Kind == KindTask {
		ti := s.taskIndex(over.ID)
		if ti < 0 {
			return false
		}
		targetID = s.Tasks[ti].ColumnID
	}
	to := s.columnIndex(targetID)
	if to < 0 || to == from {
		return false
	}

	s.Columns = Move(s.Columns, from, to)
	return true
}

// moveTask applies the task drop rules shared by DragOver and EndDrag.
//
// Over a task in the same column the active task takes that task's index.
// Over a task in another column it adopts that column and lands at the over
// index minus one, which is only an approximation while dragging. Over a
// column it adopts the column and keeps its list position.
func moveTask(s *State, activeID string, over Ref) bool {
	from := s.taskIndex(activeID)
	if from < 0 {
		return false
	}

	switch over.Kind {
	case KindTask:
		to := s.taskIndex(over.ID)
		if to < 0 {
			return false
		}
		target := s.Tasks[to].ColumnID
		if s.Tasks[from].ColumnID != target {
			tasks := make([]Task, len(s.Tasks))
			copy(tasks, s.Tasks)
			tasks[from].ColumnID = target
			s.Tasks = Move(tasks, from, to-1)
			return true
		}
		if from == to {
			return false
		}
		s.Tasks = Move(s.Tasks, from, to)
		return true

	case KindColumn:
		if s.columnIndex(over.ID) < 0 || s.Tasks[from].ColumnID == over.ID {
			return false
		}
		tasks := make([]Task, len(s.Tasks))
		copy(tasks, s.Tasks)
		tasks[from].ColumnID = over.ID
		s.Tasks = tasks
		return true
	}
	return false
}
