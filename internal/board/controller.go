package board

// Mode selects how a controller loads and saves its board.
type Mode string

const (
	ModeSingle     Mode = "single"
	ModeAggregated Mode = "aggregated"
)

// ControllerConfig configures a Controller.
type ControllerConfig struct {
	Reconciler ReconcilerConfig
	Engine     []EngineOption
}

// Controller wires one board view together: it loads the board from its
// sources, exposes the engine operations, and feeds every committed change to
// the reconciler.
type Controller struct {
	*Engine

	mode        Mode
	sources     []Source
	reconciler  *Reconciler
	unsubscribe func()
}

// NewSingleController opens the board stored in src.
func NewSingleController(src Source, w BoardWriter, cfg ControllerConfig) *Controller {
	target := Target{RecordID: src.ID}
	return newController(ModeSingle, []Source{src}, ParseBoard(src.Board), w, target, cfg.Engine, cfg)
}

// NewAggregatedController opens the merged board of all sources. New tasks are
// attributed to the first source.
func NewAggregatedController(sources []Source, w BoardWriter, cfg ControllerConfig) *Controller {
	ids := make([]string, len(sources))
	for i, s := range sources {
		ids[i] = s.ID
	}
	opts := cfg.Engine
	if len(sources) > 0 {
		opts = append([]EngineOption{WithDefaultRecord(RecordRef{ID: sources[0].ID, Name: sources[0].Name})}, opts...)
	}
	target := Target{Aggregated: true, RecordIDs: ids}
	return newController(ModeAggregated, sources, Aggregate(sources), w, target, opts, cfg)
}

func newController(mode Mode, sources []Source, initial State, w BoardWriter, target Target, opts []EngineOption, cfg ControllerConfig) *Controller {
	c := &Controller{
		Engine:     NewEngine(initial, opts...),
		mode:       mode,
		sources:    sources,
		reconciler: NewReconciler(w, target, cfg.Reconciler),
	}
	c.reconciler.Load(initial)
	c.unsubscribe = c.Engine.Subscribe(c.reconciler.Changed)
	return c
}

// Mode returns the controller's mode.
func (c *Controller) Mode() Mode {
	return c.mode
}

// Sources returns the records backing the board.
func (c *Controller) Sources() []Source {
	out := make([]Source, len(c.sources))
	copy(out, c.sources)
	return out
}

// Empty reports the "no data" display state: the board has neither columns
// nor tasks.
func (c *Controller) Empty() bool {
	return c.State().IsEmpty()
}

// Reload replaces the board with data freshly read from the sources. The
// settle window restarts, so the reloaded board is not written straight back.
// The source set itself is fixed for the controller's lifetime; sources with
// other ids are ignored.
func (c *Controller) Reload(sources []Source) {
	byID := make(map[string]Source, len(sources))
	for _, s := range sources {
		byID[s.ID] = s
	}
	for i, s := range c.sources {
		if fresh, ok := byID[s.ID]; ok {
			c.sources[i] = fresh
		}
	}

	var s State
	if c.mode == ModeAggregated {
		s = Aggregate(c.sources)
	} else {
		s = ParseBoard(c.sources[0].Board)
	}
	c.Engine.Reset(s)
	c.reconciler.Load(s)
}

// Close detaches the reconciler and cancels any pending save. A save already
// being written completes in the background.
func (c *Controller) Close() {
	c.unsubscribe()
	c.reconciler.Close()
}

// Wait blocks until background saves have finished.
func (c *Controller) Wait() {
	c.reconciler.Wait()
}
