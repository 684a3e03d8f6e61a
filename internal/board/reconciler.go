package board

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultSettleWindow = 1000 * time.Millisecond
	DefaultQuietPeriod  = 1000 * time.Millisecond
	defaultWriteTimeout = 10 * time.Second
)

// SaveRequest is one board write. Refresh is false for every write of a
// multi-record batch except the last one.
type SaveRequest struct {
	RecordID string
	Payload  string
	Refresh  bool
}

// BoardWriter persists serialized boards.
type BoardWriter interface {
	SaveBoard(ctx context.Context, req SaveRequest) error
}

// Target says where a reconciler writes. Exactly one of RecordID (single-record
// mode) or RecordIDs (aggregated mode) is used, selected by Aggregated.
type Target struct {
	Aggregated bool
	RecordID   string
	RecordIDs  []string
}

// ReconcilerConfig tunes timing. Zero values select the defaults.
type ReconcilerConfig struct {
	SettleWindow time.Duration
	QuietPeriod  time.Duration
	WriteTimeout time.Duration
}

// Reconciler debounces board changes into writes.
//
// After Load, changes are held back for the settle window; a change seen
// during the window is saved one quiet period after it ends. Outside the
// window each change restarts the quiet-period timer and only the latest state
// is written when it fires. Empty boards are never written.
type Reconciler struct {
	writer BoardWriter
	target Target
	cfg    ReconcilerConfig

	mu       sync.Mutex
	latest   State
	settling bool
	dirty    bool
	closed   bool
	settle   *time.Timer
	debounce *time.Timer
	gen      uint64 // bumped whenever a timer is replaced

	saveMu   sync.Mutex
	inflight sync.WaitGroup
}

// NewReconciler creates a reconciler writing to target through w.
func NewReconciler(w BoardWriter, target Target, cfg ReconcilerConfig) *Reconciler {
	if cfg.SettleWindow <= 0 {
		cfg.SettleWindow = DefaultSettleWindow
	}
	if cfg.QuietPeriod <= 0 {
		cfg.QuietPeriod = DefaultQuietPeriod
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	return &Reconciler{
		writer: w,
		target: target,
		cfg:    cfg,
		latest: EmptyState(),
	}
}

// Load records freshly loaded state and opens the settle window. Any pending
// save is cancelled.
func (r *Reconciler) Load(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	r.latest = s.Clone()
	r.dirty = false
	r.settling = true
	stopTimer(r.debounce)
	r.debounce = nil
	stopTimer(r.settle)
	r.gen++
	gen := r.gen
	r.settle = time.AfterFunc(r.cfg.SettleWindow, func() { r.endSettle(gen) })
}

func (r *Reconciler) endSettle(gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || !r.settling || r.gen != gen {
		return
	}
	r.settling = false
	r.settle = nil
	if r.dirty {
		r.dirty = false
		r.scheduleLocked()
	}
}

// Changed reports a committed board change.
func (r *Reconciler) Changed(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	r.latest = s.Clone()
	if r.settling {
		r.dirty = true
		log.Debug().Msg("board.Reconciler: change during settle window, deferring save")
		return
	}
	r.scheduleLocked()
}

func (r *Reconciler) scheduleLocked() {
	stopTimer(r.debounce)
	r.debounce = nil
	r.gen++

	if r.latest.IsEmpty() {
		log.Debug().Msg("board.Reconciler: empty board, skipping save")
		return
	}

	gen := r.gen
	r.debounce = time.AfterFunc(r.cfg.QuietPeriod, func() { r.fire(gen) })
}

// fire runs when a debounce timer expires. A timer that was replaced before
// it could take the lock is ignored.
func (r *Reconciler) fire(gen uint64) {
	r.mu.Lock()
	if r.closed || r.debounce == nil || r.gen != gen {
		r.mu.Unlock()
		return
	}
	r.debounce = nil
	snap := r.latest.Clone()
	r.inflight.Add(1)
	r.mu.Unlock()

	defer r.inflight.Done()
	r.save(snap)
}

// save writes s to the target. Batches never overlap.
func (r *Reconciler) save(s State) {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	if !r.target.Aggregated {
		r.write(SaveRequest{RecordID: r.target.RecordID, Payload: s.Serialize(), Refresh: true})
		return
	}

	if len(r.target.RecordIDs) == 0 {
		log.Warn().Msg("board.Reconciler: no records to save aggregated board to")
		return
	}

	boards := Demultiplex(s, r.target.RecordIDs)
	last := len(r.target.RecordIDs) - 1
	for i, id := range r.target.RecordIDs {
		r.write(SaveRequest{
			RecordID: id,
			Payload:  boards[id].Serialize(),
			Refresh:  i == last,
		})
	}
	log.Debug().Int("records", len(r.target.RecordIDs)).Msg("board.Reconciler: aggregated save complete")
}

func (r *Reconciler) write(req SaveRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.WriteTimeout)
	defer cancel()

	if err := r.writer.SaveBoard(ctx, req); err != nil {
		log.Error().Err(err).Str("record_id", req.RecordID).Msg("board.Reconciler: save failed")
		return
	}
	log.Debug().Str("record_id", req.RecordID).Bool("refresh", req.Refresh).Msg("board.Reconciler: saved")
}

// Close cancels pending timers. A save that already started runs to
// completion; use Wait to block on it.
func (r *Reconciler) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	stopTimer(r.settle)
	stopTimer(r.debounce)
	r.settle, r.debounce = nil, nil
}

// Wait blocks until in-flight saves finish.
func (r *Reconciler) Wait() {
	r.inflight.Wait()
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}
