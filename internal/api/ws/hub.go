package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/careboard/internal/board"
	"github.com/gosuda/careboard/internal/domain"
	"github.com/gosuda/careboard/internal/server/middleware"
	"github.com/gosuda/careboard/internal/store"
	redisstore "github.com/gosuda/careboard/internal/store/redis"
)

// PubSub carries refresh events between sessions of the same owner.
// *redisstore.PubSub satisfies this interface.
type PubSub interface {
	store.Publisher
	Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error)
}

// Hub serves interactive board sessions. Each connection owns one
// board.Controller; sessions of the same owner learn about each other's saves
// through Redis pub/sub.
type Hub struct {
	records domain.RecordRepository
	pubsub  PubSub
	cfg     board.ControllerConfig
	accept  *websocket.AcceptOptions
}

// NewHub creates a new WebSocket hub. pubsub may be nil, in which case
// sessions are not refreshed by other sessions' saves.
func NewHub(records domain.RecordRepository, pubsub PubSub, cfg board.ControllerConfig, originPatterns []string) *Hub {
	return &Hub{
		records: records,
		pubsub:  pubsub,
		cfg:     cfg,
		accept:  &websocket.AcceptOptions{OriginPatterns: originPatterns},
	}
}

// ServeBoard handles GET /ws/board/{recordID} (one record) and GET /ws/board
// (all of the owner's records merged).
func (h *Hub) ServeBoard(w http.ResponseWriter, r *http.Request) {
	email, ok := middleware.EmailFromContext(r.Context())
	if !ok {
		http.Error(w, "missing user", http.StatusUnauthorized)
		return
	}

	var recordID uuid.UUID
	aggregated := true
	if raw := chi.URLParam(r, "recordID"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "invalid record id", http.StatusBadRequest)
			return
		}
		recordID, aggregated = id, false
	}

	s := &session{
		hub:        h,
		owner:      email,
		recordID:   recordID,
		aggregated: aggregated,
		id:         uuid.NewString(),
	}
	s.log = log.With().Str("session_id", s.id).Bool("aggregated", aggregated).Logger()

	sources, err := s.loadSources(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "record not found", http.StatusNotFound)
			return
		}
		s.log.Error().Err(err).Msg("ws: load board")
		http.Error(w, "failed to load board", http.StatusInternalServerError)
		return
	}

	conn, err := websocket.Accept(w, r, h.accept)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	s.run(r.Context(), conn, sources)
}

type session struct {
	hub        *Hub
	owner      string
	recordID   uuid.UUID
	aggregated bool
	id         string
	log        zerolog.Logger
}

// loadSources reads the records behind the board. A record owned by someone
// else reads as not found.
func (s *session) loadSources(ctx context.Context) ([]board.Source, error) {
	if s.aggregated {
		recs, err := s.hub.records.ListByOwner(ctx, s.owner)
		if err != nil {
			return nil, fmt.Errorf("ws.loadSources: %w", err)
		}
		return store.Sources(recs), nil
	}

	rec, err := s.hub.records.GetByID(ctx, s.recordID)
	if err != nil {
		return nil, fmt.Errorf("ws.loadSources: %w", err)
	}
	if !rec.OwnedBy(s.owner) {
		return nil, fmt.Errorf("ws.loadSources: %w", domain.ErrNotFound)
	}
	return []board.Source{store.Source(rec)}, nil
}

func (s *session) newController(sources []board.Source) *board.Controller {
	var pub store.Publisher
	if s.hub.pubsub != nil {
		pub = s.hub.pubsub
	}
	w := store.NewBoardWriter(s.hub.records, pub, s.owner, s.id)
	if s.aggregated {
		return board.NewAggregatedController(sources, w, s.hub.cfg)
	}
	return board.NewSingleController(sources[0], w, s.hub.cfg)
}

func (s *session) run(ctx context.Context, conn *websocket.Conn, sources []board.Source) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c := s.newController(sources)
	defer c.Close()

	var events <-chan []byte
	if s.hub.pubsub != nil {
		ch, cleanup, err := s.hub.pubsub.Subscribe(ctx, redisstore.OwnerChannel(s.owner))
		if err != nil {
			s.log.Warn().Err(err).Msg("ws: subscribe failed; session will not see other sessions' saves")
		} else {
			defer cleanup()
			events = ch
		}
	}

	incoming := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				readErr <- err
				return
			}
			select {
			case incoming <- data:
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := wsjson.Write(ctx, conn, snapshot(c, "")); err != nil {
		s.log.Debug().Err(err).Msg("websocket write")
		return
	}
	s.log.Info().Int("records", len(sources)).Msg("ws: board session opened")

	for {
		var reply Message
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "connection closed")
			return
		case err := <-readErr:
			if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				s.log.Debug().Err(err).Msg("websocket read")
			}
			return
		case data := <-incoming:
			reply = s.handle(ctx, c, data)
		case msg, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			var skip bool
			reply, skip = s.refresh(ctx, c, msg)
			if skip {
				continue
			}
		}

		if err := wsjson.Write(ctx, conn, reply); err != nil {
			s.log.Debug().Err(err).Msg("websocket write")
			return
		}
	}
}

// handle applies one client command and returns the reply.
func (s *session) handle(ctx context.Context, c *board.Controller, data []byte) Message {
	cmd, err := decodeCommand(data)
	if err != nil {
		return Message{Type: MsgError, Error: err.Error()}
	}

	if cmd.Op == OpReload {
		if err := s.reload(ctx, c); err != nil {
			s.log.Warn().Err(err).Msg("ws: reload failed")
			return Message{Type: MsgError, Error: "reload failed"}
		}
		return snapshot(c, "")
	}

	created, err := apply(c, cmd)
	if err != nil {
		return Message{Type: MsgError, Error: err.Error()}
	}
	return snapshot(c, created)
}

// refresh reacts to a save announced on the owner channel. Saves made by this
// session are skipped. Saves to records behind this board reload it.
func (s *session) refresh(ctx context.Context, c *board.Controller, payload []byte) (Message, bool) {
	ev, err := store.DecodeEvent(payload)
	if err != nil {
		s.log.Warn().Err(err).Msg("ws: bad event")
		return Message{}, true
	}
	if ev.Type != store.EventRecordsUpdated || ev.SessionID == s.id {
		return Message{}, true
	}

	if !s.shows(c, ev.RecordID) {
		return Message{Type: MsgRecordsUpdated, RecordID: ev.RecordID}, false
	}

	if err := s.reload(ctx, c); err != nil {
		s.log.Warn().Err(err).Msg("ws: reload after remote save failed")
		return Message{Type: MsgRecordsUpdated, RecordID: ev.RecordID}, false
	}
	msg := snapshot(c, "")
	msg.RecordID = ev.RecordID
	return msg, false
}

func (s *session) shows(c *board.Controller, recordID string) bool {
	for _, src := range c.Sources() {
		if src.ID == recordID {
			return true
		}
	}
	return false
}

func (s *session) reload(ctx context.Context, c *board.Controller) error {
	sources, err := s.loadSources(ctx)
	if err != nil {
		return err
	}
	c.Reload(sources)
	return nil
}
