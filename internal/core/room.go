package core

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat-server/internal/groups"
	"github.com/vovakirdan/roomchat-server/internal/metrics"
	"github.com/vovakirdan/roomchat-server/internal/proto"
	"github.com/vovakirdan/roomchat-server/internal/store"
)

var fixedRooms = map[int]string{
	store.RoomGeneral: "General",
	store.RoomStudy:   "Study",
	store.RoomGaming:  "Gaming",
}

// IsFixedRoom reports whether id is one of the permanent channels.
func IsFixedRoom(id int) bool {
	_, ok := fixedRooms[id]
	return ok
}

// FixedRooms returns the permanent channel ids and names in id order.
func FixedRooms() []RoomInfo {
	return []RoomInfo{
		{ID: store.RoomGeneral, Name: fixedRooms[store.RoomGeneral]},
		{ID: store.RoomStudy, Name: fixedRooms[store.RoomStudy]},
		{ID: store.RoomGaming, Name: fixedRooms[store.RoomGaming]},
	}
}

// RoomInfo names a room.
type RoomInfo struct {
	ID   int
	Name string
}

// Router tracks which room each session occupies and delivers room traffic.
type Router struct {
	registry    *Registry
	history     store.HistoryStore
	catalog     *groups.Catalog
	replayDelay time.Duration
	log         *zerolog.Logger
}

// NewRouter builds a router over the registry and history store.
func NewRouter(registry *Registry, history store.HistoryStore, catalog *groups.Catalog, replayDelay time.Duration, logger *zerolog.Logger) *Router {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Router{
		registry:    registry,
		history:     history,
		catalog:     catalog,
		replayDelay: replayDelay,
		log:         logger,
	}
}

// RoomLabel returns the display name of a room.
func (r *Router) RoomLabel(id int) string {
	if name, ok := fixedRooms[id]; ok {
		return name
	}
	if r.catalog != nil {
		if g, ok := r.catalog.Get(id); ok {
			return g.Name
		}
	}
	return "Custom Group"
}

// Broadcast appends text to the room's history and delivers it to every
// authenticated session in the room except exclude (which may be nil).
// Recipients are copied out of the registry before any send.
func (r *Router) Broadcast(ctx context.Context, text string, roomID int, exclude *Session) {
	if err := r.history.AppendHistory(ctx, roomID, text); err != nil {
		metrics.StorageErrors.WithLabelValues("append_history").Inc()
		r.log.Error().Err(err).Int("room", roomID).Msg("failed to append history")
	}

	recipients := r.registry.Snapshot(func(info SessionInfo) bool {
		return info.Authenticated && info.Room == roomID && (exclude == nil || info.ID != exclude.ID)
	})
	for _, s := range recipients {
		_ = s.Send(text)
	}
	metrics.Broadcasts.Inc()
	metrics.Deliveries.Add(float64(len(recipients)))
}

// Join moves s from its current room to roomID: a leave notice goes to the
// old room, the new room's history is replayed to s, and a join notice goes
// to the new room. It returns false if the group was deleted under s, in
// which case s is left in General.
func (r *Router) Join(ctx context.Context, s *Session, roomID int) bool {
	info := r.registry.Info(s)
	r.Broadcast(ctx, proto.Event("%s left for another channel.", info.Name), info.Room, s)

	r.registry.SetRoom(s, roomID)
	// A delete may have evicted the room before SetRoom landed.
	if roomID >= store.FirstGroupID && r.catalog != nil && !r.catalog.Exists(roomID) {
		if r.registry.MoveIf(s, roomID, store.RoomGeneral) {
			_ = s.Send(proto.Notice("Group was deleted. You were moved to General."))
		}
		return false
	}
	r.Replay(ctx, s, roomID)
	r.Broadcast(ctx, proto.Event("%s joined %s Channel.", info.Name, r.RoomLabel(roomID)), roomID, s)
	return true
}

// Enter places a freshly authenticated session: history of its current room
// is replayed and a join notice goes to the room.
func (r *Router) Enter(ctx context.Context, s *Session) {
	info := r.registry.Info(s)
	r.Replay(ctx, s, info.Room)
	r.Broadcast(ctx, proto.Event("%s joined %s Channel.", info.Name, r.RoomLabel(info.Room)), info.Room, s)
}

// Leave announces a disconnect to the session's last room.
func (r *Router) Leave(ctx context.Context, info SessionInfo) {
	if !info.Authenticated {
		return
	}
	r.Broadcast(ctx, proto.Event("%s has left the chat.", info.Name), info.Room, nil)
}

// ForceMove relocates s to roomID without it asking and sends it notice.
func (r *Router) ForceMove(s *Session, roomID int, notice string) {
	r.registry.SetRoom(s, roomID)
	_ = s.Send(notice)
}

// Evict force-moves every session in room from that matches pred to room to.
// Sessions that changed rooms concurrently are left alone. Returns the number moved.
func (r *Router) Evict(from, to int, pred func(SessionInfo) bool, notice string) int {
	candidates := r.registry.Snapshot(func(info SessionInfo) bool {
		return info.Room == from && (pred == nil || pred(info))
	})
	moved := 0
	for _, s := range candidates {
		if r.registry.MoveIf(s, from, to) {
			_ = s.Send(notice)
			moved++
		}
	}
	return moved
}

// Replay streams the room's history to s, pausing replayDelay between lines.
// The store lock is only held while reading the log.
func (r *Router) Replay(ctx context.Context, s *Session, roomID int) {
	lines, err := r.history.History(ctx, roomID)
	if err != nil {
		metrics.StorageErrors.WithLabelValues("read_history").Inc()
		r.log.Error().Err(err).Int("room", roomID).Msg("failed to read history")
		return
	}

	for i, line := range lines {
		if i > 0 && r.replayDelay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(r.replayDelay):
			}
		}
		if err := s.Send(line); err != nil {
			return
		}
	}
}
