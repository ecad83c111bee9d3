package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/vovakirdan/roomchat-server/internal/auth"
	"github.com/vovakirdan/roomchat-server/internal/groups"
	"github.com/vovakirdan/roomchat-server/internal/metrics"
	"github.com/vovakirdan/roomchat-server/internal/proto"
	"github.com/vovakirdan/roomchat-server/internal/store"
)

const maxDisplayName = 49

// Options tune a Hub.
type Options struct {
	MaxClients  int
	ReplayDelay time.Duration
	// RatePerSecond limits inbound lines per session; 0 disables the limit.
	RatePerSecond float64
	RateBurst     int
}

// Hub owns the session table and dispatches inbound lines.
type Hub struct {
	registry *Registry
	router   *Router
	gate     *Gate
	groups   *groups.Catalog
	history  store.HistoryStore
	opts     Options
	log      *zerolog.Logger
}

// NewHub wires the registry, router and gate around the given stores.
func NewHub(accounts *auth.Service, catalog *groups.Catalog, history store.HistoryStore, opts Options, logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	registry := NewRegistry(opts.MaxClients)
	router := NewRouter(registry, history, catalog, opts.ReplayDelay, logger)
	metrics.Groups.Set(float64(catalog.Len()))

	return &Hub{
		registry: registry,
		router:   router,
		gate:     NewGate(accounts, registry, router, logger),
		groups:   catalog,
		history:  history,
		opts:     opts,
		log:      logger,
	}
}

// Registry exposes the session table.
func (h *Hub) Registry() *Registry { return h.registry }

// Router exposes room routing.
func (h *Hub) Router() *Router { return h.router }

// Groups exposes the group catalog.
func (h *Hub) Groups() *groups.Catalog { return h.groups }

// Connect registers a new connection. Returns ErrCapacityExceeded when the
// session table is full; the caller should then close conn.
func (h *Hub) Connect(conn Conn) (*Session, error) {
	s, err := h.registry.Register(conn)
	if err != nil {
		return nil, err
	}
	s.log = h.log.With().
		Int64("session_id", s.ID).
		Str("conn_id", s.ConnID).
		Str("remote", conn.RemoteAddr()).
		Logger()
	if h.opts.RatePerSecond > 0 {
		burst := h.opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(h.opts.RatePerSecond), burst)
	}
	s.log.Debug().Msg("session registered")
	return s, nil
}

// Handshake records the initial display name sent before login.
func (h *Hub) Handshake(s *Session, name string) {
	name = strings.TrimSpace(proto.Flatten(name))
	if len(name) > maxDisplayName {
		name = name[:maxDisplayName]
	}
	if name == "" {
		name = fmt.Sprintf("guest-%d", s.ID)
	}
	h.registry.SetName(s, name)
}

// Disconnect removes the session and tells its room. Safe to call twice.
func (h *Hub) Disconnect(ctx context.Context, s *Session) {
	info := h.registry.Info(s)
	if !h.registry.Unregister(s) {
		return
	}
	h.router.Leave(ctx, info)
	s.log.Debug().Str("user", info.Name).Msg("session unregistered")
}

// CloseAll closes every registered connection; handlers then run Disconnect.
func (h *Hub) CloseAll() {
	for _, s := range h.registry.Snapshot(nil) {
		_ = s.Close()
	}
}

// HandleLine processes one inbound protocol line. Embedded line breaks are
// flattened to spaces so a line can never turn into several on the wire.
func (h *Hub) HandleLine(ctx context.Context, s *Session, line string) {
	if !s.allow() {
		_ = s.Send(proto.Notice("Slow down."))
		return
	}

	cmd := proto.Parse(proto.Flatten(line))
	metrics.Commands.WithLabelValues(commandLabel(cmd)).Inc()

	info := h.registry.Info(s)
	if !info.Authenticated {
		h.gate.Handle(ctx, s, cmd)
		return
	}

	switch cmd.Kind {
	case proto.CommandLogin, proto.CommandRegister:
		_ = s.Send(proto.Notice("Already logged in."))
	case proto.CommandCreateGroup:
		h.createGroup(ctx, s, info, cmd)
	case proto.CommandJoinGroup:
		h.joinGroup(ctx, s, info, cmd)
	case proto.CommandKick, proto.CommandBan, proto.CommandPromote, proto.CommandDeleteGroup:
		if !h.isGroupAdmin(info) {
			// Non-admins' admin commands are plain chat.
			h.chat(ctx, s, info, cmd.Raw)
			return
		}
		h.adminCommand(ctx, s, info, cmd)
	case proto.CommandUsers:
		h.users(s)
	case proto.CommandMsg:
		h.privateMessage(s, info, cmd)
	case proto.CommandJoin:
		h.join(ctx, s, info, cmd)
	default:
		h.chat(ctx, s, info, cmd.Raw)
	}
}

func (h *Hub) chat(ctx context.Context, s *Session, info SessionInfo, text string) {
	h.router.Broadcast(ctx, proto.Chat(info.Name, text), info.Room, s)
}

func (h *Hub) isGroupAdmin(info SessionInfo) bool {
	return info.Room >= store.FirstGroupID && h.groups.IsAdmin(info.Room, info.Name)
}

func (h *Hub) createGroup(ctx context.Context, s *Session, info SessionInfo, cmd proto.Command) {
	name := cmd.Arg(0)
	if name == "" {
		h.reply(s, coreError(ErrCodeProtocol, "Usage /creategroup [name]"))
		return
	}
	if !auth.ValidName(name) {
		h.reply(s, coreError(ErrCodeProtocol, "Invalid group name."))
		return
	}

	id, err := h.groups.Create(ctx, name, info.Name)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateName):
			h.reply(s, classify(err, "Group name exists."))
		case errors.Is(err, store.ErrCapacityExceeded):
			h.reply(s, classify(err, "Group limit reached."))
		default:
			h.storageFailure(s, "create_group", err)
		}
		return
	}
	metrics.Groups.Set(float64(h.groups.Len()))
	s.log.Info().Str("group", name).Int("group_id", id).Msg("group created")

	if !h.router.Join(ctx, s, id) {
		return
	}
	_ = s.Send(proto.Notice("Group created. You are Admin."))
}

func (h *Hub) joinGroup(ctx context.Context, s *Session, info SessionInfo, cmd proto.Command) {
	name := cmd.Arg(0)
	if name == "" {
		h.reply(s, coreError(ErrCodeProtocol, "Usage /joingroup [name]"))
		return
	}
	id, err := h.groups.LookupByName(name)
	if err != nil {
		h.reply(s, classify(err, "Group not found."))
		return
	}
	if !h.enterGroup(ctx, s, info, id) {
		return
	}
	_ = s.Send(proto.Notice("Joined group %s.", name))
}

// enterGroup adds the session's user to group id and moves the session there.
func (h *Hub) enterGroup(ctx context.Context, s *Session, info SessionInfo, id int) bool {
	if err := h.groups.Join(ctx, id, info.Name); err != nil {
		switch {
		case errors.Is(err, store.ErrBanned):
			h.reply(s, classify(err, "You are banned from this group."))
		case errors.Is(err, store.ErrNotFound):
			h.reply(s, classify(err, "Group not found."))
		default:
			h.storageFailure(s, "join_group", err)
		}
		return false
	}
	return h.router.Join(ctx, s, id)
}

func (h *Hub) adminCommand(ctx context.Context, s *Session, info SessionInfo, cmd proto.Command) {
	groupID := info.Room

	if cmd.Kind == proto.CommandDeleteGroup {
		h.deleteGroup(ctx, s, info, groupID)
		return
	}

	target := cmd.Arg(0)
	if target == "" {
		h.reply(s, coreError(ErrCodeProtocol, fmt.Sprintf("Usage %s [user]", cmd.Name)))
		return
	}
	if !auth.ValidName(target) {
		h.reply(s, coreError(ErrCodeProtocol, "Invalid user name."))
		return
	}

	switch cmd.Kind {
	case proto.CommandKick:
		changed, err := h.groups.Kick(ctx, groupID, target)
		if err != nil {
			h.groupFailure(s, "kick", err)
			return
		}
		if !changed {
			h.reply(s, coreError(ErrCodeNotFound, fmt.Sprintf("%s is not in this group.", target)))
			return
		}
		h.router.Broadcast(ctx, proto.Notice("Kicked %s.", target), groupID, s)
		h.router.Evict(groupID, store.RoomGeneral, byName(target), proto.Notice("You were kicked from the group."))
	case proto.CommandBan:
		changed, err := h.groups.Ban(ctx, groupID, target)
		if err != nil {
			h.groupFailure(s, "ban", err)
			return
		}
		if !changed {
			h.reply(s, coreError(ErrCodeDuplicateName, fmt.Sprintf("%s is already banned.", target)))
			return
		}
		h.router.Broadcast(ctx, proto.Notice("Banned %s.", target), groupID, s)
		h.router.Evict(groupID, store.RoomGeneral, byName(target), proto.Notice("You were banned from the group."))
	case proto.CommandPromote:
		changed, err := h.groups.Promote(ctx, groupID, target)
		if err != nil {
			h.groupFailure(s, "promote", err)
			return
		}
		if !changed {
			h.reply(s, coreError(ErrCodeDuplicateName, fmt.Sprintf("%s is already an admin.", target)))
			return
		}
		h.router.Broadcast(ctx, proto.Notice("%s is now an admin.", target), groupID, s)
		_ = s.Send(proto.Notice("Promoted %s.", target))
	}
	s.log.Info().Str("action", strings.TrimPrefix(cmd.Name, "/")).Str("target", target).Int("group_id", groupID).Msg("group admin action")
}

func (h *Hub) deleteGroup(ctx context.Context, s *Session, info SessionInfo, groupID int) {
	if err := h.groups.Delete(ctx, groupID); err != nil {
		h.groupFailure(s, "delete_group", err)
		return
	}
	metrics.Groups.Set(float64(h.groups.Len()))
	if err := h.history.PurgeHistory(ctx, groupID); err != nil {
		metrics.StorageErrors.WithLabelValues("purge_history").Inc()
		s.log.Warn().Err(err).Int("group_id", groupID).Msg("failed to purge group history")
	}

	h.router.Evict(groupID, store.RoomGeneral, func(other SessionInfo) bool {
		return other.ID != info.ID
	}, proto.Notice("Group was deleted. You were moved to General."))
	h.router.ForceMove(s, store.RoomGeneral, proto.Notice("Group deleted."))
	s.log.Info().Int("group_id", groupID).Msg("group deleted")
}

func (h *Hub) users(s *Session) {
	infos := h.registry.Infos(func(info SessionInfo) bool { return info.Authenticated })
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name)
	}
	_ = s.Send(proto.UserList(names))
}

func (h *Hub) privateMessage(s *Session, info SessionInfo, cmd proto.Command) {
	target := cmd.Arg(0)
	if target == "" || cmd.Text == "" {
		h.reply(s, coreError(ErrCodeProtocol, "Usage /msg [user] [text]"))
		return
	}
	recipient := h.registry.FindByName(target)
	if recipient == nil {
		s.log.Debug().Str("code", ErrCodeNotFound).Str("target", target).Msg("private message undeliverable")
		_ = s.Send(proto.Event("User not found or not logged in."))
		return
	}
	_ = recipient.Send(proto.Private(info.Name, cmd.Text))
	_ = s.Send(proto.PrivateSelf(target, cmd.Text))
	metrics.PrivateMessages.Inc()
}

func (h *Hub) join(ctx context.Context, s *Session, info SessionInfo, cmd proto.Command) {
	arg := cmd.Arg(0)
	if arg == "" {
		h.reply(s, coreError(ErrCodeProtocol, "Usage /join [roomId]"))
		return
	}
	roomID, err := strconv.Atoi(arg)
	if err != nil {
		h.reply(s, coreError(ErrCodeNotFound, "Room not found."))
		return
	}
	if roomID < store.RoomGeneral {
		roomID = store.RoomGeneral
	}

	switch {
	case IsFixedRoom(roomID):
		h.router.Join(ctx, s, roomID)
	case roomID >= store.FirstGroupID:
		h.enterGroup(ctx, s, info, roomID)
	default:
		h.reply(s, coreError(ErrCodeNotFound, "Room not found."))
	}
}

func (h *Hub) reply(s *Session, ce *CoreError) {
	s.log.Debug().Str("code", ce.Code).Str("msg", ce.Message).Msg("command rejected")
	_ = s.Send(ce.Line())
}

func (h *Hub) groupFailure(s *Session, op string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		h.reply(s, classify(err, "Group not found."))
		return
	case errors.Is(err, store.ErrInvalidName):
		h.reply(s, classify(err, "Invalid user name."))
		return
	}
	h.storageFailure(s, op, err)
}

func (h *Hub) storageFailure(s *Session, op string, err error) {
	metrics.StorageErrors.WithLabelValues(op).Inc()
	s.log.Error().Err(err).Str("op", op).Msg("group store failure")
	h.reply(s, classify(err, ""))
}

func byName(name string) func(SessionInfo) bool {
	return func(info SessionInfo) bool {
		return info.Authenticated && info.Name == name
	}
}

func commandLabel(cmd proto.Command) string {
	if cmd.Kind == proto.CommandChat {
		return "chat"
	}
	return strings.TrimPrefix(cmd.Name, "/")
}
