package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat-server/internal/core"
	"github.com/vovakirdan/roomchat-server/internal/store"
)

// RoomHandlers provides read-only room and group endpoints.
type RoomHandlers struct {
	hub *core.Hub
	log *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(hub *core.Hub, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		hub: hub,
		log: logger,
	}
}

// ListRooms lists the fixed channels followed by live groups.
// GET /api/rooms
func (h *RoomHandlers) ListRooms(c *gin.Context) {
	online := make(map[int]int)
	for _, info := range h.hub.Registry().Infos(func(info core.SessionInfo) bool { return info.Authenticated }) {
		online[info.Room]++
	}

	fixed := core.FixedRooms()
	live := h.hub.Groups().List()
	response := make([]RoomResponse, 0, len(fixed)+len(live))
	for _, room := range fixed {
		response = append(response, channelResponse(room, online[room.ID]))
	}
	for _, g := range live {
		response = append(response, groupRoomResponse(g, online[g.ID]))
	}

	h.log.Debug().Int("room_count", len(response)).Msg("rooms listed")
	c.JSON(http.StatusOK, response)
}

// GetGroup returns a group's admin, member and banned lists.
// GET /api/groups/:name
func (h *RoomHandlers) GetGroup(c *gin.Context) {
	name := c.Param("name")
	id, err := h.hub.Groups().LookupByName(name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "group not found"})
			return
		}
		h.log.Error().Err(err).Str("group", name).Msg("failed to look up group")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	g, ok := h.hub.Groups().Get(id)
	if !ok {
		// deleted between lookup and read
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "group not found"})
		return
	}
	c.JSON(http.StatusOK, groupResponse(g))
}
