package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat-server/internal/core"
)

// UserHandlers provides HTTP handlers for user operations.
type UserHandlers struct {
	hub *core.Hub
	log *zerolog.Logger
}

// NewUserHandlers creates a new user handlers instance.
func NewUserHandlers(hub *core.Hub, logger *zerolog.Logger) *UserHandlers {
	return &UserHandlers{
		hub: hub,
		log: logger,
	}
}

// ListOnline lists authenticated sessions and the room each one is in.
// GET /api/users
func (h *UserHandlers) ListOnline(c *gin.Context) {
	infos := h.hub.Registry().Infos(func(info core.SessionInfo) bool { return info.Authenticated })

	response := make([]OnlineUserResponse, 0, len(infos))
	for _, info := range infos {
		response = append(response, OnlineUserResponse{
			Name:     info.Name,
			Room:     info.Room,
			RoomName: h.hub.Router().RoomLabel(info.Room),
		})
	}

	c.JSON(http.StatusOK, response)
}
