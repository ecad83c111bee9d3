package http

import (
	"github.com/vovakirdan/roomchat-server/internal/core"
	"github.com/vovakirdan/roomchat-server/internal/store"
)

// Room kinds reported by the API.
const (
	RoomKindChannel = "channel"
	RoomKindGroup   = "group"
)

// RoomResponse represents a room in API responses.
type RoomResponse struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Members int    `json:"members,omitempty"`
	Online  int    `json:"online"`
}

// GroupResponse is the full membership view of a custom group.
type GroupResponse struct {
	ID      int      `json:"id"`
	Name    string   `json:"name"`
	Admins  []string `json:"admins"`
	Members []string `json:"members"`
	Banned  []string `json:"banned"`
}

// OnlineUserResponse is one authenticated session.
type OnlineUserResponse struct {
	Name     string `json:"name"`
	Room     int    `json:"room"`
	RoomName string `json:"room_name"`
}

func channelResponse(room core.RoomInfo, online int) RoomResponse {
	return RoomResponse{ID: room.ID, Name: room.Name, Kind: RoomKindChannel, Online: online}
}

func groupRoomResponse(g store.Group, online int) RoomResponse {
	return RoomResponse{ID: g.ID, Name: g.Name, Kind: RoomKindGroup, Members: g.Members.Len(), Online: online}
}

func groupResponse(g store.Group) GroupResponse {
	return GroupResponse{
		ID:      g.ID,
		Name:    g.Name,
		Admins:  nonNil(g.Admins.Values()),
		Members: nonNil(g.Members.Values()),
		Banned:  nonNil(g.Banned.Values()),
	}
}

// nonNil keeps empty lists as [] in JSON.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
