package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"drawdash_backend/internal/game"
	"drawdash_backend/internal/keys"
	"drawdash_backend/internal/logger"
	"drawdash_backend/internal/store"
)

type RoomHandler struct {
	store *store.Store
	rooms *game.RoomState
}

func NewRoomHandler(s *store.Store, rooms *game.RoomState) *RoomHandler {
	return &RoomHandler{store: s, rooms: rooms}
}

type roomSummary struct {
	RoomID     string `json:"room_id"`
	Players    int    `json:"players"`
	MaxPlayers int    `json:"max_players"`
	MaxRounds  int    `json:"max_rounds"`
	TurnTime   int    `json:"turn_time"`
	Difficulty string `json:"difficulty"`
	Status     string `json:"status"`
}

// List returns the public rooms that still have open slots.
func (h *RoomHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	ids, err := h.store.SMembers(ctx, keys.PublicRooms())
	if err != nil {
		logger.Error("public rooms read failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unavailable"})
		return
	}

	out := make([]roomSummary, 0, len(ids))
	for _, id := range ids {
		info, err := h.rooms.GetInfo(ctx, id)
		if err != nil {
			continue
		}
		count, err := h.store.SCard(ctx, keys.Players(id))
		if err != nil {
			continue
		}
		out = append(out, roomSummary{
			RoomID:     id,
			Players:    int(count),
			MaxPlayers: info.MaxPlayers,
			MaxRounds:  info.MaxRounds,
			TurnTime:   info.TurnTime,
			Difficulty: info.Difficulty,
			Status:     info.Status,
		})
	}
	c.JSON(http.StatusOK, gin.H{"rooms": out})
}

type createRoomRequest struct {
	MaxRounds    int    `json:"max_rounds"`
	MaxPlayers   int    `json:"max_players"`
	TurnTime     int    `json:"turn_time"`
	HintsAllowed *bool  `json:"hints_allowed"`
	Difficulty   string `json:"difficulty"`
	RoomType     string `json:"room_type"`
}

// Create mints a room with the caller's settings; join happens over the
// websocket afterwards.
func (h *RoomHandler) Create(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed body"})
		return
	}

	set := game.DefaultSettings()
	if req.MaxRounds != 0 {
		if req.MaxRounds < 1 || req.MaxRounds > 10 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "max_rounds out of range"})
			return
		}
		set.MaxRounds = req.MaxRounds
	}
	if req.MaxPlayers != 0 {
		if req.MaxPlayers < 2 || req.MaxPlayers > 16 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "max_players out of range"})
			return
		}
		set.MaxPlayers = req.MaxPlayers
	}
	if req.TurnTime != 0 {
		if req.TurnTime < 10 || req.TurnTime > 180 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "turn_time out of range"})
			return
		}
		set.TurnTime = req.TurnTime
	}
	if req.HintsAllowed != nil {
		set.HintsAllowed = *req.HintsAllowed
	}
	switch req.Difficulty {
	case "":
	case game.DifficultyEasy, game.DifficultyMedium, game.DifficultyHard:
		set.Difficulty = req.Difficulty
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown difficulty"})
		return
	}
	switch req.RoomType {
	case "":
	case game.RoomPublic, game.RoomPrivate:
		set.RoomType = req.RoomType
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown room_type"})
		return
	}

	roomID := uuid.NewString()
	if _, err := h.rooms.GetOrInitialize(c.Request.Context(), roomID, set); err != nil {
		logger.Error("room create failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unavailable"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"room_id": roomID})
}
