package game

import (
	"context"
	"strconv"

	"drawdash_backend/internal/keys"
	"drawdash_backend/internal/logger"
	"drawdash_backend/internal/store"
)

// RoomState is CRUD over the room info hash plus empty-room cleanup. Redis is
// the single source of truth; nothing here is cached.
type RoomState struct {
	store *store.Store
}

func NewRoomState(s *store.Store) *RoomState {
	return &RoomState{store: s}
}

func infoFields(set Settings) map[string]any {
	return map[string]any{
		"status":         StatusWaiting,
		"current_round":  0,
		"current_drawer": "",
		"max_rounds":     set.MaxRounds,
		"max_players":    set.MaxPlayers,
		"turn_time":      set.TurnTime,
		"hints_allowed":  strconv.FormatBool(set.HintsAllowed),
		"difficulty":     set.Difficulty,
		"room_type":      set.RoomType,
	}
}

func parseInfo(fields map[string]string) Info {
	info := Info{Settings: DefaultSettings(), Status: StatusWaiting}
	if v, ok := fields["status"]; ok && v != "" {
		info.Status = v
	}
	if v, ok := fields["current_round"]; ok {
		info.CurrentRound, _ = strconv.Atoi(v)
	}
	info.CurrentDrawer = fields["current_drawer"]
	info.AdminID = fields["admin_id"]
	if v, ok := fields["max_rounds"]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			info.MaxRounds = n
		}
	}
	if v, ok := fields["max_players"]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			info.MaxPlayers = n
		}
	}
	if v, ok := fields["turn_time"]; ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			info.TurnTime = n
		}
	}
	if v, ok := fields["hints_allowed"]; ok && v != "" {
		info.HintsAllowed = v == "true"
	}
	if v, ok := fields["difficulty"]; ok && v != "" {
		info.Difficulty = v
	}
	if v, ok := fields["room_type"]; ok && v != "" {
		info.RoomType = v
	}
	return info
}

// GetOrInitialize returns the room info, creating the hash when absent and
// resetting it when a previous game on it already finished.
func (r *RoomState) GetOrInitialize(ctx context.Context, roomID string, set Settings) (Info, error) {
	fields, err := r.store.HGetAll(ctx, keys.RoomInfo(roomID))
	if err != nil {
		return Info{}, err
	}
	if len(fields) == 0 {
		if err := r.store.HSet(ctx, keys.RoomInfo(roomID), infoFields(set)); err != nil {
			return Info{}, err
		}
		info := Info{Settings: set, Status: StatusWaiting}
		return info, nil
	}
	info := parseInfo(fields)
	if info.Status == StatusFinished {
		if err := r.Reset(ctx, roomID); err != nil {
			return Info{}, err
		}
		info.Status = StatusWaiting
		info.CurrentRound = 0
		info.CurrentDrawer = ""
	}
	return info, nil
}

// Reset puts a room back to its pre-game state without touching settings.
func (r *RoomState) Reset(ctx context.Context, roomID string) error {
	return r.store.HSet(ctx, keys.RoomInfo(roomID), map[string]any{
		"status":         StatusWaiting,
		"current_round":  0,
		"current_drawer": "",
	})
}

// GetInfo loads the full room hash.
func (r *RoomState) GetInfo(ctx context.Context, roomID string) (Info, error) {
	fields, err := r.store.HGetAll(ctx, keys.RoomInfo(roomID))
	if err != nil {
		return Info{}, err
	}
	return parseInfo(fields), nil
}

// Exists reports whether the room has been created.
func (r *RoomState) Exists(ctx context.Context, roomID string) (bool, error) {
	return r.store.Exists(ctx, keys.RoomInfo(roomID))
}

func (r *RoomState) GetStatus(ctx context.Context, roomID string) (string, error) {
	status, err := r.store.HGet(ctx, keys.RoomInfo(roomID), "status")
	if err == store.ErrNotFound {
		return StatusWaiting, nil
	}
	return status, err
}

func (r *RoomState) SetStatus(ctx context.Context, roomID, status string) error {
	return r.store.HSet(ctx, keys.RoomInfo(roomID), map[string]any{"status": status})
}

func (r *RoomState) GetCurrentDrawer(ctx context.Context, roomID string) (string, error) {
	drawer, err := r.store.HGet(ctx, keys.RoomInfo(roomID), "current_drawer")
	if err == store.ErrNotFound {
		return "", nil
	}
	return drawer, err
}

// SetCurrentDrawer records the drawer for this turn; "" means no turn is in
// progress.
func (r *RoomState) SetCurrentDrawer(ctx context.Context, roomID, userID string) error {
	return r.store.HSet(ctx, keys.RoomInfo(roomID), map[string]any{"current_drawer": userID})
}

func (r *RoomState) SetAdmin(ctx context.Context, roomID, userID string) error {
	return r.store.HSet(ctx, keys.RoomInfo(roomID), map[string]any{"admin_id": userID})
}

func (r *RoomState) SetCurrentRound(ctx context.Context, roomID string, round int) error {
	return r.store.HSet(ctx, keys.RoomInfo(roomID), map[string]any{"current_round": round})
}

// CleanupIfEmpty deletes every key of the room once the last player is gone
// and drops it from the public index.
func (r *RoomState) CleanupIfEmpty(ctx context.Context, roomID string) error {
	count, err := r.store.SCard(ctx, keys.Players(roomID))
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	roomKeys, err := r.store.Keys(ctx, keys.RoomPattern(roomID))
	if err != nil {
		return err
	}
	if len(roomKeys) > 0 {
		if err := r.store.Del(ctx, roomKeys...); err != nil {
			return err
		}
	}
	if err := r.store.SRem(ctx, keys.PublicRooms(), roomID); err != nil {
		return err
	}
	logger.Info("room cleaned up", "room", roomID, "keys", len(roomKeys))
	return nil
}
