package game

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"drawdash_backend/internal/keys"
	"drawdash_backend/internal/logger"
	"drawdash_backend/internal/store"
)

// TurnCoordinator is the slice of the turn engine the registry needs when a
// leave interrupts a running turn. Keeping it as an interface breaks the
// registry <-> engine cycle.
type TurnCoordinator interface {
	HandleDrawerLeft(ctx context.Context, roomID string) error
	CheckAllGuessedAfterLeave(ctx context.Context, roomID, drawer string, round int) error
	EndGame(ctx context.Context, roomID string) error
}

// PlayerRegistry owns room membership, scores, streaks, kick votes and the
// public-room index.
type PlayerRegistry struct {
	store *store.Store
	rooms *RoomState
	bcast Broadcaster
	coord TurnCoordinator

	mu  sync.Mutex
	rng *rand.Rand
}

func NewPlayerRegistry(s *store.Store, rooms *RoomState, bcast Broadcaster, rng *rand.Rand) *PlayerRegistry {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &PlayerRegistry{store: s, rooms: rooms, bcast: bcast, rng: rng}
}

// SetCoordinator wires the engine in after both sides are constructed.
func (p *PlayerRegistry) SetCoordinator(coord TurnCoordinator) {
	p.coord = coord
}

func (p *PlayerRegistry) Members(ctx context.Context, roomID string) ([]string, error) {
	return p.store.SMembers(ctx, keys.Players(roomID))
}

func (p *PlayerRegistry) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	return p.store.SIsMember(ctx, keys.Players(roomID), userID)
}

// Add joins a player to a room, creating the room on first join. The first
// joiner becomes admin.
func (p *PlayerRegistry) Add(ctx context.Context, roomID, userID string, set Settings) (Info, error) {
	info, err := p.rooms.GetOrInitialize(ctx, roomID, set)
	if err != nil {
		return Info{}, err
	}

	already, err := p.IsMember(ctx, roomID, userID)
	if err != nil {
		return Info{}, err
	}
	if !already {
		count, err := p.store.SCard(ctx, keys.Players(roomID))
		if err != nil {
			return Info{}, err
		}
		if int(count) >= info.MaxPlayers {
			return Info{}, ErrRoomFull
		}
		if err := p.store.SAdd(ctx, keys.Players(roomID), userID); err != nil {
			return Info{}, err
		}
	}

	if info.AdminID == "" {
		if err := p.rooms.SetAdmin(ctx, roomID, userID); err != nil {
			return Info{}, err
		}
		info.AdminID = userID
	}

	if err := p.RefreshPublicIndex(ctx, roomID); err != nil {
		logger.Warn("public index refresh failed", "room", roomID, "err", err)
	}
	if !already {
		p.bcast.Broadcast(ctx, roomID, Message{Type: EvtPlayerJoined, Payload: map[string]any{
			"user_id": userID,
		}})
	}
	return info, nil
}

// Remove takes a player out of a room and runs every consequence of the leave.
// The step order matters: turn bookkeeping first, then admin handover, then
// the end-game and cleanup checks.
func (p *PlayerRegistry) Remove(ctx context.Context, roomID, userID string) error {
	info, err := p.rooms.GetInfo(ctx, roomID)
	if err != nil {
		return err
	}

	if err := p.store.SRem(ctx, keys.Players(roomID), userID); err != nil {
		return err
	}

	if info.Status == StatusActive {
		guessersKey := keys.NonEligibleGuessers(roomID, info.CurrentRound)
		guessed, err := p.store.SIsMember(ctx, guessersKey, userID)
		if err != nil {
			logger.Warn("guesser set read failed", "room", roomID, "user", userID, "err", err)
		}
		if guessed {
			if err := p.store.SRem(ctx, guessersKey, userID); err != nil {
				logger.Warn("guesser set cleanup failed", "room", roomID, "user", userID, "err", err)
			}
		} else if userID != info.CurrentDrawer {
			// Walking out of a live turn without the word counts as a miss.
			hasWord, err := p.store.Exists(ctx, keys.CurrentWord(roomID))
			if err == nil && hasWord {
				if err := p.ResetStreak(ctx, userID); err != nil {
					logger.Warn("streak reset failed", "user", userID, "err", err)
				}
			}
		}
	}

	if userID == info.CurrentDrawer && info.CurrentDrawer != "" {
		if err := p.coord.HandleDrawerLeft(ctx, roomID); err != nil {
			logger.Error("drawer-left handling failed", "room", roomID, "err", err)
		}
	} else if info.Status == StatusActive && info.CurrentDrawer != "" {
		// Removing the last outstanding guesser can complete the turn.
		if err := p.coord.CheckAllGuessedAfterLeave(ctx, roomID, info.CurrentDrawer, info.CurrentRound); err != nil {
			logger.Error("all-guessed check failed", "room", roomID, "err", err)
		}
	}

	remaining, err := p.Members(ctx, roomID)
	if err != nil {
		return err
	}

	if userID == info.AdminID {
		newAdmin := ""
		if len(remaining) > 0 {
			p.mu.Lock()
			newAdmin = remaining[p.rng.Intn(len(remaining))]
			p.mu.Unlock()
		}
		if err := p.rooms.SetAdmin(ctx, roomID, newAdmin); err != nil {
			return err
		}
		if newAdmin != "" {
			p.bcast.Broadcast(ctx, roomID, Message{Type: EvtAdminChanged, Payload: map[string]any{
				"admin_id": newAdmin,
			}})
		}
	}

	if len(remaining) == 1 && info.Status == StatusActive {
		if err := p.coord.EndGame(ctx, roomID); err != nil {
			logger.Error("single-player end game failed", "room", roomID, "err", err)
		}
	}

	p.bcast.Broadcast(ctx, roomID, Message{Type: EvtPlayerLeft, Payload: map[string]any{
		"user_id": userID,
	}})

	if err := p.RefreshPublicIndex(ctx, roomID); err != nil {
		logger.Warn("public index refresh failed", "room", roomID, "err", err)
	}
	return p.rooms.CleanupIfEmpty(ctx, roomID)
}

// VoteToKick registers a kick vote; reaching ceil(players/2) votes kicks the
// target through the normal Remove path.
func (p *PlayerRegistry) VoteToKick(ctx context.Context, roomID, voterID, targetID string) error {
	if voterID == targetID {
		return ErrSelfVote
	}
	for _, uid := range []string{voterID, targetID} {
		ok, err := p.IsMember(ctx, roomID, uid)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotInRoom
		}
	}

	if err := p.store.SAdd(ctx, keys.KickVotes(roomID, targetID), voterID); err != nil {
		return err
	}
	votes, err := p.store.SCard(ctx, keys.KickVotes(roomID, targetID))
	if err != nil {
		return err
	}
	total, err := p.store.SCard(ctx, keys.Players(roomID))
	if err != nil {
		return err
	}
	required := (total + 1) / 2

	if votes < required {
		return nil
	}

	p.bcast.Broadcast(ctx, roomID, Message{Type: EvtPlayerKicked, Payload: map[string]any{
		"player_id": targetID,
	}})

	members, err := p.Members(ctx, roomID)
	if err == nil {
		voteKeys := make([]string, 0, len(members))
		for _, uid := range members {
			voteKeys = append(voteKeys, keys.KickVotes(roomID, uid))
		}
		if err := p.store.Del(ctx, voteKeys...); err != nil {
			logger.Warn("kick vote cleanup failed", "room", roomID, "err", err)
		}
	}

	return p.Remove(ctx, roomID, targetID)
}

// --- scores ---

// UpdateScore adds delta to a player's score and returns the new total.
// INCRBY keeps concurrent updates from different replicas consistent.
func (p *PlayerRegistry) UpdateScore(ctx context.Context, roomID, userID string, delta int) (int, error) {
	total, err := p.store.IncrBy(ctx, keys.PlayerScore(roomID, userID), int64(delta))
	return int(total), err
}

func (p *PlayerRegistry) GetScore(ctx context.Context, roomID, userID string) (int, error) {
	raw, err := p.store.Get(ctx, keys.PlayerScore(roomID, userID))
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(raw)
}

// GetAllScores maps every room member to their score, defaulting to 0.
func (p *PlayerRegistry) GetAllScores(ctx context.Context, roomID string) (map[string]int, error) {
	members, err := p.Members(ctx, roomID)
	if err != nil {
		return nil, err
	}
	scores := make(map[string]int, len(members))
	for _, uid := range members {
		score, err := p.GetScore(ctx, roomID, uid)
		if err != nil {
			return nil, err
		}
		scores[uid] = score
	}
	return scores, nil
}

func (p *PlayerRegistry) ClearAllScores(ctx context.Context, roomID string) error {
	scoreKeys, err := p.store.Keys(ctx, keys.PlayerScorePattern(roomID))
	if err != nil {
		return err
	}
	if len(scoreKeys) == 0 {
		return nil
	}
	return p.store.Del(ctx, scoreKeys...)
}

// --- streaks ---

// IncrementStreak bumps the cross-room consecutive-correct counter and
// returns the new value.
func (p *PlayerRegistry) IncrementStreak(ctx context.Context, userID string) (int, error) {
	streak, err := p.store.IncrBy(ctx, keys.PlayerStreak(userID), 1)
	return int(streak), err
}

func (p *PlayerRegistry) ResetStreak(ctx context.Context, userID string) error {
	return p.store.Del(ctx, keys.PlayerStreak(userID))
}

func (p *PlayerRegistry) GetStreak(ctx context.Context, userID string) (int, error) {
	raw, err := p.store.Get(ctx, keys.PlayerStreak(userID))
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(raw)
}

// --- public rooms index ---

// RefreshPublicIndex keeps a public room listed while it has open slots and
// is joinable.
func (p *PlayerRegistry) RefreshPublicIndex(ctx context.Context, roomID string) error {
	info, err := p.rooms.GetInfo(ctx, roomID)
	if err != nil {
		return err
	}
	if info.RoomType != RoomPublic {
		return p.store.SRem(ctx, keys.PublicRooms(), roomID)
	}
	count, err := p.store.SCard(ctx, keys.Players(roomID))
	if err != nil {
		return err
	}
	if count > 0 && int(count) < info.MaxPlayers {
		return p.store.SAdd(ctx, keys.PublicRooms(), roomID)
	}
	return p.store.SRem(ctx, keys.PublicRooms(), roomID)
}
