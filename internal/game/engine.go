package game

import (
	"context"
	"errors"
	"strings"

	"drawdash_backend/internal/keys"
	"drawdash_backend/internal/logger"
	"drawdash_backend/internal/store"
)

// TurnEngine drives the per-room game flow:
//
//	waiting -> selecting_drawer -> offering_words -> drawing -> turn_over
//	        -> (selecting_drawer | game_over)
//
// All state lives in Redis; the engine is safe to run on every replica because
// timer-driven transitions are deduplicated by the watcher's distributed lock
// and guess handling is idempotent via the correct-guesser set.
type TurnEngine struct {
	store   *store.Store
	rooms   *RoomState
	players *PlayerRegistry
	words   *WordService
	bcast   Broadcaster
}

func NewTurnEngine(s *store.Store, rooms *RoomState, players *PlayerRegistry, words *WordService, bcast Broadcaster) *TurnEngine {
	e := &TurnEngine{store: s, rooms: rooms, players: players, words: words, bcast: bcast}
	players.SetCoordinator(e)
	return e
}

// StartGame is the admin-triggered entry into the first turn.
func (e *TurnEngine) StartGame(ctx context.Context, roomID, userID string) error {
	info, err := e.rooms.GetInfo(ctx, roomID)
	if err != nil {
		return err
	}
	if userID != info.AdminID {
		return ErrNotAdmin
	}
	count, err := e.store.SCard(ctx, keys.Players(roomID))
	if err != nil {
		return err
	}
	if count < 2 {
		return ErrNotEnough
	}
	return e.Start(ctx, roomID)
}

// Start advances the room to its next turn: pick a drawer, offer words, arm
// the selection timer. It also begins new rounds and detects game over. Safe
// to call repeatedly; a finished room is reset first.
func (e *TurnEngine) Start(ctx context.Context, roomID string) error {
	info, err := e.rooms.GetOrInitialize(ctx, roomID, DefaultSettings())
	if err != nil {
		return err
	}

	members, err := e.players.Members(ctx, roomID)
	if err != nil {
		return err
	}
	if len(members) == 0 {
		return e.rooms.CleanupIfEmpty(ctx, roomID)
	}

	round := info.CurrentRound
	if round == 0 {
		// Fresh game: everyone starts from zero and clients show it.
		for _, uid := range members {
			e.bcast.Broadcast(ctx, roomID, Message{Type: EvtScoreUpdated, Payload: map[string]any{
				"user_id": uid,
				"score":   0,
			}})
		}
	}

	if err := e.rooms.SetStatus(ctx, roomID, StatusActive); err != nil {
		return err
	}
	if err := e.players.RefreshPublicIndex(ctx, roomID); err != nil {
		logger.Warn("public index refresh failed", "room", roomID, "err", err)
	}

	var drawer string
	for {
		drawer, err = e.store.SPop(ctx, keys.EligibleDrawers(roomID, round))
		if errors.Is(err, store.ErrNotFound) {
			// Round exhausted: either the game is over or the next round
			// begins with every current player eligible again.
			if round >= info.MaxRounds {
				return e.EndGame(ctx, roomID)
			}
			round++
			if err := e.rooms.SetCurrentRound(ctx, roomID, round); err != nil {
				return err
			}
			members, err = e.players.Members(ctx, roomID)
			if err != nil {
				return err
			}
			if len(members) == 0 {
				return e.rooms.CleanupIfEmpty(ctx, roomID)
			}
			if err := e.store.SAdd(ctx, keys.EligibleDrawers(roomID, round), members...); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
		// A popped drawer may have left since the round was populated.
		still, err := e.players.IsMember(ctx, roomID, drawer)
		if err != nil {
			return err
		}
		if still {
			break
		}
	}

	// Every turn starts with a clean correct-guesser set.
	if err := e.store.Del(ctx, keys.NonEligibleGuessers(roomID, round)); err != nil {
		return err
	}
	if err := e.rooms.SetCurrentDrawer(ctx, roomID, drawer); err != nil {
		return err
	}

	e.bcast.Broadcast(ctx, roomID, Message{Type: EvtDrawerAssigned, Payload: map[string]any{
		"round":  round,
		"drawer": drawer,
	}})

	candidates := e.words.GenerateWords(info.Difficulty)
	if err := e.words.StashSelection(ctx, roomID, candidates); err != nil {
		return err
	}
	e.bcast.SendToUser(ctx, drawer, Message{Type: EvtSelectWord, Payload: map[string]any{
		"words": candidates,
	}})

	logger.Info("drawer assigned", "room", roomID, "round", round, "drawer", drawer)
	return nil
}

// SelectWord is the drawer picking one of the offered words.
func (e *TurnEngine) SelectWord(ctx context.Context, roomID, userID, word string) error {
	info, err := e.rooms.GetInfo(ctx, roomID)
	if err != nil {
		return err
	}
	if info.Status != StatusActive {
		return ErrRoomInactive
	}
	if userID != info.CurrentDrawer {
		return ErrNotDrawer
	}

	if err := e.store.Del(ctx, keys.WordSelectionTimer(roomID), keys.WordSelectionWords(roomID)); err != nil {
		return err
	}
	return e.beginTurn(ctx, roomID, word, info, false)
}

// AutoSelectWord fires when the selection timer expired without a pick. The
// candidates come from the mirror key because the expired key's value is gone.
func (e *TurnEngine) AutoSelectWord(ctx context.Context, roomID string) error {
	info, err := e.rooms.GetInfo(ctx, roomID)
	if err != nil {
		return err
	}
	if info.Status != StatusActive || info.CurrentDrawer == "" {
		return e.store.Del(ctx, keys.WordSelectionWords(roomID))
	}

	candidates, err := e.words.RecoverSelection(ctx, roomID)
	if errors.Is(err, store.ErrNotFound) {
		// Drawer picked in the meantime.
		return nil
	}
	if err != nil {
		return err
	}
	word := e.words.PickRandom(candidates)
	if err := e.store.Del(ctx, keys.WordSelectionWords(roomID)); err != nil {
		return err
	}

	if err := e.beginTurn(ctx, roomID, word, info, true); err != nil {
		return err
	}
	e.bcast.SendToUser(ctx, info.CurrentDrawer, Message{Type: EvtWordAutoSelected, Payload: map[string]any{
		"word": word,
	}})
	logger.Info("word auto-selected", "room", roomID, "drawer", info.CurrentDrawer)
	return nil
}

func (e *TurnEngine) beginTurn(ctx context.Context, roomID, word string, info Info, auto bool) error {
	state, err := e.words.StartTurn(ctx, roomID, word, info.Settings)
	if err != nil {
		return err
	}
	payload := map[string]any{
		"word_length":    state.WordLength,
		"time_remaining": state.TimeRemaining,
		"special_chars":  state.SpecialChars,
	}
	if auto {
		payload["auto_selected"] = true
	}
	e.bcast.Broadcast(ctx, roomID, Message{Type: EvtTurnStarted, Payload: payload})
	return nil
}

// HandleGuess routes a chat message: it is either the correct word, an
// "almost" word, or plain chat. Wrong and off-turn messages fan out as chat.
func (e *TurnEngine) HandleGuess(ctx context.Context, roomID, userID, message string) error {
	info, err := e.rooms.GetInfo(ctx, roomID)
	if err != nil {
		return err
	}

	chat := Message{Type: EvtNewMessage, Payload: map[string]any{
		"message": message,
		"user_id": userID,
	}}

	if info.Status != StatusActive {
		e.bcast.Broadcast(ctx, roomID, chat)
		return nil
	}

	word, err := e.store.Get(ctx, keys.CurrentWord(roomID))
	if errors.Is(err, store.ErrNotFound) {
		word = ""
	} else if err != nil {
		return err
	}

	if userID == info.CurrentDrawer {
		// The drawer must not leak the word into chat.
		if word != "" && strings.EqualFold(strings.TrimSpace(message), word) {
			return nil
		}
		e.bcast.Broadcast(ctx, roomID, chat)
		return nil
	}

	if word == "" {
		e.bcast.Broadcast(ctx, roomID, chat)
		return nil
	}

	if strings.EqualFold(strings.TrimSpace(message), word) {
		return e.handleCorrectGuess(ctx, roomID, userID, info)
	}

	if Similar(message, word) {
		e.bcast.Broadcast(ctx, roomID, Message{Type: EvtSimilarWord, Payload: map[string]any{
			"user_id": userID,
			"message": message,
		}})
	}
	e.bcast.Broadcast(ctx, roomID, chat)
	return nil
}

func (e *TurnEngine) handleCorrectGuess(ctx context.Context, roomID, userID string, info Info) error {
	guessersKey := keys.NonEligibleGuessers(roomID, info.CurrentRound)

	// A repeated correct guess scores nothing and stays silent.
	dup, err := e.store.SIsMember(ctx, guessersKey, userID)
	if err != nil {
		return err
	}
	if dup {
		return nil
	}
	if err := e.store.SAdd(ctx, guessersKey, userID); err != nil {
		return err
	}

	rank64, err := e.store.SCard(ctx, guessersKey)
	if err != nil {
		return err
	}
	rank := int(rank64)

	ttl, err := e.store.TTL(ctx, keys.TurnTimer(roomID))
	if err != nil {
		return err
	}
	timeRemaining := int(ttl.Seconds())

	streak, err := e.players.IncrementStreak(ctx, userID)
	if err != nil {
		return err
	}

	guesserPoints, drawerPoints := GuessPoints(timeRemaining, info.TurnTime, rank, streak)

	guesserTotal, err := e.players.UpdateScore(ctx, roomID, userID, guesserPoints)
	if err != nil {
		return err
	}

	e.bcast.Broadcast(ctx, roomID, Message{Type: EvtCorrectGuess, Payload: map[string]any{
		"user_id": userID,
	}})
	e.bcast.Broadcast(ctx, roomID, Message{Type: EvtScoreUpdated, Payload: map[string]any{
		"user_id":      userID,
		"score":        guesserTotal,
		"points":       guesserPoints,
		"streak":       streak,
		"streak_bonus": StreakBonus(streak),
	}})

	if drawerPoints > 0 && info.CurrentDrawer != "" {
		drawerTotal, err := e.players.UpdateScore(ctx, roomID, info.CurrentDrawer, drawerPoints)
		if err != nil {
			return err
		}
		e.bcast.Broadcast(ctx, roomID, Message{Type: EvtScoreUpdated, Payload: map[string]any{
			"user_id": info.CurrentDrawer,
			"score":   drawerTotal,
			"points":  drawerPoints,
		}})
	}

	total, err := e.store.SCard(ctx, keys.Players(roomID))
	if err != nil {
		return err
	}
	if rank == int(total)-1 {
		return e.finishAllGuessed(ctx, roomID, info)
	}
	return nil
}

func (e *TurnEngine) finishAllGuessed(ctx context.Context, roomID string, info Info) error {
	if info.CurrentDrawer != "" {
		drawerTotal, err := e.players.UpdateScore(ctx, roomID, info.CurrentDrawer, AllGuessedBonus)
		if err != nil {
			return err
		}
		e.bcast.Broadcast(ctx, roomID, Message{Type: EvtScoreUpdated, Payload: map[string]any{
			"user_id": info.CurrentDrawer,
			"score":   drawerTotal,
			"points":  AllGuessedBonus,
		}})
	}
	return e.EndTurn(ctx, roomID, ReasonAllGuessed)
}

// EndTurn closes the current turn: turn keys are wiped before the turn_over
// broadcast goes out, streaks of players who missed the word are reset, and
// the transition timer schedules the next Start.
func (e *TurnEngine) EndTurn(ctx context.Context, roomID, reason string) error {
	info, err := e.rooms.GetInfo(ctx, roomID)
	if err != nil {
		return err
	}

	word, err := e.store.Get(ctx, keys.CurrentWord(roomID))
	if errors.Is(err, store.ErrNotFound) {
		word = ""
	} else if err != nil {
		return err
	}

	guessed, err := e.store.SMembers(ctx, keys.NonEligibleGuessers(roomID, info.CurrentRound))
	if err != nil {
		return err
	}
	guessedSet := make(map[string]bool, len(guessed))
	for _, uid := range guessed {
		guessedSet[uid] = true
	}

	if err := e.store.Del(ctx,
		keys.CurrentWord(roomID),
		keys.RevealedIndices(roomID),
		keys.TurnTimer(roomID),
		keys.RevealTimer(roomID),
	); err != nil {
		return err
	}

	// Anyone who had a chance to guess and didn't loses their streak,
	// whatever ended the turn.
	members, err := e.players.Members(ctx, roomID)
	if err != nil {
		return err
	}
	for _, uid := range members {
		if uid == info.CurrentDrawer || guessedSet[uid] {
			continue
		}
		if err := e.players.ResetStreak(ctx, uid); err != nil {
			logger.Warn("streak reset failed", "user", uid, "err", err)
		}
	}

	e.bcast.Broadcast(ctx, roomID, Message{Type: EvtTurnOver, Payload: map[string]any{
		"reason": reason,
		"word":   word,
	}})

	logger.Info("turn over", "room", roomID, "reason", reason)
	return e.store.SetEx(ctx, keys.TurnTransitionTimer(roomID), transitionTimerValue, TurnTransitionTTL)
}

// HandleDrawerLeft aborts the turn when the drawer disconnects mid-turn.
func (e *TurnEngine) HandleDrawerLeft(ctx context.Context, roomID string) error {
	if err := e.rooms.SetCurrentDrawer(ctx, roomID, ""); err != nil {
		return err
	}
	// A pending word offer dies with the drawer.
	if err := e.store.Del(ctx, keys.WordSelectionTimer(roomID), keys.WordSelectionWords(roomID)); err != nil {
		return err
	}

	hasWord, err := e.store.Exists(ctx, keys.CurrentWord(roomID))
	if err != nil {
		return err
	}
	if hasWord {
		return e.EndTurn(ctx, roomID, ReasonDrawerLeft)
	}
	return e.store.SetEx(ctx, keys.TurnTransitionTimer(roomID), transitionTimerValue, TurnTransitionTTL)
}

// CheckAllGuessedAfterLeave completes the turn if the departed player was the
// last outstanding guesser.
func (e *TurnEngine) CheckAllGuessedAfterLeave(ctx context.Context, roomID, drawer string, round int) error {
	hasWord, err := e.store.Exists(ctx, keys.CurrentWord(roomID))
	if err != nil {
		return err
	}
	if !hasWord {
		return nil
	}

	members, err := e.players.Members(ctx, roomID)
	if err != nil {
		return err
	}
	guessed, err := e.store.SMembers(ctx, keys.NonEligibleGuessers(roomID, round))
	if err != nil {
		return err
	}
	guessedSet := make(map[string]bool, len(guessed))
	for _, uid := range guessed {
		guessedSet[uid] = true
	}

	outstanding := 0
	for _, uid := range members {
		if uid == drawer || guessedSet[uid] {
			continue
		}
		outstanding++
	}
	if outstanding > 0 || len(guessed) == 0 {
		return nil
	}

	info, err := e.rooms.GetInfo(ctx, roomID)
	if err != nil {
		return err
	}
	return e.finishAllGuessed(ctx, roomID, info)
}

// EndGame finishes the game: final scores go out with game_over, then scores,
// streaks and timers are wiped and the room returns to waiting.
func (e *TurnEngine) EndGame(ctx context.Context, roomID string) error {
	info, err := e.rooms.GetInfo(ctx, roomID)
	if err != nil {
		return err
	}
	scores, err := e.players.GetAllScores(ctx, roomID)
	if err != nil {
		return err
	}

	if err := e.rooms.SetStatus(ctx, roomID, StatusFinished); err != nil {
		return err
	}
	if err := e.rooms.SetCurrentDrawer(ctx, roomID, ""); err != nil {
		return err
	}

	e.bcast.Broadcast(ctx, roomID, Message{Type: EvtGameOver, Payload: map[string]any{
		"scores": scores,
	}})

	if err := e.players.ClearAllScores(ctx, roomID); err != nil {
		return err
	}
	members, err := e.players.Members(ctx, roomID)
	if err != nil {
		return err
	}
	for _, uid := range members {
		if err := e.players.ResetStreak(ctx, uid); err != nil {
			logger.Warn("streak reset failed", "user", uid, "err", err)
		}
	}

	if err := e.cleanupTimers(ctx, roomID, info.CurrentRound); err != nil {
		return err
	}
	if err := e.rooms.Reset(ctx, roomID); err != nil {
		return err
	}
	if err := e.players.RefreshPublicIndex(ctx, roomID); err != nil {
		logger.Warn("public index refresh failed", "room", roomID, "err", err)
	}
	logger.Info("game over", "room", roomID)
	return nil
}

func (e *TurnEngine) cleanupTimers(ctx context.Context, roomID string, round int) error {
	return e.store.Del(ctx,
		keys.TurnTimer(roomID),
		keys.RevealTimer(roomID),
		keys.WordSelectionTimer(roomID),
		keys.WordSelectionWords(roomID),
		keys.TurnTransitionTimer(roomID),
		keys.CurrentWord(roomID),
		keys.RevealedIndices(roomID),
		keys.Canvas(roomID),
		keys.NonEligibleGuessers(roomID, round),
		keys.EligibleDrawers(roomID, round),
	)
}

// GameState snapshots the room for a late joiner.
func (e *TurnEngine) GameState(ctx context.Context, roomID string) (map[string]any, error) {
	info, err := e.rooms.GetInfo(ctx, roomID)
	if err != nil {
		return nil, err
	}
	scores, err := e.players.GetAllScores(ctx, roomID)
	if err != nil {
		return nil, err
	}
	state := map[string]any{
		"status":        info.Status,
		"current_round": info.CurrentRound,
		"max_rounds":    info.MaxRounds,
		"drawer":        info.CurrentDrawer,
		"admin_id":      info.AdminID,
		"scores":        scores,
	}
	if info.Status == StatusActive {
		if ws, err := e.words.CurrentWordState(ctx, roomID); err == nil {
			state["word"] = ws
		}
		if n, err := e.store.LLen(ctx, keys.Canvas(roomID)); err == nil {
			state["canvas_strokes"] = n
		}
	}
	return state, nil
}
