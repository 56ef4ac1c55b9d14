package game

import (
	"context"
	"errors"
	"strings"
	"time"

	"drawdash_backend/internal/keys"
	"drawdash_backend/internal/logger"
	"drawdash_backend/internal/metrics"
	"drawdash_backend/internal/store"
)

// lockTTL bounds how long a replica holds an expiry handler lock. Long enough
// to run the handler, short enough that a crashed holder does not wedge the
// room.
const lockTTL = 5 * time.Second

// TimerWatcher turns Redis key expirations into game transitions. Every
// replica subscribes; the SET-NX-PX lock makes sure exactly one of them runs
// each handler.
type TimerWatcher struct {
	store  *store.Store
	rooms  *RoomState
	engine *TurnEngine
	words  *WordService
	bcast  Broadcaster
	nodeID string
}

func NewTimerWatcher(s *store.Store, rooms *RoomState, engine *TurnEngine, words *WordService, bcast Broadcaster, nodeID string) *TimerWatcher {
	return &TimerWatcher{store: s, rooms: rooms, engine: engine, words: words, bcast: bcast, nodeID: nodeID}
}

// Run consumes the expired-key stream until ctx is cancelled.
func (w *TimerWatcher) Run(ctx context.Context) {
	logger.Info("timer watcher started", "node", w.nodeID)
	for key := range w.store.SubscribeExpirations(ctx) {
		w.HandleExpiredKey(ctx, key)
	}
	logger.Info("timer watcher stopped", "node", w.nodeID)
}

// HandleExpiredKey dispatches one expired key to its handler. Non-game keys
// are ignored.
func (w *TimerWatcher) HandleExpiredKey(ctx context.Context, key string) {
	roomID := keys.RoomIDFromKey(key)
	if roomID == "" || !strings.HasPrefix(key, "room:") {
		return
	}

	switch {
	case key == keys.TurnTimer(roomID):
		w.handle(ctx, key, roomID, "turn", w.wordDiscriminator(ctx, roomID), w.onTurnTimeout)
	case key == keys.RevealTimer(roomID):
		w.handle(ctx, key, roomID, "reveal", w.wordDiscriminator(ctx, roomID), w.onRevealTick)
	case key == keys.WordSelectionTimer(roomID):
		w.handle(ctx, key, roomID, "selection", roomID, w.onSelectionTimeout)
	case key == keys.TurnTransitionTimer(roomID):
		w.handle(ctx, key, roomID, "transition", roomID, w.onTransition)
	}
}

// wordDiscriminator ties turn/reveal locks to the word of the turn that armed
// the timer, so a stale lock from a previous turn cannot suppress a new one.
func (w *TimerWatcher) wordDiscriminator(ctx context.Context, roomID string) string {
	word, err := w.store.Get(ctx, keys.CurrentWord(roomID))
	if err != nil {
		return ""
	}
	return word
}

func (w *TimerWatcher) handle(ctx context.Context, key, roomID, kind, discriminator string, fn func(ctx context.Context, roomID string) error) {
	won, err := w.store.AcquireLock(ctx, keys.Lock(key, discriminator), w.nodeID, lockTTL)
	if err != nil {
		logger.Error("expiry lock failed", "key", key, "err", err)
		return
	}
	if !won {
		metrics.TimerLockLosses.Inc()
		return
	}
	metrics.TimerLockWins.Inc()
	metrics.TimerExpirations.WithLabelValues(kind).Inc()

	status, err := w.rooms.GetStatus(ctx, roomID)
	if err != nil {
		logger.Error("status read failed", "room", roomID, "err", err)
		return
	}
	if status != StatusActive {
		// Orphaned timer from a game that ended some other way.
		w.cleanupOrphans(ctx, roomID)
		return
	}

	if err := fn(ctx, roomID); err != nil {
		logger.Error("expiry handler failed", "key", key, "kind", kind, "err", err)
	}
}

func (w *TimerWatcher) cleanupOrphans(ctx context.Context, roomID string) {
	err := w.store.Del(ctx,
		keys.TurnTimer(roomID),
		keys.RevealTimer(roomID),
		keys.WordSelectionTimer(roomID),
		keys.WordSelectionWords(roomID),
		keys.TurnTransitionTimer(roomID),
	)
	if err != nil {
		logger.Warn("orphan timer cleanup failed", "room", roomID, "err", err)
	}
}

func (w *TimerWatcher) onTurnTimeout(ctx context.Context, roomID string) error {
	hasWord, err := w.store.Exists(ctx, keys.CurrentWord(roomID))
	if err != nil {
		return err
	}
	if !hasWord {
		// Turn already ended on another path.
		return nil
	}
	return w.engine.EndTurn(ctx, roomID, ReasonTimeout)
}

func (w *TimerWatcher) onRevealTick(ctx context.Context, roomID string) error {
	info, err := w.rooms.GetInfo(ctx, roomID)
	if err != nil {
		return err
	}
	if !info.HintsAllowed {
		return nil
	}

	revealed, done, err := w.words.RevealNextLetter(ctx, roomID)
	if errors.Is(err, ErrWordNotFound) {
		// Turn ended between expiry and handling.
		return nil
	}
	if err != nil {
		return err
	}

	// The drawer already sees the whole word.
	w.bcast.BroadcastExcept(ctx, roomID, info.CurrentDrawer, Message{Type: EvtLetterReveal, Payload: map[string]any{
		"revealed_word": revealed,
	}})

	if done {
		return nil
	}
	return w.words.StartRevealTimer(ctx, roomID, info.Settings)
}

func (w *TimerWatcher) onSelectionTimeout(ctx context.Context, roomID string) error {
	return w.engine.AutoSelectWord(ctx, roomID)
}

func (w *TimerWatcher) onTransition(ctx context.Context, roomID string) error {
	return w.engine.Start(ctx, roomID)
}
