package ws

import (
	"context"
	"errors"

	json "github.com/goccy/go-json"

	"drawdash_backend/internal/game"
	"drawdash_backend/internal/logger"
	"drawdash_backend/internal/store"
)

// Deps bundles everything a connection needs from the engine side.
type Deps struct {
	Store   *store.Store
	Rooms   *game.RoomState
	Players *game.PlayerRegistry
	Engine  *game.TurnEngine
}

// RoomChannel serves one client connection: it joins the player to the room,
// relays the room/user pub/sub topics onto the socket, and dispatches inbound
// events to the engine. Events from one connection are handled sequentially;
// Redis arbitrates between connections.
type RoomChannel struct {
	deps   Deps
	client *Client
}

func NewRoomChannel(deps Deps, client *Client) *RoomChannel {
	return &RoomChannel{deps: deps, client: client}
}

// Run blocks until the connection closes. The player is removed from the room
// on the way out, whatever the disconnect reason.
func (rc *RoomChannel) Run(ctx context.Context) {
	c := rc.client
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if _, err := rc.deps.Players.Add(ctx, c.RoomID, c.UserID, game.DefaultSettings()); err != nil {
		logger.Warn("join rejected", "room", c.RoomID, "user", c.UserID, "err", err)
		rc.sendDirect(game.Message{Type: game.EvtError, Payload: map[string]any{"message": "join failed"}})
		c.Conn.Close()
		return
	}

	go c.writePump()
	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		rc.relay(ctx)
	}()

	rc.sendGameState(ctx)

	c.readPump(func(raw []byte) {
		rc.dispatch(ctx, raw)
	})

	// Socket gone: leave the room and let the engine handle the fallout.
	if err := rc.deps.Players.Remove(context.WithoutCancel(ctx), c.RoomID, c.UserID); err != nil {
		logger.Error("leave on disconnect failed", "room", c.RoomID, "user", c.UserID, "err", err)
	}

	// The relay must be fully stopped before Send closes; a broadcast landing
	// mid-teardown (the player_left above included) would otherwise enqueue on
	// a closed channel.
	cancel()
	<-relayDone
	close(c.Send)
}

// relay copies the room and user topics onto the socket, honoring per-message
// exclusions.
func (rc *RoomChannel) relay(ctx context.Context) {
	sub := rc.deps.Store.Subscribe(ctx, game.RoomTopic(rc.client.RoomID), game.UserTopic(rc.client.UserID))
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env game.Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				logger.Warn("bad envelope on bus", "topic", msg.Channel, "err", err)
				continue
			}
			if env.Exclude != "" && env.Exclude == rc.client.UserID {
				continue
			}
			data, err := json.Marshal(env.Msg)
			if err != nil {
				continue
			}
			rc.client.enqueue(data)
		}
	}
}

func (rc *RoomChannel) sendDirect(msg game.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	rc.client.enqueue(data)
}

// sendGameState catches a late joiner up on a game already in progress.
func (rc *RoomChannel) sendGameState(ctx context.Context) {
	state, err := rc.deps.Engine.GameState(ctx, rc.client.RoomID)
	if err != nil {
		logger.Warn("game state snapshot failed", "room", rc.client.RoomID, "err", err)
		return
	}
	rc.sendDirect(game.Message{Type: game.EvtGameState, Payload: state})
}

func (rc *RoomChannel) dispatch(ctx context.Context, raw []byte) {
	var msg inbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		logger.Debug("malformed client message", "user", rc.client.UserID, "err", err)
		return
	}

	roomID, userID := rc.client.RoomID, rc.client.UserID
	var err error

	switch msg.Type {
	case game.EvtStartGame:
		err = rc.deps.Engine.StartGame(ctx, roomID, userID)

	case game.EvtSelectWord:
		var p selectWordPayload
		if json.Unmarshal(msg.Payload, &p) != nil || p.Word == "" {
			return
		}
		err = rc.deps.Engine.SelectWord(ctx, roomID, userID, p.Word)

	case game.EvtNewMessage:
		var p newMessagePayload
		if json.Unmarshal(msg.Payload, &p) != nil || p.Message == "" {
			return
		}
		err = rc.deps.Engine.HandleGuess(ctx, roomID, userID, p.Message)

	case game.EvtDrawing:
		err = rc.deps.Engine.HandleDrawing(ctx, roomID, userID, msg.Payload)

	case game.EvtDrawingClear:
		err = rc.deps.Engine.HandleDrawingClear(ctx, roomID, userID)

	case game.EvtVoteKick:
		var p voteKickPayload
		if json.Unmarshal(msg.Payload, &p) != nil || p.TargetUserID == "" {
			return
		}
		err = rc.deps.Players.VoteToKick(ctx, roomID, userID, p.TargetUserID)

	case game.EvtLeave:
		rc.client.Conn.Close()
		return

	default:
		logger.Debug("unknown event", "type", msg.Type, "user", userID)
		return
	}

	if err != nil {
		rc.handleEventError(msg.Type, err)
	}
}

// handleEventError: validation failures get a targeted error; precondition
// failures stay silent so probing yields no feedback.
func (rc *RoomChannel) handleEventError(event string, err error) {
	switch {
	case errors.Is(err, game.ErrNotAdmin),
		errors.Is(err, game.ErrNotEnough),
		errors.Is(err, game.ErrRoomInactive):
		rc.sendDirect(game.Message{Type: game.EvtError, Payload: map[string]any{"message": err.Error()}})
	case errors.Is(err, game.ErrNotDrawer),
		errors.Is(err, game.ErrSelfVote),
		errors.Is(err, game.ErrNotInRoom):
		// silent no-op
	default:
		logger.Error("event handling failed", "event", event, "room", rc.client.RoomID, "user", rc.client.UserID, "err", err)
	}
}
