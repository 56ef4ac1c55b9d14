package game

import (
	"context"

	json "github.com/goccy/go-json"

	"drawdash_backend/internal/keys"
)

// HandleDrawing relays a stroke from the drawer to the room and appends it to
// the canvas list so late joiners can replay it.
func (e *TurnEngine) HandleDrawing(ctx context.Context, roomID, userID string, stroke json.RawMessage) error {
	info, err := e.rooms.GetInfo(ctx, roomID)
	if err != nil {
		return err
	}
	if info.Status != StatusActive || userID != info.CurrentDrawer {
		return ErrNotDrawer
	}

	if err := e.store.RPush(ctx, keys.Canvas(roomID), string(stroke)); err != nil {
		return err
	}
	e.bcast.BroadcastExcept(ctx, roomID, userID, Message{Type: EvtDrawing, Payload: stroke})
	return nil
}

// HandleDrawingClear wipes the canvas for everyone.
func (e *TurnEngine) HandleDrawingClear(ctx context.Context, roomID, userID string) error {
	info, err := e.rooms.GetInfo(ctx, roomID)
	if err != nil {
		return err
	}
	if info.Status != StatusActive || userID != info.CurrentDrawer {
		return ErrNotDrawer
	}

	if err := e.store.Del(ctx, keys.Canvas(roomID)); err != nil {
		return err
	}
	e.bcast.BroadcastExcept(ctx, roomID, userID, Message{Type: EvtDrawingClear})
	return nil
}

// CanvasStrokes returns the stored strokes for replay.
func (e *TurnEngine) CanvasStrokes(ctx context.Context, roomID string) ([]json.RawMessage, error) {
	raw, err := e.store.LRange(ctx, keys.Canvas(roomID), 0, -1)
	if err != nil {
		return nil, err
	}
	out := make([]json.RawMessage, len(raw))
	for i, s := range raw {
		out[i] = json.RawMessage(s)
	}
	return out, nil
}
