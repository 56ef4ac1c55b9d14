package game

import "errors"

var (
	ErrWordNotFound  = errors.New("game: no word set for this turn")
	ErrHintsDisabled = errors.New("game: hints are disabled for this room")
	ErrNotAdmin      = errors.New("game: only the admin can do that")
	ErrNotDrawer     = errors.New("game: only the current drawer can do that")
	ErrNotInRoom     = errors.New("game: player is not in the room")
	ErrRoomFull      = errors.New("game: room is full")
	ErrRoomInactive  = errors.New("game: room is not active")
	ErrNotEnough     = errors.New("game: not enough players to start")
	ErrSelfVote      = errors.New("game: cannot vote to kick yourself")
)
