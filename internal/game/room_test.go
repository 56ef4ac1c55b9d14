package game

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"drawdash_backend/internal/keys"
)

func TestGetOrInitializeRoundTripsSettings(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	set := Settings{
		MaxRounds:    5,
		MaxPlayers:   4,
		TurnTime:     90,
		HintsAllowed: false,
		Difficulty:   DifficultyHard,
		RoomType:     RoomPrivate,
	}

	created, err := env.rooms.GetOrInitialize(ctx, "r1", set)
	require.NoError(t, err)
	require.Equal(t, StatusWaiting, created.Status)

	// A second call ignores the settings argument and reads back the stored ones.
	loaded, err := env.rooms.GetOrInitialize(ctx, "r1", DefaultSettings())
	require.NoError(t, err)
	require.Equal(t, set, loaded.Settings)
	require.Zero(t, loaded.CurrentRound)
}

func TestGetOrInitializeResetsFinishedRoom(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.rooms.GetOrInitialize(ctx, "r1", DefaultSettings())
	require.NoError(t, err)
	require.NoError(t, env.rooms.SetStatus(ctx, "r1", StatusFinished))
	require.NoError(t, env.rooms.SetCurrentRound(ctx, "r1", 3))
	require.NoError(t, env.rooms.SetCurrentDrawer(ctx, "r1", "alice"))

	info, err := env.rooms.GetOrInitialize(ctx, "r1", DefaultSettings())
	require.NoError(t, err)
	require.Equal(t, StatusWaiting, info.Status)
	require.Zero(t, info.CurrentRound)
	require.Empty(t, info.CurrentDrawer)

	status, err := env.rooms.GetStatus(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, StatusWaiting, status)
}

func TestGetStatusDefaultsForUnknownRoom(t *testing.T) {
	env := newTestEnv(t)

	status, err := env.rooms.GetStatus(context.Background(), "ghost")
	require.NoError(t, err)
	require.Equal(t, StatusWaiting, status)

	drawer, err := env.rooms.GetCurrentDrawer(context.Background(), "ghost")
	require.NoError(t, err)
	require.Empty(t, drawer)
}

func TestCleanupIfEmptySparesOccupiedRooms(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.joinAll(t, "r1", twoPlayerSettings(), "alice")

	require.NoError(t, env.rooms.CleanupIfEmpty(ctx, "r1"))
	require.True(t, env.mr.Exists(keys.RoomInfo("r1")))

	require.NoError(t, env.store.SRem(ctx, keys.Players("r1"), "alice"))
	require.NoError(t, env.rooms.CleanupIfEmpty(ctx, "r1"))
	require.False(t, env.mr.Exists(keys.RoomInfo("r1")))
}
