package game

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"drawdash_backend/internal/keys"
)

func twoPlayerSettings() Settings {
	return Settings{
		MaxRounds:    1,
		MaxPlayers:   8,
		TurnTime:     60,
		HintsAllowed: false,
		Difficulty:   DifficultyEasy,
		RoomType:     RoomPrivate,
	}
}

// rolesAfterStart reads who draws and who guesses once a turn is offered.
func rolesAfterStart(t *testing.T, env *testEnv, roomID string, uids ...string) (drawer, guesser string) {
	t.Helper()
	drawer, err := env.rooms.GetCurrentDrawer(context.Background(), roomID)
	require.NoError(t, err)
	require.NotEmpty(t, drawer)
	for _, uid := range uids {
		if uid != drawer {
			return drawer, uid
		}
	}
	t.Fatal("no guesser found")
	return "", ""
}

func TestStartGameRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	env.joinAll(t, "r1", twoPlayerSettings(), "alice", "bob")

	err := env.engine.StartGame(context.Background(), "r1", "bob")
	require.ErrorIs(t, err, ErrNotAdmin)
}

func TestStartGameRequiresTwoPlayers(t *testing.T) {
	env := newTestEnv(t)
	env.joinAll(t, "r1", twoPlayerSettings(), "alice")

	err := env.engine.StartGame(context.Background(), "r1", "alice")
	require.ErrorIs(t, err, ErrNotEnough)
}

func TestStartAssignsDrawerAndOffersWords(t *testing.T) {
	env := newTestEnv(t)
	env.joinAll(t, "r1", twoPlayerSettings(), "alice", "bob")
	ctx := context.Background()

	require.NoError(t, env.engine.StartGame(ctx, "r1", "alice"))

	// Fresh game: everyone's score broadcast as 0 first.
	zeroed := env.bus.ofType(EvtScoreUpdated)
	require.Len(t, zeroed, 2)

	assigned := env.bus.ofType(EvtDrawerAssigned)
	require.Len(t, assigned, 1)
	require.Equal(t, 1, payloadField(t, assigned[0], "round"))

	drawer, _ := rolesAfterStart(t, env, "r1", "alice", "bob")

	offers := env.bus.ofType(EvtSelectWord)
	require.Len(t, offers, 1)
	require.Equal(t, "user:"+drawer, offers[0].Topic)
	words, ok := payloadField(t, offers[0], "words").([]string)
	require.True(t, ok)
	require.Len(t, words, 3)

	require.True(t, env.mr.Exists(keys.WordSelectionTimer("r1")))
	require.True(t, env.mr.Exists(keys.WordSelectionWords("r1")))
	require.Equal(t, 10*time.Second, env.mr.TTL(keys.WordSelectionTimer("r1")))

	info, err := env.rooms.GetInfo(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, StatusActive, info.Status)
	require.Equal(t, 1, info.CurrentRound)
}

func TestSelectWordOnlyDrawer(t *testing.T) {
	env := newTestEnv(t)
	env.joinAll(t, "r1", twoPlayerSettings(), "alice", "bob")
	ctx := context.Background()
	require.NoError(t, env.engine.StartGame(ctx, "r1", "alice"))
	_, guesser := rolesAfterStart(t, env, "r1", "alice", "bob")

	err := env.engine.SelectWord(ctx, "r1", guesser, "apple")
	require.ErrorIs(t, err, ErrNotDrawer)
}

// TestTwoPlayerWin walks the literal two-player scenario: a correct guess at
// t=5 scores 136 for the guesser and 82+40 for the drawer, and the game ends
// after both players have drawn once.
func TestTwoPlayerWin(t *testing.T) {
	env := newTestEnv(t)
	env.joinAll(t, "r1", twoPlayerSettings(), "alice", "bob")
	ctx := context.Background()

	require.NoError(t, env.engine.StartGame(ctx, "r1", "alice"))
	drawer, guesser := rolesAfterStart(t, env, "r1", "alice", "bob")
	env.bus.reset()

	require.NoError(t, env.engine.SelectWord(ctx, "r1", drawer, "apple"))
	started := env.bus.ofType(EvtTurnStarted)
	require.Len(t, started, 1)
	require.Equal(t, 5, payloadField(t, started[0], "word_length"))
	require.Equal(t, 60, payloadField(t, started[0], "time_remaining"))

	env.mr.FastForward(5 * time.Second)
	env.bus.reset()

	require.NoError(t, env.engine.HandleGuess(ctx, "r1", guesser, "apple"))

	guesserScore, err := env.players.GetScore(ctx, "r1", guesser)
	require.NoError(t, err)
	require.Equal(t, 136, guesserScore)

	drawerScore, err := env.players.GetScore(ctx, "r1", drawer)
	require.NoError(t, err)
	require.Equal(t, 122, drawerScore) // round(136*0.60) + all-guessed 40

	require.Equal(t, []string{
		EvtCorrectGuess, EvtScoreUpdated, EvtScoreUpdated, EvtScoreUpdated, EvtTurnOver,
	}, env.bus.types())

	over := env.bus.ofType(EvtTurnOver)
	require.Equal(t, ReasonAllGuessed, payloadField(t, over[0], "reason"))
	require.Equal(t, "apple", payloadField(t, over[0], "word"))

	// Turn keys are wiped, the transition timer drives the next turn.
	require.False(t, env.mr.Exists(keys.CurrentWord("r1")))
	require.False(t, env.mr.Exists(keys.RevealedIndices("r1")))
	require.False(t, env.mr.Exists(keys.TurnTimer("r1")))
	require.False(t, env.mr.Exists(keys.RevealTimer("r1")))
	require.True(t, env.mr.Exists(keys.TurnTransitionTimer("r1")))

	// Second turn: the other player draws.
	env.bus.reset()
	env.watcher.HandleExpiredKey(ctx, keys.TurnTransitionTimer("r1"))
	drawer2, err := env.rooms.GetCurrentDrawer(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, guesser, drawer2)

	require.NoError(t, env.engine.SelectWord(ctx, "r1", drawer2, "fish"))

	// Nobody guesses; the turn times out and the round is exhausted.
	env.bus.reset()
	env.watcher.HandleExpiredKey(ctx, keys.TurnTimer("r1"))
	over = env.bus.ofType(EvtTurnOver)
	require.Len(t, over, 1)
	require.Equal(t, ReasonTimeout, payloadField(t, over[0], "reason"))

	env.mr.FastForward(6 * time.Second) // transition fires, stale locks expire
	env.bus.reset()
	env.watcher.HandleExpiredKey(ctx, keys.TurnTransitionTimer("r1"))

	finished := env.bus.ofType(EvtGameOver)
	require.Len(t, finished, 1)
	scores, ok := payloadField(t, finished[0], "scores").(map[string]int)
	require.True(t, ok)
	require.Equal(t, 136, scores[guesser])
	require.Equal(t, 122, scores[drawer])

	// Scores and streaks are gone, the room is back to waiting.
	require.False(t, env.mr.Exists(keys.PlayerScore("r1", guesser)))
	require.False(t, env.mr.Exists(keys.PlayerScore("r1", drawer)))
	require.False(t, env.mr.Exists(keys.PlayerStreak(guesser)))

	info, err := env.rooms.GetInfo(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, StatusWaiting, info.Status)
	require.Equal(t, 0, info.CurrentRound)
	require.Empty(t, info.CurrentDrawer)
}

func TestDuplicateCorrectGuessIsSilent(t *testing.T) {
	env := newTestEnv(t)
	set := twoPlayerSettings()
	env.joinAll(t, "r1", set, "alice", "bob", "carol")
	ctx := context.Background()

	require.NoError(t, env.engine.StartGame(ctx, "r1", "alice"))
	drawer, guesser := rolesAfterStart(t, env, "r1", "alice", "bob", "carol")
	require.NoError(t, env.engine.SelectWord(ctx, "r1", drawer, "apple"))

	require.NoError(t, env.engine.HandleGuess(ctx, "r1", guesser, "apple"))
	scoreAfterFirst, err := env.players.GetScore(ctx, "r1", guesser)
	require.NoError(t, err)
	require.NotZero(t, scoreAfterFirst)

	env.bus.reset()
	require.NoError(t, env.engine.HandleGuess(ctx, "r1", guesser, "apple"))

	require.Empty(t, env.bus.types(), "duplicate correct guess must be silent")
	scoreAfterSecond, err := env.players.GetScore(ctx, "r1", guesser)
	require.NoError(t, err)
	require.Equal(t, scoreAfterFirst, scoreAfterSecond)

	members, err := env.store.SMembers(ctx, keys.NonEligibleGuessers("r1", 1))
	require.NoError(t, err)
	require.Equal(t, []string{guesser}, members)
}

func TestSimilarWordHint(t *testing.T) {
	env := newTestEnv(t)
	env.joinAll(t, "r1", twoPlayerSettings(), "alice", "bob")
	ctx := context.Background()

	require.NoError(t, env.engine.StartGame(ctx, "r1", "alice"))
	drawer, guesser := rolesAfterStart(t, env, "r1", "alice", "bob")
	require.NoError(t, env.engine.SelectWord(ctx, "r1", drawer, "pizza"))
	env.bus.reset()

	require.NoError(t, env.engine.HandleGuess(ctx, "r1", guesser, "pizzy"))

	require.Equal(t, []string{EvtSimilarWord, EvtNewMessage}, env.bus.types())
	score, err := env.players.GetScore(ctx, "r1", guesser)
	require.NoError(t, err)
	require.Zero(t, score)
}

func TestDrawerEchoOfWordIsDropped(t *testing.T) {
	env := newTestEnv(t)
	env.joinAll(t, "r1", twoPlayerSettings(), "alice", "bob")
	ctx := context.Background()

	require.NoError(t, env.engine.StartGame(ctx, "r1", "alice"))
	drawer, _ := rolesAfterStart(t, env, "r1", "alice", "bob")
	require.NoError(t, env.engine.SelectWord(ctx, "r1", drawer, "apple"))
	env.bus.reset()

	require.NoError(t, env.engine.HandleGuess(ctx, "r1", drawer, "Apple"))
	require.Empty(t, env.bus.types())

	require.NoError(t, env.engine.HandleGuess(ctx, "r1", drawer, "hello"))
	require.Equal(t, []string{EvtNewMessage}, env.bus.types())
}

func TestGuessBeforeWordIsChat(t *testing.T) {
	env := newTestEnv(t)
	env.joinAll(t, "r1", twoPlayerSettings(), "alice", "bob")
	ctx := context.Background()

	require.NoError(t, env.engine.HandleGuess(ctx, "r1", "bob", "apple"))
	require.Equal(t, []string{EvtNewMessage}, env.bus.types())
}

func TestDrawerLeavesMidTurn(t *testing.T) {
	env := newTestEnv(t)
	env.joinAll(t, "r1", twoPlayerSettings(), "alice", "bob", "carol")
	ctx := context.Background()

	require.NoError(t, env.engine.StartGame(ctx, "r1", "alice"))
	drawer, _ := rolesAfterStart(t, env, "r1", "alice", "bob", "carol")
	require.NoError(t, env.engine.SelectWord(ctx, "r1", drawer, "train"))
	env.bus.reset()

	require.NoError(t, env.players.Remove(ctx, "r1", drawer))

	over := env.bus.ofType(EvtTurnOver)
	require.Len(t, over, 1)
	require.Equal(t, ReasonDrawerLeft, payloadField(t, over[0], "reason"))
	require.Equal(t, "train", payloadField(t, over[0], "word"))

	require.False(t, env.mr.Exists(keys.CurrentWord("r1")))
	require.True(t, env.mr.Exists(keys.TurnTransitionTimer("r1")))

	current, err := env.rooms.GetCurrentDrawer(ctx, "r1")
	require.NoError(t, err)
	require.Empty(t, current)

	// The transition hands the turn to a remaining player.
	env.watcher.HandleExpiredKey(ctx, keys.TurnTransitionTimer("r1"))
	next, err := env.rooms.GetCurrentDrawer(ctx, "r1")
	require.NoError(t, err)
	require.NotEmpty(t, next)
	require.NotEqual(t, drawer, next)
}

func TestLastOutstandingGuesserLeaving(t *testing.T) {
	env := newTestEnv(t)
	env.joinAll(t, "r1", twoPlayerSettings(), "alice", "bob", "carol")
	ctx := context.Background()

	require.NoError(t, env.engine.StartGame(ctx, "r1", "alice"))
	drawer, guesser := rolesAfterStart(t, env, "r1", "alice", "bob", "carol")
	require.NoError(t, env.engine.SelectWord(ctx, "r1", drawer, "apple"))
	require.NoError(t, env.engine.HandleGuess(ctx, "r1", guesser, "apple"))
	env.bus.reset()

	// The third player leaves without guessing; the turn completes as
	// all-guessed with the drawer bonus.
	var third string
	for _, uid := range []string{"alice", "bob", "carol"} {
		if uid != drawer && uid != guesser {
			third = uid
		}
	}
	require.NoError(t, env.players.Remove(ctx, "r1", third))

	over := env.bus.ofType(EvtTurnOver)
	require.Len(t, over, 1)
	require.Equal(t, ReasonAllGuessed, payloadField(t, over[0], "reason"))
}

func TestSinglePlayerLeftEndsGame(t *testing.T) {
	env := newTestEnv(t)
	env.joinAll(t, "r1", twoPlayerSettings(), "alice", "bob")
	ctx := context.Background()

	require.NoError(t, env.engine.StartGame(ctx, "r1", "alice"))
	drawer, guesser := rolesAfterStart(t, env, "r1", "alice", "bob")
	require.NoError(t, env.engine.SelectWord(ctx, "r1", drawer, "apple"))
	env.bus.reset()

	require.NoError(t, env.players.Remove(ctx, "r1", guesser))

	require.Len(t, env.bus.ofType(EvtGameOver), 1)
	require.False(t, env.mr.Exists(keys.PlayerScore("r1", drawer)))

	status, err := env.rooms.GetStatus(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, StatusWaiting, status)
}

// TestWordAutoSelection covers the selection-timer expiry: the watcher
// recovers the candidates from the mirror key and starts the turn on the
// drawer's behalf.
func TestWordAutoSelection(t *testing.T) {
	env := newTestEnv(t)
	env.joinAll(t, "r1", twoPlayerSettings(), "alice", "bob")
	ctx := context.Background()

	require.NoError(t, env.engine.StartGame(ctx, "r1", "alice"))
	drawer, _ := rolesAfterStart(t, env, "r1", "alice", "bob")

	offers := env.bus.ofType(EvtSelectWord)
	require.Len(t, offers, 1)
	offered, ok := payloadField(t, offers[0], "words").([]string)
	require.True(t, ok)

	// Drawer never picks; the selection timer lapses (mirror outlives it).
	env.mr.FastForward(WordSelectionTTL)
	require.False(t, env.mr.Exists(keys.WordSelectionTimer("r1")))
	require.True(t, env.mr.Exists(keys.WordSelectionWords("r1")))
	env.bus.reset()

	env.watcher.HandleExpiredKey(ctx, keys.WordSelectionTimer("r1"))

	started := env.bus.ofType(EvtTurnStarted)
	require.Len(t, started, 1)
	require.Equal(t, true, payloadField(t, started[0], "auto_selected"))

	auto := env.bus.ofType(EvtWordAutoSelected)
	require.Len(t, auto, 1)
	require.Equal(t, "user:"+drawer, auto[0].Topic)
	picked, _ := payloadField(t, auto[0], "word").(string)
	require.Contains(t, offered, picked)

	word, err := env.store.Get(ctx, keys.CurrentWord("r1"))
	require.NoError(t, err)
	require.Equal(t, picked, word)
	require.False(t, env.mr.Exists(keys.WordSelectionWords("r1")))
}

func TestAutoSelectAfterManualPickIsNoop(t *testing.T) {
	env := newTestEnv(t)
	env.joinAll(t, "r1", twoPlayerSettings(), "alice", "bob")
	ctx := context.Background()

	require.NoError(t, env.engine.StartGame(ctx, "r1", "alice"))
	drawer, _ := rolesAfterStart(t, env, "r1", "alice", "bob")
	require.NoError(t, env.engine.SelectWord(ctx, "r1", drawer, "apple"))
	env.bus.reset()

	// A late expiry event for the already-consumed selection timer.
	env.watcher.HandleExpiredKey(ctx, keys.WordSelectionTimer("r1"))
	require.Empty(t, env.bus.ofType(EvtTurnStarted))

	word, err := env.store.Get(ctx, keys.CurrentWord("r1"))
	require.NoError(t, err)
	require.Equal(t, "apple", word)
}

func TestStreakAcrossTurns(t *testing.T) {
	env := newTestEnv(t)
	env.joinAll(t, "r1", twoPlayerSettings(), "alice", "bob", "carol")
	ctx := context.Background()

	require.NoError(t, env.engine.StartGame(ctx, "r1", "alice"))
	drawer, guesser := rolesAfterStart(t, env, "r1", "alice", "bob", "carol")
	require.NoError(t, env.engine.SelectWord(ctx, "r1", drawer, "apple"))

	require.NoError(t, env.engine.HandleGuess(ctx, "r1", guesser, "apple"))
	streak, err := env.players.GetStreak(ctx, guesser)
	require.NoError(t, err)
	require.Equal(t, 1, streak)

	// Timeout ends the turn: the player who never guessed loses their
	// streak, the correct guesser keeps theirs.
	var third string
	for _, uid := range []string{"alice", "bob", "carol"} {
		if uid != drawer && uid != guesser {
			third = uid
		}
	}
	_, err = env.store.IncrBy(ctx, keys.PlayerStreak(third), 3)
	require.NoError(t, err)

	require.NoError(t, env.engine.EndTurn(ctx, "r1", ReasonTimeout))

	streak, err = env.players.GetStreak(ctx, guesser)
	require.NoError(t, err)
	require.Equal(t, 1, streak)

	streak, err = env.players.GetStreak(ctx, third)
	require.NoError(t, err)
	require.Zero(t, streak)
}
