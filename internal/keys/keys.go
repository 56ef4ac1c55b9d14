package keys

import (
	"fmt"
	"strings"
)

// Every room-scoped key embeds the room id inside {braces} so that in cluster
// mode all keys for one room hash to the same slot and can be scanned/deleted
// together without CROSSSLOT errors.

func roomTag(roomID string) string { return "{" + roomID + "}" }

// RoomInfo is the settings/status hash for a room.
func RoomInfo(roomID string) string { return "room:" + roomTag(roomID) + ":info" }

// Players is the set of user ids currently in the room.
func Players(roomID string) string { return "room:" + roomTag(roomID) + ":players" }

// EligibleDrawers holds the players who have not drawn yet in round n.
func EligibleDrawers(roomID string, round int) string {
	return fmt.Sprintf("room:%s:round:%d:eligible_drawers", roomTag(roomID), round)
}

// NonEligibleGuessers holds the players who already guessed correctly this turn.
func NonEligibleGuessers(roomID string, round int) string {
	return fmt.Sprintf("room:%s:%d:non_eligible_guessers", roomTag(roomID), round)
}

// CurrentWord is the word the drawer picked, exact case preserved.
func CurrentWord(roomID string) string { return "room:" + roomTag(roomID) + ":word" }

// RevealedIndices is a JSON int array of positions visible to guessers.
func RevealedIndices(roomID string) string { return "room:" + roomTag(roomID) + ":revealed_indices" }

// TurnTimer expires when the drawing time for the current turn runs out.
func TurnTimer(roomID string) string { return "room:" + roomTag(roomID) + ":timer" }

// RevealTimer expires when the next letter should be revealed.
func RevealTimer(roomID string) string { return "room:" + roomTag(roomID) + ":reveal_timer" }

// WordSelectionTimer expires when the drawer has not picked a word in time.
func WordSelectionTimer(roomID string) string {
	return "room:" + roomTag(roomID) + ":word_selection_timer"
}

// WordSelectionWords mirrors the candidate list of WordSelectionTimer. Redis
// expiry events carry only the key name, so the auto-pick handler reads the
// candidates from here.
func WordSelectionWords(roomID string) string {
	return "room:" + roomTag(roomID) + ":word_selection_words"
}

// TurnTransitionTimer expires when the client-side turn-over animation is done.
func TurnTransitionTimer(roomID string) string {
	return "room:" + roomTag(roomID) + ":turn_transition_timer"
}

// PlayerScore is the per-room integer score of one player.
func PlayerScore(roomID, userID string) string {
	return "room:" + roomTag(roomID) + ":player:" + userID + ":score"
}

// Canvas is the list of stroke payloads drawn so far this turn.
func Canvas(roomID string) string { return "room:" + roomTag(roomID) + ":canvas" }

// KickVotes is the set of users who voted to kick target.
func KickVotes(roomID, targetID string) string {
	return "room:" + roomTag(roomID) + ":kick_votes:" + targetID
}

// RoomPattern matches every key belonging to a room, for cleanup.
func RoomPattern(roomID string) string { return "room:" + roomTag(roomID) + ":*" }

// PlayerScorePattern matches every score key of a room.
func PlayerScorePattern(roomID string) string {
	return "room:" + roomTag(roomID) + ":player:*:score"
}

// PlayerStreak is the cross-room consecutive-correct-guess counter.
func PlayerStreak(userID string) string { return "player:" + userID + ":streak" }

// PublicRooms indexes public rooms that still have open slots.
func PublicRooms() string { return "public_rooms" }

// Lock guards a timer-expiry handler against duplicate firing across replicas.
// The discriminator ties the lock to one logical expiry (current word for
// turn/reveal timers, room id for selection/transition timers).
func Lock(expiredKey, discriminator string) string {
	return "lock:" + expiredKey + ":" + discriminator
}

// RoomIDFromKey extracts the room id out of a room-scoped key, or "" if the
// key is not room-scoped.
func RoomIDFromKey(key string) string {
	start := strings.Index(key, "{")
	end := strings.Index(key, "}")
	if start < 0 || end < 0 || end <= start+1 {
		return ""
	}
	return key[start+1 : end]
}
