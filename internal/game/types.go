package game

// Room status values stored in the info hash.
const (
	StatusWaiting  = "waiting"
	StatusActive   = "active"
	StatusFinished = "finished"
)

// Room visibility.
const (
	RoomPublic  = "public"
	RoomPrivate = "private"
)

// Word difficulty tiers.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// client -> server
const (
	EvtJoin         = "join"
	EvtStartGame    = "start_game"
	EvtSelectWord   = "select_word"
	EvtNewMessage   = "new_message"
	EvtDrawing      = "drawing"
	EvtDrawingClear = "drawing_clear"
	EvtVoteKick     = "vote_kick"
	EvtLeave        = "leave"
)

// server -> clients
const (
	EvtDrawerAssigned   = "drawer_assigned"
	EvtTurnStarted      = "turn_started"
	EvtLetterReveal     = "letter_reveal"
	EvtSimilarWord      = "similar_word"
	EvtCorrectGuess     = "correct_guess"
	EvtScoreUpdated     = "score_updated"
	EvtTurnOver         = "turn_over"
	EvtGameOver         = "game_over"
	EvtAdminChanged     = "admin_changed"
	EvtPlayerKicked     = "player_kicked"
	EvtPlayerJoined     = "player_joined"
	EvtPlayerLeft       = "player_left"
	EvtWordAutoSelected = "word_auto_selected"
	EvtGameState        = "game_state"
	EvtError            = "error"
)

// Turn-over reasons.
const (
	ReasonTimeout    = "timeout"
	ReasonAllGuessed = "all_guessed"
	ReasonDrawerLeft = "drawer_left"
)

// Message is the wire envelope for every room/user broadcast.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Settings are the per-room knobs carried in the info hash.
type Settings struct {
	MaxRounds    int    `json:"max_rounds"`
	MaxPlayers   int    `json:"max_players"`
	TurnTime     int    `json:"turn_time"`
	HintsAllowed bool   `json:"hints_allowed"`
	Difficulty   string `json:"difficulty"`
	RoomType     string `json:"room_type"`
}

// DefaultSettings mirrors the values a bare create/join gets.
func DefaultSettings() Settings {
	return Settings{
		MaxRounds:    3,
		MaxPlayers:   8,
		TurnTime:     60,
		HintsAllowed: true,
		Difficulty:   DifficultyMedium,
		RoomType:     RoomPublic,
	}
}

// Info is the decoded room info hash.
type Info struct {
	Status        string
	CurrentRound  int
	CurrentDrawer string
	AdminID       string
	Settings
}

// SpecialChar marks a pre-revealed position (spaces and hyphens) in the word.
type SpecialChar struct {
	Index int    `json:"index"`
	Char  string `json:"char"`
}

// TurnState is what clients need to render a freshly started turn.
type TurnState struct {
	WordLength    int           `json:"word_length"`
	TimeRemaining int           `json:"time_remaining"`
	SpecialChars  []SpecialChar `json:"special_chars"`
}

// WordState extends TurnState with the currently revealed letters, for
// late-joining clients.
type WordState struct {
	TurnState
	RevealedWord string `json:"revealed_word"`
}
