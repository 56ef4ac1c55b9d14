package game

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"drawdash_backend/internal/keys"
	"drawdash_backend/internal/store"
)

// Sentinel values stored in the timer keys; the key's expiry is the signal,
// the value only matters for debugging (and for the word-selection candidates).
const (
	turnTimerValue       = "active"
	revealTimerValue     = "reveal_letter"
	transitionTimerValue = "transition"
)

const (
	// WordSelectionTTL is how long the drawer gets to pick a word.
	WordSelectionTTL = 10 * time.Second
	// selectionMirrorGrace keeps the candidate mirror readable after the
	// selection timer itself has expired.
	selectionMirrorGrace = 5 * time.Second
	// TurnTransitionTTL smooths the turn-over animation on clients.
	TurnTransitionTTL = 3 * time.Second
)

// WordService owns word sampling, the current word, and the letter-reveal
// protocol of a turn.
type WordService struct {
	store *store.Store

	mu  sync.Mutex
	rng *rand.Rand
}

func NewWordService(s *store.Store, rng *rand.Rand) *WordService {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &WordService{store: s, rng: rng}
}

// GenerateWords samples the 3 candidates offered to a drawer.
func (w *WordService) GenerateWords(difficulty string) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return SampleWords(w.rng, difficulty, 3)
}

func (w *WordService) pick(n int) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rng.Intn(n)
}

// specialIndices returns the positions of spaces and hyphens, which are shown
// to guessers from the start of the turn.
func specialIndices(word string) ([]int, []SpecialChar) {
	var idx []int
	var chars []SpecialChar
	for i, r := range []rune(word) {
		if r == ' ' || r == '-' {
			idx = append(idx, i)
			chars = append(chars, SpecialChar{Index: i, Char: string(r)})
		}
	}
	return idx, chars
}

// maskWord renders the guesser view: revealed positions show their character,
// hidden positions show an underscore.
func maskWord(word string, revealed map[int]bool) string {
	runes := []rune(word)
	out := make([]rune, len(runes))
	for i, r := range runes {
		if revealed[i] {
			out[i] = r
		} else {
			out[i] = '_'
		}
	}
	return string(out)
}

func (w *WordService) loadRevealed(ctx context.Context, roomID string) (map[int]bool, error) {
	revealed := make(map[int]bool)
	raw, err := w.store.Get(ctx, keys.RevealedIndices(roomID))
	if errors.Is(err, store.ErrNotFound) {
		return revealed, nil
	}
	if err != nil {
		return nil, err
	}
	var idx []int
	if err := json.Unmarshal([]byte(raw), &idx); err != nil {
		return nil, err
	}
	for _, i := range idx {
		revealed[i] = true
	}
	return revealed, nil
}

func (w *WordService) saveRevealed(ctx context.Context, roomID string, revealed map[int]bool) error {
	idx := make([]int, 0, len(revealed))
	for i := range revealed {
		idx = append(idx, i)
	}
	data, err := json.Marshal(idx)
	if err != nil {
		return err
	}
	return w.store.Set(ctx, keys.RevealedIndices(roomID), string(data))
}

// StartTurn wipes the previous turn's leftovers, installs the chosen word and
// arms the turn and reveal timers.
func (w *WordService) StartTurn(ctx context.Context, roomID, word string, set Settings) (TurnState, error) {
	if err := w.store.Del(ctx,
		keys.Canvas(roomID),
		keys.RevealedIndices(roomID),
		keys.CurrentWord(roomID),
	); err != nil {
		return TurnState{}, err
	}

	idx, chars := specialIndices(word)
	if len(idx) > 0 {
		data, err := json.Marshal(idx)
		if err != nil {
			return TurnState{}, err
		}
		if err := w.store.Set(ctx, keys.RevealedIndices(roomID), string(data)); err != nil {
			return TurnState{}, err
		}
	}

	if err := w.store.Set(ctx, keys.CurrentWord(roomID), word); err != nil {
		return TurnState{}, err
	}
	turnTTL := time.Duration(set.TurnTime) * time.Second
	if turnTTL < time.Second {
		// SET with a zero TTL stores a persistent key; the turn would never
		// time out.
		turnTTL = time.Second
	}
	if err := w.store.SetEx(ctx, keys.TurnTimer(roomID), turnTimerValue, turnTTL); err != nil {
		return TurnState{}, err
	}

	// First hint halfway through the turn; single-letter words never reveal.
	if set.HintsAllowed && len([]rune(word)) >= 2 {
		halfway := turnTTL / 2
		if halfway < time.Second {
			halfway = time.Second
		}
		if err := w.store.SetEx(ctx, keys.RevealTimer(roomID), revealTimerValue, halfway); err != nil {
			return TurnState{}, err
		}
	}

	return TurnState{
		WordLength:    len([]rune(word)),
		TimeRemaining: set.TurnTime,
		SpecialChars:  chars,
	}, nil
}

// RevealNextLetter uncovers one more random letter and returns the new guesser
// view. done is true when every position is visible.
func (w *WordService) RevealNextLetter(ctx context.Context, roomID string) (revealed string, done bool, err error) {
	word, err := w.store.Get(ctx, keys.CurrentWord(roomID))
	if errors.Is(err, store.ErrNotFound) || (err == nil && word == "") {
		return "", false, ErrWordNotFound
	}
	if err != nil {
		return "", false, err
	}

	shown, err := w.loadRevealed(ctx, roomID)
	if err != nil {
		return "", false, err
	}
	idx, _ := specialIndices(word)
	for _, i := range idx {
		shown[i] = true
	}

	runes := []rune(word)
	var remaining []int
	for i := range runes {
		if !shown[i] {
			remaining = append(remaining, i)
		}
	}
	if len(remaining) == 0 {
		return word, true, nil
	}

	next := remaining[w.pick(len(remaining))]
	shown[next] = true
	if err := w.saveRevealed(ctx, roomID, shown); err != nil {
		return "", false, err
	}
	return maskWord(word, shown), len(remaining) == 1, nil
}

// StartRevealTimer arms the next reveal tick. Longer words reveal faster so a
// useful share of the word shows up within a turn.
func (w *WordService) StartRevealTimer(ctx context.Context, roomID string, set Settings) error {
	if !set.HintsAllowed {
		return ErrHintsDisabled
	}
	word, err := w.store.Get(ctx, keys.CurrentWord(roomID))
	if errors.Is(err, store.ErrNotFound) || (err == nil && word == "") {
		return ErrWordNotFound
	}
	if err != nil {
		return err
	}
	secs := 60 / len([]rune(word))
	if secs < 1 {
		secs = 1
	}
	return w.store.SetEx(ctx, keys.RevealTimer(roomID), revealTimerValue, time.Duration(secs)*time.Second)
}

// CurrentWordState builds the masked view plus remaining turn time for a
// client joining mid-turn.
func (w *WordService) CurrentWordState(ctx context.Context, roomID string) (WordState, error) {
	word, err := w.store.Get(ctx, keys.CurrentWord(roomID))
	if errors.Is(err, store.ErrNotFound) || (err == nil && word == "") {
		return WordState{}, ErrWordNotFound
	}
	if err != nil {
		return WordState{}, err
	}

	shown, err := w.loadRevealed(ctx, roomID)
	if err != nil {
		return WordState{}, err
	}
	idx, chars := specialIndices(word)
	for _, i := range idx {
		shown[i] = true
	}

	ttl, err := w.store.TTL(ctx, keys.TurnTimer(roomID))
	if err != nil {
		return WordState{}, err
	}

	return WordState{
		TurnState: TurnState{
			WordLength:    len([]rune(word)),
			TimeRemaining: int(ttl.Seconds()),
			SpecialChars:  chars,
		},
		RevealedWord: maskWord(word, shown),
	}, nil
}

// StashSelection arms the drawer's pick timer and mirrors the candidates so
// the auto-pick handler can recover them after the timer key has expired.
func (w *WordService) StashSelection(ctx context.Context, roomID string, words []string) error {
	data, err := json.Marshal(words)
	if err != nil {
		return err
	}
	if err := w.store.SetEx(ctx, keys.WordSelectionWords(roomID), string(data), WordSelectionTTL+selectionMirrorGrace); err != nil {
		return err
	}
	return w.store.SetEx(ctx, keys.WordSelectionTimer(roomID), string(data), WordSelectionTTL)
}

// RecoverSelection reads back the mirrored candidates, or ErrNotFound when the
// drawer already picked (selection keys are deleted on pick).
func (w *WordService) RecoverSelection(ctx context.Context, roomID string) ([]string, error) {
	raw, err := w.store.Get(ctx, keys.WordSelectionWords(roomID))
	if err != nil {
		return nil, err
	}
	var words []string
	if err := json.Unmarshal([]byte(raw), &words); err != nil {
		return nil, err
	}
	return words, nil
}

// PickRandom chooses one of the candidates for auto-selection.
func (w *WordService) PickRandom(words []string) string {
	return words[w.pick(len(words))]
}
