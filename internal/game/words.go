package game

import (
	"math/rand"
)

// Word pools per difficulty. Multi-word and hyphenated entries are fine: their
// spaces and hyphens are revealed to guessers from the start.

var easyWords = []string{
	"apple", "house", "star", "fish", "tree", "moon", "cat", "dog", "ball",
	"book", "car", "sun", "cake", "door", "shoe", "duck", "frog", "kite",
	"milk", "sock", "bed", "hat", "bird", "boat", "rain", "snow", "egg",
	"fork", "lamp", "nose", "ring", "drum", "bell", "corn", "leaf", "key",
	"ant", "bee", "cow", "pig",
}

var mediumWords = []string{
	"pizza", "train", "guitar", "rocket", "castle", "dragon", "bridge",
	"camera", "helmet", "island", "jungle", "ladder", "mirror", "pirate",
	"robot", "spider", "tunnel", "violin", "wizard", "anchor", "balloon",
	"candle", "dolphin", "engine", "feather", "glacier", "hammock",
	"iceberg", "lantern", "mermaid", "octopus", "penguin", "rainbow",
	"sandwich", "tornado", "umbrella", "volcano", "ice cream", "t-shirt",
	"hot dog",
}

var hardWords = []string{
	"archipelago", "bureaucracy", "chandelier", "choreography", "cryptocurrency",
	"daydreaming", "eclipse", "fingerprint", "gravity", "hallucination",
	"hibernation", "kaleidoscope", "labyrinth", "metamorphosis", "mirage",
	"nostalgia", "orchestra", "parachute", "photosynthesis", "procrastination",
	"quarantine", "reflection", "silhouette", "stethoscope", "submarine",
	"telescope", "thermometer", "trampoline", "ventriloquist", "whirlpool",
	"xylophone", "zeppelin", "black hole", "time machine", "roller coaster",
	"jack-o-lantern", "merry-go-round", "solar system", "treasure chest",
	"optical illusion",
}

func wordPool(difficulty string) []string {
	switch difficulty {
	case DifficultyEasy:
		return easyWords
	case DifficultyHard:
		return hardWords
	default:
		return mediumWords
	}
}

// SampleWords draws n distinct words uniformly at random from the pool for
// the given difficulty.
func SampleWords(rng *rand.Rand, difficulty string, n int) []string {
	pool := wordPool(difficulty)
	if n > len(pool) {
		n = len(pool)
	}
	out := make([]string, 0, n)
	for _, i := range rng.Perm(len(pool))[:n] {
		out = append(out, pool[i])
	}
	return out
}
