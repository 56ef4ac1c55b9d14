package game

import "math"

// Scoring constants. Rank is the 1-based order in which guessers found the
// word this turn.
const (
	BaseScore       = 50
	SpeedBonusMax   = 50
	AllGuessedBonus = 40
	StreakBonusPer  = 10
	StreakBonusCap  = 30
)

func rankBonus(rank int) int {
	switch rank {
	case 1:
		return 30
	case 2:
		return 20
	case 3:
		return 10
	case 4:
		return 5
	default:
		return 0
	}
}

func drawerMultiplier(rank int) float64 {
	switch rank {
	case 1:
		return 0.60
	case 2:
		return 0.50
	case 3:
		return 0.40
	case 4:
		return 0.30
	default:
		return 0.20
	}
}

// StreakBonus converts a consecutive-correct counter into bonus points.
func StreakBonus(streak int) int {
	bonus := streak * StreakBonusPer
	if bonus > StreakBonusCap {
		return StreakBonusCap
	}
	return bonus
}

// GuessPoints computes the points a correct guess is worth for the guesser and
// how much of that the drawer earns. timeRemaining and turnTime are in
// seconds; streak is the guesser's counter after incrementing for this guess.
func GuessPoints(timeRemaining, turnTime, rank, streak int) (guesser, drawer int) {
	speed := 0
	if turnTime > 0 {
		speed = int(math.Round(float64(timeRemaining) / float64(turnTime) * SpeedBonusMax))
	}

	guesser = BaseScore + speed + rankBonus(rank) + StreakBonus(streak)

	drawer = int(math.Round(float64(guesser) * drawerMultiplier(rank)))
	if drawer < 0 {
		drawer = 0
	}
	return guesser, drawer
}
