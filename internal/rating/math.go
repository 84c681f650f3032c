package rating

import (
	"math"

	"github.com/thoward27/friend-olympics/internal/models"
)

// Expected returns the probability that the target beats the source under the
// standard logistic paired-comparison model. The source's and target's
// expectations are complementary: Expected(a, b) + Expected(b, a) == 1 within
// floating tolerance.
func Expected(sourceScore, targetScore int) float64 {
	return 1 / (1 + math.Pow(10, float64(sourceScore-targetScore)/400))
}

// Outcome scores the observed result of a pairwise comparison: 1 if rankA
// placed better (smaller) than rankB, 0 if worse, 0.5 on a tie.
func Outcome(rankA, rankB int) float64 {
	if rankA == rankB {
		return 0.5
	}
	if rankA < rankB {
		return 1
	}
	return 0
}

// Delta computes the points the target gains from the source for a single
// pairwise comparison. The raw delta is importance * (outcome - expected),
// dampened by decay when the ranks are more than one apart and by the game's
// randomness factor, then truncated toward zero. Truncation (not rounding)
// slightly under-distributes points so aggregation can never inflate the
// total score in play.
func Delta(game *models.Game, sourceRank, sourceScore, targetRank, targetScore int) int {
	expected := Expected(sourceScore, targetScore)
	update := float64(game.Importance()) * (Outcome(targetRank, sourceRank) - expected)
	if diff := absInt(sourceRank - targetRank); diff > 1 {
		update *= math.Pow(game.Decay, float64(diff))
	}
	// A game's weight is reduced if the outcome is based on chance.
	// IE, a coinflip game should have a lower weight than a game of darts.
	if game.Randomness > 0 {
		update *= 1 - game.Randomness/2
	}
	return int(math.Trunc(update))
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
