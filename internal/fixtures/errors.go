package fixtures

import "errors"

// Validation and lookup errors shared by the lifecycle service and the HTTP
// layer. All of them are recoverable: the caller corrects the input and
// retries, and no persistent state has been mutated.
var (
	ErrNotFound = errors.New("requested resource not found")

	ErrInvalidPlayerCount   = errors.New("player count is outside the game's limits")
	ErrPlayerAlreadyPlaying = errors.New("a player is already in an open fixture")
	ErrFixtureFinished      = errors.New("fixture has already finished")
	ErrFixtureNotSettled    = errors.New("fixture has not been settled yet")
	ErrPlayerNotInFixture   = errors.New("player does not belong to this fixture")
	ErrRankExceedsMax       = errors.New("rank exceeds the maximum for this fixture")
)
