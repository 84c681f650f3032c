package fixtures

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thoward27/friend-olympics/internal/models"
	"github.com/thoward27/friend-olympics/internal/rating"
)

// PlayerStore is the slice of player persistence the lifecycle service needs.
type PlayerStore interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Player, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Player, error)
}

// GameCatalog resolves the rating parameters of a game.
type GameCatalog interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Game, error)
}

// FixtureStore persists fixtures and their ranks. ApplySettlement must be
// atomic: player scores, rank deltas, the stored graph and the applied flag
// all commit together or not at all, and it returns the resulting score per
// player. ClearSettlement is the inverse, used only by Reapply.
type FixtureStore interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Fixture, error)
	Create(ctx context.Context, fixture *models.Fixture, playerIDs []uuid.UUID) error
	AnyOpenWithPlayers(ctx context.Context, playerIDs []uuid.UUID) (bool, error)
	UpdateRanks(ctx context.Context, fixtureID uuid.UUID, assignments []RankAssignment) error
	ApplySettlement(ctx context.Context, fixtureID uuid.UUID, ended time.Time, deltas map[uuid.UUID]int, graphJSON []byte) (map[uuid.UUID]int, error)
	ClearSettlement(ctx context.Context, fixtureID uuid.UUID) error
}

// ScorePublisher receives score-changed events after settlement commits.
// Delivery is best-effort; errors are logged and swallowed.
type ScorePublisher interface {
	PublishScore(ctx context.Context, playerID uuid.UUID, username string, score int) error
}

// RankAssignment updates one player's placement within an open fixture.
type RankAssignment struct {
	PlayerID uuid.UUID `json:"player_id"`
	Rank     int       `json:"rank"`
	Team     string    `json:"team"`
}

// Service orchestrates the fixture lifecycle: open -> ranked -> finished ->
// settled. Settlement runs exactly once per fixture; concurrent calls on the
// same fixture are serialized by a per-fixture mutex.
type Service struct {
	players   PlayerStore
	games     GameCatalog
	fixtures  FixtureStore
	publisher ScorePublisher

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// NewService wires the lifecycle service. The publisher may be nil, in which
// case score events are simply not emitted.
func NewService(players PlayerStore, games GameCatalog, fixtures FixtureStore, publisher ScorePublisher) *Service {
	return &Service{
		players:   players,
		games:     games,
		fixtures:  fixtures,
		publisher: publisher,
		locks:     make(map[uuid.UUID]*sync.Mutex),
	}
}

// lock serializes work on one fixture. Distinct fixtures settle in parallel.
func (s *Service) lock(fixtureID uuid.UUID) func() {
	s.mu.Lock()
	m, ok := s.locks[fixtureID]
	if !ok {
		m = &sync.Mutex{}
		s.locks[fixtureID] = m
	}
	s.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// Create opens a fixture for a game and a set of players. Every player starts
// unranked (rank 0) with no team.
func (s *Service) Create(ctx context.Context, gameID uuid.UUID, playerIDs []uuid.UUID) (*models.Fixture, error) {
	seen := make(map[uuid.UUID]bool, len(playerIDs))
	for _, id := range playerIDs {
		if seen[id] {
			return nil, fmt.Errorf("duplicate player %s: %w", id, ErrInvalidPlayerCount)
		}
		seen[id] = true
	}

	game, err := s.games.Get(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("load game: %w", err)
	}
	if !game.CanPlay(len(playerIDs)) {
		return nil, fmt.Errorf("game %q cannot be played by %d players: %w",
			game.Name, len(playerIDs), ErrInvalidPlayerCount)
	}

	players, err := s.players.ListByIDs(ctx, playerIDs)
	if err != nil {
		return nil, fmt.Errorf("load players: %w", err)
	}
	if len(players) != len(playerIDs) {
		return nil, fmt.Errorf("unknown player in fixture: %w", ErrNotFound)
	}

	playing, err := s.fixtures.AnyOpenWithPlayers(ctx, playerIDs)
	if err != nil {
		return nil, fmt.Errorf("check open fixtures: %w", err)
	}
	if playing {
		return nil, ErrPlayerAlreadyPlaying
	}

	fixture := &models.Fixture{
		ID:      uuid.New(),
		GameID:  game.ID,
		Started: time.Now().UTC(),
	}
	if err := s.fixtures.Create(ctx, fixture, playerIDs); err != nil {
		return nil, fmt.Errorf("create fixture: %w", err)
	}
	for _, p := range players {
		fixture.Ranks = append(fixture.Ranks, models.Rank{
			FixtureID: fixture.ID,
			PlayerID:  p.ID,
			Username:  p.Username,
		})
	}
	log.Printf("[FIXTURE] Created %s game=%s players=%d", fixture.ID, game.Slug, len(playerIDs))
	return fixture, nil
}

// UpdateRanks mutates placements and teams while the fixture is open. Rank 0
// clears a placement; ranks above the fixture's maximum are rejected.
func (s *Service) UpdateRanks(ctx context.Context, fixtureID uuid.UUID, assignments []RankAssignment) error {
	unlock := s.lock(fixtureID)
	defer unlock()

	fixture, err := s.fixtures.Get(ctx, fixtureID)
	if err != nil {
		return fmt.Errorf("load fixture: %w", err)
	}
	if !fixture.Open() {
		return ErrFixtureFinished
	}
	game, err := s.games.Get(ctx, fixture.GameID)
	if err != nil {
		return fmt.Errorf("load game: %w", err)
	}

	members := make(map[uuid.UUID]bool, len(fixture.Ranks))
	for _, r := range fixture.Ranks {
		members[r.PlayerID] = true
	}
	maxRank := game.MaxRank(len(fixture.Ranks))
	for _, a := range assignments {
		if !members[a.PlayerID] {
			return fmt.Errorf("player %s: %w", a.PlayerID, ErrPlayerNotInFixture)
		}
		if a.Rank < 0 || a.Rank > maxRank {
			return fmt.Errorf("rank %d (max %d): %w", a.Rank, maxRank, ErrRankExceedsMax)
		}
	}
	return s.fixtures.UpdateRanks(ctx, fixtureID, assignments)
}

// Finish ends an open fixture and settles it synchronously. It is idempotent:
// finishing an already-ended fixture returns it unchanged. If settlement
// fails nothing is persisted, the fixture stays open, and the caller may fix
// the ranks and retry.
func (s *Service) Finish(ctx context.Context, fixtureID uuid.UUID) (*models.Fixture, error) {
	unlock := s.lock(fixtureID)
	defer unlock()

	fixture, err := s.fixtures.Get(ctx, fixtureID)
	if err != nil {
		return nil, fmt.Errorf("load fixture: %w", err)
	}
	if fixture.Ended.Valid {
		log.Printf("[FIXTURE] Finish on ended fixture %s is a no-op", fixture.ID)
		return fixture, nil
	}
	for _, r := range fixture.Ranks {
		if r.Rank == 0 {
			return nil, fmt.Errorf("player %s: %w", r.PlayerID, rating.ErrUnrankedPlayers)
		}
	}

	ended := time.Now().UTC()
	scores, names, err := s.settle(ctx, fixture, ended)
	if err != nil {
		return nil, err
	}
	s.broadcast(ctx, scores, names)

	return s.fixtures.Get(ctx, fixtureID)
}

// Reapply clears a settled fixture's deltas (reverting the score writes) and
// settles it again against the players' current scores. Administrative and
// explicit only; it exists to correct rating-formula bugs retroactively.
func (s *Service) Reapply(ctx context.Context, fixtureID uuid.UUID) (*models.Fixture, error) {
	unlock := s.lock(fixtureID)
	defer unlock()

	fixture, err := s.fixtures.Get(ctx, fixtureID)
	if err != nil {
		return nil, fmt.Errorf("load fixture: %w", err)
	}
	if !fixture.Applied || !fixture.Ended.Valid {
		return nil, ErrFixtureNotSettled
	}
	if err := s.fixtures.ClearSettlement(ctx, fixtureID); err != nil {
		return nil, fmt.Errorf("clear settlement: %w", err)
	}
	log.Printf("[SETTLE] Reapplying fixture %s", fixtureID)

	fixture, err = s.fixtures.Get(ctx, fixtureID)
	if err != nil {
		return nil, fmt.Errorf("reload fixture: %w", err)
	}
	scores, names, err := s.settle(ctx, fixture, fixture.Ended.Time)
	if err != nil {
		return nil, err
	}
	s.broadcast(ctx, scores, names)

	return s.fixtures.Get(ctx, fixtureID)
}

// settle builds the result graph, aggregates net deltas and applies them in
// one transaction. Returns the resulting score and username per player.
func (s *Service) settle(ctx context.Context, fixture *models.Fixture, ended time.Time) (map[uuid.UUID]int, map[uuid.UUID]string, error) {
	if fixture.Applied {
		// Settlement already happened; never recompute here.
		return nil, nil, nil
	}

	game, err := s.games.Get(ctx, fixture.GameID)
	if err != nil {
		return nil, nil, fmt.Errorf("load game: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(fixture.Ranks))
	for _, r := range fixture.Ranks {
		ids = append(ids, r.PlayerID)
	}
	players, err := s.players.ListByIDs(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("load players: %w", err)
	}
	byID := make(map[uuid.UUID]models.Player, len(players))
	for _, p := range players {
		byID[p.ID] = p
	}

	entrants := make([]rating.Entrant, 0, len(fixture.Ranks))
	for _, r := range fixture.Ranks {
		p, ok := byID[r.PlayerID]
		if !ok {
			return nil, nil, fmt.Errorf("rank references unknown player %s: %w", r.PlayerID, ErrNotFound)
		}
		entrants = append(entrants, rating.Entrant{
			PlayerID: r.PlayerID,
			Rank:     r.Rank,
			Team:     r.Team,
			Score:    p.Score,
		})
	}

	graph, err := rating.Build(game, entrants)
	if err != nil {
		return nil, nil, err
	}
	if sum := graph.Sum(); sum != 0 {
		return nil, nil, rating.Invariantf("fixture %s: net deltas sum to %d, want 0", fixture.ID, sum)
	}
	net := graph.Net()
	for id, delta := range net {
		if byID[id].Score+delta < 0 {
			return nil, nil, rating.Invariantf("fixture %s: player %s would drop to %d", fixture.ID, id, byID[id].Score+delta)
		}
	}

	graphJSON, err := graph.Encode()
	if err != nil {
		return nil, nil, fmt.Errorf("encode graph: %w", err)
	}
	scores, err := s.fixtures.ApplySettlement(ctx, fixture.ID, ended, net, graphJSON)
	if err != nil {
		return nil, nil, fmt.Errorf("apply settlement: %w", err)
	}
	log.Printf("[SETTLE] Fixture %s settled: %d edges, %d players touched", fixture.ID, len(graph.Edges), len(net))

	names := make(map[uuid.UUID]string, len(scores))
	for id := range scores {
		names[id] = byID[id].Username
	}
	return scores, names, nil
}

// broadcast pushes new scores to the publisher. Failures are logged and never
// propagate; score pushes must not block or roll back settlement.
func (s *Service) broadcast(ctx context.Context, scores map[uuid.UUID]int, names map[uuid.UUID]string) {
	if s.publisher == nil {
		return
	}
	for id, score := range scores {
		if err := s.publisher.PublishScore(ctx, id, names[id], score); err != nil {
			log.Printf("[SETTLE] Failed to broadcast score for %s: %v", names[id], err)
		}
	}
}
