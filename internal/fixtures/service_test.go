package fixtures

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/thoward27/friend-olympics/internal/models"
	"github.com/thoward27/friend-olympics/internal/rating"
)

// In-memory store fakes implementing the service interfaces with the same
// semantics as the postgres store.

type memStore struct {
	mu       sync.Mutex
	players  map[uuid.UUID]*models.Player
	games    map[uuid.UUID]*models.Game
	fixtures map[uuid.UUID]*models.Fixture
}

func newMemStore() *memStore {
	return &memStore{
		players:  make(map[uuid.UUID]*models.Player),
		games:    make(map[uuid.UUID]*models.Game),
		fixtures: make(map[uuid.UUID]*models.Fixture),
	}
}

func (m *memStore) Get(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[id]
	if !ok {
		return nil, fmt.Errorf("player %s: %w", id, ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Player
	for _, id := range ids {
		if p, ok := m.players[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

type memCatalog struct{ store *memStore }

func (c *memCatalog) Get(ctx context.Context, id uuid.UUID) (*models.Game, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	g, ok := c.store.games[id]
	if !ok {
		return nil, fmt.Errorf("game %s: %w", id, ErrNotFound)
	}
	cp := *g
	return &cp, nil
}

type memFixtures struct{ store *memStore }

func (f *memFixtures) Get(ctx context.Context, id uuid.UUID) (*models.Fixture, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	fx, ok := f.store.fixtures[id]
	if !ok {
		return nil, fmt.Errorf("fixture %s: %w", id, ErrNotFound)
	}
	cp := *fx
	cp.Ranks = append([]models.Rank(nil), fx.Ranks...)
	return &cp, nil
}

func (f *memFixtures) Create(ctx context.Context, fixture *models.Fixture, playerIDs []uuid.UUID) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	cp := *fixture
	for _, id := range playerIDs {
		cp.Ranks = append(cp.Ranks, models.Rank{FixtureID: fixture.ID, PlayerID: id})
	}
	f.store.fixtures[fixture.ID] = &cp
	return nil
}

func (f *memFixtures) AnyOpenWithPlayers(ctx context.Context, playerIDs []uuid.UUID) (bool, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	wanted := make(map[uuid.UUID]bool, len(playerIDs))
	for _, id := range playerIDs {
		wanted[id] = true
	}
	for _, fx := range f.store.fixtures {
		if fx.Ended.Valid {
			continue
		}
		for _, r := range fx.Ranks {
			if wanted[r.PlayerID] {
				return true, nil
			}
		}
	}
	return false, nil
}

func (f *memFixtures) UpdateRanks(ctx context.Context, fixtureID uuid.UUID, assignments []RankAssignment) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	fx, ok := f.store.fixtures[fixtureID]
	if !ok {
		return fmt.Errorf("fixture %s: %w", fixtureID, ErrNotFound)
	}
	for _, a := range assignments {
		found := false
		for i := range fx.Ranks {
			if fx.Ranks[i].PlayerID == a.PlayerID {
				fx.Ranks[i].Rank = a.Rank
				fx.Ranks[i].Team = a.Team
				found = true
			}
		}
		if !found {
			return fmt.Errorf("player %s: %w", a.PlayerID, ErrPlayerNotInFixture)
		}
	}
	return nil
}

func (f *memFixtures) ApplySettlement(ctx context.Context, fixtureID uuid.UUID, ended time.Time, deltas map[uuid.UUID]int, graphJSON []byte) (map[uuid.UUID]int, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	fx, ok := f.store.fixtures[fixtureID]
	if !ok {
		return nil, fmt.Errorf("fixture %s: %w", fixtureID, ErrNotFound)
	}
	if fx.Applied {
		return map[uuid.UUID]int{}, nil
	}
	newScores := make(map[uuid.UUID]int, len(deltas))
	for id, delta := range deltas {
		p, ok := f.store.players[id]
		if !ok {
			return nil, fmt.Errorf("player %s: %w", id, ErrNotFound)
		}
		if p.Score+delta < 0 {
			return nil, rating.Invariantf("player %s score would drop to %d", id, p.Score+delta)
		}
		newScores[id] = p.Score + delta
	}
	for id, score := range newScores {
		f.store.players[id].Score = score
	}
	for i := range fx.Ranks {
		fx.Ranks[i].Delta = deltas[fx.Ranks[i].PlayerID]
	}
	fx.Ended = sql.NullTime{Time: ended, Valid: true}
	fx.Applied = true
	fx.Graph = graphJSON
	return newScores, nil
}

func (f *memFixtures) ClearSettlement(ctx context.Context, fixtureID uuid.UUID) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	fx, ok := f.store.fixtures[fixtureID]
	if !ok {
		return fmt.Errorf("fixture %s: %w", fixtureID, ErrNotFound)
	}
	if !fx.Applied {
		return ErrFixtureNotSettled
	}
	for i := range fx.Ranks {
		if fx.Ranks[i].Delta != 0 {
			f.store.players[fx.Ranks[i].PlayerID].Score -= fx.Ranks[i].Delta
			fx.Ranks[i].Delta = 0
		}
	}
	fx.Applied = false
	fx.Graph = nil
	return nil
}

type capturedEvent struct {
	playerID uuid.UUID
	username string
	score    int
}

type fakePublisher struct {
	mu     sync.Mutex
	events []capturedEvent
	fail   bool
}

func (p *fakePublisher) PublishScore(ctx context.Context, playerID uuid.UUID, username string, score int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broadcast sink is down")
	}
	p.events = append(p.events, capturedEvent{playerID, username, score})
	return nil
}

// Test fixture builder: a service over fresh fakes, one game, n players at
// the default score.
func newTestService(t *testing.T, game *models.Game, n int) (*Service, *memStore, *fakePublisher, []uuid.UUID) {
	t.Helper()
	store := newMemStore()
	game.ID = uuid.New()
	store.games[game.ID] = game
	ids := make([]uuid.UUID, n)
	for i := range ids {
		id := uuid.New()
		ids[i] = id
		store.players[id] = &models.Player{
			ID:       id,
			Username: fmt.Sprintf("player%d", i+1),
			Score:    models.DefaultScore,
		}
	}
	pub := &fakePublisher{}
	svc := NewService(store, &memCatalog{store}, &memFixtures{store}, pub)
	return svc, store, pub, ids
}

func rankedGame(duration int) *models.Game {
	return &models.Game{
		Name:              "ranked test game",
		Ranked:            true,
		MinimumPlayers:    2,
		EstimatedDuration: duration,
		Decay:             0.6,
	}
}

func winLoseGame() *models.Game {
	return &models.Game{
		Name:              "win-lose test game",
		MinimumPlayers:    2,
		EstimatedDuration: 1,
		Decay:             0.6,
	}
}

func assignRanks(t *testing.T, svc *Service, fixtureID uuid.UUID, ids []uuid.UUID, ranks []int) {
	t.Helper()
	assignments := make([]RankAssignment, len(ids))
	for i := range ids {
		assignments[i] = RankAssignment{PlayerID: ids[i], Rank: ranks[i]}
	}
	if err := svc.UpdateRanks(context.Background(), fixtureID, assignments); err != nil {
		t.Fatalf("UpdateRanks failed: %v", err)
	}
}

func TestCreateRejectsBadPlayerCount(t *testing.T) {
	game := rankedGame(10)
	game.MinimumPlayers = 3
	game.MaximumPlayers = sql.NullInt64{Int64: 4, Valid: true}
	svc, _, _, ids := newTestService(t, game, 6)

	ctx := context.Background()
	if _, err := svc.Create(ctx, game.ID, ids[:2]); !errors.Is(err, ErrInvalidPlayerCount) {
		t.Errorf("Create with 2 players returned %v, want ErrInvalidPlayerCount", err)
	}
	if _, err := svc.Create(ctx, game.ID, ids[:5]); !errors.Is(err, ErrInvalidPlayerCount) {
		t.Errorf("Create with 5 players returned %v, want ErrInvalidPlayerCount", err)
	}
	if _, err := svc.Create(ctx, game.ID, ids[:3]); err != nil {
		t.Errorf("Create with 3 players failed: %v", err)
	}
}

func TestCreateRejectsDuplicatePlayers(t *testing.T) {
	game := rankedGame(10)
	svc, _, _, ids := newTestService(t, game, 2)
	_, err := svc.Create(context.Background(), game.ID, []uuid.UUID{ids[0], ids[0]})
	if !errors.Is(err, ErrInvalidPlayerCount) {
		t.Errorf("Create with duplicate player returned %v, want ErrInvalidPlayerCount", err)
	}
}

func TestCreateRejectsPlayerAlreadyPlaying(t *testing.T) {
	game := rankedGame(10)
	svc, _, _, ids := newTestService(t, game, 4)

	ctx := context.Background()
	if _, err := svc.Create(ctx, game.ID, ids[:2]); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}
	// ids[1] is still in the open fixture.
	if _, err := svc.Create(ctx, game.ID, ids[1:3]); !errors.Is(err, ErrPlayerAlreadyPlaying) {
		t.Errorf("Create returned %v, want ErrPlayerAlreadyPlaying", err)
	}
	// Two free players are fine.
	if _, err := svc.Create(ctx, game.ID, ids[2:4]); err != nil {
		t.Errorf("Create with free players failed: %v", err)
	}
}

func TestCreateUnknownGame(t *testing.T) {
	svc, _, _, ids := newTestService(t, rankedGame(10), 2)
	if _, err := svc.Create(context.Background(), uuid.New(), ids); !errors.Is(err, ErrNotFound) {
		t.Errorf("Create with unknown game returned %v, want ErrNotFound", err)
	}
}

func TestUpdateRanksValidation(t *testing.T) {
	game := rankedGame(10)
	svc, _, _, ids := newTestService(t, game, 3)
	ctx := context.Background()
	fixture, err := svc.Create(ctx, game.ID, ids)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// A player outside the fixture.
	err = svc.UpdateRanks(ctx, fixture.ID, []RankAssignment{{PlayerID: uuid.New(), Rank: 1}})
	if !errors.Is(err, ErrPlayerNotInFixture) {
		t.Errorf("UpdateRanks returned %v, want ErrPlayerNotInFixture", err)
	}

	// Rank above the participant count of a ranked game.
	err = svc.UpdateRanks(ctx, fixture.ID, []RankAssignment{{PlayerID: ids[0], Rank: 4}})
	if !errors.Is(err, ErrRankExceedsMax) {
		t.Errorf("UpdateRanks returned %v, want ErrRankExceedsMax", err)
	}
}

func TestUpdateRanksWinLoseBound(t *testing.T) {
	// Win/lose games cap ranks at 2 no matter how many players join.
	game := winLoseGame()
	svc, _, _, ids := newTestService(t, game, 4)
	ctx := context.Background()
	fixture, err := svc.Create(ctx, game.ID, ids)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	err = svc.UpdateRanks(ctx, fixture.ID, []RankAssignment{{PlayerID: ids[0], Rank: 3}})
	if !errors.Is(err, ErrRankExceedsMax) {
		t.Errorf("UpdateRanks returned %v, want ErrRankExceedsMax", err)
	}
	if err := svc.UpdateRanks(ctx, fixture.ID, []RankAssignment{{PlayerID: ids[0], Rank: 2}}); err != nil {
		t.Errorf("UpdateRanks with rank 2 failed: %v", err)
	}
}

func TestFinishFiveRankedPlayers(t *testing.T) {
	// The canonical scenario: five players, distinct ranks, default scores,
	// importance 11. First place must end above 1000, last place below, and
	// the total score in play stays exactly 5000.
	game := rankedGame(1)
	svc, store, _, ids := newTestService(t, game, 5)
	ctx := context.Background()
	fixture, err := svc.Create(ctx, game.ID, ids)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	assignRanks(t, svc, fixture.ID, ids, []int{1, 2, 3, 4, 5})

	settled, err := svc.Finish(ctx, fixture.ID)
	if err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if !settled.Applied || !settled.Ended.Valid {
		t.Fatalf("fixture not settled: applied=%v ended=%v", settled.Applied, settled.Ended.Valid)
	}
	if len(settled.Graph) == 0 {
		t.Error("settled fixture has no persisted graph")
	}

	total := 0
	for _, id := range ids {
		total += store.players[id].Score
	}
	if total != 5*models.DefaultScore {
		t.Errorf("total score is %d, want %d", total, 5*models.DefaultScore)
	}
	if store.players[ids[0]].Score <= models.DefaultScore {
		t.Errorf("first place has %d, want > %d", store.players[ids[0]].Score, models.DefaultScore)
	}
	if store.players[ids[4]].Score >= models.DefaultScore {
		t.Errorf("last place has %d, want < %d", store.players[ids[4]].Score, models.DefaultScore)
	}

	deltaSum := 0
	for _, r := range settled.Ranks {
		deltaSum += r.Delta
	}
	if deltaSum != 0 {
		t.Errorf("persisted rank deltas sum to %d, want 0", deltaSum)
	}
}

func TestFinishIsIdempotent(t *testing.T) {
	game := rankedGame(1)
	svc, store, pub, ids := newTestService(t, game, 2)
	ctx := context.Background()
	fixture, err := svc.Create(ctx, game.ID, ids)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	assignRanks(t, svc, fixture.ID, ids, []int{1, 2})

	first, err := svc.Finish(ctx, fixture.ID)
	if err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	scoresAfter := map[uuid.UUID]int{ids[0]: store.players[ids[0]].Score, ids[1]: store.players[ids[1]].Score}
	eventsAfter := len(pub.events)

	second, err := svc.Finish(ctx, fixture.ID)
	if err != nil {
		t.Fatalf("second Finish failed: %v", err)
	}
	if !second.Ended.Time.Equal(first.Ended.Time) {
		t.Errorf("second Finish changed ended: %v vs %v", second.Ended.Time, first.Ended.Time)
	}
	for id, want := range scoresAfter {
		if got := store.players[id].Score; got != want {
			t.Errorf("second Finish changed player %s score: %d vs %d", id, got, want)
		}
	}
	if len(pub.events) != eventsAfter {
		t.Errorf("second Finish published %d extra events", len(pub.events)-eventsAfter)
	}
}

func TestFinishRejectsUnranked(t *testing.T) {
	game := rankedGame(1)
	svc, store, _, ids := newTestService(t, game, 3)
	ctx := context.Background()
	fixture, err := svc.Create(ctx, game.ID, ids)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	// Only two of three players ranked.
	assignRanks(t, svc, fixture.ID, ids[:2], []int{1, 2})

	_, err = svc.Finish(ctx, fixture.ID)
	if !errors.Is(err, rating.ErrUnrankedPlayers) {
		t.Fatalf("Finish returned %v, want ErrUnrankedPlayers", err)
	}
	fx := store.fixtures[fixture.ID]
	if fx.Applied || fx.Ended.Valid {
		t.Errorf("failed finish mutated the fixture: applied=%v ended=%v", fx.Applied, fx.Ended.Valid)
	}
	for _, id := range ids {
		if store.players[id].Score != models.DefaultScore {
			t.Errorf("failed finish mutated player %s score to %d", id, store.players[id].Score)
		}
	}
}

func TestFinishWinLose(t *testing.T) {
	// One winner and three losers at equal scores: the losers pay the same
	// amount each and the winner collects all of it.
	game := winLoseGame()
	svc, store, _, ids := newTestService(t, game, 4)
	ctx := context.Background()
	fixture, err := svc.Create(ctx, game.ID, ids)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	assignRanks(t, svc, fixture.ID, ids, []int{1, 2, 2, 2})

	if _, err := svc.Finish(ctx, fixture.ID); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	loss := models.DefaultScore - store.players[ids[1]].Score
	if loss <= 0 {
		t.Fatalf("loser gained %d points", -loss)
	}
	for _, id := range ids[1:] {
		if got := models.DefaultScore - store.players[id].Score; got != loss {
			t.Errorf("loser %s lost %d, another lost %d", id, got, loss)
		}
	}
	if gain := store.players[ids[0]].Score - models.DefaultScore; gain != 3*loss {
		t.Errorf("winner gained %d, want %d", gain, 3*loss)
	}
}

func TestFinishPublishesScores(t *testing.T) {
	game := rankedGame(1)
	svc, store, pub, ids := newTestService(t, game, 2)
	ctx := context.Background()
	fixture, err := svc.Create(ctx, game.ID, ids)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	assignRanks(t, svc, fixture.ID, ids, []int{1, 2})

	if _, err := svc.Finish(ctx, fixture.ID); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if len(pub.events) != 2 {
		t.Fatalf("published %d events, want 2", len(pub.events))
	}
	for _, e := range pub.events {
		if e.score != store.players[e.playerID].Score {
			t.Errorf("event for %s carries score %d, player has %d", e.username, e.score, store.players[e.playerID].Score)
		}
		if e.username == "" {
			t.Error("event missing username")
		}
	}
}

func TestFinishSurvivesPublisherFailure(t *testing.T) {
	game := rankedGame(1)
	svc, store, pub, ids := newTestService(t, game, 2)
	pub.fail = true
	ctx := context.Background()
	fixture, err := svc.Create(ctx, game.ID, ids)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	assignRanks(t, svc, fixture.ID, ids, []int{1, 2})

	settled, err := svc.Finish(ctx, fixture.ID)
	if err != nil {
		t.Fatalf("Finish failed because of the publisher: %v", err)
	}
	if !settled.Applied {
		t.Error("fixture not applied despite successful settlement")
	}
	if store.players[ids[0]].Score <= models.DefaultScore {
		t.Error("scores not applied despite successful settlement")
	}
}

func TestReapplyRecomputes(t *testing.T) {
	game := rankedGame(1)
	svc, store, _, ids := newTestService(t, game, 3)
	ctx := context.Background()
	fixture, err := svc.Create(ctx, game.ID, ids)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	assignRanks(t, svc, fixture.ID, ids, []int{1, 2, 3})

	settled, err := svc.Finish(ctx, fixture.ID)
	if err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	want := map[uuid.UUID]int{}
	for _, id := range ids {
		want[id] = store.players[id].Score
	}

	// Same inputs, so reapplying must land on the same scores and keep the
	// original ended timestamp.
	reapplied, err := svc.Reapply(ctx, fixture.ID)
	if err != nil {
		t.Fatalf("Reapply failed: %v", err)
	}
	if !reapplied.Applied {
		t.Error("fixture not applied after reapply")
	}
	if !reapplied.Ended.Time.Equal(settled.Ended.Time) {
		t.Errorf("reapply changed ended: %v vs %v", reapplied.Ended.Time, settled.Ended.Time)
	}
	for id, score := range want {
		if got := store.players[id].Score; got != score {
			t.Errorf("reapply moved player %s from %d to %d", id, score, got)
		}
	}
}

func TestReapplyRequiresSettledFixture(t *testing.T) {
	game := rankedGame(1)
	svc, _, _, ids := newTestService(t, game, 2)
	ctx := context.Background()
	fixture, err := svc.Create(ctx, game.ID, ids)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.Reapply(ctx, fixture.ID); !errors.Is(err, ErrFixtureNotSettled) {
		t.Errorf("Reapply on open fixture returned %v, want ErrFixtureNotSettled", err)
	}
}
