package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/thoward27/friend-olympics/internal/fixtures"
	"github.com/thoward27/friend-olympics/internal/models"
	"github.com/thoward27/friend-olympics/internal/rating"
)

// Fixtures is the postgres-backed fixture store. Settlement writes happen in
// a single transaction with row locks on the players involved.
type Fixtures struct {
	db *sqlx.DB
}

func NewFixtures(db *sqlx.DB) *Fixtures {
	return &Fixtures{db: db}
}

func (s *Fixtures) Get(ctx context.Context, id uuid.UUID) (*models.Fixture, error) {
	var f models.Fixture
	err := s.db.GetContext(ctx, &f, `SELECT id, game_id, started, ended, applied, graph FROM fixtures WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("fixture %s: %w", id, fixtures.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := s.db.SelectContext(ctx, &f.Ranks, `
		SELECT r.fixture_id, r.player_id, r.rank, r.team, r.delta, p.username
		FROM ranks r JOIN players p ON p.id = r.player_id
		WHERE r.fixture_id=$1
		ORDER BY r.rank ASC, p.username ASC`, id); err != nil {
		return nil, err
	}
	return &f, nil
}

// List returns fixtures filtered by lifecycle state: open (ended null) or
// settled (applied true), newest first, ranks included.
func (s *Fixtures) List(ctx context.Context, open bool) ([]models.Fixture, error) {
	query := `SELECT id, game_id, started, ended, applied, graph FROM fixtures WHERE ended IS NULL ORDER BY started DESC`
	if !open {
		query = `SELECT id, game_id, started, ended, applied, graph FROM fixtures WHERE applied ORDER BY ended DESC`
	}
	var fs []models.Fixture
	if err := s.db.SelectContext(ctx, &fs, query); err != nil {
		return nil, err
	}
	if len(fs) == 0 {
		return fs, nil
	}

	ids := make([]uuid.UUID, len(fs))
	for i := range fs {
		ids[i] = fs[i].ID
	}
	in, args, err := sqlx.In(`
		SELECT r.fixture_id, r.player_id, r.rank, r.team, r.delta, p.username
		FROM ranks r JOIN players p ON p.id = r.player_id
		WHERE r.fixture_id IN (?)
		ORDER BY r.rank ASC, p.username ASC`, ids)
	if err != nil {
		return nil, err
	}
	var ranks []models.Rank
	if err := s.db.SelectContext(ctx, &ranks, s.db.Rebind(in), args...); err != nil {
		return nil, err
	}
	byFixture := make(map[uuid.UUID][]models.Rank, len(fs))
	for _, r := range ranks {
		byFixture[r.FixtureID] = append(byFixture[r.FixtureID], r)
	}
	for i := range fs {
		fs[i].Ranks = byFixture[fs[i].ID]
	}
	return fs, nil
}

// Create inserts the fixture and one unranked rank row per player.
func (s *Fixtures) Create(ctx context.Context, f *models.Fixture, playerIDs []uuid.UUID) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO fixtures (id, game_id, started, applied) VALUES ($1, $2, $3, FALSE)`,
		f.ID, f.GameID, f.Started); err != nil {
		return err
	}
	for _, playerID := range playerIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ranks (fixture_id, player_id, rank, team, delta) VALUES ($1, $2, 0, '', 0)`,
			f.ID, playerID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Fixtures) AnyOpenWithPlayers(ctx context.Context, playerIDs []uuid.UUID) (bool, error) {
	if len(playerIDs) == 0 {
		return false, nil
	}
	query, args, err := sqlx.In(`
		SELECT EXISTS (
			SELECT 1 FROM ranks r JOIN fixtures f ON f.id = r.fixture_id
			WHERE f.ended IS NULL AND r.player_id IN (?))`, playerIDs)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := s.db.GetContext(ctx, &exists, s.db.Rebind(query), args...); err != nil {
		return false, err
	}
	return exists, nil
}

func (s *Fixtures) UpdateRanks(ctx context.Context, fixtureID uuid.UUID, assignments []fixtures.RankAssignment) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, a := range assignments {
		res, err := tx.ExecContext(ctx, `
			UPDATE ranks SET rank=$1, team=$2 WHERE fixture_id=$3 AND player_id=$4`,
			a.Rank, a.Team, fixtureID, a.PlayerID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n != 1 {
			return fmt.Errorf("player %s: %w", a.PlayerID, fixtures.ErrPlayerNotInFixture)
		}
	}
	return tx.Commit()
}

// ApplySettlement commits a settlement atomically: player scores move by
// their net delta, per-rank deltas and the result graph are recorded, and the
// fixture is marked ended and applied. The fixture row is locked first so a
// concurrent settlement of the same fixture becomes a no-op rather than a
// double-apply. Returns the resulting score per player written.
func (s *Fixtures) ApplySettlement(ctx context.Context, fixtureID uuid.UUID, ended time.Time, deltas map[uuid.UUID]int, graphJSON []byte) (map[uuid.UUID]int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var applied bool
	if err := tx.GetContext(ctx, &applied, `SELECT applied FROM fixtures WHERE id=$1 FOR UPDATE`, fixtureID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("fixture %s: %w", fixtureID, fixtures.ErrNotFound)
		}
		return nil, err
	}
	if applied {
		log.Printf("[SETTLE] Fixture %s already applied, skipping", fixtureID)
		return map[uuid.UUID]int{}, nil
	}

	ids := make([]uuid.UUID, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}
	newScores := make(map[uuid.UUID]int, len(ids))
	if len(ids) > 0 {
		query, args, err := sqlx.In(`SELECT id, score FROM players WHERE id IN (?) ORDER BY id FOR UPDATE`, ids)
		if err != nil {
			return nil, err
		}
		var rows []struct {
			ID    uuid.UUID `db:"id"`
			Score int       `db:"score"`
		}
		if err := tx.SelectContext(ctx, &rows, tx.Rebind(query), args...); err != nil {
			return nil, err
		}
		if len(rows) != len(ids) {
			return nil, fmt.Errorf("settlement references missing players: %w", fixtures.ErrNotFound)
		}
		for _, row := range rows {
			next := row.Score + deltas[row.ID]
			if next < 0 {
				return nil, rating.Invariantf("player %s score would drop to %d", row.ID, next)
			}
			newScores[row.ID] = next
		}
		for id, score := range newScores {
			if deltas[id] == 0 {
				continue
			}
			if _, err := tx.ExecContext(ctx, `UPDATE players SET score=$1, updated_at=NOW() WHERE id=$2`, score, id); err != nil {
				return nil, err
			}
		}
		for id, delta := range deltas {
			if _, err := tx.ExecContext(ctx, `UPDATE ranks SET delta=$1 WHERE fixture_id=$2 AND player_id=$3`, delta, fixtureID, id); err != nil {
				return nil, err
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE fixtures SET ended=$1, applied=TRUE, graph=$2 WHERE id=$3`, ended, graphJSON, fixtureID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return newScores, nil
}

// ClearSettlement reverts a settled fixture: every player's score moves back
// by the recorded rank delta, deltas and the stored graph are cleared, and
// applied flips to false. Ended is kept so the fixture stays out of the open
// list. Used only for explicit reapplication.
func (s *Fixtures) ClearSettlement(ctx context.Context, fixtureID uuid.UUID) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var applied bool
	if err := tx.GetContext(ctx, &applied, `SELECT applied FROM fixtures WHERE id=$1 FOR UPDATE`, fixtureID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("fixture %s: %w", fixtureID, fixtures.ErrNotFound)
		}
		return err
	}
	if !applied {
		return fixtures.ErrFixtureNotSettled
	}

	var ranks []models.Rank
	if err := tx.SelectContext(ctx, &ranks, `
		SELECT fixture_id, player_id, rank, team, delta FROM ranks WHERE fixture_id=$1`, fixtureID); err != nil {
		return err
	}
	for _, r := range ranks {
		if r.Delta == 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, `UPDATE players SET score=score-$1, updated_at=NOW() WHERE id=$2`, r.Delta, r.PlayerID); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE ranks SET delta=0 WHERE fixture_id=$1`, fixtureID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE fixtures SET applied=FALSE, graph=NULL WHERE id=$1`, fixtureID); err != nil {
		return err
	}
	return tx.Commit()
}
