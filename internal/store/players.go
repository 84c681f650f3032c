package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/thoward27/friend-olympics/internal/fixtures"
	"github.com/thoward27/friend-olympics/internal/models"
)

const playerColumns = `id, username, display_name, password_hash, score, qr_token, is_admin, created_at, updated_at`

// Players is the postgres-backed player store.
type Players struct {
	db *sqlx.DB
}

func NewPlayers(db *sqlx.DB) *Players {
	return &Players{db: db}
}

func (s *Players) Get(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	var p models.Player
	err := s.db.GetContext(ctx, &p, `SELECT `+playerColumns+` FROM players WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("player %s: %w", id, fixtures.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Players) GetByUsername(ctx context.Context, username string) (*models.Player, error) {
	var p models.Player
	err := s.db.GetContext(ctx, &p, `SELECT `+playerColumns+` FROM players WHERE username=$1`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("player %q: %w", username, fixtures.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Players) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Player, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT `+playerColumns+` FROM players WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	var players []models.Player
	if err := s.db.SelectContext(ctx, &players, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return players, nil
}

// List returns the leaderboard: every player ordered by score, best first.
// With availableOnly set, players currently in an open fixture are excluded.
func (s *Players) List(ctx context.Context, availableOnly bool) ([]models.Player, error) {
	query := `SELECT ` + playerColumns + ` FROM players`
	if availableOnly {
		query += ` WHERE NOT EXISTS (
			SELECT 1 FROM ranks r JOIN fixtures f ON f.id = r.fixture_id
			WHERE r.player_id = players.id AND f.ended IS NULL)`
	}
	query += ` ORDER BY score DESC, username ASC`

	var players []models.Player
	if err := s.db.SelectContext(ctx, &players, query); err != nil {
		return nil, err
	}
	return players, nil
}

func (s *Players) Create(ctx context.Context, p *models.Player) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO players (id, username, display_name, password_hash, score, qr_token, is_admin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())`,
		p.ID, p.Username, p.DisplayName, p.PasswordHash, p.Score, p.QRToken, p.IsAdmin)
	return err
}

// Save updates the mutable profile fields. Scores are written here only for
// explicit admin corrections; settlement goes through the fixture store's
// transaction instead.
func (s *Players) Save(ctx context.Context, p *models.Player) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE players SET display_name=$1, password_hash=$2, score=$3, qr_token=$4, is_admin=$5, updated_at=NOW()
		WHERE id=$6`,
		p.DisplayName, p.PasswordHash, p.Score, p.QRToken, p.IsAdmin, p.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("player %s: %w", p.ID, fixtures.ErrNotFound)
	}
	return nil
}
