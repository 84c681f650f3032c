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

const gameColumns = `id, name, slug, ranked, minimum_players, maximum_players, estimated_duration, decay, randomness, objective, setup, gameplay, created_at`

// Games is the postgres-backed game catalog.
type Games struct {
	db *sqlx.DB
}

func NewGames(db *sqlx.DB) *Games {
	return &Games{db: db}
}

func (s *Games) Get(ctx context.Context, id uuid.UUID) (*models.Game, error) {
	var g models.Game
	err := s.db.GetContext(ctx, &g, `SELECT `+gameColumns+` FROM games WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("game %s: %w", id, fixtures.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *Games) GetBySlug(ctx context.Context, slug string) (*models.Game, error) {
	var g models.Game
	err := s.db.GetContext(ctx, &g, `SELECT `+gameColumns+` FROM games WHERE slug=$1`, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("game %q: %w", slug, fixtures.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *Games) List(ctx context.Context) ([]models.Game, error) {
	var games []models.Game
	if err := s.db.SelectContext(ctx, &games, `SELECT `+gameColumns+` FROM games ORDER BY name ASC`); err != nil {
		return nil, err
	}
	return games, nil
}

func (s *Games) Create(ctx context.Context, g *models.Game) error {
	if g.Slug == "" {
		g.Slug = models.Slugify(g.Name)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO games (id, name, slug, ranked, minimum_players, maximum_players, estimated_duration, decay, randomness, objective, setup, gameplay, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())`,
		g.ID, g.Name, g.Slug, g.Ranked, g.MinimumPlayers, g.MaximumPlayers, g.EstimatedDuration,
		g.Decay, g.Randomness, g.Objective, g.Setup, g.Gameplay)
	return err
}
