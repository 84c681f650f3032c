package rating

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/thoward27/friend-olympics/internal/models"
)

// Validation errors for graph construction. These are caller errors: fix the
// fixture's ranks and retry.
var (
	ErrTooFewPlayers   = errors.New("at least two ranked players are required")
	ErrUnrankedPlayers = errors.New("fixture has unranked players")
)

// InvariantError marks a bug in the rating engine or corrupted data, as
// opposed to bad caller input. Settlement aborts and must leave no state
// behind when one surfaces.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string {
	return "rating invariant violated: " + e.Msg
}

// Invariantf builds an InvariantError from a format string.
func Invariantf(format string, args ...any) error {
	return &InvariantError{Msg: fmt.Sprintf(format, args...)}
}

// Entrant is one participant in a finished fixture, flattened to exactly what
// the graph builder needs.
type Entrant struct {
	PlayerID uuid.UUID
	Rank     int
	Team     string
	Score    int
}

// Edge is a directed transfer: Source pays Target Delta points.
type Edge struct {
	Source uuid.UUID `json:"source"`
	Target uuid.UUID `json:"target"`
	Delta  int       `json:"delta"`
}

// Graph is the result graph of a fixture: an owned adjacency structure of
// pairwise point transfers. Edge weights are always positive.
type Graph struct {
	Edges []Edge `json:"edges"`
}

// Build constructs the result graph for a finished fixture.
//
// Targets are visited in increasing rank order (ties broken by ascending
// score, for determinism). For each target, every other entrant that placed
// worse-or-equal pays it one edge, except sources that tied with the target
// at a lower-or-equal score (the reverse edge covers that pair) and sources
// sharing a non-empty team with the target.
func Build(game *models.Game, entrants []Entrant) (*Graph, error) {
	if len(entrants) < 2 {
		return nil, ErrTooFewPlayers
	}
	for _, e := range entrants {
		if e.Rank == 0 {
			return nil, fmt.Errorf("player %s: %w", e.PlayerID, ErrUnrankedPlayers)
		}
	}

	ordered := make([]Entrant, len(entrants))
	copy(ordered, entrants)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Rank != ordered[j].Rank {
			return ordered[i].Rank < ordered[j].Rank
		}
		return ordered[i].Score < ordered[j].Score
	})

	graph := &Graph{}
	for _, target := range ordered {
		for _, source := range ordered {
			if source.PlayerID == target.PlayerID {
				continue
			}
			if source.Rank < target.Rank {
				continue
			}
			if source.Rank == target.Rank && source.Score <= target.Score {
				// The pair is handled when the roles are reversed.
				continue
			}
			if source.Team != "" && source.Team == target.Team {
				continue
			}
			delta := Delta(game, source.Rank, source.Score, target.Rank, target.Score)
			if delta == 0 {
				continue
			}
			if delta < 0 {
				// The admission rules guarantee the target never did worse
				// than the source, so a negative delta is a bug, not input.
				return nil, Invariantf("negative edge %s -> %s: %d", source.PlayerID, target.PlayerID, delta)
			}
			graph.Edges = append(graph.Edges, Edge{Source: source.PlayerID, Target: target.PlayerID, Delta: delta})
		}
	}
	return graph, nil
}

// Net aggregates the graph into per-player net deltas. Every edge credits its
// target and debits its source, so the sum over all players is zero by
// construction; Sum exists to assert it anyway.
func (g *Graph) Net() map[uuid.UUID]int {
	net := make(map[uuid.UUID]int)
	for _, e := range g.Edges {
		net[e.Target] += e.Delta
		net[e.Source] -= e.Delta
	}
	return net
}

// Sum returns the total of all net deltas. Anything but zero is an
// InvariantError waiting to be raised.
func (g *Graph) Sum() int {
	total := 0
	for _, delta := range g.Net() {
		total += delta
	}
	return total
}

// Encode serializes the graph for persistence on the fixture row.
func (g *Graph) Encode() ([]byte, error) {
	return json.Marshal(g)
}

// DecodeGraph parses a graph previously stored with Encode.
func DecodeGraph(data []byte) (*Graph, error) {
	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("decode result graph: %w", err)
	}
	return &g, nil
}
