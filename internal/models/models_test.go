package models

import (
	"database/sql"
	"testing"
)

func TestImportanceCapsDuration(t *testing.T) {
	cases := []struct{ duration, want int }{
		{1, 11},
		{30, 40},
		{45, 55},
		{46, 55},
		{120, 55},
	}
	for _, tc := range cases {
		g := &Game{EstimatedDuration: tc.duration}
		if got := g.Importance(); got != tc.want {
			t.Errorf("Importance(duration=%d) = %d, want %d", tc.duration, got, tc.want)
		}
	}
}

func TestCanPlay(t *testing.T) {
	bounded := &Game{MinimumPlayers: 2, MaximumPlayers: sql.NullInt64{Int64: 4, Valid: true}}
	if bounded.CanPlay(1) || !bounded.CanPlay(2) || !bounded.CanPlay(4) || bounded.CanPlay(5) {
		t.Error("bounded game admits the wrong player counts")
	}
	open := &Game{MinimumPlayers: 3}
	if open.CanPlay(2) || !open.CanPlay(3) || !open.CanPlay(40) {
		t.Error("unbounded game admits the wrong player counts")
	}
}

func TestMaxRank(t *testing.T) {
	ranked := &Game{Ranked: true}
	if got := ranked.MaxRank(6); got != 6 {
		t.Errorf("ranked MaxRank(6) = %d, want 6", got)
	}
	winLose := &Game{Ranked: false}
	if got := winLose.MaxRank(6); got != 2 {
		t.Errorf("win/lose MaxRank(6) = %d, want 2", got)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Game {
		return &Game{
			Name:              "Chess",
			MinimumPlayers:    2,
			MaximumPlayers:    sql.NullInt64{Int64: 2, Valid: true},
			EstimatedDuration: 30,
			Decay:             0.6,
			Randomness:        0,
		}
	}
	if err := valid().Validate(); err != nil {
		t.Errorf("valid game rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Game)
	}{
		{"blank name", func(g *Game) { g.Name = "  " }},
		{"minimum too low", func(g *Game) { g.MinimumPlayers = 1 }},
		{"minimum too high", func(g *Game) { g.MinimumPlayers = 51 }},
		{"maximum below minimum", func(g *Game) {
			g.MinimumPlayers = 4
			g.MaximumPlayers = sql.NullInt64{Int64: 3, Valid: true}
		}},
		{"duration zero", func(g *Game) { g.EstimatedDuration = 0 }},
		{"duration too long", func(g *Game) { g.EstimatedDuration = 121 }},
		{"decay out of range", func(g *Game) { g.Decay = 1.5 }},
		{"randomness negative", func(g *Game) { g.Randomness = -0.1 }},
	}
	for _, tc := range cases {
		g := valid()
		tc.mutate(g)
		if err := g.Validate(); err == nil {
			t.Errorf("%s: Validate accepted an invalid game", tc.name)
		}
	}
}

func TestSlugify(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Chess", "chess"},
		{"Mario Kart", "mario-kart"},
		{"  Ticket to Ride!  ", "ticket-to-ride"},
		{"7 Wonders", "7-wonders"},
		{"C++: The Game", "c-the-game"},
	}
	for _, tc := range cases {
		if got := Slugify(tc.in); got != tc.want {
			t.Errorf("Slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFixtureOpen(t *testing.T) {
	f := &Fixture{}
	if !f.Open() {
		t.Error("fixture without ended should be open")
	}
	f.Ended = sql.NullTime{Valid: true}
	if f.Open() {
		t.Error("ended fixture should not be open")
	}
}
