package rules

import (
	"errors"
	"strings"
	"testing"
)

func TestApplyOpening(t *testing.T) {
	e := New()
	a, err := e.Apply(StartFEN, Move{From: "e2", To: "e4"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if a.SAN != "e4" || a.UCI != "e2e4" || a.Mover != White {
		t.Fatalf("unexpected applied: %+v", a)
	}
	if !strings.HasPrefix(a.FEN, "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b") {
		t.Fatalf("unexpected fen: %s", a.FEN)
	}
	side, err := e.SideToMove(a.FEN)
	if err != nil || side != Black {
		t.Fatalf("SideToMove = %v, %v", side, err)
	}
}

func TestApplyIllegal(t *testing.T) {
	e := New()
	cases := []Move{
		{From: "e2", To: "e5"},
		{From: "e7", To: "e5"}, // wrong side
		{From: "z9", To: "e4"},
	}
	for _, mv := range cases {
		if _, err := e.Apply(StartFEN, mv); !errors.Is(err, ErrIllegalMove) {
			t.Fatalf("Apply(%+v) err = %v, want ErrIllegalMove", mv, err)
		}
	}
}

func TestApplyCaptureAndEnPassant(t *testing.T) {
	e := New()
	// 1.e4 d5 2.exd5
	a, err := e.Apply("rnbqkbnr/ppp1pppp/8/3p4/4P3/8/PPPP1PPP/RNBQKBNR w KQkq d6 0 2", Move{From: "e4", To: "d5"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if a.Captured != Pawn || a.SAN != "exd5" {
		t.Fatalf("unexpected capture result: %+v", a)
	}

	// white pawn on e5, black just played d7d5
	ep, err := e.ApplyUCI("rnbqkbnr/ppp1p1pp/8/3pPp2/8/8/PPPP1PPP/RNBQKBNR w KQkq d6 0 3", "e5d6")
	if err != nil {
		t.Fatalf("ApplyUCI en passant: %v", err)
	}
	if ep.Captured != Pawn {
		t.Fatalf("expected en passant pawn capture, got %+v", ep)
	}
}

func TestPromotionDefaultsToQueen(t *testing.T) {
	e := New()
	a, err := e.Apply("8/P6k/8/8/8/8/8/K7 w - - 0 1", Move{From: "a7", To: "a8"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if a.UCI != "a7a8q" || !strings.Contains(a.SAN, "=Q") {
		t.Fatalf("expected queen promotion, got %+v", a)
	}

	n, err := e.Apply("8/P6k/8/8/8/8/8/K7 w - - 0 1", Move{From: "a7", To: "a8", Promotion: "n"})
	if err != nil {
		t.Fatalf("Apply knight: %v", err)
	}
	if n.UCI != "a7a8n" {
		t.Fatalf("expected knight promotion, got %+v", n)
	}
}

func TestCheckmateAndStalemate(t *testing.T) {
	e := New()
	// fool's mate: 1.f3 e5 2.g4 Qh4#
	mate, err := e.ApplyUCI("rnbqkbnr/pppp1ppp/8/4p3/6P1/5P2/PPPPP2P/RNBQKBNR b KQkq g3 0 2", "d8h4")
	if err != nil {
		t.Fatalf("ApplyUCI: %v", err)
	}
	if !mate.Checkmate || !mate.Check || !mate.Terminal() {
		t.Fatalf("expected checkmate, got %+v", mate)
	}

	stale, err := e.ApplyUCI("7k/8/6Q1/8/8/8/8/K7 w - - 0 1", "g6f7")
	if err != nil {
		t.Fatalf("ApplyUCI: %v", err)
	}
	if !stale.Stalemate || stale.Checkmate || stale.Check {
		t.Fatalf("expected stalemate, got %+v", stale)
	}
}

func TestCheckDetected(t *testing.T) {
	e := New()
	a, err := e.ApplyUCI("4k3/8/8/8/8/8/8/R3K3 w - - 0 1", "a1a8")
	if err != nil {
		t.Fatalf("ApplyUCI: %v", err)
	}
	if !a.Check || a.Checkmate {
		t.Fatalf("expected plain check, got %+v", a)
	}
}

func TestInvalidPosition(t *testing.T) {
	if _, err := New().Apply("not a fen", Move{From: "e2", To: "e4"}); !errors.Is(err, ErrInvalidPosition) {
		t.Fatalf("err = %v, want ErrInvalidPosition", err)
	}
}

func TestPGNReplay(t *testing.T) {
	pgn, err := New().PGN(StartFEN, []string{"e2e4", "e7e5", "g1f3"})
	if err != nil {
		t.Fatalf("PGN: %v", err)
	}
	if !strings.Contains(pgn, "e4") || !strings.Contains(pgn, "e5") || !strings.Contains(pgn, "Nf3") {
		t.Fatalf("unexpected pgn: %q", pgn)
	}
	if _, err := New().PGN(StartFEN, []string{"e2e5"}); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected illegal replay error, got %v", err)
	}
}

func TestGrid(t *testing.T) {
	g, err := New().Grid(StartFEN)
	if err != nil {
		t.Fatalf("Grid: %v", err)
	}
	if g[0][4] != 'k' || g[7][4] != 'K' || g[6][0] != 'P' || g[3][3] != 0 {
		t.Fatalf("unexpected grid rows: %q %q", g[0][:], g[7][:])
	}
}

func TestParseMove(t *testing.T) {
	ok := map[string]Move{
		"e2e4":    {From: "e2", To: "e4"},
		"E2 E4":   {From: "e2", To: "e4"},
		"e2-e4":   {From: "e2", To: "e4"},
		"e7e8q":   {From: "e7", To: "e8", Promotion: "q"},
		"e7-e8=N": {From: "e7", To: "e8", Promotion: "n"},
	}
	for in, want := range ok {
		got, err := ParseMove(in)
		if err != nil || got != want {
			t.Fatalf("ParseMove(%q) = %+v, %v; want %+v", in, got, err, want)
		}
	}
	for _, in := range []string{"", "e2", "i2e4", "e2e9", "e7e8k", "e2e4e5"} {
		if _, err := ParseMove(in); !errors.Is(err, ErrIllegalMove) {
			t.Fatalf("ParseMove(%q) err = %v, want ErrIllegalMove", in, err)
		}
	}
}
