package presenter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/park285/checkmate-ai/internal/domain"
	"github.com/park285/checkmate-ai/internal/msgcat"
	"github.com/park285/checkmate-ai/internal/rules"
	"github.com/park285/checkmate-ai/internal/session"
)

func newFormatter() *Formatter {
	return NewFormatter(msgcat.MustDefault(), rules.New())
}

func afterE4() session.Snapshot {
	opp := domain.DefaultOpponents()[0]
	return session.Snapshot{
		Active:    true,
		ID:        "abc",
		Mode:      session.SinglePlayer{Level: 1},
		Level:     1,
		Opponent:  &opp,
		FEN:       "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1",
		Turn:      rules.Black,
		Awaiting:  true,
		History:   []string{"e4"},
		MovesUCI:  []string{"e2e4"},
		Outcome:   session.InProgress,
		LastMove:  &session.LastMove{From: "e2", To: "e4"},
		LastMover: rules.White,
		Readiness: session.ReadinessReady,
		Theme:     domain.ThemeLight,
	}
}

func TestBoardMarksLastMove(t *testing.T) {
	out := newFormatter().Board(afterE4())
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 10)
	assert.Equal(t, " 8  r  n  b  q  k  b  n  r  8", lines[1])
	assert.Contains(t, lines[5], "[P]")
	assert.Contains(t, lines[7], "[.]")
}

func TestStatusLines(t *testing.T) {
	f := newFormatter()
	snap := afterE4()
	assert.Equal(t, "Joe to move", f.Status(snap))

	snap.Awaiting = false
	snap.Turn = rules.White
	assert.Equal(t, "Your turn", f.Status(snap))

	snap.Outcome = session.Checkmate
	assert.Equal(t, "Checkmate! You won!", f.Status(snap))
	snap.LastMover = rules.Black
	assert.Equal(t, "Checkmate! You lost.", f.Status(snap))

	snap.Mode = session.TwoPlayer{}
	assert.Equal(t, "Checkmate! Black wins.", f.Status(snap))

	snap.Outcome = session.Draw
	snap.DrawMethod = "insufficientmaterial"
	assert.Equal(t, "Draw (insufficientmaterial).", f.Status(snap))

	snap.Outcome = session.Check
	snap.Turn = rules.Black
	assert.Equal(t, "Check! Black to move", f.Status(snap))

	assert.Equal(t, "Start a game first.", f.Status(session.Snapshot{}))
}

func TestMovesAndCaptures(t *testing.T) {
	f := newFormatter()
	assert.Equal(t, "-", f.Moves(nil))
	assert.Equal(t, "1. e4 e5  2. Nf3", f.Moves([]string{"e4", "e5", "Nf3"}))

	c := session.Captures{White: []rules.PieceKind{rules.Pawn, rules.Knight}}
	assert.Equal(t, "White took P N", f.Captured(c))
	assert.Empty(t, f.Captured(session.Captures{}))
}

func TestStatsAndOpponents(t *testing.T) {
	f := newFormatter()
	p := domain.Progression{Wins: 2, Losses: 1, UnlockedLevels: []int{1, 2}}
	assert.Equal(t, "Wins 2 / Losses 1 / Draws 0\nUnlocked levels: 1, 2", f.Stats(p))

	out := f.Opponents(domain.DefaultOpponents(), p, true)
	assert.Contains(t, out, "1. Joe")
	assert.Contains(t, out, "(locked)")
	assert.NotContains(t, strings.Split(out, "\n")[1], "(locked)")

	open := f.Opponents(domain.DefaultOpponents(), p, false)
	assert.NotContains(t, open, "(locked)")
}

func TestRenderOptions(t *testing.T) {
	f := newFormatter()
	snap := afterE4()
	snap.Theme = domain.ThemeDark
	snap.Captured = session.Captures{White: []rules.PieceKind{rules.Knight}, Black: []rules.PieceKind{rules.Pawn}}

	opts := f.RenderOptions(snap)
	assert.Equal(t, domain.ThemeDark, opts.Theme)
	assert.Equal(t, "Joe (Beginner)", opts.Header)
	assert.Equal(t, f.Status(snap), opts.Turn)
	assert.Equal(t, "e2", opts.LastFrom)
	assert.Equal(t, "e4", opts.LastTo)
	assert.Equal(t, 3, opts.MaterialWhite)
	assert.Equal(t, 1, opts.MaterialBlack)

	snap.Mode, snap.Opponent, snap.LastMove = session.TwoPlayer{}, nil, nil
	opts = f.RenderOptions(snap)
	assert.Equal(t, "Two players", opts.Header)
	assert.Empty(t, opts.LastFrom)
}

func TestToDTOState(t *testing.T) {
	f := newFormatter()
	snap := afterE4()
	snap.Captured = session.Captures{White: []rules.PieceKind{rules.Rook}, Black: []rules.PieceKind{rules.Pawn, rules.Queen}}
	prog := domain.DefaultProgression(true)

	dto := f.ToDTOState(snap, &prog)
	assert.Equal(t, "single", dto.Mode)
	assert.Equal(t, "black", dto.Turn)
	assert.Equal(t, 1, dto.MoveCount)
	assert.Equal(t, 5, dto.Material.White)
	assert.Equal(t, 10, dto.Material.Black)
	assert.Equal(t, []string{"pawn", "queen"}, dto.Captured.Black)
	assert.Equal(t, "Joe to move", dto.Status)
	require.NotNil(t, dto.LastMove)
	assert.Equal(t, "e4", dto.LastMove.To)
	require.NotNil(t, dto.Stats)
	assert.Equal(t, []int{1}, dto.Stats.UnlockedLevels)
	assert.False(t, dto.HumanTurn)

	empty := f.ToDTOState(session.Snapshot{}, nil)
	assert.False(t, empty.Active)
	assert.Empty(t, empty.Status)
	assert.NotNil(t, empty.MovesSAN)
}
