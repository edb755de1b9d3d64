// Package rules adapts github.com/corentings/chess/v2 to the FEN-in, FEN-out
// shape the session controller works with. Every call builds a throwaway game
// from the given position, so callers never share mutable library state.
package rules

import (
	"errors"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

var (
	ErrIllegalMove     = errors.New("illegal move")
	ErrInvalidPosition = errors.New("invalid position")
	ErrInvalidSquare   = errors.New("invalid square")
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

type Color string

const (
	White Color = "white"
	Black Color = "black"
)

func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

type PieceKind string

const (
	Pawn   PieceKind = "pawn"
	Knight PieceKind = "knight"
	Bishop PieceKind = "bishop"
	Rook   PieceKind = "rook"
	Queen  PieceKind = "queen"
	King   PieceKind = "king"
)

// Move is a from/to pair in algebraic square names plus an optional promotion letter (q, r, b, n).
type Move struct {
	From      string
	To        string
	Promotion string
}

func (m Move) UCI() string {
	return strings.ToLower(strings.TrimSpace(m.From) + strings.TrimSpace(m.To) + strings.TrimSpace(m.Promotion))
}

// Applied is the result of one legal half-move.
type Applied struct {
	FEN      string
	SAN      string
	UCI      string
	Mover    Color
	Captured PieceKind // empty when nothing was taken

	Check     bool
	Checkmate bool
	Stalemate bool
	// Draw covers automatic draws other than stalemate (insufficient material, 75-move rule, repetition).
	Draw       bool
	DrawMethod string
}

func (a Applied) Terminal() bool { return a.Checkmate || a.Stalemate || a.Draw }

// Engine is stateless; the zero value is ready to use.
type Engine struct{}

func New() Engine { return Engine{} }

func (Engine) StartFEN() string { return StartFEN }

// Validate reports whether fen parses into a position.
func (Engine) Validate(fen string) error {
	_, err := gameFromFEN(fen)
	return err
}

func (Engine) SideToMove(fen string) (Color, error) {
	game, err := gameFromFEN(fen)
	if err != nil {
		return "", err
	}
	return colorOf(game.Position().Turn()), nil
}

// Apply validates mv against fen and returns the resulting position.
// A pawn reaching the last rank without a promotion letter promotes to a queen.
func (e Engine) Apply(fen string, mv Move) (Applied, error) {
	game, err := gameFromFEN(fen)
	if err != nil {
		return Applied{}, err
	}
	from, err := parseSquare(mv.From)
	if err != nil {
		return Applied{}, fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}
	to, err := parseSquare(mv.To)
	if err != nil {
		return Applied{}, fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}
	uci := mv.UCI()
	if mv.Promotion == "" && needsPromotion(game.Position().Board(), from, to) {
		uci += "q"
	}
	return applyUCI(game, uci)
}

// ApplyUCI validates a long-algebraic move such as "e7e5" or "b2b1q".
func (Engine) ApplyUCI(fen, uci string) (Applied, error) {
	game, err := gameFromFEN(fen)
	if err != nil {
		return Applied{}, err
	}
	return applyUCI(game, strings.ToLower(strings.TrimSpace(uci)))
}

// PGN replays uci moves from startFEN and renders the game as PGN text.
func (Engine) PGN(startFEN string, moves []string) (string, error) {
	game, err := gameFromFEN(startFEN)
	if err != nil {
		return "", err
	}
	for i, mv := range moves {
		if err := game.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			return "", fmt.Errorf("replay move %d (%s): %w", i+1, mv, ErrIllegalMove)
		}
	}
	return game.String(), nil
}

func applyUCI(game *nchess.Game, uci string) (Applied, error) {
	pos := game.Position()
	notationUCI := nchess.UCINotation{}
	move, err := notationUCI.Decode(pos, uci)
	if err != nil {
		return Applied{}, ErrIllegalMove
	}
	captured := capturedKind(pos, move)
	if err := game.Move(move, nil); err != nil {
		return Applied{}, ErrIllegalMove
	}
	// the library records the validated move with its full tag set
	last := move
	if moves := game.Moves(); len(moves) > 0 {
		last = moves[len(moves)-1]
	}

	san := nchess.AlgebraicNotation{}.Encode(pos, last)
	out := Applied{
		FEN:      game.FEN(),
		SAN:      san,
		UCI:      strings.ToLower(notationUCI.Encode(pos, last)),
		Mover:    colorOf(pos.Turn()),
		Captured: captured,
		Check:    last.HasTag(nchess.Check) || strings.HasSuffix(san, "+") || strings.HasSuffix(san, "#"),
	}

	if game.Outcome() != nchess.NoOutcome {
		switch game.Method() {
		case nchess.Checkmate:
			out.Checkmate = true
		case nchess.Stalemate:
			out.Stalemate = true
		default:
			out.Draw = game.Outcome() == nchess.Draw
			out.DrawMethod = strings.ToLower(game.Method().String())
		}
	}
	return out, nil
}

// capturedKind inspects the pre-move board; en passant takes the pawn behind the target square.
func capturedKind(pos *nchess.Position, mv *nchess.Move) PieceKind {
	board := pos.Board()
	if piece := board.Piece(mv.S2()); piece != nchess.NoPiece {
		return kindOf(piece.Type())
	}
	mover := board.Piece(mv.S1())
	if mover.Type() != nchess.Pawn || mv.S1().File() == mv.S2().File() {
		return ""
	}
	behind := nchess.NewSquare(mv.S2().File(), mv.S1().Rank())
	if piece := board.Piece(behind); piece != nchess.NoPiece && piece.Type() == nchess.Pawn {
		return Pawn
	}
	return ""
}

// Grid returns FEN piece letters indexed [rank][file], rank 0 being rank 8; empty squares are 0.
func (Engine) Grid(fen string) ([8][8]byte, error) {
	var grid [8][8]byte
	game, err := gameFromFEN(fen)
	if err != nil {
		return grid, err
	}
	board := game.Position().Board()
	for r := 0; r < 8; r++ {
		for f := 0; f < 8; f++ {
			piece := board.Piece(nchess.NewSquare(nchess.File(f), nchess.Rank(7-r)))
			if piece == nchess.NoPiece {
				continue
			}
			grid[r][f] = pieceLetter(piece)
		}
	}
	return grid, nil
}

func pieceLetter(piece nchess.Piece) byte {
	var b byte
	switch piece.Type() {
	case nchess.Pawn:
		b = 'p'
	case nchess.Knight:
		b = 'n'
	case nchess.Bishop:
		b = 'b'
	case nchess.Rook:
		b = 'r'
	case nchess.Queen:
		b = 'q'
	case nchess.King:
		b = 'k'
	default:
		return 0
	}
	if piece.Color() == nchess.White {
		b -= 'a' - 'A'
	}
	return b
}

func needsPromotion(board *nchess.Board, from, to nchess.Square) bool {
	piece := board.Piece(from)
	if piece.Type() != nchess.Pawn {
		return false
	}
	return to.Rank() == nchess.Rank8 || to.Rank() == nchess.Rank1
}

func gameFromFEN(fen string) (*nchess.Game, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" || fen == "startpos" {
		return nchess.NewGame(), nil
	}
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPosition, err)
	}
	return nchess.NewGame(opt), nil
}

func parseSquare(s string) (nchess.Square, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 2 || s[0] < 'a' || s[0] > 'h' || s[1] < '1' || s[1] > '8' {
		return nchess.A1, fmt.Errorf("%w: %q", ErrInvalidSquare, s)
	}
	return nchess.NewSquare(nchess.File(s[0]-'a'), nchess.Rank(s[1]-'1')), nil
}

func colorOf(c nchess.Color) Color {
	if c == nchess.Black {
		return Black
	}
	return White
}

func kindOf(pt nchess.PieceType) PieceKind {
	switch pt {
	case nchess.Pawn:
		return Pawn
	case nchess.Knight:
		return Knight
	case nchess.Bishop:
		return Bishop
	case nchess.Rook:
		return Rook
	case nchess.Queen:
		return Queen
	case nchess.King:
		return King
	default:
		return ""
	}
}
