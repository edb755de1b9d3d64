// Package presenter turns session snapshots into terminal text and wire DTOs.
package presenter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/park285/checkmate-ai/internal/domain"
	"github.com/park285/checkmate-ai/internal/msgcat"
	"github.com/park285/checkmate-ai/internal/rules"
	"github.com/park285/checkmate-ai/internal/session"
)

const capturedRecentLimit = 8

// Boarder expands a FEN into a piece grid, rank 8 first.
type Boarder interface {
	Grid(fen string) ([8][8]byte, error)
}

// Formatter renders snapshots for a plain terminal.
type Formatter struct {
	msgs   *msgcat.Catalog
	boards Boarder
}

func NewFormatter(msgs *msgcat.Catalog, boards Boarder) *Formatter {
	return &Formatter{msgs: msgs, boards: boards}
}

// Board draws the position from white's side with file and rank labels.
// The last move's squares are bracketed.
func (f *Formatter) Board(snap session.Snapshot) string {
	if !snap.Active || f.boards == nil {
		return f.msgs.Text("notice.no_session", nil)
	}
	grid, err := f.boards.Grid(snap.FEN)
	if err != nil {
		return "board unavailable: " + err.Error()
	}
	marked := map[string]bool{}
	if snap.LastMove != nil {
		marked[snap.LastMove.From] = true
		marked[snap.LastMove.To] = true
	}

	var sb strings.Builder
	sb.WriteString("    a  b  c  d  e  f  g  h\n")
	for r := 0; r < 8; r++ {
		rank := 8 - r
		sb.WriteString(fmt.Sprintf(" %d ", rank))
		for file := 0; file < 8; file++ {
			sq := string(rune('a'+file)) + strconv.Itoa(rank)
			cell := grid[r][file]
			glyph := "."
			if cell != 0 {
				glyph = string(cell)
			}
			if marked[sq] {
				sb.WriteString("[" + glyph + "]")
			} else {
				sb.WriteString(" " + glyph + " ")
			}
		}
		sb.WriteString(fmt.Sprintf(" %d\n", rank))
	}
	sb.WriteString("    a  b  c  d  e  f  g  h")
	return sb.String()
}

// Status is the one-line game status.
func (f *Formatter) Status(snap session.Snapshot) string {
	key, data := statusKey(snap)
	if key == "" {
		return f.msgs.Text("notice.no_session", nil)
	}
	text := f.msgs.Text(key, data)
	if snap.Outcome == session.Check {
		turnKey, turnData := turnKey(snap)
		text += " " + f.msgs.Text(turnKey, turnData)
	}
	return text
}

func statusKey(snap session.Snapshot) (string, map[string]any) {
	if !snap.Active {
		return "", nil
	}
	_, single := snap.Mode.(session.SinglePlayer)
	switch snap.Outcome {
	case session.Checkmate:
		if single {
			if snap.LastMover == session.HumanColor {
				return "status.checkmate_win", nil
			}
			return "status.checkmate_loss", nil
		}
		if snap.LastMover == rules.White {
			return "status.checkmate_white", nil
		}
		return "status.checkmate_black", nil
	case session.Stalemate:
		return "status.stalemate", nil
	case session.Draw:
		return "status.draw", map[string]any{"Method": snap.DrawMethod}
	case session.Check:
		return "status.check", nil
	default:
		return turnKey(snap)
	}
}

func turnKey(snap session.Snapshot) (string, map[string]any) {
	if _, single := snap.Mode.(session.SinglePlayer); single {
		if snap.HumanTurn() {
			return "status.your_turn", nil
		}
		name := "Opponent"
		if snap.Opponent != nil {
			name = snap.Opponent.Name
		}
		return "status.opponent_turn", map[string]any{"Name": name}
	}
	if snap.Turn == rules.Black {
		return "status.black_turn", nil
	}
	return "status.white_turn", nil
}

// Moves numbers the SAN history in pairs: "1. e4 e5  2. Nf3".
func (f *Formatter) Moves(history []string) string {
	if len(history) == 0 {
		return "-"
	}
	var sb strings.Builder
	for i := 0; i < len(history); i += 2 {
		if i > 0 {
			sb.WriteString("  ")
		}
		sb.WriteString(fmt.Sprintf("%d. %s", i/2+1, history[i]))
		if i+1 < len(history) {
			sb.WriteString(" " + history[i+1])
		}
	}
	return sb.String()
}

func (f *Formatter) Captured(c session.Captures) string {
	white := formatCapturedSequence(recentPieces(c.White, capturedRecentLimit))
	black := formatCapturedSequence(recentPieces(c.Black, capturedRecentLimit))
	if white == "" && black == "" {
		return ""
	}
	var parts []string
	if white != "" {
		parts = append(parts, "White took "+white)
	}
	if black != "" {
		parts = append(parts, "Black took "+black)
	}
	return strings.Join(parts, " / ")
}

// Snapshot combines board, status, captures, moves and any notice.
func (f *Formatter) Snapshot(snap session.Snapshot) string {
	if !snap.Active {
		return f.Status(snap)
	}
	var sb strings.Builder
	if snap.Opponent != nil {
		sb.WriteString(fmt.Sprintf("vs %s (%s, level %d)\n", snap.Opponent.Name, snap.Opponent.Title, snap.Opponent.Level))
	} else {
		sb.WriteString("Two players\n")
	}
	sb.WriteString(f.Board(snap))
	sb.WriteString("\n\n")
	sb.WriteString(f.Status(snap))
	sb.WriteString("\n")
	if taken := f.Captured(snap.Captured); taken != "" {
		sb.WriteString("• " + taken + "\n")
	}
	sb.WriteString("• Moves: " + f.Moves(snap.History) + "\n")
	if snap.LastError != "" {
		sb.WriteString("• Last error: " + snap.LastError + "\n")
	}
	if snap.Notice.Text != "" {
		sb.WriteString("! " + snap.Notice.Text + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (f *Formatter) Stats(p domain.Progression) string {
	levels := make([]string, 0, len(p.UnlockedLevels))
	for _, l := range p.UnlockedLevels {
		levels = append(levels, strconv.Itoa(l))
	}
	return f.msgs.Text("stats.summary", map[string]any{"Wins": p.Wins, "Losses": p.Losses, "Draws": p.Draws}) +
		"\n" + f.msgs.Text("stats.unlocked", map[string]any{"Levels": strings.Join(levels, ", ")})
}

// Opponents lists the roster, marking levels that are still locked.
// Opponents lists the roster; with gating off no level is marked locked.
func (f *Formatter) Opponents(roster []domain.Opponent, p domain.Progression, gating bool) string {
	var sb strings.Builder
	for i, o := range roster {
		if i > 0 {
			sb.WriteString("\n")
		}
		lock := ""
		if !p.Allows(o.Level, gating) {
			lock = " (locked)"
		}
		sb.WriteString(fmt.Sprintf("%d. %s, %s%s", o.Level, o.Name, o.Title, lock))
	}
	return sb.String()
}

func (f *Formatter) Readiness(snap session.Snapshot) string {
	switch snap.Readiness {
	case session.ReadinessChecking:
		return f.msgs.Text("readiness.checking", nil)
	case session.ReadinessReady:
		return f.msgs.Text("readiness.ready", nil)
	case session.ReadinessUnavailable:
		return f.msgs.Text("readiness.unavailable", map[string]any{"Detail": snap.ReadinessError})
	default:
		return ""
	}
}

func (f *Formatter) Help() string {
	return `Commands
• ready | retry           check the chess engine
• opponents               list opponents
• new <level> | new pvp   start a game
• move e2e4 [q]           play a move (also "e2e4" alone)
• retry-move              ask the engine again after a failure
• undo                    take back your last move
• board | pgn | stats     show the game
• png <file>              save the board as PNG
• theme                   toggle light/dark
• quit`
}

func formatCapturedSequence(order []rules.PieceKind) string {
	if len(order) == 0 {
		return ""
	}
	tokens := make([]string, 0, len(order))
	for _, kind := range order {
		if symbol := capturedSymbol(kind); symbol != "" {
			tokens = append(tokens, symbol)
		}
	}
	return strings.Join(tokens, " ")
}

func capturedSymbol(kind rules.PieceKind) string {
	switch kind {
	case rules.Queen:
		return "Q"
	case rules.Rook:
		return "R"
	case rules.Bishop:
		return "B"
	case rules.Knight:
		return "N"
	case rules.Pawn:
		return "P"
	case rules.King:
		return "K"
	default:
		return ""
	}
}

func recentPieces(order []rules.PieceKind, limit int) []rules.PieceKind {
	if len(order) > limit {
		return order[len(order)-limit:]
	}
	return order
}
