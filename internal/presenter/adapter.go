package presenter

import (
	"fmt"

	"github.com/park285/checkmate-ai/internal/domain"
	"github.com/park285/checkmate-ai/internal/render"
	"github.com/park285/checkmate-ai/internal/rules"
	"github.com/park285/checkmate-ai/internal/session"
	"github.com/park285/checkmate-ai/pkg/chessdto"
)

// ToDTOState converts a snapshot for the wire. prog may be nil.
func (f *Formatter) ToDTOState(snap session.Snapshot, prog *domain.Progression) chessdto.SessionState {
	out := chessdto.SessionState{
		Active:     snap.Active,
		SessionID:  snap.ID,
		Generation: snap.Generation,
		Level:      snap.Level,
		FEN:        snap.FEN,
		Turn:       string(snap.Turn),
		Awaiting:   snap.Awaiting,
		HumanTurn:  snap.HumanTurn(),
		MovesSAN:   append([]string{}, snap.History...),
		MovesUCI:   append([]string{}, snap.MovesUCI...),
		MoveCount:  len(snap.History),
		Material:   materialOf(snap.Captured),
		Captured: chessdto.CapturedPieces{
			White: toPieceTokenList(snap.Captured.White),
			Black: toPieceTokenList(snap.Captured.Black),
		},
		DrawMethod: snap.DrawMethod,
		LastError:  snap.LastError,
		Notice: chessdto.Notice{
			Key:       snap.Notice.Key,
			Text:      snap.Notice.Text,
			Transient: snap.Notice.Transient,
		},
		Readiness:      string(snap.Readiness),
		ReadinessError: snap.ReadinessError,
		Theme:          string(snap.Theme),
	}
	if snap.Active {
		out.Mode = modeName(snap.Mode)
		out.Outcome = string(snap.Outcome)
		out.Status = f.Status(snap)
	}
	if snap.Opponent != nil {
		out.Opponent = &chessdto.Opponent{Level: snap.Opponent.Level, Name: snap.Opponent.Name, Title: snap.Opponent.Title}
	}
	if snap.LastMove != nil {
		out.LastMove = &chessdto.LastMove{From: snap.LastMove.From, To: snap.LastMove.To}
	}
	if prog != nil {
		out.Stats = ToDTOStats(*prog)
	}
	return out
}

// RenderOptions builds the board image options for snap.
func (f *Formatter) RenderOptions(snap session.Snapshot) render.Options {
	captured := materialOf(snap.Captured)
	opts := render.Options{
		Theme:         snap.Theme,
		Header:        "Two players",
		Turn:          f.Status(snap),
		MaterialWhite: captured.White,
		MaterialBlack: captured.Black,
	}
	if snap.Opponent != nil {
		opts.Header = fmt.Sprintf("%s (%s)", snap.Opponent.Name, snap.Opponent.Title)
	}
	if snap.LastMove != nil {
		opts.LastFrom, opts.LastTo = snap.LastMove.From, snap.LastMove.To
	}
	return opts
}

func ToDTOStats(p domain.Progression) *chessdto.Stats {
	return &chessdto.Stats{
		Wins:           p.Wins,
		Losses:         p.Losses,
		Draws:          p.Draws,
		UnlockedLevels: append([]int{}, p.UnlockedLevels...),
	}
}

func ToDTOMove(res session.MoveResult) chessdto.MoveSummary {
	return chessdto.MoveSummary{
		SAN:             res.Applied.SAN,
		UCI:             res.Applied.UCI,
		Captured:        string(res.Applied.Captured),
		Outcome:         string(res.Outcome),
		RemoteScheduled: res.RemoteScheduled,
	}
}

func modeName(m session.Mode) string {
	switch m.(type) {
	case session.SinglePlayer:
		return "single"
	case session.TwoPlayer:
		return "pvp"
	default:
		return ""
	}
}

func toPieceTokenList(list []rules.PieceKind) []string {
	tokens := make([]string, 0, len(list))
	for _, kind := range list {
		tokens = append(tokens, string(kind))
	}
	return tokens
}

func materialOf(c session.Captures) chessdto.MaterialScore {
	return chessdto.MaterialScore{White: sumValues(c.White), Black: sumValues(c.Black)}
}

func sumValues(list []rules.PieceKind) int {
	total := 0
	for _, kind := range list {
		switch kind {
		case rules.Pawn:
			total++
		case rules.Knight, rules.Bishop:
			total += 3
		case rules.Rook:
			total += 5
		case rules.Queen:
			total += 9
		}
	}
	return total
}
