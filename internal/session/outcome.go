package session

import (
	"github.com/park285/checkmate-ai/internal/domain"
	"github.com/park285/checkmate-ai/internal/rules"
)

type Outcome string

const (
	InProgress Outcome = "in_progress"
	Check      Outcome = "check"
	Checkmate  Outcome = "checkmate"
	Stalemate  Outcome = "stalemate"
	Draw       Outcome = "draw"
)

func (o Outcome) Terminal() bool {
	return o == Checkmate || o == Stalemate || o == Draw
}

// classify applies the precedence checkmate, stalemate, draw, check.
func classify(a rules.Applied) Outcome {
	switch {
	case a.Checkmate:
		return Checkmate
	case a.Stalemate:
		return Stalemate
	case a.Draw:
		return Draw
	case a.Check:
		return Check
	default:
		return InProgress
	}
}

// resultFor maps a terminal outcome to the human's result; lastMover delivered the final move.
func resultFor(o Outcome, lastMover rules.Color) domain.GameResult {
	switch o {
	case Checkmate:
		if lastMover == HumanColor {
			return domain.ResultWin
		}
		return domain.ResultLoss
	case Stalemate, Draw:
		return domain.ResultDraw
	default:
		return ""
	}
}
