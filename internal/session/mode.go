package session

import (
	"fmt"

	"github.com/park285/checkmate-ai/internal/rules"
)

// Mode is either SinglePlayer or TwoPlayer.
type Mode interface {
	isMode()
	String() string
}

// SinglePlayer pits the human (white) against the remote engine at Level.
type SinglePlayer struct {
	Level int
}

// TwoPlayer alternates two humans on one board.
type TwoPlayer struct{}

func (SinglePlayer) isMode() {}
func (TwoPlayer) isMode()    {}

func (m SinglePlayer) String() string { return fmt.Sprintf("single(level=%d)", m.Level) }
func (TwoPlayer) String() string      { return "two-player" }

// HumanColor is the side the human plays in single-player mode.
const HumanColor = rules.White

func remoteColor() rules.Color { return HumanColor.Opponent() }

// levelOf returns the single-player level and whether mode is single-player.
func levelOf(m Mode) (int, bool) {
	sp, ok := m.(SinglePlayer)
	return sp.Level, ok
}
