package domain

import (
	"slices"
	"sort"
)

// MaxLevel is the highest level of the built-in roster. Remote rosters may offer more.
const MaxLevel = 5

// Progression is the persisted single-player record.
type Progression struct {
	Wins           int   `json:"wins"`
	Losses         int   `json:"losses"`
	Draws          int   `json:"draws"`
	UnlockedLevels []int `json:"unlockedLevels"`
}

// DefaultProgression is used the first time the record is read.
func DefaultProgression(gating bool) Progression {
	if gating {
		return Progression{UnlockedLevels: []int{1}}
	}
	levels := make([]int, 0, MaxLevel)
	for l := 1; l <= MaxLevel; l++ {
		levels = append(levels, l)
	}
	return Progression{UnlockedLevels: levels}
}

func (p Progression) Unlocked(level int) bool {
	return slices.Contains(p.UnlockedLevels, level)
}

// Allows reports whether level may be played. Without gating every level is open.
func (p Progression) Allows(level int, gating bool) bool {
	return !gating || p.Unlocked(level)
}

// Unlock adds level if absent and keeps the list sorted.
func (p *Progression) Unlock(level int) bool {
	if level < 1 || p.Unlocked(level) {
		return false
	}
	p.UnlockedLevels = append(p.UnlockedLevels, level)
	sort.Ints(p.UnlockedLevels)
	return true
}

// GameResult is the human side's result of a concluded single-player game.
type GameResult string

const (
	ResultWin  GameResult = "win"
	ResultLoss GameResult = "loss"
	ResultDraw GameResult = "draw"
)

// Apply records one concluded game at level. A win unlocks the next level when gating is on.
func (p *Progression) Apply(result GameResult, level int, gating bool) {
	switch result {
	case ResultWin:
		p.Wins++
		if gating {
			p.Unlock(level + 1)
		}
	case ResultLoss:
		p.Losses++
	case ResultDraw:
		p.Draws++
	}
}

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

func (t Theme) Toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

func (t Theme) Dark() bool { return t == ThemeDark }

func ThemeFromDark(dark bool) Theme {
	if dark {
		return ThemeDark
	}
	return ThemeLight
}

// Opponent describes one difficulty level of the remote service.
type Opponent struct {
	Level         int     `json:"level"`
	Name          string  `json:"name"`
	Title         string  `json:"title"`
	Depth         int     `json:"depth"`
	BlunderChance float64 `json:"blunder_chance"`
}

// DefaultOpponents mirrors the roster served by the move service.
func DefaultOpponents() []Opponent {
	return []Opponent{
		{Level: 1, Name: "Joe", Title: "Beginner", Depth: 1, BlunderChance: 0.3},
		{Level: 2, Name: "Sarah", Title: "Casual Player", Depth: 5, BlunderChance: 0.15},
		{Level: 3, Name: "Marcus", Title: "Club Player", Depth: 8, BlunderChance: 0.05},
		{Level: 4, Name: "Elena", Title: "Master", Depth: 12, BlunderChance: 0},
		{Level: 5, Name: "Magnus", Title: "Grandmaster", Depth: 15, BlunderChance: 0},
	}
}

// FindOpponent returns the roster entry for level.
func FindOpponent(roster []Opponent, level int) (Opponent, bool) {
	for _, o := range roster {
		if o.Level == level {
			return o, true
		}
	}
	return Opponent{}, false
}
