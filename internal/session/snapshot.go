package session

import (
	"time"

	"github.com/park285/checkmate-ai/internal/domain"
	"github.com/park285/checkmate-ai/internal/rules"
)

// Captures lists captured piece kinds per capturing side, oldest first.
type Captures struct {
	White []rules.PieceKind
	Black []rules.PieceKind
}

func (c Captures) clone() Captures {
	return Captures{
		White: append([]rules.PieceKind(nil), c.White...),
		Black: append([]rules.PieceKind(nil), c.Black...),
	}
}

func (c *Captures) add(by rules.Color, kind rules.PieceKind) {
	if kind == "" {
		return
	}
	if by == rules.White {
		c.White = append(c.White, kind)
	} else {
		c.Black = append(c.Black, kind)
	}
}

type Readiness string

const (
	ReadinessUnknown     Readiness = "unknown"
	ReadinessChecking    Readiness = "checking"
	ReadinessReady       Readiness = "ready"
	ReadinessUnavailable Readiness = "unavailable"
)

// Notice is a user-facing message. Transient notices clear themselves.
type Notice struct {
	Key       string
	Text      string
	Transient bool
}

type LastMove struct {
	From string
	To   string
}

// Snapshot is a detached copy of the controller state.
type Snapshot struct {
	Active     bool
	ID         string
	Generation uint64
	Mode       Mode
	Level      int
	Opponent   *domain.Opponent
	StartedAt  time.Time

	FEN        string
	Turn       rules.Color
	Awaiting   bool
	History    []string
	MovesUCI   []string
	Captured   Captures
	Outcome    Outcome
	DrawMethod string
	LastMove   *LastMove
	LastMover  rules.Color
	LastError  string

	Notice         Notice
	Readiness      Readiness
	ReadinessError string
	Theme          domain.Theme
}

// HumanTurn reports whether local input is currently accepted.
func (s Snapshot) HumanTurn() bool {
	if !s.Active || s.Outcome.Terminal() {
		return false
	}
	if _, single := s.Mode.(SinglePlayer); single {
		return !s.Awaiting && s.Turn == HumanColor
	}
	return true
}

// MoveResult is returned by AttemptLocalMove.
type MoveResult struct {
	Applied         rules.Applied
	Outcome         Outcome
	RemoteScheduled bool
	// Snapshot is the state right after the move; zero when the move was rejected.
	Snapshot Snapshot
}

type EventType string

const (
	EventSessionStarted   EventType = "session_started"
	EventMoveApplied      EventType = "move_applied"
	EventRemoteRequested  EventType = "remote_requested"
	EventRemoteApplied    EventType = "remote_applied"
	EventRemoteFailed     EventType = "remote_failed"
	EventReadinessChanged EventType = "readiness_changed"
	EventNotice           EventType = "notice"
	EventThemeChanged     EventType = "theme_changed"
	EventUndo             EventType = "undo"
	EventStatsUpdated     EventType = "stats_updated"
)

type Event struct {
	Type       EventType
	Generation uint64
	Err        error
}
