// Package session holds the game-session controller: one live game, local
// move application through the rules adapter, and the request/response
// negotiation with the remote engine for the opponent's replies.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/checkmate-ai/internal/domain"
	"github.com/park285/checkmate-ai/internal/engineclient"
	"github.com/park285/checkmate-ai/internal/msgcat"
	"github.com/park285/checkmate-ai/internal/rules"
)

type Rules interface {
	StartFEN() string
	Validate(fen string) error
	SideToMove(fen string) (rules.Color, error)
	Apply(fen string, mv rules.Move) (rules.Applied, error)
	ApplyUCI(fen, uci string) (rules.Applied, error)
	PGN(startFEN string, moves []string) (string, error)
}

type MoveEngine interface {
	Health(ctx context.Context) error
	Opponents(ctx context.Context) ([]domain.Opponent, error)
	GetMove(ctx context.Context, fen string, level int) (*engineclient.MoveResponse, error)
}

// ProgressRepository serializes concurrent Update calls; several controllers may share one.
type ProgressRepository interface {
	Load(ctx context.Context) (domain.Progression, error)
	Update(ctx context.Context, fn func(*domain.Progression)) (domain.Progression, error)
}

type PreferenceRepository interface {
	Load(ctx context.Context) (domain.Theme, error)
	Save(ctx context.Context, theme domain.Theme) error
}

type Config struct {
	ReadinessTimeout time.Duration
	MoveTimeout      time.Duration
	MoveDelay        time.Duration
	NoticeTTL        time.Duration
	Gating           bool
}

func (c Config) withDefaults() Config {
	if c.ReadinessTimeout <= 0 {
		c.ReadinessTimeout = 10 * time.Second
	}
	if c.MoveTimeout <= 0 {
		c.MoveTimeout = 30 * time.Second
	}
	if c.MoveDelay < 0 {
		c.MoveDelay = 0
	}
	if c.NoticeTTL <= 0 {
		c.NoticeTTL = 2 * time.Second
	}
	return c
}

// Deps are the collaborators of a Controller. Remote may be nil, which
// leaves only two-player mode available.
type Deps struct {
	Rules       Rules
	Remote      MoveEngine
	Progress    ProgressRepository
	Preferences PreferenceRepository
	Messages    *msgcat.Catalog
	Logger      *zap.Logger
}

type frame struct {
	fen        string
	plies      int
	whiteCaps  int
	blackCaps  int
	outcome    Outcome
	drawMethod string
	lastMove   *LastMove
	lastMover  rules.Color
}

type game struct {
	id         string
	generation uint64
	mode       Mode
	startedAt  time.Time
	startFEN   string
	fen        string
	history    []string
	uci        []string
	captured   Captures
	outcome    Outcome
	drawMethod string
	lastMove   *LastMove
	lastMover  rules.Color
	scored     bool
	lastErr    error
	frames     []frame
}

func (g *game) push() {
	g.frames = append(g.frames, frame{
		fen:        g.fen,
		plies:      len(g.history),
		whiteCaps:  len(g.captured.White),
		blackCaps:  len(g.captured.Black),
		outcome:    g.outcome,
		drawMethod: g.drawMethod,
		lastMove:   g.lastMove,
		lastMover:  g.lastMover,
	})
}

func (g *game) restore(f frame) {
	g.fen = f.fen
	g.history = g.history[:f.plies]
	g.uci = g.uci[:f.plies]
	g.captured.White = g.captured.White[:f.whiteCaps]
	g.captured.Black = g.captured.Black[:f.blackCaps]
	g.outcome = f.outcome
	g.drawMethod = f.drawMethod
	g.lastMove = f.lastMove
	g.lastMover = f.lastMover
}

type pendingResult struct {
	result     domain.GameResult
	level      int
	generation uint64
}

type Controller struct {
	rules    Rules
	remote   MoveEngine
	progress ProgressRepository
	prefs    PreferenceRepository
	msgs     *msgcat.Catalog
	cfg      Config
	logger   *zap.Logger

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup

	lmu          sync.Mutex
	listeners    map[int]func(Event)
	nextListener int

	mu           sync.Mutex
	closed       bool
	generation   uint64
	game         *game
	neg          negotiation
	cancelRemote context.CancelFunc
	remoteDone   chan struct{}
	readiness    Readiness
	readinessErr error
	probeSeq     uint64
	opponents    []domain.Opponent
	theme        domain.Theme
	notice       Notice
	noticeSeq    uint64
	noticeTimer  *time.Timer
}

func NewController(deps Deps, cfg Config) (*Controller, error) {
	if deps.Rules == nil {
		return nil, errors.New("rules collaborator is required")
	}
	if deps.Progress == nil {
		return nil, errors.New("progress store is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		rules:     deps.Rules,
		remote:    deps.Remote,
		progress:  deps.Progress,
		prefs:     deps.Preferences,
		msgs:      deps.Messages,
		cfg:       cfg.withDefaults(),
		logger:    logger,
		baseCtx:   ctx,
		stop:      cancel,
		listeners: make(map[int]func(Event)),
		readiness: ReadinessUnknown,
		opponents: domain.DefaultOpponents(),
		theme:     domain.ThemeLight,
	}, nil
}

// OnChange registers fn for every state change and returns its unsubscribe func.
// fn runs on the goroutine that caused the change and must not block for long.
func (c *Controller) OnChange(fn func(Event)) func() {
	c.lmu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	c.lmu.Unlock()
	return func() {
		c.lmu.Lock()
		delete(c.listeners, id)
		c.lmu.Unlock()
	}
}

func (c *Controller) dispatch(evs []Event) {
	if len(evs) == 0 {
		return
	}
	c.lmu.Lock()
	fns := make([]func(Event), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.lmu.Unlock()
	for _, ev := range evs {
		for _, fn := range fns {
			fn(ev)
		}
	}
}

// LoadPreferences reads the stored theme.
func (c *Controller) LoadPreferences(ctx context.Context) error {
	if c.prefs == nil {
		return nil
	}
	theme, err := c.prefs.Load(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.theme = theme
	c.mu.Unlock()
	return nil
}

// CheckReadiness probes the remote engine, bounded by the readiness timeout.
// On success the opponent roster is refreshed.
func (c *Controller) CheckReadiness(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.probeSeq++
	seq := c.probeSeq
	c.readiness = ReadinessChecking
	evs := []Event{{Type: EventReadinessChanged, Generation: c.generation}}
	c.mu.Unlock()
	c.dispatch(evs)

	var (
		err    error
		roster []domain.Opponent
	)
	if c.remote == nil {
		err = errors.New("no remote engine configured")
	} else {
		probeCtx, cancel := context.WithTimeout(ctx, c.cfg.ReadinessTimeout)
		err = c.remote.Health(probeCtx)
		if err == nil {
			var oerr error
			roster, oerr = c.remote.Opponents(probeCtx)
			if oerr != nil || len(roster) == 0 {
				c.logger.Warn("opponent roster unavailable, using built-in roster", zap.Error(oerr))
				roster = domain.DefaultOpponents()
			}
		}
		cancel()
	}

	c.mu.Lock()
	if seq != c.probeSeq || c.closed {
		c.mu.Unlock()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
		}
		return nil
	}
	evs = evs[:0]
	if err != nil {
		c.readiness = ReadinessUnavailable
		c.readinessErr = err
		evs = c.setNoticeLocked(evs, "notice.remote_unavailable", nil, false)
		c.logger.Warn("remote engine not ready", zap.Error(err))
	} else {
		c.readiness = ReadinessReady
		c.readinessErr = nil
		c.opponents = roster
		if c.notice.Key == "notice.remote_unavailable" {
			evs = c.clearNoticeLocked(evs)
		}
		c.logger.Info("remote engine ready", zap.Int("opponents", len(roster)))
	}
	evs = append(evs, Event{Type: EventReadinessChanged, Generation: c.generation})
	c.mu.Unlock()
	c.dispatch(evs)

	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	return nil
}

// StartSession discards the current game and starts a fresh one.
// Single-player requires a ready remote and an unlocked level.
func (c *Controller) StartSession(ctx context.Context, mode Mode) (Snapshot, error) {
	switch m := mode.(type) {
	case SinglePlayer:
		c.mu.Lock()
		_, known := domain.FindOpponent(c.opponents, m.Level)
		ready := c.remote != nil && c.readiness == ReadinessReady
		c.mu.Unlock()
		if !known {
			return Snapshot{}, fmt.Errorf("%w: %d", ErrUnknownLevel, m.Level)
		}
		if !ready {
			return Snapshot{}, ErrRemoteUnavailable
		}
		prog, err := c.progress.Load(ctx)
		if err != nil {
			return Snapshot{}, err
		}
		if !prog.Allows(m.Level, c.cfg.Gating) {
			c.mu.Lock()
			evs := c.setNoticeLocked(nil, "notice.level_locked", map[string]any{"Level": m.Level}, true)
			c.mu.Unlock()
			c.dispatch(evs)
			return Snapshot{}, fmt.Errorf("%w: %d", ErrLevelLocked, m.Level)
		}
	case TwoPlayer:
	default:
		return Snapshot{}, fmt.Errorf("unsupported mode %v", mode)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	c.generation++
	c.abandonRemoteLocked()
	start := c.rules.StartFEN()
	c.game = &game{
		id:         uuid.NewString(),
		generation: c.generation,
		mode:       mode,
		startedAt:  time.Now(),
		startFEN:   start,
		fen:        start,
		outcome:    InProgress,
	}
	evs := c.clearNoticeLocked(nil)
	evs = append(evs, Event{Type: EventSessionStarted, Generation: c.generation})
	c.logger.Info("session started",
		zap.String("session", c.game.id),
		zap.Uint64("generation", c.generation),
		zap.Stringer("mode", mode),
	)
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.dispatch(evs)
	return snap, nil
}

// AttemptLocalMove applies a human move. In single-player mode a legal,
// non-terminal move schedules the engine's reply.
func (c *Controller) AttemptLocalMove(ctx context.Context, mv rules.Move) (MoveResult, error) {
	c.mu.Lock()
	res, evs, pending, err := c.attemptLocked(mv)
	c.mu.Unlock()
	c.dispatch(evs)
	if pending != nil {
		c.recordResult(ctx, *pending)
	}
	return res, err
}

func (c *Controller) attemptLocked(mv rules.Move) (MoveResult, []Event, *pendingResult, error) {
	var evs []Event
	if c.closed {
		return MoveResult{}, nil, nil, ErrClosed
	}
	g := c.game
	if g == nil {
		evs = c.setNoticeLocked(evs, "notice.no_session", nil, true)
		return MoveResult{}, evs, nil, ErrNoSession
	}
	if g.outcome.Terminal() {
		evs = c.setNoticeLocked(evs, "notice.game_over", nil, true)
		return MoveResult{Outcome: g.outcome}, evs, nil, ErrGameOver
	}
	turn, err := c.rules.SideToMove(g.fen)
	if err != nil {
		return MoveResult{}, nil, nil, fmt.Errorf("side to move: %w", err)
	}
	level, single := levelOf(g.mode)
	if single && (c.neg.awaiting || turn != HumanColor) {
		evs = c.setNoticeLocked(evs, "notice.wait_turn", nil, true)
		return MoveResult{Outcome: g.outcome}, evs, nil, ErrTurnViolation
	}

	applied, err := c.rules.Apply(g.fen, mv)
	if err != nil {
		if errors.Is(err, rules.ErrIllegalMove) {
			evs = c.setNoticeLocked(evs, "notice.illegal_move", nil, true)
			return MoveResult{Outcome: g.outcome}, evs, nil, fmt.Errorf("%w: %s", ErrIllegalMove, mv.UCI())
		}
		return MoveResult{}, nil, nil, fmt.Errorf("apply move: %w", err)
	}

	pending := c.commitLocked(g, applied)
	evs = c.clearNoticeLocked(evs)
	evs = append(evs, Event{Type: EventMoveApplied, Generation: g.generation})
	res := MoveResult{Applied: applied, Outcome: g.outcome}

	if single && !g.outcome.Terminal() && applied.Mover == HumanColor {
		c.scheduleRemoteLocked(g, level, c.cfg.MoveDelay)
		res.RemoteScheduled = true
		evs = append(evs, Event{Type: EventRemoteRequested, Generation: g.generation})
	}
	res.Snapshot = c.snapshotLocked()
	return res, evs, pending, nil
}

// commitLocked records applied on g and returns the result to persist, if any.
func (c *Controller) commitLocked(g *game, applied rules.Applied) *pendingResult {
	g.push()
	g.fen = applied.FEN
	g.history = append(g.history, applied.SAN)
	g.uci = append(g.uci, applied.UCI)
	g.captured.add(applied.Mover, applied.Captured)
	g.outcome = classify(applied)
	g.drawMethod = applied.DrawMethod
	if len(applied.UCI) >= 4 {
		g.lastMove = &LastMove{From: applied.UCI[:2], To: applied.UCI[2:4]}
	}
	g.lastMover = applied.Mover
	g.lastErr = nil

	c.logger.Debug("move applied",
		zap.String("session", g.id),
		zap.String("san", applied.SAN),
		zap.String("mover", string(applied.Mover)),
		zap.String("outcome", string(g.outcome)),
	)

	level, single := levelOf(g.mode)
	if !g.outcome.Terminal() || !single || g.scored {
		return nil
	}
	g.scored = true
	return &pendingResult{result: resultFor(g.outcome, applied.Mover), level: level, generation: g.generation}
}

func (c *Controller) recordResult(ctx context.Context, p pendingResult) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	prog, err := c.progress.Update(ctx, func(prog *domain.Progression) {
		prog.Apply(p.result, p.level, c.cfg.Gating)
	})
	if err != nil {
		c.logger.Error("record game result failed", zap.String("result", string(p.result)), zap.Error(err))
		return
	}
	c.logger.Info("game result recorded",
		zap.String("result", string(p.result)),
		zap.Int("level", p.level),
		zap.Int("wins", prog.Wins),
		zap.Int("losses", prog.Losses),
		zap.Int("draws", prog.Draws),
	)
	c.dispatch([]Event{{Type: EventStatsUpdated, Generation: p.generation}})
}

func (c *Controller) scheduleRemoteLocked(g *game, level int, delay time.Duration) {
	tag := c.neg.requestSent()
	ctx, cancel := context.WithCancel(c.baseCtx)
	done := make(chan struct{})
	c.cancelRemote = cancel
	c.remoteDone = done
	fen := g.fen

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(done)
		defer cancel()
		c.runRemote(ctx, tag, fen, level, delay)
	}()
}

func (c *Controller) runRemote(ctx context.Context, tag uint64, fen string, level int, delay time.Duration) {
	if delay > 0 {
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			c.finishRemote(tag, fen, nil, ctx.Err())
			return
		case <-t.C:
		}
	}
	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.MoveTimeout)
	resp, err := c.remote.GetMove(reqCtx, fen, level)
	cancel()
	c.finishRemote(tag, fen, resp, err)
}

func (c *Controller) finishRemote(tag uint64, fen string, resp *engineclient.MoveResponse, err error) {
	c.mu.Lock()
	evs, pending := c.reconcileLocked(tag, fen, resp, err)
	c.mu.Unlock()
	c.dispatch(evs)
	if pending != nil {
		c.recordResult(c.baseCtx, *pending)
	}
}

func (c *Controller) reconcileLocked(tag uint64, fen string, resp *engineclient.MoveResponse, err error) ([]Event, *pendingResult) {
	if err == nil && resp == nil {
		err = errors.New("empty engine response")
	}
	if err != nil {
		if !c.neg.requestFailed(tag) {
			c.logger.Debug("dropping stale remote failure", zap.Uint64("tag", tag), zap.Error(err))
			return nil, nil
		}
		return c.remoteFailureLocked(err), nil
	}
	if !c.neg.responseReceived(tag) {
		c.logger.Debug("dropping stale remote reply", zap.Uint64("tag", tag))
		return nil, nil
	}
	g := c.game
	if g == nil || g.fen != fen {
		c.logger.Warn("remote reply does not match current position", zap.Uint64("tag", tag))
		return nil, nil
	}

	applied, aerr := c.rules.ApplyUCI(fen, resp.Move)
	if aerr == nil && applied.Mover != remoteColor() {
		aerr = fmt.Errorf("move for wrong side %s", applied.Mover)
	}
	if aerr != nil {
		return c.remoteFailureLocked(fmt.Errorf("engine returned unusable move %q: %w", resp.Move, aerr)), nil
	}
	if resp.FEN != "" {
		if verr := c.rules.Validate(resp.FEN); verr != nil {
			c.logger.Warn("engine returned malformed position, keeping local",
				zap.String("engine_fen", resp.FEN),
				zap.Error(verr),
			)
		} else if !samePosition(resp.FEN, applied.FEN) {
			c.logger.Warn("engine position differs from local replay, keeping local",
				zap.String("engine_fen", resp.FEN),
				zap.String("local_fen", applied.FEN),
			)
		}
	}

	pending := c.commitLocked(g, applied)
	evs := c.clearNoticeLocked(nil)
	evs = append(evs, Event{Type: EventRemoteApplied, Generation: g.generation})
	return evs, pending
}

func (c *Controller) remoteFailureLocked(cause error) []Event {
	err := fmt.Errorf("%w: %v", ErrRemoteMoveFailure, cause)
	gen := c.generation
	if g := c.game; g != nil {
		g.lastErr = err
		gen = g.generation
	}
	c.logger.Warn("remote move failed", zap.Uint64("generation", gen), zap.Error(cause))
	evs := []Event{{Type: EventRemoteFailed, Generation: gen, Err: err}}
	return c.setNoticeLocked(evs, "notice.remote_failed", map[string]any{"Detail": errorDetail(cause)}, false)
}

func (c *Controller) abandonRemoteLocked() {
	if c.cancelRemote != nil {
		c.cancelRemote()
		c.cancelRemote = nil
	}
	c.neg.abandon()
}

// RetryRemoteMove re-issues the engine request after a failure.
func (c *Controller) RetryRemoteMove(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	g := c.game
	if g == nil {
		c.mu.Unlock()
		return ErrNoSession
	}
	level, single := levelOf(g.mode)
	turn, err := c.rules.SideToMove(g.fen)
	if err != nil || !single || g.outcome.Terminal() || c.neg.awaiting || turn != remoteColor() {
		c.mu.Unlock()
		return ErrRemoteNotPending
	}
	g.lastErr = nil
	evs := c.clearNoticeLocked(nil)
	c.scheduleRemoteLocked(g, level, 0)
	evs = append(evs, Event{Type: EventRemoteRequested, Generation: g.generation})
	c.mu.Unlock()
	c.dispatch(evs)
	return nil
}

// AwaitRemote blocks until the latest engine request has been fully processed.
func (c *Controller) AwaitRemote(ctx context.Context) error {
	c.mu.Lock()
	ch := c.remoteDone
	c.mu.Unlock()
	if ch == nil {
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Undo reverts the last human+engine pair in single-player mode, or the
// last half-move in two-player mode. Statistics are never reverted.
func (c *Controller) Undo(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	g := c.game
	if g == nil {
		c.mu.Unlock()
		return Snapshot{}, ErrNoSession
	}
	plies := 1
	allowed := !c.neg.awaiting
	if _, single := levelOf(g.mode); single {
		plies = 2
		turn, err := c.rules.SideToMove(g.fen)
		allowed = allowed && err == nil && turn == HumanColor
	}
	if !allowed || len(g.frames) < plies {
		evs := c.setNoticeLocked(nil, "notice.undo_unavailable", nil, true)
		c.mu.Unlock()
		c.dispatch(evs)
		return Snapshot{}, ErrUndoUnavailable
	}

	f := g.frames[len(g.frames)-plies]
	g.frames = g.frames[:len(g.frames)-plies]
	g.restore(f)
	g.lastErr = nil
	evs := c.clearNoticeLocked(nil)
	evs = append(evs, Event{Type: EventUndo, Generation: g.generation})
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.dispatch(evs)
	return snap, nil
}

// ToggleTheme flips and persists the theme preference.
func (c *Controller) ToggleTheme(ctx context.Context) (domain.Theme, error) {
	c.mu.Lock()
	next := c.theme.Toggle()
	c.mu.Unlock()
	if c.prefs != nil {
		if err := c.prefs.Save(ctx, next); err != nil {
			return "", err
		}
	}
	c.mu.Lock()
	c.theme = next
	evs := c.setNoticeLocked(nil, "theme.changed", map[string]any{"Theme": string(next)}, true)
	evs = append(evs, Event{Type: EventThemeChanged, Generation: c.generation})
	c.mu.Unlock()
	c.dispatch(evs)
	return next, nil
}

func (c *Controller) Theme() domain.Theme {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.theme
}

func (c *Controller) Progression(ctx context.Context) (domain.Progression, error) {
	return c.progress.Load(ctx)
}

func (c *Controller) Opponents() []domain.Opponent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Opponent(nil), c.opponents...)
}

// Gating reports whether levels unlock one win at a time.
func (c *Controller) Gating() bool { return c.cfg.Gating }

func (c *Controller) Readiness() Readiness {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readiness
}

// PGN renders the current game.
func (c *Controller) PGN() (string, error) {
	c.mu.Lock()
	g := c.game
	if g == nil {
		c.mu.Unlock()
		return "", ErrNoSession
	}
	start, moves := g.startFEN, append([]string(nil), g.uci...)
	c.mu.Unlock()
	return c.rules.PGN(start, moves)
}

// Snapshot never waits on the remote engine.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		Generation: c.generation,
		Awaiting:   c.neg.awaiting,
		Notice:     c.notice,
		Readiness:  c.readiness,
		Theme:      c.theme,
	}
	if c.readinessErr != nil {
		s.ReadinessError = c.readinessErr.Error()
	}
	g := c.game
	if g == nil {
		return s
	}
	s.Active = true
	s.ID = g.id
	s.Mode = g.mode
	s.StartedAt = g.startedAt
	s.FEN = g.fen
	s.History = append([]string(nil), g.history...)
	s.MovesUCI = append([]string(nil), g.uci...)
	s.Captured = g.captured.clone()
	s.Outcome = g.outcome
	s.DrawMethod = g.drawMethod
	s.LastMover = g.lastMover
	if g.lastMove != nil {
		lm := *g.lastMove
		s.LastMove = &lm
	}
	if g.lastErr != nil {
		s.LastError = g.lastErr.Error()
	}
	if turn, err := c.rules.SideToMove(g.fen); err == nil {
		s.Turn = turn
	}
	if level, single := levelOf(g.mode); single {
		s.Level = level
		if opp, ok := domain.FindOpponent(c.opponents, level); ok {
			s.Opponent = &opp
		}
	}
	return s
}

func (c *Controller) setNoticeLocked(evs []Event, key string, data any, transient bool) []Event {
	c.noticeSeq++
	seq := c.noticeSeq
	c.notice = Notice{Key: key, Text: c.msgs.Text(key, data), Transient: transient}
	if c.noticeTimer != nil {
		c.noticeTimer.Stop()
		c.noticeTimer = nil
	}
	if transient {
		c.noticeTimer = time.AfterFunc(c.cfg.NoticeTTL, func() { c.expireNotice(seq) })
	}
	return append(evs, Event{Type: EventNotice, Generation: c.generation})
}

func (c *Controller) clearNoticeLocked(evs []Event) []Event {
	if c.notice.Key == "" {
		return evs
	}
	c.noticeSeq++
	if c.noticeTimer != nil {
		c.noticeTimer.Stop()
		c.noticeTimer = nil
	}
	c.notice = Notice{}
	return append(evs, Event{Type: EventNotice, Generation: c.generation})
}

func (c *Controller) expireNotice(seq uint64) {
	c.mu.Lock()
	if c.closed || seq != c.noticeSeq {
		c.mu.Unlock()
		return
	}
	evs := c.clearNoticeLocked(nil)
	c.mu.Unlock()
	c.dispatch(evs)
}

// Close cancels any engine request and waits for background work.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.noticeTimer != nil {
		c.noticeTimer.Stop()
		c.noticeTimer = nil
	}
	c.abandonRemoteLocked()
	c.mu.Unlock()
	c.stop()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// samePosition compares placement, side to move and castling rights.
func samePosition(a, b string) bool {
	fa, fb := strings.Fields(a), strings.Fields(b)
	if len(fa) < 3 || len(fb) < 3 {
		return a == b
	}
	for i := 0; i < 3; i++ {
		if fa[i] != fb[i] {
			return false
		}
	}
	return true
}
