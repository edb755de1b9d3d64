package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/park285/checkmate-ai/internal/domain"
	"github.com/park285/checkmate-ai/internal/engineclient"
	"github.com/park285/checkmate-ai/internal/msgcat"
	"github.com/park285/checkmate-ai/internal/rules"
	"github.com/park285/checkmate-ai/internal/store"
)

type reply struct {
	resp *engineclient.MoveResponse
	err  error
}

type moveCall struct {
	fen   string
	level int
	reply chan reply
}

// fakeEngine hands every GetMove to the test through calls.
type fakeEngine struct {
	calls        chan *moveCall
	roster       []domain.Opponent
	healthErr    error
	hangHealth   bool
	ignoreCancel bool
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{calls: make(chan *moveCall, 16)}
}

func (f *fakeEngine) Health(ctx context.Context) error {
	if f.hangHealth {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.healthErr
}

func (f *fakeEngine) Opponents(ctx context.Context) ([]domain.Opponent, error) {
	if f.roster != nil {
		return f.roster, nil
	}
	return domain.DefaultOpponents(), nil
}

func (f *fakeEngine) GetMove(ctx context.Context, fen string, level int) (*engineclient.MoveResponse, error) {
	call := &moveCall{fen: fen, level: level, reply: make(chan reply, 1)}
	f.calls <- call
	if f.ignoreCancel {
		r := <-call.reply
		return r.resp, r.err
	}
	select {
	case r := <-call.reply:
		return r.resp, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type harness struct {
	c        *Controller
	eng      *fakeEngine
	progress *store.ProgressRepository
	prefs    *store.PreferenceRepository
	kv       store.KV
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	return newSharedHarness(t, cfg, nil)
}

// newSharedHarness builds a controller over progress, or a fresh repository when nil.
func newSharedHarness(t *testing.T, cfg Config, progress *store.ProgressRepository) *harness {
	t.Helper()
	kv := store.NewMemory()
	if progress == nil {
		progress = store.NewProgressRepository(kv, cfg.Gating, nil)
	}
	h := &harness{
		eng:      newFakeEngine(),
		progress: progress,
		prefs:    store.NewPreferenceRepository(kv),
		kv:       kv,
	}
	c, err := NewController(Deps{
		Rules:       rules.New(),
		Remote:      h.eng,
		Progress:    h.progress,
		Preferences: h.prefs,
		Messages:    msgcat.MustDefault(),
	}, cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = c.Close(ctx)
	})
	h.c = c
	return h
}

func (h *harness) startSingle(t *testing.T, level int) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, h.c.CheckReadiness(ctx))
	_, err := h.c.StartSession(ctx, SinglePlayer{Level: level})
	require.NoError(t, err)
}

func (h *harness) move(t *testing.T, uci string) MoveResult {
	t.Helper()
	mv, err := rules.ParseMove(uci)
	require.NoError(t, err)
	res, err := h.c.AttemptLocalMove(context.Background(), mv)
	require.NoError(t, err)
	return res
}

// answer waits for the next engine request, replies with uci and waits until it is processed.
func (h *harness) answer(t *testing.T, uci string) {
	t.Helper()
	call := h.nextCall(t)
	call.reply <- reply{resp: &engineclient.MoveResponse{Move: uci}}
	h.await(t)
}

func (h *harness) nextCall(t *testing.T) *moveCall {
	t.Helper()
	select {
	case call := <-h.eng.calls:
		return call
	case <-time.After(2 * time.Second):
		t.Fatal("engine was not asked for a move")
		return nil
	}
}

func (h *harness) await(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.c.AwaitRemote(ctx))
}

func TestOpeningExchange(t *testing.T) {
	h := newHarness(t, Config{})
	h.startSingle(t, 1)

	res := h.move(t, "e2e4")
	assert.True(t, res.RemoteScheduled)
	assert.Equal(t, "e4", res.Applied.SAN)
	assert.Equal(t, []string{"e4"}, res.Snapshot.History)
	assert.True(t, res.Snapshot.Awaiting)
	assert.Equal(t, rules.Black, res.Snapshot.Turn)

	snap := h.c.Snapshot()
	assert.True(t, snap.Awaiting)
	assert.False(t, snap.HumanTurn())
	assert.Equal(t, []string{"e4"}, snap.History)

	call := h.nextCall(t)
	assert.Equal(t, 1, call.level)
	assert.Equal(t, snap.FEN, call.fen)
	call.reply <- reply{resp: &engineclient.MoveResponse{Move: "e7e5"}}
	h.await(t)

	snap = h.c.Snapshot()
	assert.Equal(t, []string{"e4", "e5"}, snap.History)
	assert.Equal(t, []string{"e2e4", "e7e5"}, snap.MovesUCI)
	assert.Equal(t, rules.White, snap.Turn)
	assert.False(t, snap.Awaiting)
	assert.True(t, snap.HumanTurn())
	require.NotNil(t, snap.LastMove)
	assert.Equal(t, LastMove{From: "e7", To: "e5"}, *snap.LastMove)
	assert.Equal(t, rules.Black, snap.LastMover)
	require.NotNil(t, snap.Opponent)
	assert.Equal(t, 1, snap.Opponent.Level)
}

func TestTurnViolationWhileAwaiting(t *testing.T) {
	h := newHarness(t, Config{})
	h.startSingle(t, 1)
	h.move(t, "e2e4")

	_, err := h.c.AttemptLocalMove(context.Background(), rules.Move{From: "d2", To: "d4"})
	require.ErrorIs(t, err, ErrTurnViolation)

	snap := h.c.Snapshot()
	assert.Equal(t, []string{"e4"}, snap.History)
	assert.Equal(t, "notice.wait_turn", snap.Notice.Key)
	assert.Equal(t, "Wait for your turn!", snap.Notice.Text)
	assert.True(t, snap.Notice.Transient)

	h.answer(t, "e7e5")
	assert.Empty(t, h.c.Snapshot().Notice.Key)
}

func TestIllegalMoveLeavesStateAndNoticeExpires(t *testing.T) {
	h := newHarness(t, Config{NoticeTTL: 20 * time.Millisecond})
	h.startSingle(t, 1)
	before := h.c.Snapshot()

	_, err := h.c.AttemptLocalMove(context.Background(), rules.Move{From: "e2", To: "e5"})
	require.ErrorIs(t, err, ErrIllegalMove)

	snap := h.c.Snapshot()
	assert.Equal(t, before.FEN, snap.FEN)
	assert.Empty(t, snap.History)
	assert.False(t, snap.Awaiting)
	assert.Equal(t, "notice.illegal_move", snap.Notice.Key)

	assert.Eventually(t, func() bool { return h.c.Snapshot().Notice.Key == "" }, time.Second, 5*time.Millisecond)
}

func TestMoveWithoutSession(t *testing.T) {
	h := newHarness(t, Config{})
	_, err := h.c.AttemptLocalMove(context.Background(), rules.Move{From: "e2", To: "e4"})
	require.ErrorIs(t, err, ErrNoSession)
	assert.False(t, h.c.Snapshot().Active)

	_, err = h.c.Undo(context.Background())
	require.ErrorIs(t, err, ErrNoSession)
}

func TestRemoteFailureThenRetry(t *testing.T) {
	h := newHarness(t, Config{})
	h.startSingle(t, 2)
	h.move(t, "e2e4")

	call := h.nextCall(t)
	call.reply <- reply{err: &engineclient.APIError{Status: 500, Detail: "engine crashed"}}
	h.await(t)

	snap := h.c.Snapshot()
	assert.False(t, snap.Awaiting)
	assert.Equal(t, rules.Black, snap.Turn)
	assert.Equal(t, []string{"e4"}, snap.History)
	assert.Contains(t, snap.LastError, "remote move failed")
	assert.Equal(t, "notice.remote_failed", snap.Notice.Key)
	assert.Contains(t, snap.Notice.Text, "engine crashed")
	assert.False(t, snap.Notice.Transient)

	// still the engine's turn
	_, err := h.c.AttemptLocalMove(context.Background(), rules.Move{From: "d2", To: "d4"})
	require.ErrorIs(t, err, ErrTurnViolation)

	require.NoError(t, h.c.RetryRemoteMove(context.Background()))
	require.ErrorIs(t, h.c.RetryRemoteMove(context.Background()), ErrRemoteNotPending)
	h.answer(t, "c7c5")

	snap = h.c.Snapshot()
	assert.Equal(t, []string{"e4", "c5"}, snap.History)
	assert.Empty(t, snap.LastError)
	assert.Empty(t, snap.Notice.Key)
}

func TestRetryRequiresPendingRemoteTurn(t *testing.T) {
	h := newHarness(t, Config{})
	require.ErrorIs(t, h.c.RetryRemoteMove(context.Background()), ErrNoSession)

	h.startSingle(t, 1)
	require.ErrorIs(t, h.c.RetryRemoteMove(context.Background()), ErrRemoteNotPending)
}

func TestUnusableEngineMoveIsFailure(t *testing.T) {
	h := newHarness(t, Config{})
	h.startSingle(t, 1)
	h.move(t, "e2e4")
	h.answer(t, "e2e4")

	snap := h.c.Snapshot()
	assert.Equal(t, []string{"e4"}, snap.History)
	assert.Contains(t, snap.LastError, "remote move failed")
	assert.Equal(t, rules.Black, snap.Turn)
}

func TestHumanCheckmateRecordsWin(t *testing.T) {
	h := newHarness(t, Config{Gating: true})
	h.startSingle(t, 1)

	h.move(t, "e2e4")
	h.answer(t, "e7e5")
	h.move(t, "f1c4")
	h.answer(t, "b8c6")
	h.move(t, "d1h5")
	h.answer(t, "g8f6")
	res := h.move(t, "h5f7")

	assert.Equal(t, Checkmate, res.Outcome)
	assert.False(t, res.RemoteScheduled)
	assert.Equal(t, "Qxf7#", res.Applied.SAN)

	snap := h.c.Snapshot()
	assert.Equal(t, Checkmate, snap.Outcome)
	assert.False(t, snap.Awaiting)
	assert.Equal(t, []rules.PieceKind{rules.Pawn}, snap.Captured.White)

	prog, err := h.c.Progression(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, prog.Wins)
	assert.Equal(t, 0, prog.Losses)
	assert.Equal(t, []int{1, 2}, prog.UnlockedLevels)

	_, err = h.c.AttemptLocalMove(context.Background(), rules.Move{From: "a2", To: "a3"})
	require.ErrorIs(t, err, ErrGameOver)
	_, err = h.c.Undo(context.Background())
	require.ErrorIs(t, err, ErrUndoUnavailable)
}

func TestRemoteCheckmateRecordsLoss(t *testing.T) {
	h := newHarness(t, Config{})
	h.startSingle(t, 3)

	h.move(t, "f2f3")
	h.answer(t, "e7e5")
	h.move(t, "g2g4")
	h.answer(t, "d8h4")

	snap := h.c.Snapshot()
	assert.Equal(t, Checkmate, snap.Outcome)
	assert.Equal(t, rules.Black, snap.LastMover)

	prog, err := h.c.Progression(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, prog.Wins)
	assert.Equal(t, 1, prog.Losses)
}

func TestTwoPlayerCheckmateLeavesStats(t *testing.T) {
	h := newHarness(t, Config{})
	_, err := h.c.StartSession(context.Background(), TwoPlayer{})
	require.NoError(t, err)

	h.move(t, "f2f3")
	h.move(t, "e7e5")
	h.move(t, "g2g4")
	res := h.move(t, "d8h4")
	assert.Equal(t, Checkmate, res.Outcome)
	assert.False(t, res.RemoteScheduled)

	prog, err := h.c.Progression(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultProgression(false), prog)
	assert.Empty(t, h.eng.calls)
}

func TestUndoRestoresPriorState(t *testing.T) {
	h := newHarness(t, Config{})
	h.startSingle(t, 1)

	h.move(t, "e2e4")
	h.answer(t, "d7d5")
	before := h.c.Snapshot()

	h.move(t, "e4d5")
	h.answer(t, "d8d5")
	mid := h.c.Snapshot()
	assert.Equal(t, []rules.PieceKind{rules.Pawn}, mid.Captured.White)
	assert.Equal(t, []rules.PieceKind{rules.Pawn}, mid.Captured.Black)

	after, err := h.c.Undo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, before.FEN, after.FEN)
	assert.Equal(t, before.History, after.History)
	assert.Equal(t, before.MovesUCI, after.MovesUCI)
	assert.Equal(t, before.Captured, after.Captured)
	assert.Equal(t, before.Outcome, after.Outcome)
	assert.Equal(t, before.LastMove, after.LastMove)
	assert.Equal(t, before.LastMover, after.LastMover)
	assert.Equal(t, before.Turn, after.Turn)

	_, err = h.c.Undo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, rules.StartFEN, h.c.Snapshot().FEN)

	_, err = h.c.Undo(context.Background())
	require.ErrorIs(t, err, ErrUndoUnavailable)
}

func TestUndoWhileAwaitingIsRejected(t *testing.T) {
	h := newHarness(t, Config{})
	h.startSingle(t, 1)
	h.move(t, "e2e4")

	_, err := h.c.Undo(context.Background())
	require.ErrorIs(t, err, ErrUndoUnavailable)
	assert.Equal(t, []string{"e4"}, h.c.Snapshot().History)
	h.answer(t, "e7e5")
}

func TestTwoPlayerUndoOnePly(t *testing.T) {
	h := newHarness(t, Config{})
	_, err := h.c.StartSession(context.Background(), TwoPlayer{})
	require.NoError(t, err)
	h.move(t, "e2e4")
	h.move(t, "e7e5")

	snap, err := h.c.Undo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"e4"}, snap.History)
	assert.Equal(t, rules.Black, snap.Turn)
}

func TestStaleReplyAfterRestartIsDropped(t *testing.T) {
	h := newHarness(t, Config{})
	h.eng.ignoreCancel = true
	h.startSingle(t, 1)

	h.move(t, "e2e4")
	first := h.nextCall(t)
	firstGen := h.c.Snapshot().Generation

	_, err := h.c.StartSession(context.Background(), SinglePlayer{Level: 1})
	require.NoError(t, err)
	snap := h.c.Snapshot()
	assert.Greater(t, snap.Generation, firstGen)
	assert.False(t, snap.Awaiting)
	assert.Empty(t, snap.History)

	h.move(t, "d2d4")
	second := h.nextCall(t)

	// legal in the new position too, so only the tag keeps it out
	first.reply <- reply{resp: &engineclient.MoveResponse{Move: "e7e5"}}
	second.reply <- reply{resp: &engineclient.MoveResponse{Move: "d7d5"}}
	h.await(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.c.Close(ctx))

	assert.Equal(t, []string{"d4", "d5"}, h.c.Snapshot().History)
}

func TestReadinessTimeout(t *testing.T) {
	h := newHarness(t, Config{ReadinessTimeout: 30 * time.Millisecond})
	h.eng.hangHealth = true

	start := time.Now()
	err := h.c.CheckReadiness(context.Background())
	require.ErrorIs(t, err, ErrRemoteUnavailable)
	assert.Less(t, time.Since(start), time.Second)

	snap := h.c.Snapshot()
	assert.Equal(t, ReadinessUnavailable, snap.Readiness)
	assert.NotEmpty(t, snap.ReadinessError)
	assert.Equal(t, "notice.remote_unavailable", snap.Notice.Key)

	_, err = h.c.StartSession(context.Background(), SinglePlayer{Level: 1})
	require.ErrorIs(t, err, ErrRemoteUnavailable)

	_, err = h.c.StartSession(context.Background(), TwoPlayer{})
	require.NoError(t, err)
}

func TestReadinessRecovers(t *testing.T) {
	h := newHarness(t, Config{})
	h.eng.healthErr = errors.New("connection refused")
	require.ErrorIs(t, h.c.CheckReadiness(context.Background()), ErrRemoteUnavailable)

	h.eng.healthErr = nil
	require.NoError(t, h.c.CheckReadiness(context.Background()))
	snap := h.c.Snapshot()
	assert.Equal(t, ReadinessReady, snap.Readiness)
	assert.Empty(t, snap.Notice.Key)
	assert.Len(t, h.c.Opponents(), domain.MaxLevel)
}

func TestLevelGating(t *testing.T) {
	h := newHarness(t, Config{Gating: true})
	require.NoError(t, h.c.CheckReadiness(context.Background()))

	_, err := h.c.StartSession(context.Background(), SinglePlayer{Level: 2})
	require.ErrorIs(t, err, ErrLevelLocked)
	assert.Equal(t, "notice.level_locked", h.c.Snapshot().Notice.Key)

	_, err = h.c.StartSession(context.Background(), SinglePlayer{Level: 9})
	require.ErrorIs(t, err, ErrUnknownLevel)

	snap, err := h.c.StartSession(context.Background(), SinglePlayer{Level: 1})
	require.NoError(t, err)
	assert.True(t, snap.Active)
	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, 1, snap.Level)
}

func TestRosterLevelsBeyondBuiltInOpenWithoutGating(t *testing.T) {
	roster := append(domain.DefaultOpponents(), domain.Opponent{Level: 6, Name: "Deep", Title: "Engine", Depth: 20})

	open := newHarness(t, Config{})
	open.eng.roster = roster
	open.startSingle(t, 6)
	snap := open.c.Snapshot()
	assert.Equal(t, 6, snap.Level)
	require.NotNil(t, snap.Opponent)
	assert.Equal(t, "Deep", snap.Opponent.Name)

	gated := newHarness(t, Config{Gating: true})
	gated.eng.roster = roster
	require.NoError(t, gated.c.CheckReadiness(context.Background()))
	_, err := gated.c.StartSession(context.Background(), SinglePlayer{Level: 6})
	require.ErrorIs(t, err, ErrLevelLocked)
}

// slowReadKV delays reads so concurrent read-modify-write cycles overlap.
type slowReadKV struct {
	*store.Memory
}

func (s slowReadKV) Get(ctx context.Context, key string) ([]byte, error) {
	time.Sleep(20 * time.Millisecond)
	return s.Memory.Get(ctx, key)
}

func TestConcurrentResultsOnSharedRepository(t *testing.T) {
	repo := store.NewProgressRepository(slowReadKV{Memory: store.NewMemory()}, false, nil)
	players := []*harness{
		newSharedHarness(t, Config{}, repo),
		newSharedHarness(t, Config{}, repo),
	}
	for _, h := range players {
		h.startSingle(t, 1)
		h.move(t, "e2e4")
		h.answer(t, "e7e5")
		h.move(t, "f1c4")
		h.answer(t, "b8c6")
		h.move(t, "d1h5")
		h.answer(t, "g8f6")
	}

	var wg sync.WaitGroup
	for _, h := range players {
		wg.Add(1)
		go func(h *harness) {
			defer wg.Done()
			res, err := h.c.AttemptLocalMove(context.Background(), rules.Move{From: "h5", To: "f7"})
			assert.NoError(t, err)
			assert.Equal(t, Checkmate, res.Outcome)
		}(h)
	}
	wg.Wait()

	prog, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, prog.Wins)
	assert.Zero(t, prog.Losses)
}

func TestMalformedEngineFENKeepsLocalPosition(t *testing.T) {
	h := newHarness(t, Config{})
	h.startSingle(t, 1)
	h.move(t, "e2e4")

	call := h.nextCall(t)
	call.reply <- reply{resp: &engineclient.MoveResponse{Move: "e7e5", FEN: "not a position"}}
	h.await(t)

	snap := h.c.Snapshot()
	assert.Equal(t, []string{"e4", "e5"}, snap.History)
	assert.Empty(t, snap.LastError)
	assert.Equal(t, rules.White, snap.Turn)
}

func TestThemeTogglePersists(t *testing.T) {
	h := newHarness(t, Config{})
	require.NoError(t, h.c.LoadPreferences(context.Background()))
	assert.Equal(t, domain.ThemeLight, h.c.Theme())

	theme, err := h.c.ToggleTheme(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.ThemeDark, theme)

	raw, err := h.kv.Get(context.Background(), store.KeyDarkMode)
	require.NoError(t, err)
	assert.JSONEq(t, "true", string(raw))

	other, err := NewController(Deps{Rules: rules.New(), Progress: h.progress, Preferences: h.prefs}, Config{})
	require.NoError(t, err)
	require.NoError(t, other.LoadPreferences(context.Background()))
	assert.Equal(t, domain.ThemeDark, other.Theme())
}

func TestOnChangeEvents(t *testing.T) {
	h := newHarness(t, Config{})
	var (
		mu   sync.Mutex
		seen []EventType
	)
	unsubscribe := h.c.OnChange(func(ev Event) {
		mu.Lock()
		seen = append(seen, ev.Type)
		mu.Unlock()
	})

	h.startSingle(t, 1)
	h.move(t, "e2e4")
	h.answer(t, "e7e5")
	unsubscribe()
	h.move(t, "g1f3")
	h.answer(t, "b8c6")

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, seen, EventReadinessChanged)
	assert.Contains(t, seen, EventSessionStarted)
	assert.Contains(t, seen, EventMoveApplied)
	assert.Contains(t, seen, EventRemoteRequested)
	assert.Contains(t, seen, EventRemoteApplied)
	assert.Equal(t, 1, countOf(seen, EventRemoteApplied))
}

func countOf(evs []EventType, want EventType) int {
	n := 0
	for _, ev := range evs {
		if ev == want {
			n++
		}
	}
	return n
}

func TestPGN(t *testing.T) {
	h := newHarness(t, Config{})
	_, err := h.c.PGN()
	require.ErrorIs(t, err, ErrNoSession)

	_, err = h.c.StartSession(context.Background(), TwoPlayer{})
	require.NoError(t, err)
	h.move(t, "e2e4")
	h.move(t, "e7e5")

	pgn, err := h.c.PGN()
	require.NoError(t, err)
	assert.Contains(t, pgn, "e4")
	assert.Contains(t, pgn, "e5")
}

func TestCloseCancelsPendingRequest(t *testing.T) {
	h := newHarness(t, Config{})
	h.startSingle(t, 1)
	h.move(t, "e2e4")
	h.nextCall(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.c.Close(ctx))

	_, err := h.c.AttemptLocalMove(context.Background(), rules.Move{From: "d2", To: "d4"})
	require.ErrorIs(t, err, ErrClosed)
}

func TestSamePosition(t *testing.T) {
	assert.True(t, samePosition(
		"rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR w KQkq e6 0 2",
		"rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR w KQkq - 0 2",
	))
	assert.False(t, samePosition(
		"rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR w KQkq - 0 2",
		"rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 2",
	))
}
