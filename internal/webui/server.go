// Package webui bridges a browser page to a session controller over a websocket.
// Each connection owns one controller.
package webui

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/checkmate-ai/internal/presenter"
	"github.com/park285/checkmate-ai/internal/render"
	"github.com/park285/checkmate-ai/internal/rules"
	"github.com/park285/checkmate-ai/internal/session"
	"github.com/park285/checkmate-ai/pkg/chessdto"
)

// ControllerFactory builds a fresh controller for one connection.
type ControllerFactory func(ctx context.Context) (*session.Controller, error)

type Option func(*Server)

// WithOriginPatterns allows cross-origin pages matching the given host patterns.
func WithOriginPatterns(patterns ...string) Option {
	return func(s *Server) { s.origins = append(s.origins, patterns...) }
}

func WithPingInterval(d time.Duration) Option {
	return func(s *Server) { s.pingInterval = d }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

type Server struct {
	factory      ControllerFactory
	formatter    *presenter.Formatter
	renderer     *render.Renderer
	logger       *zap.Logger
	origins      []string
	pingInterval time.Duration
	writeTimeout time.Duration

	wg sync.WaitGroup
}

func NewServer(factory ControllerFactory, formatter *presenter.Formatter, renderer *render.Renderer, opts ...Option) *Server {
	s := &Server{
		factory:      factory,
		formatter:    formatter,
		renderer:     renderer,
		logger:       zap.NewNop(),
		pingInterval: 30 * time.Second,
		writeTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}

// Wait blocks until every connection handler has returned.
func (s *Server) Wait() { s.wg.Wait() }

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	s.wg.Add(1)
	defer s.wg.Done()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  s.origins,
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		s.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "connection handler exited")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ctrl, err := s.factory(ctx)
	if err != nil {
		s.logger.Error("controller setup failed", zap.Error(err))
		_ = conn.Close(websocket.StatusInternalError, "controller setup failed")
		return
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		_ = ctrl.Close(closeCtx)
	}()

	c := &client{
		srv:   s,
		conn:  conn,
		ctrl:  ctrl,
		out:   make(chan chessdto.Frame, 32),
		dirty: make(chan struct{}, 1),
	}
	unsubscribe := ctrl.OnChange(c.onEvent)
	defer unsubscribe()

	if err := ctrl.LoadPreferences(ctx); err != nil {
		s.logger.Warn("load preferences failed", zap.Error(err))
	}

	var loops sync.WaitGroup
	loops.Add(2)
	go func() {
		defer loops.Done()
		c.writeLoop(ctx)
		cancel()
	}()
	go func() {
		defer loops.Done()
		c.pingLoop(ctx)
	}()

	c.markDirty()
	go func() {
		if err := ctrl.CheckReadiness(ctx); err != nil {
			s.logger.Info("engine not ready for new connection", zap.Error(err))
		}
	}()

	err = c.readLoop(ctx)
	cancel()
	loops.Wait()

	status := websocket.CloseStatus(err)
	if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
		return
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Debug("websocket closed", zap.Error(err))
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

type client struct {
	srv   *Server
	conn  *websocket.Conn
	ctrl  *session.Controller
	out   chan chessdto.Frame
	dirty chan struct{}
}

func (c *client) onEvent(ev session.Event) {
	c.markDirty()
	if ev.Type == session.EventNotice {
		notice := c.ctrl.Snapshot().Notice
		if notice.Key == "" {
			return
		}
		c.tryPush(newFrame(chessdto.FrameNotice, chessdto.Notice{Key: notice.Key, Text: notice.Text, Transient: notice.Transient}))
	}
}

func (c *client) markDirty() {
	select {
	case c.dirty <- struct{}{}:
	default:
	}
}

// tryPush drops the frame when the writer is backed up; the next state frame carries the same data.
func (c *client) tryPush(f chessdto.Frame) {
	select {
	case c.out <- f:
	default:
		c.srv.logger.Debug("dropping frame", zap.String("type", f.Type))
	}
}

func (c *client) push(ctx context.Context, f chessdto.Frame) {
	select {
	case c.out <- f:
	case <-ctx.Done():
	}
}

func (c *client) readLoop(ctx context.Context) error {
	for {
		var cmd chessdto.Command
		if err := wsjson.Read(ctx, c.conn, &cmd); err != nil {
			return err
		}
		c.handle(ctx, cmd)
	}
}

func (c *client) writeLoop(ctx context.Context) {
	for {
		var frame chessdto.Frame
		select {
		case <-ctx.Done():
			return
		case frame = <-c.out:
		case <-c.dirty:
			frame = c.stateFrame(ctx)
		}
		wctx, cancel := context.WithTimeout(ctx, c.srv.writeTimeout)
		err := wsjson.Write(wctx, c.conn, frame)
		cancel()
		if err != nil {
			c.srv.logger.Debug("websocket write failed", zap.Error(err))
			return
		}
	}
}

func (c *client) pingLoop(ctx context.Context) {
	if c.srv.pingInterval <= 0 {
		return
	}
	t := time.NewTicker(c.srv.pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := c.conn.Ping(pctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				_ = c.conn.Close(websocket.StatusGoingAway, "ping failure")
				return
			}
		}
	}
}

func (c *client) stateFrame(ctx context.Context) chessdto.Frame {
	snap := c.ctrl.Snapshot()
	prog, err := c.ctrl.Progression(ctx)
	if err != nil {
		c.srv.logger.Warn("load progression failed", zap.Error(err))
		return newFrame(chessdto.FrameState, c.srv.formatter.ToDTOState(snap, nil))
	}
	return newFrame(chessdto.FrameState, c.srv.formatter.ToDTOState(snap, &prog))
}

func (c *client) handle(ctx context.Context, cmd chessdto.Command) {
	var err error
	switch cmd.Type {
	case chessdto.CmdStart:
		var mode session.Mode = session.SinglePlayer{Level: cmd.Level}
		if cmd.Mode == "pvp" {
			mode = session.TwoPlayer{}
		}
		_, err = c.ctrl.StartSession(ctx, mode)
	case chessdto.CmdMove:
		var res session.MoveResult
		res, err = c.ctrl.AttemptLocalMove(ctx, rules.Move{From: cmd.From, To: cmd.To, Promotion: cmd.Promotion})
		if err == nil {
			c.push(ctx, newFrame(chessdto.FrameMove, presenter.ToDTOMove(res)))
		}
	case chessdto.CmdUndo:
		_, err = c.ctrl.Undo(ctx)
	case chessdto.CmdRetry:
		err = c.ctrl.CheckReadiness(ctx)
	case chessdto.CmdRetryRemote:
		err = c.ctrl.RetryRemoteMove(ctx)
	case chessdto.CmdTheme:
		_, err = c.ctrl.ToggleTheme(ctx)
	case chessdto.CmdSnapshot:
		c.markDirty()
	case chessdto.CmdImage:
		err = c.sendImage(ctx)
	default:
		c.push(ctx, newFrame(chessdto.FrameError, chessdto.DomainError{Code: "bad_request", Message: "unknown command " + cmd.Type}))
		return
	}
	if err != nil {
		c.push(ctx, newFrame(chessdto.FrameError, toDomainError(err)))
	}
}

func (c *client) sendImage(ctx context.Context) error {
	snap := c.ctrl.Snapshot()
	if !snap.Active {
		return session.ErrNoSession
	}
	data, err := c.srv.renderer.RenderPNG(ctx, snap.FEN, c.srv.formatter.RenderOptions(snap))
	if err != nil {
		return err
	}
	c.push(ctx, newFrame(chessdto.FrameImage, chessdto.ImagePayload{MIME: "image/png", Base64: base64.StdEncoding.EncodeToString(data)}))
	return nil
}

func newFrame(typ string, payload any) chessdto.Frame {
	data, err := json.Marshal(payload)
	if err != nil {
		data, _ = json.Marshal(chessdto.DomainError{Code: "internal", Message: err.Error()})
		typ = chessdto.FrameError
	}
	return chessdto.Frame{Type: typ, Data: data}
}

func toDomainError(err error) chessdto.DomainError {
	codes := []struct {
		target    error
		code      string
		retryable bool
	}{
		{session.ErrIllegalMove, "illegal_move", false},
		{session.ErrTurnViolation, "turn_violation", false},
		{session.ErrRemoteUnavailable, "remote_unavailable", true},
		{session.ErrRemoteMoveFailure, "remote_failed", true},
		{session.ErrRemoteNotPending, "remote_not_pending", false},
		{session.ErrNoSession, "no_session", false},
		{session.ErrGameOver, "game_over", false},
		{session.ErrUndoUnavailable, "undo_unavailable", false},
		{session.ErrLevelLocked, "level_locked", false},
		{session.ErrUnknownLevel, "unknown_level", false},
		{session.ErrClosed, "closed", false},
	}
	for _, c := range codes {
		if errors.Is(err, c.target) {
			return chessdto.DomainError{Code: c.code, Message: err.Error(), Retryable: c.retryable}
		}
	}
	return chessdto.DomainError{Code: "internal", Message: err.Error()}
}
