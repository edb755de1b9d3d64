package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/park285/checkmate-ai/internal/domain"
	"github.com/park285/checkmate-ai/internal/presenter"
	"github.com/park285/checkmate-ai/internal/render"
	"github.com/park285/checkmate-ai/internal/rules"
	"github.com/park285/checkmate-ai/internal/session"
)

type repl struct {
	ctrl        *session.Controller
	fmt         *presenter.Formatter
	renderer    *render.Renderer
	out         io.Writer
	remoteLimit time.Duration
}

// handle runs one input line and reports whether the loop should continue.
func (r *repl) handle(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	var err error
	switch cmd {
	case "quit", "exit", "q":
		return false
	case "help", "?":
		r.println(r.fmt.Help())
	case "ready", "retry":
		err = r.ctrl.CheckReadiness(ctx)
		r.println(r.fmt.Readiness(r.ctrl.Snapshot()))
	case "opponents":
		err = r.opponents(ctx)
	case "new", "start":
		err = r.start(ctx, args)
	case "move", "m":
		if len(args) == 0 {
			r.println(`usage: move e2e4 [q]`)
			return true
		}
		err = r.move(ctx, strings.Join(args, ""))
	case "retry-move":
		if err = r.ctrl.RetryRemoteMove(ctx); err == nil {
			r.awaitRemote(ctx)
		}
	case "undo":
		if _, err = r.ctrl.Undo(ctx); err == nil {
			r.println(r.fmt.Snapshot(r.ctrl.Snapshot()))
		}
	case "board", "status":
		r.println(r.fmt.Snapshot(r.ctrl.Snapshot()))
	case "pgn":
		var pgn string
		if pgn, err = r.ctrl.PGN(); err == nil {
			r.println(pgn)
		}
	case "png":
		err = r.savePNG(ctx, args)
	case "stats":
		err = r.stats(ctx)
	case "theme":
		var theme domain.Theme
		if theme, err = r.ctrl.ToggleTheme(ctx); err == nil {
			r.println("theme: " + string(theme))
		}
	default:
		// bare coordinates are moves
		if _, perr := rules.ParseMove(line); perr == nil {
			err = r.move(ctx, line)
		} else {
			r.println(`unknown command; type "help"`)
		}
	}
	if err != nil {
		r.reportError(err)
	}
	return true
}

func (r *repl) start(ctx context.Context, args []string) error {
	var mode session.Mode = session.SinglePlayer{Level: 1}
	if len(args) > 0 {
		if arg := strings.ToLower(args[0]); arg == "pvp" || arg == "two" {
			mode = session.TwoPlayer{}
		} else {
			level, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("level must be a number or pvp: %q", args[0])
			}
			mode = session.SinglePlayer{Level: level}
		}
	}
	snap, err := r.ctrl.StartSession(ctx, mode)
	if err != nil {
		return err
	}
	r.println(r.fmt.Snapshot(snap))
	return nil
}

func (r *repl) move(ctx context.Context, text string) error {
	mv, err := rules.ParseMove(text)
	if err != nil {
		return fmt.Errorf("%w: %s", session.ErrIllegalMove, strings.TrimSpace(text))
	}
	res, err := r.ctrl.AttemptLocalMove(ctx, mv)
	if err != nil {
		return err
	}
	r.println(r.fmt.Snapshot(r.ctrl.Snapshot()))
	if res.RemoteScheduled {
		snap := r.ctrl.Snapshot()
		if snap.Opponent != nil {
			r.println(fmt.Sprintf("%s is thinking...", snap.Opponent.Name))
		}
		r.awaitRemote(ctx)
	}
	return nil
}

func (r *repl) awaitRemote(ctx context.Context) {
	waitCtx, cancel := context.WithTimeout(ctx, r.remoteLimit)
	defer cancel()
	if err := r.ctrl.AwaitRemote(waitCtx); err != nil {
		r.println("still waiting for the engine; type \"board\" later")
		return
	}
	r.println(r.fmt.Snapshot(r.ctrl.Snapshot()))
}

func (r *repl) opponents(ctx context.Context) error {
	prog, err := r.ctrl.Progression(ctx)
	if err != nil {
		return err
	}
	r.println(r.fmt.Opponents(r.ctrl.Opponents(), prog, r.ctrl.Gating()))
	return nil
}

func (r *repl) stats(ctx context.Context) error {
	prog, err := r.ctrl.Progression(ctx)
	if err != nil {
		return err
	}
	r.println(r.fmt.Stats(prog))
	return nil
}

func (r *repl) savePNG(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: png <file>")
	}
	snap := r.ctrl.Snapshot()
	if !snap.Active {
		return session.ErrNoSession
	}
	data, err := r.renderer.RenderPNG(ctx, snap.FEN, r.fmt.RenderOptions(snap))
	if err != nil {
		return err
	}
	if err := os.WriteFile(args[0], data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", args[0], err)
	}
	r.println("saved " + args[0])
	return nil
}

// reportError prefers the controller's notice text when one was raised.
func (r *repl) reportError(err error) {
	if notice := r.ctrl.Snapshot().Notice; notice.Transient && notice.Text != "" {
		r.println("! " + notice.Text)
		return
	}
	r.println("error: " + err.Error())
}

func (r *repl) println(s string) {
	fmt.Fprintln(r.out, s)
}
