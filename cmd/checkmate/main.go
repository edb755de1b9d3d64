package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/chzyer/readline"
	"go.uber.org/zap"

	"github.com/park285/checkmate-ai/internal/appbuilder"
	appcfg "github.com/park285/checkmate-ai/internal/config"
	"github.com/park285/checkmate-ai/internal/obslog"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.Init(appbuilder.LogOptions(cfg.Log, os.Stderr)); err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer obslog.Sync()
	logger := obslog.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := appbuilder.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("init failed", zap.Error(err))
	}
	defer deps.Close()

	ctrl, err := deps.NewController()
	if err != nil {
		logger.Fatal("controller init failed", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = ctrl.Close(closeCtx)
	}()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "checkmate> ",
		HistoryFile:     historyFile(),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		logger.Fatal("readline init failed", zap.Error(err))
	}
	defer rl.Close()

	r := &repl{
		ctrl:        ctrl,
		fmt:         deps.Formatter,
		renderer:    deps.Renderer,
		out:         rl.Stdout(),
		remoteLimit: cfg.Engine.MoveDelay + cfg.Engine.MoveTimeout + time.Second,
	}
	if err := ctrl.LoadPreferences(ctx); err != nil {
		logger.Warn("load preferences failed", zap.Error(err))
	}
	r.handle(ctx, "ready")
	fmt.Fprintln(r.out, `Type "help" for commands.`)

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if strings.TrimSpace(line) == "" {
				return
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			logger.Error("read input failed", zap.Error(err))
			return
		}
		if !r.handle(ctx, line) {
			return
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func historyFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "checkmate_history")
}
