// Package appbuilder wires configuration into the running components.
package appbuilder

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/checkmate-ai/internal/config"
	"github.com/park285/checkmate-ai/internal/engineclient"
	"github.com/park285/checkmate-ai/internal/msgcat"
	"github.com/park285/checkmate-ai/internal/obslog"
	"github.com/park285/checkmate-ai/internal/presenter"
	"github.com/park285/checkmate-ai/internal/render"
	"github.com/park285/checkmate-ai/internal/rules"
	"github.com/park285/checkmate-ai/internal/session"
	"github.com/park285/checkmate-ai/internal/store"
)

type Deps struct {
	Config    *config.AppConfig
	Rules     rules.Engine
	Client    *engineclient.Client
	KV        store.KV
	Progress  *store.ProgressRepository
	Prefs     *store.PreferenceRepository
	Messages  *msgcat.Catalog
	Formatter *presenter.Formatter
	Renderer  *render.Renderer

	logger *zap.Logger
}

func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	msgs, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	kv, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}

	opts := []engineclient.Option{
		engineclient.WithTimeout(cfg.Engine.RequestTimeout),
		engineclient.WithMaxConnsPerHost(cfg.Engine.MaxConnsPerHost),
		engineclient.WithRetry(cfg.Engine.Retry),
		engineclient.WithLogger(logger.Named("engine")),
	}
	if key := strings.TrimSpace(cfg.Engine.APIKey); key != "" {
		opts = append(opts, engineclient.WithHeaderProvider(func() map[string]string {
			return map[string]string{"X-API-Key": key}
		}))
	}

	engine := rules.New()
	d := &Deps{
		Config:    cfg,
		Rules:     engine,
		Client:    engineclient.NewClient(cfg.Engine.BaseURL, opts...),
		KV:        kv,
		Progress:  store.NewProgressRepository(kv, cfg.Session.ProgressionGating, logger.Named("store")),
		Prefs:     store.NewPreferenceRepository(kv),
		Messages:  msgs,
		Formatter: presenter.NewFormatter(msgs, engine),
		Renderer:  render.New(engine),
		logger:    logger,
	}
	logger.Info("components ready",
		zap.String("engine", cfg.Engine.BaseURL),
		zap.String("store", cfg.Store.Backend),
		zap.Bool("gating", cfg.Session.ProgressionGating),
	)
	return d, nil
}

// NewController returns a controller sharing this process's store and engine client.
func (d *Deps) NewController() (*session.Controller, error) {
	return session.NewController(session.Deps{
		Rules:       d.Rules,
		Remote:      d.Client,
		Progress:    d.Progress,
		Preferences: d.Prefs,
		Messages:    d.Messages,
		Logger:      d.logger.Named("session"),
	}, session.Config{
		ReadinessTimeout: d.Config.Engine.ReadinessTimeout,
		MoveTimeout:      d.Config.Engine.MoveTimeout,
		MoveDelay:        d.Config.Engine.MoveDelay,
		NoticeTTL:        d.Config.Session.NoticeTTL,
		Gating:           d.Config.Session.ProgressionGating,
	})
}

func (d *Deps) Close() error {
	if d == nil || d.KV == nil {
		return nil
	}
	return d.KV.Close()
}

// LogOptions maps the log section of the config onto obslog options.
func LogOptions(cfg config.Log, console io.Writer) obslog.Options {
	return obslog.Options{
		Level:     cfg.Level,
		Format:    cfg.Format,
		ToConsole: cfg.ToConsole,
		ToFile:    cfg.ToFile,
		File:      cfg.File,
		Caller:    cfg.Caller,
		Console:   console,
	}
}
