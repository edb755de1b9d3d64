package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	appcfg "github.com/park285/checkmate-ai/internal/config"
	"github.com/park285/checkmate-ai/internal/engineclient"
	"github.com/park285/checkmate-ai/internal/rules"
)

func main() {
	cfgURL := flag.String("url", "", "engine base URL (default: ENGINE_BASE_URL or config)")
	level := flag.Int("level", 0, "also request a move from the start position at this level")
	timeout := flag.Duration("timeout", 10*time.Second, "per-request timeout")
	flag.Parse()

	baseURL := *cfgURL
	if baseURL == "" {
		cfg, err := appcfg.Load()
		if err != nil {
			log.Fatalf("config error: %v", err)
		}
		baseURL = cfg.Engine.BaseURL
	}

	client := engineclient.NewClient(baseURL, engineclient.WithTimeout(*timeout), engineclient.WithRetry(0))

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	if err := client.Health(ctx); err != nil {
		log.Fatalf("/health error: %v", err)
	}
	log.Printf("/health ok: %s", baseURL)

	roster, err := client.Opponents(ctx)
	if err != nil {
		log.Printf("/opponents error: %v", err)
	} else {
		for _, o := range roster {
			fmt.Printf("level %d: %s (%s) depth=%d blunder=%.2f\n", o.Level, o.Name, o.Title, o.Depth, o.BlunderChance)
		}
	}

	if v, err := client.ValidateMove(ctx, rules.StartFEN, "e2e4"); err != nil {
		log.Printf("/validate-move error: %v", err)
	} else {
		log.Printf("/validate-move ok: valid=%v", v.Valid)
	}

	if *level <= 0 {
		return
	}
	mctx, mcancel := context.WithTimeout(context.Background(), *timeout)
	defer mcancel()
	start := time.Now()
	resp, err := client.GetMove(mctx, rules.StartFEN, *level)
	if err != nil {
		log.Fatalf("/get-move error: %v", err)
	}
	log.Printf("/get-move ok in %s: move=%s check=%v", time.Since(start).Round(time.Millisecond), resp.Move, resp.IsCheck)
}
