package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/quantaex/matchcore/params"
	"github.com/quantaex/matchcore/pkg/api"
	"github.com/quantaex/matchcore/pkg/feed"
	"github.com/quantaex/matchcore/pkg/journal"
	"github.com/quantaex/matchcore/pkg/match"
	"github.com/quantaex/matchcore/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.LogFile)

	// ---- Engine channels ----
	orders := make(chan *match.Order, cfg.Engine.OrderBuffer)
	ticks := make(chan match.Tick, cfg.Engine.TickBuffer)
	results := make(chan *match.TradeResult, cfg.Engine.ResultBuffer)

	engine := match.NewEngine(orders, ticks, results, cfg.Engine.DrainPoll, sugar)

	// ---- Journal (optional) ----
	var jnl *journal.Journal
	if cfg.Journal.Enabled {
		jnl, err = journal.Open(cfg.Journal.Path)
		if err != nil {
			sugar.Fatalw("journal_open_failed", "path", cfg.Journal.Path, "err", err)
		}
		defer jnl.Close()
		sugar.Infow("journal_opened", "path", cfg.Journal.Path)
	}

	// ---- API (optional) ----
	var server *api.Server
	if cfg.API.Enabled {
		server = api.NewServer(engine, jnl, sugar)
		go func() {
			if err := server.Start(cfg.API.Addr); err != nil {
				sugar.Fatalw("api_server_failed", "err", err)
			}
		}()
	}

	// ---- Output pumps ----
	// One consumer per outbound channel: fan-out to journal and WebSocket
	// happens inside a single goroutine so emission order is preserved.
	var pumps sync.WaitGroup
	pumps.Add(2)
	go func() {
		defer pumps.Done()
		for t := range ticks {
			if jnl != nil {
				if err := jnl.AppendTick(t); err != nil {
					sugar.Errorw("journal_tick_failed", "err", err)
				}
			}
			if server != nil {
				server.BroadcastTick(t)
			}
		}
	}()
	go func() {
		defer pumps.Done()
		for r := range results {
			if jnl != nil {
				if err := jnl.AppendResult(r); err != nil {
					sugar.Errorw("journal_result_failed", "err", err)
				}
			}
			if server != nil {
				server.BroadcastResult(r)
			}
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Order feeder (optional, local testing) ----
	if cfg.Feed.Enabled {
		feed.Start(ctx, orders, feed.Config{
			Seed:      cfg.Feed.Seed,
			BatchSize: cfg.Feed.BatchSize,
			Interval:  cfg.Feed.Interval,
		}, sugar)
	}

	sugar.Infow("engine_started")
	engine.Run(ctx) // blocks until signal, then drains

	// Engine is the only sender on the outbound channels; closing them
	// after Run returns lets the pumps finish flushing.
	close(ticks)
	close(results)
	pumps.Wait()

	sugar.Infow("engine_stopped", "fingerprint", engine.FingerprintHex())
}
