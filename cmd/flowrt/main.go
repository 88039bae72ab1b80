// Command flowrt is the process entrypoint: it bootstraps configuration
// and logging, wires the registry, tag cache, historian, tracer, script
// host and flow store, registers every built-in node kind, and serves the
// admin HTTP API until an interrupt or SIGTERM triggers graceful shutdown.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/flowrt/flowrt/internal/adminapi"
	"github.com/flowrt/flowrt/internal/bootstrap"
	"github.com/flowrt/flowrt/internal/exec"
	"github.com/flowrt/flowrt/internal/flowstore"
	"github.com/flowrt/flowrt/internal/historian"
	"github.com/flowrt/flowrt/internal/nodes"
	"github.com/flowrt/flowrt/internal/registry"
	"github.com/flowrt/flowrt/internal/scripthost"
	"github.com/flowrt/flowrt/internal/server"
	"github.com/flowrt/flowrt/internal/tagcache"
	"github.com/flowrt/flowrt/internal/tracer"
	"github.com/flowrt/flowrt/internal/tracestore/pg"
	"github.com/flowrt/flowrt/internal/transport"
)

func main() {
	ctx := context.Background()

	components, err := bootstrap.Setup(ctx, "flowrt")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to bootstrap flowrt: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	cfg := components.Config
	log := components.Logger

	reg := registry.New(log)
	nodes.RegisterAll(reg)

	tags := tagcache.New()
	tags.SetWritesDisabled(cfg.Engine.DisableWrites)

	hist := historian.New(cfg.Engine.HistorianDataDirectory)
	trc := tracer.New()
	scripts := scripthost.New(log)
	scripts.Timeout = cfg.Engine.ScriptTimeout

	store := flowstore.New(cfg.Engine.ConfigDirectory, log)
	if err := store.Watch(); err != nil {
		log.Warn("flow store watch disabled", "error", err)
	}
	defer store.Close()

	var traceSink *pg.Sink
	if components.Postgres != nil {
		traceSink = pg.New(components.Postgres)
		if err := traceSink.Migrate(ctx); err != nil {
			log.Warn("trace store migration failed", "error", err)
			traceSink = nil
		} else {
			log.Info("postgres trace sink ready")
		}
	}

	var publisher *transport.Publisher
	if components.Redis != nil {
		publisher = transport.New(components.Redis, cfg.Redis.Root, log)
		log.Info("redis transport ready", "root", cfg.Redis.Root)
	}

	executor := &exec.Executor{
		Tags:          tags,
		TagWriter:     tags,
		Historian:     hist,
		Script:        scripts,
		Logger:        log,
		Tracer:        trc,
		Transport:     publisher,
		TraceSink:     traceSink,
		DisableWrites: cfg.Engine.DisableWrites,
	}

	api := &adminapi.API{
		Registry:  reg,
		Executor:  executor,
		Tracer:    trc,
		TraceSink: traceSink,
		Historian: hist,
		Store:     store,
		Logger:    log,
	}

	srv := server.New("flowrt", cfg.Service.Port, api.NewEcho(), log)
	if err := srv.Start(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
