package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/buildgrid/ngexec/internal/api"
	"github.com/buildgrid/ngexec/internal/config"
	"github.com/buildgrid/ngexec/internal/executor"
	"github.com/buildgrid/ngexec/internal/pool"
	"github.com/buildgrid/ngexec/internal/runner"
	"github.com/buildgrid/ngexec/internal/store"
	"github.com/buildgrid/ngexec/internal/telemetry"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("ngexecd starting...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := config.EnsureDirs(cfg); err != nil {
		log.Fatalf("Failed to create directories: %v", err)
	}

	st, err := store.NewLocal(cfg.Executor.StoreDir)
	if err != nil {
		log.Fatalf("Failed to open content store: %v", err)
	}

	local, err := executor.NewLocal(st, cfg.Executor.ScratchDir)
	if err != nil {
		log.Fatalf("Failed to create executor: %v", err)
	}

	hub := telemetry.NewHub()
	go hub.Run()
	sink := telemetry.MultiSink{telemetry.LogSink{}, hub}

	p, err := pool.New(local, st, sink, config.BaseDir(), cfg.Pool.StartupTimeout())
	if err != nil {
		log.Fatalf("Failed to create nailgun pool: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	monitor := pool.NewMonitor(p, cfg.Pool.MonitorInterval())
	monitor.Start(ctx)

	r := runner.New(local, p, sink, cfg.Nailgun.WorkdirBase, cfg.Nailgun.Distribution)

	mux := http.NewServeMux()
	mux.Handle("/", api.NewServer(r, p).Handler())
	mux.HandleFunc("GET /ws", hub.ServeWS)

	go func() {
		if err := api.ListenAndServe(api.FormatAddr(cfg.API.Port), mux); err != nil {
			log.Fatalf("API server failed: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	// Resident servers survive the daemon; the state snapshot lets the
	// next ngexecd adopt them.
	log.Println("ngexecd shutting down (resident servers left running)")
	monitor.Stop()
	hub.Stop()
}
