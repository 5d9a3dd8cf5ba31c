package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/manta-auv/hub/internal/config"
	"github.com/manta-auv/hub/internal/hub"
	"github.com/manta-auv/hub/internal/logbook"
	"github.com/manta-auv/hub/internal/monitor"
	"github.com/manta-auv/hub/internal/vars"
)

func main() {
	configPath := flag.String("c", "", "Path to config file (built-in defaults when empty)")
	port := flag.Int("port", 0, "Override server port")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	threshold, err := logbook.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	lb, err := logbook.Open(logbook.Options{
		Threshold:       threshold,
		File:            cfg.Log.File,
		ReplicateStdout: cfg.Log.ReplicateStdout,
		JournalPath:     cfg.Log.Journal,
	})
	if err != nil {
		log.Fatalf("Failed to open logbook: %v", err)
	}

	defs := make([]vars.Definition, 0, len(cfg.Variables))
	for _, v := range cfg.Variables {
		defs = append(defs, vars.Definition{Name: v.Name, Default: v.Default, ReadOnly: v.ReadOnly})
	}
	if cfg.Monitor.Enabled {
		defs = append(defs, monitor.Definitions()...)
	}
	store, err := vars.New(defs)
	if err != nil {
		log.Fatalf("Invalid variable definitions: %v", err)
	}

	srv := hub.New(cfg, store, lb)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Monitor.Enabled {
		mon, err := monitor.New(store, lb, time.Duration(cfg.Monitor.Interval))
		if err != nil {
			log.Fatalf("Failed to start resource monitor: %v", err)
		}
		go mon.Run(ctx)
	}

	if err := srv.Serve(ctx); err != nil {
		log.Fatalf("Hub error: %v", err)
	}
}
