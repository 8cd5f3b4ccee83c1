package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dbworkbench/core/api"
	"github.com/dbworkbench/core/config"
	"github.com/dbworkbench/core/metrics"
	"github.com/dbworkbench/core/pool"
)

func main() {
	configPath := flag.String("config", "configs/workbenchd.yaml", "path to configuration file")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("workbenchd starting...")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	log.Printf("configuration loaded from %s (%d profiles)", *configPath, len(cfg.Profiles))

	m := metrics.New()
	manager := pool.NewManager()

	statsLoop := metrics.NewStatsLoop(manager, m, 5*time.Second)
	statsLoop.Start()

	apiServer := api.NewServer(manager, m, cfg.Listen)
	if err := apiServer.Start(); err != nil {
		log.Fatalf("failed to start api server: %v", err)
	}

	configWatcher, err := config.NewWatcher(*configPath, func(newCfg *config.Config) {
		log.Printf("reloading configuration...")
		cfg = newCfg
	})
	if err != nil {
		log.Printf("warning: config hot-reload not available: %v", err)
	}

	log.Printf("workbenchd ready - API:%s:%d", cfg.Listen.APIBind, cfg.Listen.APIPort)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("received signal %s, shutting down...", sig)

	if configWatcher != nil {
		configWatcher.Stop()
	}
	statsLoop.Stop()
	apiServer.Stop()
	manager.CloseAll()

	log.Printf("workbenchd stopped")
}
