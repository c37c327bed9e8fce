package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/EasyE-base/neural-command-layer/internal/di"
	"github.com/EasyE-base/neural-command-layer/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	log.Printf("env=%s port=%d risk=%s market=%s confirmation=%s",
		cfg.Environment, cfg.Server.Port, cfg.Risk.Mode, cfg.Evidence.MarketSource, cfg.Confirmation.Mode)

	err = app.Run(context.Background())
	cleanup()
	if err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
