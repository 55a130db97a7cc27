package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ncecere/voice_gateway/internal/app"
	"github.com/ncecere/voice_gateway/internal/config"
	"github.com/ncecere/voice_gateway/internal/httpserver"
	"github.com/ncecere/voice_gateway/internal/observability/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(config.Options{})
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logging.Init(cfg.Logging)

	container, err := app.NewContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("build container: %v", err)
	}
	if container.Observability != nil {
		defer container.Observability.Shutdown(ctx)
	}

	server, err := httpserver.New(container)
	if err != nil {
		log.Fatalf("construct server: %v", err)
	}

	if err := server.Listen(ctx); err != nil && err != context.Canceled {
		log.Fatalf("server stopped: %v", err)
	}
}
