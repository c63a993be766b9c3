package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lamvt/vaultstream/config"
	"github.com/lamvt/vaultstream/consumer/worker"
	infraPkg "github.com/lamvt/vaultstream/infra"
	"github.com/lamvt/vaultstream/repository"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found, continuing with environment variables")
	}

	cfg := config.NewConfig()
	infra := infraPkg.InitInfra(cfg)
	repo := repository.InitRepository(infra)

	if infra.RabbitMQ == nil {
		log.Fatal("RabbitMQ is required for the prewarm consumer")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	prewarmConsumer := worker.NewPrewarmConsumer(infra.RabbitMQ.Channel, cfg.EnvConfig, infra, repo)
	if err := prewarmConsumer.Start(ctx); err != nil {
		infra.Logger.ErrorWithContextf(ctx, err, "Failed to start prewarm consumer: %v", err)
		log.Fatalf("Failed to start prewarm consumer: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	infra.Logger.InfoWithContextf(ctx, "Shutting down consumer...")
	cancel()

	infra.Logger.InfoWithContextf(ctx, "Consumer exited properly")
}
