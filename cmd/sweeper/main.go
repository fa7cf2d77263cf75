// Standalone janitor process: runs only the expired-session sweeper, for
// deployments that prefer cleanup isolated from the API instances.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/relay-id/authsvc/internal/config"
	"github.com/relay-id/authsvc/internal/pool"
	"github.com/relay-id/authsvc/internal/sqlconn"
	"github.com/relay-id/authsvc/internal/sweeper"
	"github.com/relay-id/authsvc/internal/tokenstore"
	"github.com/relay-id/authsvc/pkg/logger"
)

func main() {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log := logger.Setup(cfg.Server.Env)
	log.Info("sweeper_startup", "env", cfg.Server.Env)

	factory := sqlconn.Factory(cfg.DSN(), cfg.Database.MaxRetries,
		time.Duration(cfg.Database.RetryIntervalMs)*time.Millisecond)
	dbPool, err := pool.New(context.Background(), 1, factory, log)
	if err != nil {
		log.Error("database_pool_create_failed", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	sw := sweeper.New(tokenstore.New(dbPool), 10*time.Minute, log)
	sw.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("sweeper_shutting_down")
	sw.Stop()
}
