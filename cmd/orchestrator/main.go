package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	app "github.com/maieve/fleet-orchestrator/internal/app"
	"github.com/maieve/fleet-orchestrator/internal/app/httpapi"
	"github.com/maieve/fleet-orchestrator/internal/app/storage/postgres"
	"github.com/maieve/fleet-orchestrator/internal/config"
	"github.com/maieve/fleet-orchestrator/internal/platform/database"
	"github.com/maieve/fleet-orchestrator/internal/platform/fleetclient"
	"github.com/maieve/fleet-orchestrator/internal/platform/migrations"
	"github.com/maieve/fleet-orchestrator/pkg/logger"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address (overrides config/env; defaults to :8080)")
	dsn := flag.String("dsn", "", "PostgreSQL DSN (overrides config/env; in-memory storage when empty)")
	configPath := flag.String("config", "", "path to a YAML configuration file")
	platformURL := flag.String("platform-url", "", "fleet platform API base URL (overrides PLATFORM_URL)")
	runMigrations := flag.Bool("migrate", true, "run embedded database migrations on startup (ignored for in-memory)")
	flag.Parse()

	if trimmed := strings.TrimSpace(*configPath); trimmed != "" {
		os.Setenv("CONFIG_FILE", trimmed)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if dsnVal := strings.TrimSpace(*dsn); dsnVal != "" {
		cfg.Database.DSN = dsnVal
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	appLog := logger.New(logger.LoggingConfig{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: cfg.Logging.Output})

	rootCtx := context.Background()

	stores := app.Stores{}
	var db *sqlx.DB
	if dsnVal := strings.TrimSpace(cfg.Database.DSN); dsnVal != "" {
		db, err = database.Open(rootCtx, dsnVal)
		if err != nil {
			log.Fatalf("connect to postgres: %v", err)
		}
		configurePool(db, cfg)
		if *runMigrations && cfg.Database.MigrateOnStart {
			if err := migrations.Apply(rootCtx, db.DB); err != nil {
				log.Fatalf("apply migrations: %v", err)
			}
		}
		stores = app.Stores{
			Trigger:      postgres.NewTriggerStore(db),
			LoadCtl:      postgres.NewLoadCtlStore(db),
			Upgrade:      postgres.NewUpgradeStore(db),
			Orchestrator: postgres.NewOrchestratorStore(db),
		}
		defer db.Close()
	}

	platformBaseURL := strings.TrimSpace(*platformURL)
	if platformBaseURL == "" {
		platformBaseURL = strings.TrimSpace(os.Getenv("PLATFORM_URL"))
	}
	deadlines := fleetclient.Deadlines{
		Read:    cfg.Runtime.RPCDeadlines.Read,
		Write:   cfg.Runtime.RPCDeadlines.Write,
		Catalog: cfg.Runtime.RPCDeadlines.Catalog,
	}
	fleet := fleetclient.New(platformBaseURL, deadlines)

	application, err := app.New(stores, app.PlatformClients{
		Orchestrator: fleet,
		Upgrade:      fleet,
	}, appLog, app.WithRuntimeConfig(app.RuntimeConfig{
		SweepInterval:     cfg.Runtime.SweepInterval,
		ReconcileInterval: cfg.Runtime.ReconcileInterval,
	}))
	if err != nil {
		log.Fatalf("initialise application: %v", err)
	}

	listenAddr := determineAddr(*addr, cfg)
	httpService := httpapi.NewService(application, httpapi.Config{
		Addr:          listenAddr,
		JWTSecret:     cfg.Auth.JWTSecret,
		RatePerSecond: cfg.Auth.RatePerSecond,
		RateBurst:     cfg.Auth.RateBurst,
	}, appLog)
	if err := application.Attach(httpService); err != nil {
		log.Fatalf("attach http service: %v", err)
	}

	if err := application.Start(rootCtx); err != nil {
		log.Fatalf("start application: %v", err)
	}
	log.Printf("fleet orchestrator listening on %s", listenAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := application.Stop(shutdownCtx); err != nil {
		log.Fatalf("shutdown: %v", err)
	}
}

func determineAddr(flagAddr string, cfg *config.Config) string {
	if addr := strings.TrimSpace(flagAddr); addr != "" {
		return addr
	}
	return cfg.Server.Addr()
}

func configurePool(db *sqlx.DB, cfg *config.Config) {
	if cfg.Database.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}
	if cfg.Database.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	}
	if cfg.Database.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Second)
	}
}

