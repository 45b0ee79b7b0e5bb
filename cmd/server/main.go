package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/conductorhq/conductor/internal/auth"
	"github.com/conductorhq/conductor/internal/billing"
	"github.com/conductorhq/conductor/internal/config"
	"github.com/conductorhq/conductor/internal/db"
	"github.com/conductorhq/conductor/internal/ids"
	"github.com/conductorhq/conductor/internal/notify"
	"github.com/conductorhq/conductor/internal/pdf"
	"github.com/conductorhq/conductor/internal/render"
	"github.com/conductorhq/conductor/internal/server"
)

var migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and exit")

func main() {
	flag.Parse()
	_ = godotenv.Load()
	cfg := config.Load()

	if *migrateOnlyFlag {
		if _, err := db.ConnectAndMigrate(cfg.DatabaseDSN); err != nil {
			log.Fatalf("migrate-only failed: %v", err)
		}
		log.Println("migrations completed; exiting as requested")
		return
	}

	logger := newLogger(cfg.Env)
	defer logger.Sync()

	dbConn, err := db.ConnectAndMigrate(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}

	locks := ids.NewLocks()
	ledger := billing.NewLedger(dbConn, logger, locks)
	ledger.EnforceCap = cfg.EnforceBillingCap

	deps := server.Deps{
		DB:           dbConn,
		Log:          logger,
		Sessions:     auth.NewSessions(cfg.SessionSecret, nil),
		Ledger:       ledger,
		Locks:        locks,
		Renderer:     render.NewFileRenderer(cfg.DocumentDir),
		Exporter:     pdf.NewExporter(),
		Notifier:     notify.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom),
		AuthDisabled: cfg.Env != "production" && os.Getenv("SESSION_SECRET") == "",
	}

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: server.New(deps)}
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutdown signal received")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger(env string) *zap.Logger {
	if env == "production" {
		l, err := zap.NewProduction()
		if err != nil {
			log.Fatalf("logger init: %v", err)
		}
		return l
	}
	l, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	return l
}
