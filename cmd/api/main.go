package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/xelth-com/loomtrace/internal/audit"
	"github.com/xelth-com/loomtrace/internal/codegen"
	"github.com/xelth-com/loomtrace/internal/config"
	"github.com/xelth-com/loomtrace/internal/database"
	"github.com/xelth-com/loomtrace/internal/handlers"
	"github.com/xelth-com/loomtrace/internal/models"
	"github.com/xelth-com/loomtrace/internal/services/batch"
	"github.com/xelth-com/loomtrace/internal/services/bom"
	"github.com/xelth-com/loomtrace/internal/services/declaration"
	"github.com/xelth-com/loomtrace/internal/services/export"
	"github.com/xelth-com/loomtrace/internal/services/inventory"
	"github.com/xelth-com/loomtrace/internal/services/iqc"
	"github.com/xelth-com/loomtrace/internal/services/printer"
	"github.com/xelth-com/loomtrace/internal/services/purchase"
	"github.com/xelth-com/loomtrace/internal/services/receipt"
	"github.com/xelth-com/loomtrace/internal/services/registry"
	"github.com/xelth-com/loomtrace/internal/services/weaving"
	"github.com/xelth-com/loomtrace/internal/websocket"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load configuration: %v", err)
	}
	lg := config.NewLogger(cfg.Log)

	// 2. Initialize database (embedded vs external is detected from the config)
	db, err := database.Connect(cfg.Database, lg)
	if err != nil {
		lg.Fatalf("failed to connect to database: %v", err)
	}

	// 3. Auto-migrate schema
	lg.Info("synchronizing database schema")
	if err := db.AutoMigrate(models.All()...); err != nil {
		lg.Fatalf("schema migration failed: %v", err)
	}

	// 4. Number series, optionally serialised through redis
	genOpts := []codegen.Option{
		codegen.WithMaxAttempts(cfg.Codegen.MaxAttempts),
		codegen.WithLogger(lg.WithField("module", "codegen")),
	}
	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			lg.Warnf("redis at %s unreachable, number series run unlocked: %v", cfg.Redis.Address, err)
			rdb.Close()
			rdb = nil
		} else {
			genOpts = append(genOpts, codegen.WithLocker(codegen.NewRedisLocker(rdb, 10*time.Second)))
			lg.Infof("number series locked through redis at %s", cfg.Redis.Address)
		}
		cancel()
	}
	codes := codegen.NewGenerator(genOpts...)

	// 5. Services
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	hub := websocket.NewHub(lg)
	go hub.Run(ctx)

	aw := audit.NewGormWriter()
	svc := handlers.Services{
		Registry:     registry.New(db, aw, hub, lg),
		Purchase:     purchase.NewService(db, codes, aw, lg),
		Declarations: declaration.NewService(db, aw, lg),
		Receipts:     receipt.NewService(db, codes, aw, lg),
		Batches:      batch.NewService(db, codes, aw, printer.DefaultLabelOptions(cfg.Labels.QRPrefix), lg),
		IQC:          iqc.NewService(db, aw, lg),
		Inventory:    inventory.NewService(db, aw, lg),
		Exports:      export.NewService(db, codes, aw, lg),
		Weaving:      weaving.NewService(db, aw, lg),
		BOM:          bom.NewService(db, aw, lg),
	}
	if cfg.JWTSecret == "" {
		lg.Warn("JWT_SECRET is empty, API authentication is disabled")
	}
	router := handlers.NewRouter(db, svc, hub, cfg.JWTSecret, lg)

	// 6. Start server with graceful shutdown
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	go func() {
		lg.WithFields(logrus.Fields{"port": cfg.Port, "env": cfg.NodeEnv}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			lg.Fatalf("failed to start server: %v", err)
		}
	}()

	sig := <-shutdown
	lg.Infof("received signal %v, shutting down", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		lg.Errorf("HTTP server shutdown error: %v", err)
	}
	stop()

	if rdb != nil {
		rdb.Close()
	}
	// closing the database also stops embedded PostgreSQL
	if err := db.Close(); err != nil {
		lg.Errorf("database close error: %v", err)
	}
	lg.Info("shutdown complete")
}
