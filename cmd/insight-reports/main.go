package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"insight-reports/api"
	"insight-reports/cache"
	"insight-reports/config"
	"insight-reports/export"
	"insight-reports/logging"
	"insight-reports/mongodb"
	"insight-reports/notification"
	"insight-reports/report"
	"insight-reports/utils"
	"insight-reports/widget"
)

func main() {
	utils.LogToFile("api.log")

	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed config.yaml: %v", err)
	}
	os.MkdirAll(cfg.Server.LogDir, 0755)
	accessLogger := logging.NewLoggerOrDie(cfg.Server.LogDir, "access.log")
	reportLogger := logging.NewLoggerOrDie(cfg.Server.LogDir, "report.log")
	exportLogger := logging.NewLoggerOrDie(cfg.Server.LogDir, "export.log")

	pool := mongodb.NewPool(cfg.Mongo.URI)

	reportCache := cache.New[*report.Definition]("reports",
		cfg.Cache.ReportMaxSize, time.Duration(cfg.Cache.ReportTTLSeconds)*time.Second)
	resultCache := cache.New[*report.Page]("results",
		cfg.Cache.ResultMaxSize, time.Duration(cfg.Cache.ResultTTLSeconds)*time.Second)

	reports := report.NewStore(pool, cfg.Mongo.PrimaryDB, reportCache, reportLogger)
	executor := report.NewExecutor(pool, resultCache, reportLogger)
	exports := export.NewStore(pool, cfg.Mongo.PrimaryDB)
	widgets := widget.NewStore(pool, cfg.Mongo.PrimaryDB)
	notifications := notification.NewStore(pool, cfg.Mongo.PrimaryDB)

	engine := export.NewEngine(pool, exports, reports, export.Options{
		ExportDir:     cfg.Server.ExportDir,
		BatchSize:     cfg.Export.BatchSize,
		RetentionDays: cfg.Export.RetentionDays,
		Workers:       cfg.Export.Workers,
	}, exportLogger)

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := reports.EnsureIndexes(startCtx); err != nil {
		log.Printf("report indexes: %v", err)
	}
	if err := exports.EnsureIndexes(startCtx); err != nil {
		log.Printf("export indexes: %v", err)
	}
	if err := notifications.EnsureIndexes(startCtx); err != nil {
		log.Printf("notification indexes: %v", err)
	}
	failed, requeued, err := engine.Reconcile(startCtx)
	if err != nil {
		log.Printf("reconcile: %v", err)
	} else if failed > 0 || requeued > 0 {
		log.Printf("reconcile: %d failed, %d requeued", failed, requeued)
	}
	cancel()

	engine.StartWorkers()
	engine.StartSweeps(time.Duration(cfg.Export.MaxFileAgeHours) * time.Hour)

	srv := &http.Server{
		Addr: cfg.Server.Listen,
		Handler: api.NewRouter(api.Deps{
			JWTSecret:     cfg.JWT.Secret,
			Reports:       reports,
			Executor:      executor,
			Engine:        engine,
			Exports:       exports,
			Widgets:       widgets,
			Notifications: notifications,
			AccessLogger:  accessLogger,
			ReportLogger:  reportLogger,
			ExportLogger:  exportLogger,
		}),
	}

	go func() {
		log.Printf("Server started listening on %s ...", cfg.Server.Listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	// Arrêt ordonné : plus de nouvelles requêtes, puis caches, puis
	// connexions.
	log.Println("Shutting down...")
	shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	reportCache.Clear()
	resultCache.Clear()
	pool.CloseAll(shutCtx)
	accessLogger.Close()
	reportLogger.Close()
	exportLogger.Close()
}
