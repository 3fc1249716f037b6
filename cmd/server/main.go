package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rpattn/sheetimport/internal/config"
	"github.com/rpattn/sheetimport/internal/db"
	"github.com/rpattn/sheetimport/internal/derive"
	"github.com/rpattn/sheetimport/internal/importer"
	"github.com/rpattn/sheetimport/internal/mapping"
	"github.com/rpattn/sheetimport/internal/middleware"
	"github.com/rpattn/sheetimport/internal/progress"
	"github.com/rpattn/sheetimport/internal/repository"

	"github.com/rs/cors"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	conn, err := db.NewConnection(ctx, cfg.DB)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	if err := db.RunMigrations("./migrations", cfg.DB); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	recordRepo := repository.NewRecordRepository(conn.Pool)
	mappingRepo := repository.NewMappingRepository(conn.Pool)
	logRepo := repository.NewImportLogRepository(conn.Pool)

	var store progress.Store
	switch cfg.Progress.Backend {
	case "postgres":
		store = progress.NewPostgresStore(conn.Pool)
	default:
		store = progress.NewMemoryStore(cfg.Progress.Retention)
	}

	service := importer.NewService(
		recordRepo,
		logRepo,
		store,
		cfg.Catalog,
		importer.WithBatchSize(cfg.Importer.BatchSize),
		importer.WithJobTimeout(cfg.Importer.JobTimeout),
		importer.WithMaxErrors(cfg.Importer.MaxErrors),
		importer.WithBatchPause(cfg.Importer.BatchPause),
		importer.WithCalendar(derive.NewCalendar(cfg.Weekdays)),
	)

	resolver := mapping.NewResolver(cfg.Exclusions)
	handler := importer.NewHTTPHandler(service, resolver, mappingRepo)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	http.Handle("/imports", corsHandler.Handler(middleware.LoggingMiddleware(handler)))
	http.Handle("/imports/", corsHandler.Handler(middleware.LoggingMiddleware(handler)))

	server := &http.Server{
		Addr:         cfg.Addr,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting import server on %s", cfg.Addr)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
