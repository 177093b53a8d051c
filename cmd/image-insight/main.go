package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/image-insight/internal/analysis"
	"github.com/aliskhannn/image-insight/internal/api/handlers/record"
	"github.com/aliskhannn/image-insight/internal/api/router"
	"github.com/aliskhannn/image-insight/internal/api/server"
	"github.com/aliskhannn/image-insight/internal/config"
	"github.com/aliskhannn/image-insight/internal/exif"
	"github.com/aliskhannn/image-insight/internal/infra/kafka/consumer"
	"github.com/aliskhannn/image-insight/internal/infra/kafka/producer"
	"github.com/aliskhannn/image-insight/internal/intake"
	recordmsg "github.com/aliskhannn/image-insight/internal/kafka/handlers/record"
	"github.com/aliskhannn/image-insight/internal/orchestrator"
	"github.com/aliskhannn/image-insight/internal/payload"
	historyrepo "github.com/aliskhannn/image-insight/internal/repository/history"
	"github.com/aliskhannn/image-insight/internal/sanitize"
	historysvc "github.com/aliskhannn/image-insight/internal/service/history"
	"github.com/aliskhannn/image-insight/internal/storage/preview"
)

func main() {
	// Context & signals: used for graceful shutdown on system interrupts.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize logger and load application configuration.
	zlog.Init()
	cfg := config.MustLoad("./config/config.yml")

	// Connect to PostgreSQL (master and slaves).
	opts := &dbpg.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}

	// Collect slave DSNs for replica connections.
	slaveDSNs := make([]string, 0, len(cfg.Database.Slaves))

	for _, s := range cfg.Database.Slaves {
		slaveDSNs = append(slaveDSNs, s.DSN())
	}

	db, err := dbpg.New(cfg.Database.Master.DSN(), slaveDSNs, opts)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	// Retry strategy for the Kafka event surface. The processing pipeline
	// itself never retries.
	strategy := retry.Strategy{
		Attempts: cfg.Retry.Attempts,
		Delay:    cfg.Retry.Delay,
		Backoff:  cfg.Retry.Backoff,
	}

	// Initialize the preview object store (MinIO).
	previews, err := preview.NewStore(ctx, cfg.Storage.Endpoint, cfg.Storage.AccessKey, cfg.Storage.SecretKey, cfg.Storage.BucketName, cfg.Storage.UseSSL)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to preview storage")
	}

	// History persistence for terminal record outcomes.
	repo := historyrepo.NewRepository(db)
	history := historysvc.NewService(repo)

	// Producer for record lifecycle events.
	p := producer.New(&cfg.Kafka, strategy)

	// Analysis client: a missing credential must fail startup, not a call.
	analyzer, err := analysis.New(analysis.Config{
		APIKey:    cfg.Analysis.APIKey,
		BaseURL:   cfg.Analysis.BaseURL,
		Model:     cfg.Analysis.Model,
		Timeout:   cfg.Analysis.Timeout,
		MaxTokens: cfg.Analysis.MaxTokens,
	})
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to create analysis client")
	}

	// Pipeline components and the orchestrator owning the active record.
	extractor := exif.New()
	encoder := payload.NewEncoder(cfg.Intake.MaxFileSize)
	sanitizer := sanitize.New()
	orch := orchestrator.New(extractor, encoder, analyzer, sanitizer, previews, p)

	// Intake validator guarding every image source (upload, drop, camera).
	validator := intake.NewValidator(intake.Limits{
		MaxFileSize:    cfg.Intake.MaxFileSize,
		MaxWidth:       cfg.Intake.MaxWidth,
		MaxHeight:      cfg.Intake.MaxHeight,
		MaxPixels:      cfg.Intake.MaxPixels,
		AllowedFormats: cfg.Intake.AllowedFormats,
	})

	// HTTP handler for record routes.
	recHandler := record.NewHandler(validator, orch, history)

	// Kafka message handler for terminal record events.
	terminalHandler := recordmsg.NewTerminalHandler(history)

	// Kafka consumer feeding the processing history.
	c := consumer.New(&cfg.Kafka, strategy, terminalHandler)

	// Start Kafka consumer in a separate goroutine.
	var wg sync.WaitGroup
	wg.Add(1)
	go c.Consume(ctx, &wg)

	// Start HTTP server in a separate goroutine.
	r := router.Setup(recHandler)
	s := server.New(cfg.Server.HTTPPort, r)
	go func() {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Block until context is canceled (SIGINT/SIGTERM).
	<-ctx.Done()
	zlog.Logger.Info().Msg("context done")

	// Wait for Kafka consumer goroutine to finish.
	wg.Wait()

	// Graceful shutdown with timeout for HTTP server.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	zlog.Logger.Info().Msg("shutting down server")
	if err := s.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
		zlog.Logger.Info().Msg("timeout exceeded, forcing shutdown")
	}

	// Close master and slave databases.
	if err := db.Master.Close(); err != nil {
		zlog.Logger.Printf("failed to close master DB: %v", err)
	}
	for i, s := range db.Slaves {
		if err := s.Close(); err != nil {
			zlog.Logger.Printf("failed to close slave DB %d: %v", i, err)
		}
	}

	// Close Kafka producer and consumer clients.
	if err = p.Client.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close kafka producer client")
	}
	if err = c.Client.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close kafka consumer client")
	}
}
