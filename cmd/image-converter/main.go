package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"

	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/image-converter/internal/api/handlers/catalog"
	"github.com/aliskhannn/image-converter/internal/api/handlers/preferences"
	"github.com/aliskhannn/image-converter/internal/api/handlers/session"
	"github.com/aliskhannn/image-converter/internal/api/handlers/version"
	"github.com/aliskhannn/image-converter/internal/api/router"
	"github.com/aliskhannn/image-converter/internal/api/server"
	catalogpkg "github.com/aliskhannn/image-converter/internal/catalog"
	"github.com/aliskhannn/image-converter/internal/config"
	"github.com/aliskhannn/image-converter/internal/infra/kafka/consumer"
	"github.com/aliskhannn/image-converter/internal/infra/kafka/producer"
	convertmsg "github.com/aliskhannn/image-converter/internal/kafka/handlers/convert"
	"github.com/aliskhannn/image-converter/internal/processor"
	prefrepo "github.com/aliskhannn/image-converter/internal/repository/preferences"
	prefsvc "github.com/aliskhannn/image-converter/internal/service/preferences"
	sessionsvc "github.com/aliskhannn/image-converter/internal/service/session"
	"github.com/aliskhannn/image-converter/internal/storage/file"
	"github.com/aliskhannn/image-converter/internal/validator"
)

func main() {
	// Context & signals: used for graceful shutdown on system interrupts.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zlog.Init()
	cfg := config.MustLoad("./config/config.yml")

	// Connect to PostgreSQL (master and slaves), which holds client preferences.
	opts := &dbpg.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}

	slaveDSNs := make([]string, 0, len(cfg.Database.Slaves))
	for _, s := range cfg.Database.Slaves {
		slaveDSNs = append(slaveDSNs, s.DSN())
	}

	db, err := dbpg.New(cfg.Database.Master.DSN(), slaveDSNs, opts)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	// Retry strategy for Kafka and other external calls.
	strategy := retry.Strategy{
		Attempts: cfg.Retry.Attempts,
		Delay:    cfg.Retry.Delay,
		Backoff:  cfg.Retry.Backoff,
	}

	// Converted outputs live in MinIO until their record is removed.
	storage, err := file.NewStorage(ctx, cfg.Storage.Endpoint, cfg.Storage.AccessKey, cfg.Storage.SecretKey, cfg.Storage.BucketName, cfg.Storage.UseSSL)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to storage")
	}

	p := producer.New(&cfg.Kafka, strategy)
	sessions := sessionsvc.NewService(
		processor.New(cfg.Conversion.PDFDPI),
		validator.New(cfg.Conversion.MaxFileSize),
		storage,
		p,
		cfg.Conversion.ProgressInterval,
	)
	prefs := prefsvc.NewService(prefrepo.NewRepository(db))

	// Kafka consumer running conversion batches.
	c := consumer.New(&cfg.Kafka, strategy, convertmsg.NewRequestedHandler(sessions))

	var wg sync.WaitGroup
	wg.Add(1)
	go c.Consume(ctx, &wg)

	r := router.Setup(router.Handlers{
		Session:     session.NewHandler(sessions, cfg.Conversion.MaxFilesPerBatch, cfg.Conversion.MaxFileSize),
		Catalog:     catalog.NewHandler(catalogpkg.New()),
		Preferences: preferences.NewHandler(prefs),
		Version:     version.NewHandler(cfg.Server.Version),
	})
	s := server.New(cfg.Server.HTTPPort, r)
	go func() {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	zlog.Logger.Info().Str("addr", cfg.Server.HTTPPort).Str("version", cfg.Server.Version).Msg("server started")

	<-ctx.Done()
	zlog.Logger.Info().Msg("context done")

	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	zlog.Logger.Info().Msg("shutting down server")
	if err := s.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
		zlog.Logger.Info().Msg("timeout exceeded, forcing shutdown")
	}

	// Revoke every stored output; nothing outlives the process but preferences.
	if err := sessions.CloseAll(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to clear sessions")
	}

	if err := db.Master.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close master DB")
	}
	for i, s := range db.Slaves {
		if err := s.Close(); err != nil {
			zlog.Logger.Error().Err(err).Int("slave", i).Msg("failed to close slave DB")
		}
	}

	if err = p.Client.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close kafka producer client")
	}
	if err = c.Client.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close kafka consumer client")
	}
}
