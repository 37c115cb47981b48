package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/romariotrain/frames-service/internal/blob"
	"github.com/romariotrain/frames-service/internal/config"
	"github.com/romariotrain/frames-service/internal/jobs/httpapi"
	"github.com/romariotrain/frames-service/internal/jobs/kafka"
	"github.com/romariotrain/frames-service/internal/jobs/service"
	"github.com/romariotrain/frames-service/internal/storage/postgres"
	"github.com/romariotrain/frames-service/internal/token"
)

func run(ctx context.Context, logger zerolog.Logger) error {
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := postgres.Connect(ctx, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	blobs, err := blob.NewMinioGateway(cfg.Storage)
	if err != nil {
		return fmt.Errorf("storage gateway: %w", err)
	}
	if err := blobs.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}

	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("dispatch producer: %w", err)
	}
	defer producer.Close()

	codec := token.NewCodec([]byte(cfg.Auth.Secret))
	svc := service.New(postgres.NewJobRepo(db), blobs, producer, codec, service.Options{
		SampleInterval: cfg.SampleInterval(),
		DownloadTTL:    cfg.DownloadTTL(),
	}, logger)

	h := httpapi.New(svc, httpapi.NewJWTAuthenticator([]byte(cfg.Auth.Secret)))

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           httpapi.NewRouter(h),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Server.Addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen and serve: %w", err)
	}
}
