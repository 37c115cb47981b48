package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/romariotrain/frames-service/internal/blob"
	"github.com/romariotrain/frames-service/internal/config"
	"github.com/romariotrain/frames-service/internal/jobs/kafka"
	"github.com/romariotrain/frames-service/internal/jobs/worker"
	"github.com/romariotrain/frames-service/internal/notify"
	"github.com/romariotrain/frames-service/internal/storage/postgres"
	"github.com/romariotrain/frames-service/internal/storage/redislease"
	"github.com/romariotrain/frames-service/internal/token"
	"github.com/romariotrain/frames-service/internal/transform"
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

	leases := redislease.NewStore(cfg.Redis)
	defer leases.Close()

	w := worker.New(
		postgres.NewJobRepo(db),
		blobs,
		transform.NewFFmpegExtractor(),
		notify.NewSMTPSink(cfg.SMTP),
		postgres.NewOwnerRepo(db),
		leases,
		token.NewCodec([]byte(cfg.Auth.Secret)),
		worker.Options{
			SampleInterval: cfg.SampleInterval(),
			JobTimeout:     cfg.JobTimeout(),
			Heartbeat:      cfg.Heartbeat(),
			DownloadTTL:    cfg.DownloadTTL(),
			BaseURL:        cfg.SMTP.BaseURL,
		},
		logger,
	)

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
		GroupID: cfg.Kafka.GroupID,
		Logger:  logger,
	}, w)
	if err != nil {
		return fmt.Errorf("dispatch consumer: %w", err)
	}
	defer consumer.Close()

	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
