package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/romariotrain/frames-service/internal/config"
	"github.com/romariotrain/frames-service/internal/jobs/kafka"
	"github.com/romariotrain/frames-service/internal/jobs/reconciler"
	"github.com/romariotrain/frames-service/internal/storage/postgres"
	"github.com/romariotrain/frames-service/internal/storage/redislease"
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

	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("dispatch producer: %w", err)
	}
	defer producer.Close()

	leases := redislease.NewStore(cfg.Redis)
	defer leases.Close()

	rec, err := reconciler.New(reconciler.Config{
		Repo:         postgres.NewJobRepo(db),
		Queue:        producer,
		Leases:       leases,
		Interval:     cfg.SweepInterval(),
		StalledAfter: cfg.StalledAfter(),
		BatchSize:    cfg.Reconciler.BatchSize,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("reconciler: %w", err)
	}

	if err := rec.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
