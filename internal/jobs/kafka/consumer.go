package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/romariotrain/frames-service/internal/jobs/models"
)

// Handler processes one dispatch message. A nil return (including the
// drop-on-stale case, which the handler resolves internally) lets the offset
// be committed; a non-nil return leaves it uncommitted so the broker
// redelivers.
type Handler interface {
	Handle(ctx context.Context, d models.Dispatch) error
}

type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	Logger  zerolog.Logger
}

// Consumer pulls dispatch messages off the work queue and feeds them to the
// handler one at a time, committing offsets only after the handler is done.
type Consumer struct {
	reader  *kafkago.Reader
	handler Handler
	logger  zerolog.Logger
}

func NewConsumer(cfg ConsumerConfig, h Handler) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers list is empty")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic is empty")
	}
	if cfg.GroupID == "" {
		return nil, fmt.Errorf("group id is empty")
	}
	if h == nil {
		return nil, fmt.Errorf("handler is required")
	}

	return &Consumer{
		reader: kafkago.NewReader(kafkago.ReaderConfig{
			Brokers:  cfg.Brokers,
			Topic:    cfg.Topic,
			GroupID:  cfg.GroupID,
			MinBytes: 1,
			MaxBytes: 1 << 20,
		}),
		handler: h,
		logger:  cfg.Logger.With().Str("component", "dispatch_consumer").Logger(),
	}, nil
}

// Run blocks until the context is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info().Msg("dispatch consumer started")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				c.logger.Info().Msg("dispatch consumer stopped")
				return ctx.Err()
			}
			c.logger.Error().Err(err).Msg("fetch message")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		d, err := models.DecodeDispatch(msg.Value)
		if err != nil {
			// A malformed message will never become valid; commit past it.
			c.logger.Error().
				Err(err).
				Str("key", string(msg.Key)).
				Msg("dropping malformed dispatch")
			c.commit(ctx, msg)
			continue
		}

		if err := c.handler.Handle(ctx, d); err != nil {
			// Leave the offset uncommitted so the message is redelivered.
			c.logger.Error().
				Err(err).
				Int64("job_id", d.JobID).
				Msg("dispatch handling failed, leaving unacknowledged")
			continue
		}

		c.commit(ctx, msg)
	}
}

func (c *Consumer) commit(ctx context.Context, msg kafkago.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		// Redelivery after a missed commit is harmless: the claim check in
		// the worker drops duplicates.
		c.logger.Warn().Err(err).Msg("commit offset")
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
