package feed

import (
	"context"
	"errors"

	"github.com/yourorg/pairs-analytics/internal/metrics"
	"github.com/yourorg/pairs-analytics/internal/model"
	"github.com/yourorg/pairs-analytics/internal/store"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// messageReader is the subset of *kafka.Reader the feed uses
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaConfig locates the tick topic
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// KafkaFeed consumes JSON tick records from a topic. When symbols are given
// only those symbols are appended.
type KafkaFeed struct {
	reader  messageReader
	symbols map[string]bool
	logger  *zap.Logger
}

// NewKafkaFeed creates a new Kafka feed
func NewKafkaFeed(cfg KafkaConfig, symbols []string, logger *zap.Logger) *KafkaFeed {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return newKafkaFeed(reader, symbols, logger)
}

func newKafkaFeed(reader messageReader, symbols []string, logger *zap.Logger) *KafkaFeed {
	f := &KafkaFeed{reader: reader, logger: logger}
	if len(symbols) > 0 {
		f.symbols = make(map[string]bool, len(symbols))
		for _, s := range symbols {
			f.symbols[model.NormalizeSymbol(s)] = true
		}
	}
	return f
}

// Run implements Source
func (f *KafkaFeed) Run(ctx context.Context, sink Sink) error {
	defer func() {
		if err := f.reader.Close(); err != nil {
			f.logger.Warn("Failed to close Kafka reader", zap.Error(err))
		}
	}()

	for {
		msg, err := f.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			f.logger.Error("Failed to read tick message", zap.Error(err))
			return err
		}

		tick, err := store.DecodeTickRecord(msg.Value)
		if err != nil {
			metrics.FeedMessagesDropped.WithLabelValues("kafka").Inc()
			f.logger.Debug("Dropped malformed tick message",
				zap.Error(err),
				zap.Int64("offset", msg.Offset))
			continue
		}

		symbol := model.NormalizeSymbol(tick.Symbol)
		if f.symbols != nil && !f.symbols[symbol] {
			continue
		}

		if err := sink.Append(ctx, symbol, tick.Time, tick.Price, tick.Size); err != nil {
			f.logger.Warn("Failed to append tick", zap.Error(err), zap.String("symbol", symbol))
		}
	}
}
