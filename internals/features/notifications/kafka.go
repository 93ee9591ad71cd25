package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"rentflow_backend/internals/configs"
)

// KafkaSink publishes messages keyed by user id, so one user's messages stay ordered.
type KafkaSink struct {
	writer *kafka.Writer
	log    *zap.Logger
}

func NewKafkaSink(cfg configs.KafkaConfig, log *zap.Logger) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
			WriteTimeout: 5 * time.Second,
		},
		log: log.Named("notify.kafka"),
	}
}

func (s *KafkaSink) Send(ctx context.Context, msg Message) error {
	value, err := sonic.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.UserID.String()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(msg.Event)},
		},
	}); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	s.log.Debug("notification published", zap.String("event", msg.Event), zap.String("topic", s.writer.Topic))
	return nil
}

func (s *KafkaSink) Close() error { return s.writer.Close() }

// NewSink picks Kafka when brokers are configured, the log otherwise.
func NewSink(cfg configs.KafkaConfig, log *zap.Logger) Sink {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		log.Info("no kafka brokers configured, notifications go to the log")
		return NewLogSink(log)
	}
	return NewKafkaSink(cfg, log)
}
