// Package notifications delivers user-facing success/error messages.
// Delivery mechanics (push, email, SMS) live behind the Kafka topic.
package notifications

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Message is one user-facing notification.
type Message struct {
	UserID    uuid.UUID      `json:"user_id"`
	Level     Level          `json:"level"`
	Event     string         `json:"event"`
	Text      string         `json:"text"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Sink is the outbound port. Callers log Send errors and carry on.
type Sink interface {
	Send(ctx context.Context, msg Message) error
}

// Notify sends msg and logs a failure. Use after a commit, never inside a transaction.
func Notify(ctx context.Context, sink Sink, log *zap.Logger, msg Message) {
	if sink == nil {
		return
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	if err := sink.Send(ctx, msg); err != nil {
		log.Warn("notification not delivered",
			zap.String("event", msg.Event),
			zap.String("user_id", msg.UserID.String()),
			zap.Error(err))
	}
}

/* =======================
   Log sink
======================= */

// LogSink writes messages to the log; used when no broker is configured.
type LogSink struct {
	log *zap.Logger
}

func NewLogSink(log *zap.Logger) *LogSink { return &LogSink{log: log.Named("notify")} }

func (s *LogSink) Send(_ context.Context, msg Message) error {
	s.log.Info(msg.Text,
		zap.String("user_id", msg.UserID.String()),
		zap.String("level", string(msg.Level)),
		zap.String("event", msg.Event),
		zap.Any("data", msg.Data))
	return nil
}

/* =======================
   Memory sink
======================= */

// MemorySink keeps every message; handy for tests and local runs.
type MemorySink struct {
	mu   sync.Mutex
	msgs []Message
}

func (s *MemorySink) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	s.msgs = append(s.msgs, msg)
	s.mu.Unlock()
	return nil
}

func (s *MemorySink) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.msgs...)
}
