package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer used by KafkaSink.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
	// Writer overrides the writer built from Brokers and Topic.
	Writer MessageWriter
}

func (cfg *KafkaConfig) Validate() error {
	if cfg.Writer != nil {
		return nil
	}
	if len(cfg.Brokers) == 0 {
		return errors.New("kafka brokers are required")
	}
	if cfg.Topic == "" {
		return errors.New("kafka topic is required")
	}
	return nil
}

// KafkaSink publishes events as JSON keyed by vault ID, so each vault's events stay ordered within
// one partition.
type KafkaSink struct {
	writer MessageWriter
}

func NewKafkaSink(cfg KafkaConfig) (*KafkaSink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	w := cfg.Writer
	if w == nil {
		w = &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		}
	}
	return &KafkaSink{writer: w}, nil
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Publish(ctx context.Context, evs []Event) error {
	msgs := make([]kafka.Message, 0, len(evs))
	for _, ev := range evs {
		data, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("failed to marshal event %s: %w", ev.ID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(ev.VaultID),
			Value: data,
			Headers: []kafka.Header{
				{Key: "kind", Value: []byte(ev.Kind)},
			},
		})
	}
	if err := s.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to write kafka messages: %w", err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
